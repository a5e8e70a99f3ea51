// Package server 路由配置与核心基础设施
//
// 本文件定义 HTTP API 路由，将请求分发到各领域独立包。
// metrics.go: Prometheus 指标。
package server

import (
	"fmt"
	"net/http"

	"pokedex-api/internal/apiserver/auth"
	"pokedex-api/internal/apiserver/image"
	"pokedex-api/internal/apiserver/pokemon"
	"pokedex-api/internal/apiserver/resource"
	"pokedex-api/internal/apiserver/respond"
	"pokedex-api/internal/apiserver/review"
	"pokedex-api/internal/shared/apperror"
	"pokedex-api/internal/shared/mailer"
	"pokedex-api/internal/shared/objstore"
	"pokedex-api/internal/shared/ratelimit"
	"pokedex-api/internal/shared/storage"
	"pokedex-api/internal/shared/storage/mongostore"
)

// Options Handler 依赖项
//
// Mailer/Limiter/Images/Objects 均可为 nil：
// 对应能力（找回密码邮件、限流、图片上传、孤儿图片清理）关闭，其余路由不受影响。
type Options struct {
	Store      storage.PersistentStore
	AuthConfig auth.Config
	Mailer     mailer.Mailer
	Limiter    ratelimit.Limiter
	Images     *image.Processor
	Objects    *objstore.Client
	PublicURL  string
}

// Handler API Server 核心处理器
type Handler struct {
	opts    Options
	metrics *Metrics
}

// NewHandler 创建核心处理器
func NewHandler(opts Options) *Handler {
	return &Handler{opts: opts, metrics: NewMetrics("pokedex")}
}

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET /health - 服务健康检查
//
// 认证 (Auth):
//   - POST  /api/users/signup                  - 注册
//   - POST  /api/users/signin                  - 登录
//   - POST  /api/users/logout                  - 登出
//   - POST  /api/users/forgotPassword          - 申请密码重置
//   - PATCH /api/users/resetPassword/{token}   - 兑换重置令牌
//   - POST  /api/refresh                       - 轮换令牌
//   - GET   /api/users/{id}                    - 用户资料（登录）
//
// 宝可梦目录 (Pokemon)，读公开、写仅管理员:
//   - GET    /api/pokemons        - 列表（过滤/排序/投影/分页）
//   - GET    /api/pokemons/{id}   - 详情
//   - POST   /api/pokemons        - 创建（支持 multipart 图片）
//   - PATCH  /api/pokemons/{id}   - 更新（支持 multipart 图片）
//   - DELETE /api/pokemons/{id}   - 删除
//
// 评价 (Review)，读公开、写需登录、改删仅作者:
//   - GET    /api/reviews         - 列表
//   - GET    /api/reviews/{id}    - 详情
//   - POST   /api/reviews         - 创建
//   - PATCH  /api/reviews/{id}    - 更新
//   - DELETE /api/reviews/{id}    - 删除
//
// 图片:
//   - GET /img/{key...} - 按对象路径回源（对象存储可用时）
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", MetricsHandler())

	protect := auth.Protect(h.opts.AuthConfig, h.opts.Store)

	// Auth 路由
	authHandler := auth.NewHandler(h.opts.Store, h.opts.AuthConfig, h.opts.Mailer, h.opts.Limiter, h.opts.PublicURL)
	authHandler.RegisterRoutes(mux)

	// Pokemon 路由
	var remover resource.ObjectRemover
	if h.opts.Objects != nil {
		remover = h.opts.Objects
	}
	pokemonHandler := pokemon.NewHandler(h.opts.Store, h.opts.Images, remover)
	pokemonHandler.RegisterRoutes(mux, protect)

	// Review 路由
	reviewHandler := review.NewHandler(h.opts.Store)
	reviewHandler.RegisterRoutes(mux, protect)

	// 图片回源（对象存储可用时）
	if h.opts.Objects != nil {
		mux.HandleFunc("GET /img/{key...}", image.ServeHandler(h.opts.Objects))
	}

	// 未匹配路由统一返回 JSON 404
	mux.HandleFunc("/", h.NotFound)

	// 指标中间件 + CORS
	return corsMiddleware(h.metrics.Middleware(mux))
}

// ObserveStoreQueries 把 MongoDB 查询耗时接入 DB 指标
func (h *Handler) ObserveStoreQueries(store *mongostore.Store) {
	store.SetQueryObserver(h.metrics.RecordDBQuery)
}

// Health 健康检查
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respond.Success(w, http.StatusOK, map[string]string{"status": "up"})
}

// NotFound 未知路由
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	respond.Error(w, apperror.NotFound(fmt.Sprintf("can't find %s on this server", r.URL.Path)))
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
