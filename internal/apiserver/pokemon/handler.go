// Package pokemon 宝可梦目录领域 - HTTP 处理
//
// 读接口公开，写接口仅管理员。创建/更新支持 multipart 上传图片：
// 图片经 image 处理器裁剪后入对象存储，表单字段归一成 JSON
// 再交给通用 CRUD 工厂处理。
package pokemon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pokedex-api/internal/apiserver/auth"
	"pokedex-api/internal/apiserver/image"
	"pokedex-api/internal/apiserver/resource"
	"pokedex-api/internal/apiserver/respond"
	"pokedex-api/internal/shared/apperror"
	"pokedex-api/internal/shared/model"
	"pokedex-api/internal/shared/query"
	"pokedex-api/internal/shared/storage"
)

// maxUploadSize 上传图片大小上限
const maxUploadSize = 10 << 20 // 10 MiB

type createRequest struct {
	Name           string   `json:"name"`
	Image          string   `json:"image"`
	Species        []string `json:"species"`
	Descriptions   []string `json:"descriptions"`
	Type           string   `json:"type"`
	HP             int      `json:"hp"`
	Attack         int      `json:"attack"`
	Defense        int      `json:"defense"`
	SpecialAttack  int      `json:"special_attack"`
	SpecialDefense int      `json:"special_defense"`
	Speed          int      `json:"speed"`
}

type patchRequest struct {
	Name           *string   `json:"name"`
	Image          *string   `json:"image"`
	Species        *[]string `json:"species"`
	Descriptions   *[]string `json:"descriptions"`
	Type           *string   `json:"type"`
	HP             *int      `json:"hp"`
	Attack         *int      `json:"attack"`
	Defense        *int      `json:"defense"`
	SpecialAttack  *int      `json:"special_attack"`
	SpecialDefense *int      `json:"special_defense"`
	Speed          *int      `json:"speed"`
}

// Handler 宝可梦 HTTP 处理器
type Handler struct {
	crud     *resource.Handler[model.Pokemon, createRequest, patchRequest]
	pokemons storage.ResourceStore[model.Pokemon]
	images   *image.Processor // nil 表示图片上传不可用
}

// NewHandler 创建宝可梦处理器
// remover 配置后，更新替换掉的旧图片会被异步清理。
func NewHandler(store storage.PersistentStore, images *image.Processor, remover resource.ObjectRemover) *Handler {
	d := resource.Descriptor[model.Pokemon, createRequest, patchRequest]{
		Name:  "pokemon",
		Store: store.Pokemons(),
		FromCreate: func(_ string, req *createRequest) (*model.Pokemon, error) {
			now := time.Now()
			p := &model.Pokemon{
				ID:             generateID(),
				Name:           req.Name,
				Image:          req.Image,
				Species:        req.Species,
				Descriptions:   req.Descriptions,
				Type:           req.Type,
				HP:             req.HP,
				Attack:         req.Attack,
				Defense:        req.Defense,
				SpecialAttack:  req.SpecialAttack,
				SpecialDefense: req.SpecialDefense,
				Speed:          req.Speed,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := p.Validate(); err != nil {
				return nil, apperror.Validation("%v", err)
			}
			return p, nil
		},
		ApplyPatch: func(p *model.Pokemon, req *patchRequest) error {
			if req.Name != nil {
				p.Name = *req.Name
			}
			if req.Image != nil {
				p.Image = *req.Image
			}
			if req.Species != nil {
				p.Species = *req.Species
			}
			if req.Descriptions != nil {
				p.Descriptions = *req.Descriptions
			}
			if req.Type != nil {
				p.Type = *req.Type
			}
			if req.HP != nil {
				p.HP = *req.HP
			}
			if req.Attack != nil {
				p.Attack = *req.Attack
			}
			if req.Defense != nil {
				p.Defense = *req.Defense
			}
			if req.SpecialAttack != nil {
				p.SpecialAttack = *req.SpecialAttack
			}
			if req.SpecialDefense != nil {
				p.SpecialDefense = *req.SpecialDefense
			}
			if req.Speed != nil {
				p.Speed = *req.Speed
			}
			p.UpdatedAt = time.Now()
			if err := p.Validate(); err != nil {
				return apperror.Validation("%v", err)
			}
			return nil
		},
		ID:              func(p *model.Pokemon) string { return p.ID },
		OwnerID:         nil, // 目录为全局资源，写权限由 admin 角色门控
		ConflictMessage: "a pokemon with that name already exists",
		Query: query.Options{
			DefaultSort:      "-attack",
			MultiValueFields: map[string]bool{"species": true},
		},
		ImagePath: func(p *model.Pokemon) string { return p.Image },
		Images:    remover,
	}
	return &Handler{crud: resource.NewHandler(d), pokemons: store.Pokemons(), images: images}
}

// RegisterRoutes 注册宝可梦路由
// 读公开；写需要登录且为管理员。
func (h *Handler) RegisterRoutes(mux *http.ServeMux, protect auth.Middleware) {
	adminOnly := auth.RestrictedTo(model.UserRoleAdmin)

	mux.HandleFunc("GET /api/pokemons", h.crud.List)
	mux.HandleFunc("GET /api/pokemons/{id}", h.crud.Get)
	mux.HandleFunc("POST /api/pokemons", protect(adminOnly(h.Create)))
	mux.HandleFunc("PATCH /api/pokemons/{id}", protect(adminOnly(h.Update)))
	mux.HandleFunc("DELETE /api/pokemons/{id}", protect(adminOnly(h.crud.Delete)))
}

// Create 创建宝可梦，multipart 请求先归一为 JSON
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if isMultipart(r) {
		if err := h.normalizeMultipart(r); err != nil {
			respond.Error(w, err)
			return
		}
	}
	h.crud.Create(w, r)
}

// Update 更新宝可梦，multipart 请求先归一为 JSON
// 归一前先确认实体存在，避免为不存在的 id 上传孤儿图片。
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if isMultipart(r) {
		if _, err := h.pokemons.Get(r.Context(), r.PathValue("id")); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				respond.Error(w, apperror.NotFound("no pokemon found with that ID"))
				return
			}
			respond.Error(w, apperror.Internal(err))
			return
		}
		if err := h.normalizeMultipart(r); err != nil {
			respond.Error(w, err)
			return
		}
	}
	h.crud.Update(w, r)
}

// normalizeMultipart 解析 multipart 表单：
// image 文件经处理器入对象存储，其余表单字段编成 JSON 重写 r.Body。
func (h *Handler) normalizeMultipart(r *http.Request) error {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return apperror.Validation("invalid multipart form")
	}

	fields := make(map[string]any)
	for key, values := range r.MultipartForm.Value {
		if len(values) == 0 {
			continue
		}
		fields[key] = coerceFormValue(key, values[0])
	}

	if file, _, err := r.FormFile("image"); err == nil {
		defer file.Close()
		if h.images == nil {
			return apperror.Validation("image upload is not available")
		}
		caller := auth.GetAuthUser(r.Context())
		if caller == nil {
			return apperror.Unauthenticated("you are not logged in, please log in to get access")
		}
		name, _ := fields["name"].(string)
		if name == "" {
			name = fmt.Sprintf("pokemon-%d", time.Now().UnixNano())
		}
		path, err := h.images.Process(r.Context(), caller.ID, name, file)
		if err != nil {
			return apperror.Validation("could not process the uploaded image")
		}
		fields["image"] = path
	}

	body, err := json.Marshal(fields)
	if err != nil {
		return apperror.Internal(err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return nil
}

func isMultipart(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "multipart/form-data"
}

// coerceFormValue 表单值类型归一：数值字段转 int，列表字段按逗号拆分
func coerceFormValue(key, value string) any {
	switch key {
	case "hp", "attack", "defense", "special_attack", "special_defense", "speed":
		n, err := strconv.Atoi(value)
		if err != nil {
			return value
		}
		return n
	case "species", "descriptions":
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	default:
		return value
	}
}

func generateID() string {
	return fmt.Sprintf("pkm-%d", time.Now().UnixNano())
}
