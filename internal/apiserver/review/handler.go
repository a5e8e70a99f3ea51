// Package review 评价领域 - HTTP 处理
//
// 读接口公开；写接口需要登录，修改/删除只允许评价作者（或管理员）。
// (user_id, pokemon_id) 唯一索引保证每人对同一宝可梦只能评价一次。
package review

import (
	"fmt"
	"net/http"
	"time"

	"pokedex-api/internal/apiserver/auth"
	"pokedex-api/internal/apiserver/resource"
	"pokedex-api/internal/shared/apperror"
	"pokedex-api/internal/shared/model"
	"pokedex-api/internal/shared/query"
	"pokedex-api/internal/shared/storage"
)

type createRequest struct {
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	PokemonID string `json:"pokemon_id"`
}

type patchRequest struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

// Handler 评价 HTTP 处理器
type Handler struct {
	crud *resource.Handler[model.Review, createRequest, patchRequest]
}

// NewHandler 创建评价处理器
func NewHandler(store storage.PersistentStore) *Handler {
	d := resource.Descriptor[model.Review, createRequest, patchRequest]{
		Name:  "review",
		Store: store.Reviews(),
		FromCreate: func(ownerID string, req *createRequest) (*model.Review, error) {
			now := time.Now()
			rv := &model.Review{
				ID:        generateID(),
				Rating:    req.Rating,
				Comment:   req.Comment,
				UserID:    ownerID,
				PokemonID: req.PokemonID,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := rv.Validate(); err != nil {
				return nil, apperror.Validation("%v", err)
			}
			return rv, nil
		},
		ApplyPatch: func(rv *model.Review, req *patchRequest) error {
			// pokemon_id/user_id 不可改：换目标等于新评价
			if req.Rating != nil {
				rv.Rating = *req.Rating
			}
			if req.Comment != nil {
				rv.Comment = *req.Comment
			}
			rv.UpdatedAt = time.Now()
			if err := rv.Validate(); err != nil {
				return apperror.Validation("%v", err)
			}
			return nil
		},
		ID:              func(rv *model.Review) string { return rv.ID },
		OwnerID:         func(rv *model.Review) string { return rv.UserID },
		ConflictMessage: "you have already reviewed this pokemon",
		Query:           query.Options{DefaultSort: "-created_at"},
	}
	return &Handler{crud: resource.NewHandler(d)}
}

// RegisterRoutes 注册评价路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux, protect auth.Middleware) {
	mux.HandleFunc("GET /api/reviews", h.crud.List)
	mux.HandleFunc("GET /api/reviews/{id}", h.crud.Get)
	mux.HandleFunc("POST /api/reviews", protect(h.crud.Create))
	mux.HandleFunc("PATCH /api/reviews/{id}", protect(h.crud.Update))
	mux.HandleFunc("DELETE /api/reviews/{id}", protect(h.crud.Delete))
}

func generateID() string {
	return fmt.Sprintf("rev-%d", time.Now().UnixNano())
}
