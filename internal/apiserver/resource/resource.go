// Package resource 资源 CRUD 处理器工厂
//
// 各资源领域（pokemon/review）只声明一个 Descriptor：
// 实体类型、创建/更新的字段白名单 DTO、所有权提取函数。
// 五个 CRUD 处理器由工厂按统一语义生成，
// 错误分类、所有权检查、查询解析只写一遍。
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"pokedex-api/internal/apiserver/auth"
	"pokedex-api/internal/apiserver/respond"
	"pokedex-api/internal/shared/apperror"
	"pokedex-api/internal/shared/model"
	"pokedex-api/internal/shared/query"
	"pokedex-api/internal/shared/storage"
)

// ObjectRemover 删除对象存储中的文件（孤儿图片清理）
type ObjectRemover interface {
	Delete(ctx context.Context, key string) error
}

// Descriptor 资源描述
//
// C/P 是创建和更新的 DTO 类型：可写字段以类型定义，
// 系统字段（id、owner、时间戳）根本不出现在 DTO 上，无法被请求体覆盖。
type Descriptor[T, C, P any] struct {
	// Name 资源名，用于错误消息和日志
	Name string

	Store storage.ResourceStore[T]

	// FromCreate 由创建 DTO 构建实体（含校验），ownerID 为调用方用户 ID
	FromCreate func(ownerID string, req *C) (*T, error)

	// ApplyPatch 将更新 DTO 应用到实体（含校验与 UpdatedAt 推进）
	ApplyPatch func(entity *T, req *P) error

	// ID 提取实体 ID
	ID func(*T) string

	// OwnerID 提取所有者 ID，nil 表示该资源不做所有权检查
	OwnerID func(*T) string

	// ConflictMessage 唯一键冲突时的对外消息，空则用通用消息
	ConflictMessage string

	// Query 列表查询解析选项（默认排序、多值字段）
	Query query.Options

	// ImagePath/Images 配置后，更新替换图片时异步清理旧对象
	ImagePath func(*T) string
	Images    ObjectRemover
}

// Handler 由 Descriptor 生成的 CRUD 处理器
type Handler[T, C, P any] struct {
	d Descriptor[T, C, P]
}

// NewHandler 创建资源处理器
func NewHandler[T, C, P any](d Descriptor[T, C, P]) *Handler[T, C, P] {
	return &Handler[T, C, P]{d: d}
}

// Create 创建资源 (201)
func (h *Handler[T, C, P]) Create(w http.ResponseWriter, r *http.Request) {
	var req C
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperror.Validation("invalid request body"))
		return
	}

	ownerID := ""
	if caller := auth.GetAuthUser(r.Context()); caller != nil {
		ownerID = caller.ID
	}

	entity, err := h.d.FromCreate(ownerID, &req)
	if err != nil {
		respond.Error(w, err)
		return
	}

	if err := h.d.Store.Insert(r.Context(), entity); err != nil {
		respond.Error(w, h.mapStoreError(err))
		return
	}

	log.Printf("[%s] Created %s", h.d.Name, h.d.ID(entity))
	respond.Success(w, http.StatusCreated, entity)
}

// Get 按 ID 查询资源 (200/404)
func (h *Handler[T, C, P]) Get(w http.ResponseWriter, r *http.Request) {
	entity, err := h.d.Store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, apperror.NotFound("no "+h.d.Name+" found with that ID"))
			return
		}
		respond.Error(w, apperror.Internal(err))
		return
	}
	respond.Success(w, http.StatusOK, entity)
}

// List 列表查询，支持过滤/排序/投影/分页 (200)
func (h *Handler[T, C, P]) List(w http.ResponseWriter, r *http.Request) {
	spec := query.Parse(r.URL.Query(), h.d.Query)

	items, err := h.d.Store.List(r.Context(), spec)
	if err != nil {
		respond.Error(w, apperror.Internal(err))
		return
	}
	respond.SuccessList(w, http.StatusOK, items, len(items))
}

// Update 部分更新资源 (200/403/404)
// 所有权检查先于任何修改；替换掉的图片异步清理。
func (h *Handler[T, C, P]) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	entity, err := h.d.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, apperror.NotFound("no "+h.d.Name+" found with that ID"))
			return
		}
		respond.Error(w, apperror.Internal(err))
		return
	}

	if err := h.checkOwnership(r, entity); err != nil {
		respond.Error(w, err)
		return
	}

	var req P
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperror.Validation("invalid request body"))
		return
	}

	oldImage := ""
	if h.d.ImagePath != nil {
		oldImage = h.d.ImagePath(entity)
	}

	if err := h.d.ApplyPatch(entity, &req); err != nil {
		respond.Error(w, err)
		return
	}

	if err := h.d.Store.Replace(r.Context(), id, entity); err != nil {
		respond.Error(w, h.mapStoreError(err))
		return
	}

	if h.d.ImagePath != nil && oldImage != "" && oldImage != h.d.ImagePath(entity) {
		h.removeOrphanedImage(oldImage)
	}

	respond.Success(w, http.StatusOK, entity)
}

// Delete 删除资源 (204/403/404)
func (h *Handler[T, C, P]) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// 有所有权的资源先取出来做检查
	if h.d.OwnerID != nil {
		entity, err := h.d.Store.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				respond.Error(w, apperror.NotFound("no "+h.d.Name+" found with that ID"))
				return
			}
			respond.Error(w, apperror.Internal(err))
			return
		}
		if err := h.checkOwnership(r, entity); err != nil {
			respond.Error(w, err)
			return
		}
	}

	if err := h.d.Store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, apperror.NotFound("no "+h.d.Name+" found with that ID"))
			return
		}
		respond.Error(w, apperror.Internal(err))
		return
	}

	log.Printf("[%s] Deleted %s", h.d.Name, id)
	respond.NoContent(w)
}

// checkOwnership 非所有者且非管理员 → 403
func (h *Handler[T, C, P]) checkOwnership(r *http.Request, entity *T) error {
	if h.d.OwnerID == nil {
		return nil
	}
	caller := auth.GetAuthUser(r.Context())
	if caller == nil {
		return apperror.Unauthenticated("you are not logged in, please log in to get access")
	}
	if caller.Role == model.UserRoleAdmin {
		return nil
	}
	if h.d.OwnerID(entity) != caller.ID {
		return apperror.Forbidden("you can only modify your own " + h.d.Name + "s")
	}
	return nil
}

// mapStoreError 存储错误 → HTTP 错误
func (h *Handler[T, C, P]) mapStoreError(err error) error {
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		msg := h.d.ConflictMessage
		if msg == "" {
			msg = "a " + h.d.Name + " with these values already exists"
		}
		return apperror.Conflict(msg)
	case errors.Is(err, storage.ErrNotFound):
		return apperror.NotFound("no " + h.d.Name + " found with that ID")
	default:
		return apperror.Internal(err)
	}
}

// removeOrphanedImage 异步清理被替换的图片，失败只记日志
func (h *Handler[T, C, P]) removeOrphanedImage(path string) {
	if h.d.Images == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.d.Images.Delete(ctx, path); err != nil {
			log.Printf("[%s] orphaned image %s not removed: %v", h.d.Name, path, err)
		}
	}()
}
