// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：mongostore/
//   - 初始化时通过依赖注入传入实现
package storage

import (
	"context"
	"time"

	"pokedex-api/internal/shared/model"
	"pokedex-api/internal/shared/query"
)

// ResourceStore 资源类型无关的 CRUD 访问器
//
// 通用 handler 工厂只依赖该接口，每种资源在启动时
// 绑定一个具体实例（Pokemons()/Reviews()）。
type ResourceStore[T any] interface {
	// Insert 插入文档，唯一键冲突返回 ErrDuplicate
	Insert(ctx context.Context, doc *T) error

	// Get 按 ID 查找，不存在返回 ErrNotFound
	Get(ctx context.Context, id string) (*T, error)

	// List 按查询描述执行过滤/排序/投影/分页
	List(ctx context.Context, spec query.Spec) ([]*T, error)

	// Replace 按 ID 整体替换，不存在返回 ErrNotFound
	Replace(ctx context.Context, id string, doc *T) error

	// Delete 按 ID 删除，不存在返回 ErrNotFound
	Delete(ctx context.Context, id string) error
}

// UserStore 用户凭据存储
//
// Get* 系列在记录不存在时返回 (nil, nil)，与 mongostore 的
// findOne 语义一致；调用方据此区分"不存在"与"存储故障"。
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)

	// UpdateUserPassword 更新密码哈希，同时推进 password_changed_at
	// 并清除重置令牌字段（单次原子写）
	UpdateUserPassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error

	// SetUserResetToken 写入重置令牌哈希与过期时间
	// 并发重发时后写覆盖先写（last-write-wins）
	SetUserResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error

	// ClearUserResetToken 清除重置令牌字段（邮件发送失败时回滚）
	ClearUserResetToken(ctx context.Context, id string) error

	// GetUserByResetToken 按令牌哈希查找持有未过期令牌的用户
	GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
}

// PersistentStore 持久化存储聚合接口
type PersistentStore interface {
	UserStore

	// Pokemons 宝可梦目录的资源访问器
	Pokemons() ResourceStore[model.Pokemon]

	// Reviews 评价的资源访问器
	Reviews() ResourceStore[model.Review]

	Close() error
}
