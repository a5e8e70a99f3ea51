package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"pokedex-api/internal/shared/model"
)

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	defer s.observe("insert", ColUsers, time.Now())
	return insertOne(ctx, s.col(ColUsers), user)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	defer s.observe("find_one", ColUsers, time.Now())
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "email", Value: email}})
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	defer s.observe("find_one", ColUsers, time.Now())
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: id}})
}

// UpdateUserPassword 更新密码哈希并推进 password_changed_at，
// 同一次写入中清除重置令牌字段（单次兑换）
func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	defer s.observe("update", ColUsers, time.Now())
	return updateFields(ctx, s.col(ColUsers), id,
		bson.D{
			{Key: "password_hash", Value: passwordHash},
			{Key: "password_changed_at", Value: changedAt},
			{Key: "updated_at", Value: time.Now()},
		},
		bson.D{
			{Key: "reset_token_hash", Value: ""},
			{Key: "reset_token_expires_at", Value: ""},
		})
}

// SetUserResetToken 写入重置令牌哈希与过期时间（重发时直接覆盖）
func (s *Store) SetUserResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	defer s.observe("update", ColUsers, time.Now())
	return updateFields(ctx, s.col(ColUsers), id,
		bson.D{
			{Key: "reset_token_hash", Value: tokenHash},
			{Key: "reset_token_expires_at", Value: expiresAt},
			{Key: "updated_at", Value: time.Now()},
		}, nil)
}

// ClearUserResetToken 清除重置令牌字段（邮件发送失败时的回滚）
func (s *Store) ClearUserResetToken(ctx context.Context, id string) error {
	defer s.observe("update", ColUsers, time.Now())
	return updateFields(ctx, s.col(ColUsers), id,
		bson.D{{Key: "updated_at", Value: time.Now()}},
		bson.D{
			{Key: "reset_token_hash", Value: ""},
			{Key: "reset_token_expires_at", Value: ""},
		})
}

// GetUserByResetToken 按令牌哈希查找持有未过期令牌的用户
func (s *Store) GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	defer s.observe("find_one", ColUsers, time.Now())
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{
		{Key: "reset_token_hash", Value: tokenHash},
		{Key: "reset_token_expires_at", Value: bson.D{{Key: "$gt", Value: now}}},
	})
}
