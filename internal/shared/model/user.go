// Package model 定义核心数据模型
package model

import "time"

// UserRole 用户角色
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// Valid 角色是否合法
func (r UserRole) Valid() bool {
	return r == UserRoleAdmin || r == UserRoleUser
}

// User 用户
//
// 密码重置字段（ResetTokenHash/ResetTokenExpiresAt）要么同时存在，
// 要么同时为空：签发时一起写入，兑换成功或邮件发送失败时一起清除。
type User struct {
	ID           string   `json:"id" bson:"_id"`
	Name         string   `json:"name" bson:"name"`
	Email        string   `json:"email" bson:"email"`
	PasswordHash string   `json:"-" bson:"password_hash"` // never expose in JSON
	Role         UserRole `json:"role" bson:"role"`

	// PasswordChangedAt 最近一次密码修改时间
	// 早于该时间签发的令牌全部失效（无需维护吊销列表）
	PasswordChangedAt time.Time `json:"-" bson:"password_changed_at"`

	// 密码重置令牌（只存哈希，明文只通过邮件发给用户）
	ResetTokenHash      *string    `json:"-" bson:"reset_token_hash,omitempty"`
	ResetTokenExpiresAt *time.Time `json:"-" bson:"reset_token_expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// TokenIssuedBeforePasswordChange 判断令牌是否签发于最近一次密码修改之前
//
// JWT 的 iat 精度为秒，比较时统一截断到秒，
// 避免同一秒内签发的令牌被误判。
func (u *User) TokenIssuedBeforePasswordChange(issuedAt time.Time) bool {
	if u.PasswordChangedAt.IsZero() {
		return false
	}
	return issuedAt.Truncate(time.Second).Before(u.PasswordChangedAt.Truncate(time.Second))
}

// HasActiveResetToken 是否存在未过期的重置令牌
func (u *User) HasActiveResetToken(now time.Time) bool {
	return u.ResetTokenHash != nil && u.ResetTokenExpiresAt != nil && now.Before(*u.ResetTokenExpiresAt)
}
