// Package auth 用户认证：JWT 令牌管理、密码哈希、密码重置令牌、HTTP 中间件
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"pokedex-api/internal/shared/model"
)

// 令牌验证错误
var (
	// ErrTokenExpired 令牌已过期（需要重新登录或刷新）
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid 令牌非法（签名不符、类型不符、格式错误）
	ErrTokenInvalid = errors.New("token invalid")
)

// contextKey context 键类型
type contextKey string

const ctxKeyAuthUser contextKey = "auth_user"

// Config 认证配置
//
// 访问令牌和刷新令牌使用不同密钥签名，
// 刷新令牌无法冒充访问令牌通过校验（反之亦然）。
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	// SecureCookie 生产环境下 Cookie 加 Secure 标记
	SecureCookie bool
}

// ============================================================================
// 密码哈希
// ============================================================================

// HashPassword 使用 bcrypt 哈希密码
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	return string(bytes), err
}

// CheckPassword 验证密码
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ============================================================================
// JWT Token
// ============================================================================

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims JWT 声明
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"type,omitempty"` // "access" | "refresh"
}

// TokenInfo 验证通过后返回的令牌信息
type TokenInfo struct {
	Subject  string
	IssuedAt time.Time
}

// IssueAccessToken 签发访问令牌
func IssueAccessToken(cfg Config, userID string) (string, error) {
	return issueToken(cfg.AccessSecret, cfg.AccessTTL, userID, tokenTypeAccess)
}

// IssueRefreshToken 签发刷新令牌
func IssueRefreshToken(cfg Config, userID string) (string, error) {
	return issueToken(cfg.RefreshSecret, cfg.RefreshTTL, userID, tokenTypeRefresh)
}

func issueToken(secret string, ttl time.Duration, userID, tokenType string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: tokenType,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyAccessToken 验证访问令牌
func VerifyAccessToken(cfg Config, tokenString string) (*TokenInfo, error) {
	return verifyToken(cfg.AccessSecret, tokenString, tokenTypeAccess)
}

// VerifyRefreshToken 验证刷新令牌
func VerifyRefreshToken(cfg Config, tokenString string) (*TokenInfo, error) {
	return verifyToken(cfg.RefreshSecret, tokenString, tokenTypeRefresh)
}

func verifyToken(secret, tokenString, wantType string) (*TokenInfo, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != wantType {
		return nil, ErrTokenInvalid
	}
	if claims.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}
	return &TokenInfo{Subject: claims.Subject, IssuedAt: claims.IssuedAt.Time}, nil
}

// ============================================================================
// 密码重置令牌
// ============================================================================

// ResetTokenTTL 重置令牌有效期
const ResetTokenTTL = 10 * time.Minute

// NewResetToken 生成密码重置令牌
// 明文只通过邮件发给用户，数据库只存 SHA-256 哈希。
func NewResetToken() (plain, hash string, expiresAt time.Time, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate reset token: %w", err)
	}
	plain = hex.EncodeToString(buf)
	return plain, HashResetToken(plain), time.Now().Add(ResetTokenTTL), nil
}

// HashResetToken 计算重置令牌哈希（兑换时与库中哈希比对）
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// ============================================================================
// Context 辅助函数
// ============================================================================

// WithAuthUser 将认证用户注入 context
func WithAuthUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ctxKeyAuthUser, user)
}

// GetAuthUser 从 context 获取认证用户，未认证返回 nil
func GetAuthUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(ctxKeyAuthUser).(*model.User)
	return user
}
