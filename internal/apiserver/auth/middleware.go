package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"pokedex-api/internal/apiserver/respond"
	"pokedex-api/internal/shared/apperror"
	"pokedex-api/internal/shared/model"
	"pokedex-api/internal/shared/storage"
)

// Middleware 按路由组合的认证中间件
type Middleware func(http.HandlerFunc) http.HandlerFunc

// Protect 创建认证中间件
//
// 依次校验：凭证存在 → 令牌有效 → 用户仍存在 → 令牌晚于最近一次密码修改。
// 任何一步失败都以 401 拒绝，成功则把完整用户注入 context。
func Protect(cfg Config, store storage.UserStore) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				respond.Error(w, apperror.Unauthenticated("you are not logged in, please log in to get access"))
				return
			}

			info, err := VerifyAccessToken(cfg, tokenString)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					respond.Error(w, apperror.Unauthenticated("your token has expired, please log in again"))
					return
				}
				respond.Error(w, apperror.Unauthenticated("invalid token, please log in again"))
				return
			}

			user, err := store.GetUserByID(r.Context(), info.Subject)
			if err != nil {
				respond.Error(w, apperror.Internal(err))
				return
			}
			if user == nil {
				respond.Error(w, apperror.Unauthenticated("the user belonging to this token no longer exists"))
				return
			}
			if user.TokenIssuedBeforePasswordChange(info.IssuedAt) {
				respond.Error(w, apperror.Unauthenticated("user recently changed password, please log in again"))
				return
			}

			next(w, r.WithContext(WithAuthUser(r.Context(), user)))
		}
	}
}

// RestrictedTo 创建角色限制中间件，必须串在 Protect 之后
func RestrictedTo(roles ...model.UserRole) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user := GetAuthUser(r.Context())
			if user == nil {
				// RestrictedTo 出现在 Protect 之前属于接线错误
				log.Printf("[auth] RestrictedTo reached without authenticated user: %s %s", r.Method, r.URL.Path)
				respond.Error(w, apperror.Unauthenticated("you are not logged in, please log in to get access"))
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next(w, r)
					return
				}
			}
			respond.Error(w, apperror.Forbidden("you do not have permission to perform this action"))
		}
	}
}

// extractToken 提取访问令牌：优先 Authorization 头，其次 Cookie
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	if c, err := r.Cookie(accessCookieName); err == nil {
		return c.Value
	}
	return ""
}
