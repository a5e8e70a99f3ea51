package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"regexp"
	"time"

	"pokedex-api/internal/apiserver/respond"
	"pokedex-api/internal/shared/apperror"
	"pokedex-api/internal/shared/mailer"
	"pokedex-api/internal/shared/model"
	"pokedex-api/internal/shared/ratelimit"
	"pokedex-api/internal/shared/storage"
)

// Handler 认证 HTTP 处理器
type Handler struct {
	store     storage.UserStore
	cfg       Config
	mailer    mailer.Mailer
	limiter   ratelimit.Limiter // nil 表示限流关闭
	publicURL string
}

// NewHandler 创建认证处理器
// mailer 为 nil 时找回密码接口不可用（返回 500），limiter 为 nil 时限流关闭。
func NewHandler(store storage.UserStore, cfg Config, m mailer.Mailer, l ratelimit.Limiter, publicURL string) *Handler {
	return &Handler{store: store, cfg: cfg, mailer: m, limiter: l, publicURL: publicURL}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	protect := Protect(h.cfg, h.store)

	mux.HandleFunc("POST /api/users/signup", h.Signup)
	mux.HandleFunc("POST /api/users/signin", h.Signin)
	mux.HandleFunc("POST /api/users/logout", h.Logout)
	mux.HandleFunc("POST /api/users/forgotPassword", h.ForgotPassword)
	mux.HandleFunc("PATCH /api/users/resetPassword/{token}", h.ResetPassword)
	mux.HandleFunc("POST /api/refresh", h.Refresh)
	mux.HandleFunc("GET /api/users/{id}", protect(h.GetUser))
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type authResponse struct {
	User        *model.User `json:"user"`
	AccessToken string      `json:"access_token"`
}

// ============================================================================
// Handlers
// ============================================================================

// Signup 用户注册
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperror.Validation("invalid request body"))
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		respond.Error(w, apperror.Validation("name, email and password are required"))
		return
	}
	if !isValidEmail(req.Email) {
		respond.Error(w, apperror.Validation("invalid email format"))
		return
	}
	if err := validatePassword(req.Password, req.PasswordConfirm); err != nil {
		respond.Error(w, err)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		respond.Error(w, apperror.Internal(err))
		return
	}

	now := time.Now()
	user := &model.User{
		ID:           generateID(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         model.UserRoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			respond.Error(w, apperror.Conflict("email already registered"))
			return
		}
		respond.Error(w, apperror.Internal(err))
		return
	}

	// 欢迎邮件尽力投递，失败不影响注册
	if h.mailer != nil {
		go func(email, name string) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := h.mailer.SendWelcome(ctx, email, name); err != nil {
				log.Printf("[auth] welcome mail to %s failed: %v", email, err)
			}
		}(user.Email, user.Name)
	}

	log.Printf("[auth] User signed up: %s (%s)", user.Email, user.ID)
	h.signIn(w, user, http.StatusCreated)
}

// Signin 用户登录
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperror.Validation("invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		respond.Error(w, apperror.Validation("please provide email and password"))
		return
	}

	if !h.allow(r, "signin:"+req.Email) {
		respond.Error(w, apperror.TooManyRequests("too many sign-in attempts, please try again later"))
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		respond.Error(w, apperror.Internal(err))
		return
	}
	if user == nil || !CheckPassword(req.Password, user.PasswordHash) {
		respond.Error(w, apperror.Unauthenticated("incorrect email or password"))
		return
	}

	log.Printf("[auth] User signed in: %s", user.Email)
	h.signIn(w, user, http.StatusOK)
}

// Refresh 刷新令牌
// 从 Cookie 取刷新令牌，校验通过后轮换两个令牌（旧刷新令牌随 Cookie 覆盖作废）。
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(refreshCookieName)
	if err != nil || c.Value == "" {
		respond.Error(w, apperror.Unauthenticated("no refresh token provided, please log in"))
		return
	}

	info, err := VerifyRefreshToken(h.cfg, c.Value)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			respond.Error(w, apperror.Unauthenticated("your session has expired, please log in again"))
			return
		}
		respond.Error(w, apperror.Unauthenticated("invalid refresh token, please log in again"))
		return
	}

	user, err := h.store.GetUserByID(r.Context(), info.Subject)
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

	h.signIn(w, user, http.StatusOK)
}

// Logout 登出，清除令牌 Cookie
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	clearAuthCookies(w, h.cfg)
	respond.SuccessMessage(w, http.StatusOK, "logged out")
}

// ForgotPassword 找回密码
// 签发重置令牌并发邮件；邮件发送失败时回滚令牌字段，避免留下无法投递的半完成状态。
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperror.Validation("invalid request body"))
		return
	}
	if req.Email == "" {
		respond.Error(w, apperror.Validation("please provide your email address"))
		return
	}

	if !h.allow(r, "forgot:"+req.Email) {
		respond.Error(w, apperror.TooManyRequests("too many password reset requests, please try again later"))
		return
	}

	// 邮件不可投递时不落任何令牌
	if h.mailer == nil {
		respond.Error(w, apperror.Internal(errors.New("mailer not configured")))
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		respond.Error(w, apperror.Internal(err))
		return
	}
	if user == nil {
		respond.Error(w, apperror.NotFound("there is no user with that email address"))
		return
	}

	plain, hash, expiresAt, err := NewResetToken()
	if err != nil {
		respond.Error(w, apperror.Internal(err))
		return
	}
	if err := h.store.SetUserResetToken(r.Context(), user.ID, hash, expiresAt); err != nil {
		respond.Error(w, apperror.Internal(err))
		return
	}

	resetURL := fmt.Sprintf("%s/api/users/resetPassword/%s", h.publicURL, plain)
	if err := h.mailer.SendPasswordReset(r.Context(), user.Email, user.Name, resetURL); err != nil {
		// 回滚：令牌从未送达，不留在库里。
		// 独立 context：发送失败可能正是请求被取消所致
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if clearErr := h.store.ClearUserResetToken(ctx, user.ID); clearErr != nil {
			log.Printf("[auth] clear reset token for %s failed: %v", user.ID, clearErr)
		}
		respond.Error(w, apperror.Internal(fmt.Errorf("send reset mail: %w", err)))
		return
	}

	log.Printf("[auth] Password reset mail sent to %s", user.Email)
	respond.SuccessMessage(w, http.StatusOK, "token sent to email")
}

// ResetPassword 兑换重置令牌设置新密码，成功后直接登录
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	plain := r.PathValue("token")

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperror.Validation("invalid request body"))
		return
	}
	if err := validatePassword(req.Password, req.PasswordConfirm); err != nil {
		respond.Error(w, err)
		return
	}

	user, err := h.store.GetUserByResetToken(r.Context(), HashResetToken(plain), time.Now())
	if err != nil {
		respond.Error(w, apperror.Internal(err))
		return
	}
	if user == nil {
		respond.Error(w, apperror.Validation("token is invalid or has expired"))
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		respond.Error(w, apperror.Internal(err))
		return
	}
	// 同一次写入推进 password_changed_at 并清除重置令牌：
	// 旧访问令牌全部失效，重置令牌一次性使用
	if err := h.store.UpdateUserPassword(r.Context(), user.ID, hash, time.Now()); err != nil {
		respond.Error(w, apperror.Internal(err))
		return
	}

	log.Printf("[auth] Password reset for %s", user.Email)
	h.signIn(w, user, http.StatusOK)
}

// GetUser 查询用户资料，只允许本人或管理员
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	caller := GetAuthUser(r.Context())
	id := r.PathValue("id")

	if caller.ID != id && caller.Role != model.UserRoleAdmin {
		respond.Error(w, apperror.Forbidden("you can only view your own profile"))
		return
	}

	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		respond.Error(w, apperror.Internal(err))
		return
	}
	if user == nil {
		respond.Error(w, apperror.NotFound("no user found with that ID"))
		return
	}
	respond.Success(w, http.StatusOK, user)
}

// signIn 签发两个令牌并写响应（注册/登录/刷新/重置共用）
func (h *Handler) signIn(w http.ResponseWriter, user *model.User, status int) {
	accessToken, err := IssueAccessToken(h.cfg, user.ID)
	if err != nil {
		respond.Error(w, apperror.Internal(err))
		return
	}
	refreshToken, err := IssueRefreshToken(h.cfg, user.ID)
	if err != nil {
		respond.Error(w, apperror.Internal(err))
		return
	}
	setAuthCookies(w, h.cfg, accessToken, refreshToken)
	respond.Success(w, status, authResponse{User: user, AccessToken: accessToken})
}

// allow 限流检查，限流器未配置时直接放行
func (h *Handler) allow(r *http.Request, key string) bool {
	if h.limiter == nil {
		return true
	}
	ok, err := h.limiter.Allow(r.Context(), clientIP(r)+":"+key)
	if err != nil {
		// 限流器故障不阻断登录
		log.Printf("[auth] rate limiter error: %v", err)
		return true
	}
	return ok
}

// ============================================================================
// Admin Bootstrap
// ============================================================================

// EnsureAdminUser 确保管理员用户存在（启动时调用）
// 配置了 adminEmail 且库中不存在该用户时自动创建。
func EnsureAdminUser(store storage.UserStore, adminEmail, adminPassword string) error {
	if adminEmail == "" || adminPassword == "" {
		return nil
	}

	ctx := context.Background()
	existing, err := store.GetUserByEmail(ctx, adminEmail)
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if existing != nil {
		log.Printf("[auth] Admin user already exists: %s (%s)", adminEmail, existing.ID)
		return nil
	}

	hash, err := HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           generateID(),
		Name:         "Admin",
		Email:        adminEmail,
		PasswordHash: hash,
		Role:         model.UserRoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Printf("[auth] Created admin user: %s (%s)", adminEmail, user.ID)
	return nil
}

// ============================================================================
// 工具函数
// ============================================================================

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func validatePassword(password, confirm string) error {
	if len(password) < 8 {
		return apperror.Validation("password must be at least 8 characters")
	}
	if password != confirm {
		return apperror.Validation("passwords do not match")
	}
	return nil
}

func generateID() string {
	return fmt.Sprintf("usr-%d", time.Now().UnixNano())
}

// clientIP 提取客户端 IP（限流键）
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
