package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pokedex-api/internal/shared/model"
	"pokedex-api/internal/shared/storage"
)

func seedUser(t *testing.T, store *storage.MemStore, role model.UserRole) *model.User {
	t.Helper()
	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	now := time.Now()
	user := &model.User{
		ID:           "usr-" + string(role),
		Name:         "Test " + string(role),
		Email:        string(role) + "@example.com",
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func protectedEcho(t *testing.T, cfg Config, store storage.UserStore) http.HandlerFunc {
	t.Helper()
	return Protect(cfg, store)(func(w http.ResponseWriter, r *http.Request) {
		user := GetAuthUser(r.Context())
		if user == nil {
			t.Error("authenticated handler reached without user in context")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestProtectRejectsMissingToken(t *testing.T) {
	store := storage.NewMemStore()
	handler := protectedEcho(t, testConfig(), store)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/api/users/usr-1", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestProtectAcceptsBearerToken(t *testing.T) {
	cfg := testConfig()
	store := storage.NewMemStore()
	user := seedUser(t, store, model.UserRoleUser)
	handler := protectedEcho(t, cfg, store)

	token, err := IssueAccessToken(cfg, user.ID)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/users/"+user.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
}

func TestProtectAcceptsCookieFallback(t *testing.T) {
	cfg := testConfig()
	store := storage.NewMemStore()
	user := seedUser(t, store, model.UserRoleUser)
	handler := protectedEcho(t, cfg, store)

	token, err := IssueAccessToken(cfg, user.ID)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/users/"+user.ID, nil)
	req.AddCookie(&http.Cookie{Name: accessCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestProtectRejectsDeletedUser(t *testing.T) {
	cfg := testConfig()
	store := storage.NewMemStore()
	handler := protectedEcho(t, cfg, store)

	// 令牌有效，但用户不在库中
	token, err := IssueAccessToken(cfg, "usr-ghost")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/users/usr-ghost", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Message != "the user belonging to this token no longer exists" {
		t.Errorf("message = %q", body.Message)
	}
}

func TestProtectRejectsTokenIssuedBeforePasswordChange(t *testing.T) {
	cfg := testConfig()
	store := storage.NewMemStore()
	user := seedUser(t, store, model.UserRoleUser)
	handler := protectedEcho(t, cfg, store)

	token, err := IssueAccessToken(cfg, user.ID)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	// 签发后修改密码（changedAt 晚于 iat，截断到秒后仍晚）
	newHash, _ := HashPassword("new-password-1")
	changedAt := time.Now().Add(2 * time.Second)
	if err := store.UpdateUserPassword(context.Background(), user.ID, newHash, changedAt); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/users/"+user.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestProtectRejectsExpiredToken(t *testing.T) {
	cfg := testConfig()
	store := storage.NewMemStore()
	user := seedUser(t, store, model.UserRoleUser)
	handler := protectedEcho(t, cfg, store)

	expired := cfg
	expired.AccessTTL = -time.Minute
	token, err := IssueAccessToken(expired, user.ID)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/users/"+user.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Message != "your token has expired, please log in again" {
		t.Errorf("message = %q, expired token should get its own message", body.Message)
	}
}

func TestRestrictedTo(t *testing.T) {
	cfg := testConfig()
	store := storage.NewMemStore()
	admin := seedUser(t, store, model.UserRoleAdmin)
	regular := seedUser(t, store, model.UserRoleUser)

	handler := Protect(cfg, store)(RestrictedTo(model.UserRoleAdmin)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name string
		user *model.User
		want int
	}{
		{"admin allowed", admin, http.StatusOK},
		{"user forbidden", regular, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := IssueAccessToken(cfg, tc.user.ID)
			if err != nil {
				t.Fatalf("IssueAccessToken: %v", err)
			}
			req := httptest.NewRequest("DELETE", "/api/pokemons/pkm-1", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			handler(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestRestrictedToWithoutProtect(t *testing.T) {
	handler := RestrictedTo(model.UserRoleAdmin)(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without authenticated user")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("DELETE", "/api/pokemons/pkm-1", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 when identity is missing", rec.Code)
	}
}
