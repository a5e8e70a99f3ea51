package mongostore

import (
	"context"
	"errors"
	"net/url"
	"os"
	"testing"
	"time"

	"pokedex-api/internal/shared/model"
	"pokedex-api/internal/shared/query"
	"pokedex-api/internal/shared/storage"
)

// testStore 创建测试用 Store，使用独立数据库避免污染
func testStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	dbName := "pokedex_test"
	s, err := NewStore(uri, dbName)
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	// 清空测试数据库
	ctx := context.Background()
	if err := s.db.Drop(ctx); err != nil {
		t.Fatalf("Failed to drop test database: %v", err)
	}
	// 重新创建索引
	if err := s.ensureIndexes(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}

	t.Cleanup(func() {
		s.db.Drop(context.Background())
		s.Close()
	})

	return s
}

func TestUserCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	user := &model.User{
		ID:           "usr-001",
		Name:         "Ash",
		Email:        "ash@example.com",
		PasswordHash: "$2a$12$hash",
		Role:         model.UserRoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// 重复邮箱 → ErrDuplicate
	dup := *user
	dup.ID = "usr-002"
	if err := s.CreateUser(ctx, &dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate email: got %v, want ErrDuplicate", err)
	}

	got, err := s.GetUserByEmail(ctx, "ash@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got == nil || got.ID != "usr-001" {
		t.Fatalf("GetUserByEmail = %+v", got)
	}

	// 不存在的用户 → (nil, nil)
	got, err = s.GetUserByID(ctx, "usr-missing")
	if err != nil || got != nil {
		t.Fatalf("GetUserByID(missing) = %v, %v", got, err)
	}
}

func TestUserResetTokenLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	user := &model.User{
		ID:           "usr-001",
		Email:        "misty@example.com",
		PasswordHash: "h",
		Role:         model.UserRoleUser,
	}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	now := time.Now().UTC()
	expires := now.Add(10 * time.Minute)
	if err := s.SetUserResetToken(ctx, "usr-001", "tokenhash", expires); err != nil {
		t.Fatalf("SetUserResetToken: %v", err)
	}

	// 未过期 → 命中
	got, err := s.GetUserByResetToken(ctx, "tokenhash", now)
	if err != nil || got == nil {
		t.Fatalf("GetUserByResetToken = %v, %v", got, err)
	}

	// 已过期 → 不命中
	got, err = s.GetUserByResetToken(ctx, "tokenhash", expires.Add(time.Millisecond))
	if err != nil || got != nil {
		t.Fatalf("expired token lookup = %v, %v", got, err)
	}

	// 兑换：更新密码同时清除重置字段
	changed := time.Now().UTC()
	if err := s.UpdateUserPassword(ctx, "usr-001", "newhash", changed); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}
	got, err = s.GetUserByResetToken(ctx, "tokenhash", now)
	if err != nil || got != nil {
		t.Fatalf("token survived redemption: %v, %v", got, err)
	}

	fresh, err := s.GetUserByID(ctx, "usr-001")
	if err != nil || fresh == nil {
		t.Fatalf("GetUserByID: %v, %v", fresh, err)
	}
	if fresh.PasswordHash != "newhash" {
		t.Errorf("PasswordHash = %q", fresh.PasswordHash)
	}
	if fresh.ResetTokenHash != nil || fresh.ResetTokenExpiresAt != nil {
		t.Errorf("reset fields not cleared: %+v", fresh)
	}
}

func TestResetTokenResendOverwrites(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	user := &model.User{ID: "usr-001", Email: "brock@example.com", PasswordHash: "h", Role: model.UserRoleUser}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	now := time.Now().UTC()
	if err := s.SetUserResetToken(ctx, "usr-001", "first", now.Add(10*time.Minute)); err != nil {
		t.Fatalf("SetUserResetToken: %v", err)
	}
	if err := s.SetUserResetToken(ctx, "usr-001", "second", now.Add(10*time.Minute)); err != nil {
		t.Fatalf("SetUserResetToken: %v", err)
	}

	// 后写覆盖先写：旧令牌失效
	if got, _ := s.GetUserByResetToken(ctx, "first", now); got != nil {
		t.Fatal("stale token still redeemable")
	}
	if got, _ := s.GetUserByResetToken(ctx, "second", now); got == nil {
		t.Fatal("fresh token not redeemable")
	}
}

func TestPokemonListWithSpec(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seed := []*model.Pokemon{
		{ID: "pkm-1", Name: "Pikachu", Type: "electric", Attack: 55, Speed: 90, Species: []string{"Mouse"}},
		{ID: "pkm-2", Name: "Charmander", Type: "fire", Attack: 52, Speed: 65, Species: []string{"Lizard"}},
		{ID: "pkm-3", Name: "Squirtle", Type: "water", Attack: 48, Speed: 43, Species: []string{"Turtle"}},
		{ID: "pkm-4", Name: "Snorlax", Type: "normal", Attack: 110, Speed: 30, Species: []string{"Sleeping"}},
	}
	for _, p := range seed {
		if err := s.Pokemons().Insert(ctx, p); err != nil {
			t.Fatalf("Insert %s: %v", p.ID, err)
		}
	}

	values, _ := url.ParseQuery("attack_gte=50&sort=-speed")
	spec := query.Parse(values, query.Options{DefaultSort: "-attack"})

	got, err := s.Pokemons().List(ctx, spec)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// attack >= 50，按速度降序
	wantOrder := []string{"pkm-1", "pkm-2", "pkm-4"}
	for i, p := range got {
		if p.ID != wantOrder[i] {
			t.Errorf("got[%d] = %s, want %s", i, p.ID, wantOrder[i])
		}
	}
}

func TestReviewUniquePerUserPerPokemon(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	review := &model.Review{ID: "rev-1", Rating: 5, UserID: "usr-1", PokemonID: "pkm-1"}
	if err := s.Reviews().Insert(ctx, review); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	dup := &model.Review{ID: "rev-2", Rating: 3, UserID: "usr-1", PokemonID: "pkm-1"}
	if err := s.Reviews().Insert(ctx, dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate review: got %v, want ErrDuplicate", err)
	}

	// 不同用户评价同一宝可梦 → 允许
	other := &model.Review{ID: "rev-3", Rating: 6, UserID: "usr-2", PokemonID: "pkm-1"}
	if err := s.Reviews().Insert(ctx, other); err != nil {
		t.Fatalf("other user review: %v", err)
	}
}

func TestResourceDeleteMissing(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Pokemons().Delete(ctx, "pkm-missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Delete(missing) = %v, want ErrNotFound", err)
	}
}
