package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_PasswordHashNeverInJSON(t *testing.T) {
	u := User{
		ID:           "usr-001",
		Name:         "Ash",
		Email:        "ash@example.com",
		PasswordHash: "$2a$12$secret",
		Role:         UserRoleUser,
	}

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "password")
	assert.NotContains(t, string(data), "reset_token")
}

func TestUser_TokenIssuedBeforePasswordChange(t *testing.T) {
	changed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := User{PasswordChangedAt: changed}

	// 修改之前签发 → 失效
	assert.True(t, u.TokenIssuedBeforePasswordChange(changed.Add(-time.Minute)))
	// 修改之后签发 → 有效
	assert.False(t, u.TokenIssuedBeforePasswordChange(changed.Add(time.Minute)))
	// 同一秒内签发（iat 秒级精度）→ 有效
	assert.False(t, u.TokenIssuedBeforePasswordChange(changed.Add(500*time.Millisecond)))
	// 从未修改过密码 → 有效
	assert.False(t, (&User{}).TokenIssuedBeforePasswordChange(time.Now()))
}

func TestUser_HasActiveResetToken(t *testing.T) {
	now := time.Now()
	hash := "abcd"
	future := now.Add(10 * time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, (&User{}).HasActiveResetToken(now))
	assert.True(t, (&User{ResetTokenHash: &hash, ResetTokenExpiresAt: &future}).HasActiveResetToken(now))
	assert.False(t, (&User{ResetTokenHash: &hash, ResetTokenExpiresAt: &past}).HasActiveResetToken(now))
}

func TestPokemon_Validate(t *testing.T) {
	assert.Error(t, (&Pokemon{}).Validate())
	assert.NoError(t, (&Pokemon{Name: "Pikachu"}).Validate())
}

func TestReview_Validate(t *testing.T) {
	tests := []struct {
		name    string
		review  Review
		wantErr bool
	}{
		{"valid", Review{Rating: 5, UserID: "usr-1", PokemonID: "pkm-1"}, false},
		{"rating too low", Review{Rating: 0, UserID: "usr-1", PokemonID: "pkm-1"}, true},
		{"rating too high", Review{Rating: 8, UserID: "usr-1", PokemonID: "pkm-1"}, true},
		{"rating upper bound", Review{Rating: 7, UserID: "usr-1", PokemonID: "pkm-1"}, false},
		{"missing pokemon", Review{Rating: 3, UserID: "usr-1"}, true},
		{"missing user", Review{Rating: 3, PokemonID: "pkm-1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.review.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
