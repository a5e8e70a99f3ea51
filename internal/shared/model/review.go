package model

import (
	"fmt"
	"time"
)

// Review 宝可梦评价
//
// (UserID, PokemonID) 唯一索引保证每个用户对同一宝可梦只能评价一次，
// 重复创建由存储层返回 ErrDuplicate，业务层转换为 Conflict。
type Review struct {
	ID        string    `json:"id" bson:"_id"`
	Rating    int       `json:"rating" bson:"rating"`
	Comment   string    `json:"comment,omitempty" bson:"comment,omitempty"`
	UserID    string    `json:"user_id" bson:"user_id"`
	PokemonID string    `json:"pokemon_id" bson:"pokemon_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Validate 校验评分范围和关联字段
func (r *Review) Validate() error {
	if r.Rating < 1 || r.Rating > 7 {
		return fmt.Errorf("rating must be between 1 and 7")
	}
	if r.PokemonID == "" {
		return fmt.Errorf("review must reference a pokemon")
	}
	if r.UserID == "" {
		return fmt.Errorf("review must reference a user")
	}
	return nil
}
