package model

import (
	"fmt"
	"time"
)

// Pokemon 宝可梦条目
//
// Image 存储对象路径（如 image/user-usr-xxx/xxx.jpg），
// 上传处理由 objstore/image 协作方完成，模型只保存路径。
type Pokemon struct {
	ID             string    `json:"id" bson:"_id"`
	Name           string    `json:"name" bson:"name"`
	Image          string    `json:"image,omitempty" bson:"image,omitempty"`
	Species        []string  `json:"species,omitempty" bson:"species,omitempty"`
	Descriptions   []string  `json:"descriptions,omitempty" bson:"descriptions,omitempty"`
	Type           string    `json:"type,omitempty" bson:"type,omitempty"`
	HP             int       `json:"hp" bson:"hp"`
	Attack         int       `json:"attack" bson:"attack"`
	Defense        int       `json:"defense" bson:"defense"`
	SpecialAttack  int       `json:"special_attack" bson:"special_attack"`
	SpecialDefense int       `json:"special_defense" bson:"special_defense"`
	Speed          int       `json:"speed" bson:"speed"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// Validate 校验必填字段
func (p *Pokemon) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pokemon must have a name")
	}
	return nil
}
