// Package storage 提供存储层抽象
//
// memstore.go 提供内存实现，用于单元测试和本地开发。
// List 通过 JSON 字段视图求值 query.Spec，与 mongostore
// 保持相同的过滤/排序/分页语义（投影除外）。
package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"pokedex-api/internal/shared/model"
	"pokedex-api/internal/shared/query"
)

// MemStore 内存版 PersistentStore
type MemStore struct {
	mu       sync.RWMutex
	users    map[string]*model.User
	pokemons *memCollection[model.Pokemon]
	reviews  *memCollection[model.Review]
}

var _ PersistentStore = (*MemStore)(nil)

// NewMemStore 创建内存存储实例
func NewMemStore() *MemStore {
	s := &MemStore{users: map[string]*model.User{}}
	s.pokemons = &memCollection[model.Pokemon]{
		docs: map[string]*model.Pokemon{},
		id:   func(p *model.Pokemon) string { return p.ID },
		dup: func(docs map[string]*model.Pokemon, candidate *model.Pokemon) bool {
			// name 唯一索引
			for id, p := range docs {
				if id != candidate.ID && p.Name == candidate.Name {
					return true
				}
			}
			return false
		},
	}
	s.reviews = &memCollection[model.Review]{
		docs: map[string]*model.Review{},
		id:   func(r *model.Review) string { return r.ID },
		dup: func(docs map[string]*model.Review, candidate *model.Review) bool {
			// (user_id, pokemon_id) 唯一索引
			for id, r := range docs {
				if id != candidate.ID && r.UserID == candidate.UserID && r.PokemonID == candidate.PokemonID {
					return true
				}
			}
			return false
		},
	}
	return s
}

func (s *MemStore) Close() error { return nil }

// Pokemons 宝可梦资源访问器
func (s *MemStore) Pokemons() ResourceStore[model.Pokemon] { return s.pokemons }

// Reviews 评价资源访问器
func (s *MemStore) Reviews() ResourceStore[model.Review] { return s.reviews }

// ============================================================================
// UserStore
// ============================================================================

func (s *MemStore) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	if _, ok := s.users[user.ID]; ok {
		return ErrDuplicate
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *MemStore) UpdateUserPassword(_ context.Context, id, passwordHash string, changedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = changedAt
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) SetUserResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.ResetTokenHash = &tokenHash
	u.ResetTokenExpiresAt = &expiresAt
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) ClearUserResetToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) GetUserByResetToken(_ context.Context, tokenHash string, now time.Time) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash &&
			u.ResetTokenExpiresAt != nil && u.ResetTokenExpiresAt.After(now) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// ============================================================================
// 内存资源 Collection
// ============================================================================

type memCollection[T any] struct {
	mu   sync.RWMutex
	docs map[string]*T
	id   func(*T) string
	dup  func(map[string]*T, *T) bool
}

func (c *memCollection[T]) Insert(_ context.Context, doc *T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.id(doc)
	if _, ok := c.docs[id]; ok {
		return ErrDuplicate
	}
	if c.dup(c.docs, doc) {
		return ErrDuplicate
	}
	cp := *doc
	c.docs[id] = &cp
	return nil
}

func (c *memCollection[T]) Get(_ context.Context, id string) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (c *memCollection[T]) List(_ context.Context, spec query.Spec) ([]*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	type entry struct {
		doc    *T
		fields map[string]interface{}
	}
	all := make([]entry, 0, len(c.docs))
	for _, doc := range c.docs {
		cp := *doc
		e := entry{doc: &cp, fields: fieldView(&cp)}
		if matchesFilter(e.fields, spec.Filter) {
			all = append(all, e)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		for _, s := range spec.Sort {
			cmp := compareValues(all[i].fields[s.Field], all[j].fields[s.Field])
			if cmp == 0 {
				continue
			}
			if s.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	start := spec.Skip()
	if start > len(all) {
		return []*T{}, nil
	}
	end := start + spec.Limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]*T, 0, end-start)
	for _, e := range all[start:end] {
		out = append(out, e.doc)
	}
	return out, nil
}

// fieldView 把文档转成按 JSON 字段名索引的扁平视图
func fieldView[T any](doc *T) map[string]interface{} {
	raw, err := json.Marshal(doc)
	if err != nil {
		return map[string]interface{}{}
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return map[string]interface{}{}
	}
	return fields
}

func matchesFilter(fields map[string]interface{}, conds []query.Condition) bool {
	for _, cond := range conds {
		if !matchesCondition(fields[cond.Field], cond) {
			return false
		}
	}
	return true
}

func matchesCondition(value interface{}, cond query.Condition) bool {
	switch cond.Op {
	case query.OpIn, query.OpNin:
		members, _ := cond.Value.([]interface{})
		found := containsValue(value, members)
		if cond.Op == query.OpIn {
			return found
		}
		return !found
	case query.OpNe:
		return compareValues(value, cond.Value) != 0
	case query.OpGt:
		return compareValues(value, cond.Value) > 0
	case query.OpGte:
		return compareValues(value, cond.Value) >= 0
	case query.OpLt:
		return compareValues(value, cond.Value) < 0
	case query.OpLte:
		return compareValues(value, cond.Value) <= 0
	default:
		return compareValues(value, cond.Value) == 0
	}
}

// containsValue 对数组字段检查任一元素命中，标量字段退化为成员判断
func containsValue(value interface{}, members []interface{}) bool {
	values, ok := value.([]interface{})
	if !ok {
		values = []interface{}{value}
	}
	for _, v := range values {
		for _, m := range members {
			if compareValues(v, m) == 0 {
				return true
			}
		}
	}
	return false
}

// compareValues 数值按大小比较，其余按字符串比较；类型不齐时视为不等
func compareValues(a, b interface{}) int {
	if an, aok := toFloat(a); aok {
		if bn, bok := toFloat(b); bok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			default:
				return 0
			}
		}
		return -1
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if !aok || !bok {
		return -1
	}
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func (c *memCollection[T]) Replace(_ context.Context, id string, doc *T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}
	if c.dup(c.docs, doc) {
		return ErrDuplicate
	}
	cp := *doc
	c.docs[id] = &cp
	return nil
}

func (c *memCollection[T]) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}
	delete(c.docs, id)
	return nil
}
