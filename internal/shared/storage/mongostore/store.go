// Package mongostore 实现基于 MongoDB 的 PersistentStore
//
// 使用 mongo-go-driver v2，通过 bson tag 实现 model 结构体的序列化/反序列化。
// 所有 Collection 名称和索引在 ensureIndexes 中统一管理。
package mongostore

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"pokedex-api/internal/shared/model"
	"pokedex-api/internal/shared/query"
	"pokedex-api/internal/shared/storage"
)

// Collection 名称常量
const (
	ColUsers    = "users"
	ColPokemons = "pokemons"
	ColReviews  = "reviews"
)

// QueryObserver 查询耗时回调（Prometheus 指标上报）
type QueryObserver func(operation, collection string, d time.Duration)

// Store 实现 storage.PersistentStore 接口的 MongoDB 驱动
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	obs    QueryObserver

	pokemons *collection[model.Pokemon]
	reviews  *collection[model.Review]
}

// Compile-time interface check
var _ storage.PersistentStore = (*Store)(nil)

// NewStore 创建 MongoDB 存储实例
//
// uri: MongoDB 连接 URI，如 "mongodb://localhost:27017"
// dbName: 数据库名称，如 "pokedex"
func NewStore(uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	// 验证连接
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{client: client, db: db}
	s.pokemons = &collection[model.Pokemon]{store: s, name: ColPokemons, col: db.Collection(ColPokemons)}
	s.reviews = &collection[model.Review]{store: s, name: ColReviews, col: db.Collection(ColReviews)}

	// 创建索引
	if err := s.ensureIndexes(ctx); err != nil {
		log.Printf("WARNING: mongostore: ensure indexes failed: %v", err)
	}

	return s, nil
}

// Close 关闭 MongoDB 连接
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Pokemons 宝可梦资源访问器
func (s *Store) Pokemons() storage.ResourceStore[model.Pokemon] {
	return s.pokemons
}

// Reviews 评价资源访问器
func (s *Store) Reviews() storage.ResourceStore[model.Review] {
	return s.reviews
}

// col 获取指定 Collection
func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// SetQueryObserver 注册查询耗时回调，必须在并发使用前调用
func (s *Store) SetQueryObserver(obs QueryObserver) {
	s.obs = obs
}

// observe 上报一次查询耗时，用法：defer s.observe("insert", col, time.Now())
func (s *Store) observe(operation, collection string, start time.Time) {
	if s.obs != nil {
		s.obs(operation, collection, time.Since(start))
	}
}

// ensureIndexes 创建所有必要的索引
func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		// users：邮箱唯一；重置令牌按哈希查找
		{ColUsers, bson.D{{Key: "email", Value: 1}}, true},
		{ColUsers, bson.D{{Key: "reset_token_hash", Value: 1}}, false},

		// pokemons：名称唯一；默认按攻击力降序列出
		{ColPokemons, bson.D{{Key: "name", Value: 1}}, true},
		{ColPokemons, bson.D{{Key: "attack", Value: -1}}, false},

		// reviews：每个用户对同一宝可梦只能评价一次
		{ColReviews, bson.D{{Key: "user_id", Value: 1}, {Key: "pokemon_id", Value: 1}}, true},
		{ColReviews, bson.D{{Key: "pokemon_id", Value: 1}}, false},
	}

	for _, i := range indexes {
		idxModel := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			idxModel.Options = options.Index().SetUnique(true)
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, idxModel); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}

	return nil
}

// ============================================================================
// 通用资源 Collection
// ============================================================================

// collection 将一个 MongoDB Collection 适配为 storage.ResourceStore[T]
type collection[T any] struct {
	store *Store
	name  string
	col   *mongo.Collection
}

func (c *collection[T]) Insert(ctx context.Context, doc *T) error {
	defer c.store.observe("insert", c.name, time.Now())
	return insertOne(ctx, c.col, doc)
}

func (c *collection[T]) Get(ctx context.Context, id string) (*T, error) {
	defer c.store.observe("find_one", c.name, time.Now())
	doc, err := findOne[T](ctx, c.col, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, storage.ErrNotFound
	}
	return doc, nil
}

func (c *collection[T]) List(ctx context.Context, spec query.Spec) ([]*T, error) {
	defer c.store.observe("find", c.name, time.Now())
	filter, opts := CompileSpec(spec)
	return findMany[T](ctx, c.col, filter, opts)
}

func (c *collection[T]) Replace(ctx context.Context, id string, doc *T) error {
	defer c.store.observe("replace", c.name, time.Now())
	res, err := c.col.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, doc)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (c *collection[T]) Delete(ctx context.Context, id string) error {
	defer c.store.observe("delete", c.name, time.Now())
	return deleteByID(ctx, c.col, id)
}
