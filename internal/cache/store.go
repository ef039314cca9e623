package cache

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Store is a TTL key/value cache backend. A miss is (nil, false, nil).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// MemoryStore keeps entries in process memory. Entries do not survive a
// restart and are not shared between processes.
type MemoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore creates a MemoryStore that purges expired entries every
// cleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, eris.Errorf("cache: memory entry %s has type %T", key, v)
	}
	return append([]byte(nil), b...), true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Len returns the number of entries, expired ones included until cleanup.
func (m *MemoryStore) Len() int { return m.c.ItemCount() }

// RedisCmdable is the subset of the go-redis client used by RedisStore.
type RedisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

var _ RedisCmdable = (*redis.Client)(nil)

// RedisStore shares cached results between processes through Redis.
type RedisStore struct {
	rdb RedisCmdable
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(rdb RedisCmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// DialRedis connects to Redis and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrapf(err, "cache: redis ping %s", addr)
	}
	return rdb, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: redis get %s", key)
	}
	return b, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return eris.Wrapf(r.rdb.Set(ctx, key, value, ttl).Err(), "cache: redis set %s", key)
}

// ResultTable is the cache table of a document store.
type ResultTable interface {
	GetCachedResult(ctx context.Context, key string) ([]byte, error)
	SetCachedResult(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SQLStore keeps cached results in the document store's result_cache table.
type SQLStore struct {
	t ResultTable
}

// NewSQLStore wraps a document store's cache table.
func NewSQLStore(t ResultTable) *SQLStore {
	return &SQLStore{t: t}
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.t.GetCachedResult(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return v, v != nil, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.t.SetCachedResult(ctx, key, value, ttl)
}
