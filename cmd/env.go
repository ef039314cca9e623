package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/investor-resolver/internal/batch"
	"github.com/sells-group/investor-resolver/internal/cache"
	"github.com/sells-group/investor-resolver/internal/catalog"
	"github.com/sells-group/investor-resolver/internal/config"
	"github.com/sells-group/investor-resolver/internal/db"
	"github.com/sells-group/investor-resolver/internal/investors"
	"github.com/sells-group/investor-resolver/internal/store"
)

const memoryCacheCleanup = 5 * time.Minute

// appEnv holds the store, fetcher, and service shared by every command.
type appEnv struct {
	Store   store.DocumentStore
	Fetcher *batch.Fetcher
	Service *investors.Service
	redis   *redis.Client
}

// Close releases the store and cache connections.
func (e *appEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode, opens the store, and builds the
// service. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env := &appEnv{Store: st}
	backend, rdb, err := initCacheStore(ctx, c, st)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.redis = rdb

	env.Fetcher = batch.NewFetcher(st, batch.LimitsFromConfig(c.Batch))
	rc := cache.New(backend, cache.WithPrefix(c.Cache.KeyPrefix))
	engine := catalog.NewEngine(catalog.WithDefaultType(c.Catalog.DefaultType))
	env.Service = investors.New(c, env.Fetcher, rc, engine)
	return env, nil
}

func initStore(ctx context.Context, c *config.Config) (store.DocumentStore, error) {
	limits := store.Limits{
		MaxIDsPerQuery: c.Store.MaxIDsPerQuery,
		MaxBatchSize:   c.Store.MaxBatchSize,
	}
	switch c.Store.Driver {
	case "sqlite":
		return store.NewSQLite(c.Store.DatabaseURL, limits)
	case "postgres":
		pool, err := db.Connect(ctx, c.Store.DatabaseURL, &db.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		return store.NewPostgres(pool, limits), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// initCacheStore picks the result cache backend. The store backend keeps
// results in the document store's cache table.
func initCacheStore(ctx context.Context, c *config.Config, st store.DocumentStore) (cache.Store, *redis.Client, error) {
	switch c.Cache.Backend {
	case "memory":
		return cache.NewMemoryStore(memoryCacheCleanup), nil, nil
	case "redis":
		rdb, err := cache.DialRedis(ctx, c.Cache.RedisAddr, c.Cache.RedisPassword, c.Cache.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		zap.L().Info("result cache using redis", zap.String("addr", c.Cache.RedisAddr))
		return cache.NewRedisStore(rdb), rdb, nil
	case "store":
		return cache.NewSQLStore(st), nil, nil
	default:
		return nil, nil, eris.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}
}
