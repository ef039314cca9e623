package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Collections CollectionsConfig `yaml:"collections" mapstructure:"collections"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Catalog     CatalogConfig     `yaml:"catalog" mapstructure:"catalog"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the document store backend.
type StoreConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL    string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns       int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns       int32  `yaml:"min_conns" mapstructure:"min_conns"`
	MaxIDsPerQuery int    `yaml:"max_ids_per_query" mapstructure:"max_ids_per_query"`
	MaxBatchSize   int    `yaml:"max_batch_size" mapstructure:"max_batch_size"`
}

// CollectionsConfig names the two collections the engine joins.
type CollectionsConfig struct {
	Investments string `yaml:"investments" mapstructure:"investments"`
	Clients     string `yaml:"clients" mapstructure:"clients"`
}

// BatchConfig configures chunked store access.
type BatchConfig struct {
	MaxPerQuery             int     `yaml:"max_per_query" mapstructure:"max_per_query"`
	MaxPerBatch             int     `yaml:"max_per_batch" mapstructure:"max_per_batch"`
	FanOut                  int     `yaml:"fan_out" mapstructure:"fan_out"`
	RetryAttempts           int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryInitialBackoffMs   int     `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs       int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	QueriesPerSecond        float64 `yaml:"queries_per_second" mapstructure:"queries_per_second"`
	BreakerFailureThreshold int     `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerResetSecs        int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Backend        string `yaml:"backend" mapstructure:"backend"` // memory, redis, store
	RedisAddr      string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword  string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB        int    `yaml:"redis_db" mapstructure:"redis_db"`
	KeyPrefix      string `yaml:"key_prefix" mapstructure:"key_prefix"`
	CatalogTTLSecs int    `yaml:"catalog_ttl_secs" mapstructure:"catalog_ttl_secs"`
	ProductTTLSecs int    `yaml:"product_ttl_secs" mapstructure:"product_ttl_secs"`
	EmptyTTLSecs   int    `yaml:"empty_ttl_secs" mapstructure:"empty_ttl_secs"`
}

// CatalogTTL is the lifetime of a cached catalog.
func (c CacheConfig) CatalogTTL() time.Duration {
	return time.Duration(c.CatalogTTLSecs) * time.Second
}

// ProductTTL is the lifetime of a cached single-product result.
func (c CacheConfig) ProductTTL() time.Duration {
	return time.Duration(c.ProductTTLSecs) * time.Second
}

// EmptyTTL is the lifetime of a cached "no such product" result.
func (c CacheConfig) EmptyTTL() time.Duration {
	return time.Duration(c.EmptyTTLSecs) * time.Second
}

// CatalogConfig configures catalog grouping.
type CatalogConfig struct {
	MaxProducts  int    `yaml:"max_products" mapstructure:"max_products"`
	DefaultType  string `yaml:"default_type" mapstructure:"default_type"`
	TopInvestors int    `yaml:"top_investors" mapstructure:"top_investors"` // 0 keeps all
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INVESTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "investors.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.max_ids_per_query", 30)
	v.SetDefault("store.max_batch_size", 500)
	v.SetDefault("collections.investments", "investments")
	v.SetDefault("collections.clients", "clients")
	v.SetDefault("batch.max_per_query", 30)
	v.SetDefault("batch.max_per_batch", 500)
	v.SetDefault("batch.fan_out", 4)
	v.SetDefault("batch.retry_attempts", 3)
	v.SetDefault("batch.retry_initial_backoff_ms", 200)
	v.SetDefault("batch.retry_max_backoff_ms", 5000)
	v.SetDefault("batch.queries_per_second", 0)
	v.SetDefault("batch.breaker_failure_threshold", 5)
	v.SetDefault("batch.breaker_reset_secs", 30)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.key_prefix", "investor-resolver:")
	v.SetDefault("cache.catalog_ttl_secs", 600)
	v.SetDefault("cache.product_ttl_secs", 300)
	v.SetDefault("cache.empty_ttl_secs", 60)
	v.SetDefault("catalog.max_products", 500)
	v.SetDefault("catalog.default_type", "bonds")
	v.SetDefault("catalog.top_investors", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Mode "serve"
// additionally requires a usable port.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Collections.Investments == "" || c.Collections.Clients == "" {
		problems = append(problems, "collections.investments and collections.clients are required")
	}
	if c.Batch.MaxPerQuery < 1 {
		problems = append(problems, "batch.max_per_query must be >= 1")
	}
	if c.Batch.MaxPerBatch < 1 {
		problems = append(problems, "batch.max_per_batch must be >= 1")
	}
	if c.Batch.FanOut < 1 {
		problems = append(problems, "batch.fan_out must be >= 1")
	}
	if c.Batch.RetryAttempts < 1 {
		problems = append(problems, "batch.retry_attempts must be >= 1")
	}
	if c.Batch.QueriesPerSecond < 0 {
		problems = append(problems, "batch.queries_per_second must be >= 0")
	}

	switch c.Cache.Backend {
	case "memory", "store":
	case "redis":
		if c.Cache.RedisAddr == "" {
			problems = append(problems, "cache.redis_addr is required for the redis backend")
		}
	default:
		problems = append(problems, "cache.backend must be memory, redis, or store")
	}
	if c.Cache.CatalogTTLSecs < 0 || c.Cache.ProductTTLSecs < 0 || c.Cache.EmptyTTLSecs < 0 {
		problems = append(problems, "cache ttls must be >= 0")
	}
	if c.Catalog.MaxProducts < 0 {
		problems = append(problems, "catalog.max_products must be >= 0")
	}

	switch mode {
	case "", "cli":
	case "serve":
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
