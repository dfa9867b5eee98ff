// Package config loads the service configuration from file and
// environment. Environment variables use the PHOTOSHARE_ prefix with
// underscores for nesting (PHOTOSHARE_CACHE_BACKEND=redis).
package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// Cache backend selectors.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendOff    = "off"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig selects and parameterizes the storage driver.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// CacheConfig selects the cache backend. Backend "off" disables caching
// entirely; every repository read then goes to the database.
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Memory  MemoryConfig  `mapstructure:"memory"`
}

// RedisConfig parameterizes the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MemoryConfig parameterizes the in-process backend.
type MemoryConfig struct {
	Capacity  int `mapstructure:"capacity"`
	NumShards int `mapstructure:"num_shards"`
}

// LogConfig parameterizes the zerolog setup.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks cross-field consistency.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Driver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&c.Database.DSN, validation.Required),
	); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := validation.ValidateStruct(&c.Cache,
		validation.Field(&c.Cache.Backend, validation.Required, validation.In(BackendMemory, BackendRedis, BackendOff)),
		validation.Field(&c.Cache.TTL, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if c.Cache.Backend == BackendRedis && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache: redis backend requires an address")
	}

	if err := validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Level, validation.In("trace", "debug", "info", "warn", "error")),
		validation.Field(&c.Log.Format, validation.In("json", "console")),
	); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Load reads the configuration, layering defaults, an optional config file
// and the environment. Path may be empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("photoshare")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:photoshare.db")

	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.ttl", 15*time.Minute)
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.memory.capacity", 10000)
	v.SetDefault("cache.memory.num_shards", 64)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
