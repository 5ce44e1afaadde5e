// Package config loads process configuration from the environment, an
// optional .env file and command-line flags, in that order of precedence
// (flags win).
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config drives internal/app.
type Config struct {
	BaseURL     string        `env:"QUERYCACHE_BASE_URL" envDefault:"http://localhost:8080"`
	HTTPTimeout time.Duration `env:"QUERYCACHE_HTTP_TIMEOUT" envDefault:"10s"`
	UserAgent   string        `env:"QUERYCACHE_USER_AGENT" envDefault:"querycache-siteadmin"`

	Namespace    string        `env:"QUERYCACHE_NAMESPACE" envDefault:"solar:site"`
	StaleTime    time.Duration `env:"QUERYCACHE_STALE_TIME" envDefault:"0s"`
	RetainTime   time.Duration `env:"QUERYCACHE_RETAIN_TIME" envDefault:"5m"`
	FetchTimeout time.Duration `env:"QUERYCACHE_FETCH_TIMEOUT" envDefault:"30s"`
	RetryMax     uint          `env:"QUERYCACHE_RETRY_MAX" envDefault:"2"`
	RetryDelay   time.Duration `env:"QUERYCACHE_RETRY_DELAY" envDefault:"200ms"`

	Logger   string `env:"QUERYCACHE_LOGGER" envDefault:"slog"` // slog | zap | logrus
	LogLevel string `env:"QUERYCACHE_LOG_LEVEL" envDefault:"info"`

	Provider   string        `env:"QUERYCACHE_PROVIDER" envDefault:"none"` // none | ristretto | bigcache | redis
	PersistTTL time.Duration `env:"QUERYCACHE_PERSIST_TTL" envDefault:"24h"`
	Codec      string        `env:"QUERYCACHE_CODEC" envDefault:"json"` // json | cbor | msgpack | proto
	MaxDecode  int           `env:"QUERYCACHE_MAX_DECODE" envDefault:"1048576"`

	GenStore    string        `env:"QUERYCACHE_GENSTORE" envDefault:"local"` // local | redis
	GenTTL      time.Duration `env:"QUERYCACHE_GEN_TTL" envDefault:"720h"`
	RedisURL    string        `env:"QUERYCACHE_REDIS_URL"`
	HookQueue   int           `env:"QUERYCACHE_HOOK_QUEUE" envDefault:"1024"`
	HookSampleN uint64        `env:"QUERYCACHE_HOOK_SAMPLE" envDefault:"10"`
}

// DevBackend configures cmd/devbackend.
type DevBackend struct {
	Addr string `env:"DEVBACKEND_ADDR" envDefault:":8080"`
	DSN  string `env:"DEVBACKEND_DSN" envDefault:"devbackend.db"`
	Seed bool   `env:"DEVBACKEND_SEED" envDefault:"false"`
}

// LoadDotenv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads .env (if present) and the environment.
func Load(dotenv string) (Config, error) {
	var cfg Config
	if err := LoadDotenv(dotenv); err != nil {
		return Config{}, err
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// BindFlags registers flags defaulting to the values already in c.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.BaseURL, "base-url", c.BaseURL, "backend base URL")
	fs.DurationVar(&c.HTTPTimeout, "http-timeout", c.HTTPTimeout, "per-request timeout")
	fs.StringVar(&c.Namespace, "namespace", c.Namespace, "cache namespace")
	fs.UintVar(&c.RetryMax, "retry-max", c.RetryMax, "retries per fetch")
	fs.StringVar(&c.Logger, "logger", c.Logger, "log backend: slog, zap or logrus")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.StringVar(&c.Provider, "provider", c.Provider, "persistence: none, ristretto, bigcache or redis")
	fs.StringVar(&c.Codec, "codec", c.Codec, "persisted value codec: json, cbor, msgpack or proto")
	fs.StringVar(&c.GenStore, "genstore", c.GenStore, "generation store: local or redis")
	fs.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "redis URL for provider/genstore")
}

func (c Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base url is required"))
	}
	if c.Namespace == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	switch c.Logger {
	case "slog", "zap", "logrus":
	default:
		errs = append(errs, fmt.Errorf("unknown logger %q", c.Logger))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	switch c.Provider {
	case "none", "ristretto", "bigcache":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis provider needs QUERYCACHE_REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	switch c.GenStore {
	case "local":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis genstore needs QUERYCACHE_REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown genstore %q", c.GenStore))
	}
	return errors.Join(errs...)
}
