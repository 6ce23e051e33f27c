package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App     AppConfig
	Backend BackendConfig
	Content ContentConfig
	Storage StorageConfig
	Cache   CacheConfig
	Stub    StubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Cache.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points the client at the storefront REST backend.
type BackendConfig struct {
	BaseURL string        `envconfig:"STOREFRONT_BACKEND_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"STOREFRONT_BACKEND_TIMEOUT" default:"15s"`

	BreakerInterval     time.Duration `envconfig:"STOREFRONT_BACKEND_BREAKER_INTERVAL" default:"60s"`
	BreakerTimeout      time.Duration `envconfig:"STOREFRONT_BACKEND_BREAKER_TIMEOUT" default:"30s"`
	BreakerFailureRatio float64       `envconfig:"STOREFRONT_BACKEND_BREAKER_FAILURE_RATIO" default:"0.5"`
	BreakerMinRequests  uint32        `envconfig:"STOREFRONT_BACKEND_BREAKER_MIN_REQUESTS" default:"5"`
}

// ContentConfig points the client at the headless content query service.
type ContentConfig struct {
	BaseURL    string        `envconfig:"STOREFRONT_CONTENT_BASE_URL"`
	ProjectID  string        `envconfig:"STOREFRONT_CONTENT_PROJECT_ID"`
	Dataset    string        `envconfig:"STOREFRONT_CONTENT_DATASET" default:"production"`
	APIVersion string        `envconfig:"STOREFRONT_CONTENT_API_VERSION" default:"2023-01-01"`
	UseCDN     bool          `envconfig:"STOREFRONT_CONTENT_USE_CDN" default:"true"`
	Timeout    time.Duration `envconfig:"STOREFRONT_CONTENT_TIMEOUT" default:"10s"`
}

// StorageConfig describes the device-local durable store.
type StorageConfig struct {
	Path string `envconfig:"STOREFRONT_STORAGE_PATH" default:"storefront.db"`
	// SealKey is the 32-byte hex key used to seal secrets at rest.
	SealKey string `envconfig:"STOREFRONT_STORAGE_SEAL_KEY"`
}

type CacheConfig struct {
	Backend string        `envconfig:"STOREFRONT_CACHE_BACKEND" default:"memory"`
	TTL     time.Duration `envconfig:"STOREFRONT_CACHE_TTL" default:"5m"`

	RedisURL          string        `envconfig:"STOREFRONT_CACHE_REDIS_URL"`
	RedisDialTimeout  time.Duration `envconfig:"STOREFRONT_CACHE_REDIS_DIAL_TIMEOUT" default:"5s"`
	RedisReadTimeout  time.Duration `envconfig:"STOREFRONT_CACHE_REDIS_READ_TIMEOUT" default:"5s"`
	RedisWriteTimeout time.Duration `envconfig:"STOREFRONT_CACHE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

func (c CacheConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case CacheBackendMemory:
		return nil
	case CacheBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%s_CACHE_REDIS_URL is required for the redis cache backend", EnvPrefix)
		}
		return nil
	default:
		return fmt.Errorf("cache backend must be %q or %q", CacheBackendMemory, CacheBackendRedis)
	}
}

// StubConfig configures the development stub backend server.
type StubConfig struct {
	Port              string `envconfig:"STOREFRONT_STUB_PORT" default:"8085"`
	JWTSecret         string `envconfig:"STOREFRONT_STUB_JWT_SECRET" default:"stub-secret"`
	JWTIssuer         string `envconfig:"STOREFRONT_STUB_JWT_ISSUER" default:"storefront-stub"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_STUB_JWT_EXPIRATION_MINUTES" default:"120"`
}

// TokenTTL returns the stub access token lifetime.
func (s StubConfig) TokenTTL() time.Duration {
	if s.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(s.ExpirationMinutes) * time.Minute
}
