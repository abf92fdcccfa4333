package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend" mapstructure:"backend"`
	Kakao   KakaoConfig   `yaml:"kakao" mapstructure:"kakao"`
	Google  GoogleConfig  `yaml:"google" mapstructure:"google"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// BackendConfig points at the meeting-point backend.
type BackendConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retry       RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit     CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// RetryConfig controls backend call retries.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CircuitConfig controls the per-endpoint circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// KakaoConfig holds Kakao Local API credentials.
type KakaoConfig struct {
	RESTKey string `yaml:"rest_key" mapstructure:"rest_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GoogleConfig holds Google Geocoding API credentials.
type GoogleConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// GeocodeConfig configures reverse geocoding of map clicks.
type GeocodeConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// EnrichConfig configures nearby-place enrichment.
type EnrichConfig struct {
	RadiusMeters   int     `yaml:"radius_meters" mapstructure:"radius_meters"`
	MaxResults     int     `yaml:"max_results" mapstructure:"max_results"`
	Concurrency    int     `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	CategoriesFile string  `yaml:"categories_file" mapstructure:"categories_file"`
}

// CacheConfig configures the nearby-place cache. RedisURL switches it to Redis.
type CacheConfig struct {
	MaxEntries int    `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMins    int    `yaml:"ttl_mins" mapstructure:"ttl_mins"`
	RedisURL   string `yaml:"redis_url" mapstructure:"redis_url"`
}

// ServerConfig configures the session API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("LOADMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("backend.base_url", "http://localhost:8080/api")
	v.SetDefault("backend.timeout_secs", 10)
	v.SetDefault("backend.retry.max_attempts", 2)
	v.SetDefault("backend.retry.initial_backoff_ms", 300)
	v.SetDefault("backend.retry.max_backoff_ms", 2000)
	v.SetDefault("backend.circuit.failure_threshold", 5)
	v.SetDefault("backend.circuit.reset_timeout_secs", 30)
	v.SetDefault("kakao.rest_key", "")
	v.SetDefault("kakao.base_url", "https://dapi.kakao.com")
	v.SetDefault("google.key", "")
	v.SetDefault("geocode.timeout_secs", 5)
	v.SetDefault("geocode.rate_limit", 10)
	v.SetDefault("enrich.radius_meters", 500)
	v.SetDefault("enrich.max_results", 3)
	v.SetDefault("enrich.concurrency", 4)
	v.SetDefault("enrich.rate_limit", 10)
	v.SetDefault("enrich.categories_file", "")
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("cache.ttl_mins", 10)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
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

// Validate checks the fields a command needs. mode is "calculate", "serve",
// "geocode" or "client" (any command that only talks to the backend).
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend.base_url is required")
	}
	if c.Backend.TimeoutSecs <= 0 {
		errs = append(errs, "backend.timeout_secs must be > 0")
	}
	if c.Backend.Retry.MaxAttempts < 1 || c.Backend.Retry.MaxAttempts > 5 {
		errs = append(errs, "backend.retry.max_attempts must be between 1 and 5")
	}

	switch mode {
	case "client":
	case "calculate":
		errs = append(errs, c.validateEnrich()...)
	case "serve":
		errs = append(errs, c.validateEnrich()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "geocode":
		if c.Kakao.RESTKey == "" && c.Google.Key == "" {
			errs = append(errs, "kakao.rest_key or google.key is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateEnrich() []string {
	var errs []string
	if c.Enrich.MaxResults < 1 {
		errs = append(errs, "enrich.max_results must be >= 1")
	}
	if c.Enrich.Concurrency < 1 || c.Enrich.Concurrency > 32 {
		errs = append(errs, "enrich.concurrency must be between 1 and 32")
	}
	if c.Enrich.RadiusMeters <= 0 {
		errs = append(errs, "enrich.radius_meters must be > 0")
	}
	return errs
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
