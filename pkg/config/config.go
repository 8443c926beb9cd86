package config

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the media-sync daemon configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Database    DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Consistency ConsistencyConfig `mapstructure:"consistency" yaml:"consistency"`
	Auth        AuthConfig        `mapstructure:"auth" yaml:"auth"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Shutdown    ShutdownConfig    `mapstructure:"shutdown" yaml:"shutdown"`
}

// ServerConfig contains admin HTTP server settings
type ServerConfig struct {
	Host         string        `mapstructure:"host" yaml:"host" default:"0.0.0.0"`
	Port         int           `mapstructure:"port" yaml:"port" default:"8084" validate:"gt=0,lte=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" default:"15s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" default:"30s"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" default:"60s"`
}

// DatabaseConfig contains embedded SQLite settings
type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" opens an in-memory database.
	Path              string `mapstructure:"path" yaml:"path" default:"media-sync.db" validate:"required"`
	MaxOpenConns      int    `mapstructure:"max_open_conns" yaml:"max_open_conns" default:"1"`
	BusyTimeoutMS     int    `mapstructure:"busy_timeout_ms" yaml:"busy_timeout_ms" default:"5000"`
	EnableForeignKeys bool   `mapstructure:"enable_foreign_keys" yaml:"enable_foreign_keys" default:"true"`
}

// CacheConfig selects and configures the metadata cache backend
type CacheConfig struct {
	// Backend is either "memory" or "redis".
	Backend string        `mapstructure:"backend" yaml:"backend" default:"memory" validate:"oneof=memory redis"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl" default:"0s"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig contains Redis connection settings for the redis cache backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr" default:"localhost:6379"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db" default:"0"`
}

// ConsistencyConfig contains scheduler and per-job settings
type ConsistencyConfig struct {
	// CheckInterval bounds how often the scheduler loop wakes to look for due jobs.
	CheckInterval time.Duration `mapstructure:"check_interval" yaml:"check_interval" default:"1m"`
	// TransactionTimeout marks transaction contexts older than this as stale.
	// Zero disables the check.
	TransactionTimeout time.Duration `mapstructure:"transaction_timeout" yaml:"transaction_timeout" default:"5m"`
	Jobs               []JobConfig   `mapstructure:"jobs" yaml:"jobs" validate:"dive"`
}

// JobConfig describes one registered consistency job
type JobConfig struct {
	ID       string        `mapstructure:"id" yaml:"id" validate:"required"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Strategy string        `mapstructure:"strategy" yaml:"strategy" validate:"omitempty,oneof=database_wins cache_wins last_modified_wins manual_review"`
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
}

// AuthConfig contains admin API authentication settings
type AuthConfig struct {
	// Enabled turns on JWT bearer auth for mutating admin endpoints.
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string `mapstructure:"issuer" yaml:"issuer" default:"media-sync"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level" default:"info"`
	Format     string `mapstructure:"format" yaml:"format" default:"console"`
	OutputPath string `mapstructure:"output_path" yaml:"output_path" default:"stdout"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" default:"30s"`
}

// Load reads configuration from the given YAML file, layering environment
// variables on top and applying struct defaults before validation.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MEDIASYNC")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Defaults are applied before unmarshal so explicit zero values in the
	// file survive. Slice elements are normalized afterwards.
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func normalize(cfg *Config) {
	for i := range cfg.Consistency.Jobs {
		job := &cfg.Consistency.Jobs[i]
		if job.Interval <= 0 {
			job.Interval = 15 * time.Minute
		}
		if job.Strategy == "" {
			job.Strategy = "database_wins"
		}
	}
}

// Default returns a configuration with all defaults applied and no jobs.
// Useful for tests and embedding callers that wire jobs programmatically.
func Default() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for invalid or contradictory settings
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	seen := make(map[string]struct{}, len(cfg.Consistency.Jobs))
	for _, job := range cfg.Consistency.Jobs {
		if _, dup := seen[job.ID]; dup {
			return fmt.Errorf("duplicate job id %q", job.ID)
		}
		seen[job.ID] = struct{}{}
	}
	return nil
}

// Dump renders the effective configuration as YAML for startup logging.
// Secrets are redacted.
func (c *Config) Dump() (string, error) {
	clone := *c
	if clone.Auth.JWTSecret != "" {
		clone.Auth.JWTSecret = "[redacted]"
	}
	if clone.Cache.Redis.Password != "" {
		clone.Cache.Redis.Password = "[redacted]"
	}
	out, err := yaml.Marshal(&clone)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(out), nil
}
