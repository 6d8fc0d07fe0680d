package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Teamleader TeamleaderConfig `mapstructure:"teamleader"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Platform   PlatformConfig   `mapstructure:"platform"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Port    int    `mapstructure:"port"`
	Env     string `mapstructure:"env"`
	BaseURL string `mapstructure:"base_url"`
	// HTTP server timeouts, given in seconds
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TeamleaderConfig holds the CRM API and OAuth2 endpoints.
type TeamleaderConfig struct {
	Provider     string        `mapstructure:"provider"`
	BaseURL      string        `mapstructure:"base_url" validate:"required,url"`
	AuthURL      string        `mapstructure:"auth_url" validate:"required,url"`
	TokenURL     string        `mapstructure:"token_url" validate:"required,url"`
	RedirectURI  string        `mapstructure:"redirect_uri" validate:"required"`
	ClientID     string        `mapstructure:"client_id" validate:"required"`
	ClientSecret string        `mapstructure:"client_secret" validate:"required"`
	Timeout      time.Duration `mapstructure:"timeout"`
	// ExpirySkew is subtracted from the stored expiry when deciding if a token is expired
	ExpirySkew time.Duration `mapstructure:"expiry_skew"`
	Retry      RetryConfig   `mapstructure:"retry"`
}

// RetryConfig controls retries of token endpoint calls
type RetryConfig struct {
	Attempts  int           `mapstructure:"attempts"`
	BaseDelay time.Duration `mapstructure:"base_delay_ms"`
}

type SyncConfig struct {
	PageSize             int     `mapstructure:"page_size"`
	TestConnection       bool    `mapstructure:"test_connection"`
	DetailRatePerSecond  float64 `mapstructure:"detail_rate_per_second"`
	DetailBurst          int     `mapstructure:"detail_burst"`
	LeaseTTLSeconds      int     `mapstructure:"lease_ttl_seconds"`
	RecalculateRolesHook bool    `mapstructure:"recalculate_roles"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Brokers      []string `mapstructure:"brokers"`
	SummaryTopic string   `mapstructure:"summary_topic"`
}

// PlatformConfig points at the business-management platform that owns users and roles
type PlatformConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	BaseURL      string `mapstructure:"base_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Timeout      int    `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func NewConfig() (*Config, error) {
	// .env is optional, real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "crm-sync")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.read_timeout", 15)
	v.SetDefault("app.write_timeout", 15)
	v.SetDefault("app.idle_timeout", 60)
	v.SetDefault("app.shutdown_timeout", 10)
	v.SetDefault("app.env", "development")
	v.SetDefault("teamleader.provider", "teamleader")
	v.SetDefault("teamleader.timeout", 30)
	v.SetDefault("teamleader.expiry_skew", 60)
	v.SetDefault("teamleader.retry.attempts", 2)
	v.SetDefault("teamleader.retry.base_delay_ms", 200)
	v.SetDefault("sync.page_size", 50)
	v.SetDefault("sync.test_connection", true)
	v.SetDefault("sync.detail_rate_per_second", 5)
	v.SetDefault("sync.detail_burst", 1)
	v.SetDefault("sync.lease_ttl_seconds", 3600)
	v.SetDefault("sync.recalculate_roles", true)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("kafka.summary_topic", "crm-sync.summaries")
	v.SetDefault("platform.timeout", 30)
	v.SetDefault("logging.level", "info")
}

// normalize converts the second/millisecond based values read from yaml into durations
func (c *Config) normalize() {
	c.App.ReadTimeout = c.App.ReadTimeout * time.Second
	c.App.WriteTimeout = c.App.WriteTimeout * time.Second
	c.App.IdleTimeout = c.App.IdleTimeout * time.Second
	c.App.ShutdownTimeout = c.App.ShutdownTimeout * time.Second
	c.Teamleader.Timeout = c.Teamleader.Timeout * time.Second
	c.Teamleader.ExpirySkew = c.Teamleader.ExpirySkew * time.Second
	c.Teamleader.Retry.BaseDelay = c.Teamleader.Retry.BaseDelay * time.Millisecond

	if c.Teamleader.Retry.Attempts < 1 {
		c.Teamleader.Retry.Attempts = 1
	}
	if c.Sync.PageSize <= 0 {
		c.Sync.PageSize = 50
	}
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// LeaseTTL is how long a distributed sync lease is held before it expires on its own
func (s SyncConfig) LeaseTTL() time.Duration {
	if s.LeaseTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(s.LeaseTTLSeconds) * time.Second
}
