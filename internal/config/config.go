package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port" env:"PORT"`
	BaseURL        string        `yaml:"base_url" env:"BASE_URL"` // public site, used for canonical links and callbacks
	TrustProxy     bool          `yaml:"trust_proxy" env:"TRUST_PROXY"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LEVEL"`       // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"FORMAT"`     // json|console
	Sampling bool   `yaml:"sampling" env:"SAMPLING"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"URL"`
	MaxConns int32  `yaml:"max_conns" env:"MAX_CONNS"`
	Migrate  bool   `yaml:"migrate" env:"MIGRATE"` // apply embedded migrations at start
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"` // service credential shared with the auth provider
	Issuer    string `yaml:"issuer" env:"ISSUER"`
	Audience  string `yaml:"audience" env:"AUDIENCE"`
}

type PayFastConfig struct {
	MerchantID  string   `yaml:"merchant_id" env:"MERCHANT_ID"`
	MerchantKey string   `yaml:"merchant_key" env:"MERCHANT_KEY"`
	Passphrase  string   `yaml:"passphrase" env:"PASSPHRASE"`
	Sandbox     bool     `yaml:"sandbox" env:"SANDBOX"`
	AllowedIPs  []string `yaml:"allowed_ips" env:"ALLOWED_IPS" envSeparator:","`
}

type OzowConfig struct {
	SiteCode   string   `yaml:"site_code" env:"SITE_CODE"`
	PrivateKey string   `yaml:"private_key" env:"PRIVATE_KEY"`
	Sandbox    bool     `yaml:"sandbox" env:"SANDBOX"`
	AllowedIPs []string `yaml:"allowed_ips" env:"ALLOWED_IPS" envSeparator:","`
}

type EFTConfig struct {
	Secret     string   `yaml:"secret" env:"SECRET"`
	AllowedIPs []string `yaml:"allowed_ips" env:"ALLOWED_IPS" envSeparator:","`
}

type PaymentConfig struct {
	PayFast PayFastConfig `yaml:"payfast" envPrefix:"PAYFAST_"`
	Ozow    OzowConfig    `yaml:"ozow" envPrefix:"OZOW_"`
	EFT     EFTConfig     `yaml:"eft" envPrefix:"EFT_"`
	// StaleAfter is how long a pending payment may wait for its callback.
	StaleAfter time.Duration `yaml:"stale_after" env:"STALE_AFTER"`
}

type CronConfig struct {
	Secret      string `yaml:"secret" env:"SECRET"`
	Concurrency int    `yaml:"concurrency" env:"CONCURRENCY"`
	BatchSize   int    `yaml:"batch_size" env:"BATCH_SIZE"`
}

type StorageConfig struct {
	Bucket         string        `yaml:"bucket" env:"BUCKET"`
	Region         string        `yaml:"region" env:"REGION"`
	Endpoint       string        `yaml:"endpoint" env:"ENDPOINT"`
	AccessKeyID    string        `yaml:"access_key_id" env:"ACCESS_KEY_ID"`
	SecretKey      string        `yaml:"secret_key" env:"SECRET_KEY"`
	PublicBaseURL  string        `yaml:"public_base_url" env:"PUBLIC_BASE_URL"`
	ForcePathStyle bool          `yaml:"force_path_style" env:"FORCE_PATH_STYLE"`
	UploadTTL      time.Duration `yaml:"upload_ttl" env:"UPLOAD_TTL"`
}

type TelegramConfig struct {
	Token       string `yaml:"token" env:"TOKEN"`
	AdminChatID int64  `yaml:"admin_chat_id" env:"ADMIN_CHAT_ID"`
}

type SchedulerConfig struct {
	ExpiryInterval       time.Duration `yaml:"expiry_interval" env:"EXPIRY_INTERVAL"`
	StalePaymentInterval time.Duration `yaml:"stale_payment_interval" env:"STALE_PAYMENT_INTERVAL"`
}

type WorkerConfig struct {
	Workers int `yaml:"workers" env:"WORKERS"`
}

type AnalyticsConfig struct {
	// RateLimit is the max increments per client IP and post within RateWindow.
	RateLimit  int           `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateWindow time.Duration `yaml:"rate_window" env:"RATE_WINDOW"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Payment   PaymentConfig   `yaml:"payment" envPrefix:"PAYMENT_"`
	Cron      CronConfig      `yaml:"cron" envPrefix:"CRON_"`
	Storage   StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	Telegram  TelegramConfig  `yaml:"telegram" envPrefix:"TELEGRAM_"`
	Scheduler SchedulerConfig `yaml:"scheduler" envPrefix:"SCHEDULER_"`
	Worker    WorkerConfig    `yaml:"worker" envPrefix:"WORKER_"`
	Analytics AnalyticsConfig `yaml:"analytics" envPrefix:"ANALYTICS_"`

	Runtime RuntimeConfig `yaml:"-" env:"-"`
}

// EnvPrefix namespaces every environment override, e.g. A2Z_DATABASE_URL.
const EnvPrefix = "A2Z_"

// LoadConfig reads the YAML file at path (optional when empty or missing),
// loads a .env file if present, then applies A2Z_* environment overrides.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// env-only deployment
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	_ = godotenv.Load()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 15 * time.Second
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Payment.StaleAfter <= 0 {
		cfg.Payment.StaleAfter = 24 * time.Hour
	}
	if len(cfg.Payment.PayFast.AllowedIPs) == 0 {
		cfg.Payment.PayFast.AllowedIPs = DefaultPayFastRanges
	}
	if cfg.Cron.Concurrency <= 0 {
		cfg.Cron.Concurrency = 4
	}
	if cfg.Cron.BatchSize <= 0 {
		cfg.Cron.BatchSize = 500
	}
	if cfg.Storage.UploadTTL <= 0 {
		cfg.Storage.UploadTTL = 15 * time.Minute
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = time.Hour
	}
	if cfg.Scheduler.StalePaymentInterval <= 0 {
		cfg.Scheduler.StalePaymentInterval = 15 * time.Minute
	}
	if cfg.Worker.Workers <= 0 {
		cfg.Worker.Workers = 4
	}
	if cfg.Analytics.RateLimit <= 0 {
		cfg.Analytics.RateLimit = 30
	}
	if cfg.Analytics.RateWindow <= 0 {
		cfg.Analytics.RateWindow = time.Minute
	}
}

// DefaultPayFastRanges are the source ranges PayFast sends ITNs from.
var DefaultPayFastRanges = []string{
	"197.97.145.144/28",
	"41.74.179.192/27",
	"102.216.36.0/28",
	"102.216.36.128/28",
	"144.126.193.139/32",
}

// Validate performs minimal validation of required settings.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Cron.Secret == "" {
		return errors.New("cron.secret is required")
	}
	if c.Server.BaseURL == "" {
		return errors.New("server.base_url is required")
	}
	if c.Storage.Bucket == "" || c.Storage.Region == "" {
		return errors.New("storage.bucket and storage.region are required")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
