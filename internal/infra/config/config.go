package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Store      StoreConfig      `mapstructure:"store"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Billing    BillingConfig    `mapstructure:"billing"`
	Generation GenerationConfig `mapstructure:"generation"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration (payment webhooks, metrics, ops).
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	AdminToken   string        `mapstructure:"admin_token"`

	// Per-IP limit on the operator routes.
	AdminRateLimit  int           `mapstructure:"admin_rate_limit"`
	AdminRateWindow time.Duration `mapstructure:"admin_rate_window"`
}

// DatabaseConfig holds database configuration. An empty host disables
// persistence of purchase and generation history.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode,
	)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// StoreConfig selects the counter store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // redis, memory
}

// HTTPClientConfig holds HTTP client configuration for connection pooling.
type HTTPClientConfig struct {
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`
	KeepAlive           time.Duration `mapstructure:"keep_alive"`
}

// BillingConfig holds the credit catalog and quota rules.
type BillingConfig struct {
	FreeTier             FreeTierConfig              `mapstructure:"free_tier"`
	TopupExpirationHours int                         `mapstructure:"topup_expiration_hours"`
	Thresholds           ThresholdsConfig            `mapstructure:"thresholds"`
	Passes               map[string]PassOfferConfig  `mapstructure:"passes"`
	Topups               map[string]TopupOfferConfig `mapstructure:"topups"`
	UnlimitedUsers       []string                    `mapstructure:"unlimited_users"`
	MaxRetries           int                         `mapstructure:"max_retries"`
	OpTimeout            time.Duration               `mapstructure:"op_timeout"`
}

// FreeTierConfig holds the daily free allowance.
type FreeTierConfig struct {
	ImageDaily      int64 `mapstructure:"image_daily"`
	VideoDaily      int64 `mapstructure:"video_daily"`
	ExpirationHours int   `mapstructure:"expiration_hours"`
}

// ThresholdsConfig holds upsell thresholds.
type ThresholdsConfig struct {
	GentleWarning int64 `mapstructure:"gentle_warning"`
	HardBlock     int64 `mapstructure:"hard_block"`
}

// PassOfferConfig is one pass tier.
type PassOfferConfig struct {
	Price         int64 `mapstructure:"price"`
	ImageQuota    int64 `mapstructure:"image_quota"`
	VideoQuota    int64 `mapstructure:"video_quota"`
	DurationHours int   `mapstructure:"duration_hours"`
}

// TopupOfferConfig is one pay-as-you-go pack.
type TopupOfferConfig struct {
	Price       int64  `mapstructure:"price"`
	Service     string `mapstructure:"service"`
	QuotaAmount int64  `mapstructure:"quota_amount"`
}

// GenerationConfig holds generation backend configuration.
type GenerationConfig struct {
	Image              BackendConfig `mapstructure:"image"`
	Video              BackendConfig `mapstructure:"video"`
	FailureThreshold   uint32        `mapstructure:"failure_threshold"`
	CircuitTimeout     time.Duration `mapstructure:"circuit_timeout"`
	MaxConcurrentTasks int           `mapstructure:"max_concurrent_tasks"`
	RateLimit          int           `mapstructure:"rate_limit"`
	RateWindow         time.Duration `mapstructure:"rate_window"`
}

// BackendConfig configures a single generation API.
type BackendConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StripeConfig holds Stripe payment configuration.
type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from an explicit file, or from the default
// search paths when path is empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/stylebot")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	v.SetEnvPrefix("STYLEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override with environment variables for sensitive values
	if password := os.Getenv("STYLEBOT_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv("STYLEBOT_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if secretKey := os.Getenv("STYLEBOT_STRIPE_SECRET_KEY"); secretKey != "" {
		cfg.Stripe.SecretKey = secretKey
	}
	if webhookSecret := os.Getenv("STYLEBOT_STRIPE_WEBHOOK_SECRET"); webhookSecret != "" {
		cfg.Stripe.WebhookSecret = webhookSecret
	}
	if key := os.Getenv("STYLEBOT_IMAGE_API_KEY"); key != "" {
		cfg.Generation.Image.APIKey = key
	}
	if key := os.Getenv("STYLEBOT_VIDEO_API_KEY"); key != "" {
		cfg.Generation.Video.APIKey = key
	}
	if s := os.Getenv("STYLEBOT_UNLIMITED_USERS"); s != "" {
		cfg.Billing.UnlimitedUsers = parseCommaSeparatedList(s)
	}

	return &cfg, nil
}

func parseCommaSeparatedList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.admin_rate_limit", 60)
	v.SetDefault("server.admin_rate_window", time.Minute)

	// Database defaults (host empty = disabled)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "stylebot")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", 2*time.Second)
	v.SetDefault("redis.read_timeout", time.Second)
	v.SetDefault("redis.write_timeout", time.Second)
	v.SetDefault("redis.max_retries", 1)

	v.SetDefault("store.driver", "redis")

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 20)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 30*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.response_timeout", 180*time.Second)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// Billing defaults
	v.SetDefault("billing.free_tier.image_daily", 5)
	v.SetDefault("billing.free_tier.video_daily", 1)
	v.SetDefault("billing.free_tier.expiration_hours", 24)
	v.SetDefault("billing.topup_expiration_hours", 30*24)
	v.SetDefault("billing.thresholds.gentle_warning", 3)
	v.SetDefault("billing.thresholds.hard_block", 0)
	v.SetDefault("billing.unlimited_users", []string{})
	v.SetDefault("billing.max_retries", 5)
	v.SetDefault("billing.op_timeout", 2*time.Second)
	v.SetDefault("billing.passes", map[string]any{
		"pass_1d":  map[string]any{"price": 99, "image_quota": 50, "video_quota": 5, "duration_hours": 24},
		"pass_7d":  map[string]any{"price": 399, "image_quota": 300, "video_quota": 30, "duration_hours": 7 * 24},
		"pass_30d": map[string]any{"price": 999, "image_quota": 1500, "video_quota": 120, "duration_hours": 30 * 24},
	})
	v.SetDefault("billing.topups", map[string]any{
		"image_10": map[string]any{"price": 49, "service": "image", "quota_amount": 10},
		"image_50": map[string]any{"price": 199, "service": "image", "quota_amount": 50},
		"video_3":  map[string]any{"price": 99, "service": "video", "quota_amount": 3},
		"video_10": map[string]any{"price": 279, "service": "video", "quota_amount": 10},
	})

	// Generation defaults
	v.SetDefault("generation.image.timeout", 90*time.Second)
	v.SetDefault("generation.video.timeout", 5*time.Minute)
	v.SetDefault("generation.failure_threshold", 5)
	v.SetDefault("generation.circuit_timeout", 60*time.Second)
	v.SetDefault("generation.max_concurrent_tasks", 32)
	v.SetDefault("generation.rate_limit", 10)
	v.SetDefault("generation.rate_window", time.Minute)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
