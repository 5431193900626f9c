package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	JWT         JWTConfig        `mapstructure:"jwt"`
	Relay       RelayConfig      `mapstructure:"relay"`
	Bridge      BridgeConfig     `mapstructure:"bridge"`
	Validation  ValidationConfig `mapstructure:"validation"`
	Workers     WorkerConfig     `mapstructure:"workers"`
	Tracing     TracingConfig    `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	QueryTimeout    int    `mapstructure:"query_timeout"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret    string `mapstructure:"secret"`
	AccessTTL int    `mapstructure:"access_token_ttl"`
	Issuer    string `mapstructure:"issuer"`
}

// RelayConfig covers both directions of relay traffic: inbound webhook
// verification and outbound stream publishing.
type RelayConfig struct {
	// WebhookSecret is the shared HMAC key inbound relay callbacks are
	// signed with. Verification fails closed when unset outside
	// development.
	WebhookSecret string `mapstructure:"webhook_secret"`
	// SignerPublicKey is the hex-encoded ed25519 key unlock proofs are
	// verified against.
	SignerPublicKey string `mapstructure:"signer_public_key"`
	// OutboundStream is the Redis stream lifecycle events are
	// dispatched to.
	OutboundStream string `mapstructure:"outbound_stream"`
	StreamMaxLen   int64  `mapstructure:"stream_max_len"`
	// SkipSignatureVerify disables webhook HMAC checks. Development
	// only; ignored in production.
	SkipSignatureVerify bool `mapstructure:"skip_signature_verify"`
	// WebhookTimestampSkewSeconds bounds how old a signed callback may
	// be before it is rejected as a replay.
	WebhookTimestampSkewSeconds int `mapstructure:"webhook_timestamp_skew_seconds"`
}

// BridgeConfig holds the lock lifecycle timing knobs.
type BridgeConfig struct {
	// LockTimeoutMinutes is how long a lock may sit in locked before
	// the sweep reverts it.
	LockTimeoutMinutes int `mapstructure:"lock_timeout_minutes"`
	// MintTimeoutMinutes is how long a lock may sit in relayed before
	// the sweep reverts it.
	MintTimeoutMinutes   int `mapstructure:"mint_timeout_minutes"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
	SweepBatchSize       int `mapstructure:"sweep_batch_size"`
	MutexStripes         int `mapstructure:"mutex_stripes"`
}

// LockTimeout returns the relay deadline window as a duration.
func (c BridgeConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMinutes) * time.Minute
}

// MintTimeout returns the mint deadline window as a duration.
func (c BridgeConfig) MintTimeout() time.Duration {
	return time.Duration(c.MintTimeoutMinutes) * time.Minute
}

type ValidationConfig struct {
	MetadataMarker    string `mapstructure:"metadata_marker"`
	MaxBidsPerAuction int    `mapstructure:"max_bids_per_auction"`
}

type WorkerConfig struct {
	OutboxPollSeconds   int    `mapstructure:"outbox_poll_seconds"`
	OutboxBatchSize     int    `mapstructure:"outbox_batch_size"`
	OutboxMaxAttempts   int    `mapstructure:"outbox_max_attempts"`
	OutboxRetentionDays int    `mapstructure:"outbox_retention_days"`
	AuditSchedule       string `mapstructure:"audit_schedule"`
	RetentionSchedule   string `mapstructure:"retention_schedule"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Read from config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Override specific environment variables
	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	// Validate required fields
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.rate_limit_per_min", 100)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "causeway")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)
	viper.SetDefault("database.query_timeout", 30)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)

	// JWT defaults
	viper.SetDefault("jwt.access_token_ttl", 900)
	viper.SetDefault("jwt.issuer", "causeway-service")

	// Relay defaults
	viper.SetDefault("relay.outbound_stream", "causeway:outbound")
	viper.SetDefault("relay.stream_max_len", 100000)
	viper.SetDefault("relay.skip_signature_verify", false)
	viper.SetDefault("relay.webhook_timestamp_skew_seconds", 300)

	// Bridge lifecycle defaults
	viper.SetDefault("bridge.lock_timeout_minutes", 30)
	viper.SetDefault("bridge.mint_timeout_minutes", 120)
	viper.SetDefault("bridge.sweep_interval_seconds", 60)
	viper.SetDefault("bridge.sweep_batch_size", 100)
	viper.SetDefault("bridge.mutex_stripes", 64)

	// Validation defaults
	viper.SetDefault("validation.metadata_marker", "Valid Metadata")
	viper.SetDefault("validation.max_bids_per_auction", 1000)

	// Worker defaults
	viper.SetDefault("workers.outbox_poll_seconds", 5)
	viper.SetDefault("workers.outbox_batch_size", 50)
	viper.SetDefault("workers.outbox_max_attempts", 10)
	viper.SetDefault("workers.outbox_retention_days", 30)
	viper.SetDefault("workers.audit_schedule", "0 * * * *")
	viper.SetDefault("workers.retention_schedule", "0 3 * * *")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 0.1)
	viper.SetDefault("tracing.insecure", false)
}

func overrideFromEnv() {
	// Server
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}

	// Database
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	// Redis
	if redisURL := os.Getenv("REDIS_HOST"); redisURL != "" {
		viper.Set("redis.host", redisURL)
	}

	// JWT
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		viper.Set("jwt.secret", jwtSecret)
	}

	// Relay credentials
	if secret := os.Getenv("RELAY_WEBHOOK_SECRET"); secret != "" {
		viper.Set("relay.webhook_secret", secret)
	}
	if key := os.Getenv("RELAY_SIGNER_PUBLIC_KEY"); key != "" {
		viper.Set("relay.signer_public_key", key)
	}
}

func validate(config *Config) error {
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
		return fmt.Errorf("database configuration is incomplete")
	}

	if config.Relay.SignerPublicKey == "" && !config.IsDevelopment() {
		return fmt.Errorf("relay signer public key is required outside development")
	}

	if config.Bridge.LockTimeoutMinutes <= 0 || config.Bridge.MintTimeoutMinutes <= 0 {
		return fmt.Errorf("bridge timeouts must be positive")
	}

	return nil
}
