package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `env:", prefix=SERVER_"`
	MySQL   MySQLConfig   `env:", prefix=MYSQL_"`
	Redis   RedisConfig   `env:", prefix=REDIS_"`
	NATS    NATSConfig    `env:", prefix=NATS_"`
	Venue   VenueConfig   `env:", prefix=VENUE_"`
	Sync    SyncConfig    `env:", prefix=SYNC_"`
	Logging LoggingConfig `env:", prefix=LOG_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host            string        `env:"HOST, default=localhost"`
	Port            int           `env:"PORT, default=3306"`
	Database        string        `env:"DATABASE, default=bfx_report"`
	User            string        `env:"USER, default=bfx"`
	Password        string        `env:"PASSWORD, default=bfx123"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS, default=25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS, default=5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME, default=5m"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
	DrainTimeout  time.Duration `env:"DRAIN_TIMEOUT, default=30s"`
}

// VenueConfig holds trading venue API configuration
type VenueConfig struct {
	APIURL         string        `env:"API_URL, default=https://api.bitfinex.com"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT, default=30s"`
	// RateLimit is the sustained requests-per-second budget shared by the
	// whole run. The venue enforces a single limit across all endpoints.
	RateLimit float64 `env:"RATE_LIMIT, default=2.5"`
	RateBurst int     `env:"RATE_BURST, default=1"`
}

// SyncConfig holds synchronization engine configuration
type SyncConfig struct {
	// Interval between automatic full syncs in serve mode.
	Interval time.Duration `env:"INTERVAL, default=1h"`
	// RateLimitDelay is the pause before retrying after a rate-limited
	// venue response.
	RateLimitDelay time.Duration `env:"RATE_LIMIT_DELAY, default=80s"`
	// NonceDelay is the pause before retrying after a nonce-too-old
	// venue response.
	NonceDelay time.Duration `env:"NONCE_DELAY, default=1s"`
	// Collections narrows the sync to an allow-list of collection names.
	// Empty means all registered collections.
	Collections []string `env:"COLLECTIONS"`
	// PublicRecordCap bounds records pulled per pass for capped public
	// collections (public trades, ticker history).
	PublicRecordCap int `env:"PUBLIC_RECORD_CAP, default=100000"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=json"`
	Output string `env:"OUTPUT, default=stdout"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	return load(context.Background(), envconfig.OsLookuper())
}

// load processes the configuration against the given lookuper, which lets
// tests supply a fixed map instead of the process environment.
func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.MySQL.Host == "" {
		return fmt.Errorf("MySQL host is required")
	}

	if c.Venue.APIURL == "" {
		return fmt.Errorf("venue API URL is required")
	}

	if c.Venue.RateLimit <= 0 {
		return fmt.Errorf("invalid venue rate limit: %f", c.Venue.RateLimit)
	}

	if c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is required")
	}

	return nil
}

// GetMySQLDSN returns MySQL DSN string
func (c *Config) GetMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.Database,
	)
}

// GetRedisAddr returns Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
