package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := load(context.Background(), envconfig.MapLookuper(nil))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.MySQL.Host)
	assert.Equal(t, "bfx_report", cfg.MySQL.Database)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "https://api.bitfinex.com", cfg.Venue.APIURL)
	assert.Equal(t, 2.5, cfg.Venue.RateLimit)
	assert.Equal(t, time.Hour, cfg.Sync.Interval)
	assert.Equal(t, 80*time.Second, cfg.Sync.RateLimitDelay)
	assert.Equal(t, time.Second, cfg.Sync.NonceDelay)
	assert.Equal(t, 100000, cfg.Sync.PublicRecordCap)
	assert.Empty(t, cfg.Sync.Collections)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_Overrides(t *testing.T) {
	t.Parallel()

	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"SERVER_PORT":           "9090",
		"MYSQL_HOST":            "db.internal",
		"MYSQL_PASSWORD":        "hunter2",
		"VENUE_RATE_LIMIT":      "1.5",
		"SYNC_COLLECTIONS":      "trades,ledgers",
		"SYNC_INTERVAL":         "30m",
		"LOG_LEVEL":             "debug",
		"REDIS_PORT":            "6380",
		"VENUE_REQUEST_TIMEOUT": "10s",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.MySQL.Host)
	assert.Equal(t, "hunter2", cfg.MySQL.Password)
	assert.Equal(t, 1.5, cfg.Venue.RateLimit)
	assert.Equal(t, []string{"trades", "ledgers"}, cfg.Sync.Collections)
	assert.Equal(t, 30*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, 10*time.Second, cfg.Venue.RequestTimeout)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad port", env: map[string]string{"SERVER_PORT": "70000"}},
		{name: "zero rate limit", env: map[string]string{"VENUE_RATE_LIMIT": "0"}},
		{name: "empty venue url", env: map[string]string{"VENUE_API_URL": ""}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := load(context.Background(), envconfig.MapLookuper(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestGetMySQLDSN(t *testing.T) {
	t.Parallel()

	cfg, err := load(context.Background(), envconfig.MapLookuper(nil))
	require.NoError(t, err)

	assert.Equal(t,
		"bfx:bfx123@tcp(localhost:3306)/bfx_report?parseTime=true&multiStatements=true",
		cfg.GetMySQLDSN())
}

func TestGetServerAddr(t *testing.T) {
	t.Parallel()

	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"SERVER_HOST": "127.0.0.1",
		"SERVER_PORT": "9000",
	}))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddr())
	assert.Equal(t, "localhost:6379", cfg.GetRedisAddr())
}
