package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGINS", "LAN_ANNOUNCE_INTERVAL_MS", "LAN_ALLOW_LOOPBACK",
		"BT_CHANNEL", "HEARTBEAT_INTERVAL_MS", "STALE_AFTER_SECONDS", "GAME_SPEED", "DATABASE_URL",
		"INBOUND_RATE", "INBOUND_BURST", "CHANNEL_WRITE_TIMEOUT_MS",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("PLAYER_NAME", "den")

	cfg := LoadConfig()
	require.NotNil(t, cfg)
	assert.Same(t, AppConfig, cfg)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "den", cfg.PlayerName)
	assert.Len(t, cfg.AllowedOrigins, 2)
	assert.Equal(t, time.Second, cfg.LANAnnounceInterval)
	assert.False(t, cfg.LANAllowLoopback)
	assert.Equal(t, 7, cfg.BTChannel)
	assert.Equal(t, 3*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 10*time.Second, cfg.StaleAfter)
	assert.Equal(t, 1.0, cfg.GameSpeed)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 200.0, cfg.InboundRate)
	assert.Equal(t, 100, cfg.InboundBurst)
	assert.Equal(t, 5*time.Second, cfg.ChannelWriteTimeout)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "http://a.local, ,http://b.local")
	t.Setenv("LAN_ANNOUNCE_INTERVAL_MS", "250")
	t.Setenv("LAN_ALLOW_LOOPBACK", "true")
	t.Setenv("STALE_AFTER_SECONDS", "4")
	t.Setenv("GAME_SPEED", "2.5")
	t.Setenv("BT_CHANNEL", "oops")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/snake")
	t.Setenv("INBOUND_RATE", "0")
	t.Setenv("INBOUND_BURST", "8")
	t.Setenv("CHANNEL_WRITE_TIMEOUT_MS", "750")

	cfg := LoadConfig()

	assert.Equal(t, []string{
		"http://localhost:5173",
		"http://127.0.0.1:5173",
		"http://a.local",
		"http://b.local",
	}, cfg.AllowedOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.LANAnnounceInterval)
	assert.True(t, cfg.LANAllowLoopback)
	assert.Equal(t, 4*time.Second, cfg.StaleAfter)
	assert.Equal(t, 2.5, cfg.GameSpeed)
	assert.Equal(t, 7, cfg.BTChannel, "invalid values fall back to the default")
	assert.Equal(t, "postgres://u:p@localhost:5432/snake?sslmode=disable", cfg.DatabaseURL)
	assert.Zero(t, cfg.InboundRate, "zero turns the inbound guard off")
	assert.Equal(t, 8, cfg.InboundBurst)
	assert.Equal(t, 750*time.Millisecond, cfg.ChannelWriteTimeout)
}

func TestDatabaseURLKeepsExplicitSSLMode(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db/snake?sslmode=require")
	assert.Equal(t, "postgres://u:p@db/snake?sslmode=require", LoadConfig().DatabaseURL)
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("TICK_MS", "")
	assert.Equal(t, 5*time.Second, GetEnvAsDuration("TICK_MS", 5*time.Second, time.Millisecond))

	t.Setenv("TICK_MS", "0")
	assert.Equal(t, time.Duration(0), GetEnvAsDuration("TICK_MS", 5*time.Second, time.Millisecond))

	t.Setenv("TICK_MS", "-3")
	assert.Equal(t, 5*time.Second, GetEnvAsDuration("TICK_MS", 5*time.Second, time.Millisecond))
}
