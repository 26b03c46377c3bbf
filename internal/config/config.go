package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iamasit07/snakesync/pkg/logger"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// Local player
	PlayerName string

	// LAN discovery
	LANServiceType      string
	LANAnnounceInterval time.Duration
	LANRoomLifetime     time.Duration
	LANAllowLoopback    bool

	// Bluetooth
	BTAdapter     string
	BTChannel     int
	BTScanTimeout time.Duration

	// Sync channels
	InboundRate         float64
	InboundBurst        int
	ChannelWriteTimeout time.Duration

	// Session
	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration
	StaleAfter        time.Duration
	CleanupInterval   time.Duration
	HistoryDays       int

	// Game defaults
	GameSpeed       float64
	BoostMultiplier float64
	GridWidth       int
	GridHeight      int

	// Storage (optional)
	DatabaseURL          string
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetimeMin int
	RedisURL             string
	RedisPassword        string
	RoomCacheTTL         time.Duration
}

var AppConfig *Config

func LoadConfig() *Config {
	port := GetEnv("PORT", "8080")
	host, _ := os.Hostname()

	// Control API is local by default, extra origins come from CSV
	allowedOrigins := []string{
		"http://localhost:5173",
		"http://127.0.0.1:5173",
	}
	if allowedOriginsStr := GetEnv("ALLOWED_ORIGINS", ""); allowedOriginsStr != "" {
		for _, origin := range strings.Split(allowedOriginsStr, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				allowedOrigins = append(allowedOrigins, trimmed)
			}
		}
	}

	dbURL := GetEnv("DATABASE_URL", "")
	if dbURL != "" {
		if u, err := url.Parse(dbURL); err == nil {
			q := u.Query()
			if q.Get("sslmode") == "" {
				q.Set("sslmode", "disable")
				u.RawQuery = q.Encode()
				dbURL = u.String()
			}
		}
	}

	AppConfig = &Config{
		Port:           port,
		AllowedOrigins: allowedOrigins,
		LogLevel:       GetEnv("LOG_LEVEL", "info"),

		PlayerName: GetEnv("PLAYER_NAME", GetEnv("HOSTNAME", host)),

		LANServiceType:      GetEnv("LAN_SERVICE_TYPE", "_snakegame._tcp."),
		LANAnnounceInterval: GetEnvAsDuration("LAN_ANNOUNCE_INTERVAL_MS", 1000*time.Millisecond, time.Millisecond),
		LANRoomLifetime:     GetEnvAsDuration("LAN_ROOM_LIFETIME_SECONDS", 5*time.Second, time.Second),
		LANAllowLoopback:    GetEnvAsBool("LAN_ALLOW_LOOPBACK", false),

		BTAdapter:     GetEnv("BT_ADAPTER", "hci0"),
		BTChannel:     GetEnvAsInt("BT_CHANNEL", 7),
		BTScanTimeout: GetEnvAsDuration("BT_SCAN_TIMEOUT_SECONDS", 12*time.Second, time.Second),

		InboundRate:         GetEnvAsFloat("INBOUND_RATE", 200),
		InboundBurst:        GetEnvAsInt("INBOUND_BURST", 100),
		ChannelWriteTimeout: GetEnvAsDuration("CHANNEL_WRITE_TIMEOUT_MS", 5000*time.Millisecond, time.Millisecond),

		ConnectTimeout:    GetEnvAsDuration("CONNECT_TIMEOUT_SECONDS", 10*time.Second, time.Second),
		HeartbeatInterval: GetEnvAsDuration("HEARTBEAT_INTERVAL_MS", 3000*time.Millisecond, time.Millisecond),
		StaleAfter:        GetEnvAsDuration("STALE_AFTER_SECONDS", 10*time.Second, time.Second),
		CleanupInterval:   GetEnvAsDuration("CLEANUP_INTERVAL_SECONDS", 2*time.Second, time.Second),
		HistoryDays:       GetEnvAsInt("HISTORY_DAYS", 30),

		GameSpeed:       GetEnvAsFloat("GAME_SPEED", 1.0),
		BoostMultiplier: GetEnvAsFloat("BOOST_MULTIPLIER", 1.5),
		GridWidth:       GetEnvAsInt("GRID_WIDTH", 20),
		GridHeight:      GetEnvAsInt("GRID_HEIGHT", 20),

		DatabaseURL:          dbURL,
		DBMaxOpenConns:       GetEnvAsInt("DB_MAX_OPEN_CONNS", 5),
		DBMaxIdleConns:       GetEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetimeMin: GetEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 5),
		RedisURL:             GetEnv("REDIS_URL", ""),
		RedisPassword:        GetEnv("REDIS_PASSWORD", ""),
		RoomCacheTTL:         GetEnvAsDuration("ROOM_CACHE_TTL_SECONDS", 10*time.Second, time.Second),
	}

	return AppConfig
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log := logger.For("CONFIG")
		log.Warn().Msgf("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func GetEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log := logger.For("CONFIG")
		log.Warn().Msgf("Invalid float value for %s: %s, using default: %v", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvAsDuration reads an integer env var and scales it by unit.
func GetEnvAsDuration(key string, defaultValue time.Duration, unit time.Duration) time.Duration {
	n := GetEnvAsInt(key, -1)
	if n < 0 {
		return defaultValue
	}
	return time.Duration(n) * unit
}
