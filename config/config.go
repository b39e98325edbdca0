package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	AppName    = "backoffice-api"
	AppVersion = "1.4.0"
)

// Config holds every runtime setting read from the environment.
type Config struct {
	Port    string
	GinMode string

	DBDriver      string
	MySQLHost     string
	MySQLPort     int
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string
	MySQLCharset  string
	MySQLPoolSize int
	SQLitePath    string

	CORSOrigins []string

	SSEPingInterval time.Duration
	SSERetry        time.Duration

	EventBusDriver    string
	EventBusTable     string
	EventBusPoll      time.Duration
	EventBusBatch     int
	EventBusFile      string
	EventBusRetention time.Duration
	EventBusBuffer    int
	SnowflakeNode     int64

	JWTSecret           string
	JWTTTL              time.Duration
	LegacyEncryptionKey string
	MigratePasswords    bool
	LoginRatePerMinute  int

	LogLevel      string
	LogDir        string
	LogMaxAgeDays int
}

var identifierRe = regexp.MustCompile(`[^\w]`)

// Load reads the configuration from the process environment.
// Call godotenv before this if a .env file should be honoured.
func Load() *Config {
	return &Config{
		Port:    envString("PORT", "4000"),
		GinMode: envString("GIN_MODE", ""),

		DBDriver:      strings.ToLower(envString("DB_DRIVER", "mysql")),
		MySQLHost:     envString("MYSQL_HOST", "127.0.0.1"),
		MySQLPort:     envInt("MYSQL_PORT", 3306, 1),
		MySQLUser:     envString("MYSQL_USER", "root"),
		MySQLPassword: os.Getenv("MYSQL_PASSWORD"),
		MySQLDatabase: envString("MYSQL_DATABASE", "sistema"),
		MySQLCharset:  envString("MYSQL_CHARSET", "utf8mb4"),
		MySQLPoolSize: envInt("MYSQL_POOL_LIMIT", 10, 1),
		SQLitePath:    envString("SQLITE_PATH", "storage/backoffice.db"),

		CORSOrigins: ParseList(envString("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),

		SSEPingInterval: envMillis("SSE_PING_INTERVAL_MS", 25000, 1000),
		SSERetry:        envMillis("SSE_RETRY_MS", 3000, 0),

		EventBusDriver:    strings.ToLower(envString("EVENT_BUS_DRIVER", "memory")),
		EventBusTable:     SanitizeIdentifier(envString("EVENT_BUS_TABLE", "event_bus"), "event_bus"),
		EventBusPoll:      envMillis("EVENT_BUS_POLL_INTERVAL_MS", 600, 200),
		EventBusBatch:     envInt("EVENT_BUS_BATCH_LIMIT", 200, 1),
		EventBusFile:      envString("EVENT_BUS_FILE", "storage/realtime-events.json"),
		EventBusRetention: time.Duration(envInt("EVENT_BUS_RETENTION_SECONDS", 60, 1)) * time.Second,
		EventBusBuffer:    envInt("EVENT_BUS_BUFFER", 1000, 10),
		SnowflakeNode:     int64(envInt("SNOWFLAKE_NODE", 1, 0)),

		JWTSecret:           os.Getenv("JWT_SECRET"),
		JWTTTL:              time.Duration(envInt("JWT_TTL_HOURS", 8, 1)) * time.Hour,
		LegacyEncryptionKey: os.Getenv("LEGACY_ENCRYPTION_KEY"),
		MigratePasswords:    envBool("PASSWORD_MIGRATE_ON_LOGIN", true),
		LoginRatePerMinute:  envInt("LOGIN_RATE_PER_MINUTE", 10, 1),

		LogLevel:      envString("LOG_LEVEL", "info"),
		LogDir:        os.Getenv("LOG_DIR"),
		LogMaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 7, 1),
	}
}

// ParseList splits a comma separated value, dropping blanks.
func ParseList(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SanitizeIdentifier strips anything that is not a word character so the
// value can be interpolated as a table name.
func SanitizeIdentifier(raw, fallback string) string {
	clean := identifierRe.ReplaceAllString(raw, "")
	if clean == "" {
		return fallback
	}
	return clean
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback, min int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	if v < min {
		return min
	}
	return v
}

func envMillis(key string, fallback, min int) time.Duration {
	return time.Duration(envInt(key, fallback, min)) * time.Millisecond
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}
