package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Log      LogConfig
	Renumber RenumberConfig
	Stats    StatsConfig
	Export   ExportConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver       string // sqlite or postgres
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	AutoMigrate  bool
	MaxRetries   int
}

// RedisConfig with an empty Addr disables the distributed lock and the stats cache.
type RedisConfig struct {
	Addr string
	DB   int
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
	Enabled     bool
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	OIDCIssuer string
}

type LogConfig struct {
	Level      string
	Dir        string
	ToFile     bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type RenumberConfig struct {
	Schedule string
	LockTTL  time.Duration
}

type StatsConfig struct {
	CacheTTL time.Duration
}

type ExportConfig struct {
	MaxRows int
}

// Load reads .env (when present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", ":8080"),
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:          getEnv("DB_DSN", "file:crm.db?cache=shared"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),
			MaxRetries:   getEnvInt("DB_MAX_RETRIES", 5),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", ""),
			DB:   getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "crm"),
			Enabled:     getEnvBool("KAFKA_ENABLED", false),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			TokenTTL:   time.Duration(getEnvInt("JWT_TTL_HOURS", 24)) * time.Hour,
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
		},
		Log: LogConfig{
			Level:  strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
			Dir:    getEnv("LOG_DIR", "logs"),
			ToFile: getEnvBool("LOG_TO_FILE", true),

			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 7),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		},
		Renumber: RenumberConfig{
			Schedule: getEnv("RENUMBER_SCHEDULE", "@every 15m"),
			LockTTL:  getEnvDuration("RENUMBER_LOCK_TTL_SECONDS", 30*time.Second),
		},
		Stats: StatsConfig{
			CacheTTL: getEnvDuration("STATS_CACHE_TTL_SECONDS", 60*time.Second),
		},
		Export: ExportConfig{
			MaxRows: getEnvInt("EXPORT_MAX_ROWS", 100000),
		},
	}
}

// Validate reports configuration that would prevent the service from starting.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN must be set")
	}
	if c.Auth.JWTSecret == "" && c.Auth.OIDCIssuer == "" {
		return fmt.Errorf("either JWT_SECRET or OIDC_ISSUER must be set")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must be set when KAFKA_ENABLED is true")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration reads a number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return time.Duration(parsed) * time.Second
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
