package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RENUMBER_SCHEDULE", "")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "@every 15m", cfg.Renumber.Schedule)
	assert.Equal(t, 30*time.Second, cfg.Renumber.LockTTL)
	assert.Equal(t, 100000, cfg.Export.MaxRows)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_DSN", "postgres://crm@localhost/crm")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RENUMBER_LOCK_TTL_SECONDS", "5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://crm@localhost/crm", cfg.Database.DSN)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Renumber.LockTTL)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "secret")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg.Database.Driver = "sqlite"
	cfg.Auth.JWTSecret = ""
	cfg.Auth.OIDCIssuer = ""
	assert.Error(t, cfg.Validate())

	cfg.Auth.OIDCIssuer = "https://issuer.example.com"
	assert.NoError(t, cfg.Validate())
}

func TestGetEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	assert.Equal(t, 25, getEnvInt("DB_MAX_OPEN_CONNS", 25))
}
