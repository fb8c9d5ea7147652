package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-inventory-ledger/pkg/database"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", ":memory:")
	for _, k := range []string{"PORT", "APP_ENV", "APP_TIMEZONE", "LEDGER_LOG_OPENING_STOCK", "KAFKA_BROKERS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "Asia/Jakarta", cfg.Location.String())
	assert.True(t, cfg.LogOpeningStock)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoad_Postgres(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "inv")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "inventory")
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LEDGER_LOG_OPENING_STOCK", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Contains(t, cfg.Database.DSN, "host=db")
	assert.Contains(t, cfg.Database.DSN, "port=5432")
	assert.Contains(t, cfg.Database.DSN, "TimeZone=UTC")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.LogOpeningStock)
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":   {"DB_DRIVER": "mysql"},
		"missing postgres": {"DB_DRIVER": "postgres", "DATABASE_URL": "", "DB_HOST": ""},
		"bad timezone":     {"DB_DRIVER": "sqlite", "APP_TIMEZONE": "Mars/Olympus"},
		"bad bool":         {"DB_DRIVER": "sqlite", "LEDGER_LOG_OPENING_STOCK": "maybe"},
		"prod no secret":   {"DB_DRIVER": "sqlite", "APP_ENV": "production", "JWT_SECRET": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
