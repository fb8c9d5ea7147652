package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"go-inventory-ledger/pkg/database"
)

// Config is the whole application configuration, read from the environment
// (after .env has been loaded by main).
type Config struct {
	Port   string
	AppEnv string

	Database database.Config

	JWTSecret string

	// Location is the store's time zone; date filters are full days in it.
	Location *time.Location

	// LogOpeningStock records opening SKU stock as IN transactions at
	// product creation.
	LogOpeningStock bool

	KafkaBrokers []string
	KafkaTopic   string

	OtelEndpoint string
	OtelInsecure bool
	ServiceName  string

	// AdminEmail and AdminPassword seed a first account when both are set
	// and no user with that email exists.
	AdminEmail    string
	AdminPassword string
}

// Load reads the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		Port:         getenv("PORT", "3000"),
		AppEnv:       getenv("APP_ENV", "development"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		KafkaTopic:   getenv("KAFKA_TOPIC", "inventory.ledger"),
		OtelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:  getenv("OTEL_SERVICE_NAME", "go-inventory-ledger"),

		AdminEmail:    strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	tz := getenv("APP_TIMEZONE", "Asia/Jakarta")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("APP_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	if cfg.LogOpeningStock, err = getbool("LEDGER_LOG_OPENING_STOCK", true); err != nil {
		return Config{}, err
	}
	if cfg.OtelInsecure, err = getbool("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return Config{}, err
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	cfg.Database = database.Config{
		Driver:     getenv("DB_DRIVER", database.DriverPostgres),
		DSN:        os.Getenv("DATABASE_URL"),
		SQLitePath: getenv("SQLITE_PATH", "inventory.db"),
	}
	switch cfg.Database.Driver {
	case database.DriverPostgres:
		if cfg.Database.DSN == "" {
			if os.Getenv("DB_HOST") == "" {
				return Config{}, fmt.Errorf("DATABASE_URL or DB_HOST is required")
			}
			cfg.Database.DSN = database.PostgresDSN(
				os.Getenv("DB_HOST"),
				os.Getenv("DB_USER"),
				os.Getenv("DB_PASSWORD"),
				os.Getenv("DB_NAME"),
				getenv("DB_PORT", "5432"),
				tz,
			)
		}
	case database.DriverSQLite:
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", database.DriverPostgres, database.DriverSQLite, cfg.Database.Driver)
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return Config{}, fmt.Errorf("JWT_SECRET is required")
		}
		cfg.JWTSecret = "your-super-secret-key-change-in-production"
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV is "production".
func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getbool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}
