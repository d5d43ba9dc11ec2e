package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=pathway port=5432 sslmode=disable TimeZone=UTC"

// Config holds all application configuration
type Config struct {
	Env      string
	SiteURL  string
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Log      LogConfig

	// SnowflakeNode identifies this instance to the id generator (0-1023).
	SnowflakeNode int64
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TemplatesDir    string
	StaticDir       string
}

type DatabaseConfig struct {
	DSN            string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	MigrationsPath string
}

// RedisConfig is optional; an empty Addr selects the in-process cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	SessionSecret string
	// JWTSecret verifies HS256 tokens issued by the hosted auth provider.
	JWTSecret string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from environment variables. Callers load .env first.
func Load() (*Config, error) {
	env := getEnv("ENV", "development")
	cfg := &Config{
		Env:     env,
		SiteURL: getEnv("SITE_URL", "http://localhost:8080"),
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TemplatesDir:    getEnv("TEMPLATES_DIR", "./web/templates"),
			StaticDir:       getEnv("STATIC_DIR", "./web/static"),
		},
		Database: DatabaseConfig{
			DSN:            getEnv("DATABASE_URL", defaultDSN),
			MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:    getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			SessionSecret: getEnv("SESSION_SECRET", "secret_key_change_me"),
			JWTSecret:     os.Getenv("AUTH_JWT_SECRET"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: env == "development",
		},
		SnowflakeNode: int64(getIntEnv("SNOWFLAKE_NODE", 1)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.SnowflakeNode < 0 || c.SnowflakeNode > 1023 {
		return fmt.Errorf("SNOWFLAKE_NODE must be between 0 and 1023, got %d", c.SnowflakeNode)
	}
	if c.IsProduction() {
		if c.Auth.SessionSecret == "" || c.Auth.SessionSecret == "secret_key_change_me" {
			return fmt.Errorf("SESSION_SECRET must be set in production")
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET must be set in production")
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
