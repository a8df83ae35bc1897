// Package config loads the server configuration from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	AI       AIConfig
	App      AppConfig
}

type ServerConfig struct {
	Port        string
	BaseURL     string
	CORSOrigins []string
}

// DatabaseConfig selects the gorm driver. DSN format depends on the driver.
type DatabaseConfig struct {
	Driver     string // mysql, postgres or sqlite
	DSN        string
	MaxRetries int
}

type AuthConfig struct {
	JWTSecret         string
	TokenTTL          time.Duration
	AllowRegistration bool
}

// RedisConfig is optional; an empty Addr disables the product cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AIConfig struct {
	GeminiAPIKey string
	Model        string
}

type AppConfig struct {
	Environment string
	LogLevel    string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	// It's okay if .env doesn't exist in production
	envErr := godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
			CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "mysql")),
			DSN:        os.Getenv("DB_DSN"),
			MaxRetries: getEnvInt("DB_MAX_RETRIES", 5),
		},
		Auth: AuthConfig{
			JWTSecret:         os.Getenv("JWT_SECRET"),
			TokenTTL:          time.Duration(getEnvInt("JWT_TTL_HOURS", 24)) * time.Hour,
			AllowRegistration: getEnvBool("ALLOW_REGISTRATION", false),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_URL"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		AI: AIConfig{
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			Model:        getEnv("GEMINI_MODEL", "gemini-2.0-flash-001"),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if envErr != nil && !os.IsNotExist(envErr) {
		return cfg, fmt.Errorf("read .env: %w", envErr)
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		c.Auth.JWTSecret = "dev_secret_key_for_pos_system"
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL_HOURS must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvBool accepts "1", "true", "yes" as true.
func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value == "1" || value == "true" || value == "yes"
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
