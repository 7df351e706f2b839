package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/drheny/cab-sub000/internal/models"
)

// Config holds all configuration for the sync core.
type Config struct {
	Port string // local status server port
	Env  string

	BackendURL string // clinic backend origin, e.g. https://cabinet.example.com
	WSPath     string // channel endpoint, resolved against BackendURL

	UserRole models.Role
	UserName string

	CachePath string // sqlite snapshot cache; empty disables caching

	RequestTimeout time.Duration // bound on every REST round trip
	ReconnectDelay time.Duration // delay before the single reconnect attempt
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8090"),
		Env:            getEnv("ENV", "development"),
		BackendURL:     getEnv("CAB_BACKEND_URL", "http://localhost:8000"),
		WSPath:         getEnv("CAB_WS_PATH", "/api/ws"),
		UserRole:       models.Role(getEnv("CAB_USER_ROLE", string(models.RoleDoctor))),
		UserName:       getEnv("CAB_USER_NAME", "Docteur"),
		CachePath:      os.Getenv("CAB_CACHE_PATH"),
		RequestTimeout: getDuration("CAB_REQUEST_TIMEOUT", 15*time.Second),
		ReconnectDelay: getDuration("CAB_RECONNECT_DELAY", 3*time.Second),
	}

	if !cfg.UserRole.Valid() {
		panic("CAB_USER_ROLE must be doctor or secretary")
	}

	// In production, require an explicit backend
	if cfg.Env == "production" && os.Getenv("CAB_BACKEND_URL") == "" {
		panic("CAB_BACKEND_URL is required in production")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Identity returns the local user identity derived from config.
func (c *Config) Identity() models.Identity {
	return models.Identity{Role: c.UserRole, Name: c.UserName}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare integers are taken as seconds
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
