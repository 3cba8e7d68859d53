package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/classify"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
)

// Config represents application configuration
type Config struct {
	Server  ServerConfig  `json:"server"`
	GLPI    GLPIConfig    `json:"glpi"`
	Levels  LevelsConfig  `json:"levels"`
	Cache   CacheConfig   `json:"cache"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Environment  string        `json:"environment"`
	CORSOrigins  []string      `json:"cors_origins"`
}

// GLPIConfig represents the external GLPI API connection
type GLPIConfig struct {
	BaseURL     string        `json:"base_url"`
	AppToken    string        `json:"-"`
	UserToken   string        `json:"-"`
	Timeout     time.Duration `json:"timeout"`
	MaxInFlight int           `json:"max_in_flight"`
}

// LevelsConfig represents the service-hierarchy configuration: group
// ids per level, profile fallbacks and the static name table
type LevelsConfig struct {
	Groups        map[domain.ServiceLevel]int `json:"groups"`
	Profiles      map[int]domain.ServiceLevel `json:"profiles"`
	NameTablePath string                      `json:"name_table_path"`
}

// CacheConfig represents the metrics cache
type CacheConfig struct {
	Backend         string        `json:"backend"` // memory, redis
	TTL             time.Duration `json:"ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
	RedisURL        string        `json:"redis_url"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json, text
}

// Load loads configuration from environment variables and defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8000"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
			CORSOrigins:  getEnvSlice("CORS_ORIGINS", []string{"*"}),
		},
		GLPI: GLPIConfig{
			BaseURL:     getEnv("GLPI_URL", ""),
			AppToken:    getEnv("GLPI_APP_TOKEN", ""),
			UserToken:   getEnv("GLPI_USER_TOKEN", ""),
			Timeout:     getEnvDuration("GLPI_TIMEOUT", 30*time.Second),
			MaxInFlight: getEnvInt("GLPI_MAX_IN_FLIGHT", 6),
		},
		Levels: LevelsConfig{
			Groups: map[domain.ServiceLevel]int{
				domain.LevelN1: getEnvInt("GLPI_GROUP_N1", 0),
				domain.LevelN2: getEnvInt("GLPI_GROUP_N2", 0),
				domain.LevelN3: getEnvInt("GLPI_GROUP_N3", 0),
				domain.LevelN4: getEnvInt("GLPI_GROUP_N4", 0),
			},
			Profiles:      parseProfileLevels(getEnv("GLPI_PROFILE_LEVELS", "")),
			NameTablePath: getEnv("NAME_TABLE_PATH", ""),
		},
		Cache: CacheConfig{
			Backend:         getEnv("CACHE_BACKEND", "memory"),
			TTL:             getEnvDuration("CACHE_TTL", 30*time.Second),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", time.Minute),
			RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// unset groups mean "level not tracked", drop them
	for level, id := range cfg.Levels.Groups {
		if id == 0 {
			delete(cfg.Levels.Groups, level)
		}
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.GLPI.BaseURL == "" {
		return fmt.Errorf("GLPI_URL is required")
	}
	if c.GLPI.AppToken == "" || c.GLPI.UserToken == "" {
		return fmt.Errorf("GLPI_APP_TOKEN and GLPI_USER_TOKEN are required")
	}
	if c.GLPI.MaxInFlight <= 0 {
		return fmt.Errorf("GLPI_MAX_IN_FLIGHT must be positive")
	}
	if len(c.Levels.Groups) == 0 {
		return fmt.Errorf("at least one of GLPI_GROUP_N1..N4 is required")
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	return nil
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// LoadNameTable reads the static name -> level table from the
// configured JSON file. No path means an empty table, which disables
// the name fallback strategy but is not an error.
func (c *Config) LoadNameTable() (*classify.NameLevelTable, error) {
	if c.Levels.NameTablePath == "" {
		return classify.NewNameLevelTable(nil), nil
	}

	raw, err := os.ReadFile(c.Levels.NameTablePath)
	if err != nil {
		return nil, fmt.Errorf("read name table: %w", err)
	}

	var entries []classify.NameEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse name table: %w", err)
	}
	return classify.NewNameLevelTable(entries), nil
}

// parseProfileLevels parses "6=N2,7=N3" into a profile -> level map.
// Malformed entries are skipped.
func parseProfileLevels(raw string) map[int]domain.ServiceLevel {
	out := make(map[int]domain.ServiceLevel)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		level, err := domain.ParseLevel(parts[1])
		if err != nil {
			continue
		}
		out[id] = level
	}
	return out
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
