// Package config loads application configuration from environment variables.
// All variables use the TEACHMATE_ prefix. A .env file, when present, is read
// first and never overrides variables already set in the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server         ServerConfig
	Backend        BackendConfig
	Database       DatabaseConfig
	Cache          CacheConfig
	AI             AIConfig
	Auth           AuthConfig
	Planner        PlannerConfig
	Report         ReportConfig
	Retention      RetentionConfig
	Log            LogConfig
	CurriculumPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// BackendConfig points at the remote TeachMate REST API.
type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps
// every store in memory.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings for reference data.
type CacheConfig struct {
	URL string
	TTL time.Duration
}

// AIConfig holds configuration for the assistant chat providers.
type AIConfig struct {
	OpenAI       OpenAIConfig
	DeepSeek     DeepSeekConfig
	Ollama       OllamaConfig
	TokenBudget  int64 // per teacher, 0 means unlimited
	DefaultModel string
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey string
}

// DeepSeekConfig holds DeepSeek provider settings (OpenAI-compatible).
type DeepSeekConfig struct {
	APIKey string
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
}

// AuthConfig holds credential storage settings.
type AuthConfig struct {
	SealSecret   string
	CookieSecret string // signs the session cookie, defaults to SealSecret
	DefaultTheme string // "light" or "dark"
	TokenTTL     int    // days, used when the token carries no exp claim
}

// PlannerConfig holds lesson-plan form defaults.
type PlannerConfig struct {
	DefaultSessions int
	DefaultDuration int // minutes
	MaxSessions     int
}

// ReportConfig holds parent-report settings.
type ReportConfig struct {
	TemplatesPath string
}

// RetentionConfig controls the nightly purge of workflow events and ended
// assistant conversations. Days of 0 keeps everything.
type RetentionConfig struct {
	Days     int
	Schedule string // cron expression, server local time
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with TEACHMATE_ prefix.
func Load() (*Config, error) {
	envFile := envStr("TEACHMATE_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("TEACHMATE_SERVER_PORT", 8080),
			Host: envStr("TEACHMATE_SERVER_HOST", "0.0.0.0"),
		},
		Backend: BackendConfig{
			URL:     strings.TrimRight(envStr("TEACHMATE_BACKEND_URL", "http://localhost:3000"), "/"),
			Timeout: envDuration("TEACHMATE_BACKEND_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:      envStr("TEACHMATE_DATABASE_URL", ""),
			MaxConns: envInt("TEACHMATE_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("TEACHMATE_DATABASE_MIN_CONNS", 2),
		},
		Cache: CacheConfig{
			URL: envStr("TEACHMATE_CACHE_URL", ""),
			TTL: envDuration("TEACHMATE_CACHE_TTL", 30*time.Minute),
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				APIKey: envStr("TEACHMATE_AI_OPENAI_API_KEY", ""),
			},
			DeepSeek: DeepSeekConfig{
				APIKey: envStr("TEACHMATE_AI_DEEPSEEK_API_KEY", ""),
			},
			Ollama: OllamaConfig{
				Enabled: envBool("TEACHMATE_AI_OLLAMA_ENABLED", false),
				URL:     envStr("TEACHMATE_AI_OLLAMA_URL", "http://localhost:11434"),
			},
			TokenBudget:  int64(envInt("TEACHMATE_AI_TOKEN_BUDGET", 0)),
			DefaultModel: envStr("TEACHMATE_AI_MODEL", ""),
		},
		Auth: AuthConfig{
			SealSecret:   envStr("TEACHMATE_AUTH_SEAL_SECRET", "change-me-in-production"),
			CookieSecret: envStr("TEACHMATE_AUTH_COOKIE_SECRET", ""),
			DefaultTheme: envStr("TEACHMATE_AUTH_DEFAULT_THEME", "dark"),
			TokenTTL:     envInt("TEACHMATE_AUTH_TOKEN_TTL", 7),
		},
		Planner: PlannerConfig{
			DefaultSessions: envInt("TEACHMATE_PLANNER_DEFAULT_SESSIONS", 3),
			DefaultDuration: envInt("TEACHMATE_PLANNER_DEFAULT_DURATION", 45),
			MaxSessions:     envInt("TEACHMATE_PLANNER_MAX_SESSIONS", 20),
		},
		Report: ReportConfig{
			TemplatesPath: envStr("TEACHMATE_REPORT_TEMPLATES_PATH", "./templates/reports"),
		},
		Retention: RetentionConfig{
			Days:     envInt("TEACHMATE_RETENTION_DAYS", 90),
			Schedule: envStr("TEACHMATE_RETENTION_SCHEDULE", "15 2 * * *"),
		},
		Log: LogConfig{
			Level:  envStr("TEACHMATE_LOG_LEVEL", "info"),
			Format: envStr("TEACHMATE_LOG_FORMAT", "json"),
		},
		CurriculumPath: envStr("TEACHMATE_CURRICULUM_PATH", ""),
	}

	if cfg.Auth.CookieSecret == "" {
		cfg.Auth.CookieSecret = cfg.Auth.SealSecret
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Backend.URL == "" && c.CurriculumPath == "" {
		return fmt.Errorf("TEACHMATE_BACKEND_URL or TEACHMATE_CURRICULUM_PATH is required")
	}

	if c.Auth.DefaultTheme != "light" && c.Auth.DefaultTheme != "dark" {
		return fmt.Errorf("TEACHMATE_AUTH_DEFAULT_THEME must be 'light' or 'dark', got %q", c.Auth.DefaultTheme)
	}

	if c.Planner.MaxSessions < 1 {
		return fmt.Errorf("TEACHMATE_PLANNER_MAX_SESSIONS must be at least 1, got %d", c.Planner.MaxSessions)
	}
	if c.Planner.DefaultSessions < 1 || c.Planner.DefaultSessions > c.Planner.MaxSessions {
		return fmt.Errorf("TEACHMATE_PLANNER_DEFAULT_SESSIONS must be within [1, %d], got %d",
			c.Planner.MaxSessions, c.Planner.DefaultSessions)
	}

	if c.Retention.Days < 0 {
		return fmt.Errorf("TEACHMATE_RETENTION_DAYS must not be negative, got %d", c.Retention.Days)
	}

	if len(c.Auth.SealSecret) < 16 {
		return fmt.Errorf("TEACHMATE_AUTH_SEAL_SECRET must be at least 16 characters")
	}

	return nil
}

// HasAIProvider returns true if at least one assistant provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenAI.APIKey != "" ||
		c.AI.DeepSeek.APIKey != "" ||
		c.AI.Ollama.Enabled
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
