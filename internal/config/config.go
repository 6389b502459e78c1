package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server settings read from the environment
type Config struct {
	Port               string
	LLMBaseURL         string
	LLMModel           string
	LLMAPIKey          string
	LLMTimeout         time.Duration
	DatabaseURL        string // empty selects the in-memory store
	SeedFile           string // empty selects the embedded seed
	NewsFeedURL        string
	RateLimitPerMinute int
	CORSOrigins        []string // empty allows any origin
}

// Load reads .env (when present) and then the process environment
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		LLMBaseURL:  strings.TrimRight(getEnv("LLM_BASE_URL", "http://localhost:11434/v1"), "/"),
		LLMModel:    getEnv("LLM_MODEL", "llama3.1:8b"),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SeedFile:    getEnv("SEED_FILE", ""),
		NewsFeedURL: getEnv("NEWS_FEED_URL", ""),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "")),
	}

	var err error
	if cfg.LLMTimeout, err = parseTimeout(getEnv("LLM_TIMEOUT", "60s")); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "100")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings for values the server cannot run with
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if !strings.HasPrefix(c.LLMBaseURL, "http://") && !strings.HasPrefix(c.LLMBaseURL, "https://") {
		return fmt.Errorf("LLM_BASE_URL must be an http(s) URL, got %q", c.LLMBaseURL)
	}
	if c.LLMTimeout <= 0 {
		return errors.New("LLM_TIMEOUT must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return nil
}

// parseTimeout accepts a Go duration ("90s") or a bare number of seconds
func parseTimeout(value string) (time.Duration, error) {
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid LLM_TIMEOUT %q: %w", value, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
