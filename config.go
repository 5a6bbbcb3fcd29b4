package crosspost

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime options sourced from the environment.
type Config struct {
	DatabasePath string
	BaseURL      string
	FrontendURL  string
	SigningKey   string

	LinkedInClientID     string
	LinkedInClientSecret string

	BlueskyServiceURL string

	StateTTL       time.Duration
	RequestTimeout time.Duration
	TokenTTLHours  int
}

// LoadConfig reads configuration from environment variables, loading a .env
// file first when one exists.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	signingKey := os.Getenv("SIGNING_KEY")
	if signingKey == "" {
		return nil, fmt.Errorf("SIGNING_KEY is required")
	}

	cfg := &Config{
		DatabasePath:         envOrDefault("DATABASE_PATH", "crosspost.db"),
		BaseURL:              envOrDefault("BASE_URL", "http://localhost:3001"),
		FrontendURL:          envOrDefault("FRONTEND_URL", "http://localhost:5173"),
		SigningKey:           signingKey,
		LinkedInClientID:     os.Getenv("LINKEDIN_CLIENT_ID"),
		LinkedInClientSecret: os.Getenv("LINKEDIN_CLIENT_SECRET"),
		BlueskyServiceURL:    envOrDefault("BLUESKY_SERVICE_URL", "https://bsky.social"),
		StateTTL:             10 * time.Minute,
		RequestTimeout:       30 * time.Second,
		TokenTTLHours:        envIntOrDefault("TOKEN_TTL_HOURS", 24*7),
	}

	if cfg.LinkedInClientID == "" || cfg.LinkedInClientSecret == "" {
		fmt.Println("Warning: LINKEDIN_CLIENT_ID or LINKEDIN_CLIENT_SECRET not set, LinkedIn connect will not work")
	}

	return cfg, nil
}

// LinkedInCallbackURL is the redirect URI registered with LinkedIn.
func (c *Config) LinkedInCallbackURL() string {
	return c.BaseURL + "/settings/linkedin/callback"
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
