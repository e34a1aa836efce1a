package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mcoot/tablesync/internal/api"
)

// Config holds CLI configuration
type Config struct {
	ServerURL string
	HubURL    string
	Token     string
	TokenFile string

	Storage  string
	RedisURL string
	StoreKey string

	Listen   string
	APIToken string

	Output    string
	LogFormat string
	Verbose   bool
}

// DefaultConfig returns a Config with values from the environment
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("TSYNC_SERVER", "http://localhost:5000"),
		HubURL:    getEnvOrDefault("TSYNC_HUB", "ws://localhost:5000/gamehub"),
		Token:     os.Getenv("TSYNC_TOKEN"),
		TokenFile: getEnvOrDefault("TSYNC_TOKEN_FILE", defaultTokenFile()),
		Storage:   getEnvOrDefault("TSYNC_STORAGE", "memory"),
		RedisURL:  getEnvOrDefault("TSYNC_REDIS_URL", "redis://localhost:6379"),
		StoreKey:  os.Getenv("TSYNC_STORE_KEY"),
		Listen:    getEnvOrDefault("TSYNC_LISTEN", api.DefaultServerConfig().Addr),
		APIToken:  os.Getenv("TSYNC_API_TOKEN"),
		Output:    "text",
		LogFormat: "text",
		Verbose:   false,
	}
}

// LoadToken loads the token from file if not already set
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}

	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No token file is fine
		}
		return err
	}

	c.Token = strings.TrimSpace(string(data))
	return nil
}

// SaveToken saves the token to the token file
func (c *Config) SaveToken(token string) error {
	c.Token = token

	dir := filepath.Dir(c.TokenFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	return os.WriteFile(c.TokenFile, []byte(token), 0600)
}

// ClearToken removes the token file
func (c *Config) ClearToken() error {
	c.Token = ""
	if err := os.Remove(c.TokenFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tsync/token"
	}
	return filepath.Join(home, ".tsync", "token")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
