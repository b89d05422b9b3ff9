package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the client configuration
type Config struct {
	API struct {
		BaseURL        string  `koanf:"base_url"`
		TimeoutSeconds int     `koanf:"timeout_seconds"`
		RateLimit      float64 `koanf:"rate_limit"` // requests per second, 0 disables
	} `koanf:"api"`

	Session struct {
		StateFile string `koanf:"state_file"`
	} `koanf:"session"`

	Comments struct {
		PageSize int `koanf:"page_size"`
	} `koanf:"comments"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

// Timeout returns the HTTP timeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// LoadConfig loads the configuration from a file, layered over defaults
// and under TRAVELO_-prefixed environment variables
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"api.base_url":        "http://localhost:3000",
		"api.timeout_seconds": 15,
		"api.rate_limit":      0,
		"session.state_file":  defaultStateFile(),
		"comments.page_size":  5,
		"log.level":           "warn",
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try default locations
		defaultPaths := []string{"./travelo.toml", "$HOME/.travelo.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix TRAVELO_
	k.Load(env.Provider("TRAVELO_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TRAVELO_")), "_", ".", 1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# Travelo client configuration

[api]
base_url = "http://localhost:3000"
timeout_seconds = 15
rate_limit = 0

[session]
# Where tokens and the cached profile are persisted between runs.
# state_file = "~/.travelo/session.json"

[comments]
page_size = 5

[log]
level = "warn"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.API.BaseURL == "" {
		return fmt.Errorf("api base_url is required")
	}
	if !strings.HasPrefix(config.API.BaseURL, "http://") && !strings.HasPrefix(config.API.BaseURL, "https://") {
		return fmt.Errorf("api base_url must be an http or https URL")
	}
	if config.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api timeout_seconds must be positive")
	}
	if config.Comments.PageSize <= 0 {
		return fmt.Errorf("comments page_size must be positive")
	}
	if config.Session.StateFile == "" {
		return fmt.Errorf("session state_file is required")
	}
	return nil
}

func defaultStateFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".travelo-session.json"
	}
	return filepath.Join(home, ".travelo", "session.json")
}
