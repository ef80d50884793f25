// Package config loads client configuration from an optional YAML file
// with environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the client needs to talk to a blog service and
// persist its session.
type Config struct {
	// APIBaseURL is the root of the blog service's REST API.
	APIBaseURL string

	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration

	// SessionTTL bounds each session from sign-in.
	SessionTTL time.Duration

	// StateDir is where the persisted session lives.
	StateDir string

	// StateSecret keys the HMAC over persisted state. Dev default is fine
	// locally; set QUILL_STATE_SECRET for anything shared.
	StateSecret string
}

// Default returns the local-dev configuration.
func Default() Config {
	return Config{
		APIBaseURL:     "http://localhost:3000",
		RequestTimeout: 15 * time.Second,
		SessionTTL:     time.Hour,
		StateDir:       ".quill",
		StateSecret:    "quill-dev-secret",
	}
}

// fileConfig is the YAML shape; durations are strings ("15s", "1h") and
// parsed after decoding.
type fileConfig struct {
	APIBaseURL     string `yaml:"api_base_url"`
	RequestTimeout string `yaml:"request_timeout"`
	SessionTTL     string `yaml:"session_ttl"`
	StateDir       string `yaml:"state_dir"`
	StateSecret    string `yaml:"state_secret"`
}

// Load builds the configuration: defaults, then the YAML file at path (if
// it exists), then environment variables. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Optional file; fall through to env.
		case err != nil:
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		default:
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return Config{}, fmt.Errorf("parse config %q: %w", path, err)
			}
			if err := fc.apply(&cfg); err != nil {
				return Config{}, fmt.Errorf("config %q: %w", path, err)
			}
		}
	}

	if v := os.Getenv("QUILL_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("QUILL_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("QUILL_STATE_SECRET"); v != "" {
		cfg.StateSecret = v
	}
	if v := os.Getenv("QUILL_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse QUILL_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if v := os.Getenv("QUILL_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse QUILL_SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}

	if cfg.APIBaseURL == "" {
		return Config{}, errors.New("api_base_url is required")
	}
	return cfg, nil
}

func (fc fileConfig) apply(cfg *Config) error {
	if fc.APIBaseURL != "" {
		cfg.APIBaseURL = fc.APIBaseURL
	}
	if fc.StateDir != "" {
		cfg.StateDir = fc.StateDir
	}
	if fc.StateSecret != "" {
		cfg.StateSecret = fc.StateSecret
	}
	if fc.RequestTimeout != "" {
		d, err := time.ParseDuration(fc.RequestTimeout)
		if err != nil {
			return fmt.Errorf("parse request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if fc.SessionTTL != "" {
		d, err := time.ParseDuration(fc.SessionTTL)
		if err != nil {
			return fmt.Errorf("parse session_ttl: %w", err)
		}
		cfg.SessionTTL = d
	}
	return nil
}
