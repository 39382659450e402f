package main

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full secretsd configuration.  Values come from defaults,
// then an optional YAML file, then SECRETSD_* environment variables with
// double underscores marking nesting (SECRETSD_GOOGLE__CLIENT_ID ->
// google.client_id).
type Config struct {
	Addr         string `koanf:"addr"`
	BaseURL      string `koanf:"base_url"`
	DatabasePath string `koanf:"database_path"`

	// SigningSecret signs the stateless auth token cookie.
	SigningSecret string `koanf:"signing_secret"`

	// BcryptCost for password hashing.  0 means the library default.
	BcryptCost int `koanf:"bcrypt_cost"`

	// SessionTTLSeconds bounds both the server-side session and the
	// signed token.
	SessionTTLSeconds int `koanf:"session_ttl_seconds"`

	Google   ProviderConfig `koanf:"google"`
	Facebook ProviderConfig `koanf:"facebook"`
}

// ProviderConfig holds one OAuth2 provider's credentials.  A provider
// with no client ID is not mounted.
type ProviderConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	CallbackURL  string `koanf:"callback_url"`
}

func (p ProviderConfig) Enabled() bool {
	return p.ClientID != ""
}

// LoadConfig reads configuration from the given YAML file (if non-empty)
// and the environment.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]any{
		"addr":                ":3000",
		"base_url":            "http://localhost:3000",
		"database_path":       "secretsd.db",
		"session_ttl_seconds": 86400,
	}
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider("SECRETSD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SECRETSD_")), "__", ".", -1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}
