package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Addr != ":3000" {
		t.Errorf("expected default addr :3000, got %q", cfg.Addr)
	}
	if cfg.SessionTTLSeconds != 86400 {
		t.Errorf("expected default session TTL 86400, got %d", cfg.SessionTTLSeconds)
	}
	if cfg.Google.Enabled() || cfg.Facebook.Enabled() {
		t.Error("providers should be disabled without credentials")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
addr: ":8080"
signing_secret: "file-secret"
bcrypt_cost: 12
google:
  client_id: "gid"
  client_secret: "gsecret"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("expected addr :8080, got %q", cfg.Addr)
	}
	if cfg.SigningSecret != "file-secret" {
		t.Errorf("expected signing secret from file, got %q", cfg.SigningSecret)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("expected bcrypt cost 12, got %d", cfg.BcryptCost)
	}
	if !cfg.Google.Enabled() || cfg.Google.ClientID != "gid" {
		t.Errorf("expected google provider enabled, got %+v", cfg.Google)
	}
	// File values do not disturb untouched defaults.
	if cfg.DatabasePath != "secretsd.db" {
		t.Errorf("expected default database path, got %q", cfg.DatabasePath)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(`addr: ":8080"`), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv("SECRETSD_ADDR", ":9090")
	t.Setenv("SECRETSD_SIGNING_SECRET", "env-secret")
	t.Setenv("SECRETSD_GOOGLE__CLIENT_ID", "env-gid")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("expected env addr to win, got %q", cfg.Addr)
	}
	if cfg.SigningSecret != "env-secret" {
		t.Errorf("expected env signing secret, got %q", cfg.SigningSecret)
	}
	if cfg.Google.ClientID != "env-gid" {
		t.Errorf("expected env google client id, got %q", cfg.Google.ClientID)
	}
}
