package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
listen: ":9090"
database: "file:test.db"
jwt:
  secret: "s3cret"
  expiry: 2h
gateway:
  base_url: "https://gateway.example"
  api_key: "gw-key"
  webhook_secret: "hook-secret"
`)
	if errWrite := os.WriteFile(path, content, 0600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.Listen != ":9090" {
		t.Fatalf("listen: got %s", cfg.Listen)
	}
	if cfg.JWT.Expiry != 2*time.Hour {
		t.Fatalf("jwt expiry: got %v", cfg.JWT.Expiry)
	}
	if cfg.Gateway.WebhookSecret != "hook-secret" {
		t.Fatalf("webhook secret: got %s", cfg.Gateway.WebhookSecret)
	}
	if cfg.Redis.TTL != 30*time.Second {
		t.Fatalf("redis ttl default: got %v", cfg.Redis.TTL)
	}
}

func TestLoadRequiresDatabaseAndSecret(t *testing.T) {
	t.Setenv("CARTAO_DATABASE_DSN", "")
	t.Setenv("CARTAO_JWT_SECRET", "")
	if _, errLoad := Load(""); errLoad == nil {
		t.Fatal("expected error for missing dsn")
	}

	t.Setenv("CARTAO_DATABASE_DSN", ":memory:")
	if _, errLoad := Load(""); errLoad == nil {
		t.Fatal("expected error for missing jwt secret")
	}

	t.Setenv("CARTAO_JWT_SECRET", "s")
	cfg, errLoad := Load("")
	if errLoad != nil {
		t.Fatalf("load from env: %v", errLoad)
	}
	if cfg.Database != ":memory:" {
		t.Fatalf("dsn override: got %s", cfg.Database)
	}
}
