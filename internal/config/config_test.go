package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8097" {
		t.Errorf("http.addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Auth.TokenTTL != 60*time.Minute {
		t.Errorf("auth.token_ttl = %v", cfg.Auth.TokenTTL)
	}
	if cfg.Service.Domain != "localhost" {
		t.Errorf("service.domain = %q", cfg.Service.Domain)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	payload := `
http:
  addr: ":9001"
service:
  key: "sk-prod"
  domain: "example.com"
auth:
  token_ttl: "30m"
`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9001" {
		t.Errorf("http.addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Service.Key != "sk-prod" || cfg.Service.Domain != "example.com" {
		t.Errorf("service section = %+v", cfg.Service)
	}
	if cfg.Auth.TokenTTL != 30*time.Minute {
		t.Errorf("auth.token_ttl = %v", cfg.Auth.TokenTTL)
	}
}
