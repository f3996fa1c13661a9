package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Source.Type != SourceDir {
		t.Errorf("expected default source %q, got %q", SourceDir, cfg.Source.Type)
	}
	if cfg.Postgres.Enabled() {
		t.Error("postgres should be disabled without a host")
	}
	if cfg.Kafka.Enabled() {
		t.Error("kafka should be disabled without brokers")
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
server:
  port: 9000
source:
  type: archive
  archiveUrl: https://example.com/archive.zip
refresh:
  interval: 6h
search:
  maxResults: 50
  defaultLimit: 10
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PI_SERVER_PORT", "9100")
	t.Setenv("PI_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("env override not applied, port=%d", cfg.Server.Port)
	}
	if cfg.Refresh.Interval != 6*time.Hour {
		t.Errorf("expected 6h interval, got %v", cfg.Refresh.Interval)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("expected 2 brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Search.DefaultLimit != 10 {
		t.Errorf("expected default limit 10, got %d", cfg.Search.DefaultLimit)
	}
}

func TestValidateRejectsBadSource(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown type", func(c *Config) { c.Source.Type = "ftp" }},
		{"archive without url", func(c *Config) { c.Source.Type = SourceArchive }},
		{"postgres without host", func(c *Config) { c.Source.Type = SourcePostgres }},
		{"limit above max", func(c *Config) { c.Search.DefaultLimit = 500 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PI_SOURCE_DIR=/srv/companies\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PI_SOURCE_DIR", "")
	os.Unsetenv("PI_SOURCE_DIR")

	loaded, err := LoadEnvFile(path)
	if err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if loaded != path {
		t.Errorf("loaded = %q, want %q", loaded, path)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Source.Dir != "/srv/companies" {
		t.Errorf("source dir = %q", cfg.Source.Dir)
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	t.Setenv(EnvFileVar, "")
	loaded, err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env"))
	if err != nil || loaded != "" {
		t.Errorf("missing default file: loaded=%q err=%v", loaded, err)
	}

	t.Setenv(EnvFileVar, filepath.Join(t.TempDir(), "absent.env"))
	if _, err := LoadEnvFile(""); err == nil {
		t.Error("explicit missing file must fail")
	}
}
