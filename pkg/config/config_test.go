package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.TotalPages != 10098 {
		t.Errorf("expected default total pages 10098, got %d", cfg.TotalPages)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected default workers 4, got %d", cfg.Workers)
	}
	if cfg.OutputDir != "pages" {
		t.Errorf("expected default output dir pages, got %q", cfg.OutputDir)
	}
	if cfg.RetryDelay != time.Second {
		t.Errorf("expected default retry delay 1s, got %v", cfg.RetryDelay)
	}
	if cfg.ProgressInterval != 100*time.Millisecond {
		t.Errorf("expected default progress interval 100ms, got %v", cfg.ProgressInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
base_url: http://localhost:8080/index.php
api_key: secret
user_id: "42"
total_pages: 500
workers: 8
output_dir: /tmp/tags
retry_delay: 250ms
request_timeout: 5s
log_pretty: true
redis_addr: localhost:6379
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.BaseURL != "http://localhost:8080/index.php" {
		t.Errorf("unexpected base url %q", cfg.BaseURL)
	}
	if cfg.APIKey != "secret" || cfg.UserID != "42" {
		t.Errorf("unexpected credentials %q/%q", cfg.APIKey, cfg.UserID)
	}
	if cfg.TotalPages != 500 {
		t.Errorf("expected total pages 500, got %d", cfg.TotalPages)
	}
	if cfg.Workers != 8 {
		t.Errorf("expected workers 8, got %d", cfg.Workers)
	}
	if cfg.OutputDir != "/tmp/tags" {
		t.Errorf("expected output dir /tmp/tags, got %q", cfg.OutputDir)
	}
	if cfg.RetryDelay != 250*time.Millisecond {
		t.Errorf("expected retry delay 250ms, got %v", cfg.RetryDelay)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("expected request timeout 5s, got %v", cfg.RequestTimeout)
	}
	if !cfg.LogPretty {
		t.Error("expected log_pretty true")
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("expected redis addr, got %q", cfg.RedisAddr)
	}
	// Unset keys keep their defaults.
	if cfg.ProgressInterval != 100*time.Millisecond {
		t.Errorf("expected default progress interval, got %v", cfg.ProgressInterval)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := LoadFromFile(filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("retry_delay: soon\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("expected error for invalid duration")
	}

	broken := filepath.Join(tmpDir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("workers: [1, 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(broken); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TAGPAGES_WORKERS", "16")
	t.Setenv("TAGPAGES_TOTAL_PAGES", "20")
	t.Setenv("TAGPAGES_API_KEY", "envkey")
	t.Setenv("TAGPAGES_RETRY_DELAY", "10ms")
	t.Setenv("TAGPAGES_NO_COLOR", "true")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Workers != 16 {
		t.Errorf("expected workers 16, got %d", cfg.Workers)
	}
	if cfg.TotalPages != 20 {
		t.Errorf("expected total pages 20, got %d", cfg.TotalPages)
	}
	if cfg.APIKey != "envkey" {
		t.Errorf("expected api key envkey, got %q", cfg.APIKey)
	}
	if cfg.RetryDelay != 10*time.Millisecond {
		t.Errorf("expected retry delay 10ms, got %v", cfg.RetryDelay)
	}
	if !cfg.NoColor {
		t.Error("expected no_color true")
	}
}

func TestLoadFromEnvErrors(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"TAGPAGES_WORKERS", "many"},
		{"TAGPAGES_REQUEST_TIMEOUT", "forever"},
		{"TAGPAGES_LOG_PRETTY", "sometimes"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := Default()
			if err := cfg.LoadFromEnv(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env")
	if err := os.WriteFile(envPath, []byte("TAGPAGES_USER_ID=dotenv-user\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TAGPAGES_USER_ID") })

	if err := LoadDotEnv(envPath, filepath.Join(tmpDir, "absent.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.UserID != "dotenv-user" {
		t.Errorf("expected user id from .env, got %q", cfg.UserID)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"empty base url", func(c *Config) { c.BaseURL = "" }, true},
		{"bad scheme", func(c *Config) { c.BaseURL = "ftp://example.com" }, true},
		{"zero pages", func(c *Config) { c.TotalPages = 0 }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"negative workers", func(c *Config) { c.Workers = -2 }, true},
		{"empty output dir", func(c *Config) { c.OutputDir = " " }, true},
		{"negative retry delay", func(c *Config) { c.RetryDelay = -time.Second }, true},
		{"zero retry delay", func(c *Config) { c.RetryDelay = 0 }, false},
		{"zero progress interval", func(c *Config) { c.ProgressInterval = 0 }, true},
		{"more workers than pages", func(c *Config) { c.TotalPages = 2; c.Workers = 8 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
