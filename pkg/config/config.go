// Package config loads tagpages settings from defaults, a YAML file, the
// environment and a .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "TAGPAGES_"

// Config holds the settings of one run.
type Config struct {
	BaseURL          string        `yaml:"base_url"`
	APIKey           string        `yaml:"api_key"`
	UserID           string        `yaml:"user_id"`
	TotalPages       int           `yaml:"total_pages"`
	Workers          int           `yaml:"workers"`
	OutputDir        string        `yaml:"output_dir"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	UserAgent        string        `yaml:"user_agent"`
	LogLevel         string        `yaml:"log_level"`
	LogPretty        bool          `yaml:"log_pretty"`
	MetricsAddr      string        `yaml:"metrics_addr"`
	RedisAddr        string        `yaml:"redis_addr"`
	NoColor          bool          `yaml:"no_color"`
}

// Default returns the configuration of the stock tag listing download.
func Default() Config {
	return Config{
		BaseURL:          "https://gelbooru.com/index.php",
		TotalPages:       10098,
		Workers:          4,
		OutputDir:        "pages",
		RetryDelay:       time.Second,
		RequestTimeout:   30 * time.Second,
		ProgressInterval: 100 * time.Millisecond,
		UserAgent:        "tagpages/1.0",
		LogLevel:         "info",
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	BaseURL          string `yaml:"base_url"`
	APIKey           string `yaml:"api_key"`
	UserID           string `yaml:"user_id"`
	TotalPages       int    `yaml:"total_pages"`
	Workers          int    `yaml:"workers"`
	OutputDir        string `yaml:"output_dir"`
	RetryDelay       string `yaml:"retry_delay"`
	RequestTimeout   string `yaml:"request_timeout"`
	ProgressInterval string `yaml:"progress_interval"`
	UserAgent        string `yaml:"user_agent"`
	LogLevel         string `yaml:"log_level"`
	LogPretty        bool   `yaml:"log_pretty"`
	MetricsAddr      string `yaml:"metrics_addr"`
	RedisAddr        string `yaml:"redis_addr"`
	NoColor          bool   `yaml:"no_color"`
}

// LoadFromFile loads configuration from a YAML file on top of Default.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	setString(&cfg.BaseURL, yc.BaseURL)
	setString(&cfg.APIKey, yc.APIKey)
	setString(&cfg.UserID, yc.UserID)
	setString(&cfg.OutputDir, yc.OutputDir)
	setString(&cfg.UserAgent, yc.UserAgent)
	setString(&cfg.LogLevel, yc.LogLevel)
	setString(&cfg.MetricsAddr, yc.MetricsAddr)
	setString(&cfg.RedisAddr, yc.RedisAddr)
	if yc.TotalPages != 0 {
		cfg.TotalPages = yc.TotalPages
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	cfg.LogPretty = yc.LogPretty
	cfg.NoColor = yc.NoColor

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"retry_delay", yc.RetryDelay, &cfg.RetryDelay},
		{"request_timeout", yc.RequestTimeout, &cfg.RequestTimeout},
		{"progress_interval", yc.ProgressInterval, &cfg.ProgressInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromEnv overrides fields from TAGPAGES_* environment variables.
func (c *Config) LoadFromEnv() error {
	strs := []struct {
		key string
		dst *string
	}{
		{"BASE_URL", &c.BaseURL},
		{"API_KEY", &c.APIKey},
		{"USER_ID", &c.UserID},
		{"OUTPUT_DIR", &c.OutputDir},
		{"USER_AGENT", &c.UserAgent},
		{"LOG_LEVEL", &c.LogLevel},
		{"METRICS_ADDR", &c.MetricsAddr},
		{"REDIS_ADDR", &c.RedisAddr},
	}
	for _, s := range strs {
		setString(s.dst, os.Getenv(EnvPrefix+s.key))
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"TOTAL_PAGES", &c.TotalPages},
		{"WORKERS", &c.Workers},
	}
	for _, i := range ints {
		v := os.Getenv(EnvPrefix + i.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", EnvPrefix, i.key, err)
		}
		*i.dst = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"RETRY_DELAY", &c.RetryDelay},
		{"REQUEST_TIMEOUT", &c.RequestTimeout},
		{"PROGRESS_INTERVAL", &c.ProgressInterval},
	}
	for _, d := range durations {
		v := os.Getenv(EnvPrefix + d.key)
		if v == "" {
			continue
		}
		dur, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", EnvPrefix, d.key, err)
		}
		*d.dst = dur
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"LOG_PRETTY", &c.LogPretty},
		{"NO_COLOR", &c.NoColor},
	}
	for _, b := range bools {
		v := os.Getenv(EnvPrefix + b.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", EnvPrefix, b.key, err)
		}
		*b.dst = parsed
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must use http or https, got %q", u.Scheme)
	}
	if c.TotalPages <= 0 {
		return errors.New("total_pages must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output_dir is required")
	}
	if c.RetryDelay < 0 {
		return errors.New("retry_delay cannot be negative")
	}
	if c.RequestTimeout < 0 {
		return errors.New("request_timeout cannot be negative")
	}
	if c.ProgressInterval <= 0 {
		return errors.New("progress_interval must be positive")
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
