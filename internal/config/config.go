// Package config loads gateway configuration from YAML with environment
// variable overrides for deployment-sensitive values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full gateway configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Search  SearchConfig  `yaml:"search"`
	Browser BrowserConfig `yaml:"browser"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	Memory  MemoryConfig  `yaml:"memory"`
	Metrics MetricsConfig `yaml:"metrics"`
	Crawl   CrawlConfig   `yaml:"crawl"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	CORSEnabled bool   `yaml:"cors_enabled"`
	CORSOrigin  string `yaml:"cors_origin"`
}

type AuthConfig struct {
	// Token is required in the X-API-Token header on every /api route.
	// Empty disables authentication.
	Token string `yaml:"token"`
}

type SearchConfig struct {
	DefaultLang   string  `yaml:"default_lang"`
	MaxResults    int     `yaml:"max_results"`
	MaxPages      int     `yaml:"max_pages"`
	SleepInterval float64 `yaml:"sleep_interval"`
	// TimeoutSec bounds one attempt's browser session per page requested.
	TimeoutSec int `yaml:"timeout_sec"`
	// RateLimit callers per RateWindowSec, with CooldownSec applied once
	// exceeded.
	RateLimit     int  `yaml:"rate_limit"`
	RateWindowSec int  `yaml:"rate_window_sec"`
	CooldownSec   int  `yaml:"cooldown_sec"`
	RetryCount    int  `yaml:"retry_count"`
	UseStealth    bool `yaml:"use_stealth"`
	UseProxy      bool `yaml:"use_proxy"`
	// BlockPatterns extends the built-in block detectors with extra
	// substrings.
	BlockPatterns []string `yaml:"block_patterns"`
}

type BrowserConfig struct {
	Headless      bool   `yaml:"headless"`
	ChromePath    string `yaml:"chrome_path"`
	NavTimeoutSec int    `yaml:"nav_timeout_sec"`
	WindowWidth   int    `yaml:"window_width"`
	WindowHeight  int    `yaml:"window_height"`
}

type ProxyConfig struct {
	Enabled bool `yaml:"enabled"`
	// File is a newline-separated proxy URL list.
	File string   `yaml:"file"`
	URLs []string `yaml:"urls"`
}

type MemoryConfig struct {
	// Backend is one of "file", "sqlite", "postgres".
	Backend string `yaml:"backend"`
	// Path is the file or sqlite database location.
	Path string `yaml:"path"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type CrawlConfig struct {
	Concurrency       int     `yaml:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Jitter            float64 `yaml:"jitter"`
	UserAgent         string  `yaml:"user_agent"`
}

type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       8080,
			CORSOrigin: "*",
		},
		Search: SearchConfig{
			DefaultLang:   "it",
			MaxResults:    5,
			MaxPages:      1,
			SleepInterval: 2.0,
			TimeoutSec:    90,
			RateLimit:     10,
			RateWindowSec: 60,
			CooldownSec:   60,
			RetryCount:    2,
			UseStealth:    true,
		},
		Browser: BrowserConfig{
			Headless:      true,
			NavTimeoutSec: 60,
			WindowWidth:   1920,
			WindowHeight:  1080,
		},
		Memory: MemoryConfig{
			Backend: "file",
			Path:    "interactions.ndjson",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Crawl: CrawlConfig{
			Concurrency:       3,
			RequestsPerSecond: 2,
			Jitter:            0.3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides deployment-sensitive values from the environment, so
// secrets stay out of config files.
func (c *Config) applyEnv() {
	if v := os.Getenv("SERPENT_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERPENT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SERPENT_API_TOKEN"); v != "" {
		c.Auth.Token = v
	}
	if v := os.Getenv("SERPENT_CHROME_PATH"); v != "" {
		c.Browser.ChromePath = v
	}
	if v := os.Getenv("SERPENT_MEMORY_BACKEND"); v != "" {
		c.Memory.Backend = v
	}
	if v := os.Getenv("SERPENT_MEMORY_DSN"); v != "" {
		c.Memory.DSN = v
	}
	if v := os.Getenv("SERPENT_MEMORY_PATH"); v != "" {
		c.Memory.Path = v
	}
	if v := os.Getenv("SERPENT_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Metrics.Port = port
		}
	}
	if v := os.Getenv("SERPENT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SERPENT_PROXY_FILE"); v != "" {
		c.Proxy.File = v
		c.Proxy.Enabled = true
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Memory.Backend {
	case "file", "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid memory backend: %q", c.Memory.Backend)
	}
	if c.Memory.Backend == "postgres" && c.Memory.DSN == "" {
		return fmt.Errorf("memory backend %q requires a dsn", c.Memory.Backend)
	}
	if c.Search.MaxResults <= 0 || c.Search.MaxPages <= 0 {
		return fmt.Errorf("search defaults must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	return nil
}
