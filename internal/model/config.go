package model

import "time"

// Config holds all runtime configuration
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Catalog      CatalogConfig      `yaml:"catalog" mapstructure:"catalog"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// HTTPConfig configures the fetcher
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// CacheConfig configures the representation cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	// RedisURL replaces the disk layer with a shared Redis cache when set
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// AlternateMaxAge is how stale a cached alternate entry may be before it is refetched
	AlternateMaxAge time.Duration `yaml:"alternate_max_age" mapstructure:"alternate_max_age"`
}

// ConcurrencyConfig configures worker counts
type ConcurrencyConfig struct {
	Workers          int `yaml:"workers" mapstructure:"workers"`
	LinkCheckWorkers int `yaml:"link_check_workers" mapstructure:"link_check_workers"`
}

// RateLimitingConfig configures per-domain request pacing
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
	// DomainRates overrides RequestsPerSecond for individual hosts
	DomainRates map[string]float64 `yaml:"domain_rates" mapstructure:"domain_rates"`
}

// CatalogConfig configures the published open-access catalog
type CatalogConfig struct {
	OutputDir    string `yaml:"output_dir" mapstructure:"output_dir"`
	BaseFilename string `yaml:"base_filename" mapstructure:"base_filename"`
	PageSize     int    `yaml:"page_size" mapstructure:"page_size"`
	DefaultOrder string `yaml:"default_order" mapstructure:"default_order"`
	CheckLinks   bool   `yaml:"check_links" mapstructure:"check_links"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Pretty bool   `yaml:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "Rehost/0.1 (+https://github.com/ppiankov/rehost)",
			MaxBodyBytes:  10_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:         true,
			Dir:             ".rehost-cache",
			MemoryTTL:       time.Hour,
			DiskTTL:         30 * 24 * time.Hour,
			AlternateMaxAge: 30 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:          4,
			LinkCheckWorkers: 20,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         5,
		},
		Catalog: CatalogConfig{
			OutputDir:    "./catalog",
			BaseFilename: "open-access",
			PageSize:     50,
			DefaultOrder: "title",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}
