// Package config loads feed definitions and scraper settings from a YAML
// file, with environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "NEWSCRAPER_CONFIG"
	databasePathEnv = "DATABASE_PATH"

	defaultConfigPath = "config/feeds.yaml"
	defaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Feed is one configured RSS/Atom source.
type Feed struct {
	URL     string `yaml:"url"`
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
}

// Settings groups scraper behavior knobs.
type Settings struct {
	UserAgent             string `yaml:"user_agent"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	DownloadImages        bool   `yaml:"download_images"`
	RequestDelaySeconds   int    `yaml:"request_delay_seconds"`
	MaxArticlesPerFeed    int    `yaml:"max_articles_per_feed"`
	SkipSameDomain        bool   `yaml:"skip_same_domain"`
}

// Storage describes where persistent state lives.
type Storage struct {
	DatabasePath string `yaml:"database_path"`
	OutputDir    string `yaml:"output_dir"`
	ImageDir     string `yaml:"image_dir"`
}

// Config is the full application configuration.
type Config struct {
	Feeds    []Feed   `yaml:"feeds"`
	Settings Settings `yaml:"settings"`
	Storage  Storage  `yaml:"storage"`
}

// RequestTimeout returns the configured request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Settings.RequestTimeoutSeconds) * time.Second
}

// RequestDelay returns the configured inter-request delay as a duration.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.Settings.RequestDelaySeconds) * time.Second
}

// EnabledFeeds returns the feeds with the enabled flag set, in configured
// order.
func (c *Config) EnabledFeeds() []Feed {
	var enabled []Feed
	for _, feed := range c.Feeds {
		if feed.Enabled {
			enabled = append(enabled, feed)
		}
	}
	return enabled
}

// Load reads configuration from the given path and applies defaults and
// environment overrides. A missing file yields the defaults; an unreadable
// or malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadDefault loads configuration from $NEWSCRAPER_CONFIG, or the default
// path when unset.
func LoadDefault() (*Config, error) {
	path := os.Getenv(configPathEnv)
	if path == "" {
		path = defaultConfigPath
	}
	return Load(path)
}

func (c *Config) applyDefaults() {
	defaults := defaultConfig()
	if c.Settings.UserAgent == "" {
		c.Settings.UserAgent = defaults.Settings.UserAgent
	}
	if c.Settings.RequestTimeoutSeconds == 0 {
		c.Settings.RequestTimeoutSeconds = defaults.Settings.RequestTimeoutSeconds
	}
	if c.Settings.MaxArticlesPerFeed == 0 {
		c.Settings.MaxArticlesPerFeed = defaults.Settings.MaxArticlesPerFeed
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = defaults.Storage.DatabasePath
	}
	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = defaults.Storage.OutputDir
	}
	if c.Storage.ImageDir == "" {
		c.Storage.ImageDir = defaults.Storage.ImageDir
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Storage.DatabasePath = v
	}
}

func defaultConfig() *Config {
	return &Config{
		Settings: Settings{
			UserAgent:             defaultUserAgent,
			RequestTimeoutSeconds: 10,
			DownloadImages:        true,
			RequestDelaySeconds:   1,
			MaxArticlesPerFeed:    10,
		},
		Storage: Storage{
			DatabasePath: "data/news_scraper.db",
			OutputDir:    "output",
			ImageDir:     "output/images",
		},
	}
}
