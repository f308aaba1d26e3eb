package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"last30days/research"
)

// Config holds all application configuration.
type Config struct {
	OpenAIKey           string   `yaml:"openai_api_key"`
	OpenAIModel         string   `yaml:"openai_model"`
	BirdPath            string   `yaml:"bird_path"`
	NewsFeedURL         string   `yaml:"news_feed_url"`
	DisabledSources     []string `yaml:"disabled_sources"`
	RepostWeight        float64  `yaml:"repost_weight"`
	SimilarityThreshold float64  `yaml:"similarity_threshold"`
	RepresentativePosts int      `yaml:"representative_posts"`
	CacheDir            string   `yaml:"cache_dir"`
	CacheTTLMins        int      `yaml:"cache_ttl_mins"`
	DailyTime           string   `yaml:"daily_time"`
	Timezone            string   `yaml:"timezone"`
	LogLevel            string   `yaml:"log_level"`
}

// Defaults returns a Config with all default values set. CacheDir stays
// empty here; the CLI resolves it to the user cache directory.
func Defaults() Config {
	return Config{
		OpenAIModel:         "gpt-5-mini",
		BirdPath:            "bird",
		RepostWeight:        2.0,
		SimilarityThreshold: 0.90,
		RepresentativePosts: 5,
		CacheTTLMins:        60,
		Timezone:            "UTC",
		LogLevel:            "info",
	}
}

// Load returns a validated Config. With an empty path it applies defaults
// and environment overrides only; a non-empty path (or LAST30DAYS_CONFIG)
// names a YAML file that must exist.
//
// Environment overrides: OPENAI_API_KEY, LAST30DAYS_CACHE_DIR, and
// LAST30DAYS_DISABLE (comma-separated source names).
func Load(path string) (Config, error) {
	if envPath := os.Getenv("LAST30DAYS_CONFIG"); envPath != "" {
		path = envPath
	}

	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAIKey = key
	}
	if dir := os.Getenv("LAST30DAYS_CACHE_DIR"); dir != "" {
		cfg.CacheDir = dir
	}
	if disabled := os.Getenv("LAST30DAYS_DISABLE"); disabled != "" {
		cfg.DisabledSources = nil
		for _, name := range strings.Split(disabled, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.DisabledSources = append(cfg.DisabledSources, name)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that configured values are usable. Credentials are not
// required here; a missing key just makes its source unusable at probe time.
func (c *Config) Validate() error {
	if c.RepostWeight <= 1 {
		return fmt.Errorf("repost_weight must be greater than 1, got %g", c.RepostWeight)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in (0, 1], got %g", c.SimilarityThreshold)
	}
	if c.RepresentativePosts < 1 {
		return fmt.Errorf("representative_posts must be at least 1, got %d", c.RepresentativePosts)
	}
	if c.CacheTTLMins < 0 {
		return fmt.Errorf("cache_ttl_mins must not be negative, got %d", c.CacheTTLMins)
	}

	for _, name := range c.DisabledSources {
		if !validSource(name) {
			return fmt.Errorf("unknown source %q in disabled_sources", name)
		}
	}

	if c.DailyTime != "" {
		if err := ValidateTime(c.DailyTime); err != nil {
			return err
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}

	return nil
}

// Disabled returns the disabled-source set keyed by platform.
func (c *Config) Disabled() map[research.Platform]bool {
	disabled := make(map[research.Platform]bool, len(c.DisabledSources))
	for _, name := range c.DisabledSources {
		disabled[research.Platform(name)] = true
	}
	return disabled
}

// CacheTTL returns the cache validity window as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMins) * time.Minute
}

func validSource(name string) bool {
	for _, platform := range research.Platforms() {
		if name == string(platform) {
			return true
		}
	}
	return false
}

// ValidateTime checks that a time string is in valid HH:MM 24-hour format.
func ValidateTime(t string) error {
	if len(t) != 5 || t[2] != ':' {
		return fmt.Errorf("invalid time format %q: must be HH:MM", t)
	}

	if t[0] < '0' || t[0] > '9' || t[1] < '0' || t[1] > '9' ||
		t[3] < '0' || t[3] > '9' || t[4] < '0' || t[4] > '9' {
		return fmt.Errorf("invalid time format %q: must be HH:MM", t)
	}

	hour := (int(t[0]-'0') * 10) + int(t[1]-'0')
	minute := (int(t[3]-'0') * 10) + int(t[4]-'0')

	if hour > 23 {
		return fmt.Errorf("invalid time %q: hour must be 0-23", t)
	}
	if minute > 59 {
		return fmt.Errorf("invalid time %q: minute must be 0-59", t)
	}

	return nil
}
