// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"mcp-food-score/internal/models"
)

// Config is the full service configuration.
type Config struct {
	// Transport must be "http", the only one served
	Transport string `yaml:"transport"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	DBPath    string `yaml:"db_path"`

	// LogLevel is a zap level name: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
	// LogFormat is "json" or "console"
	LogFormat string `yaml:"log_format"`

	// Locale is sent with external enrichment requests
	Locale string `yaml:"locale"`
	// Region scopes nutrition vault reads and writes
	Region string `yaml:"region"`

	Flags      Flags            `yaml:"flags"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Edamam     EdamamConfig     `yaml:"edamam"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
}

// ScoringConfig holds scoring policy knobs.
type ScoringConfig struct {
	// GenericOverrideSources lists capture sources whose ambiguous items with a
	// generic slug are scored on the whole-food curve.
	// Default: [photo_item]
	GenericOverrideSources []string `yaml:"generic_override_sources"`
}

// Sources returns GenericOverrideSources as capture sources.
func (s ScoringConfig) Sources() []models.Source {
	out := make([]models.Source, 0, len(s.GenericOverrideSources))
	for _, src := range s.GenericOverrideSources {
		out = append(out, models.Source(src))
	}
	return out
}

// GatewayConfig points at the LLM completion gateway used for enrichment.
type GatewayConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// EdamamConfig holds Edamam food-database credentials. Empty AppID disables the provider.
type EdamamConfig struct {
	AppID   string        `yaml:"app_id"`
	AppKey  string        `yaml:"app_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// EnrichmentConfig bounds calls to paid providers and vault write-through.
type EnrichmentConfig struct {
	// RatePerSecond limits provider requests. Default: 2
	RatePerSecond float64 `yaml:"rate_per_second"`
	// Burst is the limiter bucket size. Default: 4
	Burst int `yaml:"burst"`
	// MaxConcurrent caps in-flight provider calls. Default: 3
	MaxConcurrent int `yaml:"max_concurrent"`
	// WriteThroughConcurrency caps in-flight vault writes; extra writes are dropped. Default: 8
	WriteThroughConcurrency int `yaml:"write_through_concurrency"`
	// WriteThroughTimeout bounds a single vault write. Default: 10s
	WriteThroughTimeout time.Duration `yaml:"write_through_timeout"`
	// VaultTTL is how long a written vault item stays fresh. Default: 720h
	VaultTTL time.Duration `yaml:"vault_ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Transport: "http",
		Host:      "0.0.0.0",
		Port:      8012,
		DBPath:    "/data/food-score.db",
		LogLevel:  "info",
		LogFormat: "json",
		Locale:    "en-US",
		Region:    "US",
		Flags: Flags{
			HealthScoreV2:      true,
			WriteThrough:       false,
			SaveSplit:          false,
			ExternalEnrichment: true,
		},
		Scoring: ScoringConfig{
			GenericOverrideSources: []string{"photo_item"},
		},
		Gateway: GatewayConfig{
			URL:     "http://mcp-compose-http-proxy:9876",
			Model:   "anthropic/claude-3.5-sonnet",
			Timeout: 60 * time.Second,
		},
		Edamam: EdamamConfig{
			BaseURL: "https://api.edamam.com",
			Timeout: 10 * time.Second,
		},
		Enrichment: EnrichmentConfig{
			RatePerSecond:           2,
			Burst:                   4,
			MaxConcurrent:           3,
			WriteThroughConcurrency: 8,
			WriteThroughTimeout:     10 * time.Second,
			VaultTTL:                720 * time.Hour,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing YAML: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that values are usable.
func (c Config) Validate() error {
	if c.Transport != "http" {
		return fmt.Errorf("transport must be 'http' (got %q)", c.Transport)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535 (got %d)", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be 'json' or 'console' (got %q)", c.LogFormat)
	}
	if c.Enrichment.RatePerSecond <= 0 {
		return fmt.Errorf("enrichment.rate_per_second must be positive (got %g)", c.Enrichment.RatePerSecond)
	}
	if c.Enrichment.Burst < 1 {
		return fmt.Errorf("enrichment.burst must be at least 1 (got %d)", c.Enrichment.Burst)
	}
	if c.Enrichment.MaxConcurrent < 1 {
		return fmt.Errorf("enrichment.max_concurrent must be at least 1 (got %d)", c.Enrichment.MaxConcurrent)
	}
	if c.Enrichment.WriteThroughConcurrency < 1 {
		return fmt.Errorf("enrichment.write_through_concurrency must be at least 1 (got %d)",
			c.Enrichment.WriteThroughConcurrency)
	}
	if c.Enrichment.WriteThroughTimeout <= 0 {
		return fmt.Errorf("enrichment.write_through_timeout must be positive (got %s)", c.Enrichment.WriteThroughTimeout)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive (got %s)", c.Gateway.Timeout)
	}
	for _, s := range c.Scoring.Sources() {
		switch s {
		case models.SourceBarcode, models.SourceDB, models.SourcePhotoItem, models.SourceManual, models.SourceVoice:
		default:
			return fmt.Errorf("scoring.generic_override_sources: unknown source %q", s)
		}
	}
	return nil
}

// String returns a human-readable summary with secrets left out.
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Addr: %s:%d, DB: %s, Log: %s/%s, Locale: %s, Region: %s, "+
			"Flags: %+v, Gateway: %s (%s), Edamam: %t}",
		c.Host, c.Port, c.DBPath, c.LogLevel, c.LogFormat, c.Locale, c.Region,
		c.Flags, c.Gateway.URL, c.Gateway.Model, c.Edamam.AppID != "",
	)
}
