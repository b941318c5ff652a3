package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Feature flag environment variables.
const (
	EnvHealthScoreV2      = "VITE_HEALTH_SCORE_V2"
	EnvWriteThrough       = "NV_WRITE_THROUGH"
	EnvSaveSplit          = "FOOD_LOG_SAVE_SPLIT"
	EnvExternalEnrichment = "ENRICH_EXTERNAL"
)

// Flags are the runtime feature toggles. They are read per request and passed
// explicitly to the code they steer.
type Flags struct {
	// HealthScoreV2 selects the dual-curve scorer over the legacy heuristic
	HealthScoreV2 bool `yaml:"health_score_v2"`
	// WriteThrough copies paid-provider enrichment results into the vault
	WriteThrough bool `yaml:"write_through"`
	// SaveSplit stores the per-gram basis of each log entry in its own table
	SaveSplit bool `yaml:"save_split"`
	// ExternalEnrichment allows calls to external nutrition providers
	ExternalEnrichment bool `yaml:"external_enrichment"`
}

// FlagSource yields the flags for one request.
type FlagSource interface {
	Flags() Flags
}

// StaticFlags always returns the same flags.
type StaticFlags Flags

func (f StaticFlags) Flags() Flags { return Flags(f) }

// EnvFlags overlays the flag environment variables on Base every time Flags
// is called. Unparseable values leave the base value in place.
type EnvFlags struct {
	Base   Flags
	Lookup func(string) (string, bool)
}

func (e EnvFlags) Flags() Flags {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	f := e.Base
	overlayBool(lookup, EnvHealthScoreV2, &f.HealthScoreV2)
	overlayBool(lookup, EnvWriteThrough, &f.WriteThrough)
	overlayBool(lookup, EnvSaveSplit, &f.SaveSplit)
	overlayBool(lookup, EnvExternalEnrichment, &f.ExternalEnrichment)
	return f
}

func overlayBool(lookup func(string) (string, bool), key string, dest *bool) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	if b, err := parseBool(v); err == nil {
		*dest = b
	}
}

// ApplyEnv overrides c from the environment.
//
// Environment variables:
//   - FOOD_SCORE_DB_PATH, FOOD_SCORE_LOG_LEVEL, FOOD_SCORE_LOG_FORMAT, FOOD_SCORE_LOCALE
//   - VITE_HEALTH_SCORE_V2, NV_WRITE_THROUGH, FOOD_LOG_SAVE_SPLIT, ENRICH_EXTERNAL
//   - MCP_PROXY_URL, MCP_PROXY_API_KEY, OPENROUTER_MODEL: enrichment gateway
//   - EDAMAM_APP_ID, EDAMAM_APP_KEY: Edamam food database
//   - ENRICH_RATE_PER_SECOND, ENRICH_MAX_CONCURRENT
//
// Returns an error if a variable has an invalid value.
func (c *Config) ApplyEnv() error {
	parseEnvString("FOOD_SCORE_DB_PATH", &c.DBPath)
	parseEnvString("FOOD_SCORE_LOG_LEVEL", &c.LogLevel)
	parseEnvString("FOOD_SCORE_LOG_FORMAT", &c.LogFormat)
	parseEnvString("FOOD_SCORE_LOCALE", &c.Locale)

	for key, dest := range map[string]*bool{
		EnvHealthScoreV2:      &c.Flags.HealthScoreV2,
		EnvWriteThrough:       &c.Flags.WriteThrough,
		EnvSaveSplit:          &c.Flags.SaveSplit,
		EnvExternalEnrichment: &c.Flags.ExternalEnrichment,
	} {
		if err := parseEnvBool(key, dest); err != nil {
			return err
		}
	}

	parseEnvString("MCP_PROXY_URL", &c.Gateway.URL)
	parseEnvString("MCP_PROXY_API_KEY", &c.Gateway.APIKey)
	parseEnvString("OPENROUTER_MODEL", &c.Gateway.Model)
	parseEnvString("EDAMAM_APP_ID", &c.Edamam.AppID)
	parseEnvString("EDAMAM_APP_KEY", &c.Edamam.AppKey)

	if err := parseEnvFloat("ENRICH_RATE_PER_SECOND", &c.Enrichment.RatePerSecond); err != nil {
		return err
	}
	if err := parseEnvInt("ENRICH_MAX_CONCURRENT", &c.Enrichment.MaxConcurrent); err != nil {
		return err
	}
	return nil
}

func parseEnvString(key string, dest *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dest = v
	}
}

func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	b, err := parseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q (expected boolean)", key, value)
	}
	*dest = b
	return nil
}

func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q (expected integer)", key, value)
	}
	*dest = n
	return nil
}

func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q (expected number)", key, value)
	}
	*dest = f
	return nil
}

// parseBool accepts strconv booleans plus on/off and yes/no.
func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes", "y":
		return true, nil
	case "off", "no", "n":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(v))
}
