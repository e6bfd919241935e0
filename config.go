package recordquery

import (
	"os"
	"strconv"
	"time"

	"dario.cat/mergo"
)

// CandidatePlanPreset enumerates the allowed maxCandidatePlans presets
// from spec.md §4.H.
type CandidatePlanPreset int

const (
	CandidatePlanPreset5   CandidatePlanPreset = 5
	CandidatePlanPreset10  CandidatePlanPreset = 10
	CandidatePlanPreset20  CandidatePlanPreset = 20
	CandidatePlanPreset50  CandidatePlanPreset = 50
	CandidatePlanPreset100 CandidatePlanPreset = 100
)

// PlannerConfig holds the enumerated planner options from spec.md §4.H.
type PlannerConfig struct {
	MaxCandidatePlans      int  `json:"maxCandidatePlans"`
	MaxDNFBranches         int  `json:"maxDNFBranches"`
	EnableHeuristicPruning bool `json:"enableHeuristicPruning"`
	MaxInValues            int  `json:"maxInValues"`
}

// CacheConfig sizes the plan cache.
type CacheConfig struct {
	MaxEntries int           `json:"maxEntries"`
	TTL        time.Duration `json:"ttl"`
}

// StatsConfig controls statistics collection/estimation defaults.
type StatsConfig struct {
	DefaultSelectivity float64 `json:"defaultSelectivity"`
	HistogramBuckets   int     `json:"histogramBuckets"`
}

// LoggingConfig mirrors the teacher's logging knobs.
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Config consolidates every tunable of the engine.
type Config struct {
	Planner PlannerConfig `json:"planner"`
	Cache   CacheConfig   `json:"cache"`
	Stats   StatsConfig   `json:"stats"`
	Logging LoggingConfig `json:"logging"`
}

// DefaultConfig returns the engine's baseline configuration.
func DefaultConfig() Config {
	return Config{
		Planner: PlannerConfig{
			MaxCandidatePlans:      20,
			MaxDNFBranches:         16,
			EnableHeuristicPruning: true,
			MaxInValues:            100,
		},
		Cache: CacheConfig{
			MaxEntries: 1024,
			TTL:        10 * time.Minute,
		},
		Stats: StatsConfig{
			DefaultSelectivity: 0.1,
			HistogramBuckets:   32,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Merge overlays non-zero fields of override onto a copy of c and returns
// the result, the way the teacher's config layering overlays database
// settings loaded from the environment onto DefaultConfig(registry).
func (c Config) Merge(override Config) (Config, error) {
	merged := c
	if err := mergo.Merge(&merged, override, mergo.WithOverride); err != nil {
		return Config{}, err
	}
	return merged, nil
}

// ConfigFromEnv loads overrides from environment variables, mirroring
// cmd/server/main.go's getEnv/getEnvInt helpers in the teacher repo.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := getEnvInt("RECORDQUERY_MAX_CANDIDATE_PLANS", 0); v > 0 {
		cfg.Planner.MaxCandidatePlans = v
	}
	if v := getEnvInt("RECORDQUERY_MAX_DNF_BRANCHES", 0); v > 0 {
		cfg.Planner.MaxDNFBranches = v
	}
	if v := getEnvInt("RECORDQUERY_MAX_IN_VALUES", 0); v > 0 {
		cfg.Planner.MaxInValues = v
	}
	if v := getEnvInt("RECORDQUERY_CACHE_MAX_ENTRIES", 0); v > 0 {
		cfg.Cache.MaxEntries = v
	}
	if v := getEnv("RECORDQUERY_LOG_LEVEL", ""); v != "" {
		cfg.Logging.Level = v
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
