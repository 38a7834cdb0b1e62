package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

type ResolutionConfig struct {
	// StrategyWeights calibrates the weighted vote per claim strategy name.
	// Strategies not listed default to 1.0.
	StrategyWeights map[string]float64 `toml:"strategy_weights" validate:"dive,gte=0"`

	// BehaviorMinSimilarity is the cosine threshold below which behavioral
	// fingerprints are not considered the same customer.
	BehaviorMinSimilarity float64 `toml:"behavior_min_similarity" validate:"gte=0,lte=1"`

	// Clusters toggles identity cluster detection on the populated graph.
	Clusters bool `toml:"clusters"`
}

type ConflictConfig struct {
	// NumericTolerance is the band within which two numeric observations
	// count as the same value.
	NumericTolerance float64 `toml:"numeric_tolerance" validate:"gte=0"`

	// Concurrency caps how many conflicts resolve in parallel.
	Concurrency int `toml:"concurrency" validate:"gte=0"`

	// Ranges configures contextual-plausibility range checks per attribute.
	Ranges map[string]RangeBounds `toml:"ranges"`

	// AllowedValues configures vocabulary checks per attribute.
	AllowedValues map[string][]string `toml:"allowed_values"`
}

type RangeBounds struct {
	Min float64 `toml:"min"`
	Max float64 `toml:"max"`
}

type ArchiveConfig struct {
	Enabled  bool   `toml:"enabled"`
	URI      string `toml:"uri" validate:"required_if=Enabled true"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type Config struct {
	Resolution ResolutionConfig `toml:"resolution"`
	Conflict   ConflictConfig   `toml:"conflict"`
	Archive    ArchiveConfig    `toml:"archive"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Resolution: ResolutionConfig{
			BehaviorMinSimilarity: 0.75,
			Clusters:              true,
		},
		Conflict: ConflictConfig{
			NumericTolerance: 1e-9,
			Concurrency:      8,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
