// Package config provides YAML-backed configuration for the caching query
// engine's tunables.
//
// Library callers normally pass functional options at construction; the
// config package exists for deployments that keep engine tuning in a file,
// such as the cachequery CLI.
//
// Example:
//
//	cfg, err := config.Load("engine.yaml")
//	if err != nil {
//		return err
//	}
//
//	opts := []cachequery.Option{
//		cachequery.WithUtilizationThreshold(cfg.UtilizationThreshold),
//	}
//	if !cfg.DedupPolicy {
//		opts = append(opts, cachequery.WithoutDedup())
//	}
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ski-dive-dev/cachingcollections/pkg/filtercache"
)

// Config holds the engine tunables.
type Config struct {
	// DedupPolicy controls whether duplicate item references are collapsed
	// in query results. Default: true.
	DedupPolicy bool `yaml:"dedup_policy"`

	// UtilizationThreshold is the fraction of the collection a filter cache
	// may miss on before disabling itself. Must be in [0, 1]. Default: 0.5.
	UtilizationThreshold float64 `yaml:"utilization_threshold"`

	// FilteredCountMemoSize bounds the per-handle filtered-count memo.
	// Default: 128.
	FilteredCountMemoSize int `yaml:"filtered_count_memo_size"`
}

// Default returns the engine defaults.
func Default() Config {
	return Config{
		DedupPolicy:           true,
		UtilizationThreshold:  filtercache.DefaultUtilizationThreshold,
		FilteredCountMemoSize: 128,
	}
}

// Load reads a YAML config file, applying defaults for absent fields.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if c.UtilizationThreshold < 0 || c.UtilizationThreshold > 1 {
		return fmt.Errorf("%w: got %v", filtercache.ErrThresholdOutOfRange, c.UtilizationThreshold)
	}
	if c.FilteredCountMemoSize <= 0 {
		return fmt.Errorf("filtered_count_memo_size must be positive, got %d", c.FilteredCountMemoSize)
	}
	return nil
}
