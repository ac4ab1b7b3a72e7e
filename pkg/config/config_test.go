package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ski-dive-dev/cachingcollections/pkg/filtercache"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.DedupPolicy)
	assert.Equal(t, filtercache.DefaultUtilizationThreshold, cfg.UtilizationThreshold)
	assert.Equal(t, 128, cfg.FilteredCountMemoSize)
	assert.NoError(t, cfg.Validate())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "dedup_policy: false\nutilization_threshold: 0.75\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.DedupPolicy)
	assert.Equal(t, 0.75, cfg.UtilizationThreshold)
	// Absent fields keep their defaults.
	assert.Equal(t, 128, cfg.FilteredCountMemoSize)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidThreshold(t *testing.T) {
	path := writeConfig(t, "utilization_threshold: 1.5\n")

	_, err := Load(path)
	assert.ErrorIs(t, err, filtercache.ErrThresholdOutOfRange)
}

func TestValidate_MemoSize(t *testing.T) {
	cfg := Default()
	cfg.FilteredCountMemoSize = 0
	assert.Error(t, cfg.Validate())
}
