package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, RuntimeConfig{MaxIterations: 7, LLMProvider: "anthropic"}))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxIterations)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, RuntimeConfig{LLMProvider: "openai"}))

	lookup := func(key string) (string, bool) {
		if key == "LLM_PROVIDER" {
			return "anthropic", true
		}
		return "", false
	}

	cfg, err := Load(path, lookup)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
}

func TestDefaultPopulatesEveryDocumentedField(t *testing.T) {
	t.Parallel()
	cfg := Default()
	assert.Equal(t, DefaultMaxIterations, cfg.MaxIterations)
	assert.Equal(t, DefaultMode, cfg.DefaultMode)
	assert.True(t, cfg.ToolSchemaValidation)
	assert.Equal(t, DefaultCheckpointBackend, cfg.CheckpointBackend)
	assert.NotEmpty(t, cfg.SearchFiltering.ExcludeDirs)
}
