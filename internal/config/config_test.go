package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-sonnet-4-5", cfg.Agent.Model)
	assert.Equal(t, 25, cfg.Agent.MaxIterations)
	assert.True(t, cfg.Tools.RestrictToWorkspace)
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"agent": {"model": "gpt-4o"}}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Agent.Model)
	// Defaults survive for fields the file omits.
	assert.Equal(t, 4096, cfg.Agent.MaxTokens)
	assert.Equal(t, "followup", cfg.Gateway.LaneMode)
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0644))

	cfg, err := Load(path)
	assert.Error(t, err)
	// Still returns usable defaults.
	assert.Equal(t, 25, cfg.Agent.MaxIterations)
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("TERN_CONFIG", "/tmp/custom.json")
	assert.Equal(t, "/tmp/custom.json", GetConfigPath())

	t.Setenv("TERN_CONFIG", "")
	assert.Contains(t, GetConfigPath(), ".tern")
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := DefaultConfig()
	cfg.Providers.Provider = "openrouter"
	cfg.Providers.APIKey = "sk-or-v1-test"
	cfg.Channels.CLI = &CLIConfig{Enabled: true}
	cfg.Redis.URL = "redis://localhost:6379"
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openrouter", loaded.Providers.Provider)
	assert.Equal(t, "sk-or-v1-test", loaded.Providers.APIKey)
	require.NotNil(t, loaded.Channels.CLI)
	assert.True(t, loaded.Channels.CLI.Enabled)
	assert.Equal(t, "redis://localhost:6379", loaded.Redis.URL)
}
