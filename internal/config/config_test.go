package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := NewDefaultConfig()

	assert.Equal(t, []string{"npx", "playwright", "test"}, cfg.Runner.Command)
	assert.Equal(t, 60*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, "test-results", cfg.Runner.ResultsDir)
	assert.Equal(t, 2, cfg.Healer.MaxAttempts)
	assert.Equal(t, "artifacts", cfg.Healer.ArtifactsDir)
	assert.InDelta(t, 0.80, cfg.Healer.SimilarityThreshold, 1e-9)
	assert.Equal(t, ProviderGemini, cfg.Agent.LLM.Provider)
	assert.Equal(t, "gemini-2.5-pro", cfg.Agent.LLM.Model)
	assert.Equal(t, "suture-cli", cfg.Logger.ServiceName)

	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromViper_Overrides(t *testing.T) {
	t.Parallel()

	v := viper.New()
	SetDefaults(v)
	v.Set("healer.max_attempts", 3)
	v.Set("runner.timeout", "90s")
	v.Set("agent.llm.model", "gemini-2.5-flash")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Healer.MaxAttempts)
	assert.Equal(t, 90*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, "gemini-2.5-flash", cfg.Agent.LLM.Model)
}

func TestNewConfigFromViper_APIKeyFromEnv(t *testing.T) {
	t.Setenv("SUTURE_GEMINI_API_KEY", "test-key-123")

	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "test-key-123", cfg.Agent.LLM.APIKey)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty runner command", func(c *Config) { c.Runner.Command = nil }},
		{"non-positive timeout", func(c *Config) { c.Runner.Timeout = 0 }},
		{"zero attempts", func(c *Config) { c.Healer.MaxAttempts = 0 }},
		{"empty artifacts dir", func(c *Config) { c.Healer.ArtifactsDir = "" }},
		{"threshold above one", func(c *Config) { c.Healer.SimilarityThreshold = 1.5 }},
		{"threshold zero", func(c *Config) { c.Healer.SimilarityThreshold = 0 }},
		{"empty provider", func(c *Config) { c.Agent.LLM.Provider = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetFallsBackToDefaults(t *testing.T) {
	// Not parallel: exercises the process-wide pointer.
	global.Store(nil)
	cfg := Get()
	require.NotNil(t, cfg)
	assert.Equal(t, 2, cfg.Healer.MaxAttempts)

	custom := NewDefaultConfig()
	custom.Healer.MaxAttempts = 5
	Set(custom)
	assert.Equal(t, 5, Get().Healer.MaxAttempts)
	global.Store(nil)
}
