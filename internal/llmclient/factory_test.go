package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/internal/config"
)

func TestNewClient_Gemini(t *testing.T) {
	t.Parallel()

	cfg := config.AgentConfig{
		LLM: config.LLMModelConfig{
			Provider: config.ProviderGemini,
			Model:    "gemini-2.5-pro",
			APIKey:   "test-key",
		},
	}
	client, err := NewClient(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NoError(t, client.Close())
}

func TestNewClient_UnknownProvider(t *testing.T) {
	t.Parallel()

	cfg := config.AgentConfig{
		LLM: config.LLMModelConfig{Provider: "openrouter", Model: "m", APIKey: "k"},
	}
	client, err := NewClient(context.Background(), cfg, zap.NewNop())
	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown or unsupported LLM provider")
}

func TestNewGeminiClient_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewGeminiClient(context.Background(), config.LLMModelConfig{Model: "gemini-2.5-pro"}, zap.NewNop())
	assert.Error(t, err, "missing API key must be rejected")

	_, err = NewGeminiClient(context.Background(), config.LLMModelConfig{APIKey: "k"}, zap.NewNop())
	assert.Error(t, err, "missing model name must be rejected")
}
