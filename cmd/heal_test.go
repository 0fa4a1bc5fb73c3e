package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/internal/config"
)

func TestNewHealCmd_Flags(t *testing.T) {
	t.Parallel()
	cmd := newHealCmd()

	for _, name := range []string{"attempts", "artifacts-dir", "runner-timeout", "results-dir"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "heal [test-files...]", cmd.Use)

	// At least one test file is required.
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"login.spec.ts"}))
}

func TestRunHeal_RequiresLLMClient(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	cfg.Agent.LLM.APIKey = "" // no key in env or config

	err := runHeal(context.Background(), cfg, zap.NewNop(), []string{"login.spec.ts"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize LLM client")
}

func TestRootCmd_Registration(t *testing.T) {
	t.Parallel()

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["heal"], "heal command must be registered")
}
