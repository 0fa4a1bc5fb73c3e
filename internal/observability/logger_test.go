package observability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/suture-cli/internal/config"
)

// syncBuffer is an in-memory WriteSyncer for capturing console output.
type syncBuffer struct {
	strings.Builder
}

func (b *syncBuffer) Sync() error { return nil }

func consoleConfig(level string) config.LoggerConfig {
	return config.LoggerConfig{
		Level:       level,
		Format:      "console",
		ServiceName: "suture-test",
		Colors:      config.ColorConfig{Info: "green", Error: "red"},
	}
}

func TestInitialize_WritesToConsole(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(consoleConfig("debug"), buf)

	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Info("healing started", zap.String("file", "login.spec.ts"))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "healing started")
	assert.Contains(t, out, "login.spec.ts")
	assert.Contains(t, out, "suture-test.")
	assert.Contains(t, out, "\x1b[32m", "info lines carry the configured color")
}

func TestInitialize_RespectsLevel(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(consoleConfig("warn"), buf)

	logger := GetLogger()
	logger.Info("below threshold")
	logger.Warn("at threshold")
	require.NoError(t, logger.Sync())

	assert.NotContains(t, buf.String(), "below threshold")
	assert.Contains(t, buf.String(), "at threshold")
}

func TestInitialize_InvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(consoleConfig("extremely-verbose"), buf)

	logger := GetLogger()
	logger.Debug("debug suppressed")
	logger.Info("info visible")
	require.NoError(t, logger.Sync())

	assert.NotContains(t, buf.String(), "debug suppressed")
	assert.Contains(t, buf.String(), "info visible")
}

func TestInitialize_RunsOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &syncBuffer{}
	second := &syncBuffer{}
	Initialize(consoleConfig("info"), first)
	Initialize(consoleConfig("info"), second)

	GetLogger().Info("only the first writer sees this")
	require.NoError(t, GetLogger().Sync())

	assert.Contains(t, first.String(), "only the first writer sees this")
	assert.Empty(t, second.String())
}

func TestGetLogger_FallbackBeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	// The fallback must be usable without panicking.
	logger.Debug("fallback logger works")
}

func TestLevelColor(t *testing.T) {
	t.Parallel()

	colors := config.ColorConfig{Debug: "cyan", Info: "green", Warn: "yellow", Error: "red", Fatal: "magenta"}
	assert.Equal(t, colorMap["cyan"], levelColor(colors, zapcore.DebugLevel))
	assert.Equal(t, colorMap["green"], levelColor(colors, zapcore.InfoLevel))
	assert.Equal(t, colorMap["red"], levelColor(colors, zapcore.ErrorLevel))
	assert.Equal(t, colorMap["magenta"], levelColor(colors, zapcore.FatalLevel))
	assert.Empty(t, levelColor(config.ColorConfig{}, zapcore.InfoLevel))
}
