package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/config"
)

func newTestRunner(t *testing.T, cfg config.RunnerConfig) *Runner {
	t.Helper()
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	r, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(config.RunnerConfig{Timeout: time.Second}, zap.NewNop())
	assert.Error(t, err, "empty command must be rejected")

	_, err = New(config.RunnerConfig{Command: []string{"true"}}, zap.NewNop())
	assert.Error(t, err, "zero timeout must be rejected")
}

func TestRunner_Run_CapturesOutputAndExitCode(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, config.RunnerConfig{
		Command: []string{"sh", "-c", "echo running $0; echo boom >&2; exit 7"},
	})

	ev, err := r.Run(context.Background(), "example.spec.ts")
	require.NoError(t, err)

	assert.Equal(t, 7, ev.ExitCode)
	assert.False(t, ev.Passed())
	assert.Contains(t, ev.Stdout, "running example.spec.ts")
	assert.Contains(t, ev.Stderr, "boom")
	assert.False(t, ev.CollectedAt.IsZero())
	assert.Greater(t, ev.Duration, time.Duration(0))
}

func TestRunner_Run_PassingTest(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, config.RunnerConfig{Command: []string{"true"}})
	ev, err := r.Run(context.Background(), "example.spec.ts")
	require.NoError(t, err)
	assert.Equal(t, 0, ev.ExitCode)
	assert.True(t, ev.Passed())
}

func TestRunner_Run_TimeoutSynthesizesSentinel(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, config.RunnerConfig{
		Command: []string{"sh", "-c", "sleep 5"},
		Timeout: 100 * time.Millisecond,
	})

	start := time.Now()
	ev, err := r.Run(context.Background(), "example.spec.ts")
	require.NoError(t, err, "a timeout is evidence, not an error")

	assert.Equal(t, schemas.ExitCodeTimeout, ev.ExitCode)
	assert.True(t, ev.TimedOut())
	// The synthesized line lets the heuristic timeout signature match.
	assert.Contains(t, ev.Stderr, "Test execution timed out")
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRunner_Run_MissingBinarySynthesizesSentinel(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, config.RunnerConfig{
		Command: []string{"suture-no-such-binary-for-tests"},
	})

	ev, err := r.Run(context.Background(), "example.spec.ts")
	require.NoError(t, err, "an unreachable runner is evidence, not an error")

	assert.Equal(t, schemas.ExitCodeRunnerMissing, ev.ExitCode)
	assert.Contains(t, ev.Stderr, "Test runner could not be started")
}

func TestRunner_Run_PicksNewestScreenshot(t *testing.T) {
	t.Parallel()

	resultsDir := t.TempDir()
	nested := filepath.Join(resultsDir, "login-chromium")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	older := filepath.Join(resultsDir, "old.png")
	newer := filepath.Join(nested, "failure.png")
	ignored := filepath.Join(nested, "trace.txt")
	for _, p := range []string{older, newer, ignored} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, base, base))
	require.NoError(t, os.Chtimes(newer, base.Add(time.Minute), base.Add(time.Minute)))
	require.NoError(t, os.Chtimes(ignored, base.Add(time.Hour), base.Add(time.Hour)))

	r := newTestRunner(t, config.RunnerConfig{
		Command:    []string{"false"},
		ResultsDir: resultsDir,
	})

	ev, err := r.Run(context.Background(), "example.spec.ts")
	require.NoError(t, err)
	assert.Equal(t, newer, ev.ScreenshotPath)
}

func TestRunner_Run_MissingResultsDirIsTolerated(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, config.RunnerConfig{
		Command:    []string{"false"},
		ResultsDir: filepath.Join(t.TempDir(), "does-not-exist"),
	})

	ev, err := r.Run(context.Background(), "example.spec.ts")
	require.NoError(t, err)
	assert.Empty(t, ev.ScreenshotPath)
	assert.Equal(t, 1, ev.ExitCode)
}
