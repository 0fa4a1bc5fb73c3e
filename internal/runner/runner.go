package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/config"
)

// imageExtensions are the screenshot formats Playwright emits.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Runner executes test files through the configured external runner and
// collects evidence about each run. It implements schemas.TestRunner.
//
// A run never mutates the test file; the only side effects are spawning the
// subprocess and reading the results directory.
type Runner struct {
	cfg    config.RunnerConfig
	logger *zap.Logger
}

// New creates a Runner.
func New(cfg config.RunnerConfig, logger *zap.Logger) (*Runner, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("runner command must not be empty")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("runner timeout must be a positive duration")
	}
	return &Runner{
		cfg:    cfg,
		logger: logger.Named("runner"),
	}, nil
}

// Run executes the test file and returns evidence about the run. Timeouts
// and an unreachable runner binary are normal, classifiable outcomes: they
// synthesize reserved exit codes instead of returning an error.
func (r *Runner) Run(ctx context.Context, filePath string) (schemas.FailureEvidence, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	args := append(append([]string{}, r.cfg.Command[1:]...), filePath)
	cmd := exec.CommandContext(runCtx, r.cfg.Command[0], args...)
	cmd.Dir = r.cfg.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("Running test",
		zap.String("file", filePath),
		zap.Strings("command", r.cfg.Command),
		zap.Duration("timeout", r.cfg.Timeout),
	)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	ev := schemas.FailureEvidence{
		Stdout:      stdout.String(),
		Stderr:      stderr.String(),
		Duration:    duration,
		CollectedAt: time.Now().UTC(),
	}

	switch {
	case runErr == nil:
		ev.ExitCode = 0
	case runCtx.Err() == context.DeadlineExceeded:
		ev.ExitCode = schemas.ExitCodeTimeout
		ev.Stderr = appendLine(ev.Stderr,
			fmt.Sprintf("Test execution timed out after %s", r.cfg.Timeout))
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			ev.ExitCode = exitErr.ExitCode()
		} else {
			// The runner binary could not be started at all. This is an
			// environment problem the classifier should see, not a crash.
			ev.ExitCode = schemas.ExitCodeRunnerMissing
			ev.Stderr = appendLine(ev.Stderr,
				fmt.Sprintf("Test runner could not be started: %v", runErr))
		}
	}

	ev.ScreenshotPath = r.latestScreenshot()

	r.logger.Info("Test run complete",
		zap.String("file", filePath),
		zap.Int("exit_code", ev.ExitCode),
		zap.Duration("duration", duration),
		zap.Bool("screenshot", ev.ScreenshotPath != ""),
	)

	return ev, nil
}

// latestScreenshot returns the most recently modified image under the
// results directory. Best effort: any failure yields the empty string.
func (r *Runner) latestScreenshot() string {
	if r.cfg.ResultsDir == "" {
		return ""
	}

	var newest string
	var newestMod time.Time

	err := filepath.WalkDir(r.cfg.ResultsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = path
			newestMod = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return ""
	}
	return newest
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s + line
}
