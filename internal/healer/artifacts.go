package healer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Recorder persists healing decisions and execution timelines as paired
// JSON artifacts. Artifacts are append-only: files are created exclusively
// and an existing file is never overwritten.
type Recorder struct {
	dir    string
	logger *zap.Logger
}

// NewRecorder creates the artifacts directory if needed and returns a
// Recorder writing into it.
func NewRecorder(dir string, logger *zap.Logger) (*Recorder, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifacts directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifacts directory: %w", err)
	}
	return &Recorder{
		dir:    dir,
		logger: logger.Named("artifacts"),
	}, nil
}

// Record writes one decision/timeline pair sharing a timestamp+id suffix,
// so the two files for an attempt can be correlated by name alone. It
// returns the decision file path.
func (r *Recorder) Record(decision schemas.HealingDecision, tl schemas.ExecutionTimeline) (string, error) {
	suffix := fmt.Sprintf("%s_%s",
		decision.Timestamp.UTC().Format("20060102T150405Z"),
		shortID(decision.ID),
	)

	decisionPath := filepath.Join(r.dir, "healing_decision_"+suffix+".json")
	if err := r.writeExclusive(decisionPath, decision); err != nil {
		return "", err
	}

	timelinePath := filepath.Join(r.dir, "execution_timeline_"+suffix+".json")
	if err := r.writeExclusive(timelinePath, tl); err != nil {
		return "", err
	}

	r.logger.Info("Healing decision recorded",
		zap.String("decision", decisionPath),
		zap.String("timeline", timelinePath),
		zap.String("outcome", string(decision.Outcome)),
	)
	return decisionPath, nil
}

// writeExclusive marshals v and writes it to path, failing if path exists.
func (r *Recorder) writeExclusive(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact %s: %w", filepath.Base(path), err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating artifact %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing artifact %s: %w", filepath.Base(path), err)
	}
	return nil
}

// shortID returns the first eight hex characters of a UUID, or a fresh one
// when the decision carries no id.
func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) < 8 {
		id = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return id[:8]
}

// RenderMarkdown formats a decision as a human-readable summary block for
// console output.
func RenderMarkdown(d schemas.HealingDecision) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Healing Decision — %s (attempt %d)\n\n", d.TestFile, d.Attempt)
	fmt.Fprintf(&b, "- **Outcome:** %s\n", d.Outcome)
	fmt.Fprintf(&b, "- **Classification:** %s (confidence %.2f)\n", d.Classification.Kind, d.Classification.Confidence)
	if d.FailureSummary != "" {
		fmt.Fprintf(&b, "- **Summary:** %s\n", d.FailureSummary)
	}
	if d.Hypothesis != "" {
		fmt.Fprintf(&b, "- **Hypothesis:** %s\n", d.Hypothesis)
	}
	fmt.Fprintf(&b, "- **Recorded:** %s\n", d.Timestamp.UTC().Format(time.RFC3339))

	if len(d.ReasoningSteps) > 0 {
		b.WriteString("\n### Reasoning\n")
		for i, step := range d.ReasoningSteps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}

	if d.Action != nil {
		b.WriteString("\n### Applied Change\n")
		if d.Action.Description != "" {
			fmt.Fprintf(&b, "%s\n", d.Action.Description)
		}
		fmt.Fprintf(&b, "\n```diff\n")
		for _, line := range strings.Split(strings.TrimSuffix(d.Action.OriginalCode, "\n"), "\n") {
			fmt.Fprintf(&b, "- %s\n", line)
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Action.FixedCode, "\n"), "\n") {
			fmt.Fprintf(&b, "+ %s\n", line)
		}
		b.WriteString("```\n")
	}

	return b.String()
}
