// Package healer orchestrates the healing pipeline: collect evidence,
// classify, diagnose, patch, verify, record. It is the only package that
// mutates test files, and the only one that writes decision artifacts.
package healer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/heuristics"
	"github.com/xkilldash9x/suture-cli/internal/patch"
	"github.com/xkilldash9x/suture-cli/internal/reasoner"
)

// State is the orchestrator's position in the healing state machine.
type State string

const (
	StateCollecting  State = "COLLECTING"
	StateClassifying State = "CLASSIFYING"
	StateReasoning   State = "REASONING"
	StatePatching    State = "PATCHING"
	StateVerifying   State = "VERIFYING"
	StateSucceeded   State = "SUCCEEDED"
	StateExhausted   State = "EXHAUSTED"
)

// Result is the terminal outcome of one healing invocation.
type Result struct {
	// State is always SUCCEEDED or EXHAUSTED.
	State State
	// Attempts is how many attempts consumed budget. Zero when the test was
	// already passing.
	Attempts int
	// Healed reports that a patch was applied and the test now passes.
	Healed bool
	// AlreadyPassing reports that the very first run passed, so there was
	// nothing to heal and no decision was emitted.
	AlreadyPassing bool
	// Decisions holds the persisted decision artifact paths, one per attempt.
	Decisions []string
}

// Diagnoser is the reasoning dependency of the orchestrator. Satisfied by
// *reasoner.Reasoner; tests substitute their own.
type Diagnoser interface {
	Diagnose(ctx context.Context, fileSource string, ev schemas.FailureEvidence, hint *schemas.FailureClassification) (*reasoner.Diagnosis, error)
}

// Healer drives the state machine for one test file at a time. Distinct
// files may be healed concurrently by distinct invocations; a Healer holds
// no per-file state between calls.
type Healer struct {
	runner      schemas.TestRunner
	classifier  *heuristics.Classifier
	diagnoser   Diagnoser
	applier     *patch.Applier
	recorder    *Recorder
	maxAttempts int
	logger      *zap.Logger
}

// New creates a Healer. maxAttempts below 1 is coerced to 1.
func New(
	runner schemas.TestRunner,
	classifier *heuristics.Classifier,
	diagnoser Diagnoser,
	applier *patch.Applier,
	recorder *Recorder,
	maxAttempts int,
	logger *zap.Logger,
) *Healer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Healer{
		runner:      runner,
		classifier:  classifier,
		diagnoser:   diagnoser,
		applier:     applier,
		recorder:    recorder,
		maxAttempts: maxAttempts,
		logger:      logger.Named("healer"),
	}
}

// Heal runs the pipeline to a terminal state for one test file. The
// returned error is reserved for environmental impossibility (unreadable
// test file, artifact write failure); every pipeline-level failure is
// expressed as a recorded decision inside the Result instead.
func (h *Healer) Heal(ctx context.Context, filePath string) (*Result, error) {
	result := &Result{State: StateExhausted}
	patched := false

	for attempt := 1; attempt <= h.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		h.logger.Info("Starting healing attempt",
			zap.String("file", filePath),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", h.maxAttempts),
		)

		outcome, err := h.runAttempt(ctx, filePath, attempt, &patched, result)
		if err != nil {
			return nil, err
		}

		switch outcome {
		case attemptPassed:
			// Nothing to heal. On the first attempt the test was passing all
			// along; on a later one the file now passes under fresh evidence.
			result.State = StateSucceeded
			if attempt == 1 {
				result.AlreadyPassing = true
			} else {
				result.Healed = patched
			}
			return result, nil
		case attemptVerified:
			result.Attempts = attempt
			result.State = StateSucceeded
			result.Healed = true
			return result, nil
		case attemptFailed:
			result.Attempts = attempt
		}
	}

	result.State = StateExhausted
	h.logger.Warn("Healing attempts exhausted",
		zap.String("file", filePath),
		zap.Int("attempts", result.Attempts),
	)
	return result, nil
}

// attemptOutcome is the orchestrator-internal verdict of one attempt.
type attemptOutcome int

const (
	attemptFailed attemptOutcome = iota
	attemptVerified
	attemptPassed
)

// runAttempt executes one full pass of the state machine. It records a
// decision/timeline pair for every path except attemptPassed.
func (h *Healer) runAttempt(ctx context.Context, filePath string, attempt int, patched *bool, result *Result) (attemptOutcome, error) {
	tl := newTimeline(filePath, attempt)

	// COLLECTING
	rec := tl.start(stageCollect)
	ev, err := h.runner.Run(ctx, filePath)
	if err != nil {
		rec.Error(err.Error())
		return attemptFailed, fmt.Errorf("evidence collection failed: %w", err)
	}
	rec.OK(fmt.Sprintf("exit_code=%d duration=%s", ev.ExitCode, ev.Duration.Round(time.Millisecond)))

	if ev.Passed() {
		return attemptPassed, nil
	}

	// CLASSIFYING
	rec = tl.start(stageClassify)
	rule, hint := h.classifier.MatchedRule(ev)
	if hint != nil {
		rec.OK(string(hint.Kind))
	} else {
		rec.OK("no signature matched")
	}

	decision := h.newDecision(filePath, attempt, hint)

	// A run that exceeded the wall-clock bound never produced a complete
	// failure report; diagnosing against a truncated log wastes a model
	// call, so the attempt ends here.
	if ev.TimedOut() {
		decision.Outcome = schemas.OutcomeCollectionTimeout
		decision.FailureSummary = "Test run exceeded the collection timeout"
		tl.skipRemaining("collection timed out")
		return attemptFailed, h.record(decision, tl, result)
	}

	// A failing run with no output at all leaves nothing to classify or
	// reason over.
	if strings.TrimSpace(ev.CombinedLog()) == "" {
		decision.Outcome = schemas.OutcomeClassificationNone
		decision.FailureSummary = "Test failed without producing any output"
		tl.skipRemaining("no runner output")
		return attemptFailed, h.record(decision, tl, result)
	}

	source, err := os.ReadFile(filePath)
	if err != nil {
		return attemptFailed, fmt.Errorf("reading test file: %w", err)
	}

	// REASONING, unless the matched rule carries its own pre-validated fix.
	var action *schemas.HealingAction
	if rule != nil && rule.Fix != nil {
		action = rule.Fix
		tl.start(stageReason).Skip("rule-attached fix: " + rule.Name)
	} else {
		rec = tl.start(stageReason)
		diag, err := h.diagnoser.Diagnose(ctx, string(source), ev, hint)
		if err != nil {
			rec.Error(err.Error())
			if errors.Is(err, reasoner.ErrParse) {
				decision.Outcome = schemas.OutcomeReasoningParseFailed
				decision.FailureSummary = "Model response could not be parsed into a diagnosis"
			} else {
				decision.Outcome = schemas.OutcomeReasoningParseFailed
				decision.FailureSummary = fmt.Sprintf("Diagnosis failed: %v", err)
			}
			tl.skipRemaining("diagnosis failed")
			return attemptFailed, h.record(decision, tl, result)
		}

		decision.Classification = diag.Classification
		decision.FailureSummary = diag.Summary
		decision.Hypothesis = diag.Hypothesis
		decision.ReasoningSteps = diag.ReasoningSteps
		rec.OK(string(diag.Classification.Kind))

		if diag.Action == nil {
			decision.Outcome = schemas.OutcomeReasoningNoAction
			tl.skipRemaining("no action proposed")
			return attemptFailed, h.record(decision, tl, result)
		}
		action = diag.Action
	}
	decision.Action = action

	// PATCHING
	rec = tl.start(stagePatch)
	newSource, err := h.applier.Apply(string(source), *action)
	if err != nil {
		rec.Error(err.Error())
		decision.Outcome = schemas.OutcomePatchNotApplicable
		if decision.FailureSummary == "" {
			decision.FailureSummary = fmt.Sprintf("Proposed patch was rejected: %v", err)
		}
		tl.skipRemaining("patch rejected")
		return attemptFailed, h.record(decision, tl, result)
	}
	if err := writePreservingMode(filePath, []byte(newSource)); err != nil {
		rec.Error(err.Error())
		return attemptFailed, fmt.Errorf("writing patched file: %w", err)
	}
	*patched = true
	rec.OK(action.Description)

	// VERIFYING. The patched file stays on disk even when this fails; the
	// attempted fix is meant to be visible in diff history, not hidden.
	rec = tl.start(stageVerify)
	verifyEv, err := h.runner.Run(ctx, filePath)
	if err != nil {
		rec.Error(err.Error())
		return attemptFailed, fmt.Errorf("verification run failed: %w", err)
	}
	decision.VerificationLog = verifyEv.CombinedLog()

	if verifyEv.Passed() {
		rec.OK("test passed")
		decision.Outcome = schemas.OutcomeVerified
		decision.VerificationPassed = true
		return attemptVerified, h.record(decision, tl, result)
	}

	rec.Error(fmt.Sprintf("test still failing, exit_code=%d", verifyEv.ExitCode))
	decision.Outcome = schemas.OutcomeVerificationFailed
	return attemptFailed, h.record(decision, tl, result)
}

// newDecision seeds a decision with the identity fields and the heuristic
// classification, which later stages may override.
func (h *Healer) newDecision(filePath string, attempt int, hint *schemas.FailureClassification) *schemas.HealingDecision {
	d := &schemas.HealingDecision{
		ID:        uuid.NewString(),
		TestFile:  filePath,
		Attempt:   attempt,
		Timestamp: time.Now().UTC(),
		Classification: schemas.FailureClassification{
			Kind: schemas.KindUnknown,
		},
	}
	if hint != nil {
		d.Classification = *hint
		d.FailureSummary = hint.Reason
	}
	return d
}

// record persists the decision/timeline pair and appends the decision path
// to the result. A persistence failure is environmental and aborts the
// invocation.
func (h *Healer) record(decision *schemas.HealingDecision, tl *timeline, result *Result) error {
	tl.start(stageRecord).OK("")

	path, err := h.recorder.Record(*decision, tl.build())
	if err != nil {
		return fmt.Errorf("recording decision: %w", err)
	}
	result.Decisions = append(result.Decisions, path)

	h.logger.Info("Attempt concluded",
		zap.String("file", decision.TestFile),
		zap.Int("attempt", decision.Attempt),
		zap.String("outcome", string(decision.Outcome)),
	)
	return nil
}

// writePreservingMode replaces the file content, keeping its permission
// bits when it already exists.
func writePreservingMode(path string, data []byte) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return os.WriteFile(path, data, mode)
}
