package schemas

import (
	"strings"
	"time"
)

// FailureKind is the closed set of failure categories the pipeline can
// assign to a failing test run.
type FailureKind string

const (
	KindLocatorDrift       FailureKind = "LOCATOR_DRIFT"
	KindTimeout            FailureKind = "TIMEOUT"
	KindAssertionFailed    FailureKind = "ASSERTION_FAILED"
	KindEnvironmentIssue   FailureKind = "ENVIRONMENT_ISSUE"
	KindPotentialAppDefect FailureKind = "POTENTIAL_APP_DEFECT"
	// KindUnknown is recorded when neither the heuristic rules nor the model
	// established a category. It is a valid state, not an error.
	KindUnknown FailureKind = "UNKNOWN"
)

// Valid reports whether k is a member of the closed enumeration.
func (k FailureKind) Valid() bool {
	switch k {
	case KindLocatorDrift, KindTimeout, KindAssertionFailed,
		KindEnvironmentIssue, KindPotentialAppDefect, KindUnknown:
		return true
	}
	return false
}

// Reserved exit codes synthesized by the evidence collector. Real runner
// exit codes are always >= 0 and Go reports signal-killed children as -1,
// so these cannot collide with either.
const (
	// ExitCodeTimeout marks a run that exceeded the configured wall-clock bound.
	ExitCodeTimeout = -2
	// ExitCodeRunnerMissing marks a run where the runner binary could not be started.
	ExitCodeRunnerMissing = -3
)

// FailureEvidence is an immutable snapshot of one test run. It is created by
// the evidence collector and read-only thereafter.
type FailureEvidence struct {
	Stdout         string        `json:"stdout"`
	Stderr         string        `json:"stderr"`
	ExitCode       int           `json:"exit_code"`
	ScreenshotPath string        `json:"screenshot_path,omitempty"`
	Duration       time.Duration `json:"duration"`
	CollectedAt    time.Time     `json:"collected_at"`
}

// Passed reports whether the run this evidence describes exited cleanly.
func (e FailureEvidence) Passed() bool {
	return e.ExitCode == 0
}

// TimedOut reports whether the exit code is the synthesized timeout sentinel.
func (e FailureEvidence) TimedOut() bool {
	return e.ExitCode == ExitCodeTimeout
}

// CombinedLog returns the text the classifier and reasoner operate on.
// Stderr is preferred because Playwright writes its failure report there;
// stdout is the fallback for runners that interleave everything.
func (e FailureEvidence) CombinedLog() string {
	if strings.TrimSpace(e.Stderr) == "" {
		return e.Stdout
	}
	if strings.TrimSpace(e.Stdout) == "" {
		return e.Stderr
	}
	return e.Stdout + "\n" + e.Stderr
}

// FailureClassification is a typed diagnosis of a failure. Heuristic matches
// carry Confidence exactly 1.0 (deterministic evidence); model-derived
// classifications carry the model's own estimate in [0, 1).
type FailureClassification struct {
	Kind       FailureKind `json:"kind"`
	Confidence float64     `json:"confidence"`
	Reason     string      `json:"reason"`
}

// HealingAction is the specific code change proposed for a file.
// OriginalCode must denote one contiguous block of the current file content;
// FixedCode is its contiguous replacement.
type HealingAction struct {
	OriginalCode string `json:"original_code"`
	FixedCode    string `json:"fixed_code"`
	Description  string `json:"description"`
}

// IsZero reports whether the action proposes no change at all.
func (a HealingAction) IsZero() bool {
	return a.OriginalCode == "" && a.FixedCode == "" && a.Description == ""
}

// OutcomeCode identifies how a healing attempt ended. Every code except
// VERIFIED consumes one attempt from the orchestrator's budget.
type OutcomeCode string

const (
	OutcomeCollectionTimeout    OutcomeCode = "COLLECTION_TIMEOUT"
	OutcomeClassificationNone   OutcomeCode = "CLASSIFICATION_NONE"
	OutcomeReasoningParseFailed OutcomeCode = "REASONING_PARSE_FAILURE"
	OutcomeReasoningNoAction    OutcomeCode = "REASONING_NO_ACTION"
	OutcomePatchNotApplicable   OutcomeCode = "PATCH_NOT_APPLICABLE"
	OutcomeVerificationFailed   OutcomeCode = "VERIFICATION_FAILED"
	OutcomeVerified             OutcomeCode = "VERIFIED"
)

// HealingDecision is the unit of record for one healing attempt. It is
// immutable once written: one artifact file per attempt, never overwritten.
type HealingDecision struct {
	ID                 string                `json:"id"`
	TestFile           string                `json:"test_file"`
	Attempt            int                   `json:"attempt"`
	Classification     FailureClassification `json:"classification"`
	FailureSummary     string                `json:"failure_summary"`
	Hypothesis         string                `json:"hypothesis"`
	ReasoningSteps     []string              `json:"reasoning_steps"`
	Action             *HealingAction        `json:"action_taken,omitempty"`
	Outcome            OutcomeCode           `json:"outcome"`
	VerificationPassed bool                  `json:"verification_passed"`
	VerificationLog    string                `json:"verification_log,omitempty"`
	Timestamp          time.Time             `json:"timestamp"`
}

// StageStatus is the terminal status of one timeline stage.
type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageError   StageStatus = "error"
	StageSkipped StageStatus = "skipped"
)

// TimelineStage records one named stage of a healing attempt.
type TimelineStage struct {
	Name      string      `json:"name"`
	Status    StageStatus `json:"status"`
	Detail    string      `json:"detail,omitempty"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   time.Time   `json:"ended_at"`
}

// ExecutionTimeline is the ordered stage sequence for one healing attempt,
// persisted alongside the decision for audit and debugging.
type ExecutionTimeline struct {
	TestFile string          `json:"test_file"`
	Attempt  int             `json:"attempt"`
	Stages   []TimelineStage `json:"stages"`
}

// DiagnosisResponse is the exact JSON object the model backend must return.
// Any deviation from this schema is a parse failure; fields are validated,
// never coerced.
type DiagnosisResponse struct {
	FailureType     string          `json:"failure_type"`
	FailureSummary  string          `json:"failure_summary"`
	Hypothesis      string          `json:"hypothesis"`
	ConfidenceScore float64         `json:"confidence_score"`
	ReasoningSteps  []string        `json:"reasoning_steps"`
	ActionTaken     *ActionResponse `json:"action_taken"`
}

// ActionResponse mirrors HealingAction on the wire, except that models
// occasionally emit code fields as arrays of lines; FlexibleCode absorbs
// both shapes so that tolerance lives at the boundary, not in the pipeline.
type ActionResponse struct {
	OriginalCode FlexibleCode `json:"original_code"`
	FixedCode    FlexibleCode `json:"fixed_code"`
	Description  string       `json:"description"`
}

// FlexibleCode decodes from either a JSON string or an array of strings,
// which are joined with newlines.
type FlexibleCode string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleCode) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var lines []string
		if err := unmarshalJSON(data, &lines); err != nil {
			return err
		}
		*f = FlexibleCode(strings.Join(lines, "\n"))
		return nil
	}
	var s string
	if err := unmarshalJSON(data, &s); err != nil {
		return err
	}
	*f = FlexibleCode(s)
	return nil
}
