// Package reasoner turns failure evidence into a structured diagnosis by
// consulting the model backend. It owns prompt construction, response
// extraction and schema validation; it never touches files or the runner.
package reasoner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrParse means the model's response could not be decoded into a valid
// diagnosis. The raw response is discarded; the orchestrator decides whether
// to spend another attempt.
var ErrParse = errors.New("model response is not a valid diagnosis")

// maxModelConfidence caps model-reported confidence so that it can never
// outrank a deterministic heuristic match.
const maxModelConfidence = 0.99

// Diagnosis is the validated result of one reasoning call.
type Diagnosis struct {
	Classification schemas.FailureClassification
	Summary        string
	Hypothesis     string
	ReasoningSteps []string
	// Action is nil when the model judged the failure not fixable by
	// editing the test.
	Action *schemas.HealingAction
}

// Reasoner drives the model backend for diagnosis.
type Reasoner struct {
	llm         schemas.LLMClient
	temperature float64
	logger      *zap.Logger
}

// New creates a Reasoner.
func New(llm schemas.LLMClient, temperature float64, logger *zap.Logger) *Reasoner {
	return &Reasoner{
		llm:         llm,
		temperature: temperature,
		logger:      logger.Named("reasoner"),
	}
}

// Diagnose asks the model why the test failed. Exactly one generation call
// is made per invocation; malformed output returns an error wrapping
// ErrParse rather than triggering a retry.
func (r *Reasoner) Diagnose(ctx context.Context, fileSource string, ev schemas.FailureEvidence, hint *schemas.FailureClassification) (*Diagnosis, error) {
	req := schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(fileSource, ev, hint),
		Options: schemas.GenerationOptions{
			Temperature:     r.temperature,
			ForceJSONFormat: true,
		},
		Images: r.loadScreenshot(ev.ScreenshotPath),
	}

	raw, err := r.llm.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("diagnosis generation failed: %w", err)
	}

	diag, err := parseDiagnosis(raw)
	if err != nil {
		r.logger.Warn("Discarding malformed model response",
			zap.Error(err),
			zap.Int("response_bytes", len(raw)),
		)
		return nil, err
	}

	r.logger.Info("Diagnosis obtained",
		zap.String("kind", string(diag.Classification.Kind)),
		zap.Float64("confidence", diag.Classification.Confidence),
		zap.Bool("action_proposed", diag.Action != nil),
	)
	return diag, nil
}

// loadScreenshot reads the screenshot into an attachment. Best effort: a
// missing or unreadable file means no attachment, never a failed diagnosis.
func (r *Reasoner) loadScreenshot(path string) []schemas.ImageAttachment {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		r.logger.Warn("Screenshot unreadable, proceeding without it",
			zap.String("path", path), zap.Error(err))
		return nil
	}
	mime := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	}
	return []schemas.ImageAttachment{{Data: data, MIMEType: mime}}
}

// parseDiagnosis extracts the JSON object from the raw response and
// validates it against the diagnosis schema. All failures wrap ErrParse.
func parseDiagnosis(raw string) (*Diagnosis, error) {
	block, err := extractJSONBlock(raw)
	if err != nil {
		return nil, err
	}

	var resp schemas.DiagnosisResponse
	if err := json.Unmarshal([]byte(block), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	kind := schemas.FailureKind(strings.ToUpper(strings.TrimSpace(resp.FailureType)))
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown failure_type %q", ErrParse, resp.FailureType)
	}
	if strings.TrimSpace(resp.Hypothesis) == "" {
		return nil, fmt.Errorf("%w: hypothesis is empty", ErrParse)
	}

	confidence := resp.ConfidenceScore
	if confidence < 0 {
		confidence = 0
	}
	if confidence > maxModelConfidence {
		confidence = maxModelConfidence
	}

	diag := &Diagnosis{
		Classification: schemas.FailureClassification{
			Kind:       kind,
			Confidence: confidence,
			Reason:     strings.TrimSpace(resp.FailureSummary),
		},
		Summary:        strings.TrimSpace(resp.FailureSummary),
		Hypothesis:     strings.TrimSpace(resp.Hypothesis),
		ReasoningSteps: resp.ReasoningSteps,
	}

	if resp.ActionTaken != nil {
		action := schemas.HealingAction{
			OriginalCode: string(resp.ActionTaken.OriginalCode),
			FixedCode:    string(resp.ActionTaken.FixedCode),
			Description:  strings.TrimSpace(resp.ActionTaken.Description),
		}
		// A present but empty action object is treated the same as null.
		if !action.IsZero() {
			if action.OriginalCode == "" || action.FixedCode == "" {
				return nil, fmt.Errorf("%w: action_taken is missing original_code or fixed_code", ErrParse)
			}
			diag.Action = &action
		}
	}

	return diag, nil
}

// extractJSONBlock locates the JSON object inside a raw model response,
// tolerating markdown fences and leading prose. Control characters that
// some backends leak into string literals are stripped, except the
// structural tab, newline and carriage return.
func extractJSONBlock(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object found", ErrParse)
	}
	s = s[start : end+1]

	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s), nil
}
