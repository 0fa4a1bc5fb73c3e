package schemas

import (
	"context"

	jsoniter "github.com/json-iterator/go"
)

// json is the package-wide codec. jsoniter keeps decoding of large model
// responses cheap while staying drop-in compatible with encoding/json.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

func unmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// ImageAttachment carries raw image bytes for vision-capable models.
type ImageAttachment struct {
	Data     []byte
	MIMEType string
}

// GenerationOptions controls the text generation process of the model.
type GenerationOptions struct {
	// Temperature controls randomness. Lower is more deterministic.
	Temperature float64 `json:"temperature"`
	// ForceJSONFormat, if true, forces the model to output valid JSON.
	ForceJSONFormat bool `json:"force_json_format"`
}

// GenerationRequest encapsulates a complete request to the model backend.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Options      GenerationOptions `json:"options"`
	// Images are attached as additional visual context (failure screenshots).
	Images []ImageAttachment `json:"-"`
}

// LLMClient abstracts the model backend. Implementations must not retry on
// malformed output; a failed call ends the current healing attempt and the
// orchestrator decides whether to spend another one.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Close() error
}

// TestRunner executes one test file and reports evidence about the run.
// A timeout is a normal, classifiable outcome, not an error: implementations
// return synthesized evidence instead of failing.
type TestRunner interface {
	Run(ctx context.Context, filePath string) (FailureEvidence, error)
}
