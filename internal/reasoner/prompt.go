package reasoner

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/suture-cli/api/schemas"
)

// maxLogBytes caps how much runner output is embedded in the prompt. The
// tail is kept because Playwright prints the failure report last.
const maxLogBytes = 4000

const systemPrompt = `You are an expert test automation engineer diagnosing a failing Playwright end-to-end test.

You receive the test source, the runner's output, and optionally a screenshot of the page at the moment of failure. Determine why the test failed and, when the test code itself is at fault, propose a minimal fix.

Respond with a single JSON object and nothing else:
{
  "failure_type": one of "LOCATOR_DRIFT", "TIMEOUT", "ASSERTION_FAILED", "ENVIRONMENT_ISSUE", "POTENTIAL_APP_DEFECT", "UNKNOWN",
  "failure_summary": one sentence describing what happened,
  "hypothesis": the most likely root cause,
  "confidence_score": a number between 0 and 1,
  "reasoning_steps": an array of short strings describing how you reached the hypothesis,
  "action_taken": null, or {
    "original_code": the exact contiguous block from the test source to replace,
    "fixed_code": the replacement block,
    "description": one sentence describing the change
  }
}

Rules:
- "original_code" must be copied verbatim from the test source, including indentation.
- Set "action_taken" to null when the failure is not fixable by editing the test, such as an application defect or an environment problem.
- Never invent selectors that do not appear in the source or the failure output.`

// buildUserPrompt assembles the per-attempt prompt. The heuristic hint, when
// present, is stated as prior evidence the model may confirm or overturn.
func buildUserPrompt(fileSource string, ev schemas.FailureEvidence, hint *schemas.FailureClassification) string {
	var b strings.Builder

	b.WriteString("## Test Source\n```\n")
	b.WriteString(fileSource)
	b.WriteString("\n```\n\n")

	b.WriteString("## Runner Output\n")
	fmt.Fprintf(&b, "Exit code: %d\n", ev.ExitCode)
	fmt.Fprintf(&b, "Duration: %s\n", ev.Duration)
	b.WriteString("```\n")
	b.WriteString(truncateLog(ev.CombinedLog()))
	b.WriteString("\n```\n")

	if hint != nil {
		fmt.Fprintf(&b, "\n## Heuristic Pre-Classification\nA deterministic signature match classified this failure as %s: %s\nTreat this as strong prior evidence, but overturn it if the source and output contradict it.\n",
			hint.Kind, hint.Reason)
	}

	if ev.ScreenshotPath != "" {
		b.WriteString("\nA screenshot of the page at the moment of failure is attached.\n")
	}

	return b.String()
}

// truncateLog keeps the final maxLogBytes of the log, cutting at a line
// boundary where possible.
func truncateLog(log string) string {
	if len(log) <= maxLogBytes {
		return log
	}
	tail := log[len(log)-maxLogBytes:]
	if idx := strings.IndexByte(tail, '\n'); idx >= 0 && idx < len(tail)-1 {
		tail = tail[idx+1:]
	}
	return "[... output truncated ...]\n" + tail
}
