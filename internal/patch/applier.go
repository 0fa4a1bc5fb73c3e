package patch

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
)

// Rejection sentinels. Every rejection leaves the source untouched; callers
// map all three to the PATCH_NOT_APPLICABLE outcome.
var (
	// ErrEmptyAction means the action proposes no usable code change.
	ErrEmptyAction = errors.New("healing action proposes no code change")
	// ErrNoMatch means no strategy located the original block confidently.
	ErrNoMatch = errors.New("original code block not found in source")
	// ErrAmbiguous means the original block matched more than one location.
	// An ambiguous match is never applied silently.
	ErrAmbiguous = errors.New("original code block matches more than one location")
)

// scoreEpsilon bounds float comparison when detecting tied fuzzy windows.
const scoreEpsilon = 1e-9

// Applier locates a proposed original block inside file content and replaces
// it with the proposed fix, escalating through three match strategies:
// exact substring, whitespace-normalized lines, then bounded similarity.
type Applier struct {
	threshold float64
	logger    *zap.Logger
}

// NewApplier creates an Applier. A non-positive threshold selects
// DefaultSimilarityThreshold.
func NewApplier(threshold float64, logger *zap.Logger) *Applier {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Applier{
		threshold: threshold,
		logger:    logger.Named("patch"),
	}
}

// Apply returns source with the action's original block replaced by its
// fixed block, or a rejection error wrapping ErrEmptyAction, ErrNoMatch or
// ErrAmbiguous. On rejection the returned string is source, unmodified.
func (a *Applier) Apply(source string, action schemas.HealingAction) (string, error) {
	if action.OriginalCode == "" || action.FixedCode == "" {
		return source, ErrEmptyAction
	}

	// Strategy 1: exact byte match. The splice preserves every byte outside
	// the span, which is what makes the round-trip property hold.
	switch count := strings.Count(source, action.OriginalCode); count {
	case 0:
		// Fall through to the line-based strategies.
	case 1:
		idx := strings.Index(source, action.OriginalCode)
		a.logger.Debug("Patch applied via exact match", zap.Int("offset", idx))
		return source[:idx] + action.FixedCode + source[idx+len(action.OriginalCode):], nil
	default:
		return source, fmt.Errorf("exact match found %d occurrences: %w", count, ErrAmbiguous)
	}

	sourceLines := strings.Split(source, "\n")
	targetLines := blockLines(action.OriginalCode)
	fixedLines := blockLines(action.FixedCode)
	if len(targetLines) == 0 {
		return source, ErrEmptyAction
	}

	// Strategy 2: whitespace-normalized window equality. Accommodates models
	// reproducing the block with altered indentation.
	if start, err := a.normalizedMatch(sourceLines, targetLines); err == nil {
		return a.replaceWindow(sourceLines, start, len(targetLines), fixedLines), nil
	} else if errors.Is(err, ErrAmbiguous) {
		return source, err
	}

	// Strategy 3: best-effort similarity above the acceptance threshold.
	start, err := a.similarityMatch(sourceLines, targetLines)
	if err != nil {
		return source, err
	}
	return a.replaceWindow(sourceLines, start, len(targetLines), fixedLines), nil
}

// normalizedMatch slides a window of len(target) through the source and
// compares strip-trimmed lines. Exactly one matching window is required.
func (a *Applier) normalizedMatch(sourceLines, targetLines []string) (int, error) {
	stripped := make([]string, len(targetLines))
	for i, l := range targetLines {
		stripped[i] = strings.TrimSpace(l)
	}

	matches := []int{}
	for i := 0; i+len(targetLines) <= len(sourceLines); i++ {
		ok := true
		for j := range stripped {
			if strings.TrimSpace(sourceLines[i+j]) != stripped[j] {
				ok = false
				break
			}
		}
		if ok {
			matches = append(matches, i)
		}
	}

	switch len(matches) {
	case 0:
		return 0, ErrNoMatch
	case 1:
		a.logger.Debug("Patch location found via normalized match", zap.Int("line", matches[0]+1))
		return matches[0], nil
	default:
		return 0, fmt.Errorf("normalized match found %d windows: %w", len(matches), ErrAmbiguous)
	}
}

// similarityMatch scores every window against the target and accepts the
// single best window at or above the threshold. A tie at the maximum is
// rejected rather than guessed at.
func (a *Applier) similarityMatch(sourceLines, targetLines []string) (int, error) {
	stripped := make([]string, len(targetLines))
	for i, l := range targetLines {
		stripped[i] = strings.TrimSpace(l)
	}

	best := -1.0
	bestStart := -1
	tied := 0
	window := make([]string, len(targetLines))

	for i := 0; i+len(targetLines) <= len(sourceLines); i++ {
		for j := range window {
			window[j] = strings.TrimSpace(sourceLines[i+j])
		}
		score := Similarity(window, stripped)
		switch {
		case score > best+scoreEpsilon:
			best = score
			bestStart = i
			tied = 1
		case score > best-scoreEpsilon:
			tied++
		}
	}

	if bestStart < 0 || best < a.threshold {
		return 0, fmt.Errorf("best similarity %.3f below threshold %.3f: %w", best, a.threshold, ErrNoMatch)
	}
	if tied > 1 {
		return 0, fmt.Errorf("%d windows tied at similarity %.3f: %w", tied, best, ErrAmbiguous)
	}

	a.logger.Debug("Patch location found via similarity match",
		zap.Int("line", bestStart+1),
		zap.Float64("score", best),
	)
	return bestStart, nil
}

// replaceWindow splices the re-indented fixed lines over the matched window.
// All lines outside the window are carried over verbatim.
func (a *Applier) replaceWindow(sourceLines []string, start, length int, fixedLines []string) string {
	baseIndent := leadingWhitespace(sourceLines[start])
	replacement := reindentBlock(fixedLines, baseIndent)

	out := make([]string, 0, len(sourceLines)-length+len(replacement))
	out = append(out, sourceLines[:start]...)
	out = append(out, replacement...)
	out = append(out, sourceLines[start+length:]...)
	return strings.Join(out, "\n")
}

// blockLines splits a code block into lines, dropping a single trailing
// newline so it does not introduce a phantom empty line into the window.
func blockLines(block string) []string {
	block = strings.TrimSuffix(block, "\n")
	if block == "" {
		return nil
	}
	return strings.Split(block, "\n")
}

// reindentBlock strips the block's common leading whitespace and prefixes
// every non-blank line with baseIndent, preserving relative nesting.
func reindentBlock(lines []string, baseIndent string) []string {
	common := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := len(leadingWhitespace(l))
		if common < 0 || indent < common {
			common = indent
		}
	}
	if common < 0 {
		common = 0
	}

	out := make([]string, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			out[i] = ""
			continue
		}
		out[i] = baseIndent + l[common:]
	}
	return out
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}
