package heuristics

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
)

// HeuristicConfidence is the confidence assigned to every signature match.
// A matched signature is deterministic evidence, not a probabilistic
// estimate, so it is pinned to exactly 1.0.
const HeuristicConfidence = 1.0

// Classifier pattern-matches failure evidence against an ordered rule set.
type Classifier struct {
	rules  []Rule
	logger *zap.Logger
}

// New creates a Classifier over an explicit rule set. Tests inject custom
// tables here; production code uses Default.
func New(rules []Rule, logger *zap.Logger) *Classifier {
	return &Classifier{
		rules:  rules,
		logger: logger.Named("heuristics"),
	}
}

// Default creates a Classifier with the built-in Playwright signature table.
func Default(logger *zap.Logger) *Classifier {
	return New(DefaultRules(), logger)
}

// Classify returns a typed classification for the evidence, or nil when the
// test passed or no signature matched. Classification only runs on failures.
func (c *Classifier) Classify(ev schemas.FailureEvidence) *schemas.FailureClassification {
	_, cls := c.MatchedRule(ev)
	return cls
}

// MatchedRule is Classify plus the winning rule itself, so callers can act
// on rule-attached fixes. Both results are nil when nothing matched.
func (c *Classifier) MatchedRule(ev schemas.FailureEvidence) (*Rule, *schemas.FailureClassification) {
	if ev.Passed() {
		return nil, nil
	}

	logs := ev.CombinedLog()
	if logs == "" {
		return nil, nil
	}

	for i := range c.rules {
		rule := &c.rules[i]
		if rule.Pattern.MatchString(logs) {
			c.logger.Debug("Failure signature matched",
				zap.String("rule", rule.Name),
				zap.String("kind", string(rule.Kind)),
			)
			return rule, &schemas.FailureClassification{
				Kind:       rule.Kind,
				Confidence: HeuristicConfidence,
				Reason:     rule.Reason,
			}
		}
	}
	return nil, nil
}
