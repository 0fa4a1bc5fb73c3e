package heuristics

import (
	"regexp"

	"github.com/xkilldash9x/suture-cli/api/schemas"
)

// Rule is one failure signature. Rules are data, not code: the classifier
// walks an ordered slice and the first matching rule wins, so precedence is
// encoded purely by position.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Kind    schemas.FailureKind
	Reason  string
	// Fix, when set, is a pre-validated rule-specific action that lets the
	// orchestrator skip model diagnosis entirely. Reserved for unambiguous
	// signatures; none of the default rules carry one.
	Fix *schemas.HealingAction
}

// DefaultRules returns the built-in signature table for Playwright output.
//
// Ordering is load-bearing: a failing request can itself cause a wait to
// time out, so network and environment signatures are checked before the
// generic timeout signature, and locator signatures before timeout because
// "waiting for locator" lines usually accompany them.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "http-server-error",
			Pattern: regexp.MustCompile(`net::ERR_|ERR_CONNECTION|HTTP (?:error )?50\d|status(?: code)?:? 50\d|\b50\d (?:Internal Server Error|Bad Gateway|Service Unavailable|Gateway Timeout)`),
			Kind:    schemas.KindPotentialAppDefect,
			Reason:  "Detected network error or HTTP 5xx status in logs",
		},
		{
			Name:    "browser-environment",
			Pattern: regexp.MustCompile(`TargetClosedError|browser has been closed|Test runner could not be started|browserType\.launch`),
			Kind:    schemas.KindEnvironmentIssue,
			Reason:  "Detected browser crash or unavailable test runner",
		},
		{
			Name:    "locator-strict-mode",
			Pattern: regexp.MustCompile(`strict mode violation`),
			Kind:    schemas.KindLocatorDrift,
			Reason:  "Strict mode violation: multiple elements match the selector",
		},
		{
			Name:    "locator-resolved-none",
			Pattern: regexp.MustCompile(`locator resolved to 0 elements|element\(s\) not found`),
			Kind:    schemas.KindLocatorDrift,
			Reason:  "Selector resolved to no elements; the page structure likely changed",
		},
		{
			Name:    "timeout",
			Pattern: regexp.MustCompile(`TimeoutError|Timeout \d+m?s exceeded|waiting for selector|waiting for locator|Test execution timed out`),
			Kind:    schemas.KindTimeout,
			Reason:  "Detected a timeout or unresolved wait in logs",
		},
		{
			Name:    "assertion",
			Pattern: regexp.MustCompile(`expect\(.*\)|Expected:.*\n.*Received:|toBe\(|toHaveText\(|toContainText\(`),
			Kind:    schemas.KindAssertionFailed,
			Reason:  "Detected an assertion failure in logs",
		},
	}
}
