package linguistic

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codeguard/codeguard/internal/pyast"
)

// npcDetector answers: does the code contain features the prompt never
// asked for? Debug output, logging, validation, error handling,
// authorization checks, caching, and sorting all count when the prompt
// is silent about them.
type npcDetector struct{}

func (d *npcDetector) Question() string { return QuestionNPC }

// npcRules pairs a code regex with the prompt keywords that would make
// the feature requested rather than unprompted.
var npcRules = []struct {
	feature        string
	code           *regexp.Regexp
	promptKeywords []string
}{
	{"debugging output", regexp.MustCompile(`\bprint\s*\(|\bbreakpoint\s*\(|import\s+pdb`), []string{"print", "debug", "output", "display", "show"}},
	{"logging", regexp.MustCompile(`\blogging\.|\blogger\.|\.debug\(|\.info\(|\.warning\(`), []string{"log", "logging"}},
	{"input validation", regexp.MustCompile(`\bassert\s|\bif\s+not\s+isinstance|\bif\s+.+\s+is\s+None`), []string{"validate", "validation", "check", "verify"}},
	{"error handling", regexp.MustCompile(`\btry\s*:|\bexcept\b|\bfinally\s*:|\braise\b`), []string{"error", "exception", "handle", "raise"}},
	{"authorization checks", regexp.MustCompile(`(?i)\b(admin|auth|permission|role|authorized)\b`), []string{"admin", "auth", "permission", "role", "security"}},
	{"caching", regexp.MustCompile(`@lru_cache|@cache\b|(?i)\bcache\b`), []string{"cache", "caching", "memoize", "optimize"}},
	{"sorting", regexp.MustCompile(`\bsorted\s*\(|\.sort\s*\(`), []string{"sort", "sorted", "order", "ascending", "descending"}},
}

func (d *npcDetector) Tier1(in *Input) TierEvidence {
	promptLower := strings.ToLower(in.Prompt)
	var issues []Issue

	for _, rule := range npcRules {
		if !rule.code.MatchString(in.Code) {
			continue
		}
		requested := false
		for _, kw := range rule.promptKeywords {
			if strings.Contains(promptLower, kw) {
				requested = true
				break
			}
		}
		if requested {
			continue
		}
		issues = append(issues, Issue{
			Type:       "npc_pattern",
			Message:    rule.feature + " not requested by the prompt",
			Value:      rule.feature,
			Confidence: 0.7,
		})
	}

	return TierEvidence{
		Found:      len(issues) > 0,
		Issues:     issues,
		Confidence: maxConfidence(issues),
		Severity:   4,
	}
}

// Tier2 keeps only candidates the AST confirms: real print calls (a
// regex hit inside a comment is discarded), real logging calls, real
// try blocks, cache decorators, and authorization conditionals.
func (d *npcDetector) Tier2(in *Input) TierEvidence {
	if in.Src == nil {
		return TierEvidence{}
	}
	src := in.Src
	promptLower := strings.ToLower(in.Prompt)
	var issues []Issue

	printCount := 0
	logCount := 0
	for _, call := range src.Calls() {
		if call.Name == "print" {
			printCount++
		}
		lower := strings.ToLower(call.Name)
		if lower == "debug" || lower == "info" || lower == "warning" || lower == "error" ||
			strings.HasPrefix(call.FullName, "logging.") || strings.HasPrefix(call.FullName, "logger.") {
			logCount++
		}
	}
	if printCount > 0 && !containsAny(promptLower, "print", "debug", "output", "display", "show") {
		issues = append(issues, Issue{
			Type:       "print_statement",
			Message:    fmt.Sprintf("%d print call(s) present but the prompt never asks for output", printCount),
			Confidence: 1.0,
		})
	}
	if logCount > 0 && !strings.Contains(promptLower, "log") {
		issues = append(issues, Issue{
			Type:       "logging",
			Message:    fmt.Sprintf("%d logging call(s) present but logging was not requested", logCount),
			Confidence: 1.0,
		})
	}

	tryCount := 0
	pyast.Walk(src.Root(), func(n *sitter.Node) bool {
		if n.Type() == "try_statement" {
			tryCount++
		}
		return true
	})
	if tryCount > 0 && !containsAny(promptLower, "error", "exception", "handle") {
		issues = append(issues, Issue{
			Type:       "error_handling",
			Message:    "try/except error handling present but not requested",
			Confidence: 1.0,
		})
	}

	for _, fn := range src.Functions() {
		for _, dec := range fn.Decorators {
			lower := strings.ToLower(dec)
			if strings.Contains(lower, "cache") || strings.Contains(lower, "memo") {
				if !containsAny(promptLower, "cache", "memoize", "optimize") {
					issues = append(issues, Issue{
						Type:       "caching",
						Message:    fmt.Sprintf("memoization decorator @%s not requested", dec),
						Line:       fn.Line,
						Confidence: 1.0,
					})
				}
			}
		}
	}

	pyast.Walk(src.Root(), func(n *sitter.Node) bool {
		if n.Type() != "if_statement" {
			return true
		}
		cond := n.ChildByFieldName("condition")
		if cond == nil {
			return true
		}
		condLower := strings.ToLower(src.Text(cond))
		if containsAny(condLower, "admin", "auth", "permission", "role") &&
			!containsAny(promptLower, "admin", "auth", "permission", "role", "security") {
			issues = append(issues, Issue{
				Type:       "authorization",
				Message:    "authorization check present but not requested",
				Line:       pyast.Line(n),
				Confidence: 1.0,
			})
		}
		return true
	})

	return TierEvidence{
		Found:      len(issues) > 0,
		Issues:     issues,
		Confidence: maxConfidence(issues),
		Severity:   5,
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func maxConfidence(issues []Issue) float64 {
	max := 0.0
	for _, issue := range issues {
		if issue.Confidence > max {
			max = issue.Confidence
		}
	}
	return max
}
