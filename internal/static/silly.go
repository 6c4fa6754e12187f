package static

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codeguard/codeguard/internal/pyast"
	"github.com/codeguard/codeguard/pkg/types"
)

// sillyMistakeDetector looks for non-human coding shapes: identical
// conditional branches, `x and x` / `x or x`, and the reversed
// discount/price operand heuristic.
type sillyMistakeDetector struct{}

type sillyIssue struct {
	line     int
	desc     string
	severity int
}

func (d *sillyMistakeDetector) Name() string { return "silly_mistake" }

func (d *sillyMistakeDetector) Detect(src *pyast.Source, prompt string, res *Result) {
	var issues []sillyIssue

	pyast.Walk(src.Root(), func(n *sitter.Node) bool {
		switch n.Type() {
		case "if_statement":
			if desc, ok := identicalBranches(src, n); ok {
				issues = append(issues, sillyIssue{line: pyast.Line(n), desc: desc, severity: 6})
			}
		case "boolean_operator":
			left := n.ChildByFieldName("left")
			right := n.ChildByFieldName("right")
			if left != nil && right != nil {
				lt := normalize(src.Text(left))
				rt := normalize(src.Text(right))
				if lt == rt && lt != "" {
					op := src.Text(n.ChildByFieldName("operator"))
					issues = append(issues, sillyIssue{
						line:     pyast.Line(n),
						desc:     fmt.Sprintf("redundant boolean expression %q %s %q", lt, op, rt),
						severity: 6,
					})
				}
			}
		}
		return true
	})

	issues = append(issues, d.reversedOperands(src, prompt)...)

	if len(issues) == 0 {
		return
	}

	severity := 0
	descs := make([]string, 0, len(issues))
	for _, iss := range issues {
		descs = append(descs, iss.desc)
		if iss.severity > severity {
			severity = iss.severity
		}
	}

	res.Findings = append(res.Findings, types.Finding{
		Pattern:    types.PatternSillyMistake,
		Severity:   severity,
		Confidence: 0.8,
		Description: fmt.Sprintf(
			"Non-human coding patterns detected: %s. Language models sometimes generate logically redundant or reversed operations.",
			strings.Join(descs, "; ")),
		Location:       fmt.Sprintf("Line %d", issues[0].line),
		DetectionStage: types.StageStatic,
	})
}

// identicalBranches compares the consequence and alternative of a
// conditional for structural equivalence. elif chains are skipped.
func identicalBranches(src *pyast.Source, ifNode *sitter.Node) (string, bool) {
	consequence := ifNode.ChildByFieldName("consequence")
	alternative := ifNode.ChildByFieldName("alternative")
	if consequence == nil || alternative == nil {
		return "", false
	}
	if alternative.Type() == "elif_clause" {
		return "", false
	}
	// else_clause wraps a body block.
	elseBody := alternative.ChildByFieldName("body")
	if elseBody == nil {
		return "", false
	}

	if normalize(src.Text(consequence)) == normalize(src.Text(elseBody)) {
		return "if and else branches contain identical code", true
	}
	return "", false
}

func normalize(text string) string {
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}

// sillyFinanceWords mark functions where operand order actually matters
// for the subtraction heuristic.
var sillyFinanceWords = []string{"discount", "price", "cost", "total", "pay"}

// reversedOperands applies the discount/price heuristic: inside a
// function whose name suggests price math, a `small - large` shaped
// subtraction of two parameters where the left one is the rate-like
// parameter. Suppressed inside class methods, where accessor patterns
// misfire; findings carry a severity floor of 5.
func (d *sillyMistakeDetector) reversedOperands(src *pyast.Source, prompt string) []sillyIssue {
	var issues []sillyIssue

	promptLower := strings.ToLower(prompt)

	for _, fn := range src.Functions() {
		if fn.InClass {
			continue
		}
		nameLower := strings.ToLower(fn.Name)
		relevant := false
		for _, w := range sillyFinanceWords {
			if strings.Contains(nameLower, w) || strings.Contains(promptLower, w) {
				relevant = true
				break
			}
		}
		if !relevant || len(fn.Params) < 2 {
			continue
		}

		params := make(map[string]bool, len(fn.Params))
		for _, p := range fn.Params {
			params[p] = true
		}

		pyast.Walk(fn.Body, func(n *sitter.Node) bool {
			if n.Type() != "binary_operator" {
				return true
			}
			op := n.ChildByFieldName("operator")
			if op == nil || src.Text(op) != "-" {
				return true
			}
			left := n.ChildByFieldName("left")
			right := n.ChildByFieldName("right")
			if left == nil || right == nil || left.Type() != "identifier" || right.Type() != "identifier" {
				return true
			}
			lname, rname := src.Text(left), src.Text(right)
			if !params[lname] || !params[rname] {
				return true
			}
			if rateLike(lname) && !rateLike(rname) {
				issues = append(issues, sillyIssue{
					line:     pyast.Line(n),
					desc:     fmt.Sprintf("suspicious subtraction %s - %s: operands appear reversed relative to the prompt", lname, rname),
					severity: 5,
				})
			}
			return true
		})
	}

	return issues
}

func rateLike(name string) bool {
	lower := strings.ToLower(name)
	for _, w := range []string{"discount", "rate", "percent", "pct", "off"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
