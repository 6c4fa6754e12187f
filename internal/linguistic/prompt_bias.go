package linguistic

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// promptBiasDetector answers: do literals from the prompt's examples
// appear hardcoded in the code paths that decide output?
type promptBiasDetector struct{}

func (d *promptBiasDetector) Question() string { return QuestionPromptBias }

func (d *promptBiasDetector) Tier1(in *Input) TierEvidence {
	var issues []Issue
	codeNoComments := stripComments(in.Code)

	for _, num := range promptNumbers(in.Prompt) {
		if containsToken(codeNoComments, num) {
			issues = append(issues, Issue{
				Type:       "hardcoded_number",
				Message:    fmt.Sprintf("number %s from the prompt appears in the code", num),
				Value:      num,
				Confidence: 0.9,
			})
		}
	}

	for _, quoted := range promptQuotedStrings(in.Prompt) {
		if strings.Contains(codeNoComments, quoted) {
			issues = append(issues, Issue{
				Type:       "hardcoded_string",
				Message:    fmt.Sprintf("example string %q from the prompt appears in the code", quoted),
				Value:      quoted,
				Confidence: 0.85,
			})
		}
	}

	for _, seq := range promptSequences(in.Prompt) {
		if strings.Contains(normalizeSequence(codeNoComments), normalizeSequence(seq)) {
			issues = append(issues, Issue{
				Type:       "hardcoded_sequence",
				Message:    fmt.Sprintf("example sequence %s from the prompt appears in the code", seq),
				Value:      seq,
				Confidence: 0.9,
			})
		}
	}

	return TierEvidence{
		Found:      len(issues) > 0,
		Issues:     issues,
		Confidence: maxConfidence(issues),
		Severity:   5,
	}
}

// Tier2 keeps a candidate literal only when it matches a prompt
// example and sits as an operand of a return, a comparison, or an
// assignment. Literals inside the entry-point guard are skipped.
func (d *promptBiasDetector) Tier2(in *Input) TierEvidence {
	if in.Src == nil || in.Static == nil {
		return TierEvidence{}
	}
	src := in.Src

	numbers := make(map[string]bool)
	for _, n := range promptNumbers(in.Prompt) {
		numbers[n] = true
	}
	strs := make(map[string]bool)
	for _, s := range promptQuotedStrings(in.Prompt) {
		strs[s] = true
	}
	seqs := make(map[string]bool)
	for _, s := range promptSequences(in.Prompt) {
		seqs[normalizeSequence(s)] = true
	}
	// The constituents of a prompt sequence example count as biased
	// numbers too: "[3,1,2]" hardcoded as [1, 2, 3] is the classic
	// example-overfit shape.
	for seq := range seqs {
		for _, n := range numberRe.FindAllString(seq, -1) {
			numbers[n] = true
		}
	}

	var issues []Issue
	for _, lit := range src.Literals() {
		if src.InMainGuard(lit.Node) {
			continue
		}
		matched := false
		switch lit.Kind {
		case "integer", "float":
			matched = numbers[lit.Text]
		case "string":
			matched = strs[lit.Text]
		case "list", "tuple":
			norm := normalizeSequence(lit.Text)
			if seqs[norm] || seqs[strings.Replace(norm, "(", "[", 1)] {
				matched = true
			} else {
				// All constituents drawn from prompt numbers also
				// marks the sequence as example-derived.
				parts := numberRe.FindAllString(lit.Text, -1)
				if len(parts) > 1 {
					matched = true
					for _, p := range parts {
						if !numbers[p] {
							matched = false
							break
						}
					}
				}
			}
		default:
			continue
		}
		if !matched {
			continue
		}
		if !decidesOutput(lit.Node) {
			continue
		}
		issues = append(issues, Issue{
			Type:       "hardcoded_literal",
			Message:    fmt.Sprintf("literal %s from the prompt example is hardcoded at line %d", lit.Text, lit.Line),
			Value:      lit.Text,
			Line:       lit.Line,
			Confidence: 1.0,
		})
	}

	return TierEvidence{
		Found:      len(issues) > 0,
		Issues:     issues,
		Confidence: maxConfidence(issues),
		Severity:   6,
	}
}

// decidesOutput reports whether a literal participates in a return, a
// comparison, or an assignment, rather than sitting in dead or
// display-only positions.
func decidesOutput(n *sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "return_statement", "comparison_operator", "assignment", "conditional_expression":
			return true
		case "function_definition", "module":
			return false
		}
	}
	return false
}

// stripComments removes # comments line by line. Good enough for the
// rule tier; the AST tier is authoritative.
func stripComments(code string) string {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "#"); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

// containsToken reports a whole-token match of needle in text.
func containsToken(text, needle string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], needle)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(needle)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end >= len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b == '.' ||
		(b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
