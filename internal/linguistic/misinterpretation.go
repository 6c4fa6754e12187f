package linguistic

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codeguard/codeguard/internal/pyast"
)

// misinterpretationDetector answers: does the code solve a different
// problem than the prompt posed? Return shape against the requested
// shape, print-vs-return polarity, selection verbs with no
// conditional, and wrong-algorithm tells.
type misinterpretationDetector struct{}

func (d *misinterpretationDetector) Question() string { return QuestionMisinterpretation }

var (
	returnsListRe = regexp.MustCompile(`return\s*\[`)
	returnsDictRe = regexp.MustCompile(`return\s*\{`)
	returnRe      = regexp.MustCompile(`\breturn\b`)
	printRe       = regexp.MustCompile(`\bprint\s*\(`)
	ifRe          = regexp.MustCompile(`\bif\b`)
)

// algorithmTells map a requested computation to the shape that betrays
// a different one.
var algorithmTells = []struct {
	requested []string
	missing   *regexp.Regexp
	present   *regexp.Regexp
	message   string
}{
	{
		requested: []string{"average", "mean"},
		missing:   regexp.MustCompile(`/`),
		present:   regexp.MustCompile(`\bsum\s*\(`),
		message:   "the prompt asks for an average but the code returns a sum",
	},
	{
		requested: []string{"maximum", "largest", "biggest"},
		missing:   regexp.MustCompile(`\bmax\b|\bsorted\b|\bsort\b|>`),
		present:   regexp.MustCompile(`\bmin\s*\(`),
		message:   "the prompt asks for a maximum but the code computes a minimum",
	},
	{
		requested: []string{"minimum", "smallest"},
		missing:   regexp.MustCompile(`\bmin\b|\bsorted\b|\bsort\b|<`),
		present:   regexp.MustCompile(`\bmax\s*\(`),
		message:   "the prompt asks for a minimum but the code computes a maximum",
	},
}

func (d *misinterpretationDetector) Tier1(in *Input) TierEvidence {
	promptLower := strings.ToLower(in.Prompt)
	code := stripComments(in.Code)
	var issues []Issue

	wantsList := strings.Contains(promptLower, "return") &&
		(strings.Contains(promptLower, "list") || strings.Contains(promptLower, "array"))
	wantsDict := strings.Contains(promptLower, "return") &&
		(strings.Contains(promptLower, "dict") || strings.Contains(promptLower, "mapping"))

	if wantsList && !returnsListRe.MatchString(code) {
		issues = append(issues, Issue{
			Type:       "return_shape",
			Message:    "the prompt expects a list return but no list is returned",
			Confidence: 0.6,
		})
	}
	if wantsDict && !returnsDictRe.MatchString(code) {
		issues = append(issues, Issue{
			Type:       "return_shape",
			Message:    "the prompt expects a dict return but no dict is returned",
			Confidence: 0.6,
		})
	}

	if strings.Contains(promptLower, "return") &&
		printRe.MatchString(code) && !returnRe.MatchString(code) {
		issues = append(issues, Issue{
			Type:       "print_vs_return",
			Message:    "the prompt asks for a return value but the code only prints",
			Confidence: 0.7,
		})
	}

	if containsAny(promptLower, "filter", "remove", "exclude", "only keep") && !ifRe.MatchString(code) {
		issues = append(issues, Issue{
			Type:       "no_selection",
			Message:    "the prompt asks for filtering but the code has no conditional selection",
			Confidence: 0.65,
		})
	}

	for _, tell := range algorithmTells {
		if !containsAny(promptLower, tell.requested...) {
			continue
		}
		if tell.present.MatchString(code) && !tell.missing.MatchString(code) {
			issues = append(issues, Issue{
				Type:       "wrong_algorithm",
				Message:    tell.message,
				Confidence: 0.75,
			})
		}
	}

	return TierEvidence{
		Found:      len(issues) > 0,
		Issues:     issues,
		Confidence: maxConfidence(issues),
		Severity:   6,
	}
}

// Tier2 confirms Tier-1 candidates against the AST: a return-shape
// claim needs a reachable return of the alleged category, and the
// print-vs-return claim needs real print calls with no value-bearing
// return anywhere.
func (d *misinterpretationDetector) Tier2(in *Input) TierEvidence {
	if in.Src == nil {
		return TierEvidence{}
	}
	src := in.Src
	var issues []Issue

	if in.Static != nil && in.Static.ReturnShape != nil {
		sig := in.Static.ReturnShape
		issues = append(issues, Issue{
			Type:       "return_shape",
			Message:    fmt.Sprintf("the prompt expects a %s return but line %d returns a %s", sig.Expected, sig.Line, sig.Actual),
			Line:       sig.Line,
			Confidence: 1.0,
		})
	}

	if strings.Contains(strings.ToLower(in.Prompt), "return") {
		hasValueReturn := false
		for _, ret := range src.Returns() {
			if ret.Category != pyast.CategoryEmpty {
				hasValueReturn = true
				break
			}
		}
		hasPrint := false
		pyast.Walk(src.Root(), func(n *sitter.Node) bool {
			if n.Type() == "call" {
				if fn := n.ChildByFieldName("function"); fn != nil && src.Text(fn) == "print" {
					hasPrint = true
					return false
				}
			}
			return true
		})
		if hasPrint && !hasValueReturn {
			issues = append(issues, Issue{
				Type:       "print_vs_return",
				Message:    "the code prints its result instead of returning it",
				Confidence: 1.0,
			})
		}
	}

	return TierEvidence{
		Found:      len(issues) > 0,
		Issues:     issues,
		Confidence: maxConfidence(issues),
		Severity:   7,
	}
}
