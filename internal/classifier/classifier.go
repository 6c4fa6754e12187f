// Package classifier merges static findings, the dynamic hypothesis,
// and the linguistic verdicts into the deduplicated ten-pattern output.
package classifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codeguard/codeguard/internal/dynamic"
	"github.com/codeguard/codeguard/internal/linguistic"
	"github.com/codeguard/codeguard/internal/static"
	"github.com/codeguard/codeguard/pkg/types"
)

// Classify applies the merge rules in order:
//
//  1. syntax errors suppress everything else;
//  2. dynamic name-resolution failures confirm static hallucinations;
//  3. dynamic wrong-attribute / wrong-input-type take precedence over
//     the static surface for the same line;
//  4. linguistic findings are emitted independently;
//  5. more than three findings synthesize a composite
//     misinterpretation at the median severity;
//  6. duplicates by (pattern, location) keep the highest confidence.
//
// lingRes may be nil for the provisional pass.
func Classify(staticRes *static.Result, dynRes *dynamic.Result, lingRes *linguistic.Result) []types.Finding {
	if staticRes != nil && staticRes.HasSyntaxError() {
		var syntax []types.Finding
		for _, f := range staticRes.Findings {
			if f.Pattern == types.PatternSyntaxError {
				syntax = append(syntax, f)
			}
		}
		return dedupe(syntax)
	}

	var findings []types.Finding
	if staticRes != nil {
		findings = append(findings, staticRes.Findings...)
	}

	findings = mergeDynamic(findings, staticRes, dynRes)
	findings = append(findings, linguisticFindings(lingRes)...)

	if len(findings) > 3 {
		findings = append(findings, compositeFinding(findings))
	}

	return dedupe(findings)
}

// mergeDynamic applies rules 2 and 3 plus the timeout signal.
func mergeDynamic(findings []types.Finding, staticRes *static.Result, dynRes *dynamic.Result) []types.Finding {
	if dynRes == nil || dynRes.Hypothesis == nil {
		return findings
	}
	h := dynRes.Hypothesis

	if dynRes.TimedOut {
		return append(findings, types.Finding{
			Pattern:        types.PatternMissingCornerCase,
			Severity:       h.Severity,
			Confidence:     0.6,
			Description:    "Execution exceeded the wall timeout. The code may loop on boundary inputs that were never guarded.",
			DetectionStage: types.StageDynamic,
		})
	}

	switch h.Pattern {
	case types.PatternHallucinated:
		// Rule 2: a runtime NameError naming a statically flagged
		// identifier merges into one boosted finding.
		confirmedName := ""
		if staticRes != nil {
			for _, hal := range staticRes.Hallucinated {
				if strings.Contains(h.Message, "'"+hal.Name+"'") {
					confirmedName = hal.Name
					break
				}
			}
		}
		if confirmedName != "" {
			for i, f := range findings {
				if f.Pattern != types.PatternHallucinated {
					continue
				}
				severity := f.Severity
				if h.Severity > severity {
					severity = h.Severity
				}
				severity++
				if severity > 10 {
					severity = 10
				}
				confidence := f.Confidence
				if 0.95 > confidence {
					confidence = 0.95
				}
				findings[i].Severity = severity
				findings[i].Confidence = confidence
				findings[i].Description = fmt.Sprintf(
					"Runtime NameError confirms the undefined reference %q: %s. %s",
					confirmedName, h.Message, f.Description)
				return findings
			}
		}
		return append(findings, dynamicFinding(h,
			fmt.Sprintf("Runtime NameError confirms an undefined object: %s. The generated code references names that do not exist.", h.Message), 0.95))

	case types.PatternWrongAttribute, types.PatternWrongInputType:
		// Rule 3: the runtime observation wins over the static surface
		// suggestion for the same line.
		kept := findings[:0]
		for _, f := range findings {
			if f.Pattern == h.Pattern && sameLine(f.Location, h.Line) {
				continue
			}
			kept = append(kept, f)
		}
		findings = kept
		desc := fmt.Sprintf("%s occurred at runtime: %s.", h.Kind, h.Message)
		return append(findings, dynamicFinding(h, desc, 0.9))

	default:
		desc := fmt.Sprintf("Runtime failure (%s): %s. A boundary input reached an unguarded path.", h.Kind, h.Message)
		return append(findings, dynamicFinding(h, desc, 0.85))
	}
}

func dynamicFinding(h *dynamic.Hypothesis, description string, confidence float64) types.Finding {
	location := ""
	if h.Line > 0 {
		location = fmt.Sprintf("Line %d", h.Line)
	}
	return types.Finding{
		Pattern:        h.Pattern,
		Severity:       h.Severity,
		Confidence:     confidence,
		Description:    description,
		Location:       location,
		DetectionStage: types.StageDynamic,
	}
}

// linguisticFindings applies rule 4. Missing-feature verdicts classify
// under the misinterpretation tag: the closed taxonomy has no
// missing-feature entry and omitted requested behavior is a form of
// solving a different problem.
func linguisticFindings(res *linguistic.Result) []types.Finding {
	if res == nil {
		return nil
	}
	var findings []types.Finding

	if v := res.NPC; v.Found {
		findings = append(findings, verdictFinding(v, types.PatternNPC, 5,
			"The code includes features the prompt did not ask for"))
	}
	if v := res.PromptBias; v.Found {
		findings = append(findings, verdictFinding(v, types.PatternPromptBiased, 6,
			"The code hardcodes example values from the prompt instead of implementing the general algorithm"))
	}
	if v := res.MissingFeature; v.Found {
		findings = append(findings, verdictFinding(v, types.PatternMisinterpretation, 6,
			"The code is missing features the prompt explicitly requested"))
	}
	if v := res.Misinterpretation; v.Found {
		findings = append(findings, verdictFinding(v, types.PatternMisinterpretation, 7,
			"The code solves a different problem than the prompt requested"))
	}

	return findings
}

func verdictFinding(v linguistic.Verdict, pattern types.Pattern, defaultSeverity int, lead string) types.Finding {
	severity := v.Severity
	if severity < 1 || severity > 10 {
		severity = defaultSeverity
	}
	confidence := v.Confidence
	if confidence <= 0 {
		confidence = 0.65
	}

	desc := lead
	if len(v.Items) > 0 {
		shown := v.Items
		more := ""
		if len(shown) > 3 {
			more = fmt.Sprintf(" (+%d more)", len(shown)-3)
			shown = shown[:3]
		}
		desc = fmt.Sprintf("%s: %s%s.", lead, strings.Join(shown, "; "), more)
	} else if v.Summary != "" {
		desc = fmt.Sprintf("%s: %s", lead, v.Summary)
	} else {
		desc += "."
	}

	return types.Finding{
		Pattern:        pattern,
		Severity:       severity,
		Confidence:     confidence,
		Description:    desc,
		DetectionStage: types.StageLinguistic,
	}
}

// compositeFinding applies rule 5: many findings together suggest the
// model misunderstood the task. It carries the constituent pattern
// names, never pointers to the findings themselves.
func compositeFinding(findings []types.Finding) types.Finding {
	severities := make([]int, 0, len(findings))
	patterns := make([]string, 0, len(findings))
	seen := make(map[types.Pattern]bool)
	for _, f := range findings {
		severities = append(severities, f.Severity)
		if !seen[f.Pattern] {
			seen[f.Pattern] = true
			patterns = append(patterns, string(f.Pattern))
		}
	}

	return types.Finding{
		Pattern:    types.PatternMisinterpretation,
		Severity:   median(severities),
		Confidence: 0.6,
		Description: fmt.Sprintf(
			"Multiple defect patterns were detected together (%s), suggesting the model misunderstood the task as a whole.",
			strings.Join(patterns, ", ")),
		Location:       "Multiple issues across the code",
		DetectionStage: types.StageComposite,
	}
}

func median(values []int) int {
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2] + 1) / 2
}

// dedupe applies rule 6: within a (pattern, location) group the
// highest-confidence entry survives, takes the group's highest
// severity, and distinct descriptions merge.
func dedupe(findings []types.Finding) []types.Finding {
	type key struct {
		pattern  types.Pattern
		location string
	}
	index := make(map[key]int)
	var out []types.Finding

	for _, f := range findings {
		k := key{pattern: f.Pattern, location: f.Location}
		at, exists := index[k]
		if !exists {
			index[k] = len(out)
			out = append(out, f)
			continue
		}
		kept := &out[at]
		merged := kept.Description
		if !strings.Contains(merged, f.Description) {
			merged += " " + f.Description
		}
		severity := kept.Severity
		if f.Severity > severity {
			severity = f.Severity
		}
		if f.Confidence > kept.Confidence {
			*kept = f
		}
		kept.Description = merged
		kept.Severity = severity
	}

	return out
}

func sameLine(location string, line int) bool {
	if line <= 0 || location == "" {
		return true
	}
	return strings.Contains(location, fmt.Sprintf("Line %d", line))
}
