// Package explainer turns classified findings into reader-facing
// output: fix hints from pattern-keyed templates and the analysis
// summary paragraph.
package explainer

import (
	"fmt"
	"strings"

	"github.com/codeguard/codeguard/pkg/types"
)

// fixHints are the pattern-keyed remediation templates.
var fixHints = map[types.Pattern]string{
	types.PatternSyntaxError:       "Review the syntax at the indicated location. Common issues include missing colons, unmatched parentheses, and incorrect indentation.",
	types.PatternHallucinated:      "Verify that every referenced name exists in the imported modules or define it before use. Check the official documentation for the correct API.",
	types.PatternIncomplete:        "Complete the missing logic based on the function's intended purpose, and remove leftover TODO markers.",
	types.PatternSillyMistake:      "Review the logic flow. Common issues: reversed operands, redundant conditions, and identical branches.",
	types.PatternWrongAttribute:    "Use dictionary access syntax (item['key']) for dictionary values, or check the object's attributes with dir().",
	types.PatternWrongInputType:    "Verify the expected input types and add conversion or validation before the call. Remove quotes from numeric values.",
	types.PatternNPC:               "Remove the unrequested features unless they are actually needed for your use case.",
	types.PatternPromptBiased:      "Replace hardcoded example values with general-purpose logic that works for all inputs.",
	types.PatternMissingCornerCase: "Add guards for boundary inputs: empty collections, zero divisors, and absent values.",
	types.PatternMisinterpretation: "Compare the prompt with the generated logic; the fundamental approach may need to be rewritten.",
}

// catalog backs the patterns endpoint.
var catalog = []types.PatternInfo{
	{Pattern: types.PatternSyntaxError, Name: "Syntax Error", Stage: types.StageStatic, SeverityRange: "8-10",
		Description: "Code cannot be parsed due to syntax violations", Example: "Missing colons, unmatched parentheses"},
	{Pattern: types.PatternHallucinated, Name: "Hallucinated Object", Stage: types.StageStatic, SeverityRange: "7-9",
		Description: "Code references non-existent functions, classes, or variables", Example: "calc.factorial(n) when calc does not exist"},
	{Pattern: types.PatternIncomplete, Name: "Incomplete Generation", Stage: types.StageStatic, SeverityRange: "6-8",
		Description: "Generation was cut off before completion", Example: "Functions containing only pass, dangling assignments"},
	{Pattern: types.PatternSillyMistake, Name: "Silly Mistake", Stage: types.StageStatic, SeverityRange: "5-7",
		Description: "Non-human coding patterns such as reversed operands", Example: "discount - price instead of price - discount"},
	{Pattern: types.PatternWrongAttribute, Name: "Wrong Attribute", Stage: types.StageDynamic, SeverityRange: "6-8",
		Description: "Access to attributes that do not exist on the object", Example: "item.cost instead of item['cost']"},
	{Pattern: types.PatternWrongInputType, Name: "Wrong Input Type", Stage: types.StageDynamic, SeverityRange: "5-7",
		Description: "Function called with an incompatible data type", Example: "math.sqrt(\"16\")"},
	{Pattern: types.PatternNPC, Name: "Non-Prompted Consideration", Stage: types.StageLinguistic, SeverityRange: "4-6",
		Description: "Code includes features the prompt did not request", Example: "Unrequested validation or logging"},
	{Pattern: types.PatternPromptBiased, Name: "Prompt-Biased Code", Stage: types.StageLinguistic, SeverityRange: "5-7",
		Description: "Hardcoded logic based on prompt examples", Example: "return [1,2,3] for the prompt's example list"},
	{Pattern: types.PatternMissingCornerCase, Name: "Missing Corner Case", Stage: types.StageStatic, SeverityRange: "4-6",
		Description: "Boundary inputs are not handled", Example: "Division without a zero check"},
	{Pattern: types.PatternMisinterpretation, Name: "Misinterpretation", Stage: types.StageLinguistic, SeverityRange: "6-9",
		Description: "Code solves a different problem than requested", Example: "Returning a sum where an average was asked"},
}

// Catalog returns the ten-pattern catalog.
func Catalog() []types.PatternInfo {
	return catalog
}

// Explain fills each finding's fix hint from its pattern template.
// Descriptions already carry the specific identifier, line, or literal
// captured by the detector.
func Explain(findings []types.Finding) []types.Finding {
	for i := range findings {
		if findings[i].FixHint == "" {
			findings[i].FixHint = fixHints[findings[i].Pattern]
		}
	}
	return findings
}

// Summary produces the single-paragraph synthesis for an analysis.
func Summary(findings []types.Finding) string {
	if len(findings) == 0 {
		return "No obvious defects detected. The code parses, executes without runtime errors, and matches the prompt's intent as far as the analysis can tell."
	}

	maxSeverity := 0
	var names []string
	seen := make(map[types.Pattern]bool)
	for _, f := range findings {
		if f.Severity > maxSeverity {
			maxSeverity = f.Severity
		}
		if !seen[f.Pattern] {
			seen[f.Pattern] = true
			names = append(names, patternName(f.Pattern))
		}
	}

	label := types.SeverityLabel(maxSeverity)
	return fmt.Sprintf("Found %d defect pattern(s) with %s severity: %s. Review the findings for explanations and fix suggestions.",
		len(findings), label, strings.Join(names, ", "))
}

func patternName(p types.Pattern) string {
	for _, info := range catalog {
		if info.Pattern == p {
			return info.Name
		}
	}
	return string(p)
}
