package linguistic

import (
	"fmt"
	"strings"
)

// missingFeatureDetector answers: which action, data-type, or
// return-shape keywords from the prompt are absent from the code's
// identifiers, calls, and control flow?
type missingFeatureDetector struct{}

func (d *missingFeatureDetector) Question() string { return QuestionMissingFeature }

func (d *missingFeatureDetector) Tier1(in *Input) TierEvidence {
	promptLower := strings.ToLower(in.Prompt)
	codeLower := strings.ToLower(in.Code)
	var issues []Issue

	for _, verb := range actionVerbs {
		if !containsToken(promptLower, verb) {
			continue
		}
		if strings.Contains(codeLower, verb) || strings.Contains(codeLower, verbStem(verb)) {
			continue
		}
		issues = append(issues, Issue{
			Type:       "missing_action",
			Message:    fmt.Sprintf("the prompt asks to %q but nothing in the code mentions it", verb),
			Value:      verb,
			Confidence: 0.6,
		})
	}

	for _, word := range dataTypeWords {
		if !containsToken(promptLower, word) {
			continue
		}
		if strings.Contains(codeLower, word) || dataTypeRepresented(word, codeLower) {
			continue
		}
		issues = append(issues, Issue{
			Type:       "missing_data_type",
			Message:    fmt.Sprintf("the prompt mentions a %s but the code never works with one", word),
			Value:      word,
			Confidence: 0.5,
		})
	}

	return TierEvidence{
		Found:      len(issues) > 0,
		Issues:     issues,
		Confidence: maxConfidence(issues),
		Severity:   5,
	}
}

// Tier2 is deliberately conservative: it only confirms structural
// absences for prompts with multiple explicit requirements, and even
// then restricts itself to action verbs with no matching function or
// call. Simple prompts produce no structural evidence; semantics are
// the model tier's job.
func (d *missingFeatureDetector) Tier2(in *Input) TierEvidence {
	if in.Src == nil {
		return TierEvidence{}
	}
	if len(strings.Fields(in.Prompt)) < 15 {
		return TierEvidence{}
	}

	src := in.Src
	promptLower := strings.ToLower(in.Prompt)

	names := make(map[string]bool)
	for _, fn := range src.Functions() {
		for _, part := range Tokenize(fn.Name) {
			names[part] = true
		}
	}
	for _, call := range src.Calls() {
		for _, part := range Tokenize(call.Name) {
			names[part] = true
		}
	}
	for _, id := range src.Identifiers() {
		for _, part := range Tokenize(id) {
			names[part] = true
		}
	}

	var issues []Issue
	for _, verb := range actionVerbs {
		if !containsToken(promptLower, verb) {
			continue
		}
		if names[verb] || names[verbStem(verb)] {
			continue
		}
		issues = append(issues, Issue{
			Type:       "missing_function",
			Message:    fmt.Sprintf("no function, call, or identifier corresponds to the requested action %q", verb),
			Value:      verb,
			Confidence: 0.8,
		})
	}

	return TierEvidence{
		Found:      len(issues) > 0,
		Issues:     issues,
		Confidence: maxConfidence(issues),
		Severity:   6,
	}
}

// verbStem strips a trailing 'e' so "create" matches "creating" and
// "creation" spellings in identifiers.
func verbStem(verb string) string {
	return strings.TrimSuffix(verb, "e")
}

// dataTypeRepresented reports whether a literal shape stands in for a
// type word the code never spells out.
func dataTypeRepresented(word, codeLower string) bool {
	switch word {
	case "list":
		return strings.Contains(codeLower, "[")
	case "dict", "dictionary":
		return strings.Contains(codeLower, "{")
	case "string":
		return strings.Contains(codeLower, "\"") || strings.Contains(codeLower, "'")
	case "number", "integer", "float":
		return numberRe.MatchString(codeLower)
	case "tuple":
		return strings.Contains(codeLower, "(")
	}
	return false
}
