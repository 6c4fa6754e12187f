package linguistic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// itemsField names the per-question list field in the Tier-3 reply
// schema.
var itemsField = map[string]string{
	QuestionNPC:               "features",
	QuestionPromptBias:        "values",
	QuestionMissingFeature:    "features",
	QuestionMisinterpretation: "reasons",
}

// questionText states each detector's question explicitly for the
// model, with the conservative rules the verdict must follow.
var questionText = map[string]string{
	QuestionNPC: `Does the generated code contain features the prompt did NOT ask for
(debug prints, logging, validation, error handling, authorization checks,
caching, sorting)? Report only truly unrequested additions. Standard
Pythonic structures (comprehensions, lambdas, @property) are not
unrequested features.`,
	QuestionPromptBias: `Does the code hardcode example values from the prompt (quoted strings,
numeric examples, sequence examples) instead of implementing the general
algorithm? Report only values that decide the code's output.`,
	QuestionMissingFeature: `Which features were EXPLICITLY requested in the prompt but not
implemented? Be extremely conservative: do not report best practices,
defensive programming, or edge-case handling unless the prompt asked for
them. If the prompt is simple, the list should be empty.`,
	QuestionMisinterpretation: `Does the code solve a fundamentally different problem than the prompt
requested? Consider return shape versus the requested shape, printing
instead of returning, missing conditional selection where filtering was
asked, and wrong algorithm choice.`,
}

// tier3Verdict packages the evidence into a structured question,
// delivers it to the external model, and parses the JSON verdict. Any
// failure (no provider, transport error, malformed JSON) is returned
// as an error so the caller applies the fallback rule; model output is
// never repaired.
func (a *Analyzer) tier3Verdict(ctx context.Context, question string, in *Input, tier1, tier2 TierEvidence) (Verdict, error) {
	if a.reasoner == nil || !a.reasoner.Enabled() {
		return Verdict{}, fmt.Errorf("no language model provider configured")
	}

	reply, err := a.reasoner.Ask(ctx, buildQuestion(question, in, tier1, tier2))
	if err != nil {
		return Verdict{}, fmt.Errorf("model call failed: %w", err)
	}

	verdict, err := parseVerdict(question, reply)
	if err != nil {
		return Verdict{}, fmt.Errorf("model reply unusable: %w", err)
	}
	return verdict, nil
}

// buildQuestion renders the full Tier-3 request: prompt, code, both
// evidence tiers, the explicit question, and the required reply
// schema.
func buildQuestion(question string, in *Input, tier1, tier2 TierEvidence) string {
	var b strings.Builder

	b.WriteString("You are analyzing code generated by a language model against the user's original prompt.\n\n")
	b.WriteString("USER'S ORIGINAL PROMPT:\n")
	b.WriteString(in.Prompt)
	b.WriteString("\n\nGENERATED CODE:\n```python\n")
	b.WriteString(in.Code)
	b.WriteString("\n```\n\nEVIDENCE FROM THE RULE TIER:\n")
	writeEvidence(&b, tier1)
	b.WriteString("\nEVIDENCE FROM THE STRUCTURAL (AST) TIER:\n")
	writeEvidence(&b, tier2)

	b.WriteString("\nQUESTION:\n")
	b.WriteString(questionText[question])

	field := itemsField[question]
	fmt.Fprintf(&b, `

Return ONLY valid JSON in exactly this shape:
{
    "found": true or false,
    %q: ["each issue as one short string"],
    "count": <number of issues>,
    "confidence": <0.0 to 1.0>,
    "severity": <0 to 10>,
    "summary": "one sentence explanation"
}`, field)

	return b.String()
}

func writeEvidence(b *strings.Builder, tier TierEvidence) {
	if len(tier.Issues) == 0 {
		b.WriteString("- no evidence found\n")
		return
	}
	fmt.Fprintf(b, "- found: %v, confidence: %.2f\n", tier.Found, tier.Confidence)
	for i, issue := range tier.Issues {
		if i >= 8 {
			fmt.Fprintf(b, "- (%d more omitted)\n", len(tier.Issues)-i)
			break
		}
		fmt.Fprintf(b, "- %s\n", issue.Message)
	}
}

// parseVerdict decodes the model's JSON reply. Markdown code fences
// are tolerated; anything else malformed fails the call.
func parseVerdict(question, reply string) (Verdict, error) {
	cleaned := stripFences(reply)

	var raw struct {
		Found      bool     `json:"found"`
		Issues     []string `json:"issues"`
		Features   []string `json:"features"`
		Values     []string `json:"values"`
		Reasons    []string `json:"reasons"`
		Count      int      `json:"count"`
		Confidence float64  `json:"confidence"`
		Severity   int      `json:"severity"`
		Summary    string   `json:"summary"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return Verdict{}, fmt.Errorf("invalid JSON: %w", err)
	}

	items := raw.Issues
	switch itemsField[question] {
	case "features":
		if len(raw.Features) > 0 {
			items = raw.Features
		}
	case "values":
		if len(raw.Values) > 0 {
			items = raw.Values
		}
	case "reasons":
		if len(raw.Reasons) > 0 {
			items = raw.Reasons
		}
	}

	if raw.Severity < 0 || raw.Severity > 10 {
		return Verdict{}, fmt.Errorf("severity %d out of range", raw.Severity)
	}
	if raw.Confidence < 0 || raw.Confidence > 1 {
		return Verdict{}, fmt.Errorf("confidence %.2f out of range", raw.Confidence)
	}

	count := raw.Count
	if count == 0 {
		count = len(items)
	}

	return Verdict{
		Question:   question,
		Found:      raw.Found && len(items) > 0,
		Items:      items,
		Count:      count,
		Confidence: raw.Confidence,
		Severity:   raw.Severity,
		Summary:    raw.Summary,
		VerdictBy:  "llm",
	}, nil
}

func stripFences(reply string) string {
	trimmed := strings.TrimSpace(reply)
	if idx := strings.Index(trimmed, "```json"); idx >= 0 {
		trimmed = trimmed[idx+len("```json"):]
		if end := strings.Index(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if end := strings.Index(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
	}
	return strings.TrimSpace(trimmed)
}
