// Package linguistic implements the third analysis stage: four
// semantic questions, each answered by a three-tier cascade of rule
// scan, AST verification, and a language-model verdict.
package linguistic

import (
	"context"
	"time"

	"github.com/codeguard/codeguard/internal/core"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/internal/pyast"
	"github.com/codeguard/codeguard/internal/static"
)

// Question names for the four detectors.
const (
	QuestionNPC               = "npc"
	QuestionPromptBias        = "prompt_bias"
	QuestionMissingFeature    = "missing_feature"
	QuestionMisinterpretation = "misinterpretation"
)

// Issue is one piece of evidence produced by Tier 1 or Tier 2.
type Issue struct {
	Type       string  `json:"type"`
	Message    string  `json:"message"`
	Value      string  `json:"value,omitempty"`
	Line       int     `json:"line,omitempty"`
	Confidence float64 `json:"confidence"`
}

// TierEvidence is the output of one evidence tier. Tiers 1 and 2 are
// evidence producers only; the verdict authority is Tier 3 (or the
// fallback rule when no provider responds). Earlier designs weighted
// votes across tiers, which made findings cancel on disagreement.
type TierEvidence struct {
	Found      bool    `json:"found"`
	Issues     []Issue `json:"issues"`
	Confidence float64 `json:"confidence"`
	Severity   int     `json:"severity"`
}

// Verdict is the shared detector output schema.
type Verdict struct {
	Question   string       `json:"question"`
	Found      bool         `json:"found"`
	Items      []string     `json:"items"`
	Count      int          `json:"count"`
	Confidence float64      `json:"confidence"`
	Severity   int          `json:"severity"`
	Summary    string       `json:"summary"`
	VerdictBy  string       `json:"verdict_by"`
	Tier1      TierEvidence `json:"tier1"`
	Tier2      TierEvidence `json:"tier2"`
}

// Input carries everything a detector may consult.
type Input struct {
	Prompt string
	Code   string
	// Src is the parsed source; nil when the code does not parse.
	Src *pyast.Source
	// Static carries the static stage's surfaces: candidate literals
	// for prompt bias and the return-shape signal.
	Static *static.Result
}

// Result is the linguistic stage's aggregate output.
type Result struct {
	NPC               Verdict
	PromptBias        Verdict
	MissingFeature    Verdict
	Misinterpretation Verdict
	IntentMatchScore  float64
}

// detector answers one semantic question through the tier cascade.
type detector interface {
	Question() string
	Tier1(in *Input) TierEvidence
	Tier2(in *Input) TierEvidence
}

// Analyzer runs the four detectors in sequence. Sequentiality is a
// scheduling choice; the detectors share no state.
type Analyzer struct {
	reasoner  core.Reasoner
	log       *logger.Logger
	detectors []detector
}

func NewAnalyzer(reasoner core.Reasoner, log *logger.Logger) *Analyzer {
	return &Analyzer{
		reasoner: reasoner,
		log:      log.WithComponent("linguistic"),
		detectors: []detector{
			&npcDetector{},
			&promptBiasDetector{},
			&missingFeatureDetector{},
			&misinterpretationDetector{},
		},
	}
}

// Analyze answers all four questions and computes the intent-match
// score.
func (a *Analyzer) Analyze(ctx context.Context, in *Input) *Result {
	start := time.Now()
	res := &Result{}

	for _, d := range a.detectors {
		verdict := a.runDetector(ctx, d, in)
		switch d.Question() {
		case QuestionNPC:
			res.NPC = verdict
		case QuestionPromptBias:
			res.PromptBias = verdict
		case QuestionMissingFeature:
			res.MissingFeature = verdict
		case QuestionMisinterpretation:
			res.Misinterpretation = verdict
		}
	}

	var identifiers []string
	if in.Src != nil {
		identifiers = in.Src.Identifiers()
	}
	res.IntentMatchScore = IntentMatchScore(in.Prompt, identifiers)

	a.log.LogDuration(ctx, "linguistic.Analyze", start,
		"intent_match", res.IntentMatchScore,
	)
	return res
}

// runDetector executes the three tiers for one question. Tier 3 is the
// single verdict authority; when it cannot run, the fallback rule
// synthesizes the verdict from the evidence tiers.
func (a *Analyzer) runDetector(ctx context.Context, d detector, in *Input) Verdict {
	log := a.log.WithDetector(d.Question())
	start := time.Now()

	tier1 := d.Tier1(in)
	tier2 := d.Tier2(in)

	verdict, err := a.tier3Verdict(ctx, d.Question(), in, tier1, tier2)
	if err != nil {
		log.Debugw("Tier 3 unavailable, using fallback verdict", "error", err.Error())
		verdict = fallbackVerdict(d.Question(), tier1, tier2)
	}

	verdict.Tier1 = tier1
	verdict.Tier2 = tier2

	log.Debugw("Detector finished",
		"found", verdict.Found,
		"count", verdict.Count,
		"verdict_by", verdict.VerdictBy,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return verdict
}

// fallbackVerdict takes the union of the evidence tiers' issues,
// confidence = max of their confidences, severity = Tier-2's when it
// found anything, else Tier-1's.
func fallbackVerdict(question string, tier1, tier2 TierEvidence) Verdict {
	seen := make(map[string]bool)
	var items []string
	for _, tier := range []TierEvidence{tier1, tier2} {
		for _, issue := range tier.Issues {
			if !seen[issue.Message] {
				seen[issue.Message] = true
				items = append(items, issue.Message)
			}
		}
	}

	confidence := tier1.Confidence
	if tier2.Confidence > confidence {
		confidence = tier2.Confidence
	}

	severity := tier1.Severity
	if tier2.Found {
		severity = tier2.Severity
	}

	v := Verdict{
		Question:   question,
		Found:      len(items) > 0,
		Items:      items,
		Count:      len(items),
		Confidence: confidence,
		Severity:   severity,
		VerdictBy:  "fallback",
	}
	if v.Found {
		v.Summary = "verdict synthesized from rule and structural evidence without model confirmation"
	} else {
		v.Severity = 0
		v.Confidence = 0
	}
	return v
}
