package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeguard/codeguard/internal/dynamic"
	"github.com/codeguard/codeguard/internal/linguistic"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/internal/static"
	"github.com/codeguard/codeguard/pkg/types"
)

func staticResult(t *testing.T, prompt, code string) *static.Result {
	t.Helper()
	res, err := static.NewAnalyzer(logger.Nop()).Analyze(context.Background(), prompt, code)
	require.NoError(t, err)
	return res
}

func patternsOf(findings []types.Finding) []types.Pattern {
	var out []types.Pattern
	for _, f := range findings {
		out = append(out, f.Pattern)
	}
	return out
}

// Rule 1: syntax errors suppress everything else.
func TestSyntaxSuppressesAllOtherFindings(t *testing.T) {
	staticRes := staticResult(t, "divide a by b", "def divide(a,b)\n    return a/b")
	dynRes := &dynamic.Result{
		Ran: true,
		Hypothesis: &dynamic.Hypothesis{
			Kind: "NameError", Pattern: types.PatternHallucinated, Severity: 8,
		},
	}
	lingRes := &linguistic.Result{
		NPC: linguistic.Verdict{Found: true, Items: []string{"logging"}, Severity: 5, Confidence: 0.7},
	}

	findings := Classify(staticRes, dynRes, lingRes)
	require.NotEmpty(t, findings)
	for _, f := range findings {
		assert.Equal(t, types.PatternSyntaxError, f.Pattern)
	}
}

// Rule 2: a runtime NameError naming the statically flagged identifier
// merges into one boosted finding.
func TestDynamicConfirmsStaticHallucination(t *testing.T) {
	staticRes := staticResult(t, "compute factorial", "def f(n):\n    return calc.factorial(n)")
	dynRes := &dynamic.Result{
		Ran: true,
		Hypothesis: &dynamic.Hypothesis{
			Kind:     "NameError",
			Pattern:  types.PatternHallucinated,
			Message:  "name 'calc' is not defined",
			Severity: 8,
		},
	}

	findings := Classify(staticRes, dynRes, nil)

	var hall []types.Finding
	for _, f := range findings {
		if f.Pattern == types.PatternHallucinated {
			hall = append(hall, f)
		}
	}
	require.Len(t, hall, 1)
	assert.Equal(t, 9, hall[0].Severity, "max(static, dynamic)+1")
	assert.Equal(t, 0.95, hall[0].Confidence)
	assert.Contains(t, hall[0].Description, "calc")
}

func TestSeverityBoostCapsAtTen(t *testing.T) {
	staticRes := &static.Result{
		Findings: []types.Finding{{
			Pattern: types.PatternHallucinated, Severity: 10, Confidence: 0.85,
			DetectionStage: types.StageStatic,
		}},
		Hallucinated: []static.HallucinatedName{{Name: "ghost", Line: 1}},
	}
	dynRes := &dynamic.Result{
		Ran: true,
		Hypothesis: &dynamic.Hypothesis{
			Kind: "NameError", Pattern: types.PatternHallucinated,
			Message: "name 'ghost' is not defined", Severity: 8,
		},
	}

	findings := Classify(staticRes, dynRes, nil)
	require.Len(t, findings, 1)
	assert.Equal(t, 10, findings[0].Severity)
}

// Rule 3: the runtime wrong-attribute observation replaces the static
// surface suggestion for the same line.
func TestDynamicOverridesStaticWrongAttribute(t *testing.T) {
	staticRes := &static.Result{
		Findings: []types.Finding{{
			Pattern: types.PatternWrongAttribute, Severity: 7, Confidence: 0.75,
			Location: "Line 2", Description: "static guess",
			DetectionStage: types.StageStatic,
		}},
	}
	dynRes := &dynamic.Result{
		Ran: true,
		Hypothesis: &dynamic.Hypothesis{
			Kind: "AttributeError", Pattern: types.PatternWrongAttribute,
			Message: "'dict' object has no attribute 'cost'", Line: 2, Severity: 6,
		},
	}

	findings := Classify(staticRes, dynRes, nil)
	require.Len(t, findings, 1)
	assert.Equal(t, types.StageDynamic, findings[0].DetectionStage)
	assert.NotContains(t, findings[0].Description, "static guess")
}

// Rule 4: linguistic findings never suppress the others.
func TestLinguisticFindingsAreIndependent(t *testing.T) {
	staticRes := staticResult(t, "divide a by b", "def divide(a,b):\n    return a/b")
	lingRes := &linguistic.Result{
		NPC:        linguistic.Verdict{Found: true, Items: []string{"logging"}, Severity: 5, Confidence: 0.7},
		PromptBias: linguistic.Verdict{Found: true, Items: []string{"42"}, Severity: 6, Confidence: 0.8},
	}

	findings := Classify(staticRes, nil, lingRes)
	patterns := patternsOf(findings)
	assert.Contains(t, patterns, types.PatternMissingCornerCase)
	assert.Contains(t, patterns, types.PatternNPC)
	assert.Contains(t, patterns, types.PatternPromptBiased)
}

// Missing-feature verdicts classify under the misinterpretation tag.
func TestMissingFeatureMapsToMisinterpretation(t *testing.T) {
	lingRes := &linguistic.Result{
		MissingFeature: linguistic.Verdict{Found: true, Items: []string{"phone validation"}, Severity: 6, Confidence: 0.7},
	}

	findings := Classify(nil, nil, lingRes)
	require.Len(t, findings, 1)
	assert.Equal(t, types.PatternMisinterpretation, findings[0].Pattern)
	assert.Contains(t, findings[0].Description, "phone validation")
}

// Rule 5: more than three findings synthesize a composite
// misinterpretation at the median severity.
func TestCompositeMisinterpretation(t *testing.T) {
	staticRes := &static.Result{
		Findings: []types.Finding{
			{Pattern: types.PatternIncomplete, Severity: 7, Confidence: 0.9, Location: "Line 1", DetectionStage: types.StageStatic},
			{Pattern: types.PatternSillyMistake, Severity: 6, Confidence: 0.8, Location: "Line 2", DetectionStage: types.StageStatic},
			{Pattern: types.PatternMissingCornerCase, Severity: 5, Confidence: 0.65, Location: "Line 3", DetectionStage: types.StageStatic},
			{Pattern: types.PatternWrongInputType, Severity: 6, Confidence: 0.8, Location: "Line 4", DetectionStage: types.StageStatic},
		},
	}

	findings := Classify(staticRes, nil, nil)

	var composite *types.Finding
	for i := range findings {
		if findings[i].DetectionStage == types.StageComposite {
			composite = &findings[i]
		}
	}
	require.NotNil(t, composite)
	assert.Equal(t, types.PatternMisinterpretation, composite.Pattern)
	assert.Equal(t, 6, composite.Severity, "median of 5,6,6,7")
	assert.Contains(t, composite.Description, string(types.PatternIncomplete))
}

func TestNoCompositeForThreeOrFewer(t *testing.T) {
	staticRes := &static.Result{
		Findings: []types.Finding{
			{Pattern: types.PatternIncomplete, Severity: 7, Confidence: 0.9, DetectionStage: types.StageStatic},
			{Pattern: types.PatternSillyMistake, Severity: 6, Confidence: 0.8, DetectionStage: types.StageStatic},
		},
	}

	for _, f := range Classify(staticRes, nil, nil) {
		assert.NotEqual(t, types.StageComposite, f.DetectionStage)
	}
}

// Rule 6: duplicates by (pattern, location) keep the highest
// confidence and merge descriptions.
func TestDedupeByPatternAndLocation(t *testing.T) {
	staticRes := &static.Result{
		Findings: []types.Finding{
			{Pattern: types.PatternMissingCornerCase, Severity: 5, Confidence: 0.65,
				Location: "Line 2", Description: "division without a zero check",
				DetectionStage: types.StageStatic},
		},
	}
	dynRes := &dynamic.Result{
		Ran: true,
		Hypothesis: &dynamic.Hypothesis{
			Kind: "ZeroDivisionError", Pattern: types.PatternMissingCornerCase,
			Message: "division by zero", Line: 2, Severity: 5,
		},
	}

	findings := Classify(staticRes, dynRes, nil)
	require.Len(t, findings, 1)
	assert.Equal(t, 0.85, findings[0].Confidence)
	assert.Contains(t, findings[0].Description, "zero check")
	assert.Contains(t, findings[0].Description, "division by zero")
}

func TestTimeoutYieldsCornerCaseFinding(t *testing.T) {
	dynRes := &dynamic.Result{
		Ran: true, TimedOut: true,
		Hypothesis: &dynamic.Hypothesis{
			Kind: "Timeout", Pattern: types.PatternMissingCornerCase, Severity: 3,
			Message: "execution exceeded the wall timeout",
		},
	}

	findings := Classify(nil, dynRes, nil)
	require.Len(t, findings, 1)
	assert.Equal(t, types.PatternMissingCornerCase, findings[0].Pattern)
	assert.Equal(t, 3, findings[0].Severity)
}

func TestEmptyInputsProduceNoFindings(t *testing.T) {
	assert.Empty(t, Classify(nil, nil, nil))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 5, median([]int{5}))
	assert.Equal(t, 6, median([]int{5, 7}))
	assert.Equal(t, 6, median([]int{5, 6, 9}))
	assert.Equal(t, 0, median(nil))
}
