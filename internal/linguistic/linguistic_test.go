package linguistic

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/internal/pyast"
	"github.com/codeguard/codeguard/internal/static"
)

func buildInput(t *testing.T, prompt, code string) *Input {
	t.Helper()
	src, err := pyast.ParseLenient(code)
	require.NoError(t, err)
	t.Cleanup(src.Close)

	staticRes, err := static.NewAnalyzer(logger.Nop()).Analyze(context.Background(), prompt, code)
	require.NoError(t, err)

	return &Input{Prompt: prompt, Code: code, Src: src, Static: staticRes}
}

// fakeReasoner returns a canned reply or error.
type fakeReasoner struct {
	reply string
	err   error
	asked int
}

func (f *fakeReasoner) Enabled() bool { return true }
func (f *fakeReasoner) Ask(ctx context.Context, question string) (string, error) {
	f.asked++
	return f.reply, f.err
}

func TestNPCDetectsUnrequestedFeatures(t *testing.T) {
	in := buildInput(t, "add two numbers",
		"def add(a, b):\n    print(a)\n    try:\n        return a + b\n    except Exception:\n        return 0\n")

	d := &npcDetector{}
	tier1 := d.Tier1(in)
	assert.True(t, tier1.Found)

	tier2 := d.Tier2(in)
	require.True(t, tier2.Found)
	messages := make([]string, 0, len(tier2.Issues))
	for _, issue := range tier2.Issues {
		messages = append(messages, issue.Message)
	}
	assert.Contains(t, fmt.Sprint(messages), "print")
	assert.Contains(t, fmt.Sprint(messages), "try/except")
}

// A print( hit inside a comment is a Tier-1 artifact; Tier 2 discards
// it against the AST.
func TestNPCTier2DiscardsCommentMatches(t *testing.T) {
	in := buildInput(t, "add two numbers",
		"def add(a, b):\n    # print(debugging) was removed\n    return a + b\n")

	d := &npcDetector{}
	assert.True(t, d.Tier1(in).Found)
	assert.False(t, d.Tier2(in).Found)
}

func TestNPCRequestedFeaturesNotFlagged(t *testing.T) {
	in := buildInput(t, "print the sum of two numbers",
		"def add(a, b):\n    print(a + b)\n")

	d := &npcDetector{}
	assert.False(t, d.Tier2(in).Found)
}

func TestPromptBiasSortExample(t *testing.T) {
	in := buildInput(t, "sort the list, e.g., [3,1,2]",
		"def sort(x):\n    return [1,2,3]\n")

	d := &promptBiasDetector{}
	tier1 := d.Tier1(in)
	assert.True(t, tier1.Found)

	tier2 := d.Tier2(in)
	require.True(t, tier2.Found)
	assert.Contains(t, tier2.Issues[0].Message, "[1,2,3]")
}

// A literal that only appears inside the entry-point guard is never
// judged prompt-biased.
func TestPromptBiasIgnoresMainGuardLiterals(t *testing.T) {
	code := `def scale(x):
    return x * 2

if __name__ == "__main__":
    print(scale(7))
`
	in := buildInput(t, "scale by 2, e.g., scale(7)", code)

	d := &promptBiasDetector{}
	tier2 := d.Tier2(in)
	for _, issue := range tier2.Issues {
		assert.NotEqual(t, "7", issue.Value)
	}
}

func TestMissingFeatureTier1(t *testing.T) {
	in := buildInput(t, "validate the email and save it to the database",
		"def handle(email):\n    return email\n")

	tier1 := (&missingFeatureDetector{}).Tier1(in)
	require.True(t, tier1.Found)

	var verbs []string
	for _, issue := range tier1.Issues {
		verbs = append(verbs, issue.Value)
	}
	assert.Contains(t, verbs, "validate")
	assert.Contains(t, verbs, "save")
}

func TestMissingFeatureTier2ConservativeOnShortPrompts(t *testing.T) {
	in := buildInput(t, "add two numbers", "def f(a, b):\n    return a + b\n")
	assert.False(t, (&missingFeatureDetector{}).Tier2(in).Found)
}

func TestMisinterpretationSumInsteadOfAverage(t *testing.T) {
	in := buildInput(t, "return the average of a list of numbers",
		"def avg(nums):\n    return sum(nums)\n")

	tier1 := (&misinterpretationDetector{}).Tier1(in)
	require.True(t, tier1.Found)
	assert.Contains(t, fmt.Sprint(tier1.Issues), "sum")
}

func TestMisinterpretationPrintVsReturn(t *testing.T) {
	in := buildInput(t, "return the total",
		"def total(xs):\n    print(sum(xs))\n")

	tier2 := (&misinterpretationDetector{}).Tier2(in)
	require.True(t, tier2.Found)
	assert.Contains(t, fmt.Sprint(tier2.Issues), "prints")
}

func TestFallbackVerdictUnionsEvidence(t *testing.T) {
	tier1 := TierEvidence{
		Found:      true,
		Issues:     []Issue{{Message: "a"}, {Message: "b"}},
		Confidence: 0.6,
		Severity:   4,
	}
	tier2 := TierEvidence{
		Found:      true,
		Issues:     []Issue{{Message: "b"}, {Message: "c"}},
		Confidence: 0.9,
		Severity:   6,
	}

	v := fallbackVerdict(QuestionNPC, tier1, tier2)
	assert.True(t, v.Found)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, v.Items)
	assert.Equal(t, 3, v.Count)
	assert.Equal(t, 0.9, v.Confidence)
	assert.Equal(t, 6, v.Severity)
	assert.Equal(t, "fallback", v.VerdictBy)
}

func TestFallbackVerdictSeverityFromTier1WhenTier2Silent(t *testing.T) {
	tier1 := TierEvidence{Found: true, Issues: []Issue{{Message: "a"}}, Confidence: 0.5, Severity: 4}
	v := fallbackVerdict(QuestionPromptBias, tier1, TierEvidence{})
	assert.Equal(t, 4, v.Severity)
}

func TestAnalyzeWithoutReasonerUsesFallback(t *testing.T) {
	analyzer := NewAnalyzer(nil, logger.Nop())
	in := buildInput(t, "sort the list, e.g., [3,1,2]", "def sort(x):\n    return [1,2,3]\n")

	res := analyzer.Analyze(context.Background(), in)
	assert.True(t, res.PromptBias.Found)
	assert.Equal(t, "fallback", res.PromptBias.VerdictBy)
	assert.Less(t, res.IntentMatchScore, 0.5)
}

func TestAnalyzeWithReasonerVerdict(t *testing.T) {
	reasoner := &fakeReasoner{reply: `{"found": true, "features": ["logging"], "count": 1, "confidence": 0.9, "severity": 5, "summary": "adds logging"}`}
	analyzer := NewAnalyzer(reasoner, logger.Nop())
	in := buildInput(t, "add two numbers", "def add(a, b):\n    return a + b\n")

	res := analyzer.Analyze(context.Background(), in)
	assert.Equal(t, "llm", res.NPC.VerdictBy)
	assert.Equal(t, []string{"logging"}, res.NPC.Items)
	assert.Equal(t, 4, reasoner.asked, "one model call per detector")
}

// Malformed model output is never repaired; the fallback rule applies.
func TestMalformedModelReplyFallsBack(t *testing.T) {
	reasoner := &fakeReasoner{reply: "I think the code looks fine overall!"}
	analyzer := NewAnalyzer(reasoner, logger.Nop())
	in := buildInput(t, "add two numbers", "def add(a, b):\n    return a + b\n")

	res := analyzer.Analyze(context.Background(), in)
	assert.Equal(t, "fallback", res.NPC.VerdictBy)
}

func TestParseVerdictToleratesFences(t *testing.T) {
	reply := "```json\n{\"found\": true, \"values\": [\"42\"], \"count\": 1, \"confidence\": 0.8, \"severity\": 6, \"summary\": \"s\"}\n```"
	v, err := parseVerdict(QuestionPromptBias, reply)
	require.NoError(t, err)
	assert.True(t, v.Found)
	assert.Equal(t, []string{"42"}, v.Items)
}

func TestParseVerdictRejectsOutOfRange(t *testing.T) {
	_, err := parseVerdict(QuestionNPC, `{"found": true, "features": ["x"], "severity": 14, "confidence": 0.5}`)
	assert.Error(t, err)
}
