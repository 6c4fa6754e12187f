package explainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeguard/codeguard/pkg/types"
)

func TestExplainFillsFixHints(t *testing.T) {
	findings := Explain([]types.Finding{
		{Pattern: types.PatternSyntaxError},
		{Pattern: types.PatternMissingCornerCase},
		{Pattern: types.PatternHallucinated, FixHint: "already set"},
	})

	assert.Contains(t, findings[0].FixHint, "syntax")
	assert.Contains(t, findings[1].FixHint, "guards")
	assert.Equal(t, "already set", findings[2].FixHint)
}

func TestEveryPatternHasAFixHint(t *testing.T) {
	for _, p := range types.AllPatterns {
		assert.NotEmpty(t, fixHints[p], "pattern %s has no fix hint template", p)
	}
}

func TestSummaryCleanCode(t *testing.T) {
	summary := Summary(nil)
	assert.Contains(t, summary, "No obvious defects")
}

func TestSummaryListsPatterns(t *testing.T) {
	summary := Summary([]types.Finding{
		{Pattern: types.PatternHallucinated, Severity: 9},
		{Pattern: types.PatternMissingCornerCase, Severity: 5},
	})

	assert.Contains(t, summary, "2 defect pattern(s)")
	assert.Contains(t, summary, "critical")
	assert.Contains(t, summary, "Hallucinated Object")
	assert.Contains(t, summary, "Missing Corner Case")
}

func TestCatalogCoversAllTenPatterns(t *testing.T) {
	catalog := Catalog()
	require.Len(t, catalog, len(types.AllPatterns))

	seen := make(map[types.Pattern]bool)
	for _, info := range catalog {
		seen[info.Pattern] = true
		assert.NotEmpty(t, info.Name)
		assert.NotEmpty(t, info.Description)
	}
	for _, p := range types.AllPatterns {
		assert.True(t, seen[p], "pattern %s missing from catalog", p)
	}
}
