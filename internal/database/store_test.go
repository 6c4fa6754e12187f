package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeguard/codeguard/internal/config"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(config.DatabaseConfig{
		Driver:          "sqlite3",
		DSN:             ":memory:",
		MaxConnections:  1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleAnalysis() *types.Analysis {
	a := &types.Analysis{
		Prompt:   "divide a by b",
		Code:     "def divide(a,b):\n    return a/b",
		Language: "python",
		Status:   types.StatusProcessing,
		Findings: []types.Finding{{
			Pattern:        types.PatternMissingCornerCase,
			Severity:       5,
			Confidence:     0.65,
			Description:    "division without a zero check",
			Location:       "Line 2",
			FixHint:        "guard the denominator",
			DetectionStage: types.StageStatic,
		}},
		StageLogs: []types.StageLog{
			{Stage: "static", Success: true, ElapsedS: 0.01},
			{Stage: "dynamic", Success: true, ElapsedS: 0.4},
		},
	}
	a.Recompute()
	return a
}

func TestSaveAndGetAnalysis(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	analysis := sampleAnalysis()
	require.NoError(t, store.SaveAnalysis(ctx, analysis))
	require.NotEmpty(t, analysis.ID)

	loaded, err := store.GetAnalysis(ctx, analysis.ID)
	require.NoError(t, err)

	assert.Equal(t, analysis.Prompt, loaded.Prompt)
	assert.Equal(t, types.StatusProcessing, loaded.Status)
	assert.True(t, loaded.HasBugs)
	assert.Equal(t, 5, loaded.OverallSeverity)
	require.Len(t, loaded.Findings, 1)
	assert.Equal(t, types.PatternMissingCornerCase, loaded.Findings[0].Pattern)
	assert.Len(t, loaded.StageLogs, 2)
	assert.Nil(t, loaded.Linguistic)
}

func TestGetAnalysisNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetAnalysis(context.Background(), "no-such-id")
	assert.Equal(t, ErrNotFound, err)
}

// Unknown pattern tags are rejected at the persistence boundary.
func TestUnknownPatternRejected(t *testing.T) {
	store := newTestStore(t)

	analysis := sampleAnalysis()
	analysis.Findings[0].Pattern = "made_up_pattern"
	err := store.SaveAnalysis(context.Background(), analysis)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "made_up_pattern")
}

func TestCompleteAnalysisReplacesChildren(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	analysis := sampleAnalysis()
	require.NoError(t, store.SaveAnalysis(ctx, analysis))

	analysis.Status = types.StatusComplete
	analysis.Findings = append(analysis.Findings, types.Finding{
		Pattern:        types.PatternNPC,
		Severity:       5,
		Confidence:     0.7,
		Description:    "unrequested logging",
		DetectionStage: types.StageLinguistic,
	})
	analysis.StageLogs = append(analysis.StageLogs, types.StageLog{
		Stage: "linguistic", Success: true, ElapsedS: 2.5,
	})
	analysis.Linguistic = &types.LinguisticExtras{
		IntentMatchScore:   0.42,
		UnpromptedFeatures: []string{"logging"},
		MissingFeatures:    []string{},
		HardcodedValues:    []string{},
	}
	analysis.Recompute()

	// Finding ids were assigned by the first insert; they must not
	// collide on re-insert.
	for i := range analysis.Findings {
		analysis.Findings[i].ID = ""
	}
	for i := range analysis.StageLogs {
		analysis.StageLogs[i].ID = ""
	}

	require.NoError(t, store.CompleteAnalysis(ctx, analysis))

	loaded, err := store.GetAnalysis(ctx, analysis.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusComplete, loaded.Status)
	assert.Len(t, loaded.Findings, 2)
	assert.Len(t, loaded.StageLogs, 3)
	require.NotNil(t, loaded.Linguistic)
	assert.Equal(t, 0.42, loaded.Linguistic.IntentMatchScore)
	assert.Equal(t, []string{"logging"}, loaded.Linguistic.UnpromptedFeatures)
}

func TestCompleteUnknownAnalysisFails(t *testing.T) {
	store := newTestStore(t)

	analysis := sampleAnalysis()
	analysis.ID = "ghost"
	analysis.Status = types.StatusComplete
	assert.Error(t, store.CompleteAnalysis(context.Background(), analysis))
}

func TestListAnalyses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		a := sampleAnalysis()
		a.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, store.SaveAnalysis(ctx, a))
	}

	listed, err := store.ListAnalyses(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestDeleteAnalysis(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	analysis := sampleAnalysis()
	require.NoError(t, store.SaveAnalysis(ctx, analysis))
	require.NoError(t, store.DeleteAnalysis(ctx, analysis.ID))

	_, err := store.GetAnalysis(ctx, analysis.ID)
	assert.Equal(t, ErrNotFound, err)

	assert.Equal(t, ErrNotFound, store.DeleteAnalysis(ctx, analysis.ID))
}

func TestFeedback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	analysis := sampleAnalysis()
	require.NoError(t, store.SaveAnalysis(ctx, analysis))

	fb := &types.Feedback{AnalysisID: analysis.ID, Rating: 4, Comment: "useful", Helpful: true}
	require.NoError(t, store.SaveFeedback(ctx, fb))
	assert.NotEmpty(t, fb.ID)

	t.Run("rating bounds", func(t *testing.T) {
		bad := &types.Feedback{AnalysisID: analysis.ID, Rating: 6}
		assert.Error(t, store.SaveFeedback(ctx, bad))
	})

	t.Run("unknown analysis", func(t *testing.T) {
		orphan := &types.Feedback{AnalysisID: "ghost", Rating: 3}
		assert.Equal(t, ErrNotFound, store.SaveFeedback(ctx, orphan))
	})
}

func TestGetStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	analysis := sampleAnalysis()
	require.NoError(t, store.SaveAnalysis(ctx, analysis))
	require.NoError(t, store.SaveFeedback(ctx, &types.Feedback{
		AnalysisID: analysis.ID, Rating: 5, Helpful: true,
	}))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TotalAnalyses)
	assert.Equal(t, 1, stats.TotalFindings)
	assert.Equal(t, 1, stats.AnalysesWithBugs)
	assert.Equal(t, 1, stats.FeedbackCount)
	assert.Equal(t, 1, stats.PatternFrequency[types.PatternMissingCornerCase])
	assert.InDelta(t, 5.0, stats.AvgSeverity[types.PatternMissingCornerCase], 0.001)
	assert.Equal(t, 1, stats.StageCounts["static"])
	assert.InDelta(t, 1.0, stats.StageSuccessRate["static"], 0.001)
}
