package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatternValidity(t *testing.T) {
	for _, p := range AllPatterns {
		assert.True(t, p.Valid())
	}
	assert.False(t, Pattern("logic_error").Valid())
	assert.False(t, Pattern("").Valid())
}

func TestSeverityBands(t *testing.T) {
	tests := []struct {
		severity int
		label    string
	}{
		{10, "critical"},
		{8, "critical"},
		{7, "high"},
		{6, "high"},
		{5, "medium"},
		{4, "medium"},
		{3, "low"},
		{1, "low"},
		{0, "none"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.label, SeverityLabel(tt.severity), "severity %d", tt.severity)
	}
}

func TestRecompute(t *testing.T) {
	a := &Analysis{Findings: []Finding{
		{Severity: 5, Confidence: 0.6},
		{Severity: 9, Confidence: 0.8},
	}}
	a.Recompute()

	assert.True(t, a.HasBugs)
	assert.Equal(t, 9, a.OverallSeverity)
	assert.InDelta(t, 0.7, a.Confidence, 0.0001)

	a.Findings = nil
	a.Recompute()
	assert.False(t, a.HasBugs)
	assert.Equal(t, 0, a.OverallSeverity)
	assert.Equal(t, 0.0, a.Confidence)
}

func TestFeedbackValidate(t *testing.T) {
	assert.NoError(t, Feedback{AnalysisID: "a", Rating: 1}.Validate())
	assert.NoError(t, Feedback{AnalysisID: "a", Rating: 5}.Validate())
	assert.Error(t, Feedback{AnalysisID: "a", Rating: 0}.Validate())
	assert.Error(t, Feedback{AnalysisID: "a", Rating: 6}.Validate())
	assert.Error(t, Feedback{Rating: 3}.Validate())
}
