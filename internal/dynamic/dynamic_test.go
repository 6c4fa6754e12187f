package dynamic

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeguard/codeguard/internal/core"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/pkg/types"
)

// fakeExecutor returns a canned result without running anything.
type fakeExecutor struct {
	result *core.ExecResult
	err    error
	source string
}

func (f *fakeExecutor) Backend() string { return "fake" }

func (f *fakeExecutor) Run(ctx context.Context, source, stdin string) (*core.ExecResult, error) {
	f.source = source
	return f.result, f.err
}

func harnessResult(stdout string) *core.ExecResult {
	return &core.ExecResult{Stdout: stdout, Backend: "fake"}
}

func TestBuildHarnessIsolatesBookkeeping(t *testing.T) {
	harness := BuildHarness("result = 41\nprint(result)")

	assert.Contains(t, harness, "_cg_ns")
	assert.Contains(t, harness, "_cg_result")
	assert.Contains(t, harness, "exec(compile(_cg_code")
	// The user code is embedded as an escaped literal, not inline.
	assert.NotContains(t, harness, "\nresult = 41")
}

func TestBuildHarnessProbesTopLevelFunctions(t *testing.T) {
	harness := BuildHarness("def divide(a, b):\n    return a / b")

	assert.Contains(t, harness, `_cg_ns.get("divide")`)
	assert.Contains(t, harness, "_cg_fn(10, 0)")
}

func TestBuildHarnessSkipsMethodsAndBigArity(t *testing.T) {
	code := `class C:
    def method(self, a):
        return a

def wide(a, b, c, d):
    return a
`
	harness := BuildHarness(code)
	assert.NotContains(t, harness, `_cg_ns.get("method")`)
	assert.NotContains(t, harness, `_cg_ns.get("wide")`)
}

func TestClassifyExceptionMapping(t *testing.T) {
	tests := []struct {
		kind     string
		pattern  types.Pattern
		severity int
	}{
		{"AttributeError", types.PatternWrongAttribute, 6},
		{"TypeError", types.PatternWrongInputType, 6},
		{"NameError", types.PatternHallucinated, 8},
		{"ZeroDivisionError", types.PatternMissingCornerCase, 5},
		{"IndexError", types.PatternMissingCornerCase, 5},
		{"KeyError", types.PatternMissingCornerCase, 5},
		{"ValueError", types.PatternMissingCornerCase, 5},
		{"RecursionError", types.PatternMissingCornerCase, 4},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			stdout := fmt.Sprintf(`{"success": false, "error_type": %q, "error": "boom", "line": 2}`, tt.kind)
			analyzer := NewAnalyzer(&fakeExecutor{result: harnessResult(stdout)}, logger.Nop())

			res := analyzer.Analyze(context.Background(), "x = 1")
			require.NotNil(t, res.Hypothesis)
			assert.Equal(t, tt.pattern, res.Hypothesis.Pattern)
			assert.Equal(t, tt.severity, res.Hypothesis.Severity)
			assert.Equal(t, 2, res.Hypothesis.Line)
		})
	}
}

func TestSuccessfulRunHasNoHypothesis(t *testing.T) {
	analyzer := NewAnalyzer(&fakeExecutor{result: harnessResult(`{"success": true}`)}, logger.Nop())

	res := analyzer.Analyze(context.Background(), "x = 1")
	assert.True(t, res.ExecutionSuccess)
	assert.Nil(t, res.Hypothesis)
}

func TestTimeoutMapsToHypothesis(t *testing.T) {
	analyzer := NewAnalyzer(&fakeExecutor{result: &core.ExecResult{TimedOut: true}}, logger.Nop())

	res := analyzer.Analyze(context.Background(), "while True:\n    pass")
	assert.True(t, res.TimedOut)
	require.NotNil(t, res.Hypothesis)
	assert.Equal(t, types.PatternMissingCornerCase, res.Hypothesis.Pattern)
	assert.Equal(t, 3, res.Hypothesis.Severity)
}

// The dynamic stage never raises: executor failures degrade into a
// skipped result, and garbage output is reported as a parse error.
func TestAnalyzerNeverFails(t *testing.T) {
	t.Run("executor error", func(t *testing.T) {
		analyzer := NewAnalyzer(&fakeExecutor{err: fmt.Errorf("daemon gone")}, logger.Nop())
		res := analyzer.Analyze(context.Background(), "x = 1")
		assert.True(t, res.Skipped)
		assert.Contains(t, res.SkipReason, "daemon gone")
	})

	t.Run("garbage stdout", func(t *testing.T) {
		analyzer := NewAnalyzer(&fakeExecutor{result: harnessResult("no json here")}, logger.Nop())
		res := analyzer.Analyze(context.Background(), "x = 1")
		assert.True(t, res.ParseError)
		assert.Nil(t, res.Hypothesis)
	})
}

func TestHarnessReachesExecutor(t *testing.T) {
	fake := &fakeExecutor{result: harnessResult(`{"success": true}`)}
	analyzer := NewAnalyzer(fake, logger.Nop())

	analyzer.Analyze(context.Background(), "x = 1")
	assert.True(t, strings.Contains(fake.source, "_cg_code"))
}
