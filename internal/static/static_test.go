package static

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/pkg/types"
)

func analyze(t *testing.T, prompt, code string) *Result {
	t.Helper()
	res, err := NewAnalyzer(logger.Nop()).Analyze(context.Background(), prompt, code)
	require.NoError(t, err)
	return res
}

func findingFor(res *Result, pattern types.Pattern) *types.Finding {
	for i := range res.Findings {
		if res.Findings[i].Pattern == pattern {
			return &res.Findings[i]
		}
	}
	return nil
}

func TestSyntaxErrorDetected(t *testing.T) {
	res := analyze(t, "add two numbers", "def add(a,b)\n    return a+b")

	require.True(t, res.HasSyntaxError())
	f := findingFor(res, types.PatternSyntaxError)
	require.NotNil(t, f)
	assert.GreaterOrEqual(t, f.Severity, 8)
	assert.Contains(t, f.Location, "Line 1")
}

func TestCleanCodeHasNoFindings(t *testing.T) {
	res := analyze(t, "add two numbers", "def add(a,b):\n    return a+b")
	assert.Empty(t, res.Findings)
	assert.False(t, res.HasSyntaxError())
}

func TestHallucinationDetected(t *testing.T) {
	res := analyze(t, "compute factorial", "def f(n):\n    return calc.factorial(n)")

	f := findingFor(res, types.PatternHallucinated)
	require.NotNil(t, f)
	assert.Contains(t, f.Description, "calc")
	require.Len(t, res.Hallucinated, 1)
	assert.Equal(t, "calc", res.Hallucinated[0].Name)
	assert.Equal(t, 2, res.Hallucinated[0].Line)
}

// A language builtin is never reported as a hallucination regardless
// of context.
func TestBuiltinsNeverHallucinated(t *testing.T) {
	code := "def f(xs):\n    return len(sorted(xs)) + max(xs) + sum(xs)"
	res := analyze(t, "work on a list", code)
	assert.Nil(t, findingFor(res, types.PatternHallucinated))
}

func TestImportedNamesNotHallucinated(t *testing.T) {
	code := "import math\n\ndef f(x):\n    return math.sqrt(x)"
	res := analyze(t, "square root", code)
	assert.Nil(t, findingFor(res, types.PatternHallucinated))
}

func TestIncompleteGeneration(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"pass only", "def f(x):\n    pass"},
		{"ellipsis", "def f(x):\n    ..."},
		{"docstring only", "def f(x):\n    \"\"\"does a thing\"\"\""},
		{"dangling assignment", "def f(x):\n    final_val =\n    return final_val"},
		{"todo marker", "def f(x):\n    # TODO: implement\n    return x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := analyze(t, "do a thing", tt.code)
			assert.NotNil(t, findingFor(res, types.PatternIncomplete))
		})
	}
}

func TestSillyMistakeIdenticalBranches(t *testing.T) {
	code := `def f(x):
    if x > 0:
        return x + 1
    else:
        return x + 1
`
	res := analyze(t, "adjust x", code)
	f := findingFor(res, types.PatternSillyMistake)
	require.NotNil(t, f)
	assert.Contains(t, f.Description, "identical")
}

func TestSillyMistakeRedundantBoolean(t *testing.T) {
	res := analyze(t, "check flag", "def f(x):\n    return x and x")
	assert.NotNil(t, findingFor(res, types.PatternSillyMistake))
}

func TestSillyMistakeReversedDiscountOperands(t *testing.T) {
	code := "def final_price(price, discount):\n    return discount - price"
	res := analyze(t, "subtract the discount from the price", code)

	f := findingFor(res, types.PatternSillyMistake)
	require.NotNil(t, f)
	assert.GreaterOrEqual(t, f.Severity, 5)
}

func TestSillyMistakeSuppressedInClassMethods(t *testing.T) {
	code := `class Basket:
    def final_price(self, price, discount):
        return discount - price
`
	res := analyze(t, "subtract the discount from the price", code)
	assert.Nil(t, findingFor(res, types.PatternSillyMistake))
}

func TestWrongAttributeOnInferredDict(t *testing.T) {
	code := "item = {\"cost\": 3}\ntotal = item.cost"
	res := analyze(t, "total the cost", code)

	f := findingFor(res, types.PatternWrongAttribute)
	require.NotNil(t, f)
	assert.Contains(t, f.Description, "item.cost")
}

func TestDictMethodCallsAreFine(t *testing.T) {
	code := "item = {\"cost\": 3}\ntotal = item.get(\"cost\")"
	res := analyze(t, "total the cost", code)
	assert.Nil(t, findingFor(res, types.PatternWrongAttribute))
}

func TestWrongInputType(t *testing.T) {
	code := "import math\n\ndef f():\n    return math.sqrt(\"16\")"
	res := analyze(t, "square root of 16", code)

	f := findingFor(res, types.PatternWrongInputType)
	require.NotNil(t, f)
	assert.Contains(t, f.Description, "sqrt")
}

func TestMissingCornerCaseDivision(t *testing.T) {
	res := analyze(t, "divide a by b", "def divide(a,b):\n    return a/b")

	f := findingFor(res, types.PatternMissingCornerCase)
	require.NotNil(t, f)
	assert.Contains(t, f.Location, "Line 2")
}

func TestGuardedDivisionNotFlagged(t *testing.T) {
	code := `def divide(a, b):
    if b == 0:
        return None
    return a / b
`
	res := analyze(t, "divide a by b", code)
	assert.Nil(t, findingFor(res, types.PatternMissingCornerCase))
}

func TestCandidateLiteralsExcludeMainGuard(t *testing.T) {
	code := `def f(x):
    return x + 10

if __name__ == "__main__":
    print(f(99))
`
	res := analyze(t, "add ten", code)

	var texts []string
	for _, lit := range res.CandidateLiterals {
		texts = append(texts, lit.Text)
	}
	assert.Contains(t, texts, "10")
	assert.NotContains(t, texts, "99")
}

func TestReturnShapeSignal(t *testing.T) {
	res := analyze(t, "return a list of results", "def f(x):\n    return 3")

	require.NotNil(t, res.ReturnShape)
	assert.Equal(t, "sequence", res.ReturnShape.Expected)
	assert.Equal(t, "scalar", res.ReturnShape.Actual)
}

func TestReturnShapeNoSignalWhenMatching(t *testing.T) {
	res := analyze(t, "return a list of results", "def f(x):\n    return [x]")
	assert.Nil(t, res.ReturnShape)
}
