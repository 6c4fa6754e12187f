package pyast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCleanSource(t *testing.T) {
	src, err := Parse("def add(a, b):\n    return a + b\n")
	require.NoError(t, err)
	defer src.Close()

	assert.False(t, src.HasError())

	funcs := src.Functions()
	require.Len(t, funcs, 1)
	assert.Equal(t, "add", funcs[0].Name)
	assert.Equal(t, []string{"a", "b"}, funcs[0].Params)
	assert.Equal(t, 1, funcs[0].Line)
	assert.False(t, funcs[0].InClass)
}

func TestParseSyntaxError(t *testing.T) {
	src, err := Parse("def add(a,b)\n    return a+b\n")
	require.NoError(t, err)
	defer src.Close()

	assert.True(t, src.HasError())
	line, _, ok := src.FirstError()
	assert.True(t, ok)
	assert.Equal(t, 1, line)
}

func TestParseLenientRecoversOtherLines(t *testing.T) {
	code := "x = (1\ny = 2\ndef f(n):\n    return n\n"
	src, err := ParseLenient(code)
	require.NoError(t, err)
	defer src.Close()

	// The original text is preserved regardless of which tree won.
	assert.Equal(t, code, src.Code)
}

func TestDefinedNames(t *testing.T) {
	code := `import math
from collections import Counter as C

class Shape:
    pass

def area(radius, scale=2):
    total = radius * scale
    for item in [1, 2]:
        pass
    with open("f") as fh:
        pass
    try:
        pass
    except ValueError as exc:
        pass
    squares = [n * n for n in range(3)]
    return total
`
	src, err := Parse(code)
	require.NoError(t, err)
	defer src.Close()

	defined := src.DefinedNames()
	for _, name := range []string{"math", "C", "Shape", "area", "radius", "scale", "total", "item", "fh", "exc", "squares", "n"} {
		assert.True(t, defined[name], "expected %q to be defined", name)
	}
	assert.False(t, defined["undefined_thing"])
}

func TestLoadNamesSeparatesWriteSites(t *testing.T) {
	code := "value = helper(data)\nvalue2 = value + 1\n"
	src, err := Parse(code)
	require.NoError(t, err)
	defer src.Close()

	loads := make(map[string]bool)
	for _, ref := range src.LoadNames() {
		loads[ref.Name] = true
	}

	assert.True(t, loads["helper"])
	assert.True(t, loads["data"])
	assert.True(t, loads["value"], "value is read on the second line")
	assert.False(t, loads["value2"], "value2 is only ever written")
}

func TestAttributeReadIsNotALoadOfTheAttribute(t *testing.T) {
	src, err := Parse("result = calc.factorial(n)\n")
	require.NoError(t, err)
	defer src.Close()

	loads := make(map[string]bool)
	for _, ref := range src.LoadNames() {
		loads[ref.Name] = true
	}
	assert.True(t, loads["calc"])
	assert.False(t, loads["factorial"])
}

func TestImports(t *testing.T) {
	code := "import os.path\nimport numpy as np\nfrom json import loads\n"
	src, err := Parse(code)
	require.NoError(t, err)
	defer src.Close()

	assert.ElementsMatch(t, []string{"os", "numpy", "json"}, src.Imports())

	defined := src.DefinedNames()
	assert.True(t, defined["np"])
	assert.True(t, defined["loads"])
}

func TestReturnCategories(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category string
	}{
		{"list", "def f():\n    return [1, 2]\n", CategorySequence},
		{"dict", "def f():\n    return {'a': 1}\n", CategoryMapping},
		{"scalar", "def f():\n    return 3\n", CategoryScalar},
		{"none", "def f():\n    return None\n", CategoryNone},
		{"call", "def f(x):\n    return sum(x)\n", CategoryCall},
		{"bare", "def f():\n    return\n", CategoryEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Parse(tt.code)
			require.NoError(t, err)
			defer src.Close()

			rets := src.Returns()
			require.Len(t, rets, 1)
			assert.Equal(t, tt.category, rets[0].Category)
		})
	}
}

func TestInMainGuard(t *testing.T) {
	code := `def f(x):
    return x

if __name__ == "__main__":
    print(f(42))
`
	src, err := Parse(code)
	require.NoError(t, err)
	defer src.Close()

	guarded := 0
	for _, lit := range src.Literals() {
		if lit.Text == "42" {
			assert.True(t, src.InMainGuard(lit.Node))
			guarded++
		}
	}
	assert.Equal(t, 1, guarded)
}

func TestInferredDictNames(t *testing.T) {
	code := `item = {"cost": 3}
other = dict(a=1)
plain = [1, 2]
reassigned = {"x": 1}
reassigned = 5
`
	src, err := Parse(code)
	require.NoError(t, err)
	defer src.Close()

	dicts := src.InferredDictNames()
	assert.True(t, dicts["item"])
	assert.True(t, dicts["other"])
	assert.False(t, dicts["plain"])
	assert.False(t, dicts["reassigned"])
}

func TestLiteralsStripQuotes(t *testing.T) {
	src, err := Parse("name = \"Alice\"\ncount = 3\n")
	require.NoError(t, err)
	defer src.Close()

	var texts []string
	for _, lit := range src.Literals() {
		texts = append(texts, lit.Text)
	}
	assert.Contains(t, texts, "Alice")
	assert.Contains(t, texts, "3")
}

func TestIdentifiersOrderAndUniqueness(t *testing.T) {
	src, err := Parse("total = price + price\n")
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []string{"total", "price"}, src.Identifiers())
}
