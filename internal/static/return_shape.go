package static

import (
	"strings"

	"github.com/codeguard/codeguard/internal/pyast"
)

// returnShapeDetector compares the prompt's declared return intent
// (string level) against the value category of the last return. The
// result is a signal only; the linguistic layer confirms before a
// finding is emitted.
type returnShapeDetector struct{}

func (d *returnShapeDetector) Name() string { return "return_shape" }

func (d *returnShapeDetector) Detect(src *pyast.Source, prompt string, res *Result) {
	expected := expectedCategory(prompt)
	if expected == "" {
		return
	}

	returns := src.Returns()
	if len(returns) == 0 {
		return
	}

	last := returns[len(returns)-1]
	switch last.Category {
	case pyast.CategoryCall, pyast.CategoryName, pyast.CategoryExpr:
		// Not decidable from the literal shape.
		return
	}
	if last.Category == expected {
		return
	}

	res.ReturnShape = &ReturnShapeSignal{
		Expected: expected,
		Actual:   last.Category,
		Line:     last.Line,
	}
}

// expectedCategory reads the prompt for an explicit return shape.
func expectedCategory(prompt string) string {
	lower := strings.ToLower(prompt)
	if !strings.Contains(lower, "return") {
		return ""
	}
	switch {
	case strings.Contains(lower, "list") || strings.Contains(lower, "array") ||
		strings.Contains(lower, "sequence") || strings.Contains(lower, "tuple"):
		return pyast.CategorySequence
	case strings.Contains(lower, "dict") || strings.Contains(lower, "mapping") ||
		strings.Contains(lower, "map of"):
		return pyast.CategoryMapping
	case strings.Contains(lower, "number") || strings.Contains(lower, "integer") ||
		strings.Contains(lower, "string") || strings.Contains(lower, "count") ||
		strings.Contains(lower, "sum") || strings.Contains(lower, "average"):
		return pyast.CategoryScalar
	}
	return ""
}
