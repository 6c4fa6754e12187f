package static

import (
	"fmt"
	"strings"

	"github.com/codeguard/codeguard/internal/pyast"
	"github.com/codeguard/codeguard/pkg/types"
)

// numericFunctions expect a numeric argument; a string literal passed
// to one of these is a wrong-input-type shape.
var numericFunctions = map[string]bool{
	"sqrt": true, "pow": true, "log": true, "log2": true, "log10": true,
	"exp": true, "sin": true, "cos": true, "tan": true,
	"ceil": true, "floor": true, "fabs": true, "round": true, "abs": true,
}

type wrongInputTypeDetector struct{}

func (d *wrongInputTypeDetector) Name() string { return "wrong_input_type" }

func (d *wrongInputTypeDetector) Detect(src *pyast.Source, prompt string, res *Result) {
	type hit struct {
		fn, value string
		line      int
	}
	var hits []hit

	for _, call := range src.Calls() {
		if !numericFunctions[call.Name] {
			continue
		}
		for _, arg := range call.Args {
			if arg.Type() != "string" {
				continue
			}
			text := src.Text(arg)
			// round() with a second argument is not reported.
			if call.Name == "round" && len(call.Args) > 1 {
				continue
			}
			hits = append(hits, hit{fn: call.Name, value: text, line: call.Line})
		}
	}

	if len(hits) == 0 {
		return
	}

	exprs := make([]string, 0, len(hits))
	for _, h := range hits {
		exprs = append(exprs, fmt.Sprintf("%s(%s)", h.fn, h.value))
	}

	res.Findings = append(res.Findings, types.Finding{
		Pattern:    types.PatternWrongInputType,
		Severity:   6,
		Confidence: 0.8,
		Description: fmt.Sprintf(
			"Detected incompatible literal types in calls: %s. A string literal is passed where a numeric value is expected.",
			strings.Join(exprs, ", ")),
		Location:       fmt.Sprintf("Line %d", hits[0].line),
		DetectionStage: types.StageStatic,
	})
}
