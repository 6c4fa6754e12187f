package static

import (
	"fmt"

	"github.com/codeguard/codeguard/internal/pyast"
	"github.com/codeguard/codeguard/pkg/types"
)

// syntaxDetector captures the first parser error. When it fires, the
// classifier suppresses everything else.
type syntaxDetector struct{}

func (d *syntaxDetector) Name() string { return "syntax" }

func (d *syntaxDetector) Detect(src *pyast.Source, prompt string, res *Result) {
	if !src.HasError() {
		return
	}

	line, col, ok := src.FirstError()
	location := ""
	if ok {
		location = fmt.Sprintf("Line %d, Column %d", line, col)
	}

	res.SyntaxError = true
	res.Findings = append(res.Findings, types.Finding{
		Pattern:        types.PatternSyntaxError,
		Severity:       9,
		Confidence:     1.0,
		Description:    fmt.Sprintf("The code contains a syntax error at line %d: the parser could not continue past this point.", line),
		Location:       location,
		DetectionStage: types.StageStatic,
	})
}
