package static

import (
	"github.com/codeguard/codeguard/internal/pyast"
)

// promptBiasSurface only collects candidate literals; the linguistic
// layer owns the prompt-bias verdict. Literals inside the entry-point
// guard block are excluded here so they can never be judged biased.
type promptBiasSurface struct{}

func (d *promptBiasSurface) Name() string { return "prompt_bias_surface" }

func (d *promptBiasSurface) Detect(src *pyast.Source, prompt string, res *Result) {
	for _, lit := range src.Literals() {
		switch lit.Kind {
		case "string", "integer", "float", "list", "tuple":
		default:
			continue
		}
		if src.InMainGuard(lit.Node) {
			continue
		}
		res.CandidateLiterals = append(res.CandidateLiterals, CandidateLiteral{
			Kind: lit.Kind,
			Text: lit.Text,
			Line: lit.Line,
		})
	}
}
