package static

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codeguard/codeguard/internal/pyast"
	"github.com/codeguard/codeguard/pkg/types"
)

// cornerCaseDetector flags divisions with no preceding guard on the
// denominator and unguarded indexing on parameters that may be empty.
type cornerCaseDetector struct{}

func (d *cornerCaseDetector) Name() string { return "corner_case" }

func (d *cornerCaseDetector) Detect(src *pyast.Source, prompt string, res *Result) {
	type hit struct {
		line int
		desc string
	}
	var hits []hit

	pyast.Walk(src.Root(), func(n *sitter.Node) bool {
		if n.Type() != "binary_operator" {
			return true
		}
		op := n.ChildByFieldName("operator")
		if op == nil {
			return true
		}
		text := src.Text(op)
		if text != "/" && text != "//" && text != "%" {
			return true
		}
		right := n.ChildByFieldName("right")
		if right == nil {
			return true
		}
		denom := src.Text(right)
		// Constant non-zero denominators cannot divide by zero.
		if right.Type() == "integer" || right.Type() == "float" {
			if denom != "0" && denom != "0.0" {
				return true
			}
		}
		if d.guarded(src, n, denom) {
			return true
		}
		hits = append(hits, hit{
			line: pyast.Line(n),
			desc: fmt.Sprintf("division by %s without a zero check", denom),
		})
		return true
	})

	// Unguarded subscripts on function parameters: items[0] with no
	// emptiness check anywhere in the function.
	for _, fn := range src.Functions() {
		params := make(map[string]bool, len(fn.Params))
		for _, p := range fn.Params {
			params[p] = true
		}
		pyast.Walk(fn.Body, func(n *sitter.Node) bool {
			if n.Type() != "subscript" {
				return true
			}
			value := n.ChildByFieldName("value")
			sub := n.ChildByFieldName("subscript")
			if value == nil || sub == nil || value.Type() != "identifier" {
				return true
			}
			name := src.Text(value)
			if !params[name] || sub.Type() != "integer" {
				return true
			}
			if d.guarded(src, n, name) {
				return true
			}
			hits = append(hits, hit{
				line: pyast.Line(n),
				desc: fmt.Sprintf("indexing %s[%s] without checking it is non-empty", name, src.Text(sub)),
			})
			return true
		})
	}

	if len(hits) == 0 {
		return
	}

	descs := make([]string, 0, len(hits))
	for _, h := range hits {
		descs = append(descs, h.desc)
	}

	res.Findings = append(res.Findings, types.Finding{
		Pattern:    types.PatternMissingCornerCase,
		Severity:   5,
		Confidence: 0.65,
		Description: fmt.Sprintf(
			"The code does not guard boundary inputs: %s. Common issues include missing empty-input checks and unguarded division.",
			strings.Join(descs, "; ")),
		Location:       fmt.Sprintf("Line %d", hits[0].line),
		DetectionStage: types.StageStatic,
	})
}

// guarded reports whether any enclosing conditional or try block
// mentions the guarded expression, or an explicit protective
// comparison appears in the enclosing function.
func (d *cornerCaseDetector) guarded(src *pyast.Source, n *sitter.Node, expr string) bool {
	protective := false

	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "try_statement", "conditional_expression":
			protective = true
		case "if_statement", "while_statement":
			if cond := p.ChildByFieldName("condition"); cond != nil &&
				strings.Contains(src.Text(cond), strings.TrimSpace(expr)) {
				protective = true
			}
		case "function_definition":
			// Sibling guard earlier in the same function body.
			if body := p.ChildByFieldName("body"); body != nil {
				text := src.Text(body)
				for _, guard := range []string{
					expr + " != 0", expr + " == 0", "len(" + expr + ")",
					"not " + expr, "if " + expr, "ZeroDivisionError",
				} {
					if strings.Contains(text, guard) {
						protective = true
						break
					}
				}
			}
			return protective
		}
		if protective {
			return true
		}
	}

	return protective
}
