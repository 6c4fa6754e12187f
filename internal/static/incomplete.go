package static

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codeguard/codeguard/internal/pyast"
	"github.com/codeguard/codeguard/pkg/types"
)

var trailingAssignRe = regexp.MustCompile(`^\s*\w+(\s*\[[^\]]*\])?\s*=\s*$`)

// incompleteDetector flags generation-cutoff shapes: placeholder-only
// function bodies, assignments missing their right-hand side, and
// TODO/FIXME markers left as sole content.
type incompleteDetector struct{}

func (d *incompleteDetector) Name() string { return "incomplete" }

func (d *incompleteDetector) Detect(src *pyast.Source, prompt string, res *Result) {
	type issue struct {
		line int
		desc string
	}
	var issues []issue

	for _, fn := range src.Functions() {
		kind := placeholderBody(src, fn.Body)
		if kind == "" {
			continue
		}
		issues = append(issues, issue{
			line: fn.Line,
			desc: fmt.Sprintf("function %q %s", fn.Name, kind),
		})
	}

	for i, line := range src.Lines {
		if trailingAssignRe.MatchString(line) {
			issues = append(issues, issue{
				line: i + 1,
				desc: "assignment with no value",
			})
		}
	}

	for i, line := range src.Lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		body := strings.TrimSpace(strings.TrimLeft(trimmed, "# "))
		if body == "TODO" || body == "FIXME" ||
			strings.HasPrefix(body, "TODO:") || strings.HasPrefix(body, "FIXME:") {
			issues = append(issues, issue{
				line: i + 1,
				desc: "incomplete marker left in code",
			})
		}
	}

	if len(issues) == 0 {
		return
	}

	descs := make([]string, 0, len(issues))
	for _, iss := range issues {
		descs = append(descs, iss.desc)
	}

	res.Findings = append(res.Findings, types.Finding{
		Pattern:    types.PatternIncomplete,
		Severity:   7,
		Confidence: 0.9,
		Description: fmt.Sprintf(
			"Code generation appears incomplete: %s. The model may have been cut off or reached a token limit.",
			strings.Join(descs, "; ")),
		Location:       fmt.Sprintf("Line %d", issues[0].line),
		DetectionStage: types.StageStatic,
	})
}

// placeholderBody reports why a function body is a placeholder, or ""
// when the body has real statements.
func placeholderBody(src *pyast.Source, body *sitter.Node) string {
	if body == nil {
		return "has no body"
	}

	var stmts []*sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		stmts = append(stmts, child)
	}

	if len(stmts) == 0 {
		return "has no body"
	}
	if len(stmts) > 1 {
		return ""
	}

	only := stmts[0]
	switch only.Type() {
	case "pass_statement":
		return "contains only pass"
	case "expression_statement":
		if only.NamedChildCount() == 1 {
			switch only.NamedChild(0).Type() {
			case "ellipsis":
				return "contains only an ellipsis placeholder"
			case "string":
				return "contains only a docstring"
			}
		}
	}
	return ""
}
