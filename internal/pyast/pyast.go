// Package pyast parses Python source with Tree-sitter and exposes the
// structural queries the detectors need: read-site vs write-site name
// resolution, literals, calls, returns, and lightweight intra-file type
// inference for assignment targets.
package pyast

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Source is a parsed Python file. Close releases the underlying tree.
type Source struct {
	Code    string
	Lines   []string
	content []byte
	tree    *sitter.Tree
	root    *sitter.Node
}

// Parse parses code into a Source. Tree-sitter is error tolerant, so a
// Source is returned even for broken input; use HasError/FirstError to
// inspect syntax problems.
func Parse(code string) (*Source, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	content := []byte(code)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}

	return &Source{
		Code:    code,
		Lines:   strings.Split(code, "\n"),
		content: content,
		tree:    tree,
		root:    tree.RootNode(),
	}, nil
}

// ParseLenient parses code and, when the tree contains errors, retries
// with the first offending line blanked so downstream detectors still
// see the rest of the file. The tree with fewer error nodes wins.
func ParseLenient(code string) (*Source, error) {
	src, err := Parse(code)
	if err != nil {
		return nil, err
	}
	if !src.HasError() {
		return src, nil
	}

	line, _, ok := src.FirstError()
	if !ok || line < 1 || line > len(src.Lines) {
		return src, nil
	}

	stripped := make([]string, len(src.Lines))
	copy(stripped, src.Lines)
	stripped[line-1] = ""

	retry, err := Parse(strings.Join(stripped, "\n"))
	if err != nil {
		return src, nil
	}
	if retry.errorCount() < src.errorCount() {
		src.Close()
		// Keep the original text so line numbers and raw scans stay
		// aligned with what the user submitted.
		retry.Code = src.Code
		return retry, nil
	}
	retry.Close()
	return src, nil
}

// Close releases the Tree-sitter tree.
func (s *Source) Close() {
	if s.tree != nil {
		s.tree.Close()
		s.tree = nil
	}
}

// Root returns the module node.
func (s *Source) Root() *sitter.Node {
	return s.root
}

// Text returns the source text of a node.
func (s *Source) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(s.content)
}

// Line returns the 1-based start line of a node.
func Line(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	return int(n.StartPoint().Row) + 1
}

// Column returns the 1-based start column of a node.
func Column(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	return int(n.StartPoint().Column) + 1
}

// HasError reports whether the parse tree contains syntax errors.
func (s *Source) HasError() bool {
	return s.root != nil && s.root.HasError()
}

// FirstError locates the first ERROR or MISSING node in source order.
func (s *Source) FirstError() (line, col int, ok bool) {
	var found *sitter.Node
	Walk(s.root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return 0, 0, false
	}
	return Line(found), Column(found), true
}

func (s *Source) errorCount() int {
	count := 0
	Walk(s.root, func(n *sitter.Node) bool {
		if n.Type() == "ERROR" || n.IsMissing() {
			count++
		}
		return true
	})
	return count
}

// Walk visits nodes pre-order. Returning false skips the subtree.
func Walk(n *sitter.Node, fn func(n *sitter.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		Walk(n.Child(i), fn)
	}
}

// ancestor walks up from n until fn returns true or the root is passed.
func ancestor(n *sitter.Node, fn func(n *sitter.Node) bool) *sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if fn(p) {
			return p
		}
	}
	return nil
}

// InMainGuard reports whether n sits inside the conventional
// `if __name__ == "__main__":` entry-point block.
func (s *Source) InMainGuard(n *sitter.Node) bool {
	return ancestor(n, func(p *sitter.Node) bool {
		if p.Type() != "if_statement" {
			return false
		}
		cond := p.ChildByFieldName("condition")
		if cond == nil {
			return false
		}
		text := s.Text(cond)
		return strings.Contains(text, "__name__") && strings.Contains(text, "__main__")
	}) != nil
}
