package pyast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// FunctionInfo describes one function definition.
type FunctionInfo struct {
	Name       string
	Params     []string
	Decorators []string
	Line       int
	InClass    bool
	Node       *sitter.Node
	Body       *sitter.Node
}

// Functions returns every function definition in the file.
func (s *Source) Functions() []FunctionInfo {
	var funcs []FunctionInfo

	Walk(s.root, func(n *sitter.Node) bool {
		if n.Type() != "function_definition" {
			return true
		}

		info := FunctionInfo{
			Line: Line(n),
			Node: n,
			Body: n.ChildByFieldName("body"),
		}
		if name := n.ChildByFieldName("name"); name != nil {
			info.Name = s.Text(name)
		}
		if params := n.ChildByFieldName("parameters"); params != nil {
			for i := 0; i < int(params.NamedChildCount()); i++ {
				param := params.NamedChild(i)
				switch param.Type() {
				case "identifier":
					info.Params = append(info.Params, s.Text(param))
				case "default_parameter", "typed_parameter", "typed_default_parameter":
					if name := param.ChildByFieldName("name"); name != nil {
						info.Params = append(info.Params, s.Text(name))
					} else if param.NamedChildCount() > 0 && param.NamedChild(0).Type() == "identifier" {
						info.Params = append(info.Params, s.Text(param.NamedChild(0)))
					}
				}
			}
		}
		if parent := n.Parent(); parent != nil && parent.Type() == "decorated_definition" {
			for i := 0; i < int(parent.NamedChildCount()); i++ {
				child := parent.NamedChild(i)
				if child.Type() == "decorator" {
					info.Decorators = append(info.Decorators, strings.TrimPrefix(s.Text(child), "@"))
				}
			}
		}
		info.InClass = ancestor(n, func(p *sitter.Node) bool {
			return p.Type() == "class_definition"
		}) != nil

		funcs = append(funcs, info)
		return true
	})

	return funcs
}

// CallInfo describes one call site.
type CallInfo struct {
	// Name is the called identifier, or the final attribute for
	// `obj.method(...)` forms.
	Name string
	// FullName is the full dotted callee text.
	FullName string
	Line     int
	Node     *sitter.Node
	Args     []*sitter.Node
}

// Calls returns every call expression in the file.
func (s *Source) Calls() []CallInfo {
	var calls []CallInfo

	Walk(s.root, func(n *sitter.Node) bool {
		if n.Type() != "call" {
			return true
		}

		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}

		info := CallInfo{
			FullName: s.Text(fn),
			Line:     Line(n),
			Node:     n,
		}
		switch fn.Type() {
		case "identifier":
			info.Name = s.Text(fn)
		case "attribute":
			if attr := fn.ChildByFieldName("attribute"); attr != nil {
				info.Name = s.Text(attr)
			}
		default:
			info.Name = info.FullName
		}

		if args := n.ChildByFieldName("arguments"); args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				info.Args = append(info.Args, args.NamedChild(i))
			}
		}

		calls = append(calls, info)
		return true
	})

	return calls
}

// LiteralInfo describes one literal occurrence.
type LiteralInfo struct {
	// Kind: "string", "integer", "float", "list", "dictionary",
	// "tuple", "set", "true", "false", "none".
	Kind string
	Text string
	Line int
	Node *sitter.Node
}

// Literals returns every literal value in the file. String contents are
// reported without their quotes.
func (s *Source) Literals() []LiteralInfo {
	var lits []LiteralInfo

	Walk(s.root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "string":
			text := s.Text(n)
			lits = append(lits, LiteralInfo{Kind: "string", Text: stripQuotes(text), Line: Line(n), Node: n})
			return false
		case "integer", "float", "list", "dictionary", "tuple", "set", "true", "false", "none":
			lits = append(lits, LiteralInfo{Kind: n.Type(), Text: s.Text(n), Line: Line(n), Node: n})
		}
		return true
	})

	return lits
}

func stripQuotes(text string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			return text[len(q) : len(text)-len(q)]
		}
	}
	return text
}

// Value categories for return statements.
const (
	CategorySequence = "sequence"
	CategoryMapping  = "mapping"
	CategoryScalar   = "scalar"
	CategoryNone     = "none"
	CategoryCall     = "call"
	CategoryName     = "name"
	CategoryExpr     = "expression"
	CategoryEmpty    = "empty"
)

// ReturnInfo describes one return statement.
type ReturnInfo struct {
	Line     int
	Category string
	Text     string
	Node     *sitter.Node
	Value    *sitter.Node
}

// Returns lists every return statement with the value category of its
// expression.
func (s *Source) Returns() []ReturnInfo {
	var rets []ReturnInfo

	Walk(s.root, func(n *sitter.Node) bool {
		if n.Type() != "return_statement" {
			return true
		}

		info := ReturnInfo{Line: Line(n), Node: n, Category: CategoryEmpty}
		if n.NamedChildCount() > 0 {
			value := n.NamedChild(0)
			info.Value = value
			info.Text = s.Text(value)
			info.Category = ValueCategory(value)
		}
		rets = append(rets, info)
		return true
	})

	return rets
}

// ValueCategory classifies an expression node as sequence, mapping,
// scalar, call, name, or expression.
func ValueCategory(n *sitter.Node) string {
	if n == nil {
		return CategoryEmpty
	}
	switch n.Type() {
	case "list", "list_comprehension", "tuple", "set", "set_comprehension", "generator_expression":
		return CategorySequence
	case "dictionary", "dictionary_comprehension":
		return CategoryMapping
	case "string", "integer", "float", "true", "false":
		return CategoryScalar
	case "none":
		return CategoryNone
	case "call":
		return CategoryCall
	case "identifier":
		return CategoryName
	default:
		return CategoryExpr
	}
}

// AttributeAccess describes one `obj.attr` read.
type AttributeAccess struct {
	Object    string
	Attribute string
	Line      int
	Node      *sitter.Node
}

// AttributeAccesses lists attribute reads whose object is a plain
// identifier. Call targets (`obj.method()`) are excluded by callers
// that only care about data attributes.
func (s *Source) AttributeAccesses() []AttributeAccess {
	var accesses []AttributeAccess

	Walk(s.root, func(n *sitter.Node) bool {
		if n.Type() != "attribute" {
			return true
		}
		obj := n.ChildByFieldName("object")
		attr := n.ChildByFieldName("attribute")
		if obj == nil || attr == nil || obj.Type() != "identifier" {
			return true
		}
		accesses = append(accesses, AttributeAccess{
			Object:    s.Text(obj),
			Attribute: s.Text(attr),
			Line:      Line(n),
			Node:      n,
		})
		return true
	})

	return accesses
}

// InferredDictNames runs the intra-file inference: names whose binding
// site assigns a dictionary literal, a dict() call, or a dictionary
// comprehension. Reassignment to another kind removes the name.
func (s *Source) InferredDictNames() map[string]bool {
	dicts := make(map[string]bool)

	Walk(s.root, func(n *sitter.Node) bool {
		if n.Type() != "assignment" {
			return true
		}
		left := n.ChildByFieldName("left")
		right := n.ChildByFieldName("right")
		if left == nil || right == nil || left.Type() != "identifier" {
			return true
		}
		name := s.Text(left)
		switch right.Type() {
		case "dictionary", "dictionary_comprehension":
			dicts[name] = true
		case "call":
			if fn := right.ChildByFieldName("function"); fn != nil && s.Text(fn) == "dict" {
				dicts[name] = true
			} else {
				delete(dicts, name)
			}
		default:
			delete(dicts, name)
		}
		return true
	})

	return dicts
}

// Identifiers returns the distinct identifier texts in the file, in
// first-appearance order. Used for intent-match tokenization.
func (s *Source) Identifiers() []string {
	var ids []string
	seen := make(map[string]bool)

	Walk(s.root, func(n *sitter.Node) bool {
		if n.Type() == "identifier" {
			text := s.Text(n)
			if !seen[text] {
				seen[text] = true
				ids = append(ids, text)
			}
		}
		return true
	})

	return ids
}
