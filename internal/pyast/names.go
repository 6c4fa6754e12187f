package pyast

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// NameRef is one identifier occurrence in read (load) context.
type NameRef struct {
	Name string
	Line int
	Node *sitter.Node
}

// DefinedNames collects every name bound anywhere in the file:
// function and class definitions, parameters, assignment targets, loop
// and comprehension targets, with-clause aliases, exception aliases,
// walrus targets, and import aliases. Scope nesting is deliberately
// flattened; for single-file LLM output a binding in any enclosing
// scope is treated as resolving the name.
func (s *Source) DefinedNames() map[string]bool {
	defined := make(map[string]bool)

	bind := func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "identifier":
			defined[s.Text(n)] = true
		case "tuple", "list", "pattern_list", "tuple_pattern", "list_pattern":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child.Type() == "identifier" {
					defined[s.Text(child)] = true
				}
			}
		}
	}

	Walk(s.root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "function_definition", "class_definition":
			bind(n.ChildByFieldName("name"))
		case "parameters", "lambda_parameters":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				param := n.NamedChild(i)
				switch param.Type() {
				case "identifier":
					bind(param)
				case "default_parameter", "typed_parameter", "typed_default_parameter",
					"list_splat_pattern", "dictionary_splat_pattern":
					if name := param.ChildByFieldName("name"); name != nil {
						bind(name)
					} else if param.NamedChildCount() > 0 {
						bind(param.NamedChild(0))
					}
				}
			}
		case "assignment", "augmented_assignment", "named_expression", "for_statement", "for_in_clause":
			bind(n.ChildByFieldName("left"))
			if n.Type() == "named_expression" {
				bind(n.ChildByFieldName("name"))
			}
		case "with_item":
			// `with open(f) as fh` — the alias lives in an as_pattern.
			Walk(n, func(inner *sitter.Node) bool {
				if inner.Type() == "as_pattern_target" {
					bind(inner.NamedChild(0))
				}
				return true
			})
			return false
		case "except_clause":
			// `except ValueError as e`
			Walk(n, func(inner *sitter.Node) bool {
				if inner.Type() == "as_pattern_target" {
					bind(inner.NamedChild(0))
				}
				return true
			})
		case "global_statement", "nonlocal_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				bind(n.NamedChild(i))
			}
		case "import_statement", "import_from_statement":
			for _, name := range s.importedBindings(n) {
				defined[name] = true
			}
			return false
		}
		return true
	})

	return defined
}

// LoadNames collects identifiers in read context: every identifier that
// is not a binding site, not the attribute half of `obj.attr`, not a
// keyword-argument name, and not part of an import clause.
func (s *Source) LoadNames() []NameRef {
	var refs []NameRef

	Walk(s.root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement", "import_from_statement":
			return false
		case "identifier":
			if s.isWriteSite(n) {
				return true
			}
			refs = append(refs, NameRef{Name: s.Text(n), Line: Line(n), Node: n})
		}
		return true
	})

	return refs
}

// isWriteSite reports whether an identifier occurrence binds rather
// than reads the name.
func (s *Source) isWriteSite(id *sitter.Node) bool {
	parent := id.Parent()
	if parent == nil {
		return false
	}

	switch parent.Type() {
	case "function_definition", "class_definition":
		return parent.ChildByFieldName("name") == id
	case "parameters", "lambda_parameters":
		return true
	case "default_parameter", "typed_parameter", "typed_default_parameter",
		"list_splat_pattern", "dictionary_splat_pattern":
		// Parameter name writes; the default value reads.
		if value := parent.ChildByFieldName("value"); value != nil {
			return !within(value, id)
		}
		return true
	case "attribute":
		return parent.ChildByFieldName("attribute") == id
	case "keyword_argument":
		return parent.ChildByFieldName("name") == id
	case "as_pattern_target":
		return true
	case "global_statement", "nonlocal_statement":
		return true
	case "named_expression":
		return parent.ChildByFieldName("name") == id
	}

	// Assignment and loop targets, including tuple unpacking.
	if target := ancestor(id, func(p *sitter.Node) bool {
		switch p.Type() {
		case "assignment", "for_statement", "for_in_clause":
			left := p.ChildByFieldName("left")
			return left != nil && within(left, id)
		}
		return false
	}); target != nil {
		return true
	}

	return false
}

// within reports whether inner's byte range lies inside outer's.
func within(outer, inner *sitter.Node) bool {
	return inner.StartByte() >= outer.StartByte() && inner.EndByte() <= outer.EndByte()
}

// Imports returns the top-level module name of every import clause.
func (s *Source) Imports() []string {
	var mods []string
	seen := make(map[string]bool)

	add := func(name string) {
		root := name
		if idx := indexByte(root, '.'); idx >= 0 {
			root = root[:idx]
		}
		if root != "" && !seen[root] {
			seen[root] = true
			mods = append(mods, root)
		}
	}

	Walk(s.root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				switch child.Type() {
				case "dotted_name":
					add(s.Text(child))
				case "aliased_import":
					if name := child.ChildByFieldName("name"); name != nil {
						add(s.Text(name))
					}
				}
			}
			return false
		case "import_from_statement":
			if mod := n.ChildByFieldName("module_name"); mod != nil {
				add(s.Text(mod))
			}
			return false
		}
		return true
	})

	return mods
}

// importedBindings returns the local names an import clause introduces.
func (s *Source) importedBindings(n *sitter.Node) []string {
	var names []string

	switch n.Type() {
	case "import_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "dotted_name":
				text := s.Text(child)
				if idx := indexByte(text, '.'); idx >= 0 {
					text = text[:idx]
				}
				names = append(names, text)
			case "aliased_import":
				if alias := child.ChildByFieldName("alias"); alias != nil {
					names = append(names, s.Text(alias))
				}
			}
		}
	case "import_from_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child == n.ChildByFieldName("module_name") {
				continue
			}
			switch child.Type() {
			case "dotted_name", "identifier":
				names = append(names, s.Text(child))
			case "aliased_import":
				if alias := child.ChildByFieldName("alias"); alias != nil {
					names = append(names, s.Text(alias))
				}
			case "wildcard_import":
				// `from m import *` defeats resolution; nothing to bind.
			}
		}
	}

	return names
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
