package frontend

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Kind classifies a cursor the way the indexer dispatches on it.
type Kind int

const (
	Other Kind = iota
	StructDecl
	UnionDecl
	EnumDecl
	TypedefDecl
	VarDecl
	FieldDecl
	EnumConstantDecl
)

func (k Kind) String() string {
	switch k {
	case StructDecl:
		return "StructDecl"
	case UnionDecl:
		return "UnionDecl"
	case EnumDecl:
		return "EnumDecl"
	case TypedefDecl:
		return "TypedefDecl"
	case VarDecl:
		return "VarDecl"
	case FieldDecl:
		return "FieldDecl"
	case EnumConstantDecl:
		return "EnumConstantDecl"
	}
	return "Other"
}

// VisitResult steers traversal: Recurse descends into the visited cursor's
// children, Continue moves to the next sibling.
type VisitResult int

const (
	Continue VisitResult = iota
	Recurse
)

// Cursor is one node of the visit stream. Aggregate cursors anchor on their
// specifier node; typedef/var cursors anchor on their declarator and field
// cursors on their whole field declaration. All of them carry the specifier
// separately for type resolution.
type Cursor struct {
	tu   *TranslationUnit
	file *SourceFile
	kind Kind

	node     *sitter.Node // location anchor
	spec     *sitter.Node // type specifier, nil for Other
	declName *sitter.Node // identifier node for declarator-ish cursors
	anon     bool         // C11 anonymous member record
	indirect bool         // declarator goes through pointer/array/function
}

func (c *Cursor) Kind() Kind {
	return c.kind
}

func (c *Cursor) File() *SourceFile {
	return c.file
}

// Location returns the cursor's source position, 1-based.
func (c *Cursor) Location() (file *SourceFile, line, col uint32) {
	p := c.node.StartPoint()
	return c.file, p.Row + 1, p.Column + 1
}

// Spelling returns the cursor's identifier: the tag for aggregates, the
// introduced name for typedef/var/field cursors. Empty for unnamed cursors.
func (c *Cursor) Spelling() string {
	switch c.kind {
	case StructDecl, UnionDecl, EnumDecl:
		name := c.spec.ChildByFieldName("name")
		if name == nil {
			return ""
		}
		return name.Content(c.file.src)
	case TypedefDecl, VarDecl, FieldDecl, EnumConstantDecl:
		if c.declName == nil {
			return ""
		}
		return c.declName.Content(c.file.src)
	}
	return ""
}

// IsDefinition reports whether an aggregate cursor carries a body. A bodiless
// specifier is a forward declaration.
func (c *Cursor) IsDefinition() bool {
	return c.spec != nil && c.spec.ChildByFieldName("body") != nil
}

// IsAnonymousRecord reports the inline-member form: a tagless aggregate
// nested in another aggregate, whether or not a declarator follows its body.
func (c *Cursor) IsAnonymousRecord() bool {
	return c.anon
}

// CanonicalType resolves the cursor's type identity: its own defining
// specifier for aggregates, the underlying aggregate for typedef/var/field
// cursors. Zero for primitives, pointer/array declarators, and references
// that never resolve to a definition in this unit.
func (c *Cursor) CanonicalType() TypeID {
	if c.spec == nil || c.indirect {
		return 0
	}
	return c.tu.resolveSpecifier(c.file, c.spec)
}

// UnderlyingAggregate resolves the aggregate beneath the cursor's type even
// when the declarator goes through pointer or array layers. A member of type
// `struct s *` still refers to `struct s`; CanonicalType would report 0 for
// it because the member's own type is the pointer.
func (c *Cursor) UnderlyingAggregate() TypeID {
	if c.spec == nil {
		return 0
	}
	return c.tu.resolveSpecifier(c.file, c.spec)
}

// VisitChildren drives cb over root's children. Returning Recurse from cb
// descends; the descended-into cursor becomes the parent argument for its
// children.
func VisitChildren(root *Cursor, cb func(cursor, parent *Cursor) VisitResult) {
	for _, child := range root.children() {
		if cb(child, root) == Recurse {
			VisitChildren(child, cb)
		}
	}
}

func isAggregateSpecifier(t string) bool {
	return t == "struct_specifier" || t == "union_specifier" || t == "enum_specifier"
}

func aggregateKind(t string) Kind {
	switch t {
	case "struct_specifier":
		return StructDecl
	case "union_specifier":
		return UnionDecl
	case "enum_specifier":
		return EnumDecl
	}
	return Other
}

// unwrapDeclarator finds the declared identifier beneath a declarator,
// noting whether the path crosses a pointer, array, or function layer (in
// which case the declared entity's canonical type is not the base aggregate).
func unwrapDeclarator(node *sitter.Node) (name *sitter.Node, indirect bool) {
	for node != nil {
		switch node.Type() {
		case "identifier", "field_identifier", "type_identifier":
			return node, indirect
		case "pointer_declarator", "array_declarator", "function_declarator":
			indirect = true
			node = node.ChildByFieldName("declarator")
		case "init_declarator", "parenthesized_declarator", "attributed_declarator":
			node = node.ChildByFieldName("declarator")
		default:
			return nil, indirect
		}
	}
	return nil, indirect
}

// sameNode compares tree positions; the binding allocates a fresh wrapper per
// child access, so pointer identity is useless.
func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

func isDeclaratorNode(t string) bool {
	switch t {
	case "identifier", "field_identifier", "type_identifier",
		"init_declarator", "pointer_declarator", "array_declarator",
		"function_declarator", "parenthesized_declarator", "attributed_declarator":
		return true
	}
	return false
}

// children synthesizes the child cursor sequence.
func (c *Cursor) children() []*Cursor {
	switch c.kind {
	case Other:
		if c.node.Type() == "translation_unit" {
			return c.tu.expandItems(c.file, c.node)
		}
	case StructDecl, UnionDecl, EnumDecl:
		body := c.spec.ChildByFieldName("body")
		if body == nil {
			return nil
		}
		if body.Type() == "enumerator_list" {
			return c.tu.expandEnumerators(c.file, body)
		}
		return c.tu.expandFields(c.file, body)
	}
	return nil
}

// expandItems flattens one file's top-level items into cursors, descending
// inline into included files at their first include site.
func (tu *TranslationUnit) expandItems(file *SourceFile, root *sitter.Node) []*Cursor {
	var out []*Cursor

	for i := 0; i < int(root.NamedChildCount()); i++ {
		item := root.NamedChild(i)
		switch item.Type() {
		case "comment":
			continue

		case "preproc_include":
			path := tu.resolveInclude(file, item)
			if path == "" {
				continue
			}
			inc := tu.byPath[canonPath(path)]
			if inc == nil || tu.expanded[inc] {
				continue
			}
			tu.expanded[inc] = true
			out = append(out, tu.expandItems(inc, inc.root)...)

		case "struct_specifier", "union_specifier", "enum_specifier":
			tu.registerSpecifier(file, item)
			out = append(out, &Cursor{
				tu: tu, file: file, kind: aggregateKind(item.Type()),
				node: item, spec: item,
			})

		case "type_definition":
			out = append(out, tu.expandTypedef(file, item)...)

		case "declaration":
			out = append(out, tu.expandDeclaration(file, item)...)

		default:
			// function definitions, preprocessor noise, linkage blocks:
			// visible to the walk, never indexable.
			out = append(out, &Cursor{tu: tu, file: file, kind: Other, node: item})
		}
	}
	return out
}

// expandTypedef yields the defining aggregate (if any) followed by one
// typedef cursor per declarator, the order a compiler reports them in.
func (tu *TranslationUnit) expandTypedef(file *SourceFile, item *sitter.Node) []*Cursor {
	var out []*Cursor

	spec := item.ChildByFieldName("type")
	if spec != nil && isAggregateSpecifier(spec.Type()) && spec.ChildByFieldName("body") != nil {
		tu.registerSpecifier(file, spec)
		out = append(out, &Cursor{
			tu: tu, file: file, kind: aggregateKind(spec.Type()),
			node: spec, spec: spec,
		})
	}

	for i := 0; i < int(item.NamedChildCount()); i++ {
		decl := item.NamedChild(i)
		if sameNode(decl, spec) || !isDeclaratorNode(decl.Type()) {
			continue
		}
		name, indirect := unwrapDeclarator(decl)
		if name == nil {
			continue
		}
		cur := &Cursor{
			tu: tu, file: file, kind: TypedefDecl,
			node: decl, spec: spec, declName: name, indirect: indirect,
		}
		if !indirect {
			tu.registerTypedef(name.Content(file.src), tu.resolveSpecifier(file, spec))
		}
		out = append(out, cur)
	}
	return out
}

// expandDeclaration yields the defining aggregate (if any) followed by one
// var cursor per object declarator. Prototypes stay opaque.
func (tu *TranslationUnit) expandDeclaration(file *SourceFile, item *sitter.Node) []*Cursor {
	var out []*Cursor

	spec := item.ChildByFieldName("type")
	if spec != nil && isAggregateSpecifier(spec.Type()) && spec.ChildByFieldName("body") != nil {
		tu.registerSpecifier(file, spec)
		out = append(out, &Cursor{
			tu: tu, file: file, kind: aggregateKind(spec.Type()),
			node: spec, spec: spec,
		})
	}

	for i := 0; i < int(item.NamedChildCount()); i++ {
		decl := item.NamedChild(i)
		if sameNode(decl, spec) || !isDeclaratorNode(decl.Type()) {
			continue
		}
		name, indirect := unwrapDeclarator(decl)
		if name == nil {
			continue
		}
		out = append(out, &Cursor{
			tu: tu, file: file, kind: VarDecl,
			node: decl, spec: spec, declName: name, indirect: indirect,
		})
	}
	return out
}

// expandFields flattens a field_declaration_list. A defining aggregate typed
// field yields the aggregate cursor first; an unnamed defining aggregate with
// no declarator at all is the C11 anonymous member form.
func (tu *TranslationUnit) expandFields(file *SourceFile, body *sitter.Node) []*Cursor {
	var out []*Cursor

	for i := 0; i < int(body.NamedChildCount()); i++ {
		item := body.NamedChild(i)
		if item.Type() != "field_declaration" {
			continue
		}

		spec := item.ChildByFieldName("type")

		var decls []*sitter.Node
		for j := 0; j < int(item.NamedChildCount()); j++ {
			child := item.NamedChild(j)
			if sameNode(child, spec) || !isDeclaratorNode(child.Type()) {
				continue
			}
			decls = append(decls, child)
		}

		if spec != nil && isAggregateSpecifier(spec.Type()) && spec.ChildByFieldName("body") != nil {
			tu.registerSpecifier(file, spec)
			// Any tagless record nested in another record is anonymous: its
			// fields belong to the enclosing type, whether or not a declarator
			// follows the body.
			anon := spec.ChildByFieldName("name") == nil
			out = append(out, &Cursor{
				tu: tu, file: file, kind: aggregateKind(spec.Type()),
				node: spec, spec: spec, anon: anon,
			})
		}

		for _, decl := range decls {
			name, indirect := unwrapDeclarator(decl)
			if name == nil {
				continue
			}
			out = append(out, &Cursor{
				tu: tu, file: file, kind: FieldDecl,
				node: item, spec: spec, declName: name, indirect: indirect,
			})
		}
	}
	return out
}

func (tu *TranslationUnit) expandEnumerators(file *SourceFile, body *sitter.Node) []*Cursor {
	var out []*Cursor
	for i := 0; i < int(body.NamedChildCount()); i++ {
		item := body.NamedChild(i)
		if item.Type() != "enumerator" {
			continue
		}
		out = append(out, &Cursor{
			tu: tu, file: file, kind: EnumConstantDecl,
			node: item, declName: item.ChildByFieldName("name"),
		})
	}
	return out
}
