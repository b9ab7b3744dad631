// Package frontend turns C source files into cursor-visit streams.
//
// Files are parsed with tree-sitter's C grammar. A translation unit is the
// main source file plus every quoted include that can be resolved on disk,
// each parsed once (an approximation of include guards). The syntax tree is
// normalized into the cursor stream the indexer consumes: an aggregate
// definition appears as its own cursor, followed by cursors for the typedef
// or variable declarators attached to it, the way a compiler's AST presents
// them.
package frontend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"github.com/jward/cfind/internal/logging"
)

// TypeID is the canonical identity of a type within one translation unit:
// an opaque value derived from the defining specifier node. Zero means "no
// indexable type" (primitives, unresolvable references). TypeIDs are
// meaningless across translation units.
type TypeID uint64

// SourceFile is one parsed file of a translation unit.
type SourceFile struct {
	Path string // canonical absolute path

	index uint32
	src   []byte
	root  *sitter.Node
}

// TranslationUnit is one main source file together with its resolved quoted
// includes.
type TranslationUnit struct {
	main        *SourceFile
	files       []*SourceFile // first-encounter order
	byPath      map[string]*SourceFile
	includeDirs []string

	// Definition registries used to resolve type references back to their
	// defining specifier. Tags ("struct foo") are keyed with their keyword so
	// the tag namespace stays disjoint from typedef names.
	tags     map[string]TypeID
	typedefs map[string]TypeID

	// expanded tracks include sites already inlined during traversal, so a
	// header included twice contributes its declarations once.
	expanded map[*SourceFile]bool
}

// Parse builds a translation unit from path. args is a compile command line;
// only its -I flags matter here, they extend quoted-include resolution.
func Parse(path string, args []string) (*TranslationUnit, error) {
	tu := &TranslationUnit{
		byPath:      make(map[string]*SourceFile),
		includeDirs: includeDirs(args),
		tags:        make(map[string]TypeID),
		typedefs:    make(map[string]TypeID),
		expanded:    make(map[*SourceFile]bool),
	}

	main, err := tu.parseFile(path)
	if err != nil {
		return nil, err
	}
	tu.main = main
	return tu, nil
}

// includeDirs extracts -I directories from a compile command line. Both
// "-Idir" and "-I dir" spellings occur in compile_commands.json.
func includeDirs(args []string) []string {
	var dirs []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-I" && i+1 < len(args):
			i++
			dirs = append(dirs, args[i])
		case strings.HasPrefix(arg, "-I") && len(arg) > 2:
			dirs = append(dirs, arg[2:])
		}
	}
	return dirs
}

// canonPath normalizes a path for file identity within the unit.
func canonPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// parseFile parses one file, recursing into its resolvable quoted includes.
// A file already in the unit is returned as-is.
func (tu *TranslationUnit) parseFile(path string) (*SourceFile, error) {
	abs := canonPath(path)

	if f, ok := tu.byPath[abs]; ok {
		return f, nil
	}

	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", abs, err)
	}

	f := &SourceFile{
		Path:  abs,
		index: uint32(len(tu.files)),
		src:   src,
		root:  tree.RootNode(),
	}
	tu.files = append(tu.files, f)
	tu.byPath[abs] = f

	// Enumerate includes eagerly so Files() is complete before traversal.
	for i := 0; i < int(f.root.NamedChildCount()); i++ {
		child := f.root.NamedChild(i)
		if child.Type() != "preproc_include" {
			continue
		}
		inc := tu.resolveInclude(f, child)
		if inc == "" {
			continue
		}
		if _, err := tu.parseFile(inc); err != nil {
			logging.Logger().Warn("skipping unparsable include",
				"include", inc, "from", abs, "err", err)
		}
	}

	return f, nil
}

// resolveInclude maps a preproc_include node to an on-disk path, or "" when
// the include is a system header or cannot be found. Quoted includes resolve
// against the including file's directory first, then the -I directories.
func (tu *TranslationUnit) resolveInclude(from *SourceFile, node *sitter.Node) string {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil || pathNode.Type() != "string_literal" {
		// <...> system headers aren't indexed.
		return ""
	}
	name := strings.Trim(pathNode.Content(from.src), "\"")
	if name == "" {
		return ""
	}

	dirs := append([]string{filepath.Dir(from.Path)}, tu.includeDirs...)
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Files returns every file of the unit in first-encounter order, the main
// file first.
func (tu *TranslationUnit) Files() []*SourceFile {
	return tu.files
}

// Root returns the traversal root cursor of the unit.
func (tu *TranslationUnit) Root() *Cursor {
	return &Cursor{tu: tu, file: tu.main, kind: Other, node: tu.main.root}
}

// defID derives the canonical TypeID of a defining specifier node. The file
// index and start byte are shifted so the value is never zero.
func defID(file *SourceFile, node *sitter.Node) TypeID {
	return TypeID(file.index+1)<<32 | TypeID(node.StartByte()+1)
}

// tagKey builds the tag-registry key for a specifier kind and name, e.g.
// "struct foo".
func tagKey(specType, name string) string {
	return strings.TrimSuffix(specType, "_specifier") + " " + name
}

// registerSpecifier records a defining specifier in the registries so later
// references resolve to it. First definition wins, matching C's one-definition
// expectation within a unit.
func (tu *TranslationUnit) registerSpecifier(file *SourceFile, spec *sitter.Node) {
	if spec.ChildByFieldName("body") == nil {
		return
	}
	name := spec.ChildByFieldName("name")
	if name == nil {
		return
	}
	key := tagKey(spec.Type(), name.Content(file.src))
	if _, ok := tu.tags[key]; !ok {
		tu.tags[key] = defID(file, spec)
	}
}

func (tu *TranslationUnit) registerTypedef(name string, id TypeID) {
	if id == 0 || name == "" {
		return
	}
	if _, ok := tu.typedefs[name]; !ok {
		tu.typedefs[name] = id
	}
}

// resolveSpecifier maps a type node to its canonical TypeID. Defining
// specifiers identify themselves; named references go through the tag
// registry; typedef-name references go through the typedef registry;
// everything else (primitives, unresolvable names) is 0.
func (tu *TranslationUnit) resolveSpecifier(file *SourceFile, node *sitter.Node) TypeID {
	if node == nil {
		return 0
	}
	switch node.Type() {
	case "struct_specifier", "union_specifier", "enum_specifier":
		if node.ChildByFieldName("body") != nil {
			return defID(file, node)
		}
		name := node.ChildByFieldName("name")
		if name == nil {
			return 0
		}
		return tu.tags[tagKey(node.Type(), name.Content(file.src))]
	case "type_identifier":
		return tu.typedefs[node.Content(file.src)]
	}
	return 0
}
