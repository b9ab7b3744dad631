// Package cfind builds a search database from C sources: user-defined types,
// the names they go by, aggregate members, and type uses, persisted through a
// pluggable record store.
package cfind

import (
	"errors"
	"fmt"

	"github.com/jward/cfind/internal/frontend"
	"github.com/jward/cfind/internal/logging"
	"github.com/jward/cfind/internal/store"
)

// defaultArgs is the synthesized compile command for single-file indexing.
var defaultArgs = []string{"clang", "-std=c17", "-x", "c"}

// Indexer drives translation units through the frontend and records what it
// finds. Most state is unit-local and reset between units; the store and its
// run transaction span the whole run.
type Indexer struct {
	db      store.DB
	dbOwned bool

	// fileMap resolves a frontend file handle to its durable reference. It's
	// populated from the include enumeration before the walk begins.
	fileMap map[*frontend.SourceFile]store.FileRef

	// typeMap resolves opaque unit-local type ids to durable references for
	// every type committed so far in the current unit.
	typeMap map[frontend.TypeID]store.TypeRef

	// loc is the source location of the node being handled.
	loc store.Loc

	sb scoreboard

	// lastAggregate holds the opaque id of an uncommitted unnamed aggregate
	// while the walk checks whether the next sibling supplies its name, as in
	// `typedef struct { ... } foo_t;`.
	lastAggregate frontend.TypeID
}

type indexerConfig struct {
	db      store.DB
	dbOwned bool
	sqlPath string
	openSQL bool
}

// Option configures an Indexer.
type Option func(*indexerConfig)

// WithSQL persists records to a sqlite database at path.
func WithSQL(path string) Option {
	return func(c *indexerConfig) {
		c.openSQL = true
		c.sqlPath = path
	}
}

// WithMem stores records in memory. Useful in tests.
func WithMem() Option {
	return func(c *indexerConfig) {
		c.db = store.OpenMem()
		c.dbOwned = true
	}
}

// WithNop discards records (dry run).
func WithNop() Option {
	return func(c *indexerConfig) {
		c.db = store.OpenNop()
		c.dbOwned = true
	}
}

// WithStore indexes into a caller-provided store. The store is borrowed;
// Close leaves it open.
func WithStore(db store.DB) Option {
	return func(c *indexerConfig) {
		c.db = db
		c.dbOwned = false
	}
}

// New creates an Indexer. Without options it writes to a sqlite database at
// "cf.db".
func New(opts ...Option) (*Indexer, error) {
	cfg := indexerConfig{openSQL: true, sqlPath: "cf.db"}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.db == nil && cfg.openSQL {
		db, err := store.OpenSQL(cfg.sqlPath, false)
		if err != nil {
			return nil, fmt.Errorf("cfind: open database %q: %w", cfg.sqlPath, err)
		}
		cfg.db = db
		cfg.dbOwned = true
	}

	return &Indexer{
		db:      cfg.db,
		dbOwned: cfg.dbOwned,
		fileMap: make(map[*frontend.SourceFile]store.FileRef),
		typeMap: make(map[frontend.TypeID]store.TypeRef),
		sb:      newScoreboard(),
	}, nil
}

// Close releases the Indexer's store (committing the run transaction) unless
// the store was borrowed.
func (ix *Indexer) Close() error {
	if !ix.dbOwned {
		return nil
	}
	return ix.db.Close()
}

// Store returns the underlying record store.
func (ix *Indexer) Store() store.DB {
	return ix.db
}

// IndexSource compiles and indexes a single C source file with default
// compile arguments.
func (ix *Indexer) IndexSource(path string) error {
	return ix.indexTarget(path, defaultArgs)
}

// IndexCompileCommands indexes every target of the compile-commands file
// found in dir, one translation unit at a time.
func (ix *Indexer) IndexCompileCommands(dir string) error {
	cmds, err := loadCompileCommands(dir)
	if err != nil {
		return err
	}
	logging.Logger().Info("loaded compilation database", "dir", dir, "targets", len(cmds))

	for _, cmd := range cmds {
		if err := ix.indexTarget(cmd.path, cmd.args); err != nil {
			return fmt.Errorf("index %q: %w", cmd.path, err)
		}
	}
	return nil
}

// indexTarget parses one translation unit and indexes it. Unit-local state is
// cleared afterwards: opaque ids aren't meaningful between units.
func (ix *Indexer) indexTarget(path string, args []string) error {
	tu, err := frontend.Parse(path, args)
	if err != nil {
		return fmt.Errorf("parse translation unit: %w", err)
	}
	defer ix.resetTU()

	if err := ix.indexIncludes(tu); err != nil {
		return err
	}
	ix.indexTU(tu)
	return nil
}

// indexIncludes enumerates the unit's files and assigns durable references.
// Location tracking relies on every file being known before the walk.
func (ix *Indexer) indexIncludes(tu *frontend.TranslationUnit) error {
	for _, f := range tu.Files() {
		ref, err := ix.db.AddFile(f.Path)
		if err != nil {
			return fmt.Errorf("add file %q: %w", f.Path, err)
		}
		ix.fileMap[f] = ref
	}
	return nil
}

// indexTU walks the unit root. A pending unnamed aggregate left at the end of
// the unit is committed then; its nested named types survive even though the
// outer aggregate itself is dropped.
func (ix *Indexer) indexTU(tu *frontend.TranslationUnit) {
	iterateChildren(tu.Root(), ix.indexNode, func(*frontend.Cursor) {})

	if ix.lastAggregate != 0 {
		ix.commitScoreboard(&ix.sb)
		ix.sb.reset()
		ix.lastAggregate = 0
	}
}

// resetTU drops unit-specific state. Durable tables are unaffected.
func (ix *Indexer) resetTU() {
	clear(ix.fileMap)
	clear(ix.typeMap)
	ix.loc = store.Loc{}
}

// iterateChildren drives cb over root's subtree, maintaining a parent stack.
// On every callback, stack entries are popped until the reported parent is on
// top; final fires per pop, signalling that recursion beneath that cursor has
// completed. Recurse pushes the current cursor.
func iterateChildren(root *frontend.Cursor, cb func(cursor, parent *frontend.Cursor) frontend.VisitResult, final func(*frontend.Cursor)) {
	stack := []*frontend.Cursor{root}

	frontend.VisitChildren(root, func(cursor, parent *frontend.Cursor) frontend.VisitResult {
		for len(stack) > 0 && stack[len(stack)-1] != parent {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			final(top)
		}
		if len(stack) == 0 {
			logging.Logger().Error("visit parent not in stack")
		}

		ret := cb(cursor, parent)
		if ret == frontend.Recurse {
			stack = append(stack, cursor)
		}
		return ret
	})
}

// indexNode handles one top-level node of a translation unit. Only direct
// children of the unit root come through here; aggregate subtrees use
// aggregateChild.
//
// Indexing an unnamed aggregate needs two sibling nodes:
//
//	typedef struct { ... } foo_t;
//
// arrives as an aggregate cursor followed by a typedef cursor. The first
// stages records and sets lastAggregate; when the next sibling arrives the
// declarator is tried as the aggregate's name, and the scoreboard commits
// either way.
func (ix *Indexer) indexNode(cursor, parent *frontend.Cursor) frontend.VisitResult {
	if !ix.indexable(cursor) {
		if ix.lastAggregate != 0 {
			// The sibling can't name the pending aggregate.
			ix.commitScoreboard(&ix.sb)
			ix.sb.reset()
			ix.lastAggregate = 0
		}
		return frontend.Continue
	}

	if !ix.updateLocation(cursor) {
		return frontend.Continue
	}

	if ix.lastAggregate != 0 {
		skip := ix.indexAggregateName(cursor)

		// Commit and reset whether or not a name was adopted.
		ix.commitScoreboard(&ix.sb)
		ix.sb.reset()
		ix.lastAggregate = 0

		if skip {
			// The node was consumed as the aggregate's name.
			return frontend.Continue
		}
	}

	switch cursor.Kind() {
	case frontend.StructDecl, frontend.UnionDecl, frontend.EnumDecl:
		if ix.indexAggregate(cursor) {
			ix.lastAggregate = cursor.CanonicalType()
			logging.Logger().Debug("looking for aggregate name on next node",
				"type", fmt.Sprintf("%#x", ix.lastAggregate))
		}
		return frontend.Continue
	case frontend.TypedefDecl:
		ix.indexTypedef(cursor)
	default:
		// Functions, variables, member accesses: unimplemented.
	}
	return frontend.Recurse
}

// indexAggregateName reports whether cursor was consumed as the name of the
// pending unnamed aggregate. A typedef or variable declarator qualifies when
// its canonical underlying type is the staged aggregate.
func (ix *Indexer) indexAggregateName(cursor *frontend.Cursor) bool {
	last := ix.lastAggregate

	var cursorType frontend.TypeID
	switch cursor.Kind() {
	case frontend.VarDecl, frontend.TypedefDecl:
		cursorType = cursor.CanonicalType()
	default:
		logging.Logger().Warn("aggregate declares nothing",
			"type", fmt.Sprintf("%#x", last))
		return false
	}

	if cursorType != last {
		logging.Logger().Warn("expected declarator for pending aggregate",
			"want", fmt.Sprintf("%#x", last), "got", fmt.Sprintf("%#x", cursorType))
		return false
	}

	if err := ix.adoptName(cursor, &ix.sb); err != nil {
		logging.Logger().Error("cannot adopt aggregate name", "err", err)
		return false
	}
	return true
}

// indexable is the coarse top-level filter; sub-indexing functions have more
// context on individual nodes.
func (ix *Indexer) indexable(cursor *frontend.Cursor) bool {
	switch cursor.Kind() {
	case frontend.StructDecl, frontend.UnionDecl, frontend.EnumDecl:
		// Forward declarations and other incomplete types aren't supported.
		if !cursor.IsDefinition() {
			logging.Logger().Info("incomplete aggregates unimplemented",
				"name", cursor.Spelling())
			return false
		}
		return true
	case frontend.TypedefDecl, frontend.VarDecl:
		// Only typedefs of and variables of aggregate type are interesting.
		return cursor.CanonicalType() != 0
	}
	return false
}

// updateLocation moves ix.loc to cursor's position. The file must have been
// seen during include enumeration.
func (ix *Indexer) updateLocation(cursor *frontend.Cursor) bool {
	file, line, col := cursor.Location()

	ref, ok := ix.fileMap[file]
	if !ok {
		logging.Logger().Error("no file entry for cursor", "file", file.Path)
		return false
	}

	ix.loc.File = ref
	ix.loc.Line = line
	ix.loc.Column = col
	// Function and scope tracking belongs to function-body indexing, which
	// isn't implemented; records stay at global scope.
	return true
}

// indexTypedef records a typedef of an already-indexed aggregate:
//
//	typedef struct foo foo_t;
//
// The underlying canonical type resolves through the unit type map; a miss
// means the typedef aliases something unindexable (a primitive, an incomplete
// type, a not-yet-seen aggregate) and the node is silently skipped. A
// preexisting equal typename is a no-op; a preexisting name bound to a
// different type is reported as corruption and left alone.
func (ix *Indexer) indexTypedef(cursor *frontend.Cursor) {
	ref, ok := ix.typeMap[cursor.CanonicalType()]
	if !ok {
		logging.Logger().Debug("typedef of unindexed type", "name", cursor.Spelling())
		return
	}

	record := store.Typename{
		Kind:     store.NameTypedef,
		BaseType: ref,
		Name:     cursor.Spelling(),
	}

	existing, err := ix.db.TypenameLookup(&ix.loc, &record)
	if err == nil {
		if existing != ref {
			// Somehow `typedef A foo_t` vs `typedef B foo_t`; keep the old one.
			logging.Corrupt("mismatched typedef",
				"name", record.Name, "old", int64(existing), "new", int64(ref))
		}
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		logging.Logger().Error("cannot look up typename", "name", record.Name, "err", err)
		return
	}

	if err := ix.db.TypenameInsert(&ix.loc, &record); err != nil {
		logging.Logger().Error("cannot persist typedef", "name", record.Name, "err", err)
		return
	}
	logging.Logger().Debug("added typedef", "name", record.Name, "type", int64(ref))
}

// nameClass is the classification of an aggregate's naming form.
type nameClass int

const (
	nameDirect  nameClass = iota // struct foo {};
	nameUnnamed                  // typedef struct {} foo_t; struct {} v; struct {};
	nameAnon                     // C11 inline member record
)

// classifyName decides which naming form an aggregate cursor takes.
func classifyName(cursor *frontend.Cursor) nameClass {
	if cursor.IsAnonymousRecord() {
		return nameAnon
	}
	if cursor.Spelling() == "" {
		return nameUnnamed
	}
	return nameDirect
}

// indexAggregate stages cursor and its subtree on the scoreboard. The return
// value reports whether the aggregate still needs a name: true means commit
// is deferred so the caller can try the next sibling as a declarator,
// false means the scoreboard was committed here.
func (ix *Indexer) indexAggregate(cursor *frontend.Cursor) bool {
	sb := &ix.sb
	if len(sb.types) != 0 {
		panic("cfind: scoreboard in use at aggregate entry")
	}

	typeID := cursor.CanonicalType()
	sb.loc = ix.loc
	ix.stageAggregate(cursor, sb)
	ix.walkAggregate(cursor, sb)

	if len(sb.types) == 0 || sb.types[0].typeID != typeID {
		panic("cfind: primary aggregate missing from scoreboard")
	}

	if _, ok := sb.unnamed[typeID]; ok {
		return true
	}
	ix.commitScoreboard(sb)
	sb.reset()
	return false
}

// stageAggregate stages the record for one aggregate decl (not its subtree).
// Direct names stage with their typename; unnamed aggregates enroll in the
// unnamed map; anonymous member records aren't staged at all, though their
// children still get walked.
func (ix *Indexer) stageAggregate(cursor *frontend.Cursor, sb *scoreboard) {
	var kind store.TypeKind
	switch cursor.Kind() {
	case frontend.StructDecl:
		kind = store.KindStruct
	case frontend.UnionDecl:
		kind = store.KindUnion
	case frontend.EnumDecl:
		kind = store.KindEnum
	default:
		panic(fmt.Sprintf("cfind: cursor %s isn't a tag decl", cursor.Kind()))
	}

	pkg := typePkg{
		typeID: cursor.CanonicalType(),
		entry:  store.TypeEntry{Kind: kind, Complete: cursor.IsDefinition()},
	}
	pkg.loc[0] = sb.loc

	if !pkg.entry.Complete {
		logging.Logger().Warn("incomplete aggregates aren't supported",
			"name", cursor.Spelling())
		// Even if the type is completed later, its members won't be updated.
		pkg.entry.Complete = true
	}

	class := classifyName(cursor)

	if class == nameAnon {
		// Only legal nested in another record; children are attributed to the
		// nearest named ancestor instead, and no type row is created.
		if len(sb.parents) == 0 {
			panic("cfind: anonymous record outside an aggregate")
		}
		sb.anonIDs[pkg.typeID] = true
		return
	}

	if class == nameDirect {
		pkg.name = store.Typename{Kind: store.NameDirect, Name: cursor.Spelling()}
		pkg.hasName = true
		pkg.loc[1] = pkg.loc[0]
	}

	sb.types = append(sb.types, pkg)

	if class == nameUnnamed {
		sb.unnamed[pkg.typeID] = len(sb.types) - 1
	}
}

// walkAggregate recursively stages everything beneath an aggregate decl.
func (ix *Indexer) walkAggregate(cursor *frontend.Cursor, sb *scoreboard) {
	sb.parents = append(sb.parents, cursor)

	cb := func(child, parent *frontend.Cursor) frontend.VisitResult {
		if ix.updateLocation(child) {
			sb.loc = ix.loc
		}

		ret := ix.aggregateChild(child, sb)

		// Entering a nested non-anonymous aggregate makes it the new member
		// parent; anonymous records are skipped so their fields attach to the
		// enclosing named type.
		if ret == frontend.Recurse && isAggregateCursor(child) && !child.IsAnonymousRecord() {
			sb.parents = append(sb.parents, child)
		}
		return ret
	}

	final := func(done *frontend.Cursor) {
		if top := sb.currentParent(); top == done {
			sb.parents = sb.parents[:len(sb.parents)-1]
		}
	}

	iterateChildren(cursor, cb, final)
}

func isAggregateCursor(cursor *frontend.Cursor) bool {
	switch cursor.Kind() {
	case frontend.StructDecl, frontend.UnionDecl, frontend.EnumDecl:
		return true
	}
	return false
}

// aggregateChild handles one node beneath an aggregate decl.
func (ix *Indexer) aggregateChild(cursor *frontend.Cursor, sb *scoreboard) frontend.VisitResult {
	switch cursor.Kind() {
	case frontend.EnumConstantDecl, frontend.EnumDecl:
		logging.Logger().Info("nested enums unimplemented")
		return frontend.Continue

	case frontend.StructDecl, frontend.UnionDecl:
		// Stage the decl here, then let recursion collect its members.
		ix.stageAggregate(cursor, sb)
		return frontend.Recurse

	case frontend.FieldDecl:
		parent := sb.currentParent()
		if parent == nil {
			panic("cfind: field with no parent aggregate")
		}
		ix.indexMember(cursor, parent, sb)
		return frontend.Continue
	}

	return frontend.Continue
}

// indexMember stages up to three records for one field: the member row, a
// var-kind typename when the field names an unnamed aggregate, and a
// decl-kind type use when the field's type is itself an aggregate.
func (ix *Indexer) indexMember(cursor, parent *frontend.Cursor, sb *scoreboard) {
	// The base sees through pointer and array declarators so self-references
	// like `struct s *next` resolve; 0 means primitive. Anonymous member
	// records have no type row, so fields of those types store a null base
	// too.
	base := cursor.UnderlyingAggregate()
	if sb.anonIDs[base] {
		base = 0
	}

	sb.members = append(sb.members, memberPkg{
		parent: parent.CanonicalType(),
		baseID: base,
		name:   cursor.Spelling(),
		loc:    sb.loc,
	})

	ix.maybeAdoptFieldName(cursor, sb)
	ix.stageMemberTypeUse(cursor, parent, sb)
}

// maybeAdoptFieldName names a staged unnamed aggregate after a field whose
// canonical type it is, as a var-kind typename. Tagless records nested in
// another record are classified anonymous and never enter the unnamed map, so
//
//	struct foo {
//		struct { ... } b;
//	};
//
// stages no typename for "b"; "b" is just a member of foo.
func (ix *Indexer) maybeAdoptFieldName(cursor *frontend.Cursor, sb *scoreboard) {
	id := cursor.CanonicalType()
	if id == 0 {
		return
	}
	idx, ok := sb.unnamed[id]
	if !ok {
		return
	}
	delete(sb.unnamed, id)

	pkg := &sb.types[idx]
	pkg.name = store.Typename{Kind: store.NameVar, Name: cursor.Spelling()}
	pkg.hasName = true
	pkg.loc[1] = sb.loc
}

// stageMemberTypeUse records a decl-kind use for aggregate-typed fields.
// Primitives aren't indexed.
func (ix *Indexer) stageMemberTypeUse(cursor, parent *frontend.Cursor, sb *scoreboard) {
	id := cursor.CanonicalType()
	if id == 0 || sb.anonIDs[id] {
		return
	}
	sb.uses = append(sb.uses, typeUsePkg{
		where:  parent.CanonicalType(),
		baseID: id,
		kind:   store.UseDecl,
		loc:    sb.loc,
	})
}
