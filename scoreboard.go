package cfind

import (
	"errors"
	"fmt"

	"github.com/jward/cfind/internal/frontend"
	"github.com/jward/cfind/internal/logging"
	"github.com/jward/cfind/internal/store"
)

// typePkg is all database entries for one staged aggregate glued together:
// the type row, its optional primary typename, and a source location for
// each. typeID is the aggregate's opaque in-unit identity.
type typePkg struct {
	typeID  frontend.TypeID
	entry   store.TypeEntry
	name    store.Typename
	hasName bool
	loc     [2]store.Loc // [0] for entry, [1] for name
}

// memberPkg stages a member row. The parent and base types are opaque ids
// here; they translate to durable references at commit time.
type memberPkg struct {
	parent frontend.TypeID
	baseID frontend.TypeID
	name   string
	loc    store.Loc
}

// typeUsePkg stages a type use. where is the enclosing aggregate; it exists
// to suppress duplicated uses when a header is reparsed in a later
// translation unit:
//
//	struct foo {
//		struct bar b;
//	};
//
// should only ever emit one `struct bar` use no matter how many units index
// the header.
type typeUsePkg struct {
	where  frontend.TypeID
	baseID frontend.TypeID
	kind   store.UseKind
	loc    store.Loc
}

// scoreboard is the state built up while traversing one top-level aggregate.
//
// Record types can't simply be inserted as they're encountered: whether an
// unnamed aggregate gets persisted at all depends on a declarator that shows
// up only after its whole subtree has been walked, and entries to discard
// interleave with entries to keep. So every record under a top-level
// aggregate is staged here and the set is committed in pieces afterwards.
type scoreboard struct {
	// parents tracks the nearest named ancestor for attributing members.
	// Anonymous aggregates are never pushed, so their fields land on the
	// enclosing named type.
	parents []*frontend.Cursor

	loc store.Loc

	types   []typePkg
	members []memberPkg
	uses    []typeUsePkg

	// unnamed maps an aggregate with no tag to its index in types. Entries
	// leave the map when a declarator or member name supplies a name; whatever
	// remains at commit time is dropped.
	unnamed map[frontend.TypeID]int

	// anonIDs remembers anonymous member records seen during the walk. They
	// have no type row, so fields of those types store a null base.
	anonIDs map[frontend.TypeID]bool
}

func newScoreboard() scoreboard {
	return scoreboard{
		unnamed: make(map[frontend.TypeID]int),
		anonIDs: make(map[frontend.TypeID]bool),
	}
}

// reset makes the scoreboard look new while keeping slice capacity for reuse.
func (sb *scoreboard) reset() {
	sb.parents = sb.parents[:0]
	sb.types = sb.types[:0]
	sb.members = sb.members[:0]
	sb.uses = sb.uses[:0]
	clear(sb.unnamed)
	clear(sb.anonIDs)
}

func (sb *scoreboard) currentParent() *frontend.Cursor {
	if len(sb.parents) == 0 {
		return nil
	}
	return sb.parents[len(sb.parents)-1]
}

// adoptName installs cursor's spelling as the primary aggregate's typename.
// Called for the typedef or variable declarator following an unnamed
// top-level aggregate.
func (ix *Indexer) adoptName(cursor *frontend.Cursor, sb *scoreboard) error {
	if len(sb.types) == 0 {
		panic("cfind: adoptName on empty scoreboard")
	}

	// The primary aggregate is always at index 0.
	pkg := &sb.types[0]
	if idx, ok := sb.unnamed[pkg.typeID]; !ok || idx != 0 {
		panic(fmt.Sprintf("cfind: adding name to already-named aggregate %#x", pkg.typeID))
	}

	var kind store.NameKind
	switch cursor.Kind() {
	case frontend.VarDecl:
		kind = store.NameVar
	case frontend.TypedefDecl:
		kind = store.NameTypedef
	default:
		return fmt.Errorf("cursor kind %s cannot name an aggregate: %w",
			cursor.Kind(), store.ErrInvalid)
	}

	pkg.name = store.Typename{Kind: kind, Name: cursor.Spelling()}
	pkg.hasName = true
	pkg.loc[1] = ix.loc

	delete(sb.unnamed, pkg.typeID)
	return nil
}

// commitScoreboard serializes the staged set. Types go first so members and
// uses can translate their references; a commit-local new-types map keeps
// reparsed duplicates from re-emitting their subtrees:
//
//   - a staged type whose typename already exists durably inserts nothing;
//     its mapping goes to the unit-wide map only
//   - members translate their parent through the new-types map alone, so
//     members of a duplicate aggregate drop out
//   - uses require their enclosing aggregate in the new-types map for the
//     same reason
//
// Afterwards the new-types map merges into the unit-wide map.
func (ix *Indexer) commitScoreboard(sb *scoreboard) {
	logging.Logger().Debug("commit scoreboard",
		"types", len(sb.types), "members", len(sb.members),
		"uses", len(sb.uses), "nameless", len(sb.unnamed))

	newTypes := make(map[frontend.TypeID]store.TypeRef)

	for i := range sb.types {
		pkg := &sb.types[i]
		if pkg.typeID == 0 {
			panic("cfind: staged type with null id")
		}
		if _, ok := sb.unnamed[pkg.typeID]; ok {
			logging.Logger().Warn("aggregate has no name, dropping",
				"type", fmt.Sprintf("%#x", pkg.typeID))
			continue
		}
		if err := ix.commitOneType(pkg, newTypes); err != nil {
			logging.Logger().Error("cannot persist type",
				"type", fmt.Sprintf("%#x", pkg.typeID), "err", err)
		}
	}

	for i := range sb.members {
		pkg := &sb.members[i]

		// Parent translates through the new-types map only: a miss means the
		// enclosing aggregate was unnamed or a duplicate.
		parent, ok := newTypes[pkg.parent]
		if !ok {
			continue
		}
		base, ok := translateBase(pkg.baseID, newTypes, ix.typeMap)
		if !ok {
			logging.Logger().Error("no entry for member base type",
				"member", pkg.name, "base", fmt.Sprintf("%#x", pkg.baseID))
			continue
		}

		entry := store.Member{Parent: parent, BaseType: base, Name: pkg.name}
		if err := ix.db.MemberInsert(&pkg.loc, &entry); err != nil {
			logging.Logger().Error("cannot persist member", "member", pkg.name, "err", err)
		}
	}

	for i := range sb.uses {
		pkg := &sb.uses[i]

		// The enclosing aggregate must be new; uses inside duplicates are
		// suppressed wholesale.
		if _, ok := newTypes[pkg.where]; !ok {
			continue
		}
		base, ok := translateBase(pkg.baseID, newTypes, ix.typeMap)
		if !ok || base == 0 {
			logging.Logger().Error("no entry for used type",
				"base", fmt.Sprintf("%#x", pkg.baseID))
			continue
		}

		entry := store.TypeUse{BaseType: base, Kind: pkg.kind}
		if err := ix.db.TypeUseInsert(&pkg.loc, &entry); err != nil {
			logging.Logger().Error("cannot persist type use", "err", err)
		}
	}

	for id, ref := range newTypes {
		ix.typeMap[id] = ref
	}
}

// commitOneType persists one staged aggregate unless an equal typename
// already exists, in which case the preexisting durable id is reused.
func (ix *Indexer) commitOneType(pkg *typePkg, newTypes map[frontend.TypeID]store.TypeRef) error {
	if !pkg.hasName {
		panic("cfind: committing type without a name")
	}

	ref, err := ix.db.TypenameLookup(&pkg.loc[1], &pkg.name)
	if err == nil {
		// Preexists; remember the mapping but insert nothing.
		ix.typeMap[pkg.typeID] = ref
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		// Can't tell whether the aggregate preexists.
		return fmt.Errorf("probe typename %q: %w", pkg.name.Name, err)
	}

	ref, err = ix.db.TypeInsert(&pkg.loc[0], &pkg.entry)
	if err != nil {
		return fmt.Errorf("insert type: %w", err)
	}

	pkg.name.BaseType = ref
	if err := ix.db.TypenameInsert(&pkg.loc[1], &pkg.name); err != nil {
		return fmt.Errorf("insert primary typename %q: %w", pkg.name.Name, err)
	}

	newTypes[pkg.typeID] = ref
	return nil
}

// translateBase maps an opaque base type to a durable reference using the
// commit-local map first, then the unit-wide map. Zero means a primitive and
// translates to the null reference.
func translateBase(id frontend.TypeID, newTypes, tuMap map[frontend.TypeID]store.TypeRef) (store.TypeRef, bool) {
	if id == 0 {
		return 0, true
	}
	if ref, ok := newTypes[id]; ok {
		return ref, true
	}
	if ref, ok := tuMap[id]; ok {
		return ref, true
	}
	return 0, false
}
