// Package store persists index records: source files, user-defined types, the
// names those types go by, aggregate members, and miscellaneous type uses.
//
// Three backends satisfy the DB interface: a no-op sink for dry runs, an
// in-memory vector store for tests, and a sqlite database for production.
package store

import "errors"

// Error kinds shared by all backends. Callers branch with errors.Is.
var (
	// ErrNotFound is the expected-negative lookup result. It drives control
	// flow and is never worth logging as an error.
	ErrNotFound = errors.New("no matching entry")

	// ErrAmbiguous reports multiple non-equal matches where one was required.
	ErrAmbiguous = errors.New("ambiguous match")

	// ErrReadOnly reports a mutating call on a read-only store.
	ErrReadOnly = errors.New("store is read-only")

	// ErrInvalid reports malformed input: a bad argument, a bad query string.
	ErrInvalid = errors.New("invalid input")

	// ErrRange reports an integer outside its representable range.
	ErrRange = errors.New("value out of range")

	// ErrCorrupt reports a violated durable-store invariant, e.g. a column of
	// the wrong type or a dangling reference read back from disk.
	ErrCorrupt = errors.New("corrupt database entry")

	// ErrUnimplemented marks a reserved surface.
	ErrUnimplemented = errors.New("unimplemented")
)

// DB is the record store. All lookups distinguish ErrNotFound (expected,
// caller branches) from other errors (unexpected, caller surfaces).
type DB interface {
	// Close releases backend resources. For a read/write sqlite store it
	// commits the pending run transaction.
	Close() error

	// AddFile records a source-containing file and returns its reference.
	// The path is canonicalized first; re-adding a path that resolves to an
	// already-known file returns the existing reference without inserting.
	AddFile(path string) (FileRef, error)

	// TypenameLookup finds a typename matching loc's file and global scope,
	// the exact name bytes, and name's namespace (the tag namespace is
	// disjoint from the typedef/var namespace). Returns the referenced type.
	TypenameLookup(loc *Loc, name *Typename) (TypeRef, error)

	// TypeInsert stores a new type entry and returns its reference.
	TypeInsert(loc *Loc, entry *TypeEntry) (TypeRef, error)

	// TypenameInsert stores a name for an existing type.
	TypenameInsert(loc *Loc, entry *Typename) error

	MemberInsert(loc *Loc, entry *Member) error
	TypeUseInsert(loc *Loc, entry *TypeUse) error

	FileLookup(ref FileRef) (string, error)
	TypeLookup(ref TypeRef) (TypeEntry, Loc, error)

	// MemberLookup finds a member of parent by name. The name is matched
	// with LIKE semantics; wildcards are not escaped.
	MemberLookup(parent TypeRef, name string) (Member, Loc, error)

	// TypenameFind returns a lazy cursor over typenames whose name matches
	// (LIKE semantics). The cursor is forward-only, single-pass, and
	// non-restartable.
	TypenameFind(name string) (TypenameIter, error)
}

// TypenameIter iterates typename-search results.
//
//	it, err := db.TypenameFind("foo%")
//	...
//	for it.Next() {
//		entry, loc := it.Peek()
//		...
//	}
//	err = it.Err()
//	it.Close()
//
// Peek returns records owned by the iterator; they are overwritten by the
// next call to Next or Close. Callers must not mutate the store between Next
// calls.
type TypenameIter interface {
	Next() bool
	Peek() (*Typename, *Loc)
	Err() error
	Close() error
}

// OpenNop returns a store that discards every record. Lookups miss, inserts
// hand out fabricated references. Used for dry runs.
func OpenNop() DB {
	return &nopDB{}
}

// OpenMem returns an in-memory store. Used in tests so they need no sqlite
// fixture.
func OpenMem() DB {
	return newMemDB()
}

// OpenSQL opens a sqlite database at path; a read/write open creates it if
// needed, a read-only open requires it to exist. A read/write store begins a
// transaction immediately; it spans the whole indexing run and commits on
// Close.
func OpenSQL(path string, readOnly bool) (DB, error) {
	db, err := openSQL(path, readOnly)
	if err != nil {
		return nil, err
	}
	return db, nil
}
