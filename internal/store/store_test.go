package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQL(t *testing.T) DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQL(dbPath, false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// writeTestFile creates a real file so AddFile's canonicalization can resolve
// it, and returns its path.
func writeTestFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("int x;\n"), 0o644))
	return path
}

// eachBackend runs a test against both durable-ish backends.
func eachBackend(t *testing.T, fn func(t *testing.T, db DB)) {
	t.Helper()
	t.Run("mem", func(t *testing.T) {
		t.Parallel()
		fn(t, OpenMem())
	})
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		fn(t, newTestSQL(t))
	})
}

func testLoc(file FileRef, line, col uint32) *Loc {
	return &Loc{File: file, Line: line, Column: col}
}

// =============================================================================
// Schema & lifecycle
// =============================================================================

func TestSQL_AllTablesExist(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQL(dbPath, false)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	raw, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer raw.Close()

	for _, table := range []string{
		"file_table", "type_table", "typename", "incomplete_type", "type_use", "members",
	} {
		var name string
		err := raw.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestSQL_WALMode(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQL(dbPath, false)
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.(*sqlDB).db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestSQL_OpenTwiceIdempotentSchema(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQL(dbPath, false)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenSQL(dbPath, false)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestSQL_CommitOnClose(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	src := writeTestFile(t, dir, "a.c")

	db, err := OpenSQL(dbPath, false)
	require.NoError(t, err)
	ref, err := db.AddFile(src)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// A fresh read-only handle must see the committed row.
	ro, err := OpenSQL(dbPath, true)
	require.NoError(t, err)
	defer ro.Close()
	path, err := ro.FileLookup(ref)
	require.NoError(t, err)
	assert.Contains(t, path, "a.c")
}

func TestRegistry_ForeignDescriptorPanics(t *testing.T) {
	t.Parallel()
	rogue := &queryDesc{query: "SELECT 1;"}
	assert.Panics(t, func() { assertRegistered(rogue) })
}

// =============================================================================
// AddFile
// =============================================================================

func TestAddFile_Idempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	db := newTestSQL(t)
	src := writeTestFile(t, dir, "a.c")

	ref1, err := db.AddFile(src)
	require.NoError(t, err)
	require.Positive(t, int64(ref1))

	ref2, err := db.AddFile(src)
	require.NoError(t, err)
	assert.Equal(t, ref1, ref2)
}

func TestAddFile_CanonicalizesSpellings(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	db := newTestSQL(t)
	src := writeTestFile(t, dir, "a.c")

	link := filepath.Join(dir, "link.c")
	require.NoError(t, os.Symlink(src, link))

	ref1, err := db.AddFile(src)
	require.NoError(t, err)

	// A dotted respelling and a symlink both resolve to the same row.
	ref2, err := db.AddFile(dir + "/./a.c")
	require.NoError(t, err)
	ref3, err := db.AddFile(link)
	require.NoError(t, err)

	assert.Equal(t, ref1, ref2)
	assert.Equal(t, ref1, ref3)
}

func TestAddFile_MissingFile(t *testing.T) {
	t.Parallel()
	db := newTestSQL(t)
	_, err := db.AddFile(filepath.Join(t.TempDir(), "nope.c"))
	assert.Error(t, err)
}

// =============================================================================
// Read-only stores
// =============================================================================

func TestReadOnly_MutationsRejected(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	src := writeTestFile(t, dir, "a.c")

	rw, err := OpenSQL(dbPath, false)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	ro, err := OpenSQL(dbPath, true)
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.AddFile(src)
	assert.ErrorIs(t, err, ErrReadOnly)

	_, err = ro.TypeInsert(testLoc(1, 1, 1), &TypeEntry{Kind: KindStruct, Complete: true})
	assert.ErrorIs(t, err, ErrReadOnly)

	err = ro.TypenameInsert(testLoc(1, 1, 1), &Typename{Kind: NameDirect, BaseType: 1, Name: "foo"})
	assert.ErrorIs(t, err, ErrReadOnly)

	err = ro.MemberInsert(testLoc(1, 1, 1), &Member{Parent: 1, Name: "a"})
	assert.ErrorIs(t, err, ErrReadOnly)

	err = ro.TypeUseInsert(testLoc(1, 1, 1), &TypeUse{BaseType: 1, Kind: UseDecl})
	assert.ErrorIs(t, err, ErrReadOnly)
}

// =============================================================================
// Types and typenames
// =============================================================================

func TestTypeInsertLookup_RoundTrip(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		loc := testLoc(3, 10, 2)
		entry := TypeEntry{Kind: KindUnion, Complete: true}

		ref, err := db.TypeInsert(loc, &entry)
		require.NoError(t, err)
		require.Positive(t, int64(ref))

		got, gotLoc, err := db.TypeLookup(ref)
		require.NoError(t, err)
		assert.Equal(t, entry, got)
		assert.Equal(t, *loc, gotLoc)
	})
}

func TestTypeLookup_Missing(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		_, _, err := db.TypeLookup(99)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTypenameLookup_MatchesFileAndName(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		loc := testLoc(1, 1, 1)
		ref, err := db.TypeInsert(loc, &TypeEntry{Kind: KindStruct, Complete: true})
		require.NoError(t, err)
		require.NoError(t, db.TypenameInsert(loc, &Typename{Kind: NameDirect, BaseType: ref, Name: "foo"}))

		got, err := db.TypenameLookup(loc, &Typename{Kind: NameDirect, Name: "foo"})
		require.NoError(t, err)
		assert.Equal(t, ref, got)

		// Same name, different file: no match.
		_, err = db.TypenameLookup(testLoc(2, 1, 1), &Typename{Kind: NameDirect, Name: "foo"})
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = db.TypenameLookup(loc, &Typename{Kind: NameDirect, Name: "bar"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTypenameLookup_NamespacesAreDisjoint(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		loc := testLoc(1, 1, 1)
		ref, err := db.TypeInsert(loc, &TypeEntry{Kind: KindStruct, Complete: true})
		require.NoError(t, err)

		// `struct list` and `typedef ... list` coexist; a tag lookup must not
		// see the typedef and vice versa.
		require.NoError(t, db.TypenameInsert(loc, &Typename{Kind: NameDirect, BaseType: ref, Name: "list"}))

		_, err = db.TypenameLookup(loc, &Typename{Kind: NameTypedef, Name: "list"})
		assert.ErrorIs(t, err, ErrNotFound)

		got, err := db.TypenameLookup(loc, &Typename{Kind: NameDirect, Name: "list"})
		require.NoError(t, err)
		assert.Equal(t, ref, got)

		// var and typedef names share the ordinary identifier namespace.
		ref2, err := db.TypeInsert(loc, &TypeEntry{Kind: KindUnion, Complete: true})
		require.NoError(t, err)
		require.NoError(t, db.TypenameInsert(loc, &Typename{Kind: NameVar, BaseType: ref2, Name: "inst"}))

		got, err = db.TypenameLookup(loc, &Typename{Kind: NameTypedef, Name: "inst"})
		require.NoError(t, err)
		assert.Equal(t, ref2, got)
	})
}

// =============================================================================
// Members
// =============================================================================

func TestMemberInsertLookup(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		loc := testLoc(1, 4, 2)
		parent, err := db.TypeInsert(testLoc(1, 1, 1), &TypeEntry{Kind: KindStruct, Complete: true})
		require.NoError(t, err)

		entry := Member{Parent: parent, BaseType: 0, Name: "count"}
		require.NoError(t, db.MemberInsert(loc, &entry))

		got, gotLoc, err := db.MemberLookup(parent, "count")
		require.NoError(t, err)
		assert.Equal(t, entry, got)
		assert.Equal(t, *loc, gotLoc)

		_, _, err = db.MemberLookup(parent, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemberLookup_LikeSemantics(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		parent, err := db.TypeInsert(testLoc(1, 1, 1), &TypeEntry{Kind: KindStruct, Complete: true})
		require.NoError(t, err)
		require.NoError(t, db.MemberInsert(testLoc(1, 2, 2), &Member{Parent: parent, Name: "refcount"}))

		got, _, err := db.MemberLookup(parent, "ref%")
		require.NoError(t, err)
		assert.Equal(t, "refcount", got.Name)
	})
}

// =============================================================================
// Typename search cursor
// =============================================================================

func TestTypenameFind_LazyCursor(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		loc := testLoc(1, 1, 1)
		ref1, err := db.TypeInsert(loc, &TypeEntry{Kind: KindStruct, Complete: true})
		require.NoError(t, err)
		ref2, err := db.TypeInsert(loc, &TypeEntry{Kind: KindEnum, Complete: true})
		require.NoError(t, err)

		require.NoError(t, db.TypenameInsert(testLoc(1, 2, 1), &Typename{Kind: NameDirect, BaseType: ref1, Name: "foo"}))
		require.NoError(t, db.TypenameInsert(testLoc(1, 3, 1), &Typename{Kind: NameTypedef, BaseType: ref1, Name: "foo_t"}))
		require.NoError(t, db.TypenameInsert(testLoc(1, 4, 1), &Typename{Kind: NameDirect, BaseType: ref2, Name: "bar"}))

		it, err := db.TypenameFind("foo%")
		require.NoError(t, err)
		defer it.Close()

		var names []string
		var bases []TypeRef
		for it.Next() {
			entry, entryLoc := it.Peek()
			names = append(names, entry.Name)
			bases = append(bases, entry.BaseType)
			assert.Equal(t, FileRef(1), entryLoc.File)
		}
		require.NoError(t, it.Err())

		assert.Equal(t, []string{"foo", "foo_t"}, names)
		assert.Equal(t, []TypeRef{ref1, ref1}, bases)
	})
}

func TestTypenameFind_PeekOverwrittenOnAdvance(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		loc := testLoc(1, 1, 1)
		ref, err := db.TypeInsert(loc, &TypeEntry{Kind: KindStruct, Complete: true})
		require.NoError(t, err)
		require.NoError(t, db.TypenameInsert(loc, &Typename{Kind: NameDirect, BaseType: ref, Name: "aa"}))
		require.NoError(t, db.TypenameInsert(loc, &Typename{Kind: NameDirect, BaseType: ref, Name: "ab"}))

		it, err := db.TypenameFind("a%")
		require.NoError(t, err)
		defer it.Close()

		require.True(t, it.Next())
		first, _ := it.Peek()
		assert.Equal(t, "aa", first.Name)

		require.True(t, it.Next())
		// The record behind the previous Peek pointer is overwritten.
		assert.Equal(t, "ab", first.Name)
		second, _ := it.Peek()
		assert.Same(t, first, second)

		assert.False(t, it.Next())
		require.NoError(t, it.Err())
	})
}

func TestTypenameFind_NoMatches(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		it, err := db.TypenameFind("nothing")
		require.NoError(t, err)
		defer it.Close()
		assert.False(t, it.Next())
		assert.NoError(t, it.Err())
	})
}

func TestTypenameFind_CorruptRowStopsIteration(t *testing.T) {
	t.Parallel()
	db := newTestSQL(t)

	// A typename whose base_type is 0 violates the schema invariants; the
	// cursor must refuse to hand it out.
	require.NoError(t, db.TypenameInsert(testLoc(1, 1, 1),
		&Typename{Kind: NameDirect, BaseType: 0, Name: "broken"}))

	it, err := db.TypenameFind("broken")
	require.NoError(t, err)
	defer it.Close()

	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), ErrCorrupt)
}

// =============================================================================
// Nop backend
// =============================================================================

func TestNop_FabricatesRefsAndDiscards(t *testing.T) {
	t.Parallel()
	db := OpenNop()

	ref1, err := db.AddFile("/whatever.c")
	require.NoError(t, err)
	ref2, err := db.AddFile("/whatever.c")
	require.NoError(t, err)
	assert.NotEqual(t, ref1, ref2)

	tref, err := db.TypeInsert(testLoc(1, 1, 1), &TypeEntry{Kind: KindStruct, Complete: true})
	require.NoError(t, err)
	require.Positive(t, int64(tref))

	_, _, err = db.TypeLookup(tref)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.TypenameFind("x")
	assert.ErrorIs(t, err, ErrUnimplemented)
}

// =============================================================================
// LIKE matcher (mem backend)
// =============================================================================

func TestLikeMatch(t *testing.T) {
	t.Parallel()
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"foo", "foo", true},
		{"foo", "FOO", true},
		{"foo", "foobar", false},
		{"foo%", "foobar", true},
		{"%bar", "foobar", true},
		{"f_o", "foo", true},
		{"f_o", "fo", false},
		{"%", "", true},
		{"", "x", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, likeMatch(tc.pattern, tc.s), "pattern %q against %q", tc.pattern, tc.s)
	}
}

func TestErrorKindsAreDistinct(t *testing.T) {
	t.Parallel()
	kinds := []error{ErrNotFound, ErrAmbiguous, ErrReadOnly, ErrInvalid, ErrRange, ErrCorrupt, ErrUnimplemented}
	for i, a := range kinds {
		for j, b := range kinds {
			if i != j {
				assert.False(t, errors.Is(a, b))
			}
		}
	}
}
