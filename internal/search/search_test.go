package search

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cfind/internal/store"
)

// fixture builds a small index by hand:
//
//	file 1: /src/a.h
//	  type 1: struct foo   (direct "foo", typedef "foo_t")
//	    member "a" (primitive)
//	  type 2: union foo    (direct "foo"; same tag, different kind)
//	  type 3: enum color   (direct "color")
type fixture struct {
	db store.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := store.OpenMem()

	fileRef, err := db.AddFile("/src/a.h")
	require.NoError(t, err)
	require.Equal(t, store.FileRef(1), fileRef)

	loc := &store.Loc{File: fileRef, Line: 1, Column: 1}
	structFoo, err := db.TypeInsert(loc, &store.TypeEntry{Kind: store.KindStruct, Complete: true})
	require.NoError(t, err)
	require.NoError(t, db.TypenameInsert(loc,
		&store.Typename{Kind: store.NameDirect, BaseType: structFoo, Name: "foo"}))
	require.NoError(t, db.TypenameInsert(&store.Loc{File: fileRef, Line: 2, Column: 9},
		&store.Typename{Kind: store.NameTypedef, BaseType: structFoo, Name: "foo_t"}))
	require.NoError(t, db.MemberInsert(&store.Loc{File: fileRef, Line: 1, Column: 14},
		&store.Member{Parent: structFoo, BaseType: 0, Name: "a"}))

	unionFoo, err := db.TypeInsert(&store.Loc{File: fileRef, Line: 5, Column: 1},
		&store.TypeEntry{Kind: store.KindUnion, Complete: true})
	require.NoError(t, err)
	require.NoError(t, db.TypenameInsert(&store.Loc{File: fileRef, Line: 5, Column: 1},
		&store.Typename{Kind: store.NameDirect, BaseType: unionFoo, Name: "foo"}))

	enumColor, err := db.TypeInsert(&store.Loc{File: fileRef, Line: 9, Column: 1},
		&store.TypeEntry{Kind: store.KindEnum, Complete: true})
	require.NoError(t, err)
	require.NoError(t, db.TypenameInsert(&store.Loc{File: fileRef, Line: 9, Column: 1},
		&store.Typename{Kind: store.NameDirect, BaseType: enumColor, Name: "color"}))

	return &fixture{db: db}
}

func (f *fixture) run(t *testing.T, cmdStr string) (string, error) {
	t.Helper()
	cmd, err := Parse(cmdStr)
	require.NoError(t, err)
	var buf bytes.Buffer
	err = Run(f.db, &buf, cmd)
	return buf.String(), err
}

func TestRun_TypeDeclByID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	out, err := f.run(t, "td 1")
	require.NoError(t, err)
	assert.Equal(t, "1 struct at /src/a.h:1:1\n", out)
}

func TestRun_TypeDeclUnambiguousName(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	out, err := f.run(t, "td color")
	require.NoError(t, err)
	assert.Equal(t, "3 enum at /src/a.h:9:1\n", out)
}

func TestRun_TypeDeclElaboratedDisambiguates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	// "foo" alone names both struct 1 and union 2.
	out, err := f.run(t, "td struct foo")
	require.NoError(t, err)
	assert.Equal(t, "1 struct at /src/a.h:1:1\n", out)

	out, err = f.run(t, "td union foo")
	require.NoError(t, err)
	assert.Equal(t, "2 union at /src/a.h:5:1\n", out)
}

func TestRun_TypeDeclAmbiguous(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	out, err := f.run(t, "td foo")
	assert.ErrorIs(t, err, store.ErrAmbiguous)
	assert.Contains(t, out, "ambiguous typename\n")
	// All candidates get listed.
	assert.Contains(t, out, "1 'foo' at /src/a.h:1:1\n")
	assert.Contains(t, out, "2 'foo' at /src/a.h:5:1\n")
}

func TestRun_TypeDeclMissing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	out, err := f.run(t, "td nothere")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, "no matching type\n", out)
}

func TestRun_TypeDeclMissingID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	out, err := f.run(t, "td 99")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, "no type matching id 99\n", out)
}

func TestRun_TypeDeclTypedefResolvesToUnderlyingType(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	// typedecl answers with the underlying type's declaration site, not the
	// typedef's.
	out, err := f.run(t, "td foo_t")
	require.NoError(t, err)
	assert.Equal(t, "1 struct at /src/a.h:1:1\n", out)
}

func TestRun_TypenameWildcard(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	out, err := f.run(t, "tn foo%")
	require.NoError(t, err)
	assert.Equal(t,
		"1 'foo' at /src/a.h:1:1\n"+
			"1 'foo_t' at /src/a.h:2:9\n"+
			"2 'foo' at /src/a.h:5:1\n",
		out)
}

func TestRun_TypenameNoMatchesPrintsNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	out, err := f.run(t, "tn nothere")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRun_MemberDecl(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	out, err := f.run(t, "md struct foo a")
	require.NoError(t, err)
	assert.Equal(t, "1.'a', type 0, at /src/a.h:1:14\n", out)

	out, err = f.run(t, "md 1 a")
	require.NoError(t, err)
	assert.Equal(t, "1.'a', type 0, at /src/a.h:1:14\n", out)
}

func TestRun_MemberDeclMissing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	out, err := f.run(t, "md struct foo nothere")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, "no matching member\n", out)
}

func TestRun_UnknownFilePrintsNone(t *testing.T) {
	t.Parallel()
	db := store.OpenMem()
	// A type whose location references a file row that was never created.
	ref, err := db.TypeInsert(&store.Loc{File: 42, Line: 3, Column: 7},
		&store.TypeEntry{Kind: store.KindStruct, Complete: true})
	require.NoError(t, err)
	require.NoError(t, db.TypenameInsert(&store.Loc{File: 42, Line: 3, Column: 7},
		&store.Typename{Kind: store.NameDirect, BaseType: ref, Name: "ghost"}))

	cmd, err := Parse("td ghost")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, Run(db, &buf, cmd))
	assert.Equal(t, "1 struct at <none>:3:7\n", buf.String())
}
