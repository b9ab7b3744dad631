package cfind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cfind/internal/frontend"
	"github.com/jward/cfind/internal/store"
)

func newMemIndexer(t *testing.T) (*Indexer, store.DB) {
	t.Helper()
	db := store.OpenMem()
	ix, err := New(WithStore(db))
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix, db
}

func TestScoreboard_ResetKeepsNothing(t *testing.T) {
	t.Parallel()
	sb := newScoreboard()
	sb.types = append(sb.types, typePkg{typeID: 1})
	sb.members = append(sb.members, memberPkg{name: "x"})
	sb.uses = append(sb.uses, typeUsePkg{baseID: 1})
	sb.unnamed[1] = 0
	sb.anonIDs[2] = true

	sb.reset()
	assert.Empty(t, sb.types)
	assert.Empty(t, sb.members)
	assert.Empty(t, sb.uses)
	assert.Empty(t, sb.unnamed)
	assert.Empty(t, sb.anonIDs)
}

func TestScoreboard_CommitDropsUnnamedAndTheirMembers(t *testing.T) {
	t.Parallel()
	ix, db := newMemIndexer(t)
	sb := &ix.sb

	loc := store.Loc{File: 1, Line: 1, Column: 1}
	sb.types = append(sb.types, typePkg{
		typeID: frontend.TypeID(0x10),
		entry:  store.TypeEntry{Kind: store.KindStruct, Complete: true},
		loc:    [2]store.Loc{loc, loc},
	})
	sb.unnamed[frontend.TypeID(0x10)] = 0
	sb.members = append(sb.members, memberPkg{
		parent: frontend.TypeID(0x10), name: "ghost", loc: loc,
	})

	ix.commitScoreboard(sb)

	_, _, err := db.TypeLookup(1)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, ix.typeMap)
}

func TestScoreboard_CommitTranslatesMemberBase(t *testing.T) {
	t.Parallel()
	ix, db := newMemIndexer(t)
	sb := &ix.sb

	loc := store.Loc{File: 1, Line: 1, Column: 1}
	sb.types = append(sb.types, typePkg{
		typeID:  frontend.TypeID(0x10),
		entry:   store.TypeEntry{Kind: store.KindStruct, Complete: true},
		name:    store.Typename{Kind: store.NameDirect, Name: "foo"},
		hasName: true,
		loc:     [2]store.Loc{loc, loc},
	})
	sb.members = append(sb.members, memberPkg{
		parent: frontend.TypeID(0x10), baseID: frontend.TypeID(0x10), name: "self", loc: loc,
	})

	ix.commitScoreboard(sb)

	ref := ix.typeMap[frontend.TypeID(0x10)]
	require.Positive(t, int64(ref))

	member, _, err := db.MemberLookup(ref, "self")
	require.NoError(t, err)
	assert.Equal(t, ref, member.BaseType)
}

func TestScoreboard_AdoptNamePanicsOnNamedPrimary(t *testing.T) {
	t.Parallel()
	ix, _ := newMemIndexer(t)
	sb := &ix.sb
	sb.types = append(sb.types, typePkg{
		typeID:  frontend.TypeID(0x10),
		hasName: true,
		name:    store.Typename{Kind: store.NameDirect, Name: "foo"},
	})

	assert.Panics(t, func() {
		// Cursor kind doesn't matter; the unnamed-map check fires first.
		_ = ix.adoptName(&frontend.Cursor{}, sb)
	})
}

func TestTranslateBase(t *testing.T) {
	t.Parallel()
	newTypes := map[frontend.TypeID]store.TypeRef{1: 10}
	tuMap := map[frontend.TypeID]store.TypeRef{2: 20}

	ref, ok := translateBase(0, newTypes, tuMap)
	assert.True(t, ok)
	assert.Equal(t, store.TypeRef(0), ref)

	ref, ok = translateBase(1, newTypes, tuMap)
	assert.True(t, ok)
	assert.Equal(t, store.TypeRef(10), ref)

	ref, ok = translateBase(2, newTypes, tuMap)
	assert.True(t, ok)
	assert.Equal(t, store.TypeRef(20), ref)

	_, ok = translateBase(3, newTypes, tuMap)
	assert.False(t, ok)
}
