package store

import (
	"fmt"
	"path/filepath"
	"strings"
)

// memDB stores records in plain slices. References are the entry's index
// shifted by one so that 0 stays the null reference. Lookups are linear
// scans; the point of this backend is letting tests and the search layer run
// without a sqlite fixture.
type memDB struct {
	files []string

	types    []TypeEntry
	typeLocs []Loc

	typenames    []Typename
	typenameLocs []Loc

	members    []Member
	memberLocs []Loc

	typeUses    []TypeUse
	typeUseLocs []Loc
}

func newMemDB() *memDB {
	return &memDB{}
}

func (m *memDB) Close() error {
	return nil
}

// memCleanPath normalizes path enough for cross-TU file identity. Symlink
// resolution applies only when the file actually exists, so tests can insert
// fabricated paths.
func memCleanPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func (m *memDB) AddFile(path string) (FileRef, error) {
	cleaned := memCleanPath(path)
	for i, f := range m.files {
		if f == cleaned {
			return FileRef(i + 1), nil
		}
	}
	m.files = append(m.files, cleaned)
	return FileRef(len(m.files)), nil
}

func (m *memDB) TypenameLookup(loc *Loc, name *Typename) (TypeRef, error) {
	for i, entry := range m.typenames {
		if entry.Name != name.Name {
			continue
		}
		if m.typenameLocs[i].File != loc.File {
			continue
		}
		if m.typenameLocs[i].Scope != ScopeGlobal {
			continue
		}
		if !sameNamespace(entry.Kind, name.Kind) {
			continue
		}
		return entry.BaseType, nil
	}
	return 0, ErrNotFound
}

func (m *memDB) TypeInsert(loc *Loc, entry *TypeEntry) (TypeRef, error) {
	m.types = append(m.types, *entry)
	m.typeLocs = append(m.typeLocs, *loc)
	return TypeRef(len(m.types)), nil
}

func (m *memDB) TypenameInsert(loc *Loc, entry *Typename) error {
	m.typenames = append(m.typenames, *entry)
	m.typenameLocs = append(m.typenameLocs, *loc)
	return nil
}

func (m *memDB) MemberInsert(loc *Loc, entry *Member) error {
	m.members = append(m.members, *entry)
	m.memberLocs = append(m.memberLocs, *loc)
	return nil
}

func (m *memDB) TypeUseInsert(loc *Loc, entry *TypeUse) error {
	m.typeUses = append(m.typeUses, *entry)
	m.typeUseLocs = append(m.typeUseLocs, *loc)
	return nil
}

func (m *memDB) FileLookup(ref FileRef) (string, error) {
	i := int(ref) - 1
	if i < 0 || i >= len(m.files) {
		return "", ErrNotFound
	}
	return m.files[i], nil
}

func (m *memDB) TypeLookup(ref TypeRef) (TypeEntry, Loc, error) {
	i := int(ref) - 1
	if i < 0 || i >= len(m.types) {
		return TypeEntry{}, Loc{}, ErrNotFound
	}
	return m.types[i], m.typeLocs[i], nil
}

// likeMatch implements SQL LIKE semantics for the subset the member and
// typename queries rely on: '%' matches any run, '_' a single byte, matching
// is case-insensitive.
func likeMatch(pattern, s string) bool {
	return likeMatchFold(strings.ToLower(pattern), strings.ToLower(s))
}

func likeMatchFold(pattern, s string) bool {
	for {
		if pattern == "" {
			return s == ""
		}
		switch pattern[0] {
		case '%':
			for i := 0; i <= len(s); i++ {
				if likeMatchFold(pattern[1:], s[i:]) {
					return true
				}
			}
			return false
		case '_':
			if s == "" {
				return false
			}
		default:
			if s == "" || s[0] != pattern[0] {
				return false
			}
		}
		pattern = pattern[1:]
		s = s[1:]
	}
}

func (m *memDB) MemberLookup(parent TypeRef, name string) (Member, Loc, error) {
	if parent == 0 {
		return Member{}, Loc{}, fmt.Errorf("null parent ref: %w", ErrInvalid)
	}
	for i, entry := range m.members {
		if entry.Parent == parent && likeMatch(name, entry.Name) {
			return entry, m.memberLocs[i], nil
		}
	}
	return Member{}, Loc{}, ErrNotFound
}

func (m *memDB) TypenameFind(name string) (TypenameIter, error) {
	return &memTypenameIter{db: m, pattern: name, next: -1}, nil
}

// memTypenameIter scans the typename slice lazily. Peek hands out pointers to
// iterator-owned copies, overwritten on each advance, matching the sqlite
// cursor's lifetime contract.
type memTypenameIter struct {
	db      *memDB
	pattern string
	next    int
	cur     Typename
	curLoc  Loc
}

func (it *memTypenameIter) Next() bool {
	for i := it.next + 1; i < len(it.db.typenames); i++ {
		if likeMatch(it.pattern, it.db.typenames[i].Name) {
			it.next = i
			it.cur = it.db.typenames[i]
			it.curLoc = it.db.typenameLocs[i]
			return true
		}
	}
	it.next = len(it.db.typenames)
	return false
}

func (it *memTypenameIter) Peek() (*Typename, *Loc) {
	return &it.cur, &it.curLoc
}

func (it *memTypenameIter) Err() error {
	return nil
}

func (it *memTypenameIter) Close() error {
	return nil
}
