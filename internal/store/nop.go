package store

import "fmt"

// nopDB discards every record. Inserts hand out fabricated references so the
// indexer's maps stay coherent during a dry run; lookups always miss.
type nopDB struct {
	fileID FileRef
	typeID TypeRef
}

func (n *nopDB) Close() error {
	return nil
}

func (n *nopDB) AddFile(path string) (FileRef, error) {
	n.fileID++
	return n.fileID, nil
}

func (n *nopDB) TypenameLookup(loc *Loc, name *Typename) (TypeRef, error) {
	return 0, ErrNotFound
}

func (n *nopDB) TypeInsert(loc *Loc, entry *TypeEntry) (TypeRef, error) {
	n.typeID++
	return n.typeID, nil
}

func (n *nopDB) TypenameInsert(loc *Loc, entry *Typename) error {
	return nil
}

func (n *nopDB) MemberInsert(loc *Loc, entry *Member) error {
	return nil
}

func (n *nopDB) TypeUseInsert(loc *Loc, entry *TypeUse) error {
	return nil
}

func (n *nopDB) FileLookup(ref FileRef) (string, error) {
	return "", ErrNotFound
}

func (n *nopDB) TypeLookup(ref TypeRef) (TypeEntry, Loc, error) {
	return TypeEntry{}, Loc{}, ErrNotFound
}

func (n *nopDB) MemberLookup(parent TypeRef, name string) (Member, Loc, error) {
	return Member{}, Loc{}, ErrNotFound
}

func (n *nopDB) TypenameFind(name string) (TypenameIter, error) {
	return nil, fmt.Errorf("nop store has no search cursor: %w", ErrUnimplemented)
}
