package search

import (
	"errors"
	"fmt"
	"io"

	"github.com/jward/cfind/internal/logging"
	"github.com/jward/cfind/internal/store"
)

// Run executes a parsed command against db, writing results to w.
//
// NotFound and Ambiguous outcomes print their own short user messages and
// still return the error so callers can pick an exit code without printing
// anything further.
func Run(db store.DB, w io.Writer, cmd *Command) error {
	switch cmd.Kind {
	case SearchTypeDecl:
		return execTypeSearch(db, w, &cmd.Type)
	case SearchTypename:
		return execTypenameSearch(db, w, &cmd.Typename)
	case SearchMemberDecl:
		return execMemberSearch(db, w, &cmd.Member)
	}
	return fmt.Errorf("bad command kind %d: %w", cmd.Kind, store.ErrInvalid)
}

func execTypeSearch(db store.DB, w io.Writer, query *TypeSearch) error {
	id, entry, loc, err := searchTypeCore(db, w, query)
	if err != nil {
		return err
	}
	printTypeEntry(w, id, &entry, &loc, fileName(db, loc.File))
	return nil
}

func execTypenameSearch(db store.DB, w io.Writer, name *NameSpec) error {
	return printAllTypenames(db, w, name)
}

func execMemberSearch(db store.DB, w io.Writer, query *MemberSearch) error {
	parent, _, _, err := searchTypeCore(db, w, &query.Base)
	if err != nil {
		return err
	}

	entry, loc, err := db.MemberLookup(parent, query.Member)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(w, "no matching member\n")
		}
		return fmt.Errorf("look up member %d.%q: %w", parent, query.Member, err)
	}

	printMemberEntry(w, parent, &entry, &loc, fileName(db, loc.File))
	return nil
}

// searchTypeCore resolves a type search to a durable id and its entry.
// Misses and ambiguity print user messages here; the candidates of an
// ambiguous name are listed in full.
func searchTypeCore(db store.DB, w io.Writer, query *TypeSearch) (store.TypeRef, store.TypeEntry, store.Loc, error) {
	var id store.TypeRef
	if query.IsID {
		id = query.ID
	} else {
		var err error
		id, err = findOneType(db, &query.Name)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				fmt.Fprintf(w, "no matching type\n")
			case errors.Is(err, store.ErrAmbiguous):
				fmt.Fprintf(w, "ambiguous typename\n")
				if perr := printAllTypenames(db, w, &query.Name); perr != nil {
					logging.Logger().Error("cannot list candidates", "err", perr)
				}
			}
			return 0, store.TypeEntry{}, store.Loc{}, err
		}
	}

	entry, loc, err := db.TypeLookup(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(w, "no type matching id %d\n", id)
		} else {
			logging.Logger().Error("type lookup failed", "id", int64(id), "err", err)
		}
		return 0, store.TypeEntry{}, store.Loc{}, err
	}

	return id, entry, loc, nil
}

// findOneType resolves a name to exactly one type id through the typename
// cursor. Multiple matching names are fine as long as they agree on the type;
// disagreement is ambiguity.
func findOneType(db store.DB, name *NameSpec) (store.TypeRef, error) {
	if name.Elab != ElabNone {
		return findElabType(db, name)
	}

	it, err := db.TypenameFind(name.Name)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	if !it.Next() {
		if err := it.Err(); err != nil {
			return 0, err
		}
		return 0, store.ErrNotFound
	}
	entry, _ := it.Peek()
	id := entry.BaseType

	for it.Next() {
		entry, _ := it.Peek()
		if entry.BaseType != id {
			return 0, fmt.Errorf("name %q: %w", name.Name, store.ErrAmbiguous)
		}
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	return id, nil
}

// findElabType resolves an elaborated name like `struct foo`. Only direct
// typenames participate, and the referenced type's kind must match the
// keyword; a same-named union doesn't satisfy `struct foo`.
func findElabType(db store.DB, name *NameSpec) (store.TypeRef, error) {
	it, err := db.TypenameFind(name.Name)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	var id store.TypeRef
	for it.Next() {
		entry, _ := it.Peek()

		if entry.Kind != store.NameDirect {
			continue
		}

		typeEntry, _, err := db.TypeLookup(entry.BaseType)
		if err != nil {
			logging.Corrupt("typename references missing type",
				"base_type", int64(entry.BaseType), "err", err)
			return 0, err
		}
		if typeEntry.Kind != name.Elab.TypeKind() {
			continue
		}

		if id == 0 {
			id = entry.BaseType
		}
		if entry.BaseType != id {
			return 0, fmt.Errorf("name %q: %w", name.Name, store.ErrAmbiguous)
		}
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, store.ErrNotFound
	}
	return id, nil
}

// printAllTypenames lists every typename matching the spec (LIKE semantics).
func printAllTypenames(db store.DB, w io.Writer, name *NameSpec) error {
	it, err := db.TypenameFind(name.Name)
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		entry, loc := it.Peek()
		printOneTypename(w, entry, loc, fileName(db, loc.File))
	}
	return it.Err()
}

// fileName resolves a file reference for display. "<none>" substitutes for
// anything unresolvable.
func fileName(db store.DB, ref store.FileRef) string {
	if ref == 0 {
		return "<none>"
	}
	path, err := db.FileLookup(ref)
	if err != nil || path == "" {
		return "<none>"
	}
	return path
}

func printTypeEntry(w io.Writer, id store.TypeRef, entry *store.TypeEntry, loc *store.Loc, file string) {
	fmt.Fprintf(w, "%d %s at %s:%d:%d\n", id, entry.Kind, file, loc.Line, loc.Column)
}

func printOneTypename(w io.Writer, name *store.Typename, loc *store.Loc, file string) {
	fmt.Fprintf(w, "%d '%s' at %s:%d:%d\n", name.BaseType, name.Name, file, loc.Line, loc.Column)
}

func printMemberEntry(w io.Writer, parent store.TypeRef, entry *store.Member, loc *store.Loc, file string) {
	fmt.Fprintf(w, "%d.'%s', type %d, at %s:%d:%d\n",
		parent, entry.Name, entry.BaseType, file, loc.Line, loc.Column)
}
