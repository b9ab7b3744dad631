package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/cfind/internal/logging"
)

// stmtCacheSize comfortably exceeds the registry, so statements are prepared
// once per run in practice.
const stmtCacheSize = 16

// sqlDB is the durable backend. A read/write store runs inside a single
// transaction spanning the whole indexing run; Close commits it.
type sqlDB struct {
	db       *sql.DB
	tx       *sql.Tx
	readOnly bool
	stmts    *lru.Cache[*queryDesc, *sql.Stmt]
}

func openSQL(path string, readOnly bool) (*sqlDB, error) {
	// WAL mode is a write; only the read/write open configures it.
	dsn := fmt.Sprintf("file:%s?mode=rwc&cache=private&_journal_mode=WAL&_busy_timeout=30000", path)
	if readOnly {
		dsn = fmt.Sprintf("file:%s?mode=ro&cache=private&_busy_timeout=30000", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &sqlDB{db: db, readOnly: readOnly}

	s.stmts, err = lru.NewWithEvict(stmtCacheSize, func(_ *queryDesc, stmt *sql.Stmt) {
		stmt.Close()
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("statement cache: %w", err)
	}

	if !readOnly {
		for _, ddl := range createTableStmts {
			if _, err := db.Exec(ddl); err != nil {
				db.Close()
				return nil, fmt.Errorf("create tables: %w", err)
			}
		}
		// One transaction encloses the entire indexing run.
		s.tx, err = db.Begin()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("begin run transaction: %w", err)
		}
	}

	return s, nil
}

func (s *sqlDB) Close() error {
	s.stmts.Purge()
	if s.tx != nil {
		if err := s.tx.Commit(); err != nil {
			s.db.Close()
			return fmt.Errorf("commit run transaction: %w", err)
		}
		s.tx = nil
	}
	return s.db.Close()
}

// prepare returns the cached prepared statement for desc, preparing it on
// first use. desc must be a registry member.
func (s *sqlDB) prepare(desc *queryDesc) (*sql.Stmt, error) {
	assertRegistered(desc)

	if stmt, ok := s.stmts.Get(desc); ok {
		return stmt, nil
	}

	var stmt *sql.Stmt
	var err error
	if s.tx != nil {
		stmt, err = s.tx.Prepare(desc.query)
	} else {
		stmt, err = s.db.Prepare(desc.query)
	}
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	s.stmts.Add(desc, stmt)
	return stmt, nil
}

// execDesc binds vals to desc and executes it, returning the new rowid.
func (s *sqlDB) execDesc(desc *queryDesc, vals []colVal) (int64, error) {
	stmt, err := s.prepare(desc)
	if err != nil {
		return 0, err
	}
	args, err := bindArgs(desc, vals)
	if err != nil {
		return 0, err
	}
	res, err := stmt.Exec(args...)
	if err != nil {
		return 0, fmt.Errorf("exec statement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// queryOneDesc runs desc expecting at most one row. A miss is ErrNotFound.
func (s *sqlDB) queryOneDesc(desc *lookupDesc, vals []colVal) ([]colVal, error) {
	stmt, err := s.prepare(&desc.queryDesc)
	if err != nil {
		return nil, err
	}
	args, err := bindArgs(&desc.queryDesc, vals)
	if err != nil {
		return nil, err
	}
	out, err := scanRow(stmt.QueryRow(args...), desc.outputs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return out, err
}

// canonicalPath resolves path to its absolute form with symlinks resolved and
// `.`/`//` collapsed, so distinct spellings of one file map to one row. The
// resolved path must exist.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("stat cleaned path: %w", err)
	}
	return resolved, nil
}

func (s *sqlDB) AddFile(path string) (FileRef, error) {
	if s.readOnly {
		return 0, ErrReadOnly
	}

	cleaned, err := canonicalPath(path)
	if err != nil {
		return 0, err
	}

	// Reinserting the same file is not an error; hand back the old row.
	out, err := s.queryOneDesc(&fileLookupQuery, []colVal{strVal(cleaned)})
	if err == nil {
		return FileRef(out[0].u64), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("look up file %q: %w", cleaned, err)
	}

	id, err := s.execDesc(&fileInsertQuery, []colVal{nullVal(), strVal(cleaned)})
	if err != nil {
		return 0, fmt.Errorf("insert file %q: %w", cleaned, err)
	}
	return FileRef(id), nil
}

// sameNamespace reports whether two name kinds can collide. Tag names
// (`struct foo`) live apart from ordinary identifiers (typedefs, variables).
func sameNamespace(a, b NameKind) bool {
	return (a == NameDirect) == (b == NameDirect)
}

func (s *sqlDB) TypenameLookup(loc *Loc, name *Typename) (TypeRef, error) {
	if name.Name == "" {
		return 0, fmt.Errorf("empty typename: %w", ErrInvalid)
	}

	desc := &typenameLookupQuery
	stmt, err := s.prepare(&desc.queryDesc)
	if err != nil {
		return 0, err
	}
	args, err := bindArgs(&desc.queryDesc, []colVal{
		refVal(loc.File), strVal(name.Name),
	})
	if err != nil {
		return 0, err
	}

	rows, err := stmt.Query(args...)
	if err != nil {
		return 0, fmt.Errorf("query typename: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		out, err := scanRow(rows, desc.outputs)
		if err != nil {
			return 0, err
		}
		if sameNamespace(NameKind(out[1].u64), name.Kind) {
			return TypeRef(out[0].u64), nil
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("scan typenames: %w", err)
	}
	return 0, ErrNotFound
}

func (s *sqlDB) TypeInsert(loc *Loc, entry *TypeEntry) (TypeRef, error) {
	if s.readOnly {
		return 0, ErrReadOnly
	}
	complete := uint32(0)
	if entry.Complete {
		complete = 1
	}
	id, err := s.execDesc(&typeInsertQuery, []colVal{
		nullVal(), u32Val(uint32(entry.Kind)), u32Val(complete),
		refVal(loc.File), refVal(loc.Func),
		u32Val(loc.Scope), u32Val(loc.Line), u32Val(loc.Column),
	})
	if err != nil {
		return 0, fmt.Errorf("insert type: %w", err)
	}
	return TypeRef(id), nil
}

func (s *sqlDB) TypenameInsert(loc *Loc, entry *Typename) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.execDesc(&typenameInsertQuery, []colVal{
		strVal(entry.Name), u32Val(uint32(entry.Kind)),
		u32Val(uint32(entry.BaseType)),
		refVal(loc.File), refVal(loc.Func),
		u32Val(loc.Scope), u32Val(loc.Line), u32Val(loc.Column),
	})
	if err != nil {
		return fmt.Errorf("insert typename %q: %w", entry.Name, err)
	}
	return nil
}

func (s *sqlDB) MemberInsert(loc *Loc, entry *Member) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.execDesc(&memberInsertQuery, []colVal{
		refVal(entry.Parent), refVal(entry.BaseType), strVal(entry.Name),
		refVal(loc.File), u32Val(loc.Line), u32Val(loc.Column),
	})
	if err != nil {
		return fmt.Errorf("insert member %q: %w", entry.Name, err)
	}
	return nil
}

func (s *sqlDB) TypeUseInsert(loc *Loc, entry *TypeUse) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.execDesc(&typeUseInsertQuery, []colVal{
		refVal(entry.BaseType), u32Val(uint32(entry.Kind)),
		refVal(loc.File), u32Val(loc.Line), u32Val(loc.Column),
	})
	if err != nil {
		return fmt.Errorf("insert type use: %w", err)
	}
	return nil
}

func (s *sqlDB) FileLookup(ref FileRef) (string, error) {
	if ref == 0 {
		return "", fmt.Errorf("null file ref: %w", ErrInvalid)
	}
	out, err := s.queryOneDesc(&fileIDLookupQuery, []colVal{refVal(ref)})
	if err != nil {
		return "", err
	}
	return out[0].str, nil
}

func (s *sqlDB) TypeLookup(ref TypeRef) (TypeEntry, Loc, error) {
	if ref == 0 {
		return TypeEntry{}, Loc{}, fmt.Errorf("null type ref: %w", ErrInvalid)
	}
	out, err := s.queryOneDesc(&typeLookupQuery, []colVal{refVal(ref)})
	if err != nil {
		return TypeEntry{}, Loc{}, err
	}

	entry := TypeEntry{
		Kind:     TypeKind(out[1].u64),
		Complete: out[2].u64 != 0,
	}
	if !entry.Kind.valid() {
		logging.Corrupt("type row with bad kind", "typeid", int64(ref), "kind", out[1].u64)
		return TypeEntry{}, Loc{}, fmt.Errorf("type %d kind %d: %w", ref, out[1].u64, ErrCorrupt)
	}
	loc := Loc{
		File:   FileRef(out[3].u64),
		Func:   FuncRef(out[4].u64),
		Scope:  uint32(out[5].u64),
		Line:   uint32(out[6].u64),
		Column: uint32(out[7].u64),
	}
	return entry, loc, nil
}

func (s *sqlDB) MemberLookup(parent TypeRef, name string) (Member, Loc, error) {
	if parent == 0 {
		return Member{}, Loc{}, fmt.Errorf("null parent ref: %w", ErrInvalid)
	}
	out, err := s.queryOneDesc(&memberLookupQuery, []colVal{
		refVal(parent), strVal(name),
	})
	if err != nil {
		return Member{}, Loc{}, err
	}

	entry := Member{
		Parent:   TypeRef(out[0].u64),
		BaseType: TypeRef(out[1].u64),
		Name:     out[2].str,
	}
	loc := Loc{
		File:   FileRef(out[3].u64),
		Line:   uint32(out[4].u64),
		Column: uint32(out[5].u64),
	}
	return entry, loc, nil
}

func (s *sqlDB) TypenameFind(name string) (TypenameIter, error) {
	desc := &typenameFindQuery
	stmt, err := s.prepare(&desc.queryDesc)
	if err != nil {
		return nil, err
	}
	args, err := bindArgs(&desc.queryDesc, []colVal{strVal(name)})
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, fmt.Errorf("query typenames: %w", err)
	}
	return &sqlTypenameIter{rows: rows, outputs: desc.outputs}, nil
}

// sqlTypenameIter walks typename-find results lazily, one row per Next. The
// record returned by Peek is overwritten on every advance.
type sqlTypenameIter struct {
	rows    *sql.Rows
	outputs []colKind
	cur     Typename
	curLoc  Loc
	err     error
}

func (it *sqlTypenameIter) Next() bool {
	if it.err != nil || !it.rows.Next() {
		if it.err == nil {
			it.err = it.rows.Err()
		}
		return false
	}

	out, err := scanRow(it.rows, it.outputs)
	if err != nil {
		it.err = err
		return false
	}

	it.cur = Typename{
		Name:     out[0].str,
		Kind:     NameKind(out[1].u64),
		BaseType: TypeRef(out[2].u64),
	}
	it.curLoc = Loc{
		File:   FileRef(out[3].u64),
		Func:   FuncRef(out[4].u64),
		Scope:  uint32(out[5].u64),
		Line:   uint32(out[6].u64),
		Column: uint32(out[7].u64),
	}

	// A row violating the typename invariants ends the iteration.
	if !it.cur.Kind.valid() || it.cur.BaseType <= 0 || it.cur.Name == "" {
		logging.Corrupt("deserialized corrupt typename",
			"name", it.cur.Name, "kind", uint32(it.cur.Kind),
			"base_type", int64(it.cur.BaseType))
		it.err = fmt.Errorf("typename row: %w", ErrCorrupt)
		return false
	}
	return true
}

func (it *sqlTypenameIter) Peek() (*Typename, *Loc) {
	return &it.cur, &it.curLoc
}

func (it *sqlTypenameIter) Err() error {
	if errors.Is(it.err, sql.ErrNoRows) {
		return nil
	}
	return it.err
}

func (it *sqlTypenameIter) Close() error {
	return it.rows.Close()
}
