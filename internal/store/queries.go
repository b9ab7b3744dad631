package store

// Every SQL string the sqlite backend executes is declared here, together
// with the typed shape of its bind parameters and, for selects, of its result
// columns. Statements are prepared only through this registry; preparing a
// descriptor that is not a registry member is a bug and panics. That keeps
// the set of query strings fixed at build time and makes ad-hoc SQL
// construction impossible to sneak in.
//
// Changing a descriptor requires matching updates to the bind/scan call
// sites; bind and output indices are positional.

// colKind is the declared type of one bind parameter or result column.
type colKind uint8

const (
	colNull colKind = iota + 1
	colUint32
	colUint64
	colStr
)

// queryDesc describes a non-select statement: its SQL and bind columns.
type queryDesc struct {
	query string
	binds []colKind
}

// lookupDesc describes a select: bind columns plus output columns.
type lookupDesc struct {
	queryDesc
	outputs []colKind
}

// Table DDL. Column layouts follow the schema documented in the package:
// file_table is the central table for source-containing files; type_table for
// user-defined types (names live in typename, not here); typename maps names
// onto type rows; incomplete_type is reserved; type_use and members record
// uses and fields.
const (
	createFileTable = `CREATE TABLE IF NOT EXISTS file_table (
	id INTEGER PRIMARY KEY ASC,
	path STRING);`

	createTypeTable = `CREATE TABLE IF NOT EXISTS type_table (
	typeid INTEGER PRIMARY KEY ASC,
	kind INT,
	complete INT,
	file INT,
	func INT,
	scope INT,
	line INT,
	column INT);`

	createTypenameTable = `CREATE TABLE IF NOT EXISTS typename (
	name STRING,
	kind INT,
	base_type INT,
	file INT,
	func INT,
	scope INT,
	line INT,
	column INT);`

	createIncompleteTypeTable = `CREATE TABLE IF NOT EXISTS incomplete_type (
	name STRING,
	kind INT,
	base_type INT,
	file INT,
	line INT,
	column INT);`

	createTypeUseTable = `CREATE TABLE IF NOT EXISTS type_use (
	base_type INT,
	kind INT,
	file INT,
	line INT,
	column INT);`

	createMemberTable = `CREATE TABLE IF NOT EXISTS members (
	parent INT,
	base_type INT,
	name STRING,
	file INT,
	line INT,
	column INT);`
)

var createTableStmts = []string{
	createFileTable,
	createTypeTable,
	createTypenameTable,
	createIncompleteTypeTable,
	createTypeUseTable,
	createMemberTable,
}

var fileLookupQuery = lookupDesc{
	queryDesc: queryDesc{
		query: `SELECT id FROM file_table WHERE ((path == ?1));`,
		binds: []colKind{colStr},
	},
	outputs: []colKind{colUint64},
}

var fileIDLookupQuery = lookupDesc{
	queryDesc: queryDesc{
		query: `SELECT path FROM file_table WHERE ((id == ?1));`,
		binds: []colKind{colUint64},
	},
	outputs: []colKind{colStr},
}

var fileInsertQuery = queryDesc{
	query: `INSERT INTO file_table (id, path) VALUES (?1, ?2);`,
	binds: []colKind{colNull, colStr},
}

var typeLookupQuery = lookupDesc{
	queryDesc: queryDesc{
		query: `SELECT typeid, kind, complete, file, func, scope, line, column
	FROM type_table WHERE (typeid == ?1);`,
		binds: []colKind{colUint64},
	},
	outputs: []colKind{
		colUint64, colUint32, colUint32, colUint64,
		colUint64, colUint32, colUint32, colUint32,
	},
}

var typeInsertQuery = queryDesc{
	query: `INSERT INTO type_table (typeid, kind, complete, file, func, scope, line, column)
	VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8);`,
	binds: []colKind{
		colNull, colUint32, colUint32, colUint64,
		colUint64, colUint32, colUint32, colUint32,
	},
}

// Typename lookups are hard-coded to global scope; nested-scope lookup
// behavior is undefined.
var typenameLookupQuery = lookupDesc{
	queryDesc: queryDesc{
		query: `SELECT base_type, kind FROM typename WHERE (
	(file == ?1) AND (name == ?2) AND (scope == 0));`,
		binds: []colKind{colUint64, colStr},
	},
	outputs: []colKind{colUint64, colUint32},
}

var typenameFindQuery = lookupDesc{
	queryDesc: queryDesc{
		query: `SELECT name, kind, base_type, file, func, scope, line, column
	FROM typename WHERE ((name LIKE ?1));`,
		binds: []colKind{colStr},
	},
	outputs: []colKind{
		colStr, colUint32, colUint64, colUint64,
		colUint64, colUint32, colUint32, colUint32,
	},
}

var typenameInsertQuery = queryDesc{
	query: `INSERT INTO typename (name, kind, base_type, file, func, scope, line, column)
	VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8);`,
	binds: []colKind{
		colStr, colUint32, colUint32, colUint64,
		colUint64, colUint32, colUint32, colUint32,
	},
}

var typeUseInsertQuery = queryDesc{
	query: `INSERT INTO type_use (base_type, kind, file, line, column)
	VALUES (?1, ?2, ?3, ?4, ?5);`,
	binds: []colKind{colUint64, colUint32, colUint64, colUint32, colUint32},
}

var memberInsertQuery = queryDesc{
	query: `INSERT INTO members (parent, base_type, name, file, line, column)
	VALUES (?1, ?2, ?3, ?4, ?5, ?6);`,
	binds: []colKind{colUint64, colUint64, colStr, colUint64, colUint32, colUint32},
}

var memberLookupQuery = lookupDesc{
	queryDesc: queryDesc{
		query: `SELECT parent, base_type, name, file, line, column
	FROM members WHERE ((parent == ?1) AND (name LIKE ?2));`,
		binds: []colKind{colUint64, colStr},
	},
	outputs: []colKind{
		colUint64, colUint64, colStr, colUint64, colUint32, colUint32,
	},
}

// queryRegistry enumerates every descriptor above. assertRegistered checks
// membership by pointer identity before a statement is prepared.
var queryRegistry = []*queryDesc{
	&fileLookupQuery.queryDesc,
	&fileIDLookupQuery.queryDesc,
	&fileInsertQuery,
	&typeLookupQuery.queryDesc,
	&typeInsertQuery,
	&typenameLookupQuery.queryDesc,
	&typenameFindQuery.queryDesc,
	&typenameInsertQuery,
	&typeUseInsertQuery,
	&memberInsertQuery,
	&memberLookupQuery.queryDesc,
}

func assertRegistered(desc *queryDesc) {
	for _, d := range queryRegistry {
		if d == desc {
			return
		}
	}
	panic("store: statement descriptor not in query registry")
}
