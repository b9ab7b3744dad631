package store

// Durable references assigned by a backend. Zero is the null reference; the
// sqlite backend uses rowids, the mem backend uses index+1.

type FileRef int64

type TypeRef int64

// FuncRef identifies a containing function. Records at global scope carry 0.
type FuncRef int64

// Scope constants for Loc.Scope. Values >= ScopeNested count unpaired braces
// around a nested declaration.
const (
	ScopeGlobal uint32 = 0
	ScopeFunc   uint32 = 1
	ScopeNested uint32 = 2
)

// Loc is the full source context of any record: containing file and function,
// scope depth, and 1-based line/column.
type Loc struct {
	File   FileRef
	Func   FuncRef
	Scope  uint32
	Line   uint32
	Column uint32
}

// TypeKind is the C language kind of a user-defined type. Typedefs are not
// types; they're names (see NameKind).
type TypeKind uint32

const (
	KindStruct TypeKind = 1
	KindUnion  TypeKind = 2
	KindEnum   TypeKind = 3
)

func (k TypeKind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	}
	return "invalid"
}

func (k TypeKind) valid() bool {
	return k == KindStruct || k == KindUnion || k == KindEnum
}

// TypeEntry is one user-defined type declaration. It has no name member:
// anonymous and unnamed types have none, and every name a type can go by is a
// separate Typename row.
type TypeEntry struct {
	Kind     TypeKind
	Complete bool
}

// NameKind is the variant of a Typename.
//
//   - NameDirect: "foo" in `struct foo {};`
//   - NameTypedef: "foo_t" in `typedef struct {} foo_t;` or
//     `typedef struct foo foo_t;`
//   - NameVar: "foo" in `struct {} foo;` — an instance variable that is the
//     only identifier of an unnamed type
type NameKind uint32

const (
	NameDirect  NameKind = 1
	NameTypedef NameKind = 2
	NameVar     NameKind = 3
)

func (k NameKind) String() string {
	switch k {
	case NameDirect:
		return "direct"
	case NameTypedef:
		return "typedef"
	case NameVar:
		return "var"
	}
	return "invalid"
}

func (k NameKind) valid() bool {
	return k == NameDirect || k == NameTypedef || k == NameVar
}

// Typename is one name by which a type can be referred to. BaseType must
// reference an existing TypeEntry; for elaborated forms like `struct foo`,
// Name holds only "foo".
type Typename struct {
	Kind     NameKind
	BaseType TypeRef
	Name     string
}

// Member is a struct/union field. BaseType is 0 for primitive-typed members.
type Member struct {
	Parent   TypeRef
	BaseType TypeRef
	Name     string
}

// UseKind classifies a non-definition mention of a type.
type UseKind uint32

const (
	UseDecl   UseKind = 1
	UseInit   UseKind = 2
	UseParam  UseKind = 3
	UseCast   UseKind = 4
	UseSizeof UseKind = 5
)

func (k UseKind) String() string {
	switch k {
	case UseDecl:
		return "decl"
	case UseInit:
		return "init"
	case UseParam:
		return "param"
	case UseCast:
		return "cast"
	case UseSizeof:
		return "sizeof"
	}
	return "invalid"
}

// TypeUse is a miscellaneous use of a type.
type TypeUse struct {
	BaseType TypeRef
	Kind     UseKind
}
