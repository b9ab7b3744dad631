// Package search parses and executes the query commands of the cfind CLI
// against a record store.
package search

import "github.com/jward/cfind/internal/store"

// SearchKind selects the command verb.
type SearchKind int

const (
	// SearchTypeDecl finds the definition location of a user-defined type.
	SearchTypeDecl SearchKind = iota + 1
	// SearchTypename finds the definition locations of names for types. This
	// differs from SearchTypeDecl for typedefs: typedecl answers with the
	// underlying type, typename with the name itself.
	SearchTypename
	// SearchMemberDecl finds the definition location of a struct/union member.
	SearchMemberDecl
)

// NameElab is the optional elaboration keyword in front of a name. `struct
// foo` names a tag; bare `foo` may be any kind of typename.
type NameElab int

const (
	ElabNone NameElab = iota
	ElabStruct
	ElabUnion
	ElabEnum
)

// TypeKind maps an elaboration onto the stored type kind.
func (e NameElab) TypeKind() store.TypeKind {
	switch e {
	case ElabStruct:
		return store.KindStruct
	case ElabUnion:
		return store.KindUnion
	case ElabEnum:
		return store.KindEnum
	}
	return 0
}

// NameSpec is a possibly-elaborated type name argument.
type NameSpec struct {
	Elab NameElab
	Name string
}

// TypeSearch identifies a type either by numeric id or by name.
type TypeSearch struct {
	IsID bool
	ID   store.TypeRef
	Name NameSpec
}

// MemberSearch identifies a member of a type.
type MemberSearch struct {
	Base   TypeSearch
	Member string
}

// Command is a parsed query command.
type Command struct {
	Kind     SearchKind
	Type     TypeSearch
	Typename NameSpec
	Member   MemberSearch
}
