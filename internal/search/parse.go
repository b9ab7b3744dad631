package search

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jward/cfind/internal/logging"
	"github.com/jward/cfind/internal/store"
)

// Grammar:
//
//	COMMAND ARGS...
//
//	COMMAND:
//	  td, typedecl    search for a type declaration
//	  tn, typename    search for the name of a type
//	  md, memberdecl  search for a member declaration
//
//	typedecl ARGS:   <ID> | [struct|union|enum] <name>
//	typename ARGS:   [struct|union|enum] <name>
//	memberdecl ARGS: (<ID> | [struct|union|enum] <name>) <member-name>
//
// An argument starting with a digit is a numeric type ID (C names can't start
// with one); "struct foo" is understood as the whole name of a tag type.

// tokens is a whitespace token stream with single-token lookahead semantics:
// next consumes, empty reports exhaustion.
type tokens struct {
	toks []string
	pos  int
}

func (t *tokens) next() (string, bool) {
	if t.pos >= len(t.toks) {
		return "", false
	}
	tok := t.toks[t.pos]
	t.pos++
	return tok, true
}

func (t *tokens) empty() bool {
	return t.pos >= len(t.toks)
}

// Parse turns a command string into its struct representation.
func Parse(cmd string) (*Command, error) {
	t := &tokens{toks: strings.Fields(cmd)}

	verb, ok := t.next()
	if !ok {
		return nil, fmt.Errorf("no command given: %w", store.ErrInvalid)
	}

	out := &Command{}
	var err error
	switch verb {
	case "td", "typedecl":
		out.Kind = SearchTypeDecl
		out.Type, err = parseTypeSearch(t)
	case "tn", "typename":
		out.Kind = SearchTypename
		out.Typename, err = parseNameSpec(t)
	case "md", "memberdecl":
		out.Kind = SearchMemberDecl
		out.Member, err = parseMemberSearch(t)
	default:
		return nil, fmt.Errorf("unknown command %q: %w", verb, store.ErrInvalid)
	}
	if err != nil {
		return nil, err
	}

	if !t.empty() {
		logging.Logger().Debug("trailing tokens ignored", "command", cmd)
	}
	return out, nil
}

// parseTypeSearch reads either a numeric type ID or a name spec.
func parseTypeSearch(t *tokens) (TypeSearch, error) {
	tok, ok := t.next()
	if !ok {
		return TypeSearch{}, fmt.Errorf("missing type argument: %w", store.ErrInvalid)
	}

	if isDigit(tok[0]) {
		id, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return TypeSearch{}, fmt.Errorf("parse %q as type id: %w", tok, store.ErrInvalid)
		}
		if id > math.MaxInt64 {
			return TypeSearch{}, fmt.Errorf("type id %d: %w", id, store.ErrRange)
		}
		return TypeSearch{IsID: true, ID: store.TypeRef(id)}, nil
	}

	spec, err := parseNameTail(tok, t)
	if err != nil {
		return TypeSearch{}, err
	}
	return TypeSearch{Name: spec}, nil
}

func parseNameSpec(t *tokens) (NameSpec, error) {
	tok, ok := t.next()
	if !ok {
		return NameSpec{}, fmt.Errorf("missing name argument: %w", store.ErrInvalid)
	}
	return parseNameTail(tok, t)
}

// parseNameTail finishes a name spec whose first token is tok. An elaboration
// keyword consumes one more token as the tag.
func parseNameTail(tok string, t *tokens) (NameSpec, error) {
	elab := strToElab(tok)
	if elab == ElabNone {
		return NameSpec{Name: tok}, nil
	}

	name, ok := t.next()
	if !ok {
		return NameSpec{}, fmt.Errorf("expected tag after keyword %q: %w", tok, store.ErrInvalid)
	}
	return NameSpec{Elab: elab, Name: name}, nil
}

// parseMemberSearch reads a type search followed by the member name.
func parseMemberSearch(t *tokens) (MemberSearch, error) {
	base, err := parseTypeSearch(t)
	if err != nil {
		return MemberSearch{}, err
	}

	member, ok := t.next()
	if !ok {
		return MemberSearch{}, fmt.Errorf("missing member name: %w", store.ErrInvalid)
	}
	return MemberSearch{Base: base, Member: member}, nil
}

func strToElab(s string) NameElab {
	switch s {
	case "struct":
		return ElabStruct
	case "union":
		return ElabUnion
	case "enum":
		return ElabEnum
	}
	return ElabNone
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
