package store

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/jward/cfind/internal/logging"
)

// The bridge between typed in-memory records and the driver's row API.
// bindArgs turns a typed value vector into driver arguments, scanRow reads a
// statement row back into one. Both are checked against the statement's
// declared column kinds: out-of-range inputs are rejected with ErrRange,
// out-of-range or mistyped outputs are reported as corruption.

// colVal is one typed value crossing the driver boundary.
type colVal struct {
	kind colKind
	u64  uint64
	str  string
}

func nullVal() colVal             { return colVal{kind: colNull} }
func u32Val(v uint32) colVal      { return colVal{kind: colUint32, u64: uint64(v)} }
func u64Val(v uint64) colVal      { return colVal{kind: colUint64, u64: v} }
func strVal(s string) colVal      { return colVal{kind: colStr, str: s} }
func refVal[T ~int64](r T) colVal { return colVal{kind: colUint64, u64: uint64(r)} }

// bindArgs converts vals into driver arguments for desc. The value kinds must
// match the descriptor's bind kinds exactly.
func bindArgs(desc *queryDesc, vals []colVal) ([]any, error) {
	if len(vals) != len(desc.binds) {
		return nil, fmt.Errorf("bind %d values to %d columns: %w",
			len(vals), len(desc.binds), ErrInvalid)
	}

	args := make([]any, len(vals))
	for i, v := range vals {
		if v.kind != desc.binds[i] {
			return nil, fmt.Errorf("bind column %d: kind %d != declared %d: %w",
				i, v.kind, desc.binds[i], ErrInvalid)
		}
		switch v.kind {
		case colNull:
			args[i] = nil
		case colUint32:
			if v.u64 > math.MaxUint32 {
				return nil, fmt.Errorf("bind column %d: %d: %w", i, v.u64, ErrRange)
			}
			args[i] = int64(v.u64)
		case colUint64:
			// sqlite integers are signed 64-bit.
			if v.u64 > math.MaxInt64 {
				return nil, fmt.Errorf("bind column %d: %d: %w", i, v.u64, ErrRange)
			}
			args[i] = int64(v.u64)
		case colStr:
			if len(v.str) > math.MaxInt32 {
				return nil, fmt.Errorf("bind column %d: string too long: %w", i, ErrRange)
			}
			args[i] = v.str
		}
	}
	return args, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRow reads one row shaped like outputs into a typed value vector.
// Violations of the declared shape are corruption, not caller errors.
func scanRow(row rowScanner, outputs []colKind) ([]colVal, error) {
	ints := make([]sql.NullInt64, len(outputs))
	strs := make([]sql.NullString, len(outputs))

	dest := make([]any, len(outputs))
	for i, kind := range outputs {
		if kind == colStr {
			dest[i] = &strs[i]
		} else {
			dest[i] = &ints[i]
		}
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	vals := make([]colVal, len(outputs))
	for i, kind := range outputs {
		switch kind {
		case colStr:
			// NULL deserializes as the empty string.
			vals[i] = strVal(strs[i].String)
		case colUint32:
			n := ints[i].Int64
			if n < 0 || n > math.MaxUint32 {
				logging.Corrupt("column out of uint32 range",
					"column", i, "value", n)
				return nil, fmt.Errorf("column %d value %d: %w", i, n, ErrCorrupt)
			}
			vals[i] = u32Val(uint32(n))
		case colUint64:
			n := ints[i].Int64
			if n < 0 {
				logging.Corrupt("negative id column", "column", i, "value", n)
				return nil, fmt.Errorf("column %d value %d: %w", i, n, ErrCorrupt)
			}
			vals[i] = u64Val(uint64(n))
		default:
			return nil, fmt.Errorf("column %d: null output kind: %w", i, ErrInvalid)
		}
	}
	return vals, nil
}
