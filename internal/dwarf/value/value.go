package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the variants of Value.
type Kind int

const (
	// KindOptimizedOut marks an object with no location: it exists in
	// the program but the compiler kept it out of memory and registers.
	KindOptimizedOut Kind = iota
	KindInt
	KindUint
	KindFloat
	KindBool
	KindAddress
	KindBits // scalar wider than a machine word, kept raw
	KindStruct
	KindUnion
	KindArray
	KindEnum
)

// Value is a materialized, typed value. It mirrors the resolved type
// exactly: scalars carry one of the scalar fields, composites carry
// Members or Elems.
type Value struct {
	Kind Kind
	// Type is the display name of the resolved type.
	Type string

	Int   int64
	Uint  uint64
	Float float64
	Bool  bool
	Addr  uint64
	// Raw holds the bytes of a KindBits scalar in target byte order.
	Raw []byte

	// Members holds struct/union fields in declaration order.
	Members []MemberValue
	// Elems holds array elements in index order.
	Elems []Value
	// Enum is the matched enumerator name; empty when the discriminant
	// matches no enumerator.
	Enum string
}

// MemberValue is one named field of a struct or union value.
type MemberValue struct {
	Name  string
	Value Value
}

// OptimizedOut returns the explicit optimized-out indication.
func OptimizedOut(typeName string) Value {
	return Value{Kind: KindOptimizedOut, Type: typeName}
}

// String renders the value. It is pure: no target I/O, no expression
// evaluation, only formatting of already-materialized data.
func (v Value) String() string {
	switch v.Kind {
	case KindOptimizedOut:
		return "<optimized out>"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindUint:
		return strconv.FormatUint(v.Uint, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindAddress:
		return fmt.Sprintf("0x%x", v.Addr)
	case KindBits:
		return "0x" + rawHex(v.Raw)
	case KindStruct, KindUnion:
		fields := make([]string, len(v.Members))
		for i, m := range v.Members {
			fields[i] = m.Name + ": " + m.Value.String()
		}
		body := "{" + strings.Join(fields, ", ") + "}"
		if v.Type != "" {
			return v.Type + " " + body
		}
		return body
	case KindArray:
		elems := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = e.String()
		}
		return "[" + strings.Join(elems, ", ") + "]"
	case KindEnum:
		if v.Enum != "" {
			return v.Enum
		}
		return strconv.FormatUint(v.Uint, 10)
	default:
		return "<unknown>"
	}
}

// rawHex prints raw little-endian bytes most significant first.
func rawHex(raw []byte) string {
	var b strings.Builder
	for i := len(raw) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "%02x", raw[i])
	}
	if b.Len() == 0 {
		return "0"
	}
	return b.String()
}
