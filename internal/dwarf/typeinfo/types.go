package typeinfo

import (
	"debug/dwarf"
	"fmt"
	"strings"
)

// Encoding is a DWARF base type encoding (DW_ATE_*).
type Encoding uint8

const (
	EncAddress      Encoding = 0x01
	EncBoolean      Encoding = 0x02
	EncFloat        Encoding = 0x04
	EncSigned       Encoding = 0x05
	EncSignedChar   Encoding = 0x06
	EncUnsigned     Encoding = 0x07
	EncUnsignedChar Encoding = 0x08
	EncUTF          Encoding = 0x10
)

func (e Encoding) String() string {
	switch e {
	case EncAddress:
		return "address"
	case EncBoolean:
		return "bool"
	case EncFloat:
		return "float"
	case EncSigned, EncSignedChar:
		return "signed"
	case EncUnsigned, EncUnsignedChar:
		return "unsigned"
	case EncUTF:
		return "utf"
	default:
		return fmt.Sprintf("encoding(0x%x)", uint8(e))
	}
}

// Type is a resolved type description. Cross-references to other types
// are kept as store offsets, never as embedded Types, so self-referential
// type graphs stay finite; resolve the offsets on demand.
type Type interface {
	Common() *CommonType
	String() string
}

// CommonType holds the fields shared by every resolved type.
type CommonType struct {
	// Offset identifies the defining DIE in the store.
	Offset dwarf.Offset
	Name   string
	// ByteSize is the storage size, transitively computed at resolution
	// time. Always valid for a successfully resolved type.
	ByteSize int64
}

func (c *CommonType) Common() *CommonType { return c }

// BaseType is a scalar with an explicit encoding: integers, floats,
// booleans, raw addresses.
type BaseType struct {
	CommonType
	Encoding Encoding
}

func (t *BaseType) String() string { return t.Name }

// PtrType points at the type defined at Elem. Its size is the target
// address width, never read from the DIE.
type PtrType struct {
	CommonType
	Elem dwarf.Offset
}

func (t *PtrType) String() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("*<0x%x>", uint64(t.Elem))
}

// ArrayType is Count elements of the type defined at Elem.
type ArrayType struct {
	CommonType
	Elem  dwarf.Offset
	Count int64
}

func (t *ArrayType) String() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("[%d]<0x%x>", t.Count, uint64(t.Elem))
}

// Member is one field of a struct or union.
type Member struct {
	Name string
	// ByteOffset is the field's declared offset inside the parent's
	// byte stream. Fields are located by this offset, not by piece
	// arrival order.
	ByteOffset int64
	Type       dwarf.Offset
}

// StructType is a struct or union (Union true) with its ordered members.
type StructType struct {
	CommonType
	Union   bool
	Members []Member
}

func (t *StructType) String() string {
	kind := "struct"
	if t.Union {
		kind = "union"
	}
	if t.Name != "" {
		return kind + " " + t.Name
	}
	names := make([]string, len(t.Members))
	for i, m := range t.Members {
		names[i] = m.Name
	}
	return kind + " {" + strings.Join(names, ", ") + "}"
}

// Enumerator is one named constant of an enumeration.
type Enumerator struct {
	Name  string
	Value int64
}

// EnumType is an enumeration: a discriminant scalar plus its named
// constants.
type EnumType struct {
	CommonType
	Encoding    Encoding
	Enumerators []Enumerator
}

func (t *EnumType) String() string {
	if t.Name != "" {
		return "enum " + t.Name
	}
	return "enum"
}

// TypedefType is a name alias for the type at Ref.
type TypedefType struct {
	CommonType
	Ref dwarf.Offset
}

func (t *TypedefType) String() string { return t.Name }

// ModifierType wraps the type at Ref with a const or volatile qualifier.
type ModifierType struct {
	CommonType
	Modifier string // "const" or "volatile"
	Ref      dwarf.Offset
}

func (t *ModifierType) String() string {
	if t.Name != "" {
		return t.Modifier + " " + t.Name
	}
	return t.Modifier
}
