package die

import (
	"debug/dwarf"
	"fmt"
)

// Class identifies which variant of an attribute value is populated.
type Class int

const (
	ClassUnknown Class = iota
	ClassString
	ClassUint
	ClassInt
	ClassBlock
	ClassReference
	ClassFlag
	ClassAddress
)

// Attribute is a single DWARF attribute value. Exactly one of the value
// fields is meaningful, selected by Class.
type Attribute struct {
	Name  dwarf.Attr
	Class Class

	Str  string
	Uint uint64
	Int  int64
	// Block holds raw expression or data bytes (e.g. DW_AT_location).
	Block []byte
	// Ref is a section-relative offset of another DIE.
	Ref  dwarf.Offset
	Flag bool
	Addr uint64
}

// DIE is one debugging information entry. It is owned by its Unit; children
// are owned subtrees, while Ref attributes (such as DW_AT_type) are plain
// lookups into the same store and never imply ownership.
type DIE struct {
	Offset dwarf.Offset
	Tag    dwarf.Tag

	// UnitIndex is the index of the owning Unit in the store.
	UnitIndex int

	// Children holds the offsets of child DIEs in declaration order.
	Children []dwarf.Offset

	// Ranges holds the resolved pc ranges for scope-carrying DIEs
	// (compile units, subprograms, lexical blocks). Empty for others.
	Ranges []PCRange

	attrs map[dwarf.Attr]Attribute
	order []dwarf.Attr
}

// PCRange is a half-open [Low, High) program counter interval.
type PCRange struct {
	Low  uint64
	High uint64
}

// Contains reports whether pc falls inside the range.
func (r PCRange) Contains(pc uint64) bool {
	return pc >= r.Low && pc < r.High
}

// NewDIE creates an empty DIE. Attributes are added with SetAttr.
func NewDIE(offset dwarf.Offset, tag dwarf.Tag, unitIndex int) *DIE {
	return &DIE{
		Offset:    offset,
		Tag:       tag,
		UnitIndex: unitIndex,
		attrs:     make(map[dwarf.Attr]Attribute),
	}
}

// SetAttr adds or replaces an attribute, preserving first-insertion order.
func (d *DIE) SetAttr(a Attribute) {
	if _, ok := d.attrs[a.Name]; !ok {
		d.order = append(d.order, a.Name)
	}
	d.attrs[a.Name] = a
}

// Attr returns the attribute with the given name, if present.
func (d *DIE) Attr(name dwarf.Attr) (Attribute, bool) {
	a, ok := d.attrs[name]
	return a, ok
}

// Attrs returns all attributes in declaration order.
func (d *DIE) Attrs() []Attribute {
	out := make([]Attribute, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.attrs[name])
	}
	return out
}

// Name returns the DW_AT_name string, if present.
func (d *DIE) Name() (string, bool) {
	a, ok := d.attrs[dwarf.AttrName]
	if !ok || a.Class != ClassString {
		return "", false
	}
	return a.Str, true
}

// TypeRef returns the DW_AT_type reference, if present.
func (d *DIE) TypeRef() (dwarf.Offset, bool) {
	a, ok := d.attrs[dwarf.AttrType]
	if !ok || a.Class != ClassReference {
		return 0, false
	}
	return a.Ref, true
}

// UintAttr returns an unsigned attribute value. Signed and address-class
// values are accepted too since producers are inconsistent about form.
func (d *DIE) UintAttr(name dwarf.Attr) (uint64, bool) {
	a, ok := d.attrs[name]
	if !ok {
		return 0, false
	}
	switch a.Class {
	case ClassUint:
		return a.Uint, true
	case ClassInt:
		if a.Int < 0 {
			return 0, false
		}
		return uint64(a.Int), true
	case ClassAddress:
		return a.Addr, true
	default:
		return 0, false
	}
}

// BlockAttr returns a byte-block attribute value (location expressions,
// const blocks), if present.
func (d *DIE) BlockAttr(name dwarf.Attr) ([]byte, bool) {
	a, ok := d.attrs[name]
	if !ok || a.Class != ClassBlock {
		return nil, false
	}
	return a.Block, true
}

// ContainsPC reports whether pc is covered by one of the DIE's ranges.
func (d *DIE) ContainsPC(pc uint64) bool {
	for _, r := range d.Ranges {
		if r.Contains(pc) {
			return true
		}
	}
	return false
}

// HasRanges reports whether the DIE carries any resolved pc range.
func (d *DIE) HasRanges() bool {
	return len(d.Ranges) > 0
}

func (d *DIE) String() string {
	if name, ok := d.Name(); ok {
		return fmt.Sprintf("%s %q @0x%x", d.Tag, name, uint64(d.Offset))
	}
	return fmt.Sprintf("%s @0x%x", d.Tag, uint64(d.Offset))
}
