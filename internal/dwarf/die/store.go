package die

import (
	"debug/dwarf"
	"encoding/binary"
	"fmt"
)

// ErrDIENotFound is returned when an offset does not resolve to any entry.
type ErrDIENotFound struct {
	Offset dwarf.Offset
}

func (e ErrDIENotFound) Error() string {
	return fmt.Sprintf("no DIE at offset 0x%x", uint64(e.Offset))
}

// Unit is one compilation unit: its root DIE plus the pc ranges it covers.
type Unit struct {
	Index int
	Name  string
	Root  dwarf.Offset

	// Ranges covers the unit's generated code. May be empty for units
	// without machine code (e.g. pure type units).
	Ranges []PCRange

	// AddrBase is the DW_AT_addr_base offset into the address table, used
	// to resolve indexed (DW_OP_addrx) addresses. Zero when absent.
	AddrBase uint64
}

// ContainsPC reports whether pc is covered by the unit.
func (u *Unit) ContainsPC(pc uint64) bool {
	for _, r := range u.Ranges {
		if r.Contains(pc) {
			return true
		}
	}
	return false
}

// Store is an arena of DIEs indexed by their section-unique offset, plus
// the ordered list of compilation units that own them. One Store per
// debugged target image; offsets are only meaningful for that exact image.
type Store struct {
	dies  map[dwarf.Offset]*DIE
	units []*Unit

	// addrTable is the raw .debug_addr section, consulted for
	// indexed-address resolution. Nil when the image has none.
	addrTable []byte
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{dies: make(map[dwarf.Offset]*DIE)}
}

// AddUnit appends a unit and returns it. The caller fills in Root and
// Ranges as entries are added.
func (s *Store) AddUnit(name string) *Unit {
	u := &Unit{Index: len(s.units), Name: name}
	s.units = append(s.units, u)
	return u
}

// AddDIE inserts an entry into the arena.
func (s *Store) AddDIE(d *DIE) {
	s.dies[d.Offset] = d
}

// DIE resolves an offset to its entry.
func (s *Store) DIE(offset dwarf.Offset) (*DIE, error) {
	d, ok := s.dies[offset]
	if !ok {
		return nil, ErrDIENotFound{Offset: offset}
	}
	return d, nil
}

// Children returns the resolved child entries of d in declaration order.
func (s *Store) Children(d *DIE) ([]*DIE, error) {
	out := make([]*DIE, 0, len(d.Children))
	for _, off := range d.Children {
		c, err := s.DIE(off)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Units returns all compilation units in section order.
func (s *Store) Units() []*Unit {
	return s.units
}

// Unit returns the unit owning the given DIE.
func (s *Store) Unit(d *DIE) (*Unit, error) {
	if d.UnitIndex < 0 || d.UnitIndex >= len(s.units) {
		return nil, fmt.Errorf("DIE %s has no owning unit", d)
	}
	return s.units[d.UnitIndex], nil
}

// UnitByPC returns the unit covering pc, or nil if none does.
func (s *Store) UnitByPC(pc uint64) *Unit {
	for _, u := range s.units {
		if u.ContainsPC(pc) {
			return u
		}
	}
	return nil
}

// Len returns the number of entries in the arena.
func (s *Store) Len() int {
	return len(s.dies)
}

// SetAddrTable attaches the raw .debug_addr section contents.
func (s *Store) SetAddrTable(data []byte) {
	s.addrTable = data
}

// IndexedAddr resolves an address-table index for the given unit, as used
// by DW_OP_addrx. addrSize is the target address width in bytes; order is
// the image byte order, defaulting to little-endian when nil.
func (s *Store) IndexedAddr(u *Unit, index uint64, addrSize int, order binary.ByteOrder) (uint64, error) {
	if s.addrTable == nil {
		return 0, fmt.Errorf("image has no .debug_addr section")
	}
	pos := u.AddrBase + index*uint64(addrSize)
	if pos+uint64(addrSize) > uint64(len(s.addrTable)) {
		return 0, fmt.Errorf("address index %d out of bounds", index)
	}
	var addr uint64
	if order == binary.BigEndian {
		for i := 0; i < addrSize; i++ {
			addr = addr<<8 | uint64(s.addrTable[pos+uint64(i)])
		}
		return addr, nil
	}
	for i := addrSize - 1; i >= 0; i-- {
		addr = addr<<8 | uint64(s.addrTable[pos+uint64(i)])
	}
	return addr, nil
}
