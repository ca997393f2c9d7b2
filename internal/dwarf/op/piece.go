package op

import "fmt"

// PieceKind identifies where a piece's bytes live.
type PieceKind int

const (
	// PieceUndefined marks a fragment with no location; its bytes are
	// unavailable (typically optimized out).
	PieceUndefined PieceKind = iota
	// PieceAddress locates the fragment in target memory.
	PieceAddress
	// PieceRegister locates the fragment in a target register.
	PieceRegister
	// PieceBytes carries the fragment's bytes literally.
	PieceBytes
)

// Piece is one contiguous fragment of an object's location. An ordered
// sequence of pieces composes one logical value; the order is byte/bit
// significance order and must never be rearranged.
type Piece struct {
	Kind PieceKind

	Addr  uint64 // PieceAddress
	Reg   uint64 // PieceRegister
	Bytes []byte // PieceBytes

	// Size is the fragment length in bytes. Zero means "the whole
	// object": the consumer clips to the declared type size.
	Size int

	// BitSize/BitOffset describe a bit-aligned sub-range of the source
	// datum (DW_OP_bit_piece). BitSize zero means the piece is
	// byte-aligned and Size applies.
	BitSize   int
	BitOffset int
}

func (p Piece) String() string {
	switch p.Kind {
	case PieceAddress:
		return fmt.Sprintf("addr:0x%x size:%d", p.Addr, p.Size)
	case PieceRegister:
		return fmt.Sprintf("reg%d size:%d", p.Reg, p.Size)
	case PieceBytes:
		return fmt.Sprintf("bytes:%d size:%d", len(p.Bytes), p.Size)
	default:
		return "undefined"
	}
}
