package debugger

import (
	"encoding/binary"
	"fmt"

	"github.com/coral-mesh/tidepool/internal/dwarf/op"
)

// collectBytes turns an ordered piece list into the concatenated byte
// stream the materializer consumes. Each piece contributes its bytes in
// emission order; the stream is clipped to need bytes at the end. The
// second return is false when any required fragment is undefined, i.e.
// the value is (partly) optimized out.
func (d *Debugger) collectBytes(pieces []op.Piece, need int64) ([]byte, bool, error) {
	buf := make([]byte, 0, need)

	for _, p := range pieces {
		remaining := need - int64(len(buf))
		if remaining <= 0 {
			break
		}

		var (
			frag []byte
			err  error
		)
		switch p.Kind {
		case op.PieceUndefined:
			return nil, false, nil

		case op.PieceBytes:
			if p.BitSize > 0 {
				// Implicit bytes follow the same rule as registers:
				// bit ranges count from the low-order end.
				frag = extractBits(p.Bytes, p.BitOffset, p.BitSize)
				break
			}
			frag = clipWord(p.Bytes, pieceLen(p, remaining), d.profile.ByteOrder)

		case op.PieceAddress:
			n := pieceLen(p, remaining)
			if p.BitSize > 0 {
				// Read enough bytes to cover the bit range, then
				// extract it.
				span := (p.BitOffset + p.BitSize + 7) / 8
				src, rerr := d.provider.ReadMemory(p.Addr, span)
				if rerr != nil {
					return nil, false, rerr
				}
				frag = extractBits(src, p.BitOffset, p.BitSize)
				break
			}
			frag, err = d.provider.ReadMemory(p.Addr, n)
			if err != nil {
				return nil, false, err
			}

		case op.PieceRegister:
			word, rerr := d.provider.ReadRegister(p.Reg)
			if rerr != nil {
				return nil, false, rerr
			}
			frag = d.encodeWord(word)
			if p.BitSize > 0 {
				// Bit ranges of a register count from its
				// low-order end.
				frag = extractBits(frag, p.BitOffset, p.BitSize)
				break
			}
			// A register piece narrower than the machine word keeps
			// only its low-order bytes.
			frag = clipWord(frag, pieceLen(p, remaining), d.profile.ByteOrder)

		default:
			return nil, false, fmt.Errorf("piece kind %d not readable", p.Kind)
		}

		buf = append(buf, frag...)
	}

	if int64(len(buf)) > need {
		buf = buf[:need]
	}
	return buf, true, nil
}

// pieceLen is the byte count a piece contributes. Size zero means the
// whole object, clipped to what is still needed.
func pieceLen(p op.Piece, remaining int64) int {
	if p.BitSize > 0 {
		return (p.BitSize + 7) / 8
	}
	if p.Size == 0 || int64(p.Size) > remaining {
		return int(remaining)
	}
	return p.Size
}

// clipWord truncates a fragment to its low-order n bytes.
func clipWord(b []byte, n int, order binary.ByteOrder) []byte {
	if n >= len(b) {
		return b
	}
	if order == binary.BigEndian {
		return b[len(b)-n:]
	}
	return b[:n]
}

// extractBits pulls bitSize bits starting bitOffset bits from the
// low-order end of src, packing them from the low-order end of the
// result.
func extractBits(src []byte, bitOffset, bitSize int) []byte {
	out := make([]byte, (bitSize+7)/8)
	for i := 0; i < bitSize; i++ {
		pos := bitOffset + i
		if pos/8 >= len(src) {
			break
		}
		bit := (src[pos/8] >> (pos % 8)) & 1
		out[i/8] |= bit << (i % 8)
	}
	return out
}

func (d *Debugger) encodeWord(v uint64) []byte {
	buf := make([]byte, 8)
	if d.profile.ByteOrder == binary.BigEndian {
		binary.BigEndian.PutUint64(buf, v)
	} else {
		binary.LittleEndian.PutUint64(buf, v)
	}
	return buf
}

func (d *Debugger) readWord(data []byte) uint64 {
	var v uint64
	if d.profile.ByteOrder == binary.BigEndian {
		for _, b := range data {
			v = v<<8 | uint64(b)
		}
		return v
	}
	for i := len(data) - 1; i >= 0; i-- {
		v = v<<8 | uint64(data[i])
	}
	return v
}
