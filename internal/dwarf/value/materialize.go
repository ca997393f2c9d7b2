package value

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/coral-mesh/tidepool/internal/dwarf/typeinfo"
)

// Materializer reinterprets a concatenated location byte stream as a
// typed value. It walks the resolved type structure, consuming exactly
// the type's byte size and locating composite members by their declared
// byte offsets, not by piece-arrival order.
type Materializer struct {
	res   *typeinfo.Resolver
	order binary.ByteOrder
}

// NewMaterializer creates a materializer reading scalars in the target's
// byte order.
func NewMaterializer(res *typeinfo.Resolver, order binary.ByteOrder) *Materializer {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Materializer{res: res, order: order}
}

// Materialize builds a Value of type t from data. Repeated calls with
// identical input produce identical values; the walk performs no target
// I/O and no expression evaluation.
func (m *Materializer) Materialize(t typeinfo.Type, data []byte) (Value, error) {
	switch tt := t.(type) {
	case *typeinfo.BaseType:
		return m.scalar(tt, data)

	case *typeinfo.PtrType:
		size := tt.ByteSize
		if int64(len(data)) < size {
			return Value{}, InsufficientDataError{Need: size, Have: int64(len(data))}
		}
		return Value{Kind: KindAddress, Type: t.String(), Addr: m.readUint(data[:size])}, nil

	case *typeinfo.ArrayType:
		return m.array(tt, data)

	case *typeinfo.StructType:
		return m.structure(tt, data)

	case *typeinfo.EnumType:
		return m.enum(tt, data)

	case *typeinfo.TypedefType:
		inner, err := m.res.Resolve(tt.Ref)
		if err != nil {
			return Value{}, fmt.Errorf("typedef %s: %w", tt.Name, err)
		}
		v, err := m.Materialize(inner, data)
		if err != nil {
			return Value{}, err
		}
		v.Type = tt.Name
		return v, nil

	case *typeinfo.ModifierType:
		inner, err := m.res.Resolve(tt.Ref)
		if err != nil {
			return Value{}, fmt.Errorf("%s qualifier: %w", tt.Modifier, err)
		}
		return m.Materialize(inner, data)

	default:
		return Value{}, fmt.Errorf("cannot materialize %s", t)
	}
}

func (m *Materializer) scalar(t *typeinfo.BaseType, data []byte) (Value, error) {
	size := t.ByteSize
	if int64(len(data)) < size {
		return Value{}, InsufficientDataError{Need: size, Have: int64(len(data))}
	}
	data = data[:size]

	switch t.Encoding {
	case typeinfo.EncSigned, typeinfo.EncSignedChar:
		if size > 8 {
			return m.wide(t, data), nil
		}
		v := m.readUint(data)
		shift := uint(64 - 8*size)
		return Value{Kind: KindInt, Type: t.Name, Int: int64(v<<shift) >> shift}, nil

	case typeinfo.EncUnsigned, typeinfo.EncUnsignedChar, typeinfo.EncUTF:
		if size > 8 {
			return m.wide(t, data), nil
		}
		return Value{Kind: KindUint, Type: t.Name, Uint: m.readUint(data)}, nil

	case typeinfo.EncBoolean:
		var set bool
		for _, b := range data {
			if b != 0 {
				set = true
				break
			}
		}
		return Value{Kind: KindBool, Type: t.Name, Bool: set}, nil

	case typeinfo.EncFloat:
		switch size {
		case 4:
			bits := uint32(m.readUint(data))
			return Value{Kind: KindFloat, Type: t.Name, Float: float64(math.Float32frombits(bits))}, nil
		case 8:
			return Value{Kind: KindFloat, Type: t.Name, Float: math.Float64frombits(m.readUint(data))}, nil
		default:
			return Value{}, UnsupportedEncodingError{Encoding: t.Encoding, ByteSize: size}
		}

	case typeinfo.EncAddress:
		return Value{Kind: KindAddress, Type: t.Name, Addr: m.readUint(data)}, nil

	default:
		return Value{}, UnsupportedEncodingError{Encoding: t.Encoding, ByteSize: size}
	}
}

// wide keeps a scalar wider than one machine word as raw bytes,
// normalized to little-endian so display order is stable.
func (m *Materializer) wide(t *typeinfo.BaseType, data []byte) Value {
	raw := make([]byte, len(data))
	copy(raw, data)
	if m.order == binary.BigEndian {
		for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
			raw[i], raw[j] = raw[j], raw[i]
		}
	}
	return Value{Kind: KindBits, Type: t.Name, Raw: raw}
}

func (m *Materializer) array(t *typeinfo.ArrayType, data []byte) (Value, error) {
	if int64(len(data)) < t.ByteSize {
		return Value{}, InsufficientDataError{Need: t.ByteSize, Have: int64(len(data))}
	}

	elem, err := m.res.Resolve(t.Elem)
	if err != nil {
		return Value{}, fmt.Errorf("array element type: %w", err)
	}
	elemSize := elem.Common().ByteSize

	v := Value{Kind: KindArray, Type: t.String(), Elems: make([]Value, 0, t.Count)}
	for i := int64(0); i < t.Count; i++ {
		ev, err := m.Materialize(elem, data[i*elemSize:(i+1)*elemSize])
		if err != nil {
			return Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		v.Elems = append(v.Elems, ev)
	}
	return v, nil
}

func (m *Materializer) structure(t *typeinfo.StructType, data []byte) (Value, error) {
	if int64(len(data)) < t.ByteSize {
		return Value{}, InsufficientDataError{Need: t.ByteSize, Have: int64(len(data))}
	}

	kind := KindStruct
	if t.Union {
		kind = KindUnion
	}
	v := Value{Kind: kind, Type: t.Name, Members: make([]MemberValue, 0, len(t.Members))}

	for _, member := range t.Members {
		mt, err := m.res.Resolve(member.Type)
		if err != nil {
			return Value{}, fmt.Errorf("member %s: %w", member.Name, err)
		}
		msize := mt.Common().ByteSize
		if member.ByteOffset+msize > int64(len(data)) {
			return Value{}, InsufficientDataError{Need: member.ByteOffset + msize, Have: int64(len(data))}
		}
		mv, err := m.Materialize(mt, data[member.ByteOffset:member.ByteOffset+msize])
		if err != nil {
			return Value{}, fmt.Errorf("member %s: %w", member.Name, err)
		}
		v.Members = append(v.Members, MemberValue{Name: member.Name, Value: mv})
	}
	return v, nil
}

func (m *Materializer) enum(t *typeinfo.EnumType, data []byte) (Value, error) {
	if int64(len(data)) < t.ByteSize {
		return Value{}, InsufficientDataError{Need: t.ByteSize, Have: int64(len(data))}
	}
	// The discriminant is exactly byte_size wide; a wider piece has
	// already been clipped to its low-order bytes by the caller.
	disc := m.readUint(data[:t.ByteSize])

	v := Value{Kind: KindEnum, Type: t.Name, Uint: disc}
	for _, e := range t.Enumerators {
		if uint64(e.Value) == disc {
			v.Enum = e.Name
			break
		}
	}
	return v, nil
}

func (m *Materializer) readUint(data []byte) uint64 {
	var v uint64
	if m.order == binary.BigEndian {
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
