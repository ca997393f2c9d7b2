package typeinfo

import (
	"debug/dwarf"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/tidepool/internal/dwarf/die"
)

// recCheck guards recursive size computation against reference cycles
// (a typedef chain or array element that leads back to itself).
type recCheck map[dwarf.Offset]struct{}

func (rc recCheck) acquire(off dwarf.Offset) (release func()) {
	if _, rec := rc[off]; rec {
		return nil
	}
	rc[off] = struct{}{}
	return func() { delete(rc, off) }
}

// Resolver turns DIE offsets into resolved Types. Results are memoized
// per offset for the lifetime of the session; offsets are only valid for
// one exact target image, so the cache must be invalidated when the
// target is reloaded. One Resolver (and one Store) per debugged target.
type Resolver struct {
	store    *die.Store
	addrSize int
	logger   zerolog.Logger

	mu    sync.RWMutex
	cache map[dwarf.Offset]Type
}

// NewResolver creates a resolver for the given store. addrSize is the
// target address width in bytes and fixes the size of every pointer type.
func NewResolver(store *die.Store, addrSize int, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:    store,
		addrSize: addrSize,
		logger:   logger.With().Str("component", "type-resolver").Logger(),
		cache:    make(map[dwarf.Offset]Type),
	}
}

// Invalidate drops every cached type. Call on target reload: the new
// image's offsets have nothing to do with the old ones.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[dwarf.Offset]Type)
	r.mu.Unlock()
	r.logger.Debug().Msg("Type cache invalidated")
}

// Resolve returns the type defined at the given offset.
func (r *Resolver) Resolve(offset dwarf.Offset) (Type, error) {
	r.mu.RLock()
	if t, ok := r.cache[offset]; ok {
		r.mu.RUnlock()
		return t, nil
	}
	r.mu.RUnlock()

	t, err := r.resolve(offset, make(recCheck))
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[offset] = t
	r.mu.Unlock()
	return t, nil
}

// SizeOf returns the byte size of the type at the given offset.
func (r *Resolver) SizeOf(offset dwarf.Offset) (int64, error) {
	t, err := r.Resolve(offset)
	if err != nil {
		return 0, err
	}
	return t.Common().ByteSize, nil
}

func (r *Resolver) resolve(offset dwarf.Offset, rc recCheck) (Type, error) {
	d, err := r.store.DIE(offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTypeNotFound, err)
	}

	name, _ := d.Name()

	switch d.Tag {
	case dwarf.TagBaseType:
		enc, ok := d.UintAttr(dwarf.AttrEncoding)
		if !ok {
			return nil, MissingAttributeError{Offset: offset, Attr: dwarf.AttrEncoding}
		}
		size, ok := d.UintAttr(dwarf.AttrByteSize)
		if !ok {
			return nil, MissingAttributeError{Offset: offset, Attr: dwarf.AttrByteSize}
		}
		return &BaseType{
			CommonType: CommonType{Offset: offset, Name: name, ByteSize: int64(size)},
			Encoding:   Encoding(enc),
		}, nil

	case dwarf.TagPointerType:
		// A pointer's size is the target address width regardless of
		// what the DIE claims. No referent means a void pointer.
		elem, _ := d.TypeRef()
		return &PtrType{
			CommonType: CommonType{Offset: offset, Name: name, ByteSize: int64(r.addrSize)},
			Elem:       elem,
		}, nil

	case dwarf.TagArrayType:
		return r.resolveArray(d, name, rc)

	case dwarf.TagStructType, dwarf.TagUnionType:
		return r.resolveStruct(d, name)

	case dwarf.TagEnumerationType:
		return r.resolveEnum(d, name)

	case dwarf.TagTypedef:
		ref, ok := d.TypeRef()
		if !ok {
			return nil, MissingAttributeError{Offset: offset, Attr: dwarf.AttrType}
		}
		size, err := r.sizeOf(ref, rc)
		if err != nil {
			return nil, err
		}
		return &TypedefType{
			CommonType: CommonType{Offset: offset, Name: name, ByteSize: size},
			Ref:        ref,
		}, nil

	case dwarf.TagConstType, dwarf.TagVolatileType, dwarf.TagRestrictType:
		modifier := "const"
		switch d.Tag {
		case dwarf.TagVolatileType:
			modifier = "volatile"
		case dwarf.TagRestrictType:
			modifier = "restrict"
		}
		ref, ok := d.TypeRef()
		if !ok {
			// Qualified void, e.g. "const void".
			return &ModifierType{
				CommonType: CommonType{Offset: offset, Name: name},
				Modifier:   modifier,
			}, nil
		}
		size, err := r.sizeOf(ref, rc)
		if err != nil {
			return nil, err
		}
		return &ModifierType{
			CommonType: CommonType{Offset: offset, Name: name, ByteSize: size},
			Modifier:   modifier,
			Ref:        ref,
		}, nil

	default:
		return nil, fmt.Errorf("%w: DIE at 0x%x has tag %s", ErrTypeNotFound, uint64(offset), d.Tag)
	}
}

// sizeOf computes a type's byte size, resolving lazily and guarding
// against cycles.
func (r *Resolver) sizeOf(offset dwarf.Offset, rc recCheck) (int64, error) {
	r.mu.RLock()
	if t, ok := r.cache[offset]; ok {
		r.mu.RUnlock()
		return t.Common().ByteSize, nil
	}
	r.mu.RUnlock()

	release := rc.acquire(offset)
	if release == nil {
		return 0, MalformedTypeError{Offset: offset, Reason: "type reference cycle"}
	}
	defer release()

	t, err := r.resolve(offset, rc)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.cache[offset] = t
	r.mu.Unlock()
	return t.Common().ByteSize, nil
}

func (r *Resolver) resolveArray(d *die.DIE, name string, rc recCheck) (Type, error) {
	elem, ok := d.TypeRef()
	if !ok {
		return nil, MissingAttributeError{Offset: d.Offset, Attr: dwarf.AttrType}
	}

	count, err := r.subrangeCount(d)
	if err != nil {
		return nil, err
	}

	elemSize, err := r.sizeOf(elem, rc)
	if err != nil {
		return nil, fmt.Errorf("array element type: %w", err)
	}

	return &ArrayType{
		CommonType: CommonType{Offset: d.Offset, Name: name, ByteSize: elemSize * count},
		Elem:       elem,
		Count:      count,
	}, nil
}

// subrangeCount reads the element count from the array's child subrange
// entry, preferring DW_AT_count over DW_AT_upper_bound.
func (r *Resolver) subrangeCount(d *die.DIE) (int64, error) {
	children, err := r.store.Children(d)
	if err != nil {
		return 0, err
	}
	for _, c := range children {
		if c.Tag != dwarf.TagSubrangeType {
			continue
		}
		if count, ok := c.UintAttr(dwarf.AttrCount); ok {
			return int64(count), nil
		}
		if upper, ok := c.UintAttr(dwarf.AttrUpperBound); ok {
			return int64(upper) + 1, nil
		}
		return 0, fmt.Errorf("array at 0x%x: %w", uint64(d.Offset), ErrMissingBound)
	}
	return 0, fmt.Errorf("array at 0x%x: %w", uint64(d.Offset), ErrMissingBound)
}

func (r *Resolver) resolveStruct(d *die.DIE, name string) (Type, error) {
	size, ok := d.UintAttr(dwarf.AttrByteSize)
	if !ok {
		return nil, MissingAttributeError{Offset: d.Offset, Attr: dwarf.AttrByteSize}
	}

	children, err := r.store.Children(d)
	if err != nil {
		return nil, err
	}

	var members []Member
	for _, c := range children {
		if c.Tag != dwarf.TagMember {
			continue
		}
		mname, _ := c.Name()
		mtype, ok := c.TypeRef()
		if !ok {
			return nil, MissingAttributeError{Offset: c.Offset, Attr: dwarf.AttrType}
		}
		off, err := memberOffset(c)
		if err != nil {
			return nil, err
		}
		members = append(members, Member{Name: mname, ByteOffset: off, Type: mtype})
	}

	return &StructType{
		CommonType: CommonType{Offset: d.Offset, Name: name, ByteSize: int64(size)},
		Union:      d.Tag == dwarf.TagUnionType,
		Members:    members,
	}, nil
}

// memberOffset reads DW_AT_data_member_location, which producers emit
// either as a plain constant or as a one-op DW_OP_plus_uconst block.
func memberOffset(d *die.DIE) (int64, error) {
	if off, ok := d.UintAttr(dwarf.AttrDataMemberLoc); ok {
		return int64(off), nil
	}
	if block, ok := d.BlockAttr(dwarf.AttrDataMemberLoc); ok {
		if len(block) >= 2 && block[0] == 0x23 { // DW_OP_plus_uconst
			off, n := decodeULEB128(block[1:])
			if n > 0 {
				return int64(off), nil
			}
		}
		return 0, MalformedTypeError{Offset: d.Offset, Reason: "unsupported member location expression"}
	}
	// Unions and the first member commonly omit the attribute.
	return 0, nil
}

func decodeULEB128(data []byte) (uint64, int) {
	var result uint64
	var shift uint
	for i := 0; i < len(data) && i < 10; i++ {
		b := data[i]
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1
		}
		shift += 7
	}
	return 0, 0
}

func (r *Resolver) resolveEnum(d *die.DIE, name string) (Type, error) {
	size, ok := d.UintAttr(dwarf.AttrByteSize)
	if !ok {
		return nil, MissingAttributeError{Offset: d.Offset, Attr: dwarf.AttrByteSize}
	}
	enc := EncUnsigned
	if v, ok := d.UintAttr(dwarf.AttrEncoding); ok {
		enc = Encoding(v)
	}

	children, err := r.store.Children(d)
	if err != nil {
		return nil, err
	}

	var enumerators []Enumerator
	for _, c := range children {
		if c.Tag != dwarf.TagEnumerator {
			continue
		}
		ename, _ := c.Name()
		var value int64
		if a, ok := c.Attr(dwarf.AttrConstValue); ok {
			switch a.Class {
			case die.ClassInt:
				value = a.Int
			case die.ClassUint:
				value = int64(a.Uint)
			}
		}
		enumerators = append(enumerators, Enumerator{Name: ename, Value: value})
	}

	return &EnumType{
		CommonType:  CommonType{Offset: d.Offset, Name: name, ByteSize: int64(size)},
		Encoding:    enc,
		Enumerators: enumerators,
	}, nil
}
