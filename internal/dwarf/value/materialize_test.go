package value

import (
	"debug/dwarf"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/tidepool/internal/dwarf/die"
	"github.com/coral-mesh/tidepool/internal/dwarf/typeinfo"
)

// typeFixture assembles a synthetic store with the base types the
// materializer tests need and hands out a resolver over it.
type typeFixture struct {
	store *die.Store
	unit  *die.Unit
	res   *typeinfo.Resolver
}

func newFixture() *typeFixture {
	s := die.NewStore()
	u := s.AddUnit("test.c")
	f := &typeFixture{store: s, unit: u}

	f.base(0x10, "uint32_t", typeinfo.EncUnsigned, 4)
	f.base(0x11, "uint8_t", typeinfo.EncUnsigned, 1)
	f.base(0x12, "int8_t", typeinfo.EncSigned, 1)
	f.base(0x13, "int32_t", typeinfo.EncSigned, 4)
	f.base(0x14, "bool", typeinfo.EncBoolean, 1)
	f.base(0x15, "float", typeinfo.EncFloat, 4)
	f.base(0x16, "double", typeinfo.EncFloat, 8)
	f.base(0x17, "u128", typeinfo.EncUnsigned, 16)

	f.res = typeinfo.NewResolver(s, 8, zerolog.New(io.Discard))
	return f
}

func (f *typeFixture) add(off uint64, tag dwarf.Tag, attrs ...die.Attribute) *die.DIE {
	d := die.NewDIE(dwarf.Offset(off), tag, f.unit.Index)
	for _, a := range attrs {
		d.SetAttr(a)
	}
	f.store.AddDIE(d)
	return d
}

func (f *typeFixture) child(parent *die.DIE, off uint64, tag dwarf.Tag, attrs ...die.Attribute) *die.DIE {
	d := f.add(off, tag, attrs...)
	parent.Children = append(parent.Children, d.Offset)
	return d
}

func (f *typeFixture) base(off uint64, name string, enc typeinfo.Encoding, size uint64) {
	f.add(off, dwarf.TagBaseType,
		die.Attribute{Name: dwarf.AttrName, Class: die.ClassString, Str: name},
		die.Attribute{Name: dwarf.AttrEncoding, Class: die.ClassUint, Uint: uint64(enc)},
		die.Attribute{Name: dwarf.AttrByteSize, Class: die.ClassUint, Uint: size})
}

func (f *typeFixture) resolve(t *testing.T, off uint64) typeinfo.Type {
	t.Helper()
	typ, err := f.res.Resolve(dwarf.Offset(off))
	if err != nil {
		t.Fatalf("Resolve(0x%x) error = %v", off, err)
	}
	return typ
}

func uintA(name dwarf.Attr, v uint64) die.Attribute {
	return die.Attribute{Name: name, Class: die.ClassUint, Uint: v}
}

func strA(name dwarf.Attr, v string) die.Attribute {
	return die.Attribute{Name: name, Class: die.ClassString, Str: v}
}

func refA(name dwarf.Attr, off uint64) die.Attribute {
	return die.Attribute{Name: name, Class: die.ClassReference, Ref: dwarf.Offset(off)}
}

func TestMaterialize_Scalars(t *testing.T) {
	f := newFixture()
	m := NewMaterializer(f.res, nil)

	tests := []struct {
		name string
		off  uint64
		data []byte
		want string
	}{
		{"uint32", 0x10, []byte{0x2a, 0, 0, 0}, "42"},
		{"int8 negative", 0x12, []byte{0xff}, "-1"},
		{"int32 negative", 0x13, []byte{0xfe, 0xff, 0xff, 0xff}, "-2"},
		{"bool false", 0x14, []byte{0}, "false"},
		{"bool true", 0x14, []byte{2}, "true"},
		{"float32", 0x15, []byte{0, 0, 0x80, 0x3f}, "1"},                      // 1.0f
		{"float64", 0x16, []byte{0, 0, 0, 0, 0, 0, 0xf0, 0x3f}, "1"},          // 1.0
		{"float64 half", 0x16, []byte{0, 0, 0, 0, 0, 0, 0xe0, 0x3f}, "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := m.Materialize(f.resolve(t, tt.off), tt.data)
			if err != nil {
				t.Fatalf("Materialize() error = %v", err)
			}
			if v.String() != tt.want {
				t.Errorf("String() = %q, want %q", v.String(), tt.want)
			}
		})
	}
}

func TestMaterialize_WideScalar(t *testing.T) {
	f := newFixture()
	m := NewMaterializer(f.res, nil)

	data := make([]byte, 16)
	data[0] = 0x01
	data[15] = 0xab
	v, err := m.Materialize(f.resolve(t, 0x17), data)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if v.Kind != KindBits {
		t.Fatalf("Kind = %v, want KindBits", v.Kind)
	}
	if got := v.String(); got != "0xab000000000000000000000000000001" {
		t.Errorf("String() = %q", got)
	}
}

func TestMaterialize_Pointer(t *testing.T) {
	f := newFixture()
	f.add(0x20, dwarf.TagPointerType, refA(dwarf.AttrType, 0x10))
	m := NewMaterializer(f.res, nil)

	v, err := m.Materialize(f.resolve(t, 0x20), []byte{0x34, 0x12, 0x40, 0, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if v.Kind != KindAddress || v.Addr != 0x401234 {
		t.Errorf("value = %+v, want address 0x401234", v)
	}
}

func TestMaterialize_Struct(t *testing.T) {
	// struct Point { uint32_t a; uint8_t b; } from the 5 relevant bytes
	// of [1 0 0 0 7]: a = 1, b = 7.
	f := newFixture()
	s := f.add(0x30, dwarf.TagStructType,
		strA(dwarf.AttrName, "Point"),
		uintA(dwarf.AttrByteSize, 5))
	f.child(s, 0x31, dwarf.TagMember,
		strA(dwarf.AttrName, "a"),
		refA(dwarf.AttrType, 0x10),
		uintA(dwarf.AttrDataMemberLoc, 0))
	f.child(s, 0x32, dwarf.TagMember,
		strA(dwarf.AttrName, "b"),
		refA(dwarf.AttrType, 0x11),
		uintA(dwarf.AttrDataMemberLoc, 4))
	m := NewMaterializer(f.res, nil)

	v, err := m.Materialize(f.resolve(t, 0x30), []byte{1, 0, 0, 0, 7})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if got := v.String(); got != "Point {a: 1, b: 7}" {
		t.Errorf("String() = %q, want %q", got, "Point {a: 1, b: 7}")
	}
}

func TestMaterialize_StructMembersByDeclaredOffset(t *testing.T) {
	// Members are located by their declared offsets even when declared
	// out of order.
	f := newFixture()
	s := f.add(0x30, dwarf.TagStructType,
		strA(dwarf.AttrName, "Swapped"),
		uintA(dwarf.AttrByteSize, 2))
	f.child(s, 0x31, dwarf.TagMember,
		strA(dwarf.AttrName, "high"),
		refA(dwarf.AttrType, 0x11),
		uintA(dwarf.AttrDataMemberLoc, 1))
	f.child(s, 0x32, dwarf.TagMember,
		strA(dwarf.AttrName, "low"),
		refA(dwarf.AttrType, 0x11),
		uintA(dwarf.AttrDataMemberLoc, 0))
	m := NewMaterializer(f.res, nil)

	v, err := m.Materialize(f.resolve(t, 0x30), []byte{0xaa, 0xbb})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if v.Members[0].Value.Uint != 0xbb || v.Members[1].Value.Uint != 0xaa {
		t.Errorf("members = %v, want high=0xbb low=0xaa", v.Members)
	}
}

func TestMaterialize_Array(t *testing.T) {
	f := newFixture()
	a := f.add(0x40, dwarf.TagArrayType, refA(dwarf.AttrType, 0x11))
	f.child(a, 0x41, dwarf.TagSubrangeType, uintA(dwarf.AttrCount, 3))
	m := NewMaterializer(f.res, nil)

	v, err := m.Materialize(f.resolve(t, 0x40), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if got := v.String(); got != "[1, 2, 3]" {
		t.Errorf("String() = %q, want %q", got, "[1, 2, 3]")
	}
}

func TestMaterialize_Enum(t *testing.T) {
	f := newFixture()
	e := f.add(0x50, dwarf.TagEnumerationType,
		strA(dwarf.AttrName, "Mode"),
		uintA(dwarf.AttrByteSize, 1))
	f.child(e, 0x51, dwarf.TagEnumerator,
		strA(dwarf.AttrName, "Idle"),
		uintA(dwarf.AttrConstValue, 0))
	f.child(e, 0x52, dwarf.TagEnumerator,
		strA(dwarf.AttrName, "Run"),
		uintA(dwarf.AttrConstValue, 1))
	m := NewMaterializer(f.res, nil)

	v, err := m.Materialize(f.resolve(t, 0x50), []byte{1})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if v.String() != "Run" {
		t.Errorf("String() = %q, want Run", v.String())
	}

	// No matching enumerator: fall back to the number.
	v, err = m.Materialize(f.resolve(t, 0x50), []byte{9})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if v.String() != "9" {
		t.Errorf("String() = %q, want 9", v.String())
	}
}

func TestMaterialize_EnumClippedFromWord(t *testing.T) {
	// A 1-byte enum carried in a full register word: only the low-order
	// byte is the discriminant.
	f := newFixture()
	e := f.add(0x50, dwarf.TagEnumerationType,
		strA(dwarf.AttrName, "Mode"),
		uintA(dwarf.AttrByteSize, 1))
	f.child(e, 0x51, dwarf.TagEnumerator,
		strA(dwarf.AttrName, "Run"),
		uintA(dwarf.AttrConstValue, 1))
	m := NewMaterializer(f.res, nil)

	v, err := m.Materialize(f.resolve(t, 0x50), []byte{1, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if v.String() != "Run" {
		t.Errorf("String() = %q, want Run", v.String())
	}
}

func TestMaterialize_TypedefKeepsName(t *testing.T) {
	f := newFixture()
	f.add(0x60, dwarf.TagTypedef,
		strA(dwarf.AttrName, "ticks_t"),
		refA(dwarf.AttrType, 0x10))
	m := NewMaterializer(f.res, nil)

	v, err := m.Materialize(f.resolve(t, 0x60), []byte{5, 0, 0, 0})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if v.Type != "ticks_t" || v.Uint != 5 {
		t.Errorf("value = %+v, want ticks_t 5", v)
	}
}

func TestMaterialize_InsufficientData(t *testing.T) {
	f := newFixture()
	m := NewMaterializer(f.res, nil)

	_, err := m.Materialize(f.resolve(t, 0x10), []byte{1, 2})
	var insufficient InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Materialize() error = %v, want InsufficientDataError", err)
	}
	if insufficient.Need != 4 || insufficient.Have != 2 {
		t.Errorf("error = %+v, want need 4 have 2", insufficient)
	}
}

func TestMaterialize_Deterministic(t *testing.T) {
	f := newFixture()
	m := NewMaterializer(f.res, nil)
	typ := f.resolve(t, 0x13)
	data := []byte{0x39, 0x05, 0, 0}

	first, err := m.Materialize(typ, data)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	second, err := m.Materialize(typ, data)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if first.String() != second.String() || first.Int != second.Int {
		t.Errorf("repeated materialization differs: %v vs %v", first, second)
	}
}

func TestValue_OptimizedOut(t *testing.T) {
	v := OptimizedOut("uint32_t")
	if v.String() != "<optimized out>" {
		t.Errorf("String() = %q, want <optimized out>", v.String())
	}
	if v.Type != "uint32_t" {
		t.Errorf("Type = %q, want uint32_t", v.Type)
	}
}
