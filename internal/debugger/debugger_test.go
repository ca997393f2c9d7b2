package debugger

import (
	"debug/dwarf"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/tidepool/internal/dwarf/die"
	"github.com/coral-mesh/tidepool/internal/target"
	"github.com/coral-mesh/tidepool/internal/testutil"
)

// fakeTarget is an in-memory target: a flat memory map plus registers.
type fakeTarget struct {
	mem  map[uint64][]byte
	regs map[uint64]uint64
}

func (f *fakeTarget) ReadMemory(addr uint64, length int) ([]byte, error) {
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		b, ok := f.mem[addr+uint64(i)]
		if !ok {
			return nil, target.InvalidAddressError{Addr: addr + uint64(i)}
		}
		out[i] = b[0]
	}
	return out, nil
}

func (f *fakeTarget) ReadRegister(id uint64) (uint64, error) {
	v, ok := f.regs[id]
	if !ok {
		return 0, target.ErrTargetUnavailable
	}
	return v, nil
}

func (f *fakeTarget) poke(addr uint64, data ...byte) {
	if f.mem == nil {
		f.mem = make(map[uint64][]byte)
	}
	for i, b := range data {
		f.mem[addr+uint64(i)] = []byte{b}
	}
}

// sessionBuilder assembles the synthetic unit the evaluation tests
// share: a uint32 global and a subprogram with a frame-relative local.
type sessionBuilder struct {
	store *die.Store
	unit  *die.Unit
	root  *die.DIE
	next  uint64
}

func newSession(t *testing.T) *sessionBuilder {
	t.Helper()
	s := die.NewStore()
	u := s.AddUnit("main.c")

	b := &sessionBuilder{store: s, unit: u, next: 0x200}
	b.root = b.add(nil, dwarf.TagCompileUnit)
	b.root.Ranges = []die.PCRange{{Low: 0x1000, High: 0x2000}}
	u.Root = b.root.Offset
	u.Ranges = b.root.Ranges

	// uint32_t at 0x10.
	typ := die.NewDIE(0x10, dwarf.TagBaseType, u.Index)
	typ.SetAttr(die.Attribute{Name: dwarf.AttrName, Class: die.ClassString, Str: "uint32_t"})
	typ.SetAttr(die.Attribute{Name: dwarf.AttrEncoding, Class: die.ClassUint, Uint: 0x07})
	typ.SetAttr(die.Attribute{Name: dwarf.AttrByteSize, Class: die.ClassUint, Uint: 4})
	s.AddDIE(typ)

	return b
}

func (b *sessionBuilder) add(parent *die.DIE, tag dwarf.Tag, attrs ...die.Attribute) *die.DIE {
	d := die.NewDIE(dwarf.Offset(b.next), tag, b.unit.Index)
	b.next++
	for _, a := range attrs {
		d.SetAttr(a)
	}
	b.store.AddDIE(d)
	if parent != nil {
		parent.Children = append(parent.Children, d.Offset)
	}
	return d
}

func (b *sessionBuilder) variable(parent *die.DIE, name string, loc []byte) *die.DIE {
	attrs := []die.Attribute{
		{Name: dwarf.AttrName, Class: die.ClassString, Str: name},
		{Name: dwarf.AttrType, Class: die.ClassReference, Ref: 0x10},
	}
	if loc != nil {
		attrs = append(attrs, die.Attribute{Name: dwarf.AttrLocation, Class: die.ClassBlock, Block: loc})
	}
	return b.add(parent, dwarf.TagVariable, attrs...)
}

func (b *sessionBuilder) debugger(t *testing.T, tgt target.Provider) *Debugger {
	t.Helper()
	return New(b.store, tgt, Profile{AddressSize: 8, ByteOrder: binary.LittleEndian}, testutil.Logger(t))
}

func TestEvaluateVariable_GlobalInMemory(t *testing.T) {
	b := newSession(t)
	// DW_OP_addr 0x5000
	b.variable(b.root, "counter", []byte{0x03, 0x00, 0x50, 0, 0, 0, 0, 0, 0})

	tgt := &fakeTarget{}
	tgt.poke(0x5000, 0x2a, 0, 0, 0)

	v, err := b.debugger(t, tgt).EvaluateVariable("counter", 0x1100)
	require.NoError(t, err)
	assert.Equal(t, "42", v.String())
	assert.Equal(t, "uint32_t", v.Type)
}

func TestEvaluateVariable_FrameRelativeLocal(t *testing.T) {
	b := newSession(t)
	sub := b.add(b.root, dwarf.TagSubprogram,
		die.Attribute{Name: dwarf.AttrName, Class: die.ClassString, Str: "main"},
		die.Attribute{Name: dwarf.AttrFrameBase, Class: die.ClassBlock, Block: []byte{0x77, 0x00}}) // breg7+0
	sub.Ranges = []die.PCRange{{Low: 0x1000, High: 0x2000}}
	// fbreg +8
	b.variable(sub, "retries", []byte{0x91, 0x08})

	tgt := &fakeTarget{regs: map[uint64]uint64{7: 0x7000}}
	tgt.poke(0x7008, 0x07, 0, 0, 0)

	v, err := b.debugger(t, tgt).EvaluateVariable("retries", 0x1100)
	require.NoError(t, err)
	assert.Equal(t, "7", v.String())
}

func TestEvaluateVariable_InRegister(t *testing.T) {
	b := newSession(t)
	sub := b.add(b.root, dwarf.TagSubprogram)
	sub.Ranges = []die.PCRange{{Low: 0x1000, High: 0x2000}}
	// DW_OP_reg5: the value lives in register 5; only the low-order 4
	// bytes belong to the uint32.
	b.variable(sub, "len", []byte{0x55})

	tgt := &fakeTarget{regs: map[uint64]uint64{5: 0xdeadbeef00000063}}

	v, err := b.debugger(t, tgt).EvaluateVariable("len", 0x1100)
	require.NoError(t, err)
	assert.Equal(t, "99", v.String())
}

func TestEvaluateVariable_StackValue(t *testing.T) {
	b := newSession(t)
	// constu 300; stack_value
	b.variable(b.root, "derived", []byte{0x10, 0xac, 0x02, 0x9f})

	v, err := b.debugger(t, &fakeTarget{}).EvaluateVariable("derived", 0x1100)
	require.NoError(t, err)
	assert.Equal(t, "300", v.String())
}

func TestEvaluateVariable_NoLocationAttr(t *testing.T) {
	b := newSession(t)
	b.variable(b.root, "gone", nil)

	v, err := b.debugger(t, &fakeTarget{}).EvaluateVariable("gone", 0x1100)
	require.NoError(t, err)
	assert.Equal(t, "<optimized out>", v.String())
}

func TestEvaluateVariable_EmptyLocationExpr(t *testing.T) {
	b := newSession(t)
	b.variable(b.root, "gone", []byte{})

	v, err := b.debugger(t, &fakeTarget{}).EvaluateVariable("gone", 0x1100)
	require.NoError(t, err)
	assert.Equal(t, "<optimized out>", v.String())
}

func TestEvaluateVariable_UndefinedPiece(t *testing.T) {
	b := newSession(t)
	// A bare piece op with no location: the fragment is undefined.
	b.variable(b.root, "gone", []byte{0x93, 0x04})

	v, err := b.debugger(t, &fakeTarget{}).EvaluateVariable("gone", 0x1100)
	require.NoError(t, err)
	assert.Equal(t, "<optimized out>", v.String())
}

func TestEvaluateVariable_ComposedPieces(t *testing.T) {
	b := newSession(t)
	// Low half at 0x5000, high half in reg 3, two 2-byte pieces.
	b.variable(b.root, "split", []byte{
		0x03, 0x00, 0x50, 0, 0, 0, 0, 0, 0, // addr 0x5000
		0x93, 0x02, // piece 2
		0x53,       // reg3
		0x93, 0x02, // piece 2
	})

	tgt := &fakeTarget{regs: map[uint64]uint64{3: 0x1122}}
	tgt.poke(0x5000, 0x44, 0x33)

	v, err := b.debugger(t, tgt).EvaluateVariable("split", 0x1100)
	require.NoError(t, err)
	// Concatenation order is piece order: 0x44 0x33 | 0x22 0x11.
	assert.Equal(t, uint64(0x11223344), v.Uint)
}

func TestEvaluateVariable_AbstractOrigin(t *testing.T) {
	b := newSession(t)
	abstract := b.add(b.root, dwarf.TagVariable,
		die.Attribute{Name: dwarf.AttrName, Class: die.ClassString, Str: "inlined"},
		die.Attribute{Name: dwarf.AttrType, Class: die.ClassReference, Ref: 0x10})

	sub := b.add(b.root, dwarf.TagInlinedSubroutine)
	sub.Ranges = []die.PCRange{{Low: 0x1000, High: 0x2000}}
	// The concrete copy has no type of its own, only the origin link.
	b.add(sub, dwarf.TagVariable,
		die.Attribute{Name: dwarf.AttrName, Class: die.ClassString, Str: "inlined"},
		die.Attribute{Name: dwarf.AttrAbstractOrigin, Class: die.ClassReference, Ref: abstract.Offset},
		die.Attribute{Name: dwarf.AttrLocation, Class: die.ClassBlock, Block: []byte{0x10, 0x05, 0x9f}})

	v, err := b.debugger(t, &fakeTarget{}).EvaluateVariable("inlined", 0x1100)
	require.NoError(t, err)
	assert.Equal(t, "5", v.String())
}

func TestEvaluateVariable_NotFound(t *testing.T) {
	b := newSession(t)

	_, err := b.debugger(t, &fakeTarget{}).EvaluateVariable("missing", 0x1100)
	var notFound NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
}

func TestEvaluateVariable_NoUnitForPC(t *testing.T) {
	b := newSession(t)

	_, err := b.debugger(t, &fakeTarget{}).EvaluateVariable("x", 0x9000)
	require.Error(t, err)
}

func TestEvaluateVariable_BadMemory(t *testing.T) {
	b := newSession(t)
	b.variable(b.root, "counter", []byte{0x03, 0x00, 0x50, 0, 0, 0, 0, 0, 0})

	_, err := b.debugger(t, &fakeTarget{}).EvaluateVariable("counter", 0x1100)
	var invalid target.InvalidAddressError
	require.ErrorAs(t, err, &invalid)
}

func TestFindTypes(t *testing.T) {
	b := newSession(t)
	d := b.debugger(t, &fakeTarget{})

	types, err := d.FindTypes("uint32_t")
	require.NoError(t, err)
	require.Len(t, types, 0) // the base type DIE hangs off no unit root

	// Attach it to the tree and search again.
	b.root.Children = append(b.root.Children, 0x10)
	types, err = d.FindTypes("uint32_t")
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, int64(4), types[0].Common().ByteSize)
}

func TestInvalidateTypes(t *testing.T) {
	b := newSession(t)
	d := b.debugger(t, &fakeTarget{})

	first, err := d.ResolveTypeOf(0x10)
	require.NoError(t, err)

	d.InvalidateTypes()

	second, err := d.ResolveTypeOf(0x10)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestSessionID_Unique(t *testing.T) {
	b := newSession(t)
	d1 := b.debugger(t, &fakeTarget{})
	d2 := b.debugger(t, &fakeTarget{})
	assert.NotEqual(t, d1.SessionID(), d2.SessionID())
	assert.NotEmpty(t, d1.SessionID())
}

func TestEvaluateVariable_TLSWithoutResolver(t *testing.T) {
	b := newSession(t)
	// constu 0x10; form_tls_address: the fake target cannot translate.
	b.variable(b.root, "tls_var", []byte{0x10, 0x10, 0x9b})

	_, err := b.debugger(t, &fakeTarget{}).EvaluateVariable("tls_var", 0x1100)
	require.Error(t, err)
	assert.False(t, errors.Is(err, target.ErrTargetUnavailable))
}
