package op

import (
	"debug/dwarf"
	"encoding/binary"
	"fmt"
)

// Options configures an evaluation for a target profile.
type Options struct {
	// AddressSize is the target address width in bytes (4 or 8).
	AddressSize int
	// ByteOrder is the target byte order. Defaults to little-endian.
	ByteOrder binary.ByteOrder
}

func (o Options) normalized() Options {
	if o.AddressSize == 0 {
		o.AddressSize = 8
	}
	if o.ByteOrder == nil {
		o.ByteOrder = binary.LittleEndian
	}
	return o
}

// Evaluator executes one DWARF location expression. Intermediate values
// are full machine words on an operand stack; the result is an ordered
// list of Pieces. An Evaluator is single-use and holds only value copies,
// so an abandoned suspended evaluation needs no cleanup.
type Evaluator struct {
	expr []byte
	ip   int
	opts Options

	stack  []uint64
	pieces []Piece

	// Current simple location, pending until a piece opcode or
	// expression end consumes it.
	reg          uint64
	haveReg      bool
	isValue      bool
	implicit     []byte
	haveImplicit bool

	// Frame base and CFA are requested at most once and then cached for
	// the rest of the expression.
	frameBase     uint64
	haveFrameBase bool
	cfa           uint64
	haveCFA       bool

	pending    Requirement
	pendingOff int64 // offset added to a provided register/frame base
	done       bool
}

// New creates an evaluator for the given expression bytes.
func New(expr []byte, opts Options) *Evaluator {
	return &Evaluator{expr: expr, opts: opts.normalized()}
}

// Step runs the expression until it completes or needs external data.
// A nil Requirement with nil error means evaluation is complete and
// Pieces holds the result. A non-nil Requirement must be answered with
// the matching Provide method before the next Step.
func (e *Evaluator) Step() (Requirement, error) {
	if e.pending != nil {
		return e.pending, nil
	}
	for !e.done && e.ip < len(e.expr) {
		if err := e.exec(); err != nil {
			return nil, err
		}
		if e.pending != nil {
			return e.pending, nil
		}
	}
	if !e.done {
		e.finish()
		e.done = true
	}
	return nil, nil
}

// Pieces returns the result of a completed evaluation. An empty slice
// means the expression describes no location: the object is optimized
// out, which is not an error.
func (e *Evaluator) Pieces() []Piece {
	return e.pieces
}

// ProvideMemory answers a RequiresMemory with the bytes read from the
// target, which are pushed as a machine word in target byte order.
func (e *Evaluator) ProvideMemory(data []byte) error {
	req, ok := e.pending.(RequiresMemory)
	if !ok {
		return fmt.Errorf("no pending memory requirement")
	}
	if len(data) != req.Size {
		return fmt.Errorf("memory answer has %d bytes, requirement asked for %d", len(data), req.Size)
	}
	e.push(e.decodeWord(data))
	e.pending = nil
	return nil
}

// ProvideRegister answers a RequiresRegister.
func (e *Evaluator) ProvideRegister(value uint64) error {
	if _, ok := e.pending.(RequiresRegister); !ok {
		return fmt.Errorf("no pending register requirement")
	}
	e.push(value + uint64(e.pendingOff))
	e.pending = nil
	return nil
}

// ProvideFrameBase answers a RequiresFrameBase. The frame base is cached
// for the remainder of the expression.
func (e *Evaluator) ProvideFrameBase(addr uint64) error {
	if _, ok := e.pending.(RequiresFrameBase); !ok {
		return fmt.Errorf("no pending frame base requirement")
	}
	e.frameBase = addr
	e.haveFrameBase = true
	e.push(addr + uint64(e.pendingOff))
	e.pending = nil
	return nil
}

// ProvideCFA answers a RequiresCFA. The CFA is cached for the remainder
// of the expression.
func (e *Evaluator) ProvideCFA(addr uint64) error {
	if _, ok := e.pending.(RequiresCFA); !ok {
		return fmt.Errorf("no pending CFA requirement")
	}
	e.cfa = addr
	e.haveCFA = true
	e.push(addr)
	e.pending = nil
	return nil
}

// ProvideParameterValue answers a RequiresParameterRef.
func (e *Evaluator) ProvideParameterValue(value uint64) error {
	if _, ok := e.pending.(RequiresParameterRef); !ok {
		return fmt.Errorf("no pending parameter requirement")
	}
	e.push(value)
	e.pending = nil
	return nil
}

// ProvideAddress answers a RequiresIndexedAddress or RequiresTLS with
// the resolved address.
func (e *Evaluator) ProvideAddress(addr uint64) error {
	switch e.pending.(type) {
	case RequiresIndexedAddress, RequiresTLS:
		e.push(addr)
		e.pending = nil
		return nil
	default:
		return fmt.Errorf("no pending address requirement")
	}
}

func (e *Evaluator) push(v uint64) {
	e.stack = append(e.stack, v)
}

func (e *Evaluator) pop() (uint64, bool) {
	if len(e.stack) == 0 {
		return 0, false
	}
	v := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return v, true
}

func (e *Evaluator) decodeWord(data []byte) uint64 {
	var v uint64
	if e.opts.ByteOrder == binary.BigEndian {
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

func (e *Evaluator) encodeWord(v uint64) []byte {
	buf := make([]byte, 8)
	if e.opts.ByteOrder == binary.BigEndian {
		binary.BigEndian.PutUint64(buf, v)
	} else {
		binary.LittleEndian.PutUint64(buf, v)
	}
	return buf
}

func (e *Evaluator) invalid(at int, format string, args ...any) error {
	return InvalidExpressionError{Offset: at, Reason: fmt.Sprintf(format, args...)}
}

// operand readers; all advance e.ip.

func (e *Evaluator) uleb(at int) (uint64, error) {
	v, n := decodeULEB128(e.expr[e.ip:])
	if n == 0 {
		return 0, e.invalid(at, "truncated ULEB128 operand")
	}
	e.ip += n
	return v, nil
}

func (e *Evaluator) sleb(at int) (int64, error) {
	v, n := decodeSLEB128(e.expr[e.ip:])
	if n == 0 {
		return 0, e.invalid(at, "truncated SLEB128 operand")
	}
	e.ip += n
	return v, nil
}

func (e *Evaluator) fixed(at, n int) ([]byte, error) {
	if e.ip+n > len(e.expr) {
		return nil, e.invalid(at, "truncated %d-byte operand", n)
	}
	b := e.expr[e.ip : e.ip+n]
	e.ip += n
	return b, nil
}

// exec decodes and executes the opcode at e.ip. Operands are consumed
// before a requirement is raised, so resuming just pushes the answer and
// continues with the next opcode.
func (e *Evaluator) exec() error {
	at := e.ip
	opcode := e.expr[e.ip]
	e.ip++

	switch {
	case opcode >= opLit0 && opcode <= opLit31:
		e.push(uint64(opcode - opLit0))
		return nil
	case opcode >= opReg0 && opcode <= opReg31:
		e.reg = uint64(opcode - opReg0)
		e.haveReg = true
		return nil
	case opcode >= opBreg0 && opcode <= opBreg31:
		off, err := e.sleb(at)
		if err != nil {
			return err
		}
		e.pendingOff = off
		e.pending = RequiresRegister{Reg: uint64(opcode - opBreg0)}
		return nil
	}

	switch opcode {
	case opAddr:
		b, err := e.fixed(at, e.opts.AddressSize)
		if err != nil {
			return err
		}
		e.push(e.decodeWord(b))

	case opConst1u, opConst1s, opConst2u, opConst2s, opConst4u, opConst4s, opConst8u, opConst8s:
		size := 1 << ((opcode - opConst1u) / 2)
		signed := (opcode-opConst1u)%2 == 1
		b, err := e.fixed(at, size)
		if err != nil {
			return err
		}
		v := e.decodeWord(b)
		if signed {
			// Sign-extend from the operand width to a full word.
			shift := uint(64 - 8*size)
			v = uint64(int64(v<<shift) >> shift)
		}
		e.push(v)

	case opConstu:
		v, err := e.uleb(at)
		if err != nil {
			return err
		}
		e.push(v)

	case opConsts:
		v, err := e.sleb(at)
		if err != nil {
			return err
		}
		e.push(uint64(v))

	case opDup:
		if len(e.stack) == 0 {
			return e.invalid(at, "dup on empty stack")
		}
		e.push(e.stack[len(e.stack)-1])

	case opDrop:
		if _, ok := e.pop(); !ok {
			return e.invalid(at, "drop on empty stack")
		}

	case opOver:
		if len(e.stack) < 2 {
			return e.invalid(at, "over needs two stack entries")
		}
		e.push(e.stack[len(e.stack)-2])

	case opPick:
		b, err := e.fixed(at, 1)
		if err != nil {
			return err
		}
		idx := int(b[0])
		if idx >= len(e.stack) {
			return e.invalid(at, "pick index %d beyond stack depth %d", idx, len(e.stack))
		}
		e.push(e.stack[len(e.stack)-1-idx])

	case opSwap:
		if len(e.stack) < 2 {
			return e.invalid(at, "swap needs two stack entries")
		}
		n := len(e.stack)
		e.stack[n-1], e.stack[n-2] = e.stack[n-2], e.stack[n-1]

	case opRot:
		if len(e.stack) < 3 {
			return e.invalid(at, "rot needs three stack entries")
		}
		n := len(e.stack)
		e.stack[n-1], e.stack[n-2], e.stack[n-3] = e.stack[n-2], e.stack[n-3], e.stack[n-1]

	case opAbs, opNeg, opNot:
		v, ok := e.pop()
		if !ok {
			return e.invalid(at, "unary op on empty stack")
		}
		switch opcode {
		case opAbs:
			if int64(v) < 0 {
				v = uint64(-int64(v))
			}
		case opNeg:
			v = uint64(-int64(v))
		case opNot:
			v = ^v
		}
		e.push(v)

	case opAnd, opDiv, opMinus, opMod, opMul, opOr, opPlus, opShl, opShr, opShra, opXor,
		opEq, opGe, opGt, opLe, opLt, opNe:
		second, ok := e.pop()
		if !ok {
			return e.invalid(at, "binary op on empty stack")
		}
		first, ok := e.pop()
		if !ok {
			return e.invalid(at, "binary op needs two stack entries")
		}
		v, err := e.binary(at, opcode, first, second)
		if err != nil {
			return err
		}
		e.push(v)

	case opPlusUconst:
		c, err := e.uleb(at)
		if err != nil {
			return err
		}
		v, ok := e.pop()
		if !ok {
			return e.invalid(at, "plus_uconst on empty stack")
		}
		e.push(v + c)

	case opSkip, opBra:
		b, err := e.fixed(at, 2)
		if err != nil {
			return err
		}
		delta := int(int16(e.decodeWord(b)))
		take := true
		if opcode == opBra {
			v, ok := e.pop()
			if !ok {
				return e.invalid(at, "bra on empty stack")
			}
			take = v != 0
		}
		if take {
			dst := e.ip + delta
			if dst < 0 || dst > len(e.expr) {
				return e.invalid(at, "branch target %d out of bounds", dst)
			}
			e.ip = dst
		}

	case opDeref, opDerefSize:
		size := e.opts.AddressSize
		if opcode == opDerefSize {
			b, err := e.fixed(at, 1)
			if err != nil {
				return err
			}
			size = int(b[0])
			if size == 0 || size > 8 {
				return e.invalid(at, "deref_size of %d bytes", size)
			}
		}
		addr, ok := e.pop()
		if !ok {
			return e.invalid(at, "deref on empty stack")
		}
		e.pending = RequiresMemory{Addr: addr, Size: size}

	case opFbreg:
		off, err := e.sleb(at)
		if err != nil {
			return err
		}
		if e.haveFrameBase {
			e.push(e.frameBase + uint64(off))
			return nil
		}
		e.pendingOff = off
		e.pending = RequiresFrameBase{}

	case opBregx:
		reg, err := e.uleb(at)
		if err != nil {
			return err
		}
		off, err := e.sleb(at)
		if err != nil {
			return err
		}
		e.pendingOff = off
		e.pending = RequiresRegister{Reg: reg}

	case opRegx:
		reg, err := e.uleb(at)
		if err != nil {
			return err
		}
		e.reg = reg
		e.haveReg = true

	case opCallFrameCFA:
		if e.haveCFA {
			e.push(e.cfa)
			return nil
		}
		e.pending = RequiresCFA{}

	case opAddrx:
		index, err := e.uleb(at)
		if err != nil {
			return err
		}
		e.pending = RequiresIndexedAddress{Index: index}

	case opFormTLSAddr, opGNUPushTLSAddr:
		off, ok := e.pop()
		if !ok {
			return e.invalid(at, "TLS translation on empty stack")
		}
		e.pending = RequiresTLS{Offset: off}

	case opGNUParameterRef:
		b, err := e.fixed(at, 4)
		if err != nil {
			return err
		}
		e.pending = RequiresParameterRef{Ref: dwarf.Offset(e.decodeWord(b))}

	case opImplicitValue:
		n, err := e.uleb(at)
		if err != nil {
			return err
		}
		b, err := e.fixed(at, int(n))
		if err != nil {
			return err
		}
		e.implicit = b
		e.haveImplicit = true

	case opStackValue:
		e.isValue = true

	case opPiece:
		n, err := e.uleb(at)
		if err != nil {
			return err
		}
		e.emitPiece(int(n), 0, 0)

	case opBitPiece:
		bits, err := e.uleb(at)
		if err != nil {
			return err
		}
		bitOff, err := e.uleb(at)
		if err != nil {
			return err
		}
		e.emitPiece(0, int(bits), int(bitOff))

	case opNop:
		// Nothing.

	default:
		return UnsupportedOpcodeError{Op: opcode}
	}
	return nil
}

func (e *Evaluator) binary(at int, opcode byte, first, second uint64) (uint64, error) {
	boolWord := func(b bool) uint64 {
		if b {
			return 1
		}
		return 0
	}
	switch opcode {
	case opAnd:
		return first & second, nil
	case opOr:
		return first | second, nil
	case opXor:
		return first ^ second, nil
	case opPlus:
		return first + second, nil
	case opMinus:
		return first - second, nil
	case opMul:
		return first * second, nil
	case opDiv:
		if second == 0 {
			return 0, e.invalid(at, "division by zero")
		}
		return uint64(int64(first) / int64(second)), nil
	case opMod:
		if second == 0 {
			return 0, e.invalid(at, "modulo by zero")
		}
		return first % second, nil
	case opShl:
		if second >= 64 {
			return 0, nil
		}
		return first << second, nil
	case opShr:
		if second >= 64 {
			return 0, nil
		}
		return first >> second, nil
	case opShra:
		if second >= 64 {
			second = 63
		}
		return uint64(int64(first) >> second), nil
	case opEq:
		return boolWord(int64(first) == int64(second)), nil
	case opGe:
		return boolWord(int64(first) >= int64(second)), nil
	case opGt:
		return boolWord(int64(first) > int64(second)), nil
	case opLe:
		return boolWord(int64(first) <= int64(second)), nil
	case opLt:
		return boolWord(int64(first) < int64(second)), nil
	case opNe:
		return boolWord(int64(first) != int64(second)), nil
	}
	return 0, UnsupportedOpcodeError{Op: opcode}
}

// emitPiece closes the current simple location description into a piece.
// Register and implicit locations take precedence; otherwise the address
// on top of the stack is consumed. With nothing pending the piece is
// undefined (that fragment of the object has no location).
func (e *Evaluator) emitPiece(size, bitSize, bitOffset int) {
	p := Piece{Size: size, BitSize: bitSize, BitOffset: bitOffset}
	switch {
	case e.haveReg:
		p.Kind = PieceRegister
		p.Reg = e.reg
	case e.haveImplicit:
		p.Kind = PieceBytes
		p.Bytes = e.implicit
		if p.Size == 0 && p.BitSize == 0 {
			p.Size = len(e.implicit)
		}
	case e.isValue && len(e.stack) > 0:
		v, _ := e.pop()
		b := e.encodeWord(v)
		if size > 0 && size < len(b) {
			// Truncate the machine word to the declared low-order
			// byte count before the piece is emitted.
			if e.opts.ByteOrder == binary.BigEndian {
				b = b[len(b)-size:]
			} else {
				b = b[:size]
			}
		}
		p.Kind = PieceBytes
		p.Bytes = b
	case len(e.stack) > 0:
		v, _ := e.pop()
		p.Kind = PieceAddress
		p.Addr = v
	default:
		p.Kind = PieceUndefined
	}
	e.haveReg = false
	e.haveImplicit = false
	e.implicit = nil
	e.isValue = false
	e.pieces = append(e.pieces, p)
}

// finish converts whatever location state remains at expression end into
// the final piece list. An empty expression, or one that leaves nothing
// behind, yields no pieces: the object has no location.
func (e *Evaluator) finish() {
	if len(e.pieces) > 0 {
		return
	}
	switch {
	case e.haveReg:
		e.pieces = append(e.pieces, Piece{Kind: PieceRegister, Reg: e.reg})
	case e.haveImplicit:
		e.pieces = append(e.pieces, Piece{Kind: PieceBytes, Bytes: e.implicit, Size: len(e.implicit)})
	case e.isValue && len(e.stack) > 0:
		v, _ := e.pop()
		e.pieces = append(e.pieces, Piece{Kind: PieceBytes, Bytes: e.encodeWord(v)})
	case len(e.stack) > 0:
		v, _ := e.pop()
		e.pieces = append(e.pieces, Piece{Kind: PieceAddress, Addr: v})
	}
}
