package op

import "fmt"

// InvalidExpressionError reports a malformed expression: truncated
// operands, stack underflow, branches out of bounds.
type InvalidExpressionError struct {
	Offset int // byte offset of the faulting opcode
	Reason string
}

func (e InvalidExpressionError) Error() string {
	return fmt.Sprintf("invalid expression at offset %d: %s", e.Offset, e.Reason)
}

// UnsupportedOpcodeError reports an opcode the evaluator does not
// implement. Distinct from InvalidExpressionError: the expression may be
// well-formed, we just cannot execute it.
type UnsupportedOpcodeError struct {
	Op byte
}

func (e UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("unsupported opcode 0x%02x", e.Op)
}
