package op

import (
	"debug/dwarf"
	"fmt"
)

// Requirement is a datum the evaluator needs from outside before it can
// continue. Evaluation halts with a Requirement instead of failing; the
// caller performs the I/O, answers through the matching Provide method,
// and steps the evaluator again. Exactly one Provide call answers one
// Requirement.
type Requirement interface {
	isRequirement()
}

// RequiresMemory asks for Size bytes of target memory at Addr.
// Answer with ProvideMemory.
type RequiresMemory struct {
	Addr uint64
	Size int
}

// RequiresRegister asks for the current value of a target register.
// Answer with ProvideRegister.
type RequiresRegister struct {
	Reg uint64
}

// RequiresFrameBase asks for the caller's frame base address.
// Answer with ProvideFrameBase.
type RequiresFrameBase struct{}

// RequiresCFA asks for the canonical frame address of the current frame.
// Answer with ProvideCFA.
type RequiresCFA struct{}

// RequiresParameterRef asks for the value of the parameter described by
// the referenced DIE. Answer with ProvideParameterValue.
type RequiresParameterRef struct {
	Ref dwarf.Offset
}

// RequiresIndexedAddress asks for entry Index of the image's address
// table. Answer with ProvideAddress.
type RequiresIndexedAddress struct {
	Index uint64
}

// RequiresTLS asks for the translation of Offset into the current
// thread's thread-local storage block. Answer with ProvideAddress.
type RequiresTLS struct {
	Offset uint64
}

func (RequiresMemory) isRequirement()         {}
func (RequiresRegister) isRequirement()       {}
func (RequiresFrameBase) isRequirement()      {}
func (RequiresCFA) isRequirement()            {}
func (RequiresParameterRef) isRequirement()   {}
func (RequiresIndexedAddress) isRequirement() {}
func (RequiresTLS) isRequirement()            {}

func (r RequiresMemory) String() string {
	return fmt.Sprintf("requires memory [0x%x, +%d)", r.Addr, r.Size)
}

func (r RequiresRegister) String() string {
	return fmt.Sprintf("requires register %d", r.Reg)
}
