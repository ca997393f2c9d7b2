package target

import (
	"errors"
	"fmt"
)

// ErrTargetUnavailable means the target cannot service requests right
// now: not attached, not halted, or the channel is gone.
var ErrTargetUnavailable = errors.New("target unavailable")

// InvalidAddressError reports a read from an address the target does not
// map.
type InvalidAddressError struct {
	Addr uint64
}

func (e InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address 0x%x", e.Addr)
}

// Provider supplies target memory and register contents during an
// evaluation. Errors are surfaced to the engine's caller verbatim; the
// engine never retries, retry policy belongs to the provider.
type Provider interface {
	// ReadMemory returns length bytes at addr.
	ReadMemory(addr uint64, length int) ([]byte, error)
	// ReadRegister returns the value of the register with the given
	// DWARF register number.
	ReadRegister(id uint64) (uint64, error)
}

// TLSResolver is implemented by providers that can translate an offset
// into the current thread's thread-local storage block.
type TLSResolver interface {
	ResolveTLS(offset uint64) (uint64, error)
}
