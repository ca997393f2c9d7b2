//go:build linux
// +build linux

package target

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// PtraceProvider reads memory and registers from a live process via
// ptrace. The process is stopped on attach and resumed on Close.
//
// ptrace ties all requests to the attaching OS thread, so the provider
// locks itself to one.
type PtraceProvider struct {
	pid    int
	logger zerolog.Logger
}

// AttachPtrace attaches to pid and waits for it to stop.
func AttachPtrace(pid int, logger zerolog.Logger) (*PtraceProvider, error) {
	runtime.LockOSThread()

	if err := unix.PtraceAttach(pid); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("%w: ptrace attach pid %d: %v", ErrTargetUnavailable, pid, err)
	}

	var status unix.WaitStatus
	if _, err := unix.Wait4(pid, &status, 0, nil); err != nil {
		_ = unix.PtraceDetach(pid)
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("%w: wait for stop of pid %d: %v", ErrTargetUnavailable, pid, err)
	}

	logger = logger.With().Str("component", "ptrace-provider").Int("pid", pid).Logger()
	logger.Debug().Msg("Attached to target")

	return &PtraceProvider{pid: pid, logger: logger}, nil
}

// ReadMemory reads length bytes of target memory at addr.
func (p *PtraceProvider) ReadMemory(addr uint64, length int) ([]byte, error) {
	out := make([]byte, length)
	n, err := unix.PtracePeekData(p.pid, uintptr(addr), out)
	if err != nil {
		if err == unix.EIO || err == unix.EFAULT {
			return nil, InvalidAddressError{Addr: addr}
		}
		return nil, fmt.Errorf("%w: peek at 0x%x: %v", ErrTargetUnavailable, addr, err)
	}
	if n != length {
		return nil, InvalidAddressError{Addr: addr + uint64(n)}
	}
	return out, nil
}

// ReadRegister returns the register identified by its DWARF number,
// using the x86-64 numbering.
func (p *PtraceProvider) ReadRegister(id uint64) (uint64, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(p.pid, &regs); err != nil {
		return 0, fmt.Errorf("%w: getregs: %v", ErrTargetUnavailable, err)
	}

	// DWARF register numbering for x86-64 (System V ABI, figure 3.36).
	switch id {
	case 0:
		return regs.Rax, nil
	case 1:
		return regs.Rdx, nil
	case 2:
		return regs.Rcx, nil
	case 3:
		return regs.Rbx, nil
	case 4:
		return regs.Rsi, nil
	case 5:
		return regs.Rdi, nil
	case 6:
		return regs.Rbp, nil
	case 7:
		return regs.Rsp, nil
	case 8:
		return regs.R8, nil
	case 9:
		return regs.R9, nil
	case 10:
		return regs.R10, nil
	case 11:
		return regs.R11, nil
	case 12:
		return regs.R12, nil
	case 13:
		return regs.R13, nil
	case 14:
		return regs.R14, nil
	case 15:
		return regs.R15, nil
	case 16:
		return regs.Rip, nil
	default:
		return 0, fmt.Errorf("%w: register %s not mapped", ErrTargetUnavailable, RegisterName(id))
	}
}

// PC returns the target's current program counter.
func (p *PtraceProvider) PC() (uint64, error) {
	return p.ReadRegister(16)
}

// Close detaches from the target, letting it continue.
func (p *PtraceProvider) Close() error {
	defer runtime.UnlockOSThread()
	if err := unix.PtraceDetach(p.pid); err != nil {
		return fmt.Errorf("ptrace detach pid %d: %w", p.pid, err)
	}
	p.logger.Debug().Msg("Detached from target")
	return nil
}
