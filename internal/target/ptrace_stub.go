//go:build !linux
// +build !linux

package target

import (
	"fmt"

	"github.com/rs/zerolog"
)

// PtraceProvider is only available on Linux.
type PtraceProvider struct{}

// AttachPtrace fails on non-Linux platforms.
func AttachPtrace(pid int, logger zerolog.Logger) (*PtraceProvider, error) {
	return nil, fmt.Errorf("live process attach is only supported on Linux")
}

func (p *PtraceProvider) ReadMemory(addr uint64, length int) ([]byte, error) {
	return nil, ErrTargetUnavailable
}

func (p *PtraceProvider) ReadRegister(id uint64) (uint64, error) {
	return 0, ErrTargetUnavailable
}

func (p *PtraceProvider) PC() (uint64, error) {
	return 0, ErrTargetUnavailable
}

func (p *PtraceProvider) Close() error { return nil }
