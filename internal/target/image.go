package target

import (
	"debug/elf"
	"fmt"

	"github.com/rs/zerolog"
)

// ImageProvider serves memory reads straight from an ELF image's
// loadable segments, with no live target attached. It answers for
// initialized data and code; bss reads come back zeroed, and register
// reads always fail since there is no execution state.
type ImageProvider struct {
	file   *elf.File
	logger zerolog.Logger
}

// NewImageProvider opens the ELF image at path.
func NewImageProvider(path string, logger zerolog.Logger) (*ImageProvider, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return &ImageProvider{
		file:   f,
		logger: logger.With().Str("component", "image-provider").Logger(),
	}, nil
}

// ReadMemory reads from the loadable segment covering addr.
func (p *ImageProvider) ReadMemory(addr uint64, length int) ([]byte, error) {
	for _, prog := range p.file.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if addr < prog.Vaddr || addr+uint64(length) > prog.Vaddr+prog.Memsz {
			continue
		}

		out := make([]byte, length)
		fileOff := addr - prog.Vaddr
		if fileOff < prog.Filesz {
			n := uint64(length)
			if fileOff+n > prog.Filesz {
				n = prog.Filesz - fileOff
			}
			if _, err := prog.ReadAt(out[:n], int64(fileOff)); err != nil {
				return nil, fmt.Errorf("%w: segment read failed: %v", ErrTargetUnavailable, err)
			}
		}
		// Anything past Filesz is bss and stays zero.
		return out, nil
	}
	return nil, InvalidAddressError{Addr: addr}
}

// ReadRegister always fails: an image on disk has no register state.
func (p *ImageProvider) ReadRegister(id uint64) (uint64, error) {
	return 0, fmt.Errorf("%w: no live target, register %d unavailable", ErrTargetUnavailable, id)
}

// Close releases the underlying file.
func (p *ImageProvider) Close() error {
	return p.file.Close()
}
