package loader

import (
	"debug/elf"
	"debug/macho"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/tidepool/internal/dwarf/die"
)

// Image is a fully loaded debug-info image: the DIE store plus the
// target profile read from the binary's headers.
type Image struct {
	Store       *die.Store
	Path        string
	AddressSize int
	ByteOrder   binary.ByteOrder
	Machine     string
}

// LoadFile reads the debug info of the binary at path into a fresh
// store. ELF and Mach-O images are supported.
func LoadFile(path string, logger zerolog.Logger) (*Image, error) {
	if img, err := loadELF(path, logger); err == nil {
		return img, nil
	} else if !strings.Contains(err.Error(), "bad magic") {
		return nil, err
	}
	return loadMachO(path, logger)
}

func loadELF(path string, logger zerolog.Logger) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file %s: %w", path, err)
	}
	defer f.Close()

	d, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("no DWARF debug info in %s (stripped binary?): %w", path, err)
	}

	store, err := Load(d, logger)
	if err != nil {
		return nil, err
	}

	// Keep the raw address table around for DW_OP_addrx resolution.
	if sec := f.Section(".debug_addr"); sec != nil {
		if data, err := sec.Data(); err == nil {
			store.SetAddrTable(data)
		}
	}

	addrSize := 8
	if f.Class == elf.ELFCLASS32 {
		addrSize = 4
	}

	return &Image{
		Store:       store,
		Path:        path,
		AddressSize: addrSize,
		ByteOrder:   byteOrderOf(f.Data == elf.ELFDATA2LSB),
		Machine:     f.Machine.String(),
	}, nil
}

func loadMachO(path string, logger zerolog.Logger) (*Image, error) {
	f, err := macho.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Mach-O file %s: %w", path, err)
	}
	defer f.Close()

	d, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("no DWARF debug info in %s: %w", path, err)
	}

	store, err := Load(d, logger)
	if err != nil {
		return nil, err
	}

	addrSize := 8
	if f.Magic == macho.Magic32 {
		addrSize = 4
	}

	return &Image{
		Store:       store,
		Path:        path,
		AddressSize: addrSize,
		ByteOrder:   binary.LittleEndian,
		Machine:     f.Cpu.String(),
	}, nil
}
