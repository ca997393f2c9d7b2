package cli

import (
	"debug/elf"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// NewDisasmCmd creates the disasm command.
func NewDisasmCmd() *cobra.Command {
	var (
		startStr string
		count    int
	)

	cmd := &cobra.Command{
		Use:   "disasm <binary>",
		Short: "Disassemble instructions around an address",
		Long: `Disassemble machine code starting at an address, following the
binary's architecture. Handy for checking what a pc used with the var
command actually points at.

Examples:
  tidepool disasm ./app --start 0x401234
  tidepool disasm ./firmware --start 0x8000100 --count 32`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if startStr == "" {
				return fmt.Errorf("--start is required")
			}
			start, err := strconv.ParseUint(startStr, 0, 64)
			if err != nil {
				return fmt.Errorf("invalid --start %q: %w", startStr, err)
			}

			f, err := elf.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open ELF file %s: %w", args[0], err)
			}
			defer f.Close()

			code, err := execBytes(f, start)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			pc := start
			for i := 0; i < count && len(code) > 0; i++ {
				text, size, err := decodeOne(f.Machine, code, pc)
				if err != nil {
					return fmt.Errorf("decode at 0x%x: %w", pc, err)
				}
				fmt.Fprintf(out, "0x%08x: %s\n", pc, text)
				code = code[size:]
				pc += uint64(size)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startStr, "start", "", "address to disassemble from, e.g. 0x401234")
	cmd.Flags().IntVar(&count, "count", 16, "number of instructions")
	return cmd
}

// execBytes returns the executable section bytes from addr to the end
// of its section.
func execBytes(f *elf.File, addr uint64) ([]byte, error) {
	for _, sec := range f.Sections {
		if sec.Flags&elf.SHF_EXECINSTR == 0 {
			continue
		}
		if addr < sec.Addr || addr >= sec.Addr+sec.Size {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("read section %s: %w", sec.Name, err)
		}
		return data[addr-sec.Addr:], nil
	}
	return nil, fmt.Errorf("no executable section covers 0x%x", addr)
}

// decodeOne decodes a single instruction for the image's architecture.
func decodeOne(machine elf.Machine, code []byte, pc uint64) (string, int, error) {
	switch machine {
	case elf.EM_X86_64:
		inst, err := x86asm.Decode(code, 64)
		if err != nil {
			return "", 0, err
		}
		return x86asm.GNUSyntax(inst, pc, nil), inst.Len, nil
	case elf.EM_386:
		inst, err := x86asm.Decode(code, 32)
		if err != nil {
			return "", 0, err
		}
		return x86asm.GNUSyntax(inst, pc, nil), inst.Len, nil
	case elf.EM_AARCH64:
		inst, err := arm64asm.Decode(code)
		if err != nil {
			return "", 0, err
		}
		return arm64asm.GNUSyntax(inst), 4, nil
	case elf.EM_ARM:
		inst, err := armasm.Decode(code, armasm.ModeARM)
		if err != nil {
			return "", 0, err
		}
		return armasm.GNUSyntax(inst), inst.Len, nil
	default:
		return "", 0, fmt.Errorf("unsupported architecture %s", machine)
	}
}
