package cli

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/tidepool/internal/debugger"
	"github.com/coral-mesh/tidepool/internal/dwarf/loader"
	errs "github.com/coral-mesh/tidepool/internal/errors"
	"github.com/coral-mesh/tidepool/internal/target"
)

// NewVarCmd creates the var command.
func NewVarCmd() *cobra.Command {
	var (
		pcStr string
		pid   int
	)

	cmd := &cobra.Command{
		Use:   "var <binary> <name>",
		Short: "Evaluate a variable at a program counter",
		Long: `Evaluate a variable the way a debugger would: find the innermost
declaration visible at the given pc, run its DWARF location expression,
and print the typed value.

Without --pid the value is read from the binary image itself, which
works for globals with static initializers. With --pid the value comes
from the live process via ptrace (Linux only).

Examples:
  # Global in the image
  tidepool var ./app build_mode --pc 0x401234

  # Local in a running, stopped process
  tidepool var ./app retries --pc 0x401234 --pid 4242`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			binPath, name := args[0], args[1]
			logger := newLogger()

			img, err := loader.LoadFile(binPath, logger)
			if err != nil {
				return err
			}

			var provider target.Provider
			if pid > 0 {
				p, err := target.AttachPtrace(pid, logger)
				if err != nil {
					return err
				}
				defer errs.DeferClose(logger, p, "detach failed")
				provider = p
			} else {
				p, err := target.NewImageProvider(binPath, logger)
				if err != nil {
					return err
				}
				defer errs.DeferClose(logger, p, "image close failed")
				provider = p
			}

			pc, err := resolvePC(pcStr, provider)
			if err != nil {
				return err
			}

			dbg := debugger.FromImage(img, provider, logger)
			v, err := dbg.EvaluateVariable(name, pc)
			if err != nil {
				return err
			}

			nameColor := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()
			if v.Type != "" {
				fmt.Fprintf(out, "%s %s = %s\n", v.Type, nameColor.Sprint(name), v)
			} else {
				fmt.Fprintf(out, "%s = %s\n", nameColor.Sprint(name), v)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pcStr, "pc", "", "program counter, e.g. 0x401234 (defaults to the live pc with --pid)")
	cmd.Flags().IntVar(&pid, "pid", 0, "attach to this process instead of reading the image")
	return cmd
}

// resolvePC parses --pc, falling back to the live program counter when
// the provider has one.
func resolvePC(pcStr string, provider target.Provider) (uint64, error) {
	if pcStr != "" {
		pc, err := strconv.ParseUint(pcStr, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid --pc %q: %w", pcStr, err)
		}
		return pc, nil
	}
	if live, ok := provider.(interface{ PC() (uint64, error) }); ok {
		return live.PC()
	}
	return 0, fmt.Errorf("--pc is required without a live target")
}
