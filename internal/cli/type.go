package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/tidepool/internal/debugger"
	"github.com/coral-mesh/tidepool/internal/dwarf/loader"
	"github.com/coral-mesh/tidepool/internal/dwarf/typeinfo"
)

// NewTypeCmd creates the type command.
func NewTypeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type <binary> <name>",
		Short: "Find and describe types by name",
		Long: `Search every compilation unit for type definitions with the given
name and print each one's layout. Distinct units can define distinct
types under the same name; all of them are shown.

Examples:
  tidepool type ./app Config
  tidepool type ./firmware TimerState`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			binPath, name := args[0], args[1]
			logger := newLogger()

			img, err := loader.LoadFile(binPath, logger)
			if err != nil {
				return err
			}

			dbg := debugger.FromImage(img, nil, logger)
			types, err := dbg.FindTypes(name)
			if err != nil {
				return err
			}
			if len(types) == 0 {
				return fmt.Errorf("no type named %q", name)
			}

			out := cmd.OutOrStdout()
			heading := color.New(color.FgCyan, color.Bold)
			for i, t := range types {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "%s  (%d bytes)\n", heading.Sprint(t.String()), t.Common().ByteSize)
				describeType(out, t)
			}
			return nil
		},
	}
	return cmd
}

func describeType(out io.Writer, t typeinfo.Type) {
	switch tt := t.(type) {
	case *typeinfo.StructType:
		for _, m := range tt.Members {
			mt := ""
			if m.Type != 0 {
				mt = fmt.Sprintf("<0x%x>", uint64(m.Type))
			}
			fmt.Fprintf(out, "  +%-4d %s %s\n", m.ByteOffset, mt, m.Name)
		}
	case *typeinfo.EnumType:
		for _, e := range tt.Enumerators {
			fmt.Fprintf(out, "  %s = %d\n", e.Name, e.Value)
		}
	}
}
