package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/tidepool/internal/dwarf/die"
	"github.com/coral-mesh/tidepool/internal/dwarf/loader"
)

// NewDiesCmd creates the dies command.
func NewDiesCmd() *cobra.Command {
	var (
		unitFilter string
		maxDepth   int
	)

	cmd := &cobra.Command{
		Use:   "dies <binary>",
		Short: "Dump the debug information entry tree",
		Long: `Print every debug information entry of the binary as an indented
tree, one compilation unit at a time. Useful for seeing exactly what
the compiler emitted when a variable or type does not resolve the way
you expect.

Examples:
  tidepool dies ./app
  tidepool dies ./app --unit main.c --max-depth 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			img, err := loader.LoadFile(args[0], logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, u := range img.Store.Units() {
				if unitFilter != "" && u.Name != unitFilter {
					continue
				}
				fmt.Fprintf(out, "unit %d: %s\n", u.Index, u.Name)
				root, err := img.Store.DIE(u.Root)
				if err != nil {
					return err
				}
				printDIE(out, img.Store, root, 0, maxDepth)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&unitFilter, "unit", "", "only dump the unit with this name")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "stop descending below this depth (0 = unlimited)")
	return cmd
}

func printDIE(out io.Writer, store *die.Store, d *die.DIE, depth, maxDepth int) {
	fmt.Fprintf(out, "%*s<0x%x> %s", depth*2, "", uint64(d.Offset), d.Tag)
	if name, ok := d.Name(); ok {
		fmt.Fprintf(out, " %q", name)
	}
	for _, r := range d.Ranges {
		fmt.Fprintf(out, " [0x%x,0x%x)", r.Low, r.High)
	}
	fmt.Fprintln(out)

	if maxDepth > 0 && depth+1 >= maxDepth {
		return
	}
	children, err := store.Children(d)
	if err != nil {
		fmt.Fprintf(out, "%*s! %v\n", (depth+1)*2, "", err)
		return
	}
	for _, child := range children {
		printDIE(out, store, child, depth+1, maxDepth)
	}
}
