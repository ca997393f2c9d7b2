// Package cli wires the tidepool commands together.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/tidepool/internal/config"
	"github.com/coral-mesh/tidepool/internal/logging"
	"github.com/coral-mesh/tidepool/pkg/version"
)

var (
	logLevel  string
	logPretty bool
)

var rootCmd = &cobra.Command{
	Use:   "tidepool",
	Short: "Tidepool - DWARF variable and type inspection",
	Long: `Inspect variables and types of a compiled binary through its DWARF
debug information.

Tidepool loads the debug sections of an ELF or Mach-O binary, evaluates
DWARF location expressions against the binary itself or a live process,
and prints typed values the way a debugger would.

Examples:
  # Show the value of a global in the binary image
  tidepool var ./app counter --pc 0x401234

  # Read a local variable from a running process
  tidepool var ./app retries --pc 0x401234 --pid 4242

  # List every type named Config with its layout
  tidepool type ./app Config`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "log-pretty", true, "human-readable log output")

	rootCmd.AddCommand(NewVarCmd())
	rootCmd.AddCommand(NewTypeCmd())
	rootCmd.AddCommand(NewDiesCmd())
	rootCmd.AddCommand(NewDisasmCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.String())
		},
	}
}

// newLogger builds the command logger from config file plus flags,
// flags winning.
func newLogger() zerolog.Logger {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		cfg = config.Default()
	}

	lc := logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}
	if logLevel != "" {
		lc.Level = logLevel
	}
	lc.Pretty = logPretty
	return logging.New(lc)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
