package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceGCE/pkg/logging"
)

var (
	// Global flags
	verbose   bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "gce",
	Short: "Global command engine channel scheduler tools",
	Long: `Tools for describing command engine boards and exercising the channel
scheduler against a register-level simulator.

Examples:
  gce describe testdata/mt8173.gce              # Validate and show a board file
  gce regs --shift 3                            # Show the register layout
  gce simulate --packets 100 --fault-every 7    # Run a workload on 16 channels`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var format logging.Format
		switch logFormat {
		case "text":
			format = logging.FormatText
		case "json":
			format = logging.FormatJSON
		default:
			return fmt.Errorf("unknown log format %q (want text or json)", logFormat)
		}
		if verbose {
			logging.SetLevel(slog.LevelDebug)
		} else {
			logging.SetLevel(slog.LevelWarn)
		}
		logging.SetOutput(cmd.ErrOrStderr(), format)
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
}
