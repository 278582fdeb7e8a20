package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceGCE/pkg/board"
	"github.com/OpenTraceLab/OpenTraceGCE/pkg/gce"
)

var describeCmd = &cobra.Command{
	Use:   "describe <board-file>",
	Short: "Validate a board description and show its engines",
	Long: `Parse a board description file, validate every engine it defines and
print the resulting channel windows, timeouts and priorities.

Examples:
  gce describe testdata/mt8173.gce
  gce describe -v testdata/mt6779.gce`,
	Args: cobra.ExactArgs(1),
	RunE: runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	cfgs, err := board.Load(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, cfg := range cfgs {
		if i > 0 {
			fmt.Fprintln(out)
		}
		printEngine(out, cfg)
	}
	return nil
}

func printEngine(out io.Writer, cfg *gce.Config) {
	fmt.Fprintf(out, "Engine: %s\n", cfg.Name)
	fmt.Fprintf(out, "  Base:         0x%08X\n", cfg.BaseAddress)
	fmt.Fprintf(out, "  Channels:     %d (IRQ mask 0x%08X)\n", len(cfg.Channels), cfg.IRQMask())
	fmt.Fprintf(out, "  Event tokens: %d\n", cfg.EventTokens)
	fmt.Fprintf(out, "  Slot cycles:  0x%X\n", cfg.SlotCycles)
	fmt.Fprintf(out, "  Addr shift:   %d\n", cfg.Layout.AddrShift)
	if verbose {
		fmt.Fprintf(out, "  Reset poll:   %d x %s\n", cfg.Reset.MaxPolls, cfg.Reset.Interval)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "  %-4s %-8s %-10s %s\n", "CH", "OFFSET", "TIMEOUT", "PRIORITY")
	for i, ch := range cfg.Channels {
		fmt.Fprintf(out, "  %-4d 0x%04X   %-10s %d\n", i, ch.Offset, formatTimeout(ch.Timeout), ch.Priority)
	}
}

func formatTimeout(d time.Duration) string {
	if d == gce.NoTimeout {
		return "none"
	}
	return d.String()
}
