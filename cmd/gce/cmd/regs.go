package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceGCE/pkg/gce"
)

var (
	regsShift    uint
	regsChannels int
)

var regsCmd = &cobra.Command{
	Use:   "regs",
	Short: "Show the engine register layout",
	Long: `Print the engine-wide registers and the per-channel thread registers of
the reference layout, with absolute offsets for the first channels.

Examples:
  gce regs
  gce regs --channels 4 --shift 3`,
	Args: cobra.NoArgs,
	RunE: runRegs,
}

func init() {
	rootCmd.AddCommand(regsCmd)

	regsCmd.Flags().UintVar(&regsShift, "shift", 0, "address register shift")
	regsCmd.Flags().IntVarP(&regsChannels, "channels", "c", 2, "number of channel windows to expand")
}

type namedReg struct {
	name string
	off  uint32
}

func sortedRegs(m map[string]uint32) []namedReg {
	regs := make([]namedReg, 0, len(m))
	for name, off := range m {
		regs = append(regs, namedReg{name, off})
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].off < regs[j].off })
	return regs
}

func runRegs(cmd *cobra.Command, args []string) error {
	cfg := gce.DefaultConfig(regsChannels)
	cfg.Layout.AddrShift = regsShift
	if err := cfg.Validate(); err != nil {
		return err
	}
	l := cfg.Layout
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Engine registers:\n")
	for _, r := range sortedRegs(l.EngineRegisters()) {
		fmt.Fprintf(out, "  0x%04X  %s\n", r.off, r.name)
	}

	fmt.Fprintf(out, "\nThread registers (span 0x%X, stride 0x%X):\n", l.ThreadSpan(), gce.ThreadStride)
	thread := sortedRegs(l.ThreadRegisters())
	for _, r := range thread {
		fmt.Fprintf(out, "  +0x%02X   %s\n", r.off, r.name)
	}
	if l.AddrShift > 0 {
		fmt.Fprintf(out, "\nCURR_ADDR and END_ADDR hold addresses >> %d\n", l.AddrShift)
	}

	for i, ch := range cfg.Channels {
		fmt.Fprintf(out, "\nChannel %d:\n", i)
		for _, r := range thread {
			fmt.Fprintf(out, "  0x%04X  %s\n", ch.Offset+r.off, r.name)
		}
	}
	return nil
}
