package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/OpenTraceLab/OpenTraceGCE/pkg/board"
	"github.com/OpenTraceLab/OpenTraceGCE/pkg/dmamap"
	"github.com/OpenTraceLab/OpenTraceGCE/pkg/gce"
	"github.com/OpenTraceLab/OpenTraceGCE/pkg/gcesim"
	"github.com/OpenTraceLab/OpenTraceGCE/pkg/logging"
)

var (
	simEngine     string
	simChannels   int
	simPackets    int
	simFaultEvery int
	simStallEvery int
	simTimeout    time.Duration
	simWindow     uint64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [board-file]",
	Short: "Run a packet workload against the simulated engine",
	Long: `Attach the scheduler to a register-level simulator and drive every channel
concurrently. Each packet either finishes, faults or stalls until its timeout
fires; the per-channel outcome counters are printed at the end.

Without a board file the reference layout with --channels channels is used.

Examples:
  gce simulate --packets 50
  gce simulate --fault-every 5 --stall-every 9 --timeout 5ms
  gce simulate --engine gce1 testdata/mt6779.gce`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVarP(&simEngine, "engine", "e", "", "engine name in the board file (default first)")
	simulateCmd.Flags().IntVarP(&simChannels, "channels", "c", gce.DefaultChannelCount, "channel count without a board file")
	simulateCmd.Flags().IntVarP(&simPackets, "packets", "n", 20, "packets per channel")
	simulateCmd.Flags().IntVar(&simFaultEvery, "fault-every", 0, "fault every Nth packet (0 disables)")
	simulateCmd.Flags().IntVar(&simStallEvery, "stall-every", 0, "stall every Nth packet until it times out (0 disables)")
	simulateCmd.Flags().DurationVar(&simTimeout, "timeout", 10*time.Millisecond, "packet timeout for channels configured without one")
	simulateCmd.Flags().Uint64Var(&simWindow, "window", 1<<20, "device address window size in bytes")
}

func loadSimConfig(args []string) (*gce.Config, error) {
	if len(args) == 0 {
		return gce.DefaultConfig(simChannels), nil
	}
	cfgs, err := board.Load(args[0])
	if err != nil {
		return nil, err
	}
	if simEngine == "" {
		return cfgs[0], nil
	}
	for _, cfg := range cfgs {
		if cfg.Name == simEngine {
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("engine %q not found in %s", simEngine, args[0])
}

// outcome picks what the simulated device does with packet n.
func outcome(n int) string {
	switch {
	case simStallEvery > 0 && n%simStallEvery == simStallEvery-1:
		return "stall"
	case simFaultEvery > 0 && n%simFaultEvery == simFaultEvery-1:
		return "fault"
	default:
		return "finish"
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simPackets < 1 {
		return fmt.Errorf("--packets must be at least 1")
	}
	cfg, err := loadSimConfig(args)
	if err != nil {
		return err
	}

	hw, err := gcesim.New(cfg)
	if err != nil {
		return err
	}
	win, err := dmamap.NewWindow(0x4000_0000, simWindow, dmamap.WithAlignment(8<<cfg.Layout.AddrShift))
	if err != nil {
		return err
	}
	eng, err := gce.New(hw.Bus, win, cfg)
	if err != nil {
		return err
	}
	mb := gce.NewMailbox(eng)
	defer mb.Close()

	handles := make([]*gce.Handle, eng.NumChannels())
	for i := range handles {
		var opts []gce.AcquireOption
		if cfg.Channels[i].Timeout == gce.NoTimeout && simStallEvery > 0 {
			opts = append(opts, gce.WithTimeout(simTimeout))
		}
		if handles[i], err = mb.AcquireChannel(i, opts...); err != nil {
			return err
		}
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(cmd.Context())
	for _, h := range handles {
		g.Go(func() error {
			return driveChannel(ctx, mb, hw, h)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Simulated %s: %d channels x %d packets in %s\n\n",
		eng.Name(), eng.NumChannels(), simPackets, elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "  %-4s %-10s %-10s %-8s %-8s %s\n", "CH", "SUBMITTED", "SUCCEEDED", "FAILED", "TIMEOUT", "SHUTDOWN")

	var total gce.Stats
	for _, ch := range eng.Channels() {
		s := ch.Stats()
		fmt.Fprintf(out, "  %-4d %-10d %-10d %-8d %-8d %d\n", ch.ID(), s.Submitted, s.Succeeded, s.Failed, s.TimedOut, s.Shutdown)
		total.Submitted += s.Submitted
		total.Succeeded += s.Succeeded
		total.Failed += s.Failed
		total.TimedOut += s.TimedOut
		total.Shutdown += s.Shutdown
	}
	fmt.Fprintf(out, "  %-4s %-10d %-10d %-8d %-8d %d\n", "ALL", total.Submitted, total.Succeeded, total.Failed, total.TimedOut, total.Shutdown)
	return nil
}

// driveChannel submits packets one at a time on h and plays the device side
// for each: it finishes, faults or stalls the channel and raises the engine
// interrupt.
func driveChannel(ctx context.Context, mb *gce.Mailbox, hw *gcesim.Hardware, h *gce.Handle) error {
	ch := h.Channel()
	results := make(chan gce.Result, 1)
	for n := 0; n < simPackets; n++ {
		pkt := gce.Packet{
			Buffer:   make([]byte, 64),
			Callback: func(res gce.Result, _ any) { results <- res },
			UserData: n,
		}
		if err := mb.Submit(h, pkt); err != nil {
			logging.Error(logging.ComponentSim, "submit failed", "channel", ch, "packet", n, "err", err)
			return fmt.Errorf("channel %d packet %d: %w", ch, n, err)
		}

		switch outcome(n) {
		case "stall":
			hw.Stall(ch, 8)
		case "fault":
			hw.Fault(ch)
			mb.Engine().HandleInterrupt()
		default:
			hw.Finish(ch)
			mb.Engine().HandleInterrupt()
		}

		select {
		case res := <-results:
			logging.Debug(logging.ComponentSim, "packet done", "channel", ch, "packet", n, "status", res.String())
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := mb.WaitIdle(ctx, h); err != nil {
			return err
		}
	}
	return nil
}
