package cmd

import (
	"fmt"
	"time"

	"github.com/bradfordvt/P2654Model/pkg/bitvector"
	"github.com/bradfordvt/P2654Model/pkg/description"
	"github.com/bradfordvt/P2654Model/pkg/driver"
	"github.com/bradfordvt/P2654Model/pkg/link"
	"github.com/bradfordvt/P2654Model/pkg/scheduler"
	"github.com/bradfordvt/P2654Model/pkg/topology"
	"github.com/spf13/cobra"
)

var demoWatchdogMS int

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the seed scan-network scenario against a loopback driver",
	Long: `Builds the seed topology — IR, BYPASS, and BSR scan registers behind a
ScanMux, wrapped in a TAP and a JTAGControllerAssembly — and exercises it
through a Scheduler against a loopback driver, printing each step.

Examples:
  p2654 demo
  p2654 demo -v --watchdog 500`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().IntVar(&demoWatchdogMS, "watchdog", 0,
		"apply-cycle watchdog in milliseconds (0 disables)")
}

func buildSeedTopology(sched *scheduler.Scheduler, stop *link.Stop) (*topology.Topology, error) {
	top := topology.New(sched, stop)
	sched.Attach(top)

	irSafe, err := bitvector.FromHex(8, "FF")
	if err != nil {
		return nil, err
	}
	ir, err := top.DefineScanRegister("IR", description.ReadWrite, "IR", 8, irSafe)
	if err != nil {
		return nil, err
	}

	bypassSafe, err := bitvector.FromHex(1, "0")
	if err != nil {
		return nil, err
	}
	bypass, err := top.DefineScanRegister("BYPASS", description.ReadWrite, "BYPASS", 1, bypassSafe)
	if err != nil {
		return nil, err
	}

	bsrSafe, err := bitvector.FromHex(18, "0")
	if err != nil {
		return nil, err
	}
	bsr, err := top.DefineScanRegister("BSR", description.ReadWrite, "BSR", 18, bsrSafe)
	if err != nil {
		return nil, err
	}

	c0xFF, _ := bitvector.FromHex(8, "FF")
	c0x02, _ := bitvector.FromHex(8, "02")
	mux, err := top.DefineScanMux("M1", ir, []description.MuxEntry{
		{Code: c0xFF, Target: bypass},
		{Code: c0x02, Target: bsr},
	})
	if err != nil {
		return nil, err
	}

	tap, err := top.DefineTAP("U1", ir, mux)
	if err != nil {
		return nil, err
	}

	ctrl := top.DefineJTAGControllerAssembly("JC1", driver.NewLoopback())
	top.AddControllerChild(ctrl, tap)

	return top, nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	fmt.Printf("\n╔════════════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║ Seed scan-network demo                                          ║\n")
	fmt.Printf("╚════════════════════════════════════════════════════════════════╝\n\n")

	watchdog := time.Duration(demoWatchdogMS) * time.Millisecond
	sched := scheduler.New(watchdog)
	stop := link.NewStop()

	if verbose {
		fmt.Println("Building seed topology (IR, BYPASS, BSR, M1, U1, JC1)...")
	}
	if _, err := buildSeedTopology(sched, stop); err != nil {
		return fmt.Errorf("building topology: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	selectBSR, err := bitvector.FromHex(8, "02")
	if err != nil {
		return err
	}
	if verbose {
		fmt.Println("Writing IR = 0x02 to select BSR...")
	}
	if err := sched.Write("JC1.U1.IR", selectBSR); err != nil {
		return fmt.Errorf("selecting BSR: %w", err)
	}
	if err := sched.Apply(); err != nil {
		return fmt.Errorf("apply: %w", err)
	}

	payload, err := bitvector.FromHex(18, "15555")
	if err != nil {
		return err
	}
	if verbose {
		fmt.Printf("Writing BSR = 0x%s with capture...\n", payload.Hex())
	}
	if err := sched.WriteRead("JC1.U1.BSR", payload); err != nil {
		return fmt.Errorf("write_read BSR: %w", err)
	}
	if err := sched.Apply(); err != nil {
		return fmt.Errorf("apply: %w", err)
	}

	got, err := sched.Read("JC1.U1.BSR")
	if err != nil {
		return fmt.Errorf("read BSR: %w", err)
	}

	fmt.Printf("┌─ Result ───────────────────────────────────────────────────────┐\n")
	fmt.Printf("│ BSR wrote:  0x%-5s                                              │\n", payload.Hex())
	fmt.Printf("│ BSR read:   0x%-5s                                              │\n", got.Hex())
	match := "MATCH"
	if !got.Equal(payload) {
		match = "MISMATCH"
	}
	fmt.Printf("│ Round trip: %-9s                                             │\n", match)
	fmt.Printf("└────────────────────────────────────────────────────────────────┘\n\n")

	if !got.Equal(payload) {
		return fmt.Errorf("loopback round trip mismatch: wrote 0x%s, read 0x%s", payload.Hex(), got.Hex())
	}
	return nil
}
