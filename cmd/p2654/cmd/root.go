package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "p2654",
	Short: "IEEE 1149.1/1687 scan-network model and demo driver",
	Long: `A scan-network modeling tool: builds a topology of registers, muxes,
TAPs, and controllers, drives it through a scheduler, and talks to a real
or loopback JTAG driver underneath.

Examples:
  p2654 demo                  # run the seed scenario against a loopback driver
  p2654 discover              # enumerate candidate USB JTAG probes`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
