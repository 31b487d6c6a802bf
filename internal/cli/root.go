// Package cli implements the rsu command-line interface using Cobra.
// serve runs the roadside unit; start, stop and status talk to a running
// one over its HTTP API; beacon plays the peer role.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rsu",
	Short: "rsu: roadside unit beacon ingestion",
	Long: `rsu listens for periodic position beacons from nearby peers on UDP,
tracks per-peer delivery ratio, latency and nearest-peer distance, and raises
proximity warnings.

Run "rsu serve" on the roadside unit and "rsu beacon" on each peer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
