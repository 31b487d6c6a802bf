package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/roadside-lab/rsu/internal/app/ingest"
)

func init() {
	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new ingestion session on the running daemon",
	Long:  `Start listening for beacons. A session already running is stopped and its state discarded.`,
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient()
	if err != nil {
		return err
	}

	var info ingest.Info
	if err := c.call(http.MethodPost, "/api/session/start", &info); err != nil {
		return err
	}
	fmt.Printf("Listening on %s (session %s)\n", info.BoundAddr, info.SessionID)
	return nil
}
