package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/roadside-lab/rsu/internal/app/ingest"
)

func init() {
	rootCmd.AddCommand(stopCmd)
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the current ingestion session",
	Long:  `Close the beacon socket and flush the session's logs. Peer state stays readable until the next start.`,
	RunE:  runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient()
	if err != nil {
		return err
	}

	var info ingest.Info
	if err := c.call(http.MethodPost, "/api/session/stop", &info); err != nil {
		return err
	}
	fmt.Printf("Stopped session %s\n", info.SessionID)
	return nil
}
