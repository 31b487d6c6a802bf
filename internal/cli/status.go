package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roadside-lab/rsu/internal/app/ingest"
	"github.com/roadside-lab/rsu/internal/domain"
)

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session status and per-peer statistics",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient()
	if err != nil {
		return err
	}

	var info ingest.Info
	if err := c.call(http.MethodGet, "/api/status", &info); err != nil {
		return err
	}
	var snap domain.Snapshot
	if err := c.call(http.MethodGet, "/api/peers", &snap); err != nil {
		return err
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return renderStatus(os.Stdout, info, snap)
}

// renderStatus prints the status header and a peer table.
func renderStatus(out io.Writer, info ingest.Info, snap domain.Snapshot) error {
	fmt.Fprintf(out, "State:   %s\n", info.State)
	if info.SessionID != "" {
		fmt.Fprintf(out, "Session: %s (started %s)\n", info.SessionID, info.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if info.BoundAddr != "" {
		fmt.Fprintf(out, "Listen:  %s\n", info.BoundAddr)
	}
	if info.Terminal != "" {
		fmt.Fprintf(out, "Error:   %s\n", info.Terminal)
	}
	fmt.Fprintf(out, "Summary: %s\n", snap.Aggregate.SummaryText)
	fmt.Fprintf(out, "Warning: %s\n\n", snap.Aggregate.Overall)

	if len(snap.Peers) == 0 {
		fmt.Fprintln(out, "No peers seen yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PEER\tID\tRX\tLOST\tPDR\tNEAREST\tDIST\tLATENCY\tWARN")
	for _, p := range snap.Peers {
		nearest, dist := "-", "-"
		if p.Nearest != nil {
			nearest = p.Nearest.Label
			dist = fmt.Sprintf("%.2f m", p.Nearest.DistanceM)
		}
		latency := "-"
		if p.LastLatencyMs != nil {
			latency = fmt.Sprintf("%.2f ms", *p.LastLatencyMs)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.3f\t%s\t%s\t%s\t%s\n",
			p.Label, p.PeerID, p.Received, p.Lost, p.PDR, nearest, dist, latency, p.Warning)
	}
	return w.Flush()
}
