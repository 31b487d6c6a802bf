package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roadside-lab/rsu/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Beacon listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Beacon UDP port (overrides config)")
	serveCmd.Flags().IntVar(&serveAPIPort, "api-port", 0, "HTTP API port (overrides config)")
	serveCmd.Flags().BoolVar(&serveIdle, "idle", false, "Start idle; begin listening on POST /api/session/start")
	serveCmd.Flags().BoolVar(&serveConsole, "console", false, "Print peer status to the terminal")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost    string
	servePort    int
	serveAPIPort int
	serveIdle    bool
	serveConsole bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the roadside unit",
	Long: `Listen for beacons on UDP (default 0.0.0.0:5000) and serve the HTTP API
(default 127.0.0.1:8088).`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	// Override config from flags
	if serveHost != "" {
		cfg.Transport.Host = serveHost
	}
	if servePort > 0 {
		cfg.Transport.Port = servePort
	}
	if serveAPIPort > 0 {
		cfg.API.Port = serveAPIPort
	}
	if serveIdle {
		cfg.Transport.AutoStart = false
	}

	d, err := daemon.NewWithConfig(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	if serveConsole {
		d.AddPresenter(newConsole(os.Stdout, time.Second))
	}

	return d.Serve(context.Background())
}
