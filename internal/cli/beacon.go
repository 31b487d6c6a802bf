package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roadside-lab/rsu/internal/app/beacon"
	"github.com/roadside-lab/rsu/internal/daemon"
	"github.com/roadside-lab/rsu/internal/domain"
	"github.com/roadside-lab/rsu/internal/infra/codec"
	"github.com/roadside-lab/rsu/internal/infra/position"
	"github.com/roadside-lab/rsu/internal/infra/transport"
)

func init() {
	f := beaconCmd.Flags()
	f.StringVar(&beaconFlags.id, "id", "", "Peer identifier (default: hostname)")
	f.StringVar(&beaconFlags.target, "target", "", "Roadside unit address host:port (overrides config)")
	f.DurationVar(&beaconFlags.interval, "interval", 0, "Time between beacons (overrides config)")
	f.IntVar(&beaconFlags.count, "count", 0, "Number of sequence numbers to consume, 0 = until interrupted")
	f.Float64Var(&beaconFlags.lat, "lat", 0, "Start latitude in degrees")
	f.Float64Var(&beaconFlags.lon, "lon", 0, "Start longitude in degrees")
	f.Float64Var(&beaconFlags.speed, "speed", 0, "Speed in m/s; non-zero moves along --heading")
	f.Float64Var(&beaconFlags.heading, "heading", 0, "Heading in degrees from north")
	f.Float64Var(&beaconFlags.acc, "acc", 0, "Reported position accuracy in meters")
	f.StringVar(&beaconFlags.format, "format", "", "Wire format: json or msgpack (overrides config)")
	f.IntVar(&beaconFlags.skipEvery, "skip-every", 0, "Skip every n-th sequence number to simulate loss")
	f.BoolVar(&beaconFlags.quiet, "quiet", false, "No progress output")
	rootCmd.AddCommand(beaconCmd)
}

var beaconFlags struct {
	id, target, format string
	interval           time.Duration
	count, skipEvery   int
	lat, lon           float64
	speed, heading     float64
	acc                float64
	quiet              bool
}

var beaconCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Transmit position beacons to a roadside unit (peer role)",
	Example: `  rsu beacon --id car-7 --lat 45.0703 --lon 7.6869 --count 200
  rsu beacon --speed 13.9 --heading 90 --format msgpack --skip-every 10`,
	RunE: runBeacon,
}

func runBeacon(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	bc := beaconConfig(cfg)

	format, err := codec.ParseFormat(bc.format)
	if err != nil {
		return err
	}

	sender, err := transport.Dial(bc.target)
	if err != nil {
		return err
	}
	defer sender.Close()

	start := domain.Fix{
		Position: domain.LatLon{Lat: beaconFlags.lat, Lon: beaconFlags.lon},
		Speed:    beaconFlags.speed,
		Heading:  beaconFlags.heading,
		Accuracy: beaconFlags.acc,
	}
	txCfg := beacon.Config{
		PeerID:    bc.id,
		Interval:  bc.interval,
		Count:     beaconFlags.count,
		Format:    format,
		SkipEvery: beaconFlags.skipEvery,
	}
	var bar *progressBar
	if !beaconFlags.quiet {
		bar = newProgressBar(os.Stderr, beaconFlags.count)
		txCfg.Progress = bar.callback
	}

	tx, err := beacon.NewTransmitter(txCfg, position.For(start, bc.interval), sender)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "%s -> %s every %s (%s)\n", bc.id, bc.target, bc.interval, format)
	st, err := tx.Run(ctx)
	if bar != nil {
		bar.done(st)
	}
	return err
}

// resolvedBeacon is the transmitter setup after flags override config.
type resolvedBeacon struct {
	id, target, format string
	interval           time.Duration
}

func beaconConfig(cfg daemon.Config) resolvedBeacon {
	r := resolvedBeacon{
		id:       cfg.Beacon.PeerID,
		target:   cfg.Beacon.Target,
		format:   cfg.Beacon.Format,
		interval: cfg.BeaconInterval(),
	}
	if beaconFlags.id != "" {
		r.id = beaconFlags.id
	}
	if r.id == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			r.id = host
		} else {
			r.id = "peer"
		}
	}
	if beaconFlags.target != "" {
		r.target = beaconFlags.target
	}
	if beaconFlags.format != "" {
		r.format = beaconFlags.format
	}
	if beaconFlags.interval > 0 {
		r.interval = beaconFlags.interval
	}
	return r
}
