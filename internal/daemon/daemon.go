package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roadside-lab/rsu/internal/api"
	"github.com/roadside-lab/rsu/internal/app/ingest"
	"github.com/roadside-lab/rsu/internal/domain"
	"github.com/roadside-lab/rsu/internal/health"
	"github.com/roadside-lab/rsu/internal/infra/logsink"
	"github.com/roadside-lab/rsu/internal/infra/mqtt"
	"github.com/roadside-lab/rsu/internal/infra/sqlite"
)

// Daemon is the roadside unit runtime. It wires together all services.
type Daemon struct {
	Config     Config
	DB         *sqlite.DB // nil unless the sqlite sink is enabled
	Controller *ingest.Controller
	Mailbox    *ingest.Mailbox
	Hub        *api.Hub
	Server     *api.Server
	Health     *health.Checker
	MQTT       *mqtt.Publisher // set by Serve when [mqtt] is enabled

	presenters []domain.Presenter
	cancel     context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.Logging.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	d := &Daemon{Config: cfg}

	opener, err := d.sinkOpener()
	if err != nil {
		return nil, err
	}

	d.Mailbox = ingest.NewMailbox()
	d.Controller = ingest.NewController(ingest.Config{
		ListenAddr: cfg.ListenAddr(),
		BufferSize: cfg.Transport.BufferSize,
		Session:    cfg.SessionConfig(),
	}, opener, d.Mailbox)

	// API server and its presenter
	d.Hub = api.NewHub()
	d.presenters = append(d.presenters, d.Hub)
	d.Server = api.NewServer(d.Controller, d.Hub)
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}
	if d.DB != nil {
		d.Server.SetSessions(d.DB)
	}

	// Health checker
	d.Health = health.NewChecker(health.Deps{
		Transport: func() (domain.LoopState, string) {
			info := d.Controller.Info()
			return info.State, info.Terminal
		},
		LogDir: cfg.Logging.Dir,
		DB:     d.DB,
	})
	d.Server.SetChecker(d.Health)

	return d, nil
}

// sinkOpener builds the per-session log sink from [logging] format.
func (d *Daemon) sinkOpener() (domain.SinkOpener, error) {
	dir := d.Config.Logging.Dir
	csv := logsink.CSVOpener(dir, time.Now)

	openDB := func() (domain.SinkOpener, error) {
		db, err := sqlite.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		d.DB = db
		return db.Opener(time.Now), nil
	}

	switch strings.ToLower(d.Config.Logging.Format) {
	case SinkCSV:
		return csv, nil
	case SinkSQLite:
		return openDB()
	case SinkBoth:
		db, err := openDB()
		if err != nil {
			return nil, err
		}
		return logsink.TeeOpener(csv, db), nil
	case SinkNone:
		return logsink.DiscardOpener, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSink, d.Config.Logging.Format)
}

// AddPresenter registers an extra snapshot consumer. Call before Serve.
func (d *Daemon) AddPresenter(p domain.Presenter) {
	d.presenters = append(d.presenters, p)
}

// Serve runs the ingestion loop, the HTTP API and the background services
// until ctx is cancelled or a signal arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	if d.Config.MQTT.Enabled {
		pub, err := mqtt.Connect(ctx, mqtt.Config{
			Broker:   d.Config.MQTT.Broker,
			ClientID: d.mqttClientID(),
			Topic:    d.Config.MQTT.Topic,
			QoS:      byte(d.Config.MQTT.QoS),
		})
		if err != nil {
			log.Printf("[daemon] mqtt disabled: %v", err)
		} else {
			d.MQTT = pub
			d.presenters = append(d.presenters, pub)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ingest.Dispatch(gctx, d.Mailbox, d.presenters...)
		return nil
	})
	g.Go(func() error {
		d.Health.Run(gctx)
		return nil
	})

	if d.Config.Transport.AutoStart {
		// A bind failure leaves the controller idle; the API can retry.
		if err := d.Controller.Start(gctx); err != nil {
			log.Printf("[daemon] ingestion not started: %v", err)
		}
	}

	addr := d.Config.APIAddr()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // /api/live streams indefinitely
		IdleTimeout:  2 * time.Minute,
	}

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			log.Printf("[daemon] %s received, shutting down", sig)
		case <-gctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := d.Controller.Stop(); err != nil && !errors.Is(err, domain.ErrNotListening) {
			log.Printf("[daemon] stop ingestion: %v", err)
		}
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		return nil
	})

	log.Printf("[daemon] beacons on udp://%s, api on http://%s", d.Config.ListenAddr(), addr)
	if d.Config.Telemetry.Prometheus {
		log.Printf("[daemon] metrics on http://%s/metrics", addr)
	}

	err := g.Wait()
	d.closeStores()
	return err
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Controller != nil {
		_ = d.Controller.Stop()
	}
	d.closeStores()
}

func (d *Daemon) closeStores() {
	if d.MQTT != nil {
		d.MQTT.Close()
		d.MQTT = nil
	}
	if d.DB != nil {
		_ = d.DB.Close()
		d.DB = nil
	}
}

func (d *Daemon) mqttClientID() string {
	if d.Config.MQTT.ClientID != "" {
		return d.Config.MQTT.ClientID
	}
	return d.Config.Node.ID
}
