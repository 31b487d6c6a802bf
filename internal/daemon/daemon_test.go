package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roadside-lab/rsu/internal/app/ingest"
	"github.com/roadside-lab/rsu/internal/domain"
	"github.com/roadside-lab/rsu/internal/infra/codec"
	"github.com/roadside-lab/rsu/internal/infra/transport"
)

func newTestConfig(t *testing.T) Config {
	t.Helper()
	t.Setenv("RSU_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Transport.Host = "127.0.0.1"
	cfg.Transport.Port = freeUDPPort(t)
	cfg.API.Port = freeTCPPort(t)
	return cfg
}

func freeTCPPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	c, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	return c.LocalAddr().(*net.UDPAddr).Port
}

func TestNewWithConfig_SinkFormats(t *testing.T) {
	tests := []struct {
		format string
		withDB bool
	}{
		{SinkCSV, false},
		{SinkSQLite, true},
		{SinkBoth, true},
		{SinkNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cfg := newTestConfig(t)
			cfg.Logging.Format = tt.format

			d, err := NewWithConfig(cfg)
			if err != nil {
				t.Fatalf("NewWithConfig() error: %v", err)
			}
			defer d.Close()

			if (d.DB != nil) != tt.withDB {
				t.Errorf("DB set = %v, want %v", d.DB != nil, tt.withDB)
			}
			if d.Controller.State() != domain.StateIdle {
				t.Errorf("controller should start idle")
			}
		})
	}
}

func TestNewWithConfig_RejectsInvalid(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Summary.Interval = -1
	if _, err := NewWithConfig(cfg); err == nil {
		t.Error("NewWithConfig() should reject an invalid config")
	}
}

// recorder is a presenter that keeps the latest snapshot.
type recorder struct {
	ch chan domain.Snapshot
}

func (r *recorder) Present(s domain.Snapshot) {
	select {
	case r.ch <- s:
	default:
	}
}

func TestServe_EndToEnd(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Logging.Format = SinkBoth
	cfg.Telemetry.Prometheus = true

	d, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	rec := &recorder{ch: make(chan domain.Snapshot, 64)}
	d.AddPresenter(rec)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Serve(ctx) }()

	base := "http://" + cfg.APIAddr()
	waitHTTP(t, base+"/health")

	var info ingest.Info
	getJSON(t, base+"/api/status", &info)
	if info.State != domain.StateListening {
		t.Fatalf("state = %q, want listening", info.State)
	}

	sender, err := transport.Dial(cfg.ListenAddr())
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()
	raw, _ := codec.Encode(domain.Beacon{PeerID: "car-a", Seq: 1, Position: domain.LatLon{Lat: 45, Lon: 7}}, codec.FormatJSON)
	if err := sender.Send(raw); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for got := false; !got; {
		select {
		case s := <-rec.ch:
			got = s.Aggregate.TotalReceived == 1
		case <-deadline:
			t.Fatal("beacon never reached the presenter")
		}
	}

	resp, err := http.Post(base+"/api/session/stop", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("stop status = %d", resp.StatusCode)
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	matches, _ := filepath.Glob(filepath.Join(cfg.Logging.Dir, "rsu_*_structured.csv"))
	if len(matches) != 1 {
		t.Errorf("structured csv files = %v, want 1", matches)
	}
	if _, err := os.Stat(filepath.Join(cfg.Logging.Dir, "records.db")); err != nil {
		t.Errorf("records.db missing: %v", err)
	}
}

func waitHTTP(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("%s never came up", url)
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(fmt.Errorf("decode %s: %w", url, err))
	}
}
