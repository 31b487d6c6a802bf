package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/roadside-lab/rsu/internal/app/beacon"
	"github.com/roadside-lab/rsu/internal/app/ingest"
	"github.com/roadside-lab/rsu/internal/daemon"
	"github.com/roadside-lab/rsu/internal/domain"
)

func peerView(label string, warn domain.WarningLevel) domain.PeerView {
	lat := 3.5
	return domain.PeerView{
		Line:          label + " rx=1",
		Label:         label,
		PeerID:        strings.ToLower(label),
		Received:      10,
		Lost:          2,
		PDR:           10.0 / 12.0,
		Nearest:       &domain.Nearest{Label: "Peer-9", DistanceM: 7.25},
		LastLatencyMs: &lat,
		Warning:       warn,
	}
}

// ─── Console ────────────────────────────────────────────────────────────────

func TestConsole_Throttles(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf, time.Second)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	snap := domain.Snapshot{
		Status:    domain.Status{State: domain.StateListening, SessionID: "0123456789abcdef"},
		Peers:     []domain.PeerView{peerView("Peer-1", domain.WarningDanger)},
		Aggregate: domain.Aggregate{SummaryText: domain.NoSummaryText, Overall: domain.WarningDanger},
		At:        now,
	}

	c.Present(snap)
	first := buf.String()
	if !strings.Contains(first, "session 01234567 ") || !strings.Contains(first, "overall DANGER") {
		t.Errorf("header = %q", first)
	}
	if !strings.Contains(first, "   Peer-1 rx=1\n") {
		t.Errorf("peer line missing: %q", first)
	}

	// Same state within the interval: suppressed
	now = now.Add(200 * time.Millisecond)
	c.Present(snap)
	if buf.String() != first {
		t.Error("console should not redraw within the interval")
	}

	// State change: always shown
	snap.Status = domain.Status{State: domain.StateIdle, SessionID: "0123456789abcdef", Terminal: "receive: boom"}
	c.Present(snap)
	if !strings.Contains(buf.String(), "transport failed: receive: boom") {
		t.Errorf("terminal error not shown: %q", buf.String())
	}
}

// ─── Status ─────────────────────────────────────────────────────────────────

func TestRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	info := ingest.Info{State: domain.StateListening, SessionID: "s-1", BoundAddr: "0.0.0.0:5000"}
	snap := domain.Snapshot{
		Peers:     []domain.PeerView{peerView("Peer-1", domain.WarningWarn)},
		Aggregate: domain.Aggregate{SummaryText: "[50 pkts] PDR=0.833 avg_latency=3.50 ms peers=1", Overall: domain.WarningWarn},
	}
	if err := renderStatus(&buf, info, snap); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"State:   listening",
		"Listen:  0.0.0.0:5000",
		"Summary: [50 pkts]",
		"Warning: WARN",
		"PEER", "Peer-1", "0.833", "Peer-9", "7.25 m", "3.50 ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStatus_NoPeers(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, ingest.Info{State: domain.StateIdle}, domain.Snapshot{
		Aggregate: domain.Aggregate{SummaryText: domain.NoSummaryText},
	})
	if !strings.Contains(buf.String(), "No peers seen yet.") {
		t.Errorf("output = %q", buf.String())
	}
}

// ─── API client ─────────────────────────────────────────────────────────────

func TestAPIClient_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/status":
			w.Write([]byte(`{"state":"listening","session_id":"abc"}`))
		case "/api/session/stop":
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":{"message":"not listening","type":"error"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := &apiClient{base: srv.URL, http: srv.Client()}

	var info ingest.Info
	if err := c.call(http.MethodGet, "/api/status", &info); err != nil {
		t.Fatalf("call: %v", err)
	}
	if info.State != domain.StateListening || info.SessionID != "abc" {
		t.Errorf("info = %+v", info)
	}

	err := c.call(http.MethodPost, "/api/session/stop", nil)
	if err == nil || err.Error() != "not listening" {
		t.Errorf("err = %v, want server message", err)
	}

	if err := c.call(http.MethodGet, "/nope", nil); err == nil {
		t.Error("404 should be an error")
	}
}

func TestAPIClient_Unreachable(t *testing.T) {
	c := &apiClient{base: "http://127.0.0.1:1", http: &http.Client{Timeout: time.Second}}
	err := c.call(http.MethodGet, "/api/status", nil)
	if err == nil || !strings.Contains(err.Error(), "rsu serve") {
		t.Errorf("err = %v", err)
	}
}

// ─── Beacon ─────────────────────────────────────────────────────────────────

func TestBeaconConfig_FlagsOverrideConfig(t *testing.T) {
	t.Setenv("RSU_HOME", t.TempDir())
	saved := beaconFlags
	t.Cleanup(func() { beaconFlags = saved })

	cfg := daemon.DefaultConfig()
	cfg.Beacon.PeerID = "from-config"

	r := beaconConfig(cfg)
	if r.id != "from-config" || r.target != "127.0.0.1:5000" || r.interval != 100*time.Millisecond || r.format != "json" {
		t.Errorf("defaults = %+v", r)
	}

	beaconFlags.id = "car-7"
	beaconFlags.target = "10.0.0.1:6000"
	beaconFlags.format = "msgpack"
	beaconFlags.interval = 250 * time.Millisecond
	r = beaconConfig(cfg)
	if r.id != "car-7" || r.target != "10.0.0.1:6000" || r.format != "msgpack" || r.interval != 250*time.Millisecond {
		t.Errorf("overridden = %+v", r)
	}

	beaconFlags.id = ""
	cfg.Beacon.PeerID = ""
	if r := beaconConfig(cfg); r.id == "" {
		t.Error("peer id should fall back to the hostname")
	}
}

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressBar(&buf, 10)
	start := p.started
	p.now = func() time.Time { return start.Add(2 * time.Second) }

	p.callback(beacon.Stats{Sent: 4, Skipped: 1, LastSeq: 5})
	out := buf.String()
	if !strings.Contains(out, " 50% | seq 5/10 | sent 4 skipped 1 | ETA 2s") {
		t.Errorf("bar = %q", out)
	}
	if !strings.Contains(out, "[==============>...............]") {
		t.Errorf("bar shape = %q", out)
	}

	buf.Reset()
	p.done(beacon.Stats{Sent: 9, Skipped: 1, LastSeq: 10})
	if !strings.Contains(buf.String(), "[done] sent 9 skipped 1 (last seq 10)") {
		t.Errorf("done = %q", buf.String())
	}
}

func TestProgressBar_Unbounded(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressBar(&buf, 0)
	start := p.started
	p.now = func() time.Time { return start.Add(2 * time.Second) }

	p.callback(beacon.Stats{Sent: 20, LastSeq: 20})
	if !strings.Contains(buf.String(), "seq 20 | sent 20 skipped 0 | 10.0 pkt/s") {
		t.Errorf("line = %q", buf.String())
	}
}
