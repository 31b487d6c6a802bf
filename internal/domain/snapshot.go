package domain

import (
	"fmt"
	"time"
)

// LoopState is the ingestion loop's lifecycle state.
type LoopState string

const (
	StateIdle      LoopState = "idle"
	StateListening LoopState = "listening"
)

// NoSummaryText is shown until the first periodic summary is produced.
const NoSummaryText = "no summary yet"

// Summary is the periodic aggregate emitted every N received packets.
type Summary struct {
	TotalReceived uint64    `json:"total_received"`
	PDR           float64   `json:"pdr"`
	MeanLatencyMs float64   `json:"mean_latency_ms"`
	Peers         int       `json:"peers"`
	At            time.Time `json:"at"`
}

// Text renders the summary for display.
func (s Summary) Text() string {
	return fmt.Sprintf("[%d pkts] PDR=%.3f avg_latency=%.2f ms peers=%d",
		s.TotalReceived, s.PDR, s.MeanLatencyMs, s.Peers)
}

// Aggregate is the session-wide part of a snapshot.
type Aggregate struct {
	SummaryText   string       `json:"summary"`
	Summary       *Summary     `json:"last_summary,omitempty"`
	Overall       WarningLevel `json:"overall_warning"`
	PDR           float64      `json:"pdr"`
	MeanLatencyMs float64      `json:"mean_latency_ms"`
	Peers         int          `json:"peers"`
	TotalReceived uint64       `json:"total_received"`
	TotalLost     uint64       `json:"total_lost"`
}

// PeerView is an immutable, presentation-ready copy of one peer's stats.
type PeerView struct {
	Line          string       `json:"line"`
	Label         string       `json:"label"`
	PeerID        string       `json:"peer_id"`
	Received      uint64       `json:"received"`
	Lost          uint64       `json:"lost"`
	PDR           float64      `json:"pdr"`
	Position      *LatLon      `json:"position,omitempty"`
	Nearest       *Nearest     `json:"nearest,omitempty"`
	Speed         float64      `json:"speed"`
	Accuracy      float64      `json:"accuracy"`
	LastLatencyMs *float64     `json:"last_latency_ms,omitempty"`
	Warning       WarningLevel `json:"warning"`
	LastRxTime    time.Time    `json:"last_rx_time"`
}

// NewPeerView formats a peer for presenters.
func NewPeerView(p PeerStats) PeerView {
	return PeerView{
		Line:          FormatPeerLine(p),
		Label:         p.Label,
		PeerID:        p.ID,
		Received:      p.Received,
		Lost:          p.Lost,
		PDR:           p.PDR(),
		Position:      p.Position,
		Nearest:       p.Nearest,
		Speed:         p.Speed,
		Accuracy:      p.Accuracy,
		LastLatencyMs: p.LastLatencyMs,
		Warning:       p.Warning,
		LastRxTime:    p.LastRxTime,
	}
}

// FormatPeerLine renders the one-line presenter status for a peer.
func FormatPeerLine(p PeerStats) string {
	nearest, dist := "-", "-"
	if p.Nearest != nil {
		nearest = p.Nearest.Label
		dist = fmt.Sprintf("%.2f", p.Nearest.DistanceM)
	}
	latency := "-"
	if p.LastLatencyMs != nil {
		latency = fmt.Sprintf("%.2f", *p.LastLatencyMs)
	}
	return fmt.Sprintf("%s rx=%d lost=%d pdr=%.3f nearest=%s dist=%s speed=%.2f acc=%.2f lat=%s warn=%s",
		p.Label, p.Received, p.Lost, p.PDR(), nearest, dist, p.Speed, p.Accuracy, latency, p.Warning)
}

// Status describes the loop state carried with every snapshot.
type Status struct {
	State     LoopState `json:"state"`
	SessionID string    `json:"session_id,omitempty"`
	Terminal  string    `json:"terminal_error,omitempty"`
}

// Snapshot is the immutable value handed from the ingestion worker to
// presenters. It holds no references into live session state.
type Snapshot struct {
	Status    Status     `json:"status"`
	Peers     []PeerView `json:"peers"`
	Aggregate Aggregate  `json:"aggregate"`
	At        time.Time  `json:"at"`
}
