// Package metrics provides Prometheus metrics for the roadside unit:
// datagram intake, delivery quality, latency and proximity warnings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Intake ─────────────────────────────────────────────────────────────────

// DatagramsReceived counts every datagram read from the transport.
var DatagramsReceived = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rsu",
	Name:      "datagrams_received_total",
	Help:      "Total datagrams read from the transport.",
})

// DecodeFailures counts dropped datagrams by reason.
var DecodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rsu",
	Name:      "decode_failures_total",
	Help:      "Datagrams dropped at decode, by reason.",
}, []string{"reason"})

// BeaconsProcessed counts beacons that went through the full pipeline.
var BeaconsProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rsu",
	Name:      "beacons_processed_total",
	Help:      "Beacons decoded and folded into session state.",
})

// ProcessingLatency tracks the time from receive to snapshot hand-off.
var ProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "rsu",
	Name:      "processing_seconds",
	Help:      "Per-datagram pipeline duration in seconds.",
	Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
})

// ─── Delivery quality ───────────────────────────────────────────────────────

// PeersTracked is the number of peers in the current session.
var PeersTracked = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "rsu",
	Name:      "peers_tracked",
	Help:      "Distinct peers seen in the current session.",
})

// PacketsLost tracks inferred lost packets per peer label.
var PacketsLost = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "rsu",
	Name:      "peer_packets_lost",
	Help:      "Cumulative packets inferred lost from sequence gaps, per peer.",
}, []string{"peer"})

// PeerPDR tracks the packet delivery ratio per peer label.
var PeerPDR = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "rsu",
	Name:      "peer_pdr",
	Help:      "Packet delivery ratio per peer.",
}, []string{"peer"})

// SessionPDR is the session-wide packet delivery ratio.
var SessionPDR = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "rsu",
	Name:      "session_pdr",
	Help:      "Session-wide packet delivery ratio.",
})

// BeaconLatency tracks one-way latency from origin timestamp to receive.
var BeaconLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "rsu",
	Name:      "beacon_latency_ms",
	Help:      "Receive time minus origin timestamp in milliseconds.",
	Buckets:   []float64{-50, 0, 5, 10, 25, 50, 100, 250, 500, 1000},
})

// ─── Proximity ──────────────────────────────────────────────────────────────

// PeerWarning is the per-peer warning level (0=UNKNOWN, 1=SAFE, 2=WARN, 3=DANGER).
var PeerWarning = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "rsu",
	Name:      "peer_warning_level",
	Help:      "Warning level per peer (0=UNKNOWN, 1=SAFE, 2=WARN, 3=DANGER).",
}, []string{"peer"})

// OverallWarning is the worst warning across all peers.
var OverallWarning = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "rsu",
	Name:      "overall_warning_level",
	Help:      "Worst warning level across peers (0=UNKNOWN, 1=SAFE, 2=WARN, 3=DANGER).",
})

// Summaries counts periodic summaries emitted.
var Summaries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rsu",
	Name:      "summaries_total",
	Help:      "Periodic summaries emitted.",
})

// ─── Session ────────────────────────────────────────────────────────────────

// Listening is 1 while a session is bound, 0 when idle.
var Listening = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "rsu",
	Name:      "listening",
	Help:      "1 while the ingestion loop is listening, 0 when idle.",
})

// SessionsStarted counts Idle to Listening transitions.
var SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rsu",
	Name:      "sessions_started_total",
	Help:      "Sessions started.",
})

// TransportFailures counts sessions ended by a transport error.
var TransportFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rsu",
	Name:      "transport_failures_total",
	Help:      "Sessions terminated by a transport failure.",
})

// SinkErrors counts failed log sink writes and flushes.
var SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rsu",
	Name:      "sink_errors_total",
	Help:      "Log sink write/flush failures by operation.",
}, []string{"op"})

// ResetSession clears per-peer series when a new session starts, since peer
// labels are reassigned from Peer-1.
func ResetSession() {
	PacketsLost.Reset()
	PeerPDR.Reset()
	PeerWarning.Reset()
	PeersTracked.Set(0)
	SessionPDR.Set(1)
	OverallWarning.Set(0)
}
