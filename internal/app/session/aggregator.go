package session

import (
	"time"

	"github.com/roadside-lab/rsu/internal/domain"
)

// DefaultSummaryInterval is the number of received packets between summaries.
const DefaultSummaryInterval = 50

// Totals are the session-wide sums over all peers.
type Totals struct {
	Received     uint64
	Lost         uint64
	LatencySumMs float64
	LatencyCount uint64
	Peers        int
}

// PDR returns received/(received+lost), 1.0 with no traffic.
func (t Totals) PDR() float64 {
	total := t.Received + t.Lost
	if total == 0 {
		return 1.0
	}
	return float64(t.Received) / float64(total)
}

// MeanLatencyMs returns the mean over all latency samples, 0 if none.
func (t Totals) MeanLatencyMs() float64 {
	if t.LatencyCount == 0 {
		return 0
	}
	return t.LatencySumMs / float64(t.LatencyCount)
}

// Sum folds all peers into session totals.
func Sum(peers []*domain.PeerStats) Totals {
	t := Totals{Peers: len(peers)}
	for _, p := range peers {
		t.Received += p.Received
		t.Lost += p.Lost
		t.LatencySumMs += p.LatencySumMs
		t.LatencyCount += p.LatencyCount
	}
	return t
}

// OverallWarning returns the worst warning across peers, UNKNOWN for none.
func OverallWarning(peers []*domain.PeerStats) domain.WarningLevel {
	overall := domain.WarningUnknown
	for _, p := range peers {
		overall = domain.Worse(overall, p.Warning)
	}
	return overall
}

// Aggregator decides when a periodic summary is due.
type Aggregator struct {
	interval uint64
}

// NewAggregator returns an aggregator emitting every interval packets.
// Non-positive intervals fall back to DefaultSummaryInterval.
func NewAggregator(interval int) *Aggregator {
	if interval <= 0 {
		interval = DefaultSummaryInterval
	}
	return &Aggregator{interval: uint64(interval)}
}

// Interval returns the configured summary interval.
func (a *Aggregator) Interval() int {
	return int(a.interval)
}

// Observe returns a summary exactly when the cumulative received count is a
// positive multiple of the interval.
func (a *Aggregator) Observe(t Totals, now time.Time) (domain.Summary, bool) {
	if t.Received == 0 || t.Received%a.interval != 0 {
		return domain.Summary{}, false
	}
	return domain.Summary{
		TotalReceived: t.Received,
		PDR:           t.PDR(),
		MeanLatencyMs: t.MeanLatencyMs(),
		Peers:         t.Peers,
		At:            now,
	}, true
}
