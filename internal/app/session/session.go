// Package session holds the per-session tracking state of the roadside
// unit: peer labels, per-peer delivery stats, proximity results and the
// periodic summary. A Session is owned by exactly one goroutine; it has no
// internal locking. Everything it hands out is a copy.
package session

import (
	"time"

	"github.com/roadside-lab/rsu/internal/domain"
)

// Config parameterizes a session.
type Config struct {
	Thresholds      Thresholds
	SummaryInterval int
}

// DefaultConfig returns the reference thresholds and summary interval.
func DefaultConfig() Config {
	return Config{
		Thresholds:      DefaultThresholds(),
		SummaryInterval: DefaultSummaryInterval,
	}
}

// Session is the state of one Listening lifetime.
type Session struct {
	ID        string
	StartedAt time.Time

	cfg         Config
	registry    *Registry
	store       *Store
	agg         *Aggregator
	lastSummary *domain.Summary
}

// New returns an empty session.
func New(id string, cfg Config, now time.Time) *Session {
	return &Session{
		ID:        id,
		StartedAt: now,
		cfg:       cfg,
		registry:  NewRegistry(),
		store:     NewStore(),
		agg:       NewAggregator(cfg.SummaryInterval),
	}
}

// Outcome is what one ingested beacon produced.
type Outcome struct {
	Record  domain.BeaconRecord
	Peer    domain.PeerStats
	Totals  Totals
	Overall domain.WarningLevel
	Summary *domain.Summary // set only when this beacon triggered a summary
}

// Ingest runs one validated beacon through registry, stats, proximity and
// aggregation.
func (s *Session) Ingest(b domain.Beacon, rx time.Time) Outcome {
	label := s.registry.LabelFor(b.PeerID)
	p, latency := s.store.Update(b.PeerID, label, b, rx)

	peers := s.store.All()
	Recompute(peers, s.cfg.Thresholds)

	totals := Sum(peers)
	out := Outcome{
		Record:  domain.NewBeaconRecord(b, p.Clone(), rx, latency),
		Peer:    p.Clone(),
		Totals:  totals,
		Overall: OverallWarning(peers),
	}
	if sum, ok := s.agg.Observe(totals, rx); ok {
		s.lastSummary = &sum
		cp := sum
		out.Summary = &cp
	}
	return out
}

// Peers returns copies of all peer records in first-seen order.
func (s *Session) Peers() []domain.PeerStats {
	return s.store.Clones()
}

// Peer returns a copy of one peer's record.
func (s *Session) Peer(id string) (domain.PeerStats, bool) {
	p, ok := s.store.Get(id)
	if !ok {
		return domain.PeerStats{}, false
	}
	return p.Clone(), true
}

// LastSummary returns the most recent summary, nil before the first one.
func (s *Session) LastSummary() *domain.Summary {
	if s.lastSummary == nil {
		return nil
	}
	cp := *s.lastSummary
	return &cp
}

// Aggregate returns the session-wide view used by presenters.
func (s *Session) Aggregate() domain.Aggregate {
	peers := s.store.All()
	t := Sum(peers)
	agg := domain.Aggregate{
		SummaryText:   domain.NoSummaryText,
		Summary:       s.LastSummary(),
		Overall:       OverallWarning(peers),
		PDR:           t.PDR(),
		MeanLatencyMs: t.MeanLatencyMs(),
		Peers:         t.Peers,
		TotalReceived: t.Received,
		TotalLost:     t.Lost,
	}
	if agg.Summary != nil {
		agg.SummaryText = agg.Summary.Text()
	}
	return agg
}

// Snapshot builds the immutable presenter view of the session.
func (s *Session) Snapshot(status domain.Status, now time.Time) domain.Snapshot {
	clones := s.store.Clones()
	views := make([]domain.PeerView, len(clones))
	for i, p := range clones {
		views[i] = domain.NewPeerView(p)
	}
	status.SessionID = s.ID
	return domain.Snapshot{
		Status:    status,
		Peers:     views,
		Aggregate: s.Aggregate(),
		At:        now,
	}
}
