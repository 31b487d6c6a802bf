package session

import (
	"math"
	"time"

	"github.com/roadside-lab/rsu/internal/domain"
)

// Store owns one PeerStats per peer id and remembers first-seen order, which
// is also the scan order of the proximity engine.
type Store struct {
	byID  map[string]*domain.PeerStats
	order []*domain.PeerStats
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]*domain.PeerStats)}
}

// Update folds one beacon into the peer's record, creating it on first
// contact. It returns the live record and this beacon's latency sample
// (nil when the beacon carried no origin timestamp).
func (s *Store) Update(id, label string, b domain.Beacon, rx time.Time) (*domain.PeerStats, *float64) {
	p, ok := s.byID[id]
	if !ok {
		p = &domain.PeerStats{ID: id, Label: label, LastSeq: b.Seq}
		s.byID[id] = p
		s.order = append(s.order, p)
	} else if b.Seq > p.LastSeq {
		// Only forward gaps count. Duplicates and reordering just move
		// LastSeq. The gap is taken in uint64 so extreme sequence values
		// cannot overflow, and Lost saturates instead of wrapping.
		gap := uint64(b.Seq) - uint64(p.LastSeq) - 1
		if gap > math.MaxUint64-p.Lost {
			p.Lost = math.MaxUint64
		} else {
			p.Lost += gap
		}
	}
	p.LastSeq = b.Seq
	p.Received++

	var latency *float64
	if b.OriginMs != nil {
		// Clock skew can make this negative; it is kept as-is.
		ms := float64(rx.UnixMilli() - *b.OriginMs)
		latency = &ms
		p.LatencySumMs += ms
		p.LatencyCount++
		last := ms
		p.LastLatencyMs = &last
	}

	pos := b.Position
	p.Position = &pos
	p.Speed = b.Speed
	p.Heading = b.Heading
	p.Accuracy = b.Accuracy
	p.LastRxTime = rx
	return p, latency
}

// Get returns the live record for id.
func (s *Store) Get(id string) (*domain.PeerStats, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// All returns the live records in first-seen order. Callers on the worker
// goroutine may mutate them; nobody else may hold them.
func (s *Store) All() []*domain.PeerStats {
	return s.order
}

// Len returns the number of tracked peers.
func (s *Store) Len() int {
	return len(s.order)
}

// Clones returns deep copies of every record in first-seen order.
func (s *Store) Clones() []domain.PeerStats {
	out := make([]domain.PeerStats, len(s.order))
	for i, p := range s.order {
		out[i] = p.Clone()
	}
	return out
}
