// Package domain holds the roadside unit's pure types. It imports nothing
// from infrastructure.
//
// A peer is a mobile node whose beacons reach the roadside unit.
package domain

import "time"

// Nearest is the result of a proximity scan for one peer.
type Nearest struct {
	Label      string  `json:"label"`
	DistanceM  float64 `json:"distance_m"`
	BearingDeg float64 `json:"bearing_deg"`
}

// PeerStats is the per-peer delivery and proximity record.
// It is owned by the ingestion worker; everything else sees clones.
type PeerStats struct {
	ID    string
	Label string

	LastSeq  int64
	Received uint64
	Lost     uint64 // never decreases

	LatencySumMs  float64
	LatencyCount  uint64
	LastLatencyMs *float64

	Position   *LatLon
	Speed      float64
	Heading    float64
	Accuracy   float64
	LastRxTime time.Time

	Nearest *Nearest
	Warning WarningLevel
}

// PDR returns the packet delivery ratio, 1.0 when nothing is accounted yet.
func (p *PeerStats) PDR() float64 {
	total := p.Received + p.Lost
	if total == 0 {
		return 1.0
	}
	return float64(p.Received) / float64(total)
}

// MeanLatencyMs returns the mean of the collected latency samples, 0 if none.
func (p *PeerStats) MeanLatencyMs() float64 {
	if p.LatencyCount == 0 {
		return 0
	}
	return p.LatencySumMs / float64(p.LatencyCount)
}

// HasPosition reports whether the peer has ever reported coordinates.
func (p *PeerStats) HasPosition() bool {
	return p.Position != nil
}

// ResetProximity clears the proximity result ahead of a recomputation.
func (p *PeerStats) ResetProximity() {
	p.Nearest = nil
	p.Warning = WarningUnknown
}

// Clone returns a deep copy safe to hand to another goroutine.
func (p *PeerStats) Clone() PeerStats {
	c := *p
	if p.LastLatencyMs != nil {
		v := *p.LastLatencyMs
		c.LastLatencyMs = &v
	}
	if p.Position != nil {
		v := *p.Position
		c.Position = &v
	}
	if p.Nearest != nil {
		v := *p.Nearest
		c.Nearest = &v
	}
	return c
}
