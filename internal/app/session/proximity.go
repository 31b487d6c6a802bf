package session

import (
	"math"

	"github.com/roadside-lab/rsu/internal/domain"
	"github.com/roadside-lab/rsu/internal/infra/geo"
)

// Thresholds are the classification bounds in meters. Both are inclusive
// upper bounds of their level.
type Thresholds struct {
	DangerM float64
	WarnM   float64
}

// DefaultThresholds returns the reference 8 m / 15 m bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{DangerM: 8.0, WarnM: 15.0}
}

// Classify maps a nearest-neighbor distance to a warning level.
func (t Thresholds) Classify(d float64) domain.WarningLevel {
	switch {
	case math.IsNaN(d):
		return domain.WarningUnknown
	case d <= t.DangerM:
		return domain.WarningDanger
	case d <= t.WarnM:
		return domain.WarningWarn
	default:
		return domain.WarningSafe
	}
}

// Recompute rebuilds every peer's proximity result from scratch.
//
// A peer alone with a position is SAFE with no nearest neighbor. With two or
// more positioned peers each one is matched to the closest other peer by a
// full O(n²) scan in slice order; on equal distances the first one scanned
// wins.
func Recompute(peers []*domain.PeerStats, th Thresholds) {
	positioned := make([]*domain.PeerStats, 0, len(peers))
	for _, p := range peers {
		p.ResetProximity()
		if p.HasPosition() {
			positioned = append(positioned, p)
		}
	}

	switch len(positioned) {
	case 0:
		return
	case 1:
		positioned[0].Warning = domain.WarningSafe
		return
	}

	for _, a := range positioned {
		var best *domain.PeerStats
		bestD := math.Inf(1)
		for _, b := range positioned {
			if a == b {
				continue
			}
			if d := geo.Distance(*a.Position, *b.Position); d < bestD {
				best, bestD = b, d
			}
		}
		if best == nil {
			continue
		}
		a.Nearest = &domain.Nearest{
			Label:      best.Label,
			DistanceM:  bestD,
			BearingDeg: geo.Bearing(*a.Position, *best.Position),
		}
		a.Warning = th.Classify(bestD)
	}
}
