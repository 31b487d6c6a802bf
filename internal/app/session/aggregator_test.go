package session

import (
	"testing"
	"time"

	"github.com/roadside-lab/rsu/internal/domain"
)

func TestOverallWarning(t *testing.T) {
	withLevels := func(levels ...domain.WarningLevel) []*domain.PeerStats {
		peers := make([]*domain.PeerStats, len(levels))
		for i, l := range levels {
			peers[i] = &domain.PeerStats{Warning: l}
		}
		return peers
	}

	tests := []struct {
		name   string
		levels []domain.WarningLevel
		want   domain.WarningLevel
	}{
		{"no peers", nil, domain.WarningUnknown},
		{"all unknown", []domain.WarningLevel{domain.WarningUnknown, domain.WarningUnknown}, domain.WarningUnknown},
		{"safe and warn", []domain.WarningLevel{domain.WarningSafe, domain.WarningWarn}, domain.WarningWarn},
		{"one danger wins", []domain.WarningLevel{domain.WarningSafe, domain.WarningWarn, domain.WarningDanger}, domain.WarningDanger},
		{"safe beats unknown", []domain.WarningLevel{domain.WarningUnknown, domain.WarningSafe}, domain.WarningSafe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverallWarning(withLevels(tt.levels...)); got != tt.want {
				t.Errorf("OverallWarning = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSum(t *testing.T) {
	peers := []*domain.PeerStats{
		{Received: 8, Lost: 2, LatencySumMs: 100, LatencyCount: 4},
		{Received: 10, Lost: 0, LatencySumMs: 20, LatencyCount: 2},
	}
	tot := Sum(peers)
	if tot.Received != 18 || tot.Lost != 2 || tot.Peers != 2 {
		t.Errorf("Sum = %+v", tot)
	}
	if tot.PDR() != 0.9 {
		t.Errorf("PDR = %v, want 0.9", tot.PDR())
	}
	if tot.MeanLatencyMs() != 20 {
		t.Errorf("MeanLatencyMs = %v, want 20", tot.MeanLatencyMs())
	}

	var empty Totals
	if empty.PDR() != 1.0 || empty.MeanLatencyMs() != 0 {
		t.Errorf("empty totals PDR=%v mean=%v", empty.PDR(), empty.MeanLatencyMs())
	}
}

func TestAggregator_ObserveOnlyOnMultiples(t *testing.T) {
	a := NewAggregator(50)
	now := time.Now()
	for n := uint64(0); n <= 151; n++ {
		_, ok := a.Observe(Totals{Received: n, Peers: 1}, now)
		want := n > 0 && n%50 == 0
		if ok != want {
			t.Errorf("Observe(received=%d) produced=%v, want %v", n, ok, want)
		}
	}
}

func TestAggregator_SummaryContents(t *testing.T) {
	a := NewAggregator(50)
	s, ok := a.Observe(Totals{Received: 100, Lost: 25, LatencySumMs: 500, LatencyCount: 50, Peers: 4}, time.Unix(10, 0))
	if !ok {
		t.Fatal("expected summary at 100")
	}
	if s.PDR != 0.8 || s.MeanLatencyMs != 10 || s.Peers != 4 || s.TotalReceived != 100 {
		t.Errorf("summary = %+v", s)
	}
}

func TestNewAggregator_DefaultInterval(t *testing.T) {
	if got := NewAggregator(0).Interval(); got != DefaultSummaryInterval {
		t.Errorf("Interval() = %d, want %d", got, DefaultSummaryInterval)
	}
}
