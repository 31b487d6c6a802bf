// Package position provides local position fixes for the peer-role
// transmitter: a fixed point, or a simulated straight-line track.
package position

import (
	"context"
	"sync"
	"time"

	"github.com/roadside-lab/rsu/internal/domain"
	"github.com/roadside-lab/rsu/internal/infra/geo"
)

// Static always reports the same fix.
type Static struct {
	Fix domain.Fix
}

// Next returns the fixed position.
func (s Static) Next(ctx context.Context) (domain.Fix, error) {
	if err := ctx.Err(); err != nil {
		return domain.Fix{}, err
	}
	return s.Fix, nil
}

// Track moves along a constant heading at the fix's speed. Each call to Next
// returns the current fix and advances the position by speed × step.
type Track struct {
	mu   sync.Mutex
	cur  domain.Fix
	step time.Duration
}

// NewTrack starts a track at start, advancing one step per Next.
func NewTrack(start domain.Fix, step time.Duration) *Track {
	return &Track{cur: start, step: step}
}

// Next returns the current fix and moves the track forward.
func (t *Track) Next(ctx context.Context) (domain.Fix, error) {
	if err := ctx.Err(); err != nil {
		return domain.Fix{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	fix := t.cur
	if dist := t.cur.Speed * t.step.Seconds(); dist > 0 {
		t.cur.Position = geo.Destination(t.cur.Position, t.cur.Heading, dist)
	}
	return fix, nil
}

// For picks a Track when the fix is moving and a Static otherwise.
func For(start domain.Fix, step time.Duration) domain.PositionSource {
	if start.Speed > 0 && step > 0 {
		return NewTrack(start, step)
	}
	return Static{Fix: start}
}
