// Package beacon implements the peer role: a periodic transmitter of
// position beacons towards a roadside unit.
package beacon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/roadside-lab/rsu/internal/domain"
	"github.com/roadside-lab/rsu/internal/infra/codec"
)

// Sender delivers one encoded datagram.
type Sender interface {
	Send(payload []byte) error
}

// Config controls a transmission run.
type Config struct {
	PeerID    string
	Interval  time.Duration
	Count     int          // 0 sends until the context is cancelled
	Format    codec.Format // json or msgpack
	SkipEvery int          // every n-th sequence number is consumed but not sent; 0 disables
	Progress  func(Stats)  // called after every sequence number, optional
}

// Stats reports what a run did.
type Stats struct {
	Sent    int   `json:"sent"`
	Skipped int   `json:"skipped"`
	LastSeq int64 `json:"last_seq"`
}

// Transmitter sends beacons built from a position source.
type Transmitter struct {
	cfg    Config
	source domain.PositionSource
	out    Sender
	now    func() time.Time
}

// NewTransmitter returns a transmitter. Sequence numbers start at 1.
func NewTransmitter(cfg Config, source domain.PositionSource, out Sender) (*Transmitter, error) {
	if cfg.PeerID == "" {
		return nil, errors.New("peer id is required")
	}
	if cfg.Interval <= 0 {
		return nil, domain.ErrInvalidInterval
	}
	if cfg.Format == "" {
		cfg.Format = codec.FormatJSON
	}
	if _, err := codec.ParseFormat(string(cfg.Format)); err != nil {
		return nil, err
	}
	return &Transmitter{cfg: cfg, source: source, out: out, now: time.Now}, nil
}

// Run transmits until Count sequence numbers have been consumed or ctx is
// cancelled. Cancellation is a normal end, not an error.
func (t *Transmitter) Run(ctx context.Context) (Stats, error) {
	var st Stats
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	log.Printf("[beacon] %s transmitting every %s (%s)", t.cfg.PeerID, t.cfg.Interval, t.cfg.Format)
	for seq := int64(1); t.cfg.Count == 0 || seq <= int64(t.cfg.Count); seq++ {
		if err := t.emit(ctx, seq, &st); err != nil {
			if ctx.Err() != nil {
				break
			}
			return st, err
		}
		if t.cfg.Progress != nil {
			t.cfg.Progress(st)
		}
		if t.cfg.Count != 0 && seq == int64(t.cfg.Count) {
			break
		}
		select {
		case <-ctx.Done():
			log.Printf("[beacon] %s stopped: sent=%d skipped=%d", t.cfg.PeerID, st.Sent, st.Skipped)
			return st, nil
		case <-ticker.C:
		}
	}
	log.Printf("[beacon] %s done: sent=%d skipped=%d", t.cfg.PeerID, st.Sent, st.Skipped)
	return st, nil
}

func (t *Transmitter) emit(ctx context.Context, seq int64, st *Stats) error {
	st.LastSeq = seq
	if t.cfg.SkipEvery > 0 && seq%int64(t.cfg.SkipEvery) == 0 {
		st.Skipped++
		return nil
	}

	fix, err := t.source.Next(ctx)
	if err != nil {
		return fmt.Errorf("position: %w", err)
	}
	origin := t.now().UnixMilli()
	payload, err := codec.Encode(domain.Beacon{
		PeerID:   t.cfg.PeerID,
		Seq:      seq,
		OriginMs: &origin,
		Position: fix.Position,
		Speed:    fix.Speed,
		Heading:  fix.Heading,
		Accuracy: fix.Accuracy,
	}, t.cfg.Format)
	if err != nil {
		return err
	}
	if err := t.out.Send(payload); err != nil {
		return fmt.Errorf("send seq %d: %w", seq, err)
	}
	st.Sent++
	return nil
}
