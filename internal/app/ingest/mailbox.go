package ingest

import (
	"context"

	"github.com/roadside-lab/rsu/internal/domain"
)

// Mailbox hands snapshots from the ingestion worker to the presentation
// side. It holds at most one snapshot; a newer one replaces an undelivered
// older one, so the worker never blocks on a slow presenter.
type Mailbox struct {
	ch chan domain.Snapshot
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan domain.Snapshot, 1)}
}

// Put stores snap, evicting any undelivered snapshot.
func (m *Mailbox) Put(snap domain.Snapshot) {
	for {
		select {
		case m.ch <- snap:
			return
		default:
		}
		select {
		case <-m.ch:
		default:
		}
	}
}

// C returns the receive side.
func (m *Mailbox) C() <-chan domain.Snapshot {
	return m.ch
}

// Dispatch delivers snapshots to every presenter until ctx is done.
func Dispatch(ctx context.Context, m *Mailbox, presenters ...domain.Presenter) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-m.ch:
			for _, p := range presenters {
				p.Present(snap)
			}
		}
	}
}
