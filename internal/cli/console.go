package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/roadside-lab/rsu/internal/domain"
)

// console is a terminal presenter. It redraws at most once per interval,
// except that state changes and terminal errors are always shown.
type console struct {
	mu       sync.Mutex
	out      io.Writer
	interval time.Duration
	now      func() time.Time
	last     time.Time
	state    domain.LoopState
	session  string
}

func newConsole(out io.Writer, interval time.Duration) *console {
	return &console{out: out, interval: interval, now: time.Now}
}

// Present renders the snapshot when due.
func (c *console) Present(snap domain.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := snap.Status.State != c.state || snap.Status.SessionID != c.session || snap.Status.Terminal != ""
	now := c.now()
	if !changed && now.Sub(c.last) < c.interval {
		return
	}
	c.last = now
	c.state = snap.Status.State
	c.session = snap.Status.SessionID
	c.render(snap)
}

func (c *console) render(snap domain.Snapshot) {
	sid := snap.Status.SessionID
	if len(sid) > 8 {
		sid = sid[:8]
	}
	fmt.Fprintf(c.out, "── %s [%s] session %s ── %s ── overall %s\n",
		snap.At.Format("15:04:05"), snap.Status.State, sid,
		snap.Aggregate.SummaryText, snap.Aggregate.Overall)
	if snap.Status.Terminal != "" {
		fmt.Fprintf(c.out, "   transport failed: %s\n", snap.Status.Terminal)
	}
	for _, p := range snap.Peers {
		fmt.Fprintf(c.out, "   %s\n", p.Line)
	}
}
