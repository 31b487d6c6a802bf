package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roadside-lab/rsu/internal/app/beacon"
)

// ─── Progress Bar ───────────────────────────────────────────────────────────
// Terminal progress for the beacon transmitter.
// Bounded:   [=========>..........]  42% | seq 42/100 | sent 40 skipped 2 | ETA 5s
// Unbounded: seq 42 | sent 40 skipped 2 | 9.8 pkt/s

const barWidth = 30 // Characters for the progress bar

type progressBar struct {
	out     io.Writer
	started time.Time
	total   int
	now     func() time.Time
}

func newProgressBar(out io.Writer, total int) *progressBar {
	return &progressBar{out: out, started: time.Now(), total: total, now: time.Now}
}

// callback is compatible with beacon.Config.Progress.
func (p *progressBar) callback(st beacon.Stats) {
	now := p.now()
	if p.total <= 0 {
		p.renderSimple(st, now)
		return
	}
	p.renderBar(st, now)
}

// done terminates the progress line.
func (p *progressBar) done(st beacon.Stats) {
	clearLine(p.out)
	fmt.Fprintf(p.out, "[done] sent %d skipped %d (last seq %d) in %s\n",
		st.Sent, st.Skipped, st.LastSeq, p.now().Sub(p.started).Round(time.Millisecond))
}

func (p *progressBar) renderSimple(st beacon.Stats, now time.Time) {
	clearLine(p.out)
	fmt.Fprintf(p.out, "  seq %d | sent %d skipped %d | %s",
		st.LastSeq, st.Sent, st.Skipped, p.rate(st, now))
}

func (p *progressBar) renderBar(st beacon.Stats, now time.Time) {
	pct := float64(st.LastSeq) / float64(p.total) * 100
	if pct > 100 {
		pct = 100
	}

	// Build the bar: [=======>............]
	filled := int(pct / 100 * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	empty := barWidth - filled

	var bar string
	if filled == barWidth {
		bar = strings.Repeat("=", filled)
	} else if filled > 0 {
		bar = strings.Repeat("=", filled-1) + ">" + strings.Repeat(".", empty)
	} else {
		bar = strings.Repeat(".", barWidth)
	}

	clearLine(p.out)
	fmt.Fprintf(p.out, "  [%s] %3.0f%% | seq %d/%d | sent %d skipped %d | %s",
		bar, pct, st.LastSeq, p.total, st.Sent, st.Skipped, p.eta(pct, now))
}

func (p *progressBar) rate(st beacon.Stats, now time.Time) string {
	elapsed := now.Sub(p.started).Seconds()
	if elapsed < 0.5 {
		return "-- pkt/s"
	}
	return fmt.Sprintf("%.1f pkt/s", float64(st.Sent)/elapsed)
}

func (p *progressBar) eta(pct float64, now time.Time) string {
	if pct <= 0 || pct >= 100 {
		return "ETA --"
	}

	elapsed := now.Sub(p.started).Seconds()
	if elapsed < 1 {
		return "ETA --"
	}

	totalEstimated := elapsed / (pct / 100)
	remaining := totalEstimated - elapsed

	if remaining < 0 {
		remaining = 0
	}

	if remaining < 60 {
		return fmt.Sprintf("ETA %ds", int(remaining))
	}
	if remaining < 3600 {
		return fmt.Sprintf("ETA %dm%ds", int(remaining)/60, int(remaining)%60)
	}
	return fmt.Sprintf("ETA %dh%dm", int(remaining)/3600, (int(remaining)%3600)/60)
}

func clearLine(out io.Writer) {
	fmt.Fprintf(out, "\r\033[K")
}
