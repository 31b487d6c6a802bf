// Package ingest runs the roadside unit's ingestion loop: a single worker
// goroutine per session that receives datagrams, decodes them, folds them
// into session state and hands immutable snapshots to presenters.
//
// The controller has two states. Idle: no socket, session state from the
// last run (if any) kept for inspection. Listening: socket bound, fresh
// session state, worker running. Start and Stop are the only transitions,
// plus the worker's own fall back to Idle on a transport failure.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roadside-lab/rsu/internal/app/session"
	"github.com/roadside-lab/rsu/internal/domain"
	"github.com/roadside-lab/rsu/internal/infra/codec"
	"github.com/roadside-lab/rsu/internal/infra/logsink"
	"github.com/roadside-lab/rsu/internal/infra/metrics"
	"github.com/roadside-lab/rsu/internal/infra/transport"
)

// Config configures the ingestion loop.
type Config struct {
	ListenAddr string
	BufferSize int
	Session    session.Config
}

// DefaultConfig listens on the well-known beacon port on all interfaces.
func DefaultConfig() Config {
	return Config{
		ListenAddr: transport.Addr("0.0.0.0", transport.DefaultPort),
		BufferSize: transport.DefaultBufferSize,
		Session:    session.DefaultConfig(),
	}
}

// Info is the controller's externally visible status.
type Info struct {
	State      domain.LoopState `json:"state"`
	SessionID  string           `json:"session_id,omitempty"`
	ListenAddr string           `json:"listen_addr"`
	BoundAddr  string           `json:"bound_addr,omitempty"`
	StartedAt  time.Time        `json:"started_at,omitempty"`
	Terminal   string           `json:"terminal_error,omitempty"`
}

// run is one Listening lifetime.
type run struct {
	sess  *session.Session
	conn  net.PacketConn
	sink  domain.LogSink
	alive atomic.Bool
	done  chan struct{}

	release func() bool // drops the context watch
}

// Controller owns the ingestion lifecycle.
type Controller struct {
	cfg      Config
	bind     transport.Binder
	openSink domain.SinkOpener
	out      *Mailbox

	now   func() time.Time
	newID func() string

	lifecycle sync.Mutex // serializes Start/Stop

	mu       sync.Mutex // guards the fields below
	state    domain.LoopState
	current  *run
	last     *session.Session
	bound    string
	terminal string
}

// Option customizes a Controller.
type Option func(*Controller)

// WithBinder replaces the UDP binder (tests).
func WithBinder(b transport.Binder) Option {
	return func(c *Controller) { c.bind = b }
}

// WithClock replaces the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithSessionIDs replaces the session id generator (tests).
func WithSessionIDs(next func() string) Option {
	return func(c *Controller) { c.newID = next }
}

// NewController returns an Idle controller.
func NewController(cfg Config, openSink domain.SinkOpener, out *Mailbox, opts ...Option) *Controller {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = transport.DefaultBufferSize
	}
	if openSink == nil {
		openSink = logsink.DiscardOpener
	}
	c := &Controller{
		cfg:      cfg,
		bind:     transport.ListenUDP,
		openSink: openSink,
		out:      out,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		state:    domain.StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start transitions to Listening. Any running session is stopped first and
// its state discarded; the new session starts empty. On bind failure the
// controller stays Idle and the error is returned. Cancelling ctx stops the
// session.
func (c *Controller) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if r := c.detach(); r != nil {
		c.stopRun(r)
	}

	id := c.newID()
	now := c.now()
	sess := session.New(id, c.cfg.Session, now)

	sink, err := c.openSink(id)
	if err != nil {
		log.Printf("[ingest] log sink unavailable, records for session %s are not kept: %v", id, err)
		metrics.SinkErrors.WithLabelValues("open").Inc()
		sink = logsink.Discard{}
	}

	conn, err := c.bind(c.cfg.ListenAddr)
	if err != nil {
		closeSink(sink)
		c.mu.Lock()
		c.last = sess
		c.state = domain.StateIdle
		c.bound = ""
		c.terminal = err.Error()
		c.mu.Unlock()
		c.publish(sess, domain.Status{State: domain.StateIdle, Terminal: err.Error()})
		return err
	}

	r := &run{sess: sess, conn: conn, sink: sink, done: make(chan struct{})}
	r.alive.Store(true)

	c.mu.Lock()
	c.current = r
	c.last = sess
	c.state = domain.StateListening
	c.bound = conn.LocalAddr().String()
	c.terminal = ""
	c.mu.Unlock()

	metrics.ResetSession()
	metrics.SessionsStarted.Inc()
	metrics.Listening.Set(1)
	log.Printf("[ingest] session %s listening on %s", id, conn.LocalAddr())

	c.publish(sess, domain.Status{State: domain.StateListening})
	r.release = context.AfterFunc(ctx, func() {
		c.lifecycle.Lock()
		defer c.lifecycle.Unlock()
		if c.detachRun(r) {
			c.stopRun(r)
		}
	})
	go c.worker(r)
	return nil
}

// Stop transitions to Idle: the socket is closed, the sink flushed and
// closed. Session state stays readable until the next Start.
func (c *Controller) Stop() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	r := c.detach()
	if r == nil {
		return domain.ErrNotListening
	}
	c.stopRun(r)
	return nil
}

// detach removes the current run, if any, and marks the controller Idle.
func (c *Controller) detach() *run {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.current
	if r == nil {
		return nil
	}
	c.current = nil
	c.state = domain.StateIdle
	c.bound = ""
	return r
}

// detachRun is detach for a specific run; it reports whether r was current.
func (c *Controller) detachRun(r *run) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != r {
		return false
	}
	c.current = nil
	c.state = domain.StateIdle
	c.bound = ""
	return true
}

// stopRun clears the liveness flag, closes the socket to unblock the
// receive, and waits for the worker's teardown.
func (c *Controller) stopRun(r *run) {
	r.alive.Store(false)
	_ = r.conn.Close()
	<-r.done
}

// Info returns the current status.
func (c *Controller) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := Info{
		State:      c.state,
		ListenAddr: c.cfg.ListenAddr,
		BoundAddr:  c.bound,
		Terminal:   c.terminal,
	}
	if c.last != nil {
		info.SessionID = c.last.ID
		info.StartedAt = c.last.StartedAt
	}
	return info
}

// State returns Idle or Listening.
func (c *Controller) State() domain.LoopState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the current session's worker has exited. With no
// session listening it returns an already closed channel.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.current.done
}

// ─── Worker ─────────────────────────────────────────────────────────────────

func (c *Controller) worker(r *run) {
	var fatal error
	defer func() {
		r.release()
		_ = r.conn.Close()
		closeSink(r.sink)
		c.finish(r, fatal)
		close(r.done)
	}()

	buf := make([]byte, c.cfg.BufferSize)
	for r.alive.Load() {
		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			if !r.alive.Load() {
				return
			}
			if transport.IsClosed(err) {
				fatal = fmt.Errorf("%w: %v", domain.ErrTransportClosed, err)
			} else {
				fatal = fmt.Errorf("receive: %w", err)
			}
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		c.process(r, c.now(), from, payload)
	}
}

// process runs one datagram through the pipeline.
func (c *Controller) process(r *run, rx time.Time, from net.Addr, payload []byte) {
	start := time.Now()
	metrics.DatagramsReceived.Inc()

	sender := ""
	if from != nil {
		sender = from.String()
	}
	sinkErr("raw", r.sink.WriteRaw(domain.RawRecord{RxTime: rx, Sender: sender, Payload: payload}))

	b, err := codec.Decode(payload)
	if err != nil {
		metrics.DecodeFailures.WithLabelValues(dropReason(err)).Inc()
		log.Printf("[ingest] dropped datagram from %s: %v", sender, err)
		return
	}

	out := r.sess.Ingest(b, rx)
	sinkErr("record", r.sink.WriteRecord(out.Record))
	metrics.BeaconsProcessed.Inc()
	if out.Record.LatencyMs != nil {
		metrics.BeaconLatency.Observe(*out.Record.LatencyMs)
	}
	if out.Summary != nil {
		metrics.Summaries.Inc()
		log.Printf("[ingest] summary %s", out.Summary.Text())
		sinkErr("flush", r.sink.Flush())
	}

	snap := r.sess.Snapshot(domain.Status{State: domain.StateListening}, rx)
	observe(snap)
	if c.out != nil {
		c.out.Put(snap)
	}
	metrics.ProcessingLatency.Observe(time.Since(start).Seconds())
}

// finish runs on the worker after the socket and sink are closed.
func (c *Controller) finish(r *run, fatal error) {
	status := domain.Status{State: domain.StateIdle}

	c.mu.Lock()
	if c.current == r {
		c.current = nil
		c.state = domain.StateIdle
		c.bound = ""
	}
	if fatal != nil {
		c.terminal = fatal.Error()
		status.Terminal = fatal.Error()
	}
	c.mu.Unlock()

	metrics.Listening.Set(0)
	if fatal != nil {
		metrics.TransportFailures.Inc()
		log.Printf("[ingest] session %s ended on transport failure: %v", r.sess.ID, fatal)
	} else {
		log.Printf("[ingest] session %s stopped", r.sess.ID)
	}
	c.publish(r.sess, status)
}

func (c *Controller) publish(sess *session.Session, status domain.Status) {
	if c.out == nil {
		return
	}
	c.out.Put(sess.Snapshot(status, c.now()))
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func dropReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotBeacon):
		return "not_beacon"
	case errors.Is(err, domain.ErrMissingCoordinates):
		return "missing_coordinates"
	default:
		return "malformed"
	}
}

func sinkErr(op string, err error) {
	if err == nil {
		return
	}
	metrics.SinkErrors.WithLabelValues(op).Inc()
	log.Printf("[ingest] log sink %s failed: %v", op, err)
}

func closeSink(s domain.LogSink) {
	sinkErr("flush", s.Flush())
	sinkErr("close", s.Close())
}

// observe mirrors a snapshot into the Prometheus gauges.
func observe(snap domain.Snapshot) {
	metrics.PeersTracked.Set(float64(len(snap.Peers)))
	metrics.SessionPDR.Set(snap.Aggregate.PDR)
	metrics.OverallWarning.Set(float64(snap.Aggregate.Overall))
	for _, p := range snap.Peers {
		metrics.PeerPDR.WithLabelValues(p.Label).Set(p.PDR)
		metrics.PacketsLost.WithLabelValues(p.Label).Set(float64(p.Lost))
		metrics.PeerWarning.WithLabelValues(p.Label).Set(float64(p.Warning))
	}
}
