package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roadside-lab/rsu/internal/domain"
)

// batchSize is the number of rows written per transaction before an
// automatic commit.
const batchSize = 64

// Sink appends one session's record feeds to the database. Rows are
// batched in a transaction and committed on Flush or every batchSize rows.
type Sink struct {
	mu        sync.Mutex
	db        *DB
	sessionID string
	now       func() time.Time
	tx        *sql.Tx
	pending   int
}

// OpenSink registers the session and returns its sink.
func (d *DB) OpenSink(sessionID string, now func() time.Time) (*Sink, error) {
	if err := d.BeginSession(sessionID, now()); err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	return &Sink{db: d, sessionID: sessionID, now: now}, nil
}

// Opener returns a SinkOpener backed by this database.
func (d *DB) Opener(now func() time.Time) domain.SinkOpener {
	return func(sessionID string) (domain.LogSink, error) {
		return d.OpenSink(sessionID, now)
	}
}

// WriteRaw appends one raw row.
func (s *Sink) WriteRaw(rec domain.RawRecord) error {
	return s.exec(
		`INSERT INTO raw_records (session_id, rx_time_ms, sender, payload) VALUES (?, ?, ?, ?)`,
		s.sessionID, rec.RxTime.UnixMilli(), rec.Sender, rec.Payload,
	)
}

// WriteRecord appends one structured row.
func (s *Sink) WriteRecord(rec domain.BeaconRecord) error {
	var nearestLabel string
	var nearestM *float64
	if rec.Nearest != nil {
		nearestLabel = rec.Nearest.Label
		d := rec.Nearest.DistanceM
		nearestM = &d
	}
	return s.exec(
		`INSERT INTO beacon_records
			(session_id, rx_time_ms, label, peer_id, seq, lat, lon, nearest_label, nearest_m, speed, pos_acc, latency_ms, warning)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.sessionID, rec.RxTime.UnixMilli(), rec.Label, rec.PeerID, rec.Seq,
		rec.Position.Lat, rec.Position.Lon,
		nullableString(nearestLabel), nullableFloat(nearestM),
		rec.Speed, rec.Accuracy, nullableFloat(rec.LatencyMs), rec.Warning.String(),
	)
}

func (s *Sink) exec(query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		tx, err := s.db.db.Begin()
		if err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		s.tx = tx
	}
	if _, err := s.tx.Exec(query, args...); err != nil {
		return err
	}
	s.pending++
	if s.pending >= batchSize {
		return s.commitLocked()
	}
	return nil
}

func (s *Sink) commitLocked() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	s.pending = 0
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Flush commits any pending rows.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked()
}

// Close commits pending rows and stamps the session's stop time.
func (s *Sink) Close() error {
	flushErr := s.Flush()
	return errors.Join(flushErr, s.db.EndSession(s.sessionID, s.now()))
}
