package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// Infrastructure implements them; the ingestion loop depends on them.

// LogSink consumes the raw and structured record feeds of one session.
// Implementations must be append-only.
type LogSink interface {
	WriteRaw(rec RawRecord) error
	WriteRecord(rec BeaconRecord) error
	Flush() error
	Close() error
}

// SinkOpener opens the sink for a newly started session.
type SinkOpener func(sessionID string) (LogSink, error)

// Presenter consumes snapshots. Implementations must treat them as read-only
// and must not block for long; they run on the dispatcher goroutine.
type Presenter interface {
	Present(snap Snapshot)
}

// Fix is a local position reading.
type Fix struct {
	Position LatLon
	Speed    float64
	Heading  float64
	Accuracy float64
}

// PositionSource produces the local position for the peer-role transmitter.
type PositionSource interface {
	Next(ctx context.Context) (Fix, error)
}
