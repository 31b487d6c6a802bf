package logsink

import (
	"errors"

	"github.com/roadside-lab/rsu/internal/domain"
)

// Tee fans every record out to several sinks. A failing sink does not stop
// the others; errors are joined.
type Tee []domain.LogSink

// WriteRaw writes to every sink.
func (t Tee) WriteRaw(rec domain.RawRecord) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.WriteRaw(rec))
	}
	return errors.Join(errs...)
}

// WriteRecord writes to every sink.
func (t Tee) WriteRecord(rec domain.BeaconRecord) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.WriteRecord(rec))
	}
	return errors.Join(errs...)
}

// Flush flushes every sink.
func (t Tee) Flush() error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Flush())
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (t Tee) Close() error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// TeeOpener opens all openers for a session. If one fails, the sinks already
// opened are closed.
func TeeOpener(openers ...domain.SinkOpener) domain.SinkOpener {
	return func(sessionID string) (domain.LogSink, error) {
		tee := make(Tee, 0, len(openers))
		for _, open := range openers {
			s, err := open(sessionID)
			if err != nil {
				_ = tee.Close()
				return nil, err
			}
			tee = append(tee, s)
		}
		if len(tee) == 1 {
			return tee[0], nil
		}
		return tee, nil
	}
}

// Discard drops every record.
type Discard struct{}

func (Discard) WriteRaw(domain.RawRecord) error       { return nil }
func (Discard) WriteRecord(domain.BeaconRecord) error { return nil }
func (Discard) Flush() error                          { return nil }
func (Discard) Close() error                          { return nil }

// DiscardOpener opens a Discard sink.
func DiscardOpener(string) (domain.LogSink, error) {
	return Discard{}, nil
}
