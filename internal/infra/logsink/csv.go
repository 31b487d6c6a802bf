// Package logsink implements the append-only record feeds a session writes:
// one structured row per processed beacon and one raw row per datagram.
package logsink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roadside-lab/rsu/internal/domain"
)

// CSVSink writes the structured and raw feeds of one session as two CSV
// files in a directory.
type CSVSink struct {
	mu         sync.Mutex
	structFile *os.File
	rawFile    *os.File
	structured *csv.Writer
	raw        *csv.Writer
}

// FileNames returns the structured and raw file names for a session.
func FileNames(sessionID string, startedAt time.Time) (structured, raw string) {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	stamp := startedAt.UTC().Format("20060102-150405")
	return fmt.Sprintf("rsu_%s_%s_structured.csv", stamp, short),
		fmt.Sprintf("rsu_%s_%s_raw.csv", stamp, short)
}

// OpenCSV creates both files in dir and writes their header rows.
func OpenCSV(dir, sessionID string, startedAt time.Time) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	structName, rawName := FileNames(sessionID, startedAt)

	sf, err := os.OpenFile(filepath.Join(dir, structName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open structured log: %w", err)
	}
	rf, err := os.OpenFile(filepath.Join(dir, rawName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		sf.Close()
		return nil, fmt.Errorf("open raw log: %w", err)
	}

	s := &CSVSink{
		structFile: sf,
		rawFile:    rf,
		structured: csv.NewWriter(sf),
		raw:        csv.NewWriter(rf),
	}
	if err := s.structured.Write(domain.StructuredHeader); err != nil {
		s.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := s.raw.Write(domain.RawHeader); err != nil {
		s.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := s.Flush(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// CSVOpener returns a SinkOpener writing CSV files under dir.
func CSVOpener(dir string, now func() time.Time) domain.SinkOpener {
	return func(sessionID string) (domain.LogSink, error) {
		return OpenCSV(dir, sessionID, now())
	}
}

// WriteRaw appends one raw datagram row.
func (s *CSVSink) WriteRaw(rec domain.RawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw.Write(rec.Fields())
}

// WriteRecord appends one structured row.
func (s *CSVSink) WriteRecord(rec domain.BeaconRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.structured.Write(rec.Fields())
}

// Flush pushes buffered rows to the files.
func (s *CSVSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.structured.Flush()
	s.raw.Flush()
	return errors.Join(s.structured.Error(), s.raw.Error())
}

// Close flushes and closes both files.
func (s *CSVSink) Close() error {
	flushErr := s.Flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(flushErr, s.structFile.Close(), s.rawFile.Close())
}
