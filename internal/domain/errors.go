package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Decode rejections. These are drop reasons, never surfaced past the
	// ingestion loop.
	ErrMalformedPayload   = errors.New("payload is not a decodable object")
	ErrNotBeacon          = errors.New("message kind is not a beacon")
	ErrMissingCoordinates = errors.New("beacon is missing lat/lon")

	// Session lifecycle errors
	ErrNotListening = errors.New("no session is listening")
	ErrBindFailed   = errors.New("transport bind failed")
	ErrNoSession    = errors.New("no session has been started")

	// Transport errors
	ErrTransportClosed = errors.New("transport closed")

	// Configuration errors
	ErrInvalidPort       = errors.New("port must be between 1 and 65535")
	ErrInvalidInterval   = errors.New("interval must be positive")
	ErrInvalidThresholds = errors.New("danger threshold must not exceed warn threshold")
	ErrUnknownFormat     = errors.New("unknown wire format")
	ErrUnknownSink       = errors.New("unknown log sink format")
)
