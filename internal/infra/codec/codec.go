// Package codec decodes and validates beacon payloads at the transport
// boundary. Two self-describing encodings are accepted: a JSON object and a
// MessagePack map. Both go through the same field extraction so a payload
// means the same thing regardless of encoding.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roadside-lab/rsu/internal/domain"
)

// Wire field names.
const (
	FieldType     = "type"
	FieldID       = "id"
	FieldSeq      = "seq"
	FieldOrigin   = "ts"
	FieldLat      = "lat"
	FieldLon      = "lon"
	FieldSpeed    = "speed"
	FieldHeading  = "heading"
	FieldAccuracy = "acc"
)

// Format selects the payload encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat validates a format name from config or flags.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownFormat, s)
}

// Decode turns a raw datagram into a validated Beacon. The returned error is
// always one of domain.ErrMalformedPayload, domain.ErrNotBeacon or
// domain.ErrMissingCoordinates (possibly wrapped) and means "drop".
func Decode(raw []byte) (domain.Beacon, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return domain.Beacon{}, err
	}

	kind, _ := fields[FieldType].(string)
	if kind != domain.BeaconKind {
		return domain.Beacon{}, domain.ErrNotBeacon
	}

	lat, okLat := asFloat(fields[FieldLat])
	lon, okLon := asFloat(fields[FieldLon])
	if !okLat || !okLon {
		return domain.Beacon{}, domain.ErrMissingCoordinates
	}

	b := domain.Beacon{
		PeerID:   domain.UnknownPeerID,
		Seq:      domain.NoSequence,
		Position: domain.LatLon{Lat: lat, Lon: lon},
	}
	if id, ok := asString(fields[FieldID]); ok && id != "" {
		b.PeerID = id
	}
	if seq, ok := asInt(fields[FieldSeq]); ok {
		b.Seq = seq
	}
	if ts, ok := asInt(fields[FieldOrigin]); ok {
		b.OriginMs = &ts
	}
	b.Speed, _ = asFloat(fields[FieldSpeed])
	b.Heading, _ = asFloat(fields[FieldHeading])
	b.Accuracy, _ = asFloat(fields[FieldAccuracy])
	return b, nil
}

// Encode builds the wire object for a beacon. Used by the peer-role
// transmitter.
func Encode(b domain.Beacon, f Format) ([]byte, error) {
	obj := map[string]any{
		FieldType:     domain.BeaconKind,
		FieldID:       b.PeerID,
		FieldSeq:      b.Seq,
		FieldLat:      b.Position.Lat,
		FieldLon:      b.Position.Lon,
		FieldSpeed:    b.Speed,
		FieldHeading:  b.Heading,
		FieldAccuracy: b.Accuracy,
	}
	if b.OriginMs != nil {
		obj[FieldOrigin] = *b.OriginMs
	}

	switch f {
	case FormatJSON, "":
		return json.Marshal(obj)
	case FormatMsgpack:
		return msgpack.Marshal(obj)
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownFormat, f)
}

// decodeObject sniffs the encoding and returns the top-level map.
func decodeObject(raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, domain.ErrMalformedPayload
	}

	fields := make(map[string]any)
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
		}
		return fields, nil
	}

	if !isMsgpackMap(raw[0]) {
		return nil, domain.ErrMalformedPayload
	}
	if err := msgpack.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	return fields, nil
}

// isMsgpackMap reports whether b is a MessagePack map header
// (fixmap, map16 or map32).
func isMsgpackMap(b byte) bool {
	return (b >= 0x80 && b <= 0x8f) || b == 0xde || b == 0xdf
}

// ─── Value coercion ─────────────────────────────────────────────────────────
// JSON yields json.Number; MessagePack yields any of the sized integer and
// float types. Numeric strings are accepted for every numeric field.

func asFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, true
		}
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
		return 0, false
	}
	// Integral floats, e.g. 12.0 from a loosely typed sender.
	if f, ok := asFloat(v); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f), true
	}
	return 0, false
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case nil:
		return "", false
	}
	return fmt.Sprint(v), true
}
