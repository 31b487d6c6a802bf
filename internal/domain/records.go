package domain

import (
	"strconv"
	"time"
)

// StructuredHeader names the columns of the structured log feed.
var StructuredHeader = []string{
	"rx_time_ms", "label", "peer_id", "seq", "lat", "lon",
	"nearest_label", "nearest_m", "speed", "pos_acc", "latency_ms", "warning",
}

// RawHeader names the columns of the raw audit feed.
var RawHeader = []string{"rx_time_ms", "sender", "payload"}

// RawRecord is written for every datagram, decodable or not.
type RawRecord struct {
	RxTime  time.Time
	Sender  string
	Payload []byte
}

// Fields renders the record in column order.
func (r RawRecord) Fields() []string {
	return []string{
		strconv.FormatInt(r.RxTime.UnixMilli(), 10),
		r.Sender,
		string(r.Payload),
	}
}

// BeaconRecord is one row of the structured feed, one per processed beacon.
type BeaconRecord struct {
	RxTime    time.Time
	Label     string
	PeerID    string
	Seq       int64
	Position  LatLon
	Nearest   *Nearest
	Speed     float64
	Accuracy  float64
	LatencyMs *float64
	Warning   WarningLevel
}

// NewBeaconRecord builds the structured row for a beacon after the peer's
// stats and proximity have been updated.
func NewBeaconRecord(b Beacon, p PeerStats, rx time.Time, latency *float64) BeaconRecord {
	return BeaconRecord{
		RxTime:    rx,
		Label:     p.Label,
		PeerID:    p.ID,
		Seq:       b.Seq,
		Position:  b.Position,
		Nearest:   p.Nearest,
		Speed:     b.Speed,
		Accuracy:  b.Accuracy,
		LatencyMs: latency,
		Warning:   p.Warning,
	}
}

// Fields renders the record in StructuredHeader order.
func (r BeaconRecord) Fields() []string {
	nearestLabel, nearestM := "", ""
	if r.Nearest != nil {
		nearestLabel = r.Nearest.Label
		nearestM = fixed2(r.Nearest.DistanceM)
	}
	latency := ""
	if r.LatencyMs != nil {
		latency = fixed2(*r.LatencyMs)
	}
	return []string{
		strconv.FormatInt(r.RxTime.UnixMilli(), 10),
		r.Label,
		r.PeerID,
		strconv.FormatInt(r.Seq, 10),
		strconv.FormatFloat(r.Position.Lat, 'f', -1, 64),
		strconv.FormatFloat(r.Position.Lon, 'f', -1, 64),
		nearestLabel,
		nearestM,
		fixed2(r.Speed),
		fixed2(r.Accuracy),
		latency,
		r.Warning.String(),
	}
}

func fixed2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
