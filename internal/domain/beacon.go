package domain

// BeaconKind is the message kind tag carried by every beacon payload.
const BeaconKind = "CAM"

// UnknownPeerID is used when a beacon omits its peer id.
const UnknownPeerID = "unknown"

// NoSequence marks a beacon that carried no sequence number.
const NoSequence int64 = -1

// LatLon is a WGS84 coordinate in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Beacon is a decoded, validated inbound position report.
// Downstream components only ever see this type, never raw payloads.
type Beacon struct {
	PeerID   string
	Seq      int64
	OriginMs *int64 // origin timestamp, ms since epoch; nil when absent
	Position LatLon
	Speed    float64
	Heading  float64
	Accuracy float64
}

// HasOrigin reports whether the sender stamped the beacon.
func (b Beacon) HasOrigin() bool {
	return b.OriginMs != nil
}
