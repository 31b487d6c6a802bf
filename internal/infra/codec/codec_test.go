package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/roadside-lab/rsu/internal/domain"
)

func int64p(v int64) *int64 { return &v }

func TestDecode_JSON(t *testing.T) {
	tests := []struct {
		name     string
		given    string
		expected domain.Beacon
	}{
		{
			name:  "all fields",
			given: `{"type":"CAM","id":"car-1","seq":7,"ts":1700000000000,"lat":48.1,"lon":11.5,"speed":13.9,"heading":270,"acc":3.5}`,
			expected: domain.Beacon{
				PeerID: "car-1", Seq: 7, OriginMs: int64p(1700000000000),
				Position: domain.LatLon{Lat: 48.1, Lon: 11.5},
				Speed:    13.9, Heading: 270, Accuracy: 3.5,
			},
		},
		{
			name:  "optional fields absent",
			given: `{"type":"CAM","lat":1,"lon":2}`,
			expected: domain.Beacon{
				PeerID: "unknown", Seq: -1,
				Position: domain.LatLon{Lat: 1, Lon: 2},
			},
		},
		{
			name:  "numeric strings",
			given: `{"type":"CAM","id":"bike","seq":"12","lat":"0.0001","lon":" -0.5 ","speed":"4.5"}`,
			expected: domain.Beacon{
				PeerID: "bike", Seq: 12,
				Position: domain.LatLon{Lat: 0.0001, Lon: -0.5},
				Speed:    4.5,
			},
		},
		{
			name:  "unparseable optional fields fall back to defaults",
			given: `{"type":"CAM","id":"","seq":"x","ts":"later","lat":1,"lon":2,"acc":"bad"}`,
			expected: domain.Beacon{
				PeerID: "unknown", Seq: -1,
				Position: domain.LatLon{Lat: 1, Lon: 2},
			},
		},
		{
			name:  "integral float sequence",
			given: `{"type":"CAM","id":"x","seq":5.0,"lat":1,"lon":2}`,
			expected: domain.Beacon{
				PeerID: "x", Seq: 5,
				Position: domain.LatLon{Lat: 1, Lon: 2},
			},
		},
		{
			name:  "surrounding whitespace",
			given: "  \n{\"type\":\"CAM\",\"id\":\"w\",\"lat\":3,\"lon\":4}\n",
			expected: domain.Beacon{
				PeerID: "w", Seq: -1,
				Position: domain.LatLon{Lat: 3, Lon: 4},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b, err := Decode([]byte(test.given))
			assert.NoError(t, err)
			assert.Equal(t, test.expected, b)
		})
	}
}

func TestDecode_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		given    []byte
		expected error
	}{
		{"empty", []byte(""), domain.ErrMalformedPayload},
		{"not an object", []byte("hello"), domain.ErrMalformedPayload},
		{"truncated json", []byte(`{"type":"CAM","lat":`), domain.ErrMalformedPayload},
		{"json array", []byte(`[1,2]`), domain.ErrMalformedPayload},
		{"missing kind", []byte(`{"lat":1,"lon":2}`), domain.ErrNotBeacon},
		{"other kind", []byte(`{"type":"DENM","lat":1,"lon":2}`), domain.ErrNotBeacon},
		{"kind not a string", []byte(`{"type":5,"lat":1,"lon":2}`), domain.ErrNotBeacon},
		{"missing lat", []byte(`{"type":"CAM","lon":2}`), domain.ErrMissingCoordinates},
		{"missing lon", []byte(`{"type":"CAM","lat":2}`), domain.ErrMissingCoordinates},
		{"null lat", []byte(`{"type":"CAM","lat":null,"lon":2}`), domain.ErrMissingCoordinates},
		{"unparseable lon", []byte(`{"type":"CAM","lat":1,"lon":"east"}`), domain.ErrMissingCoordinates},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode(test.given)
			assert.True(t, errors.Is(err, test.expected), "got %v, want %v", err, test.expected)
		})
	}
}

func TestDecode_Msgpack(t *testing.T) {
	raw, err := msgpack.Marshal(map[string]any{
		"type": "CAM", "id": "tram-4", "seq": uint16(300), "ts": int64(1700000000500),
		"lat": 52.5, "lon": float32(13.25), "heading": int8(-90),
	})
	assert.NoError(t, err)

	b, err := Decode(raw)
	assert.NoError(t, err)
	assert.Equal(t, "tram-4", b.PeerID)
	assert.Equal(t, int64(300), b.Seq)
	assert.Equal(t, int64p(1700000000500), b.OriginMs)
	assert.Equal(t, domain.LatLon{Lat: 52.5, Lon: 13.25}, b.Position)
	assert.Equal(t, -90.0, b.Heading)
}

func TestEncodeDecode(t *testing.T) {
	in := domain.Beacon{
		PeerID: "car-9", Seq: 41, OriginMs: int64p(1700000001234),
		Position: domain.LatLon{Lat: 40.4168, Lon: -3.7038},
		Speed:    8.25, Heading: 90, Accuracy: 1.5,
	}
	for _, f := range []Format{FormatJSON, FormatMsgpack} {
		t.Run(string(f), func(t *testing.T) {
			raw, err := Encode(in, f)
			assert.NoError(t, err)
			out, err := Decode(raw)
			assert.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestEncode_UnknownFormat(t *testing.T) {
	_, err := Encode(domain.Beacon{}, Format("xml"))
	assert.ErrorIs(t, err, domain.ErrUnknownFormat)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("MsgPack")
	assert.NoError(t, err)
	assert.Equal(t, FormatMsgpack, f)

	_, err = ParseFormat("cbor")
	assert.ErrorIs(t, err, domain.ErrUnknownFormat)
}
