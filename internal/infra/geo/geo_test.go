package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roadside-lab/rsu/internal/domain"
)

func TestDistance(t *testing.T) {
	origin := domain.LatLon{}
	tests := []struct {
		name string
		to   domain.LatLon
		want float64
	}{
		{"same point", domain.LatLon{}, 0},
		{"five hundred-thousandths degree", domain.LatLon{Lat: 0.00005}, 5.56},
		{"one ten-thousandth degree", domain.LatLon{Lat: 0.0001}, 11.12},
		{"two ten-thousandths degree", domain.LatLon{Lat: 0.0002}, 22.24},
		{"along the equator", domain.LatLon{Lon: 0.0001}, 11.12},
		{"one degree of latitude", domain.LatLon{Lat: 1}, 111194.93},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(origin, tt.to), 0.01)
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	a := domain.LatLon{Lat: 48.137154, Lon: 11.576124}
	b := domain.LatLon{Lat: 48.137300, Lon: 11.576500}
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestBearing(t *testing.T) {
	origin := domain.LatLon{}
	assert.InDelta(t, 0, Bearing(origin, domain.LatLon{Lat: 1}), 1e-9)
	assert.InDelta(t, 90, Bearing(origin, domain.LatLon{Lon: 1}), 1e-9)
	assert.InDelta(t, 180, Bearing(origin, domain.LatLon{Lat: -1}), 1e-9)
	assert.InDelta(t, 270, Bearing(origin, domain.LatLon{Lon: -1}), 1e-9)
}

func TestDestination_RoundTrip(t *testing.T) {
	origin := domain.LatLon{Lat: 52.52, Lon: 13.405}
	for _, bearing := range []float64{0, 45, 135, 270} {
		dst := Destination(origin, bearing, 250)
		assert.InDelta(t, 250, Distance(origin, dst), 0.01, "bearing %v", bearing)
		assert.InDelta(t, bearing, Bearing(origin, dst), 0.01, "bearing %v", bearing)
	}
}
