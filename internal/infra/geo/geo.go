// Package geo provides great-circle math on WGS84 coordinates.
package geo

import (
	"math"

	"github.com/roadside-lab/rsu/internal/domain"
)

// EarthRadiusM is the mean Earth radius used by all calculations.
const EarthRadiusM = 6371000.0

func rad(deg float64) float64 { return deg * math.Pi / 180 }
func deg(rad float64) float64 { return rad * 180 / math.Pi }

// Distance returns the haversine surface distance between a and b in meters.
func Distance(a, b domain.LatLon) float64 {
	phi1, phi2 := rad(a.Lat), rad(b.Lat)
	dPhi := rad(b.Lat - a.Lat)
	dLambda := rad(b.Lon - a.Lon)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadiusM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial great-circle bearing from a to b in degrees,
// normalized to [0, 360).
func Bearing(a, b domain.LatLon) float64 {
	phi1, phi2 := rad(a.Lat), rad(b.Lat)
	dLambda := rad(b.Lon - a.Lon)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return math.Mod(deg(math.Atan2(y, x))+360, 360)
}

// Destination returns the point reached by travelling distM meters from
// origin along the given initial bearing.
func Destination(origin domain.LatLon, bearingDeg, distM float64) domain.LatLon {
	delta := distM / EarthRadiusM
	theta := rad(bearingDeg)
	phi1, lambda1 := rad(origin.Lat), rad(origin.Lon)

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)
	lon := math.Mod(deg(lambda2)+540, 360) - 180
	return domain.LatLon{Lat: deg(phi2), Lon: lon}
}
