package api

import (
	geojson "github.com/paulmach/go.geojson"

	"github.com/roadside-lab/rsu/internal/domain"
)

// PeersGeoJSON renders the positioned peers of a snapshot as a
// FeatureCollection of points. Peers without a position are left out.
func PeersGeoJSON(snap domain.Snapshot) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, p := range snap.Peers {
		if p.Position == nil {
			continue
		}
		f := geojson.NewPointFeature([]float64{p.Position.Lon, p.Position.Lat})
		f.ID = p.PeerID
		f.SetProperty("label", p.Label)
		f.SetProperty("warning", p.Warning.String())
		f.SetProperty("pdr", p.PDR)
		f.SetProperty("received", p.Received)
		f.SetProperty("lost", p.Lost)
		f.SetProperty("speed", p.Speed)
		f.SetProperty("accuracy", p.Accuracy)
		if p.Nearest != nil {
			f.SetProperty("nearest_label", p.Nearest.Label)
			f.SetProperty("nearest_m", p.Nearest.DistanceM)
			f.SetProperty("nearest_bearing", p.Nearest.BearingDeg)
		}
		fc.AddFeature(f)
	}
	return fc.MarshalJSON()
}
