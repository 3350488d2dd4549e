package alert

import (
	"cmp"
	"math"
	"slices"

	"github.com/golang/geo/s2"

	"github.com/roach88/sentinel/internal/record"
)

// EarthRadiusM is the mean earth radius used for every distance.
const EarthRadiusM = 6371000.0

// DistanceM returns the great-circle distance between a and b in meters.
func DistanceM(a, b record.Position) float64 {
	la := s2.LatLngFromDegrees(a.Lat, a.Lng)
	lb := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return la.Distance(lb).Radians() * EarthRadiusM
}

// validPosition reports whether p is a finite point on the earth.
func validPosition(p record.Position) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Nearby is a trap with its distance from a position.
type Nearby struct {
	Trap      record.Trap `json:"trap"`
	DistanceM float64     `json:"distanceM"`
}

// NearbyTraps returns the traps within radius meters of pos, closest first.
// Ties keep the input order.
func NearbyTraps(pos record.Position, traps []record.Trap, radius float64) []Nearby {
	out := []Nearby{}
	for _, t := range traps {
		d := DistanceM(pos, record.Position{Lat: t.Lat, Lng: t.Lng})
		if math.IsNaN(d) || d > radius {
			continue
		}
		out = append(out, Nearby{Trap: t, DistanceM: d})
	}
	slices.SortStableFunc(out, func(a, b Nearby) int {
		return cmp.Compare(a.DistanceM, b.DistanceM)
	})
	return out
}
