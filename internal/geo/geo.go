// Package geo finds ecopoints near a position.
package geo

import (
	"math"
	"sort"

	"github.com/dukerupert/reciclamt/internal/model"
)

const (
	EarthRadiusKm   = 6371.0
	DefaultRadiusKm = 10.0
)

// DistanceKm returns the great-circle distance between two points using the
// haversine formula.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// ValidCoordinates reports whether lat/lng lie within their ranges.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

type NearbyEcopoint struct {
	model.Ecopoint
	DistanceKm float64 `json:"distance"`
}

// Nearby returns the ecopoints within radiusKm of (lat, lng), closest first.
// A non-positive radius means DefaultRadiusKm.
func Nearby(ecopoints []model.Ecopoint, lat, lng, radiusKm float64) []NearbyEcopoint {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	out := []NearbyEcopoint{}
	for _, e := range ecopoints {
		d := DistanceKm(lat, lng, e.Latitude, e.Longitude)
		if d <= radiusKm {
			out = append(out, NearbyEcopoint{Ecopoint: e, DistanceKm: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}
