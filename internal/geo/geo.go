// Package geo contains pure geographic validation and computation helpers.
package geo

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// Location is a [longitude, latitude] pair, matching the solver's wire
// representation.
type Location [2]float64

func (l Location) Lon() float64 { return l[0] }
func (l Location) Lat() float64 { return l[1] }

// Validate checks that both coordinates are finite and inside
// [-180,180] x [-90,90].
func (l Location) Validate() error {
	lon, lat := l[0], l[1]
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return fmt.Errorf("coordinates must be finite numbers")
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180,180]", lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90,90]", lat)
	}
	return nil
}

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func HaversineKm(a, b Location) float64 {
	dLat := degreesToRadians(b.Lat() - a.Lat())
	dLon := degreesToRadians(b.Lon() - a.Lon())

	rLat1 := degreesToRadians(a.Lat())
	rLat2 := degreesToRadians(b.Lat())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
