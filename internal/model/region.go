package model

import (
	"errors"
	"math"
)

var ErrInvalidRegion = errors.New("invalid region")

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// Span is the size of a map viewport in degrees.
type Span struct {
	LatitudeDelta  float64 `json:"latitude_delta" validate:"latitude_delta"`
	LongitudeDelta float64 `json:"longitude_delta" validate:"longitude_delta"`
}

// Region is a map viewport: a center and the span around it.
type Region struct {
	Center Coordinate `json:"center"`
	Span   Span       `json:"span"`
}

// Bounds is the bounding box of a region.
type Bounds struct {
	MinLatitude  float64 `json:"min_latitude"`
	MinLongitude float64 `json:"min_longitude"`
	MaxLatitude  float64 `json:"max_latitude"`
	MaxLongitude float64 `json:"max_longitude"`
}

func (r Region) Validate() error {
	c := r.Center
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return ErrInvalidRegion
	}
	if r.Span.LatitudeDelta <= 0 || r.Span.LatitudeDelta > 180 {
		return ErrInvalidRegion
	}
	if r.Span.LongitudeDelta <= 0 || r.Span.LongitudeDelta > 360 {
		return ErrInvalidRegion
	}
	return nil
}

// Bounds returns center ± delta/2. Latitudes are clamped to the valid range.
func (r Region) Bounds() Bounds {
	halfLat := r.Span.LatitudeDelta / 2
	halfLon := r.Span.LongitudeDelta / 2
	return Bounds{
		MinLatitude:  math.Max(-90, r.Center.Latitude-halfLat),
		MinLongitude: r.Center.Longitude - halfLon,
		MaxLatitude:  math.Min(90, r.Center.Latitude+halfLat),
		MaxLongitude: r.Center.Longitude + halfLon,
	}
}

// CrossesAntimeridian reports whether the box spills past ±180° longitude. Such a box
// cannot be written as a single min/max rectangle.
func (b Bounds) CrossesAntimeridian() bool {
	return b.MinLongitude < -180 || b.MaxLongitude > 180
}

// RadiusMeters approximates the distance from the center to a corner of the region.
func (r Region) RadiusMeters() float64 {
	b := r.Bounds()
	return Haversine(r.Center, Coordinate{Latitude: b.MaxLatitude, Longitude: b.MaxLongitude})
}

const earthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance between two coordinates in meters.
func Haversine(a, b Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
