package model

import (
	"time"

	"github.com/google/uuid"
)

type Destination struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Latitude       *float64    `json:"latitude,omitempty"`
	Longitude      *float64    `json:"longitude,omitempty"`
	LatitudeDelta  *float64    `json:"latitude_delta,omitempty"`
	LongitudeDelta *float64    `json:"longitude_delta,omitempty"`
	Placemarks     []Placemark `json:"placemarks"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Region is only defined when all four viewport fields are set.
func (d Destination) Region() (Region, bool) {
	if d.Latitude == nil || d.Longitude == nil || d.LatitudeDelta == nil || d.LongitudeDelta == nil {
		return Region{}, false
	}
	return Region{
		Center: Coordinate{Latitude: *d.Latitude, Longitude: *d.Longitude},
		Span:   Span{LatitudeDelta: *d.LatitudeDelta, LongitudeDelta: *d.LongitudeDelta},
	}, true
}

func (d *Destination) SetRegion(r Region) {
	lat, lon := r.Center.Latitude, r.Center.Longitude
	latDelta, lonDelta := r.Span.LatitudeDelta, r.Span.LongitudeDelta
	d.Latitude = &lat
	d.Longitude = &lon
	d.LatitudeDelta = &latDelta
	d.LongitudeDelta = &lonDelta
}

// DestinationSummary is a row of the destination list.
type DestinationSummary struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	PlacemarkCount int       `json:"placemark_count"`
	HasRegion      bool      `json:"has_region"`
}

// DestinationResponse is the wire shape of a destination with its derived region.
type DestinationResponse struct {
	Destination
	Region *Region `json:"region,omitempty"`
}

func NewDestinationResponse(d Destination) DestinationResponse {
	resp := DestinationResponse{Destination: d}
	if resp.Placemarks == nil {
		resp.Placemarks = []Placemark{}
	}
	if r, ok := d.Region(); ok {
		resp.Region = &r
	}
	return resp
}

type CreateDestinationRequest struct {
	Name string `json:"name" validate:"max=120"`
}
