package model

import (
	"time"

	"github.com/google/uuid"
)

// Placemark is a point of interest. A nil DestinationID marks a transient placemark
// (search result or unsaved manual pin). SessionID names the session that owns a
// transient placemark; it is empty once the placemark is attached.
type Placemark struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Address       string     `json:"address"`
	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	DestinationID *uuid.UUID `json:"destination_id,omitempty"`
	SessionID     string     `json:"session_id,omitempty"`
	Position      int        `json:"position"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (p Placemark) IsTransient() bool {
	return p.DestinationID == nil
}

func (p Placemark) BelongsTo(destinationID uuid.UUID) bool {
	return p.DestinationID != nil && *p.DestinationID == destinationID
}

// OwnedBy reports whether p is a transient placemark of the given session.
func (p Placemark) OwnedBy(sessionID string) bool {
	return p.IsTransient() && p.SessionID == sessionID
}

func (p Placemark) Coordinate() Coordinate {
	return Coordinate{Latitude: p.Latitude, Longitude: p.Longitude}
}

// NewTransientPlacemark builds an unattached placemark with a fresh id.
func NewTransientPlacemark(name, address string, c Coordinate) Placemark {
	return Placemark{
		ID:        uuid.New(),
		Name:      name,
		Address:   address,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
	}
}

type TapRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

type SelectRequest struct {
	PlacemarkID uuid.UUID `json:"placemark_id" validate:"required"`
}

type SearchRequest struct {
	Query string `json:"query" validate:"max=256"`
}

type EditPlacemarkRequest struct {
	Name    string `json:"name" validate:"max=200"`
	Address string `json:"address" validate:"max=500"`
}

// CameraPhase tells whether the map is still moving.
type CameraPhase string

const (
	CameraMoving CameraPhase = "moving"
	CameraEnded  CameraPhase = "ended"
)

type CameraRequest struct {
	Region Region      `json:"region"`
	Phase  CameraPhase `json:"phase" validate:"required,oneof=moving ended"`
}
