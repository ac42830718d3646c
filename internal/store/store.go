// Package store persists destinations and placemarks and publishes every committed change
// on an events.Bus.
package store

import (
	"context"
	"errors"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// PlacemarkFilter selects placemarks. The zero value matches everything.
type PlacemarkFilter struct {
	// DestinationID restricts to placemarks attached to one destination, ordered by position.
	DestinationID *uuid.UUID
	// TransientOnly restricts to placemarks without a destination, ordered by creation.
	TransientOnly bool
	// SessionID restricts transient placemarks to the ones owned by a session.
	SessionID string
	// OrphansOnly restricts to transient placemarks no session owns.
	OrphansOnly bool
}

func (f PlacemarkFilter) Match(p model.Placemark) bool {
	if (f.TransientOnly || f.OrphansOnly || f.SessionID != "") && !p.IsTransient() {
		return false
	}
	if f.DestinationID != nil && !p.BelongsTo(*f.DestinationID) {
		return false
	}
	if f.SessionID != "" && p.SessionID != f.SessionID {
		return false
	}
	if f.OrphansOnly && p.SessionID != "" {
		return false
	}
	return true
}

// Transient selects every placemark without a destination.
func Transient() PlacemarkFilter {
	return PlacemarkFilter{TransientOnly: true}
}

// TransientOf selects the transient placemarks owned by one session.
func TransientOf(sessionID string) PlacemarkFilter {
	if sessionID == "" {
		return Orphans()
	}
	return PlacemarkFilter{TransientOnly: true, SessionID: sessionID}
}

// Orphans selects transient placemarks left without an owning session, such as the
// placemarks of a deleted destination.
func Orphans() PlacemarkFilter {
	return PlacemarkFilter{TransientOnly: true, OrphansOnly: true}
}

// AttachedTo selects the placemarks of a destination.
func AttachedTo(id uuid.UUID) PlacemarkFilter {
	return PlacemarkFilter{DestinationID: &id}
}

type Store interface {
	InsertDestination(ctx context.Context, d *model.Destination) error
	UpdateDestination(ctx context.Context, d *model.Destination) error
	// DeleteDestination removes the destination and detaches its placemarks.
	DeleteDestination(ctx context.Context, id uuid.UUID) error
	// GetDestination returns the destination with its placemarks loaded.
	GetDestination(ctx context.Context, id uuid.UUID) (model.Destination, error)
	// ListDestinations returns destinations sorted by name with placemark counts.
	ListDestinations(ctx context.Context) ([]model.DestinationSummary, error)

	InsertPlacemark(ctx context.Context, p *model.Placemark) error
	// UpdatePlacemark writes name, address and coordinate.
	UpdatePlacemark(ctx context.Context, p *model.Placemark) error
	GetPlacemark(ctx context.Context, id uuid.UUID) (model.Placemark, error)
	Placemarks(ctx context.Context, filter PlacemarkFilter) ([]model.Placemark, error)
	// DeletePlacemarks removes every placemark matching the filter and returns how many went.
	DeletePlacemarks(ctx context.Context, filter PlacemarkFilter) (int, error)

	// AttachPlacemark appends the placemark to the destination and clears its owner.
	AttachPlacemark(ctx context.Context, placemarkID, destinationID uuid.UUID) (model.Placemark, error)
	// DetachPlacemark clears the placemark's destination and hands it to sessionID as a
	// transient placemark.
	DetachPlacemark(ctx context.Context, placemarkID uuid.UUID, sessionID string) (model.Placemark, error)
}
