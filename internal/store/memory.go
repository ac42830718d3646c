package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bwise1/lookaround/internal/events"
	"github.com/bwise1/lookaround/internal/model"
	"github.com/google/uuid"
)

// Memory keeps everything in process. Used when no DSN is configured and in tests.
type Memory struct {
	mu           sync.RWMutex
	destinations map[uuid.UUID]model.Destination
	placemarks   map[uuid.UUID]model.Placemark
	bus          events.Publisher
	now          func() time.Time
}

func NewMemory(bus events.Publisher) *Memory {
	return &Memory{
		destinations: make(map[uuid.UUID]model.Destination),
		placemarks:   make(map[uuid.UUID]model.Placemark),
		bus:          bus,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) publish(evs ...events.Event) {
	if m.bus == nil {
		return
	}
	for _, e := range evs {
		m.bus.Publish(e)
	}
}

func (m *Memory) InsertDestination(_ context.Context, d *model.Destination) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := m.now()
	d.CreatedAt, d.UpdatedAt = now, now

	m.mu.Lock()
	if _, exists := m.destinations[d.ID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("destination %s already exists", d.ID)
	}
	stored := *d
	stored.Placemarks = nil
	m.destinations[d.ID] = stored
	m.mu.Unlock()

	m.publish(events.Event{Kind: events.Inserted, Entity: events.DestinationEntity, ID: d.ID})
	return nil
}

func (m *Memory) UpdateDestination(_ context.Context, d *model.Destination) error {
	m.mu.Lock()
	current, ok := m.destinations[d.ID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("updating destination %s: %w", d.ID, ErrNotFound)
	}
	current.Name = d.Name
	current.Latitude = d.Latitude
	current.Longitude = d.Longitude
	current.LatitudeDelta = d.LatitudeDelta
	current.LongitudeDelta = d.LongitudeDelta
	current.UpdatedAt = m.now()
	m.destinations[d.ID] = current
	d.UpdatedAt = current.UpdatedAt
	m.mu.Unlock()

	m.publish(events.Event{Kind: events.Updated, Entity: events.DestinationEntity, ID: d.ID})
	return nil
}

func (m *Memory) DeleteDestination(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	if _, ok := m.destinations[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("deleting destination %s: %w", id, ErrNotFound)
	}
	var evs []events.Event
	for pid, p := range m.placemarks {
		if p.BelongsTo(id) {
			p.DestinationID = nil
			p.Position = 0
			m.placemarks[pid] = p
			evs = append(evs, events.Event{Kind: events.Updated, Entity: events.PlacemarkEntity, ID: pid, DestinationID: &id})
		}
	}
	delete(m.destinations, id)
	m.mu.Unlock()

	evs = append(evs, events.Event{Kind: events.Deleted, Entity: events.DestinationEntity, ID: id})
	m.publish(evs...)
	return nil
}

func (m *Memory) GetDestination(_ context.Context, id uuid.UUID) (model.Destination, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.destinations[id]
	if !ok {
		return model.Destination{}, fmt.Errorf("getting destination %s: %w", id, ErrNotFound)
	}
	d.Placemarks = m.filterLocked(AttachedTo(id))
	return d, nil
}

func (m *Memory) ListDestinations(_ context.Context) ([]model.DestinationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[uuid.UUID]int)
	for _, p := range m.placemarks {
		if p.DestinationID != nil {
			counts[*p.DestinationID]++
		}
	}

	list := make([]model.DestinationSummary, 0, len(m.destinations))
	for _, d := range m.destinations {
		_, hasRegion := d.Region()
		list = append(list, model.DestinationSummary{
			ID:             d.ID,
			Name:           d.Name,
			PlacemarkCount: counts[d.ID],
			HasRegion:      hasRegion,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := strings.ToLower(list[i].Name), strings.ToLower(list[j].Name)
		if a != b {
			return a < b
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

func (m *Memory) InsertPlacemark(_ context.Context, p *model.Placemark) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = m.now()

	m.mu.Lock()
	if _, exists := m.placemarks[p.ID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("placemark %s already exists", p.ID)
	}
	if p.DestinationID != nil {
		if _, ok := m.destinations[*p.DestinationID]; !ok {
			m.mu.Unlock()
			return fmt.Errorf("inserting placemark into destination %s: %w", *p.DestinationID, ErrNotFound)
		}
		p.Position = m.nextPositionLocked(*p.DestinationID)
		p.SessionID = ""
	}
	m.placemarks[p.ID] = *p
	m.mu.Unlock()

	m.publish(events.Event{Kind: events.Inserted, Entity: events.PlacemarkEntity, ID: p.ID, DestinationID: p.DestinationID})
	return nil
}

func (m *Memory) UpdatePlacemark(_ context.Context, p *model.Placemark) error {
	m.mu.Lock()
	current, ok := m.placemarks[p.ID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("updating placemark %s: %w", p.ID, ErrNotFound)
	}
	current.Name = p.Name
	current.Address = p.Address
	current.Latitude = p.Latitude
	current.Longitude = p.Longitude
	m.placemarks[p.ID] = current
	*p = current
	m.mu.Unlock()

	m.publish(events.Event{Kind: events.Updated, Entity: events.PlacemarkEntity, ID: p.ID, DestinationID: current.DestinationID})
	return nil
}

func (m *Memory) GetPlacemark(_ context.Context, id uuid.UUID) (model.Placemark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.placemarks[id]
	if !ok {
		return model.Placemark{}, fmt.Errorf("getting placemark %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (m *Memory) Placemarks(_ context.Context, filter PlacemarkFilter) ([]model.Placemark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterLocked(filter), nil
}

func (m *Memory) DeletePlacemarks(_ context.Context, filter PlacemarkFilter) (int, error) {
	m.mu.Lock()
	var evs []events.Event
	for id, p := range m.placemarks {
		if filter.Match(p) {
			delete(m.placemarks, id)
			evs = append(evs, events.Event{Kind: events.Deleted, Entity: events.PlacemarkEntity, ID: id, DestinationID: p.DestinationID})
		}
	}
	m.mu.Unlock()

	m.publish(evs...)
	return len(evs), nil
}

func (m *Memory) AttachPlacemark(_ context.Context, placemarkID, destinationID uuid.UUID) (model.Placemark, error) {
	m.mu.Lock()
	p, ok := m.placemarks[placemarkID]
	if !ok {
		m.mu.Unlock()
		return model.Placemark{}, fmt.Errorf("attaching placemark %s: %w", placemarkID, ErrNotFound)
	}
	if _, ok := m.destinations[destinationID]; !ok {
		m.mu.Unlock()
		return model.Placemark{}, fmt.Errorf("attaching to destination %s: %w", destinationID, ErrNotFound)
	}
	if p.BelongsTo(destinationID) {
		m.mu.Unlock()
		return p, nil
	}
	p.Position = m.nextPositionLocked(destinationID)
	p.DestinationID = &destinationID
	p.SessionID = ""
	m.placemarks[placemarkID] = p
	m.mu.Unlock()

	m.publish(events.Event{Kind: events.Updated, Entity: events.PlacemarkEntity, ID: placemarkID, DestinationID: &destinationID})
	return p, nil
}

func (m *Memory) DetachPlacemark(_ context.Context, placemarkID uuid.UUID, sessionID string) (model.Placemark, error) {
	m.mu.Lock()
	p, ok := m.placemarks[placemarkID]
	if !ok {
		m.mu.Unlock()
		return model.Placemark{}, fmt.Errorf("detaching placemark %s: %w", placemarkID, ErrNotFound)
	}
	previous := p.DestinationID
	p.DestinationID = nil
	p.SessionID = sessionID
	p.Position = 0
	m.placemarks[placemarkID] = p
	m.mu.Unlock()

	m.publish(events.Event{Kind: events.Updated, Entity: events.PlacemarkEntity, ID: placemarkID, DestinationID: previous})
	return p, nil
}

func (m *Memory) nextPositionLocked(destinationID uuid.UUID) int {
	next := 0
	for _, p := range m.placemarks {
		if p.BelongsTo(destinationID) && p.Position >= next {
			next = p.Position + 1
		}
	}
	return next
}

func (m *Memory) filterLocked(filter PlacemarkFilter) []model.Placemark {
	list := make([]model.Placemark, 0)
	for _, p := range m.placemarks {
		if filter.Match(p) {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return list
}
