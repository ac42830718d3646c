// Package session implements the map editing session for one destination: camera
// tracking, search, manual placement and the placemark detail panel.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwise1/lookaround/internal/detail"
	"github.com/bwise1/lookaround/internal/events"
	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/internal/preview"
	"github.com/bwise1/lookaround/internal/search"
	"github.com/bwise1/lookaround/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type State string

const (
	StateIdle            State = "idle"
	StateSearching       State = "searching"
	StateManualPlacement State = "manual_placement"
	StateDetailOpen      State = "detail_open"
	StateEnded           State = "ended"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrEnded             = fmt.Errorf("%w: session ended", ErrInvalidTransition)
	ErrUnknownMarker     = fmt.Errorf("marker is not shown in this session: %w", store.ErrNotFound)
)

const reverseGeocodeTimeout = 5 * time.Second

// view is the store-backed part of a snapshot.
type view struct {
	Destination model.Destination
	Transient   []model.Placemark
}

// Session is safe for concurrent use. Transitions are serialized; the lock is released
// while a provider call is in flight.
type Session struct {
	ID            string
	DestinationID uuid.UUID

	store   store.Store
	search  *search.Coordinator
	reverse search.ReverseGeocoder
	preview *preview.Fetcher
	live    *store.LiveQuery[view]
	log     logrus.FieldLogger
	now     func() time.Time

	mu            sync.Mutex
	state         State
	placement     bool
	detail        *detail.Controller
	fromPlacement bool
	visible       *model.Region
	lastActive    time.Time

	subMu      sync.Mutex
	subs       map[int]chan struct{}
	nextSub    int
	subsClosed bool
}

func (s *Session) fetchView(ctx context.Context) (view, error) {
	d, err := s.store.GetDestination(ctx, s.DestinationID)
	if err != nil {
		return view{}, err
	}
	transient, err := s.store.Placemarks(ctx, store.TransientOf(s.ID))
	if err != nil {
		return view{}, err
	}
	return view{Destination: d, Transient: transient}, nil
}

// start clears leftover transient results and begins watching the store.
func (s *Session) start(ctx context.Context, bus *events.Bus) error {
	if err := s.search.RemoveTransientResults(ctx); err != nil {
		return err
	}
	live, err := store.NewLiveQuery(ctx, bus,
		func(e events.Event) bool { return e.Touches(s.DestinationID) },
		s.fetchView,
	)
	if err != nil {
		return err
	}
	s.live = live
	live.OnChange(func(view) { s.notify() })
	s.preview.OnChange(func(model.PreviewStatus) { s.notify() })
	return nil
}

// Subscribe returns a channel that receives a signal whenever the snapshot may have
// changed. Signals coalesce; receivers should call Snapshot. The channel is closed when
// the session ends, immediately if it already has.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	if s.subsClosed {
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	if s.subs == nil {
		s.subs = make(map[int]chan struct{})
	}
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Session) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subsClosed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// lock acquires the session and fails when it has ended.
func (s *Session) lock() error {
	s.mu.Lock()
	if s.state == StateEnded {
		s.mu.Unlock()
		return ErrEnded
	}
	s.lastActive = s.now()
	return nil
}

func (s *Session) unlockAndNotify() {
	s.mu.Unlock()
	s.notify()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Focus activates the search field.
func (s *Session) Focus() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlockAndNotify()

	switch s.state {
	case StateIdle, StateSearching:
		s.state = StateSearching
		return nil
	default:
		return fmt.Errorf("%w: focus from %s", ErrInvalidTransition, s.state)
	}
}

// Submit runs a search biased to the visible region and shows the results.
func (s *Session) Submit(ctx context.Context, query string) error {
	if err := s.lock(); err != nil {
		return err
	}
	if s.state != StateIdle && s.state != StateSearching {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: submit from %s", ErrInvalidTransition, state)
	}
	s.state = StateSearching
	var bias *model.Region
	if s.visible != nil {
		r := *s.visible
		bias = &r
	}
	s.unlockAndNotify()

	s.search.Search(ctx, query, bias)

	s.mu.Lock()
	if s.state == StateSearching {
		s.state = StateIdle
	}
	s.unlockAndNotify()
	return nil
}

// ClearSearch empties the search box and removes its results.
func (s *Session) ClearSearch(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlockAndNotify()

	if s.state != StateIdle && s.state != StateSearching {
		return fmt.Errorf("%w: clear search from %s", ErrInvalidTransition, s.state)
	}
	if err := s.search.RemoveTransientResults(ctx); err != nil {
		return err
	}
	s.state = StateIdle
	return nil
}

// TogglePlacement switches manual placement on or off. Either way transient results
// are cleared.
func (s *Session) TogglePlacement(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlockAndNotify()

	var next State
	switch s.state {
	case StateIdle, StateSearching:
		next = StateManualPlacement
	case StateManualPlacement:
		next = StateIdle
	default:
		return fmt.Errorf("%w: toggle placement from %s", ErrInvalidTransition, s.state)
	}

	if err := s.search.RemoveTransientResults(ctx); err != nil {
		return err
	}
	s.state = next
	s.placement = next == StateManualPlacement
	return nil
}

// Tap drops a transient pin at coord and opens its detail. The pin is named after the
// nearest known place when reverse geocoding is available.
func (s *Session) Tap(ctx context.Context, coord model.Coordinate) (model.Placemark, error) {
	if err := s.lock(); err != nil {
		return model.Placemark{}, err
	}
	if s.state != StateManualPlacement {
		state := s.state
		s.mu.Unlock()
		return model.Placemark{}, fmt.Errorf("%w: tap from %s", ErrInvalidTransition, state)
	}
	s.mu.Unlock()

	pin := model.NewTransientPlacemark("", "", coord)
	if s.reverse != nil {
		rctx, cancel := context.WithTimeout(ctx, reverseGeocodeTimeout)
		place, err := s.reverse.Reverse(rctx, coord)
		cancel()
		if err != nil {
			s.log.WithError(err).Debug("reverse geocoding failed")
		}
		if place != nil {
			pin.Name = place.Name
			pin.Address = place.Address
		}
	}

	if err := s.lock(); err != nil {
		return model.Placemark{}, err
	}
	defer s.unlockAndNotify()
	if s.state != StateManualPlacement {
		return model.Placemark{}, fmt.Errorf("%w: placement ended during tap", ErrInvalidTransition)
	}

	if err := s.search.AddTransient(ctx, &pin); err != nil {
		return model.Placemark{}, err
	}
	if err := s.openDetailLocked(ctx, pin.ID); err != nil {
		return model.Placemark{}, err
	}
	return pin, nil
}

// Select opens the detail of a rendered marker.
func (s *Session) Select(ctx context.Context, placemarkID uuid.UUID) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlockAndNotify()

	p, err := s.store.GetPlacemark(ctx, placemarkID)
	if err != nil {
		return err
	}
	if !p.OwnedBy(s.ID) && !p.BelongsTo(s.DestinationID) {
		return ErrUnknownMarker
	}
	return s.openDetailLocked(ctx, placemarkID)
}

func (s *Session) openDetailLocked(ctx context.Context, placemarkID uuid.UUID) error {
	c, err := detail.Open(ctx, s.store, &s.DestinationID, s.ID, placemarkID, s.preview)
	if err != nil {
		return err
	}
	if s.detail == nil {
		s.fromPlacement = s.placement
	}
	s.detail = c
	s.state = StateDetailOpen
	return nil
}

// Dismiss closes the detail panel. A panel opened during manual placement also ends
// placement and discards any pin that was not added.
func (s *Session) Dismiss(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlockAndNotify()

	if s.state != StateDetailOpen {
		return fmt.Errorf("%w: dismiss from %s", ErrInvalidTransition, s.state)
	}
	return s.closeDetailLocked(ctx)
}

func (s *Session) closeDetailLocked(ctx context.Context) error {
	s.detail.Close()
	s.detail = nil
	s.state = StateIdle
	if s.fromPlacement {
		s.fromPlacement = false
		s.placement = false
		return s.search.RemoveTransientResults(ctx)
	}
	return nil
}

// Edit replaces the detail edit buffer.
func (s *Session) Edit(name, address string) (detail.View, error) {
	if err := s.lock(); err != nil {
		return detail.View{}, err
	}
	defer s.unlockAndNotify()

	if s.detail == nil {
		return detail.View{}, fmt.Errorf("%w: no detail open", ErrInvalidTransition)
	}
	s.detail.Edit(name, address)
	return s.detail.View(), nil
}

// Commit writes the detail edit buffer.
func (s *Session) Commit(ctx context.Context) (detail.View, error) {
	if err := s.lock(); err != nil {
		return detail.View{}, err
	}
	defer s.unlockAndNotify()

	if s.detail == nil {
		return detail.View{}, fmt.Errorf("%w: no detail open", ErrInvalidTransition)
	}
	if err := s.detail.Commit(ctx); err != nil {
		return detail.View{}, err
	}
	return s.detail.View(), nil
}

// ToggleMembership adds or removes the selected placemark and closes the panel.
func (s *Session) ToggleMembership(ctx context.Context) (model.Placemark, error) {
	if err := s.lock(); err != nil {
		return model.Placemark{}, err
	}
	defer s.unlockAndNotify()

	if s.detail == nil {
		return model.Placemark{}, fmt.Errorf("%w: no detail open", ErrInvalidTransition)
	}
	p, err := s.detail.ToggleMembership(ctx)
	if err != nil {
		return model.Placemark{}, err
	}
	return p, s.closeDetailLocked(ctx)
}

// Detail returns the open panel.
func (s *Session) Detail() (detail.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detail == nil {
		return detail.View{}, fmt.Errorf("%w: no detail open", ErrInvalidTransition)
	}
	return s.detail.View(), nil
}

// CameraChanged records the visible region once the camera settles.
func (s *Session) CameraChanged(region model.Region, phase model.CameraPhase) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlockAndNotify()

	if phase != model.CameraEnded {
		return nil
	}
	if err := region.Validate(); err != nil {
		return err
	}
	s.visible = &region
	return nil
}

// SetRegion saves the visible region on the destination. It reports false when no
// region has been recorded yet.
func (s *Session) SetRegion(ctx context.Context) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.unlockAndNotify()

	if s.visible == nil {
		return false, nil
	}
	d, err := s.store.GetDestination(ctx, s.DestinationID)
	if err != nil {
		return false, err
	}
	d.SetRegion(*s.visible)
	if err := s.store.UpdateDestination(ctx, &d); err != nil {
		return false, err
	}
	return true, nil
}

// Snapshot is the render model of the session.
type Snapshot struct {
	ID            string                    `json:"id"`
	State         State                     `json:"state"`
	Destination   model.DestinationResponse `json:"destination"`
	Transient     []model.Placemark         `json:"transient"`
	Placement     bool                      `json:"placement"`
	SelectedID    *uuid.UUID                `json:"selected_id,omitempty"`
	VisibleRegion *model.Region             `json:"visible_region,omitempty"`
	Detail        *detail.View              `json:"detail,omitempty"`
	Version       uint64                    `json:"version"`
}

func (s *Session) Snapshot() Snapshot {
	v, version := s.live.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:          s.ID,
		State:       s.state,
		Destination: model.NewDestinationResponse(v.Destination),
		Transient:   v.Transient,
		Placement:   s.placement,
		Version:     version,
	}
	if snap.Transient == nil {
		snap.Transient = []model.Placemark{}
	}
	if s.visible != nil {
		r := *s.visible
		snap.VisibleRegion = &r
	}
	if s.detail != nil {
		dv := s.detail.View()
		id := dv.Placemark.ID
		snap.SelectedID = &id
		snap.Detail = &dv
	}
	return snap
}

// End clears transient results and stops the session. Ending twice is a no-op.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateEnded {
		s.mu.Unlock()
		return nil
	}
	if s.detail != nil {
		s.detail.Close()
		s.detail = nil
	}
	s.state = StateEnded
	s.placement = false
	s.mu.Unlock()

	if s.live != nil {
		s.live.Close()
	}
	s.preview.Reset()
	s.closeSubscribers()
	return s.search.RemoveTransientResults(ctx)
}
