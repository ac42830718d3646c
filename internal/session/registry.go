package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwise1/lookaround/internal/events"
	"github.com/bwise1/lookaround/internal/preview"
	"github.com/bwise1/lookaround/internal/search"
	"github.com/bwise1/lookaround/internal/store"
	"github.com/google/uuid"
	"github.com/lucsky/cuid"
	"github.com/sirupsen/logrus"
)

var ErrSessionNotFound = errors.New("session not found")

// Deps are the collaborators shared by every session.
type Deps struct {
	Store    store.Store
	Bus      *events.Bus
	Search   *search.Coordinator
	Reverse  search.ReverseGeocoder
	Previews preview.Provider
}

// Registry keeps live sessions and ends the ones left idle longer than the TTL.
type Registry struct {
	deps Deps
	ttl  time.Duration
	log  logrus.FieldLogger
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps, ttl time.Duration, log logrus.FieldLogger) *Registry {
	return &Registry{
		deps:     deps,
		ttl:      ttl,
		log:      log.WithField("component", "sessions"),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Start opens a session on the destination.
func (r *Registry) Start(ctx context.Context, destinationID uuid.UUID) (*Session, error) {
	if _, err := r.deps.Store.GetDestination(ctx, destinationID); err != nil {
		return nil, err
	}
	r.removeAbandoned(ctx)

	id := cuid.New()
	log := r.log.WithFields(logrus.Fields{"session_id": id, "destination_id": destinationID})
	s := &Session{
		ID:            id,
		DestinationID: destinationID,
		store:         r.deps.Store,
		search:        r.deps.Search.Scoped(id),
		reverse:       r.deps.Reverse,
		preview:       preview.NewFetcher(r.deps.Previews, log),
		log:           log,
		now:           r.now,
		state:         StateIdle,
		lastActive:    r.now(),
	}
	if err := s.start(ctx, r.deps.Bus); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	log.Info("session started")
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) End(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.log.Info("session ended")
	return s.End(ctx)
}

// EndDestination ends every session open on the destination.
func (r *Registry) EndDestination(ctx context.Context, destinationID uuid.UUID) int {
	r.mu.Lock()
	var matched []*Session
	for id, s := range r.sessions {
		if s.DestinationID == destinationID {
			matched = append(matched, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range matched {
		if err := s.End(ctx); err != nil {
			s.log.WithError(err).Warn("failed to end session")
		}
	}
	return len(matched)
}

// Sweep ends every session idle for longer than the TTL and returns how many it ended.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		if err := s.End(ctx); err != nil {
			s.log.WithError(err).Warn("failed to end expired session")
			continue
		}
		s.log.Info("session expired")
	}
	r.removeAbandoned(ctx)
	return len(expired)
}

// removeAbandoned deletes transient placemarks that no live session owns: orphans of a
// deleted destination and leftovers of sessions that ended without cleaning up, such as
// the ones of a previous process.
func (r *Registry) removeAbandoned(ctx context.Context) {
	if err := r.deps.Search.RemoveTransientResults(ctx); err != nil {
		r.log.WithError(err).Warn("failed to remove orphaned placemarks")
	}

	transient, err := r.deps.Store.Placemarks(ctx, store.Transient())
	if err != nil {
		r.log.WithError(err).Warn("failed to list transient placemarks")
		return
	}
	owners := make(map[string]struct{})
	r.mu.RLock()
	for _, p := range transient {
		if _, live := r.sessions[p.SessionID]; !live && p.SessionID != "" {
			owners[p.SessionID] = struct{}{}
		}
	}
	r.mu.RUnlock()

	for owner := range owners {
		n, err := r.deps.Store.DeletePlacemarks(ctx, store.TransientOf(owner))
		if err != nil {
			r.log.WithError(err).WithField("owner", owner).Warn("failed to remove abandoned placemarks")
			continue
		}
		r.log.WithFields(logrus.Fields{"owner": owner, "removed": n}).Debug("removed abandoned placemarks")
	}
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close ends every session.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		if err := s.End(ctx); err != nil {
			s.log.WithError(err).Warn("failed to end session")
		}
	}
}
