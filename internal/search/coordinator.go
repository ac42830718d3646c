package search

import (
	"context"
	"sync"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/internal/store"
	"github.com/sirupsen/logrus"
)

// Coordinator owns one set of transient placemarks. Each Search replaces the whole set
// with the provider's results. The root coordinator returned by NewCoordinator owns the
// orphaned placemarks; Scoped hands out one coordinator per session.
type Coordinator struct {
	store    store.Store
	provider Provider
	log      logrus.FieldLogger
	owner    string

	mu         sync.Mutex
	generation uint64
}

func NewCoordinator(s store.Store, provider Provider, log logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		store:    s,
		provider: provider,
		log:      log.WithField("component", "search"),
	}
}

// Scoped returns a coordinator for the transient placemarks of one session. It shares the
// store and provider but keeps its own generation, so sessions never supersede or clear
// each other's results.
func (c *Coordinator) Scoped(sessionID string) *Coordinator {
	return &Coordinator{
		store:    c.store,
		provider: c.provider,
		log:      c.log.WithField("session_id", sessionID),
		owner:    sessionID,
	}
}

// Owner returns the session whose placemarks c manages, or "" for the root coordinator.
func (c *Coordinator) Owner() string {
	return c.owner
}

func (c *Coordinator) transient() store.PlacemarkFilter {
	return store.TransientOf(c.owner)
}

// Provider returns the provider searches go to.
func (c *Coordinator) Provider() Provider {
	return c.provider
}

// Search removes the current transient placemarks, queries the provider and inserts one
// transient placemark per result. Failures leave the transient set empty and are only
// logged. Results of a search superseded by a later Search or RemoveTransientResults are
// dropped.
func (c *Coordinator) Search(ctx context.Context, query string, bias *model.Region) {
	log := c.log.WithField("query", query)

	c.mu.Lock()
	c.generation++
	gen := c.generation
	if _, err := c.store.DeletePlacemarks(ctx, c.transient()); err != nil {
		log.WithError(err).Warn("failed to clear previous results")
	}
	c.mu.Unlock()

	results, err := c.provider.Search(ctx, query, bias)
	if err != nil {
		log.WithError(err).Warn("search failed")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		log.Debug("discarding stale results")
		return
	}

	inserted := 0
	for _, r := range results {
		p := model.NewTransientPlacemark(r.Name, r.Address, r.Coord)
		p.SessionID = c.owner
		if err := c.store.InsertPlacemark(ctx, &p); err != nil {
			log.WithError(err).Warn("failed to store result")
			continue
		}
		inserted++
	}
	log.WithField("results", inserted).Debug("search complete")
}

// RemoveTransientResults deletes the transient placemarks c owns and invalidates any
// search still in flight.
func (c *Coordinator) RemoveTransientResults(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	n, err := c.store.DeletePlacemarks(ctx, c.transient())
	if err != nil {
		return err
	}
	if n > 0 {
		c.log.WithField("removed", n).Debug("removed transient placemarks")
	}
	return nil
}

// AddTransient stores a single transient placemark owned by c, such as a manual pin. It
// does not touch pending searches.
func (c *Coordinator) AddTransient(ctx context.Context, p *model.Placemark) error {
	p.DestinationID = nil
	p.SessionID = c.owner
	return c.store.InsertPlacemark(ctx, p)
}
