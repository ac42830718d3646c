// Package destinations manages the destination list.
package destinations

import (
	"context"
	"errors"
	"strings"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/internal/session"
	"github.com/bwise1/lookaround/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrEmptyName = errors.New("destination name is required")

// Sessions opens and closes map sessions.
type Sessions interface {
	Start(ctx context.Context, destinationID uuid.UUID) (*session.Session, error)
	EndDestination(ctx context.Context, destinationID uuid.UUID) int
}

type Controller struct {
	store    store.Store
	sessions Sessions
	log      logrus.FieldLogger
}

func NewController(s store.Store, sessions Sessions, log logrus.FieldLogger) *Controller {
	return &Controller{store: s, sessions: sessions, log: log.WithField("component", "destinations")}
}

// List returns destinations sorted by name.
func (c *Controller) List(ctx context.Context) ([]model.DestinationSummary, error) {
	return c.store.ListDestinations(ctx)
}

func (c *Controller) Get(ctx context.Context, id uuid.UUID) (model.Destination, error) {
	return c.store.GetDestination(ctx, id)
}

// Create stores a destination under the trimmed name and opens a map session on it.
func (c *Controller) Create(ctx context.Context, name string) (model.Destination, *session.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Destination{}, nil, ErrEmptyName
	}

	d := model.Destination{Name: name}
	if err := c.store.InsertDestination(ctx, &d); err != nil {
		return model.Destination{}, nil, err
	}
	c.log.WithFields(logrus.Fields{"destination_id": d.ID, "name": d.Name}).Info("destination created")

	s, err := c.sessions.Start(ctx, d.ID)
	if err != nil {
		return d, nil, err
	}
	return d, s, nil
}

// Delete removes the destination, detaching its placemarks, and ends its sessions.
func (c *Controller) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.store.DeleteDestination(ctx, id); err != nil {
		return err
	}
	ended := c.sessions.EndDestination(ctx, id)
	c.log.WithFields(logrus.Fields{"destination_id": id, "sessions_ended": ended}).Info("destination deleted")
	return nil
}
