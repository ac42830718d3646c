package destinations

import (
	"context"
	"testing"
	"time"

	"github.com/bwise1/lookaround/internal/events"
	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/internal/search"
	"github.com/bwise1/lookaround/internal/session"
	"github.com/bwise1/lookaround/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController(t *testing.T) (*Controller, *store.Memory, *session.Registry) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	bus := events.NewBus()
	s := store.NewMemory(bus)
	noResults := search.ProviderFunc(func(context.Context, string, *model.Region) ([]search.Result, error) {
		return nil, nil
	})
	registry := session.NewRegistry(session.Deps{
		Store:  s,
		Bus:    bus,
		Search: search.NewCoordinator(s, noResults, log),
	}, time.Minute, log)
	t.Cleanup(func() { registry.Close(context.Background()) })

	return NewController(s, registry, log), s, registry
}

func TestCreateRejectsBlankNames(t *testing.T) {
	c, _, registry := newController(t)

	for _, name := range []string{"", "   ", "\n\t"} {
		_, _, err := c.Create(context.Background(), name)
		assert.ErrorIs(t, err, ErrEmptyName)
	}

	list, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, registry.Len())
}

func TestCreateTrimsAndOpensSession(t *testing.T) {
	c, _, registry := newController(t)

	d, s, err := c.Create(context.Background(), "  Paris ")
	require.NoError(t, err)
	assert.Equal(t, "Paris", d.Name)
	require.NotNil(t, s)
	assert.Equal(t, d.ID, s.DestinationID)
	assert.Equal(t, session.StateIdle, s.State())
	assert.Equal(t, 1, registry.Len())
}

func TestListSortedByName(t *testing.T) {
	c, _, _ := newController(t)
	for _, name := range []string{"Rome", "Amsterdam", "Paris"} {
		_, _, err := c.Create(context.Background(), name)
		require.NoError(t, err)
	}

	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Amsterdam", list[0].Name)
	assert.Equal(t, "Paris", list[1].Name)
	assert.Equal(t, "Rome", list[2].Name)
}

func TestDeleteDetachesPlacemarksAndEndsSessions(t *testing.T) {
	ctx := context.Background()
	c, s, registry := newController(t)

	d, sess, err := c.Create(ctx, "Paris")
	require.NoError(t, err)
	p := model.NewTransientPlacemark("Louvre", "", model.Coordinate{Latitude: 48.86, Longitude: 2.33})
	p.DestinationID = &d.ID
	require.NoError(t, s.InsertPlacemark(ctx, &p))

	require.NoError(t, c.Delete(ctx, d.ID))

	_, err = c.Get(ctx, d.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, session.StateEnded, sess.State())
	assert.Zero(t, registry.Len())

	// the session's exit sweep takes the detached placemark with it
	_, err = s.GetPlacemark(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteUnknown(t *testing.T) {
	c, _, _ := newController(t)
	assert.ErrorIs(t, c.Delete(context.Background(), uuid.New()), store.ErrNotFound)
}
