package detail

import (
	"context"
	"testing"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/internal/preview"
	"github.com/bwise1/lookaround/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *store.Memory
	dest  model.Destination
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s := store.NewMemory(nil)
	d := model.Destination{Name: "Paris"}
	require.NoError(t, s.InsertDestination(context.Background(), &d))
	return fixture{store: s, dest: d}
}

func (f fixture) placemark(t *testing.T, name string, attached bool) model.Placemark {
	t.Helper()
	p := model.NewTransientPlacemark(name, "Rue de Rivoli", model.Coordinate{Latitude: 48.8606, Longitude: 2.3376})
	if attached {
		p.DestinationID = &f.dest.ID
	}
	require.NoError(t, f.store.InsertPlacemark(context.Background(), &p))
	return p
}

func (f fixture) open(t *testing.T, p model.Placemark) *Controller {
	t.Helper()
	c, err := Open(context.Background(), f.store, &f.dest.ID, "session-1", p.ID, nil)
	require.NoError(t, err)
	return c
}

func TestAttachTransientPlacemark(t *testing.T) {
	f := newFixture(t)
	p := f.placemark(t, "Louvre", false)
	c := f.open(t, p)

	assert.False(t, c.InDestination())
	assert.True(t, c.CanToggle())
	assert.Equal(t, ActionAdd, c.View().Action)

	got, err := c.ToggleMembership(context.Background())
	require.NoError(t, err)
	assert.True(t, got.BelongsTo(f.dest.ID))

	d, err := f.store.GetDestination(context.Background(), f.dest.ID)
	require.NoError(t, err)
	require.Len(t, d.Placemarks, 1)
	assert.Equal(t, p.ID, d.Placemarks[0].ID)
}

func TestDetachPermanentPlacemark(t *testing.T) {
	f := newFixture(t)
	p := f.placemark(t, "Louvre", true)
	c := f.open(t, p)
	assert.Equal(t, ActionRemove, c.View().Action)

	got, err := c.ToggleMembership(context.Background())
	require.NoError(t, err)
	assert.True(t, got.IsTransient())
	assert.True(t, got.OwnedBy("session-1"), "detached placemark stays with the session that removed it")
}

func TestAttachDisabledByEmptyNameOrPendingEdit(t *testing.T) {
	f := newFixture(t)

	unnamed := f.open(t, f.placemark(t, "  ", false))
	assert.False(t, unnamed.CanToggle(), "blank name")
	_, err := unnamed.ToggleMembership(context.Background())
	assert.ErrorIs(t, err, ErrActionDisabled)

	edited := f.open(t, f.placemark(t, "Louvre", false))
	edited.Edit("Louvre Museum", "Rue de Rivoli")
	assert.True(t, edited.IsChanged())
	assert.False(t, edited.CanToggle(), "uncommitted edit")
}

func TestRemoveStaysAvailableWithEmptyName(t *testing.T) {
	f := newFixture(t)
	c := f.open(t, f.placemark(t, "Louvre", true))

	c.Edit("", "Rue de Rivoli")
	assert.True(t, c.IsChanged())
	assert.True(t, c.CanToggle())
	assert.Equal(t, ActionRemove, c.View().Action)

	_, err := c.ToggleMembership(context.Background())
	require.NoError(t, err)

	again := f.open(t, c.Placemark())
	again.Edit("", "Rue de Rivoli")
	assert.False(t, again.CanToggle(), "attach path stays disabled while the name is empty")
}

func TestCommitWritesTrimmedValues(t *testing.T) {
	f := newFixture(t)
	p := f.placemark(t, "Louvre", true)
	c := f.open(t, p)

	assert.False(t, c.CanCommit())
	assert.ErrorIs(t, c.Commit(context.Background()), ErrActionDisabled)

	c.Edit("  Musée du Louvre ", " 75001 Paris\n")
	require.True(t, c.CanCommit())
	require.NoError(t, c.Commit(context.Background()))
	assert.False(t, c.IsChanged())

	stored, err := f.store.GetPlacemark(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Musée du Louvre", stored.Name)
	assert.Equal(t, "75001 Paris", stored.Address)
	assert.True(t, stored.BelongsTo(f.dest.ID))
}

func TestNoDestinationDisablesActions(t *testing.T) {
	f := newFixture(t)
	p := f.placemark(t, "Louvre", false)
	c, err := Open(context.Background(), f.store, nil, "session-1", p.ID, nil)
	require.NoError(t, err)

	c.Edit("Other", "")
	assert.False(t, c.CanCommit())
	assert.False(t, c.CanToggle())
	assert.Empty(t, c.View().Action)
}

func TestOpenMissingPlacemark(t *testing.T) {
	f := newFixture(t)
	_, err := Open(context.Background(), f.store, &f.dest.ID, "session-1", uuid.New(), nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOpenRequestsPreview(t *testing.T) {
	f := newFixture(t)
	p := f.placemark(t, "Louvre", false)

	var asked model.Coordinate
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	fetcher := preview.NewFetcher(preview.ProviderFunc(func(_ context.Context, c model.Coordinate) (*model.Preview, error) {
		asked = c
		return &model.Preview{PanoID: "pano"}, nil
	}), log)

	c, err := Open(context.Background(), f.store, &f.dest.ID, "session-1", p.ID, fetcher)
	require.NoError(t, err)
	fetcher.Wait()

	assert.Equal(t, p.Coordinate(), asked)
	v := c.View()
	assert.Equal(t, model.PreviewAvailable, v.Preview.State)

	c.Close()
	assert.Equal(t, model.PreviewIdle, c.View().Preview.State)
}
