package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func places(names ...string) []Result {
	out := make([]Result, 0, len(names))
	for i, n := range names {
		out = append(out, Result{
			Name:    n,
			Address: n + " street",
			Coord:   model.Coordinate{Latitude: 48.86 + float64(i)/1000, Longitude: 2.33},
		})
	}
	return out
}

func staticProvider(results []Result, err error) ProviderFunc {
	return func(context.Context, string, *model.Region) ([]Result, error) {
		return results, err
	}
}

func transientNames(t *testing.T, s store.Store) []string {
	t.Helper()
	list, err := s.Placemarks(context.Background(), store.Transient())
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, p := range list {
		names = append(names, p.Name)
	}
	return names
}

func TestSearchInsertsTransientPlacemarks(t *testing.T) {
	s := store.NewMemory(nil)
	var gotBias *model.Region
	c := NewCoordinator(s, ProviderFunc(func(_ context.Context, q string, bias *model.Region) ([]Result, error) {
		gotBias = bias
		return places("Louvre Museum", "Louvre Pyramid"), nil
	}), quietLogger())

	bias := &model.Region{
		Center: model.Coordinate{Latitude: 48.8566, Longitude: 2.3522},
		Span:   model.Span{LatitudeDelta: 0.1, LongitudeDelta: 0.1},
	}
	c.Search(context.Background(), "Louvre", bias)

	assert.Equal(t, bias, gotBias)
	assert.ElementsMatch(t, []string{"Louvre Museum", "Louvre Pyramid"}, transientNames(t, s))

	list, err := s.Placemarks(context.Background(), store.Transient())
	require.NoError(t, err)
	for _, p := range list {
		assert.Equal(t, p.Name+" street", p.Address)
		assert.True(t, p.IsTransient())
	}
}

func TestSearchReplacesPreviousResults(t *testing.T) {
	s := store.NewMemory(nil)
	results := places("First")
	c := NewCoordinator(s, ProviderFunc(func(context.Context, string, *model.Region) ([]Result, error) {
		return results, nil
	}), quietLogger())

	c.Search(context.Background(), "a", nil)
	results = places("Second", "Third")
	c.Search(context.Background(), "b", nil)

	assert.ElementsMatch(t, []string{"Second", "Third"}, transientNames(t, s))
}

func TestSearchFailureLeavesNoResults(t *testing.T) {
	s := store.NewMemory(nil)
	ok := NewCoordinator(s, staticProvider(places("Old"), nil), quietLogger())
	ok.Search(context.Background(), "old", nil)
	require.Len(t, transientNames(t, s), 1)

	failing := NewCoordinator(s, staticProvider(nil, errors.New("offline")), quietLogger())
	assert.NotPanics(t, func() { failing.Search(context.Background(), "Louvre", nil) })
	assert.Empty(t, transientNames(t, s))
}

func TestSearchKeepsPermanentPlacemarks(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(nil)
	d := model.Destination{Name: "Paris"}
	require.NoError(t, s.InsertDestination(ctx, &d))
	kept := model.NewTransientPlacemark("Louvre", "", model.Coordinate{Latitude: 48.86, Longitude: 2.33})
	kept.DestinationID = &d.ID
	require.NoError(t, s.InsertPlacemark(ctx, &kept))

	c := NewCoordinator(s, staticProvider(places("Result"), nil), quietLogger())
	c.Search(ctx, "x", nil)
	require.NoError(t, c.RemoveTransientResults(ctx))
	require.NoError(t, c.RemoveTransientResults(ctx))

	assert.Empty(t, transientNames(t, s))
	got, err := s.GetDestination(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, got.Placemarks, 1)
	assert.Equal(t, kept.ID, got.Placemarks[0].ID)
}

// blockingProvider holds each call until released so tests can interleave searches.
type blockingProvider struct {
	mu      sync.Mutex
	started chan string
	release map[string]chan struct{}
}

func newBlockingProvider() *blockingProvider {
	return &blockingProvider{started: make(chan string, 4), release: map[string]chan struct{}{}}
}

func (b *blockingProvider) gate(q string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.release[q]
	if !ok {
		ch = make(chan struct{})
		b.release[q] = ch
	}
	return ch
}

func (b *blockingProvider) Search(_ context.Context, q string, _ *model.Region) ([]Result, error) {
	gate := b.gate(q)
	b.started <- q
	<-gate
	return places(q + " result"), nil
}

func TestStaleSearchResultsAreDropped(t *testing.T) {
	s := store.NewMemory(nil)
	p := newBlockingProvider()
	c := NewCoordinator(s, p, quietLogger())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); c.Search(context.Background(), "first", nil) }()
	require.Equal(t, "first", <-p.started)
	go func() { defer wg.Done(); c.Search(context.Background(), "second", nil) }()
	require.Equal(t, "second", <-p.started)

	close(p.gate("second"))
	close(p.gate("first"))
	wg.Wait()

	assert.Equal(t, []string{"second result"}, transientNames(t, s))
}

func TestRemoveInvalidatesInFlightSearch(t *testing.T) {
	s := store.NewMemory(nil)
	p := newBlockingProvider()
	c := NewCoordinator(s, p, quietLogger())

	done := make(chan struct{})
	go func() { c.Search(context.Background(), "late", nil); close(done) }()
	<-p.started
	require.NoError(t, c.RemoveTransientResults(context.Background()))
	close(p.gate("late"))
	<-done

	assert.Empty(t, transientNames(t, s))
}

func TestAddTransientClearsDestination(t *testing.T) {
	s := store.NewMemory(nil)
	c := NewCoordinator(s, staticProvider(nil, nil), quietLogger())

	id := uuid.New()
	p := model.NewTransientPlacemark("Pin", "", model.Coordinate{Latitude: 48.86, Longitude: 2.35})
	p.DestinationID = &id
	require.NoError(t, c.AddTransient(context.Background(), &p))
	assert.Equal(t, []string{"Pin"}, transientNames(t, s))
}

func ownedNames(t *testing.T, s store.Store, owner string) []string {
	t.Helper()
	list, err := s.Placemarks(context.Background(), store.TransientOf(owner))
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, p := range list {
		names = append(names, p.Name)
	}
	return names
}

func TestScopedCoordinatorsDoNotTouchEachOther(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(nil)
	root := NewCoordinator(s, staticProvider(places("Louvre"), nil), quietLogger())
	a, b := root.Scoped("a"), root.Scoped("b")
	assert.Equal(t, "a", a.Owner())
	assert.Empty(t, root.Owner())

	pin := model.NewTransientPlacemark("Pin", "", model.Coordinate{Latitude: 48.86, Longitude: 2.35})
	require.NoError(t, a.AddTransient(ctx, &pin))
	assert.Equal(t, "a", pin.SessionID)

	b.Search(ctx, "Louvre", nil)
	assert.Equal(t, []string{"Pin"}, ownedNames(t, s, "a"))
	assert.Equal(t, []string{"Louvre"}, ownedNames(t, s, "b"))

	require.NoError(t, b.RemoveTransientResults(ctx))
	require.NoError(t, root.RemoveTransientResults(ctx))
	assert.Equal(t, []string{"Pin"}, transientNames(t, s))
}

func TestRemoveInOtherScopeKeepsInFlightSearch(t *testing.T) {
	s := store.NewMemory(nil)
	p := newBlockingProvider()
	root := NewCoordinator(s, p, quietLogger())
	a, b := root.Scoped("a"), root.Scoped("b")

	done := make(chan struct{})
	go func() { a.Search(context.Background(), "pending", nil); close(done) }()
	<-p.started
	require.NoError(t, b.RemoveTransientResults(context.Background()))
	close(p.gate("pending"))
	<-done

	assert.Equal(t, []string{"pending result"}, ownedNames(t, s, "a"))
}
