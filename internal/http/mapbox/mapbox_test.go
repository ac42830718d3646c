package mapbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const louvreFeatures = `{
  "type": "FeatureCollection",
  "query": ["louvre"],
  "features": [
    {"id": "poi.1", "type": "Feature", "place_type": ["poi"], "relevance": 1,
     "text": "Louvre Museum", "place_name": "Louvre Museum, Rue de Rivoli, Paris, France",
     "center": [2.3376, 48.8606]},
    {"id": "broken", "type": "Feature", "text": "No center", "place_name": "No center"}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *MapboxClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewMapboxClient("pk.test")
	c.BaseURL = srv.URL
	return c
}

func TestSearchSendsProximityAndBBox(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocoding/v5/mapbox.places/Louvre Museum.json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "pk.test", q.Get("access_token"))
		assert.Equal(t, "2.5,48.5", q.Get("proximity"))
		assert.Equal(t, "2,48,3,49", q.Get("bbox"))
		_, _ = w.Write([]byte(louvreFeatures))
	})

	bias := model.Region{
		Center: model.Coordinate{Latitude: 48.5, Longitude: 2.5},
		Span:   model.Span{LatitudeDelta: 1, LongitudeDelta: 1},
	}
	places, err := c.Search(context.Background(), "Louvre Museum", &bias)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Louvre Museum", places[0].Name)
	assert.Equal(t, "Rue de Rivoli, Paris, France", places[0].Address)
	assert.Equal(t, 48.8606, places[0].Coord.Latitude)
}

func TestSearchNearAntimeridianOmitsBBox(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "179.9,-17.7", q.Get("proximity"))
		assert.False(t, q.Has("bbox"))
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	})

	bias := model.Region{
		Center: model.Coordinate{Latitude: -17.7, Longitude: 179.9},
		Span:   model.Span{LatitudeDelta: 1, LongitudeDelta: 1},
	}
	_, err := c.Search(context.Background(), "Suva", &bias)
	require.NoError(t, err)
}

func TestSearchEmptyQuerySkipsRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	places, err := c.Search(context.Background(), "  ", nil)
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestSearchRequiresKey(t *testing.T) {
	c := NewMapboxClient("")
	_, err := c.Search(context.Background(), "Louvre", nil)
	assert.Error(t, err)
}

func TestReverse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocoding/v5/mapbox.places/2.35,48.86.json", r.URL.Path)
		_, _ = w.Write([]byte(louvreFeatures))
	})
	place, err := c.Reverse(context.Background(), model.Coordinate{Latitude: 48.86, Longitude: 2.35})
	require.NoError(t, err)
	require.NotNil(t, place)
	assert.Equal(t, "Louvre Museum", place.Name)
}

func TestSearchStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := c.Search(context.Background(), "Louvre", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
