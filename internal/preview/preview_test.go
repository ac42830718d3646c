package preview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	googlemaps "github.com/bwise1/lookaround/internal/http/google"
	"github.com/bwise1/lookaround/internal/model"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

var louvre = model.Coordinate{Latitude: 48.8606, Longitude: 2.3376}

func TestFetcherAvailable(t *testing.T) {
	f := NewFetcher(ProviderFunc(func(_ context.Context, c model.Coordinate) (*model.Preview, error) {
		return &model.Preview{PanoID: "p1", Latitude: c.Latitude, Longitude: c.Longitude}, nil
	}), quietLogger())

	assert.Equal(t, model.PreviewIdle, f.Status().State)
	f.Request(louvre)
	f.Wait()

	st := f.Status()
	assert.Equal(t, model.PreviewAvailable, st.State)
	require.NotNil(t, st.Preview)
	assert.Equal(t, "p1", st.Preview.PanoID)
}

func TestFetcherMissingPreviewIsUnavailable(t *testing.T) {
	for name, p := range map[string]Provider{
		"nil preview": ProviderFunc(func(context.Context, model.Coordinate) (*model.Preview, error) { return nil, nil }),
		"error":       ProviderFunc(func(context.Context, model.Coordinate) (*model.Preview, error) { return nil, errors.New("boom") }),
	} {
		t.Run(name, func(t *testing.T) {
			f := NewFetcher(p, quietLogger())
			f.Request(louvre)
			f.Wait()
			assert.Equal(t, model.PreviewUnavailable, f.Status().State)
		})
	}

	f := NewFetcher(nil, quietLogger())
	f.Request(louvre)
	assert.Equal(t, model.PreviewUnavailable, f.Status().State)
}

func TestFetcherDiscardsSupersededResults(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var cancelled bool

	first := model.Coordinate{Latitude: 1, Longitude: 1}
	f := NewFetcher(ProviderFunc(func(ctx context.Context, c model.Coordinate) (*model.Preview, error) {
		if c == first {
			<-release
			mu.Lock()
			cancelled = ctx.Err() != nil
			mu.Unlock()
			return &model.Preview{PanoID: "stale"}, nil
		}
		return &model.Preview{PanoID: "current"}, nil
	}), quietLogger())

	f.Request(first)
	f.Request(louvre)
	close(release)
	f.Wait()

	st := f.Status()
	require.NotNil(t, st.Preview)
	assert.Equal(t, "current", st.Preview.PanoID)
	mu.Lock()
	assert.True(t, cancelled, "superseded request context is cancelled")
	mu.Unlock()
}

func TestFetcherResetAndNotifications(t *testing.T) {
	f := NewFetcher(ProviderFunc(func(context.Context, model.Coordinate) (*model.Preview, error) {
		return &model.Preview{PanoID: "p"}, nil
	}), quietLogger())

	var mu sync.Mutex
	var states []model.PreviewState
	f.OnChange(func(s model.PreviewStatus) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	f.Request(louvre)
	f.Wait()
	f.Reset()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.PreviewState{model.PreviewLoading, model.PreviewAvailable, model.PreviewIdle}, states)
}

type fakeUploader struct {
	url      string
	err      error
	source   string
	publicID string
}

func (u *fakeUploader) UploadImage(_ context.Context, source, _, publicID string) (string, error) {
	u.source, u.publicID = source, publicID
	return u.url, u.err
}

func TestMirrorPublishesHostedURL(t *testing.T) {
	upstream := ProviderFunc(func(context.Context, model.Coordinate) (*model.Preview, error) {
		return &model.Preview{PanoID: "pano/1", SourceURL: "https://maps.example/streetview?key=secret"}, nil
	})
	up := &fakeUploader{url: "https://res.cloudinary.com/demo/previews/pano_1.jpg"}

	p, err := NewMirror(upstream, up, "previews", quietLogger()).Lookup(context.Background(), louvre)
	require.NoError(t, err)
	assert.Equal(t, up.url, p.ImageURL)
	assert.Empty(t, p.SourceURL)
	assert.Equal(t, "pano_1", up.publicID)
	assert.Equal(t, "https://maps.example/streetview?key=secret", up.source)
}

func TestMirrorUploadFailureDropsImage(t *testing.T) {
	upstream := ProviderFunc(func(context.Context, model.Coordinate) (*model.Preview, error) {
		return &model.Preview{PanoID: "p", SourceURL: "https://maps.example/streetview?key=secret"}, nil
	})
	p, err := NewMirror(upstream, &fakeUploader{err: errors.New("denied")}, "previews", quietLogger()).Lookup(context.Background(), louvre)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "p", p.PanoID)
	assert.Empty(t, p.ImageURL)
	assert.Empty(t, p.SourceURL)

	body, err := json.Marshal(model.PreviewStatus{State: model.PreviewAvailable, Preview: p})
	require.NoError(t, err)
	assert.NotContains(t, string(body), "key=")
}

func TestStreetViewLookup(t *testing.T) {
	var status atomic.Value
	status.Store("OK")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"` + status.Load().(string) + `","pano_id":"abc","date":"2022-07","location":{"lat":48.86,"lng":2.337}}`))
	}))
	defer srv.Close()

	client := googlemaps.NewGoogleMapsClient("k")
	client.BaseURL = srv.URL
	sv := NewStreetView(client)

	p, err := sv.Lookup(context.Background(), louvre)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "abc", p.PanoID)
	assert.Equal(t, "2022-07", p.CapturedAt)
	assert.Contains(t, p.SourceURL, "pano=abc")
	assert.Empty(t, p.ImageURL)

	body, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "key=", "the keyed image URL is never serialized")
	assert.Contains(t, string(body), `"pano_id":"abc"`)

	status.Store("ZERO_RESULTS")
	p, err = sv.Lookup(context.Background(), louvre)
	require.NoError(t, err)
	assert.Nil(t, p)

	status.Store("REQUEST_DENIED")
	_, err = sv.Lookup(context.Background(), louvre)
	assert.Error(t, err)
}
