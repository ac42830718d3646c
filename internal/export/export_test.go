package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/internal/store"
	"github.com/bwise1/lookaround/util"
	"github.com/bwise1/lookaround/util/logging"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPutter struct {
	mock.Mock
	body []byte
}

func (m *MockPutter) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
	opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	m.body, _ = io.ReadAll(reader)
	args := m.Called(ctx, bucketName, objectName, objectSize, opts.ContentType)
	return minio.UploadInfo{Bucket: bucketName, Key: objectName}, args.Error(0)
}

func seedParis(t *testing.T) (*store.Memory, model.Destination) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory(nil)

	d := model.Destination{Name: "Paris"}
	d.SetRegion(model.Region{
		Center: model.Coordinate{Latitude: 48.5, Longitude: 2.5},
		Span:   model.Span{LatitudeDelta: 1, LongitudeDelta: 1},
	})
	require.NoError(t, s.InsertDestination(ctx, &d))

	for _, p := range []model.Placemark{
		model.NewTransientPlacemark("Louvre Museum", "Rue de Rivoli, Paris", model.Coordinate{Latitude: 48.8606, Longitude: 2.3376}),
		model.NewTransientPlacemark("Eiffel Tower", "Champ de Mars, Paris", model.Coordinate{Latitude: 48.8584, Longitude: 2.2945}),
	} {
		p.DestinationID = &d.ID
		require.NoError(t, s.InsertPlacemark(ctx, &p))
	}
	return s, d
}

func TestGeoJSON(t *testing.T) {
	s, d := seedParis(t)
	e := NewExporter(s, nil, "exports", logging.Discard())

	doc, err := e.GeoJSON(context.Background(), d.ID)
	require.NoError(t, err)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, []float64{2, 48, 3, 49}, fc.BoundingBox)

	first := fc.Features[0]
	assert.Equal(t, "Louvre Museum", first.PropertyMustString("name"))
	assert.Equal(t, "Rue de Rivoli, Paris", first.PropertyMustString("address"))
	assert.Equal(t, 0, first.PropertyMustInt("position"))
	assert.Equal(t, []float64{2.3376, 48.8606}, first.Geometry.Point)

	var members struct {
		Overview string `json:"overview"`
	}
	require.NoError(t, json.Unmarshal(raw, &members))
	path, err := util.DecodePolyLines(members.Overview)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.InDelta(t, 48.8606, path[0][0], 1e-5)
	assert.InDelta(t, 2.2945, path[1][1], 1e-5)
}

func TestGeoJSONWithoutRegionOrPlacemarks(t *testing.T) {
	doc := Render(model.Destination{ID: uuid.New(), Name: "Empty"})

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(raw))
}

func TestGeoJSONMissingDestination(t *testing.T) {
	e := NewExporter(store.NewMemory(nil), nil, "exports", logging.Discard())
	_, err := e.GeoJSON(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpload(t *testing.T) {
	s, d := seedParis(t)
	putter := &MockPutter{}
	key := "destinations/" + d.ID.String() + ".geojson"
	putter.On("PutObject", mock.Anything, "exports", key, mock.AnythingOfType("int64"), "application/geo+json").
		Return(nil).Once()

	e := NewExporter(s, putter, "exports", logging.Discard())
	got, err := e.Upload(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, key, got)
	putter.AssertExpectations(t)

	fc, err := geojson.UnmarshalFeatureCollection(putter.body)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

func TestUploadErrors(t *testing.T) {
	s, d := seedParis(t)

	disabled := NewExporter(s, nil, "exports", logging.Discard())
	_, err := disabled.Upload(context.Background(), d.ID)
	assert.ErrorIs(t, err, ErrExportDisabled)

	putter := &MockPutter{}
	putter.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("bucket gone"))
	failing := NewExporter(s, putter, "exports", logging.Discard())
	_, err = failing.Upload(context.Background(), d.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
}
