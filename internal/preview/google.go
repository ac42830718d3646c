package preview

import (
	"context"

	googlemaps "github.com/bwise1/lookaround/internal/http/google"
	"github.com/bwise1/lookaround/internal/model"
	"github.com/pkg/errors"
)

const (
	imageWidth  = 640
	imageHeight = 400
)

// StreetView serves previews from the Google Street View metadata API. The static image
// URL embeds the API key, so it is kept as the preview's SourceURL for a Mirror to copy.
type StreetView struct {
	client *googlemaps.GoogleMapsClient
}

func NewStreetView(client *googlemaps.GoogleMapsClient) *StreetView {
	return &StreetView{client: client}
}

func (s *StreetView) Lookup(ctx context.Context, coord model.Coordinate) (*model.Preview, error) {
	meta, err := s.client.StreetViewMetadata(ctx, coord)
	if err != nil {
		return nil, err
	}

	switch meta.Status {
	case "OK":
		return &model.Preview{
			PanoID:     meta.PanoID,
			Latitude:   meta.Location.Lat,
			Longitude:  meta.Location.Lng,
			SourceURL:  s.client.StreetViewImageURL(meta.PanoID, imageWidth, imageHeight),
			CapturedAt: meta.Date,
		}, nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return nil, nil
	default:
		return nil, errors.Errorf("street view status %s: %s", meta.Status, meta.ErrorMessage)
	}
}
