// Package preview fetches street-level imagery for the selected placemark.
package preview

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/sirupsen/logrus"
)

// Provider looks up the preview closest to a coordinate. A nil preview with a nil error
// means no imagery exists there.
type Provider interface {
	Lookup(ctx context.Context, coord model.Coordinate) (*model.Preview, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, coord model.Coordinate) (*model.Preview, error)

func (f ProviderFunc) Lookup(ctx context.Context, coord model.Coordinate) (*model.Preview, error) {
	return f(ctx, coord)
}

// Uploader copies a remote image to storage the service controls.
type Uploader interface {
	UploadImage(ctx context.Context, source, folder, publicID string) (string, error)
}

// Mirror re-hosts preview images through an Uploader and publishes the hosted URL. When
// the upload fails the preview keeps only its panorama id.
type Mirror struct {
	next     Provider
	uploader Uploader
	folder   string
	log      logrus.FieldLogger
}

func NewMirror(next Provider, uploader Uploader, folder string, log logrus.FieldLogger) *Mirror {
	return &Mirror{next: next, uploader: uploader, folder: folder, log: log.WithField("component", "preview_mirror")}
}

func (m *Mirror) Lookup(ctx context.Context, coord model.Coordinate) (*model.Preview, error) {
	p, err := m.next.Lookup(ctx, coord)
	if err != nil || p == nil || p.SourceURL == "" {
		return p, err
	}

	mirrored := *p
	mirrored.SourceURL = ""
	url, err := m.uploader.UploadImage(ctx, p.SourceURL, m.folder, publicID(p))
	if err != nil {
		m.log.WithError(err).WithField("pano_id", p.PanoID).Warn("mirroring preview failed")
		return &mirrored, nil
	}
	mirrored.ImageURL = url
	return &mirrored, nil
}

func publicID(p *model.Preview) string {
	if p.PanoID != "" {
		return strings.NewReplacer("/", "_", " ", "_").Replace(p.PanoID)
	}
	return fmt.Sprintf("%.6f_%.6f", p.Latitude, p.Longitude)
}
