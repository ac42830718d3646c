// Package export renders destinations as GeoJSON and uploads them to S3-compatible storage.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bwise1/lookaround/config"
	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/internal/store"
	"github.com/bwise1/lookaround/util"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	geojson "github.com/paulmach/go.geojson"
	"github.com/sirupsen/logrus"
)

var ErrExportDisabled = errors.New("export storage is not configured")

// ObjectPutter is the part of *minio.Client the exporter writes through.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Document is a destination rendered as a FeatureCollection. Overview is written as a
// foreign member next to the collection's standard fields.
type Document struct {
	Collection *geojson.FeatureCollection
	Overview   string
}

func (d Document) MarshalJSON() ([]byte, error) {
	raw, err := d.Collection.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if d.Overview == "" {
		return raw, nil
	}

	members := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, err
	}
	overview, err := json.Marshal(d.Overview)
	if err != nil {
		return nil, err
	}
	members["overview"] = overview
	return json.Marshal(members)
}

type Exporter struct {
	store  store.Store
	putter ObjectPutter
	bucket string
	log    logrus.FieldLogger
}

// NewExporter builds an exporter. A nil putter disables Upload.
func NewExporter(s store.Store, putter ObjectPutter, bucket string, log logrus.FieldLogger) *Exporter {
	return &Exporter{store: s, putter: putter, bucket: bucket, log: log}
}

// NewMinioClient connects to the configured endpoint and makes sure the export bucket exists.
func NewMinioClient(ctx context.Context, cfg *config.Config) (*minio.Client, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", cfg.MinioBucket, err)
		}
	}
	return client, nil
}

// GeoJSON renders the destination's placemarks in order.
func (e *Exporter) GeoJSON(ctx context.Context, destinationID uuid.UUID) (Document, error) {
	d, err := e.store.GetDestination(ctx, destinationID)
	if err != nil {
		return Document{}, err
	}
	return Render(d), nil
}

// Render builds the document for a loaded destination.
func Render(d model.Destination) Document {
	fc := geojson.NewFeatureCollection()
	path := make([][]float64, 0, len(d.Placemarks))

	for _, p := range d.Placemarks {
		f := geojson.NewPointFeature([]float64{p.Longitude, p.Latitude})
		f.ID = p.ID.String()
		f.SetProperty("name", p.Name)
		f.SetProperty("address", p.Address)
		f.SetProperty("position", p.Position)
		fc.AddFeature(f)

		path = append(path, []float64{p.Latitude, p.Longitude})
	}

	if r, ok := d.Region(); ok {
		b := r.Bounds()
		fc.BoundingBox = []float64{b.MinLongitude, b.MinLatitude, b.MaxLongitude, b.MaxLatitude}
	}

	return Document{Collection: fc, Overview: util.EncodePolyline(path)}
}

// ObjectKey is where a destination's export is stored.
func ObjectKey(destinationID uuid.UUID) string {
	return fmt.Sprintf("destinations/%s.geojson", destinationID)
}

// Upload writes the destination's GeoJSON to the bucket and returns the object key.
func (e *Exporter) Upload(ctx context.Context, destinationID uuid.UUID) (string, error) {
	if e.putter == nil {
		return "", ErrExportDisabled
	}

	doc, err := e.GeoJSON(ctx, destinationID)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}

	key := ObjectKey(destinationID)
	_, err = e.putter.PutObject(ctx, e.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/geo+json"})
	if err != nil {
		return "", fmt.Errorf("store export %s: %w", key, err)
	}

	e.log.WithFields(logrus.Fields{
		"destination_id": destinationID,
		"bucket":         e.bucket,
		"key":            key,
	}).Info("destination exported")
	return key, nil
}
