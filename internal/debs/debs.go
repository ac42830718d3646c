package deps

import (
	"context"
	"fmt"

	"github.com/bwise1/lookaround/config"
	"github.com/bwise1/lookaround/internal/db"
	"github.com/bwise1/lookaround/internal/destinations"
	"github.com/bwise1/lookaround/internal/events"
	"github.com/bwise1/lookaround/internal/export"
	googlemaps "github.com/bwise1/lookaround/internal/http/google"
	"github.com/bwise1/lookaround/internal/http/mapbox"
	stadiamaps "github.com/bwise1/lookaround/internal/http/stadia_maps"
	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/internal/preview"
	"github.com/bwise1/lookaround/internal/search"
	"github.com/bwise1/lookaround/internal/session"
	"github.com/bwise1/lookaround/internal/store"
	"github.com/bwise1/lookaround/util/storage"
	"github.com/bwise1/lookaround/util/websockets"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const previewFolder = "lookaround/previews"

type Dependencies struct {
	DB           *db.DB // nil when running on the in-memory store
	Store        store.Store
	Bus          *events.Bus
	Kafka        *events.KafkaSink
	Redis        *redis.Client
	Cloudinary   *storage.Cloudinary
	WebSocket    *websockets.WebSocketManager
	Search       *search.Coordinator
	Reverse      search.ReverseGeocoder // nil when no provider can reverse geocode
	Sessions     *session.Registry
	Destinations *destinations.Controller
	Exporter     *export.Exporter
}

// New wires every component from the configuration. Optional backends are skipped with a
// log line when their settings are missing.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Dependencies, error) {
	d := &Dependencies{Bus: events.NewBus()}

	if cfg.Dsn != "" {
		database, err := db.New(cfg.Dsn, log)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		d.DB = database
		d.Store = store.NewPostgres(database, d.Bus)
	} else {
		log.Warn("DSN is empty, using the in-memory store")
		d.Store = store.NewMemory(d.Bus)
	}

	if len(cfg.KafkaBrokers) > 0 {
		d.Kafka = events.NewKafkaSink(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), log)
		d.Kafka.Attach(d.Bus)
	}

	provider, reverse := newSearchProviders(cfg, log)
	if cfg.RedisURL != "" {
		client, err := search.NewRedisClient(cfg.RedisURL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		d.Redis = client
		provider = search.NewCachedProvider(provider, client, cfg.SearchCacheTTL, log)
	}
	d.Search = search.NewCoordinator(d.Store, provider, log)
	d.Reverse = reverse

	var previews preview.Provider
	if cfg.GoogleMapsAPIKey != "" {
		previews = preview.NewStreetView(googlemaps.NewGoogleMapsClient(cfg.GoogleMapsAPIKey))
		if cfg.CloudinaryEnabled() {
			cld, err := storage.NewCloudinary(cfg)
			if err != nil {
				d.Close()
				return nil, fmt.Errorf("configure cloudinary: %w", err)
			}
			d.Cloudinary = cld
			previews = preview.NewMirror(previews, cld, previewFolder, log)
		}
	} else {
		log.Warn("GOOGLE_MAPS_API_KEY is empty, previews are unavailable")
	}

	d.Sessions = session.NewRegistry(session.Deps{
		Store:    d.Store,
		Bus:      d.Bus,
		Search:   d.Search,
		Reverse:  reverse,
		Previews: previews,
	}, cfg.SessionTTL, log)
	d.Destinations = destinations.NewController(d.Store, d.Sessions, log)

	var putter export.ObjectPutter
	if cfg.MinioEnabled() {
		client, err := export.NewMinioClient(ctx, cfg)
		if err != nil {
			d.Close()
			return nil, err
		}
		putter = client
	}
	d.Exporter = export.NewExporter(d.Store, putter, cfg.MinioBucket, log)

	d.WebSocket = websockets.NewWebSocketManager(log)
	return d, nil
}

// newSearchProviders picks the configured search provider and the reverse geocoder used
// for manual pins. Google has no reverse endpoint here, so pins fall back to Stadia or
// Mapbox when one of them has a key.
func newSearchProviders(cfg *config.Config, log logrus.FieldLogger) (search.Provider, search.ReverseGeocoder) {
	var stadia *stadiamaps.Client
	if cfg.StadiaAPIKey != "" {
		stadia = stadiamaps.NewClient(cfg.StadiaAPIKey)
	}
	var mb *mapbox.MapboxClient
	if cfg.MapboxAPIKey != "" {
		mb = mapbox.NewMapboxClient(cfg.MapboxAPIKey)
	}

	var reverse search.ReverseGeocoder
	switch {
	case cfg.SearchProvider == "mapbox" && mb != nil:
		reverse = mb
	case stadia != nil:
		reverse = stadia
	case mb != nil:
		reverse = mb
	}

	switch cfg.SearchProvider {
	case "google":
		if cfg.GoogleMapsAPIKey != "" {
			return googlemaps.NewGoogleMapsClient(cfg.GoogleMapsAPIKey), reverse
		}
	case "mapbox":
		if mb != nil {
			return mb, reverse
		}
	default:
		if stadia != nil {
			return stadia, reverse
		}
	}

	log.WithField("provider", cfg.SearchProvider).Warn("search provider has no API key, searches return nothing")
	return search.ProviderFunc(func(context.Context, string, *model.Region) ([]search.Result, error) {
		return nil, nil
	}), reverse
}

func (d *Dependencies) Pool() *pgxpool.Pool {
	if d.DB == nil {
		return nil
	}
	return d.DB.Pool()
}

// Close releases the backends in reverse order of creation.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.Kafka != nil {
		_ = d.Kafka.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
