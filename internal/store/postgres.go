package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwise1/lookaround/internal/db"
	"github.com/bwise1/lookaround/internal/events"
	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/util"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Postgres stores destinations and placemarks in PostgreSQL. Placemark coordinates live
// in a point column with x = longitude and y = latitude.
type Postgres struct {
	db  *db.DB
	bus events.Publisher
}

func NewPostgres(database *db.DB, bus events.Publisher) *Postgres {
	return &Postgres{db: database, bus: bus}
}

func (s *Postgres) publish(evs ...events.Event) {
	if s.bus == nil {
		return
	}
	for _, e := range evs {
		s.bus.Publish(e)
	}
}

func (s *Postgres) InsertDestination(ctx context.Context, d *model.Destination) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	stmt := `
		INSERT INTO destinations (id, name, latitude, longitude, latitude_delta, longitude_delta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := s.db.Pool().QueryRow(ctx, stmt,
		d.ID,
		d.Name,
		d.Latitude,
		d.Longitude,
		d.LatitudeDelta,
		d.LongitudeDelta,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	s.publish(events.Event{Kind: events.Inserted, Entity: events.DestinationEntity, ID: d.ID})
	return nil
}

func (s *Postgres) UpdateDestination(ctx context.Context, d *model.Destination) error {
	stmt := `
		UPDATE destinations
		SET name = $2,
			latitude = $3,
			longitude = $4,
			latitude_delta = $5,
			longitude_delta = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := s.db.Pool().QueryRow(ctx, stmt,
		d.ID,
		d.Name,
		d.Latitude,
		d.Longitude,
		d.LatitudeDelta,
		d.LongitudeDelta,
	).Scan(&d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("updating destination %s: %w", d.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("updating destination: %w", err)
	}

	s.publish(events.Event{Kind: events.Updated, Entity: events.DestinationEntity, ID: d.ID})
	return nil
}

func (s *Postgres) DeleteDestination(ctx context.Context, id uuid.UUID) error {
	var detached []uuid.UUID
	err := s.db.RunInTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE placemarks SET destination_id = NULL, session_id = NULL, position = 0
			WHERE destination_id = $1
			RETURNING id
		`, id)
		if err != nil {
			return fmt.Errorf("detaching placemarks: %w", err)
		}
		detached, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		if err != nil {
			return fmt.Errorf("detaching placemarks: %w", err)
		}

		result, err := tx.Exec(ctx, `DELETE FROM destinations WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("deleting destination: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("deleting destination %s: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	evs := make([]events.Event, 0, len(detached)+1)
	for _, pid := range detached {
		evs = append(evs, events.Event{Kind: events.Updated, Entity: events.PlacemarkEntity, ID: pid, DestinationID: &id})
	}
	evs = append(evs, events.Event{Kind: events.Deleted, Entity: events.DestinationEntity, ID: id})
	s.publish(evs...)
	return nil
}

func (s *Postgres) GetDestination(ctx context.Context, id uuid.UUID) (model.Destination, error) {
	var d model.Destination
	stmt := `
		SELECT id, name, latitude, longitude, latitude_delta, longitude_delta, created_at, updated_at
		FROM destinations
		WHERE id = $1
	`
	err := s.db.Pool().QueryRow(ctx, stmt, id).Scan(
		&d.ID,
		&d.Name,
		&d.Latitude,
		&d.Longitude,
		&d.LatitudeDelta,
		&d.LongitudeDelta,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Destination{}, fmt.Errorf("getting destination %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Destination{}, fmt.Errorf("getting destination: %w", err)
	}

	d.Placemarks, err = s.Placemarks(ctx, AttachedTo(id))
	if err != nil {
		return model.Destination{}, err
	}
	return d, nil
}

func (s *Postgres) ListDestinations(ctx context.Context) ([]model.DestinationSummary, error) {
	stmt := `
		SELECT d.id, d.name,
			   COUNT(p.id) AS placemark_count,
			   (d.latitude IS NOT NULL AND d.longitude IS NOT NULL
				AND d.latitude_delta IS NOT NULL AND d.longitude_delta IS NOT NULL) AS has_region
		FROM destinations d
		LEFT JOIN placemarks p ON p.destination_id = d.id
		GROUP BY d.id
		ORDER BY lower(d.name), d.id
	`
	rows, err := s.db.Pool().Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("listing destinations: %w", err)
	}
	defer rows.Close()

	list := make([]model.DestinationSummary, 0)
	for rows.Next() {
		var summary model.DestinationSummary
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.PlacemarkCount, &summary.HasRegion); err != nil {
			return nil, fmt.Errorf("scanning destination: %w", err)
		}
		list = append(list, summary)
	}
	return list, rows.Err()
}

func (s *Postgres) InsertPlacemark(ctx context.Context, p *model.Placemark) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	stmt := `
		INSERT INTO placemarks (id, name, address, location, destination_id, session_id, position)
		VALUES ($1, $2, $3, $4, $5::uuid, CASE WHEN $5::uuid IS NULL THEN NULLIF($6::text, '') END,
			CASE WHEN $5::uuid IS NULL THEN 0
				 ELSE (SELECT COALESCE(MAX(position) + 1, 0) FROM placemarks WHERE destination_id = $5::uuid)
			END)
		RETURNING position, created_at
	`
	err := s.db.Pool().QueryRow(ctx, stmt,
		p.ID,
		p.Name,
		p.Address,
		util.PointFromLatLon(p.Latitude, p.Longitude),
		p.DestinationID,
		p.SessionID,
	).Scan(&p.Position, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating placemark: %w", err)
	}
	if p.DestinationID != nil {
		p.SessionID = ""
	}

	s.publish(events.Event{Kind: events.Inserted, Entity: events.PlacemarkEntity, ID: p.ID, DestinationID: p.DestinationID})
	return nil
}

func (s *Postgres) UpdatePlacemark(ctx context.Context, p *model.Placemark) error {
	stmt := `
		UPDATE placemarks
		SET name = $2,
			address = $3,
			location = $4
		WHERE id = $1
		RETURNING destination_id, COALESCE(session_id, ''), position, created_at
	`
	err := s.db.Pool().QueryRow(ctx, stmt,
		p.ID,
		p.Name,
		p.Address,
		util.PointFromLatLon(p.Latitude, p.Longitude),
	).Scan(&p.DestinationID, &p.SessionID, &p.Position, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("updating placemark %s: %w", p.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("updating placemark: %w", err)
	}

	s.publish(events.Event{Kind: events.Updated, Entity: events.PlacemarkEntity, ID: p.ID, DestinationID: p.DestinationID})
	return nil
}

const placemarkColumns = `id, name, address, location, destination_id, COALESCE(session_id, ''), position, created_at`

func scanPlacemark(row pgx.Row) (model.Placemark, error) {
	var (
		p        model.Placemark
		location pgtype.Point
	)
	err := row.Scan(&p.ID, &p.Name, &p.Address, &location, &p.DestinationID, &p.SessionID, &p.Position, &p.CreatedAt)
	if err != nil {
		return model.Placemark{}, err
	}
	p.Latitude, p.Longitude = util.PointToLatLon(location)
	return p, nil
}

func (s *Postgres) GetPlacemark(ctx context.Context, id uuid.UUID) (model.Placemark, error) {
	row := s.db.Pool().QueryRow(ctx, `SELECT `+placemarkColumns+` FROM placemarks WHERE id = $1`, id)
	p, err := scanPlacemark(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Placemark{}, fmt.Errorf("getting placemark %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Placemark{}, fmt.Errorf("getting placemark: %w", err)
	}
	return p, nil
}

// where renders the filter as a WHERE clause with its arguments.
func (f PlacemarkFilter) where() (string, []any) {
	transient := f.TransientOnly || f.OrphansOnly || f.SessionID != ""
	switch {
	case transient && f.DestinationID != nil:
		return `WHERE FALSE`, nil
	case f.OrphansOnly && f.SessionID != "":
		return `WHERE FALSE`, nil
	case f.OrphansOnly:
		return `WHERE destination_id IS NULL AND session_id IS NULL`, nil
	case f.SessionID != "":
		return `WHERE destination_id IS NULL AND session_id = $1`, []any{f.SessionID}
	case transient:
		return `WHERE destination_id IS NULL`, nil
	case f.DestinationID != nil:
		return `WHERE destination_id = $1`, []any{*f.DestinationID}
	default:
		return ``, nil
	}
}

func (s *Postgres) Placemarks(ctx context.Context, filter PlacemarkFilter) ([]model.Placemark, error) {
	where, args := filter.where()
	stmt := `SELECT ` + placemarkColumns + ` FROM placemarks ` + where + ` ORDER BY position, created_at, id`

	rows, err := s.db.Pool().Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("listing placemarks: %w", err)
	}
	defer rows.Close()

	list := make([]model.Placemark, 0)
	for rows.Next() {
		p, err := scanPlacemark(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning placemark: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (s *Postgres) DeletePlacemarks(ctx context.Context, filter PlacemarkFilter) (int, error) {
	where, args := filter.where()
	rows, err := s.db.Pool().Query(ctx, `DELETE FROM placemarks `+where+` RETURNING id, destination_id`, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting placemarks: %w", err)
	}
	defer rows.Close()

	var evs []events.Event
	for rows.Next() {
		var (
			id     uuid.UUID
			destID *uuid.UUID
		)
		if err := rows.Scan(&id, &destID); err != nil {
			return 0, fmt.Errorf("scanning deleted placemark: %w", err)
		}
		evs = append(evs, events.Event{Kind: events.Deleted, Entity: events.PlacemarkEntity, ID: id, DestinationID: destID})
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("deleting placemarks: %w", err)
	}

	s.publish(evs...)
	return len(evs), nil
}

func (s *Postgres) AttachPlacemark(ctx context.Context, placemarkID, destinationID uuid.UUID) (model.Placemark, error) {
	var (
		p       model.Placemark
		changed bool
	)
	err := s.db.RunInTx(ctx, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM destinations WHERE id = $1 FOR UPDATE`, destinationID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("attaching to destination %s: %w", destinationID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("locking destination: %w", err)
		}

		current, err := scanPlacemark(tx.QueryRow(ctx, `SELECT `+placemarkColumns+` FROM placemarks WHERE id = $1 FOR UPDATE`, placemarkID))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("attaching placemark %s: %w", placemarkID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("attaching placemark: %w", err)
		}
		if current.BelongsTo(destinationID) {
			p = current
			return nil
		}

		p, err = scanPlacemark(tx.QueryRow(ctx, `
			UPDATE placemarks
			SET destination_id = $2,
				session_id = NULL,
				position = (SELECT COALESCE(MAX(position) + 1, 0) FROM placemarks WHERE destination_id = $2)
			WHERE id = $1
			RETURNING `+placemarkColumns, placemarkID, destinationID))
		if err != nil {
			return fmt.Errorf("attaching placemark: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return model.Placemark{}, err
	}

	if changed {
		s.publish(events.Event{Kind: events.Updated, Entity: events.PlacemarkEntity, ID: placemarkID, DestinationID: &destinationID})
	}
	return p, nil
}

func (s *Postgres) DetachPlacemark(ctx context.Context, placemarkID uuid.UUID, sessionID string) (model.Placemark, error) {
	var previous *uuid.UUID
	var p model.Placemark
	err := s.db.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT destination_id FROM placemarks WHERE id = $1 FOR UPDATE`, placemarkID).Scan(&previous); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("detaching placemark %s: %w", placemarkID, ErrNotFound)
			}
			return fmt.Errorf("detaching placemark: %w", err)
		}

		var err error
		p, err = scanPlacemark(tx.QueryRow(ctx, `
			UPDATE placemarks SET destination_id = NULL, session_id = NULLIF($2::text, ''), position = 0
			WHERE id = $1
			RETURNING `+placemarkColumns, placemarkID, sessionID))
		if err != nil {
			return fmt.Errorf("detaching placemark: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Placemark{}, err
	}

	s.publish(events.Event{Kind: events.Updated, Entity: events.PlacemarkEntity, ID: placemarkID, DestinationID: previous})
	return p, nil
}
