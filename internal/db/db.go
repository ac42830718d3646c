package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const defaultTimeout = 3 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS destinations (
	id              uuid PRIMARY KEY,
	name            text NOT NULL DEFAULT '',
	latitude        double precision,
	longitude       double precision,
	latitude_delta  double precision,
	longitude_delta double precision,
	created_at      timestamptz NOT NULL DEFAULT now(),
	updated_at      timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS placemarks (
	id             uuid PRIMARY KEY,
	name           text NOT NULL DEFAULT '',
	address        text NOT NULL DEFAULT '',
	location       point NOT NULL,
	destination_id uuid REFERENCES destinations (id) ON DELETE SET NULL,
	session_id     text,
	position       integer NOT NULL DEFAULT 0,
	created_at     timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS placemarks_destination_position_idx
	ON placemarks (destination_id, position);

CREATE INDEX IF NOT EXISTS placemarks_session_idx
	ON placemarks (session_id) WHERE destination_id IS NULL;
`

type DB struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

func New(dsn string, log logrus.FieldLogger) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 2 * time.Hour
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	return &DB{pool: pool, log: log.WithField("component", "db")}, nil
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Migrate creates the tables if they do not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, schema)
	return err
}

func (db *DB) RunInTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				db.log.WithError(rbErr).Error("transaction rollback failed")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Close closes the database pool
func (db *DB) Close() {
	db.pool.Close()
}
