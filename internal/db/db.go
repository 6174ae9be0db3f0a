// Package db keeps an optional SQLite log of every published reading so that
// the history of an emitter can be queried after the fact.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"signal-hud.klederson.com/internal/signal"
)

type DB struct {
	*sql.DB
}

const schema = `
	CREATE TABLE IF NOT EXISTS sightings (
		cycle_id TEXT NOT NULL,
		source_type TEXT NOT NULL,
		identifier TEXT NOT NULL,
		observer TEXT NOT NULL DEFAULT '',
		rssi INTEGER NOT NULL,
		distance DOUBLE,
		x DOUBLE,
		y DOUBLE,
		observed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sightings_by_emitter
		ON sightings (source_type, identifier, observed_at);
`

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single writer avoids SQLITE_BUSY between scan loops
	sqldb.SetMaxOpenConns(1)

	if _, err := sqldb.Exec(schema); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{sqldb}, nil
}

// Sighting is one stored reading.
type Sighting struct {
	Cycle      uuid.UUID         `json:"cycle"`
	Source     signal.SourceType `json:"source_type"`
	Identifier string            `json:"identifier"`
	Observer   string            `json:"observer,omitempty"`
	RSSI       int               `json:"rssi"`
	Distance   *float64          `json:"distance"`
	Estimated  *signal.Position  `json:"estimated_position,omitempty"`
	ObservedAt time.Time         `json:"observed_at"`
}

// RecordBatch stores every reading of a published batch in one transaction.
func (db *DB) RecordBatch(ctx context.Context, b signal.Batch) error {
	if len(b.Readings) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sightings
		(cycle_id, source_type, identifier, observer, rssi, distance, x, y, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range b.Readings {
		var dist, x, y sql.NullFloat64
		if r.Distance != nil {
			dist = sql.NullFloat64{Float64: *r.Distance, Valid: true}
		}
		if r.Estimated != nil {
			x = sql.NullFloat64{Float64: r.Estimated.X, Valid: true}
			y = sql.NullFloat64{Float64: r.Estimated.Y, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			b.Cycle.String(), string(r.Source), r.Identifier, r.Observer,
			r.RSSI, dist, x, y, r.ObservedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert %s/%s: %w", r.Source, r.Identifier, err)
		}
	}
	return tx.Commit()
}

// History returns the most recent sightings of an emitter, newest first.
func (db *DB) History(ctx context.Context, src signal.SourceType, identifier string, limit int) ([]Sighting, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `SELECT cycle_id, observer, rssi, distance, x, y, observed_at
		FROM sightings
		WHERE source_type = ? AND identifier = ?
		ORDER BY observed_at DESC, rowid DESC
		LIMIT ?`, string(src), identifier, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sighting
	for rows.Next() {
		var (
			cycle      string
			s          Sighting
			dist, x, y sql.NullFloat64
			ms         int64
		)
		if err := rows.Scan(&cycle, &s.Observer, &s.RSSI, &dist, &x, &y, &ms); err != nil {
			return nil, err
		}
		s.Cycle, err = uuid.Parse(cycle)
		if err != nil {
			return nil, fmt.Errorf("bad cycle id %q: %w", cycle, err)
		}
		s.Source = src
		s.Identifier = identifier
		if dist.Valid {
			d := dist.Float64
			s.Distance = &d
		}
		if x.Valid && y.Valid {
			s.Estimated = &signal.Position{X: x.Float64, Y: y.Float64}
		}
		s.ObservedAt = time.UnixMilli(ms)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
