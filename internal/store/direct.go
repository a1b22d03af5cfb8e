package store

import (
	"context"
	"database/sql"
	"sync"

	"github.com/i474232898/quake-monitor/internal/quake"
)

const createEventTable = `
CREATE TABLE IF NOT EXISTS earthquake (
	id        INTEGER PRIMARY KEY,
	date_time TEXT NOT NULL,
	latitude  REAL NOT NULL,
	longitude REAL NOT NULL,
	depth     REAL NOT NULL,
	mw_mean   REAL NOT NULL,
	UNIQUE(date_time, latitude, longitude)
)`

const insertEventOrIgnore = `
INSERT OR IGNORE INTO earthquake (date_time, latitude, longitude, depth, mw_mean)
VALUES (?, ?, ?, ?, ?)`

// DirectInserter writes through a plain database/sql connection using
// INSERT OR IGNORE; the affected row count tells new from duplicate.
type DirectInserter struct {
	db *sql.DB

	mu          sync.Mutex
	schemaReady bool
}

// NewDirectInserter creates an inserter on the handle's raw connection pool.
func NewDirectInserter(d *DB) *DirectInserter {
	return &DirectInserter{db: d.sql}
}

// EnsureSchema creates the event table if it is absent. It only succeeds once;
// a failed attempt is retried on the next call.
func (d *DirectInserter) EnsureSchema(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.schemaReady {
		return nil
	}
	if _, err := d.db.ExecContext(ctx, createEventTable); err != nil {
		return unavailable("ensure schema", err)
	}
	d.schemaReady = true
	return nil
}

func (d *DirectInserter) InsertIfAbsent(ctx context.Context, e quake.Event) (quake.Outcome, error) {
	if err := d.EnsureSchema(ctx); err != nil {
		return 0, err
	}

	res, err := d.db.ExecContext(ctx, insertEventOrIgnore,
		e.OccurredAt, e.Latitude, e.Longitude, e.DepthKm, e.Magnitude)
	if err != nil {
		return 0, unavailable("insert event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("rows affected", err)
	}
	if n == 0 {
		return quake.OutcomeDuplicate, nil
	}
	return quake.OutcomeNew, nil
}
