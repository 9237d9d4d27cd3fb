// Package archive hands windows displaced from the snapshot cache to
// long-term storage. The dashboard never reads from here; it exists so
// history survives beyond the one-record-per-scope cache.
package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Yemba/vistatv-live-dashboard/internal/stats"
)

const schema = `
CREATE TABLE IF NOT EXISTS stats_windows (
    id         BIGSERIAL PRIMARY KEY,
    channel    TEXT        NOT NULL,
    window_end TIMESTAMPTZ NOT NULL,
    record     JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS stats_windows_channel_window_end_idx
    ON stats_windows (channel, window_end);
`

// Archive appends displaced stats windows to Postgres.
type Archive struct {
	pool *pgxpool.Pool
}

// Connect opens the pool and ensures the schema exists.
func Connect(ctx context.Context, databaseURL string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure archive schema: %w", err)
	}

	return &Archive{pool: pool}, nil
}

// Append stores one displaced window.
func (a *Archive) Append(ctx context.Context, rec stats.Record) error {
	record, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record for archive: %w", err)
	}

	_, err = a.pool.Exec(ctx,
		`INSERT INTO stats_windows (channel, window_end, record) VALUES ($1, $2, $3)`,
		rec.Channel, rec.Timestamp, record,
	)
	if err != nil {
		return fmt.Errorf("failed to append window for %q: %w", rec.Channel, err)
	}
	return nil
}

// Ping reports database reachability for health checks.
func (a *Archive) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// Close releases the pool.
func (a *Archive) Close() {
	a.pool.Close()
}
