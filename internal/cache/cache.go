// Package cache is the latest-known-state store: one record per scope,
// last write wins, no history.
package cache

import (
	"context"

	"github.com/Yemba/vistatv-live-dashboard/internal/stats"
)

// OverviewScope is the reserved scope holding the cross-channel rollup.
const OverviewScope = "overview"

// Store holds the most recent stats record per scope (a channel id or
// OverviewScope). Put overwrites unconditionally; ingestion is the single
// writer per scope, so last-write-wins matches last-observation-wins.
type Store interface {
	Put(ctx context.Context, scope string, rec stats.Record) error
	Get(ctx context.Context, scope string) (stats.Record, bool, error)
	Scopes(ctx context.Context) ([]string, error)
}
