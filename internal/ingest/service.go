// Package ingest turns irregular raw observations into the consistent
// latest-snapshot view: parse, store, roll up the overview, notify.
package ingest

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Yemba/vistatv-live-dashboard/internal/cache"
	apperrors "github.com/Yemba/vistatv-live-dashboard/internal/errors"
	"github.com/Yemba/vistatv-live-dashboard/internal/metrics"
	"github.com/Yemba/vistatv-live-dashboard/internal/stats"
)

const archiveTimeout = 5 * time.Second

// Publisher pushes a fresh snapshot to live subscribers. Must not block.
type Publisher interface {
	Publish(scope string, rec stats.Record)
}

// Archiver receives windows displaced from the cache for long-term
// storage. Optional; failures never affect the ingest path.
type Archiver interface {
	Append(ctx context.Context, rec stats.Record) error
}

// Service is the single writer of the snapshot cache. Ingestion for a
// given channel is serialized by the caller; the service itself only
// requires that no two writers target the same scope concurrently.
type Service struct {
	store     cache.Store
	publisher Publisher
	archive   Archiver
	clock     clockwork.Clock
}

func NewService(store cache.Store, publisher Publisher, archive Archiver, clock clockwork.Clock) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		archive:   archive,
		clock:     clock,
	}
}

// Ingest processes one raw observation for a channel: parse with
// defaults, warn on the soft consistency invariant, store as the
// channel's latest snapshot, refresh the overview rollup, and push both
// scopes to subscribers. The displaced snapshot is handed to the archive
// without waiting for it.
func (s *Service) Ingest(ctx context.Context, channelID string, payload []byte) (stats.Record, error) {
	rec := stats.Parse(s.clock, channelID, payload)

	if !rec.PlatformsConsistent() {
		metrics.InvariantViolationsTotal.Inc()
		slog.Warn("Platform counts disagree with audience total; storing anyway",
			"channel", channelID,
			"total", rec.Audience.Total,
			"platforms", rec.Audience.Platforms,
		)
	}

	displaced, hadPrevious, err := s.store.Get(ctx, channelID)
	if err != nil {
		return stats.Record{}, apperrors.InternalError("failed to read previous snapshot", err).WithContext("channel", channelID)
	}

	if err := s.store.Put(ctx, channelID, rec); err != nil {
		return stats.Record{}, apperrors.InternalError("failed to store snapshot", err).WithContext("channel", channelID)
	}
	metrics.IngestedRecordsTotal.WithLabelValues(channelID).Inc()

	if hadPrevious && s.archive != nil {
		go s.archiveWindow(displaced)
	}

	s.publisher.Publish(channelID, rec)
	s.refreshOverview(ctx)

	return rec, nil
}

// refreshOverview recomputes the cross-channel rollup from the current
// per-channel snapshots and publishes it. Overview staleness is
// tolerable; overview failures must not fail the triggering ingest.
func (s *Service) refreshOverview(ctx context.Context) {
	scopes, err := s.store.Scopes(ctx)
	if err != nil {
		slog.Error("Failed to list scopes for overview rollup", "error", err)
		return
	}

	var records []stats.Record
	for _, scope := range scopes {
		if scope == cache.OverviewScope {
			continue
		}
		rec, ok, err := s.store.Get(ctx, scope)
		if err != nil {
			slog.Error("Failed to read snapshot for overview rollup", "scope", scope, "error", err)
			return
		}
		if ok {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return
	}

	// Compact expects chronological order; snapshots land at different
	// times per channel.
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	overview := stats.Compact(records)
	overview.Channel = cache.OverviewScope
	overview.ChannelName = stats.Humanize(cache.OverviewScope)

	if err := s.store.Put(ctx, cache.OverviewScope, overview); err != nil {
		slog.Error("Failed to store overview rollup", "error", err)
		return
	}
	s.publisher.Publish(cache.OverviewScope, overview)
}

func (s *Service) archiveWindow(rec stats.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	if err := s.archive.Append(ctx, rec); err != nil {
		metrics.ArchiveFailuresTotal.Inc()
		slog.Warn("Failed to archive displaced window", "channel", rec.Channel, "error", err)
		return
	}
	metrics.ArchiveAppendsTotal.Inc()
}

// Snapshot reads the latest record for a scope. A miss means "no data
// yet", not an error.
func (s *Service) Snapshot(ctx context.Context, scope string) (stats.Record, bool, error) {
	rec, ok, err := s.store.Get(ctx, scope)
	if err != nil {
		return stats.Record{}, false, apperrors.InternalError("failed to read snapshot", err).WithContext("scope", scope)
	}
	return rec, ok, nil
}
