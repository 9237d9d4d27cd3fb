package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Yemba/vistatv-live-dashboard/internal/metrics"
	"github.com/Yemba/vistatv-live-dashboard/internal/platform/retry"
)

// Source is the upstream read surface the poller needs.
type Source interface {
	Channels(ctx context.Context) ([]string, error)
	Latest(ctx context.Context, channelID string) ([]byte, error)
}

// Poller periodically pulls the latest observation for every discovered
// channel and feeds it through the ingest service. It is the pull-mode
// alternative to the push endpoint for upstreams that do not push.
type Poller struct {
	source   Source
	service  *Service
	clock    clockwork.Clock
	interval time.Duration
	policy   retry.Policy
}

func NewPoller(source Source, service *Service, clock clockwork.Clock, interval time.Duration) *Poller {
	return &Poller{
		source:   source,
		service:  service,
		clock:    clock,
		interval: interval,
		policy: retry.Policy{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Debug("Retrying upstream discovery", "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
	}
}

// Run polls until ctx is cancelled. One failed channel never aborts the
// rest of the cycle.
func (p *Poller) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Info("Upstream poller started", "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Upstream poller stopped")
			return
		case <-ticker.Chan():
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	cycleID := uuid.NewString()

	channels, err := retry.Do(ctx, p.clock, p.policy, func(error) retry.Action { return retry.Retry }, func() ([]string, error) {
		return p.source.Channels(ctx)
	})
	if err != nil {
		slog.Warn("Poll cycle skipped: channel discovery failed", "cycle_id", cycleID, "error", err)
		return
	}

	for _, channelID := range channels {
		payload, err := p.source.Latest(ctx, channelID)
		if err != nil {
			slog.Warn("Skipping channel this cycle", "cycle_id", cycleID, "channel", channelID, "error", err)
			continue
		}
		if _, err := p.service.Ingest(ctx, channelID, payload); err != nil {
			slog.Error("Failed to ingest polled observation", "cycle_id", cycleID, "channel", channelID, "error", err)
		}
	}

	metrics.PollCyclesTotal.Inc()
	slog.Debug("Poll cycle complete", "cycle_id", cycleID, "channels", len(channels))
}
