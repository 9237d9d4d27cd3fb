package ingest

import (
	"context"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yemba/vistatv-live-dashboard/internal/cache"
	"github.com/Yemba/vistatv-live-dashboard/internal/stats"
)

type publishedUpdate struct {
	scope string
	rec   stats.Record
}

type mockPublisher struct {
	mu      sync.Mutex
	updates []publishedUpdate
}

func (m *mockPublisher) Publish(scope string, rec stats.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, publishedUpdate{scope: scope, rec: rec})
}

func (m *mockPublisher) byScope(scope string) []stats.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []stats.Record
	for _, u := range m.updates {
		if u.scope == scope {
			records = append(records, u.rec)
		}
	}
	return records
}

type mockArchive struct {
	mu      sync.Mutex
	records []stats.Record
	done    chan struct{}
}

func newMockArchive() *mockArchive {
	return &mockArchive{done: make(chan struct{}, 16)}
}

func (m *mockArchive) Append(_ context.Context, rec stats.Record) error {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func newTestService(archive Archiver) (*Service, *cache.MemoryStore, *mockPublisher) {
	store := cache.NewMemoryStore()
	publisher := &mockPublisher{}
	svc := NewService(store, publisher, archive, clockwork.NewFakeClock())
	return svc, store, publisher
}

func TestIngest_StoresSnapshotAndPublishes(t *testing.T) {
	svc, store, publisher := newTestService(nil)
	ctx := context.Background()

	rec, err := svc.Ingest(ctx, "radio_one", []byte(`{"audience":{"total":100,"change":5,"platforms":{"internet":100}}}`))
	require.NoError(t, err)
	assert.Equal(t, "radio_one", rec.Channel)

	stored, ok, err := store.Get(ctx, "radio_one")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 100, stored.Audience.Total)

	channelUpdates := publisher.byScope("radio_one")
	require.Len(t, channelUpdates, 1)
	assert.Equal(t, 100, channelUpdates[0].Audience.Total)
}

func TestIngest_InconsistentPlatformCountsStillStored(t *testing.T) {
	svc, store, _ := newTestService(nil)
	ctx := context.Background()

	// 60 + 20 != 100: soft invariant violated, record kept regardless.
	_, err := svc.Ingest(ctx, "radio_one", []byte(`{"audience":{"total":100,"change":0,"platforms":{"internet":60,"dtv":20}}}`))
	require.NoError(t, err)

	stored, ok, err := store.Get(ctx, "radio_one")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 100, stored.Audience.Total)
	assert.False(t, stored.PlatformsConsistent())
}

func TestIngest_RefreshesOverviewAcrossChannels(t *testing.T) {
	svc, store, publisher := newTestService(nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "radio_one", []byte(`{"audience":{"total":100,"platforms":{"internet":100}}}`))
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "bbc_one", []byte(`{"audience":{"total":200,"platforms":{"dtv":200}}}`))
	require.NoError(t, err)

	overview, ok, err := store.Get(ctx, cache.OverviewScope)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cache.OverviewScope, overview.Channel)
	assert.Equal(t, "Overview", overview.ChannelName)
	assert.Equal(t, 300, overview.Audience.Total)
	assert.Equal(t, map[string]int{"internet": 100, "dtv": 200}, overview.Audience.Platforms)

	overviewUpdates := publisher.byScope(cache.OverviewScope)
	require.NotEmpty(t, overviewUpdates)
	assert.Equal(t, 300, overviewUpdates[len(overviewUpdates)-1].Audience.Total)
}

func TestIngest_OverviewExcludesItself(t *testing.T) {
	svc, store, _ := newTestService(nil)
	ctx := context.Background()

	// Two ingests for the same channel: the overview must reflect the
	// latest snapshot only, not accumulate its own previous rollup.
	_, err := svc.Ingest(ctx, "radio_one", []byte(`{"audience":{"total":100,"platforms":{"internet":100}}}`))
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "radio_one", []byte(`{"audience":{"total":120,"platforms":{"internet":120}}}`))
	require.NoError(t, err)

	overview, ok, err := store.Get(ctx, cache.OverviewScope)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 120, overview.Audience.Total)
}

func TestIngest_DisplacedWindowGoesToArchive(t *testing.T) {
	archive := newMockArchive()
	svc, _, _ := newTestService(archive)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "radio_one", []byte(`{"audience":{"total":100,"platforms":{"internet":100}}}`))
	require.NoError(t, err)

	// First ingest displaces nothing.
	select {
	case <-archive.done:
		t.Fatal("nothing should be archived on the first ingest")
	default:
	}

	_, err = svc.Ingest(ctx, "radio_one", []byte(`{"audience":{"total":120,"platforms":{"internet":120}}}`))
	require.NoError(t, err)

	<-archive.done
	archive.mu.Lock()
	defer archive.mu.Unlock()
	require.Len(t, archive.records, 1)
	assert.Equal(t, 100, archive.records[0].Audience.Total)
}

func TestSnapshot_MissIsNotAnError(t *testing.T) {
	svc, _, _ := newTestService(nil)

	_, ok, err := svc.Snapshot(context.Background(), "never_seen")
	require.NoError(t, err)
	assert.False(t, ok)
}
