//go:build integration

package archive

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Yemba/vistatv-live-dashboard/internal/stats"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("vistatv"),
		tcpostgres.WithUsername("vistatv"),
		tcpostgres.WithPassword("vistatv"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestArchive_AppendAndSchemaIdempotence(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)

	arch, err := Connect(ctx, dsn)
	require.NoError(t, err)
	defer arch.Close()

	// Connecting twice must not fail on the existing schema.
	again, err := Connect(ctx, dsn)
	require.NoError(t, err)
	again.Close()

	clock := clockwork.NewFakeClock()
	rec := stats.New(clock, "radio_one")
	rec.Audience.Total = 100
	rec.Tracks = []stats.MusicTrack{{Title: "Song", Artist: "Band"}}

	require.NoError(t, arch.Append(ctx, rec))
	require.NoError(t, arch.Append(ctx, rec))

	var count int
	require.NoError(t, arch.pool.QueryRow(ctx,
		`SELECT count(*) FROM stats_windows WHERE channel = $1`, "radio_one",
	).Scan(&count))
	assert.Equal(t, 2, count)

	assert.NoError(t, arch.Ping(ctx))
}
