package stats

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ForcesChannelIdentity(t *testing.T) {
	clock := clockwork.NewFakeClock()

	payload := []byte(`{"channel":"something_else","channelName":"Spoofed","audience":{"total":42,"change":2,"platforms":{"internet":42}}}`)
	rec := Parse(clock, "radio_one", payload)

	assert.Equal(t, "radio_one", rec.Channel)
	assert.Equal(t, "Radio One", rec.ChannelName)
	assert.Equal(t, 42, rec.Audience.Total)
}

func TestParse_DefaultsWhenFieldsAbsent(t *testing.T) {
	clock := clockwork.NewFakeClock()

	rec := Parse(clock, "radio_two", []byte(`{}`))

	assert.Equal(t, clock.Now().UTC().Truncate(time.Second), rec.Timestamp)
	assert.Empty(t, rec.Tracks)
	assert.Nil(t, rec.Programme)
	assert.Equal(t, 0, rec.Audience.Total)
	assert.NotNil(t, rec.Audience.Platforms)
	assert.NotNil(t, rec.Flux.From)
	assert.NotNil(t, rec.Flux.To)
}

func TestParse_MalformedPayloadYieldsDefaults(t *testing.T) {
	clock := clockwork.NewFakeClock()

	rec := Parse(clock, "radio_one", []byte(`not json at all`))

	assert.Equal(t, "radio_one", rec.Channel)
	assert.Equal(t, clock.Now().UTC().Truncate(time.Second), rec.Timestamp)
}

func TestParse_UndecodableFieldKeepsDefault(t *testing.T) {
	clock := clockwork.NewFakeClock()

	rec := Parse(clock, "radio_one", []byte(`{"audience":"broken","timestamp":"not-a-time"}`))

	assert.Equal(t, 0, rec.Audience.Total)
	assert.Equal(t, clock.Now().UTC().Truncate(time.Second), rec.Timestamp)
}

func TestParse_PreservesUnknownFields(t *testing.T) {
	clock := clockwork.NewFakeClock()

	rec := Parse(clock, "radio_one", []byte(`{"experimental":{"mood":"upbeat"},"audience":{"total":5}}`))

	require.Contains(t, rec.Extra, "experimental")

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Contains(t, out, "experimental")
	assert.Contains(t, out, "audience")
}

func TestRecord_JSONRoundTrip(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := Parse(clock, "radio_one", []byte(`{"tracks":[{"title":"Song","artist":"Band"}],"social":{"twitter":7},"experimental":true}`))

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var restored Record
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, rec, restored)
}

func TestHumanize(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"radio_one", "Radio One"},
		{"bbc_one", "BBC One"},
		{"bbc_radio_four_extra", "BBC Radio Four Extra"},
		{"itv", "ITV"},
		{"radio_uk_news", "Radio UK News"},
		{"one", "One"},
		{"émission_matinale", "Émission Matinale"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, Humanize(tt.id))
		})
	}
}

func TestCurrentProgramme_RealProgrammeDerivesDates(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := New(clock, "radio_one")
	rec.Programme = &Programme{
		Title:     "Breakfast Show",
		ID:        "b006wkqb",
		ServiceID: "radio_one",
		Start:     "2026-08-23T06:30:00Z",
		End:       "2026-08-23T10:00:00Z",
	}

	programme := rec.CurrentProgramme(clock)

	require.NotNil(t, programme.StartDate)
	require.NotNil(t, programme.EndDate)
	assert.Equal(t, "Breakfast Show", programme.Title)
	assert.True(t, programme.EndDate.After(*programme.StartDate))

	// Derivation must not touch the stored record.
	assert.Nil(t, rec.Programme.StartDate)
	assert.Nil(t, rec.Programme.EndDate)
}

func TestCurrentProgramme_MalformedDatesAreOmitted(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := New(clock, "radio_one")
	rec.Programme = &Programme{Title: "Show", Start: "yesterday-ish", End: ""}

	programme := rec.CurrentProgramme(clock)

	assert.Nil(t, programme.StartDate)
	assert.Nil(t, programme.EndDate)
	assert.Equal(t, "Show", programme.Title)
}

func TestCurrentProgramme_PlaceholderCoversNow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := New(clock, "radio_one")

	programme := rec.CurrentProgramme(clock)

	require.NotNil(t, programme.StartDate)
	require.NotNil(t, programme.EndDate)
	now := clock.Now().UTC()
	assert.True(t, programme.StartDate.Before(now))
	assert.True(t, programme.EndDate.After(now))
	assert.Equal(t, NotAvailable, programme.Title)
	assert.Equal(t, NotAvailable, programme.Subtitle)
	assert.Equal(t, "radio_one", programme.ServiceID)
}

func TestCurrentTrack(t *testing.T) {
	clock := clockwork.NewFakeClock()

	rec := New(clock, "radio_one")
	sentinel := rec.CurrentTrack()
	assert.Equal(t, MusicTrack{Title: NotAvailable, Artist: NotAvailable}, sentinel)

	rec.Tracks = []MusicTrack{
		{Title: "First", Artist: "A"},
		{Title: "Latest", Artist: "B"},
	}
	assert.Equal(t, MusicTrack{Title: "Latest", Artist: "B"}, rec.CurrentTrack())
}

func TestAudienceChangeRatio(t *testing.T) {
	clock := clockwork.NewFakeClock()

	rec := New(clock, "radio_one")
	rec.Audience.Total = 200
	rec.Audience.Change = 50
	assert.InDelta(t, 0.25, rec.AudienceChangeRatio(), 1e-9)

	rec.Audience.Total = 0
	assert.False(t, isFinite(rec.AudienceChangeRatio()))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func TestSignedChangeLabel(t *testing.T) {
	tests := []struct {
		change int
		want   string
	}{
		{0, "-"},
		{5, "+5"},
		{-3, "-3"},
	}
	for _, tt := range tests {
		rec := Record{Audience: Audience{Change: tt.change}}
		assert.Equal(t, tt.want, rec.SignedChangeLabel())
	}
}
