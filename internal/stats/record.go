// Package stats holds the time-bucketed audience observation model: one
// Record per channel and window, plus the merge semantics that let a run
// of fine-grained records collapse into a single coarser window.
package stats

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// NotAvailable is the sentinel shown when a programme or track is unknown.
	NotAvailable = "not available"

	// Synthetic programme window drawn when no real programme is known.
	placeholderLookback  = 60 * time.Minute
	placeholderLookahead = 180 * time.Minute
)

// MusicTrack is one played track. Order of appearance is chronological.
type MusicTrack struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Programme describes the programme airing during the observation window.
// Start and End carry the upstream's raw ISO-8601 strings; StartDate and
// EndDate are derived on read and omitted when the raw value does not parse.
type Programme struct {
	Title     string     `json:"title"`
	ID        string     `json:"id"`
	Subtitle  string     `json:"subtitle"`
	ServiceID string     `json:"serviceId"`
	Start     string     `json:"start,omitempty"`
	End       string     `json:"end,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// Audience holds listener counts for the window. Platforms maps a
// platform id (e.g. "internet", "dtv") to its listener count.
type Audience struct {
	Total     int            `json:"total"`
	Change    int            `json:"change"`
	Platforms map[string]int `json:"platforms"`
}

// Flux counts listeners arriving from and leaving to other channels
// during the window, keyed by the other channel's id.
type Flux struct {
	From map[string]int `json:"from"`
	To   map[string]int `json:"to"`
}

// Social is the social-signal bag. Extensible; twitter is the only
// signal the upstream currently produces.
type Social struct {
	Twitter int `json:"twitter"`
}

// Record is one observation window for one channel. Records are never
// mutated after creation; accessors that synthesize presentation data
// (CurrentProgramme, CurrentTrack) return copies.
type Record struct {
	Channel     string       `json:"channel"`
	ChannelName string       `json:"channelName"`
	Tracks      []MusicTrack `json:"tracks"`
	Programme   *Programme   `json:"programme"`
	Timestamp   time.Time    `json:"timestamp"`
	Audience    Audience     `json:"audience"`
	Flux        Flux         `json:"flux"`
	Social      Social       `json:"social"`

	// Extra keeps payload fields we do not model, so they survive a
	// store/serve round trip. Keys never shadow the typed fields above.
	Extra map[string]json.RawMessage `json:"-"`
}

// New returns a Record with defaults for every field: empty collections,
// no programme, zero counts, and the timestamp set to the current time so
// downstream consumers always have a time axis.
func New(clock clockwork.Clock, channelID string) Record {
	return Record{
		Channel:     channelID,
		ChannelName: Humanize(channelID),
		Tracks:      []MusicTrack{},
		Timestamp:   clock.Now().UTC().Truncate(time.Second),
		Audience:    Audience{Platforms: map[string]int{}},
		Flux:        Flux{From: map[string]int{}, To: map[string]int{}},
	}
}

// Parse builds a Record from a raw upstream payload. Defaults are
// pre-populated, then every top-level field present in the payload
// overwrites its default. The channel id always wins over anything the
// payload claims: Channel is forced to channelID and ChannelName derived
// from it. Parse never fails; a payload that is not a JSON object yields
// the defaults.
func Parse(clock clockwork.Clock, channelID string, payload []byte) Record {
	rec := New(clock, channelID)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		slog.Warn("Ignoring malformed stats payload", "channel", channelID, "error", err)
		return rec
	}

	for key, raw := range fields {
		rec.overlay(key, raw)
	}

	rec.Channel = channelID
	rec.ChannelName = Humanize(channelID)
	return rec
}

// overlay applies one payload field onto the record. A field that fails
// to decode keeps its default; unknown fields land in Extra.
func (r *Record) overlay(key string, raw json.RawMessage) {
	var err error
	switch key {
	case "channel", "channelName":
		// Forced from the channel id after the overlay pass.
	case "tracks":
		var tracks []MusicTrack
		if err = json.Unmarshal(raw, &tracks); err == nil && tracks != nil {
			r.Tracks = tracks
		}
	case "programme":
		var programme *Programme
		if err = json.Unmarshal(raw, &programme); err == nil {
			r.Programme = programme
		}
	case "timestamp":
		var ts string
		if err = json.Unmarshal(raw, &ts); err == nil {
			if parsed, parseErr := time.Parse(time.RFC3339, ts); parseErr == nil {
				r.Timestamp = parsed
			} else {
				err = parseErr
			}
		}
	case "audience":
		audience := Audience{Platforms: map[string]int{}}
		if err = json.Unmarshal(raw, &audience); err == nil {
			if audience.Platforms == nil {
				audience.Platforms = map[string]int{}
			}
			r.Audience = audience
		}
	case "flux":
		flux := Flux{From: map[string]int{}, To: map[string]int{}}
		if err = json.Unmarshal(raw, &flux); err == nil {
			if flux.From == nil {
				flux.From = map[string]int{}
			}
			if flux.To == nil {
				flux.To = map[string]int{}
			}
			r.Flux = flux
		}
	case "social":
		var social Social
		if err = json.Unmarshal(raw, &social); err == nil {
			r.Social = social
		}
	default:
		if r.Extra == nil {
			r.Extra = map[string]json.RawMessage{}
		}
		r.Extra[key] = raw
	}

	if err != nil {
		slog.Warn("Keeping default for undecodable stats field", "field", key, "error", err)
	}
}

// PlatformsConsistent reports the soft invariant that the per-platform
// counts add up to the audience total. A violation is log-worthy, never
// a reason to reject the record: upstream is authoritative even when it
// disagrees with itself.
func (r Record) PlatformsConsistent() bool {
	sum := 0
	for _, count := range r.Audience.Platforms {
		sum += count
	}
	return sum == r.Audience.Total
}

// CurrentProgramme returns the programme to draw on the timeline. With
// real data the raw start/end strings are parsed into StartDate/EndDate
// (left absent when unparseable). Without real data it degrades to a
// wide, clearly synthetic window around now rather than nothing at all.
func (r Record) CurrentProgramme(clock clockwork.Clock) Programme {
	if r.Programme == nil {
		now := clock.Now().UTC()
		start := now.Add(-placeholderLookback)
		end := now.Add(placeholderLookahead)
		return Programme{
			Title:     NotAvailable,
			Subtitle:  NotAvailable,
			ServiceID: r.Channel,
			Start:     start.Format(time.RFC3339),
			End:       end.Format(time.RFC3339),
			StartDate: &start,
			EndDate:   &end,
		}
	}

	programme := *r.Programme
	if programme.Start != "" {
		if start, err := time.Parse(time.RFC3339, programme.Start); err == nil {
			programme.StartDate = &start
		}
	}
	if programme.End != "" {
		if end, err := time.Parse(time.RFC3339, programme.End); err == nil {
			programme.EndDate = &end
		}
	}
	return programme
}

// CurrentTrack returns the most recently played track, or the sentinel
// track when none has been observed yet.
func (r Record) CurrentTrack() MusicTrack {
	if len(r.Tracks) == 0 {
		return MusicTrack{Title: NotAvailable, Artist: NotAvailable}
	}
	return r.Tracks[len(r.Tracks)-1]
}

// AudienceChangeRatio is change relative to total. When total is zero
// the result is non-finite (NaN or ±Inf); callers treat that as "no
// trend data", not as an error.
func (r Record) AudienceChangeRatio() float64 {
	return float64(r.Audience.Change) / float64(r.Audience.Total)
}

// SignedChangeLabel renders the audience change for display: "-" when
// flat, an explicit "+" prefix when positive, the usual minus when
// negative. The dashboard relies on this exact formatting.
func (r Record) SignedChangeLabel() string {
	if r.Audience.Change == 0 {
		return "-"
	}
	return fmt.Sprintf("%+d", r.Audience.Change)
}

// recordFields mirrors Record for JSON round trips without recursing
// into the custom (un)marshallers.
type recordFields struct {
	Channel     string       `json:"channel"`
	ChannelName string       `json:"channelName"`
	Tracks      []MusicTrack `json:"tracks"`
	Programme   *Programme   `json:"programme"`
	Timestamp   time.Time    `json:"timestamp"`
	Audience    Audience     `json:"audience"`
	Flux        Flux         `json:"flux"`
	Social      Social       `json:"social"`
}

// MarshalJSON emits the typed fields plus any preserved unknown payload
// fields, so consumers see exactly what upstream sent.
func (r Record) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(recordFields{
		Channel:     r.Channel,
		ChannelName: r.ChannelName,
		Tracks:      r.Tracks,
		Programme:   r.Programme,
		Timestamp:   r.Timestamp,
		Audience:    r.Audience,
		Flux:        r.Flux,
		Social:      r.Social,
	})
	if err != nil || len(r.Extra) == 0 {
		return known, err
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for key, raw := range r.Extra {
		if _, taken := merged[key]; !taken {
			merged[key] = raw
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON restores a record serialized by MarshalJSON, including
// the unknown-field bag.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields recordFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, key := range []string{"channel", "channelName", "tracks", "programme", "timestamp", "audience", "flux", "social"} {
		delete(all, key)
	}
	if len(all) == 0 {
		all = nil
	}

	*r = Record{
		Channel:     fields.Channel,
		ChannelName: fields.ChannelName,
		Tracks:      fields.Tracks,
		Programme:   fields.Programme,
		Timestamp:   fields.Timestamp,
		Audience:    fields.Audience,
		Flux:        fields.Flux,
		Social:      fields.Social,
		Extra:       all,
	}
	return nil
}
