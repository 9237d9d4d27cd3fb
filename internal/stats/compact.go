package stats

import "encoding/json"

// Compact merges an ordered run of records for one channel into a single
// record covering the whole span. Counts that represent flow (audience
// total and change, per-platform counts, flux, social) are summed; tracks
// are concatenated in order; the programme and timestamp are taken from
// the end of the window. Compacting one record is a no-op, and the
// operation is associative: folding partial rollups yields the same
// result as one pass over all inputs.
func Compact(records []Record) Record {
	if len(records) == 0 {
		return Record{}
	}

	out := records[0].clone()
	for _, rec := range records[1:] {
		out.Timestamp = rec.Timestamp
		out.Channel = rec.Channel
		out.ChannelName = rec.ChannelName

		out.Audience.Total += rec.Audience.Total
		out.Audience.Change += rec.Audience.Change
		addCounts(out.Audience.Platforms, rec.Audience.Platforms)
		addCounts(out.Flux.From, rec.Flux.From)
		addCounts(out.Flux.To, rec.Flux.To)
		out.Social.Twitter += rec.Social.Twitter

		out.Tracks = append(out.Tracks, rec.Tracks...)

		if rec.Programme != nil {
			programme := *rec.Programme
			out.Programme = &programme
		}
		if len(rec.Extra) > 0 {
			out.Extra = copyExtra(rec.Extra)
		}
	}
	return out
}

// addCounts folds src into dst per key; a key missing on either side
// counts as zero.
func addCounts(dst, src map[string]int) {
	for key, count := range src {
		dst[key] += count
	}
}

// clone deep-copies the record's maps and slices so a rollup never
// aliases its inputs.
func (r Record) clone() Record {
	out := r
	out.Tracks = append([]MusicTrack{}, r.Tracks...)
	out.Audience.Platforms = copyCounts(r.Audience.Platforms)
	out.Flux.From = copyCounts(r.Flux.From)
	out.Flux.To = copyCounts(r.Flux.To)
	if r.Programme != nil {
		programme := *r.Programme
		out.Programme = &programme
	}
	out.Extra = copyExtra(r.Extra)
	return out
}

func copyCounts(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for key, count := range src {
		dst[key] = count
	}
	return dst
}

func copyExtra(src map[string]json.RawMessage) map[string]json.RawMessage {
	if src == nil {
		return nil
	}
	dst := make(map[string]json.RawMessage, len(src))
	for key, raw := range src {
		dst[key] = raw
	}
	return dst
}
