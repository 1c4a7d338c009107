package flow

import (
	"sort"

	"github.com/rs/zerolog/log"
)

// Normalize returns a cleaned copy of raw: sorted by timestamp (stable, so
// ties keep their input order) and de-duplicated on (timestamp, route) with
// the last occurrence winning. The input is not modified.
func Normalize(raw []Record) []Record {
	if len(raw) == 0 {
		return nil
	}

	records := make([]Record, len(raw))
	copy(records, raw)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	type dedupeKey struct {
		ts       int64
		from, to string
	}
	seen := make(map[dedupeKey]int, len(records))
	out := records[:0]
	for _, r := range records {
		k := dedupeKey{ts: r.Timestamp.UnixNano(), from: r.FromZone, to: r.ToZone}
		if idx, ok := seen[k]; ok {
			out[idx] = r
			continue
		}
		seen[k] = len(out)
		out = append(out, r)
	}

	if dropped := len(records) - len(out); dropped > 0 {
		log.Debug().Int("dropped", dropped).Int("kept", len(out)).Msg("Dropped duplicate flow records")
	}
	return out
}

// GroupByRoute splits records into per-route series, preserving input order
// within each series.
func GroupByRoute(records []Record) map[Route][]Record {
	groups := make(map[Route][]Record)
	for _, r := range records {
		route := r.Route()
		groups[route] = append(groups[route], r)
	}
	return groups
}
