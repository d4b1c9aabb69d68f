package ingest

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// ReconcileOptions control when an absent listing flips to removed.
type ReconcileOptions struct {
	// MissedRunsBeforeRemoved is the number of consecutive runs a listing
	// must be absent from before it is marked removed. Must be at least 1.
	// A value above 1 tolerates failed or partial scrapes.
	MissedRunsBeforeRemoved int

	// MaxAge, when positive, additionally marks a listing removed once the
	// time between the current run and its last sighting exceeds it,
	// regardless of the missed-run counter.
	MaxAge time.Duration
}

// Reconcile merges one run's normalized records into the previous master
// table and classifies every identity as new, updated, removed or unchanged.
//
// The previous table is never mutated; the result is a fresh table.
// Processing is keyed by sorted identity, so the outcome is independent of
// the order records were extracted, and reconciling the same inputs twice
// yields identical results.
func Reconcile(prev MasterTable, records []Record, run RunID, opts ReconcileOptions) (MasterTable, ChangeSummary, error) {
	if opts.MissedRunsBeforeRemoved < 1 {
		return nil, ChangeSummary{}, fmt.Errorf("missed_runs_before_removed must be at least 1, got %d", opts.MissedRunsBeforeRemoved)
	}

	incoming := make(map[Identity]Record, len(records))
	for _, r := range dedupeRecords(records) {
		incoming[r.Identity] = r
	}

	next := make(MasterTable, len(prev)+len(incoming))
	summary := ChangeSummary{
		RunID:  run,
		Deltas: make(map[Identity][]FieldDelta),
	}

	for _, id := range sortedUnion(prev, incoming) {
		record, present := incoming[id]
		previous, known := prev[id]

		switch {
		case present && !known:
			next[id] = &Entry{
				Record:    record,
				FirstSeen: run,
				LastSeen:  run,
				Status:    StatusActive,
			}
			summary.New = append(summary.New, id)

		case present && known:
			entry := &Entry{
				Record:    record,
				FirstSeen: previous.FirstSeen,
				LastSeen:  run,
				Status:    StatusActive,
			}
			next[id] = entry

			deltas := diffRecords(previous.Record, record)
			if previous.Status == StatusRemoved {
				deltas = append(deltas, FieldDelta{Field: "status", Old: string(StatusRemoved), New: string(StatusActive)})
			}
			if len(deltas) > 0 {
				summary.Updated = append(summary.Updated, id)
				summary.Deltas[id] = deltas
			} else {
				summary.Unchanged = append(summary.Unchanged, id)
			}

		default: // absent from this run
			entry := &Entry{
				Record:     previous.Record,
				FirstSeen:  previous.FirstSeen,
				LastSeen:   previous.LastSeen,
				MissedRuns: previous.MissedRuns + 1,
				Status:     previous.Status,
			}
			next[id] = entry

			if entry.Status == StatusActive && shouldRemove(entry, run, opts) {
				entry.Status = StatusRemoved
				summary.Removed = append(summary.Removed, id)
			} else {
				// Transient miss or already removed: no status flip.
				summary.Unchanged = append(summary.Unchanged, id)
			}
		}
	}

	return next, summary, nil
}

// shouldRemove applies the removal threshold to an entry absent from the
// current run.
func shouldRemove(e *Entry, run RunID, opts ReconcileOptions) bool {
	if e.MissedRuns >= opts.MissedRunsBeforeRemoved {
		return true
	}
	if opts.MaxAge > 0 && run.Time().Sub(e.LastSeen.Time()) > opts.MaxAge {
		return true
	}
	return false
}

// dedupeRecords enforces identity uniqueness within a run. When the same
// identity appears more than once, the occurrence that sorts first by field
// values wins, so the choice does not depend on extraction order.
func dedupeRecords(records []Record) []Record {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Identity != sorted[j].Identity {
			return sorted[i].Identity < sorted[j].Identity
		}
		return recordSortKey(sorted[i]) < recordSortKey(sorted[j])
	})

	out := sorted[:0]
	for i, r := range sorted {
		if i > 0 && sorted[i-1].Identity == r.Identity {
			continue
		}
		out = append(out, r)
	}
	return out
}

// recordSortKey is a total order over a record's comparable fields, used
// only to break ties between duplicate identities.
func recordSortKey(r Record) string {
	return r.Title + "\x00" + r.Location + "\x00" + formatCents(r.PriceCents) + "\x00" +
		strconv.FormatBool(r.Featured) + "\x00" + strconv.FormatBool(r.Reserved) + "\x00" + r.URL
}

// diffRecords compares the fields that constitute a meaningful listing
// change. Page position and thumbnail URL are refreshed but not diffed:
// both drift between scrapes (placement shuffles, cache-busting image
// tokens) without the listing itself changing.
func diffRecords(old, new Record) []FieldDelta {
	var deltas []FieldDelta

	add := func(field, o, n string) {
		if o != n {
			deltas = append(deltas, FieldDelta{Field: field, Old: o, New: n})
		}
	}

	add("title", old.Title, new.Title)
	add("location", old.Location, new.Location)
	add("price_cents", formatCents(old.PriceCents), formatCents(new.PriceCents))
	add("featured", strconv.FormatBool(old.Featured), strconv.FormatBool(new.Featured))
	add("reserved", strconv.FormatBool(old.Reserved), strconv.FormatBool(new.Reserved))
	add("url", old.URL, new.URL)

	return deltas
}

// formatCents renders an optional price for deltas and persistence.
// nil encodes as the empty string, distinct from an explicit zero.
func formatCents(c *int64) string {
	if c == nil {
		return ""
	}
	return strconv.FormatInt(*c, 10)
}

// sortedUnion returns the sorted set of identities present in either input.
func sortedUnion(prev MasterTable, incoming map[Identity]Record) []Identity {
	seen := make(map[Identity]struct{}, len(prev)+len(incoming))
	var ids []Identity
	for id := range prev {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for id := range incoming {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
