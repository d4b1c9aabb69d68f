package report

import (
	"io"
	"sort"

	"listwatch/internal/ingest"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Statistics are the aggregate counts surfaced after a run and by the
// stats command.
type Statistics struct {
	TotalActive  int
	TotalRemoved int
	Featured     int
	Reserved     int
	ByCategory   map[string]int // active entries per category

	// LastIngest carries the change counts of the most recent successful
	// ingest, nil when nothing has been ingested yet.
	LastIngest *ingest.IngestRun
}

// Compute derives statistics from the master table and the latest catalog
// record.
func Compute(m ingest.MasterTable, last *ingest.IngestRun) Statistics {
	stats := Statistics{
		TotalActive:  m.CountByStatus(ingest.StatusActive),
		TotalRemoved: m.CountByStatus(ingest.StatusRemoved),
		ByCategory:   make(map[string]int),
		LastIngest:   last,
	}
	for _, e := range m {
		if e.Status == ingest.StatusRemoved {
			continue
		}
		stats.ByCategory[e.Record.Category]++
		if e.Record.Featured {
			stats.Featured++
		}
		if e.Record.Reserved {
			stats.Reserved++
		}
	}
	return stats
}

// Render writes the statistics as a human-readable table.
func (s Statistics) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Active listings", s.TotalActive},
		{"Removed listings", s.TotalRemoved},
		{"Featured", s.Featured},
		{"Reserved", s.Reserved},
	})

	categories := make([]string, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		t.AppendRow(table.Row{"Category " + c, s.ByCategory[c]})
	}

	if s.LastIngest != nil {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Last run", s.LastIngest.RunID.String()},
			{"New", s.LastIngest.NewCount},
			{"Updated", s.LastIngest.UpdatedCount},
			{"Removed in run", s.LastIngest.RemovedCount},
			{"Unchanged", s.LastIngest.UnchangedCount},
			{"Skipped items", s.LastIngest.ItemsSkipped},
			{"Rejected items", s.LastIngest.ItemsRejected},
		})
	}

	t.Render()
}
