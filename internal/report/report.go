// Package report renders the master table into its external artifacts:
// a CSV export, a self-contained browsable HTML table, and aggregate
// statistics. It is purely presentational; all business logic happens
// before the table reaches this package.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"listwatch/internal/ingest"
)

// Column describes one export column. Kind is a client-side sort hint:
// "text" or "number".
type Column struct {
	Name string
	Kind string
}

// Columns is the fixed export schema, in output order.
var Columns = []Column{
	{"identity", "text"},
	{"site_id", "text"},
	{"category", "text"},
	{"title", "text"},
	{"location", "text"},
	{"price_cents", "number"},
	{"featured", "text"},
	{"reserved", "text"},
	{"url", "text"},
	{"thumbnail_url", "text"},
	{"position", "number"},
	{"first_seen", "text"},
	{"last_seen", "text"},
	{"status", "text"},
}

// Options control which rows are exported.
type Options struct {
	// IncludeRemoved also exports soft-deleted entries. Default is active
	// entries only.
	IncludeRemoved bool
}

// Rows flattens the master table into export rows with a deterministic
// sort: category, then title, then identity. Rendering the same table
// twice yields identical output.
func Rows(m ingest.MasterTable, opts Options) [][]string {
	entries := make([]*ingest.Entry, 0, len(m))
	for _, e := range m {
		if e.Status == ingest.StatusRemoved && !opts.IncludeRemoved {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Record.Category != b.Record.Category {
			return a.Record.Category < b.Record.Category
		}
		if a.Record.Title != b.Record.Title {
			return a.Record.Title < b.Record.Title
		}
		return a.Record.Identity < b.Record.Identity
	})

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = encodeRow(e)
	}
	return rows
}

func encodeRow(e *ingest.Entry) []string {
	return []string{
		string(e.Record.Identity),
		e.Record.SiteID,
		e.Record.Category,
		e.Record.Title,
		e.Record.Location,
		optInt64(e.Record.PriceCents),
		strconv.FormatBool(e.Record.Featured),
		strconv.FormatBool(e.Record.Reserved),
		e.Record.URL,
		e.Record.ThumbnailURL,
		optInt(e.Record.Position),
		e.FirstSeen.String(),
		e.LastSeen.String(),
		string(e.Status),
	}
}

func optInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// WriteCSV writes the tabular export: header row plus one row per
// exported entry.
func WriteCSV(w io.Writer, m ingest.MasterTable, opts Options) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(Columns))
	for i, c := range Columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, row := range Rows(m, opts) {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
