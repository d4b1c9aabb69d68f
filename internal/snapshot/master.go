package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"listwatch/internal/ingest"
)

// masterColumns is the fixed column schema of the persisted master table.
// The order is load-bearing: load → save must round-trip byte-identical.
var masterColumns = []string{
	"identity",
	"site_id",
	"category",
	"title",
	"location",
	"price_cents",
	"featured",
	"reserved",
	"url",
	"thumbnail_url",
	"position",
	"first_seen",
	"last_seen",
	"missed_runs",
	"status",
}

// LoadMaster reads the persisted master table. A missing file yields an
// empty table. Duplicate identities mean the file was corrupted outside
// this program; that is fatal and wraps ingest.ErrCorruptMaster.
func (s *Store) LoadMaster() (ingest.MasterTable, error) {
	f, err := os.Open(s.masterPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ingest.MasterTable{}, nil
		}
		return nil, fmt.Errorf("opening master table: %w", err)
	}
	defer f.Close()

	table, err := readMaster(f)
	if err != nil {
		return nil, fmt.Errorf("reading master table %s: %w", s.masterPath, err)
	}
	return table, nil
}

// SaveMaster persists the master table atomically: the rows are written to
// a temp file in the same directory, synced, then renamed over the old
// table. A crash mid-write leaves the previous table intact.
func (s *Store) SaveMaster(m ingest.MasterTable) error {
	dir := filepath.Dir(s.masterPath)
	tmp, err := os.CreateTemp(dir, ".master-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp master file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := writeMaster(tmp, m); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing master table: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing master table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp master file: %w", err)
	}

	if err := os.Rename(tmpPath, s.masterPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing master table: %w", err)
	}
	return nil
}

func readMaster(r io.Reader) (ingest.MasterTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ingest.MasterTable{}, nil
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) != len(masterColumns) {
		return nil, fmt.Errorf("%w: header has %d columns, want %d", ingest.ErrCorruptMaster, len(header), len(masterColumns))
	}
	for i, col := range masterColumns {
		if header[i] != col {
			return nil, fmt.Errorf("%w: unexpected column %q at position %d (want %q)", ingest.ErrCorruptMaster, header[i], i, col)
		}
	}

	table := ingest.MasterTable{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row at line %d: %w", line, err)
		}
		if len(row) != len(masterColumns) {
			return nil, fmt.Errorf("%w: line %d has %d columns, want %d", ingest.ErrCorruptMaster, line, len(row), len(masterColumns))
		}

		entry, err := decodeEntry(row)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ingest.ErrCorruptMaster, line, err)
		}
		if _, exists := table[entry.Record.Identity]; exists {
			return nil, fmt.Errorf("%w: duplicate identity %q at line %d", ingest.ErrCorruptMaster, entry.Record.Identity, line)
		}
		table[entry.Record.Identity] = entry
	}
	return table, nil
}

func writeMaster(w io.Writer, m ingest.MasterTable) error {
	ids := make([]ingest.Identity, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	cw := csv.NewWriter(w)
	if err := cw.Write(masterColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, id := range ids {
		if err := cw.Write(encodeEntry(m[id])); err != nil {
			return fmt.Errorf("writing row for %s: %w", id, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeEntry(e *ingest.Entry) []string {
	return []string{
		string(e.Record.Identity),
		e.Record.SiteID,
		e.Record.Category,
		e.Record.Title,
		e.Record.Location,
		encodeOptInt64(e.Record.PriceCents),
		strconv.FormatBool(e.Record.Featured),
		strconv.FormatBool(e.Record.Reserved),
		e.Record.URL,
		e.Record.ThumbnailURL,
		encodeOptInt(e.Record.Position),
		e.FirstSeen.String(),
		e.LastSeen.String(),
		strconv.Itoa(e.MissedRuns),
		string(e.Status),
	}
}

func decodeEntry(row []string) (*ingest.Entry, error) {
	price, err := decodeOptInt64(row[5])
	if err != nil {
		return nil, fmt.Errorf("price_cents: %v", err)
	}
	featured, err := strconv.ParseBool(row[6])
	if err != nil {
		return nil, fmt.Errorf("featured: %v", err)
	}
	reserved, err := strconv.ParseBool(row[7])
	if err != nil {
		return nil, fmt.Errorf("reserved: %v", err)
	}
	position, err := decodeOptInt(row[10])
	if err != nil {
		return nil, fmt.Errorf("position: %v", err)
	}
	firstSeen, err := ingest.ParseRunID(row[11])
	if err != nil {
		return nil, fmt.Errorf("first_seen: %v", err)
	}
	lastSeen, err := ingest.ParseRunID(row[12])
	if err != nil {
		return nil, fmt.Errorf("last_seen: %v", err)
	}
	missed, err := strconv.Atoi(row[13])
	if err != nil {
		return nil, fmt.Errorf("missed_runs: %v", err)
	}

	status := ingest.Status(row[14])
	if status != ingest.StatusActive && status != ingest.StatusRemoved {
		return nil, fmt.Errorf("unknown status %q", row[14])
	}

	return &ingest.Entry{
		Record: ingest.Record{
			Identity:     ingest.Identity(row[0]),
			SiteID:       row[1],
			Category:     row[2],
			Title:        row[3],
			Location:     row[4],
			PriceCents:   price,
			Featured:     featured,
			Reserved:     reserved,
			URL:          row[8],
			ThumbnailURL: row[9],
			Position:     position,
			SeenAt:       lastSeen,
		},
		FirstSeen:  firstSeen,
		LastSeen:   lastSeen,
		MissedRuns: missed,
		Status:     status,
	}, nil
}

func encodeOptInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func decodeOptInt64(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func encodeOptInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func decodeOptInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
