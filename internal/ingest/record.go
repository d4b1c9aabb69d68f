package ingest

import (
	"fmt"
	"time"
)

// RunID identifies one scrape session. Run IDs are UTC timestamps formatted
// as "20060102T150405Z", so lexicographic order is chronological order.
// The snapshot store relies on this as a precondition.
type RunID string

// runIDFormat is the time layout run IDs are built from.
const runIDFormat = "20060102T150405Z"

// NewRunID builds a RunID from a timestamp.
func NewRunID(t time.Time) RunID {
	return RunID(t.UTC().Format(runIDFormat))
}

// ParseRunID validates a raw run identifier.
func ParseRunID(s string) (RunID, error) {
	if _, err := time.Parse(runIDFormat, s); err != nil {
		return "", fmt.Errorf("invalid run id %q: %w", s, err)
	}
	return RunID(s), nil
}

// Time returns the timestamp the run ID encodes.
func (r RunID) Time() time.Time {
	t, err := time.Parse(runIDFormat, string(r))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (r RunID) String() string { return string(r) }

// Identity is the stable key that matches the same real-world listing across
// runs. It is derived from immutable raw fields (category + site-assigned id),
// never from fields that drift between runs.
type Identity string

// MakeIdentity derives the identity key for a listing.
func MakeIdentity(category, siteID string) Identity {
	return Identity(category + "/" + siteID)
}

// RawRecord is one listing item as extracted from markup, before any
// cleaning. All values are raw strings; empty means the sub-field was absent.
type RawRecord struct {
	SiteID       string
	Category     string
	Title        string
	Location     string
	PriceText    string
	Featured     string
	Reserved     string
	URL          string
	ThumbnailURL string
	PositionText string
}

// Record is a normalized listing as seen in a single run. The field set is
// the canonical schema; every downstream component consumes this type and
// never raw field maps.
type Record struct {
	Identity     Identity
	SiteID       string
	Category     string
	Title        string
	Location     string
	PriceCents   *int64 // nil when the listing carries no price
	Featured     bool
	Reserved     bool
	URL          string
	ThumbnailURL string
	Position     *int // nil when page position could not be determined
	SeenAt       RunID
}

// Status marks whether a master table entry was present in a recent run.
type Status string

const (
	StatusActive  Status = "active"
	StatusRemoved Status = "removed"
)

// Entry is one listing in the master table: the most recent known fields
// plus its observation history.
type Entry struct {
	Record     Record
	FirstSeen  RunID
	LastSeen   RunID
	MissedRuns int
	Status     Status
}

// MasterTable is the accumulated, deduplicated state across all runs
// processed so far, keyed by identity. Entries are never deleted, only
// marked removed.
type MasterTable map[Identity]*Entry

// Clone returns a deep copy. Reconciliation never mutates its input table.
func (m MasterTable) Clone() MasterTable {
	out := make(MasterTable, len(m))
	for id, e := range m {
		copied := *e
		out[id] = &copied
	}
	return out
}

// CountByStatus returns the number of entries with the given status.
func (m MasterTable) CountByStatus(status Status) int {
	n := 0
	for _, e := range m {
		if e.Status == status {
			n++
		}
	}
	return n
}

// FieldDelta describes one changed field of an updated listing.
type FieldDelta struct {
	Field string
	Old   string
	New   string
}

// ChangeSummary is the per-reconciliation output: which identities were
// new, updated, removed or unchanged in this run. Identity slices are
// sorted, so two summaries for the same inputs compare equal.
type ChangeSummary struct {
	RunID     RunID
	New       []Identity
	Updated   []Identity
	Removed   []Identity
	Unchanged []Identity
	Deltas    map[Identity][]FieldDelta
}

// Page is one fetched markup file within a run directory.
type Page struct {
	Name    string
	Content []byte
}

// ExtractStats accounts for items that were dropped on the way into the
// master table. Every identity-bearing record that is lost shows up here.
type ExtractStats struct {
	Pages          int
	ItemsFound     int
	ItemsSkipped   int // malformed item nodes
	ItemsRejected  int // normalizer rejections (missing identity field)
	ItemsDuplicate int // same identity extracted more than once in one run
}
