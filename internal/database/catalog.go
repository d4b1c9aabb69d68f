package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"listwatch/internal/database/migrations"
	"listwatch/internal/ingest"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCatalog implements ingest.Catalog on a SQLite database.
type SQLiteCatalog struct {
	db    *sql.DB
	clock ingest.Clock
	path  string
}

var _ ingest.Catalog = (*SQLiteCatalog)(nil)

// NewSQLiteCatalog opens (or creates) the catalog at path.
// path can be a file path or ":memory:" for an in-memory catalog.
func NewSQLiteCatalog(path string, clock ingest.Clock) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteCatalog{db: db, clock: clock, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the
// PRAGMAs the catalog relies on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}

	// SQLite defaults foreign keys to OFF for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return db, nil
}

// Migrate brings the catalog schema to the latest version.
func (c *SQLiteCatalog) Migrate() error {
	return migrations.Up(c.db)
}

// CheckMigrations verifies the schema is current without changing it.
func (c *SQLiteCatalog) CheckMigrations() error {
	return migrations.Check(c.db)
}

// BeginIngest records the start of an ingest pass over one run.
func (c *SQLiteCatalog) BeginIngest(opID string, run ingest.RunID) (int64, error) {
	res, err := c.db.ExecContext(context.Background(),
		`INSERT INTO ingest_runs (op_id, run_id, started_at, status)
		 VALUES (?, ?, ?, 'running')`,
		opID, run.String(), c.clock.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting ingest record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading ingest record id: %w", err)
	}
	return id, nil
}

// FinishIngest finalizes an ingest row with its outcome and counts.
func (c *SQLiteCatalog) FinishIngest(rowID int64, status string, stats ingest.ExtractStats, summary ingest.ChangeSummary) error {
	if status != "success" && status != "error" {
		return fmt.Errorf("invalid ingest status: %q", status)
	}
	res, err := c.db.ExecContext(context.Background(),
		`UPDATE ingest_runs SET
			finished_at = ?,
			status = ?,
			pages = ?,
			items_found = ?,
			items_skipped = ?,
			items_rejected = ?,
			items_duplicate = ?,
			new_count = ?,
			updated_count = ?,
			removed_count = ?,
			unchanged_count = ?
		 WHERE id = ?`,
		c.clock.Now().UTC(), status,
		stats.Pages, stats.ItemsFound, stats.ItemsSkipped, stats.ItemsRejected, stats.ItemsDuplicate,
		len(summary.New), len(summary.Updated), len(summary.Removed), len(summary.Unchanged),
		rowID,
	)
	if err != nil {
		return fmt.Errorf("finalizing ingest record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking ingest record update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("ingest record %d not found", rowID)
	}
	return nil
}

// IsProcessed reports whether a run has a successful ingest record.
func (c *SQLiteCatalog) IsProcessed(run ingest.RunID) (bool, error) {
	var one int
	err := c.db.QueryRowContext(context.Background(),
		`SELECT 1 FROM ingest_runs WHERE run_id = ? AND status = 'success' LIMIT 1`,
		run.String(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying ingest record for run %s: %w", run, err)
	}
	return true, nil
}

// ListOperations returns the most recent ingest operations, newest first.
func (c *SQLiteCatalog) ListOperations(limit int) ([]*ingest.IngestRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.QueryContext(context.Background(),
		selectIngestRun+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing ingest records: %w", err)
	}
	defer rows.Close()

	var ops []*ingest.IngestRun
	for rows.Next() {
		op, err := scanIngestRun(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ingest records: %w", err)
	}
	return ops, nil
}

// LatestSummary returns the most recent successful ingest record, or nil.
func (c *SQLiteCatalog) LatestSummary() (*ingest.IngestRun, error) {
	rows, err := c.db.QueryContext(context.Background(),
		selectIngestRun+` WHERE status = 'success' ORDER BY id DESC LIMIT 1`)
	if err != nil {
		return nil, fmt.Errorf("querying latest ingest record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanIngestRun(rows)
}

// Close closes the catalog database.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

const selectIngestRun = `SELECT id, op_id, run_id, started_at, finished_at, status,
	pages, items_found, items_skipped, items_rejected, items_duplicate,
	new_count, updated_count, removed_count, unchanged_count
	FROM ingest_runs`

func scanIngestRun(rows *sql.Rows) (*ingest.IngestRun, error) {
	var (
		op       ingest.IngestRun
		runID    string
		finished sql.NullTime
	)
	err := rows.Scan(
		&op.ID, &op.OpID, &runID, &op.StartedAt, &finished, &op.Status,
		&op.Pages, &op.ItemsFound, &op.ItemsSkipped, &op.ItemsRejected, &op.ItemsDuplicate,
		&op.NewCount, &op.UpdatedCount, &op.RemovedCount, &op.UnchangedCount,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning ingest record: %w", err)
	}
	op.RunID = ingest.RunID(runID)
	if finished.Valid {
		t := finished.Time
		op.FinishedAt = &t
	}
	return &op, nil
}
