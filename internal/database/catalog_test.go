package database_test

import (
	"testing"
	"time"

	"listwatch/internal/database"
	"listwatch/internal/ingest"
	"listwatch/internal/testutil"
)

func TestSQLiteCatalog_CheckMigrations(t *testing.T) {
	clock := testutil.FixedClock()

	catalog, err := database.NewSQLiteCatalog(":memory:", clock)
	if err != nil {
		t.Fatalf("NewSQLiteCatalog() error = %v", err)
	}
	t.Cleanup(func() { catalog.Close() })

	if err := catalog.CheckMigrations(); err == nil {
		t.Error("CheckMigrations() on an unmigrated catalog = nil, want error")
	}

	if err := catalog.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := catalog.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() after Migrate() error = %v", err)
	}
}

func TestSQLiteCatalog_BeginFinishIngest(t *testing.T) {
	clock := testutil.FixedClock()
	catalog := testutil.NewTestCatalog(t, clock)

	run := ingest.RunID("20240101T120000Z")
	rowID, err := catalog.BeginIngest("op-1", run)
	if err != nil {
		t.Fatalf("BeginIngest() error = %v", err)
	}

	started := clock.Now()
	clock.Advance(3 * time.Second)

	stats := ingest.ExtractStats{Pages: 2, ItemsFound: 10, ItemsSkipped: 1, ItemsRejected: 2, ItemsDuplicate: 1}
	summary := ingest.ChangeSummary{
		RunID:     run,
		New:       []ingest.Identity{"bikes/a-1", "bikes/a-2"},
		Updated:   []ingest.Identity{"cars/c-7"},
		Unchanged: []ingest.Identity{"cars/c-8"},
	}
	if err := catalog.FinishIngest(rowID, "success", stats, summary); err != nil {
		t.Fatalf("FinishIngest() error = %v", err)
	}

	ops, err := catalog.ListOperations(10)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("len(ops) = %d, want 1", len(ops))
	}

	op := ops[0]
	if op.ID != rowID {
		t.Errorf("ID = %d, want %d", op.ID, rowID)
	}
	if op.OpID != "op-1" {
		t.Errorf("OpID = %q, want %q", op.OpID, "op-1")
	}
	if op.RunID != run {
		t.Errorf("RunID = %s, want %s", op.RunID, run)
	}
	if op.Status != "success" {
		t.Errorf("Status = %q, want %q", op.Status, "success")
	}
	if !op.StartedAt.Equal(started.UTC()) {
		t.Errorf("StartedAt = %v, want %v", op.StartedAt, started.UTC())
	}
	if op.FinishedAt == nil {
		t.Fatal("FinishedAt = nil, want set")
	}
	if got := op.FinishedAt.Sub(op.StartedAt); got != 3*time.Second {
		t.Errorf("duration = %v, want 3s", got)
	}
	if op.Pages != 2 || op.ItemsFound != 10 || op.ItemsSkipped != 1 || op.ItemsRejected != 2 || op.ItemsDuplicate != 1 {
		t.Errorf("stats = %+v, want the recorded ExtractStats", op)
	}
	if op.NewCount != 2 || op.UpdatedCount != 1 || op.RemovedCount != 0 || op.UnchangedCount != 1 {
		t.Errorf("counts = %d/%d/%d/%d, want 2/1/0/1", op.NewCount, op.UpdatedCount, op.RemovedCount, op.UnchangedCount)
	}
}

func TestSQLiteCatalog_FinishIngest_Validation(t *testing.T) {
	catalog := testutil.NewTestCatalog(t, testutil.FixedClock())

	rowID, err := catalog.BeginIngest("op-1", "20240101T120000Z")
	if err != nil {
		t.Fatalf("BeginIngest() error = %v", err)
	}

	if err := catalog.FinishIngest(rowID, "done", ingest.ExtractStats{}, ingest.ChangeSummary{}); err == nil {
		t.Error("FinishIngest() error = nil for invalid status, want error")
	}
	if err := catalog.FinishIngest(rowID+999, "success", ingest.ExtractStats{}, ingest.ChangeSummary{}); err == nil {
		t.Error("FinishIngest() error = nil for unknown row, want error")
	}
}

func TestSQLiteCatalog_IsProcessed(t *testing.T) {
	catalog := testutil.NewTestCatalog(t, testutil.FixedClock())
	run := ingest.RunID("20240101T120000Z")

	done, err := catalog.IsProcessed(run)
	if err != nil {
		t.Fatalf("IsProcessed() error = %v", err)
	}
	if done {
		t.Error("IsProcessed() = true before any record")
	}

	// A running record does not count as processed.
	rowID, err := catalog.BeginIngest("op-1", run)
	if err != nil {
		t.Fatalf("BeginIngest() error = %v", err)
	}
	if done, _ := catalog.IsProcessed(run); done {
		t.Error("IsProcessed() = true while still running")
	}

	// Neither does a failed one.
	if err := catalog.FinishIngest(rowID, "error", ingest.ExtractStats{}, ingest.ChangeSummary{}); err != nil {
		t.Fatalf("FinishIngest() error = %v", err)
	}
	if done, _ := catalog.IsProcessed(run); done {
		t.Error("IsProcessed() = true after failed ingest")
	}

	rowID, err = catalog.BeginIngest("op-2", run)
	if err != nil {
		t.Fatalf("BeginIngest() error = %v", err)
	}
	if err := catalog.FinishIngest(rowID, "success", ingest.ExtractStats{}, ingest.ChangeSummary{}); err != nil {
		t.Fatalf("FinishIngest() error = %v", err)
	}
	if done, _ := catalog.IsProcessed(run); !done {
		t.Error("IsProcessed() = false after successful ingest")
	}
}

func TestSQLiteCatalog_ListOperations_NewestFirst(t *testing.T) {
	catalog := testutil.NewTestCatalog(t, testutil.FixedClock())

	for _, run := range []ingest.RunID{"20240101T120000Z", "20240102T120000Z", "20240103T120000Z"} {
		rowID, err := catalog.BeginIngest("op-"+run.String(), run)
		if err != nil {
			t.Fatalf("BeginIngest() error = %v", err)
		}
		if err := catalog.FinishIngest(rowID, "success", ingest.ExtractStats{}, ingest.ChangeSummary{}); err != nil {
			t.Fatalf("FinishIngest() error = %v", err)
		}
	}

	ops, err := catalog.ListOperations(2)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("len(ops) = %d, want 2 with limit", len(ops))
	}
	if ops[0].RunID != "20240103T120000Z" || ops[1].RunID != "20240102T120000Z" {
		t.Errorf("order = %s, %s, want newest first", ops[0].RunID, ops[1].RunID)
	}
}

func TestSQLiteCatalog_LatestSummary(t *testing.T) {
	catalog := testutil.NewTestCatalog(t, testutil.FixedClock())

	got, err := catalog.LatestSummary()
	if err != nil {
		t.Fatalf("LatestSummary() error = %v", err)
	}
	if got != nil {
		t.Errorf("LatestSummary() = %+v before any ingest, want nil", got)
	}

	rowID, err := catalog.BeginIngest("op-1", "20240101T120000Z")
	if err != nil {
		t.Fatalf("BeginIngest() error = %v", err)
	}
	if err := catalog.FinishIngest(rowID, "success", ingest.ExtractStats{}, ingest.ChangeSummary{New: []ingest.Identity{"bikes/a-1"}}); err != nil {
		t.Fatalf("FinishIngest() error = %v", err)
	}

	// A later failed ingest must not shadow the successful one.
	rowID, err = catalog.BeginIngest("op-2", "20240102T120000Z")
	if err != nil {
		t.Fatalf("BeginIngest() error = %v", err)
	}
	if err := catalog.FinishIngest(rowID, "error", ingest.ExtractStats{}, ingest.ChangeSummary{}); err != nil {
		t.Fatalf("FinishIngest() error = %v", err)
	}

	got, err = catalog.LatestSummary()
	if err != nil {
		t.Fatalf("LatestSummary() error = %v", err)
	}
	if got == nil {
		t.Fatal("LatestSummary() = nil, want the successful record")
	}
	if got.RunID != "20240101T120000Z" {
		t.Errorf("RunID = %s, want the successful run", got.RunID)
	}
	if got.NewCount != 1 {
		t.Errorf("NewCount = %d, want 1", got.NewCount)
	}
}
