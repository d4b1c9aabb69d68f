package testutil

import (
	"testing"

	"listwatch/internal/database"
	"listwatch/internal/ingest"
)

// NewTestCatalog creates an in-memory SQLite catalog with the schema
// applied. The catalog is automatically closed when the test completes.
func NewTestCatalog(t *testing.T, clock ingest.Clock) *database.SQLiteCatalog {
	t.Helper()

	catalog, err := database.NewSQLiteCatalog(":memory:", clock)
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}

	if err := catalog.Migrate(); err != nil {
		catalog.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		catalog.Close()
	})

	return catalog
}
