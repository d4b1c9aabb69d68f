package database

import (
	"fmt"
	"os"
	"path/filepath"

	"listwatch/internal/config"
	"listwatch/internal/ingest"
)

// NewCatalogFromConfig creates a Catalog implementation based on the
// database config type.
func NewCatalogFromConfig(cfg config.DatabaseConfig, clock ingest.Clock) (*SQLiteCatalog, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite catalog")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
		return NewSQLiteCatalog(filepath.Join(cfg.DataDir, "catalog.db"), clock)
	case "memory":
		return NewSQLiteCatalog(":memory:", clock)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
