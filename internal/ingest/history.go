package ingest

import (
	"fmt"
	"time"
)

// IngestRun is one catalog row: a single ingest pass over one run.
type IngestRun struct {
	ID             int64
	OpID           string
	RunID          RunID
	StartedAt      time.Time
	FinishedAt     *time.Time
	Status         string // "success" or "error"
	Pages          int
	ItemsFound     int
	ItemsSkipped   int
	ItemsRejected  int
	ItemsDuplicate int
	NewCount       int
	UpdatedCount   int
	RemovedCount   int
	UnchangedCount int
}

// GetHistory returns the most recent ingest operations, newest first.
func (s *IngestService) GetHistory(limit int) ([]*IngestRun, error) {
	ops, err := s.catalog.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing ingest operations: %w", err)
	}
	return ops, nil
}
