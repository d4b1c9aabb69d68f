// Package archive provides long-term storage backends for pruned run
// directories. Each run is stored as a single tar blob keyed by run ID.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"listwatch/internal/ingest"
)

// MemoryArchive is an in-memory implementation of the Archive interface,
// useful for testing. Safe for concurrent use.
type MemoryArchive struct {
	name  string
	blobs map[ingest.RunID][]byte
	mu    sync.RWMutex
}

// NewMemoryArchive creates a new in-memory archive with the given name.
func NewMemoryArchive(name string) *MemoryArchive {
	return &MemoryArchive{
		name:  name,
		blobs: make(map[ingest.RunID][]byte),
	}
}

// Put stores the archive blob for a run. Idempotent.
func (m *MemoryArchive) Put(run ingest.RunID, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading archive blob: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[run] = data
	return nil
}

// Get retrieves the archive blob for a run.
func (m *MemoryArchive) Get(run ingest.RunID, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[run]
	if !ok {
		return fmt.Errorf("archive not found for run: %s", run)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing archive blob: %w", err)
	}
	return nil
}

// Has reports whether an archive blob exists for the run.
func (m *MemoryArchive) Has(run ingest.RunID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[run]
	return ok, nil
}

// ValidateSetup always succeeds for an in-memory archive.
func (m *MemoryArchive) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryArchive implements ingest.Archive
var _ ingest.Archive = (*MemoryArchive)(nil)
