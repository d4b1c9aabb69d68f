package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"listwatch/internal/ingest"
)

// FileSystemArchive stores run archives as files in a directory:
//
//	<root>/
//	  <runID>.tar    (one blob per pruned run; age-encrypted when the
//	                  encryptor is configured, the extension stays .tar)
type FileSystemArchive struct {
	name string
	root string
}

// NewFileSystemArchive creates a filesystem archive rooted at the given
// path.
func NewFileSystemArchive(name, root string) (*FileSystemArchive, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &FileSystemArchive{name: name, root: root}, nil
}

func (a *FileSystemArchive) blobPath(run ingest.RunID) string {
	return filepath.Join(a.root, run.String()+".tar")
}

// Put stores the archive blob for a run. The write is atomic (temp file +
// rename) and idempotent: re-archiving the same run is safe.
func (a *FileSystemArchive) Put(run ingest.RunID, r io.Reader, size int64) error {
	tmp, err := os.CreateTemp(a.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("writing archive blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, a.blobPath(run)); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true
	return nil
}

// Get retrieves the archive blob for a run and writes it to w.
func (a *FileSystemArchive) Get(run ingest.RunID, w io.Writer) error {
	f, err := os.Open(a.blobPath(run))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("archive not found for run: %s", run)
		}
		return fmt.Errorf("opening archive blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading archive blob: %w", err)
	}
	return nil
}

// Has reports whether an archive blob exists for the run.
func (a *FileSystemArchive) Has(run ingest.RunID) (bool, error) {
	if _, err := os.Stat(a.blobPath(run)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat archive blob: %w", err)
	}
	return true, nil
}

// ValidateSetup verifies that the archive root is an accessible directory.
func (a *FileSystemArchive) ValidateSetup() error {
	info, err := os.Stat(a.root)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root is not a directory: %s", a.root)
	}
	return nil
}

// Compile-time check that FileSystemArchive implements ingest.Archive
var _ ingest.Archive = (*FileSystemArchive)(nil)
