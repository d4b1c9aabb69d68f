// Package snapshot implements the on-disk snapshot store: per-run
// directories of fetched markup under <data_dir>/runs, and the persisted
// master table at <data_dir>/master.csv.
//
// Run directory names are run IDs ("20060102T150405Z"), so a plain string
// sort of directory names is chronological. That property is a precondition
// of everything here; directories with non-conforming names are ignored.
package snapshot

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"listwatch/internal/ingest"
)

// Store is the filesystem implementation of ingest.Store.
type Store struct {
	dataDir    string
	runsDir    string
	masterPath string
}

var _ ingest.Store = (*Store)(nil)

// NewStore creates a Store rooted at dataDir, creating the directory
// layout if needed.
func NewStore(dataDir string) (*Store, error) {
	runsDir := filepath.Join(dataDir, "runs")
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating runs directory: %w", err)
	}
	return &Store{
		dataDir:    dataDir,
		runsDir:    runsDir,
		masterPath: filepath.Join(dataDir, "master.csv"),
	}, nil
}

// ListRuns returns all run directories in chronological order.
func (s *Store) ListRuns() ([]ingest.RunID, error) {
	entries, err := os.ReadDir(s.runsDir)
	if err != nil {
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	var runs []ingest.RunID
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		run, err := ingest.ParseRunID(entry.Name())
		if err != nil {
			// Not a run directory; leave it alone.
			continue
		}
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i] < runs[j] })
	return runs, nil
}

// ReadPages loads every markup file of a run in file-name order. Asset
// files (images etc.) are not pages and are left untouched.
func (s *Store) ReadPages(run ingest.RunID) ([]ingest.Page, error) {
	dir := filepath.Join(s.runsDir, run.String())
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading run directory %s: %w", run, err)
	}

	var pages []ingest.Page
	for _, entry := range entries {
		if entry.IsDir() || !isMarkupFile(entry.Name()) {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading page %s/%s: %w", run, entry.Name(), err)
		}
		pages = append(pages, ingest.Page{Name: entry.Name(), Content: content})
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Name < pages[j].Name })
	return pages, nil
}

func isMarkupFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".html" || ext == ".htm"
}

// DeleteRun removes a run directory and everything in it.
func (s *Store) DeleteRun(run ingest.RunID) error {
	// Re-validate before handing anything to RemoveAll.
	if _, err := ingest.ParseRunID(run.String()); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.runsDir, run.String())); err != nil {
		return fmt.Errorf("removing run directory %s: %w", run, err)
	}
	return nil
}

// PackRun writes the run directory as an uncompressed tar stream to w.
// Entries are emitted in sorted path order so the same directory always
// packs to the same bytes.
func (s *Store) PackRun(run ingest.RunID, w io.Writer) error {
	dir := filepath.Join(s.runsDir, run.String())
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("stat run directory: %w", err)
	}

	var files []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking run directory: %w", err)
	}
	sort.Strings(files)

	tw := tar.NewWriter(w)
	for _, file := range files {
		if err := s.packFile(tw, dir, file); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing tar: %w", err)
	}
	return nil
}

func (s *Store) packFile(tw *tar.Writer, dir, file string) error {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return fmt.Errorf("computing relative path: %w", err)
	}

	info, err := os.Stat(file)
	if err != nil {
		return fmt.Errorf("stat %s: %w", file, err)
	}

	hdr := &tar.Header{
		Name: filepath.ToSlash(rel),
		Mode: 0644,
		Size: info.Size(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing tar header for %s: %w", rel, err)
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("opening %s: %w", file, err)
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("writing %s to tar: %w", rel, err)
	}
	return nil
}

// UnpackRun recreates a run directory from a tar stream produced by
// PackRun. Restoring over an existing run directory is refused: run
// directories are immutable once written.
func (s *Store) UnpackRun(run ingest.RunID, r io.Reader) error {
	dir := filepath.Join(s.runsDir, run.String())
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("run directory already exists: %s", run)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.FromSlash(hdr.Name)
		if strings.Contains(name, "..") || filepath.IsAbs(name) {
			return fmt.Errorf("refusing tar entry with unsafe path: %s", hdr.Name)
		}

		dest := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", name, err)
		}

		f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return fmt.Errorf("extracting %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", name, err)
		}
	}
	return nil
}
