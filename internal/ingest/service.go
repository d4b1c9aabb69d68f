package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// IngestService is the orchestration layer that coordinates extraction,
// normalization, reconciliation and persistence for the CLI.
//
// Runs are processed strictly one at a time: page extraction within a run
// is parallel (each page is independent and read-only), but the master
// table is only ever reconciled and written serially.
type IngestService struct {
	store     Store
	catalog   Catalog
	archive   Archive // nil when archiving is disabled
	encryptor Encryptor
	extractor *Extractor
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	opts      ReconcileOptions
}

// NewIngestService creates an IngestService with the provided dependencies.
// archive may be nil, in which case pruned runs are deleted without being
// archived. encryptor may be nil or unconfigured for plaintext archives.
func NewIngestService(store Store, catalog Catalog, archive Archive, encryptor Encryptor, extractor *Extractor, logger Logger, clock Clock, idgen IDGenerator, opts ReconcileOptions) *IngestService {
	return &IngestService{
		store:     store,
		catalog:   catalog,
		archive:   archive,
		encryptor: encryptor,
		extractor: extractor,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		opts:      opts,
	}
}

// ProcessPending reconciles every run that has no successful catalog record
// yet, oldest first. It stops at the first fatal error; already-processed
// runs are never re-reconciled.
func (s *IngestService) ProcessPending(limit int) ([]ChangeSummary, error) {
	runs, err := s.store.ListRuns()
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	var summaries []ChangeSummary
	for _, run := range runs {
		done, err := s.catalog.IsProcessed(run)
		if err != nil {
			return summaries, fmt.Errorf("checking catalog for run %s: %w", run, err)
		}
		if done {
			continue
		}

		summary, _, err := s.ProcessRun(run, limit)
		if err != nil {
			return summaries, fmt.Errorf("processing run %s: %w", run, err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// ProcessRun folds a single run into the master table.
//
// limit caps the number of records fed into reconciliation (test/debug runs
// only); 0 means no cap. The cap is applied after normalization and
// identity-sorting, so a capped run is still deterministic.
//
// The run either completes and persists a new master table, or fails before
// any persistence occurs; the previous table is never left half-written.
//
// A run with a successful catalog record is refused with ErrRunProcessed:
// reconciling it again would count one real missed scrape against absent
// entries once per pass.
func (s *IngestService) ProcessRun(run RunID, limit int) (ChangeSummary, ExtractStats, error) {
	done, err := s.catalog.IsProcessed(run)
	if err != nil {
		return ChangeSummary{}, ExtractStats{}, fmt.Errorf("checking catalog for run %s: %w", run, err)
	}
	if done {
		return ChangeSummary{}, ExtractStats{}, fmt.Errorf("run %s: %w", run, ErrRunProcessed)
	}

	opID := s.idgen.New()
	rowID, err := s.catalog.BeginIngest(opID, run)
	if err != nil {
		return ChangeSummary{}, ExtractStats{}, fmt.Errorf("recording ingest start: %w", err)
	}

	summary, stats, err := s.processRun(run, limit)
	status := "success"
	if err != nil {
		status = "error"
	}
	if ferr := s.catalog.FinishIngest(rowID, status, stats, summary); ferr != nil {
		s.logger.Error("finalizing catalog record failed", "run", run, "error", ferr)
	}
	if err != nil {
		return ChangeSummary{}, stats, err
	}

	s.logger.Info("run reconciled",
		"run", run,
		"found", stats.ItemsFound,
		"new", len(summary.New),
		"updated", len(summary.Updated),
		"removed", len(summary.Removed),
		"unchanged", len(summary.Unchanged),
		"skipped", stats.ItemsSkipped,
		"rejected", stats.ItemsRejected,
	)
	return summary, stats, nil
}

func (s *IngestService) processRun(run RunID, limit int) (ChangeSummary, ExtractStats, error) {
	pages, err := s.store.ReadPages(run)
	if err != nil {
		return ChangeSummary{}, ExtractStats{}, fmt.Errorf("reading run pages: %w", err)
	}

	records, stats := s.extractRun(run, pages)

	if limit > 0 && len(records) > limit {
		s.logger.Warn("record cap applied", "run", run, "cap", limit, "found", len(records))
		records = records[:limit]
	}

	prev, err := s.store.LoadMaster()
	if err != nil {
		return ChangeSummary{}, stats, fmt.Errorf("loading master table: %w", err)
	}

	next, summary, err := Reconcile(prev, records, run, s.opts)
	if err != nil {
		return ChangeSummary{}, stats, fmt.Errorf("reconciling run %s: %w", run, err)
	}

	if err := s.store.SaveMaster(next); err != nil {
		return ChangeSummary{}, stats, fmt.Errorf("saving master table: %w", err)
	}

	return summary, stats, nil
}

// extractRun parses all pages of a run in parallel and returns normalized
// records sorted by identity, unique per identity.
func (s *IngestService) extractRun(run RunID, pages []Page) ([]Record, ExtractStats) {
	stats := ExtractStats{Pages: len(pages)}

	var (
		mu   sync.Mutex
		raws []RawRecord
		wg   sync.WaitGroup
	)
	for _, page := range pages {
		wg.Add(1)
		go func(p Page) {
			defer wg.Done()
			extracted, skipped := s.extractor.Extract(p.Content)
			mu.Lock()
			raws = append(raws, extracted...)
			stats.ItemsFound += len(extracted)
			stats.ItemsSkipped += skipped
			mu.Unlock()
		}(page)
	}
	wg.Wait()

	normalizer := NewNormalizer()
	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		record, ok := normalizer.Normalize(raw, run)
		if !ok {
			stats.ItemsRejected++
			s.logger.Warn("record rejected: missing site id", "run", run, "title", raw.Title)
			continue
		}
		records = append(records, record)
	}

	deduped := dedupeRecords(records)
	stats.ItemsDuplicate = len(records) - len(deduped)
	if stats.ItemsDuplicate > 0 {
		s.logger.Warn("duplicate identities within run", "run", run, "count", stats.ItemsDuplicate)
	}
	return deduped, stats
}

// RetentionPolicy governs how many run directories stay on disk. A run is
// prunable when it exceeds either limit; zero values disable that limit.
type RetentionPolicy struct {
	RunsToKeep int
	MaxAge     time.Duration
}

// PruneRuns deletes run directories past the retention policy's cutoff.
// A run is only ever pruned after the catalog confirms it has been folded
// into the master table. When an archive is configured, the run directory
// is packed (and optionally encrypted) and stored there first; a run whose
// archive upload fails is left in place for a future pruning attempt.
// Pruning failures are never fatal.
func (s *IngestService) PruneRuns(policy RetentionPolicy) ([]RunID, error) {
	runs, err := s.store.ListRuns()
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	// With a keep-count of N, everything before the newest N runs is past
	// the cutoff. ListRuns is chronological by construction.
	firstKept := 0
	if policy.RunsToKeep > 0 && len(runs) > policy.RunsToKeep {
		firstKept = len(runs) - policy.RunsToKeep
	}

	now := s.clock.Now()
	var pruned []RunID
	for i, run := range runs {
		byCount := policy.RunsToKeep > 0 && i < firstKept
		byAge := policy.MaxAge > 0 && now.Sub(run.Time()) > policy.MaxAge
		if !byCount && !byAge {
			continue
		}

		processed, err := s.catalog.IsProcessed(run)
		if err != nil {
			return pruned, fmt.Errorf("checking catalog for run %s: %w", run, err)
		}
		if !processed {
			s.logger.Warn("run past retention but not yet reconciled, keeping", "run", run)
			continue
		}

		if err := s.pruneOne(run); err != nil {
			s.logger.Error("pruning run failed, will retry next time", "run", run, "error", err)
			continue
		}
		pruned = append(pruned, run)
	}

	return pruned, nil
}

func (s *IngestService) pruneOne(run RunID) error {
	if s.archive != nil {
		if err := s.archiveRun(run); err != nil {
			return fmt.Errorf("archiving: %w", err)
		}
	}
	if err := s.store.DeleteRun(run); err != nil {
		return fmt.Errorf("deleting run directory: %w", err)
	}
	s.logger.Info("run pruned", "run", run, "archived", s.archive != nil)
	return nil
}

// archiveRun packs a run directory into a tar blob and stores it in the
// archive. Runs are small (a handful of HTML pages), so the blob is
// buffered in memory to know its size up front.
func (s *IngestService) archiveRun(run RunID) error {
	ok, err := s.archive.Has(run)
	if err != nil {
		return fmt.Errorf("checking archive: %w", err)
	}
	if ok {
		return nil
	}

	var tarBuf bytes.Buffer
	if err := s.store.PackRun(run, &tarBuf); err != nil {
		return fmt.Errorf("packing run: %w", err)
	}

	blob := tarBuf.Bytes()
	if s.encryptor != nil && s.encryptor.IsConfigured() {
		var encBuf bytes.Buffer
		if err := s.encryptor.Encrypt(&tarBuf, &encBuf); err != nil {
			return fmt.Errorf("encrypting archive: %w", err)
		}
		blob = encBuf.Bytes()
	}

	if err := s.archive.Put(run, bytes.NewReader(blob), int64(len(blob))); err != nil {
		return fmt.Errorf("storing archive: %w", err)
	}
	return nil
}

// isTar reports whether data looks like a tar stream: the ustar magic
// sits at offset 257 of the first header block. Anything else is an
// encrypted blob.
func isTar(data []byte) bool {
	return len(data) >= 262 && string(data[257:262]) == "ustar"
}

// RestoreRun re-creates a pruned run directory from its archive blob.
// dec is only consulted when the blob is encrypted; passing nil for a
// plaintext archive is fine.
func (s *IngestService) RestoreRun(run RunID, dec DecryptionContext) error {
	if s.archive == nil {
		return errors.New("no archive configured")
	}

	var blob bytes.Buffer
	if err := s.archive.Get(run, &blob); err != nil {
		return fmt.Errorf("fetching archive: %w", err)
	}

	data := blob.Bytes()
	if !isTar(data) {
		if dec == nil {
			return errors.New("archive is encrypted but no key was unlocked")
		}
		var plain bytes.Buffer
		if err := dec.Decrypt(bytes.NewReader(data), &plain); err != nil {
			return fmt.Errorf("decrypting archive: %w", err)
		}
		data = plain.Bytes()
	}

	if err := s.store.UnpackRun(run, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("unpacking run: %w", err)
	}

	s.logger.Info("run restored", "run", run)
	return nil
}

// ListRuns returns all run directories currently on disk, chronological.
func (s *IngestService) ListRuns() ([]RunID, error) {
	runs, err := s.store.ListRuns()
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i] < runs[j] })
	return runs, nil
}
