package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"listwatch/internal/archive"
	"listwatch/internal/config"
	"listwatch/internal/database"
	"listwatch/internal/encryption"
	"listwatch/internal/ingest"
	"listwatch/internal/report"
	"listwatch/internal/snapshot"
)

// App is the application layer between the CLI and IngestService.
// It constructs all dependencies from config, exposes high-level
// operations, and manages the catalog and log lifecycles on Close.
type App struct {
	cfg       *config.Config
	store     *snapshot.Store
	catalog   *database.SQLiteCatalog
	archive   ingest.Archive
	encryptor ingest.Encryptor
	service   *ingest.IngestService
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Ingest", "Prune").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	store, err := snapshot.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot store: %w", err)
	}

	clock := ingest.RealClock{}
	catalog, err := database.NewCatalogFromConfig(cfg.Database, clock)
	if err != nil {
		return nil, fmt.Errorf("creating catalog: %w", err)
	}

	if err := catalog.Migrate(); err != nil {
		catalog.Close()
		return nil, fmt.Errorf("migrating catalog: %w", err)
	}
	// Migrate brings an old catalog forward but says nothing about a catalog
	// written by a newer binary. The check catches that.
	if err := catalog.CheckMigrations(); err != nil {
		catalog.Close()
		return nil, fmt.Errorf("catalog schema out of date: %w", err)
	}

	arch, err := archive.NewArchiveFromConfig(cfg.Archive)
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID+"/"+operation)
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	extractor := ingest.NewExtractor(ingest.ExtractorConfig{
		ItemSelector: cfg.Extract.ItemSelector,
		IDAttr:       cfg.Extract.IDAttr,
	})

	opts := ingest.ReconcileOptions{
		MissedRunsBeforeRemoved: cfg.Removal.MissedRunsBeforeRemoved,
		MaxAge:                  time.Duration(cfg.Removal.MaxAgeDays) * 24 * time.Hour,
	}
	if opts.MissedRunsBeforeRemoved < 1 {
		opts.MissedRunsBeforeRemoved = 3
	}

	svc := ingest.NewIngestService(store, catalog, arch, enc, extractor,
		&slogAdapter{l: logger}, clock, ingest.UUIDGenerator{}, opts)

	return &App{
		cfg:       cfg,
		store:     store,
		catalog:   catalog,
		archive:   arch,
		encryptor: enc,
		service:   svc,
		logFile:   logFile,
	}, nil
}

// Ingest processes one run, or all unprocessed runs when rawRunID is
// empty. limit caps the records per run for test/debug; 0 means no cap.
func (a *App) Ingest(rawRunID string, limit int) ([]ingest.ChangeSummary, error) {
	if rawRunID == "" {
		return a.service.ProcessPending(limit)
	}

	run, err := ingest.ParseRunID(rawRunID)
	if err != nil {
		return nil, err
	}
	summary, _, err := a.service.ProcessRun(run, limit)
	if err != nil {
		return nil, err
	}
	return []ingest.ChangeSummary{summary}, nil
}

// WriteReports renders the CSV export and the browsable HTML table from
// the current master table. Returns the two output paths.
func (a *App) WriteReports() (string, string, error) {
	master, err := a.store.LoadMaster()
	if err != nil {
		return "", "", fmt.Errorf("loading master table: %w", err)
	}

	outDir := a.cfg.Report.OutputDir
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", "", fmt.Errorf("creating report directory: %w", err)
	}

	opts := report.Options{IncludeRemoved: a.cfg.Report.IncludeRemoved}

	csvPath := filepath.Join(outDir, "listings.csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return "", "", fmt.Errorf("creating csv export: %w", err)
	}
	if err := report.WriteCSV(csvFile, master, opts); err != nil {
		csvFile.Close()
		return "", "", fmt.Errorf("writing csv export: %w", err)
	}
	if err := csvFile.Close(); err != nil {
		return "", "", fmt.Errorf("closing csv export: %w", err)
	}

	htmlPath := filepath.Join(outDir, "listings.html")
	htmlFile, err := os.Create(htmlPath)
	if err != nil {
		return "", "", fmt.Errorf("creating browsable table: %w", err)
	}
	if err := report.WriteHTML(htmlFile, master, opts); err != nil {
		htmlFile.Close()
		return "", "", fmt.Errorf("writing browsable table: %w", err)
	}
	if err := htmlFile.Close(); err != nil {
		return "", "", fmt.Errorf("closing browsable table: %w", err)
	}

	return csvPath, htmlPath, nil
}

// Stats computes aggregate statistics over the master table plus the most
// recent ingest record.
func (a *App) Stats() (report.Statistics, error) {
	master, err := a.store.LoadMaster()
	if err != nil {
		return report.Statistics{}, fmt.Errorf("loading master table: %w", err)
	}
	last, err := a.catalog.LatestSummary()
	if err != nil {
		return report.Statistics{}, fmt.Errorf("loading latest ingest record: %w", err)
	}
	return report.Compute(master, last), nil
}

// History returns the most recent ingest operations.
func (a *App) History(limit int) ([]*ingest.IngestRun, error) {
	return a.service.GetHistory(limit)
}

// ListRuns returns the run directories currently on disk.
func (a *App) ListRuns() ([]ingest.RunID, error) {
	return a.service.ListRuns()
}

// Prune archives and deletes run directories past the retention policy.
func (a *App) Prune() ([]ingest.RunID, error) {
	policy := ingest.RetentionPolicy{
		RunsToKeep: a.cfg.Retention.RunsToKeep,
		MaxAge:     time.Duration(a.cfg.Retention.MaxAgeDays) * 24 * time.Hour,
	}
	return a.service.PruneRuns(policy)
}

// Restore re-creates a pruned run directory from the archive.
// passphrase is only needed when archives are encrypted; pass "" for
// plaintext archives.
func (a *App) Restore(rawRunID string, passphrase string) error {
	run, err := ingest.ParseRunID(rawRunID)
	if err != nil {
		return err
	}

	var dec ingest.DecryptionContext
	if passphrase != "" {
		dec, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return fmt.Errorf("unlocking key: %w", err)
		}
	}

	return a.service.RestoreRun(run, dec)
}

// InitKeys generates the age key pair used to encrypt run archives.
func (a *App) InitKeys(passphrase string) error {
	if a.encryptor.IsConfigured() {
		return fmt.Errorf("key pair already exists")
	}
	return a.encryptor.Setup(passphrase)
}

// Close closes the catalog and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.catalog.Close(); err != nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
