package ingest

import (
	"errors"
	"io"
)

// ErrCorruptMaster reports a structurally invalid persisted master table,
// such as duplicate identities. It is fatal: the run aborts before any write
// and the table must be corrected manually.
var ErrCorruptMaster = errors.New("master table is corrupt")

// ErrRunProcessed reports an attempt to reconcile a run the catalog already
// records as successfully ingested. Folding a run in twice would advance the
// missed-run counters of absent entries once per pass instead of once per
// run, so re-ingest is refused.
var ErrRunProcessed = errors.New("run already ingested")

// Store provides access to the on-disk snapshot layout: per-run directories
// of fetched markup plus the persisted master table.
//
// Run directories are immutable once written. The store only ever deletes a
// whole run directory, never mutates its contents.
type Store interface {
	// ListRuns returns all run identifiers in chronological order.
	// Directory names that are not valid run IDs are ignored.
	ListRuns() ([]RunID, error)

	// ReadPages loads every markup file of a run, in file-name order.
	ReadPages(run RunID) ([]Page, error)

	// LoadMaster reads the persisted master table. A missing table yields an
	// empty table, not an error. A table with duplicate identities fails
	// with an error wrapping ErrCorruptMaster.
	LoadMaster() (MasterTable, error)

	// SaveMaster persists the master table atomically: either the previous
	// table survives intact or the new one is fully written, never a mix.
	SaveMaster(m MasterTable) error

	// PackRun writes the run directory as an uncompressed tar stream to w.
	PackRun(run RunID, w io.Writer) error

	// UnpackRun recreates a run directory from a tar stream previously
	// produced by PackRun. Fails if the run directory already exists.
	UnpackRun(run RunID, r io.Reader) error

	// DeleteRun removes a run directory and everything in it.
	DeleteRun(run RunID) error
}

// Archive is long-term storage for pruned run directories. Runs are stored
// as single tar blobs keyed by run ID.
type Archive interface {
	// Put stores the archive blob for a run. size is the number of bytes
	// that will be read from r. Storing the same run twice is safe.
	Put(run RunID, r io.Reader, size int64) error

	// Get retrieves the archive blob for a run and writes it to w.
	Get(run RunID, w io.Writer) error

	// Has reports whether an archive blob exists for the run.
	Has(run RunID) (bool, error)

	// ValidateSetup verifies that the archive is accessible.
	ValidateSetup() error
}

// Catalog records ingest operations and which runs have been reconciled.
// Prune safety depends on it: a run may only be deleted once the catalog
// confirms its records were folded into the master table.
type Catalog interface {
	// BeginIngest records the start of an ingest pass over one run and
	// returns the catalog row ID.
	BeginIngest(opID string, run RunID) (int64, error)

	// FinishIngest finalizes an ingest row with its outcome and counts.
	FinishIngest(rowID int64, status string, stats ExtractStats, summary ChangeSummary) error

	// IsProcessed reports whether a run has a successful ingest record.
	IsProcessed(run RunID) (bool, error)

	// ListOperations returns the most recent ingest operations, newest first.
	ListOperations(limit int) ([]*IngestRun, error)

	// LatestSummary returns the change counts of the most recent successful
	// ingest, or nil if none exists.
	LatestSummary() (*IngestRun, error)

	// Close closes the underlying database.
	Close() error
}

// Encryptor handles optional encryption of run archives.
// Encryption uses the public key only. Decryption requires a passphrase to
// unlock the private key, producing a DecryptionContext for the session.
type Encryptor interface {
	// Setup performs one-time key generation.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase and returns a
	// DecryptionContext that can decrypt data for the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if the key material exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the
// duration of a restore session.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
