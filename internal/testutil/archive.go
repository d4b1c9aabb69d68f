package testutil

import (
	"listwatch/internal/archive"
	"listwatch/internal/encryption"
	"listwatch/internal/ingest"
)

// NewTestArchive creates a new in-memory archive for testing.
func NewTestArchive() *archive.MemoryArchive {
	return archive.NewMemoryArchive("test-archive")
}

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() ingest.Encryptor {
	return encryption.NewTestEncryptor()
}
