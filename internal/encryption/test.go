package encryption

import (
	"bytes"
	"fmt"
	"io"

	"listwatch/internal/ingest"
)

// testHeader is prepended to data by TestEncryptor so encrypted output is
// clearly distinct from a plain tar stream while staying deterministic
// and reversible.
var testHeader = []byte("LWENC\x00\x00\x00")

// TestEncryptor is a trivial, deterministic encryptor for tests: it
// prepends a fixed 8-byte header on encrypt and strips it on decrypt.
// No real crypto involved.
type TestEncryptor struct {
	setupCalled bool
}

var _ ingest.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (ingest.DecryptionContext, error) {
	return &TestDecryptionContext{}, nil
}

// IsConfigured reports whether Setup has been called. Tests that want
// plaintext archives simply skip Setup.
func (e *TestEncryptor) IsConfigured() bool {
	return e.setupCalled
}

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ ingest.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
