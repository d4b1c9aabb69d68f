package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		DataDir: "/home/user/.local/share/listwatch/data",
		LogDir:  "/home/user/.local/share/listwatch/log",
		Extract: ExtractConfig{
			ItemSelector: "li.ad",
			IDAttr:       "data-ad-id",
		},
		Removal: RemovalConfig{
			MissedRunsBeforeRemoved: 2,
			MaxAgeDays:              30,
		},
		Retention: RetentionConfig{
			RunsToKeep: 5,
			MaxAgeDays: 90,
		},
		Report: ReportConfig{
			OutputDir:      "/home/user/.local/share/listwatch/reports",
			IncludeRemoved: true,
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/listwatch/data"},
		Archive: ArchiveConfig{
			Type:   "filesystem",
			Name:   "local",
			FSRoot: "/backup/listwatch",
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  "/home/user/.local/share/listwatch/keys/listwatch.pub",
			PrivateKeyPath: "/home/user/.local/share/listwatch/keys/listwatch.key",
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.DataDir != original.DataDir {
		t.Errorf("DataDir = %q, want %q", got.DataDir, original.DataDir)
	}
	if got.Extract.ItemSelector != "li.ad" {
		t.Errorf("Extract.ItemSelector = %q, want %q", got.Extract.ItemSelector, "li.ad")
	}
	if got.Removal.MissedRunsBeforeRemoved != 2 {
		t.Errorf("Removal.MissedRunsBeforeRemoved = %d, want 2", got.Removal.MissedRunsBeforeRemoved)
	}
	if got.Removal.MaxAgeDays != 30 {
		t.Errorf("Removal.MaxAgeDays = %d, want 30", got.Removal.MaxAgeDays)
	}
	if got.Retention.RunsToKeep != 5 {
		t.Errorf("Retention.RunsToKeep = %d, want 5", got.Retention.RunsToKeep)
	}
	if !got.Report.IncludeRemoved {
		t.Error("Report.IncludeRemoved = false, want true")
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "sqlite")
	}
	if got.Archive.Type != "filesystem" || got.Archive.FSRoot != "/backup/listwatch" {
		t.Errorf("Archive = %+v, want filesystem at /backup/listwatch", got.Archive)
	}
	if got.Encryption.PublicKeyPath != original.Encryption.PublicKeyPath {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", got.Encryption.PublicKeyPath, original.Encryption.PublicKeyPath)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/listwatch")

	if cfg.DataDir != filepath.Join("/data/listwatch", "data") {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Removal.MissedRunsBeforeRemoved != 3 {
		t.Errorf("Removal.MissedRunsBeforeRemoved = %d, want 3", cfg.Removal.MissedRunsBeforeRemoved)
	}
	if cfg.Retention.RunsToKeep != 10 {
		t.Errorf("Retention.RunsToKeep = %d, want 10", cfg.Retention.RunsToKeep)
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", cfg.Database.Type, "sqlite")
	}
	if cfg.Archive.Type != "none" {
		t.Errorf("Archive.Type = %q, want %q", cfg.Archive.Type, "none")
	}
	if cfg.Extract.ItemSelector != "" {
		t.Errorf("Extract.ItemSelector = %q, want empty (use built-in default)", cfg.Extract.ItemSelector)
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "listwatch.toml")
	cfg := NewConfig("/data/listwatch")

	if err := Init(path, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	got, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if got.DataDir != cfg.DataDir {
		t.Errorf("DataDir = %q, want %q", got.DataDir, cfg.DataDir)
	}

	// A second init must not clobber the existing file.
	if err := Init(path, cfg); err == nil {
		t.Error("Init() error = nil over existing config, want error")
	}
}

func TestReadFromFile_Missing(t *testing.T) {
	if _, err := ReadFromFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("ReadFromFile() error = nil for missing file, want error")
	}
}

func TestRead_InvalidTOML(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(bytes.NewReader([]byte("data_dir = [unclosed"))); err == nil {
		t.Error("Read() error = nil for invalid TOML, want error")
	}
}

func TestReadFromFile_PartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listwatch.toml")
	content := "data_dir = \"/tmp/lw\"\n\n[removal]\nmissed_runs_before_removed = 1\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	got, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if got.DataDir != "/tmp/lw" {
		t.Errorf("DataDir = %q, want %q", got.DataDir, "/tmp/lw")
	}
	if got.Removal.MissedRunsBeforeRemoved != 1 {
		t.Errorf("MissedRunsBeforeRemoved = %d, want 1", got.Removal.MissedRunsBeforeRemoved)
	}
	if got.Archive.Type != "" {
		t.Errorf("Archive.Type = %q, want empty for omitted section", got.Archive.Type)
	}
}
