package archive

import (
	"fmt"

	"listwatch/internal/config"
	"listwatch/internal/ingest"
)

// NewArchiveFromConfig creates an Archive implementation based on the
// archive config type. Type "none" yields a nil archive: pruned runs are
// deleted without being archived.
func NewArchiveFromConfig(cfg config.ArchiveConfig) (ingest.Archive, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return NewMemoryArchive(cfg.Name), nil
	case "s3":
		return NewS3Archive(cfg)
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem archive requires fs_root to be set")
		}
		return NewFileSystemArchive(cfg.Name, cfg.FSRoot)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
