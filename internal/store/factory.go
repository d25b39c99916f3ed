package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend represents the index backend type.
type Backend string

const (
	// BackendSQLite uses SQLite FTS5 (default).
	// Readers in other processes can search while a writer runs.
	BackendSQLite Backend = "sqlite"

	// BackendBleve uses Bleve v2. Single process only.
	BackendBleve Backend = "bleve"
)

// indexBaseName is the file name of the index inside the data directory.
const indexBaseName = "items"

// NewItemIndexWithBackend creates an ItemIndex using the specified backend.
// basePath has no extension; ".db" (SQLite) or ".bleve" (Bleve) is added.
// If basePath is empty, creates an in-memory index for testing.
func NewItemIndexWithBackend(basePath string, backend string) (ItemIndex, error) {
	switch backend {
	case string(BackendSQLite), "":
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteItemIndex(path)

	case string(BackendBleve):
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveItemIndex(path)

	default:
		return nil, fmt.Errorf("unknown index backend: %s (valid options: sqlite, bleve)", backend)
	}
}

// OpenIndex opens the index stored under dataDir.
func OpenIndex(dataDir string, backend string) (ItemIndex, error) {
	return NewItemIndexWithBackend(filepath.Join(dataDir, indexBaseName), backend)
}

// DetectBackend reports which backend an existing index under dataDir uses.
// Returns an empty string if no index exists.
func DetectBackend(dataDir string) Backend {
	basePath := filepath.Join(dataDir, indexBaseName)
	if fileExists(basePath + ".db") {
		return BackendSQLite
	}
	if dirExists(basePath + ".bleve") {
		return BackendBleve
	}
	return ""
}

// IndexPath returns the index file or directory for backend under dataDir.
func IndexPath(dataDir string, backend string) string {
	basePath := filepath.Join(dataDir, indexBaseName)
	if backend == string(BackendBleve) {
		return basePath + ".bleve"
	}
	return basePath + ".db"
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists checks if a directory exists at the given path.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
