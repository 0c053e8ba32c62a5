package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

// Open returns the database selected by backend, rooted at dataDir.
func Open(backend, dataDir string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendMemory:
		return NewMemDB(), nil
	case BackendLevelDB, "":
		return NewLevelDB(filepath.Join(dataDir, "market.ldb"))
	case BackendBolt:
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, err
		}
		return NewBoltDB(filepath.Join(dataDir, "market.bolt"), nil)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
