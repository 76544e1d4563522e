package storage

import (
	"errors"
	"fmt"
)

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

// ErrUnsupportedStore is returned for unknown backends and for sqlite in
// builds without the sqlite tag.
var ErrUnsupportedStore = errors.New("unsupported store backend")

// NewStore returns an uninitialized store of the given kind.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("%w: %q (want %s or %s)", ErrUnsupportedStore, kind, KindMemory, KindSQLite)
	}
}

// CloseIfSupported closes stores holding resources; the memory store has none.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
