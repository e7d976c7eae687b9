// Package badger implements interfaces.GraphStore on an embedded Badger
// database via badgerhold, grounded on the teacher's
// internal/storage/badger package (connection.go, job_storage.go). The
// teacher's BadgerDB wrapper and Store()/Close() shape carries over
// directly; ClaimNextJob is the one place this package diverges from the
// teacher's plain read-modify-write calls — see store.go.
package badger

import (
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerDB owns the on-disk database handle.
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// Open creates the data directory if needed and opens the database at path.
func Open(path string, logger arbor.ILogger) (*BadgerDB, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create graph store directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}

	logger.Debug().Str("path", path).Msg("graph store opened")

	return &BadgerDB{store: store, logger: logger}, nil
}

// Store returns the underlying badgerhold store.
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	if b.store == nil {
		return nil
	}
	return b.store.Close()
}
