// Package store persists small structured records so the round and the
// turn queue survive a process restart.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Record keys.
const (
	RoundKey     = "round"
	SchedulerKey = "scheduler"
)

// Store errors.
var (
	ErrNotFound           = errors.New("record not found")
	ErrUnknownStoreDriver = errors.New("unknown store driver")
)

// Store is a durable key/value record store.
type Store interface {
	// Get returns the payload stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the payload stored under key.
	Put(ctx context.Context, key string, payload []byte) error

	Close() error
}

// Open creates the store named by driver ("sqlite" or "bolt") at path.
func Open(driver, path string) (Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	switch driver {
	case "sqlite":
		return NewSQLiteStore(path)
	case "bolt":
		return NewBoltStore(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStoreDriver, driver)
	}
}
