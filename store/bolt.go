package store

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const stateBucket = "state"

// BoltStore keeps records in a single bbolt bucket.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens/creates a bbolt database at dbPath.
func NewBoltStore(dbPath string) (*BoltStore, error) {
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(stateBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating state bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(stateBucket)).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		// data is only valid for the life of the transaction
		payload = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *BoltStore) Put(_ context.Context, key string, payload []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(stateBucket)).Put([]byte(key), payload); err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
		return nil
	})
}

func (s *BoltStore) Close() error { return s.db.Close() }
