package pollstate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SteelMorgan/condorlog/internal/snapshot"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const (
	bucketName = "snapshots"
)

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the state database
func NewBoltStore(dbPath string) (*BoltStore, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		// another watcher holds the lock
		return nil, fmt.Errorf("failed to open boltdb (file may be locked by another process): %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Debug().
		Str("db_path", dbPath).
		Msg("Poll state store initialized")

	return &BoltStore{db: db}, nil
}

// Get returns the stored snapshot, or nil if there is none
func (s *BoltStore) Get(ctx context.Context, key string) (snapshot.Snapshot, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		// the value is only valid inside the transaction
		if val := b.Get([]byte(key)); val != nil {
			data = append([]byte(nil), val...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	snap, err := snapshot.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored snapshot %q: %w", key, err)
	}
	return snap, nil
}

// Put replaces the stored snapshot
func (s *BoltStore) Put(ctx context.Context, key string, snap snapshot.Snapshot) error {
	data, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to put snapshot: %w", err)
	}

	log.Debug().
		Str("key", key).
		Int("bytes", len(data)).
		Msg("Snapshot stored")

	return nil
}

// Delete forgets the stored snapshot
func (s *BoltStore) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// List returns all stored keys, sorted
func (s *BoltStore) List(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.ForEach(func(k, v []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the BoltDB database
func (s *BoltStore) Close() error {
	log.Debug().Msg("Closing poll state store")
	return s.db.Close()
}
