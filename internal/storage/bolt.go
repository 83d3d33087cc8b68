// Package storage provides the durable implementations of the
// precedent backend and decision ledger interfaces.
package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/ethicore/arbiter/internal/types"
)

var precedentBucket = []byte("precedents")

// BoltBackend is a durable precedent backend on bbolt. Keys are the
// bucket's monotonic sequence, so iteration order is insertion order
// and eviction can drop the oldest cases first.
type BoltBackend struct {
	db     *bolt.DB
	logger *logrus.Logger
}

// NewBoltBackend opens (creating if needed) a bbolt database at path.
func NewBoltBackend(path string, logger *logrus.Logger) (*BoltBackend, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create precedent directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open precedent database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(precedentBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init precedent bucket: %w", err)
	}
	return &BoltBackend{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}

// AddCase appends a case under the next sequence key.
func (b *BoltBackend) AddCase(_ context.Context, c types.PrecedentCase) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal case: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(precedentBucket)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		return bucket.Put(seqKey(seq), raw)
	})
}

// Query returns all cases in insertion order.
func (b *BoltBackend) Query(_ context.Context) ([]types.PrecedentCase, error) {
	var cases []types.PrecedentCase
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(precedentBucket).ForEach(func(k, v []byte) error {
			var c types.PrecedentCase
			if err := json.Unmarshal(v, &c); err != nil {
				// A corrupt record is skipped, not fatal.
				b.logger.WithField("key", fmt.Sprintf("%x", k)).Warn("skipping unreadable precedent case")
				return nil
			}
			cases = append(cases, c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("query precedent cases: %w", err)
	}
	return cases, nil
}

// Len returns the stored case count.
func (b *BoltBackend) Len(_ context.Context) (int, error) {
	n := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(precedentBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Evict deletes the oldest cases until at most keep remain.
func (b *BoltBackend) Evict(_ context.Context, keep int) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(precedentBucket)
		excess := bucket.Stats().KeyN - keep
		cur := bucket.Cursor()
		for k, _ := cur.First(); k != nil && excess > 0; k, _ = cur.Next() {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
