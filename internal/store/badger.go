// Package store persists the recording list and tag vocabulary. Each
// collection is serialized as a whole under a single named slot.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"

	"voice-notes/internal/domain"
)

const (
	keyRecordings = "recordings"
	keyTags       = "tags"
)

// BadgerStore keeps both slots in an embedded badger key-value database.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the database under dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(dir, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

// LoadRecordings reads the recordings slot; a missing key yields an empty list.
func (s *BadgerStore) LoadRecordings() ([]domain.Recording, error) {
	var recordings []domain.Recording
	if err := s.load(keyRecordings, &recordings); err != nil {
		return nil, err
	}
	return recordings, nil
}

// SaveRecordings writes the whole recordings list into its slot.
func (s *BadgerStore) SaveRecordings(recordings []domain.Recording) error {
	return s.save(keyRecordings, recordings)
}

// LoadTags reads the tag vocabulary slot; a missing key yields an empty list.
func (s *BadgerStore) LoadTags() ([]string, error) {
	var tags []string
	if err := s.load(keyTags, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// SaveTags writes the whole tag vocabulary into its slot.
func (s *BadgerStore) SaveTags(tags []string) error {
	return s.save(keyTags, tags)
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) load(key string, out any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) save(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}
