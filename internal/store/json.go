package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"voice-notes/internal/domain"
)

// JSONStore keeps each slot in its own JSON file under a directory.
// Writes go through a temp file and rename so readers never observe a
// partially written list.
type JSONStore struct {
	dir string
}

// NewJSONStore creates a file-backed store rooted at dir.
func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{dir: dir}
}

// LoadRecordings reads recordings.json; a missing file yields an empty list.
func (s *JSONStore) LoadRecordings() ([]domain.Recording, error) {
	var recordings []domain.Recording
	if err := s.load(keyRecordings, &recordings); err != nil {
		return nil, err
	}
	return recordings, nil
}

// SaveRecordings writes the whole recordings list atomically.
func (s *JSONStore) SaveRecordings(recordings []domain.Recording) error {
	return s.save(keyRecordings, recordings)
}

// LoadTags reads tags.json; a missing file yields an empty list.
func (s *JSONStore) LoadTags() ([]string, error) {
	var tags []string
	if err := s.load(keyTags, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// SaveTags writes the whole tag vocabulary atomically.
func (s *JSONStore) SaveTags(tags []string) error {
	return s.save(keyTags, tags)
}

// Close is a no-op for the file-backed store.
func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) slotPath(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *JSONStore) load(key string, out any) error {
	data, err := os.ReadFile(s.slotPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", key, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *JSONStore) save(key string, value any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	tmp := s.slotPath(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, s.slotPath(key)); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}
