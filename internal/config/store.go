package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"voice-notes/internal/domain"
)

// Store defines persistence operations for app settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// JSONStore persists settings in a single JSON file on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed settings store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads settings from disk or returns defaults when missing.
// Environment overrides are applied after either path.
func (s *JSONStore) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnv(DefaultSettings()), nil
		}

		return domain.Settings{}, err
	}

	var cfg domain.Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.Settings{}, err
	}

	return applyEnv(cfg), nil
}

// Save writes settings as indented JSON and creates parent directories.
func (s *JSONStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o644)
}

// applyEnv overlays VOICENOTES_* environment variables onto settings.
func applyEnv(cfg domain.Settings) domain.Settings {
	if v := os.Getenv("VOICENOTES_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("VOICENOTES_MODEL_PATH"); v != "" {
		cfg.ModelPath = v
	}
	if v := os.Getenv("VOICENOTES_LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv("VOICENOTES_SUMMARY_LENGTH"); v != "" {
		cfg.SummaryLength = domain.SummaryLength(v)
	}
	if v := os.Getenv("VOICENOTES_SUMMARY_PROVIDER"); v != "" {
		cfg.SummaryProvider = v
	}
	if v := os.Getenv("VOICENOTES_SUMMARY_BASE_URL"); v != "" {
		cfg.SummaryBaseURL = v
	}
	return cfg
}

// SummaryAPIKey reads the provider key from the environment only; it is
// never written into the settings file.
func SummaryAPIKey() string {
	return os.Getenv("VOICENOTES_SUMMARY_API_KEY")
}
