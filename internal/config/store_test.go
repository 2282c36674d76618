package config

import (
	"os"
	"path/filepath"
	"testing"

	"voice-notes/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.Language != "auto" {
		t.Fatalf("language = %q, want auto", cfg.Language)
	}
	if cfg.DataDir == "" {
		t.Fatal("expected non-empty data dir")
	}
	if cfg.SummaryLength != domain.SummaryLengthMedium {
		t.Fatalf("summary length = %q, want medium", cfg.SummaryLength)
	}
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Language != "auto" {
		t.Fatalf("language = %q, want auto", got.Language)
	}
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewJSONStore(path)
	want := domain.Settings{
		DataDir:         "/data",
		ModelPath:       "/models/base.bin",
		Language:        "en",
		SummaryLength:   domain.SummaryLengthShort,
		SummaryProvider: "openai",
		SummaryBaseURL:  "https://api.example.com/v1",
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}

// TestEnvOverrides checks environment variables win over file values.
func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewJSONStore(path)
	if err := store.Save(domain.Settings{DataDir: "/file", Language: "en"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	t.Setenv("VOICENOTES_DATA_DIR", "/env")
	t.Setenv("VOICENOTES_SUMMARY_LENGTH", "long")

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.DataDir != "/env" {
		t.Fatalf("dataDir = %q, want /env", got.DataDir)
	}
	if got.SummaryLength != domain.SummaryLengthLong {
		t.Fatalf("summary length = %q, want long", got.SummaryLength)
	}
	if got.Language != "en" {
		t.Fatalf("language = %q, want en (file value kept)", got.Language)
	}
}
