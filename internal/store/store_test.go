package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"voice-notes/internal/domain"
	"voice-notes/internal/ports"
)

// sampleRecordings builds a list covering optional fields and tags.
func sampleRecordings() []domain.Recording {
	transcriptAt := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	return []domain.Recording{
		{
			ID:                  "r1",
			AudioFile:           "r1.m4a",
			CreatedAt:           time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC),
			Duration:            12.5,
			Transcript:          "hello world",
			Summary:             "Hello.",
			RawSummary:          "Hello. ",
			Status:              domain.Done(),
			Language:            "en",
			TranscriptUpdatedAt: &transcriptAt,
			Title:               "Hello.",
			Tags:                domain.NormalizeTags([]string{"Work", "work", " ideas"}),
			TranscriptionModel:  "whisper.cpp/base.bin",
		},
		{
			ID:        "r2",
			AudioFile: "r2.m4a",
			CreatedAt: time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC),
			Status:    domain.Failed("audio file is empty"),
		},
	}
}

// roundTrip exercises the full store contract against one back-end.
func roundTrip(t *testing.T, s ports.RecordingStore) {
	t.Helper()

	got, err := s.LoadRecordings()
	if err != nil {
		t.Fatalf("initial load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("initial recordings = %d, want 0", len(got))
	}

	want := sampleRecordings()
	if err := s.SaveRecordings(want); err != nil {
		t.Fatalf("save recordings: %v", err)
	}

	got, err = s.LoadRecordings()
	if err != nil {
		t.Fatalf("load recordings: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("recordings = %d, want %d", len(got), len(want))
	}
	if got[0].ID != "r1" || got[0].Summary != "Hello." || got[0].Status.Phase != domain.PhaseDone {
		t.Fatalf("recording[0] = %+v", got[0])
	}
	if len(got[0].Tags) != 2 || got[0].Tags[0] != "Work" || got[0].Tags[1] != "ideas" {
		t.Fatalf("tags = %v", got[0].Tags)
	}
	if got[0].TranscriptUpdatedAt == nil || !got[0].TranscriptUpdatedAt.Equal(*want[0].TranscriptUpdatedAt) {
		t.Fatalf("transcriptUpdatedAt = %v", got[0].TranscriptUpdatedAt)
	}
	if got[1].Status.Phase != domain.PhaseFailed || got[1].Status.Reason != "audio file is empty" {
		t.Fatalf("recording[1].status = %+v", got[1].Status)
	}

	if err := s.SaveTags([]string{"Work", "ideas"}); err != nil {
		t.Fatalf("save tags: %v", err)
	}
	tags, err := s.LoadTags()
	if err != nil {
		t.Fatalf("load tags: %v", err)
	}
	if len(tags) != 2 || tags[0] != "Work" {
		t.Fatalf("tags = %v", tags)
	}
}

// TestJSONStoreRoundTrip checks persisted list fidelity on the file back-end.
func TestJSONStoreRoundTrip(t *testing.T) {
	roundTrip(t, NewJSONStore(t.TempDir()))
}

// TestBadgerStoreRoundTrip checks persisted list fidelity on badger.
func TestBadgerStoreRoundTrip(t *testing.T) {
	s, err := NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	roundTrip(t, s)
}

// TestJSONStoreCorruptFile checks decode failures surface as errors.
func TestJSONStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "recordings.json"), []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := NewJSONStore(dir)
	if _, err := s.LoadRecordings(); err == nil {
		t.Fatal("expected decode error")
	}
}
