// Package ports declares the external collaborator contracts consumed by
// the processing core.
package ports

import (
	"context"

	"voice-notes/internal/cancel"
	"voice-notes/internal/domain"
)

// TranscribeRequest describes one transcription invocation.
type TranscribeRequest struct {
	AudioPath  string
	Language   string
	OnProgress func(progress float64)
	Token      cancel.Token
}

// TranscribeResult carries the transcript text and the engine label.
type TranscribeResult struct {
	Text  string
	Model string
}

// Transcriber turns an audio file into text, reporting progress in [0,1].
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (TranscribeResult, error)
}

// SummarizeRequest describes one summarization invocation.
type SummarizeRequest struct {
	Transcript string
	Length     domain.SummaryLength
	Mode       string
	OnProgress func(progress float64)
	Token      cancel.Token
}

// SummarizeResult carries the display summary, the pre-cleanup raw text,
// and which provider produced it.
type SummarizeResult struct {
	Clean    string
	Raw      string
	Provider string
}

// Summarizer condenses a transcript, reporting progress in [0,1].
type Summarizer interface {
	Summarize(ctx context.Context, req SummarizeRequest) (SummarizeResult, error)
}

// RecordingStore persists the full recording list and the tag vocabulary,
// each serialized as a whole under its own slot.
type RecordingStore interface {
	LoadRecordings() ([]domain.Recording, error)
	SaveRecordings(recordings []domain.Recording) error
	LoadTags() ([]string, error)
	SaveTags(tags []string) error
	Close() error
}
