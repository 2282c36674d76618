// Package processing tracks in-flight transcription and summarization
// work as operations, independent of the recordings they target.
package processing

import "time"

// Kind classifies the unit of work an operation performs.
type Kind string

const (
	KindTranscription Kind = "transcription"
	KindSummarization Kind = "summarization"
)

// OpPhase is the operation lifecycle state.
type OpPhase string

const (
	OpRunning   OpPhase = "running"
	OpCompleted OpPhase = "completed"
	OpFailed    OpPhase = "failed"
	OpCancelled OpPhase = "cancelled"
)

// Result carries the payload of a completed operation: transcript fields
// for transcription, summary fields for summarization.
type Result struct {
	Transcript         string `json:"transcript,omitempty"`
	TranscriptionModel string `json:"transcriptionModel,omitempty"`
	Summary            string `json:"summary,omitempty"`
	RawSummary         string `json:"rawSummary,omitempty"`
	SummaryProvider    string `json:"summaryProvider,omitempty"`
}

// Operation is a snapshot of one unit of work for one recording.
// Removed is set only on the snapshot announced when cleanup drops the
// operation from the active set; the terminal transition itself is
// announced exactly once, without it.
type Operation struct {
	ID          string    `json:"id"`
	RecordingID string    `json:"recordingId"`
	Kind        Kind      `json:"kind"`
	Phase       OpPhase   `json:"phase"`
	Progress    float64   `json:"progress"`
	Result      Result    `json:"result"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	Removed     bool      `json:"removed,omitempty"`
}

// Terminal reports whether the operation reached a final state.
func (o Operation) Terminal() bool {
	switch o.Phase {
	case OpCompleted, OpFailed, OpCancelled:
		return true
	default:
		return false
	}
}
