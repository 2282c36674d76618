package domain

// Phase identifies each processing lifecycle stage of a recording.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseTranscribing       Phase = "transcribing"
	PhaseTranscribingPaused Phase = "transcribingPaused"
	PhaseSummarizing        Phase = "summarizing"
	PhaseSummarizingPaused  Phase = "summarizingPaused"
	PhaseDone               Phase = "done"
	PhaseFailed             Phase = "failed"
)

// Status is the recording lifecycle state with stage-specific payload:
// progress for the active phases, a reason for failures.
type Status struct {
	Phase    Phase   `json:"phase"`
	Progress float64 `json:"progress,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// Idle returns the resting status.
func Idle() Status {
	return Status{Phase: PhaseIdle}
}

// Transcribing returns an active transcription status at the given progress.
func Transcribing(progress float64) Status {
	return Status{Phase: PhaseTranscribing, Progress: clampProgress(progress)}
}

// TranscribingPaused returns a paused transcription status.
func TranscribingPaused(progress float64) Status {
	return Status{Phase: PhaseTranscribingPaused, Progress: clampProgress(progress)}
}

// Summarizing returns an active summarization status at the given progress.
func Summarizing(progress float64) Status {
	return Status{Phase: PhaseSummarizing, Progress: clampProgress(progress)}
}

// SummarizingPaused returns a paused summarization status.
func SummarizingPaused(progress float64) Status {
	return Status{Phase: PhaseSummarizingPaused, Progress: clampProgress(progress)}
}

// Done returns the terminal success status.
func Done() Status {
	return Status{Phase: PhaseDone}
}

// Failed returns a terminal failure status with a human-readable reason.
func Failed(reason string) Status {
	return Status{Phase: PhaseFailed, Reason: reason}
}

// IsProcessing reports whether any transcription or summarization stage,
// paused or not, is associated with this status.
func (s Status) IsProcessing() bool {
	switch s.Phase {
	case PhaseTranscribing, PhaseTranscribingPaused, PhaseSummarizing, PhaseSummarizingPaused:
		return true
	default:
		return false
	}
}

// IsPaused reports whether the status is a paused processing stage.
func (s Status) IsPaused() bool {
	return s.Phase == PhaseTranscribingPaused || s.Phase == PhaseSummarizingPaused
}

// ProgressValue extracts the stage progress, reporting false for stages
// that carry no progress payload.
func (s Status) ProgressValue() (float64, bool) {
	if !s.IsProcessing() {
		return 0, false
	}
	return s.Progress, true
}

// clampProgress bounds progress payloads to [0,1].
func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
