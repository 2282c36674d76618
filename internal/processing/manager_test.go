package processing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voice-notes/internal/domain"
	"voice-notes/internal/ports"
)

// scriptedTranscriber replays progress ticks then a final outcome, with
// optional gating so tests can hold the call in flight.
type scriptedTranscriber struct {
	progress []float64
	text     string
	model    string
	err      error
	gate     chan struct{} // when set, blocks before returning
	calls    int
	mu       sync.Mutex
}

func (s *scriptedTranscriber) Transcribe(ctx context.Context, req ports.TranscribeRequest) (ports.TranscribeResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	for _, p := range s.progress {
		if req.OnProgress != nil {
			req.OnProgress(p)
		}
	}
	if s.gate != nil {
		<-s.gate
	}
	if req.Token.Cancelled() {
		return ports.TranscribeResult{}, errors.New("cancelled")
	}
	if s.err != nil {
		return ports.TranscribeResult{}, s.err
	}
	return ports.TranscribeResult{Text: s.text, Model: s.model}, nil
}

// scriptedSummarizer mirrors scriptedTranscriber for summarization.
type scriptedSummarizer struct {
	clean    string
	raw      string
	provider string
	err      error
}

func (s *scriptedSummarizer) Summarize(ctx context.Context, req ports.SummarizeRequest) (ports.SummarizeResult, error) {
	if req.OnProgress != nil {
		req.OnProgress(0.5)
	}
	if s.err != nil {
		return ports.SummarizeResult{}, s.err
	}
	return ports.SummarizeResult{Clean: s.clean, Raw: s.raw, Provider: s.provider}, nil
}

// waitFor polls a condition until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// TestStartTranscriptionCompletes checks the running→completed flow and
// result payload.
func TestStartTranscriptionCompletes(t *testing.T) {
	tr := &scriptedTranscriber{progress: []float64{0.2, 0.8}, text: "hello world", model: "whisper.cpp/base.bin"}
	m := NewManager(tr, &scriptedSummarizer{})

	var mu sync.Mutex
	var seen []Operation
	m.Subscribe(func(op Operation) {
		mu.Lock()
		seen = append(seen, op)
		mu.Unlock()
	})

	opID := m.StartTranscription("rec-1", "/data/rec-1.m4a", "en")
	op, ok := m.Wait(opID)
	if !ok {
		t.Fatal("unknown operation")
	}

	if op.Phase != OpCompleted {
		t.Fatalf("phase = %s, want completed", op.Phase)
	}
	if op.Result.Transcript != "hello world" || op.Result.TranscriptionModel != "whisper.cpp/base.bin" {
		t.Fatalf("result = %+v", op.Result)
	}
	if op.RecordingID != "rec-1" || op.Kind != KindTranscription {
		t.Fatalf("operation = %+v", op)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 4 { // start + two ticks + terminal
		t.Fatalf("notifications = %d, want at least 4", len(seen))
	}
	last := seen[len(seen)-1]
	if last.Phase != OpCompleted || last.Progress != 1 {
		t.Fatalf("last notification = %+v", last)
	}
}

// TestStartSummarizationFails checks service failure maps to failed state.
func TestStartSummarizationFails(t *testing.T) {
	m := NewManager(&scriptedTranscriber{}, &scriptedSummarizer{err: errors.New("provider exploded")})

	opID := m.StartSummarization("rec-1", "transcript", domain.SummaryLengthMedium, "")
	op, ok := m.Wait(opID)
	if !ok {
		t.Fatal("unknown operation")
	}

	if op.Phase != OpFailed {
		t.Fatalf("phase = %s, want failed", op.Phase)
	}
	if op.Error != "provider exploded" {
		t.Fatalf("error = %q", op.Error)
	}
}

// TestCancelMarksOperationCancelled checks cancel of in-flight work and
// that late progress ticks are dropped afterwards.
func TestCancelMarksOperationCancelled(t *testing.T) {
	gate := make(chan struct{})
	tr := &scriptedTranscriber{progress: []float64{0.3}, text: "x", gate: gate}
	m := NewManager(tr, &scriptedSummarizer{})

	opID := m.StartTranscription("rec-1", "/data/a.m4a", "")
	waitFor(t, "first progress tick", func() bool {
		return m.Operations()[opID].Progress == 0.3
	})

	if !m.Cancel(opID) {
		t.Fatal("cancel returned false for running operation")
	}
	op := m.Operations()[opID]
	if op.Phase != OpCancelled {
		t.Fatalf("phase = %s, want cancelled", op.Phase)
	}

	// A tick from the still-unwinding service must not change anything.
	m.progress(opID, 0.9)
	if got := m.Operations()[opID]; got.Progress != 0.3 || got.Phase != OpCancelled {
		t.Fatalf("late tick applied: %+v", got)
	}

	close(gate)
	// Second cancel on a terminal operation is a no-op.
	if m.Cancel(opID) {
		t.Fatal("cancel of terminal operation should report false")
	}
}

// TestCancelUnknownOperation checks the unknown-id no-op.
func TestCancelUnknownOperation(t *testing.T) {
	m := NewManager(&scriptedTranscriber{}, &scriptedSummarizer{})
	if m.Cancel("missing") {
		t.Fatal("cancel of unknown operation should report false")
	}
}

// TestCleanupCompletedIsIdempotent checks repeated cleanup calls.
func TestCleanupCompletedIsIdempotent(t *testing.T) {
	tr := &scriptedTranscriber{text: "done"}
	m := NewManager(tr, &scriptedSummarizer{})

	opID := m.StartTranscription("rec-1", "/a.m4a", "")
	if _, ok := m.Wait(opID); !ok {
		t.Fatal("unknown operation")
	}

	if removed := m.CleanupCompleted(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if removed := m.CleanupCompleted(); removed != 0 {
		t.Fatalf("second cleanup removed = %d, want 0", removed)
	}
	if len(m.Operations()) != 0 {
		t.Fatalf("operations = %d, want 0", len(m.Operations()))
	}
}

// TestCleanupAnnouncesRemovals checks subscribers learn the active set
// shrank, with the removal flagged so it cannot be mistaken for a new
// terminal transition.
func TestCleanupAnnouncesRemovals(t *testing.T) {
	tr := &scriptedTranscriber{text: "done"}
	m := NewManager(tr, &scriptedSummarizer{})

	var mu sync.Mutex
	var seen []Operation
	m.Subscribe(func(op Operation) {
		mu.Lock()
		seen = append(seen, op)
		mu.Unlock()
	})

	opID := m.StartTranscription("rec-1", "/a.m4a", "")
	if _, ok := m.Wait(opID); !ok {
		t.Fatal("unknown operation")
	}

	mu.Lock()
	before := len(seen)
	mu.Unlock()

	if removed := m.CleanupCompleted(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != before+1 {
		t.Fatalf("notifications = %d, want %d", len(seen), before+1)
	}
	last := seen[len(seen)-1]
	if !last.Removed || last.ID != opID || last.Phase != OpCompleted {
		t.Fatalf("removal announcement = %+v", last)
	}
	for _, op := range seen[:before] {
		if op.Removed {
			t.Fatalf("pre-cleanup notification carries Removed: %+v", op)
		}
	}
}

// TestCleanupKeepsRunning checks active operations survive cleanup.
func TestCleanupKeepsRunning(t *testing.T) {
	gate := make(chan struct{})
	tr := &scriptedTranscriber{text: "x", gate: gate}
	m := NewManager(tr, &scriptedSummarizer{})

	opID := m.StartTranscription("rec-1", "/a.m4a", "")
	if removed := m.CleanupCompleted(); removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if _, ok := m.Operations()[opID]; !ok {
		t.Fatal("running operation was removed")
	}

	close(gate)
	if _, ok := m.Wait(opID); !ok {
		t.Fatal("unknown operation")
	}
}

// TestOperationsForRecording checks filtering by target recording.
func TestOperationsForRecording(t *testing.T) {
	gate := make(chan struct{})
	tr := &scriptedTranscriber{text: "x", gate: gate}
	m := NewManager(tr, &scriptedSummarizer{})

	a := m.StartTranscription("rec-a", "/a.m4a", "")
	m.StartTranscription("rec-b", "/b.m4a", "")

	ops := m.OperationsForRecording("rec-a")
	if len(ops) != 1 || ops[0].ID != a {
		t.Fatalf("ops = %+v", ops)
	}

	close(gate)
}

// TestWaitUnknownOperation checks the miss path.
func TestWaitUnknownOperation(t *testing.T) {
	m := NewManager(&scriptedTranscriber{}, &scriptedSummarizer{})
	if _, ok := m.Wait("missing"); ok {
		t.Fatal("expected miss for unknown operation")
	}
}
