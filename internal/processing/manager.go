package processing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"voice-notes/internal/cancel"
	"voice-notes/internal/domain"
	"voice-notes/internal/ports"
)

// operationState pairs an operation snapshot with its cancellation flag
// and any callers waiting for a terminal transition.
type operationState struct {
	op      Operation
	flag    *cancel.Flag
	waiters []chan Operation
}

// Manager owns the set of active operations. It starts work against the
// injected services, applies progress and terminal transitions, and
// notifies subscribers after every operation change. At most one
// operation of a given kind should run per recording; the orchestrator
// enforces that, the manager only does bookkeeping.
type Manager struct {
	transcriber ports.Transcriber
	summarizer  ports.Summarizer

	mu        sync.Mutex
	ops       map[string]*operationState
	listeners []func(Operation)
}

// NewManager creates a manager with no active operations.
func NewManager(transcriber ports.Transcriber, summarizer ports.Summarizer) *Manager {
	return &Manager{
		transcriber: transcriber,
		summarizer:  summarizer,
		ops:         make(map[string]*operationState),
	}
}

// Subscribe registers a listener invoked with an operation snapshot after
// every change. Listeners run outside the manager lock.
func (m *Manager) Subscribe(fn func(Operation)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Operations returns a snapshot of all tracked operations by id.
func (m *Manager) Operations() map[string]Operation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Operation, len(m.ops))
	for id, st := range m.ops {
		out[id] = st.op
	}
	return out
}

// OperationsForRecording returns snapshots of operations targeting one
// recording.
func (m *Manager) OperationsForRecording(recordingID string) []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Operation
	for _, st := range m.ops {
		if st.op.RecordingID == recordingID {
			out = append(out, st.op)
		}
	}
	return out
}

// StartTranscription creates a running transcription operation and begins
// the service call asynchronously. Returns the operation id.
func (m *Manager) StartTranscription(recordingID, audioPath, language string) string {
	op, flag := m.track(recordingID, KindTranscription)

	go func() {
		result, err := m.transcriber.Transcribe(context.Background(), ports.TranscribeRequest{
			AudioPath:  audioPath,
			Language:   language,
			OnProgress: func(p float64) { m.progress(op.ID, p) },
			Token:      flag.Token(),
		})
		switch {
		case flag.Cancelled():
			// Cancel() already applied the terminal transition.
		case err != nil:
			m.fail(op.ID, err.Error())
		default:
			m.complete(op.ID, Result{
				Transcript:         result.Text,
				TranscriptionModel: result.Model,
			})
		}
	}()

	return op.ID
}

// StartSummarization creates a running summarization operation and begins
// the service call asynchronously. Returns the operation id.
func (m *Manager) StartSummarization(recordingID, transcript string, length domain.SummaryLength, mode string) string {
	op, flag := m.track(recordingID, KindSummarization)

	go func() {
		result, err := m.summarizer.Summarize(context.Background(), ports.SummarizeRequest{
			Transcript: transcript,
			Length:     length,
			Mode:       mode,
			OnProgress: func(p float64) { m.progress(op.ID, p) },
			Token:      flag.Token(),
		})
		switch {
		case flag.Cancelled():
		case err != nil:
			m.fail(op.ID, err.Error())
		default:
			m.complete(op.ID, Result{
				Summary:         result.Clean,
				RawSummary:      result.Raw,
				SummaryProvider: result.Provider,
			})
		}
	}()

	return op.ID
}

// Cancel signals an operation's token and marks it cancelled. No-op when
// the operation is unknown or already terminal.
func (m *Manager) Cancel(opID string) bool {
	m.mu.Lock()
	st, ok := m.ops[opID]
	if !ok || st.op.Terminal() {
		m.mu.Unlock()
		return false
	}
	st.flag.Cancel()
	st.op.Phase = OpCancelled
	snapshot := st.op
	waiters := drainWaiters(st)
	m.mu.Unlock()

	m.notify(snapshot)
	fulfill(waiters, snapshot)
	return true
}

// CleanupCompleted drops terminal operations from the active set. Safe to
// call repeatedly; reports how many operations were removed. Each removal
// is announced with the Removed flag set, so subscribers tracking the
// active set see it shrink without mistaking the announcement for a new
// terminal transition.
func (m *Manager) CleanupCompleted() int {
	m.mu.Lock()
	var dropped []Operation
	for id, st := range m.ops {
		if st.op.Terminal() {
			delete(m.ops, id)
			snapshot := st.op
			snapshot.Removed = true
			dropped = append(dropped, snapshot)
		}
	}
	m.mu.Unlock()

	for _, op := range dropped {
		m.notify(op)
	}
	return len(dropped)
}

// Wait blocks until the operation reaches a terminal state and returns
// its final snapshot. Returns false for unknown operation ids.
func (m *Manager) Wait(opID string) (Operation, bool) {
	m.mu.Lock()
	st, ok := m.ops[opID]
	if !ok {
		m.mu.Unlock()
		return Operation{}, false
	}
	if st.op.Terminal() {
		op := st.op
		m.mu.Unlock()
		return op, true
	}
	ch := make(chan Operation, 1)
	st.waiters = append(st.waiters, ch)
	m.mu.Unlock()

	return <-ch, true
}

// track registers a new running operation and announces it.
func (m *Manager) track(recordingID string, kind Kind) (Operation, *cancel.Flag) {
	op := Operation{
		ID:          uuid.NewString(),
		RecordingID: recordingID,
		Kind:        kind,
		Phase:       OpRunning,
		StartedAt:   time.Now().UTC(),
	}
	flag := cancel.NewFlag()

	m.mu.Lock()
	m.ops[op.ID] = &operationState{op: op, flag: flag}
	m.mu.Unlock()

	m.notify(op)
	return op, flag
}

// progress applies a progress tick. Ticks arriving after the operation
// left the running phase are dropped, so a cancelled recording can never
// be resurrected by a late callback.
func (m *Manager) progress(opID string, p float64) {
	m.mu.Lock()
	st, ok := m.ops[opID]
	if !ok || st.op.Phase != OpRunning {
		m.mu.Unlock()
		return
	}
	st.op.Progress = clamp(p)
	snapshot := st.op
	m.mu.Unlock()

	m.notify(snapshot)
}

// complete transitions a running operation to completed with its result.
func (m *Manager) complete(opID string, result Result) {
	m.terminal(opID, func(op *Operation) {
		op.Phase = OpCompleted
		op.Progress = 1
		op.Result = result
	})
}

// fail transitions a running operation to failed with a reason.
func (m *Manager) fail(opID string, reason string) {
	m.terminal(opID, func(op *Operation) {
		op.Phase = OpFailed
		op.Error = reason
	})
}

// terminal applies a terminal mutation if the operation is still running,
// notifies subscribers, then releases waiters. Waiters resume only after
// subscribers saw the terminal snapshot.
func (m *Manager) terminal(opID string, mutate func(*Operation)) {
	m.mu.Lock()
	st, ok := m.ops[opID]
	if !ok || st.op.Terminal() {
		m.mu.Unlock()
		return
	}
	mutate(&st.op)
	snapshot := st.op
	waiters := drainWaiters(st)
	m.mu.Unlock()

	m.notify(snapshot)
	fulfill(waiters, snapshot)
}

// notify delivers a snapshot to all listeners outside the lock.
func (m *Manager) notify(op Operation) {
	m.mu.Lock()
	listeners := make([]func(Operation), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(op)
	}
}

// drainWaiters detaches waiter channels. Caller holds the lock.
func drainWaiters(st *operationState) []chan Operation {
	waiters := st.waiters
	st.waiters = nil
	return waiters
}

// fulfill delivers the terminal snapshot to detached waiters.
func fulfill(waiters []chan Operation, op Operation) {
	for _, ch := range waiters {
		ch <- op
	}
}

// clamp bounds progress to [0,1].
func clamp(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
