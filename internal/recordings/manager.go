// Package recordings orchestrates the recording collection: it owns the
// persisted list, drives transcription and summarization through the
// processing manager, and reconciles operation outcomes back into
// recording state.
package recordings

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"voice-notes/internal/cancel"
	"voice-notes/internal/domain"
	"voice-notes/internal/ports"
	"voice-notes/internal/processing"
	"voice-notes/internal/tags"
)

var (
	// ErrNotFound is returned when no recording carries the given id.
	ErrNotFound = errors.New("recording not found")
	// ErrNoTranscript is returned when summarization is requested for a
	// recording without transcript text.
	ErrNoTranscript = errors.New("recording has no transcript to summarize")
	// ErrTooManyTags is returned when a tag change would exceed the
	// per-recording cap.
	ErrTooManyTags = errors.New("recording has too many tags")
	// ErrBulkActive is returned when a bulk regeneration is already running.
	ErrBulkActive = errors.New("bulk regeneration already in progress")
)

// Update carries optional field changes for one recording. Nil fields
// are left untouched.
type Update struct {
	Title              *string        `json:"title,omitempty"`
	Transcript         *string        `json:"transcript,omitempty"`
	Summary            *string        `json:"summary,omitempty"`
	RawSummary         *string        `json:"rawSummary,omitempty"`
	Language           *string        `json:"language,omitempty"`
	TranscriptionModel *string        `json:"transcriptionModel,omitempty"`
	Status             *domain.Status `json:"status,omitempty"`
}

// Manager owns the recording collection and its lifecycle. All state
// transitions flow through here: it starts work on the processing
// manager, folds operation outcomes back into recordings, and persists
// after every mutation.
//
// Lock ordering: Manager.mu may be held while calling read-only
// processing methods, but never while starting or cancelling
// operations, since those notify subscribers synchronously.
type Manager struct {
	store      ports.RecordingStore
	processing *processing.Manager
	vocab      *tags.Vocabulary
	settings   func() domain.Settings
	logger     *slog.Logger
	events     *EventBus

	mu         sync.Mutex
	recordings []domain.Recording
	listeners  []func(Event)

	bulk      BulkSession
	bulkFlag  *cancel.Flag
	bulkRecID string
}

// NewManager loads persisted recordings and tags, wires reconciliation
// callbacks, and returns a ready manager. A store load failure is
// logged and treated as an empty library.
func NewManager(store ports.RecordingStore, proc *processing.Manager, vocab *tags.Vocabulary, settings func() domain.Settings, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		store:      store,
		processing: proc,
		vocab:      vocab,
		settings:   settings,
		logger:     logger,
		events:     NewEventBus(0),
	}

	recs, err := store.LoadRecordings()
	if err != nil {
		logger.Warn("loading recordings failed, starting with empty library", "error", err)
		recs = nil
	}
	for i := range recs {
		recs[i].Tags = domain.NormalizeTags(recs[i].Tags)
	}
	m.recordings = recs

	names, err := store.LoadTags()
	if err != nil {
		logger.Warn("loading tag vocabulary failed", "error", err)
	}
	vocab.Add(names...)

	proc.Subscribe(m.handleOperation)
	vocab.Subscribe(m.handleTagEvent)

	return m
}

// Subscribe registers a callback invoked for every published event.
// Callbacks run outside the manager lock.
func (m *Manager) Subscribe(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// EventsSince returns buffered events with sequence greater than seq.
func (m *Manager) EventsSince(seq int64) []Event {
	return m.events.Since(seq)
}

// Recordings returns a snapshot of the collection, most recent first.
func (m *Manager) Recordings() []domain.Recording {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshotRecordings(m.recordings)
}

// Recording returns one recording by id.
func (m *Manager) Recording(id string) (domain.Recording, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(id)
	if idx < 0 {
		return domain.Recording{}, false
	}
	rec := m.recordings[idx]
	rec.Tags = append([]string(nil), rec.Tags...)
	return rec, true
}

// RecordingsWithTag returns recordings carrying the tag, most recent first.
func (m *Manager) RecordingsWithTag(tag string) []domain.Recording {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Recording
	for _, rec := range m.recordings {
		if rec.HasTag(tag) {
			rec.Tags = append([]string(nil), rec.Tags...)
			out = append(out, rec)
		}
	}
	return out
}

// AddRecording inserts the recording at the head of the collection,
// persists it, and starts transcription.
func (m *Manager) AddRecording(rec domain.Recording) domain.Recording {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Status = domain.Idle()
	rec.Tags = domain.NormalizeTags(rec.Tags)
	if len(rec.Tags) > domain.MaxTagsPerRecording {
		rec.Tags = rec.Tags[:domain.MaxTagsPerRecording]
	}

	m.mu.Lock()
	m.recordings = append([]domain.Recording{rec}, m.recordings...)
	m.persistLocked()
	m.mu.Unlock()

	if len(rec.Tags) > 0 && m.vocab.Add(rec.Tags...) {
		m.saveTags()
	}
	m.publish(Event{Type: EventTypeRecordings, RecordingID: rec.ID, Message: "recording added"})

	if err := m.StartTranscription(rec.ID); err != nil {
		m.logger.Warn("auto-starting transcription failed", "recording", rec.ID, "error", err)
	}
	return rec
}

// StartTranscription begins transcribing the recording's audio file.
// A missing or empty audio file fails the recording immediately without
// invoking the transcriber. Already-running transcription is a no-op.
func (m *Manager) StartTranscription(id string) error {
	m.processing.CleanupCompleted()

	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	if m.hasRunning(id, processing.KindTranscription) {
		m.mu.Unlock()
		return nil
	}
	rec := &m.recordings[idx]
	audioPath := rec.AudioPath(m.settings().DataDir)
	if info, err := os.Stat(audioPath); err != nil || info.Size() == 0 {
		status := domain.Failed("audio file is missing or empty")
		rec.Status = status
		m.persistLocked()
		m.mu.Unlock()
		m.publish(statusEvent(id, status))
		return nil
	}
	status := domain.Transcribing(0)
	rec.Status = status
	language := rec.Language
	m.persistLocked()
	m.mu.Unlock()

	m.publish(statusEvent(id, status))
	m.processing.StartTranscription(id, audioPath, language)
	return nil
}

// RetryTranscription clears the prior transcript and summary, then
// starts transcription from scratch.
func (m *Manager) RetryTranscription(id string) error {
	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	rec := &m.recordings[idx]
	rec.Transcript = ""
	rec.TranscriptionModel = ""
	rec.TranscriptUpdatedAt = nil
	rec.Summary = ""
	rec.RawSummary = ""
	rec.SummaryProvider = ""
	rec.SummaryUpdatedAt = nil
	rec.Status = domain.Idle()
	m.persistLocked()
	m.mu.Unlock()

	m.publish(statusEvent(id, domain.Idle()))
	return m.StartTranscription(id)
}

// StartSummarization begins summarizing the recording's transcript.
// Already-running summarization is a no-op.
func (m *Manager) StartSummarization(id string) error {
	m.processing.CleanupCompleted()

	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	if m.hasRunning(id, processing.KindSummarization) {
		m.mu.Unlock()
		return nil
	}
	rec := &m.recordings[idx]
	transcript := rec.Transcript
	if strings.TrimSpace(transcript) == "" {
		m.mu.Unlock()
		return ErrNoTranscript
	}
	status := domain.Summarizing(0.1)
	rec.Status = status
	mode := rec.Mode
	m.persistLocked()
	m.mu.Unlock()

	m.publish(statusEvent(id, status))
	m.startSummarizationOp(id, transcript, mode)
	return nil
}

// RetrySummarization re-runs summarization over the stored transcript.
func (m *Manager) RetrySummarization(id string) error {
	return m.StartSummarization(id)
}

// CancelProcessing requests cancellation of all running operations for
// the recording and returns its status to idle.
func (m *Manager) CancelProcessing(id string) {
	for _, op := range m.processing.OperationsForRecording(id) {
		if !op.Terminal() {
			m.processing.Cancel(op.ID)
		}
	}

	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 || !m.recordings[idx].Status.IsProcessing() {
		m.mu.Unlock()
		return
	}
	m.recordings[idx].Status = domain.Idle()
	m.persistLocked()
	m.mu.Unlock()
	m.publish(statusEvent(id, domain.Idle()))
}

// DeleteRecording cancels any in-flight work, removes the recording
// from the collection, and deletes its audio file best-effort.
func (m *Manager) DeleteRecording(id string) error {
	for _, op := range m.processing.OperationsForRecording(id) {
		if !op.Terminal() {
			m.processing.Cancel(op.ID)
		}
	}

	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	rec := m.recordings[idx]
	m.recordings = append(m.recordings[:idx], m.recordings[idx+1:]...)
	m.persistLocked()
	m.mu.Unlock()

	audioPath := rec.AudioPath(m.settings().DataDir)
	if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("removing audio file failed", "path", audioPath, "error", err)
	}
	m.publish(Event{Type: EventTypeRecordings, RecordingID: id, Message: "recording deleted"})
	return nil
}

// UpdateRecording applies the non-nil fields of upd and re-persists.
// A title is generated when none is set and content is available.
func (m *Manager) UpdateRecording(id string, upd Update) (domain.Recording, error) {
	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return domain.Recording{}, ErrNotFound
	}
	rec := &m.recordings[idx]
	if upd.Title != nil {
		rec.Title = *upd.Title
	}
	if upd.Transcript != nil {
		rec.Transcript = *upd.Transcript
		now := time.Now().UTC()
		rec.TranscriptUpdatedAt = &now
	}
	if upd.Summary != nil {
		rec.Summary = *upd.Summary
		now := time.Now().UTC()
		rec.SummaryUpdatedAt = &now
	}
	if upd.RawSummary != nil {
		rec.RawSummary = *upd.RawSummary
	}
	if upd.Language != nil {
		rec.Language = *upd.Language
	}
	if upd.TranscriptionModel != nil {
		rec.TranscriptionModel = *upd.TranscriptionModel
	}
	if upd.Status != nil {
		rec.Status = *upd.Status
	}
	if rec.Title == "" && rec.HasContent() {
		rec.Title = domain.GenerateTitle(rec.Transcript, rec.Summary)
	}
	updated := *rec
	updated.Tags = append([]string(nil), rec.Tags...)
	status := rec.Status
	m.persistLocked()
	m.mu.Unlock()

	m.publish(statusEvent(id, status))
	return updated, nil
}

// AddTag attaches a tag to the recording and registers it in the
// vocabulary. Duplicate tags (case-insensitive) are ignored.
func (m *Manager) AddTag(id, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}

	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	rec := &m.recordings[idx]
	if rec.HasTag(tag) {
		m.mu.Unlock()
		return nil
	}
	if len(rec.Tags) >= domain.MaxTagsPerRecording {
		m.mu.Unlock()
		return ErrTooManyTags
	}
	rec.Tags = append(rec.Tags, tag)
	m.persistLocked()
	m.mu.Unlock()

	if m.vocab.Add(tag) {
		m.saveTags()
	}
	m.publish(Event{Type: EventTypeRecordings, RecordingID: id, Message: "tags updated"})
	return nil
}

// RemoveTag detaches a tag from the recording. The vocabulary is left
// untouched.
func (m *Manager) RemoveTag(id, tag string) error {
	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	rec := &m.recordings[idx]
	if !rec.HasTag(tag) {
		m.mu.Unlock()
		return nil
	}
	rec.Tags = removeTagName(rec.Tags, tag)
	m.persistLocked()
	m.mu.Unlock()

	m.publish(Event{Type: EventTypeRecordings, RecordingID: id, Message: "tags updated"})
	return nil
}

// SetTags replaces the recording's tags with the normalized set.
func (m *Manager) SetTags(id string, newTags []string) error {
	normalized := domain.NormalizeTags(newTags)
	if len(normalized) > domain.MaxTagsPerRecording {
		return ErrTooManyTags
	}

	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	m.recordings[idx].Tags = normalized
	m.persistLocked()
	m.mu.Unlock()

	if len(normalized) > 0 && m.vocab.Add(normalized...) {
		m.saveTags()
	}
	m.publish(Event{Type: EventTypeRecordings, RecordingID: id, Message: "tags updated"})
	return nil
}

// handleTagEvent rewrites recording tags after a vocabulary edit and
// persists recordings and vocabulary once per batch.
func (m *Manager) handleTagEvent(event tags.Event) {
	m.mu.Lock()
	changed := false
	for i := range m.recordings {
		rec := &m.recordings[i]
		if !rec.HasTag(event.Name) {
			continue
		}
		switch event.Kind {
		case tags.EventRemoved:
			rec.Tags = removeTagName(rec.Tags, event.Name)
		case tags.EventRenamed, tags.EventMerged:
			rec.Tags = replaceTagName(rec.Tags, event.Name, event.NewName)
		}
		changed = true
	}
	if changed {
		m.persistLocked()
	}
	m.mu.Unlock()

	m.saveTags()
	if changed {
		m.publish(Event{Type: EventTypeRecordings, Message: "tags updated"})
	}
}

// handleOperation folds a processing-manager notification back into the
// owning recording. Unknown recordings are ignored, as are cleanup
// announcements: the terminal transition they echo was already applied.
func (m *Manager) handleOperation(op processing.Operation) {
	if op.Removed {
		return
	}
	switch op.Phase {
	case processing.OpRunning:
		m.applyProgress(op)
	case processing.OpCompleted:
		m.applyCompleted(op)
	case processing.OpFailed:
		m.applyTerminal(op, domain.Failed(op.Error))
	case processing.OpCancelled:
		m.applyTerminal(op, domain.Idle())
	}
}

// applyProgress moves the recording's progress, but only while the
// recording is still in the phase matching the operation's kind. Ticks
// arriving after a cancel or retry are dropped.
func (m *Manager) applyProgress(op processing.Operation) {
	m.mu.Lock()
	idx := m.indexOf(op.RecordingID)
	if idx < 0 {
		m.mu.Unlock()
		return
	}
	rec := &m.recordings[idx]

	var status domain.Status
	switch op.Kind {
	case processing.KindTranscription:
		if rec.Status.Phase != domain.PhaseTranscribing {
			m.mu.Unlock()
			return
		}
		status = domain.Transcribing(op.Progress)
	case processing.KindSummarization:
		if rec.Status.Phase != domain.PhaseSummarizing {
			m.mu.Unlock()
			return
		}
		status = domain.Summarizing(op.Progress)
	default:
		m.mu.Unlock()
		return
	}
	rec.Status = status

	var bulkSnap *BulkSession
	if m.bulk.Active && op.Kind == processing.KindSummarization && op.RecordingID == m.bulkRecID && m.bulk.Total > 0 {
		m.bulk.Progress = (float64(m.bulk.Processed) + op.Progress) / float64(m.bulk.Total)
		snap := m.bulk
		bulkSnap = &snap
	}
	m.mu.Unlock()

	m.publish(statusEvent(op.RecordingID, status))
	if bulkSnap != nil {
		m.publish(Event{Type: EventTypeBulk, Bulk: bulkSnap})
	}
}

// applyCompleted stores the operation result on the recording. A
// completed transcription with non-empty text chains straight into
// summarization.
func (m *Manager) applyCompleted(op processing.Operation) {
	m.mu.Lock()
	idx := m.indexOf(op.RecordingID)
	if idx < 0 {
		m.mu.Unlock()
		return
	}
	rec := &m.recordings[idx]
	now := time.Now().UTC()

	var chain bool
	var transcript, mode string
	switch op.Kind {
	case processing.KindTranscription:
		rec.Transcript = op.Result.Transcript
		rec.TranscriptionModel = op.Result.TranscriptionModel
		rec.TranscriptUpdatedAt = &now
		rec.Status = domain.Done()
		if strings.TrimSpace(rec.Transcript) != "" {
			chain = true
			transcript = rec.Transcript
			mode = rec.Mode
			rec.Status = domain.Summarizing(0.1)
		}
	case processing.KindSummarization:
		rec.Summary = op.Result.Summary
		rec.RawSummary = op.Result.RawSummary
		rec.SummaryProvider = op.Result.SummaryProvider
		rec.SummaryUpdatedAt = &now
		rec.Status = domain.Done()
	}
	if rec.Title == "" && rec.HasContent() {
		rec.Title = domain.GenerateTitle(rec.Transcript, rec.Summary)
	}
	status := rec.Status
	m.persistLocked()
	m.mu.Unlock()

	m.publish(statusEvent(op.RecordingID, status))
	if chain {
		m.startSummarizationOp(op.RecordingID, transcript, mode)
	}
}

// applyTerminal sets a terminal status if the recording is still in the
// phase the operation was driving.
func (m *Manager) applyTerminal(op processing.Operation, status domain.Status) {
	m.mu.Lock()
	idx := m.indexOf(op.RecordingID)
	if idx < 0 || !phaseMatchesKind(m.recordings[idx].Status.Phase, op.Kind) {
		m.mu.Unlock()
		return
	}
	m.recordings[idx].Status = status
	m.persistLocked()
	m.mu.Unlock()

	m.publish(statusEvent(op.RecordingID, status))
}

// startSummarizationOp hands the transcript to the processing manager.
// Callers must not hold m.mu.
func (m *Manager) startSummarizationOp(id, transcript, mode string) string {
	length := m.settings().SummaryLength
	return m.processing.StartSummarization(id, transcript, length, mode)
}

// hasRunning reports whether a non-terminal operation of the given kind
// exists for the recording. Caller may hold m.mu.
func (m *Manager) hasRunning(id string, kind processing.Kind) bool {
	for _, op := range m.processing.OperationsForRecording(id) {
		if op.Kind == kind && !op.Terminal() {
			return true
		}
	}
	return false
}

// persistLocked writes the collection through the store. Encode or
// write failures are logged and swallowed so in-memory state stays
// authoritative. Caller must hold m.mu.
func (m *Manager) persistLocked() {
	if err := m.store.SaveRecordings(snapshotRecordings(m.recordings)); err != nil {
		m.logger.Warn("persisting recordings failed", "error", err)
	}
}

func (m *Manager) saveTags() {
	if err := m.store.SaveTags(m.vocab.All()); err != nil {
		m.logger.Warn("persisting tag vocabulary failed", "error", err)
	}
}

// publish sequences the event and fans it out to listeners. Callers
// must not hold m.mu.
func (m *Manager) publish(event Event) {
	event = m.events.Publish(event)

	m.mu.Lock()
	listeners := make([]func(Event), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(event)
	}
}

func (m *Manager) indexOf(id string) int {
	for i := range m.recordings {
		if m.recordings[i].ID == id {
			return i
		}
	}
	return -1
}

func statusEvent(id string, status domain.Status) Event {
	return Event{Type: EventTypeStatus, RecordingID: id, Status: &status}
}

func phaseMatchesKind(phase domain.Phase, kind processing.Kind) bool {
	switch kind {
	case processing.KindTranscription:
		return phase == domain.PhaseTranscribing || phase == domain.PhaseTranscribingPaused
	case processing.KindSummarization:
		return phase == domain.PhaseSummarizing || phase == domain.PhaseSummarizingPaused
	}
	return false
}

func snapshotRecordings(recs []domain.Recording) []domain.Recording {
	out := make([]domain.Recording, len(recs))
	copy(out, recs)
	for i := range out {
		out[i].Tags = append([]string(nil), out[i].Tags...)
	}
	return out
}

func removeTagName(list []string, name string) []string {
	out := list[:0]
	for _, t := range list {
		if !strings.EqualFold(t, name) {
			out = append(out, t)
		}
	}
	return append([]string(nil), out...)
}

func replaceTagName(list []string, old, new string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, t := range list {
		if strings.EqualFold(t, old) {
			t = new
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
