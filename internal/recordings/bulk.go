package recordings

import (
	"fmt"
	"strings"

	"voice-notes/internal/cancel"
	"voice-notes/internal/domain"
	"voice-notes/internal/processing"
	"voice-notes/internal/summarize"
)

// BulkSession describes one bulk summary-regeneration run. Progress
// counts whole recordings plus the fraction of the one currently being
// summarized.
type BulkSession struct {
	Active    bool    `json:"active"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	LastError string  `json:"lastError,omitempty"`
}

// BulkStatus returns a snapshot of the current or last session.
func (m *Manager) BulkStatus() BulkSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bulk
}

// RegenerateSummaries starts a background run that re-summarizes
// recordings one at a time. Candidates have a transcript and either no
// summary yet or, when onlyFixLocalFallback is set, a local-fallback
// summary; without the flag every transcribed recording qualifies.
// Only one session may run at a time.
func (m *Manager) RegenerateSummaries(onlyFixLocalFallback bool) error {
	m.mu.Lock()
	if m.bulk.Active {
		m.mu.Unlock()
		return ErrBulkActive
	}

	var candidates []string
	for _, rec := range m.recordings {
		if strings.TrimSpace(rec.Transcript) == "" {
			continue
		}
		if onlyFixLocalFallback && rec.Summary != "" && !summarize.IsLocalFallback(rec.Summary) {
			continue
		}
		candidates = append(candidates, rec.ID)
	}

	if len(candidates) == 0 {
		m.bulk = BulkSession{Status: "Done", Progress: 1}
		snap := m.bulk
		m.mu.Unlock()
		m.publish(Event{Type: EventTypeBulk, Bulk: &snap})
		return nil
	}

	flag := cancel.NewFlag()
	m.bulkFlag = flag
	m.bulk = BulkSession{Active: true, Status: "Preparing", Total: len(candidates)}
	snap := m.bulk
	m.mu.Unlock()

	m.publish(Event{Type: EventTypeBulk, Bulk: &snap})
	go m.runBulk(candidates, flag)
	return nil
}

// CancelRegeneration asks the running session to stop. The in-flight
// summarization finishes; remaining candidates are skipped.
func (m *Manager) CancelRegeneration() {
	m.mu.Lock()
	flag := m.bulkFlag
	active := m.bulk.Active
	m.mu.Unlock()

	if active && flag != nil {
		flag.Cancel()
	}
}

// runBulk processes candidates serially. Individual failures are
// recorded on the session and do not stop the run.
func (m *Manager) runBulk(ids []string, flag *cancel.Flag) {
	total := len(ids)
	for i, id := range ids {
		if flag.Cancelled() {
			m.finishBulk("Cancelled")
			return
		}

		m.mu.Lock()
		idx := m.indexOf(id)
		if idx < 0 {
			// Deleted mid-run. Counts as processed.
			m.bulk.Processed = i + 1
			m.bulk.Progress = float64(i+1) / float64(total)
			m.mu.Unlock()
			m.publishBulk()
			continue
		}
		rec := &m.recordings[idx]
		transcript := rec.Transcript
		mode := rec.Mode
		status := domain.Summarizing(0.1)
		rec.Status = status
		// Record the candidate before the operation starts so its very
		// first progress tick counts toward the session.
		m.bulkRecID = id
		m.bulk.Status = fmt.Sprintf("Summarizing %d of %d", i+1, total)
		m.persistLocked()
		m.mu.Unlock()

		m.publishBulk()
		m.publish(statusEvent(id, status))

		opID := m.startSummarizationOp(id, transcript, mode)
		op, ok := m.processing.Wait(opID)

		m.mu.Lock()
		m.bulkRecID = ""
		if ok && op.Phase == processing.OpFailed {
			m.bulk.LastError = op.Error
		}
		m.bulk.Processed = i + 1
		m.bulk.Progress = float64(i+1) / float64(total)
		m.mu.Unlock()

		m.publishBulk()
		m.processing.CleanupCompleted()
	}

	if flag.Cancelled() {
		m.finishBulk("Cancelled")
		return
	}
	m.finishBulk("Done")
}

func (m *Manager) finishBulk(status string) {
	m.mu.Lock()
	m.bulk.Active = false
	m.bulk.Status = status
	if status == "Done" {
		m.bulk.Progress = 1
	}
	m.bulkFlag = nil
	m.bulkRecID = ""
	m.mu.Unlock()
	m.publishBulk()
}

func (m *Manager) publishBulk() {
	m.mu.Lock()
	snap := m.bulk
	m.mu.Unlock()
	m.publish(Event{Type: EventTypeBulk, Bulk: &snap})
}
