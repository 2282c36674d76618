package domain

import (
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// MaxTagsPerRecording caps how many tags one recording may carry.
const MaxTagsPerRecording = 50

// Recording is the persisted voice note entity. AudioFile stores only the
// file name; the absolute path is resolved against the data directory.
type Recording struct {
	ID                  string     `json:"id"`
	AudioFile           string     `json:"audioFile"`
	CreatedAt           time.Time  `json:"createdAt"`
	Duration            float64    `json:"duration"`
	Transcript          string     `json:"transcript,omitempty"`
	Summary             string     `json:"summary,omitempty"`
	RawSummary          string     `json:"rawSummary,omitempty"`
	Status              Status     `json:"status"`
	Language            string     `json:"language,omitempty"`
	TranscriptUpdatedAt *time.Time `json:"transcriptUpdatedAt,omitempty"`
	SummaryUpdatedAt    *time.Time `json:"summaryUpdatedAt,omitempty"`
	Title               string     `json:"title,omitempty"`
	Mode                string     `json:"mode,omitempty"`
	SummaryProvider     string     `json:"summaryProvider,omitempty"`
	Tags                []string   `json:"tags,omitempty"`
	TranscriptionModel  string     `json:"transcriptionModel,omitempty"`
}

// AudioPath resolves the absolute audio file location inside dataDir.
func (r Recording) AudioPath(dataDir string) string {
	return filepath.Join(dataDir, r.AudioFile)
}

// HasContent reports whether the recording carries transcript or summary text.
func (r Recording) HasContent() bool {
	return strings.TrimSpace(r.Transcript) != "" || strings.TrimSpace(r.Summary) != ""
}

// NormalizeTags trims tags, drops empties, and removes case-insensitive
// duplicates while keeping first-seen order and casing.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// HasTag reports whether the recording carries the tag, ignoring case.
func (r Recording) HasTag(tag string) bool {
	needle := strings.ToLower(strings.TrimSpace(tag))
	for _, t := range r.Tags {
		if strings.ToLower(t) == needle {
			return true
		}
	}
	return false
}

// GenerateTitle derives a display title from transcript or summary content.
// The summary wins when present; output is the first line truncated on a
// word boundary.
func GenerateTitle(transcript, summary string) string {
	source := strings.TrimSpace(summary)
	if source == "" {
		source = strings.TrimSpace(transcript)
	}
	if source == "" {
		return ""
	}

	if idx := strings.IndexAny(source, "\r\n"); idx >= 0 {
		source = strings.TrimSpace(source[:idx])
	}

	const maxTitleLen = 60
	runes := []rune(source)
	if len(runes) <= maxTitleLen {
		return source
	}

	cut := maxTitleLen
	for cut > 0 && !unicode.IsSpace(runes[cut]) {
		cut--
	}
	if cut == 0 {
		cut = maxTitleLen
	}
	return strings.TrimSpace(string(runes[:cut])) + "…"
}
