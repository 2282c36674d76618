// Package bootstrap wires configuration, storage, the processing
// services, and the Wails runtime into a running application.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"voice-notes/internal/config"
	"voice-notes/internal/diagnostics"
	"voice-notes/internal/domain"
	"voice-notes/internal/ports"
	"voice-notes/internal/processing"
	"voice-notes/internal/recordings"
	"voice-notes/internal/store"
	"voice-notes/internal/summarize"
	"voice-notes/internal/tags"
	"voice-notes/internal/transcribe"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var audioDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Audio files",
		Pattern:     "*.wav;*.mp3;*.m4a;*.flac;*.aac;*.ogg;*.opus;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, the recordings manager, and UI runtime
// callbacks. All exported methods are bound to the frontend.
type App struct {
	Config      config.Store
	Recordings  *recordings.Manager
	Vocabulary  *tags.Vocabulary
	Diagnostics diagnostics.Report

	recStore ports.RecordingStore
	checker  *diagnostics.Checker
	logger   *slog.Logger
	assets   fs.FS

	mu         sync.Mutex
	settings   domain.Settings
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup
// diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures
// embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	logger := slog.Default()
	cfgStore := config.NewJSONStore(filepath.Join(homeDir, ".voice-notes", "settings.json"))
	settings, err := cfgStore.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if err := os.MkdirAll(settings.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare data directory: %w", err)
	}

	recStore, err := openRecordingStore(settings.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open recording store: %w", err)
	}

	apiKey := config.SummaryAPIKey()
	checker := diagnostics.NewChecker()
	report := checker.Run(settings, apiKey)

	var client *summarize.Client
	if apiKey != "" {
		client = summarize.NewClient(settings.SummaryBaseURL, apiKey, "")
	}

	app := &App{
		Config:      cfgStore,
		Vocabulary:  tags.NewVocabulary(nil),
		Diagnostics: report,
		recStore:    recStore,
		checker:     checker,
		logger:      logger,
		assets:      assets,
		settings:    settings,
	}

	proc := processing.NewManager(
		transcribe.NewPipeline(settings.ModelPath),
		summarize.NewService(client, settings.SummaryProvider),
	)
	app.Recordings = recordings.NewManager(recStore, proc, app.Vocabulary, app.currentSettings, logger)
	app.Recordings.Subscribe(app.emitRecordingEvent)

	return app, nil
}

// openRecordingStore selects the persistence backend. Badger is the
// default; VOICENOTES_STORE=json selects the plain-file store, and a
// failed Badger open falls back to it as well.
func openRecordingStore(dataDir string, logger *slog.Logger) (ports.RecordingStore, error) {
	if strings.EqualFold(os.Getenv("VOICENOTES_STORE"), "json") {
		return store.NewJSONStore(dataDir), nil
	}

	badger, err := store.NewBadgerStore(filepath.Join(dataDir, "db"))
	if err != nil {
		logger.Warn("opening badger store failed, falling back to json files", "error", err)
		return store.NewJSONStore(dataDir), nil
	}
	return badger, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Voice Notes",
		Width:       1100,
		Height:      760,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			a.runtimeCtx = nil
			a.mu.Unlock()
			if err := a.recStore.Close(); err != nil {
				a.logger.Warn("closing recording store failed", "error", err)
			}
		},
		Bind: []interface{}{a},
	})
}

// Startup stores the Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// ListRecordings returns all recordings, most recent first.
func (a *App) ListRecordings() []domain.Recording {
	return a.Recordings.Recordings()
}

// GetRecording returns one recording by id.
func (a *App) GetRecording(id string) (domain.Recording, error) {
	rec, ok := a.Recordings.Recording(id)
	if !ok {
		return domain.Recording{}, recordings.ErrNotFound
	}
	return rec, nil
}

// ListRecordingsWithTag returns recordings carrying the tag.
func (a *App) ListRecordingsWithTag(tag string) []domain.Recording {
	return a.Recordings.RecordingsWithTag(tag)
}

// ImportRecording copies an audio file into the data directory and adds
// it as a new recording, starting transcription.
func (a *App) ImportRecording(sourcePath string) (domain.Recording, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return domain.Recording{}, fmt.Errorf("source path is empty")
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return domain.Recording{}, fmt.Errorf("open source audio: %w", err)
	}
	defer src.Close()

	name := uuid.NewString() + strings.ToLower(filepath.Ext(sourcePath))
	destPath := filepath.Join(a.currentSettings().DataDir, name)
	dest, err := os.Create(destPath)
	if err != nil {
		return domain.Recording{}, fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		_ = os.Remove(destPath)
		return domain.Recording{}, fmt.Errorf("copy audio file: %w", err)
	}
	if err := dest.Close(); err != nil {
		return domain.Recording{}, fmt.Errorf("flush audio file: %w", err)
	}

	language := a.currentSettings().Language
	if language == "auto" {
		language = ""
	}
	return a.Recordings.AddRecording(domain.Recording{
		AudioFile: name,
		Language:  language,
	}), nil
}

// PickAudioFile opens a native file dialog for audio selection.
func (a *App) PickAudioFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select audio file",
		Filters: audioDialogFilter,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

// StartTranscription begins transcribing the recording's audio.
func (a *App) StartTranscription(id string) error {
	return a.Recordings.StartTranscription(id)
}

// RetryTranscription clears earlier output and transcribes again.
func (a *App) RetryTranscription(id string) error {
	return a.Recordings.RetryTranscription(id)
}

// StartSummarization summarizes the recording's transcript.
func (a *App) StartSummarization(id string) error {
	return a.Recordings.StartSummarization(id)
}

// RetrySummarization re-runs summarization for the recording.
func (a *App) RetrySummarization(id string) error {
	return a.Recordings.RetrySummarization(id)
}

// CancelProcessing stops in-flight work for the recording.
func (a *App) CancelProcessing(id string) {
	a.Recordings.CancelProcessing(id)
}

// DeleteRecording removes the recording and its audio file.
func (a *App) DeleteRecording(id string) error {
	return a.Recordings.DeleteRecording(id)
}

// RenameRecording sets a user-chosen title.
func (a *App) RenameRecording(id, title string) (domain.Recording, error) {
	title = strings.TrimSpace(title)
	return a.Recordings.UpdateRecording(id, recordings.Update{Title: &title})
}

// UpdateRecording applies a partial update.
func (a *App) UpdateRecording(id string, upd recordings.Update) (domain.Recording, error) {
	return a.Recordings.UpdateRecording(id, upd)
}

// AddTag attaches a tag to a recording.
func (a *App) AddTag(id, tag string) error {
	return a.Recordings.AddTag(id, tag)
}

// RemoveTag detaches a tag from a recording.
func (a *App) RemoveTag(id, tag string) error {
	return a.Recordings.RemoveTag(id, tag)
}

// SetTags replaces a recording's tags.
func (a *App) SetTags(id string, tagNames []string) error {
	return a.Recordings.SetTags(id, tagNames)
}

// ListTags returns the tag vocabulary in first-seen order.
func (a *App) ListTags() []string {
	return a.Vocabulary.All()
}

// RenameTag renames a vocabulary tag everywhere it is used.
func (a *App) RenameTag(oldName, newName string) bool {
	return a.Vocabulary.Rename(oldName, newName)
}

// DeleteTag removes a vocabulary tag and detaches it from recordings.
func (a *App) DeleteTag(name string) bool {
	return a.Vocabulary.Remove(name)
}

// MergeTags folds one tag into another across all recordings.
func (a *App) MergeTags(from, to string) bool {
	return a.Vocabulary.Merge(from, to)
}

// RegenerateSummaries starts a bulk summary refresh.
func (a *App) RegenerateSummaries(onlyFixLocalFallback bool) error {
	return a.Recordings.RegenerateSummaries(onlyFixLocalFallback)
}

// CancelRegeneration stops the running bulk refresh.
func (a *App) CancelRegeneration() {
	a.Recordings.CancelRegeneration()
}

// RegenerationStatus returns the bulk session snapshot.
func (a *App) RegenerationStatus() recordings.BulkSession {
	return a.Recordings.BulkStatus()
}

// RecordingEvents returns events with sequence greater than sinceSeq.
func (a *App) RecordingEvents(sinceSeq int64) []recordings.Event {
	return a.Recordings.EventsSince(sinceSeq)
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Config.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()
	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes
// diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Config.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized, config.SummaryAPIKey())
	}
	a.mu.Unlock()
	return normalized, nil
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() diagnostics.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (diagnostics.Report, error) {
	settings, err := a.Config.Load()
	if err != nil {
		return diagnostics.Report{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.settings = settings
	a.Diagnostics = a.checker.Run(settings, config.SummaryAPIKey())
	report := a.Diagnostics
	a.mu.Unlock()
	return report, nil
}

// currentSettings returns the last loaded settings snapshot.
func (a *App) currentSettings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// emitRecordingEvent pushes a manager event to the frontend when the
// runtime is available.
func (a *App) emitRecordingEvent(event recordings.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "recordings:event", event)
	}
}

// runtimeContext returns the current Wails runtime context for dialog
// APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and applies defaults for empty
// fields.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.DataDir = strings.TrimSpace(settings.DataDir)
	settings.ModelPath = strings.TrimSpace(settings.ModelPath)
	settings.Language = strings.TrimSpace(settings.Language)
	settings.SummaryProvider = strings.TrimSpace(settings.SummaryProvider)
	settings.SummaryBaseURL = strings.TrimSuffix(strings.TrimSpace(settings.SummaryBaseURL), "/")
	if settings.Language == "" {
		settings.Language = "auto"
	}
	switch settings.SummaryLength {
	case domain.SummaryLengthShort, domain.SummaryLengthMedium, domain.SummaryLengthLong:
	default:
		settings.SummaryLength = domain.SummaryLengthMedium
	}
	return settings
}
