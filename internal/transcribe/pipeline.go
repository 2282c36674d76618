// Package transcribe runs on-device transcription: ffmpeg audio
// normalization followed by whisper.cpp. It implements ports.Transcriber.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"voice-notes/internal/ports"
)

// ErrCancelled is returned when the request token is cancelled at a
// pipeline checkpoint.
var ErrCancelled = errors.New("transcription cancelled")

// Progress checkpoints emitted between stages. Values trend upward but
// carry no finer granularity than stage boundaries.
const (
	progressValidated    = 0.05
	progressPreprocessed = 0.35
	progressTranscribed  = 0.9
	progressDone         = 1.0
)

// PipelineError is a stage-aware error with optional command context.
type PipelineError struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error formats pipeline failures for logs and UI.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Pipeline orchestrates ffmpeg preprocessing and whisper transcription.
type Pipeline struct {
	ffmpegPath  string
	whisperPath string
	modelPath   string
	runner      commandRunner
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	stat        func(name string) (os.FileInfo, error)
	readDir     func(name string) ([]os.DirEntry, error)
	readFile    func(name string) ([]byte, error)
}

// NewPipeline constructs the production pipeline with OS dependencies.
// modelPath may point at a model file or a directory of models.
func NewPipeline(modelPath string) *Pipeline {
	return &Pipeline{
		ffmpegPath:  "ffmpeg",
		whisperPath: "whisper.cpp",
		modelPath:   modelPath,
		runner:      &execRunner{},
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		stat:        os.Stat,
		readDir:     os.ReadDir,
		readFile:    os.ReadFile,
	}
}

// Transcribe converts one audio file to text. Progress is reported at
// stage boundaries; the request token is checked between stages.
func (p *Pipeline) Transcribe(ctx context.Context, req ports.TranscribeRequest) (ports.TranscribeResult, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return ports.TranscribeResult{}, &PipelineError{
			Stage:   "validating",
			Message: "audio file path is required",
		}
	}

	info, err := p.stat(req.AudioPath)
	if err != nil {
		return ports.TranscribeResult{}, &PipelineError{
			Stage:   "validating",
			Message: fmt.Sprintf("cannot access audio file: %s", req.AudioPath),
			Err:     err,
		}
	}
	if info.Size() == 0 {
		return ports.TranscribeResult{}, &PipelineError{
			Stage:   "validating",
			Message: fmt.Sprintf("audio file is empty: %s", req.AudioPath),
		}
	}

	modelPath, err := p.resolveModelPath()
	if err != nil {
		return ports.TranscribeResult{}, &PipelineError{
			Stage:   "transcribing",
			Message: err.Error(),
			Err:     err,
		}
	}
	emitProgress(req.OnProgress, progressValidated)

	if req.Token.Cancelled() {
		return ports.TranscribeResult{}, ErrCancelled
	}

	tempDir, err := p.mkdirTemp("", "voice-notes-*")
	if err != nil {
		return ports.TranscribeResult{}, &PipelineError{
			Stage:   "preprocessing",
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}
	defer func() {
		_ = p.removeAll(tempDir)
	}()

	wavPath := filepath.Join(tempDir, "normalized-16k-mono.wav")
	if _, err := p.runner.Run(ctx, p.ffmpegPath, buildFFmpegArgs(req.AudioPath, wavPath)...); err != nil {
		return ports.TranscribeResult{}, &PipelineError{
			Stage:   "preprocessing",
			Message: "ffmpeg audio conversion failed",
			Err:     err,
		}
	}
	if _, err := p.stat(wavPath); err != nil {
		return ports.TranscribeResult{}, &PipelineError{
			Stage:   "preprocessing",
			Message: "ffmpeg completed but output file is missing",
			Err:     err,
		}
	}
	emitProgress(req.OnProgress, progressPreprocessed)

	if req.Token.Cancelled() {
		return ports.TranscribeResult{}, ErrCancelled
	}

	textBase := filepath.Join(tempDir, "transcript")
	whisperArgs := buildWhisperArgs(modelPath, wavPath, textBase, req.Language)
	if _, err := p.runner.Run(ctx, p.whisperPath, whisperArgs...); err != nil {
		return ports.TranscribeResult{}, &PipelineError{
			Stage:   "transcribing",
			Message: "whisper.cpp transcription failed",
			Err:     err,
		}
	}
	emitProgress(req.OnProgress, progressTranscribed)

	if req.Token.Cancelled() {
		return ports.TranscribeResult{}, ErrCancelled
	}

	content, err := p.readFile(textBase + ".txt")
	if err != nil {
		return ports.TranscribeResult{}, &PipelineError{
			Stage:   "transcribing",
			Message: "whisper.cpp completed but transcript file is missing",
			Err:     err,
		}
	}

	emitProgress(req.OnProgress, progressDone)
	return ports.TranscribeResult{
		Text:  FormatTranscript(string(content)),
		Model: "whisper.cpp/" + filepath.Base(modelPath),
	}, nil
}

// FormatTranscript normalizes raw whisper output for display: trims each
// line, drops empty lines, and joins with single spaces.
func FormatTranscript(raw string) string {
	lines := strings.Split(raw, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	return strings.Join(parts, " ")
}

// emitProgress forwards progress when a callback is configured.
func emitProgress(cb func(float64), progress float64) {
	if cb != nil {
		cb(progress)
	}
}

// resolveModelPath returns model file path from file or directory input.
func (p *Pipeline) resolveModelPath() (string, error) {
	modelPath := strings.TrimSpace(p.modelPath)
	if modelPath == "" {
		return "", fmt.Errorf("model path is required")
	}

	info, err := p.stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot access model path: %s", modelPath)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := p.readDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory: %s", modelPath)
	}

	modelNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			modelNames = append(modelNames, entry.Name())
		}
	}
	if len(modelNames) == 0 {
		return "", fmt.Errorf("no .bin or .gguf model files found in: %s", modelPath)
	}

	sort.Strings(modelNames)
	return filepath.Join(modelPath, modelNames[0]), nil
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// buildFFmpegArgs builds preprocessing CLI args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildWhisperArgs builds whisper.cpp args for txt transcript export.
func buildWhisperArgs(modelPath, audioPath, textBase, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", textBase,
		"-otxt",
	}

	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}

	return args
}

// NewPipelineForTests constructs a pipeline with injectable dependencies.
func NewPipelineForTests(
	ffmpegPath string,
	whisperPath string,
	modelPath string,
	runner commandRunner,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
	stat func(name string) (os.FileInfo, error),
) *Pipeline {
	return &Pipeline{
		ffmpegPath:  ffmpegPath,
		whisperPath: whisperPath,
		modelPath:   modelPath,
		runner:      runner,
		mkdirTemp:   mkdirTemp,
		removeAll:   removeAll,
		stat:        stat,
		readDir:     os.ReadDir,
		readFile:    os.ReadFile,
	}
}
