package config

import (
	"os"
	"path/filepath"

	"voice-notes/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		DataDir:         filepath.Join(homeDir, ".voice-notes"),
		ModelPath:       filepath.Join(homeDir, ".voice-notes", "models"),
		Language:        "auto",
		SummaryLength:   domain.SummaryLengthMedium,
		SummaryProvider: "openai",
		SummaryBaseURL:  "https://api.openai.com/v1",
	}
}
