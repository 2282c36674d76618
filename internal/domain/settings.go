package domain

// SummaryLength selects how long generated summaries should be.
type SummaryLength string

const (
	SummaryLengthShort  SummaryLength = "short"
	SummaryLengthMedium SummaryLength = "medium"
	SummaryLengthLong   SummaryLength = "long"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	DataDir         string        `json:"dataDir"`
	ModelPath       string        `json:"modelPath"`
	Language        string        `json:"language"`
	SummaryLength   SummaryLength `json:"summaryLength"`
	SummaryProvider string        `json:"summaryProvider"`
	SummaryBaseURL  string        `json:"summaryBaseUrl"`
}
