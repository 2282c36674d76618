package summarize

import (
	"context"
	"errors"
	"strings"

	"voice-notes/internal/domain"
	"voice-notes/internal/ports"
)

// LocalFallbackPrefix marks summaries produced by the offline extractive
// path. Bulk regeneration uses it to find candidates worth redoing.
const LocalFallbackPrefix = "Local summary: "

// IsLocalFallback reports whether text is an offline fallback summary.
func IsLocalFallback(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), strings.TrimSpace(LocalFallbackPrefix))
}

// provider abstracts the remote completion call for testability.
type provider interface {
	Complete(ctx context.Context, transcript string, length domain.SummaryLength, mode string) (string, error)
}

// Service is the production Summarizer: remote provider first, local
// extractive fallback when the provider is unavailable.
type Service struct {
	provider     provider
	providerName string
}

// NewService builds a summarization service around a provider client.
func NewService(client *Client, providerName string) *Service {
	if providerName == "" {
		providerName = "openai"
	}
	svc := &Service{providerName: providerName}
	if client != nil {
		svc.provider = client
	}
	return svc
}

// NewServiceForTests builds a service with an injected provider.
func NewServiceForTests(p provider, providerName string) *Service {
	return &Service{provider: p, providerName: providerName}
}

// Summarize produces clean and raw summary text for a transcript.
// Progress is reported at checkpoints; the token is checked between them.
func (s *Service) Summarize(ctx context.Context, req ports.SummarizeRequest) (ports.SummarizeResult, error) {
	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" {
		return ports.SummarizeResult{}, errors.New("transcript is empty")
	}

	emitProgress(req.OnProgress, 0.1)
	if req.Token.Cancelled() {
		return ports.SummarizeResult{}, ErrCancelled
	}

	if s.provider == nil {
		local := LocalExtract(transcript, req.Length)
		emitProgress(req.OnProgress, 1.0)
		return ports.SummarizeResult{
			Clean:    local,
			Raw:      local,
			Provider: "local",
		}, nil
	}

	raw, err := s.provider.Complete(ctx, transcript, req.Length, req.Mode)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ports.SummarizeResult{}, ErrCancelled
		}
		// Provider unavailable: degrade to the offline extract.
		local := LocalExtract(transcript, req.Length)
		emitProgress(req.OnProgress, 1.0)
		return ports.SummarizeResult{
			Clean:    local,
			Raw:      local,
			Provider: "local",
		}, nil
	}

	emitProgress(req.OnProgress, 0.7)
	if req.Token.Cancelled() {
		return ports.SummarizeResult{}, ErrCancelled
	}

	clean := CleanSummary(raw)
	emitProgress(req.OnProgress, 1.0)
	return ports.SummarizeResult{
		Clean:    clean,
		Raw:      raw,
		Provider: s.providerName,
	}, nil
}

// CleanSummary strips provider artifacts from raw output: code fences,
// leading "Summary:" labels, and surrounding whitespace.
func CleanSummary(raw string) string {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.Index(text, "\n"); idx >= 0 && !strings.ContainsAny(text[:idx], " .") {
			// Drop a language tag on the opening fence.
			text = text[idx+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	for _, label := range []string{"Summary:", "SUMMARY:", "summary:"} {
		if strings.HasPrefix(text, label) {
			text = strings.TrimSpace(strings.TrimPrefix(text, label))
			break
		}
	}

	return text
}

// LocalExtract builds a naive extractive summary: the first sentences of
// the transcript, capped per the length setting, behind the fallback
// signature prefix.
func LocalExtract(transcript string, length domain.SummaryLength) string {
	limit := 3
	switch length {
	case domain.SummaryLengthShort:
		limit = 1
	case domain.SummaryLengthLong:
		limit = 6
	}

	sentences := splitSentences(transcript)
	if len(sentences) > limit {
		sentences = sentences[:limit]
	}
	return LocalFallbackPrefix + strings.Join(sentences, " ")
}

// splitSentences performs a rough sentence split on terminal punctuation.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range strings.TrimSpace(text) {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// emitProgress forwards progress when a callback is configured.
func emitProgress(cb func(float64), progress float64) {
	if cb != nil {
		cb(progress)
	}
}
