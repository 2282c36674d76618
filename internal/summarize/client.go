// Package summarize condenses transcripts via an AI provider, with a
// local extractive fallback when no provider is reachable. It implements
// ports.Summarizer.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voice-notes/internal/domain"
)

// ErrCancelled is returned when the request token is cancelled at a
// checkpoint.
var ErrCancelled = errors.New("summarization cancelled")

// ErrNoAPIKey indicates the provider client is not configured.
var ErrNoAPIKey = errors.New("summary provider API key is not configured")

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewClient builds a provider client. An empty apiKey yields a client
// whose calls fail with ErrNoAPIKey.
func NewClient(baseURL, apiKey, model string) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the transcript with summarization instructions and
// returns the provider's raw answer.
func (c *Client) Complete(ctx context.Context, transcript string, length domain.SummaryLength, mode string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: buildInstruction(length, mode)},
			{Role: "user", Content: transcript},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call summary provider: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read provider response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode provider response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("summary provider returned %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("summary provider returned no choices")
	}

	answer := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New("summary provider returned empty text")
	}
	return answer, nil
}

// buildInstruction maps the length setting and mode hint to a prompt.
func buildInstruction(length domain.SummaryLength, mode string) string {
	sentences := 3
	switch length {
	case domain.SummaryLengthShort:
		sentences = 1
	case domain.SummaryLengthLong:
		sentences = 6
	}

	instruction := fmt.Sprintf(
		"Summarize the following voice note transcript in at most %d sentences. Reply with the summary only.",
		sentences,
	)
	if mode = strings.TrimSpace(mode); mode != "" {
		instruction += " Context: " + mode + "."
	}
	return instruction
}
