package clients

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

	"github.com/postgen/postgen/common"
	"github.com/postgen/postgen/utils"
)

// SystemPrompt is sent ahead of every user prompt.
const SystemPrompt = "You are a social media assistant. Generate a well-formatted social media post. Do NOT include titles."

// AIConfig is the immutable configuration of an AIClient.
type AIConfig struct {
	BaseURL     string // e.g. https://api.openai.com/v1
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration // per attempt
	MaxRetries  int           // extra attempts after the first, transient failures only
	Backoff     time.Duration // multiplied by the attempt number
}

// AIClient calls an OpenAI-compatible chat-completion endpoint.
type AIClient struct {
	cfg        AIConfig
	httpClient *http.Client
}

// NewAIClient creates an AIClient.
func NewAIClient(cfg AIConfig) *AIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	return &AIClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// transientError marks failures worth another attempt.
type transientError struct{ err error }

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// GenerateText returns the provider's completion for prompt.
// Any failure, including an empty completion, is a common.ErrUpstream.
func (c *AIClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", upstreamFailure(ctx.Err())
			case <-time.After(time.Duration(attempt) * c.cfg.Backoff):
			}
			utils.Sugar.Warnw("retrying AI provider call", "attempt", attempt+1, "err", lastErr)
		}

		text, err := c.complete(ctx, body)
		observe("ai", err)
		if err == nil {
			return text, nil
		}
		lastErr = err
		var te transientError
		if !errors.As(err, &te) {
			break
		}
	}
	return "", upstreamFailure(lastErr)
}

func upstreamFailure(err error) error {
	if errors.Is(err, common.ErrUpstream) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return common.Upstream("AI provider timed out", err)
	}
	return common.Upstream("AI provider request failed", err)
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func (c *AIClient) complete(ctx context.Context, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transientError{err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", transientError{err}
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("AI provider status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", transientError{err}
		}
		return "", err
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode AI response: %w", err)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", common.Upstream("AI did not return a valid response", nil)
	}
	return result.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
