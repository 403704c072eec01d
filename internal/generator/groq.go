// Package generator produces the final recommendation text from retrieved
// context via an OpenAI-compatible chat completions endpoint (Groq by
// default).
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"animerec/internal/domain"
)

const (
	defaultBaseURL    = "https://api.groq.com/openai/v1"
	defaultModel      = "llama-3.1-8b-instant"
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3
)

// Client calls a hosted chat completions API. It is safe for concurrent
// use and cheap to reuse across recommend calls.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	maxRetries int
	client     *http.Client
}

// Config configures the generation client. APIKey must already be
// resolved by the caller; a missing key is rejected here so no request is
// ever attempted without credentials.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generation API key is empty: %w", domain.ErrGeneration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Model returns the configured generation model identifier.
func (c *Client) Model() string { return c.model }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate builds the instruction prompt from the query and retrieved
// chunks and returns the model's raw output unmodified. Transient failures
// (network, 429, 5xx) are retried a bounded number of times with backoff;
// everything that still fails is reported as a domain.ErrGeneration.
func (c *Client) Generate(ctx context.Context, query string, contextChunks []string) (string, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(query, contextChunks)},
		},
		Temperature: 0.7,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %v: %w", err, domain.ErrGeneration)
	}
	url := c.baseURL + "/chat/completions"

	var lastErr error
	var retryAfter time.Duration
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(nextDelay(attempt-1, retryAfter)):
			case <-ctx.Done():
				return "", fmt.Errorf("generation cancelled: %v: %w", ctx.Err(), domain.ErrGeneration)
			}
		}
		retryAfter = 0
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("build chat request: %v: %w", err, domain.ErrGeneration)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("generation timed out: %v: %w", err, domain.ErrGeneration)
			}
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					retryAfter = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("chat endpoint returned %s", resp.Status)
			continue
		}
		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 300 {
			// Auth and client errors are not retryable.
			return "", fmt.Errorf("chat request failed: %s: %s: %w", resp.Status, apiErrorMessage(payload), domain.ErrGeneration)
		}
		var out chatResponse
		if err := json.Unmarshal(payload, &out); err != nil {
			lastErr = fmt.Errorf("decode chat response: %v", err)
			continue
		}
		if len(out.Choices) == 0 {
			lastErr = fmt.Errorf("chat response has no choices")
			continue
		}
		return out.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("chat endpoint unreachable after %d retries: %v: %w", c.maxRetries, lastErr, domain.ErrGeneration)
}

func apiErrorMessage(payload []byte) string {
	var out chatResponse
	if err := json.Unmarshal(payload, &out); err == nil && out.Error != nil {
		return out.Error.Message
	}
	return "unknown error"
}

// nextDelay picks the wait before a retry: a server-provided Retry-After
// replaces the default exponential backoff, it does not add to it.
func nextDelay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	return retryDelay(attempt)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
