package generator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animerec/internal/domain"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatHandler(t *testing.T, capture *capturedRequest, reply string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if capture != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": reply}},
			},
		})
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: baseURL, APIKey: "test-key", Model: "llama-3.1-8b-instant", Timeout: 5 * time.Second, MaxRetries: 2})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeneration)
}

func TestGenerate_ReturnsModelOutputUnmodified(t *testing.T) {
	reply := "1. K-On!\n2. Naruto\n3. Death Note"
	var captured capturedRequest
	srv := httptest.NewServer(chatHandler(t, &captured, reply))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	out, err := c.Generate(context.Background(), "school anime", []string{"K-On!. Overview: a school music club."})
	require.NoError(t, err)
	assert.Equal(t, reply, out)
}

func TestGenerate_PromptCarriesContextAndQuery(t *testing.T) {
	var captured capturedRequest
	srv := httptest.NewServer(chatHandler(t, &captured, "ok"))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Generate(context.Background(), "light-hearted school anime",
		[]string{"K-On!. Overview: a school music club.", "Naruto. Overview: ninja training."})
	require.NoError(t, err)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "exactly three")
	assert.Contains(t, captured.Messages[0].Content, "only the information in the supplied context")
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Contains(t, captured.Messages[1].Content, "K-On!. Overview: a school music club.")
	assert.Contains(t, captured.Messages[1].Content, "Naruto. Overview: ninja training.")
	assert.True(t, strings.HasSuffix(captured.Messages[1].Content, "light-hearted school anime"))
	assert.Equal(t, "llama-3.1-8b-instant", captured.Model)
}

func TestGenerate_AuthFailureIsGenerationError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "invalid api key"}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Generate(context.Background(), "anything", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.Contains(t, err.Error(), "invalid api key")
	// Auth failures are not retried.
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerate_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		chatHandler(t, nil, "recovered")(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	out, err := c.Generate(context.Background(), "school anime", []string{"context"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerate_ExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Generate(context.Background(), "school anime", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeneration)
}

func TestNextDelay_RetryAfterReplacesBackoff(t *testing.T) {
	// A server-provided Retry-After is the whole wait, not an addition to
	// the exponential backoff.
	assert.Equal(t, 2*time.Second, nextDelay(0, 2*time.Second))
	assert.Equal(t, 2*time.Second, nextDelay(3, 2*time.Second))
	assert.Equal(t, retryDelay(0), nextDelay(0, 0))
	assert.Equal(t, retryDelay(2), nextDelay(2, 0))
}

func TestGenerate_RetryWaitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Generate(ctx, "school anime", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	// Cancellation must interrupt the Retry-After wait.
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGenerate_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background reader can observe the
		// client disconnect and cancel the request context.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Generate(ctx, "school anime", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeneration)
}
