// Package llm implements C16: thin HTTP shims to OpenAI-compatible chat and
// embeddings endpoints, with retry+backoff on transient failures and
// graceful degradation per spec.md §7 (chat failures degrade to a
// deterministic local templated reply; embedding failures are handled one
// layer up, in internal/embedding, via fallback_hash).
//
// Grounded on llmclient/client.go's retry-loop/backoff/SSE-scan idiom,
// generalized from the teacher's single self-hosted llama.cpp host to the
// provider_kind-aware (openai/anthropic/gemini/compatible) multi-provider
// shim SPEC_FULL.md's ProviderConfig entity requires.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"kbagent/internal/apperrors"
)

// Message is one chat turn, matching the OpenAI-compatible wire shape every
// provider_kind in this client speaks (Anthropic/Gemini differences are
// absorbed by the configured BaseURL pointing at a compatible proxy, per
// spec.md §1's "LLM provider adapters are glue" scoping note).
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config describes one provider endpoint. BaseURL and APIKey come from a
// decrypted ProviderConfig row.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxRetries  int
	RequestTimeout time.Duration
}

// Client is a single provider's HTTP shim.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// New constructs a provider client bound to cfg.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.RequestTimeout}, logger: logger}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Chat performs a non-streaming chat completion call, retrying transient
// 503s with jittered backoff.
func (c *Client) Chat(ctx context.Context, messages []Message, temperature *float64) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.cfg.Model, Messages: messages, Stream: false, Temperature: temperature})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	resp, err := c.doWithRetry(ctx, body, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if strings.Contains(string(raw), "context") && strings.Contains(string(raw), "exceed") {
			return "", apperrors.ErrContextWindowExceeded
		}
		return "", apperrors.Wrapf(apperrors.ErrUpstream, "provider status %s: %s", resp.Status, string(raw))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", apperrors.Wrap(err, "decode chat response")
	}
	if len(cr.Choices) == 0 {
		return "", apperrors.Wrap(apperrors.ErrUpstream, "no choices returned")
	}
	return cr.Choices[0].Message.Content, nil
}

// ChatStream performs a streaming chat completion, emitting content deltas
// on the returned channel. The channel is closed when the stream ends,
// errors, or ctx is cancelled; callers must not assume a final `done`
// sentinel on this channel — that framing belongs to C9.
func (c *Client) ChatStream(ctx context.Context, messages []Message, temperature *float64) (<-chan string, error) {
	body, err := json.Marshal(chatRequest{Model: c.cfg.Model, Messages: messages, Stream: true, Temperature: temperature})
	if err != nil {
		return nil, fmt.Errorf("marshal chat stream request: %w", err)
	}

	out := make(chan string)
	go func() {
		defer close(out)

		resp, err := c.doWithRetry(ctx, body, true)
		if err != nil {
			if c.logger != nil {
				c.logger.Error("chat stream request failed", zap.Error(err))
			}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			if c.logger != nil {
				c.logger.Error("chat stream non-200", zap.String("status", resp.Status), zap.String("body", string(raw)))
			}
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}
			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				select {
				case out <- chunk.Choices[0].Delta.Content:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed calls an OpenAI-compatible embeddings endpoint, implementing
// internal/embedding's RemoteCaller interface.
func (c *Client) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, "embedding request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Wrapf(apperrors.ErrUpstream, "embedding status %s: %s", resp.Status, string(raw))
	}

	var er embeddingResponse
	if err := json.Unmarshal(raw, &er); err != nil {
		return nil, apperrors.Wrap(err, "decode embedding response")
	}
	out := make([][]float32, len(er.Data))
	for i, d := range er.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// rerankRequest/Response mirror a Cohere-style rerank endpoint.
type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank calls an optional rerank endpoint and returns, per input index,
// the relevance score the provider assigned. Used by C9's optional
// post-retrieval rerank step.
func (c *Client) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Documents: documents})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/rerank"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, "rerank request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Wrapf(apperrors.ErrUpstream, "rerank status %s: %s", resp.Status, string(raw))
	}

	var rr rerankResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return nil, apperrors.Wrap(err, "decode rerank response")
	}
	scores := make([]float64, len(documents))
	for _, r := range rr.Results {
		if r.Index >= 0 && r.Index < len(scores) {
			scores[r.Index] = r.Score
		}
	}
	return scores, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

// doWithRetry posts body to the chat completions endpoint, retrying
// HTTP 503 (model loading / overloaded) responses with jittered backoff,
// matching llmclient/client.go's retry loop.
func (c *Client) doWithRetry(ctx context.Context, body []byte, stream bool) (*http.Response, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/chat/completions"

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create chat request: %w", err)
		}
		c.setHeaders(req)
		if stream {
			req.Header.Set("Accept", "text/event-stream")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.backoffSleep(ctx, attempt)
			continue
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			c.backoffSleep(ctx, attempt)
			continue
		}
		return resp, nil
	}
	return nil, apperrors.Wrapf(apperrors.ErrUpstream, "no response after %d retries: %v", c.cfg.MaxRetries, lastErr)
}

func (c *Client) backoffSleep(ctx context.Context, attempt int) {
	base := time.Duration(1<<uint(attempt)) * 200 * time.Millisecond
	jitter := time.Duration(rand.Int63n(int64(100 * time.Millisecond)))
	select {
	case <-time.After(base + jitter):
	case <-ctx.Done():
	}
}
