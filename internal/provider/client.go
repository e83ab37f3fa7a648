// Package provider implements the HTTP client for the chat-completion
// service. The client is rate-limited on the caller side; resilience
// (retries, breakers, timeouts) is layered on top by the recovery facade,
// which treats Complete as an opaque operation.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jstrand/chatctl/internal/config"
	"github.com/jstrand/chatctl/internal/metrics"
)

const completionsPath = "/v1/chat/completions"

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the decoded result of a chat-completion request.
type Completion struct {
	Model        string
	Content      string
	FinishReason string
}

// APIError is a non-2xx response from the provider. The status code lets
// callers pick a strategy (e.g. retry 429/5xx, give up on 4xx).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

// Client calls the chat-completion service. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	httpc   *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Client from config.
func New(cfg config.ProviderConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpc:   &http.Client{Timeout: cfg.Timeout()},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		logger:  logger,
	}
}

// UpdateRateLimit applies new limiter settings, e.g. on config hot-reload.
func (c *Client) UpdateRateLimit(requestsPerSecond float64, burst int) {
	c.limiter.SetLimit(rate.Limit(requestsPerSecond))
	c.limiter.SetBurst(burst)
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends messages to the provider and returns the first choice.
// It waits on the client-side rate limiter before sending.
func (c *Client) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(completionRequest{Model: c.model, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	metrics.ProviderRequestDuration.WithLabelValues(c.model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(c.model, "transport_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	metrics.ProviderRequestsTotal.WithLabelValues(c.model, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: upstreamMessage(data)}
	}

	var decoded completionResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	choice := decoded.Choices[0]
	c.logger.Debug("completion received",
		"model", decoded.Model,
		"finish_reason", choice.FinishReason,
		"bytes", len(data),
	)

	return &Completion{
		Model:        decoded.Model,
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
	}, nil
}

// upstreamMessage extracts the provider's error message from an error body,
// falling back to the raw body trimmed to a reasonable length.
func upstreamMessage(data []byte) string {
	var decoded completionResponse
	if err := json.Unmarshal(data, &decoded); err == nil && decoded.Error != nil && decoded.Error.Message != "" {
		return decoded.Error.Message
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
