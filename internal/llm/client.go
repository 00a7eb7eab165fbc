// Package llm talks to an OpenAI-compatible chat completion API (Groq by default)
// to classify and summarize user text.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"opinara/internal/middleware"
	"opinara/internal/observability"

	"github.com/cenkalti/backoff/v5"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// ErrMalformedResponse means the model answered with something that is not a
// valid classification. It is never retried and never defaulted to a score.
var ErrMalformedResponse = errors.New("malformed classifier response")

// zeroTemperature asks for deterministic output. go-openai drops a literal 0
// from the request body, which the API would read as its default of 1.
const zeroTemperature = math.SmallestNonzeroFloat32

// Config configures the client.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerSecond float64
	MaxRetries        int
	// InitialBackoff is the first retry delay; it doubles per attempt.
	InitialBackoff time.Duration
	HTTPClient     *http.Client
}

// Classification is one classifier verdict on one text.
type Classification struct {
	Score  float64 `json:"score"`
	Label  string  `json:"label"`
	Reason string  `json:"reason"`
}

// Client is safe for concurrent use.
type Client struct {
	api            *openai.Client
	model          string
	limiter        *rate.Limiter
	maxRetries     int
	initialBackoff time.Duration
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		apiCfg.HTTPClient = cfg.HTTPClient
	} else {
		apiCfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = 250 * time.Millisecond
	}

	return &Client{
		api:            openai.NewClientWithConfig(apiCfg),
		model:          cfg.Model,
		limiter:        rate.NewLimiter(limit, 4),
		maxRetries:     retries,
		initialBackoff: initial,
	}
}

// Classify sends text under the system prompt and parses a
// {"score","label","reason"} verdict.
func (c *Client) Classify(ctx context.Context, prompt, text string) (Classification, error) {
	content, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: zeroTemperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Classification{}, err
	}
	return ParseClassification(content)
}

// Summarize returns a short plain-text summary of text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	content, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summaryPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Summarize this: " + text},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(content)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", ErrMalformedResponse)
	}
	return summary, nil
}

// complete runs one chat completion with throttling and bounded retries on
// transient failures.
func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = 5 * time.Second

	attempt := func() (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", backoff.Permanent(err)
		}
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			if isRetryable(ctx, err) {
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return "", backoff.Permanent(fmt.Errorf("%w: no choices", ErrMalformedResponse))
		}
		return resp.Choices[0].Message.Content, nil
	}

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			observability.ClassifierRetries.Inc()
			middleware.Logger.WarnContext(ctx, "llm request failed, retrying",
				slog.String("error", err.Error()), slog.Duration("wait", wait))
		}),
	)
}

// isRetryable reports whether err is worth another attempt: rate limiting,
// server-side failures, and network errors while ctx is still live.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// ParseClassification decodes a model answer. Surrounding whitespace and a
// markdown code fence are tolerated; anything else that is not a JSON object
// with a numeric score in [0, 100] is ErrMalformedResponse.
func ParseClassification(content string) (Classification, error) {
	body := strings.TrimSpace(content)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	var raw struct {
		Score  *float64 `json:"score"`
		Label  string   `json:"label"`
		Reason string   `json:"reason"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if raw.Score == nil {
		return Classification{}, fmt.Errorf("%w: missing score", ErrMalformedResponse)
	}
	if *raw.Score < 0 || *raw.Score > 100 || math.IsNaN(*raw.Score) {
		return Classification{}, fmt.Errorf("%w: score %v out of range", ErrMalformedResponse, *raw.Score)
	}
	return Classification{Score: *raw.Score, Label: raw.Label, Reason: raw.Reason}, nil
}
