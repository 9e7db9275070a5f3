// Copyright 2025 Platform Engineering Copilot Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm wraps the completion endpoint behind a retrying, rate-limited
// client. Rate-limit errors are retried with exponential backoff; anything
// that exhausts the retry budget surfaces to the caller, which is expected
// to degrade to a deterministic path rather than fail the turn.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// MaxRetries is the number of attempts made for retryable errors.
	MaxRetries = 3
	// BaseRetryDelay is the first backoff wait; it doubles per attempt.
	BaseRetryDelay = 2 * time.Second
	// MaxRetryDelay caps a single backoff wait to bound end-to-end latency
	// under sustained rate limiting.
	MaxRetryDelay = 10 * time.Second
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o"
)

// retryAfterPattern extracts a server-suggested delay embedded in rate-limit
// error text, e.g. "Please retry after 4 seconds".
var retryAfterPattern = regexp.MustCompile(`(?i)retry.{0,20}?(\d+(?:\.\d+)?)\s*s`)

// RetryableError is a transient completion-endpoint failure. RetryAfter is
// zero when the server did not suggest a delay.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable completion error (status %d): %s", e.StatusCode, e.Message)
}

// Message is one turn of a structured conversation sent to the endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Settings are optional execution settings for a completion call.
type Settings struct {
	Temperature float32
	MaxTokens   int
	JSONMode    bool
}

// Config configures the completion client.
type Config struct {
	APIKey             string
	Endpoint           string
	Model              string
	RequestsPerSecond  float64
	MaxConcurrentBurst int
}

// Client is a retrying, rate-limited completion client.
type Client struct {
	api     *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a completion client. An empty endpoint targets the
// default OpenAI API.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("completion API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.MaxConcurrentBurst
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}

	logger.Info("Completion client initialized",
		zap.String("model", model),
		zap.Float64("requests_per_second", rps),
		zap.Int("max_retries", MaxRetries))

	return &Client{
		api:     openai.NewClientWithConfig(clientConfig),
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}, nil
}

// CreateCompletion sends the conversation to the endpoint and returns the
// raw text content. Rate-limit and server errors are retried with capped
// exponential backoff; the context is checked before every wait and attempt.
func (c *Client) CreateCompletion(ctx context.Context, messages []Message, settings Settings) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, msg := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}
	if settings.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var lastErr error
	delay := BaseRetryDelay

	for attempt := 1; attempt <= MaxRetries; attempt++ {
		if attempt > 1 {
			c.logger.Warn("Retrying completion request",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", MaxRetries),
				zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = classifyAPIError(err)

			retryErr, ok := lastErr.(*RetryableError)
			if !ok {
				return "", lastErr
			}

			if retryErr.RetryAfter > 0 {
				delay = retryErr.RetryAfter
			} else {
				delay = BaseRetryDelay * time.Duration(1<<uint(attempt-1))
			}
			if delay > MaxRetryDelay {
				delay = MaxRetryDelay
			}
			continue
		}

		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("completion endpoint returned no choices")
		}

		if attempt > 1 {
			c.logger.Info("Completion succeeded after retry", zap.Int("attempt", attempt))
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("exhausted %d completion attempts: %w", MaxRetries, lastErr)
}

// classifyAPIError decides whether an endpoint failure is retryable and
// pulls any server-suggested delay out of the error text.
func classifyAPIError(err error) error {
	apiErr, ok := err.(*openai.APIError)
	if !ok {
		return fmt.Errorf("completion endpoint error: %w", err)
	}

	switch apiErr.HTTPStatusCode {
	case http.StatusTooManyRequests:
		return &RetryableError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			RetryAfter: ParseRetryAfter(apiErr.Message),
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &RetryableError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
		}
	default:
		return fmt.Errorf("completion endpoint error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
}

// ParseRetryAfter extracts a suggested retry delay from rate-limit error
// text, capped at MaxRetryDelay. Returns zero when no delay is present.
func ParseRetryAfter(message string) time.Duration {
	m := retryAfterPattern.FindStringSubmatch(message)
	if m == nil {
		return 0
	}

	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil || seconds <= 0 {
		return 0
	}

	delay := time.Duration(seconds * float64(time.Second))
	if delay > MaxRetryDelay {
		delay = MaxRetryDelay
	}
	return delay
}
