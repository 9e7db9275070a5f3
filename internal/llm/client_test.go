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

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    time.Duration
	}{
		{
			name:    "whole seconds",
			message: "Rate limit exceeded. Please retry after 4 seconds.",
			want:    4 * time.Second,
		},
		{
			name:    "fractional seconds",
			message: "Please retry in 1.5s",
			want:    1500 * time.Millisecond,
		},
		{
			name:    "case insensitive",
			message: "RETRY AFTER 2 SECONDS",
			want:    2 * time.Second,
		},
		{
			name:    "capped at max delay",
			message: "retry after 600 seconds",
			want:    MaxRetryDelay,
		},
		{
			name:    "no delay in message",
			message: "rate limit exceeded",
			want:    0,
		},
		{
			name:    "zero seconds ignored",
			message: "retry after 0 seconds",
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseRetryAfter(tt.message); got != tt.want {
				t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}

func TestClassifyAPIError(t *testing.T) {
	rateLimited := classifyAPIError(&openai.APIError{
		HTTPStatusCode: http.StatusTooManyRequests,
		Message:        "Please retry after 3 seconds.",
	})
	var retryErr *RetryableError
	if !errors.As(rateLimited, &retryErr) {
		t.Fatalf("429 classified as %T, want RetryableError", rateLimited)
	}
	if retryErr.RetryAfter != 3*time.Second {
		t.Errorf("RetryAfter = %v, want 3s", retryErr.RetryAfter)
	}

	serverErr := classifyAPIError(&openai.APIError{
		HTTPStatusCode: http.StatusServiceUnavailable,
		Message:        "upstream overloaded",
	})
	if !errors.As(serverErr, &retryErr) {
		t.Fatalf("503 classified as %T, want RetryableError", serverErr)
	}
	if retryErr.RetryAfter != 0 {
		t.Errorf("503 RetryAfter = %v, want 0", retryErr.RetryAfter)
	}

	badRequest := classifyAPIError(&openai.APIError{
		HTTPStatusCode: http.StatusBadRequest,
		Message:        "model not found",
	})
	if errors.As(badRequest, &retryErr) {
		t.Errorf("400 classified as retryable: %v", badRequest)
	}
	if !strings.Contains(badRequest.Error(), "model not found") {
		t.Errorf("400 error = %q, want endpoint message", badRequest)
	}

	plain := classifyAPIError(fmt.Errorf("connection refused"))
	if errors.As(plain, &retryErr) {
		t.Errorf("transport error classified as retryable: %v", plain)
	}
}

func TestRetryableErrorMessage(t *testing.T) {
	err := &RetryableError{StatusCode: 429, Message: "slow down"}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "slow down") {
		t.Errorf("Error() = %q", err.Error())
	}
}

// newEndpointClient points a client at a local test server with rate
// limiting effectively disabled.
func newEndpointClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		APIKey:             "test-key",
		Endpoint:           baseURL + "/v1",
		RequestsPerSecond:  1000,
		MaxConcurrentBurst: 10,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestCreateCompletionExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"Please retry after 0.05 seconds.","type":"tokens"}}`)
	}))
	defer server.Close()

	client := newEndpointClient(t, server.URL)

	_, err := client.CreateCompletion(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Settings{})
	if err == nil {
		t.Fatal("sustained rate limiting did not surface an error")
	}
	if got := attempts.Load(); got != MaxRetries {
		t.Errorf("endpoint called %d times, want %d", got, MaxRetries)
	}
	if !strings.Contains(err.Error(), fmt.Sprintf("exhausted %d completion attempts", MaxRetries)) {
		t.Errorf("error = %q, want exhaustion message", err)
	}
	var retryErr *RetryableError
	if !errors.As(err, &retryErr) {
		t.Errorf("exhaustion error does not wrap the last retryable failure: %v", err)
	}
}

func TestCreateCompletionRecoversAfterRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"Please retry after 0.05 seconds.","type":"tokens"}}`)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`)
	}))
	defer server.Close()

	client := newEndpointClient(t, server.URL)

	content, err := client.CreateCompletion(context.Background(), []Message{{Role: RoleUser, Content: "ping"}}, Settings{})
	if err != nil {
		t.Fatalf("CreateCompletion returned error: %v", err)
	}
	if content != "pong" {
		t.Errorf("content = %q, want pong", content)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("endpoint called %d times, want 3", got)
	}
}

func TestCreateCompletionStopsOnNonRetryable(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"model not found","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	client := newEndpointClient(t, server.URL)

	_, err := client.CreateCompletion(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Settings{})
	if err == nil {
		t.Fatal("bad request did not surface an error")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("endpoint called %d times, want 1 (no retries on 400)", got)
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("error = %q, want endpoint message", err)
	}
}

func TestCreateCompletionHonorsContextDuringBackoff(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		// No suggested delay, so the client falls back to its 2s base
		// backoff and must bail out on the context instead.
		fmt.Fprint(w, `{"error":{"message":"rate limit exceeded","type":"tokens"}}`)
	}))
	defer server.Close()

	client := newEndpointClient(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.CreateCompletion(ctx, []Message{{Role: RoleUser, Content: "hi"}}, Settings{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context deadline", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v, want prompt exit from backoff", elapsed)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("endpoint called %d times, want 1", got)
	}
}

func TestNewClientValidation(t *testing.T) {
	logger := zap.NewNop()

	if _, err := NewClient(Config{}, logger); err == nil {
		t.Error("NewClient accepted an empty API key")
	}

	client, err := NewClient(Config{APIKey: "test-key"}, logger)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if client.model != DefaultModel {
		t.Errorf("model = %q, want default %q", client.model, DefaultModel)
	}

	client, err = NewClient(Config{APIKey: "test-key", Model: "gpt-4o-mini", RequestsPerSecond: 2}, logger)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if client.model != "gpt-4o-mini" {
		t.Errorf("model = %q", client.model)
	}
}
