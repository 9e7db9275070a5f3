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

// Package health aggregates dependency probes for the copilot service.
package health

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// Dependency statuses. A degraded dependency keeps the service
// reporting 200: the copilot can still answer with its deterministic
// classifiers when the LLM or provisioner is unreachable.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// DefaultTimeout bounds one full probe round.
const DefaultTimeout = 5 * time.Second

// CheckResult is the outcome of probing one dependency.
type CheckResult struct {
	Status  string         `json:"status"`
	Latency time.Duration  `json:"latency"`
	Error   string         `json:"error,omitempty"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// Report is the aggregate health of the service and its dependencies.
type Report struct {
	Status       string                 `json:"status"`
	Service      string                 `json:"service"`
	Version      string                 `json:"version"`
	Uptime       time.Duration          `json:"uptime"`
	Dependencies map[string]CheckResult `json:"dependencies,omitempty"`
	Runtime      map[string]any         `json:"runtime"`
	Timestamp    time.Time              `json:"timestamp"`
}

// HTTPStatus maps the aggregate status onto a response code. Degraded
// stays 200 so load balancers keep routing while a soft dependency is
// down.
func (r Report) HTTPStatus() int {
	if r.Status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Checker probes one dependency.
type Checker func(ctx context.Context) CheckResult

// Manager runs registered dependency probes and aggregates the result.
type Manager struct {
	service   string
	version   string
	startTime time.Time
	timeout   time.Duration
	checkers  map[string]Checker
}

// NewManager creates a manager for the named service.
func NewManager(service, version string) *Manager {
	return &Manager{
		service:   service,
		version:   version,
		startTime: time.Now(),
		timeout:   DefaultTimeout,
		checkers:  make(map[string]Checker),
	}
}

// Register adds a named dependency probe.
func (m *Manager) Register(name string, checker Checker) {
	m.checkers[name] = checker
}

// Check runs every probe and aggregates: any unhealthy dependency makes
// the service unhealthy, any degraded one makes it degraded.
func (m *Manager) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	dependencies := make(map[string]CheckResult, len(m.checkers))
	overall := StatusHealthy

	for name, checker := range m.checkers {
		start := time.Now()
		result := checker(ctx)
		result.Latency = time.Since(start)
		dependencies[name] = result

		switch result.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall != StatusUnhealthy {
				overall = StatusDegraded
			}
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return Report{
		Status:       overall,
		Service:      m.service,
		Version:      m.version,
		Uptime:       time.Since(m.startTime),
		Dependencies: dependencies,
		Runtime: map[string]any{
			"go_version":   runtime.Version(),
			"goroutines":   runtime.NumGoroutine(),
			"memory_alloc": memStats.Alloc,
		},
		Timestamp: time.Now(),
	}
}

// Pinger is the probe surface of the storage backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseChecker probes a storage backend. A failed ping is
// unhealthy: classification history and pattern state live there.
func DatabaseChecker(name string, pinger Pinger) Checker {
	return func(ctx context.Context) CheckResult {
		if err := pinger.Ping(ctx); err != nil {
			return CheckResult{
				Status: StatusUnhealthy,
				Error:  fmt.Sprintf("%s ping failed: %v", name, err),
			}
		}
		return CheckResult{
			Status: StatusHealthy,
			Detail: map[string]any{"backend": name},
		}
	}
}

// EndpointChecker probes an HTTP dependency. Failures report degraded,
// not unhealthy: the chat pipeline has deterministic fallbacks for
// every outbound endpoint.
func EndpointChecker(url string, client *http.Client) Checker {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	return func(ctx context.Context) CheckResult {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return CheckResult{
				Status: StatusDegraded,
				Error:  fmt.Sprintf("invalid endpoint: %v", err),
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			return CheckResult{
				Status: StatusDegraded,
				Error:  fmt.Sprintf("request failed: %v", err),
				Detail: map[string]any{"url": url},
			}
		}
		defer resp.Body.Close()

		status := StatusHealthy
		if resp.StatusCode >= 500 {
			status = StatusDegraded
		}
		return CheckResult{
			Status: status,
			Detail: map[string]any{"url": url, "status_code": resp.StatusCode},
		}
	}
}
