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

// Package toolchain defines the tool-routing contract and executes ordered,
// dependency-aware sequences of tool invocations.
package toolchain

import (
	"context"
	"time"
)

// StepStatus is the lifecycle state of a single chain step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// ChainStatus is the lifecycle state of a whole chain.
type ChainStatus string

const (
	ChainRunning        ChainStatus = "running"
	ChainCompleted      ChainStatus = "completed"
	ChainPartialSuccess ChainStatus = "partial_success"
	ChainFailed         ChainStatus = "failed"
)

// PreviousResultKey is the reserved parameter key under which a dependent
// step receives the result of the step before it.
const PreviousResultKey = "_previousStepResult"

// Step is one planned tool invocation inside a chain.
type Step struct {
	StepNumber        int            `json:"step_number"`
	ToolName          string         `json:"tool_name"`
	Action            string         `json:"action"`
	Parameters        map[string]any `json:"parameters"`
	DependsOnPrevious bool           `json:"depends_on_previous"`
	Status            StepStatus     `json:"status"`
	Result            string         `json:"result,omitempty"`
	ErrorMessage      string         `json:"error_message,omitempty"`
	Duration          time.Duration  `json:"duration"`
}

// ChainResult is the terminal record of a chain execution with granular
// per-step status.
type ChainResult struct {
	Status        ChainStatus   `json:"status"`
	Steps         []Step        `json:"steps"`
	TotalDuration time.Duration `json:"total_duration"`
	Summary       string        `json:"summary"`
}

// ToolCall is a routed tool invocation.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	RequestID string         `json:"request_id"`
}

// TemplateResult is the structured payload produced by template-generating
// tools. Formatters match on this variant instead of probing opaque result
// shapes at runtime.
type TemplateResult struct {
	Format       string            `json:"format"`
	ResourceType string            `json:"resource_type"`
	MainFilePath string            `json:"main_file_path"`
	Files        map[string]string `json:"files"`
}

// ToolResult is the outcome of a routed tool invocation.
type ToolResult struct {
	IsSuccess    bool            `json:"is_success"`
	Content      string          `json:"content"`
	ErrorDetails string          `json:"error_details,omitempty"`
	Template     *TemplateResult `json:"template,omitempty"`
}

// Router dispatches tool calls to their plugin implementations.
type Router interface {
	RouteToolCall(ctx context.Context, call ToolCall) ToolResult
}
