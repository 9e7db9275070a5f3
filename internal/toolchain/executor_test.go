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

package toolchain

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// scriptedRouter returns a canned result per tool name and records every call.
type scriptedRouter struct {
	results map[string]ToolResult
	calls   []ToolCall
}

func (r *scriptedRouter) RouteToolCall(_ context.Context, call ToolCall) ToolResult {
	r.calls = append(r.calls, call)
	if result, ok := r.results[call.Name]; ok {
		return result
	}
	return ToolResult{IsSuccess: true, Content: "ok"}
}

func TestExecuteAllStepsSucceed(t *testing.T) {
	router := &scriptedRouter{results: map[string]ToolResult{
		"scan":   {IsSuccess: true, Content: "3 findings"},
		"harden": {IsSuccess: true, Content: "3 findings fixed"},
	}}
	executor := NewExecutor(router, zap.NewNop())

	result := executor.Execute(context.Background(), "conv-1", []Step{
		{StepNumber: 1, ToolName: "scan"},
		{StepNumber: 2, ToolName: "harden", DependsOnPrevious: true},
	})

	if result.Status != ChainCompleted {
		t.Errorf("Status = %q, want %q", result.Status, ChainCompleted)
	}
	for _, step := range result.Steps {
		if step.Status != StepCompleted {
			t.Errorf("step %d status = %q, want %q", step.StepNumber, step.Status, StepCompleted)
		}
	}
	if !strings.Contains(result.Summary, "2/2 steps completed") {
		t.Errorf("Summary = %q, want completion count", result.Summary)
	}
}

func TestExecutePropagatesPreviousResult(t *testing.T) {
	router := &scriptedRouter{results: map[string]ToolResult{
		"scan": {IsSuccess: true, Content: "3 findings"},
	}}
	executor := NewExecutor(router, zap.NewNop())

	executor.Execute(context.Background(), "conv-1", []Step{
		{StepNumber: 1, ToolName: "scan"},
		{StepNumber: 2, ToolName: "harden", DependsOnPrevious: true},
	})

	if len(router.calls) != 2 {
		t.Fatalf("router received %d calls, want 2", len(router.calls))
	}
	if got := router.calls[1].Arguments[PreviousResultKey]; got != "3 findings" {
		t.Errorf("dependent step previous result = %v, want %q", got, "3 findings")
	}
	if _, ok := router.calls[0].Arguments[PreviousResultKey]; ok {
		t.Error("first step should not receive a previous result")
	}
}

func TestExecuteDependentFailureAbortsChain(t *testing.T) {
	router := &scriptedRouter{results: map[string]ToolResult{
		"scan":   {IsSuccess: true, Content: "3 findings"},
		"harden": {IsSuccess: false, ErrorDetails: "permission denied"},
	}}
	executor := NewExecutor(router, zap.NewNop())

	result := executor.Execute(context.Background(), "conv-1", []Step{
		{StepNumber: 1, ToolName: "scan", Status: StepPending},
		{StepNumber: 2, ToolName: "harden", DependsOnPrevious: true, Status: StepPending},
		{StepNumber: 3, ToolName: "report", Status: StepPending},
	})

	if result.Status != ChainFailed {
		t.Errorf("Status = %q, want %q", result.Status, ChainFailed)
	}
	if len(router.calls) != 2 {
		t.Errorf("router received %d calls, want 2 (step 3 never runs)", len(router.calls))
	}
	if result.Steps[2].Status != StepPending {
		t.Errorf("step 3 status = %q, want %q", result.Steps[2].Status, StepPending)
	}
	if !strings.Contains(result.Summary, "aborted") {
		t.Errorf("Summary = %q, want abort note", result.Summary)
	}
}

func TestExecuteIndependentFailureIsPartialSuccess(t *testing.T) {
	router := &scriptedRouter{results: map[string]ToolResult{
		"scan": {IsSuccess: false, ErrorDetails: "scanner offline"},
	}}
	executor := NewExecutor(router, zap.NewNop())

	result := executor.Execute(context.Background(), "conv-1", []Step{
		{StepNumber: 1, ToolName: "scan"},
		{StepNumber: 2, ToolName: "report"},
	})

	if result.Status != ChainPartialSuccess {
		t.Errorf("Status = %q, want %q", result.Status, ChainPartialSuccess)
	}
	if len(router.calls) != 2 {
		t.Errorf("router received %d calls, want 2 (independent step still runs)", len(router.calls))
	}
	if result.Steps[0].ErrorMessage != "scanner offline" {
		t.Errorf("step 1 error = %q, want scanner offline", result.Steps[0].ErrorMessage)
	}
	if result.Steps[1].Status != StepCompleted {
		t.Errorf("step 2 status = %q, want %q", result.Steps[1].Status, StepCompleted)
	}
}

func TestExecuteDoesNotPropagateFailedResult(t *testing.T) {
	router := &scriptedRouter{results: map[string]ToolResult{
		"scan": {IsSuccess: false, ErrorDetails: "scanner offline"},
	}}
	executor := NewExecutor(router, zap.NewNop())

	// The second step does not depend on the first, so it runs, but a failed
	// predecessor must never leak a result into it.
	executor.Execute(context.Background(), "conv-1", []Step{
		{StepNumber: 1, ToolName: "scan"},
		{StepNumber: 2, ToolName: "report"},
	})

	if _, ok := router.calls[1].Arguments[PreviousResultKey]; ok {
		t.Error("failed step result leaked into the next step")
	}
}

func TestExecuteInjectsConversationID(t *testing.T) {
	router := &scriptedRouter{}
	executor := NewExecutor(router, zap.NewNop())

	executor.Execute(context.Background(), "conv-42", []Step{
		{StepNumber: 1, ToolName: "scan"},
	})

	if got := router.calls[0].Arguments["conversationId"]; got != "conv-42" {
		t.Errorf("conversationId = %v, want conv-42", got)
	}
}

func TestInjectConversationID(t *testing.T) {
	tests := []struct {
		name           string
		args           map[string]any
		conversationID string
		want           any
	}{
		{
			name:           "missing key is filled",
			args:           map[string]any{},
			conversationID: "conv-1",
			want:           "conv-1",
		},
		{
			name:           "explicit value is preserved",
			args:           map[string]any{"conversationId": "conv-keep"},
			conversationID: "conv-1",
			want:           "conv-keep",
		},
		{
			name:           "angle placeholder is replaced",
			args:           map[string]any{"conversationId": "<from_context>"},
			conversationID: "conv-1",
			want:           "conv-1",
		},
		{
			name:           "template placeholder is replaced",
			args:           map[string]any{"conversationId": "{{conversation_id}}"},
			conversationID: "conv-1",
			want:           "conv-1",
		},
		{
			name:           "empty string is replaced",
			args:           map[string]any{"conversationId": ""},
			conversationID: "conv-1",
			want:           "conv-1",
		},
		{
			name:           "empty conversation id leaves args alone",
			args:           map[string]any{"conversationId": "<from_context>"},
			conversationID: "",
			want:           "<from_context>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InjectConversationID(tt.args, tt.conversationID)
			if got := tt.args["conversationId"]; got != tt.want {
				t.Errorf("conversationId = %v, want %v", got, tt.want)
			}
		})
	}
}
