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
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Executor runs tool chains strictly sequentially, propagating prior-step
// results into dependent steps and tracking partial success.
type Executor struct {
	router Router
	logger *zap.Logger
}

// NewExecutor creates a chain executor dispatching through the given router.
func NewExecutor(router Router, logger *zap.Logger) *Executor {
	return &Executor{
		router: router,
		logger: logger,
	}
}

// Execute runs the steps in order. A failing step aborts the chain only when
// that step depends on its predecessor; independent failures allow later
// steps to proceed and yield a partial_success chain status.
func (e *Executor) Execute(ctx context.Context, conversationID string, steps []Step) *ChainResult {
	result := &ChainResult{
		Status: ChainRunning,
		Steps:  make([]Step, len(steps)),
	}
	copy(result.Steps, steps)

	chainStart := time.Now()
	failedSteps := 0
	aborted := false

	var previousResult string
	var previousSucceeded bool

	for i := range result.Steps {
		step := &result.Steps[i]

		if aborted {
			break
		}

		if step.Parameters == nil {
			step.Parameters = make(map[string]any)
		}
		if step.DependsOnPrevious && previousSucceeded && previousResult != "" {
			step.Parameters[PreviousResultKey] = previousResult
		}

		InjectConversationID(step.Parameters, conversationID)

		step.Status = StepRunning
		stepStart := time.Now()

		e.logger.Debug("Executing chain step",
			zap.Int("step", step.StepNumber),
			zap.String("tool", step.ToolName),
			zap.String("action", step.Action),
			zap.Bool("depends_on_previous", step.DependsOnPrevious))

		toolResult := e.router.RouteToolCall(ctx, ToolCall{
			Name:      step.ToolName,
			Arguments: step.Parameters,
			RequestID: uuid.NewString(),
		})

		step.Duration = time.Since(stepStart)

		if !toolResult.IsSuccess {
			step.Status = StepFailed
			step.ErrorMessage = toolResult.ErrorDetails
			failedSteps++
			previousSucceeded = false
			previousResult = ""

			e.logger.Warn("Chain step failed",
				zap.Int("step", step.StepNumber),
				zap.String("tool", step.ToolName),
				zap.String("error", step.ErrorMessage))

			// A dependent step failing breaks everything after it.
			if step.DependsOnPrevious {
				aborted = true
			}
			continue
		}

		step.Status = StepCompleted
		step.Result = toolResult.Content
		previousResult = toolResult.Content
		previousSucceeded = true
	}

	result.TotalDuration = time.Since(chainStart)

	switch {
	case aborted:
		result.Status = ChainFailed
	case failedSteps == 0:
		result.Status = ChainCompleted
	default:
		result.Status = ChainPartialSuccess
	}

	result.Summary = summarize(result)

	e.logger.Info("Tool chain finished",
		zap.String("status", string(result.Status)),
		zap.Int("steps", len(result.Steps)),
		zap.Int("failed_steps", failedSteps),
		zap.Duration("total_duration", result.TotalDuration))

	return result
}

// summarize builds a human-readable account of the chain outcome.
func summarize(result *ChainResult) string {
	completed := 0
	var failures []string
	for _, step := range result.Steps {
		switch step.Status {
		case StepCompleted:
			completed++
		case StepFailed:
			failures = append(failures, fmt.Sprintf("step %d (%s): %s", step.StepNumber, step.ToolName, step.ErrorMessage))
		}
	}

	summary := fmt.Sprintf("%d/%d steps completed", completed, len(result.Steps))
	if len(failures) > 0 {
		summary += "; failures: " + strings.Join(failures, "; ")
	}
	if result.Status == ChainFailed {
		summary += " (chain aborted on dependent step failure)"
	}
	return summary
}

// InjectConversationID resolves the conversation ID into tool arguments,
// replacing placeholder values left by the planner. Stateless tool plugins
// gain conversation continuity through this key.
func InjectConversationID(args map[string]any, conversationID string) {
	if conversationID == "" {
		return
	}

	current, ok := args["conversationId"].(string)
	if !ok || current == "" || isPlaceholder(current) {
		args["conversationId"] = conversationID
	}
}

// isPlaceholder detects planner placeholder values such as "<from_context>"
// or unresolved template braces.
func isPlaceholder(value string) bool {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "<") && strings.HasSuffix(trimmed, ">") {
		return true
	}
	return strings.Contains(trimmed, "{{") || strings.Contains(trimmed, "}}")
}
