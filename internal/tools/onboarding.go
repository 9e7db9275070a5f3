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

package tools

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/conversation"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/toolchain"
)

// FlankspeedWorkflow is the active-workflow marker for mission
// onboarding. Messages arriving while it is set are routed straight to
// the onboarding tools instead of being reclassified.
const FlankspeedWorkflow = "flankspeed_onboarding"

// onboardingFields are the facts onboarding collects, in the order they
// are asked for.
var onboardingFields = []struct {
	Key    string
	Prompt string
}{
	{"missionName", "What is the name of the mission or program being onboarded?"},
	{"userEmail", "What is the mission owner's email address?"},
	{"impactLevel", "What impact level does the mission operate at (IL2, IL4 or IL5)?"},
}

// OnboardingStartTool begins the Flank Speed mission onboarding
// workflow on a conversation.
type OnboardingStartTool struct {
	conversations conversation.Store
	logger        *zap.Logger
}

// NewOnboardingStartTool creates the flankspeed_start_onboarding plugin.
func NewOnboardingStartTool(conversations conversation.Store, logger *zap.Logger) *OnboardingStartTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnboardingStartTool{conversations: conversations, logger: logger}
}

func (t *OnboardingStartTool) Name() string { return "flankspeed_start_onboarding" }

func (t *OnboardingStartTool) Description() string {
	return "Starts the Flank Speed mission onboarding workflow and collects required mission details"
}

func (t *OnboardingStartTool) Execute(ctx context.Context, args map[string]any) toolchain.ToolResult {
	conversationID := stringArg(args, "conversationId", "conversation_id")
	if conversationID == "" {
		return failure("missing required parameter conversationId")
	}

	if err := t.conversations.SetActiveWorkflow(ctx, conversationID, FlankspeedWorkflow); err != nil {
		return failure("failed to start onboarding workflow: %v", err)
	}

	// Seed any details the user already supplied in the opening message.
	stored, err := storeProvidedFields(ctx, t.conversations, conversationID, args)
	if err != nil {
		return failure("failed to record onboarding details: %v", err)
	}

	t.logger.Info("onboarding workflow started",
		zap.String("conversationId", conversationID),
		zap.Strings("seededFields", stored))

	missing := missingFieldsFor(ctx, t.conversations, conversationID)
	if len(missing) == 0 {
		return completeOnboarding(ctx, t.conversations, conversationID)
	}

	return toolchain.ToolResult{
		IsSuccess: true,
		Content:   "Starting Flank Speed mission onboarding. " + missing[0].Prompt,
	}
}

// OnboardingInfoTool records answers during an active onboarding
// workflow and closes the workflow when everything is collected.
type OnboardingInfoTool struct {
	conversations conversation.Store
	logger        *zap.Logger
}

// NewOnboardingInfoTool creates the flankspeed_provide_info plugin.
func NewOnboardingInfoTool(conversations conversation.Store, logger *zap.Logger) *OnboardingInfoTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnboardingInfoTool{conversations: conversations, logger: logger}
}

func (t *OnboardingInfoTool) Name() string { return "flankspeed_provide_info" }

func (t *OnboardingInfoTool) Description() string {
	return "Records mission details supplied during an active Flank Speed onboarding workflow"
}

func (t *OnboardingInfoTool) Execute(ctx context.Context, args map[string]any) toolchain.ToolResult {
	conversationID := stringArg(args, "conversationId", "conversation_id")
	if conversationID == "" {
		return failure("missing required parameter conversationId")
	}

	stored, err := storeProvidedFields(ctx, t.conversations, conversationID, args)
	if err != nil {
		return failure("failed to record onboarding details: %v", err)
	}

	// A free-text answer with no recognized field is treated as the
	// answer to the first outstanding question.
	if len(stored) == 0 {
		if input := stringArg(args, "userInput", "user_input"); input != "" {
			missing := missingFieldsFor(ctx, t.conversations, conversationID)
			if len(missing) > 0 {
				if err := t.conversations.SetWorkflowState(ctx, conversationID, missing[0].Key, strings.TrimSpace(input)); err != nil {
					return failure("failed to record onboarding details: %v", err)
				}
				stored = append(stored, missing[0].Key)
			}
		}
	}

	t.logger.Debug("onboarding details recorded",
		zap.String("conversationId", conversationID),
		zap.Strings("fields", stored))

	missing := missingFieldsFor(ctx, t.conversations, conversationID)
	if len(missing) == 0 {
		return completeOnboarding(ctx, t.conversations, conversationID)
	}

	return toolchain.ToolResult{IsSuccess: true, Content: missing[0].Prompt}
}

func storeProvidedFields(ctx context.Context, conversations conversation.Store, conversationID string, args map[string]any) ([]string, error) {
	var stored []string
	for _, field := range onboardingFields {
		value := stringArg(args, field.Key)
		if value == "" {
			continue
		}
		if err := conversations.SetWorkflowState(ctx, conversationID, field.Key, value); err != nil {
			return stored, err
		}
		stored = append(stored, field.Key)
	}
	return stored, nil
}

func missingFieldsFor(ctx context.Context, conversations conversation.Store, conversationID string) []struct {
	Key    string
	Prompt string
} {
	convCtx, err := conversations.Get(ctx, conversationID)
	if err != nil || convCtx == nil {
		return onboardingFields
	}

	var missing []struct {
		Key    string
		Prompt string
	}
	for _, field := range onboardingFields {
		if convCtx.WorkflowState[field.Key] == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

func completeOnboarding(ctx context.Context, conversations conversation.Store, conversationID string) toolchain.ToolResult {
	convCtx, err := conversations.Get(ctx, conversationID)
	if err != nil || convCtx == nil {
		return failure("failed to load onboarding state: %v", err)
	}

	if err := conversations.SetActiveWorkflow(ctx, conversationID, ""); err != nil {
		return failure("failed to close onboarding workflow: %v", err)
	}

	return toolchain.ToolResult{
		IsSuccess: true,
		Content: fmt.Sprintf(
			"Mission onboarding complete. Mission %q (impact level %s) is registered to %s. The environment request has been submitted for provisioning.",
			convCtx.WorkflowState["missionName"],
			convCtx.WorkflowState["impactLevel"],
			convCtx.WorkflowState["userEmail"]),
	}
}
