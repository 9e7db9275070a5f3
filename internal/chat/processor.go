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

// Package chat orchestrates the message pipeline: conversation state,
// intent classification, tool dispatch and response formatting.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/conversation"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/intent"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/toolchain"
)

// SemanticConfidenceThreshold is the minimum pattern-match confidence
// accepted without consulting the LLM classifier.
const SemanticConfidenceThreshold = 0.7

// OnboardingWorkflowSuffix marks workflows whose active state overrides
// classification: messages are routed straight to the info-collection
// tool while the workflow runs.
const OnboardingWorkflowSuffix = "_onboarding"

// onboardingInfoTool receives messages while an onboarding workflow is
// active.
const onboardingInfoTool = "flankspeed_provide_info"

// Response is the assistant's reply to one user message.
type Response struct {
	ConversationID string            `json:"conversation_id"`
	Message        string            `json:"message"`
	Intent         string            `json:"intent,omitempty"`
	Confidence     float64           `json:"confidence,omitempty"`
	Source         string            `json:"source,omitempty"`
	IntentID       int64             `json:"intent_id,omitempty"`
	Suggestions    []string          `json:"suggestions,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
	Files          map[string]string `json:"files,omitempty"`
}

// Processor runs the chat pipeline.
type Processor struct {
	conversations conversation.Store
	semantic      *intent.SemanticClassifier
	llm           *intent.LLMClassifier
	router        toolchain.Router
	executor      *toolchain.Executor
	threshold     float64
	logger        *zap.Logger
}

// NewProcessor wires the pipeline together.
func NewProcessor(
	conversations conversation.Store,
	semantic *intent.SemanticClassifier,
	llm *intent.LLMClassifier,
	router toolchain.Router,
	executor *toolchain.Executor,
	logger *zap.Logger,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		conversations: conversations,
		semantic:      semantic,
		llm:           llm,
		router:        router,
		executor:      executor,
		threshold:     SemanticConfidenceThreshold,
		logger:        logger,
	}
}

// SetConfidenceThreshold overrides the minimum pattern-match confidence
// accepted without consulting the LLM classifier. Values outside (0, 1]
// are ignored.
func (p *Processor) SetConfidenceThreshold(threshold float64) {
	if threshold > 0 && threshold <= 1 {
		p.threshold = threshold
	}
}

// ProcessMessage handles one user message end to end. It never returns
// an error to the transport layer for pipeline failures; those become
// apologetic replies so the conversation survives.
func (p *Processor) ProcessMessage(ctx context.Context, conversationID, userID, message string) (resp *Response) {
	start := time.Now()

	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic in message pipeline",
				zap.String("conversationId", conversationID),
				zap.Any("panic", r))
			resp = &Response{
				ConversationID: conversationID,
				Message:        "Something went wrong while handling that request. Please try again.",
			}
		}
		if resp != nil {
			if resp.Metadata == nil {
				resp.Metadata = make(map[string]any)
			}
			resp.Metadata["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}()

	convCtx, err := p.conversations.GetOrCreate(ctx, conversationID, userID)
	if err != nil {
		p.logger.Error("failed to load conversation", zap.String("conversationId", conversationID), zap.Error(err))
		return &Response{
			ConversationID: conversationID,
			Message:        "Unable to load conversation state right now. Please try again.",
		}
	}

	if err := p.conversations.AppendMessage(ctx, conversationID, conversation.RoleUser, message); err != nil {
		p.logger.Warn("failed to append user message", zap.String("conversationId", conversationID), zap.Error(err))
	}

	classification := p.classify(ctx, conversationID, userID, message, convCtx)

	resp = p.dispatch(ctx, conversationID, message, classification)
	resp.Intent = string(classification.Type)
	resp.Confidence = classification.Confidence
	resp.Source = classification.Source
	resp.IntentID = classification.IntentID
	resp.Suggestions = suggestionsFor(classification)

	if err := p.conversations.AppendMessage(ctx, conversationID, conversation.RoleAssistant, resp.Message); err != nil {
		p.logger.Warn("failed to append assistant message", zap.String("conversationId", conversationID), zap.Error(err))
	}

	return resp
}

// classify picks the classification strategy for the message. An active
// onboarding workflow overrides classification entirely; otherwise the
// pattern classifier runs first and the LLM handles low-confidence
// messages.
func (p *Processor) classify(ctx context.Context, conversationID, userID, message string, convCtx *conversation.Context) *intent.Classification {
	if convCtx.InWorkflow(OnboardingWorkflowSuffix) {
		params := map[string]any{
			"conversationId": conversationID,
			"requestId":      uuid.NewString(),
			"userInput":      message,
		}
		if email := convCtx.WorkflowState["userEmail"]; email != "" {
			params["userEmail"] = email
		}
		return &intent.Classification{
			Type:       intent.TypeToolExecution,
			Category:   "onboarding",
			Action:     "provide_info",
			Confidence: 1.0,
			ToolName:   onboardingInfoTool,
			Parameters: params,
			Source:     "workflow",
		}
	}

	classification, err := p.semantic.Classify(ctx, userID, conversationID, message)
	if err != nil {
		p.logger.Warn("pattern classification failed",
			zap.String("conversationId", conversationID),
			zap.Error(err))
	}
	if classification != nil && classification.Confidence >= p.threshold {
		return classification
	}

	return p.llm.Classify(ctx, message, convCtx)
}

// categoryTools maps pattern categories onto tool plugins. Pattern
// matches carry category and action only; the tool binding lives here.
var categoryTools = map[string]string{
	"infrastructure": "azure_infrastructure",
	"template":       "template_generation",
	"compliance":     "ato_compliance",
	"security":       "security_hardening",
	"cost":           "cost_analysis",
	"onboarding":     "flankspeed_start_onboarding",
}

// dispatch executes whatever the classification asked for.
func (p *Processor) dispatch(ctx context.Context, conversationID, message string, classification *intent.Classification) *Response {
	if classification.Type != intent.TypeToolExecution {
		return &Response{
			ConversationID: conversationID,
			Message:        conversationalReply(classification),
		}
	}

	if len(classification.ToolChain) > 0 {
		result := p.executor.Execute(ctx, conversationID, classification.ToolChain)
		return &Response{
			ConversationID: conversationID,
			Message:        formatChainResult(result),
		}
	}

	toolName := classification.ToolName
	if toolName == "" {
		toolName = categoryTools[classification.Category]
	}
	if toolName == "" {
		return &Response{
			ConversationID: conversationID,
			Message:        "I recognized an action but no tool is mapped to it yet.",
		}
	}

	args := classification.Parameters
	if args == nil {
		args = make(map[string]any)
	}
	if _, ok := args["userInput"]; !ok {
		args["userInput"] = message
	}
	// Provisioning patterns encode the resource family in the action.
	if _, ok := args["resourceType"]; !ok {
		if rest, found := strings.CutPrefix(classification.Action, "provision_"); found {
			args["resourceType"] = rest
		}
	}
	toolchain.InjectConversationID(args, conversationID)

	call := toolchain.ToolCall{
		Name:      toolName,
		Arguments: args,
		RequestID: uuid.NewString(),
	}
	result := p.router.RouteToolCall(ctx, call)

	if err := p.conversations.RecordToolUse(ctx, conversationID, toolName); err != nil {
		p.logger.Warn("failed to record tool use",
			zap.String("conversationId", conversationID),
			zap.String("tool", toolName),
			zap.Error(err))
	}

	resp := &Response{
		ConversationID: conversationID,
		Message:        formatToolResult(toolName, result),
	}
	if result.Template != nil {
		resp.Files = result.Template.Files
	}
	return resp
}

func conversationalReply(classification *intent.Classification) string {
	if classification.RequiresFollowUp && classification.FollowUpPrompt != "" {
		return classification.FollowUpPrompt
	}
	if classification.Type == intent.TypeInformationRequest {
		return "I can help with provisioning Azure infrastructure, generating Bicep and Terraform templates, compliance scans, cost analysis and mission onboarding. What would you like to do?"
	}
	return "I'm the platform engineering copilot. Ask me to provision infrastructure, generate IaC templates, run compliance checks or start mission onboarding."
}

func suggestionsFor(classification *intent.Classification) []string {
	suggestions := make([]string, 0, len(classification.Alternatives))
	for _, alt := range classification.Alternatives {
		suggestions = append(suggestions,
			fmt.Sprintf("Did you mean %s / %s?", alt.Category, alt.Action))
	}
	return suggestions
}
