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

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/conversation"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/intent"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/llm"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/toolchain"
)

// memoryRepo is an in-memory intent.Repository for pipeline tests.
type memoryRepo struct {
	patterns []intent.Pattern
	records  map[int64]*intent.Record
	nextID   int64
}

func newMemoryRepo(patterns ...intent.Pattern) *memoryRepo {
	return &memoryRepo{patterns: patterns, records: make(map[int64]*intent.Record)}
}

func (r *memoryRepo) ListActivePatterns(context.Context) ([]intent.Pattern, error) {
	return r.patterns, nil
}

func (r *memoryRepo) UpdatePatternStats(context.Context, int64, bool) error { return nil }

func (r *memoryRepo) RecordIntent(_ context.Context, rec *intent.Record) (int64, error) {
	r.nextID++
	stored := *rec
	stored.ID = r.nextID
	r.records[r.nextID] = &stored
	return r.nextID, nil
}

func (r *memoryRepo) GetIntent(_ context.Context, id int64) (*intent.Record, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("intent %d not found", id)
	}
	return rec, nil
}

func (r *memoryRepo) UpdateIntentOutcome(context.Context, int64, bool) error { return nil }

type stubCompletion struct {
	response string
	err      error
}

func (s *stubCompletion) CreateCompletion(context.Context, []llm.Message, llm.Settings) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

// recordingRouter captures routed calls and replies per tool name.
type recordingRouter struct {
	results map[string]toolchain.ToolResult
	calls   []toolchain.ToolCall
}

func (r *recordingRouter) RouteToolCall(_ context.Context, call toolchain.ToolCall) toolchain.ToolResult {
	r.calls = append(r.calls, call)
	if result, ok := r.results[call.Name]; ok {
		return result
	}
	return toolchain.ToolResult{IsSuccess: true, Content: call.Name + " done"}
}

type pipeline struct {
	processor *Processor
	store     *conversation.MemoryStore
	router    *recordingRouter
	repo      *memoryRepo
}

func newPipeline(t *testing.T, completion *stubCompletion, patterns ...intent.Pattern) *pipeline {
	t.Helper()
	logger := zap.NewNop()

	repo := newMemoryRepo(patterns...)
	semantic := intent.NewSemanticClassifier(repo, logger)

	rules, err := intent.LoadRules()
	if err != nil {
		t.Fatalf("LoadRules returned error: %v", err)
	}
	keyword := intent.NewKeywordClassifier(rules, logger)
	llmClassifier := intent.NewLLMClassifier(completion, rules, nil, keyword, logger)

	router := &recordingRouter{results: make(map[string]toolchain.ToolResult)}
	store := conversation.NewMemoryStore(0)

	return &pipeline{
		processor: NewProcessor(store, semantic, llmClassifier, router, toolchain.NewExecutor(router, logger), logger),
		store:     store,
		router:    router,
		repo:      repo,
	}
}

func infraPattern() intent.Pattern {
	return intent.Pattern{
		ID:       1,
		Pattern:  "storage,account",
		Category: "infrastructure",
		Action:   "provision_storage",
		Weight:   0.9,
	}
}

func TestProcessMessagePatternRoute(t *testing.T) {
	p := newPipeline(t, &stubCompletion{err: errors.New("should not be called")}, infraPattern())

	resp := p.processor.ProcessMessage(context.Background(), "conv-1", "user-1", "create a storage account")

	if resp.Source != "pattern" {
		t.Errorf("Source = %q, want pattern", resp.Source)
	}
	if len(p.router.calls) != 1 {
		t.Fatalf("router calls = %d, want 1", len(p.router.calls))
	}
	call := p.router.calls[0]
	if call.Name != "azure_infrastructure" {
		t.Errorf("routed tool = %q, want azure_infrastructure", call.Name)
	}
	if call.Arguments["resourceType"] != "storage" {
		t.Errorf("resourceType = %v, want storage (derived from the action)", call.Arguments["resourceType"])
	}
	if call.Arguments["conversationId"] != "conv-1" {
		t.Errorf("conversationId = %v, want conv-1", call.Arguments["conversationId"])
	}
	if !strings.HasPrefix(resp.Message, "✅") {
		t.Errorf("Message = %q, want success marker", resp.Message)
	}
	if resp.IntentID == 0 {
		t.Error("IntentID not propagated from the classification record")
	}
	if _, ok := resp.Metadata["processing_time_ms"]; !ok {
		t.Error("processing time metadata missing")
	}
}

func TestProcessMessageRecordsHistoryAndToolUse(t *testing.T) {
	p := newPipeline(t, &stubCompletion{err: errors.New("unused")}, infraPattern())

	p.processor.ProcessMessage(context.Background(), "conv-1", "user-1", "create a storage account")

	convCtx, err := p.store.Get(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if len(convCtx.MessageHistory) != 2 {
		t.Fatalf("history = %d messages, want user + assistant", len(convCtx.MessageHistory))
	}
	if convCtx.MessageHistory[0].Role != conversation.RoleUser {
		t.Errorf("first message role = %q", convCtx.MessageHistory[0].Role)
	}
	if convCtx.MessageHistory[1].Role != conversation.RoleAssistant {
		t.Errorf("second message role = %q", convCtx.MessageHistory[1].Role)
	}
	if !convCtx.HasUsedTool("azure_infrastructure") {
		t.Error("tool use not recorded")
	}
}

func TestProcessMessageLowConfidenceFallsToLLM(t *testing.T) {
	// No patterns match, so the pipeline consults the LLM.
	p := newPipeline(t, &stubCompletion{
		response: `{"intentType":"conversational","confidence":0.9}`,
	})

	resp := p.processor.ProcessMessage(context.Background(), "conv-1", "user-1", "how are you today")

	if resp.Source != "llm" {
		t.Errorf("Source = %q, want llm", resp.Source)
	}
	if len(p.router.calls) != 0 {
		t.Errorf("conversational message routed %d tool calls", len(p.router.calls))
	}
	if resp.Message == "" {
		t.Error("empty conversational reply")
	}
}

func TestProcessMessageKeywordFallbackWhenLLMDown(t *testing.T) {
	p := newPipeline(t, &stubCompletion{err: errors.New("rate limited")})

	resp := p.processor.ProcessMessage(context.Background(), "conv-1", "user-1", "deploy an aks cluster")

	if resp.Source != "keyword" {
		t.Errorf("Source = %q, want keyword", resp.Source)
	}
	if len(p.router.calls) != 1 || p.router.calls[0].Name != "azure_infrastructure" {
		t.Errorf("expected azure_infrastructure route, got %+v", p.router.calls)
	}
}

func TestSetConfidenceThreshold(t *testing.T) {
	p := newPipeline(t, &stubCompletion{
		response: `{"intentType":"conversational","confidence":0.9}`,
	}, infraPattern())

	// Raising the threshold above the pattern's confidence pushes the
	// same message to the LLM classifier.
	p.processor.SetConfidenceThreshold(0.95)
	resp := p.processor.ProcessMessage(context.Background(), "conv-1", "user-1", "create a storage account")
	if resp.Source != "llm" {
		t.Errorf("Source = %q, want llm above the raised threshold", resp.Source)
	}

	p.processor.SetConfidenceThreshold(0.5)
	resp = p.processor.ProcessMessage(context.Background(), "conv-2", "user-1", "create a storage account")
	if resp.Source != "pattern" {
		t.Errorf("Source = %q, want pattern under the lowered threshold", resp.Source)
	}

	// Out-of-range values are ignored.
	p.processor.SetConfidenceThreshold(0)
	p.processor.SetConfidenceThreshold(1.5)
	resp = p.processor.ProcessMessage(context.Background(), "conv-3", "user-1", "create a storage account")
	if resp.Source != "pattern" {
		t.Errorf("Source = %q, want pattern after rejecting invalid thresholds", resp.Source)
	}
}

func TestProcessMessageWorkflowOverride(t *testing.T) {
	p := newPipeline(t, &stubCompletion{err: errors.New("unused")}, infraPattern())
	ctx := context.Background()

	if err := p.store.SetActiveWorkflow(ctx, "conv-1", "flankspeed_onboarding"); err != nil {
		t.Fatalf("SetActiveWorkflow returned error: %v", err)
	}
	if err := p.store.SetWorkflowState(ctx, "conv-1", "userEmail", "ops@mission.mil"); err != nil {
		t.Fatalf("SetWorkflowState returned error: %v", err)
	}

	// Even a message matching the storage pattern goes to the workflow
	// tool while onboarding is active.
	resp := p.processor.ProcessMessage(ctx, "conv-1", "user-1", "create a storage account")

	if resp.Source != "workflow" {
		t.Errorf("Source = %q, want workflow", resp.Source)
	}
	if len(p.router.calls) != 1 {
		t.Fatalf("router calls = %d, want 1", len(p.router.calls))
	}
	call := p.router.calls[0]
	if call.Name != "flankspeed_provide_info" {
		t.Errorf("routed tool = %q, want flankspeed_provide_info", call.Name)
	}
	if call.Arguments["userInput"] != "create a storage account" {
		t.Errorf("userInput = %v", call.Arguments["userInput"])
	}
	if call.Arguments["userEmail"] != "ops@mission.mil" {
		t.Errorf("userEmail = %v, want carried workflow state", call.Arguments["userEmail"])
	}
}

func TestProcessMessageToolChain(t *testing.T) {
	chainResponse := `{"intentType":"tool_execution","confidence":0.9,"requiresToolChain":true,"toolChain":[` +
		`{"stepNumber":1,"toolName":"ato_compliance","action":"scan","dependsOnPrevious":false},` +
		`{"stepNumber":2,"toolName":"security_hardening","action":"remediate","dependsOnPrevious":true}]}`
	p := newPipeline(t, &stubCompletion{response: chainResponse})

	resp := p.processor.ProcessMessage(context.Background(), "conv-1", "user-1", "scan my subscription then fix the findings")

	if len(p.router.calls) != 2 {
		t.Fatalf("router calls = %d, want 2 chain steps", len(p.router.calls))
	}
	if p.router.calls[0].Name != "ato_compliance" || p.router.calls[1].Name != "security_hardening" {
		t.Errorf("chain order wrong: %s then %s", p.router.calls[0].Name, p.router.calls[1].Name)
	}
	if !strings.Contains(resp.Message, "All steps completed") {
		t.Errorf("Message = %q, want chain completion header", resp.Message)
	}
	if !strings.Contains(resp.Message, "2/2 steps completed") {
		t.Errorf("Message = %q, want chain summary", resp.Message)
	}
}

func TestProcessMessageGeneratesConversationID(t *testing.T) {
	p := newPipeline(t, &stubCompletion{
		response: `{"intentType":"conversational","confidence":0.9}`,
	})

	resp := p.processor.ProcessMessage(context.Background(), "", "user-1", "hello")
	if resp.ConversationID == "" {
		t.Error("no conversation id assigned")
	}
}

func TestProcessMessageSurfacesAlternatives(t *testing.T) {
	p := newPipeline(t, &stubCompletion{err: errors.New("unused")},
		infraPattern(),
		intent.Pattern{ID: 2, Pattern: "storage", Category: "template", Action: "generate_template", Weight: 0.8},
	)

	resp := p.processor.ProcessMessage(context.Background(), "conv-1", "user-1", "create a storage account")

	if len(resp.Suggestions) != 1 {
		t.Fatalf("Suggestions = %v, want one alternative", resp.Suggestions)
	}
	if !strings.Contains(resp.Suggestions[0], "template / generate_template") {
		t.Errorf("suggestion = %q", resp.Suggestions[0])
	}
}

func TestProcessMessageAttachesTemplateFiles(t *testing.T) {
	p := newPipeline(t, &stubCompletion{err: errors.New("unused")}, intent.Pattern{
		ID:       3,
		Pattern:  "generate,template",
		Category: "template",
		Action:   "generate_template",
		Weight:   0.9,
	})
	p.router.results["template_generation"] = toolchain.ToolResult{
		IsSuccess: true,
		Content:   "Generated bicep template for storage.",
		Template: &toolchain.TemplateResult{
			Format:       "bicep",
			ResourceType: "storage",
			MainFilePath: "main.bicep",
			Files:        map[string]string{"main.bicep": "// body"},
		},
	}

	resp := p.processor.ProcessMessage(context.Background(), "conv-1", "user-1", "generate a storage template")

	if len(resp.Files) != 1 {
		t.Fatalf("Files = %v, want the generated artifact", resp.Files)
	}
	if !strings.Contains(resp.Message, "main.bicep (main)") {
		t.Errorf("Message = %q, want file listing with main marker", resp.Message)
	}
}

func TestProcessMessageToolFailure(t *testing.T) {
	p := newPipeline(t, &stubCompletion{err: errors.New("unused")}, infraPattern())
	p.router.results["azure_infrastructure"] = toolchain.ToolResult{
		IsSuccess:    false,
		ErrorDetails: "quota exceeded",
	}

	resp := p.processor.ProcessMessage(context.Background(), "conv-1", "user-1", "create a storage account")

	if !strings.HasPrefix(resp.Message, "❌") {
		t.Errorf("Message = %q, want failure marker", resp.Message)
	}
	if !strings.Contains(resp.Message, "quota exceeded") {
		t.Errorf("Message = %q, want error detail", resp.Message)
	}
}

func TestFormatChainResultPartial(t *testing.T) {
	msg := formatChainResult(&toolchain.ChainResult{
		Status: toolchain.ChainPartialSuccess,
		Steps: []toolchain.Step{
			{StepNumber: 1, ToolName: "ato_compliance", Status: toolchain.StepFailed, ErrorMessage: "scanner offline"},
			{StepNumber: 2, ToolName: "cost_analysis", Status: toolchain.StepCompleted, Result: "report ready"},
		},
		Summary: "1/2 steps completed; failures: step 1 (ato_compliance): scanner offline",
	})

	if !strings.Contains(msg, "⚠️ Some steps failed.") {
		t.Errorf("missing partial header:\n%s", msg)
	}
	if !strings.Contains(msg, "❌ Step 1") || !strings.Contains(msg, "✅ Step 2") {
		t.Errorf("missing per-step markers:\n%s", msg)
	}
}

func TestFormatChainResultAborted(t *testing.T) {
	msg := formatChainResult(&toolchain.ChainResult{
		Status: toolchain.ChainFailed,
		Steps: []toolchain.Step{
			{StepNumber: 1, ToolName: "ato_compliance", Status: toolchain.StepFailed, ErrorMessage: "denied"},
			{StepNumber: 2, ToolName: "security_hardening", Status: toolchain.StepPending},
		},
		Summary: "0/2 steps completed (chain aborted on dependent step failure)",
	})

	if !strings.Contains(msg, "❌ The operation could not be completed.") {
		t.Errorf("missing failure header:\n%s", msg)
	}
	if !strings.Contains(msg, "⏭️ Step 2 (security_hardening): not run") {
		t.Errorf("missing skipped marker:\n%s", msg)
	}
}
