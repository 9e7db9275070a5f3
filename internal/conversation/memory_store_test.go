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

package conversation

import (
	"context"
	"fmt"
	"testing"
)

func TestGetOrCreateAndGet(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	created, err := store.GetOrCreate(ctx, "conv-1", "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if created.ConversationID != "conv-1" || created.UserID != "user-1" {
		t.Errorf("unexpected context: %+v", created)
	}

	got, err := store.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", got.UserID)
	}

	if _, err := store.Get(ctx, "missing"); err == nil {
		t.Error("Get on unknown conversation should error")
	}
}

func TestAppendMessageEvictsFIFO(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	for i := 0; i < MaxHistoryMessages+5; i++ {
		if err := store.AppendMessage(ctx, "conv-1", RoleUser, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("AppendMessage returned error: %v", err)
		}
	}

	got, err := store.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if len(got.MessageHistory) != MaxHistoryMessages {
		t.Fatalf("history length = %d, want %d", len(got.MessageHistory), MaxHistoryMessages)
	}
	// The oldest five entries were evicted.
	if got.MessageHistory[0].Content != "message 5" {
		t.Errorf("oldest retained message = %q, want message 5", got.MessageHistory[0].Content)
	}
	if last := got.MessageHistory[len(got.MessageHistory)-1]; last.Content != fmt.Sprintf("message %d", MaxHistoryMessages+4) {
		t.Errorf("newest message = %q", last.Content)
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	if err := store.AppendMessage(ctx, "conv-1", RoleUser, "original"); err != nil {
		t.Fatalf("AppendMessage returned error: %v", err)
	}
	if err := store.SetWorkflowState(ctx, "conv-1", "missionName", "trident"); err != nil {
		t.Fatalf("SetWorkflowState returned error: %v", err)
	}

	snapshot, err := store.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	snapshot.MessageHistory[0].Content = "mutated"
	snapshot.WorkflowState["missionName"] = "mutated"
	snapshot.UsedTools = append(snapshot.UsedTools, "rogue_tool")

	fresh, err := store.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if fresh.MessageHistory[0].Content != "original" {
		t.Error("snapshot mutation leaked into stored history")
	}
	if fresh.WorkflowState["missionName"] != "trident" {
		t.Error("snapshot mutation leaked into stored workflow state")
	}
	if len(fresh.UsedTools) != 0 {
		t.Error("snapshot mutation leaked into stored tool set")
	}
}

func TestRecordToolUseDeduplicates(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.RecordToolUse(ctx, "conv-1", "azure_infrastructure"); err != nil {
			t.Fatalf("RecordToolUse returned error: %v", err)
		}
	}

	got, err := store.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if len(got.UsedTools) != 1 {
		t.Errorf("UsedTools = %v, want a single entry", got.UsedTools)
	}
	if !got.HasUsedTool("azure_infrastructure") {
		t.Error("HasUsedTool should report the recorded tool")
	}
	if got.HasUsedTool("cost_analysis") {
		t.Error("HasUsedTool should not report an unused tool")
	}
}

func TestWorkflowLifecycle(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	if err := store.SetActiveWorkflow(ctx, "conv-1", "flankspeed_onboarding"); err != nil {
		t.Fatalf("SetActiveWorkflow returned error: %v", err)
	}
	if err := store.SetWorkflowState(ctx, "conv-1", "userEmail", "ops@mission.mil"); err != nil {
		t.Fatalf("SetWorkflowState returned error: %v", err)
	}

	got, err := store.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !got.InWorkflow("_onboarding") {
		t.Error("InWorkflow(_onboarding) = false, want true")
	}
	if got.WorkflowState["userEmail"] != "ops@mission.mil" {
		t.Errorf("WorkflowState[userEmail] = %q", got.WorkflowState["userEmail"])
	}

	if err := store.SetActiveWorkflow(ctx, "conv-1", ""); err != nil {
		t.Fatalf("SetActiveWorkflow returned error: %v", err)
	}
	got, err = store.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.InWorkflow("_onboarding") {
		t.Error("cleared workflow still reported active")
	}
}

func TestEvictionAtCapacity(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	if _, err := store.GetOrCreate(ctx, "conv-old", "u"); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if _, err := store.GetOrCreate(ctx, "conv-mid", "u"); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	// Touch the older conversation so conv-mid becomes the stalest.
	if err := store.AppendMessage(ctx, "conv-old", RoleUser, "still here"); err != nil {
		t.Fatalf("AppendMessage returned error: %v", err)
	}

	if _, err := store.GetOrCreate(ctx, "conv-new", "u"); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}

	if _, err := store.Get(ctx, "conv-mid"); err == nil {
		t.Error("stalest conversation should have been evicted")
	}
	if _, err := store.Get(ctx, "conv-old"); err != nil {
		t.Errorf("recently active conversation evicted: %v", err)
	}
	if _, err := store.Get(ctx, "conv-new"); err != nil {
		t.Errorf("new conversation missing: %v", err)
	}
}

func TestDeleteAndRecreate(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	if err := store.AppendMessage(ctx, "conv-1", RoleUser, "hello"); err != nil {
		t.Fatalf("AppendMessage returned error: %v", err)
	}
	if err := store.Delete(ctx, "conv-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := store.Get(ctx, "conv-1"); err == nil {
		t.Error("deleted conversation still present")
	}

	recreated, err := store.GetOrCreate(ctx, "conv-1", "user-2")
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if len(recreated.MessageHistory) != 0 {
		t.Error("recreated conversation carries old history")
	}
}

func TestRecentMessages(t *testing.T) {
	c := &Context{}
	for i := 0; i < 7; i++ {
		c.MessageHistory = append(c.MessageHistory, Message{Content: fmt.Sprintf("m%d", i)})
	}

	recent := c.RecentMessages(3)
	if len(recent) != 3 {
		t.Fatalf("RecentMessages(3) length = %d, want 3", len(recent))
	}
	if recent[0].Content != "m4" || recent[2].Content != "m6" {
		t.Errorf("unexpected window: %v", recent)
	}

	if got := c.RecentMessages(0); got != nil {
		t.Errorf("RecentMessages(0) = %v, want nil", got)
	}
	if got := c.RecentMessages(100); len(got) != 7 {
		t.Errorf("RecentMessages(100) length = %d, want 7", len(got))
	}
}
