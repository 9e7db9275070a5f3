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

// Package conversation provides the per-conversation mutable state the chat
// pipeline threads through every turn: bounded message history, the set of
// tools used so far, and the workflow state bag for multi-turn guided
// processes. Storage backends are in-memory (process lifetime) and Redis
// (durable/distributed deployments).
package conversation

import (
	"context"
	"strings"
	"time"
)

// MaxHistoryMessages caps the retained message history per conversation.
// The oldest messages are evicted FIFO once the cap is reached.
const MaxHistoryMessages = 20

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Context is the session-scoped mutable state for one conversation ID.
// There is exactly one context per conversation ID; mutation is
// last-writer-wins under the store's lock.
type Context struct {
	ConversationID string            `json:"conversation_id"`
	UserID         string            `json:"user_id"`
	MessageHistory []Message         `json:"message_history"`
	UsedTools      []string          `json:"used_tools"`
	WorkflowState  map[string]string `json:"workflow_state"`
	ActiveWorkflow string            `json:"active_workflow,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastActivity   time.Time         `json:"last_activity"`
}

// HasUsedTool reports whether the named tool ran earlier in this
// conversation.
func (c *Context) HasUsedTool(name string) bool {
	for _, tool := range c.UsedTools {
		if tool == name {
			return true
		}
	}
	return false
}

// InWorkflow reports whether the context is inside a workflow whose marker
// ends with the given suffix (e.g. "_onboarding").
func (c *Context) InWorkflow(suffix string) bool {
	return c.ActiveWorkflow != "" && strings.HasSuffix(c.ActiveWorkflow, suffix)
}

// RecentMessages returns up to n of the most recent history entries.
func (c *Context) RecentMessages(n int) []Message {
	if n <= 0 || len(c.MessageHistory) == 0 {
		return nil
	}
	if len(c.MessageHistory) > n {
		return c.MessageHistory[len(c.MessageHistory)-n:]
	}
	return c.MessageHistory
}

// Store is the conversation-state service contract. Callers never reach
// into shared state directly; every mutation goes through the store so
// read-modify-write cycles cannot lose updates under concurrent turns.
type Store interface {
	// GetOrCreate returns the context for the conversation ID, creating it
	// on first reference.
	GetOrCreate(ctx context.Context, conversationID, userID string) (*Context, error)
	// Get returns a snapshot copy of an existing context.
	Get(ctx context.Context, conversationID string) (*Context, error)
	// AppendMessage appends one history entry, evicting FIFO past the cap.
	AppendMessage(ctx context.Context, conversationID, role, content string) error
	// RecordToolUse adds the tool to the conversation's used-tool set.
	RecordToolUse(ctx context.Context, conversationID, tool string) error
	// SetWorkflowState writes one key of the workflow state bag.
	SetWorkflowState(ctx context.Context, conversationID, key, value string) error
	// SetActiveWorkflow sets or clears the active workflow marker.
	SetActiveWorkflow(ctx context.Context, conversationID, workflow string) error
	// Delete removes a context entirely.
	Delete(ctx context.Context, conversationID string) error
	// Close releases backend resources.
	Close() error
}
