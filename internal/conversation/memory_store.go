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
	"sync"
	"time"
)

// MemoryStore keeps contexts in a process-local map behind a single coarse
// lock. Read-modify-write of history and workflow state happens inside the
// lock so retried requests on the same conversation ID cannot lose updates.
type MemoryStore struct {
	mu               sync.Mutex
	contexts         map[string]*Context
	maxConversations int
}

// NewMemoryStore creates an in-memory conversation store. When
// maxConversations is positive, creating a conversation beyond the cap
// evicts the least recently active one.
func NewMemoryStore(maxConversations int) *MemoryStore {
	return &MemoryStore{
		contexts:         make(map[string]*Context),
		maxConversations: maxConversations,
	}
}

// GetOrCreate returns a snapshot of the context, creating it on first
// reference to the conversation ID.
func (s *MemoryStore) GetOrCreate(_ context.Context, conversationID, userID string) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreateLocked(conversationID, userID)
	return copyContext(c), nil
}

// Get returns a snapshot copy of an existing context.
func (s *MemoryStore) Get(_ context.Context, conversationID string) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[conversationID]
	if !ok {
		return nil, fmt.Errorf("conversation not found: %s", conversationID)
	}
	return copyContext(c), nil
}

// AppendMessage appends one history entry, evicting the oldest entry once
// the cap is exceeded.
func (s *MemoryStore) AppendMessage(_ context.Context, conversationID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreateLocked(conversationID, "")
	c.MessageHistory = append(c.MessageHistory, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if len(c.MessageHistory) > MaxHistoryMessages {
		c.MessageHistory = c.MessageHistory[len(c.MessageHistory)-MaxHistoryMessages:]
	}
	c.LastActivity = time.Now()
	return nil
}

// RecordToolUse adds the tool to the used-tool set.
func (s *MemoryStore) RecordToolUse(_ context.Context, conversationID, tool string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreateLocked(conversationID, "")
	if !c.HasUsedTool(tool) {
		c.UsedTools = append(c.UsedTools, tool)
	}
	c.LastActivity = time.Now()
	return nil
}

// SetWorkflowState writes one key of the workflow state bag.
func (s *MemoryStore) SetWorkflowState(_ context.Context, conversationID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreateLocked(conversationID, "")
	c.WorkflowState[key] = value
	c.LastActivity = time.Now()
	return nil
}

// SetActiveWorkflow sets or clears the active workflow marker.
func (s *MemoryStore) SetActiveWorkflow(_ context.Context, conversationID, workflow string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreateLocked(conversationID, "")
	c.ActiveWorkflow = workflow
	c.LastActivity = time.Now()
	return nil
}

// Delete removes a context entirely.
func (s *MemoryStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.contexts, conversationID)
	return nil
}

// Close clears the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contexts = make(map[string]*Context)
	return nil
}

func (s *MemoryStore) getOrCreateLocked(conversationID, userID string) *Context {
	if c, ok := s.contexts[conversationID]; ok {
		if userID != "" && c.UserID == "" {
			c.UserID = userID
		}
		return c
	}

	if s.maxConversations > 0 && len(s.contexts) >= s.maxConversations {
		s.evictStalestLocked()
	}

	now := time.Now()
	c := &Context{
		ConversationID: conversationID,
		UserID:         userID,
		MessageHistory: []Message{},
		UsedTools:      []string{},
		WorkflowState:  make(map[string]string),
		CreatedAt:      now,
		LastActivity:   now,
	}
	s.contexts[conversationID] = c
	return c
}

// evictStalestLocked drops the conversation with the oldest activity.
func (s *MemoryStore) evictStalestLocked() {
	var stalest string
	var stalestAt time.Time
	for id, c := range s.contexts {
		if stalest == "" || c.LastActivity.Before(stalestAt) {
			stalest = id
			stalestAt = c.LastActivity
		}
	}
	if stalest != "" {
		delete(s.contexts, stalest)
	}
}

// copyContext returns a deep copy so callers cannot mutate shared state
// outside the lock.
func copyContext(c *Context) *Context {
	cp := *c
	cp.MessageHistory = make([]Message, len(c.MessageHistory))
	copy(cp.MessageHistory, c.MessageHistory)
	cp.UsedTools = make([]string, len(c.UsedTools))
	copy(cp.UsedTools, c.UsedTools)
	cp.WorkflowState = make(map[string]string, len(c.WorkflowState))
	for k, v := range c.WorkflowState {
		cp.WorkflowState[k] = v
	}
	return &cp
}
