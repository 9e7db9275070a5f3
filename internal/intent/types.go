// Package intent provides hybrid intent classification for the platform
// engineering copilot: fast local pattern matching backed by a stored pattern
// set, an LLM-based classifier for everything the patterns miss, and a
// deterministic keyword fallback for when the LLM is unavailable.
package intent

import (
	"time"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/toolchain"
)

// Type is the classified purpose of a user utterance.
type Type string

const (
	// TypeToolExecution indicates the message should be routed to a tool
	TypeToolExecution Type = "tool_execution"
	// TypeInformationRequest indicates the message asks for information
	TypeInformationRequest Type = "information_request"
	// TypeConversational indicates general conversation with no tool intent
	TypeConversational Type = "conversational"
)

// Pattern is a stored matching rule with operator-assigned weight and a
// historical success rate maintained from classification outcomes.
// Patterns are never hard-deleted, only deactivated.
type Pattern struct {
	ID          int64     `json:"id"`
	Pattern     string    `json:"pattern"`
	Category    string    `json:"category"`
	Action      string    `json:"action"`
	Weight      float64   `json:"weight"`
	SuccessRate float64   `json:"success_rate"`
	UsageCount  int       `json:"usage_count"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Record is a logged classification event. Created at classification time,
// mutated exactly once when the outcome becomes known.
type Record struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	UserInput  string    `json:"user_input"`
	Category   string    `json:"category"`
	Action     string    `json:"action"`
	Confidence float64   `json:"confidence"`
	SessionID  string    `json:"session_id"`
	Parameters string    `json:"parameters"` // serialized key->value, includes MatchedPatternIDKey
	ToolCall   string    `json:"tool_call"`
	Successful *bool     `json:"successful"` // nil until outcome known
	CreatedAt  time.Time `json:"created_at"`
}

// FeedbackType categorizes an operator correction of a classification.
type FeedbackType string

const (
	FeedbackCorrect   FeedbackType = "correct"
	FeedbackIncorrect FeedbackType = "incorrect"
	FeedbackPartial   FeedbackType = "partial"
)

// ValidFeedbackType reports whether s names a known feedback type.
func ValidFeedbackType(s string) bool {
	switch FeedbackType(s) {
	case FeedbackCorrect, FeedbackIncorrect, FeedbackPartial:
		return true
	}
	return false
}

// Feedback is a user or operator correction record referencing a logged
// classification. Created once, never mutated.
type Feedback struct {
	ID                int64        `json:"id"`
	IntentID          int64        `json:"intent_id"`
	Type              FeedbackType `json:"type"`
	CorrectedCategory string       `json:"corrected_category,omitempty"`
	CorrectedAction   string       `json:"corrected_action,omitempty"`
	CorrectedParams   string       `json:"corrected_params,omitempty"`
	Comment           string       `json:"comment,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

// Alternative is a runner-up pattern match surfaced alongside the best match.
type Alternative struct {
	Category   string  `json:"category"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
}

// Classification is the transient decision produced by any of the
// classifiers. It is not persisted directly; the semantic classifier derives
// a Record from it for logging.
type Classification struct {
	Type             Type             `json:"intent_type"`
	Category         string           `json:"category,omitempty"`
	Action           string           `json:"action,omitempty"`
	Confidence       float64          `json:"confidence"`
	ToolName         string           `json:"tool_name,omitempty"`
	Parameters       map[string]any   `json:"parameters,omitempty"`
	ToolChain        []toolchain.Step `json:"tool_chain,omitempty"`
	RequiresFollowUp bool             `json:"requires_follow_up,omitempty"`
	FollowUpPrompt   string           `json:"follow_up_prompt,omitempty"`
	Alternatives     []Alternative    `json:"alternatives,omitempty"`
	IntentID         int64            `json:"intent_id,omitempty"`
	Source           string           `json:"source,omitempty"` // "pattern", "llm" or "keyword"
}

// Clone returns a deep copy of the classification. Parameter maps are
// copied so callers may mutate the result without affecting shared
// instances such as cached classifications.
func (c *Classification) Clone() *Classification {
	if c == nil {
		return nil
	}
	out := *c
	if c.Parameters != nil {
		out.Parameters = make(map[string]any, len(c.Parameters))
		for k, v := range c.Parameters {
			out.Parameters[k] = v
		}
	}
	if c.ToolChain != nil {
		out.ToolChain = make([]toolchain.Step, len(c.ToolChain))
		copy(out.ToolChain, c.ToolChain)
		for i, step := range c.ToolChain {
			if step.Parameters == nil {
				continue
			}
			params := make(map[string]any, len(step.Parameters))
			for k, v := range step.Parameters {
				params[k] = v
			}
			out.ToolChain[i].Parameters = params
		}
	}
	if c.Alternatives != nil {
		out.Alternatives = append([]Alternative(nil), c.Alternatives...)
	}
	return &out
}

// MatchedPatternIDKey is the reserved parameter key linking a classification
// back to the pattern that produced it, so outcome feedback can be routed.
const MatchedPatternIDKey = "_matchedPatternId"
