package intent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/conversation"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/llm"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/toolchain"
	"go.uber.org/zap"
)

const (
	// ResponseCacheTTL bounds staleness of cached LLM classifications.
	ResponseCacheTTL = 30 * time.Minute
	// MaxPromptHistoryTurns limits how much conversation history is sent.
	MaxPromptHistoryTurns = 5
	// classifierTemperature keeps classification output stable.
	classifierTemperature = 0.1
	// classifierMaxTokens bounds the classification response size.
	classifierMaxTokens = 600
)

// CompletionClient is the completion-endpoint surface the classifier needs.
type CompletionClient interface {
	CreateCompletion(ctx context.Context, messages []llm.Message, settings llm.Settings) (string, error)
}

// ToolInfo describes one registered tool for the prompt catalog.
type ToolInfo struct {
	Name        string
	Description string
}

// LLMClassifier classifies messages by asking the completion endpoint for a
// structured JSON decision. LLM unavailability is recoverable: every failure
// path degrades to the keyword fallback classifier, never to an error.
type LLMClassifier struct {
	client   CompletionClient
	rules    *RuleSet
	catalog  []ToolInfo
	fallback *KeywordClassifier
	logger   *zap.Logger

	cache sync.Map // fingerprint -> cachedClassification
}

type cachedClassification struct {
	classification *Classification
	expiresAt      time.Time
}

// NewLLMClassifier creates an LLM-backed classifier with a keyword fallback.
func NewLLMClassifier(client CompletionClient, rules *RuleSet, catalog []ToolInfo, fallback *KeywordClassifier, logger *zap.Logger) *LLMClassifier {
	return &LLMClassifier{
		client:   client,
		rules:    rules,
		catalog:  catalog,
		fallback: fallback,
		logger:   logger,
	}
}

// Classify returns the intent for the message, consulting the response
// cache first. A cache hit short-circuits the LLM call entirely.
func (c *LLMClassifier) Classify(ctx context.Context, message string, convCtx *conversation.Context) *Classification {
	conversationID := ""
	if convCtx != nil {
		conversationID = convCtx.ConversationID
	}

	key := fingerprint(message, conversationID)
	if cached, ok := c.cache.Load(key); ok {
		entry := cached.(cachedClassification)
		if time.Now().Before(entry.expiresAt) {
			c.logger.Debug("LLM classification cache hit",
				zap.String("conversation_id", conversationID))
			// The pipeline mutates parameter maps during dispatch, so
			// hits must not hand out the stored instance.
			return entry.classification.Clone()
		}
		c.cache.Delete(key)
	}

	raw, err := c.client.CreateCompletion(ctx, c.buildPrompt(message, convCtx), llm.Settings{
		Temperature: classifierTemperature,
		MaxTokens:   classifierMaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		c.logger.Warn("Completion endpoint unavailable, using keyword fallback", zap.Error(err))
		return c.fallback.Classify(message)
	}

	classification, err := parseClassification(raw)
	if err != nil {
		c.logger.Warn("Unparseable classification response, using keyword fallback",
			zap.Error(err),
			zap.String("response_preview", preview(raw, 200)))
		return c.fallback.Classify(message)
	}
	classification.Source = "llm"

	c.cache.Store(key, cachedClassification{
		classification: classification.Clone(),
		expiresAt:      time.Now().Add(ResponseCacheTTL),
	})

	c.logger.Debug("LLM classification",
		zap.String("intent_type", string(classification.Type)),
		zap.String("tool", classification.ToolName),
		zap.Float64("confidence", classification.Confidence))

	return classification
}

// InvalidateConversation drops cached classifications for one conversation.
func (c *LLMClassifier) InvalidateConversation(conversationID string) {
	c.cache.Range(func(key, value any) bool {
		if strings.HasSuffix(key.(string), "|"+conversationID) {
			c.cache.Delete(key)
		}
		return true
	})
}

// buildPrompt assembles the system prompt (priority rules, tool catalog,
// worked examples) plus recent history and the current message.
func (c *LLMClassifier) buildPrompt(message string, convCtx *conversation.Context) []llm.Message {
	var system strings.Builder
	system.WriteString("You classify user messages for a cloud platform-engineering copilot.\n")
	system.WriteString("Respond with a single JSON object and nothing else:\n")
	system.WriteString(`{"intentType":"tool_execution|information_request|conversational","confidence":0.0,"toolName":"","parameters":{},"requiresToolChain":false,"toolChain":[],"requiresFollowUp":false,"followUpPrompt":""}` + "\n\n")

	system.WriteString("Priority rules (apply strictly in order):\n")
	system.WriteString(c.rules.PromptRules())

	system.WriteString("\nAvailable tools:\n")
	for _, tool := range c.catalog {
		fmt.Fprintf(&system, "- %s: %s\n", tool.Name, tool.Description)
	}

	system.WriteString("\nExamples:\n")
	system.WriteString(`User: "Create a storage account named logs in usgovvirginia"` + "\n")
	system.WriteString(`{"intentType":"tool_execution","confidence":0.95,"toolName":"azure_infrastructure","parameters":{"resourceType":"storage","name":"logs","region":"usgovvirginia"}}` + "\n")
	system.WriteString(`User: "thanks, that worked"` + "\n")
	system.WriteString(`{"intentType":"conversational","confidence":0.9}` + "\n")
	system.WriteString(`User: "scan my subscription for IL5 compliance then fix the findings"` + "\n")
	system.WriteString(`{"intentType":"tool_execution","confidence":0.9,"requiresToolChain":true,"toolChain":[{"stepNumber":1,"toolName":"ato_compliance","action":"scan","dependsOnPrevious":false},{"stepNumber":2,"toolName":"security_hardening","action":"remediate","dependsOnPrevious":true}]}` + "\n")

	messages := []llm.Message{{Role: llm.RoleSystem, Content: system.String()}}

	if convCtx != nil {
		for _, turn := range convCtx.RecentMessages(MaxPromptHistoryTurns) {
			role := llm.RoleUser
			if turn.Role == conversation.RoleAssistant {
				role = llm.RoleAssistant
			}
			messages = append(messages, llm.Message{Role: role, Content: turn.Content})
		}
	}

	return append(messages, llm.Message{Role: llm.RoleUser, Content: message})
}

// llmChainStep is the wire form of a planned chain step.
type llmChainStep struct {
	StepNumber        int            `json:"stepNumber"`
	ToolName          string         `json:"toolName"`
	Action            string         `json:"action"`
	Parameters        map[string]any `json:"parameters"`
	DependsOnPrevious bool           `json:"dependsOnPrevious"`
}

// llmResponse is the wire form of the classification decision.
type llmResponse struct {
	IntentType        string         `json:"intentType"`
	Confidence        float64        `json:"confidence"`
	ToolName          string         `json:"toolName"`
	Parameters        map[string]any `json:"parameters"`
	RequiresToolChain bool           `json:"requiresToolChain"`
	ToolChain         []llmChainStep `json:"toolChain"`
	RequiresFollowUp  bool           `json:"requiresFollowUp"`
	FollowUpPrompt    string         `json:"followUpPrompt"`
}

// parseClassification parses the raw model output, tolerating markdown
// code fences around the JSON body.
func parseClassification(raw string) (*Classification, error) {
	body := StripCodeFences(raw)
	if body == "" {
		return nil, fmt.Errorf("empty classification response")
	}

	var resp llmResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("invalid classification JSON: %w", err)
	}

	intentType := Type(resp.IntentType)
	switch intentType {
	case TypeToolExecution, TypeInformationRequest, TypeConversational:
	default:
		return nil, fmt.Errorf("unknown intent type %q", resp.IntentType)
	}

	confidence := resp.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	classification := &Classification{
		Type:             intentType,
		Confidence:       confidence,
		ToolName:         resp.ToolName,
		Parameters:       resp.Parameters,
		RequiresFollowUp: resp.RequiresFollowUp,
		FollowUpPrompt:   resp.FollowUpPrompt,
	}

	if resp.RequiresToolChain {
		for _, step := range resp.ToolChain {
			classification.ToolChain = append(classification.ToolChain, toolchain.Step{
				StepNumber:        step.StepNumber,
				ToolName:          step.ToolName,
				Action:            step.Action,
				Parameters:        step.Parameters,
				DependsOnPrevious: step.DependsOnPrevious,
				Status:            toolchain.StepPending,
			})
		}
	}

	return classification, nil
}

// StripCodeFences removes a surrounding markdown code fence (``` or
// ```json) from model output.
func StripCodeFences(raw string) string {
	body := strings.TrimSpace(raw)
	if !strings.HasPrefix(body, "```") {
		return body
	}

	body = strings.TrimPrefix(body, "```")
	if idx := strings.Index(body, "\n"); idx >= 0 {
		// Drop the language tag line (e.g. "json").
		body = body[idx+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

// fingerprint builds the response-cache key for (message, conversation).
func fingerprint(message, conversationID string) string {
	sum := sha256.Sum256([]byte(message))
	return hex.EncodeToString(sum[:8]) + "|" + conversationID
}

// preview truncates text for logging.
func preview(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}
	return text[:maxLength] + "..."
}
