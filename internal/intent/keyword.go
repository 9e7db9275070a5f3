package intent

import (
	"strings"

	"go.uber.org/zap"
)

// ConversationalFallbackConfidence is assigned when no rule fires.
const ConversationalFallbackConfidence = 0.5

// KeywordClassifier is the deterministic decision tree used when neither the
// pattern path nor the LLM path produced a usable classification. It
// evaluates the shared ruleset strictly in priority order.
type KeywordClassifier struct {
	rules  *RuleSet
	logger *zap.Logger
}

// NewKeywordClassifier creates a keyword-bucket classifier over the ruleset.
func NewKeywordClassifier(rules *RuleSet, logger *zap.Logger) *KeywordClassifier {
	return &KeywordClassifier{
		rules:  rules,
		logger: logger,
	}
}

// Classify walks the rules in order and returns the first whose keyword
// buckets all match; otherwise the message is conversational.
func (c *KeywordClassifier) Classify(message string) *Classification {
	input := strings.ToLower(strings.TrimSpace(message))

	for _, rule := range c.rules.Rules {
		if !c.ruleMatches(rule, input) {
			continue
		}

		c.logger.Debug("Keyword fallback classification",
			zap.String("rule", rule.Name),
			zap.String("tool", rule.Tool))

		return &Classification{
			Type:       Type(rule.IntentType),
			Category:   rule.Category,
			Action:     rule.Action,
			Confidence: rule.Confidence,
			ToolName:   rule.Tool,
			Parameters: map[string]any{"userInput": message},
			Source:     "keyword",
		}
	}

	return &Classification{
		Type:       TypeConversational,
		Confidence: ConversationalFallbackConfidence,
		Source:     "keyword",
	}
}

func (c *KeywordClassifier) ruleMatches(rule Rule, input string) bool {
	for _, bucket := range rule.AllOf {
		if !c.rules.BucketMatches(bucket, input) {
			return false
		}
	}
	return len(rule.AllOf) > 0
}
