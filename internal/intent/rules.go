package intent

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var embeddedRules []byte

// Rule is one priority-ordered keyword->tool mapping.
type Rule struct {
	Name       string   `yaml:"name"`
	Tool       string   `yaml:"tool"`
	IntentType string   `yaml:"intent_type"`
	Category   string   `yaml:"category"`
	Action     string   `yaml:"action"`
	Confidence float64  `yaml:"confidence"`
	AllOf      []string `yaml:"all_of"`
	PromptHint string   `yaml:"prompt_hint"`
}

// RuleSet is the declarative tool-selection ruleset shared by the keyword
// fallback classifier and the LLM system-prompt builder.
type RuleSet struct {
	Buckets map[string][]string `yaml:"buckets"`
	Rules   []Rule              `yaml:"rules"`
}

// LoadRules parses the embedded default ruleset.
func LoadRules() (*RuleSet, error) {
	return ParseRules(embeddedRules)
}

// ParseRules parses a ruleset from YAML and validates bucket references.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset: %w", err)
	}

	for _, rule := range rs.Rules {
		if rule.Tool == "" {
			return nil, fmt.Errorf("rule %q has no tool", rule.Name)
		}
		for _, bucket := range rule.AllOf {
			if _, ok := rs.Buckets[bucket]; !ok {
				return nil, fmt.Errorf("rule %q references unknown bucket %q", rule.Name, bucket)
			}
		}
	}

	return &rs, nil
}

// BucketMatches reports whether any keyword in the named bucket occurs in
// the (already lower-cased) input.
func (rs *RuleSet) BucketMatches(bucket, input string) bool {
	for _, keyword := range rs.Buckets[bucket] {
		if strings.Contains(input, keyword) {
			return true
		}
	}
	return false
}

// PromptRules renders the ruleset as priority rules for the LLM system
// prompt.
func (rs *RuleSet) PromptRules() string {
	var b strings.Builder
	for i, rule := range rs.Rules {
		hint := strings.TrimSpace(rule.PromptHint)
		if hint == "" {
			hint = fmt.Sprintf("Messages matching %s route to %s.", strings.Join(rule.AllOf, "+"), rule.Tool)
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, hint)
	}
	return b.String()
}
