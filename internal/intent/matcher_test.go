package intent

import (
	"math"
	"testing"

	"go.uber.org/zap"
)

func TestMatchRegexScoring(t *testing.T) {
	m := NewMatcher(zap.NewNop())

	tests := []struct {
		name      string
		input     string
		pattern   string
		matched   bool
		wantScore float64
	}{
		{
			name:      "full coverage clamps at one",
			input:     "create a storage account",
			pattern:   `^create a storage account$`,
			matched:   true,
			wantScore: 1.0,
		},
		{
			name:      "partial coverage gets the bonus",
			input:     "please create a storage account for me today",
			pattern:   `(storage account)`,
			matched:   true,
			wantScore: float64(len("storage account"))/float64(len("please create a storage account for me today")) + RegexCoverageBonus,
		},
		{
			name:    "no regex match and no keyword fallback hit",
			input:   "what is the weather",
			pattern: `(storage account)`,
			matched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := m.Match(tt.input, Pattern{ID: 1, Pattern: tt.pattern})
			if result.Matched != tt.matched {
				t.Fatalf("Matched = %v, want %v", result.Matched, tt.matched)
			}
			if tt.matched && math.Abs(result.Score-tt.wantScore) > 1e-9 {
				t.Errorf("Score = %v, want %v", result.Score, tt.wantScore)
			}
			if result.Score > 1.0 {
				t.Errorf("Score %v exceeds 1.0", result.Score)
			}
		})
	}
}

func TestMatchRegexNamedGroups(t *testing.T) {
	m := NewMatcher(zap.NewNop())

	result := m.Match(
		"create a storage account named missiondata",
		Pattern{ID: 1, Pattern: `create\s+(?:a\s+)?storage\s+account(?:\s+named?\s+(?P<name>[a-z0-9-]+))?`},
	)

	if !result.Matched {
		t.Fatal("expected a match")
	}
	if result.Extracted["name"] != "missiondata" {
		t.Errorf("Extracted[name] = %q, want %q", result.Extracted["name"], "missiondata")
	}
}

func TestMatchInvalidRegexFallsThroughToKeywords(t *testing.T) {
	m := NewMatcher(zap.NewNop())

	// Unbalanced bracket: not compilable, but its tokens still match.
	result := m.Match("deploy the [cluster", Pattern{ID: 1, Pattern: "deploy [cluster"})
	if !result.Matched {
		t.Fatal("expected keyword fallback to match")
	}
}

func TestMatchKeywordThreshold(t *testing.T) {
	m := NewMatcher(zap.NewNop())

	tests := []struct {
		name    string
		input   string
		pattern string
		matched bool
		score   float64
	}{
		{"all keywords", "generate a terraform template now", "generate,template", true, 1.0},
		{"half keywords meets threshold", "generate something else", "generate,template", true, 0.5},
		{"below threshold", "show me something", "generate,template,terraform,bicep", false, 0.0},
		{"pipe separated", "run a compliance scan", "compliance|scan", true, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := m.Match(tt.input, Pattern{ID: 1, Pattern: tt.pattern})
			if result.Matched != tt.matched {
				t.Fatalf("Matched = %v, want %v", result.Matched, tt.matched)
			}
			if tt.matched && math.Abs(result.Score-tt.score) > 1e-9 {
				t.Errorf("Score = %v, want %v", result.Score, tt.score)
			}
		})
	}
}

func TestMatchEmptyInput(t *testing.T) {
	m := NewMatcher(zap.NewNop())

	if m.Match("", Pattern{ID: 1, Pattern: "anything"}).Matched {
		t.Error("empty input must not match")
	}
	if m.Match("anything", Pattern{ID: 1}).Matched {
		t.Error("empty pattern must not match")
	}
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	m := NewMatcher(zap.NewNop())

	result := m.Match("CREATE A STORAGE ACCOUNT", Pattern{ID: 1, Pattern: `(storage account)`})
	if !result.Matched {
		t.Error("expected case-insensitive regex match")
	}
}
