package intent

import (
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Matching constants. The regex coverage bonus and the keyword threshold are
// tunable parameters preserved for behavioral compatibility with the stored
// pattern corpus.
const (
	// RegexMatchTimeout bounds a single regex evaluation so a pathological
	// pattern cannot stall the whole classification pass.
	RegexMatchTimeout = 100 * time.Millisecond
	// RegexCoverageBonus is added to the coverage score of any regex match.
	RegexCoverageBonus = 0.2
	// KeywordMatchThreshold is the minimum fraction of keywords that must
	// occur in the input for the keyword phase to count as a match.
	KeywordMatchThreshold = 0.5
)

// MatchResult is the outcome of scoring one pattern against one utterance.
type MatchResult struct {
	Matched   bool
	Score     float64
	Extracted map[string]string
}

// Matcher scores a single candidate pattern against a single utterance.
// Matching is a pure function of the (input, pattern) pair.
type Matcher struct {
	logger *zap.Logger
}

// NewMatcher creates a pattern matcher.
func NewMatcher(logger *zap.Logger) *Matcher {
	return &Matcher{logger: logger}
}

// Match runs the two matching phases against a normalized (lower-cased,
// trimmed) input. Regex syntax in the pattern triggers the regex phase; on
// regex failure or timeout the pattern falls through to the keyword phase.
func (m *Matcher) Match(input string, pattern Pattern) MatchResult {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" || pattern.Pattern == "" {
		return MatchResult{}
	}

	if looksLikeRegex(pattern.Pattern) {
		if result, ok := m.matchRegex(input, pattern); ok {
			return result
		}
		// Invalid or timed-out regex: the pattern is non-matching for
		// this turn via regex, but its text may still match as keywords.
	}

	return matchKeywords(input, pattern.Pattern)
}

// looksLikeRegex reports whether the pattern text carries regex syntax.
func looksLikeRegex(pattern string) bool {
	return strings.ContainsAny(pattern, "^([")
}

// matchRegex evaluates the pattern as a case-insensitive regex with a
// wall-clock guard. The second return value is false when the pattern could
// not be evaluated at all (compile error or timeout).
func (m *Matcher) matchRegex(input string, pattern Pattern) (MatchResult, bool) {
	re, err := regexp.Compile("(?i)" + pattern.Pattern)
	if err != nil {
		m.logger.Warn("Invalid regex pattern, falling through to keyword phase",
			zap.Int64("pattern_id", pattern.ID),
			zap.Error(err))
		return MatchResult{}, false
	}

	type regexOutcome struct {
		loc   []int
		names []string
		subs  []string
	}

	done := make(chan regexOutcome, 1)
	go func() {
		var outcome regexOutcome
		outcome.loc = re.FindStringIndex(input)
		if outcome.loc != nil {
			outcome.names = re.SubexpNames()
			outcome.subs = re.FindStringSubmatch(input)
		}
		done <- outcome
	}()

	var outcome regexOutcome
	select {
	case outcome = <-done:
	case <-time.After(RegexMatchTimeout):
		m.logger.Warn("Regex match timed out, falling through to keyword phase",
			zap.Int64("pattern_id", pattern.ID),
			zap.Duration("timeout", RegexMatchTimeout))
		return MatchResult{}, false
	}

	if outcome.loc == nil {
		return MatchResult{}, true
	}

	matchLength := outcome.loc[1] - outcome.loc[0]
	score := float64(matchLength)/float64(len(input)) + RegexCoverageBonus
	if score > 1.0 {
		score = 1.0
	}

	extracted := make(map[string]string)
	for i, name := range outcome.names {
		if name == "" || i >= len(outcome.subs) || outcome.subs[i] == "" {
			continue
		}
		extracted[name] = outcome.subs[i]
	}

	return MatchResult{
		Matched:   true,
		Score:     score,
		Extracted: extracted,
	}, true
}

// matchKeywords splits the pattern text into keyword tokens and scores the
// fraction that occur in the input. No extraction happens in this phase.
func matchKeywords(input, pattern string) MatchResult {
	tokens := splitKeywords(pattern)
	if len(tokens) == 0 {
		return MatchResult{}
	}

	matched := 0
	for _, token := range tokens {
		if strings.Contains(input, token) {
			matched++
		}
	}

	score := float64(matched) / float64(len(tokens))
	return MatchResult{
		Matched: score >= KeywordMatchThreshold,
		Score:   score,
	}
}

// splitKeywords tokenizes pattern text on space, comma and pipe.
func splitKeywords(pattern string) []string {
	fields := strings.FieldsFunc(strings.ToLower(pattern), func(r rune) bool {
		return r == ' ' || r == ',' || r == '|'
	})

	var tokens []string
	for _, field := range fields {
		if field = strings.TrimSpace(field); field != "" {
			tokens = append(tokens, field)
		}
	}
	return tokens
}
