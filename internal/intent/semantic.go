package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// SuccessRateFloor keeps brand-new patterns with zero history from
	// being zeroed out of the ranking.
	SuccessRateFloor = 0.5
	// MaxAlternatives is how many runner-up matches are surfaced.
	MaxAlternatives = 3
	// MaxRecordedInputLength truncates logged user input.
	MaxRecordedInputLength = 500
)

// Repository is the persistence surface the semantic classifier needs:
// pattern reads, pattern stat updates driven by outcomes, and the
// classification event log.
type Repository interface {
	PatternSource
	UpdatePatternStats(ctx context.Context, patternID int64, success bool) error
	RecordIntent(ctx context.Context, rec *Record) (int64, error)
	GetIntent(ctx context.Context, id int64) (*Record, error)
	UpdateIntentOutcome(ctx context.Context, id int64, success bool) error
}

// SemanticClassifier ranks every matching stored pattern against an
// utterance and records the classification event for later outcome feedback.
type SemanticClassifier struct {
	repo    Repository
	cache   *PatternCache
	matcher *Matcher
	logger  *zap.Logger
}

// NewSemanticClassifier creates a pattern-ranking classifier over the
// repository, with a read-through pattern cache.
func NewSemanticClassifier(repo Repository, logger *zap.Logger) *SemanticClassifier {
	return &SemanticClassifier{
		repo:    repo,
		cache:   NewPatternCache(repo, logger),
		matcher: NewMatcher(logger),
		logger:  logger,
	}
}

type scoredMatch struct {
	pattern   Pattern
	score     float64
	composite float64
	extracted map[string]string
}

// Classify matches the input against every cached active pattern and
// returns the best-ranked match plus up to MaxAlternatives runner-ups.
// A zero-match result carries confidence 0 so the caller can fall back to
// the LLM or keyword path.
func (c *SemanticClassifier) Classify(ctx context.Context, userID, sessionID, input string) (*Classification, error) {
	patterns, err := c.cache.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch patterns: %w", err)
	}

	var matches []scoredMatch
	for _, pattern := range patterns {
		result := c.matcher.Match(input, pattern)
		if !result.Matched {
			continue
		}
		matches = append(matches, scoredMatch{
			pattern:   pattern,
			score:     result.Score,
			composite: pattern.Weight * result.Score * (SuccessRateFloor + SuccessRateFloor*pattern.SuccessRate),
			extracted: result.Extracted,
		})
	}

	if len(matches) == 0 {
		return &Classification{
			Type:       TypeConversational,
			Confidence: 0,
			Source:     "pattern",
		}, nil
	}

	// Stable sort keeps tie-breaking deterministic for a fixed pattern set.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].composite > matches[j].composite
	})

	best := matches[0]
	classification := &Classification{
		Type:       TypeToolExecution,
		Category:   best.pattern.Category,
		Action:     best.pattern.Action,
		Confidence: best.score * best.pattern.Weight,
		Parameters: make(map[string]any, len(best.extracted)+1),
		Source:     "pattern",
	}
	for k, v := range best.extracted {
		classification.Parameters[k] = v
	}
	classification.Parameters[MatchedPatternIDKey] = strconv.FormatInt(best.pattern.ID, 10)

	for _, match := range matches[1:] {
		if len(classification.Alternatives) >= MaxAlternatives {
			break
		}
		classification.Alternatives = append(classification.Alternatives, Alternative{
			Category:   match.pattern.Category,
			Action:     match.pattern.Action,
			Confidence: match.score * match.pattern.Weight,
		})
	}

	intentID, err := c.recordClassification(ctx, userID, sessionID, input, classification)
	if err != nil {
		// Logging failures must not break classification.
		c.logger.Warn("Failed to record classification event", zap.Error(err))
	} else {
		classification.IntentID = intentID
	}

	c.logger.Debug("Pattern classification",
		zap.String("category", classification.Category),
		zap.String("action", classification.Action),
		zap.Float64("confidence", classification.Confidence),
		zap.Int("matches", len(matches)))

	return classification, nil
}

// recordClassification derives a Record from the decision and persists it.
func (c *SemanticClassifier) recordClassification(ctx context.Context, userID, sessionID, input string, classification *Classification) (int64, error) {
	input = truncateInput(input, MaxRecordedInputLength)

	params, err := json.Marshal(classification.Parameters)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize parameters: %w", err)
	}

	toolCall, err := json.Marshal(proposedCall(classification))
	if err != nil {
		return 0, fmt.Errorf("failed to serialize tool call: %w", err)
	}

	return c.repo.RecordIntent(ctx, &Record{
		UserID:     userID,
		UserInput:  input,
		Category:   classification.Category,
		Action:     classification.Action,
		Confidence: classification.Confidence,
		SessionID:  sessionID,
		Parameters: string(params),
		ToolCall:   string(toolCall),
	})
}

// proposedCall is the invocation the pipeline will route for this
// classification: the pattern's action plus the extracted arguments,
// without the reserved pattern link.
func proposedCall(classification *Classification) map[string]any {
	args := make(map[string]any, len(classification.Parameters))
	for k, v := range classification.Parameters {
		if k == MatchedPatternIDKey {
			continue
		}
		args[k] = v
	}
	return map[string]any{
		"action":     classification.Action,
		"parameters": args,
	}
}

// truncateInput bounds the stored input to max bytes without splitting
// a multi-byte UTF-8 sequence.
func truncateInput(input string, max int) string {
	if len(input) <= max {
		return input
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(input[cut]) {
		cut--
	}
	return input[:cut]
}

// RecordOutcome marks a logged classification as successful or not and
// routes the outcome to the matched pattern's success-rate update. The
// pattern link travels through the reserved parameter key stored at
// classification time.
func (c *SemanticClassifier) RecordOutcome(ctx context.Context, intentID int64, success bool) error {
	rec, err := c.repo.GetIntent(ctx, intentID)
	if err != nil {
		return fmt.Errorf("failed to load intent %d: %w", intentID, err)
	}

	if err := c.repo.UpdateIntentOutcome(ctx, intentID, success); err != nil {
		return fmt.Errorf("failed to update intent outcome: %w", err)
	}

	patternID, ok := matchedPatternID(rec.Parameters)
	if !ok {
		return nil
	}

	if err := c.repo.UpdatePatternStats(ctx, patternID, success); err != nil {
		return fmt.Errorf("failed to update pattern stats: %w", err)
	}

	c.logger.Debug("Recorded classification outcome",
		zap.Int64("intent_id", intentID),
		zap.Int64("pattern_id", patternID),
		zap.Bool("success", success))

	return nil
}

// matchedPatternID extracts the reserved pattern link from serialized
// classification parameters.
func matchedPatternID(serialized string) (int64, bool) {
	if serialized == "" {
		return 0, false
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(serialized), &params); err != nil {
		return 0, false
	}

	raw, ok := params[MatchedPatternIDKey].(string)
	if !ok {
		return 0, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
