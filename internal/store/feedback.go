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

package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/intent"
)

// AddFeedback records a correction against a logged classification.
// Feedback is insert-only. Incorrect feedback with a corrected category
// and action is surfaced in the logs as a pattern candidate but never
// auto-promoted to a live pattern.
func (s *Store) AddFeedback(ctx context.Context, fb *intent.Feedback) (int64, error) {
	if !intent.ValidFeedbackType(string(fb.Type)) {
		return 0, fmt.Errorf("invalid feedback type %q", fb.Type)
	}

	if _, err := s.GetIntent(ctx, fb.IntentID); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO intent_feedback (intent_id, feedback_type, corrected_category, corrected_action, corrected_params, comment)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query, fb.IntentID, string(fb.Type),
		fb.CorrectedCategory, fb.CorrectedAction, fb.CorrectedParams, fb.Comment)
	if err != nil {
		return 0, fmt.Errorf("failed to insert feedback: %w", err)
	}

	if fb.Type == intent.FeedbackIncorrect && fb.CorrectedCategory != "" && fb.CorrectedAction != "" {
		s.logger.Info("classification correction received, consider creating a new pattern",
			zap.Int64("intentId", fb.IntentID),
			zap.String("correctedCategory", fb.CorrectedCategory),
			zap.String("correctedAction", fb.CorrectedAction))
	}

	return res.LastInsertId()
}

// ListFeedbackForIntent returns all feedback recorded for one
// classification, oldest first.
func (s *Store) ListFeedbackForIntent(ctx context.Context, intentID int64) ([]intent.Feedback, error) {
	query := `
		SELECT id, intent_id, feedback_type, corrected_category, corrected_action, corrected_params, comment, created_at
		FROM intent_feedback
		WHERE intent_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var feedback []intent.Feedback
	for rows.Next() {
		var fb intent.Feedback
		var fbType string
		err := rows.Scan(&fb.ID, &fb.IntentID, &fbType, &fb.CorrectedCategory,
			&fb.CorrectedAction, &fb.CorrectedParams, &fb.Comment, &fb.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		fb.Type = intent.FeedbackType(fbType)
		feedback = append(feedback, fb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback rows: %w", err)
	}
	return feedback, nil
}
