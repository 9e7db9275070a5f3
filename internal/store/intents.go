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
	"database/sql"
	"fmt"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/intent"
)

// maxStoredInputLength bounds the user input persisted with each
// classification record.
const maxStoredInputLength = 500

// RecordIntent logs a classification event and returns its id. The
// outcome column starts NULL and is settled later by
// UpdateIntentOutcome.
func (s *Store) RecordIntent(ctx context.Context, rec *intent.Record) (int64, error) {
	input := rec.UserInput
	if len(input) > maxStoredInputLength {
		input = input[:maxStoredInputLength]
	}

	query := `
		INSERT INTO intents (user_id, user_input, category, action, confidence, session_id, parameters, tool_call)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query, rec.UserID, input, rec.Category,
		rec.Action, rec.Confidence, rec.SessionID, rec.Parameters, rec.ToolCall)
	if err != nil {
		return 0, fmt.Errorf("failed to insert intent record: %w", err)
	}
	return res.LastInsertId()
}

// GetIntent returns a single classification record.
func (s *Store) GetIntent(ctx context.Context, id int64) (*intent.Record, error) {
	query := `
		SELECT id, user_id, user_input, category, action, confidence, session_id, parameters, tool_call, successful, created_at
		FROM intents
		WHERE id = ?
	`

	row := s.db.QueryRowContext(ctx, query, id)

	var rec intent.Record
	var successful sql.NullBool
	err := row.Scan(&rec.ID, &rec.UserID, &rec.UserInput, &rec.Category, &rec.Action,
		&rec.Confidence, &rec.SessionID, &rec.Parameters, &rec.ToolCall, &successful, &rec.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("intent %d not found", id)
		}
		return nil, fmt.Errorf("failed to scan intent: %w", err)
	}
	if successful.Valid {
		v := successful.Bool
		rec.Successful = &v
	}
	return &rec, nil
}

// UpdateIntentOutcome settles a record's outcome. A record's outcome is
// written at most once; later calls are no-ops.
func (s *Store) UpdateIntentOutcome(ctx context.Context, id int64, success bool) error {
	query := `
		UPDATE intents
		SET successful = ?
		WHERE id = ? AND successful IS NULL
	`

	_, err := s.db.ExecContext(ctx, query, boolToInt(success), id)
	if err != nil {
		return fmt.Errorf("failed to update intent outcome: %w", err)
	}
	return nil
}

// IntentSummary aggregates classification volume and outcomes for the
// analytics endpoint.
type IntentSummary struct {
	Category      string  `json:"category"`
	Action        string  `json:"action"`
	Total         int     `json:"total"`
	Succeeded     int     `json:"succeeded"`
	Failed        int     `json:"failed"`
	Unresolved    int     `json:"unresolved"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// SummarizeIntents groups logged classifications by category and action.
func (s *Store) SummarizeIntents(ctx context.Context) ([]IntentSummary, error) {
	query := `
		SELECT category, action,
		       COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN successful = 1 THEN 1 ELSE 0 END), 0) AS succeeded,
		       COALESCE(SUM(CASE WHEN successful = 0 THEN 1 ELSE 0 END), 0) AS failed,
		       COALESCE(SUM(CASE WHEN successful IS NULL THEN 1 ELSE 0 END), 0) AS unresolved,
		       COALESCE(AVG(confidence), 0) AS avg_confidence
		FROM intents
		GROUP BY category, action
		ORDER BY total DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query intent summary: %w", err)
	}
	defer rows.Close()

	var summaries []IntentSummary
	for rows.Next() {
		var sum IntentSummary
		err := rows.Scan(&sum.Category, &sum.Action, &sum.Total, &sum.Succeeded,
			&sum.Failed, &sum.Unresolved, &sum.AvgConfidence)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intent summary: %w", err)
		}
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}
	return summaries, nil
}
