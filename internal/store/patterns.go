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

// AddPattern inserts a new matching pattern and returns its id.
func (s *Store) AddPattern(ctx context.Context, p *intent.Pattern) (int64, error) {
	query := `
		INSERT INTO intent_patterns (pattern, category, action, weight, success_rate, usage_count, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	weight := p.Weight
	if weight <= 0 {
		weight = 1.0
	}
	successRate := p.SuccessRate
	if successRate <= 0 {
		successRate = 1.0
	}

	res, err := s.db.ExecContext(ctx, query, p.Pattern, p.Category, p.Action, weight, successRate, p.UsageCount, boolToInt(true))
	if err != nil {
		return 0, fmt.Errorf("failed to insert pattern: %w", err)
	}
	return res.LastInsertId()
}

// ListActivePatterns returns every active pattern ordered by weight.
func (s *Store) ListActivePatterns(ctx context.Context) ([]intent.Pattern, error) {
	query := `
		SELECT id, pattern, category, action, weight, success_rate, usage_count, active, created_at, updated_at
		FROM intent_patterns
		WHERE active = 1
		ORDER BY weight DESC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// ListPatterns returns all patterns, active or not.
func (s *Store) ListPatterns(ctx context.Context) ([]intent.Pattern, error) {
	query := `
		SELECT id, pattern, category, action, weight, success_rate, usage_count, active, created_at, updated_at
		FROM intent_patterns
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// DeactivatePattern soft-deletes a pattern. Deactivated patterns keep
// their history but are excluded from classification.
func (s *Store) DeactivatePattern(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE intent_patterns SET active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate pattern: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("pattern %d not found", id)
	}
	return nil
}

// UpdatePatternStats folds a classification outcome into the pattern's
// running success rate and bumps its usage count. The new rate is the
// running average over all recorded uses.
func (s *Store) UpdatePatternStats(ctx context.Context, patternID int64, success bool) error {
	outcome := 0.0
	if success {
		outcome = 1.0
	}

	query := `
		UPDATE intent_patterns
		SET success_rate = (success_rate * usage_count + ?) / (usage_count + 1),
		    usage_count = usage_count + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query, outcome, patternID)
	if err != nil {
		return fmt.Errorf("failed to update pattern stats: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("pattern %d not found", patternID)
	}
	return nil
}

func scanPatterns(rows *sql.Rows) ([]intent.Pattern, error) {
	var patterns []intent.Pattern
	for rows.Next() {
		var p intent.Pattern
		var active int
		err := rows.Scan(&p.ID, &p.Pattern, &p.Category, &p.Action, &p.Weight,
			&p.SuccessRate, &p.UsageCount, &active, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		p.Active = active != 0
		patterns = append(patterns, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pattern rows: %w", err)
	}
	return patterns, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
