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
	"encoding/json"
	"fmt"
	"time"
)

// TemplateRecord is a persisted generated template. Files are stored as
// a JSON object mapping relative paths to file contents.
type TemplateRecord struct {
	ID             int64             `json:"id"`
	ConversationID string            `json:"conversation_id"`
	ResourceType   string            `json:"resource_type"`
	Format         string            `json:"format"`
	MainFilePath   string            `json:"main_file_path"`
	Files          map[string]string `json:"files"`
	CreatedAt      time.Time         `json:"created_at"`
}

// SaveTemplate persists a generated template and returns its id.
func (s *Store) SaveTemplate(ctx context.Context, rec *TemplateRecord) (int64, error) {
	filesJSON, err := json.Marshal(rec.Files)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize template files: %w", err)
	}

	query := `
		INSERT INTO generated_templates (conversation_id, resource_type, format, main_file_path, files)
		VALUES (?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query, rec.ConversationID, rec.ResourceType,
		rec.Format, rec.MainFilePath, string(filesJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to insert template: %w", err)
	}
	return res.LastInsertId()
}

// ListTemplates returns persisted templates, newest first, optionally
// filtered by conversation.
func (s *Store) ListTemplates(ctx context.Context, conversationID string, limit int) ([]TemplateRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, conversation_id, resource_type, format, main_file_path, files, created_at
		FROM generated_templates
	`
	var args []interface{}
	if conversationID != "" {
		query += " WHERE conversation_id = ?"
		args = append(args, conversationID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var records []TemplateRecord
	for rows.Next() {
		var rec TemplateRecord
		var filesJSON string
		err := rows.Scan(&rec.ID, &rec.ConversationID, &rec.ResourceType,
			&rec.Format, &rec.MainFilePath, &filesJSON, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		if err := json.Unmarshal([]byte(filesJSON), &rec.Files); err != nil {
			return nil, fmt.Errorf("failed to decode template files: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating template rows: %w", err)
	}
	return records, nil
}
