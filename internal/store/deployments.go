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
	"time"
)

// Deployment status values.
const (
	DeploymentPending   = "pending"
	DeploymentRunning   = "running"
	DeploymentSucceeded = "succeeded"
	DeploymentFailed    = "failed"
)

func validDeploymentStatus(status string) bool {
	switch status {
	case DeploymentPending, DeploymentRunning, DeploymentSucceeded, DeploymentFailed:
		return true
	}
	return false
}

// Deployment tracks provisioning started from a conversation.
type Deployment struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	ResourceType   string    `json:"resource_type"`
	ResourceName   string    `json:"resource_name"`
	Region         string    `json:"region"`
	Status         string    `json:"status"`
	Detail         string    `json:"detail,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateDeployment records a new deployment in pending state.
func (s *Store) CreateDeployment(ctx context.Context, d *Deployment) (int64, error) {
	status := d.Status
	if status == "" {
		status = DeploymentPending
	}
	if !validDeploymentStatus(status) {
		return 0, fmt.Errorf("invalid deployment status %q", status)
	}

	query := `
		INSERT INTO deployments (conversation_id, resource_type, resource_name, region, status, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query, d.ConversationID, d.ResourceType,
		d.ResourceName, d.Region, status, d.Detail)
	if err != nil {
		return 0, fmt.Errorf("failed to insert deployment: %w", err)
	}
	return res.LastInsertId()
}

// UpdateDeploymentStatus moves a deployment to a new status.
func (s *Store) UpdateDeploymentStatus(ctx context.Context, id int64, status, detail string) error {
	if !validDeploymentStatus(status) {
		return fmt.Errorf("invalid deployment status %q", status)
	}

	query := `
		UPDATE deployments
		SET status = ?, detail = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query, status, detail, id)
	if err != nil {
		return fmt.Errorf("failed to update deployment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("deployment %d not found", id)
	}
	return nil
}

// GetDeployment returns one deployment or nil when it does not exist.
func (s *Store) GetDeployment(ctx context.Context, id int64) (*Deployment, error) {
	query := `
		SELECT id, conversation_id, resource_type, resource_name, region, status, detail, created_at, updated_at
		FROM deployments
		WHERE id = ?
	`

	row := s.db.QueryRowContext(ctx, query, id)

	var d Deployment
	err := row.Scan(&d.ID, &d.ConversationID, &d.ResourceType, &d.ResourceName,
		&d.Region, &d.Status, &d.Detail, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan deployment: %w", err)
	}
	return &d, nil
}

// ListDeployments returns deployments for a conversation, newest first.
func (s *Store) ListDeployments(ctx context.Context, conversationID string) ([]Deployment, error) {
	query := `
		SELECT id, conversation_id, resource_type, resource_name, region, status, detail, created_at, updated_at
		FROM deployments
		WHERE conversation_id = ?
		ORDER BY id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}
	defer rows.Close()

	var deployments []Deployment
	for rows.Next() {
		var d Deployment
		err := rows.Scan(&d.ID, &d.ConversationID, &d.ResourceType, &d.ResourceName,
			&d.Region, &d.Status, &d.Detail, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deployment rows: %w", err)
	}
	return deployments, nil
}
