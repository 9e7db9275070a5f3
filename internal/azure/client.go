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

// Package azure talks to the provisioning service that executes
// infrastructure operations on behalf of the copilot.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ProvisionRequest describes an infrastructure provisioning call.
type ProvisionRequest struct {
	ResourceType   string         `json:"resource_type"`
	ResourceName   string         `json:"resource_name"`
	Region         string         `json:"region"`
	Subscription   string         `json:"subscription,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
}

// ProvisionResponse is the provisioning service's reply.
type ProvisionResponse struct {
	DeploymentID string `json:"deployment_id"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
}

// ToolRequest is a generic pass-through call to a named backend tool.
type ToolRequest struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ToolResponse is the generic reply from a backend tool.
type ToolResponse struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// ProvisioningClient is the surface the tool plugins depend on.
type ProvisioningClient interface {
	ProvisionInfrastructure(ctx context.Context, req *ProvisionRequest) (*ProvisionResponse, error)
	DeleteResourceGroup(ctx context.Context, name string) error
	CallTool(ctx context.Context, req *ToolRequest) (*ToolResponse, error)
}

// Client wraps the provisioning service REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a provisioning service client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// ProvisionInfrastructure asks the provisioning service to deploy a
// resource.
func (c *Client) ProvisionInfrastructure(ctx context.Context, req *ProvisionRequest) (*ProvisionResponse, error) {
	var resp ProvisionResponse
	if err := c.post(ctx, "/api/provision", req, &resp); err != nil {
		return nil, fmt.Errorf("provisioning request failed: %w", err)
	}

	c.logger.Info("provisioning started",
		zap.String("resourceType", req.ResourceType),
		zap.String("resourceName", req.ResourceName),
		zap.String("deploymentId", resp.DeploymentID))

	return &resp, nil
}

// DeleteResourceGroup asks the provisioning service to tear down a
// resource group.
func (c *Client) DeleteResourceGroup(ctx context.Context, name string) error {
	url := fmt.Sprintf("%s/api/resource-groups/%s", c.baseURL, name)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("provisioning service returned %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Info("resource group deletion requested", zap.String("resourceGroup", name))
	return nil
}

// CallTool forwards a generic tool invocation to the provisioning
// service.
func (c *Client) CallTool(ctx context.Context, req *ToolRequest) (*ToolResponse, error) {
	var resp ToolResponse
	if err := c.post(ctx, "/api/tools/"+req.Tool, req, &resp); err != nil {
		return nil, fmt.Errorf("tool call %q failed: %w", req.Tool, err)
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provisioning service returned %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
