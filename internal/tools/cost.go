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

package tools

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/azure"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/toolchain"
)

// CostTool reports subscription spend through the provisioning
// service's cost backend.
type CostTool struct {
	provisioner azure.ProvisioningClient
	logger      *zap.Logger
}

// NewCostTool creates the cost_analysis plugin.
func NewCostTool(provisioner azure.ProvisioningClient, logger *zap.Logger) *CostTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CostTool{provisioner: provisioner, logger: logger}
}

func (t *CostTool) Name() string { return "cost_analysis" }

func (t *CostTool) Description() string {
	return "Analyzes Azure spend for a subscription or resource group over a time window"
}

func (t *CostTool) Execute(ctx context.Context, args map[string]any) toolchain.ToolResult {
	scope := stringArg(args, "scope", "resourceGroup", "subscription")
	if scope == "" {
		scope = "subscription"
	}
	window := stringArg(args, "timeWindow", "time_window", "period")
	if window == "" {
		window = "30d"
	}

	resp, err := t.provisioner.CallTool(ctx, &azure.ToolRequest{
		Tool: "cost_analysis",
		Parameters: map[string]any{
			"scope":          scope,
			"timeWindow":     window,
			"conversationId": stringArg(args, "conversationId", "conversation_id"),
		},
	})
	if err != nil {
		t.logger.Error("cost analysis failed", zap.String("scope", scope), zap.Error(err))
		return failure("cost analysis failed: %v", err)
	}
	if !resp.Success {
		return failure("cost analysis failed: %s", resp.Error)
	}

	return toolchain.ToolResult{
		IsSuccess: true,
		Content:   fmt.Sprintf("Cost analysis for %s over %s:\n%s", scope, window, resp.Content),
	}
}
