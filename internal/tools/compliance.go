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
	"strings"

	"go.uber.org/zap"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/azure"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/toolchain"
)

// ComplianceTool runs ATO compliance scans against a subscription or
// resource group through the provisioning service.
type ComplianceTool struct {
	provisioner azure.ProvisioningClient
	logger      *zap.Logger
}

// NewComplianceTool creates the ato_compliance plugin.
func NewComplianceTool(provisioner azure.ProvisioningClient, logger *zap.Logger) *ComplianceTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplianceTool{provisioner: provisioner, logger: logger}
}

func (t *ComplianceTool) Name() string { return "ato_compliance" }

func (t *ComplianceTool) Description() string {
	return "Runs ATO compliance assessments against Azure subscriptions and reports findings"
}

func (t *ComplianceTool) Execute(ctx context.Context, args map[string]any) toolchain.ToolResult {
	scope := stringArg(args, "scope", "resourceGroup", "subscription")
	if scope == "" {
		scope = "subscription"
	}

	resp, err := t.provisioner.CallTool(ctx, &azure.ToolRequest{
		Tool: "compliance_scan",
		Parameters: map[string]any{
			"scope":          scope,
			"conversationId": stringArg(args, "conversationId", "conversation_id"),
		},
	})
	if err != nil {
		t.logger.Error("compliance scan failed", zap.String("scope", scope), zap.Error(err))
		return failure("compliance scan failed: %v", err)
	}
	if !resp.Success {
		return failure("compliance scan failed: %s", resp.Error)
	}

	return toolchain.ToolResult{
		IsSuccess: true,
		Content:   fmt.Sprintf("Compliance assessment for %s:\n%s", scope, resp.Content),
	}
}

// HardeningTool produces security hardening recommendations, folding in
// findings from a preceding compliance step when chained after one.
type HardeningTool struct {
	logger *zap.Logger
}

// NewHardeningTool creates the security_hardening plugin.
func NewHardeningTool(logger *zap.Logger) *HardeningTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HardeningTool{logger: logger}
}

func (t *HardeningTool) Name() string { return "security_hardening" }

func (t *HardeningTool) Description() string {
	return "Recommends security hardening steps for Azure resources, optionally driven by compliance findings"
}

var hardeningBaseline = []string{
	"Enable system-assigned managed identities and remove stored credentials",
	"Disable public network access and front services with private endpoints",
	"Enforce TLS 1.2 as the minimum protocol version",
	"Enable diagnostic settings routed to a central Log Analytics workspace",
	"Apply deny-by-default network security group rules on workload subnets",
	"Turn on Azure RBAC and disable local accounts where supported",
}

func (t *HardeningTool) Execute(ctx context.Context, args map[string]any) toolchain.ToolResult {
	var b strings.Builder
	b.WriteString("Recommended hardening steps:\n")
	for i, step := range hardeningBaseline {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}

	if previous := stringArg(args, toolchain.PreviousResultKey); previous != "" {
		b.WriteString("\nFindings from the preceding compliance assessment:\n")
		b.WriteString(previous)
	}

	return toolchain.ToolResult{IsSuccess: true, Content: b.String()}
}
