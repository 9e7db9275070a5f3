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
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/store"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/template"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/toolchain"
)

// InfrastructureTool provisions Azure resources through the
// provisioning service and tracks the resulting deployments.
type InfrastructureTool struct {
	provisioner azure.ProvisioningClient
	store       *store.Store
	logger      *zap.Logger
}

// NewInfrastructureTool creates the azure_infrastructure plugin.
func NewInfrastructureTool(provisioner azure.ProvisioningClient, st *store.Store, logger *zap.Logger) *InfrastructureTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InfrastructureTool{provisioner: provisioner, store: st, logger: logger}
}

func (t *InfrastructureTool) Name() string { return "azure_infrastructure" }

func (t *InfrastructureTool) Description() string {
	return "Provisions Azure infrastructure such as AKS clusters, storage accounts, web apps and networks"
}

// Execute provisions the requested resource and records the deployment.
func (t *InfrastructureTool) Execute(ctx context.Context, args map[string]any) toolchain.ToolResult {
	resourceToken := stringArg(args, "resourceType", "resource_type", "resource")
	if resourceToken == "" {
		return failure("missing required parameter resourceType")
	}

	resourceType, err := template.ParseResourceType(resourceToken)
	if err != nil {
		return failure("unsupported resource type %q", resourceToken)
	}

	name := stringArg(args, "resourceName", "resource_name", "name")
	if name == "" {
		name = fmt.Sprintf("copilot-%s", resourceType)
	}

	region := stringArg(args, "region", "location")
	if region == "" {
		region = template.DefaultRegion
	}

	conversationID := stringArg(args, "conversationId", "conversation_id")

	resp, err := t.provisioner.ProvisionInfrastructure(ctx, &azure.ProvisionRequest{
		ResourceType:   string(resourceType),
		ResourceName:   name,
		Region:         region,
		Subscription:   stringArg(args, "subscription"),
		ConversationID: conversationID,
		Parameters:     args,
	})
	if err != nil {
		t.logger.Error("provisioning failed",
			zap.String("resourceType", string(resourceType)),
			zap.String("resourceName", name),
			zap.Error(err))
		return failure("failed to provision %s %q: %v", resourceType, name, err)
	}

	if t.store != nil {
		_, recordErr := t.store.CreateDeployment(ctx, &store.Deployment{
			ConversationID: conversationID,
			ResourceType:   string(resourceType),
			ResourceName:   name,
			Region:         region,
			Status:         store.DeploymentRunning,
			Detail:         resp.DeploymentID,
		})
		if recordErr != nil {
			t.logger.Warn("failed to record deployment",
				zap.String("deploymentId", resp.DeploymentID),
				zap.Error(recordErr))
		}
	}

	content := fmt.Sprintf("Provisioning of %s %q started in %s (deployment %s, status %s).",
		resourceType, name, region, resp.DeploymentID, resp.Status)
	if resp.Message != "" {
		content += " " + resp.Message
	}

	return toolchain.ToolResult{IsSuccess: true, Content: content}
}
