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

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/store"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/template"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/toolchain"
)

// TemplateTool generates Bicep and Terraform templates, for single
// resources and composite architecture patterns.
type TemplateTool struct {
	service  *template.Service
	store    *store.Store
	defaults GenerationDefaults
	logger   *zap.Logger
}

// GenerationDefaults are the format and region applied when a request
// leaves them unset. Zero values fall back to the package defaults.
type GenerationDefaults struct {
	Format string
	Region string
}

// NewTemplateTool creates the template_generation plugin.
func NewTemplateTool(service *template.Service, st *store.Store, defaults GenerationDefaults, logger *zap.Logger) *TemplateTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateTool{service: service, store: st, defaults: defaults, logger: logger}
}

func (t *TemplateTool) Name() string { return "template_generation" }

func (t *TemplateTool) Description() string {
	return "Generates Bicep or Terraform templates for single Azure resources or composite architecture patterns"
}

// Execute generates a template. A pattern parameter selects composite
// generation; otherwise a single resource is generated.
func (t *TemplateTool) Execute(ctx context.Context, args map[string]any) toolchain.ToolResult {
	conversationID := stringArg(args, "conversationId", "conversation_id")
	format, err := t.formatArg(args)
	if err != nil {
		return failure("invalid template request: %v", err)
	}

	if patternToken := stringArg(args, "pattern", "architecturePattern", "architecture_pattern"); patternToken != "" {
		return t.executeComposite(ctx, conversationID, patternToken, format, args)
	}

	resourceToken := stringArg(args, "resourceType", "resource_type", "resource")
	if resourceToken == "" {
		return failure("missing required parameter resourceType or pattern")
	}

	req, err := template.BuildRequest(
		resourceToken,
		stringArg(args, "name", "resourceName"),
		stringArg(args, "description"),
		format,
		t.regionArg(args),
		intArg(args, "nodeCount"),
		stringArg(args, "subscription"),
	)
	if err != nil {
		return failure("invalid template request: %v", err)
	}

	result := t.service.Generate(conversationID, req)
	if !result.Success {
		return failure("template generation failed: %s", result.ErrorMessage)
	}

	t.persist(ctx, conversationID, string(req.ResourceType), string(format), result)

	return toolchain.ToolResult{
		IsSuccess: true,
		Content:   fmt.Sprintf("Generated %s template for %s.", format, req.ResourceType),
		Template: &toolchain.TemplateResult{
			Format:       string(format),
			ResourceType: string(req.ResourceType),
			MainFilePath: result.MainFilePath,
			Files:        result.Files,
		},
	}
}

func (t *TemplateTool) executeComposite(ctx context.Context, conversationID, patternToken string, format template.Format, args map[string]any) toolchain.ToolResult {
	pattern, err := template.ParseArchitecturePattern(patternToken)
	if err != nil {
		return failure("unsupported architecture pattern %q", patternToken)
	}

	networkMode := template.NetworkModeCreate
	if mode := stringArg(args, "networkMode", "network_mode"); mode == string(template.NetworkModeExisting) {
		networkMode = template.NetworkModeExisting
	}

	customResources, err := customResourcesArg(args)
	if err != nil {
		return failure("invalid template request: %v", err)
	}

	req := &template.CompositeRequest{
		Pattern:         pattern,
		Format:          format,
		NamePrefix:      stringArg(args, "name", "namePrefix", "resourceName"),
		Region:          t.regionArg(args),
		NodeCount:       intArg(args, "nodeCount"),
		Subscription:    stringArg(args, "subscription"),
		NetworkMode:     networkMode,
		CustomResources: customResources,
	}
	if req.NamePrefix == "" {
		req.NamePrefix = "copilot"
	}

	result := t.service.GenerateComposite(conversationID, req)
	if !result.Success {
		return failure("composite template generation failed: %s", result.ErrorMessage)
	}

	t.persist(ctx, conversationID, string(pattern), string(format), result)

	return toolchain.ToolResult{
		IsSuccess: true,
		Content:   fmt.Sprintf("Generated %s %s deployment with %d files.", format, pattern, len(result.Files)),
		Template: &toolchain.TemplateResult{
			Format:       string(format),
			ResourceType: string(pattern),
			MainFilePath: result.MainFilePath,
			Files:        result.Files,
		},
	}
}

// formatArg resolves the template format, preferring the request's own
// value over the configured default.
func (t *TemplateTool) formatArg(args map[string]any) (template.Format, error) {
	token := stringArg(args, "format", "templateFormat")
	if token == "" {
		token = t.defaults.Format
	}
	return template.ParseFormat(token)
}

// regionArg resolves the deployment region, preferring the request's
// own value over the configured default.
func (t *TemplateTool) regionArg(args map[string]any) string {
	if region := stringArg(args, "region", "location"); region != "" {
		return region
	}
	return t.defaults.Region
}

// customResourcesArg parses the resource list for custom composite
// patterns. Accepts a JSON-decoded list or a comma-separated string
// under resources/customResources.
func customResourcesArg(args map[string]any) ([]template.ResourceType, error) {
	var tokens []string
	switch raw := args["resources"].(type) {
	case []any:
		for _, entry := range raw {
			if s, ok := entry.(string); ok && s != "" {
				tokens = append(tokens, s)
			}
		}
	case []string:
		tokens = raw
	default:
		if list := stringArg(args, "resources", "customResources", "custom_resources"); list != "" {
			for _, token := range strings.Split(list, ",") {
				if token = strings.TrimSpace(token); token != "" {
					tokens = append(tokens, token)
				}
			}
		}
	}

	resources := make([]template.ResourceType, 0, len(tokens))
	for _, token := range tokens {
		resource, err := template.ParseResourceType(token)
		if err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}
	return resources, nil
}

func (t *TemplateTool) persist(ctx context.Context, conversationID, resourceType, format string, result *template.Result) {
	if t.store == nil {
		return
	}
	_, err := t.store.SaveTemplate(ctx, &store.TemplateRecord{
		ConversationID: conversationID,
		ResourceType:   resourceType,
		Format:         format,
		MainFilePath:   result.MainFilePath,
		Files:          result.Files,
	})
	if err != nil {
		t.logger.Warn("failed to persist generated template",
			zap.String("resourceType", resourceType),
			zap.Error(err))
	}
}
