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

// Package tools implements the copilot's tool plugins and the registry
// that routes tool calls to them.
package tools

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/intent"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/toolchain"
)

// Plugin is one executable tool.
type Plugin interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args map[string]any) toolchain.ToolResult
}

// Registry routes tool calls to registered plugins. It satisfies
// toolchain.Router.
type Registry struct {
	plugins map[string]Plugin
	logger  *zap.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		plugins: make(map[string]Plugin),
		logger:  logger,
	}
}

// Register adds a plugin. Registering the same name twice replaces the
// earlier plugin.
func (r *Registry) Register(p Plugin) {
	r.plugins[p.Name()] = p
}

// RouteToolCall dispatches a call to the named plugin. Unknown tools
// produce a failed result rather than an error so chain execution can
// account for them like any other failure.
func (r *Registry) RouteToolCall(ctx context.Context, call toolchain.ToolCall) toolchain.ToolResult {
	plugin, ok := r.plugins[call.Name]
	if !ok {
		r.logger.Warn("unknown tool requested",
			zap.String("tool", call.Name),
			zap.String("requestId", call.RequestID))
		return toolchain.ToolResult{
			IsSuccess:    false,
			ErrorDetails: fmt.Sprintf("unknown tool %q", call.Name),
		}
	}

	r.logger.Debug("routing tool call",
		zap.String("tool", call.Name),
		zap.String("requestId", call.RequestID))

	return plugin.Execute(ctx, call.Arguments)
}

// Catalog lists registered tools sorted by name, for prompt
// construction and discovery.
func (r *Registry) Catalog() []intent.ToolInfo {
	infos := make([]intent.ToolInfo, 0, len(r.plugins))
	for _, p := range r.plugins {
		infos = append(infos, intent.ToolInfo{Name: p.Name(), Description: p.Description()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// stringArg returns the first non-empty string value found under any of
// the given keys.
func stringArg(args map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := args[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// intArg returns the integer value under key, tolerating the float64
// representation JSON decoding produces.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func failure(format string, a ...any) toolchain.ToolResult {
	return toolchain.ToolResult{
		IsSuccess:    false,
		ErrorDetails: fmt.Sprintf(format, a...),
	}
}
