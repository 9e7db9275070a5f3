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
	"strings"
	"testing"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/toolchain"
)

type stubPlugin struct {
	name     string
	desc     string
	called   bool
	lastArgs map[string]any
}

func (p *stubPlugin) Name() string        { return p.name }
func (p *stubPlugin) Description() string { return p.desc }

func (p *stubPlugin) Execute(_ context.Context, args map[string]any) toolchain.ToolResult {
	p.called = true
	p.lastArgs = args
	return toolchain.ToolResult{IsSuccess: true, Content: p.name + " ran"}
}

func TestRouteToolCall(t *testing.T) {
	registry := NewRegistry(nil)
	plugin := &stubPlugin{name: "cost_analysis"}
	registry.Register(plugin)

	result := registry.RouteToolCall(context.Background(), toolchain.ToolCall{
		Name:      "cost_analysis",
		Arguments: map[string]any{"scope": "subscription"},
	})

	if !result.IsSuccess {
		t.Fatalf("RouteToolCall failed: %s", result.ErrorDetails)
	}
	if plugin.lastArgs["scope"] != "subscription" {
		t.Errorf("arguments not passed through: %v", plugin.lastArgs)
	}
}

func TestRouteToolCallUnknownTool(t *testing.T) {
	registry := NewRegistry(nil)

	result := registry.RouteToolCall(context.Background(), toolchain.ToolCall{Name: "nonexistent"})

	if result.IsSuccess {
		t.Fatal("unknown tool reported success")
	}
	if !strings.Contains(result.ErrorDetails, "nonexistent") {
		t.Errorf("ErrorDetails = %q, want tool name", result.ErrorDetails)
	}
}

func TestRegisterReplacesPlugin(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register(&stubPlugin{name: "cost_analysis", desc: "old"})
	replacement := &stubPlugin{name: "cost_analysis", desc: "new"}
	registry.Register(replacement)

	registry.RouteToolCall(context.Background(), toolchain.ToolCall{Name: "cost_analysis"})
	if !replacement.called {
		t.Error("replacement plugin was not routed to")
	}
}

func TestCatalogSortedByName(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register(&stubPlugin{name: "template_generation", desc: "templates"})
	registry.Register(&stubPlugin{name: "ato_compliance", desc: "compliance"})
	registry.Register(&stubPlugin{name: "cost_analysis", desc: "cost"})

	catalog := registry.Catalog()

	want := []string{"ato_compliance", "cost_analysis", "template_generation"}
	if len(catalog) != len(want) {
		t.Fatalf("catalog has %d entries, want %d", len(catalog), len(want))
	}
	for i, name := range want {
		if catalog[i].Name != name {
			t.Errorf("catalog[%d] = %q, want %q", i, catalog[i].Name, name)
		}
	}
	if catalog[1].Description != "cost" {
		t.Errorf("description not carried: %q", catalog[1].Description)
	}
}

func TestStringArg(t *testing.T) {
	args := map[string]any{
		"conversationId":  "",
		"conversation_id": "conv-1",
		"count":           3,
	}

	if got := stringArg(args, "conversationId", "conversation_id"); got != "conv-1" {
		t.Errorf("stringArg skipped empty value wrong: %q", got)
	}
	if got := stringArg(args, "count"); got != "" {
		t.Errorf("stringArg on non-string = %q, want empty", got)
	}
	if got := stringArg(args, "missing"); got != "" {
		t.Errorf("stringArg on missing key = %q, want empty", got)
	}
}

func TestIntArg(t *testing.T) {
	args := map[string]any{
		"a": 3,
		"b": int64(4),
		"c": float64(5),
		"d": "6",
	}

	if got := intArg(args, "a"); got != 3 {
		t.Errorf("int: got %d", got)
	}
	if got := intArg(args, "b"); got != 4 {
		t.Errorf("int64: got %d", got)
	}
	if got := intArg(args, "c"); got != 5 {
		t.Errorf("float64: got %d", got)
	}
	if got := intArg(args, "d"); got != 0 {
		t.Errorf("string: got %d, want 0", got)
	}
}
