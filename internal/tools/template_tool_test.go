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

	"go.uber.org/zap"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/template"
)

func newTemplateTool(defaults GenerationDefaults) *TemplateTool {
	logger := zap.NewNop()
	service := template.NewService(template.NewGenerator(logger), logger)
	return NewTemplateTool(service, nil, defaults, logger)
}

func TestExecuteCompositeCustomPattern(t *testing.T) {
	tool := newTemplateTool(GenerationDefaults{})

	result := tool.Execute(context.Background(), map[string]any{
		"pattern":   "custom",
		"format":    "bicep",
		"resources": "aks, storage",
	})

	if !result.IsSuccess {
		t.Fatalf("custom composite failed: %s", result.ErrorDetails)
	}
	if result.Template == nil || len(result.Template.Files) == 0 {
		t.Fatal("custom composite produced no files")
	}
	var found bool
	for path := range result.Template.Files {
		if strings.Contains(path, "aks") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an aks module file, got %v", keysOf(result.Template.Files))
	}
}

func TestExecuteCompositeCustomPatternJSONList(t *testing.T) {
	tool := newTemplateTool(GenerationDefaults{})

	result := tool.Execute(context.Background(), map[string]any{
		"pattern":   "custom",
		"format":    "terraform",
		"resources": []any{"keyvault", "storage"},
	})

	if !result.IsSuccess {
		t.Fatalf("custom composite failed: %s", result.ErrorDetails)
	}
}

func TestExecuteCompositeCustomPatternWithoutResources(t *testing.T) {
	tool := newTemplateTool(GenerationDefaults{})

	result := tool.Execute(context.Background(), map[string]any{
		"pattern": "custom",
		"format":  "bicep",
	})

	if result.IsSuccess {
		t.Fatal("custom pattern without resources reported success")
	}
	if !strings.Contains(result.ErrorDetails, "resource") {
		t.Errorf("ErrorDetails = %q, want resource requirement", result.ErrorDetails)
	}
}

func TestExecuteCompositeRejectsUnknownResource(t *testing.T) {
	tool := newTemplateTool(GenerationDefaults{})

	result := tool.Execute(context.Background(), map[string]any{
		"pattern":   "custom",
		"format":    "bicep",
		"resources": "aks,mainframe",
	})

	if result.IsSuccess {
		t.Fatal("unknown resource type reported success")
	}
}

func TestExecuteAppliesGenerationDefaults(t *testing.T) {
	tool := newTemplateTool(GenerationDefaults{Format: "terraform", Region: "usgovarizona"})

	result := tool.Execute(context.Background(), map[string]any{
		"resourceType": "storage",
	})

	if !result.IsSuccess {
		t.Fatalf("generation failed: %s", result.ErrorDetails)
	}
	if result.Template.Format != "terraform" {
		t.Errorf("Format = %q, want configured default terraform", result.Template.Format)
	}
	if !strings.Contains(result.Template.Files[result.Template.MainFilePath], "usgovarizona") {
		t.Error("configured default region not rendered into template")
	}
}

func TestExecuteExplicitFormatBeatsDefault(t *testing.T) {
	tool := newTemplateTool(GenerationDefaults{Format: "terraform"})

	result := tool.Execute(context.Background(), map[string]any{
		"resourceType": "storage",
		"format":       "bicep",
	})

	if !result.IsSuccess {
		t.Fatalf("generation failed: %s", result.ErrorDetails)
	}
	if result.Template.Format != "bicep" {
		t.Errorf("Format = %q, want bicep", result.Template.Format)
	}
}

func keysOf(files map[string]string) []string {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	return keys
}
