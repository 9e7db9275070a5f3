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

package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/toolchain"
)

// formatToolResult renders one tool outcome as a chat message.
func formatToolResult(toolName string, result toolchain.ToolResult) string {
	if !result.IsSuccess {
		return fmt.Sprintf("❌ %s failed: %s", toolName, result.ErrorDetails)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ %s", result.Content)

	if result.Template != nil {
		b.WriteString("\n\nGenerated files:\n")
		paths := make([]string, 0, len(result.Template.Files))
		for path := range result.Template.Files {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			marker := ""
			if path == result.Template.MainFilePath {
				marker = " (main)"
			}
			fmt.Fprintf(&b, "- %s%s\n", path, marker)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// formatChainResult renders a chain execution with per-step outcomes.
func formatChainResult(result *toolchain.ChainResult) string {
	var b strings.Builder

	switch result.Status {
	case toolchain.ChainCompleted:
		b.WriteString("✅ All steps completed.\n")
	case toolchain.ChainPartialSuccess:
		b.WriteString("⚠️ Some steps failed.\n")
	default:
		b.WriteString("❌ The operation could not be completed.\n")
	}

	for _, step := range result.Steps {
		switch step.Status {
		case toolchain.StepCompleted:
			fmt.Fprintf(&b, "✅ Step %d (%s): %s\n", step.StepNumber, step.ToolName, step.Result)
		case toolchain.StepFailed:
			fmt.Fprintf(&b, "❌ Step %d (%s): %s\n", step.StepNumber, step.ToolName, step.ErrorMessage)
		default:
			fmt.Fprintf(&b, "⏭️ Step %d (%s): not run\n", step.StepNumber, step.ToolName)
		}
	}

	b.WriteString(result.Summary)
	return b.String()
}
