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

package template

import (
	"fmt"

	"go.uber.org/zap"
)

// Generator renders IaC templates for single resources and composite
// architecture patterns.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a template generator.
func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger}
}

// Generate renders a single-resource template. The result contains one
// main file keyed by the format's conventional file name.
func (g *Generator) Generate(req *Request) *Result {
	body, err := renderResource(req, NetworkModeCreate)
	if err != nil {
		g.logger.Error("template generation failed",
			zap.String("resourceType", string(req.ResourceType)),
			zap.String("format", string(req.Format)),
			zap.Error(err))
		return &Result{Success: false, ErrorMessage: err.Error()}
	}

	mainFile := mainFileName(req.Format)
	g.logger.Debug("generated single-resource template",
		zap.String("resourceType", string(req.ResourceType)),
		zap.String("format", string(req.Format)),
		zap.Int("bytes", len(body)))

	return &Result{
		Success:      true,
		Files:        map[string]string{mainFile: body},
		MainFilePath: mainFile,
	}
}

func renderResource(req *Request, networkMode NetworkMode) (string, error) {
	switch req.Format {
	case FormatBicep:
		return bicepResource(req, networkMode)
	case FormatTerraform:
		return terraformResource(req, networkMode)
	default:
		return "", fmt.Errorf("unsupported template format %q", req.Format)
	}
}

func mainFileName(format Format) string {
	if format == FormatTerraform {
		return "main.tf"
	}
	return "main.bicep"
}

func moduleFileName(resourceType ResourceType, format Format) string {
	return fmt.Sprintf("modules/%s/%s", resourceType, mainFileName(format))
}
