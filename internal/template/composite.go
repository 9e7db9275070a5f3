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
	"strings"

	"go.uber.org/zap"
)

// patternResources maps each architecture pattern to the ordered set of
// resource modules it deploys. Network always comes first so later
// modules can consume its subnet outputs.
var patternResources = map[ArchitecturePattern][]ResourceType{
	PatternThreeTier:     {ResourceNetwork, ResourceAppService, ResourceSQL},
	PatternAKSWithVNet:   {ResourceNetwork, ResourceAKS, ResourceContainerRegistry},
	PatternLandingZone:   {ResourceNetwork, ResourceKeyVault, ResourceStorage},
	PatternMicroservices: {ResourceNetwork, ResourceAKS, ResourceContainerRegistry, ResourceKeyVault},
	PatternServerless:    {ResourceNetwork, ResourceFunctionApp, ResourceStorage},
	PatternDataPlatform:  {ResourceNetwork, ResourceStorage, ResourceSQL, ResourceKeyVault},
	PatternSCCACompliant: {ResourceNetwork, ResourceKeyVault, ResourceStorage, ResourceVM},
}

// PatternSequence returns the resource modules a pattern deploys, in
// deployment order. For PatternCustom the sequence comes from the
// request's CustomResources.
func PatternSequence(req *CompositeRequest) ([]ResourceType, error) {
	if req.Pattern == PatternCustom {
		if len(req.CustomResources) == 0 {
			return nil, fmt.Errorf("custom pattern requires at least one resource")
		}
		return req.CustomResources, nil
	}
	seq, ok := patternResources[req.Pattern]
	if !ok {
		return nil, fmt.Errorf("unknown architecture pattern %q", req.Pattern)
	}
	return seq, nil
}

// GenerateComposite renders a multi-module deployment for an
// architecture pattern. The main file references exactly the module
// files produced; if any module fails to render the whole result is
// discarded and Success is false.
func (g *Generator) GenerateComposite(req *CompositeRequest) *Result {
	sequence, err := PatternSequence(req)
	if err != nil {
		return &Result{Success: false, ErrorMessage: err.Error()}
	}

	files := make(map[string]string, len(sequence)+1)
	modulePaths := make([]string, 0, len(sequence))
	produced := make([]ResourceType, 0, len(sequence))

	for _, rt := range sequence {
		if containsResource(produced, rt) {
			continue
		}
		modReq := compositeModuleRequest(req, rt)
		body, renderErr := renderResource(modReq, req.NetworkMode)
		if renderErr != nil {
			g.logger.Error("composite module generation failed",
				zap.String("pattern", string(req.Pattern)),
				zap.String("resourceType", string(rt)),
				zap.Error(renderErr))
			return &Result{
				Success:      false,
				ErrorMessage: fmt.Sprintf("module %s: %v", rt, renderErr),
			}
		}
		path := moduleFileName(rt, req.Format)
		files[path] = body
		modulePaths = append(modulePaths, path)
		produced = append(produced, rt)
	}

	mainFile := mainFileName(req.Format)
	files[mainFile] = g.renderOrchestrator(req, produced)

	g.logger.Debug("generated composite template",
		zap.String("pattern", string(req.Pattern)),
		zap.String("format", string(req.Format)),
		zap.Int("modules", len(produced)))

	return &Result{
		Success:      true,
		Files:        files,
		MainFilePath: mainFile,
		ModulePaths:  modulePaths,
	}
}

// compositeModuleRequest derives a per-module request carrying the
// pattern-wide naming and the module's own security defaults.
func compositeModuleRequest(req *CompositeRequest, rt ResourceType) *Request {
	region := req.Region
	if region == "" {
		region = DefaultRegion
	}
	nodeCount := req.NodeCount
	if nodeCount <= 0 {
		nodeCount = DefaultNodeCount
	}
	return &Request{
		ResourceType: rt,
		Name:         sanitizeName(req.NamePrefix),
		Format:       req.Format,
		Region:       region,
		NodeCount:    nodeCount,
		Subscription: req.Subscription,
		Security:     securityDefaultsFor(rt),
		Monitoring:   MonitoringDefaults{DiagnosticSettings: true, LogAnalytics: true},
	}
}

func (g *Generator) renderOrchestrator(req *CompositeRequest, produced []ResourceType) string {
	if req.Format == FormatTerraform {
		return renderTerraformOrchestrator(req, produced)
	}
	return renderBicepOrchestrator(req, produced)
}

func renderBicepOrchestrator(req *CompositeRequest, produced []ResourceType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// %s deployment\n", req.Pattern)
	b.WriteString("targetScope = 'resourceGroup'\n\n")
	b.WriteString("param location string = resourceGroup().location\n")
	fmt.Fprintf(&b, "param namePrefix string = '%s'\n\n", sanitizeName(req.NamePrefix))

	hasNetwork := containsResource(produced, ResourceNetwork)
	for _, rt := range produced {
		symbol := moduleSymbol(rt)
		fmt.Fprintf(&b, "module %s '%s' = {\n", symbol, moduleFileName(rt, req.Format))
		fmt.Fprintf(&b, "  name: '${namePrefix}-%s'\n", rt)
		b.WriteString("  params: {\n")
		b.WriteString("    location: location\n")
		b.WriteString("    namePrefix: namePrefix\n")
		if hasNetwork && rt != ResourceNetwork {
			switch rt {
			case ResourceAKS, ResourceVM:
				b.WriteString("    subnetId: network.outputs.workloadSubnetId\n")
			case ResourceAppService, ResourceStorage, ResourceSQL:
				if securityDefaultsFor(rt).PrivateEndpoint {
					b.WriteString("    privateEndpointSubnetId: network.outputs.privatelinkSubnetId\n")
				}
			}
		}
		b.WriteString("  }\n")
		b.WriteString("}\n\n")
	}

	for _, rt := range produced {
		fmt.Fprintf(&b, "output %sModule string = %s.name\n", moduleSymbol(rt), moduleSymbol(rt))
	}
	return b.String()
}

func renderTerraformOrchestrator(req *CompositeRequest, produced []ResourceType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s deployment\n\n", req.Pattern)
	b.WriteString("terraform {\n")
	b.WriteString("  required_providers {\n")
	b.WriteString("    azurerm = {\n")
	b.WriteString("      source  = \"hashicorp/azurerm\"\n")
	b.WriteString("      version = \"~> 4.0\"\n")
	b.WriteString("    }\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("provider \"azurerm\" {\n")
	b.WriteString("  features {}\n")
	b.WriteString("  environment = \"usgovernment\"\n")
	b.WriteString("}\n\n")
	b.WriteString("variable \"resource_group_name\" {\n  type = string\n}\n\n")
	fmt.Fprintf(&b, "variable \"name_prefix\" {\n  type    = string\n  default = %q\n}\n\n", sanitizeName(req.NamePrefix))

	hasNetwork := containsResource(produced, ResourceNetwork)
	for _, rt := range produced {
		symbol := moduleSymbol(rt)
		fmt.Fprintf(&b, "module %q {\n", symbol)
		fmt.Fprintf(&b, "  source              = \"./modules/%s\"\n", rt)
		b.WriteString("  resource_group_name = var.resource_group_name\n")
		b.WriteString("  name_prefix         = var.name_prefix\n")
		if hasNetwork && rt != ResourceNetwork {
			switch rt {
			case ResourceAKS, ResourceVM:
				b.WriteString("  subnet_id           = module.network.workload_subnet_id\n")
			case ResourceAppService, ResourceStorage, ResourceSQL:
				if securityDefaultsFor(rt).PrivateEndpoint {
					b.WriteString("  private_endpoint_subnet_id = module.network.privatelink_subnet_id\n")
				}
			}
		}
		b.WriteString("}\n\n")
	}

	for _, rt := range produced {
		symbol := moduleSymbol(rt)
		fmt.Fprintf(&b, "output %q {\n  value = module.%s\n}\n\n", symbol+"_module", symbol)
	}
	return b.String()
}

func moduleSymbol(rt ResourceType) string {
	return strings.ReplaceAll(string(rt), "-", "_")
}

func containsResource(list []ResourceType, rt ResourceType) bool {
	for _, v := range list {
		if v == rt {
			return true
		}
	}
	return false
}
