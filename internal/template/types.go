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

// Package template turns structured requests into multi-file
// Infrastructure-as-Code artifacts: per-resource Bicep/Terraform modules and
// composite architecture patterns with a dependency-aware orchestrator file.
package template

import (
	"fmt"
	"strings"
)

// Format selects the IaC dialect of generated output.
type Format string

const (
	FormatBicep     Format = "bicep"
	FormatTerraform Format = "terraform"
)

// ParseFormat maps a free-text token onto a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bicep", "":
		return FormatBicep, nil
	case "terraform", "tf", "hcl":
		return FormatTerraform, nil
	default:
		return "", fmt.Errorf("unknown template format %q (expected bicep or terraform)", s)
	}
}

// ResourceType is a canonical Azure resource family. Free-text tokens map
// onto these values at the parsing boundary only.
type ResourceType string

const (
	ResourceAKS               ResourceType = "aks"
	ResourceAppService        ResourceType = "appservice"
	ResourceStorage           ResourceType = "storage"
	ResourceVM                ResourceType = "vm"
	ResourceSQL               ResourceType = "sql"
	ResourceNetwork           ResourceType = "network"
	ResourceKeyVault          ResourceType = "keyvault"
	ResourceContainerRegistry ResourceType = "containerregistry"
	ResourceFunctionApp       ResourceType = "functionapp"
)

// SecurityDefaults is the security-by-default bundle injected per resource
// family so callers never have to enumerate individual flags.
type SecurityDefaults struct {
	ManagedIdentity     bool   `json:"managed_identity"`
	WorkloadIdentity    bool   `json:"workload_identity"`
	NetworkPolicy       bool   `json:"network_policy"`
	PrivateCluster      bool   `json:"private_cluster"`
	AzureRBAC           bool   `json:"azure_rbac"`
	PrivateEndpoint     bool   `json:"private_endpoint"`
	HTTPSOnly           bool   `json:"https_only"`
	MinimumTLSVersion   string `json:"minimum_tls_version"`
	PublicNetworkAccess bool   `json:"public_network_access"`
}

// MonitoringDefaults is the observability bundle injected per resource.
type MonitoringDefaults struct {
	DiagnosticSettings bool `json:"diagnostic_settings"`
	LogAnalytics       bool `json:"log_analytics"`
}

// Request is a fully-populated single-resource generation specification.
type Request struct {
	ResourceType ResourceType       `json:"resource_type"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Format       Format             `json:"format"`
	Region       string             `json:"region"`
	NodeCount    int                `json:"node_count"`
	Subscription string             `json:"subscription"`
	Security     SecurityDefaults   `json:"security"`
	Monitoring   MonitoringDefaults `json:"monitoring"`
}

// Result is a generated artifact: a mapping of POSIX-style relative paths to
// UTF-8 text. Every module path referenced by the main file exists as a key
// in Files.
type Result struct {
	Files        map[string]string `json:"files"`
	Success      bool              `json:"success"`
	ErrorMessage string            `json:"error_message,omitempty"`
	ModulePaths  []string          `json:"module_paths,omitempty"`
	MainFilePath string            `json:"main_file_path,omitempty"`
}

// NetworkMode selects whether composite generation defines a new VNet or
// references an existing one. The two modes produce structurally different
// output (resource blocks versus data-source/existing references).
type NetworkMode string

const (
	NetworkModeCreate   NetworkMode = "create_new"
	NetworkModeExisting NetworkMode = "use_existing"
)

// ArchitecturePattern names a composite multi-resource deployment shape.
type ArchitecturePattern string

const (
	PatternThreeTier     ArchitecturePattern = "three-tier"
	PatternAKSWithVNet   ArchitecturePattern = "aks-with-vnet"
	PatternLandingZone   ArchitecturePattern = "landing-zone"
	PatternMicroservices ArchitecturePattern = "microservices"
	PatternServerless    ArchitecturePattern = "serverless"
	PatternDataPlatform  ArchitecturePattern = "data-platform"
	PatternSCCACompliant ArchitecturePattern = "scca-compliant"
	PatternCustom        ArchitecturePattern = "custom"
)

// ParseArchitecturePattern maps a free-text token onto a pattern.
func ParseArchitecturePattern(s string) (ArchitecturePattern, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")

	switch ArchitecturePattern(normalized) {
	case PatternThreeTier, PatternAKSWithVNet, PatternLandingZone, PatternMicroservices,
		PatternServerless, PatternDataPlatform, PatternSCCACompliant, PatternCustom:
		return ArchitecturePattern(normalized), nil
	}
	return "", fmt.Errorf("unknown architecture pattern %q", s)
}

// CompositeRequest specifies a multi-resource architecture generation.
type CompositeRequest struct {
	Pattern         ArchitecturePattern `json:"pattern"`
	Format          Format              `json:"format"`
	NamePrefix      string              `json:"name_prefix"`
	Region          string              `json:"region"`
	NodeCount       int                 `json:"node_count"`
	Subscription    string              `json:"subscription"`
	NetworkMode     NetworkMode         `json:"network_mode"`
	CustomResources []ResourceType      `json:"custom_resources,omitempty"`
}
