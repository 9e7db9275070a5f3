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
)

// Defaults applied when a request omits sizing or placement.
const (
	DefaultRegion    = "usgovvirginia"
	DefaultNodeCount = 3
)

// resourceAliases maps normalized free-text tokens to canonical resource
// types. Normalization lower-cases the token and strips hyphens,
// underscores and spaces before lookup.
var resourceAliases = map[string]ResourceType{
	"aks":               ResourceAKS,
	"kubernetes":        ResourceAKS,
	"k8s":               ResourceAKS,
	"cluster":           ResourceAKS,
	"appservice":        ResourceAppService,
	"webapp":            ResourceAppService,
	"website":           ResourceAppService,
	"web":               ResourceAppService,
	"storage":           ResourceStorage,
	"storageaccount":    ResourceStorage,
	"blob":              ResourceStorage,
	"vm":                ResourceVM,
	"virtualmachine":    ResourceVM,
	"compute":           ResourceVM,
	"sql":               ResourceSQL,
	"database":          ResourceSQL,
	"sqldatabase":       ResourceSQL,
	"sqlserver":         ResourceSQL,
	"network":           ResourceNetwork,
	"vnet":              ResourceNetwork,
	"virtualnetwork":    ResourceNetwork,
	"keyvault":          ResourceKeyVault,
	"kv":                ResourceKeyVault,
	"vault":             ResourceKeyVault,
	"acr":               ResourceContainerRegistry,
	"containerregistry": ResourceContainerRegistry,
	"registry":          ResourceContainerRegistry,
	"function":          ResourceFunctionApp,
	"functions":         ResourceFunctionApp,
	"functionapp":       ResourceFunctionApp,
}

// ParseResourceType maps a free-text resource token onto its canonical
// type. Unrecognized tokens are a validation error, never silently coerced.
func ParseResourceType(token string) (ResourceType, error) {
	normalized := strings.ToLower(strings.TrimSpace(token))
	for _, r := range []string{"-", "_", " "} {
		normalized = strings.ReplaceAll(normalized, r, "")
	}

	if rt, ok := resourceAliases[normalized]; ok {
		return rt, nil
	}
	return "", fmt.Errorf("unknown resource type %q", token)
}

// BuildRequest maps a resource-type token and free-text description into a
// fully-populated generation request carrying the secure baseline for that
// resource family. Callers never enumerate individual security flags.
func BuildRequest(resourceToken, name, description string, format Format, region string, nodeCount int, subscription string) (*Request, error) {
	resourceType, err := ParseResourceType(resourceToken)
	if err != nil {
		return nil, err
	}

	if region == "" {
		region = DefaultRegion
	}
	if nodeCount <= 0 {
		nodeCount = DefaultNodeCount
	}
	if name == "" {
		name = string(resourceType)
	}

	return &Request{
		ResourceType: resourceType,
		Name:         sanitizeName(name),
		Description:  description,
		Format:       format,
		Region:       region,
		NodeCount:    nodeCount,
		Subscription: subscription,
		Security:     securityDefaultsFor(resourceType),
		Monitoring: MonitoringDefaults{
			DiagnosticSettings: true,
			LogAnalytics:       true,
		},
	}, nil
}

// securityDefaultsFor encodes the secure baseline per resource family.
// Unrecognized families fall back to the networking-category bundle.
func securityDefaultsFor(resourceType ResourceType) SecurityDefaults {
	switch resourceType {
	case ResourceAKS:
		return SecurityDefaults{
			ManagedIdentity:   true,
			WorkloadIdentity:  true,
			NetworkPolicy:     true,
			PrivateCluster:    true,
			AzureRBAC:         true,
			MinimumTLSVersion: "1.2",
		}
	case ResourceAppService, ResourceFunctionApp:
		return SecurityDefaults{
			ManagedIdentity:   true,
			PrivateEndpoint:   true,
			HTTPSOnly:         true,
			MinimumTLSVersion: "1.2",
		}
	case ResourceStorage, ResourceSQL, ResourceKeyVault, ResourceContainerRegistry:
		return SecurityDefaults{
			ManagedIdentity:   true,
			PrivateEndpoint:   true,
			MinimumTLSVersion: "1.2",
		}
	case ResourceVM:
		return SecurityDefaults{
			ManagedIdentity:   true,
			MinimumTLSVersion: "1.2",
		}
	default:
		// Networking-category fallback.
		return SecurityDefaults{
			NetworkPolicy:     true,
			MinimumTLSVersion: "1.2",
		}
	}
}

// sanitizeName reduces a free-text name to a deployment-safe token.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == ' ' || r == '_':
			b.WriteRune('-')
		}
	}
	cleaned := strings.Trim(b.String(), "-")
	if cleaned == "" {
		return "resource"
	}
	return cleaned
}
