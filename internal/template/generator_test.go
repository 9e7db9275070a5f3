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
	"testing"

	"go.uber.org/zap"
)

func mustBuildRequest(t *testing.T, token string, format Format) *Request {
	t.Helper()
	req, err := BuildRequest(token, "mission", "", format, "", 0, "")
	if err != nil {
		t.Fatalf("BuildRequest(%q) returned error: %v", token, err)
	}
	return req
}

func TestGenerateSingleResourceBicep(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	result := g.Generate(mustBuildRequest(t, "aks", FormatBicep))
	if !result.Success {
		t.Fatalf("Generate failed: %s", result.ErrorMessage)
	}
	if result.MainFilePath != "main.bicep" {
		t.Errorf("MainFilePath = %q, want main.bicep", result.MainFilePath)
	}

	body, ok := result.Files["main.bicep"]
	if !ok {
		t.Fatalf("main.bicep missing from Files: %v", result.Files)
	}
	for _, want := range []string{
		"Microsoft.ContainerService/managedClusters",
		"enablePrivateCluster: true",
		"enableAzureRBAC: true",
		"workloadIdentity",
		"networkPolicy: 'azure'",
		"type: 'SystemAssigned'",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("generated bicep missing %q", want)
		}
	}
}

func TestGenerateSingleResourceTerraform(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	result := g.Generate(mustBuildRequest(t, "storage", FormatTerraform))
	if !result.Success {
		t.Fatalf("Generate failed: %s", result.ErrorMessage)
	}
	if result.MainFilePath != "main.tf" {
		t.Errorf("MainFilePath = %q, want main.tf", result.MainFilePath)
	}

	body := result.Files["main.tf"]
	for _, want := range []string{
		"azurerm_storage_account",
		"min_tls_version",
		"allow_nested_items_to_be_public = false",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("generated terraform missing %q", want)
		}
	}
}

func TestGenerateStorageTLSVersionFormat(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	result := g.Generate(mustBuildRequest(t, "storage", FormatBicep))
	if !result.Success {
		t.Fatalf("Generate failed: %s", result.ErrorMessage)
	}
	// Bicep wants the TLS1_2 enum form, never the dotted version string.
	if !strings.Contains(result.Files["main.bicep"], "minimumTlsVersion: 'TLS1_2'") {
		t.Error("storage template missing TLS1_2 enum")
	}
}

func TestGenerateUnsupportedFormat(t *testing.T) {
	g := NewGenerator(zap.NewNop())
	req := mustBuildRequest(t, "aks", FormatBicep)
	req.Format = Format("pulumi")

	result := g.Generate(req)
	if result.Success {
		t.Error("expected failure for unsupported format")
	}
	if len(result.Files) != 0 {
		t.Errorf("failed result carries %d files, want 0", len(result.Files))
	}
}

func TestGenerateCompositeReferentialIntegrity(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	for _, format := range []Format{FormatBicep, FormatTerraform} {
		for pattern := range patternResources {
			t.Run(fmt.Sprintf("%s/%s", format, pattern), func(t *testing.T) {
				result := g.GenerateComposite(&CompositeRequest{
					Pattern:     pattern,
					Format:      format,
					NamePrefix:  "mission",
					NetworkMode: NetworkModeCreate,
				})
				if !result.Success {
					t.Fatalf("GenerateComposite failed: %s", result.ErrorMessage)
				}

				main, ok := result.Files[result.MainFilePath]
				if !ok {
					t.Fatalf("main file %q missing from Files", result.MainFilePath)
				}

				// Every module path the orchestrator references must exist as
				// a produced file, and every produced module must be
				// referenced.
				for _, path := range result.ModulePaths {
					if _, ok := result.Files[path]; !ok {
						t.Errorf("module path %q not present in Files", path)
					}
					ref := path
					if format == FormatTerraform {
						ref = strings.TrimSuffix(path, "/main.tf")
						ref = strings.TrimPrefix(ref, "modules/")
						ref = "./modules/" + ref
					}
					if !strings.Contains(main, ref) {
						t.Errorf("main file does not reference module %q", path)
					}
				}
				if len(result.Files) != len(result.ModulePaths)+1 {
					t.Errorf("Files has %d entries, want %d modules plus main", len(result.Files), len(result.ModulePaths))
				}
			})
		}
	}
}

func TestGenerateCompositeCustomPattern(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	result := g.GenerateComposite(&CompositeRequest{
		Pattern:         PatternCustom,
		Format:          FormatBicep,
		NamePrefix:      "mission",
		NetworkMode:     NetworkModeCreate,
		CustomResources: []ResourceType{ResourceNetwork, ResourceStorage, ResourceStorage},
	})
	if !result.Success {
		t.Fatalf("GenerateComposite failed: %s", result.ErrorMessage)
	}
	// The duplicate storage module is deduplicated.
	if len(result.ModulePaths) != 2 {
		t.Errorf("ModulePaths = %v, want 2 entries", result.ModulePaths)
	}
}

func TestGenerateCompositeCustomRequiresResources(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	result := g.GenerateComposite(&CompositeRequest{
		Pattern:    PatternCustom,
		Format:     FormatBicep,
		NamePrefix: "mission",
	})
	if result.Success {
		t.Error("expected failure for empty custom pattern")
	}
}

func TestGenerateCompositeUnknownPattern(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	result := g.GenerateComposite(&CompositeRequest{
		Pattern:    ArchitecturePattern("hexagonal"),
		Format:     FormatBicep,
		NamePrefix: "mission",
	})
	if result.Success {
		t.Error("expected failure for unknown pattern")
	}
	if len(result.Files) != 0 {
		t.Errorf("failed result carries %d files, want 0", len(result.Files))
	}
}

func TestGenerateCompositeExistingNetworkMode(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	bicep := g.GenerateComposite(&CompositeRequest{
		Pattern:     PatternAKSWithVNet,
		Format:      FormatBicep,
		NamePrefix:  "mission",
		NetworkMode: NetworkModeExisting,
	})
	if !bicep.Success {
		t.Fatalf("GenerateComposite failed: %s", bicep.ErrorMessage)
	}
	network := bicep.Files[moduleFileName(ResourceNetwork, FormatBicep)]
	if !strings.Contains(network, "existing = {") {
		t.Error("existing-network bicep module should use existing references")
	}
	if strings.Contains(network, "addressSpace") {
		t.Error("existing-network bicep module should not define a new vnet")
	}

	terraform := g.GenerateComposite(&CompositeRequest{
		Pattern:     PatternAKSWithVNet,
		Format:      FormatTerraform,
		NamePrefix:  "mission",
		NetworkMode: NetworkModeExisting,
	})
	if !terraform.Success {
		t.Fatalf("GenerateComposite failed: %s", terraform.ErrorMessage)
	}
	network = terraform.Files[moduleFileName(ResourceNetwork, FormatTerraform)]
	if !strings.Contains(network, "data \"azurerm_virtual_network\"") {
		t.Error("existing-network terraform module should use data sources")
	}
}

func TestGenerateCompositeWiresNetworkOutputs(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	result := g.GenerateComposite(&CompositeRequest{
		Pattern:     PatternAKSWithVNet,
		Format:      FormatBicep,
		NamePrefix:  "mission",
		NetworkMode: NetworkModeCreate,
	})
	if !result.Success {
		t.Fatalf("GenerateComposite failed: %s", result.ErrorMessage)
	}
	if !strings.Contains(result.Files["main.bicep"], "network.outputs.workloadSubnetId") {
		t.Error("orchestrator does not wire the workload subnet into aks")
	}
}
