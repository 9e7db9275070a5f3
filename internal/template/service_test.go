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
	"testing"

	"go.uber.org/zap"
)

func TestServiceServesRepeatedRequestFromCache(t *testing.T) {
	svc := NewService(NewGenerator(zap.NewNop()), zap.NewNop())
	req := mustBuildRequest(t, "storage", FormatBicep)

	first := svc.Generate("conv-1", req)
	if !first.Success {
		t.Fatalf("Generate failed: %s", first.ErrorMessage)
	}
	second := svc.Generate("conv-1", req)
	if !second.Success {
		t.Fatalf("Generate failed: %s", second.ErrorMessage)
	}

	if svc.GenerationCount() != 1 {
		t.Errorf("GenerationCount = %d, want 1 (second request served from cache)", svc.GenerationCount())
	}
}

func TestServiceCacheIsPerConversation(t *testing.T) {
	svc := NewService(NewGenerator(zap.NewNop()), zap.NewNop())
	req := mustBuildRequest(t, "storage", FormatBicep)

	svc.Generate("conv-1", req)
	svc.Generate("conv-2", req)
	if svc.GenerationCount() != 2 {
		t.Errorf("GenerationCount = %d, want 2 (no cross-conversation reuse)", svc.GenerationCount())
	}
}

func TestServiceInvalidateConversation(t *testing.T) {
	svc := NewService(NewGenerator(zap.NewNop()), zap.NewNop())
	req := mustBuildRequest(t, "storage", FormatBicep)

	svc.Generate("conv-1", req)
	svc.InvalidateConversation("conv-1")
	svc.Generate("conv-1", req)
	if svc.GenerationCount() != 2 {
		t.Errorf("GenerationCount = %d, want 2 after invalidation", svc.GenerationCount())
	}
}

func TestServiceDoesNotCacheFailures(t *testing.T) {
	svc := NewService(NewGenerator(zap.NewNop()), zap.NewNop())

	// Custom pattern with no resources always fails to render.
	req := &CompositeRequest{Pattern: PatternCustom, Format: FormatBicep, NamePrefix: "mission"}
	svc.GenerateComposite("conv-1", req)
	svc.GenerateComposite("conv-1", req)
	if svc.GenerationCount() != 2 {
		t.Errorf("GenerationCount = %d, want 2 (failures are regenerated)", svc.GenerationCount())
	}
}

func TestServiceCompositeCaching(t *testing.T) {
	svc := NewService(NewGenerator(zap.NewNop()), zap.NewNop())
	req := &CompositeRequest{
		Pattern:     PatternThreeTier,
		Format:      FormatBicep,
		NamePrefix:  "mission",
		NetworkMode: NetworkModeCreate,
	}

	svc.GenerateComposite("conv-1", req)
	svc.GenerateComposite("conv-1", req)
	if svc.GenerationCount() != 1 {
		t.Errorf("GenerationCount = %d, want 1", svc.GenerationCount())
	}

	// A different network mode is a different artifact.
	other := *req
	other.NetworkMode = NetworkModeExisting
	svc.GenerateComposite("conv-1", &other)
	if svc.GenerationCount() != 2 {
		t.Errorf("GenerationCount = %d, want 2 after network mode change", svc.GenerationCount())
	}
}
