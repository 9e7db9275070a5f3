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
	"sync/atomic"

	"go.uber.org/zap"
)

// Service fronts the generator with the per-conversation cache. A
// repeated request inside the TTL window returns the cached artifact
// without re-rendering.
type Service struct {
	generator *Generator
	cache     *Cache
	logger    *zap.Logger

	generations atomic.Int64
}

// NewService creates a template service with a fresh cache.
func NewService(generator *Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		generator: generator,
		cache:     NewCache(),
		logger:    logger,
	}
}

// Generate renders a single-resource template, serving from cache when
// the same conversation asked for the same resource and format within
// the TTL window.
func (s *Service) Generate(conversationID string, req *Request) *Result {
	key := resourceCacheKey(req.ResourceType)
	if cached, ok := s.cache.Get(conversationID, key, req.Format); ok {
		s.logger.Debug("template cache hit",
			zap.String("conversationId", conversationID),
			zap.String("resourceType", string(req.ResourceType)))
		return cached
	}

	result := s.generator.Generate(req)
	s.generations.Add(1)
	s.cache.Put(conversationID, key, req.Format, result)
	return result
}

// GenerateComposite renders a composite architecture template with the
// same caching behavior as Generate.
func (s *Service) GenerateComposite(conversationID string, req *CompositeRequest) *Result {
	key := compositeCacheKey(req)
	if cached, ok := s.cache.Get(conversationID, key, req.Format); ok {
		s.logger.Debug("composite template cache hit",
			zap.String("conversationId", conversationID),
			zap.String("pattern", string(req.Pattern)))
		return cached
	}

	result := s.generator.GenerateComposite(req)
	s.generations.Add(1)
	s.cache.Put(conversationID, key, req.Format, result)
	return result
}

// InvalidateConversation drops cached templates for a conversation,
// typically after its infrastructure context changes.
func (s *Service) InvalidateConversation(conversationID string) {
	s.cache.InvalidateConversation(conversationID)
}

// GenerationCount reports how many times the underlying generator ran,
// excluding cache hits.
func (s *Service) GenerationCount() int64 {
	return s.generations.Load()
}
