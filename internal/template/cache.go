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
	"sync"
	"time"
)

// CacheTTL bounds how long a generated template is reused for repeated
// requests within the same conversation.
const CacheTTL = 30 * time.Minute

type cacheEntry struct {
	result    *Result
	expiresAt time.Time
}

// Cache memoizes generated templates per conversation, resource and
// format. Entries expire after CacheTTL; expired entries are replaced
// on next write.
type Cache struct {
	entries sync.Map
	now     func() time.Time
}

// NewCache creates an empty template cache.
func NewCache() *Cache {
	return &Cache{now: time.Now}
}

func cacheKey(conversationID, resourceKey string, format Format) string {
	return conversationID + "|" + resourceKey + "|" + string(format)
}

// Get returns a cached result when one exists and has not expired.
func (c *Cache) Get(conversationID, resourceKey string, format Format) (*Result, bool) {
	v, ok := c.entries.Load(cacheKey(conversationID, resourceKey, format))
	if !ok {
		return nil, false
	}
	entry := v.(cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.entries.Delete(cacheKey(conversationID, resourceKey, format))
		return nil, false
	}
	return entry.result, true
}

// Put stores a successful result. Failed results are never cached.
func (c *Cache) Put(conversationID, resourceKey string, format Format, result *Result) {
	if result == nil || !result.Success {
		return
	}
	c.entries.Store(cacheKey(conversationID, resourceKey, format), cacheEntry{
		result:    result,
		expiresAt: c.now().Add(CacheTTL),
	})
}

// InvalidateConversation drops every cached template belonging to the
// given conversation.
func (c *Cache) InvalidateConversation(conversationID string) {
	prefix := conversationID + "|"
	c.entries.Range(func(key, _ any) bool {
		if strings.HasPrefix(key.(string), prefix) {
			c.entries.Delete(key)
		}
		return true
	})
}

// resourceCacheKey identifies a single-resource request within a
// conversation.
func resourceCacheKey(rt ResourceType) string {
	return "resource:" + string(rt)
}

// compositeCacheKey identifies a composite request within a
// conversation. Network mode is part of the key because the two modes
// produce structurally different output.
func compositeCacheKey(req *CompositeRequest) string {
	key := fmt.Sprintf("pattern:%s:%s", req.Pattern, req.NetworkMode)
	if req.Pattern == PatternCustom {
		parts := make([]string, len(req.CustomResources))
		for i, rt := range req.CustomResources {
			parts[i] = string(rt)
		}
		key += ":" + strings.Join(parts, ",")
	}
	return key
}
