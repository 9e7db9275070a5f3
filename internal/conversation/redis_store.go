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

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "copilot:conversation:"

// DefaultRedisTTL expires idle conversations out of Redis.
const DefaultRedisTTL = 24 * time.Hour

// RedisStore externalizes conversation state to Redis so multiple copilot
// instances share one context per conversation ID.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(url string, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}

	logger.Info("Connected conversation store to Redis", zap.Duration("ttl", ttl))

	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// GetOrCreate returns the context for the conversation ID, creating it on
// first reference.
func (s *RedisStore) GetOrCreate(ctx context.Context, conversationID, userID string) (*Context, error) {
	c, err := s.load(ctx, conversationID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	now := time.Now()
	c = &Context{
		ConversationID: conversationID,
		UserID:         userID,
		MessageHistory: []Message{},
		UsedTools:      []string{},
		WorkflowState:  make(map[string]string),
		CreatedAt:      now,
		LastActivity:   now,
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns an existing context.
func (s *RedisStore) Get(ctx context.Context, conversationID string) (*Context, error) {
	c, err := s.load(ctx, conversationID)
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("conversation not found: %s", conversationID)
	}
	return c, err
}

// AppendMessage appends one history entry, evicting FIFO past the cap.
func (s *RedisStore) AppendMessage(ctx context.Context, conversationID, role, content string) error {
	return s.mutate(ctx, conversationID, func(c *Context) {
		c.MessageHistory = append(c.MessageHistory, Message{
			Role:      role,
			Content:   content,
			Timestamp: time.Now(),
		})
		if len(c.MessageHistory) > MaxHistoryMessages {
			c.MessageHistory = c.MessageHistory[len(c.MessageHistory)-MaxHistoryMessages:]
		}
	})
}

// RecordToolUse adds the tool to the used-tool set.
func (s *RedisStore) RecordToolUse(ctx context.Context, conversationID, tool string) error {
	return s.mutate(ctx, conversationID, func(c *Context) {
		if !c.HasUsedTool(tool) {
			c.UsedTools = append(c.UsedTools, tool)
		}
	})
}

// SetWorkflowState writes one key of the workflow state bag.
func (s *RedisStore) SetWorkflowState(ctx context.Context, conversationID, key, value string) error {
	return s.mutate(ctx, conversationID, func(c *Context) {
		c.WorkflowState[key] = value
	})
}

// SetActiveWorkflow sets or clears the active workflow marker.
func (s *RedisStore) SetActiveWorkflow(ctx context.Context, conversationID, workflow string) error {
	return s.mutate(ctx, conversationID, func(c *Context) {
		c.ActiveWorkflow = workflow
	})
}

// Delete removes a context entirely.
func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	return s.client.Del(ctx, redisKeyPrefix+conversationID).Err()
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping verifies the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// save writes the context under its conversation key with the store TTL.
func (s *RedisStore) save(ctx context.Context, c *Context) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}
	return s.client.Set(ctx, redisKeyPrefix+c.ConversationID, data, s.ttl).Err()
}

// mutate runs a read-modify-write cycle under an optimistic WATCH
// transaction so concurrent turns on the same conversation ID cannot lose
// updates.
func (s *RedisStore) mutate(ctx context.Context, conversationID string, fn func(*Context)) error {
	key := redisKeyPrefix + conversationID

	txn := func(tx *redis.Tx) error {
		c, err := s.loadTx(ctx, tx, conversationID)
		if err != nil {
			return err
		}

		fn(c)
		c.LastActivity = time.Now()

		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal context: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	// Bounded retries on WATCH conflicts.
	for i := 0; i < 5; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("conversation update conflicted repeatedly: %s", conversationID)
}

func (s *RedisStore) load(ctx context.Context, conversationID string) (*Context, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+conversationID).Result()
	if err != nil {
		return nil, err
	}
	return unmarshalContext([]byte(data))
}

func (s *RedisStore) loadTx(ctx context.Context, tx *redis.Tx, conversationID string) (*Context, error) {
	data, err := tx.Get(ctx, redisKeyPrefix+conversationID).Result()
	if errors.Is(err, redis.Nil) {
		now := time.Now()
		return &Context{
			ConversationID: conversationID,
			MessageHistory: []Message{},
			UsedTools:      []string{},
			WorkflowState:  make(map[string]string),
			CreatedAt:      now,
			LastActivity:   now,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return unmarshalContext([]byte(data))
}

func unmarshalContext(data []byte) (*Context, error) {
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context: %w", err)
	}
	if c.WorkflowState == nil {
		c.WorkflowState = make(map[string]string)
	}
	return &c, nil
}
