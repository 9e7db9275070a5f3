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

// Package main runs the platform engineering copilot HTTP service.
package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/azure"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/chat"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/config"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/conversation"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/health"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/intent"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/llm"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/store"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/template"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/toolchain"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/tools"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger := buildLogger(cfg.Logging)
	defer func() { _ = logger.Sync() }()

	masked := cfg.MaskSensitiveValues()
	logger.Info("Loaded configuration",
		zap.String("openai_endpoint", masked.OpenAI.Endpoint),
		zap.String("openai_apikey", masked.OpenAI.APIKey),
		zap.String("database_path", masked.Database.Path),
		zap.Bool("redis_enabled", masked.Redis.Enabled),
		zap.String("redis_url", masked.Redis.URL),
		zap.String("provisioner_url", masked.Provisioner.URL))

	db, err := store.NewStore(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer db.Close()

	conversations, err := buildConversationStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize conversation store", zap.Error(err))
	}
	defer conversations.Close()

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:             cfg.OpenAI.APIKey,
		Endpoint:           cfg.OpenAI.Endpoint,
		Model:              cfg.OpenAI.Model,
		RequestsPerSecond:  cfg.OpenAI.RequestsPerSecond,
		MaxConcurrentBurst: cfg.OpenAI.MaxConcurrentBurst,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	rules, err := intent.LoadRules()
	if err != nil {
		logger.Fatal("Failed to load classification rules", zap.Error(err))
	}

	provisioner := azure.NewClient(cfg.Provisioner.URL, logger)
	templates := template.NewService(template.NewGenerator(logger), logger)

	registry := tools.NewRegistry(logger)
	registry.Register(tools.NewInfrastructureTool(provisioner, db, logger))
	registry.Register(tools.NewTemplateTool(templates, db, tools.GenerationDefaults{
		Format: cfg.Generation.DefaultFormat,
		Region: cfg.Generation.DefaultRegion,
	}, logger))
	registry.Register(tools.NewComplianceTool(provisioner, logger))
	registry.Register(tools.NewHardeningTool(logger))
	registry.Register(tools.NewCostTool(provisioner, logger))
	registry.Register(tools.NewOnboardingStartTool(conversations, logger))
	registry.Register(tools.NewOnboardingInfoTool(conversations, logger))

	semantic := intent.NewSemanticClassifier(db, logger)
	keyword := intent.NewKeywordClassifier(rules, logger)
	llmClassifier := intent.NewLLMClassifier(llmClient, rules, registry.Catalog(), keyword, logger)

	executor := toolchain.NewExecutor(registry, logger)
	processor := chat.NewProcessor(conversations, semantic, llmClassifier, registry, executor, logger)
	processor.SetConfidenceThreshold(cfg.Classifier.ConfidenceThreshold)

	checks := health.NewManager("copilot", version)
	checks.Register("database", health.DatabaseChecker("sqlite", db))
	if pinger, ok := conversations.(health.Pinger); ok {
		checks.Register("redis", health.DatabaseChecker("redis", pinger))
	}
	if cfg.Provisioner.URL != "" {
		checks.Register("provisioner", health.EndpointChecker(cfg.Provisioner.URL+"/health", nil))
	}

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		report := checks.Check(c.Request.Context())
		c.JSON(report.HTTPStatus(), report)
	})

	router.POST("/api/chat", func(c *gin.Context) {
		handleChat(c, processor, logger)
	})

	router.POST("/api/feedback", func(c *gin.Context) {
		handleFeedback(c, db, semantic, logger)
	})

	router.GET("/api/templates", func(c *gin.Context) {
		handleListTemplates(c, db, logger)
	})

	router.GET("/api/analytics/intents", func(c *gin.Context) {
		handleIntentAnalytics(c, db, logger)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Starting copilot service",
		zap.String("addr", addr),
		zap.String("provisioner_url", cfg.Provisioner.URL),
		zap.Bool("redis_conversations", cfg.Redis.Enabled))

	if err := router.Run(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

// buildLogger constructs the zap logger from the logging config.
func buildLogger(cfg config.LoggingConfig) *zap.Logger {
	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(cfg.Level); err == nil {
		level = parsed
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "text" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Output != "" {
		zapCfg.OutputPaths = []string{cfg.Output}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

// buildConversationStore picks the Redis backend when enabled, the
// in-memory backend otherwise.
func buildConversationStore(cfg *config.Config, logger *zap.Logger) (conversation.Store, error) {
	if cfg.Redis.Enabled {
		return conversation.NewRedisStore(cfg.Redis.URL, conversation.DefaultRedisTTL, logger)
	}
	return conversation.NewMemoryStore(cfg.Conversation.MaxConversations), nil
}

// ChatRequest is the /api/chat request body.
type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Message        string `json:"message" binding:"required"`
}

func handleChat(c *gin.Context, processor *chat.Processor, logger *zap.Logger) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	resp := processor.ProcessMessage(c.Request.Context(), req.ConversationID, req.UserID, req.Message)
	c.JSON(http.StatusOK, resp)
}

// FeedbackRequest is the /api/feedback request body.
type FeedbackRequest struct {
	IntentID          int64  `json:"intent_id" binding:"required"`
	Type              string `json:"type" binding:"required"`
	CorrectedCategory string `json:"corrected_category"`
	CorrectedAction   string `json:"corrected_action"`
	CorrectedParams   string `json:"corrected_params"`
	Comment           string `json:"comment"`
}

func handleFeedback(c *gin.Context, db *store.Store, semantic *intent.SemanticClassifier, logger *zap.Logger) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid feedback request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "intent_id and type are required"})
		return
	}

	id, err := db.AddFeedback(c.Request.Context(), &intent.Feedback{
		IntentID:          req.IntentID,
		Type:              intent.FeedbackType(req.Type),
		CorrectedCategory: req.CorrectedCategory,
		CorrectedAction:   req.CorrectedAction,
		CorrectedParams:   req.CorrectedParams,
		Comment:           req.Comment,
	})
	if err != nil {
		logger.Warn("Failed to record feedback", zap.Int64("intentId", req.IntentID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Feedback settles the classification outcome and updates the
	// matched pattern's success rate.
	if err := semantic.RecordOutcome(c.Request.Context(), req.IntentID, req.Type == string(intent.FeedbackCorrect)); err != nil {
		logger.Warn("Failed to record classification outcome",
			zap.Int64("intentId", req.IntentID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"feedback_id": id})
}

func handleListTemplates(c *gin.Context, db *store.Store, logger *zap.Logger) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := db.ListTemplates(c.Request.Context(), c.Query("conversation_id"), limit)
	if err != nil {
		logger.Error("Failed to list templates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list templates"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": records, "count": len(records)})
}

func handleIntentAnalytics(c *gin.Context, db *store.Store, logger *zap.Logger) {
	summaries, err := db.SummarizeIntents(c.Request.Context())
	if err != nil {
		logger.Error("Failed to summarize intents", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to summarize intents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"intents": summaries})
}
