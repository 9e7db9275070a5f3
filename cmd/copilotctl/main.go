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

// Package main provides the copilotctl operator CLI: one-shot chat,
// local template generation and pattern administration.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/intent"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/store"
	"github.com/azurenoops/platform-engineering-copilot-sub002/internal/template"
)

var (
	serverURL string
	dbPath    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "copilotctl",
		Short: "Operator CLI for the platform engineering copilot",
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "copilot server URL")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./copilot.db", "path to the copilot database")

	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newPatternsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newChatCmd() *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message to the copilot server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.Marshal(map[string]string{
				"conversation_id": conversationID,
				"message":         args[0],
			})
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: 120 * time.Second}
			resp, err := client.Post(serverURL+"/api/chat", "application/json", bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("chat request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
			}

			var reply struct {
				ConversationID string `json:"conversation_id"`
				Message        string `json:"message"`
			}
			if err := json.Unmarshal(body, &reply); err != nil {
				return fmt.Errorf("failed to decode reply: %w", err)
			}

			fmt.Println(reply.Message)
			fmt.Fprintf(os.Stderr, "conversation: %s\n", reply.ConversationID)
			return nil
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation ID to continue")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var (
		format    string
		name      string
		region    string
		pattern   string
		resources []string
		nodeCount int
		outDir    string
	)

	cmd := &cobra.Command{
		Use:   "generate [resource-type]",
		Short: "Generate a Bicep or Terraform template locally",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedFormat, err := template.ParseFormat(format)
			if err != nil {
				return err
			}

			generator := template.NewGenerator(zap.NewNop())

			var result *template.Result
			switch {
			case pattern != "":
				parsedPattern, err := template.ParseArchitecturePattern(pattern)
				if err != nil {
					return err
				}
				custom := make([]template.ResourceType, 0, len(resources))
				for _, token := range resources {
					resource, err := template.ParseResourceType(token)
					if err != nil {
						return err
					}
					custom = append(custom, resource)
				}
				result = generator.GenerateComposite(&template.CompositeRequest{
					Pattern:         parsedPattern,
					Format:          parsedFormat,
					NamePrefix:      name,
					Region:          region,
					NodeCount:       nodeCount,
					NetworkMode:     template.NetworkModeCreate,
					CustomResources: custom,
				})
			case len(args) == 1:
				req, err := template.BuildRequest(args[0], name, "", parsedFormat, region, nodeCount, "")
				if err != nil {
					return err
				}
				result = generator.Generate(req)
			default:
				return fmt.Errorf("provide a resource type argument or --pattern")
			}

			if !result.Success {
				return fmt.Errorf("generation failed: %s", result.ErrorMessage)
			}

			for path, content := range result.Files {
				target := filepath.Join(outDir, filepath.FromSlash(path))
				if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
					return err
				}
				if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
					return err
				}
				fmt.Println(target)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "bicep", "template format (bicep or terraform)")
	cmd.Flags().StringVar(&name, "name", "copilot", "resource name prefix")
	cmd.Flags().StringVar(&region, "region", "", "Azure region")
	cmd.Flags().StringVar(&pattern, "pattern", "", "composite architecture pattern")
	cmd.Flags().StringSliceVar(&resources, "resources", nil, "resource types for the custom pattern (comma-separated)")
	cmd.Flags().IntVar(&nodeCount, "node-count", 0, "node count for AKS clusters")
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	return cmd
}

func newPatternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Manage intent classification patterns",
	}

	cmd.AddCommand(newPatternsListCmd())
	cmd.AddCommand(newPatternsAddCmd())
	cmd.AddCommand(newPatternsDeactivateCmd())
	cmd.AddCommand(newPatternsSeedCmd())
	return cmd
}

func openStore() (*store.Store, error) {
	return store.NewStore(dbPath, zap.NewNop())
}

func newPatternsListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List classification patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			var patterns []intent.Pattern
			if all {
				patterns, err = db.ListPatterns(cmd.Context())
			} else {
				patterns, err = db.ListActivePatterns(cmd.Context())
			}
			if err != nil {
				return err
			}

			for _, p := range patterns {
				state := "active"
				if !p.Active {
					state = "inactive"
				}
				fmt.Printf("%d\t%s\t%s/%s\tweight=%.2f success=%.2f uses=%d\t%s\n",
					p.ID, state, p.Category, p.Action, p.Weight, p.SuccessRate, p.UsageCount, p.Pattern)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include deactivated patterns")
	return cmd
}

func newPatternsAddCmd() *cobra.Command {
	var (
		category string
		action   string
		weight   float64
	)

	cmd := &cobra.Command{
		Use:   "add <pattern>",
		Short: "Add a classification pattern (regex or keyword list)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			id, err := db.AddPattern(cmd.Context(), &intent.Pattern{
				Pattern:  args[0],
				Category: category,
				Action:   action,
				Weight:   weight,
			})
			if err != nil {
				return err
			}

			fmt.Printf("added pattern %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "intent category")
	cmd.Flags().StringVar(&action, "action", "", "intent action")
	cmd.Flags().Float64Var(&weight, "weight", 1.0, "pattern weight")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func newPatternsDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a classification pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
				return fmt.Errorf("invalid pattern id %q", args[0])
			}

			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.DeactivatePattern(cmd.Context(), id); err != nil {
				return err
			}

			fmt.Printf("deactivated pattern %d\n", id)
			return nil
		},
	}
}

// seedPatterns are the starter patterns for a fresh installation.
var seedPatterns = []intent.Pattern{
	{
		Pattern:  `create\s+(?:a\s+)?storage\s+account(?:\s+named?\s+(?P<name>[a-z0-9-]+))?`,
		Category: "infrastructure",
		Action:   "provision_storage",
		Weight:   0.9,
	},
	{
		Pattern:  `(?:deploy|create|provision)\s+(?:an?\s+)?aks\s+cluster(?:\s+named?\s+(?P<name>[a-z0-9-]+))?`,
		Category: "infrastructure",
		Action:   "provision_aks",
		Weight:   0.9,
	},
	{
		Pattern:  "generate,template",
		Category: "template",
		Action:   "generate_template",
		Weight:   0.8,
	},
	{
		Pattern:  "compliance,scan",
		Category: "compliance",
		Action:   "run_compliance_scan",
		Weight:   0.8,
	},
	{
		Pattern:  `how\s+much\s+(?:did|does|is).*(?:cost|spend)`,
		Category: "cost",
		Action:   "analyze_costs",
		Weight:   0.85,
	},
}

func newPatternsSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the starter classification patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			for _, p := range seedPatterns {
				pattern := p
				id, err := db.AddPattern(cmd.Context(), &pattern)
				if err != nil {
					return fmt.Errorf("failed to seed pattern %q: %w", p.Pattern, err)
				}
				fmt.Printf("seeded pattern %d: %s/%s\n", id, p.Category, p.Action)
			}
			return nil
		},
	}
}
