// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/arxiv-analyst/internal/store"
	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit the pipeline configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(a.cfg)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key=value...>",
	Short: "Update configuration fields",
	Long: `Set updates one or more configuration fields and persists the result.
Unnamed fields keep their current values; out-of-range values are clamped
to documented bounds rather than rejected.

List-valued keys (filter_keywords, negative_keywords, categories,
preset_questions) take comma-separated values.

Example:
  arxiv-analyst config set min_relevance_score_for_stage2=7 concurrent_papers=4`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfigForApp(a *app) (types.Config, error) {
	return store.LoadConfig(a.dataDir)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}

	cfg := a.cfg
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected key=value, got %q", arg)
		}
		if err := applyConfigValue(&cfg, key, value); err != nil {
			return err
		}
	}

	if err := store.SaveConfig(a.dataDir, cfg); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "configuration updated")
	return nil
}

// applyConfigValue sets one configuration field from its string form.
func applyConfigValue(cfg *types.Config, key, value string) error {
	switch key {
	case "filter_keywords":
		cfg.FilterKeywords = splitList(value)
	case "negative_keywords":
		cfg.NegativeKeywords = splitList(value)
	case "preset_questions":
		cfg.PresetQuestions = splitList(value)
	case "categories":
		cfg.Categories = splitList(value)
	case "system_prompt":
		cfg.SystemPrompt = value
	case "model":
		cfg.Model = value
	case "reasoning_model":
		cfg.ReasoningModel = value
	case "start_date":
		cfg.StartDate = value
	case "end_date":
		cfg.EndDate = value
	case "fetch_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		cfg.FetchInterval = d
	case "temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		cfg.Temperature = f
	case "min_relevance_score_for_stage2":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		cfg.MinScoreForStage2 = f
	case "max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		cfg.MaxTokens = n
	case "concurrent_papers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		cfg.ConcurrentPapers = n
	case "max_papers_per_fetch":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		cfg.MaxPapersPerFetch = n
	default:
		return fmt.Errorf("unknown configuration key %q", key)
	}
	return nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
