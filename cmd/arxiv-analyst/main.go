// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the arxiv-analyst CLI.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-analyst/internal/arxiv"
	"github.com/pdiddy/arxiv-analyst/internal/llm"
	"github.com/pdiddy/arxiv-analyst/internal/pipeline"
	"github.com/pdiddy/arxiv-analyst/internal/qa"
	"github.com/pdiddy/arxiv-analyst/internal/secrets"
	"github.com/pdiddy/arxiv-analyst/internal/store"
	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	defaultBaseURL   = "https://api.deepseek.com"
	defaultUserAgent = "arxiv-analyst/0.1"
	papersDirName    = "papers"
	indexDirName     = "index"
)

// apiKey holds the DeepSeek API key loaded at startup.
var apiKey string

// rootCmd is the base command for the arxiv-analyst CLI.
var rootCmd = &cobra.Command{
	Use:   "arxiv-analyst",
	Short: "LLM-driven analysis pipeline for arXiv papers",
	Long: `arxiv-analyst fetches recent arXiv papers, filters them for relevance with
a cheap model pass, runs deep analysis on the papers that pass a score
threshold, and answers interactive questions about any analyzed paper.

Each pipeline surface is a subcommand: fetch, analyze, ask, search, sweep,
and watch. Configuration lives in the data directory and is edited with the
config subcommand.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		key, err := secrets.APIKey(".secrets/")
		if err != nil {
			return err
		}
		apiKey = key
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./arxiv-analyst.yaml or ~/.config/arxiv-analyst/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "data", "base directory for records, config, and the search index")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("arxiv-analyst")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "arxiv-analyst"))
		}
	}

	viper.SetDefault("base_url", defaultBaseURL)

	viper.SetEnvPrefix("ARXIV_ANALYST")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// app bundles the wired components every subcommand needs.
type app struct {
	dataDir string
	store   *store.Store
	cfg     types.Config
	log     *zap.Logger
	fetcher *arxiv.Fetcher
	pipe    *pipeline.Pipeline
	engine  *qa.Engine
}

// newApp wires the store, configuration, and (when needsModel) the model
// client, pipeline, and Q&A engine.
func newApp(cmd *cobra.Command, needsModel bool) (*app, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	verbose, _ := cmd.Flags().GetBool("verbose")

	log, err := newLogger(verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	st, err := store.New(filepath.Join(dataDir, papersDirName))
	if err != nil {
		return nil, err
	}

	cfg, err := store.LoadConfig(dataDir)
	if err != nil {
		return nil, err
	}

	a := &app{
		dataDir: dataDir,
		store:   st,
		cfg:     cfg,
		log:     log,
		fetcher: &arxiv.Fetcher{
			Client:    &http.Client{Timeout: 60 * time.Second},
			UserAgent: defaultUserAgent,
		},
	}

	if needsModel {
		if apiKey == "" {
			return nil, fmt.Errorf("no DeepSeek API key: put it in .secrets/%s or set DEEPSEEK_API_KEY", secrets.DeepSeekKey)
		}
		client := &llm.DeepSeekClient{
			APIKey:  apiKey,
			BaseURL: viper.GetString("base_url"),
			Model:   cfg.Model,
			HTTP:    &http.Client{Timeout: 5 * time.Minute},
		}
		a.pipe = pipeline.New(client, st, log)
		a.engine = qa.New(client, st, &pipeline.Resolver{Pipeline: a.pipe, Fetcher: a.fetcher}, log)
	}

	return a, nil
}

func (a *app) indexDir() string {
	return filepath.Join(a.dataDir, indexDirName)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
