// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Config is the user-controlled, persisted configuration. It is loaded
// as a whole at orchestration boundaries (start of a batch run, start of
// a Q&A call) and threaded explicitly through every stage; it is never
// reloaded mid-record.
type Config struct {
	// FilterKeywords are the positive topics Stage 1 scores against.
	FilterKeywords []string `json:"filter_keywords" yaml:"filter_keywords"`

	// NegativeKeywords short-circuit Stage 1: a case-insensitive
	// substring match against title+preview rejects the paper without
	// a model call.
	NegativeKeywords []string `json:"negative_keywords" yaml:"negative_keywords"`

	// PresetQuestions are asked in order during Deep-Analysis.
	PresetQuestions []string `json:"preset_questions" yaml:"preset_questions"`

	// SystemPrompt is sent with every model request.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`

	// Categories are the arXiv categories polled by fetch.
	Categories []string `json:"categories" yaml:"categories"`

	// FetchInterval is the delay between fetch cycles in watch mode.
	FetchInterval time.Duration `json:"fetch_interval" yaml:"fetch_interval"`

	// MaxPapersPerFetch caps results per category per fetch.
	MaxPapersPerFetch int `json:"max_papers_per_fetch" yaml:"max_papers_per_fetch"`

	// StartDate and EndDate bound the submitted-date window (YYYY-MM-DD).
	StartDate string `json:"start_date" yaml:"start_date"`
	EndDate   string `json:"end_date" yaml:"end_date"`

	// Model is the default chat model identifier.
	Model string `json:"model" yaml:"model"`

	// ReasoningModel answers questions carrying the reasoning marker.
	ReasoningModel string `json:"reasoning_model" yaml:"reasoning_model"`

	// Temperature is the sampling temperature, clamped to [0, 2].
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// MaxTokens caps output tokens per request, clamped to [1, 8192].
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// ConcurrentPapers is the Deep-Analysis batch size, clamped to [1, 16].
	ConcurrentPapers int `json:"concurrent_papers" yaml:"concurrent_papers"`

	// MinScoreForStage2 gates Deep-Analysis: only records with
	// relevance_score >= this threshold enter Stage 2. Clamped to [0, 10].
	MinScoreForStage2 float64 `json:"min_relevance_score_for_stage2" yaml:"min_relevance_score_for_stage2"`
}

// DefaultConfig returns the configuration used when none is persisted.
func DefaultConfig() Config {
	return Config{
		FilterKeywords: []string{
			"vision-language-action models",
			"inference efficiency",
			"lightweight architectures",
			"edge deployment",
		},
		NegativeKeywords: []string{"medical", "healthcare", "clinical", "protein", "molecule"},
		PresetQuestions: []string{
			"What is the core contribution of this paper, what problem does it address, and how does it solve it?",
			"Summarize the paper in one paragraph: the core problem, the proposed method or framework, and the main results. Do not restate the abstract.",
			"List the concrete innovations over prior work. For each, explain what changed relative to earlier methods and what specific problem the change solves.",
			"What did the experiments actually show? Name the datasets, metrics, and baselines, and state the key quantitative improvements. If the paper reports no quantitative results, say why.",
		},
		SystemPrompt: "You are an expert academic paper analyst. Read the provided paper carefully before answering. " +
			"Answer precisely and concisely, in Markdown, focusing on technical contributions and practical value.",
		Categories:        []string{"cs.RO", "cs.AI", "cs.CV", "cs.LG", "cs.CL", "cs.NE"},
		FetchInterval:     5 * time.Minute,
		MaxPapersPerFetch: 50,
		Model:             "deepseek-chat",
		ReasoningModel:    "deepseek-reasoner",
		Temperature:       0.3,
		MaxTokens:         2000,
		ConcurrentPapers:  3,
		MinScoreForStage2: 6.0,
	}
}

// Clamp forces out-of-range values back to documented bounds. Invalid
// configuration is corrected, not rejected.
func (c *Config) Clamp() {
	if c.Temperature < 0 {
		c.Temperature = 0
	}
	if c.Temperature > 2 {
		c.Temperature = 2
	}
	if c.MaxTokens < 1 {
		c.MaxTokens = 1
	}
	if c.MaxTokens > 8192 {
		c.MaxTokens = 8192
	}
	if c.ConcurrentPapers < 1 {
		c.ConcurrentPapers = 1
	}
	if c.ConcurrentPapers > 16 {
		c.ConcurrentPapers = 16
	}
	if c.MinScoreForStage2 < 0 {
		c.MinScoreForStage2 = 0
	}
	if c.MinScoreForStage2 > 10 {
		c.MinScoreForStage2 = 10
	}
	if c.MaxPapersPerFetch < 1 {
		c.MaxPapersPerFetch = 1
	}
	if c.MaxPapersPerFetch > 500 {
		c.MaxPapersPerFetch = 500
	}
	if c.FetchInterval < time.Minute {
		c.FetchInterval = time.Minute
	}
}
