// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-analyst/internal/llm"
	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

// summaryQuestion is the fixed instructional template for the detailed
// summary request. It is phrased as just another question against the
// cache prefix so the prefix stays identical across every Stage-2 call.
const summaryQuestion = `Write a detailed summary of this paper (200-300 words) covering:
1. Research background and motivation
2. Core method and technical contributions
3. Main experimental results
4. Significance and practical value

Use Markdown formatting to keep the summary readable.`

// CachePrefix builds the fixed context block for a record: title plus
// full text (or abstract when full text is unavailable). Every model
// call in Deep-Analysis and single-paper Q&A reuses this exact string
// verbatim, with only the trailing question varying, so the inference
// service can reuse its context cache across requests.
func CachePrefix(rec *types.PaperRecord) string {
	return fmt.Sprintf("Paper Title: %s\n\nPaper Content:\n%s\n", rec.Title, rec.Content())
}

// AskAgainstPrefix forms the user-turn content for a question against a
// fixed prefix. Shared with the Q&A engine so both produce byte-equal
// prompts for the same record.
func AskAgainstPrefix(prefix, question string) string {
	return prefix + "\n\nQuestion: " + question
}

// Analyze runs Deep-Analysis on one record: the detailed summary
// followed by each preset question, in configured order, all against
// the same cache prefix. The stage is all-or-nothing: if any request
// exhausts its retries the record is not persisted and its in-memory
// Stage-2 fields are left untouched.
//
// Records whose relevance is not Relevant are returned unchanged.
func (p *Pipeline) Analyze(ctx context.Context, rec *types.PaperRecord, cfg types.Config) error {
	if rec.IsRelevant != types.Relevant {
		return nil
	}

	prefix := CachePrefix(rec)

	ask := func(question string) (string, error) {
		return p.chatWithRetry(ctx, llm.Request{
			System:      cfg.SystemPrompt,
			Turns:       []llm.Turn{{Role: "user", Content: AskAgainstPrefix(prefix, question)}},
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	}

	summary, err := ask(summaryQuestion)
	if err != nil {
		return fmt.Errorf("stage 2 summary for %s: %w", rec.ID, err)
	}
	p.Log.Info("stage 2: summary generated", zap.String("id", rec.ID))

	// Answers accumulate locally; the record is only mutated once every
	// request has succeeded.
	entries := make([]types.QAEntry, 0, len(cfg.PresetQuestions))
	for _, question := range cfg.PresetQuestions {
		answer, err := ask(question)
		if err != nil {
			return fmt.Errorf("stage 2 question for %s: %w", rec.ID, err)
		}
		entries = append(entries, types.QAEntry{
			Question:  question,
			Answer:    answer,
			CreatedAt: time.Now().UTC(),
		})
		p.Log.Info("stage 2: answered preset question",
			zap.String("id", rec.ID),
			zap.String("question", truncate(question, 40)))
	}

	rec.DetailedSummary = summary
	rec.QAEntries = append(rec.QAEntries, entries...)

	if err := p.Store.Save(rec); err != nil {
		return fmt.Errorf("saving record %s: %w", rec.ID, err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
