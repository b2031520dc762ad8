// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-analyst/internal/llm"
	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

const (
	// negativeMatchScore is the forced score for a negative-keyword
	// rejection; it takes precedence over any model judgment.
	negativeMatchScore = 1.0

	// negativeMarker prefixes the matched keyword in the extracted
	// keyword list so the UI layer can render the rejection.
	negativeMarker = "✗ "

	// stage1MaxTokens caps the structured judgment response.
	stage1MaxTokens = 500
)

// filterPromptTmpl asks the model for a structured relevance judgment
// of a paper preview against the configured topics.
var filterPromptTmpl = template.Must(template.New("filter").Parse(`Analyze this paper preview and judge its relevance to the following topics.

Topics: {{.Topics}}

Title: {{.Title}}
Preview:
{{.Preview}}

Respond with a JSON object:
{
    "is_relevant": true or false,
    "relevance_score": a number from 0 (unrelated) to 10 (highly relevant),
    "extracted_keywords": ["keyword1", "keyword2", ...],
    "one_line_summary": "a one-sentence summary"
}
`))

// judgment is the structured Stage-1 response.
type judgment struct {
	IsRelevant        bool     `json:"is_relevant"`
	RelevanceScore    float64  `json:"relevance_score"`
	ExtractedKeywords []string `json:"extracted_keywords"`
	OneLineSummary    string   `json:"one_line_summary"`
}

func negativeSummary(keyword string) string {
	return fmt.Sprintf("Automatically marked not relevant: contains negative keyword %q", keyword)
}

// matchNegative returns the first configured negative keyword found in
// the record's title or preview, case-insensitively.
func matchNegative(rec *types.PaperRecord, negatives []string) (string, bool) {
	searchable := strings.ToLower(rec.Title + " " + rec.Preview)
	for _, kw := range negatives {
		if kw == "" {
			continue
		}
		if strings.Contains(searchable, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}

// QuickFilter runs Stage 1 on one record and persists it on success.
//
// A negative-keyword match wins immediately: the record is demoted with
// a forced score of 1.0 and no model call is made. Otherwise one model
// request produces a structured judgment; transport errors and
// malformed responses are retried up to the shared ceiling. On
// exhaustion the record stays Unknown and nothing is persisted, leaving
// it visible to a later sweep.
func (p *Pipeline) QuickFilter(ctx context.Context, rec *types.PaperRecord, cfg types.Config) error {
	if kw, ok := matchNegative(rec, cfg.NegativeKeywords); ok {
		rec.IsRelevant = types.NotRelevant
		rec.RelevanceScore = negativeMatchScore
		rec.ExtractedKeywords = []string{negativeMarker + kw}
		rec.OneLineSummary = negativeSummary(kw)

		if err := p.Store.Save(rec); err != nil {
			return fmt.Errorf("saving record %s: %w", rec.ID, err)
		}
		p.Log.Info("stage 1: negative keyword matched",
			zap.String("id", rec.ID),
			zap.String("keyword", kw))
		return nil
	}

	prompt, err := renderFilterPrompt(rec, cfg)
	if err != nil {
		return fmt.Errorf("rendering filter prompt: %w", err)
	}

	req := llm.Request{
		System:       cfg.SystemPrompt,
		Turns:        []llm.Turn{{Role: "user", Content: prompt}},
		Temperature:  cfg.Temperature,
		MaxTokens:    stage1MaxTokens,
		JSONResponse: true,
	}

	j, err := p.judgeWithRetry(ctx, req)
	if err != nil {
		// Terminal failure: leave relevance unknown, persist nothing.
		rec.IsRelevant = types.RelevanceUnknown
		return fmt.Errorf("stage 1 for %s: %w", rec.ID, err)
	}

	if j.IsRelevant {
		rec.IsRelevant = types.Relevant
	} else {
		rec.IsRelevant = types.NotRelevant
	}
	rec.RelevanceScore = clampScore(j.RelevanceScore)
	rec.ExtractedKeywords = j.ExtractedKeywords
	rec.OneLineSummary = j.OneLineSummary

	if err := p.Store.Save(rec); err != nil {
		return fmt.Errorf("saving record %s: %w", rec.ID, err)
	}

	p.Log.Info("stage 1: judged",
		zap.String("id", rec.ID),
		zap.Bool("relevant", j.IsRelevant),
		zap.Float64("score", rec.RelevanceScore))
	return nil
}

// judgeWithRetry issues the judgment request and strictly parses the
// JSON response, retrying both transport and parse failures.
func (p *Pipeline) judgeWithRetry(ctx context.Context, req llm.Request) (judgment, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * backoffBase
			select {
			case <-ctx.Done():
				return judgment{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := p.LLM.Chat(ctx, req)
		if err != nil {
			lastErr = err
			p.Log.Warn("stage 1 model call failed",
				zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		var j judgment
		if err := json.Unmarshal([]byte(text), &j); err != nil {
			lastErr = fmt.Errorf("parsing judgment: %w", err)
			p.Log.Warn("stage 1 response unparseable",
				zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		return j, nil
	}
	return judgment{}, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

func renderFilterPrompt(rec *types.PaperRecord, cfg types.Config) (string, error) {
	var buf bytes.Buffer
	err := filterPromptTmpl.Execute(&buf, struct {
		Topics  string
		Title   string
		Preview string
	}{
		Topics:  strings.Join(cfg.FilterKeywords, ", "),
		Title:   rec.Title,
		Preview: rec.Preview,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// clampScore forces a model-reported score into [0, 10].
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
