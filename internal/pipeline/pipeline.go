// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline implements the two-stage paper analysis pipeline:
// Quick-Filter (cheap relevance classification from a preview) and
// Deep-Analysis (detailed summary plus a preset question set against a
// fixed context prefix). The orchestrator fans Quick-Filter out over all
// records, gates on the relevance-score threshold, and runs
// Deep-Analysis in fixed-size concurrent batches.
//
// The governing persistence rule: a record is saved only after a stage
// completes in full. Partial or failed attempts never touch the store.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-analyst/internal/llm"
	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

// maxAttempts is the per-request retry ceiling shared by both stages.
const maxAttempts = 3

// backoffBase controls the base duration for exponential backoff
// between attempts (1s, 2s). Tests override this to avoid real sleeps.
var backoffBase = time.Second

// RecordStore is the keyed persistence the pipeline writes to.
type RecordStore interface {
	Load(id string) (*types.PaperRecord, error)
	Save(rec *types.PaperRecord) error
	List(skip, limit int) ([]*types.PaperRecord, error)
}

// Pipeline wires the model client and record store into the two stages.
type Pipeline struct {
	LLM   llm.Client
	Store RecordStore
	Log   *zap.Logger
}

// New returns a Pipeline. A nil logger is replaced with a no-op logger.
func New(client llm.Client, st RecordStore, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{LLM: client, Store: st, Log: log}
}

// chatWithRetry issues one model call with up to maxAttempts attempts
// and exponential backoff between them. Transport failures and, via the
// parse callback in Stage 1, malformed responses are both retriable.
func (p *Pipeline) chatWithRetry(ctx context.Context, req llm.Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := p.LLM.Chat(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		p.Log.Warn("model call failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))
	}
	return "", fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

// Run processes a batch of records: Quick-Filter over every record with
// unconstrained concurrency (unless skipStage1), then Deep-Analysis
// over the records that passed the score gate, in batches of
// cfg.ConcurrentPapers. Batches run sequentially; records within a
// batch run concurrently. Individual record failures are logged and
// never abort the rest of the batch.
func (p *Pipeline) Run(ctx context.Context, records []*types.PaperRecord, cfg types.Config, skipStage1 bool) []*types.PaperRecord {
	if len(records) == 0 {
		return records
	}

	var selected []*types.PaperRecord

	if !skipStage1 {
		p.Log.Info("stage 1: filtering papers", zap.Int("count", len(records)))

		var wg sync.WaitGroup
		for _, rec := range records {
			wg.Add(1)
			go func(rec *types.PaperRecord) {
				defer wg.Done()
				if err := p.QuickFilter(ctx, rec, cfg); err != nil {
					p.Log.Warn("stage 1 failed", zap.String("id", rec.ID), zap.Error(err))
				}
			}(rec)
		}
		wg.Wait()

		for _, rec := range records {
			if rec.IsRelevant == types.Relevant && rec.RelevanceScore >= cfg.MinScoreForStage2 {
				selected = append(selected, rec)
			}
		}
		p.Log.Info("stage 1 complete",
			zap.Int("selected", len(selected)),
			zap.Float64("min_score", cfg.MinScoreForStage2))
	} else {
		selected = records
	}

	if len(selected) == 0 {
		return records
	}

	batchSize := cfg.ConcurrentPapers
	if batchSize < 1 {
		batchSize = 1
	}

	p.Log.Info("stage 2: deep analysis",
		zap.Int("count", len(selected)),
		zap.Int("batch_size", batchSize))

	for start := 0; start < len(selected); start += batchSize {
		end := start + batchSize
		if end > len(selected) {
			end = len(selected)
		}

		var wg sync.WaitGroup
		for _, rec := range selected[start:end] {
			wg.Add(1)
			go func(rec *types.PaperRecord) {
				defer wg.Done()
				if err := p.Analyze(ctx, rec, cfg); err != nil {
					p.Log.Warn("stage 2 failed", zap.String("id", rec.ID), zap.Error(err))
				}
			}(rec)
		}
		wg.Wait()
	}

	return records
}

// SweepPending finds records that passed Stage 1 and the score gate but
// have no deep analysis (cold start, or the threshold was lowered) and
// feeds them through Deep-Analysis only. Returns the number of records
// swept.
func (p *Pipeline) SweepPending(ctx context.Context, cfg types.Config) (int, error) {
	all, err := p.Store.List(0, 0)
	if err != nil {
		return 0, fmt.Errorf("listing records: %w", err)
	}

	var pending []*types.PaperRecord
	for _, rec := range all {
		if rec.IsRelevant == types.Relevant &&
			rec.RelevanceScore >= cfg.MinScoreForStage2 &&
			!rec.HasDeepAnalysis() {
			pending = append(pending, rec)
		}
	}

	if len(pending) == 0 {
		return 0, nil
	}

	p.Log.Info("sweeping records pending deep analysis", zap.Int("count", len(pending)))
	p.Run(ctx, pending, cfg, true)
	return len(pending), nil
}

// Refilter re-scans already-relevant, above-threshold records against a
// changed negative-keyword set. A match demotes the record exactly as
// the Stage-1 fast path does and persists the update. Returns the
// number of records demoted.
func (p *Pipeline) Refilter(ctx context.Context, cfg types.Config, negatives []string) (int, error) {
	if len(negatives) == 0 {
		return 0, nil
	}

	all, err := p.Store.List(0, 0)
	if err != nil {
		return 0, fmt.Errorf("listing records: %w", err)
	}

	demoted := 0
	for _, rec := range all {
		select {
		case <-ctx.Done():
			return demoted, ctx.Err()
		default:
		}

		if rec.IsRelevant != types.Relevant || rec.RelevanceScore < cfg.MinScoreForStage2 {
			continue
		}

		kw, ok := matchNegative(rec, negatives)
		if !ok {
			continue
		}

		rec.IsRelevant = types.NotRelevant
		rec.RelevanceScore = negativeMatchScore
		rec.ExtractedKeywords = append([]string{negativeMarker + kw}, rec.ExtractedKeywords...)
		rec.OneLineSummary = negativeSummary(kw)

		if err := p.Store.Save(rec); err != nil {
			p.Log.Warn("refilter save failed", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		demoted++
		p.Log.Info("demoted by negative keyword",
			zap.String("id", rec.ID),
			zap.String("keyword", kw))
	}
	return demoted, nil
}
