// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/arxiv-analyst/internal/store"
	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

// PaperFetcher fetches a single paper from the source service.
type PaperFetcher interface {
	FetchByID(ctx context.Context, id string) (*types.PaperRecord, error)
}

// Resolver is the capability the orchestrator exposes to the Q&A engine
// for pulling referenced papers through the analysis pipeline on
// demand. Keeping it a separate value lets the Q&A engine be tested
// against a stub instead of the whole pipeline.
type Resolver struct {
	Pipeline *Pipeline
	Fetcher  PaperFetcher
}

// Resolve returns an analyzed record for id. The record is loaded from
// the store when present, fetched fresh otherwise; Stage 1 runs if
// relevance is still unknown, and Stage 2 runs if the record is
// relevant but lacks deep analysis.
func (r *Resolver) Resolve(ctx context.Context, id string, cfg types.Config) (*types.PaperRecord, error) {
	rec, err := r.Pipeline.Store.Load(id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		rec, err = r.Fetcher.FetchByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", id, err)
		}
		if err := r.Pipeline.Store.Save(rec); err != nil {
			return nil, fmt.Errorf("saving fetched record %s: %w", id, err)
		}
	}

	if rec.IsRelevant == types.RelevanceUnknown {
		if err := r.Pipeline.QuickFilter(ctx, rec, cfg); err != nil {
			return nil, err
		}
	}

	if rec.IsRelevant == types.Relevant && !rec.HasDeepAnalysis() {
		if err := r.Pipeline.Analyze(ctx, rec, cfg); err != nil {
			return nil, err
		}
	}

	return rec, nil
}
