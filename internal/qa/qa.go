// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package qa answers interactive questions about analyzed papers. A
// question is asked against the same context prefix Deep-Analysis used,
// optionally threaded onto an earlier exchange, optionally routed to
// the reasoning model, and optionally enriched with other papers the
// question references by arXiv identifier.
package qa

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-analyst/internal/llm"
	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

// maxAttempts is the per-question retry ceiling. A streaming attempt
// that fails mid-stream is restarted from scratch.
const maxAttempts = 3

// backoffBase controls the base duration for exponential backoff
// between attempts. Tests override this to avoid real sleeps.
var backoffBase = time.Second

// Resolver turns a referenced paper identifier into an analyzed record.
// The orchestrator provides the production implementation.
type Resolver interface {
	Resolve(ctx context.Context, id string, cfg types.Config) (*types.PaperRecord, error)
}

// RecordStore is the subset of the record store the engine writes to.
type RecordStore interface {
	Save(rec *types.PaperRecord) error
}

// EventKind discriminates streamed Q&A events.
type EventKind int

const (
	// EventThinking carries a reasoning-trace fragment.
	EventThinking EventKind = iota
	// EventContent carries an answer fragment.
	EventContent
	// EventError carries a failure. Transient marks errors that will be
	// followed by another attempt; otherwise the stream is over.
	EventError
	// EventDone marks successful completion. The exchange has been
	// persisted by the time this event is delivered.
	EventDone
)

// Event is one streamed Q&A event.
type Event struct {
	Kind      EventKind
	Text      string
	Err       error
	Transient bool
}

// Engine answers questions about a single paper.
type Engine struct {
	LLM      llm.Client
	Store    RecordStore
	Resolver Resolver
	Log      *zap.Logger
}

// New returns an Engine. A nil logger is replaced with a no-op logger.
func New(client llm.Client, st RecordStore, res Resolver, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{LLM: client, Store: st, Resolver: res, Log: log}
}

// Ask answers one question synchronously and persists the exchange on
// success. parentID, when non-nil, threads the question onto an earlier
// exchange of the same record.
func (e *Engine) Ask(ctx context.Context, rec *types.PaperRecord, question string, cfg types.Config, parentID *int) (string, error) {
	pr := e.buildPrompt(ctx, rec, question, cfg, parentID)
	e.Log.Debug("asking", zap.String("id", rec.ID), zap.String("cache_id", pr.cacheID))

	var answer string
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.wait(ctx, attempt); err != nil {
				return "", err
			}
		}
		answer, lastErr = e.LLM.Chat(ctx, pr.req)
		if lastErr == nil {
			break
		}
		e.Log.Warn("question failed",
			zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}
	if lastErr != nil {
		return "", fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
	}

	if err := e.persist(rec, question, answer, "", pr.isReasoning, parentID); err != nil {
		return "", err
	}
	return answer, nil
}

// AskStream answers one question with incremental delivery. Thinking
// and content fragments arrive as they are decoded; a failed attempt is
// reported as a transient error event and restarted with the partial
// output discarded. On success the full exchange is persisted and an
// EventDone is delivered; on exhaustion a terminal error event is
// delivered and nothing is persisted. The channel is closed when the
// stream ends either way.
func (e *Engine) AskStream(ctx context.Context, rec *types.PaperRecord, question string, cfg types.Config, parentID *int) <-chan Event {
	out := make(chan Event, 64)

	go func() {
		defer close(out)

		pr := e.buildPrompt(ctx, rec, question, cfg, parentID)
		e.Log.Debug("asking (streaming)",
			zap.String("id", rec.ID),
			zap.String("cache_id", pr.cacheID),
			zap.Bool("reasoning", pr.isReasoning))

		var thinking, content strings.Builder
		var lastErr error

		for attempt := 0; attempt < maxAttempts; attempt++ {
			if attempt > 0 {
				if !e.emit(ctx, out, Event{
					Kind:      EventError,
					Err:       lastErr,
					Transient: true,
					Text:      fmt.Sprintf("stream interrupted, retrying (%d/%d)", attempt+1, maxAttempts),
				}) {
					return
				}
				if err := e.wait(ctx, attempt); err != nil {
					e.emit(ctx, out, Event{Kind: EventError, Err: err})
					return
				}
			}

			// Accumulation restarts with each attempt so a retried
			// stream never persists duplicated fragments.
			thinking.Reset()
			content.Reset()

			deltas, errs := e.LLM.ChatStream(ctx, pr.req)
			for d := range deltas {
				if d.Thinking != "" {
					thinking.WriteString(d.Thinking)
					if !e.emit(ctx, out, Event{Kind: EventThinking, Text: d.Thinking}) {
						return
					}
				}
				if d.Content != "" {
					content.WriteString(d.Content)
					if !e.emit(ctx, out, Event{Kind: EventContent, Text: d.Content}) {
						return
					}
				}
			}
			if lastErr = <-errs; lastErr != nil {
				e.Log.Warn("stream failed",
					zap.Int("attempt", attempt+1), zap.Error(lastErr))
				continue
			}

			if err := e.persist(rec, question, content.String(), thinking.String(), pr.isReasoning, parentID); err != nil {
				e.emit(ctx, out, Event{Kind: EventError, Err: err})
				return
			}
			e.emit(ctx, out, Event{Kind: EventDone})
			return
		}

		e.emit(ctx, out, Event{
			Kind: EventError,
			Err:  fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr),
		})
	}()

	return out
}

// persist appends the exchange to the record and saves it. The question
// is stored exactly as the user typed it, reasoning marker and
// bracketed references included, so re-asking reproduces the prompt.
func (e *Engine) persist(rec *types.PaperRecord, question, answer, thinking string, isReasoning bool, parentID *int) error {
	entry := types.QAEntry{
		Question:    question,
		Answer:      answer,
		IsReasoning: isReasoning,
		ParentID:    parentID,
		CreatedAt:   time.Now().UTC(),
	}
	if isReasoning {
		entry.Thinking = thinking
	}
	rec.QAEntries = append(rec.QAEntries, entry)

	if err := e.Store.Save(rec); err != nil {
		return fmt.Errorf("saving record %s: %w", rec.ID, err)
	}
	return nil
}

// wait sleeps the exponential backoff for the given attempt, honoring
// context cancellation.
func (e *Engine) wait(ctx context.Context, attempt int) error {
	backoff := time.Duration(1<<uint(attempt-1)) * backoffBase
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

// emit delivers one event, reporting false when the context is gone.
func (e *Engine) emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
