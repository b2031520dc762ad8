// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package qa

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-analyst/internal/llm"
	"github.com/pdiddy/arxiv-analyst/internal/pipeline"
	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

// reasoningMarker switches a question to the reasoning model when it
// appears (case-insensitively) at the start of the question text.
const reasoningMarker = "think:"

// refPattern matches bracketed arXiv identifiers in question text, with
// an optional version suffix, e.g. [2401.12345] or [2401.12345v2].
var refPattern = regexp.MustCompile(`\[(\d{4}\.\d{4,5}(?:v\d+)?)\]`)

// refTitleLimit bounds the title substituted for a bracketed reference.
const refTitleLimit = 60

// detectReasoning reports whether the question opens with the reasoning
// marker and returns the question with the marker stripped.
func detectReasoning(question string) (string, bool) {
	trimmed := strings.TrimSpace(question)
	if len(trimmed) < len(reasoningMarker) {
		return trimmed, false
	}
	if !strings.EqualFold(trimmed[:len(reasoningMarker)], reasoningMarker) {
		return trimmed, false
	}
	return strings.TrimSpace(trimmed[len(reasoningMarker):]), true
}

// extractRefs returns the distinct referenced identifiers in order of
// first appearance.
func extractRefs(question string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, m := range refPattern.FindAllStringSubmatch(question, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		ids = append(ids, m[1])
	}
	return ids
}

// refTitle shortens a referenced paper's title for inline substitution.
func refTitle(title string) string {
	if len(title) <= refTitleLimit {
		return title
	}
	return title[:refTitleLimit] + "..."
}

// combinedContext builds the multi-paper context block used when a
// question references other papers. The current paper always comes
// first, followed by each resolved reference in question order.
func combinedContext(rec *types.PaperRecord, refs []*types.PaperRecord) string {
	var b strings.Builder
	b.WriteString("=== CURRENT PAPER ===\n")
	b.WriteString(pipeline.CachePrefix(rec))
	for i, ref := range refs {
		fmt.Fprintf(&b, "\n=== REFERENCE PAPER %d ===\n", i+1)
		b.WriteString(pipeline.CachePrefix(ref))
	}
	return b.String()
}

// prompt is a fully assembled model request plus the metadata needed to
// persist the resulting exchange.
type prompt struct {
	req         llm.Request
	isReasoning bool

	// cacheID identifies the context block for cache accounting. A
	// question with resolved references uses a distinct id so its
	// combined context is never confused with the single-paper prefix.
	cacheID string
}

// buildPrompt assembles the request for one question: reasoning-marker
// detection, reference resolution, context assembly, and conversation
// threading. Reference resolution failures degrade the question rather
// than failing it; unresolved identifiers stay as typed.
func (e *Engine) buildPrompt(ctx context.Context, rec *types.PaperRecord, question string, cfg types.Config, parentID *int) prompt {
	stripped, isReasoning := detectReasoning(question)

	var refs []*types.PaperRecord
	finalQuestion := stripped
	for _, id := range extractRefs(stripped) {
		if e.Resolver == nil {
			e.Log.Warn("no resolver configured, leaving reference unresolved",
				zap.String("ref", id))
			continue
		}
		ref, err := e.Resolver.Resolve(ctx, id, cfg)
		if err != nil {
			e.Log.Warn("reference resolution failed, skipping",
				zap.String("ref", id), zap.Error(err))
			continue
		}
		refs = append(refs, ref)
		finalQuestion = strings.ReplaceAll(finalQuestion, "["+id+"]", fmt.Sprintf("%q", refTitle(ref.Title)))
	}

	prefix := pipeline.CachePrefix(rec)
	cacheID := rec.ID
	if len(refs) > 0 {
		prefix = combinedContext(rec, refs)
		cacheID = rec.ID + "_with_refs"
	}

	var turns []llm.Turn
	if parentID != nil {
		for _, t := range rec.Thread(*parentID) {
			turns = append(turns,
				llm.Turn{Role: "user", Content: "Question: " + t.Question},
				llm.Turn{Role: "assistant", Content: t.Answer})
		}
	}
	turns = append(turns, llm.Turn{
		Role:    "user",
		Content: pipeline.AskAgainstPrefix(prefix, finalQuestion),
	})

	model := ""
	if isReasoning {
		model = cfg.ReasoningModel
	}

	return prompt{
		req: llm.Request{
			Model:       model,
			System:      cfg.SystemPrompt,
			Turns:       turns,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
		isReasoning: isReasoning,
		cacheID:     cacheID,
	}
}
