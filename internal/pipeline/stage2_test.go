// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/arxiv-analyst/internal/llm"
	"github.com/pdiddy/arxiv-analyst/internal/store"
	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

func relevantRecord() *types.PaperRecord {
	return &types.PaperRecord{
		ID:             "2401.00001",
		Title:          "A Paper",
		Abstract:       "The abstract.",
		IsRelevant:     types.Relevant,
		RelevanceScore: 8,
	}
}

func TestAnalyze(t *testing.T) {
	client := &fakeClient{}
	client.chatFn = func(call int, _ llm.Request) (string, error) {
		return fmt.Sprintf("answer %d", call), nil
	}

	st := newFakeStore()
	p := New(client, st, nil)

	rec := relevantRecord()
	require.NoError(t, p.Analyze(context.Background(), rec, testConfig()))

	// Summary first, then the preset questions in configured order.
	assert.Equal(t, "answer 1", rec.DetailedSummary)
	require.Len(t, rec.QAEntries, 2)
	assert.Equal(t, "question one", rec.QAEntries[0].Question)
	assert.Equal(t, "answer 2", rec.QAEntries[0].Answer)
	assert.Equal(t, "question two", rec.QAEntries[1].Question)
	assert.Equal(t, "answer 3", rec.QAEntries[1].Answer)

	saved, err := st.Load(rec.ID)
	require.NoError(t, err)
	assert.True(t, saved.HasDeepAnalysis())
}

func TestAnalyzeSharesCachePrefix(t *testing.T) {
	client := &fakeClient{chatFn: alwaysJudge("answer")}
	p := New(client, newFakeStore(), nil)

	rec := relevantRecord()
	require.NoError(t, p.Analyze(context.Background(), rec, testConfig()))

	// Every request must open with the byte-identical prefix so the
	// inference service can reuse its context cache.
	prefix := CachePrefix(rec)
	require.Equal(t, 3, client.callCount())
	for i, req := range client.calls {
		content := req.Turns[0].Content
		assert.True(t, strings.HasPrefix(content, prefix+"\n\nQuestion: "),
			"request %d does not share the cache prefix", i)
	}
}

func TestAnalyzePrefersFullText(t *testing.T) {
	client := &fakeClient{chatFn: alwaysJudge("answer")}
	p := New(client, newFakeStore(), nil)

	rec := relevantRecord()
	rec.HTMLContent = "the full text body"
	require.NoError(t, p.Analyze(context.Background(), rec, testConfig()))

	content := client.calls[0].Turns[0].Content
	assert.Contains(t, content, "the full text body")
	assert.NotContains(t, content, "The abstract.")
}

func TestAnalyzeSkipsNonRelevant(t *testing.T) {
	client := &fakeClient{chatFn: alwaysJudge("unused")}
	p := New(client, newFakeStore(), nil)

	for _, rel := range []types.Relevance{types.RelevanceUnknown, types.NotRelevant} {
		rec := relevantRecord()
		rec.IsRelevant = rel
		require.NoError(t, p.Analyze(context.Background(), rec, testConfig()))
		assert.False(t, rec.HasDeepAnalysis())
	}
	assert.Zero(t, client.callCount())
}

func TestAnalyzeAllOrNothing(t *testing.T) {
	// The second preset question fails all attempts; nothing may stick.
	client := &fakeClient{}
	client.chatFn = func(_ int, req llm.Request) (string, error) {
		if strings.Contains(req.Turns[0].Content, "question two") {
			return "", errors.New("model down")
		}
		return "answer", nil
	}

	st := newFakeStore()
	p := New(client, st, nil)

	rec := relevantRecord()
	err := p.Analyze(context.Background(), rec, testConfig())
	require.Error(t, err)

	assert.Empty(t, rec.DetailedSummary, "in-memory record must stay untouched")
	assert.Empty(t, rec.QAEntries)

	_, loadErr := st.Load(rec.ID)
	assert.ErrorIs(t, loadErr, store.ErrNotFound, "failed analysis must not persist")
}

func TestAnalyzeRetriesPerRequest(t *testing.T) {
	var failed bool
	client := &fakeClient{}
	client.chatFn = func(call int, _ llm.Request) (string, error) {
		if call == 2 && !failed {
			failed = true
			return "", errors.New("transient")
		}
		return "answer", nil
	}

	p := New(client, newFakeStore(), nil)
	rec := relevantRecord()
	require.NoError(t, p.Analyze(context.Background(), rec, testConfig()))

	// 1 summary + 1 failed question attempt + its retry + 1 question.
	assert.Equal(t, 4, client.callCount())
	assert.True(t, rec.HasDeepAnalysis())
}

func TestCachePrefixFormat(t *testing.T) {
	rec := &types.PaperRecord{Title: "T", Abstract: "body"}
	assert.Equal(t, "Paper Title: T\n\nPaper Content:\nbody\n", CachePrefix(rec))
	assert.Equal(t, "Paper Title: T\n\nPaper Content:\nbody\n\n\nQuestion: q",
		AskAgainstPrefix(CachePrefix(rec), "q"))
}
