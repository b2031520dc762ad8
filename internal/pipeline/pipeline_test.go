// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/arxiv-analyst/internal/llm"
	"github.com/pdiddy/arxiv-analyst/internal/store"
	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

func init() {
	// Use a tiny backoff so retry tests finish quickly.
	backoffBase = time.Millisecond
}

// fakeClient scripts Chat responses. chatFn receives the 1-based call
// number.
type fakeClient struct {
	mu     sync.Mutex
	calls  []llm.Request
	chatFn func(call int, req llm.Request) (string, error)
}

func (f *fakeClient) Chat(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	return f.chatFn(n, req)
}

func (f *fakeClient) ChatStream(ctx context.Context, req llm.Request) (<-chan llm.Delta, <-chan error) {
	deltas := make(chan llm.Delta)
	errs := make(chan error, 1)
	close(deltas)
	errs <- errors.New("streaming not scripted")
	close(errs)
	return deltas, errs
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeStore is an in-memory RecordStore.
type fakeStore struct {
	mu    sync.Mutex
	recs  map[string]*types.PaperRecord
	saves int
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[string]*types.PaperRecord)}
}

func (s *fakeStore) Load(id string) (*types.PaperRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, fmt.Errorf("loading %s: %w", id, store.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) Save(rec *types.PaperRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.recs[rec.ID] = &cp
	s.saves++
	return nil
}

func (s *fakeStore) List(skip, limit int) ([]*types.PaperRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.PaperRecord
	for _, rec := range s.recs {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

const goodJudgment = `{"is_relevant": true, "relevance_score": 8.5, "extracted_keywords": ["robots"], "one_line_summary": "a robot paper"}`

func alwaysJudge(text string) func(int, llm.Request) (string, error) {
	return func(int, llm.Request) (string, error) { return text, nil }
}

func testConfig() types.Config {
	cfg := types.DefaultConfig()
	cfg.PresetQuestions = []string{"question one", "question two"}
	cfg.NegativeKeywords = []string{"medical"}
	cfg.MinScoreForStage2 = 6.0
	cfg.ConcurrentPapers = 2
	return cfg
}

func TestRunGatesOnThreshold(t *testing.T) {
	scores := map[string]string{
		"p-high": `{"is_relevant": true, "relevance_score": 8, "extracted_keywords": [], "one_line_summary": "s"}`,
		"p-edge": `{"is_relevant": true, "relevance_score": 6, "extracted_keywords": [], "one_line_summary": "s"}`,
		"p-low":  `{"is_relevant": true, "relevance_score": 5.9, "extracted_keywords": [], "one_line_summary": "s"}`,
		"p-no":   `{"is_relevant": false, "relevance_score": 8, "extracted_keywords": [], "one_line_summary": "s"}`,
	}

	client := &fakeClient{}
	client.chatFn = func(_ int, req llm.Request) (string, error) {
		content := req.Turns[len(req.Turns)-1].Content
		if req.JSONResponse {
			for id, j := range scores {
				if strings.Contains(content, "title of "+id) {
					return j, nil
				}
			}
			return "", errors.New("unmatched judgment request")
		}
		return "an analysis answer", nil
	}

	st := newFakeStore()
	p := New(client, st, nil)

	records := []*types.PaperRecord{
		{ID: "p-high", Title: "title of p-high", Preview: "pv"},
		{ID: "p-edge", Title: "title of p-edge", Preview: "pv"},
		{ID: "p-low", Title: "title of p-low", Preview: "pv"},
		{ID: "p-no", Title: "title of p-no", Preview: "pv"},
	}
	p.Run(context.Background(), records, testConfig(), false)

	byID := map[string]*types.PaperRecord{}
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	assert.True(t, byID["p-high"].HasDeepAnalysis())
	assert.True(t, byID["p-edge"].HasDeepAnalysis(), "score equal to threshold must pass the gate")
	assert.False(t, byID["p-low"].HasDeepAnalysis())
	assert.False(t, byID["p-no"].HasDeepAnalysis())
}

func TestRunSkipStage1(t *testing.T) {
	client := &fakeClient{chatFn: alwaysJudge("analysis answer")}
	st := newFakeStore()
	p := New(client, st, nil)

	rec := &types.PaperRecord{ID: "p1", Title: "t", Abstract: "a", IsRelevant: types.Relevant, RelevanceScore: 9}
	p.Run(context.Background(), []*types.PaperRecord{rec}, testConfig(), true)

	assert.True(t, rec.HasDeepAnalysis())
	// Summary plus two preset questions, no filter call.
	assert.Equal(t, 3, client.callCount())
	for _, req := range client.calls {
		assert.False(t, req.JSONResponse)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	client := &fakeClient{chatFn: alwaysJudge("unused")}
	p := New(client, newFakeStore(), nil)

	out := p.Run(context.Background(), nil, testConfig(), false)
	assert.Empty(t, out)
	assert.Zero(t, client.callCount())
}

func TestRunIsolatesRecordFailures(t *testing.T) {
	// One record's judgment always fails; the other still completes.
	client := &fakeClient{}
	client.chatFn = func(_ int, req llm.Request) (string, error) {
		content := req.Turns[len(req.Turns)-1].Content
		if strings.Contains(content, "doomed") {
			return "", errors.New("model down")
		}
		if req.JSONResponse {
			return goodJudgment, nil
		}
		return "analysis answer", nil
	}

	st := newFakeStore()
	p := New(client, st, nil)

	good := &types.PaperRecord{ID: "good", Title: "fine paper", Preview: "pv"}
	bad := &types.PaperRecord{ID: "bad", Title: "doomed paper", Preview: "pv"}
	p.Run(context.Background(), []*types.PaperRecord{good, bad}, testConfig(), false)

	assert.True(t, good.HasDeepAnalysis())
	assert.Equal(t, types.RelevanceUnknown, bad.IsRelevant)
	assert.False(t, bad.HasDeepAnalysis())
}

func TestSweepPending(t *testing.T) {
	client := &fakeClient{chatFn: alwaysJudge("analysis answer")}
	st := newFakeStore()

	require.NoError(t, st.Save(&types.PaperRecord{
		ID: "pending", Title: "t", Abstract: "a",
		IsRelevant: types.Relevant, RelevanceScore: 8,
	}))
	require.NoError(t, st.Save(&types.PaperRecord{
		ID: "done", Title: "t", Abstract: "a",
		IsRelevant: types.Relevant, RelevanceScore: 8, DetailedSummary: "already",
	}))
	require.NoError(t, st.Save(&types.PaperRecord{
		ID: "below", Title: "t", Abstract: "a",
		IsRelevant: types.Relevant, RelevanceScore: 3,
	}))
	require.NoError(t, st.Save(&types.PaperRecord{
		ID: "rejected", Title: "t", Abstract: "a",
		IsRelevant: types.NotRelevant, RelevanceScore: 8,
	}))

	p := New(client, st, nil)
	n, err := p.SweepPending(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	swept, err := st.Load("pending")
	require.NoError(t, err)
	assert.True(t, swept.HasDeepAnalysis())

	// No filter calls; sweep goes straight to Deep-Analysis.
	for _, req := range client.calls {
		assert.False(t, req.JSONResponse)
	}
}

func TestRefilter(t *testing.T) {
	client := &fakeClient{chatFn: alwaysJudge("unused")}
	st := newFakeStore()

	require.NoError(t, st.Save(&types.PaperRecord{
		ID: "match", Title: "Medical imaging with transformers", Preview: "pv",
		IsRelevant: types.Relevant, RelevanceScore: 8,
		ExtractedKeywords: []string{"transformers"},
	}))
	require.NoError(t, st.Save(&types.PaperRecord{
		ID: "keep", Title: "Robot manipulation", Preview: "pv",
		IsRelevant: types.Relevant, RelevanceScore: 8,
	}))

	p := New(client, st, nil)
	demoted, err := p.Refilter(context.Background(), testConfig(), []string{"medical"})
	require.NoError(t, err)
	assert.Equal(t, 1, demoted)

	rec, err := st.Load("match")
	require.NoError(t, err)
	assert.Equal(t, types.NotRelevant, rec.IsRelevant)
	assert.Equal(t, negativeMatchScore, rec.RelevanceScore)
	require.NotEmpty(t, rec.ExtractedKeywords)
	assert.Equal(t, negativeMarker+"medical", rec.ExtractedKeywords[0])
	assert.Equal(t, "transformers", rec.ExtractedKeywords[1], "prior keywords are kept")

	kept, err := st.Load("keep")
	require.NoError(t, err)
	assert.Equal(t, types.Relevant, kept.IsRelevant)

	assert.Zero(t, client.callCount(), "refilter never calls the model")
}

func TestRefilterNoNegatives(t *testing.T) {
	p := New(&fakeClient{chatFn: alwaysJudge("unused")}, newFakeStore(), nil)
	n, err := p.Refilter(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChatWithRetryRecovers(t *testing.T) {
	client := &fakeClient{}
	client.chatFn = func(call int, _ llm.Request) (string, error) {
		if call < 3 {
			return "", errors.New("transient")
		}
		return "finally", nil
	}

	p := New(client, newFakeStore(), nil)
	text, err := p.chatWithRetry(context.Background(), llm.Request{})
	require.NoError(t, err)
	assert.Equal(t, "finally", text)
	assert.Equal(t, 3, client.callCount())
}

func TestChatWithRetryExhausts(t *testing.T) {
	client := &fakeClient{}
	client.chatFn = func(int, llm.Request) (string, error) {
		return "", errors.New("hard down")
	}

	p := New(client, newFakeStore(), nil)
	_, err := p.chatWithRetry(context.Background(), llm.Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hard down")
	assert.Equal(t, maxAttempts, client.callCount())
}
