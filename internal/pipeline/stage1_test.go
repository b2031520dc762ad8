// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/arxiv-analyst/internal/llm"
	"github.com/pdiddy/arxiv-analyst/internal/store"
	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

func TestQuickFilterNegativeKeyword(t *testing.T) {
	client := &fakeClient{chatFn: alwaysJudge("should never be called")}
	st := newFakeStore()
	p := New(client, st, nil)

	rec := &types.PaperRecord{
		ID:      "p1",
		Title:   "Deep learning for MEDICAL diagnosis",
		Preview: "preview text",
	}
	require.NoError(t, p.QuickFilter(context.Background(), rec, testConfig()))

	assert.Zero(t, client.callCount(), "negative match must not call the model")
	assert.Equal(t, types.NotRelevant, rec.IsRelevant)
	assert.Equal(t, negativeMatchScore, rec.RelevanceScore)
	assert.Equal(t, []string{negativeMarker + "medical"}, rec.ExtractedKeywords)
	assert.Contains(t, rec.OneLineSummary, "medical")

	saved, err := st.Load("p1")
	require.NoError(t, err)
	assert.Equal(t, types.NotRelevant, saved.IsRelevant)
}

func TestQuickFilterNegativeMatchesPreview(t *testing.T) {
	client := &fakeClient{chatFn: alwaysJudge("unused")}
	p := New(client, newFakeStore(), nil)

	rec := &types.PaperRecord{ID: "p1", Title: "Harmless title", Preview: "We evaluate on clinical data."}
	cfg := testConfig()
	cfg.NegativeKeywords = []string{"clinical"}
	require.NoError(t, p.QuickFilter(context.Background(), rec, cfg))

	assert.Zero(t, client.callCount())
	assert.Equal(t, types.NotRelevant, rec.IsRelevant)
}

func TestQuickFilterJudgment(t *testing.T) {
	client := &fakeClient{chatFn: alwaysJudge(goodJudgment)}
	st := newFakeStore()
	p := New(client, st, nil)

	rec := &types.PaperRecord{ID: "p1", Title: "Robot grasping", Preview: "preview"}
	require.NoError(t, p.QuickFilter(context.Background(), rec, testConfig()))

	assert.Equal(t, types.Relevant, rec.IsRelevant)
	assert.Equal(t, 8.5, rec.RelevanceScore)
	assert.Equal(t, []string{"robots"}, rec.ExtractedKeywords)
	assert.Equal(t, "a robot paper", rec.OneLineSummary)

	require.Equal(t, 1, client.callCount())
	req := client.calls[0]
	assert.True(t, req.JSONResponse)
	assert.Equal(t, stage1MaxTokens, req.MaxTokens)
	content := req.Turns[0].Content
	assert.Contains(t, content, "Robot grasping")
	assert.Contains(t, content, "preview")

	_, err := st.Load("p1")
	assert.NoError(t, err)
}

func TestQuickFilterClampsModelScore(t *testing.T) {
	client := &fakeClient{chatFn: alwaysJudge(
		`{"is_relevant": true, "relevance_score": 42, "extracted_keywords": [], "one_line_summary": "s"}`)}
	p := New(client, newFakeStore(), nil)

	rec := &types.PaperRecord{ID: "p1", Title: "t", Preview: "pv"}
	require.NoError(t, p.QuickFilter(context.Background(), rec, testConfig()))
	assert.Equal(t, 10.0, rec.RelevanceScore)
}

func TestQuickFilterRetriesMalformedResponse(t *testing.T) {
	client := &fakeClient{}
	client.chatFn = func(call int, _ llm.Request) (string, error) {
		if call == 1 {
			return "I cannot answer in JSON, sorry", nil
		}
		return goodJudgment, nil
	}

	p := New(client, newFakeStore(), nil)
	rec := &types.PaperRecord{ID: "p1", Title: "t", Preview: "pv"}
	require.NoError(t, p.QuickFilter(context.Background(), rec, testConfig()))

	assert.Equal(t, 2, client.callCount())
	assert.Equal(t, types.Relevant, rec.IsRelevant)
}

func TestQuickFilterExhaustionLeavesUnknown(t *testing.T) {
	client := &fakeClient{}
	client.chatFn = func(int, llm.Request) (string, error) {
		return "", errors.New("model down")
	}

	st := newFakeStore()
	p := New(client, st, nil)

	rec := &types.PaperRecord{ID: "p1", Title: "t", Preview: "pv"}
	err := p.QuickFilter(context.Background(), rec, testConfig())
	require.Error(t, err)

	assert.Equal(t, maxAttempts, client.callCount())
	assert.Equal(t, types.RelevanceUnknown, rec.IsRelevant)

	_, loadErr := st.Load("p1")
	assert.ErrorIs(t, loadErr, store.ErrNotFound, "failed filtering must not persist")
}

func TestMatchNegative(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		preview   string
		negatives []string
		wantKw    string
		wantMatch bool
	}{
		{"case insensitive title", "A CLINICAL study", "", []string{"clinical"}, "clinical", true},
		{"substring inside word", "Biomedical robots", "", []string{"medical"}, "medical", true},
		{"match in preview only", "Safe title", "protein folding results", []string{"protein"}, "protein", true},
		{"first configured keyword wins", "medical protein", "", []string{"protein", "medical"}, "protein", true},
		{"no match", "Robot grasping", "manipulation", []string{"medical"}, "", false},
		{"empty keyword ignored", "Robot grasping", "", []string{""}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &types.PaperRecord{Title: tt.title, Preview: tt.preview}
			kw, ok := matchNegative(rec, tt.negatives)
			assert.Equal(t, tt.wantMatch, ok)
			assert.Equal(t, tt.wantKw, kw)
		})
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(-3))
	assert.Equal(t, 10.0, clampScore(15))
	assert.Equal(t, 7.2, clampScore(7.2))
}
