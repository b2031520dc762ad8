// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevanceJSON(t *testing.T) {
	tests := []struct {
		name string
		rel  Relevance
		json string
	}{
		{"relevant encodes as true", Relevant, "true"},
		{"not relevant encodes as false", NotRelevant, "false"},
		{"unknown encodes as null", RelevanceUnknown, "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.rel)
			require.NoError(t, err)
			assert.Equal(t, tt.json, string(data))

			var back Relevance
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.rel, back)
		})
	}
}

func TestRelevanceUnmarshalRejectsGarbage(t *testing.T) {
	var r Relevance
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &r))
}

func TestRelevanceZeroValueEncodesAsNull(t *testing.T) {
	// A freshly fetched record has no verdict yet; its JSON must carry
	// null, not an empty string.
	data, err := json.Marshal(PaperRecord{ID: "2401.00001"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"is_relevant":null`)
}

func TestContent(t *testing.T) {
	rec := &PaperRecord{Abstract: "the abstract", HTMLContent: "the full text"}
	assert.Equal(t, "the full text", rec.Content())

	rec.HTMLContent = ""
	assert.Equal(t, "the abstract", rec.Content())
}

func TestHasDeepAnalysis(t *testing.T) {
	rec := &PaperRecord{}
	assert.False(t, rec.HasDeepAnalysis())
	rec.DetailedSummary = "summary"
	assert.True(t, rec.HasDeepAnalysis())
}

func intp(v int) *int { return &v }

func TestThread(t *testing.T) {
	rec := &PaperRecord{
		QAEntries: []QAEntry{
			{Question: "q0", Answer: "a0"},
			{Question: "q1", Answer: "a1", Thinking: "trace", ParentID: intp(0)},
			{Question: "q2", Answer: "a2"},
			{Question: "q3", Answer: "a3", ParentID: intp(1)},
		},
	}

	t.Run("walks to root oldest first", func(t *testing.T) {
		turns := rec.Thread(3)
		require.Len(t, turns, 3)
		assert.Equal(t, "q0", turns[0].Question)
		assert.Equal(t, "q1", turns[1].Question)
		assert.Equal(t, "q3", turns[2].Question)
		assert.Equal(t, "a3", turns[2].Answer)
	})

	t.Run("root entry yields single turn", func(t *testing.T) {
		turns := rec.Thread(2)
		require.Len(t, turns, 1)
		assert.Equal(t, "q2", turns[0].Question)
	})

	t.Run("out of range parent yields nil", func(t *testing.T) {
		assert.Nil(t, rec.Thread(-1))
		assert.Nil(t, rec.Thread(99))
	})

	t.Run("non-decreasing parent index stops the walk", func(t *testing.T) {
		corrupt := &PaperRecord{
			QAEntries: []QAEntry{
				{Question: "q0", Answer: "a0", ParentID: intp(1)},
				{Question: "q1", Answer: "a1", ParentID: intp(0)},
			},
		}
		turns := corrupt.Thread(1)
		require.Len(t, turns, 2)
		assert.Equal(t, "q0", turns[0].Question)
		assert.Equal(t, "q1", turns[1].Question)
	})
}
