// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the shared data model: paper records, Q&A entries,
// and the user-controlled configuration.
package types

import (
	"fmt"
	"time"
)

// Relevance is the tri-state Stage-1 verdict for a paper. A record starts
// Unknown ("awaiting analysis"), and Stage 1 moves it to Relevant or
// NotRelevant. Unknown is an explicit state so sweeps can find records
// whose filtering never completed.
type Relevance string

const (
	RelevanceUnknown Relevance = "unknown"
	Relevant         Relevance = "relevant"
	NotRelevant      Relevance = "not_relevant"
)

// MarshalJSON encodes the tri-state as true/false/null, matching the
// on-disk record layout.
func (r Relevance) MarshalJSON() ([]byte, error) {
	switch r {
	case Relevant:
		return []byte("true"), nil
	case NotRelevant:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes true/false/null into the tri-state.
func (r *Relevance) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*r = Relevant
	case "false":
		*r = NotRelevant
	case "null":
		*r = RelevanceUnknown
	default:
		return fmt.Errorf("invalid relevance value %q", string(data))
	}
	return nil
}

// QAEntry is one question-answer exchange on a paper. Entries are
// append-only; an entry's index in PaperRecord.QAEntries is its stable
// identifier, and ParentID (when set) names an earlier entry's index to
// form a conversation thread.
type QAEntry struct {
	// Question is the original question text as the user typed it,
	// including any reasoning marker and bracketed references.
	Question string `json:"question"`

	// Answer is the accumulated answer text.
	Answer string `json:"answer"`

	// Thinking is the reasoning trace. Only populated in reasoning mode.
	Thinking string `json:"thinking,omitempty"`

	// IsReasoning reports whether the reasoning-capable model answered.
	IsReasoning bool `json:"is_reasoning"`

	// ParentID is the index of the parent entry for follow-up threads.
	// Nil for thread roots. A legal parent always precedes its child.
	ParentID *int `json:"parent_qa_id"`

	// CreatedAt is the entry creation time.
	CreatedAt time.Time `json:"timestamp"`
}

// PaperRecord is the persisted unit of work: one paper plus everything
// derived from it across both analysis stages and interactive Q&A.
type PaperRecord struct {
	// ID is the arXiv identifier (e.g. "2401.12345").
	ID string `json:"id"`

	// Title is the paper title.
	Title string `json:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract"`

	// URL is the canonical abstract page URL.
	URL string `json:"url"`

	// HTMLURL is the full-text HTML page URL.
	HTMLURL string `json:"html_url"`

	// HTMLContent is the extracted full text. Empty when the HTML
	// version is unavailable; analysis falls back to the abstract.
	HTMLContent string `json:"html_content"`

	// Preview is the bounded preview used by Stage 1.
	Preview string `json:"preview_text"`

	// Stage 1 outputs.
	IsRelevant        Relevance `json:"is_relevant"`
	RelevanceScore    float64   `json:"relevance_score"`
	ExtractedKeywords []string  `json:"extracted_keywords"`
	OneLineSummary    string    `json:"one_line_summary"`

	// Stage 2 outputs. DetailedSummary empty and QAEntries nil until
	// Deep-Analysis completes in full.
	DetailedSummary string    `json:"detailed_summary"`
	QAEntries       []QAEntry `json:"qa_pairs"`

	// User state.
	Hidden  bool `json:"is_hidden"`
	Starred bool `json:"is_starred"`

	// PublishedDate is the arXiv submission date string.
	PublishedDate string `json:"published_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasDeepAnalysis reports whether Stage 2 produced a detailed summary.
func (p *PaperRecord) HasDeepAnalysis() bool {
	return p.DetailedSummary != ""
}

// Content returns the text used as model context: the full text when
// available, otherwise the abstract.
func (p *PaperRecord) Content() string {
	if p.HTMLContent != "" {
		return p.HTMLContent
	}
	return p.Abstract
}

// ThreadTurn is one (question, answer) pair collected from a
// conversation thread walk, oldest first.
type ThreadTurn struct {
	Question string
	Answer   string
}

// Thread walks parent links from the entry at index parentID back to the
// thread root and returns the turns oldest-first. Thinking traces are
// deliberately excluded so follow-up prompts keep a stable prefix.
//
// Only strictly decreasing parent indices are followed: entries are
// append-only, so a legal parent always precedes its child. This makes
// the walk terminate even on corrupt parent data.
func (p *PaperRecord) Thread(parentID int) []ThreadTurn {
	if parentID < 0 || parentID >= len(p.QAEntries) {
		return nil
	}

	var turns []ThreadTurn
	id := parentID
	for {
		entry := p.QAEntries[id]
		turns = append([]ThreadTurn{{Question: entry.Question, Answer: entry.Answer}}, turns...)

		if entry.ParentID == nil {
			break
		}
		next := *entry.ParentID
		if next < 0 || next >= id {
			break
		}
		id = next
	}
	return turns
}
