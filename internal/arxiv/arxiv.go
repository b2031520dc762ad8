// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package arxiv fetches paper metadata and best-effort full text from
// the arXiv API. It is the system's paper source service: query by
// category and submitted-date window, fetch a single paper by id, and
// download the HTML full text when available.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/arxiv-analyst/internal/httputil"
	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

// API endpoints. Declared as vars so tests can substitute an httptest
// server.
var (
	apiBase  = "https://export.arxiv.org/api/query"
	htmlBase = "https://arxiv.org/html/"
	absBase  = "https://arxiv.org/abs/"
)

// interCategoryDelay spaces window queries across categories; arXiv
// asks for at most one request every three seconds. Tests override it.
var interCategoryDelay = 3 * time.Second

// previewLimit caps the derived Stage-1 preview.
const previewLimit = 2000

// Fetcher queries the arXiv API.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	return httputil.DoWithRetry(ctx, f.client(), req, 0)
}

// FetchWindow queries each configured category for papers submitted
// within the config's date window and returns new records. skip filters
// out papers already known (on disk or seen earlier in this session);
// it may be nil. Individual category failures are reported to w and
// skipped so one rate-limited category does not lose the rest.
func (f *Fetcher) FetchWindow(ctx context.Context, cfg types.Config, skip func(id string) bool, w io.Writer) ([]*types.PaperRecord, error) {
	start := strings.ReplaceAll(cfg.StartDate, "-", "")
	end := strings.ReplaceAll(cfg.EndDate, "-", "")
	if end == "" {
		end = start
	}
	if start == "" {
		return nil, fmt.Errorf("fetch window: start date not configured")
	}

	seen := make(map[string]bool)
	var records []*types.PaperRecord

	for i, category := range cfg.Categories {
		if i > 0 && interCategoryDelay > 0 {
			select {
			case <-ctx.Done():
				return records, ctx.Err()
			case <-time.After(interCategoryDelay):
			}
		}

		fmt.Fprintf(w, "fetching %s [%s → %s]\n", category, start, end)

		feed, err := f.queryWindow(ctx, category, start, end, cfg.MaxPapersPerFetch)
		if err != nil {
			fmt.Fprintf(w, "warning: category %s failed: %v\n", category, err)
			continue
		}

		for _, entry := range feed.Entries {
			id := entryID(entry.ID)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			if skip != nil && skip(id) {
				continue
			}

			rec := f.record(ctx, id, entry)
			records = append(records, rec)
			fmt.Fprintf(w, "  new %s - %s\n", id, truncate(rec.Title, 60))
		}
	}

	return records, nil
}

func (f *Fetcher) queryWindow(ctx context.Context, category, start, end string, maxResults int) (*atomFeed, error) {
	if maxResults <= 0 {
		maxResults = 50
	}

	q := url.Values{}
	q.Set("search_query", fmt.Sprintf("cat:%s AND submittedDate:[%s TO %s]", category, start, end))
	q.Set("start", "0")
	q.Set("max_results", fmt.Sprintf("%d", maxResults))
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "ascending")

	resp, err := f.get(ctx, apiBase+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}
	return &feed, nil
}

// FetchByID retrieves a single paper's metadata and full text.
func (f *Fetcher) FetchByID(ctx context.Context, id string) (*types.PaperRecord, error) {
	resp, err := f.get(ctx, apiBase+"?id_list="+url.QueryEscape(id))
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}
	if len(feed.Entries) == 0 {
		return nil, fmt.Errorf("paper %s not found on arXiv", id)
	}

	return f.record(ctx, id, feed.Entries[0]), nil
}

// record builds a PaperRecord from an Atom entry, attempting the HTML
// full-text download. Full text is best-effort: on failure the record
// carries only the abstract and analysis falls back accordingly.
func (f *Fetcher) record(ctx context.Context, id string, entry atomEntry) *types.PaperRecord {
	abstract := strings.TrimSpace(entry.Summary)
	html := f.fetchHTML(ctx, id)

	rec := &types.PaperRecord{
		ID:            id,
		Title:         strings.Join(strings.Fields(entry.Title), " "),
		Abstract:      abstract,
		URL:           absBase + id,
		HTMLURL:       htmlBase + id,
		HTMLContent:   html,
		Preview:       derivePreview(html, abstract),
		IsRelevant:    types.RelevanceUnknown,
		PublishedDate: entry.Published,
	}
	for _, a := range entry.Authors {
		rec.Authors = append(rec.Authors, strings.TrimSpace(a.Name))
	}
	return rec
}

// fetchHTML downloads the HTML rendition and strips it to plain text.
// Returns "" when the rendition is unavailable.
func (f *Fetcher) fetchHTML(ctx context.Context, id string) string {
	resp, err := f.get(ctx, htmlBase+id)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return htmlText(string(data))
}

// derivePreview builds the bounded Stage-1 preview: the abstract plus
// the opening of the full text, capped at previewLimit.
func derivePreview(html, abstract string) string {
	preview := abstract
	if html != "" {
		body := html
		if len(body) > 1500 {
			body = body[:1500]
		}
		preview = abstract + "\n\n" + body
	}
	if len(preview) > previewLimit {
		preview = preview[:previewLimit]
	}
	return preview
}

// arXiv Atom feed XML structures.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

// entryID pulls the arXiv id from the entry's <id> URL, keeping any
// version suffix (e.g. "http://arxiv.org/abs/2301.07041v1" →
// "2301.07041v1").
func entryID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return idURL[idx+len(prefix):]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
