// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index maintains a SQLite full-text search index over paper
// records. The JSON record store stays the source of truth; the index
// is derived state and can be rebuilt from it at any time.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

const dbFile = "search.db"

// defaultMaxResults bounds a search when the caller passes no limit.
const defaultMaxResults = 20

// Index is the SQLite-backed search index.
type Index struct {
	db *sql.DB
}

// Open opens or creates the search index at dir/search.db, creating the
// schema if needed.
func Open(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return idx, nil
}

// Close releases the database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

func (x *Index) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT,
			one_line_summary TEXT,
			relevance_score REAL,
			body TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			paper_id TEXT PRIMARY KEY,
			record_updated_at TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := x.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := x.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='papers_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE papers_fts USING fts5(title, body, content=papers, content_rowid=rowid)`,
			`CREATE TRIGGER papers_ai AFTER INSERT ON papers BEGIN
				INSERT INTO papers_fts(rowid, title, body) VALUES (new.rowid, new.title, new.body);
			END`,
			`CREATE TRIGGER papers_ad AFTER DELETE ON papers BEGIN
				INSERT INTO papers_fts(papers_fts, rowid, title, body) VALUES('delete', old.rowid, old.title, old.body);
			END`,
			`CREATE TRIGGER papers_au AFTER UPDATE ON papers BEGIN
				INSERT INTO papers_fts(papers_fts, rowid, title, body) VALUES('delete', old.rowid, old.title, old.body);
				INSERT INTO papers_fts(rowid, title, body) VALUES (new.rowid, new.title, new.body);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := x.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// ReindexSummary holds counts from one reindex run.
type ReindexSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of records processed.
func (s ReindexSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Reindex brings the index up to date with the given records. A record
// whose updated_at matches the stored indexing status is skipped, so
// repeat runs only pay for changed records.
func (x *Index) Reindex(ctx context.Context, records []*types.PaperRecord, w io.Writer) (ReindexSummary, error) {
	var summary ReindexSummary

	for _, rec := range records {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		stamp := rec.UpdatedAt.UTC().Format(time.RFC3339Nano)

		var storedStamp string
		err := x.db.QueryRowContext(ctx,
			`SELECT record_updated_at FROM indexing_status WHERE paper_id = ?`, rec.ID,
		).Scan(&storedStamp)

		if err == nil && storedStamp == stamp {
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		if err := x.indexRecord(ctx, rec, stamp); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rec.ID, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s\n", rec.ID)
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexed %s\n", rec.ID)
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)
	return summary, nil
}

func (x *Index) indexRecord(ctx context.Context, rec *types.PaperRecord, stamp string) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO papers (id, title, one_line_summary, relevance_score, body)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, one_line_summary=excluded.one_line_summary,
			relevance_score=excluded.relevance_score, body=excluded.body`,
		rec.ID, rec.Title, rec.OneLineSummary, rec.RelevanceScore, searchBody(rec),
	)
	if err != nil {
		return fmt.Errorf("upserting paper: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO indexing_status (paper_id, record_updated_at) VALUES (?, ?)
		 ON CONFLICT(paper_id) DO UPDATE SET record_updated_at=excluded.record_updated_at`,
		rec.ID, stamp,
	)
	if err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}

	return tx.Commit()
}

// searchBody flattens the searchable text of a record: abstract,
// extracted keywords, summaries, and every question and answer.
func searchBody(rec *types.PaperRecord) string {
	var b strings.Builder
	b.WriteString(rec.Abstract)
	b.WriteString("\n")
	b.WriteString(strings.Join(rec.ExtractedKeywords, " "))
	b.WriteString("\n")
	b.WriteString(rec.OneLineSummary)
	b.WriteString("\n")
	b.WriteString(rec.DetailedSummary)
	for _, qa := range rec.QAEntries {
		b.WriteString("\n")
		b.WriteString(qa.Question)
		b.WriteString("\n")
		b.WriteString(qa.Answer)
	}
	return b.String()
}

// Result is one search hit.
type Result struct {
	ID             string
	Title          string
	OneLineSummary string
	RelevanceScore float64
	Snippet        string
}

// Search runs an FTS5 query and returns hits ranked by relevance, with
// a highlighted snippet from the matched body text. limit <= 0 uses the
// package default.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = defaultMaxResults
	}

	rows, err := x.db.QueryContext(ctx,
		`SELECT p.id, p.title, p.one_line_summary, p.relevance_score,
			snippet(papers_fts, 1, '[', ']', '...', 12)
		FROM papers_fts
		JOIN papers p ON p.rowid = papers_fts.rowid
		WHERE papers_fts MATCH ?
		ORDER BY papers_fts.rank
		LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying search index: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r       Result
			summary sql.NullString
			snippet sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Title, &summary, &r.RelevanceScore, &snippet); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if summary.Valid {
			r.OneLineSummary = summary.String
		}
		if snippet.Valid {
			r.Snippet = snippet.String
		}
		results = append(results, r)
	}

	return results, rows.Err()
}
