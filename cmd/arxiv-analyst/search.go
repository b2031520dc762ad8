// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-analyst/internal/index"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over stored papers",
	Long: `Search runs an FTS5 full-text query over everything stored for each
paper: title, abstract, keywords, summaries, and Q&A exchanges. The
index is brought up to date before the query runs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("max-results", 20, "maximum number of results to return")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	ctx := cmd.Context()
	query := strings.Join(args, " ")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	idx, err := index.Open(a.indexDir())
	if err != nil {
		return err
	}
	defer idx.Close()

	records, err := a.store.List(0, 0)
	if err != nil {
		return err
	}
	if _, err := idx.Reindex(ctx, records, io.Discard); err != nil {
		return err
	}

	results, err := idx.Search(ctx, query, maxResults)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(os.Stdout, "no matches")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(os.Stdout, "%s (%.1f) %s\n", r.ID, r.RelevanceScore, r.Title)
		if r.Snippet != "" {
			fmt.Fprintf(os.Stdout, "    %s\n", r.Snippet)
		}
	}
	return nil
}
