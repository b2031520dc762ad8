// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [arxiv-ids...]",
	Short: "Fetch papers and run them through the analysis pipeline",
	Long: `Fetch retrieves papers from arXiv and runs them through the two-stage
analysis pipeline. With no arguments it queries every configured category
for the configured submitted-date window, skipping papers already stored.
With arguments it fetches the named papers directly.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Bool("no-analyze", false, "fetch and store records without running the pipeline")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	ctx := cmd.Context()
	noAnalyze, _ := cmd.Flags().GetBool("no-analyze")

	records, err := fetchRecords(cmd, a, args)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no new papers")
		return nil
	}

	// New records are persisted before analysis so a pipeline failure
	// never loses fetched metadata.
	for _, rec := range records {
		if err := a.store.Save(rec); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stdout, "stored %d new paper(s)\n", len(records))

	if noAnalyze {
		return nil
	}

	a.pipe.Run(ctx, records, a.cfg, false)
	return reportResults(records, a)
}

// fetchRecords retrieves either the window of new papers or the papers
// named on the command line, skipping ones already stored.
func fetchRecords(cmd *cobra.Command, a *app, args []string) ([]*types.PaperRecord, error) {
	ctx := cmd.Context()

	if len(args) == 0 {
		return a.fetcher.FetchWindow(ctx, a.cfg, a.store.Exists, os.Stdout)
	}

	var records []*types.PaperRecord
	for _, id := range args {
		if a.store.Exists(id) {
			fmt.Fprintf(os.Stdout, "  already stored %s\n", id)
			continue
		}
		rec, err := a.fetcher.FetchByID(ctx, id)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stdout, "  fetched %s - %s\n", rec.ID, rec.Title)
		records = append(records, rec)
	}
	return records, nil
}

// reportResults prints a one-line outcome per analyzed record.
func reportResults(records []*types.PaperRecord, a *app) error {
	for _, rec := range records {
		switch {
		case rec.IsRelevant == types.Relevant && rec.HasDeepAnalysis():
			fmt.Fprintf(os.Stdout, "analyzed      %s (%.1f) %s\n", rec.ID, rec.RelevanceScore, rec.OneLineSummary)
		case rec.IsRelevant == types.Relevant:
			fmt.Fprintf(os.Stdout, "relevant      %s (%.1f) below threshold %.1f\n", rec.ID, rec.RelevanceScore, a.cfg.MinScoreForStage2)
		case rec.IsRelevant == types.NotRelevant:
			fmt.Fprintf(os.Stdout, "not relevant  %s (%.1f)\n", rec.ID, rec.RelevanceScore)
		default:
			fmt.Fprintf(os.Stdout, "pending       %s (filtering did not complete)\n", rec.ID)
		}
	}
	return nil
}
