// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [arxiv-ids...]",
	Short: "Run the analysis pipeline over stored papers",
	Long: `Analyze runs the two-stage pipeline over stored records. With no
arguments it processes every record still awaiting filtering. With
arguments it processes the named records, re-filtering ones whose
relevance is still unknown.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	var records []*types.PaperRecord
	if len(args) > 0 {
		for _, id := range args {
			rec, err := a.store.Load(id)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
	} else {
		all, err := a.store.List(0, 0)
		if err != nil {
			return err
		}
		for _, rec := range all {
			if rec.IsRelevant == types.RelevanceUnknown {
				records = append(records, rec)
			}
		}
	}

	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "nothing to analyze")
		return nil
	}

	a.pipe.Run(cmd.Context(), records, a.cfg, false)
	return reportResults(records, a)
}
