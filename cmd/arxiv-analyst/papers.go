// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-analyst/pkg/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored papers, most recently updated first",
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <arxiv-id>",
	Short: "Print everything stored for one paper",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var hideCmd = &cobra.Command{
	Use:   "hide <arxiv-id>",
	Short: "Hide a paper from listings",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setFlag(cmd, args[0], "hidden", true) },
}

var unhideCmd = &cobra.Command{
	Use:   "unhide <arxiv-id>",
	Short: "Unhide a paper",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setFlag(cmd, args[0], "hidden", false) },
}

var starCmd = &cobra.Command{
	Use:   "star <arxiv-id>",
	Short: "Star a paper",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setFlag(cmd, args[0], "starred", true) },
}

var unstarCmd = &cobra.Command{
	Use:   "unstar <arxiv-id>",
	Short: "Unstar a paper",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setFlag(cmd, args[0], "starred", false) },
}

func init() {
	listCmd.Flags().Int("skip", 0, "number of records to skip")
	listCmd.Flags().Int("limit", 50, "maximum number of records to list (0 for all)")
	listCmd.Flags().Bool("all", false, "include hidden papers")
	listCmd.Flags().Bool("starred", false, "only starred papers")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(hideCmd)
	rootCmd.AddCommand(unhideCmd)
	rootCmd.AddCommand(starCmd)
	rootCmd.AddCommand(unstarCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}

	skip, _ := cmd.Flags().GetInt("skip")
	limit, _ := cmd.Flags().GetInt("limit")
	all, _ := cmd.Flags().GetBool("all")
	starredOnly, _ := cmd.Flags().GetBool("starred")

	records, err := a.store.List(skip, limit)
	if err != nil {
		return err
	}

	shown := 0
	for _, rec := range records {
		if rec.Hidden && !all {
			continue
		}
		if starredOnly && !rec.Starred {
			continue
		}
		fmt.Fprintln(os.Stdout, listLine(rec))
		shown++
	}
	if shown == 0 {
		fmt.Fprintln(os.Stdout, "no papers")
	}
	return nil
}

// listLine formats one record as a single listing row.
func listLine(rec *types.PaperRecord) string {
	var marks []string
	if rec.Starred {
		marks = append(marks, "*")
	}
	if rec.Hidden {
		marks = append(marks, "hidden")
	}
	mark := ""
	if len(marks) > 0 {
		mark = " [" + strings.Join(marks, ",") + "]"
	}

	switch rec.IsRelevant {
	case types.Relevant:
		return fmt.Sprintf("%-14s %4.1f%s  %s", rec.ID, rec.RelevanceScore, mark, rec.Title)
	case types.NotRelevant:
		return fmt.Sprintf("%-14s  no%s  %s", rec.ID, mark, rec.Title)
	default:
		return fmt.Sprintf("%-14s   ?%s  %s", rec.ID, mark, rec.Title)
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}

	rec, err := a.store.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s\n%s\n\n", rec.Title, strings.Join(rec.Authors, ", "))
	fmt.Fprintf(os.Stdout, "id:        %s\n", rec.ID)
	fmt.Fprintf(os.Stdout, "url:       %s\n", rec.URL)
	fmt.Fprintf(os.Stdout, "published: %s\n", rec.PublishedDate)
	fmt.Fprintf(os.Stdout, "relevance: %s (%.1f)\n", relevanceLabel(rec.IsRelevant), rec.RelevanceScore)
	if len(rec.ExtractedKeywords) > 0 {
		fmt.Fprintf(os.Stdout, "keywords:  %s\n", strings.Join(rec.ExtractedKeywords, ", "))
	}
	if rec.OneLineSummary != "" {
		fmt.Fprintf(os.Stdout, "\n%s\n", rec.OneLineSummary)
	}
	if rec.DetailedSummary != "" {
		fmt.Fprintf(os.Stdout, "\n--- detailed summary ---\n%s\n", rec.DetailedSummary)
	}

	for i, qa := range rec.QAEntries {
		fmt.Fprintf(os.Stdout, "\n--- exchange %d", i)
		if qa.ParentID != nil {
			fmt.Fprintf(os.Stdout, " (follow-up to %d)", *qa.ParentID)
		}
		if qa.IsReasoning {
			fmt.Fprint(os.Stdout, " (reasoning)")
		}
		fmt.Fprintf(os.Stdout, " ---\nQ: %s\nA: %s\n", qa.Question, qa.Answer)
	}
	return nil
}

func relevanceLabel(r types.Relevance) string {
	switch r {
	case types.Relevant:
		return "relevant"
	case types.NotRelevant:
		return "not relevant"
	default:
		return "awaiting analysis"
	}
}

func setFlag(cmd *cobra.Command, id, field string, value bool) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}

	rec, err := a.store.Load(id)
	if err != nil {
		return err
	}

	switch field {
	case "hidden":
		rec.Hidden = value
	case "starred":
		rec.Starred = value
	}

	if err := a.store.Save(rec); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s %s=%v\n", id, field, value)
	return nil
}
