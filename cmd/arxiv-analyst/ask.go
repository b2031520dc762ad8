// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-analyst/internal/qa"
)

var askCmd = &cobra.Command{
	Use:   "ask <arxiv-id> <question...>",
	Short: "Ask a question about an analyzed paper",
	Long: `Ask answers a free-form question about a stored paper, streaming the
answer as it is generated.

Prefix the question with "think:" to route it to the reasoning model; the
reasoning trace is printed to stderr. Reference other papers by bracketed
arXiv id (e.g. "compare with [2401.12345]") to pull them into context;
referenced papers are fetched and analyzed on demand. Use --parent to
thread the question onto an earlier exchange (see the show subcommand for
exchange indices).`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().Int("parent", -1, "index of the parent exchange for a follow-up question")
	askCmd.Flags().Bool("no-stream", false, "wait for the full answer instead of streaming")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	ctx := cmd.Context()
	id := args[0]
	question := strings.Join(args[1:], " ")

	parent, _ := cmd.Flags().GetInt("parent")
	var parentID *int
	if parent >= 0 {
		parentID = &parent
	}

	rec, err := a.store.Load(id)
	if err != nil {
		return err
	}

	if noStream, _ := cmd.Flags().GetBool("no-stream"); noStream {
		answer, err := a.engine.Ask(ctx, rec, question, a.cfg, parentID)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, answer)
		return nil
	}

	inThinking := false
	for ev := range a.engine.AskStream(ctx, rec, question, a.cfg, parentID) {
		switch ev.Kind {
		case qa.EventThinking:
			inThinking = true
			fmt.Fprint(os.Stderr, ev.Text)
		case qa.EventContent:
			if inThinking {
				inThinking = false
				fmt.Fprintln(os.Stderr)
			}
			fmt.Fprint(os.Stdout, ev.Text)
		case qa.EventError:
			if ev.Transient {
				fmt.Fprintf(os.Stderr, "\n%s\n", ev.Text)
				continue
			}
			fmt.Fprintln(os.Stdout)
			return ev.Err
		case qa.EventDone:
			fmt.Fprintln(os.Stdout)
		}
	}
	return nil
}
