// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Analyze relevant papers that missed deep analysis",
	Long: `Sweep finds records that passed filtering and the score threshold but
have no deep analysis (an earlier run failed, or the threshold was
lowered) and runs Deep-Analysis on them.

With --refilter it also re-checks already-relevant records against the
current negative keywords and demotes matches.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().Bool("refilter", false, "also demote relevant records matching current negative keywords")

	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	ctx := cmd.Context()

	if refilter, _ := cmd.Flags().GetBool("refilter"); refilter {
		demoted, err := a.pipe.Refilter(ctx, a.cfg, a.cfg.NegativeKeywords)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "demoted %d record(s) by negative keyword\n", demoted)
	}

	swept, err := a.pipe.SweepPending(ctx, a.cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "swept %d record(s) through deep analysis\n", swept)
	return nil
}
