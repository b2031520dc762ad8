// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously fetch and analyze new papers",
	Long: `Watch runs the fetch-and-analyze cycle on the configured interval until
interrupted. The configuration is reloaded at the start of every cycle so
edits take effect without a restart.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for cycle := 1; ; cycle++ {
		fmt.Fprintf(os.Stdout, "--- cycle %d at %s ---\n", cycle, time.Now().Format(time.RFC3339))

		if err := watchCycle(ctx, cmd, a); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			// A failed cycle is logged and the next one still runs.
			a.log.Warn("watch cycle failed", zap.Int("cycle", cycle), zap.Error(err))
		}

		select {
		case <-ctx.Done():
		case <-time.After(a.cfg.FetchInterval):
			continue
		}
		break
	}

	fmt.Fprintln(os.Stdout, "watch stopped")
	return nil
}

func watchCycle(ctx context.Context, cmd *cobra.Command, a *app) error {
	// Pick up config edits made since the last cycle.
	cfg, err := loadConfigForApp(a)
	if err != nil {
		return err
	}
	a.cfg = cfg

	records, err := a.fetcher.FetchWindow(ctx, a.cfg, a.store.Exists, os.Stdout)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no new papers")
		return nil
	}

	for _, rec := range records {
		if err := a.store.Save(rec); err != nil {
			return err
		}
	}

	a.pipe.Run(ctx, records, a.cfg, false)
	return reportResults(records, a)
}
