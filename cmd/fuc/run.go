package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/arconyx/fuc/internal/auth"
	"github.com/arconyx/fuc/internal/db"
	"github.com/arconyx/fuc/internal/display"
	"github.com/arconyx/fuc/internal/gmail"
	"github.com/arconyx/fuc/internal/maw"
	"github.com/arconyx/fuc/internal/ratelimit"
)

var runOnce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest subscription emails from Gmail",
	Long: `Run the ingestion pipeline: walk the configured label's messages,
parse each notification email, and record its updates. Repeats on the
configured poll interval unless --once is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		svc, err := auth.Service(ctx, cfg.Credentials, store)
		if err != nil {
			return err
		}
		client := gmail.NewClient(svc)
		limiter := ratelimit.NewDefault()

		if err := limiter.Wait(ctx, gmail.CostLabelsList); err != nil {
			return err
		}
		labelID, err := client.LabelID(ctx, cfg.Label)
		if err != nil {
			return err
		}

		api := &maw.APIContext{
			Store:   store,
			Mail:    client,
			Limiter: limiter,
			Label:   labelID,
		}

		for {
			if err := runPass(ctx, api); err != nil {
				return err
			}
			if runOnce {
				return nil
			}
			slog.Info("pass complete, sleeping", "interval", cfg.PollInterval)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.PollInterval):
			}
		}
	},
}

// runPass walks the label once and waits for every spawned worker to
// reach an outcome (or for the coordinator to die on a fatal condition).
func runPass(ctx context.Context, api *maw.APIContext) error {
	m := maw.New(ctx, api, slog.Default())
	walker := maw.NewWalker(api, m, slog.Default())

	if err := walker.Walk(ctx); err != nil {
		m.Die()
		return err
	}

	// Drain: poll until no worker is active.
	for {
		select {
		case <-m.Done():
			return fmt.Errorf("ingestion stopped: credentials rejected by upstream")
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
		status := m.Status()
		if status.Active == 0 {
			m.Die()
			if err := store.SetState("last_walk", db.Now()); err != nil {
				slog.Warn("record last walk", "error", err)
			}
			display.SuccessMsg("Pass done: %d ingested, %d failures", status.Successes, status.Failures)
			return nil
		}
	}
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single pass and exit")
	rootCmd.AddCommand(runCmd)
}
