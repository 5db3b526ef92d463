package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arconyx/fuc/internal/db"
	"github.com/arconyx/fuc/internal/display"
)

type statusOutput struct {
	Works     int               `json:"works"`
	Updates   int               `json:"updates"`
	Processed int               `json:"processed_emails"`
	Abandoned int               `json:"abandoned_emails"`
	LastWalk  string            `json:"last_walk,omitempty"`
	Recent    []db.RecentUpdate `json:"recent,omitempty"`
}

var statusLimit int

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st"},
	Short:   "Show ingestion state and recent updates",
	RunE: func(cmd *cobra.Command, args []string) error {
		processed, abandoned := store.EmailCounts()
		recent, err := store.RecentUpdates(statusLimit)
		if err != nil {
			return err
		}
		lastWalk, _ := store.GetState("last_walk")

		out := statusOutput{
			Works:     store.WorkCount(),
			Updates:   store.UpdateCount(),
			Processed: processed,
			Abandoned: abandoned,
			LastWalk:  lastWalk,
			Recent:    recent,
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		display.Header("Fuc Status")
		fmt.Println()
		fmt.Printf("  Works:     %4d\n", out.Works)
		fmt.Printf("  Updates:   %4d\n", out.Updates)
		fmt.Printf("  Processed: %4d emails", out.Processed)
		if out.Abandoned > 0 {
			fmt.Printf("  %s", display.ErrStyle.Render(fmt.Sprintf("(%d abandoned)", out.Abandoned)))
		}
		fmt.Println()
		if out.LastWalk != "" {
			fmt.Printf("  %s\n", display.Dim.Render("last walk: "+out.LastWalk))
		}

		if len(recent) > 0 {
			fmt.Println()
			fmt.Println("  Recent updates")
			for _, r := range recent {
				kind := "work"
				if r.ChapterID != 0 {
					kind = "chapter"
				}
				fmt.Printf("    %-7s %s  %s\n",
					display.Dim.Render(kind),
					display.Truncate(r.WorkTitle, 40),
					display.Dim.Render(display.TimeAgoMillis(r.ReceivedAt)),
				)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of recent updates to show")
	rootCmd.AddCommand(statusCmd)
}
