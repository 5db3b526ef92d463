package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arconyx/fuc/internal/display"
	"github.com/arconyx/fuc/internal/parser"
)

// parseCmd parses a saved plain-text email body without touching Gmail or
// the database. Debugging aid for grammar changes in the archive's emails.
var parseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Parse a saved email body and print its updates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		updates, err := parser.Parse(string(body))
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(updates)
		}

		for _, u := range updates {
			detail := "sparse"
			if u.Work.Detailed {
				detail = "detailed"
			}
			switch {
			case u.ChapterID != 0:
				fmt.Printf("chapter %d of %q (%s): %s\n", u.ChapterID, u.Work.Title, detail, u.ChapterTitle)
			default:
				fmt.Printf("work %d: %q (%s)\n", u.Work.ID, u.Work.Title, detail)
			}
		}
		display.SuccessMsg("%d update(s)", len(updates))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
