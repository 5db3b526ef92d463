package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/arconyx/fuc/internal/auth"
	"github.com/arconyx/fuc/internal/display"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize fuc against Gmail",
	Long: `Run the OAuth consent flow and store the resulting token in the
fuc database. Requires a Google credentials.json (FUC_CREDENTIALS).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := auth.Authorize(ctx, cfg.Credentials, store, os.Stdin, cmd.OutOrStdout()); err != nil {
			return err
		}
		display.SuccessMsg("Authorized. Token stored in %s", store.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
}
