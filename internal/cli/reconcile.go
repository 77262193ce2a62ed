package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockcast/internal/app"
	"stockcast/internal/dates"
)

var (
	reconcileAsOf string
	reconcileLoop bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile due forecasts against realized closes",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ReconcileOptions{
			Loop: reconcileLoop,
		}

		if reconcileAsOf != "" {
			if reconcileLoop {
				return fmt.Errorf("--as-of and --loop are mutually exclusive")
			}
			asOf, err := dates.Parse(reconcileAsOf)
			if err != nil {
				return fmt.Errorf("invalid --as-of value: %w", err)
			}
			opts.AsOf = &asOf
		}

		return getApp().Reconcile(cmd.Context(), opts)
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileAsOf, "as-of", "", "Reconcile as of this date (YYYY-MM-DD) instead of today")
	reconcileCmd.Flags().BoolVar(&reconcileLoop, "loop", false, "Keep running on the configured interval")
}
