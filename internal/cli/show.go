package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockcast/internal/app"
)

var (
	showSymbol string
	showLimit  int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent comparisons for a symbol",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showSymbol == "" {
			return fmt.Errorf("--symbol must be provided")
		}
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Symbol: showSymbol,
			Limit:  showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showSymbol, "symbol", "", "Ticker symbol to display")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of comparisons to display")
}
