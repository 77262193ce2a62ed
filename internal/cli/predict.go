package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockcast/internal/app"
)

var (
	predictSymbol  string
	predictHorizon int
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Generate and persist a forecast for a symbol",
	RunE: func(cmd *cobra.Command, args []string) error {
		if predictSymbol == "" {
			return fmt.Errorf("--symbol must be provided")
		}

		opts := app.PredictOptions{
			Symbol:  predictSymbol,
			Horizon: predictHorizon,
		}

		return getApp().Predict(cmd.Context(), opts)
	},
}

func init() {
	predictCmd.Flags().StringVar(&predictSymbol, "symbol", "", "Ticker symbol to forecast")
	predictCmd.Flags().IntVar(&predictHorizon, "days", 0, "Forecast horizon in days (defaults to config)")
}
