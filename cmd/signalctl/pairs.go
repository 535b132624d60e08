package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"otc-signal-bot/internal/app"
	"otc-signal-bot/internal/market"
)

func newPairsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "pairs",
		Short: "List the configured currency pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := app.MarketPairs(c.cfg.MarketConfig)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range pairs {
				kind := "regular"
				if market.IsOTC(p.Symbol) {
					kind = "otc"
				}
				fmt.Fprintf(out, "%-12s %-8s base=%g\n", p.Symbol, kind, p.Base)
			}
			return nil
		},
	}
}
