package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"otc-signal-bot/internal/app"
	"otc-signal-bot/internal/signals"
)

func newAnalyzeCmd(c *cli) *cobra.Command {
	var (
		relaxed bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [pair]",
		Short: "Run the full analysis pipeline for one pair",
		Long:  `Analyze runs the multi-timeframe analysis and every filter stage for a pair without persisting anything.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.BuildPipeline(c.cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			cand, err := p.Generator.Analyze(ctx, strings.ToUpper(args[0]), relaxed)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cand)
			}
			printCandidate(cmd, cand)
			return nil
		},
	}
	cmd.Flags().BoolVar(&relaxed, "relaxed", false, "Use the relaxed thresholds applied after the max interval")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	return cmd
}

func printCandidate(cmd *cobra.Command, cand *signals.Candidate) {
	out := cmd.OutOrStdout()
	r := cand.Analysis
	fmt.Fprintf(out, "Pair:       %s\n", cand.Symbol)
	fmt.Fprintf(out, "Direction:  %s (net %.1f, alignment %.0f%%)\n", r.Direction, r.NetScore, r.Alignment*100)
	fmt.Fprintf(out, "Scores:     trend %.1f  momentum %.1f  volatility %.1f  pattern %.1f\n",
		r.Scores.Trend, r.Scores.Momentum, r.Scores.Volatility, r.Scores.Pattern)

	if cand.Stages != nil {
		for _, st := range cand.Stages.Stages {
			mark := "PASS"
			if !st.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(out, "  [%s] %-12s %s\n", mark, st.Name, st.Reason)
		}
		fmt.Fprintf(out, "Stage score: %.1f / %.1f\n", cand.Stages.Score, cand.Stages.Threshold)
	}
	fmt.Fprintf(out, "Quality:    %.1f\n", cand.QualityScore())
	fmt.Fprintf(out, "Probability %.1f%% (%s, %s)\n", cand.Confidence.Probability, cand.Confidence.Grade, cand.Confidence.Level)
	if cand.Accepted() {
		fmt.Fprintln(out, "Result:     ACCEPTED")
	} else {
		fmt.Fprintln(out, "Result:     REJECTED")
	}
}
