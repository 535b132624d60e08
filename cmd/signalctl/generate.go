package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"otc-signal-bot/internal/app"
	"otc-signal-bot/internal/notification"
	"otc-signal-bot/internal/signals"
)

func newGenerateCmd(c *cli) *cobra.Command {
	var (
		force  bool
		asJSON bool
		save   bool
		notify bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Evaluate every pair and print the best signal",
		Long: `Generate runs one generation round over the configured pairs. With --save the
signal is written to the configured store, with --notify it is sent to the enabled
notification channels.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.BuildPipeline(c.cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			sig, err := p.Generator.Generate(ctx, signals.Request{Force: force})
			if errors.Is(err, signals.ErrNoQualifyingSignal) {
				fmt.Fprintln(cmd.OutOrStdout(), "No pair passed the filters. Try --force for relaxed thresholds.")
				return nil
			}
			if err != nil {
				return err
			}
			sig.Forced = force
			sig.CreatedAt = time.Now().UTC()

			if save {
				store, closeStore, err := app.OpenStore(ctx, c.cfg.DatabaseConfig)
				if err != nil {
					return err
				}
				defer closeStore()
				if err := store.CreateSignal(ctx, sig); err != nil {
					return fmt.Errorf("failed to save signal: %w", err)
				}
			}

			if notify {
				mgr, err := app.NewNotifier(ctx, c.cfg.NotificationConfig)
				if err != nil {
					return err
				}
				if err := mgr.SendSignal(ctx, sig); err != nil {
					return fmt.Errorf("failed to send signal: %w", err)
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sig)
			}
			fmt.Fprintln(cmd.OutOrStdout(), notification.PlainSignal(sig))
			for _, r := range sig.Reasons {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", r)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Use relaxed thresholds")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the signal as JSON")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the signal")
	cmd.Flags().BoolVar(&notify, "notify", false, "Send the signal to the enabled notification channels")
	return cmd
}
