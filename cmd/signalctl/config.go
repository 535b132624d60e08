package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"otc-signal-bot/config"
)

func newConfigCmd(c *cli) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "config [file]",
		Short: "Write a sample configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "config.sample.json"
			if len(args) == 1 {
				target = args[0]
			}
			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("%s already exists (use --force to overwrite)", target)
			}
			if err := config.GenerateSampleConfig(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sample configuration written to %s\n", target)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "force", false, "Overwrite an existing file")
	return cmd
}
