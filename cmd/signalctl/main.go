package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"otc-signal-bot/config"
	"otc-signal-bot/internal/app"
	"otc-signal-bot/internal/logging"
)

// cli holds the state shared by the subcommands
type cli struct {
	configFile string
	envFile    string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "signalctl",
		Short:         "Inspect and exercise the OTC signal pipeline",
		Long:          `signalctl runs the analysis pipeline locally, prints generated signals and issues API tokens.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "config.json", "Configuration file (optional)")
	root.PersistentFlags().StringVar(&c.envFile, "env", ".env", "Environment file (optional)")

	root.AddCommand(
		newPairsCmd(c),
		newAnalyzeCmd(c),
		newGenerateCmd(c),
		newTokenCmd(c),
		newConfigCmd(c),
	)
	return root
}

func (c *cli) load() error {
	if c.envFile != "" {
		_ = godotenv.Load(c.envFile)
	}
	cfg, err := config.LoadFile(c.configFile)
	if err != nil {
		return err
	}
	c.cfg = cfg

	// keep the command output readable
	logCfg := cfg.LoggingConfig
	logCfg.Output = "stderr"
	logCfg.JSONFormat = false
	if logCfg.Level == "" || logCfg.Level == "INFO" {
		logCfg.Level = "WARN"
	}
	logging.SetDefault(app.NewLogger(logCfg, "signalctl"))
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
