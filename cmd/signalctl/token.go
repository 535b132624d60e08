package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"otc-signal-bot/internal/auth"
)

func newTokenCmd(c *cli) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token [client-id]",
		Short: "Issue a bearer token for the read-only API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.cfg.AuthConfig.ToAuthConfig()
			jwtManager, err := auth.NewJWTManager(auth.Config{
				JWTSecret:     a.JWTSecret,
				Issuer:        a.Issuer,
				TokenDuration: a.TokenDuration,
			})
			if err != nil {
				return err
			}
			tok, err := jwtManager.GenerateToken(args[0], role, ttl)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(tok)
		},
	}
	cmd.Flags().StringVar(&role, "role", auth.RoleReader, "Client role: reader or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to auth.token_duration)")
	return cmd
}
