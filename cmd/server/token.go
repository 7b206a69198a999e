package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livecode/internal/api/middleware"
)

func newTokenCmd(root *rootOptions) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user>",
		Short: "Issue a bearer token for a user",
		Long: `Token signs a bearer token with the configured auth secret. Clients send it
as "Authorization: Bearer <token>" or, for the preview frame and the event
stream, as the access_token query parameter.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return errors.New("auth secret is not configured (set LIVECODE_AUTH_SECRET)")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TTL
			}
			token, err := middleware.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.Issuer, ttl).Issue(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.ttl)")
	return cmd
}
