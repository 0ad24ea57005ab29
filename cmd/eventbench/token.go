package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Abraxas-365/eventcraft/auth"
	"github.com/Abraxas-365/eventcraft/errx"
)

var ErrorRegistry = errx.NewRegistry("EVENTBENCH")

var (
	ErrMissingSecret = ErrorRegistry.Register("MISSING_SECRET", errx.TypeValidation, http.StatusBadRequest, "a secret is required, pass --secret or set EVENTBENCH_SECRET")
	ErrMissingStore  = ErrorRegistry.Register("MISSING_STORE", errx.TypeValidation, http.StatusBadRequest, "a store is required, pass --store or set EVENTBENCH_STORE")
)

func (a *app) tokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		admin   bool
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the inspector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = a.cfg.Get("secret").AsString()
			}
			if secret == "" {
				return ErrorRegistry.New(ErrMissingSecret)
			}

			scope := auth.ScopeRead
			if admin {
				scope = auth.ScopeAdmin
			}
			token, err := auth.NewTokenService([]byte(secret), auth.WithTTL(ttl)).GenerateToken(subject, scope)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&secret, "secret", "", "HS256 secret, EVENTBENCH_SECRET by default")
	f.StringVar(&subject, "subject", "eventbench", "token subject")
	f.BoolVar(&admin, "admin", false, "grant the admin scope")
	f.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
