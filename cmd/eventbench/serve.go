package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Abraxas-365/eventcraft/auth"
	"github.com/Abraxas-365/eventcraft/eventx"
	"github.com/Abraxas-365/eventcraft/inspectx"
	"github.com/Abraxas-365/eventcraft/promx"
)

func (a *app) serveCmd() *cobra.Command {
	var addr, prefix, secret string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the inspector for the benchmark runtime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := a.inspector(cmd, prefix, secret)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Get("serve.addr").AsString()
			}

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				a.logger.Info("inspector listening on %s", addr)
				errc <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				a.logger.Info("shutting down inspector")
				return httpSrv.Shutdown(ctx)
			}
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "listen address, EVENTBENCH_SERVE_ADDR or :8080 by default")
	f.StringVar(&prefix, "prefix", "", "route prefix, EVENTBENCH_SERVE_PREFIX or /events by default")
	f.StringVar(&secret, "secret", "", "HS256 secret enabling bearer tokens, EVENTBENCH_SECRET by default")
	return cmd
}

// inspector builds the inspector over a benchmark runtime, resolving unset
// flags from configuration.
func (a *app) inspector(cmd *cobra.Command, prefix, secret string) (*inspectx.Server, error) {
	if prefix == "" {
		prefix = a.cfg.Get("serve.prefix").AsString()
	}
	if secret == "" {
		secret = a.cfg.Get("secret").AsString()
	}

	metrics := promx.New(promx.WithNamespace("eventbench"), promx.WithLogger(a.logger))
	rt, err := a.benchRuntime(cmd.Context(), eventx.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}

	opts := []inspectx.Option{
		inspectx.WithPrefix(prefix),
		inspectx.WithMetrics(metrics),
		inspectx.WithLogger(a.logger),
	}
	if secret != "" {
		opts = append(opts, inspectx.WithTokens(auth.NewTokenService([]byte(secret))))
	} else {
		a.logger.Warn("no secret configured, inspector routes are unauthenticated")
	}
	return inspectx.New(rt, opts...)
}
