package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Abraxas-365/eventcraft/docx"
)

func (a *app) routesCmd() *cobra.Command {
	var baseURL, prefix, secret string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print a curl command for every inspector route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := a.inspector(cmd, prefix, secret)
			if err != nil {
				return err
			}

			curls := docx.NewCurlGenerator(baseURL).GenerateAllCurls(srv.Docs())
			out := cmd.OutOrStdout()
			for _, route := range slices.Sorted(maps.Keys(curls)) {
				fmt.Fprintf(out, "# %s\n%s\n\n", route, curls[route])
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&baseURL, "base-url", "http://localhost:8080", "server URL used in the commands")
	f.StringVar(&prefix, "prefix", "", "route prefix, EVENTBENCH_SERVE_PREFIX or /events by default")
	f.StringVar(&secret, "secret", "", "document bearer auth as served with this secret")
	return cmd
}
