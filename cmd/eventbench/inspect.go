package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Abraxas-365/eventcraft/benchx"
	"github.com/Abraxas-365/eventcraft/eventx"
	"github.com/Abraxas-365/eventcraft/fmtx"
)

type holderRow struct {
	Event       string `fmtx:"event"`
	Parent      string `fmtx:"parent"`
	Callbacks   int    `fmtx:"callbacks"`
	Cancellable bool   `fmtx:"cancellable"`
	Baked       bool   `fmtx:"baked"`
}

func (a *app) inspectCmd() *cobra.Command {
	var (
		asJSON  bool
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the holders of the benchmark runtime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.benchRuntime(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON || outPath != "" {
				data, err := rt.ToJSON(nil)
				if err != nil {
					return err
				}
				if outPath != "" {
					return a.export(cmd.Context(), outPath, data)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			infos, err := rt.Snapshot(nil)
			if err != nil {
				return err
			}
			rows := make([]holderRow, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, holderRow{
					Event:       info.Event,
					Parent:      info.Parent,
					Callbacks:   len(info.Callbacks),
					Cancellable: info.Cancellable,
					Baked:       info.Baked,
				})
			}
			fmt.Fprintln(out, fmtx.TableWithOptions(rows, fmtx.TableOptions{
				MaxColumnWidth: 60,
				UseColors:      a.colored(out),
			}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print holders as JSON")
	cmd.Flags().StringVar(&outPath, "out", "", "write the JSON snapshot to a file or s3://bucket/key instead")
	return cmd
}

// benchRuntime returns a warmed-up runtime with the benchmark handlers.
func (a *app) benchRuntime(ctx context.Context, extra ...eventx.RuntimeOption) (*eventx.Runtime, error) {
	opts := benchx.DefaultOptions()
	opts.Times = 1
	b, err := benchx.New(ctx, opts, a.runtimeOptions(extra...)...)
	if err != nil {
		return nil, err
	}
	return b.Runtime(), nil
}
