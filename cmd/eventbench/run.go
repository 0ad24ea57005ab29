package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Abraxas-365/eventcraft/benchx"
	"github.com/Abraxas-365/eventcraft/eventx"
	"github.com/Abraxas-365/eventcraft/fmtx"
	"github.com/Abraxas-365/eventcraft/promx"
)

func (a *app) runCmd() *cobra.Command {
	opts := benchx.DefaultOptions()
	var (
		parallel bool
		asJSON   bool
		metrics  bool
		store    string
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch a sample event repeatedly and report timings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if parallel && !cmd.Flags().Changed("workers") {
				opts.Workers = runtime.NumCPU()
			}

			var collector *promx.Collector
			var extra []eventx.RuntimeOption
			if metrics {
				collector = promx.New(promx.WithNamespace("eventbench"), promx.WithLogger(a.logger))
				extra = append(extra, eventx.WithMetrics(collector))
			}

			b, err := benchx.New(cmd.Context(), opts, a.runtimeOptions(extra...)...)
			if err != nil {
				return err
			}
			a.logger.Debug("warm up took %s", fmtx.FormatDuration(b.WarmUp))

			results, err := b.RunAll(cmd.Context())
			if err != nil {
				return err
			}

			if store != "" {
				if err := a.saveResults(cmd.Context(), store, b, results); err != nil {
					return err
				}
			}

			if outPath != "" {
				data, err := json.MarshalIndent(results, "", "  ")
				if err != nil {
					return err
				}
				if err := a.export(cmd.Context(), outPath, data); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			fmt.Fprintln(out, fmtx.TableWithOptions(results, fmtx.TableOptions{UseColors: a.colored(out)}))
			color.New(color.FgGreen).Fprintf(out, "counters ok, warm up %s\n", fmtx.FormatDuration(b.WarmUp))

			if collector != nil {
				families, err := collector.Registry().Gather()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d metric families recorded\n", len(families))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.Times, "times", "n", opts.Times, "dispatches per mode")
	f.StringVar(&opts.Invoker, "invoker", opts.Invoker, "handler invoker: reflect or fast")
	f.BoolVar(&opts.Cancelled, "cancelled", false, "dispatch a pre-cancelled event")
	f.BoolVar(&parallel, "parallel", false, "use one worker per CPU unless --workers is set")
	f.IntVar(&opts.Workers, "workers", opts.Workers, "goroutines dispatching concurrently")
	f.BoolVar(&asJSON, "json", false, "print results as JSON")
	f.BoolVar(&metrics, "metrics", false, "record prometheus metrics during the run")
	f.StringVar(&outPath, "out", "", "also write JSON results to a file or s3://bucket/key")
	f.StringVar(&store, "store", "", "save results to a postgres://, mongodb:// or mem:// store")
	return cmd
}
