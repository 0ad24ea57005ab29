package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Abraxas-365/eventcraft/benchx"
	"github.com/Abraxas-365/eventcraft/fmtx"
	"github.com/Abraxas-365/eventcraft/storex"
)

type historyRow struct {
	Recorded  string `fmtx:"recorded"`
	Mode      string `fmtx:"mode"`
	Invoker   string `fmtx:"invoker"`
	Times     int    `fmtx:"dispatches"`
	Workers   int    `fmtx:"workers"`
	Cancelled bool   `fmtx:"cancelled"`
	Took      string `fmtx:"took"`
}

func (a *app) saveResults(ctx context.Context, store string, b *benchx.Bench, results []benchx.Result) error {
	repo, err := storex.Open[benchx.Record](ctx, store, benchx.RecordsName)
	if err != nil {
		return err
	}
	defer repo.Close(ctx)

	records := b.Records(results, time.Now())
	if err := benchx.Save(ctx, repo, records); err != nil {
		return err
	}
	a.logger.Info("saved %d runs", len(records))
	return nil
}

func (a *app) historyCmd() *cobra.Command {
	var (
		store  string
		asJSON bool
		opts   = storex.DefaultPaginationOptions()
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded benchmark runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if store == "" {
				store = a.cfg.Get("store").AsString()
			}
			if store == "" {
				return ErrorRegistry.New(ErrMissingStore)
			}

			ctx := cmd.Context()
			repo, err := storex.Open[benchx.Record](ctx, store, benchx.RecordsName)
			if err != nil {
				return err
			}
			defer repo.Close(ctx)

			opts.OrderBy = "recorded_at"
			opts.Desc = true
			page, err := repo.Paginate(ctx, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(page)
			}
			rows := make([]historyRow, len(page.Data))
			for i, r := range page.Data {
				rows[i] = historyRow{
					Recorded:  r.RecordedAt.Format(time.DateTime),
					Mode:      r.Mode,
					Invoker:   r.Invoker,
					Times:     r.Times,
					Workers:   r.Workers,
					Cancelled: r.Cancelled,
					Took:      fmtx.FormatDuration(r.Took()),
				}
			}
			fmt.Fprintln(out, fmtx.TableWithOptions(rows, fmtx.TableOptions{UseColors: a.colored(out)}))
			fmt.Fprintf(out, "page %d of %d, %d runs\n", page.Page.Number, page.Page.Pages, page.Page.Total)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&store, "store", "", "postgres:// or mongodb:// store, EVENTBENCH_STORE by default")
	f.IntVar(&opts.Page, "page", opts.Page, "page number")
	f.IntVar(&opts.PageSize, "page-size", opts.PageSize, "runs per page")
	f.BoolVar(&asJSON, "json", false, "print the page as JSON")
	return cmd
}
