package main

import (
	"context"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Abraxas-365/eventcraft/configx"
	"github.com/Abraxas-365/eventcraft/eventx"
	"github.com/Abraxas-365/eventcraft/fsx"
	"github.com/Abraxas-365/eventcraft/logx"
)

// EnvPrefix is the prefix of eventbench environment variables,
// e.g. EVENTBENCH_SERVE_ADDR or EVENTBENCH_SECRET.
const EnvPrefix = "EVENTBENCH_"

type app struct {
	logLevel string
	noColor  bool

	logger *logx.Logger
	cfg    configx.Config
	events eventx.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "eventbench",
		Short:         "Benchmark and inspect eventx dispatch",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level, overrides LOG_LEVEL")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		a.runCmd(),
		a.inspectCmd(),
		a.serveCmd(),
		a.tokenCmd(),
		a.routesCmd(),
		a.historyCmd(),
	)
	return root
}

func (a *app) setup() error {
	if a.logLevel != "" {
		level, err := logx.ParseLevel(a.logLevel)
		if err != nil {
			return err
		}
		logx.SetLevel(level)
	}
	if a.noColor {
		color.NoColor = true
		logx.SetColored(false)
	}
	a.logger = logx.GetLogger().Named("eventbench")

	cfg, err := configx.New(
		configx.WithDefaults(map[string]any{
			"serve": map[string]any{
				"addr":   ":8080",
				"prefix": "/events",
			},
		}),
		configx.WithEnv(EnvPrefix),
	)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.events, err = eventx.LoadConfig(); err != nil {
		return err
	}
	return nil
}

func (a *app) runtimeOptions(extra ...eventx.RuntimeOption) []eventx.RuntimeOption {
	return append([]eventx.RuntimeOption{
		eventx.WithConfig(a.events),
		eventx.WithLogger(a.logger),
	}, extra...)
}

func (a *app) colored(w io.Writer) bool {
	return !color.NoColor && w != io.Discard
}

// export writes data to a local path or an s3:// destination.
func (a *app) export(ctx context.Context, dest string, data []byte) error {
	fs, path, err := fsx.Open(ctx, dest)
	if err != nil {
		return err
	}
	if err := fs.WriteFile(ctx, path, data); err != nil {
		return err
	}
	a.logger.Info("wrote %s", dest)
	return nil
}
