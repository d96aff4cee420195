package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	appLog "meetcal/internal/log"
	"meetcal/internal/metrics"
	"meetcal/internal/refresh"
	"meetcal/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		listen  string
		noFeeds bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled ICS feed import",
		Long: `Start the meetcal HTTP API on the configured listen address.

Configured feeds are imported once at startup and then on the "refresh"
cron schedule. POST /api/refresh triggers an extra import.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Listen = listen
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case sig := <-sigCh:
					appLog.Info("signal received, shutting down", "signal", sig.String())
					cancel()
				case <-ctx.Done():
				}
			}()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.New(reg)

			b, err := a.open(m)
			if err != nil {
				return err
			}
			defer b.Close()

			opts := web.Options{
				Store:     b.meetings,
				Notes:     b.notes,
				Metrics:   m,
				Location:  a.cfg.Location(),
				BasicAuth: a.cfg.BasicAuth,
			}

			if feeds := a.feeds(); len(feeds) > 0 && !noFeeds {
				im := a.importer(b.meetings, m)
				sched, err := refresh.New(a.cfg.RefreshCron, a.cfg.Location(), func(ctx context.Context) error {
					_, err := im.ImportAll(ctx, feeds)
					return err
				})
				if err != nil {
					return err
				}
				if err := sched.Start(ctx); err != nil {
					return err
				}
				go func() {
					if err := sched.RunNow(ctx); err != nil {
						appLog.Error("initial feed import failed", err)
					}
				}()
				opts.Refresh = sched.RunNow
			}

			appLog.Info("meetcal starting",
				"version", cmd.Root().Version,
				"listen", a.cfg.Listen,
				"timezone", a.cfg.Timezone,
				"store", a.cfg.Store.Driver,
				"feeds", len(a.cfg.Feeds),
			)
			err = web.Run(ctx, a.cfg.Listen, web.NewServer(opts).Handler())
			appLog.Info("meetcal exiting")
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&noFeeds, "no-feeds", false, "Do not import configured feeds")
	return cmd
}
