package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
)

func watchCmd() *cobra.Command {
	var (
		filters     filterFlags
		verifyEvery time.Duration
		poll        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow balances and totals as the ledger changes",
		Long: `Print account balances and the filtered total now and again after every
change made by any tally command against the same database. With
--metrics-addr, ledger metrics are served at /metrics while watching.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := filters.filter(time.Now())
			if err != nil {
				return err
			}
			if poll <= 0 {
				return fmt.Errorf("%w: --poll must be positive", common.ErrValidation)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			g, ctx := errgroup.WithContext(cmd.Context())

			if addr := viper.GetString("metrics.addr"); addr != "" {
				registry := prometheus.NewRegistry()
				if err := a.metrics.Register(registry); err != nil {
					return fmt.Errorf("failed to register metrics: %w", err)
				}
				serveMetrics(ctx, g, addr, registry)
			}

			g.Go(func() error {
				return a.store.FollowExternalChanges(ctx, poll)
			})

			if verifyEvery > 0 {
				g.Go(func() error {
					ticker := time.NewTicker(verifyEvery)
					defer ticker.Stop()
					for {
						select {
						case <-ctx.Done():
							return nil
						case <-ticker.C:
							drifts, err := a.ledger.VerifyBalances(ctx)
							if err != nil {
								slog.Warn("Balance check failed", "error", err)
								continue
							}
							if len(drifts) > 0 {
								slog.Warn("Balances drifted", "accounts", len(drifts))
							}
						}
					}
				})
			}

			m, err := a.money(ctx, false)
			if err != nil {
				return err
			}

			w := &watcher{out: cmd.OutOrStdout(), money: m}
			accounts := a.store.WatchAccounts(ctx)
			defer accounts.Cancel()
			total := a.agg.WatchTotal(ctx, filter)
			defer total.Cancel()
			hide := a.settings.WatchHideValues(ctx)
			defer hide.Cancel()

			g.Go(func() error {
				for {
					select {
					case <-ctx.Done():
						return nil
					case r, ok := <-accounts.Updates():
						if !ok {
							return nil
						}
						w.accounts(r.Value, r.Err)
					case r, ok := <-total.Updates():
						if !ok {
							return nil
						}
						w.total(r.Value, r.Err)
					case r, ok := <-hide.Updates():
						if !ok {
							return nil
						}
						if r.Err == nil {
							w.money.hide = r.Value
						}
					}
				}
			})

			return g.Wait()
		},
	}

	filters.register(cmd)
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().DurationVar(&poll, "poll", time.Second, "how often to look for changes made by other tally processes")
	cmd.Flags().DurationVar(&verifyEvery, "verify-every", 0, "verify balances at this interval (0 disables)")
	_ = viper.BindPFlag("metrics.addr", cmd.Flags().Lookup("metrics-addr"))

	return cmd
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		slog.Info("Metrics server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

// watcher prints live updates.
type watcher struct {
	out   io.Writer
	money money
}

func (w *watcher) stamp() string {
	return cli.SubtleStyle.Render(time.Now().Format("15:04:05"))
}

func (w *watcher) accounts(accounts []model.Account, err error) {
	if err != nil {
		fmt.Fprintln(w.out, w.stamp(), cli.FormatError(err.Error()))
		return
	}
	for _, account := range accounts {
		fmt.Fprintf(w.out, "%s %-20s %s\n", w.stamp(), account.Name,
			cli.StyleAmount(w.money.format(account.Balance), account.Balance.IsNegative()))
	}
}

func (w *watcher) total(total decimal.Decimal, err error) {
	if err != nil {
		fmt.Fprintln(w.out, w.stamp(), cli.FormatError(err.Error()))
		return
	}
	fmt.Fprintf(w.out, "%s %-20s %s\n", w.stamp(), cli.ChartIcon+" total",
		cli.StyleAmount(w.money.formatTotal(total), total.IsNegative()))
}
