package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/shopscrape/internal/api"
	"github.com/FranksOps/shopscrape/internal/metrics"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--config <path>]",
	Short: "Serves the scrape API and the Prometheus metrics endpoint.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				logger.Warn("shutdown cleanup failed", "err", err)
			}
		}()

		srv := api.NewServer(api.Config{
			Addr:            cfg.Server.Addr,
			RequestTimeout:  cfg.Server.RequestTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			MaxBatchSize:    cfg.Server.MaxBatchSize,
		}, a.orch, a.router.Supported(), logger)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(srv.ListenAndServe)

		var ms *metrics.Server
		if cfg.Metrics.Enabled {
			ms = metrics.New(cfg.Metrics.Port)
			g.Go(func() error {
				logger.Info("metrics listening", "port", cfg.Metrics.Port)
				return ms.ListenAndServe()
			})
		}

		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("api shutdown failed", "err", err)
			}
			if ms != nil {
				if err := ms.Stop(shutdownCtx); err != nil {
					logger.Error("metrics shutdown failed", "err", err)
				}
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			slog.Error("server exited", "err", err)
			return err
		}
		return nil
	},
}
