package commands

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FranksOps/shopscrape/internal/metrics"
	"github.com/FranksOps/shopscrape/internal/product"
)

var scrapeSource string

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeSource, "source", "s", "", "Source hint for a single URL (cellphones, thegioididong).")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url> [url...]",
	Short: "Scrapes one or more product URLs and prints the results as JSON.",
	Args:  cobra.MinimumNArgs(1),
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
				logger.Warn("cleanup failed", "err", err)
			}
		}()

		if cfg.Metrics.Enabled {
			ms := metrics.Start(cfg.Metrics.Port, logger)
			defer ms.Stop(context.WithoutCancel(ctx))
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		if len(args) == 1 {
			res := a.orch.ScrapeProduct(ctx, product.Request{
				URL:    args[0],
				Source: product.SourceID(scrapeSource),
			})
			return enc.Encode(res)
		}
		return enc.Encode(a.orch.ScrapeMultipleProducts(ctx, args))
	},
}
