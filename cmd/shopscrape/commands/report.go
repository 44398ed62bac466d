package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/shopscrape/internal/journal"
	"github.com/FranksOps/shopscrape/internal/journal/backend"
	"github.com/FranksOps/shopscrape/internal/report"
)

var (
	reportFormat string
	reportOut    string
	reportSince  time.Duration
	reportSource string
	reportLimit  int
)

func init() {
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "text", "Output format: text, json or html.")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Write the report to a file instead of stdout.")
	reportCmd.Flags().DurationVar(&reportSince, "since", 0, "Only include attempts newer than this (e.g. 24h).")
	reportCmd.Flags().StringVar(&reportSource, "source", "", "Only include attempts for this source.")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 0, "Maximum number of attempts to include.")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report [--format text|json|html] [--out <file>]",
	Short: "Summarizes the scrape journal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if cfg.Journal.Driver == "" || cfg.Journal.Driver == backend.DriverNone {
			return errors.New("report: journal is disabled; set journal.driver")
		}

		j, err := backend.Open(cmd.Context(), cfg.Journal.Driver, cfg.Journal.DSN)
		if err != nil {
			return err
		}
		defer closeJournal(j, logger)

		filter := journal.Filter{Source: reportSource, Limit: reportLimit}
		if reportSince > 0 {
			since := time.Now().Add(-reportSince)
			filter.Since = &since
		}
		entries, err := j.Query(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("report: query journal: %w", err)
		}
		summary := report.GenerateSummary(entries)

		w := cmd.OutOrStdout()
		if reportOut != "" {
			f, err := os.Create(reportOut)
			if err != nil {
				return fmt.Errorf("report: %w", err)
			}
			defer f.Close()
			w = f
		}

		switch reportFormat {
		case "text":
			return report.WriteText(w, summary)
		case "json":
			return report.WriteJSON(w, summary)
		case "html":
			return report.WriteHTML(w, summary)
		default:
			return fmt.Errorf("report: unknown format %q", reportFormat)
		}
	},
}
