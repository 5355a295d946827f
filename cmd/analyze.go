package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run view and noise analysis for a list of sites",
	Long:  "Reads sites from a CSV file with x, y, and optional id and radius columns, and analyzes them on a bounded worker pool. A failing site is reported without stopping the batch.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("concurrency") {
			cfg.Analysis.Concurrency, _ = cmd.Flags().GetInt("concurrency")
		}

		sitesPath, _ := cmd.Flags().GetString("sites")
		sites, err := readSitesFile(sitesPath)
		if err != nil {
			return err
		}

		svc, closeFn, err := newService(ctx, cfg, "analyze")
		if err != nil {
			return err
		}
		defer closeFn()

		reports, summary, err := svc.AnalyzeBatch(ctx, sites)
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return eris.Wrapf(err, "analyze: create %s", path)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		format, _ := cmd.Flags().GetString("format")
		if err := writeOutput(out, format, reports, func(w io.Writer) { formatReports(w, reports) }); err != nil {
			return err
		}

		zap.L().Info("analyze: cache usage", zap.Any("stats", svc.CacheStats()))
		fmt.Fprintf(os.Stderr, "%d sites analyzed, %d failed in %s\n",
			summary.Succeeded, summary.Failed, summary.Elapsed.Round(time.Millisecond))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("sites", "", "CSV file of sites (x, y, optional id and radius); - reads stdin")
	analyzeCmd.Flags().Int("concurrency", 0, "sites analyzed in parallel (default analysis.concurrency)")
	analyzeCmd.Flags().StringP("format", "f", formatTable, "output format: table, json, or yaml")
	analyzeCmd.Flags().StringP("output", "o", "", "write output to this file instead of stdout")
	_ = analyzeCmd.MarkFlagRequired("sites")
	rootCmd.AddCommand(analyzeCmd)
}
