package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Classify the view sectors around a site",
	Long:  "Splits the disc around a site into equal angular sectors, labels each GREEN, WATER, CITY, or OPEN, and merges adjacent sectors with the same label.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("sectors") {
			cfg.View.SectorCount, _ = cmd.Flags().GetInt("sectors")
		}

		svc, closeFn, err := newService(ctx, cfg, "view")
		if err != nil {
			return err
		}
		defer closeFn()

		res, err := svc.ClassifyView(ctx, siteFromFlags(cmd))
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		return writeOutput(os.Stdout, format, res, func(w io.Writer) { formatView(w, res) })
	},
}

func init() {
	addSiteFlags(viewCmd)
	viewCmd.Flags().Int("sectors", 0, "number of view sectors (default view.sector_count)")
	rootCmd.AddCommand(viewCmd)
}
