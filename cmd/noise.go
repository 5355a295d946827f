package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var noiseCmd = &cobra.Command{
	Use:   "noise",
	Short: "Simulate road-traffic noise around a site",
	Long:  "Computes a grid of noise levels in dB over the square around a site from road emission, spreading loss, and heavy-vehicle, ground, barrier, and reflection corrections.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("resolution") {
			cfg.Noise.GridResolution, _ = cmd.Flags().GetFloat64("resolution")
		}

		svc, closeFn, err := newService(ctx, cfg, "noise")
		if err != nil {
			return err
		}
		defer closeFn()

		res, err := svc.SimulateNoise(ctx, siteFromFlags(cmd))
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		return writeOutput(os.Stdout, format, res, func(w io.Writer) { formatNoise(w, res) })
	},
}

func init() {
	addSiteFlags(noiseCmd)
	noiseCmd.Flags().Float64("resolution", 0, "grid cell size in meters (default noise.grid_resolution)")
	rootCmd.AddCommand(noiseCmd)
}
