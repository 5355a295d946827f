package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/db"
	"github.com/sells-group/site-analysis/internal/provider"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Inspect the configured geometry source",
}

// datasetStats describes a geometry source.
type datasetStats struct {
	Source    string      `json:"source" yaml:"source"`
	Buildings int         `json:"buildings" yaml:"buildings"`
	LandCover int         `json:"land_cover" yaml:"land_cover"`
	Roads     int         `json:"roads" yaml:"roads"`
	Bounds    *[4]float64 `json:"bounds,omitempty" yaml:"bounds,omitempty"` // min x, min y, max x, max y
}

var datasetStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show feature counts and extent of the geometry source",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("dataset"); err != nil {
			return err
		}
		stats, err := collectDatasetStats(ctx, cfg.Geometry)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		return writeOutput(os.Stdout, format, stats, func(w io.Writer) { formatDatasetStats(w, stats) })
	},
}

var datasetImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy the configured file dataset into PostGIS tables",
	Long:  "Loads the GeoJSON, shapefile, or GeoPackage layers named in the geometry config and copies them into PostGIS at geometry.database_url, in the columns the postgis source reads back.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Geometry.Source == config.SourcePostGIS {
			return eris.New("dataset import: geometry.source must name a file source, not postgis")
		}
		if err := cfg.Validate("dataset"); err != nil {
			return err
		}

		target := importTarget(cmd, cfg.Geometry)
		ds, err := provider.LoadDataset(cfg.Geometry)
		if err != nil {
			return err
		}
		pool, err := db.Open(ctx, cfg.Geometry.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		create, _ := cmd.Flags().GetBool("create")
		sum, err := provider.Import(ctx, pool, ds, target, create)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		return writeOutput(os.Stdout, format, sum, func(w io.Writer) {
			_, _ = fmt.Fprintf(w, "imported %d buildings, %d land-cover polygons, %d roads\n",
				sum.Buildings, sum.LandCover, sum.Roads)
		})
	},
}

// importTarget maps each configured file layer to its destination table.
// Layers without a source file are not imported.
func importTarget(cmd *cobra.Command, g config.GeometryConfig) config.GeometryConfig {
	target := g
	target.Source = config.SourcePostGIS
	target.Buildings, _ = cmd.Flags().GetString("buildings-table")
	target.LandCover, _ = cmd.Flags().GetString("landcover-table")
	target.Roads, _ = cmd.Flags().GetString("roads-table")
	if g.Buildings == "" {
		target.Buildings = ""
	}
	if g.LandCover == "" {
		target.LandCover = ""
	}
	if g.Roads == "" {
		target.Roads = ""
	}
	return target
}

func collectDatasetStats(ctx context.Context, g config.GeometryConfig) (*datasetStats, error) {
	stats := &datasetStats{Source: g.Source}

	if g.Source == config.SourcePostGIS {
		pool, err := db.Open(ctx, g.DatabaseURL)
		if err != nil {
			return nil, err
		}
		p, err := provider.NewPostGIS(pool, g)
		if err != nil {
			pool.Close()
			return nil, err
		}
		defer p.Close()
		stats.Buildings, stats.LandCover, stats.Roads, err = p.Counts(ctx)
		if err != nil {
			return nil, err
		}
		return stats, nil
	}

	ds, err := provider.LoadDataset(g)
	if err != nil {
		return nil, err
	}
	stats.Buildings, stats.LandCover, stats.Roads = ds.Counts()
	if b := ds.Bounds(); b != nil {
		stats.Bounds = &[4]float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)}
	}
	return stats, nil
}

func formatDatasetStats(out io.Writer, s *datasetStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Source:\t%s\n", s.Source)
	_, _ = fmt.Fprintf(w, "Buildings:\t%d\n", s.Buildings)
	_, _ = fmt.Fprintf(w, "Land cover:\t%d\n", s.LandCover)
	_, _ = fmt.Fprintf(w, "Roads:\t%d\n", s.Roads)
	if s.Bounds != nil {
		_, _ = fmt.Fprintf(w, "Extent:\t%.1f, %.1f .. %.1f, %.1f\n", s.Bounds[0], s.Bounds[1], s.Bounds[2], s.Bounds[3])
	}
	_ = w.Flush()
}

func init() {
	datasetStatsCmd.Flags().StringP("format", "f", formatTable, "output format: table, json, or yaml")
	datasetImportCmd.Flags().String("buildings-table", "buildings", "destination table for buildings")
	datasetImportCmd.Flags().String("landcover-table", "landcover", "destination table for land cover")
	datasetImportCmd.Flags().String("roads-table", "roads", "destination table for roads")
	datasetImportCmd.Flags().Bool("create", false, "create missing tables and spatial indexes")
	datasetImportCmd.Flags().StringP("format", "f", formatTable, "output format: table, json, or yaml")
	datasetCmd.AddCommand(datasetStatsCmd, datasetImportCmd)
	rootCmd.AddCommand(datasetCmd)
}
