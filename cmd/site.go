package main

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/site-analysis/internal/analysis"
	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/model"
	"github.com/sells-group/site-analysis/internal/provider"
)

// addSiteFlags registers the flags that locate a single site.
func addSiteFlags(cmd *cobra.Command) {
	cmd.Flags().String("id", "", "site identifier used in logs and output")
	cmd.Flags().Float64("x", 0, "site easting in the dataset reference frame (meters)")
	cmd.Flags().Float64("y", 0, "site northing in the dataset reference frame (meters)")
	cmd.Flags().Float64("radius", 0, "analysis radius in meters (default analysis.radius)")
	cmd.Flags().StringP("format", "f", formatTable, "output format: table, json, or yaml")
	_ = cmd.MarkFlagRequired("x")
	_ = cmd.MarkFlagRequired("y")
}

func siteFromFlags(cmd *cobra.Command) model.Site {
	id, _ := cmd.Flags().GetString("id")
	x, _ := cmd.Flags().GetFloat64("x")
	y, _ := cmd.Flags().GetFloat64("y")
	radius, _ := cmd.Flags().GetFloat64("radius")
	return model.Site{ID: id, Center: model.Coordinate{X: x, Y: y}, Radius: radius}
}

// newService validates c for mode and builds the geometry provider and the
// analysis service. The returned func releases the provider.
func newService(ctx context.Context, c *config.Config, mode string) (*analysis.Service, func(), error) {
	if err := c.Validate(mode); err != nil {
		return nil, nil, err
	}
	p, err := provider.New(ctx, c.Geometry)
	if err != nil {
		return nil, nil, err
	}
	svc, err := analysis.NewService(p, c)
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return svc, p.Close, nil
}

// readSitesFile reads sites from a CSV file; "-" reads standard input.
func readSitesFile(path string) ([]model.Site, error) {
	if path == "-" {
		return readSites(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sites: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return readSites(f)
}

// readSites parses a CSV with a header naming x and y columns and
// optionally id and radius, in any order and case. Rows without an id are
// numbered from 1.
func readSites(r io.Reader) ([]model.Site, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, eris.New("sites: empty file")
		}
		return nil, eris.Wrap(err, "sites: read header")
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	xi, okX := col["x"]
	yi, okY := col["y"]
	if !okX || !okY {
		return nil, eris.New("sites: header must name x and y columns")
	}
	idi, hasID := col["id"]
	ri, hasRadius := col["radius"]

	field := func(rec []string, i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var sites []model.Site
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "sites: line %d", line)
		}

		x, err := strconv.ParseFloat(field(rec, xi), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "sites: line %d: x", line)
		}
		y, err := strconv.ParseFloat(field(rec, yi), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "sites: line %d: y", line)
		}
		site := model.Site{Center: model.Coordinate{X: x, Y: y}}
		if hasID {
			site.ID = field(rec, idi)
		}
		if site.ID == "" {
			site.ID = strconv.Itoa(len(sites) + 1)
		}
		if hasRadius {
			if v := field(rec, ri); v != "" {
				if site.Radius, err = strconv.ParseFloat(v, 64); err != nil {
					return nil, eris.Wrapf(err, "sites: line %d: radius", line)
				}
			}
		}
		sites = append(sites, site)
	}
	return sites, nil
}
