package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/db"
	"github.com/sells-group/site-analysis/internal/model"
)

// ImportSummary counts the rows copied into each table.
type ImportSummary struct {
	Buildings int64 `json:"buildings" yaml:"buildings"`
	LandCover int64 `json:"land_cover" yaml:"land_cover"`
	Roads     int64 `json:"roads" yaml:"roads"`
}

// importTable describes one target table. The column set is the one the
// PostGIS provider reads back as attributes.
type importTable struct {
	name    string
	columns []string
	ddl     string
	rows    func(srid int) ([][]any, error)
}

// Import copies ds into the PostGIS tables named by target.Buildings,
// target.LandCover, and target.Roads, in target.SRID. Empty table names are
// skipped. With create set, missing tables and their GiST indexes are
// created first.
func Import(ctx context.Context, pool db.Pool, ds *model.Dataset, target config.GeometryConfig, create bool) (ImportSummary, error) {
	var sum ImportSummary
	if ds == nil {
		return sum, eris.New("provider: import: dataset is nil")
	}

	tables := []importTable{
		{
			name:    target.Buildings,
			columns: []string{"id", "height", "geom"},
			ddl:     `CREATE TABLE IF NOT EXISTS %s (id text, height double precision, geom geometry(Polygon, %d))`,
			rows:    func(srid int) ([][]any, error) { return buildingRows(ds.Buildings(), srid) },
		},
		{
			name:    target.LandCover,
			columns: []string{"id", "category", "geom"},
			ddl:     `CREATE TABLE IF NOT EXISTS %s (id text, category text, geom geometry(Polygon, %d))`,
			rows:    func(srid int) ([][]any, error) { return landCoverRows(ds.LandCover(), srid) },
		},
		{
			name:    target.Roads,
			columns: []string{"id", "category", "volume", "heavy_fraction", "geom"},
			ddl:     `CREATE TABLE IF NOT EXISTS %s (id text, category text, volume double precision, heavy_fraction double precision, geom geometry(LineString, %d))`,
			rows:    func(srid int) ([][]any, error) { return roadRows(ds.Roads(), srid) },
		},
	}
	counts := []*int64{&sum.Buildings, &sum.LandCover, &sum.Roads}

	for _, t := range tables {
		if t.name == "" {
			continue
		}
		if err := validateTable(t.name); err != nil {
			return sum, err
		}
	}

	for i, t := range tables {
		if t.name == "" {
			continue
		}
		if create {
			if _, err := pool.Exec(ctx, fmt.Sprintf(t.ddl, t.name, target.SRID)); err != nil {
				return sum, eris.Wrapf(err, "provider: create %s", t.name)
			}
			idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING gist (geom)`, indexName(t.name), t.name)
			if _, err := pool.Exec(ctx, idx); err != nil {
				return sum, eris.Wrapf(err, "provider: index %s", t.name)
			}
		}

		rows, err := t.rows(target.SRID)
		if err != nil {
			return sum, err
		}
		n, err := db.CopyFrom(ctx, pool, t.name, t.columns, rows)
		if err != nil {
			return sum, eris.Wrapf(err, "provider: import %s", t.name)
		}
		*counts[i] = n
		zap.L().Info("provider: imported layer", zap.String("table", t.name), zap.Int64("rows", n))
	}
	return sum, nil
}

// indexName derives the GiST index name for a possibly schema-qualified
// table: "site.roads" gives "roads_geom_idx".
func indexName(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		table = table[i+1:]
	}
	return table + "_geom_idx"
}

func buildingRows(features []model.BuildingFeature, srid int) ([][]any, error) {
	rows := make([][]any, 0, len(features))
	for _, f := range features {
		wkb, err := encodeEWKB(f.Polygon.Clone().SetSRID(srid))
		if err != nil {
			return nil, eris.Wrapf(err, "provider: encode building %s", f.ID)
		}
		rows = append(rows, []any{f.ID, f.Height, wkb})
	}
	return rows, nil
}

func landCoverRows(features []model.LandCoverFeature, srid int) ([][]any, error) {
	rows := make([][]any, 0, len(features))
	for _, f := range features {
		wkb, err := encodeEWKB(f.Polygon.Clone().SetSRID(srid))
		if err != nil {
			return nil, eris.Wrapf(err, "provider: encode land cover %s", f.ID)
		}
		rows = append(rows, []any{f.ID, string(f.Category), wkb})
	}
	return rows, nil
}

func roadRows(segments []model.RoadSegment, srid int) ([][]any, error) {
	rows := make([][]any, 0, len(segments))
	for _, r := range segments {
		wkb, err := encodeEWKB(r.Line.Clone().SetSRID(srid))
		if err != nil {
			return nil, eris.Wrapf(err, "provider: encode road %s", r.ID)
		}
		var heavy any
		if r.HeavyFraction != nil {
			heavy = *r.HeavyFraction
		}
		rows = append(rows, []any{r.ID, string(r.Category), r.Volume, heavy, wkb})
	}
	return rows, nil
}

func encodeEWKB(g geom.T) ([]byte, error) {
	return ewkb.Marshal(g, ewkb.NDR)
}
