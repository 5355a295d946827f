// Package provider supplies the building, land-cover, and road geometry found
// around a site. File sources are loaded once into an in-memory spatial index;
// the PostGIS source queries the database per request.
package provider

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/db"
	"github.com/sells-group/site-analysis/internal/model"
	"github.com/sells-group/site-analysis/internal/spatial"
)

// GeometryProvider returns every feature intersecting the disc of radius
// meters around center. All geometry shares one projected reference frame.
type GeometryProvider interface {
	Query(ctx context.Context, center model.Coordinate, radius float64) (*model.FeatureSet, error)
	Close()
}

// IndexProvider serves queries from an immutable in-memory dataset.
type IndexProvider struct {
	index *spatial.Index
}

var _ GeometryProvider = (*IndexProvider)(nil)

// NewIndexProvider indexes ds. A non-positive cellSize selects the index
// default.
func NewIndexProvider(ds *model.Dataset, cellSize float64) *IndexProvider {
	return &IndexProvider{index: spatial.NewIndex(ds, cellSize)}
}

// Query implements GeometryProvider.
func (p *IndexProvider) Query(ctx context.Context, center model.Coordinate, radius float64) (*model.FeatureSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "provider: query index")
	}
	fs := p.index.Query(center, radius)
	return &fs, nil
}

// Dataset returns the indexed dataset.
func (p *IndexProvider) Dataset() *model.Dataset {
	return p.index.Dataset()
}

// Close implements GeometryProvider.
func (p *IndexProvider) Close() {}

// New builds the provider selected by cfg.Source. For PostGIS it opens a
// connection pool that the provider owns and releases on Close.
func New(ctx context.Context, cfg config.GeometryConfig) (GeometryProvider, error) {
	if cfg.Source == config.SourcePostGIS {
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "provider: open postgis")
		}
		p, err := NewPostGIS(pool, cfg)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return p, nil
	}

	ds, err := LoadDataset(cfg)
	if err != nil {
		return nil, err
	}
	return NewIndexProvider(ds, cfg.IndexCellSize), nil
}

// LoadDataset reads the file layers named in cfg into a Dataset.
func LoadDataset(cfg config.GeometryConfig) (*model.Dataset, error) {
	switch cfg.Source {
	case config.SourceGeoJSON, "":
		return LoadGeoJSON(cfg)
	case config.SourceShapefile:
		return LoadShapefile(cfg)
	case config.SourceGeoPackage:
		return LoadGeoPackage(cfg)
	default:
		return nil, eris.Errorf("provider: source %q has no local dataset", cfg.Source)
	}
}

// layerReader reads every record of one layer.
type layerReader func(location string) ([]record, error)

// loadLayers reads each configured layer with read and converts the records
// into features.
func loadLayers(cfg config.GeometryConfig, read layerReader) (*model.Dataset, error) {
	opts := optionsFrom(cfg)
	log := zap.L().With(zap.String("component", "provider"), zap.String("source", cfg.Source))

	var (
		buildings []model.BuildingFeature
		landCover []model.LandCoverFeature
		roads     []model.RoadSegment
	)
	if cfg.Buildings != "" {
		recs, err := read(cfg.Buildings)
		if err != nil {
			return nil, eris.Wrap(err, "provider: load buildings")
		}
		buildings = buildingsFrom(recs, opts)
	}
	if cfg.LandCover != "" {
		recs, err := read(cfg.LandCover)
		if err != nil {
			return nil, eris.Wrap(err, "provider: load land cover")
		}
		landCover = landCoverFrom(recs)
	}
	if cfg.Roads != "" {
		recs, err := read(cfg.Roads)
		if err != nil {
			return nil, eris.Wrap(err, "provider: load roads")
		}
		roads = roadsFrom(recs)
	}

	ds := model.NewDataset(buildings, landCover, roads)
	b, l, r := ds.Counts()
	log.Info("provider: loaded dataset",
		zap.Int("buildings", b),
		zap.Int("land_cover", l),
		zap.Int("roads", r),
	)
	return ds, nil
}
