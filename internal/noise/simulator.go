// Package noise simulates road-traffic noise on a uniform grid around a
// site: per-road emission, spreading loss, an ordered correction pipeline,
// and energy summation across roads.
package noise

import (
	"context"
	"math"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/geometry"
	"github.com/sells-group/site-analysis/internal/model"
	"github.com/sells-group/site-analysis/internal/score"
	"github.com/sells-group/site-analysis/internal/spatial"
)

// DefaultResolution is the grid cell size in meters.
const DefaultResolution = 10.0

// Simulator computes noise maps. It holds only configuration and is safe
// for concurrent use.
type Simulator struct {
	cfg      config.NoiseConfig
	emission *EmissionModel
	workers  int
}

// source is a road segment with its emission resolved.
type source struct {
	road  *model.RoadSegment
	l0    float64
	heavy float64
}

// NewSimulator builds a Simulator from noise configuration.
func NewSimulator(cfg config.NoiseConfig) (*Simulator, error) {
	for _, name := range cfg.Corrections {
		if !knownCorrection(name) {
			return nil, model.NewConfigurationError("noise.corrections", "unknown correction %q", name)
		}
	}
	if cfg.BarrierMode == "" {
		cfg.BarrierMode = config.BarrierGraduated
	}
	if cfg.BarrierMode != config.BarrierGraduated && cfg.BarrierMode != config.BarrierBinary {
		return nil, model.NewConfigurationError("noise.barrier_mode", "must be %q or %q, got %q",
			config.BarrierGraduated, config.BarrierBinary, cfg.BarrierMode)
	}
	if cfg.MinDistance <= 0 {
		cfg.MinDistance = 1
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Simulator{cfg: cfg, emission: NewEmissionModel(cfg.Emission), workers: workers}, nil
}

func knownCorrection(name string) bool {
	for _, c := range CorrectionOrder {
		if c == name {
			return true
		}
	}
	return false
}

// Simulate computes the noise map over the bounding box of the disc of
// radius around center. Every cell level is the energy sum of all road
// contributions, floored at the configured ambient level. Without roads the
// map is uniformly at the floor and carries a warning.
func (s *Simulator) Simulate(ctx context.Context, center model.Coordinate, radius, resolution float64, fs *model.FeatureSet) (*Result, error) {
	if !center.Finite() {
		return nil, &model.InvalidSiteError{Reason: "center " + center.String() + " is not finite"}
	}
	if fs == nil {
		fs = &model.FeatureSet{}
	}
	grid, err := NewGrid(center, radius, resolution)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	obstacles := spatial.NewIndex(model.NewDataset(fs.Buildings, nil, nil), spatial.DefaultCellSize)
	pipeline := Pipeline(s.cfg, obstacles)

	sources := make([]source, 0, len(fs.Roads))
	for i := range fs.Roads {
		r := &fs.Roads[i]
		if r.Line == nil || r.Line.NumCoords() < 2 {
			continue
		}
		sources = append(sources, source{road: r, l0: s.emission.Level(r), heavy: s.emission.HeavyFraction(r)})
	}

	res := &Result{
		ID:         uuid.NewString(),
		Center:     center,
		Radius:     radius,
		Resolution: resolution,
		Bounds:     grid.Bounds,
		Rows:       grid.Rows,
		Cols:       grid.Cols,
		FloorDB:    s.cfg.FloorDB,
		Cells:      make([]Cell, grid.CellCount()),
	}
	if len(sources) == 0 {
		res.Warnings = append(res.Warnings, (&model.EmptyResultWarning{Layer: "road", Radius: radius}).Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for row := 0; row < grid.Rows; row++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			levels := make([]float64, 0, len(sources))
			for col := 0; col < grid.Cols; col++ {
				cell, err := s.cell(grid, row, col, sources, pipeline, obstacles, levels[:0])
				if err != nil {
					return err
				}
				res.Cells[row*grid.Cols+col] = cell
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "noise: simulate")
	}

	zap.L().Debug("noise: simulated map",
		zap.Int("rows", grid.Rows),
		zap.Int("cols", grid.Cols),
		zap.Int("roads", len(sources)),
		zap.Int("buildings", len(fs.Buildings)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// cell computes one grid cell. levels is scratch space owned by the caller.
// Receiver lookups (shielding, facade proximity) run once per cell, not per
// source.
func (s *Simulator) cell(grid Grid, row, col int, sources []source, pipeline []Correction, obstacles Obstacles, levels []float64) (Cell, error) {
	at := grid.CellCenter(row, col)
	cell := Cell{Row: row, Col: col, X: at.X(), Y: at.Y(), LevelDB: s.cfg.FloorDB}
	cell.Shielded = shielded(obstacles, at)
	nearFacade := !cell.Shielded && len(sources) > 0 && reflects(pipeline) &&
		NearFacade(obstacles, at, s.cfg.ReflectionProximityThreshold)

	for _, src := range sources {
		nearest, d := geometry.NearestPointOnLineString(src.road.Line, at)
		p := &Path{
			Source:        nearest,
			Receiver:      at,
			Distance:      math.Max(d, s.cfg.MinDistance),
			HeavyFraction: src.heavy,
			Shielded:      cell.Shielded,
			NearFacade:    nearFacade,
		}
		level := Propagate(src.l0, p.Distance)
		for _, c := range pipeline {
			level = c.Apply(level, p)
		}
		levels = append(levels, level)
	}
	if len(levels) == 0 {
		return cell, nil
	}

	total, err := score.LogEnergySum(levels)
	if err != nil {
		return cell, eris.Wrapf(err, "noise: cell (%d, %d)", row, col)
	}
	cell.LevelDB = math.Max(total, s.cfg.FloorDB)
	return cell, nil
}

func reflects(pipeline []Correction) bool {
	for _, c := range pipeline {
		if c.Name() == ReflectionCorrection {
			return true
		}
	}
	return false
}

// shielded reports whether pt lies inside any building footprint.
func shielded(obstacles Obstacles, pt geom.Coord) bool {
	for _, b := range obstacles.BuildingsNear(pt, 0) {
		if geometry.ContainsPoint(b.Polygon, pt) {
			return true
		}
	}
	return false
}
