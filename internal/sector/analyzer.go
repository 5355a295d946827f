// Package sector classifies the 360° view around a site into labeled
// angular sectors and merges adjacent sectors into arcs.
package sector

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/geometry"
	"github.com/sells-group/site-analysis/internal/model"
	"github.com/sells-group/site-analysis/internal/score"
)

// DefaultArcSteps is the number of arc vertices per sector wedge.
const DefaultArcSteps = 40

// Analyzer computes view classifications. It holds only configuration and
// is safe for concurrent use.
type Analyzer struct {
	arcSteps int
	tieBreak []Label
}

// NewAnalyzer builds an Analyzer from view configuration.
func NewAnalyzer(cfg config.ViewConfig) (*Analyzer, error) {
	tb, err := ParseTieBreak(cfg.TieBreak)
	if err != nil {
		return nil, model.NewConfigurationError("view.tie_break", "%v", err)
	}
	steps := cfg.ArcSteps
	if steps <= 0 {
		steps = DefaultArcSteps
	}
	return &Analyzer{arcSteps: steps, tieBreak: tb}, nil
}

// Classify splits the disc of radius around center into n equal sectors,
// scores each from the features in fs, labels it, and merges the labels
// into arcs. Missing geometry is not an error: the result carries a warning
// and zero-valued statistics.
func (a *Analyzer) Classify(ctx context.Context, center model.Coordinate, radius float64, n int, fs *model.FeatureSet) (*Result, error) {
	if n <= 0 {
		return nil, model.NewConfigurationError("sector_count", "must be positive, got %d", n)
	}
	if !model.PositiveFinite(radius) {
		return nil, model.NewConfigurationError("radius", "must be positive and finite, got %v", radius)
	}
	if !center.Finite() {
		return nil, &model.InvalidSiteError{Reason: "center " + center.String() + " is not finite"}
	}
	if fs == nil {
		fs = &model.FeatureSet{}
	}
	start := time.Now()

	c := center.Coord()
	width := 360 / float64(n)
	sectors := make([]Sector, n)
	densities := make([]float64, n)
	heights := make([]float64, n)

	for i := range sectors {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "sector: classify")
		}
		from := float64(i) * 360 / float64(n)
		to := float64(i+1) * 360 / float64(n)
		steps := a.arcSteps
		if width > 90 {
			steps = int(math.Ceil(float64(steps) * width / 90))
		}
		w := geometry.NewWedge(c, radius, from, to, steps)

		s := Sector{Index: i, StartDeg: from, EndDeg: to}
		measure(&s, w, fs)
		sectors[i] = s
		densities[i] = s.Density
		heights[i] = s.AvgHeight
	}

	densityNorm, err := score.MinMaxNormalize(densities)
	if err != nil {
		return nil, eris.Wrap(err, "sector: normalize density")
	}
	heightNorm, err := score.MinMaxNormalize(heights)
	if err != nil {
		return nil, eris.Wrap(err, "sector: normalize height")
	}

	for i := range sectors {
		s := &sectors[i]
		s.DensityNorm = densityNorm[i]
		s.HeightNorm = heightNorm[i]
		s.Scores = scoreSector(s)
		s.Label = a.label(s.Scores)
	}

	res := &Result{
		ID:         uuid.NewString(),
		Center:     center,
		Radius:     radius,
		Sectors:    sectors,
		MergedArcs: Merge(sectors),
	}
	if len(fs.Buildings) == 0 {
		res.Warnings = append(res.Warnings, (&model.EmptyResultWarning{Layer: "building", Radius: radius}).Error())
	}
	if len(fs.LandCover) == 0 {
		res.Warnings = append(res.Warnings, (&model.EmptyResultWarning{Layer: "land-cover", Radius: radius}).Error())
	}

	zap.L().Debug("sector: classified view",
		zap.Int("sectors", n),
		zap.Int("arcs", len(res.MergedArcs)),
		zap.Int("buildings", len(fs.Buildings)),
		zap.Int("land_cover", len(fs.LandCover)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// measure fills the raw statistics of s from the features overlapping w.
func measure(s *Sector, w *geometry.Wedge, fs *model.FeatureSet) {
	area := w.Area()
	if area <= 0 {
		return
	}

	var green, water float64
	for _, lc := range fs.LandCover {
		switch lc.Category {
		case model.LandCoverGreen:
			green += w.IntersectionArea(lc.Polygon)
		case model.LandCoverWater:
			water += w.IntersectionArea(lc.Polygon)
		}
	}

	var footprint, weighted float64
	for _, b := range fs.Buildings {
		a := w.IntersectionArea(b.Polygon)
		if a <= 0 {
			continue
		}
		footprint += a
		weighted += a * math.Max(b.Height, 0)
	}

	s.GreenRatio = ratio(green, area)
	s.WaterRatio = ratio(water, area)
	s.Density = ratio(footprint, area)
	if footprint > 0 {
		s.AvgHeight = weighted / footprint
	}
}

// ratio clamps part/whole to [0, 1]; overlapping input polygons can push
// the raw sum past the whole.
func ratio(part, whole float64) float64 {
	return math.Max(0, math.Min(1, part/whole))
}

// scoreSector applies the fixed score model. A sector without any building
// footprint has no city view, whatever the normalization says.
func scoreSector(s *Sector) Scores {
	sc := Scores{
		Green: s.GreenRatio,
		Water: s.WaterRatio,
		City:  s.HeightNorm * s.DensityNorm,
		Open:  (1 - s.DensityNorm) * (1 - s.HeightNorm),
	}
	if s.Density == 0 {
		sc.City = 0
	}
	return sc
}

// label picks the highest score; exact ties go to the label ranked first.
func (a *Analyzer) label(sc Scores) Label {
	best := a.tieBreak[0]
	bestScore := sc.Of(best)
	for _, l := range a.tieBreak[1:] {
		if v := sc.Of(l); v > bestScore {
			best, bestScore = l, v
		}
	}
	return best
}
