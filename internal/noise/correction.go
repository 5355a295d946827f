package noise

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/geometry"
	"github.com/sells-group/site-analysis/internal/model"
)

// Correction names, in application order.
const (
	HeavyVehicleCorrection     = "heavy_vehicle"
	GroundAbsorptionCorrection = "ground_absorption"
	BarrierCorrection          = "barrier"
	ReflectionCorrection       = "reflection"
)

// CorrectionOrder is the fixed order corrections run in. Configuration can
// switch individual corrections off but never reorder them.
var CorrectionOrder = []string{
	HeavyVehicleCorrection,
	GroundAbsorptionCorrection,
	BarrierCorrection,
	ReflectionCorrection,
}

// Path is one source-to-receiver propagation path: from the nearest point
// of a road segment to a grid cell center.
type Path struct {
	Source        geom.Coord
	Receiver      geom.Coord
	Distance      float64 // clamped to the minimum distance
	HeavyFraction float64
	Shielded      bool // receiver lies inside a building
	NearFacade    bool // receiver lies within the reflection threshold of a facade
}

// Correction adjusts a running level for one path. Implementations are pure.
type Correction interface {
	Name() string
	Apply(level float64, p *Path) float64
}

// Obstacles answers the building lookups barrier and reflection need.
// *spatial.Index satisfies it.
type Obstacles interface {
	BuildingsAlong(a, b geom.Coord) []model.BuildingFeature
	BuildingsNear(p geom.Coord, d float64) []model.BuildingFeature
}

// Propagate applies free-field spreading loss: L0 − 20·log10(r).
func Propagate(l0, r float64) float64 {
	return l0 - 20*math.Log10(r)
}

type heavyVehicle struct{ coefficient float64 }

// HeavyVehicle adds 10·log10(1 + coefficient·p) for heavy-vehicle share p.
func HeavyVehicle(coefficient float64) Correction {
	return heavyVehicle{coefficient: coefficient}
}

func (heavyVehicle) Name() string { return HeavyVehicleCorrection }

func (c heavyVehicle) Apply(level float64, p *Path) float64 {
	if p.HeavyFraction <= 0 {
		return level
	}
	return level + 10*math.Log10(1+c.coefficient*p.HeavyFraction)
}

type groundAbsorption struct{ g float64 }

// GroundAbsorption subtracts g·5·log10(r), g being the share of soft ground.
func GroundAbsorption(g float64) Correction {
	return groundAbsorption{g: g}
}

func (groundAbsorption) Name() string { return GroundAbsorptionCorrection }

func (c groundAbsorption) Apply(level float64, p *Path) float64 {
	return level - c.g*5*math.Log10(math.Max(p.Distance, 1))
}

type barrier struct {
	constant  float64
	binary    bool
	obstacles Obstacles
}

// Barrier subtracts up to constant dB when buildings block the straight
// path. Graduated mode scales the constant by the obstructed share of the
// path; binary mode applies all of it on any obstruction.
func Barrier(constant float64, binary bool, obstacles Obstacles) Correction {
	return barrier{constant: constant, binary: binary, obstacles: obstacles}
}

func (barrier) Name() string { return BarrierCorrection }

func (c barrier) Apply(level float64, p *Path) float64 {
	if c.obstacles == nil {
		return level
	}
	f := ObstructedFraction(c.obstacles, p.Source, p.Receiver)
	if f <= 0 {
		return level
	}
	if c.binary {
		return level - c.constant
	}
	return level - c.constant*f
}

// ObstructedFraction returns the share of segment ab that runs through
// buildings, in [0, 1].
func ObstructedFraction(obstacles Obstacles, a, b geom.Coord) float64 {
	length := geometry.Distance(a, b)
	if length == 0 {
		return 0
	}
	var blocked float64
	for _, bld := range obstacles.BuildingsAlong(a, b) {
		blocked += geometry.ObstructedLength(bld.Polygon, a, b)
	}
	return math.Min(blocked/length, 1)
}

type reflection struct{ constant float64 }

// Reflection adds constant dB to exposed receivers near a building facade.
// The facade test depends only on the receiver, so the caller resolves it
// once per cell into Path.NearFacade.
func Reflection(constant float64) Correction {
	return reflection{constant: constant}
}

func (reflection) Name() string { return ReflectionCorrection }

func (c reflection) Apply(level float64, p *Path) float64 {
	if p.Shielded || !p.NearFacade {
		return level
	}
	return level + c.constant
}

// NearFacade reports whether any building edge lies within d of pt.
func NearFacade(obstacles Obstacles, pt geom.Coord, d float64) bool {
	for _, b := range obstacles.BuildingsNear(pt, d) {
		if geometry.DistanceToBoundary(b.Polygon, pt) <= d {
			return true
		}
	}
	return false
}

// Pipeline builds the enabled corrections in CorrectionOrder. Barrier
// geometry comes from obstacles.
func Pipeline(cfg config.NoiseConfig, obstacles Obstacles) []Correction {
	enabled := make(map[string]bool, len(cfg.Corrections))
	for _, name := range cfg.Corrections {
		enabled[name] = true
	}
	var out []Correction
	for _, name := range CorrectionOrder {
		if !enabled[name] {
			continue
		}
		switch name {
		case HeavyVehicleCorrection:
			out = append(out, HeavyVehicle(cfg.HeavyVehicleCoefficient))
		case GroundAbsorptionCorrection:
			out = append(out, GroundAbsorption(cfg.GroundAbsorptionCoefficient))
		case BarrierCorrection:
			out = append(out, Barrier(cfg.BarrierAttenuationConstant, cfg.BarrierMode == config.BarrierBinary, obstacles))
		case ReflectionCorrection:
			out = append(out, Reflection(cfg.ReflectionCorrectionConstant))
		}
	}
	return out
}
