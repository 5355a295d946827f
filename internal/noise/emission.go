package noise

import (
	"math"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/model"
)

// EmissionModel maps a road segment to its source level L0:
//
//	L0 = base + 10·log10(volume) + speedCoefficient·speed
//
// Segments without a volume or heavy-vehicle fraction fall back to their
// category's defaults. Unknown categories use "other".
type EmissionModel struct {
	speedCoefficient float64
	heavyFraction    float64
	categories       map[model.TrafficCategory]config.CategoryEmission
}

// NewEmissionModel builds an EmissionModel. Categories missing from cfg keep
// their built-in defaults.
func NewEmissionModel(cfg config.EmissionConfig) *EmissionModel {
	m := &EmissionModel{
		speedCoefficient: cfg.SpeedCoefficient,
		heavyFraction:    cfg.HeavyFraction,
		categories:       make(map[model.TrafficCategory]config.CategoryEmission),
	}
	for name, c := range config.DefaultEmissionCategories {
		m.categories[model.TrafficCategory(name)] = c
	}
	for name, c := range cfg.Categories {
		m.categories[model.TrafficCategory(name)] = c
	}
	return m
}

func (m *EmissionModel) category(c model.TrafficCategory) config.CategoryEmission {
	if e, ok := m.categories[c]; ok {
		return e
	}
	return m.categories[model.TrafficOther]
}

// Volume returns the hourly volume used for r.
func (m *EmissionModel) Volume(r *model.RoadSegment) float64 {
	if r.Volume > 0 {
		return r.Volume
	}
	return m.category(r.Category).Volume
}

// HeavyFraction returns the heavy-vehicle share used for r.
func (m *EmissionModel) HeavyFraction(r *model.RoadSegment) float64 {
	if r.HeavyFraction == nil {
		return m.heavyFraction
	}
	return math.Min(math.Max(*r.HeavyFraction, 0), 1)
}

// Level returns L0 for r in dB. It increases monotonically with volume.
func (m *EmissionModel) Level(r *model.RoadSegment) float64 {
	c := m.category(r.Category)
	vol := math.Max(m.Volume(r), 1)
	return c.BaseDB + 10*math.Log10(vol) + m.speedCoefficient*c.Speed
}
