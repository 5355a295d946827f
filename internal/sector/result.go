package sector

import (
	"github.com/sells-group/site-analysis/internal/model"
)

// Scores is the per-label score vector of one sector.
type Scores struct {
	Green float64 `json:"green" yaml:"green"`
	Water float64 `json:"water" yaml:"water"`
	City  float64 `json:"city" yaml:"city"`
	Open  float64 `json:"open" yaml:"open"`
}

// Of returns the score of label l.
func (s Scores) Of(l Label) float64 {
	switch l {
	case Green:
		return s.Green
	case Water:
		return s.Water
	case City:
		return s.City
	case Open:
		return s.Open
	}
	return 0
}

// Sector is one angular wedge [StartDeg, EndDeg) of the view. Angles are
// measured counter-clockwise from east.
type Sector struct {
	Index       int     `json:"index" yaml:"index"`
	StartDeg    float64 `json:"start_deg" yaml:"start_deg"`
	EndDeg      float64 `json:"end_deg" yaml:"end_deg"`
	GreenRatio  float64 `json:"green_ratio" yaml:"green_ratio"`
	WaterRatio  float64 `json:"water_ratio" yaml:"water_ratio"`
	Density     float64 `json:"density" yaml:"density"`
	AvgHeight   float64 `json:"avg_height" yaml:"avg_height"`
	DensityNorm float64 `json:"density_norm" yaml:"density_norm"`
	HeightNorm  float64 `json:"height_norm" yaml:"height_norm"`
	Scores      Scores  `json:"scores" yaml:"scores"`
	Label       Label   `json:"label" yaml:"label"`
}

// Width returns the angular width in degrees.
func (s Sector) Width() float64 {
	return s.EndDeg - s.StartDeg
}

// MergedArc is a maximal run of adjacent sectors sharing a label. An arc
// that crosses the 0° boundary has StartDeg > EndDeg.
type MergedArc struct {
	StartDeg  float64 `json:"start_deg" yaml:"start_deg"`
	EndDeg    float64 `json:"end_deg" yaml:"end_deg"`
	Label     Label   `json:"label" yaml:"label"`
	MeanScore float64 `json:"mean_score" yaml:"mean_score"`
	Sectors   []int   `json:"sectors" yaml:"sectors"`
}

// Width returns the angular width in degrees, accounting for wrap-around.
// A single arc covering every sector is 360° wide.
func (a MergedArc) Width() float64 {
	w := a.EndDeg - a.StartDeg
	if w <= 0 {
		w += 360
	}
	return w
}

// Result is the view classification of one site. It is never mutated after
// Classify returns.
type Result struct {
	ID         string           `json:"id" yaml:"id"`
	Center     model.Coordinate `json:"center" yaml:"center"`
	Radius     float64          `json:"radius" yaml:"radius"`
	Sectors    []Sector         `json:"sectors" yaml:"sectors"`
	MergedArcs []MergedArc      `json:"merged_arcs" yaml:"merged_arcs"`
	Warnings   []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}
