package noise

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/site-analysis/internal/model"
)

// Cell is one grid cell of a noise map.
type Cell struct {
	Row      int     `json:"row" yaml:"row"`
	Col      int     `json:"col" yaml:"col"`
	X        float64 `json:"x" yaml:"x"`
	Y        float64 `json:"y" yaml:"y"`
	LevelDB  float64 `json:"level_db" yaml:"level_db"`
	Shielded bool    `json:"shielded,omitempty" yaml:"shielded,omitempty"`
}

// Result is the noise map of one site. Cells are stored row-major, row 0
// first. It is never mutated after Simulate returns.
type Result struct {
	ID         string           `json:"id" yaml:"id"`
	Center     model.Coordinate `json:"center" yaml:"center"`
	Radius     float64          `json:"radius" yaml:"radius"`
	Resolution float64          `json:"resolution" yaml:"resolution"`
	Bounds     Bounds           `json:"bounds" yaml:"bounds"`
	Rows       int              `json:"rows" yaml:"rows"`
	Cols       int              `json:"cols" yaml:"cols"`
	FloorDB    float64          `json:"floor_db" yaml:"floor_db"`
	Cells      []Cell           `json:"cells" yaml:"cells"`
	Warnings   []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// At returns the cell at (row, col), or nil when out of range.
func (r *Result) At(row, col int) *Cell {
	if row < 0 || col < 0 || row >= r.Rows || col >= r.Cols {
		return nil
	}
	return &r.Cells[row*r.Cols+col]
}

// Summary describes the level distribution of a noise map.
type Summary struct {
	MinDB    float64 `json:"min_db" yaml:"min_db"`
	MaxDB    float64 `json:"max_db" yaml:"max_db"`
	MeanDB   float64 `json:"mean_db" yaml:"mean_db"`
	Shielded int     `json:"shielded_cells" yaml:"shielded_cells"`
	Cells    int     `json:"cells" yaml:"cells"`
}

// Summary computes level statistics over all cells. The mean is the
// arithmetic mean of cell levels in dB.
func (r *Result) Summary() Summary {
	s := Summary{Cells: len(r.Cells)}
	if len(r.Cells) == 0 {
		return s
	}
	levels := make([]float64, len(r.Cells))
	for i, c := range r.Cells {
		levels[i] = c.LevelDB
		if c.Shielded {
			s.Shielded++
		}
	}
	s.MinDB = floats.Min(levels)
	s.MaxDB = floats.Max(levels)
	s.MeanDB = stat.Mean(levels, nil)
	return s
}
