package noise

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/site-analysis/internal/model"
)

// Bounds is an axis-aligned extent in the projected frame.
type Bounds struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MinY float64 `json:"min_y" yaml:"min_y"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MaxY float64 `json:"max_y" yaml:"max_y"`
}

// Grid is a uniform raster anchored at the south-west corner of the
// radius's bounding box. Row 0 is the southernmost row.
type Grid struct {
	Bounds     Bounds
	Resolution float64
	Rows       int
	Cols       int
}

// MaxCells is the largest grid a simulation will allocate, whatever the
// configured ceiling.
const MaxCells = math.MaxInt32

// GridSide returns the number of rows (and columns) needed to cover a square
// of side 2·radius at the given resolution. It is a float64 so oversized
// grids can be measured before any conversion to int.
func GridSide(radius, resolution float64) float64 {
	n := math.Ceil(2 * radius / resolution)
	if math.IsNaN(n) || n < 1 {
		return 1
	}
	return n
}

// CellCount returns the number of cells a simulation with these parameters
// would compute.
func CellCount(radius, resolution float64) float64 {
	n := GridSide(radius, resolution)
	return n * n
}

// NewGrid lays a grid over the bounding box of the disc around center.
// The last row and column may extend past the box when 2·radius is not a
// multiple of resolution. Non-finite parameters and grids above MaxCells
// are ConfigurationErrors.
func NewGrid(center model.Coordinate, radius, resolution float64) (Grid, error) {
	if !model.PositiveFinite(resolution) {
		return Grid{}, model.NewConfigurationError("grid_resolution", "must be positive and finite, got %v", resolution)
	}
	if !model.PositiveFinite(radius) {
		return Grid{}, model.NewConfigurationError("radius", "must be positive and finite, got %v", radius)
	}
	if cells := CellCount(radius, resolution); cells > MaxCells {
		return Grid{}, model.NewConfigurationError("grid_resolution",
			"grid of %.0f cells (radius %.1f m, resolution %.2f m) exceeds the maximum of %d", cells, radius, resolution, MaxCells)
	}
	n := int(GridSide(radius, resolution))
	minX, minY := center.X-radius, center.Y-radius
	return Grid{
		Bounds: Bounds{
			MinX: minX,
			MinY: minY,
			MaxX: minX + float64(n)*resolution,
			MaxY: minY + float64(n)*resolution,
		},
		Resolution: resolution,
		Rows:       n,
		Cols:       n,
	}, nil
}

// CellCount returns Rows·Cols.
func (g Grid) CellCount() int {
	return g.Rows * g.Cols
}

// CellCenter returns the center of cell (row, col).
func (g Grid) CellCenter(row, col int) geom.Coord {
	return geom.Coord{
		g.Bounds.MinX + (float64(col)+0.5)*g.Resolution,
		g.Bounds.MinY + (float64(row)+0.5)*g.Resolution,
	}
}
