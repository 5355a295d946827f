// Package spatial indexes building, land-cover, and road geometry for fast
// radius and bounding-box queries.
package spatial

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/site-analysis/internal/geometry"
	"github.com/sells-group/site-analysis/internal/model"
)

// DefaultCellSize is the bucket edge length in meters.
const DefaultCellSize = 100.0

// Index is a read-only view over a Dataset. Every feature is registered in
// the grid buckets its bounding box touches; queries gather candidates from
// the buckets they touch, prefilter by bounding box, then run an exact
// intersection test. An Index is safe for concurrent use.
type Index struct {
	dataset   *model.Dataset
	buildings *bucketGrid
	landCover *bucketGrid
	roads     *bucketGrid
}

type bucketKey struct {
	col, row int
}

type bucketGrid struct {
	cellSize float64
	buckets  map[bucketKey][]int
	bounds   []*geom.Bounds
}

// NewIndex builds an index over ds. A non-positive cellSize selects
// DefaultCellSize.
func NewIndex(ds *model.Dataset, cellSize float64) *Index {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	if ds == nil {
		ds = model.NewDataset(nil, nil, nil)
	}
	ix := &Index{
		dataset:   ds,
		buildings: newBucketGrid(cellSize, len(ds.Buildings())),
		landCover: newBucketGrid(cellSize, len(ds.LandCover())),
		roads:     newBucketGrid(cellSize, len(ds.Roads())),
	}
	for _, f := range ds.Buildings() {
		ix.buildings.insert(f.Polygon.Bounds())
	}
	for _, f := range ds.LandCover() {
		ix.landCover.insert(f.Polygon.Bounds())
	}
	for _, f := range ds.Roads() {
		ix.roads.insert(f.Line.Bounds())
	}
	return ix
}

// Dataset returns the indexed dataset.
func (ix *Index) Dataset() *model.Dataset {
	return ix.dataset
}

// Query returns every feature whose geometry intersects the disc of the
// given radius around center. A negative radius yields an empty set.
func (ix *Index) Query(center model.Coordinate, radius float64) model.FeatureSet {
	var fs model.FeatureSet
	if radius < 0 || !center.Finite() {
		return fs
	}
	c := center.Coord()
	disc := geometry.DiscBounds(c, radius)

	buildings := ix.dataset.Buildings()
	for _, i := range ix.buildings.candidates(disc) {
		if geometry.PolygonIntersectsDisc(buildings[i].Polygon, c, radius) {
			fs.Buildings = append(fs.Buildings, buildings[i])
		}
	}
	landCover := ix.dataset.LandCover()
	for _, i := range ix.landCover.candidates(disc) {
		if geometry.PolygonIntersectsDisc(landCover[i].Polygon, c, radius) {
			fs.LandCover = append(fs.LandCover, landCover[i])
		}
	}
	roads := ix.dataset.Roads()
	for _, i := range ix.roads.candidates(disc) {
		if geometry.LineStringIntersectsDisc(roads[i].Line, c, radius) {
			fs.Roads = append(fs.Roads, roads[i])
		}
	}
	return fs
}

// BuildingsInBounds returns buildings whose bounding box overlaps b. No
// exact test is applied; callers refine the candidates themselves.
func (ix *Index) BuildingsInBounds(b *geom.Bounds) []model.BuildingFeature {
	buildings := ix.dataset.Buildings()
	ids := ix.buildings.candidates(b)
	out := make([]model.BuildingFeature, 0, len(ids))
	for _, i := range ids {
		out = append(out, buildings[i])
	}
	return out
}

// BuildingsAlong returns buildings whose bounding box overlaps the bounding
// box of segment ab.
func (ix *Index) BuildingsAlong(a, b geom.Coord) []model.BuildingFeature {
	return ix.BuildingsInBounds(geom.NewBounds(geom.XY).Set(
		math.Min(a.X(), b.X()), math.Min(a.Y(), b.Y()),
		math.Max(a.X(), b.X()), math.Max(a.Y(), b.Y()),
	))
}

// BuildingsNear returns buildings whose bounding box lies within d of p.
func (ix *Index) BuildingsNear(p geom.Coord, d float64) []model.BuildingFeature {
	return ix.BuildingsInBounds(geometry.DiscBounds(p, d))
}

func newBucketGrid(cellSize float64, n int) *bucketGrid {
	return &bucketGrid{
		cellSize: cellSize,
		buckets:  make(map[bucketKey][]int),
		bounds:   make([]*geom.Bounds, 0, n),
	}
}

func (g *bucketGrid) insert(b *geom.Bounds) {
	id := len(g.bounds)
	g.bounds = append(g.bounds, b)
	c0, r0, c1, r1 := g.span(b)
	for col := c0; col <= c1; col++ {
		for row := r0; row <= r1; row++ {
			k := bucketKey{col, row}
			g.buckets[k] = append(g.buckets[k], id)
		}
	}
}

// candidates returns the ids of features whose bounds overlap b, ascending.
func (g *bucketGrid) candidates(b *geom.Bounds) []int {
	if len(g.bounds) == 0 {
		return nil
	}
	c0, r0, c1, r1 := g.span(b)
	seen := make(map[int]struct{})
	var ids []int
	for col := c0; col <= c1; col++ {
		for row := r0; row <= r1; row++ {
			for _, id := range g.buckets[bucketKey{col, row}] {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				if g.bounds[id].Overlaps(geom.XY, b) {
					ids = append(ids, id)
				}
			}
		}
	}
	sort.Ints(ids)
	return ids
}

func (g *bucketGrid) span(b *geom.Bounds) (c0, r0, c1, r1 int) {
	c0 = int(math.Floor(b.Min(0) / g.cellSize))
	r0 = int(math.Floor(b.Min(1) / g.cellSize))
	c1 = int(math.Floor(b.Max(0) / g.cellSize))
	r1 = int(math.Floor(b.Max(1) / g.cellSize))
	return c0, r0, c1, r1
}
