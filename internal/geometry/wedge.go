package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

// maxPartSpan keeps every wedge part convex.
const maxPartSpan = 90.0

// Wedge is a circular sector around a center, spanning StartDeg to EndDeg
// counter-clockwise with 0° pointing along +x. It is approximated by convex
// polygon parts of at most 90° each, so a single-sector wedge covering the
// full circle still clips correctly.
type Wedge struct {
	Center   geom.Coord
	Radius   float64
	StartDeg float64
	EndDeg   float64

	parts []*geom.Polygon
	area  float64
}

// NewWedge builds a wedge. arcSteps is the number of arc vertices used for
// the whole wedge; each part gets its share, with at least one segment.
func NewWedge(center geom.Coord, radius, startDeg, endDeg float64, arcSteps int) *Wedge {
	w := &Wedge{Center: center, Radius: radius, StartDeg: startDeg, EndDeg: endDeg}
	span := endDeg - startDeg
	if radius <= 0 || span <= 0 {
		return w
	}
	if arcSteps < 1 {
		arcSteps = 1
	}

	nParts := int(math.Ceil(span / maxPartSpan))
	partSpan := span / float64(nParts)
	steps := int(math.Ceil(float64(arcSteps) / float64(nParts)))
	if steps < 1 {
		steps = 1
	}

	for p := 0; p < nParts; p++ {
		from := startDeg + float64(p)*partSpan
		to := from + partSpan
		if p == nParts-1 {
			to = endDeg
		}
		ring := make([]geom.Coord, 0, steps+3)
		ring = append(ring, geom.Coord{center.X(), center.Y()})
		for i := 0; i <= steps; i++ {
			ring = append(ring, PointAt(center, radius, from+(to-from)*float64(i)/float64(steps)))
		}
		ring = append(ring, geom.Coord{center.X(), center.Y()})

		poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{ring})
		w.parts = append(w.parts, poly)
		w.area += RingArea(ring)
	}
	return w
}

// Parts returns the convex polygons that make up the wedge.
func (w *Wedge) Parts() []*geom.Polygon {
	return w.parts
}

// Area returns the area of the polygonal wedge.
func (w *Wedge) Area() float64 {
	return w.area
}

// IntersectionArea returns the area of p inside the wedge.
func (w *Wedge) IntersectionArea(p *geom.Polygon) float64 {
	var area float64
	for _, part := range w.parts {
		area += ClippedArea(p, part)
	}
	return area
}

// PointAt returns the point at distance r from c in direction deg.
func PointAt(c geom.Coord, r, deg float64) geom.Coord {
	rad := deg * math.Pi / 180
	return geom.Coord{c.X() + r*math.Cos(rad), c.Y() + r*math.Sin(rad)}
}

// DiscBounds returns the axis-aligned bounds of the disc of radius r around c.
func DiscBounds(c geom.Coord, r float64) *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(c.X()-r, c.Y()-r, c.X()+r, c.Y()+r)
}
