package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// ContainsPoint reports whether pt lies inside p's outer ring and outside
// all of its holes. Points exactly on an edge may fall either way.
func ContainsPoint(p *geom.Polygon, pt geom.Coord) bool {
	if p == nil || p.NumLinearRings() == 0 {
		return false
	}
	b := p.Bounds()
	if pt.X() < b.Min(0) || pt.X() > b.Max(0) || pt.Y() < b.Min(1) || pt.Y() > b.Max(1) {
		return false
	}
	if !ringContains(p.LinearRing(0).Coords(), pt) {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if ringContains(p.LinearRing(i).Coords(), pt) {
			return false
		}
	}
	return true
}

// ringContains is an even-odd ray cast towards +x.
func ringContains(ring []geom.Coord, pt geom.Coord) bool {
	ring = openRing(ring)
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		yi, yj := ring[i].Y(), ring[j].Y()
		if (yi > pt.Y()) == (yj > pt.Y()) {
			continue
		}
		x := ring[i].X() + (pt.Y()-yi)*(ring[j].X()-ring[i].X())/(yj-yi)
		if pt.X() < x {
			inside = !inside
		}
	}
	return inside
}

// DistanceToBoundary returns the distance from pt to the nearest edge of
// any ring of p.
func DistanceToBoundary(p *geom.Polygon, pt geom.Coord) float64 {
	best := math.Inf(1)
	if p == nil {
		return best
	}
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i).Coords()
		for j := 1; j < len(ring); j++ {
			if d := xy.DistanceFromPointToLine(pt, ring[j-1], ring[j]); d < best {
				best = d
			}
		}
	}
	return best
}

// PolygonIntersectsDisc reports whether p shares any point with the disc of
// radius r around c.
func PolygonIntersectsDisc(p *geom.Polygon, c geom.Coord, r float64) bool {
	if p == nil || p.NumLinearRings() == 0 || r < 0 {
		return false
	}
	if !p.Bounds().Overlaps(geom.XY, DiscBounds(c, r)) {
		return false
	}
	if ContainsPoint(p, c) {
		return true
	}
	return DistanceToBoundary(p, c) <= r
}

// LineStringIntersectsDisc reports whether ls passes within r of c.
func LineStringIntersectsDisc(ls *geom.LineString, c geom.Coord, r float64) bool {
	if ls == nil || ls.NumCoords() == 0 || r < 0 {
		return false
	}
	if !ls.Bounds().Overlaps(geom.XY, DiscBounds(c, r)) {
		return false
	}
	_, d := NearestPointOnLineString(ls, c)
	return d <= r
}
