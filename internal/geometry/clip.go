// Package geometry provides the planar operations the analysis engines need
// on top of go-geom: convex clipping, containment, and segment distances.
package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

// ClipRing clips subject against a convex, counter-clockwise clip ring
// (Sutherland-Hodgman). Both rings may be given open or closed; the result
// is open. The subject may be concave: the clipped area is exact even when
// the output contains degenerate zero-width bridges.
func ClipRing(subject, clip []geom.Coord) []geom.Coord {
	output := openRing(subject)
	clip = openRing(clip)
	for i := range clip {
		if len(output) == 0 {
			break
		}
		a, b := clip[i], clip[(i+1)%len(clip)]
		input := output
		output = make([]geom.Coord, 0, len(input)+2)
		s := input[len(input)-1]
		for _, e := range input {
			eIn, sIn := leftOf(a, b, e), leftOf(a, b, s)
			switch {
			case eIn && !sIn:
				output = append(output, crossing(a, b, s, e), e)
			case eIn:
				output = append(output, e)
			case sIn:
				output = append(output, crossing(a, b, s, e))
			}
			s = e
		}
	}
	return output
}

// ClippedArea returns the area of p inside the convex polygon clip. Holes
// of p are subtracted.
func ClippedArea(p, clip *geom.Polygon) float64 {
	if p == nil || clip == nil || p.NumLinearRings() == 0 {
		return 0
	}
	if !p.Bounds().Overlaps(geom.XY, clip.Bounds()) {
		return 0
	}
	clipRing := clip.LinearRing(0).Coords()
	var area float64
	for i := 0; i < p.NumLinearRings(); i++ {
		a := RingArea(ClipRing(p.LinearRing(i).Coords(), clipRing))
		if i == 0 {
			area += a
		} else {
			area -= a
		}
	}
	return math.Max(area, 0)
}

// RingArea returns the unsigned area enclosed by a ring.
func RingArea(ring []geom.Coord) float64 {
	ring = openRing(ring)
	if len(ring) < 3 {
		return 0
	}
	closed := make([]geom.Coord, 0, len(ring)+1)
	closed = append(closed, ring...)
	closed = append(closed, ring[0])
	return math.Abs(geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{closed}).Area())
}

// SignedRingArea returns the shoelace area of a ring: positive for
// counter-clockwise rings, negative for clockwise.
func SignedRingArea(ring []geom.Coord) float64 {
	ring = openRing(ring)
	var sum float64
	for i := range ring {
		j := (i + 1) % len(ring)
		sum += ring[i].X()*ring[j].Y() - ring[j].X()*ring[i].Y()
	}
	return sum / 2
}

// PolygonArea returns the area of p with holes subtracted.
func PolygonArea(p *geom.Polygon) float64 {
	if p == nil {
		return 0
	}
	var area float64
	for i := 0; i < p.NumLinearRings(); i++ {
		a := RingArea(p.LinearRing(i).Coords())
		if i == 0 {
			area += a
		} else {
			area -= a
		}
	}
	return math.Max(area, 0)
}

// openRing drops the closing coordinate of a closed ring.
func openRing(ring []geom.Coord) []geom.Coord {
	n := len(ring)
	if n > 1 && ring[0].X() == ring[n-1].X() && ring[0].Y() == ring[n-1].Y() {
		return ring[:n-1]
	}
	return ring
}

// leftOf reports whether p lies on or to the left of the directed line a→b.
func leftOf(a, b, p geom.Coord) bool {
	return cross(a, b, p) >= 0
}

func cross(a, b, p geom.Coord) float64 {
	return (b.X()-a.X())*(p.Y()-a.Y()) - (b.Y()-a.Y())*(p.X()-a.X())
}

// crossing returns where segment s→e crosses the infinite line a→b. The
// caller guarantees s and e lie on opposite sides.
func crossing(a, b, s, e geom.Coord) geom.Coord {
	ds, de := cross(a, b, s), cross(a, b, e)
	t := ds / (ds - de)
	return geom.Coord{s.X() + t*(e.X()-s.X()), s.Y() + t*(e.Y()-s.Y())}
}
