package geometry

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"
)

// Distance returns the Euclidean distance between a and b.
func Distance(a, b geom.Coord) float64 {
	return math.Hypot(b.X()-a.X(), b.Y()-a.Y())
}

// NearestPointOnSegment returns the point of segment ab closest to p.
func NearestPointOnSegment(p, a, b geom.Coord) geom.Coord {
	dx, dy := b.X()-a.X(), b.Y()-a.Y()
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return geom.Coord{a.X(), a.Y()}
	}
	t := ((p.X()-a.X())*dx + (p.Y()-a.Y())*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return geom.Coord{a.X() + t*dx, a.Y() + t*dy}
}

// NearestPointOnLineString returns the point of ls closest to p and the
// distance to it. An empty line string yields +Inf.
func NearestPointOnLineString(ls *geom.LineString, p geom.Coord) (geom.Coord, float64) {
	best := math.Inf(1)
	var nearest geom.Coord
	if ls == nil {
		return nearest, best
	}
	coords := ls.Coords()
	if len(coords) == 1 {
		return coords[0], Distance(p, coords[0])
	}
	for i := 1; i < len(coords); i++ {
		q := NearestPointOnSegment(p, coords[i-1], coords[i])
		if d := Distance(p, q); d < best {
			best, nearest = d, q
		}
	}
	return nearest, best
}

// ObstructedLength returns how much of segment ab runs inside p.
func ObstructedLength(p *geom.Polygon, a, b geom.Coord) float64 {
	length := Distance(a, b)
	if p == nil || p.NumLinearRings() == 0 || length == 0 {
		return 0
	}
	pb := p.Bounds()
	if math.Max(a.X(), b.X()) < pb.Min(0) || math.Min(a.X(), b.X()) > pb.Max(0) ||
		math.Max(a.Y(), b.Y()) < pb.Min(1) || math.Min(a.Y(), b.Y()) > pb.Max(1) {
		return 0
	}

	ts := []float64{0, 1}
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i).Coords()
		for j := 1; j < len(ring); j++ {
			if t, ok := segmentCrossing(a, b, ring[j-1], ring[j]); ok {
				ts = append(ts, t)
			}
		}
	}
	sort.Float64s(ts)

	var inside float64
	for i := 1; i < len(ts); i++ {
		t0, t1 := ts[i-1], ts[i]
		if t1-t0 <= 1e-12 {
			continue
		}
		tm := (t0 + t1) / 2
		mid := geom.Coord{a.X() + tm*(b.X()-a.X()), a.Y() + tm*(b.Y()-a.Y())}
		if ContainsPoint(p, mid) {
			inside += t1 - t0
		}
	}
	return inside * length
}

// segmentCrossing returns the parameter t along ab where it meets segment
// cd. Parallel segments report no crossing.
func segmentCrossing(a, b, c, d geom.Coord) (float64, bool) {
	rx, ry := b.X()-a.X(), b.Y()-a.Y()
	sx, sy := d.X()-c.X(), d.Y()-c.Y()
	denom := rx*sy - ry*sx
	if denom == 0 {
		return 0, false
	}
	qx, qy := c.X()-a.X(), c.Y()-a.Y()
	t := (qx*sy - qy*sx) / denom
	u := (qx*ry - qy*rx) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}
