package provider

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/geometry"
	"github.com/sells-group/site-analysis/internal/model"
)

// LoadShapefile reads the building, land-cover, and road shapefiles named
// in cfg.
func LoadShapefile(cfg config.GeometryConfig) (*model.Dataset, error) {
	return loadLayers(cfg, readShapefile)
}

func readShapefile(path string) ([]record, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var recs []record
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		g := shapeGeometry(shape)
		if g == nil {
			skipped++
			continue
		}
		props := make(map[string]string, len(names))
		for i, name := range names {
			if v := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00")); v != "" {
				props[name] = v
			}
		}
		recs = append(recs, newRecord("", g, props))
	}

	if skipped > 0 {
		zap.L().Debug("provider: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return recs, nil
}

// shapeGeometry converts a shapefile shape. Unsupported shapes give nil.
func shapeGeometry(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Polygon:
		return ringsToMultiPolygon(splitParts(s.Parts, s.Points))
	case *shp.PolygonZ:
		return ringsToMultiPolygon(splitParts(s.Parts, s.Points))
	case *shp.PolyLine:
		return partsToMultiLineString(splitParts(s.Parts, s.Points))
	case *shp.PolyLineZ:
		return partsToMultiLineString(splitParts(s.Parts, s.Points))
	default:
		return nil
	}
}

// splitParts cuts the point list at each part offset.
func splitParts(parts []int32, points []shp.Point) [][]geom.Coord {
	out := make([][]geom.Coord, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start >= end || int(end) > len(points) {
			continue
		}
		coords := make([]geom.Coord, 0, end-start)
		for _, p := range points[start:end] {
			coords = append(coords, geom.Coord{p.X, p.Y})
		}
		out = append(out, coords)
	}
	return out
}

// ringsToMultiPolygon groups shapefile rings into polygons. Clockwise rings
// are outer boundaries; each counter-clockwise ring becomes a hole of the
// first outer ring containing it.
func ringsToMultiPolygon(rings [][]geom.Coord) geom.T {
	var outers, holes [][]geom.Coord
	for _, r := range rings {
		if len(r) < 4 {
			continue
		}
		if geometry.SignedRingArea(r) < 0 {
			outers = append(outers, r)
		} else {
			holes = append(holes, r)
		}
	}
	if len(outers) == 0 {
		outers, holes = holes, nil
	}

	polys := make([]*geom.Polygon, 0, len(outers))
	for _, r := range outers {
		p, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{r})
		if err != nil {
			zap.L().Debug("provider: skipping malformed shapefile ring", zap.Error(err))
			continue
		}
		polys = append(polys, p)
	}

	for _, h := range holes {
		placed := false
		for _, p := range polys {
			if !geometry.ContainsPoint(p, h[0]) {
				continue
			}
			ring, err := geom.NewLinearRing(geom.XY).SetCoords(h)
			if err == nil {
				err = p.Push(ring)
			}
			if err != nil {
				zap.L().Debug("provider: skipping malformed shapefile hole", zap.Error(err))
			}
			placed = true
			break
		}
		if !placed {
			if p, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{h}); err == nil {
				polys = append(polys, p)
			}
		}
	}

	if len(polys) == 0 {
		return nil
	}
	mp := geom.NewMultiPolygon(geom.XY)
	for _, p := range polys {
		if err := mp.Push(p); err != nil {
			zap.L().Debug("provider: skipping malformed shapefile polygon", zap.Error(err))
		}
	}
	return mp
}

func partsToMultiLineString(parts [][]geom.Coord) geom.T {
	mls := geom.NewMultiLineString(geom.XY)
	for _, coords := range parts {
		if len(coords) < 2 {
			continue
		}
		ls, err := geom.NewLineString(geom.XY).SetCoords(coords)
		if err == nil {
			err = mls.Push(ls)
		}
		if err != nil {
			zap.L().Debug("provider: skipping malformed shapefile line", zap.Error(err))
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}
