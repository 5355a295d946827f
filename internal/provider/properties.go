package provider

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/model"
)

// metersPerLevel converts building:levels to a height when no height is
// recorded.
const metersPerLevel = 3.0

// record is one feature read from a source layer. Property keys are lower
// case.
type record struct {
	id    string
	geom  geom.T
	props map[string]string
}

func newRecord(id string, g geom.T, props map[string]string) record {
	lower := make(map[string]string, len(props))
	for k, v := range props {
		lower[strings.ToLower(k)] = strings.TrimSpace(v)
	}
	return record{id: id, geom: g, props: lower}
}

// Options controls how records become features.
type Options struct {
	HeightField       string
	MinBuildingHeight float64
}

func optionsFrom(cfg config.GeometryConfig) Options {
	return Options{HeightField: cfg.HeightField, MinBuildingHeight: cfg.MinBuildingHeight}
}

func buildingsFrom(recs []record, opts Options) []model.BuildingFeature {
	out := make([]model.BuildingFeature, 0, len(recs))
	for i, r := range recs {
		h := height(r.props, opts.HeightField)
		if h < opts.MinBuildingHeight {
			continue
		}
		polys := polygons(r.geom)
		for j, p := range polys {
			out = append(out, model.BuildingFeature{
				ID:      featureID(r, "building", i, j, len(polys)),
				Polygon: p,
				Height:  h,
			})
		}
	}
	return out
}

func landCoverFrom(recs []record) []model.LandCoverFeature {
	out := make([]model.LandCoverFeature, 0, len(recs))
	for i, r := range recs {
		cat := model.LandCoverCategoryFromTags(r.props)
		polys := polygons(r.geom)
		for j, p := range polys {
			out = append(out, model.LandCoverFeature{
				ID:       featureID(r, "landcover", i, j, len(polys)),
				Polygon:  p,
				Category: cat,
			})
		}
	}
	return out
}

func roadsFrom(recs []record) []model.RoadSegment {
	out := make([]model.RoadSegment, 0, len(recs))
	for i, r := range recs {
		class := r.props["category"]
		if class == "" {
			class = r.props["highway"]
		}
		cat := model.TrafficCategoryFromTag(class)
		volume := nonNegative(parseNumber(r.props["volume"]))
		var heavy *float64
		if f := parseNumber(r.props["heavy_fraction"]); !math.IsNaN(f) {
			heavy = model.Float(math.Min(nonNegative(f), 1))
		}

		ls := lines(r.geom)
		for j, l := range ls {
			out = append(out, model.RoadSegment{
				ID:            featureID(r, "road", i, j, len(ls)),
				Line:          l,
				Category:      cat,
				Volume:        volume,
				HeavyFraction: heavy,
			})
		}
	}
	return out
}

// height reads the building height in meters from field, then "height",
// then "building:levels". Missing or invalid values give 0.
func height(props map[string]string, field string) float64 {
	if field != "" {
		if v, ok := props[strings.ToLower(field)]; ok && v != "" {
			return nonNegative(parseNumber(v))
		}
	}
	if v := props["height"]; v != "" {
		return nonNegative(parseNumber(v))
	}
	if v := props["building:levels"]; v != "" {
		return nonNegative(parseNumber(v)) * metersPerLevel
	}
	return 0
}

// parseNumber accepts values like "12.5" and "12.5 m". Unparseable input
// gives NaN.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "m"))
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func nonNegative(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// featureID prefers the record's own identifier, then common id attributes,
// then the record's position in its layer. Parts of multi-geometries get a
// "#n" suffix.
func featureID(r record, layer string, i, part, parts int) string {
	id := r.id
	for _, key := range []string{"id", "osm_id", "fid"} {
		if id != "" {
			break
		}
		id = r.props[key]
	}
	if id == "" {
		id = fmt.Sprintf("%s/%d", layer, i)
	}
	if parts > 1 {
		id = fmt.Sprintf("%s#%d", id, part)
	}
	return id
}

// polygons flattens polygonal geometry. Other geometry types give nil.
func polygons(g geom.T) []*geom.Polygon {
	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() > 0 {
			return []*geom.Polygon{t}
		}
	case *geom.MultiPolygon:
		out := make([]*geom.Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			if p := t.Polygon(i); p.NumLinearRings() > 0 {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

// lines flattens linear geometry. Other geometry types give nil.
func lines(g geom.T) []*geom.LineString {
	switch t := g.(type) {
	case *geom.LineString:
		if t.NumCoords() >= 2 {
			return []*geom.LineString{t}
		}
	case *geom.MultiLineString:
		out := make([]*geom.LineString, 0, t.NumLineStrings())
		for i := 0; i < t.NumLineStrings(); i++ {
			if l := t.LineString(i); l.NumCoords() >= 2 {
				out = append(out, l)
			}
		}
		return out
	}
	return nil
}

// stringProps renders decoded JSON properties as strings.
func stringProps(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case nil:
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
