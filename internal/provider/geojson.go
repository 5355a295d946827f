package provider

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/model"
)

// LoadGeoJSON reads the building, land-cover, and road FeatureCollections
// named in cfg.
func LoadGeoJSON(cfg config.GeometryConfig) (*model.Dataset, error) {
	return loadLayers(cfg, readGeoJSON)
}

func readGeoJSON(path string) ([]record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: read geojson %s", path)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "provider: decode geojson %s", path)
	}

	recs := make([]record, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		recs = append(recs, newRecord(f.ID, f.Geometry, stringProps(f.Properties)))
	}
	return recs, nil
}
