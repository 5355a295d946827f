package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const buildingsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "tower",
     "geometry": {"type": "Polygon", "coordinates": [[[10,10],[20,10],[20,20],[10,20],[10,10]]]},
     "properties": {"HEIGHT_M": 42.5}},
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[-20,-20],[-15,-20],[-15,-15],[-20,-15],[-20,-20]]]},
     "properties": {"building:levels": "2"}},
    {"type": "Feature", "id": "far",
     "geometry": {"type": "Polygon", "coordinates": [[[900,900],[910,900],[910,910],[900,910],[900,900]]]},
     "properties": {"height": "8 m"}}
  ]
}`

const landCoverGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "lake",
     "geometry": {"type": "Polygon", "coordinates": [[[0,-50],[50,-50],[50,-30],[0,-30],[0,-50]]]},
     "properties": {"natural": "water"}},
    {"type": "Feature", "id": "parks",
     "geometry": {"type": "MultiPolygon", "coordinates": [
       [[[-50,0],[-30,0],[-30,20],[-50,20],[-50,0]]],
       [[[-50,30],[-30,30],[-30,40],[-50,40],[-50,30]]]
     ]},
     "properties": {"leisure": "park"}},
    {"type": "Feature", "id": "lot",
     "geometry": {"type": "Polygon", "coordinates": [[[60,60],[70,60],[70,70],[60,70],[60,60]]]},
     "properties": {"landuse": "retail"}}
  ]
}`

const roadsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "main",
     "geometry": {"type": "LineString", "coordinates": [[-100,5],[100,5]]},
     "properties": {"highway": "primary_link", "volume": 1200, "heavy_fraction": 0.2}},
    {"type": "Feature", "id": "lane",
     "geometry": {"type": "LineString", "coordinates": [[0,-100],[0,100]]},
     "properties": {"highway": "unclassified", "heavy_fraction": 3}}
  ]
}`

func geoJSONConfig(t *testing.T) config.GeometryConfig {
	t.Helper()
	dir := t.TempDir()
	return config.GeometryConfig{
		Source:      config.SourceGeoJSON,
		Buildings:   writeFile(t, dir, "buildings.geojson", buildingsGeoJSON),
		LandCover:   writeFile(t, dir, "landcover.geojson", landCoverGeoJSON),
		Roads:       writeFile(t, dir, "roads.geojson", roadsGeoJSON),
		HeightField: "HEIGHT_M",
	}
}

func TestLoadGeoJSON(t *testing.T) {
	ds, err := LoadGeoJSON(geoJSONConfig(t))
	require.NoError(t, err)

	b, l, r := ds.Counts()
	assert.Equal(t, 3, b)
	assert.Equal(t, 4, l)
	assert.Equal(t, 2, r)

	heights := map[string]float64{}
	for _, f := range ds.Buildings() {
		heights[f.ID] = f.Height
	}
	assert.Equal(t, map[string]float64{"tower": 42.5, "building/1": 6, "far": 8}, heights)

	cats := map[string]model.LandCoverCategory{}
	for _, f := range ds.LandCover() {
		cats[f.ID] = f.Category
	}
	assert.Equal(t, map[string]model.LandCoverCategory{
		"lake":    model.LandCoverWater,
		"parks#0": model.LandCoverGreen,
		"parks#1": model.LandCoverGreen,
		"lot":     model.LandCoverOther,
	}, cats)

	roads := ds.Roads()
	require.Len(t, roads, 2)
	assert.Equal(t, model.TrafficPrimary, roads[0].Category)
	assert.Equal(t, 1200.0, roads[0].Volume)
	require.NotNil(t, roads[0].HeavyFraction)
	assert.InDelta(t, 0.2, *roads[0].HeavyFraction, 1e-12)
	assert.Equal(t, model.TrafficResidential, roads[1].Category)
	assert.Zero(t, roads[1].Volume)
	require.NotNil(t, roads[1].HeavyFraction)
	assert.Equal(t, 1.0, *roads[1].HeavyFraction)
}

func TestLoadGeoJSON_MinBuildingHeight(t *testing.T) {
	cfg := geoJSONConfig(t)
	cfg.MinBuildingHeight = 7

	ds, err := LoadGeoJSON(cfg)
	require.NoError(t, err)

	var ids []string
	for _, f := range ds.Buildings() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"tower", "far"}, ids)
}

func TestLoadGeoJSON_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadGeoJSON(config.GeometryConfig{Buildings: filepath.Join(dir, "missing.geojson")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load buildings")

	bad := writeFile(t, dir, "bad.geojson", `{"type": "FeatureCollection", "features": [`)
	_, err = LoadGeoJSON(config.GeometryConfig{Roads: bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode geojson")
}

func TestLoadGeoJSON_OnlySomeLayers(t *testing.T) {
	dir := t.TempDir()
	ds, err := LoadGeoJSON(config.GeometryConfig{Roads: writeFile(t, dir, "roads.geojson", roadsGeoJSON)})
	require.NoError(t, err)

	b, l, r := ds.Counts()
	assert.Zero(t, b)
	assert.Zero(t, l)
	assert.Equal(t, 2, r)
}

func TestIndexProvider_Query(t *testing.T) {
	ds, err := LoadGeoJSON(geoJSONConfig(t))
	require.NoError(t, err)

	p := NewIndexProvider(ds, 50)
	defer p.Close()
	assert.Same(t, ds, p.Dataset())

	fs, err := p.Query(context.Background(), model.Coordinate{}, 100)
	require.NoError(t, err)
	assert.Len(t, fs.Buildings, 2)
	assert.Len(t, fs.LandCover, 4)
	assert.Len(t, fs.Roads, 2)

	fs, err = p.Query(context.Background(), model.Coordinate{X: 905, Y: 905}, 10)
	require.NoError(t, err)
	require.Len(t, fs.Buildings, 1)
	assert.Equal(t, "far", fs.Buildings[0].ID)
	assert.Empty(t, fs.Roads)
}

func TestIndexProvider_QueryCancelled(t *testing.T) {
	p := NewIndexProvider(model.NewDataset(nil, nil, nil), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Query(ctx, model.Coordinate{}, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_FileSource(t *testing.T) {
	p, err := New(context.Background(), geoJSONConfig(t))
	require.NoError(t, err)
	defer p.Close()

	fs, err := p.Query(context.Background(), model.Coordinate{X: 15, Y: 15}, 1)
	require.NoError(t, err)
	require.Len(t, fs.Buildings, 1)
	assert.Equal(t, "tower", fs.Buildings[0].ID)
}

func TestNew_PostGISRequiresDatabase(t *testing.T) {
	_, err := New(context.Background(), config.GeometryConfig{Source: config.SourcePostGIS})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open postgis")
}

func TestLoadDataset_UnknownSource(t *testing.T) {
	_, err := LoadDataset(config.GeometryConfig{Source: config.SourcePostGIS})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no local dataset")
}

func TestHeight(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]string
		want  float64
	}{
		{"configured field", map[string]string{"height_m": "12.5", "height": "3"}, 12.5},
		{"height fallback", map[string]string{"height": "7 m"}, 7},
		{"levels fallback", map[string]string{"building:levels": "4"}, 12},
		{"negative", map[string]string{"height_m": "-3"}, 0},
		{"garbage", map[string]string{"height_m": "tall"}, 0},
		{"missing", map[string]string{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, height(tt.props, "HEIGHT_M"))
		})
	}
}

func TestFeatureID(t *testing.T) {
	r := newRecord("", nil, map[string]string{"OSM_ID": "way/42"})
	assert.Equal(t, "way/42", featureID(r, "building", 3, 0, 1))
	assert.Equal(t, "way/42#1", featureID(r, "building", 3, 1, 2))
	assert.Equal(t, "road/7", featureID(newRecord("", nil, nil), "road", 7, 0, 1))
	assert.Equal(t, "own", featureID(newRecord("own", nil, map[string]string{"id": "x"}), "road", 0, 0, 1))
}

func TestRoadsFrom_HeavyFraction(t *testing.T) {
	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 10, 0})
	roads := roadsFrom([]record{
		newRecord("measured", line, map[string]string{"highway": "primary", "heavy_fraction": "0"}),
		newRecord("missing", line, map[string]string{"highway": "primary"}),
		newRecord("garbage", line, map[string]string{"highway": "primary", "heavy_fraction": "n/a"}),
		newRecord("negative", line, map[string]string{"highway": "primary", "heavy_fraction": "-0.4"}),
	})
	require.Len(t, roads, 4)

	require.NotNil(t, roads[0].HeavyFraction)
	assert.Equal(t, 0.0, *roads[0].HeavyFraction)
	assert.Nil(t, roads[1].HeavyFraction)
	assert.Nil(t, roads[2].HeavyFraction)
	require.NotNil(t, roads[3].HeavyFraction)
	assert.Equal(t, 0.0, *roads[3].HeavyFraction)
}

func TestPolygonsAndLines_IgnoreOtherTypes(t *testing.T) {
	pt := geom.NewPointFlat(geom.XY, []float64{1, 2})
	assert.Nil(t, polygons(pt))
	assert.Nil(t, lines(pt))

	ls := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1})
	assert.Len(t, lines(ls), 1)
	assert.Nil(t, polygons(ls))
}
