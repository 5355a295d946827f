package sector

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/geometry"
	"github.com/sells-group/site-analysis/internal/model"
)

func rect(x0, y0, x1, y1 float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0},
	}})
}

func newAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(config.ViewConfig{SectorCount: 8, ArcSteps: 40})
	require.NoError(t, err)
	return a
}

func TestClassify_SectorsPartitionCircle(t *testing.T) {
	a := newAnalyzer(t)
	for _, n := range []int{1, 3, 7, 8, 12, 36} {
		res, err := a.Classify(context.Background(), model.Coordinate{}, 100, n, nil)
		require.NoError(t, err)
		require.Len(t, res.Sectors, n)

		var total float64
		for i, s := range res.Sectors {
			assert.Equal(t, i, s.Index)
			assert.InDelta(t, 360/float64(n), s.Width(), 1e-9)
			if i > 0 {
				assert.Equal(t, res.Sectors[i-1].EndDeg, s.StartDeg, "gap before sector %d", i)
			}
			total += s.Width()
		}
		assert.InDelta(t, 360.0, total, 1e-9)
		assert.Equal(t, 0.0, res.Sectors[0].StartDeg)
		assert.Equal(t, 360.0, res.Sectors[n-1].EndDeg)
	}
}

func TestClassify_EmptyGeometryIsAllOpen(t *testing.T) {
	a := newAnalyzer(t)
	res, err := a.Classify(context.Background(), model.Coordinate{X: 500, Y: 500}, 300, 8, &model.FeatureSet{})
	require.NoError(t, err)

	for _, s := range res.Sectors {
		assert.Equal(t, 0.5, s.DensityNorm)
		assert.Equal(t, 0.5, s.HeightNorm)
		assert.Equal(t, 0.25, s.Scores.Open)
		assert.Zero(t, s.Scores.Green)
		assert.Zero(t, s.Scores.Water)
		assert.Zero(t, s.Scores.City)
		assert.Equal(t, Open, s.Label)
	}
	require.Len(t, res.MergedArcs, 1)
	assert.Equal(t, Open, res.MergedArcs[0].Label)
	assert.Equal(t, 360.0, res.MergedArcs[0].Width())
	assert.InDelta(t, 0.25, res.MergedArcs[0].MeanScore, 1e-12)
	assert.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "no building geometry within 300.0 m")
}

func TestClassify_WaterSector(t *testing.T) {
	a := newAnalyzer(t)
	// Covers the first quadrant beyond the radius: sectors 0 and 1.
	fs := &model.FeatureSet{LandCover: []model.LandCoverFeature{
		{ID: "bay", Polygon: rect(0, 0, 400, 400), Category: model.LandCoverWater},
	}}
	res, err := a.Classify(context.Background(), model.Coordinate{}, 300, 8, fs)
	require.NoError(t, err)

	s := res.Sectors[0]
	assert.InDelta(t, 1.0, s.WaterRatio, 1e-9)
	assert.InDelta(t, 1.0, s.Scores.Water, 1e-9)
	assert.Equal(t, Water, s.Label)
	assert.Equal(t, Water, res.Sectors[1].Label)
	for _, s := range res.Sectors[2:] {
		assert.Equal(t, Open, s.Label)
		assert.InDelta(t, 0.0, s.WaterRatio, 1e-9)
	}

	require.Len(t, res.MergedArcs, 2)
	assert.Equal(t, Water, res.MergedArcs[0].Label)
	assert.Equal(t, []int{0, 1}, res.MergedArcs[0].Sectors)
	assert.Equal(t, 90.0, res.MergedArcs[0].Width())
	assert.Equal(t, Open, res.MergedArcs[1].Label)
	assert.Len(t, res.Warnings, 1)
}

func TestClassify_GreenPartialCoverage(t *testing.T) {
	a := newAnalyzer(t)
	fs := &model.FeatureSet{LandCover: []model.LandCoverFeature{
		{ID: "park", Polygon: rect(-400, -400, 400, 0), Category: model.LandCoverGreen},
	}}
	res, err := a.Classify(context.Background(), model.Coordinate{}, 100, 4, fs)
	require.NoError(t, err)

	// Sectors 2 (180-270) and 3 (270-360) lie entirely below y = 0.
	assert.InDelta(t, 0.0, res.Sectors[0].GreenRatio, 1e-9)
	assert.InDelta(t, 0.0, res.Sectors[1].GreenRatio, 1e-9)
	assert.InDelta(t, 1.0, res.Sectors[2].GreenRatio, 1e-9)
	assert.InDelta(t, 1.0, res.Sectors[3].GreenRatio, 1e-9)
	assert.Equal(t, Green, res.Sectors[2].Label)
	assert.Equal(t, Green, res.Sectors[3].Label)
}

func TestClassify_BuildingsDriveCityScore(t *testing.T) {
	a := newAnalyzer(t)
	// A tall block north of the center (sector 2 of 8 spans 90-135°) and a
	// low block to the south.
	fs := &model.FeatureSet{Buildings: []model.BuildingFeature{
		{ID: "tower", Polygon: rect(-20, 40, -5, 80), Height: 60},
		{ID: "shed", Polygon: rect(-5, -90, 5, -80), Height: 3},
	}}
	res, err := a.Classify(context.Background(), model.Coordinate{}, 100, 8, fs)
	require.NoError(t, err)

	tower := res.Sectors[2]
	assert.Greater(t, tower.Density, 0.0)
	assert.InDelta(t, 60.0, tower.AvgHeight, 1e-9)
	assert.Equal(t, 1.0, tower.DensityNorm)
	assert.Equal(t, 1.0, tower.HeightNorm)
	assert.Equal(t, 1.0, tower.Scores.City)
	assert.Zero(t, tower.Scores.Open)
	assert.Equal(t, City, tower.Label)

	east := res.Sectors[0]
	assert.Zero(t, east.Density)
	assert.Zero(t, east.AvgHeight)
	assert.Zero(t, east.Scores.City)
	assert.Equal(t, 1.0, east.Scores.Open)
	assert.Equal(t, Open, east.Label)

	// The shed straddles sectors 5 and 6 (225-270° and 270-315°).
	assert.InDelta(t, 3.0, res.Sectors[5].AvgHeight, 1e-9)
	assert.InDelta(t, 3.0, res.Sectors[6].AvgHeight, 1e-9)
}

func TestClassify_AreaWeightedHeight(t *testing.T) {
	a := newAnalyzer(t)
	// Two buildings in sector 0 of 4 (0-90°): 100 m² at 10 m and 300 m² at 30 m.
	fs := &model.FeatureSet{Buildings: []model.BuildingFeature{
		{ID: "a", Polygon: rect(10, 10, 20, 20), Height: 10},
		{ID: "b", Polygon: rect(30, 10, 60, 20), Height: 30},
	}}
	res, err := a.Classify(context.Background(), model.Coordinate{}, 100, 4, fs)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, res.Sectors[0].AvgHeight, 1e-9)
	wedge := geometry.NewWedge(geom.Coord{0, 0}, 100, 0, 90, 40)
	assert.InDelta(t, 400/wedge.Area(), res.Sectors[0].Density, 1e-9)
}

func TestClassify_Deterministic(t *testing.T) {
	a := newAnalyzer(t)
	fs := &model.FeatureSet{
		Buildings: []model.BuildingFeature{{ID: "b", Polygon: rect(20, -30, 50, 30), Height: 12}},
		LandCover: []model.LandCoverFeature{{ID: "g", Polygon: rect(-90, -20, -30, 60), Category: model.LandCoverGreen}},
	}
	first, err := a.Classify(context.Background(), model.Coordinate{}, 120, 12, fs)
	require.NoError(t, err)
	second, err := a.Classify(context.Background(), model.Coordinate{}, 120, 12, fs)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Sectors, second.Sectors)
	assert.Equal(t, first.MergedArcs, second.MergedArcs)
}

func TestClassify_ConfigurationErrors(t *testing.T) {
	a := newAnalyzer(t)
	ctx := context.Background()

	_, err := a.Classify(ctx, model.Coordinate{}, 300, 0, nil)
	require.Error(t, err)
	assert.True(t, model.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "sector_count")

	_, err = a.Classify(ctx, model.Coordinate{}, 300, -3, nil)
	assert.True(t, model.IsConfigurationError(err))

	_, err = a.Classify(ctx, model.Coordinate{}, -1, 8, nil)
	assert.True(t, model.IsConfigurationError(err))

	_, err = a.Classify(ctx, model.Coordinate{}, math.Inf(1), 8, nil)
	assert.True(t, model.IsConfigurationError(err))

	_, err = a.Classify(ctx, model.Coordinate{X: math.NaN()}, 300, 8, nil)
	assert.True(t, model.IsInvalidSiteError(err))
}

func TestClassify_Cancelled(t *testing.T) {
	a := newAnalyzer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Classify(ctx, model.Coordinate{}, 300, 8, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLabel_TieBreak(t *testing.T) {
	a := newAnalyzer(t)
	assert.Equal(t, Water, a.label(Scores{Green: 0.5, Water: 0.5, City: 0.5, Open: 0.5}))
	assert.Equal(t, Green, a.label(Scores{Green: 0.5, City: 0.5, Open: 0.5}))
	assert.Equal(t, City, a.label(Scores{City: 0.3, Open: 0.3}))
	assert.Equal(t, Open, a.label(Scores{Open: 0.1}))
	assert.Equal(t, Water, a.label(Scores{}))

	custom, err := NewAnalyzer(config.ViewConfig{TieBreak: []string{"open", "city", "green", "water"}})
	require.NoError(t, err)
	assert.Equal(t, Open, custom.label(Scores{Green: 0.5, Water: 0.5, City: 0.5, Open: 0.5}))
	assert.Equal(t, Water, custom.label(Scores{Water: 0.6, Open: 0.5}))
}

func TestNewAnalyzer_BadTieBreak(t *testing.T) {
	_, err := NewAnalyzer(config.ViewConfig{TieBreak: []string{"water", "green"}})
	require.Error(t, err)
	assert.True(t, model.IsConfigurationError(err))

	_, err = NewAnalyzer(config.ViewConfig{TieBreak: []string{"water", "water", "city", "open"}})
	assert.Error(t, err)
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel(" green ")
	require.NoError(t, err)
	assert.Equal(t, Green, l)

	_, err = ParseLabel("sky")
	assert.Error(t, err)
}
