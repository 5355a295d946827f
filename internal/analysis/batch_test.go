package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/site-analysis/internal/model"
)

func TestAnalyzeBatch_PreservesOrderAndIsolatesFailures(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.Concurrency = 2
	p := &fakeProvider{fs: lakeAndRoad()}
	s := newService(t, p, cfg)

	sites := []model.Site{
		{ID: "a", Center: model.Coordinate{X: 0, Y: 0}},
		{ID: "bad", Center: model.Coordinate{X: math.NaN(), Y: 0}},
		{ID: "c", Center: model.Coordinate{X: 50, Y: 50}, Radius: 60},
	}
	reports, summary, err := s.AnalyzeBatch(context.Background(), sites)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Equal(t, "a", reports[0].Site.ID)
	assert.Empty(t, reports[0].Error)
	assert.NotNil(t, reports[0].View)

	assert.Equal(t, "bad", reports[1].Site.ID)
	assert.Contains(t, reports[1].Error, "invalid site")
	assert.Nil(t, reports[1].View)

	assert.Equal(t, "c", reports[2].Site.ID)
	assert.Equal(t, 60.0, reports[2].Site.Radius)
	assert.NotNil(t, reports[2].Noise)

	assert.Equal(t, 3, summary.Sites)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
}

func TestAnalyzeBatch_Empty(t *testing.T) {
	s := newService(t, &fakeProvider{}, nil)
	reports, summary, err := s.AnalyzeBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.Zero(t, summary.Sites)
}

func TestAnalyzeBatch_Cancelled(t *testing.T) {
	s := newService(t, &fakeProvider{fs: lakeAndRoad()}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.AnalyzeBatch(ctx, []model.Site{{ID: "a"}, {ID: "b"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeBatch_DuplicateSitesShareWork(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.Concurrency = 4
	p := &fakeProvider{fs: lakeAndRoad()}
	s := newService(t, p, cfg)

	sites := make([]model.Site, 8)
	for i := range sites {
		sites[i] = model.Site{ID: string(rune('a' + i)), Center: model.Coordinate{X: 10, Y: 10}}
	}
	reports, summary, err := s.AnalyzeBatch(context.Background(), sites)
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Succeeded)
	assert.Equal(t, 1, p.Calls())
	for _, r := range reports {
		assert.Same(t, reports[0].View, r.View)
	}
}
