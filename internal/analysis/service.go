// Package analysis runs the view and noise engines for sites: it validates
// requests, fetches geometry, caches results, and fans batches out over a
// bounded worker pool.
package analysis

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/site-analysis/internal/cache"
	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/model"
	"github.com/sells-group/site-analysis/internal/noise"
	"github.com/sells-group/site-analysis/internal/provider"
	"github.com/sells-group/site-analysis/internal/sector"
)

// Result kinds, used as cache key prefixes.
const (
	KindFeatures = "features"
	KindView     = "view"
	KindNoise    = "noise"
)

// Service is safe for concurrent use.
type Service struct {
	provider  provider.GeometryProvider
	cfg       config.Config
	analyzer  *sector.Analyzer
	simulator *noise.Simulator

	features *cache.Cache[*model.FeatureSet]
	views    *cache.Cache[*sector.Result]
	maps     *cache.Cache[*noise.Result]
}

// Report is the combined analysis of one site.
type Report struct {
	Site         model.Site     `json:"site" yaml:"site"`
	View         *sector.Result `json:"view,omitempty" yaml:"view,omitempty"`
	Noise        *noise.Result  `json:"noise,omitempty" yaml:"noise,omitempty"`
	NoiseSummary *noise.Summary `json:"noise_summary,omitempty" yaml:"noise_summary,omitempty"`
	Error        string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewService builds the engines from cfg. cfg is copied; later changes to
// it have no effect.
func NewService(p provider.GeometryProvider, cfg *config.Config) (*Service, error) {
	if p == nil {
		return nil, eris.New("analysis: provider is nil")
	}
	if cfg == nil {
		return nil, eris.New("analysis: config is nil")
	}
	analyzer, err := sector.NewAnalyzer(cfg.View)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: view analyzer")
	}
	simulator, err := noise.NewSimulator(cfg.Noise)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: noise simulator")
	}

	ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	return &Service{
		provider:  p,
		cfg:       *cfg,
		analyzer:  analyzer,
		simulator: simulator,
		features:  cache.New[*model.FeatureSet](cfg.Cache.MaxEntries, ttl),
		views:     cache.New[*sector.Result](cfg.Cache.MaxEntries, ttl),
		maps:      cache.New[*noise.Result](cfg.Cache.MaxEntries, ttl),
	}, nil
}

// ClassifyView classifies the view sectors of site. A zero radius selects
// the configured analysis radius.
func (s *Service) ClassifyView(ctx context.Context, site model.Site) (*sector.Result, error) {
	site, err := s.resolve(site)
	if err != nil {
		return nil, err
	}
	if s.cfg.View.SectorCount <= 0 {
		return nil, model.NewConfigurationError("view.sector_count", "must be > 0, got %d", s.cfg.View.SectorCount)
	}

	key, err := Fingerprint(KindView, site, s.cfg.View)
	if err != nil {
		return nil, err
	}
	res, err := shared(ctx, s.views, key, func(ctx context.Context) (*sector.Result, error) {
		fs, err := s.query(ctx, site)
		if err != nil {
			return nil, err
		}
		return s.analyzer.Classify(ctx, site.Center, site.Radius, s.cfg.View.SectorCount, fs)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: classify view of %s", siteName(site))
	}
	s.logWarnings(site, KindView, res.Warnings)
	return res, nil
}

// SimulateNoise computes the noise map of site at the configured grid
// resolution. Grids larger than analysis.max_grid_cells are refused before
// any geometry is fetched.
func (s *Service) SimulateNoise(ctx context.Context, site model.Site) (*noise.Result, error) {
	site, err := s.resolve(site)
	if err != nil {
		return nil, err
	}
	res := s.cfg.Noise.GridResolution
	if !model.PositiveFinite(res) {
		return nil, model.NewConfigurationError("noise.grid_resolution", "must be positive and finite, got %v", res)
	}
	if limit := s.cfg.Analysis.MaxGridCells; limit > 0 {
		if cells := noise.CellCount(site.Radius, res); cells > float64(limit) {
			return nil, model.NewConfigurationError("analysis.max_grid_cells",
				"grid of %.0f cells (radius %.1f m, resolution %.2f m) exceeds the limit of %d", cells, site.Radius, res, limit)
		}
	}

	key, err := Fingerprint(KindNoise, site, s.cfg.Noise)
	if err != nil {
		return nil, err
	}
	out, err := shared(ctx, s.maps, key, func(ctx context.Context) (*noise.Result, error) {
		fs, err := s.query(ctx, site)
		if err != nil {
			return nil, err
		}
		return s.simulator.Simulate(ctx, site.Center, site.Radius, res, fs)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: simulate noise of %s", siteName(site))
	}
	s.logWarnings(site, KindNoise, out.Warnings)
	return out, nil
}

// Analyze runs both engines for site concurrently.
func (s *Service) Analyze(ctx context.Context, site model.Site) (*Report, error) {
	resolved, err := s.resolve(site)
	if err != nil {
		return nil, err
	}
	report := &Report{Site: resolved}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.ClassifyView(gctx, resolved)
		if err != nil {
			return err
		}
		report.View = v
		return nil
	})
	g.Go(func() error {
		n, err := s.SimulateNoise(gctx, resolved)
		if err != nil {
			return err
		}
		report.Noise = n
		summary := n.Summary()
		report.NoiseSummary = &summary
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

// CacheStats returns statistics of each result cache, keyed by kind.
func (s *Service) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		KindFeatures: s.features.Stats(),
		KindView:     s.views.Stats(),
		KindNoise:    s.maps.Stats(),
	}
}

// resolve fills in the default radius and validates the site.
func (s *Service) resolve(site model.Site) (model.Site, error) {
	if site.Radius == 0 {
		site.Radius = s.cfg.Analysis.Radius
	}
	if err := site.Validate(); err != nil {
		return site, err
	}
	return site, nil
}

// query fetches the geometry around site once per fingerprint, shared by
// both engines.
func (s *Service) query(ctx context.Context, site model.Site) (*model.FeatureSet, error) {
	key, err := Fingerprint(KindFeatures, site, nil)
	if err != nil {
		return nil, err
	}
	return shared(ctx, s.features, key, func(ctx context.Context) (*model.FeatureSet, error) {
		fs, err := s.provider.Query(ctx, site.Center, site.Radius)
		if err != nil {
			return nil, eris.Wrap(err, "analysis: query geometry")
		}
		return fs, nil
	})
}

// shared computes key through c, coalescing concurrent callers. The
// computation runs on a context detached from the caller's cancellation, so
// one caller giving up does not fail the others; each caller stops waiting
// when its own ctx is done. An abandoned computation still fills the cache.
func shared[V any](ctx context.Context, c *cache.Cache[V], key string, fn func(context.Context) (V, error)) (V, error) {
	var zero V
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		v   V
		err error
	}
	done := make(chan result, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		v, _, err := c.Do(key, func() (V, error) { return fn(detached) })
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *Service) logWarnings(site model.Site, kind string, warnings []string) {
	for _, w := range warnings {
		zap.L().Warn("analysis: empty result",
			zap.String("site", siteName(site)),
			zap.String("kind", kind),
			zap.String("warning", w),
		)
	}
}

func siteName(site model.Site) string {
	if site.ID != "" {
		return site.ID
	}
	return site.Center.String()
}
