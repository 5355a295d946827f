package analysis

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/site-analysis/internal/model"
)

// BatchSummary counts the outcome of a batch.
type BatchSummary struct {
	Sites     int           `json:"sites" yaml:"sites"`
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Failed    int           `json:"failed" yaml:"failed"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
}

// AnalyzeBatch analyzes sites on at most analysis.concurrency workers.
// Reports are returned in input order. A site that fails carries its error
// in Report.Error and does not stop the batch; only cancellation of ctx
// does.
func (s *Service) AnalyzeBatch(ctx context.Context, sites []model.Site) ([]Report, BatchSummary, error) {
	start := time.Now()
	reports := make([]Report, len(sites))
	summary := BatchSummary{Sites: len(sites)}
	if len(sites) == 0 {
		return reports, summary, nil
	}

	workers := s.cfg.Analysis.Concurrency
	if workers <= 0 {
		workers = 1
	}
	log := zap.L().With(zap.String("component", "analysis"), zap.Int("sites", len(sites)), zap.Int("workers", workers))
	log.Info("analysis: starting batch")

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, site := range sites {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := s.Analyze(gctx, site)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				log.Warn("analysis: site failed", zap.String("site", siteName(site)), zap.Error(err))
				reports[i] = Report{Site: site, Error: err.Error()}
				return nil // don't fail the group
			}
			reports[i] = *r
			log.Debug("analysis: site done", zap.String("site", siteName(site)))
			return nil
		})
	}

	err := g.Wait()
	summary.Failed = int(failed.Load())
	summary.Succeeded = summary.Sites - summary.Failed
	summary.Elapsed = time.Since(start)
	if err != nil {
		return nil, summary, eris.Wrap(err, "analysis: batch")
	}

	log.Info("analysis: batch complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return reports, summary, nil
}
