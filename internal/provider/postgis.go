package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/db"
	"github.com/sells-group/site-analysis/internal/model"
	"github.com/sells-group/site-analysis/internal/resilience"
)

// PostGIS queries building, land-cover, and road tables per request. Each
// table needs a "geom" column in the configured SRID; every other column is
// read as a feature attribute.
type PostGIS struct {
	pool      db.Pool
	buildings string
	landCover string
	roads     string
	srid      int
	opts      Options
	limiter   *rate.Limiter
	policy    resilience.Policy
}

var _ GeometryProvider = (*PostGIS)(nil)

// NewPostGIS validates the configured table names and wraps pool.
func NewPostGIS(pool db.Pool, cfg config.GeometryConfig) (*PostGIS, error) {
	for _, t := range []string{cfg.Buildings, cfg.LandCover, cfg.Roads} {
		if t == "" {
			continue
		}
		if err := validateTable(t); err != nil {
			return nil, err
		}
	}

	limit := rate.Inf
	if cfg.QueriesPerSecond > 0 {
		limit = rate.Limit(cfg.QueriesPerSecond)
	}
	return &PostGIS{
		pool:      pool,
		buildings: cfg.Buildings,
		landCover: cfg.LandCover,
		roads:     cfg.Roads,
		srid:      cfg.SRID,
		opts:      optionsFrom(cfg),
		limiter:   rate.NewLimiter(limit, 1),
		policy:    resilience.FromConfig(cfg.Retry),
	}, nil
}

// Query implements GeometryProvider.
func (p *PostGIS) Query(ctx context.Context, center model.Coordinate, radius float64) (*model.FeatureSet, error) {
	fs := &model.FeatureSet{}
	if p.buildings != "" {
		recs, err := p.layer(ctx, p.buildings, center, radius)
		if err != nil {
			return nil, err
		}
		fs.Buildings = buildingsFrom(recs, p.opts)
	}
	if p.landCover != "" {
		recs, err := p.layer(ctx, p.landCover, center, radius)
		if err != nil {
			return nil, err
		}
		fs.LandCover = landCoverFrom(recs)
	}
	if p.roads != "" {
		recs, err := p.layer(ctx, p.roads, center, radius)
		if err != nil {
			return nil, err
		}
		fs.Roads = roadsFrom(recs)
	}
	return fs, nil
}

// layer reads the rows of table within radius of center, retrying
// transient failures.
func (p *PostGIS) layer(ctx context.Context, table string, center model.Coordinate, radius float64) ([]record, error) {
	sql := fmt.Sprintf(
		`SELECT ST_AsBinary(t.geom), (to_jsonb(t) - 'geom')::text FROM %s t WHERE ST_DWithin(t.geom, ST_SetSRID(ST_MakePoint($1, $2), $3), $4)`,
		table,
	)

	policy := p.policy
	policy.OnRetry = resilience.LogRetries("postgis", table)

	return resilience.Do(ctx, policy, func(ctx context.Context) ([]record, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "provider: rate limit")
		}
		rows, err := p.pool.Query(ctx, sql, center.X, center.Y, p.srid, radius)
		if err != nil {
			return nil, eris.Wrapf(err, "provider: query %s", table)
		}
		defer rows.Close()

		var recs []record
		for rows.Next() {
			var (
				wkb   []byte
				attrs string
			)
			if err := rows.Scan(&wkb, &attrs); err != nil {
				return nil, eris.Wrapf(err, "provider: scan %s row", table)
			}
			g, err := ewkb.Unmarshal(wkb)
			if err != nil {
				zap.L().Debug("provider: skipping undecodable geometry",
					zap.String("table", table), zap.Error(err))
				continue
			}
			var props map[string]any
			if attrs != "" {
				if err := json.Unmarshal([]byte(attrs), &props); err != nil {
					return nil, eris.Wrapf(err, "provider: decode %s attributes", table)
				}
			}
			recs = append(recs, newRecord("", g, stringProps(props)))
		}
		if err := rows.Err(); err != nil {
			return nil, eris.Wrapf(err, "provider: iterate %s rows", table)
		}
		return recs, nil
	})
}

// Counts returns the number of rows in each configured table. Tables that
// are not configured count as 0.
func (p *PostGIS) Counts(ctx context.Context) (buildings, landCover, roads int, err error) {
	counts := make([]int, 3)
	for i, t := range []string{p.buildings, p.landCover, p.roads} {
		if t == "" {
			continue
		}
		if err := p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, t)).Scan(&counts[i]); err != nil {
			return 0, 0, 0, eris.Wrapf(err, "provider: count %s", t)
		}
	}
	return counts[0], counts[1], counts[2], nil
}

// Close releases the connection pool.
func (p *PostGIS) Close() {
	p.pool.Close()
}
