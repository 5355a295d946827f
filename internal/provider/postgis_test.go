package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/model"
)

func wkbOf(t *testing.T, g geom.T) []byte {
	t.Helper()
	b, err := ewkb.Marshal(g, ewkb.NDR)
	require.NoError(t, err)
	return b
}

func postgisConfig() config.GeometryConfig {
	return config.GeometryConfig{
		Source:      config.SourcePostGIS,
		Buildings:   "site.buildings",
		Roads:       "site.roads",
		HeightField: "HEIGHT_M",
		SRID:        3857,
		Retry:       config.RetryConfig{MaxAttempts: 3, InitialBackoffMs: 1, MaxBackoffMs: 2, Multiplier: 2},
	}
}

func TestPostGIS_Query(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	road := geom.NewLineStringFlat(geom.XY, []float64{-50, 0, 50, 0})

	mock.ExpectQuery(`SELECT ST_AsBinary\(t\.geom\), \(to_jsonb\(t\) - 'geom'\)::text FROM site\.buildings t WHERE ST_DWithin`).
		WithArgs(10.0, 20.0, 3857, 150.0).
		WillReturnRows(pgxmock.NewRows([]string{"st_asbinary", "text"}).
			AddRow(wkbOf(t, square(0, 0, 10)), `{"id": 7, "height_m": 21}`).
			AddRow([]byte("garbage"), `{"id": 8}`))
	mock.ExpectQuery(`FROM site\.roads t WHERE ST_DWithin`).
		WithArgs(10.0, 20.0, 3857, 150.0).
		WillReturnRows(pgxmock.NewRows([]string{"st_asbinary", "text"}).
			AddRow(wkbOf(t, road), `{"id": "r1", "highway": "secondary", "volume": 800}`))

	p, err := NewPostGIS(mock, postgisConfig())
	require.NoError(t, err)

	fs, err := p.Query(context.Background(), model.Coordinate{X: 10, Y: 20}, 150)
	require.NoError(t, err)

	require.Len(t, fs.Buildings, 1)
	assert.Equal(t, "7", fs.Buildings[0].ID)
	assert.Equal(t, 21.0, fs.Buildings[0].Height)
	assert.Empty(t, fs.LandCover)
	require.Len(t, fs.Roads, 1)
	assert.Equal(t, model.TrafficSecondary, fs.Roads[0].Category)
	assert.Equal(t, 800.0, fs.Roads[0].Volume)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostGIS_RetriesTransientErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := postgisConfig()
	cfg.Roads = ""

	mock.ExpectQuery(`FROM site\.buildings`).
		WithArgs(0.0, 0.0, 3857, 50.0).
		WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectQuery(`FROM site\.buildings`).
		WithArgs(0.0, 0.0, 3857, 50.0).
		WillReturnRows(pgxmock.NewRows([]string{"st_asbinary", "text"}).
			AddRow(wkbOf(t, square(0, 0, 5)), `{}`))

	p, err := NewPostGIS(mock, cfg)
	require.NoError(t, err)

	fs, err := p.Query(context.Background(), model.Coordinate{}, 50)
	require.NoError(t, err)
	require.Len(t, fs.Buildings, 1)
	assert.Equal(t, "building/0", fs.Buildings[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostGIS_PermanentErrorIsNotRetried(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := postgisConfig()
	cfg.Roads = ""

	mock.ExpectQuery(`FROM site\.buildings`).
		WithArgs(0.0, 0.0, 3857, 50.0).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: "relation does not exist"})

	p, err := NewPostGIS(mock, cfg)
	require.NoError(t, err)

	_, err = p.Query(context.Background(), model.Coordinate{}, 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query site.buildings")

	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostGIS_BadAttributes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := postgisConfig()
	cfg.Roads = ""

	mock.ExpectQuery(`FROM site\.buildings`).
		WithArgs(0.0, 0.0, 3857, 50.0).
		WillReturnRows(pgxmock.NewRows([]string{"st_asbinary", "text"}).
			AddRow(wkbOf(t, square(0, 0, 5)), `{not json`))

	p, err := NewPostGIS(mock, cfg)
	require.NoError(t, err)

	_, err = p.Query(context.Background(), model.Coordinate{}, 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode site.buildings attributes")
}

func TestNewPostGIS_InvalidTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := postgisConfig()
	cfg.LandCover = "zoning; DROP TABLE zoning"

	_, err = NewPostGIS(mock, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestPostGIS_Counts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT count\(\*\) FROM site\.buildings`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`SELECT count\(\*\) FROM site\.roads`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	p, err := NewPostGIS(mock, postgisConfig())
	require.NoError(t, err)

	b, l, r, err := p.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, b)
	assert.Zero(t, l)
	assert.Equal(t, 4, r)
	assert.NoError(t, mock.ExpectationsWereMet())
}
