package provider

import (
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	_ "modernc.org/sqlite"

	"github.com/sells-group/site-analysis/internal/config"
	"github.com/sells-group/site-analysis/internal/model"
)

// identifierPattern matches the table names the loaders interpolate into SQL.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func validateTable(table string) error {
	if !identifierPattern.MatchString(table) {
		return eris.Errorf("provider: invalid table name %q", table)
	}
	return nil
}

// LoadGeoPackage reads the layers named in cfg from GeoPackage files. Each
// layer is "path.gpkg" or "path.gpkg#table"; without a table the file must
// hold exactly one feature table.
func LoadGeoPackage(cfg config.GeometryConfig) (*model.Dataset, error) {
	return loadLayers(cfg, readGeoPackage)
}

func readGeoPackage(location string) ([]record, error) {
	path, table, _ := strings.Cut(location, "#")
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "provider: open geopackage %s", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: open geopackage %s", path)
	}
	defer func() { _ = db.Close() }()

	if table == "" {
		table, err = soleFeatureTable(db)
		if err != nil {
			return nil, eris.Wrapf(err, "provider: geopackage %s", path)
		}
	}
	if err := validateTable(table); err != nil {
		return nil, err
	}

	var geomColumn string
	err = db.QueryRow(
		`SELECT column_name FROM gpkg_geometry_columns WHERE table_name = ?`, table,
	).Scan(&geomColumn)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: geometry column of %s", table)
	}

	rows, err := db.Query(fmt.Sprintf(`SELECT * FROM "%s"`, table))
	if err != nil {
		return nil, eris.Wrapf(err, "provider: query %s", table)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "provider: geopackage columns")
	}

	var recs []record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "provider: scan %s", table)
		}

		var g geom.T
		props := make(map[string]string, len(cols))
		for i, col := range cols {
			if strings.EqualFold(col, geomColumn) {
				blob, _ := values[i].([]byte)
				if g, err = decodeGeoPackageGeometry(blob); err != nil {
					return nil, eris.Wrapf(err, "provider: decode geometry in %s", table)
				}
				continue
			}
			if s, ok := sqlString(values[i]); ok {
				props[col] = s
			}
		}
		if g == nil {
			continue
		}
		recs = append(recs, newRecord("", g, props))
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "provider: iterate %s", table)
	}
	return recs, nil
}

func soleFeatureTable(db *sql.DB) (string, error) {
	rows, err := db.Query(`SELECT table_name FROM gpkg_contents WHERE data_type = 'features'`)
	if err != nil {
		return "", eris.Wrap(err, "list feature tables")
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return "", eris.Wrap(err, "scan feature table")
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return "", eris.Wrap(err, "iterate feature tables")
	}
	if len(tables) != 1 {
		return "", eris.Errorf("expected one feature table, found %d; name one with #table", len(tables))
	}
	return tables[0], nil
}

// envelopeSizes maps the GeoPackage header envelope indicator to its length
// in bytes.
var envelopeSizes = [...]int{0, 32, 48, 48, 64}

// decodeGeoPackageGeometry strips the "GP" header of a GeoPackage geometry
// blob and decodes the WKB that follows. Empty geometries give nil.
func decodeGeoPackageGeometry(blob []byte) (geom.T, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, eris.New("missing GeoPackage header")
	}
	flags := blob[3]
	if flags&0x10 != 0 {
		return nil, nil
	}
	indicator := int(flags>>1) & 0x07
	if indicator >= len(envelopeSizes) {
		return nil, eris.Errorf("invalid envelope indicator %d", indicator)
	}
	offset := 8 + envelopeSizes[indicator]
	if len(blob) <= offset {
		return nil, eris.New("truncated GeoPackage geometry")
	}
	return ewkb.Unmarshal(blob[offset:])
}

// sqlString renders a SQLite column value. NULL gives false.
func sqlString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []byte:
		return string(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case time.Time:
		return t.Format(time.RFC3339), true
	default:
		return fmt.Sprint(t), true
	}
}
