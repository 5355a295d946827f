package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/site-analysis/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	View     ViewConfig     `yaml:"view" mapstructure:"view"`
	Noise    NoiseConfig    `yaml:"noise" mapstructure:"noise"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Geometry GeometryConfig `yaml:"geometry" mapstructure:"geometry"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnalysisConfig configures request handling around the engines.
type AnalysisConfig struct {
	Radius       float64 `yaml:"radius" mapstructure:"radius"`
	MaxGridCells int     `yaml:"max_grid_cells" mapstructure:"max_grid_cells"`
	Concurrency  int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// ViewConfig configures the view-sector classifier.
type ViewConfig struct {
	SectorCount int      `yaml:"sector_count" mapstructure:"sector_count"`
	ArcSteps    int      `yaml:"arc_steps" mapstructure:"arc_steps"`
	TieBreak    []string `yaml:"tie_break" mapstructure:"tie_break"`
}

// NoiseConfig configures the road-noise simulator.
type NoiseConfig struct {
	GridResolution               float64        `yaml:"grid_resolution" mapstructure:"grid_resolution"`
	FloorDB                      float64        `yaml:"floor_db" mapstructure:"floor_db"`
	MinDistance                  float64        `yaml:"min_distance" mapstructure:"min_distance"`
	Workers                      int            `yaml:"workers" mapstructure:"workers"`
	HeavyVehicleCoefficient      float64        `yaml:"heavy_vehicle_coefficient" mapstructure:"heavy_vehicle_coefficient"`
	GroundAbsorptionCoefficient  float64        `yaml:"ground_absorption_coefficient" mapstructure:"ground_absorption_coefficient"`
	BarrierAttenuationConstant   float64        `yaml:"barrier_attenuation_constant" mapstructure:"barrier_attenuation_constant"`
	BarrierMode                  string         `yaml:"barrier_mode" mapstructure:"barrier_mode"`
	ReflectionCorrectionConstant float64        `yaml:"reflection_correction_constant" mapstructure:"reflection_correction_constant"`
	ReflectionProximityThreshold float64        `yaml:"reflection_proximity_threshold" mapstructure:"reflection_proximity_threshold"`
	Corrections                  []string       `yaml:"corrections" mapstructure:"corrections"`
	Emission                     EmissionConfig `yaml:"emission" mapstructure:"emission"`
}

// EmissionConfig is the road emission model:
// L0 = base + 10·log10(volume) + speed_coefficient·speed.
type EmissionConfig struct {
	SpeedCoefficient float64                     `yaml:"speed_coefficient" mapstructure:"speed_coefficient"`
	HeavyFraction    float64                     `yaml:"heavy_fraction" mapstructure:"heavy_fraction"`
	Categories       map[string]CategoryEmission `yaml:"categories" mapstructure:"categories"`
}

// CategoryEmission holds the emission defaults of one traffic category.
type CategoryEmission struct {
	BaseDB float64 `yaml:"base_db" mapstructure:"base_db"`
	Speed  float64 `yaml:"speed" mapstructure:"speed"`   // km/h
	Volume float64 `yaml:"volume" mapstructure:"volume"` // vehicles/hour when the segment has none
}

// CacheConfig configures the analysis result cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// GeometryConfig selects and configures the geometry provider.
type GeometryConfig struct {
	Source            string      `yaml:"source" mapstructure:"source"`
	Buildings         string      `yaml:"buildings" mapstructure:"buildings"`
	LandCover         string      `yaml:"landcover" mapstructure:"landcover"`
	Roads             string      `yaml:"roads" mapstructure:"roads"`
	HeightField       string      `yaml:"height_field" mapstructure:"height_field"`
	MinBuildingHeight float64     `yaml:"min_building_height" mapstructure:"min_building_height"`
	IndexCellSize     float64     `yaml:"index_cell_size" mapstructure:"index_cell_size"`
	DatabaseURL       string      `yaml:"database_url" mapstructure:"database_url"`
	SRID              int         `yaml:"srid" mapstructure:"srid"`
	QueriesPerSecond  float64     `yaml:"queries_per_second" mapstructure:"queries_per_second"`
	Retry             RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig configures retries of transient provider failures.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// Geometry sources.
const (
	SourceGeoJSON    = "geojson"
	SourceShapefile  = "shapefile"
	SourceGeoPackage = "geopackage"
	SourcePostGIS    = "postgis"
)

// Barrier modes.
const (
	BarrierGraduated = "graduated"
	BarrierBinary    = "binary"
)

// Noise corrections, in the order the simulator applies them.
var knownCorrections = []string{"heavy_vehicle", "ground_absorption", "barrier", "reflection"}

var knownLabels = []string{"water", "green", "city", "open"}

// DefaultEmissionCategories is keyed by traffic category. Base levels follow
// the light-vehicle emission formula 27.7 + 10·log10(Q) + 0.02·v.
var DefaultEmissionCategories = map[string]CategoryEmission{
	"motorway":    {BaseDB: 27.7, Speed: 100, Volume: 4000},
	"trunk":       {BaseDB: 27.7, Speed: 80, Volume: 2500},
	"primary":     {BaseDB: 27.7, Speed: 60, Volume: 1500},
	"secondary":   {BaseDB: 27.7, Speed: 50, Volume: 1000},
	"tertiary":    {BaseDB: 27.7, Speed: 40, Volume: 600},
	"residential": {BaseDB: 27.7, Speed: 30, Volume: 200},
	"service":     {BaseDB: 27.7, Speed: 20, Volume: 50},
	"other":       {BaseDB: 27.7, Speed: 30, Volume: 100},
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Default returns the configuration Load produces with no file and no
// environment overrides.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("analysis.radius", 300.0)
	v.SetDefault("analysis.max_grid_cells", 1_000_000)
	v.SetDefault("analysis.concurrency", 4)
	v.SetDefault("view.sector_count", 8)
	v.SetDefault("view.arc_steps", 40)
	v.SetDefault("view.tie_break", knownLabels)
	v.SetDefault("noise.grid_resolution", 10.0)
	v.SetDefault("noise.floor_db", 35.0)
	v.SetDefault("noise.min_distance", 1.0)
	v.SetDefault("noise.workers", 0)
	v.SetDefault("noise.heavy_vehicle_coefficient", 5.0)
	v.SetDefault("noise.ground_absorption_coefficient", 0.6)
	v.SetDefault("noise.barrier_attenuation_constant", 10.0)
	v.SetDefault("noise.barrier_mode", BarrierGraduated)
	v.SetDefault("noise.reflection_correction_constant", 3.0)
	v.SetDefault("noise.reflection_proximity_threshold", 5.0)
	v.SetDefault("noise.corrections", knownCorrections)
	v.SetDefault("noise.emission.speed_coefficient", 0.02)
	v.SetDefault("noise.emission.heavy_fraction", 0.12)
	for name, c := range DefaultEmissionCategories {
		prefix := "noise.emission.categories." + name + "."
		v.SetDefault(prefix+"base_db", c.BaseDB)
		v.SetDefault(prefix+"speed", c.Speed)
		v.SetDefault(prefix+"volume", c.Volume)
	}
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("cache.ttl_minutes", 30)
	v.SetDefault("geometry.source", SourceGeoJSON)
	v.SetDefault("geometry.height_field", "HEIGHT_M")
	v.SetDefault("geometry.min_building_height", 0.0)
	v.SetDefault("geometry.index_cell_size", 100.0)
	v.SetDefault("geometry.srid", 3857)
	v.SetDefault("geometry.queries_per_second", 20.0)
	v.SetDefault("geometry.retry.max_attempts", 3)
	v.SetDefault("geometry.retry.initial_backoff_ms", 200)
	v.SetDefault("geometry.retry.max_backoff_ms", 5000)
	v.SetDefault("geometry.retry.multiplier", 2.0)
	v.SetDefault("geometry.retry.jitter_fraction", 0.25)
}

// Validate checks the settings a command needs. Mode is one of "view",
// "noise", "analyze", or "dataset". All violations are reported together as
// a single *model.ConfigurationError.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "view":
		errs = append(errs, c.validateAnalysis()...)
		errs = append(errs, c.validateView()...)
	case "noise":
		errs = append(errs, c.validateAnalysis()...)
		errs = append(errs, c.validateNoise()...)
	case "analyze":
		errs = append(errs, c.validateAnalysis()...)
		errs = append(errs, c.validateView()...)
		errs = append(errs, c.validateNoise()...)
		if c.Cache.MaxEntries < 0 {
			errs = append(errs, "cache.max_entries must be >= 0")
		}
		if c.Cache.TTLMinutes < 0 {
			errs = append(errs, "cache.ttl_minutes must be >= 0")
		}
	case "dataset":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	errs = append(errs, c.validateGeometry()...)

	if len(errs) > 0 {
		return model.NewConfigurationError("", "%s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateAnalysis() []string {
	var errs []string
	if !model.PositiveFinite(c.Analysis.Radius) {
		errs = append(errs, "analysis.radius must be a finite number > 0")
	}
	if c.Analysis.MaxGridCells < 0 {
		errs = append(errs, "analysis.max_grid_cells must be >= 0")
	}
	if c.Analysis.Concurrency < 1 || c.Analysis.Concurrency > 64 {
		errs = append(errs, "analysis.concurrency must be between 1 and 64")
	}
	return errs
}

func (c *Config) validateView() []string {
	var errs []string
	if c.View.SectorCount <= 0 {
		errs = append(errs, "view.sector_count must be > 0")
	}
	if c.View.ArcSteps < 1 {
		errs = append(errs, "view.arc_steps must be >= 1")
	}
	if len(c.View.TieBreak) > 0 {
		seen := make(map[string]bool, len(c.View.TieBreak))
		for _, l := range c.View.TieBreak {
			l = strings.ToLower(l)
			if !slices.Contains(knownLabels, l) {
				errs = append(errs, fmt.Sprintf("view.tie_break: unknown label %q", l))
				continue
			}
			if seen[l] {
				errs = append(errs, fmt.Sprintf("view.tie_break: duplicate label %q", l))
			}
			seen[l] = true
		}
		if len(seen) != len(knownLabels) && len(errs) == 0 {
			errs = append(errs, "view.tie_break must rank water, green, city, and open")
		}
	}
	return errs
}

func (c *Config) validateNoise() []string {
	var errs []string
	n := c.Noise
	if !model.PositiveFinite(n.GridResolution) {
		errs = append(errs, "noise.grid_resolution must be a finite number > 0")
	}
	if !(n.MinDistance > 0) {
		errs = append(errs, "noise.min_distance must be > 0")
	}
	if n.Workers < 0 {
		errs = append(errs, "noise.workers must be >= 0")
	}
	if n.HeavyVehicleCoefficient < 0 {
		errs = append(errs, "noise.heavy_vehicle_coefficient must be >= 0")
	}
	if n.GroundAbsorptionCoefficient < 0 || n.GroundAbsorptionCoefficient > 1 {
		errs = append(errs, "noise.ground_absorption_coefficient must be between 0 and 1")
	}
	if n.BarrierAttenuationConstant < 0 {
		errs = append(errs, "noise.barrier_attenuation_constant must be >= 0")
	}
	if n.BarrierMode != BarrierGraduated && n.BarrierMode != BarrierBinary {
		errs = append(errs, fmt.Sprintf("noise.barrier_mode must be %q or %q", BarrierGraduated, BarrierBinary))
	}
	if n.ReflectionProximityThreshold < 0 {
		errs = append(errs, "noise.reflection_proximity_threshold must be >= 0")
	}
	for _, name := range n.Corrections {
		if !slices.Contains(knownCorrections, strings.ToLower(name)) {
			errs = append(errs, fmt.Sprintf("noise.corrections: unknown correction %q", name))
		}
	}
	if n.Emission.HeavyFraction < 0 || n.Emission.HeavyFraction > 1 {
		errs = append(errs, "noise.emission.heavy_fraction must be between 0 and 1")
	}
	for name, cat := range n.Emission.Categories {
		if cat.Volume <= 0 {
			errs = append(errs, fmt.Sprintf("noise.emission.categories.%s.volume must be > 0", name))
		}
		if cat.Speed < 0 {
			errs = append(errs, fmt.Sprintf("noise.emission.categories.%s.speed must be >= 0", name))
		}
	}
	return errs
}

func (c *Config) validateGeometry() []string {
	var errs []string
	g := c.Geometry
	switch g.Source {
	case SourceGeoJSON, SourceShapefile, SourceGeoPackage:
		if g.Buildings == "" && g.LandCover == "" && g.Roads == "" {
			errs = append(errs, fmt.Sprintf("geometry: %s source needs at least one of buildings, landcover, roads", g.Source))
		}
	case SourcePostGIS:
		if g.DatabaseURL == "" {
			errs = append(errs, "geometry.database_url is required for the postgis source")
		}
		if g.QueriesPerSecond < 0 {
			errs = append(errs, "geometry.queries_per_second must be >= 0")
		}
	default:
		errs = append(errs, fmt.Sprintf("geometry.source %q is not one of geojson, shapefile, geopackage, postgis", g.Source))
	}
	if g.MinBuildingHeight < 0 {
		errs = append(errs, "geometry.min_building_height must be >= 0")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
