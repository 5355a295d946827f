package model

import (
	"github.com/twpayne/go-geom"
)

// LandCoverCategory classifies a land-cover polygon.
type LandCoverCategory string

// Land-cover categories.
const (
	LandCoverGreen LandCoverCategory = "green"
	LandCoverWater LandCoverCategory = "water"
	LandCoverOther LandCoverCategory = "other"
)

// TrafficCategory classifies a road segment for the emission model.
type TrafficCategory string

// Traffic categories, named after OSM highway classes.
const (
	TrafficMotorway    TrafficCategory = "motorway"
	TrafficTrunk       TrafficCategory = "trunk"
	TrafficPrimary     TrafficCategory = "primary"
	TrafficSecondary   TrafficCategory = "secondary"
	TrafficTertiary    TrafficCategory = "tertiary"
	TrafficResidential TrafficCategory = "residential"
	TrafficService     TrafficCategory = "service"
	TrafficOther       TrafficCategory = "other"
)

// BuildingFeature is a building footprint with its height in meters
// (0 when the source has no height).
type BuildingFeature struct {
	ID      string
	Polygon *geom.Polygon
	Height  float64
}

// LandCoverFeature is a zoning or land-cover polygon.
type LandCoverFeature struct {
	ID       string
	Polygon  *geom.Polygon
	Category LandCoverCategory
}

// RoadSegment is a road polyline with its traffic attributes. A zero Volume
// or a nil HeavyFraction means "unknown"; the emission model substitutes the
// configured default. A measured HeavyFraction of 0 is kept as 0.
type RoadSegment struct {
	ID            string
	Line          *geom.LineString
	Category      TrafficCategory
	Volume        float64  // vehicles per hour
	HeavyFraction *float64 // 0..1, nil when unknown
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// FeatureSet is the geometry found around one site.
type FeatureSet struct {
	Buildings []BuildingFeature
	LandCover []LandCoverFeature
	Roads     []RoadSegment
}

// Empty reports whether the set holds no features at all.
func (f *FeatureSet) Empty() bool {
	return f == nil || (len(f.Buildings) == 0 && len(f.LandCover) == 0 && len(f.Roads) == 0)
}

// Dataset is the immutable geometry context shared by concurrent analyses.
// It is built once by a loader; nothing mutates it afterwards, so it can be
// read from many goroutines without locking.
type Dataset struct {
	buildings []BuildingFeature
	landCover []LandCoverFeature
	roads     []RoadSegment
}

// NewDataset copies the given collections into a Dataset. Features without
// geometry are dropped.
func NewDataset(buildings []BuildingFeature, landCover []LandCoverFeature, roads []RoadSegment) *Dataset {
	ds := &Dataset{
		buildings: make([]BuildingFeature, 0, len(buildings)),
		landCover: make([]LandCoverFeature, 0, len(landCover)),
		roads:     make([]RoadSegment, 0, len(roads)),
	}
	for _, b := range buildings {
		if b.Polygon != nil && b.Polygon.NumLinearRings() > 0 {
			ds.buildings = append(ds.buildings, b)
		}
	}
	for _, l := range landCover {
		if l.Polygon != nil && l.Polygon.NumLinearRings() > 0 {
			ds.landCover = append(ds.landCover, l)
		}
	}
	for _, r := range roads {
		if r.Line != nil && r.Line.NumCoords() >= 2 {
			ds.roads = append(ds.roads, r)
		}
	}
	return ds
}

// DatasetFromFeatures builds a Dataset from a FeatureSet.
func DatasetFromFeatures(fs *FeatureSet) *Dataset {
	if fs == nil {
		return NewDataset(nil, nil, nil)
	}
	return NewDataset(fs.Buildings, fs.LandCover, fs.Roads)
}

// Buildings returns the building features. Callers must not modify them.
func (d *Dataset) Buildings() []BuildingFeature { return d.buildings }

// LandCover returns the land-cover features. Callers must not modify them.
func (d *Dataset) LandCover() []LandCoverFeature { return d.landCover }

// Roads returns the road segments. Callers must not modify them.
func (d *Dataset) Roads() []RoadSegment { return d.roads }

// Bounds returns the extent of every feature, or nil for an empty dataset.
func (d *Dataset) Bounds() *geom.Bounds {
	if len(d.buildings) == 0 && len(d.landCover) == 0 && len(d.roads) == 0 {
		return nil
	}
	b := geom.NewBounds(geom.XY)
	for _, f := range d.buildings {
		b.Extend(f.Polygon)
	}
	for _, f := range d.landCover {
		b.Extend(f.Polygon)
	}
	for _, f := range d.roads {
		b.Extend(f.Line)
	}
	return b
}

// Counts returns the number of buildings, land-cover polygons, and roads.
func (d *Dataset) Counts() (buildings, landCover, roads int) {
	return len(d.buildings), len(d.landCover), len(d.roads)
}
