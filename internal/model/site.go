// Package model defines the site, feature, and error types shared by the
// analysis engines. All coordinates live in one projected reference frame
// (meters), typically EPSG:3857.
package model

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
)

// Coordinate is a planar position in the projected reference frame.
type Coordinate struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Coord returns the coordinate as a go-geom XY coordinate.
func (c Coordinate) Coord() geom.Coord {
	return geom.Coord{c.X, c.Y}
}

// Finite reports whether both components are finite numbers.
func (c Coordinate) Finite() bool {
	return !math.IsNaN(c.X) && !math.IsNaN(c.Y) && !math.IsInf(c.X, 0) && !math.IsInf(c.Y, 0)
}

// String implements fmt.Stringer.
func (c Coordinate) String() string {
	return fmt.Sprintf("(%.3f, %.3f)", c.X, c.Y)
}

// CoordinateFrom converts a go-geom coordinate.
func CoordinateFrom(c geom.Coord) Coordinate {
	return Coordinate{X: c.X(), Y: c.Y()}
}

// Site is a resolved analysis location. It is immutable once resolved.
type Site struct {
	ID     string     `json:"id" yaml:"id"`
	Center Coordinate `json:"center" yaml:"center"`
	Radius float64    `json:"radius" yaml:"radius"` // meters
}

// Validate checks that the site carries a usable coordinate and radius.
// A nil site or a non-finite coordinate is an InvalidSiteError; a
// non-positive or infinite radius is a ConfigurationError.
func (s *Site) Validate() error {
	if s == nil {
		return &InvalidSiteError{Reason: "site is nil"}
	}
	if !s.Center.Finite() {
		return &InvalidSiteError{SiteID: s.ID, Reason: fmt.Sprintf("coordinate %s is not finite", s.Center)}
	}
	if !PositiveFinite(s.Radius) {
		return NewConfigurationError("radius", "must be positive and finite, got %v", s.Radius)
	}
	return nil
}

// PositiveFinite reports whether v is a finite number greater than zero.
func PositiveFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
