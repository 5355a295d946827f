package model

import "strings"

// greenTags and waterTags map OSM keys to the values that mark a polygon as
// green or water. An empty value set matches any value.
var greenTags = map[string][]string{
	"leisure": {"park", "garden"},
	"landuse": {"grass", "forest", "meadow", "recreation_ground"},
	"natural": {"wood", "scrub", "grassland"},
}

var waterTags = map[string][]string{
	"natural":  {"water", "bay"},
	"waterway": nil,
	"landuse":  {"reservoir", "basin"},
}

// ParseLandCoverCategory maps an explicit category attribute to a
// LandCoverCategory. Unknown values map to LandCoverOther.
func ParseLandCoverCategory(s string) LandCoverCategory {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "green", "park", "vegetation":
		return LandCoverGreen
	case "water":
		return LandCoverWater
	default:
		return LandCoverOther
	}
}

// LandCoverCategoryFromTags classifies a polygon from its attributes. An
// explicit "category" attribute wins; otherwise OSM tags are consulted, water
// before green.
func LandCoverCategoryFromTags(tags map[string]string) LandCoverCategory {
	if c, ok := tags["category"]; ok && c != "" {
		return ParseLandCoverCategory(c)
	}
	if matchTags(tags, waterTags) {
		return LandCoverWater
	}
	if matchTags(tags, greenTags) {
		return LandCoverGreen
	}
	return LandCoverOther
}

func matchTags(tags map[string]string, want map[string][]string) bool {
	for key, values := range want {
		v, ok := tags[key]
		if !ok || v == "" || v == "no" {
			continue
		}
		if values == nil {
			return true
		}
		v = strings.ToLower(v)
		for _, candidate := range values {
			if v == candidate {
				return true
			}
		}
	}
	return false
}

// TrafficCategoryFromTag maps an OSM highway value to a TrafficCategory.
// Link roads share the class of the road they connect.
func TrafficCategoryFromTag(highway string) TrafficCategory {
	h := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(highway)), "_link")
	switch TrafficCategory(h) {
	case TrafficMotorway, TrafficTrunk, TrafficPrimary, TrafficSecondary,
		TrafficTertiary, TrafficResidential, TrafficService:
		return TrafficCategory(h)
	case "unclassified", "living_street":
		return TrafficResidential
	default:
		return TrafficOther
	}
}
