// internal/models/campaign.go
package models

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureType is the detector class of a campaign feature.
type FeatureType string

const (
	// Horizontal features
	FeaturePavementDamage FeatureType = "pavement_damage"
	FeatureRoadMarking    FeatureType = "road_marking"
	FeatureManholeCover   FeatureType = "manhole_cover"
	FeatureDrainageGrate  FeatureType = "drainage_grate"
	FeaturePavementPatch  FeatureType = "pavement_patch"

	// Vertical features
	FeatureTrafficSign  FeatureType = "traffic_sign"
	FeatureStreetLight  FeatureType = "street_light"
	FeatureUtilityPole  FeatureType = "utility_pole"
	FeatureTrashBin     FeatureType = "trash_bin"
	FeatureFireHydrant  FeatureType = "fire_hydrant"
	FeatureTrafficLight FeatureType = "traffic_light"
	FeatureVegetation   FeatureType = "vegetation"
)

var knownFeatureTypes = map[FeatureType]bool{
	FeaturePavementDamage: true, FeatureRoadMarking: true, FeatureManholeCover: true,
	FeatureDrainageGrate: true, FeaturePavementPatch: true,
	FeatureTrafficSign: true, FeatureStreetLight: true, FeatureUtilityPole: true,
	FeatureTrashBin: true, FeatureFireHydrant: true, FeatureTrafficLight: true, FeatureVegetation: true,
}

// Condition is the assessed state of a feature, ordered good < fair < poor < damaged.
type Condition string

const (
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
	ConditionPoor    Condition = "poor"
	ConditionDamaged Condition = "damaged"
)

// ConditionRank returns the ordinal of c, or -1 for values outside the scale.
func ConditionRank(c Condition) int {
	switch c {
	case ConditionGood:
		return 0
	case ConditionFair:
		return 1
	case ConditionPoor:
		return 2
	case ConditionDamaged:
		return 3
	}
	return -1
}

// DefaultConfidence is assumed when the detector did not report one.
const DefaultConfidence = 0.85

type Feature struct {
	ID         int                    `json:"id"`
	Type       FeatureType            `json:"type"`
	Condition  Condition              `json:"condition"`
	Confidence float64                `json:"confidence"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	ImageIDs   []int                  `json:"image_ids,omitempty"`
}

// Known reports whether the feature type belongs to the detector's catalogue.
func (f Feature) Known() bool {
	return knownFeatureTypes[f.Type]
}

// Point returns the feature location; ok is false when the geometry is not a point.
func (f Feature) Point() (orb.Point, bool) {
	return pointOf(f.Geometry)
}

type ImagePosition struct {
	ID         int               `json:"id"`
	Timestamp  string            `json:"timestamp,omitempty"`
	CameraID   string            `json:"camera_id,omitempty"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Heading    float64           `json:"heading"`
	FeatureIDs []int             `json:"feature_ids,omitempty"`
	ImagePath  string            `json:"image_path,omitempty"`
}

// Point returns the camera location; ok is false when the geometry is not a point.
func (i ImagePosition) Point() (orb.Point, bool) {
	return pointOf(i.Geometry)
}

// Campaign is the wire form of a survey dataset.
type Campaign struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Features []Feature       `json:"features"`
	Images   []ImagePosition `json:"images"`
}

func pointOf(g *geojson.Geometry) (orb.Point, bool) {
	if g == nil || g.Coordinates == nil {
		return orb.Point{}, false
	}
	p, ok := g.Coordinates.(orb.Point)
	return p, ok
}
