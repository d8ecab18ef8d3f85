// internal/models/hotspot.go
package models

// Hotspot places a highlighted feature inside a panorama. Angles are degrees,
// bearing clockwise from the panorama's north and elevation above the horizon.
type Hotspot struct {
	FeatureID  int         `json:"feature_id"`
	Bearing    float64     `json:"bearing"`
	Elevation  float64     `json:"elevation"`
	Distance   float64     `json:"distance"`
	Type       FeatureType `json:"type"`
	Condition  Condition   `json:"condition"`
	Confidence float64     `json:"confidence"`
}

// NearbyEdge links the active panorama to a close-by one.
type NearbyEdge struct {
	ImageID  int     `json:"image_id"`
	Bearing  float64 `json:"bearing"`
	Distance float64 `json:"distance"`
}
