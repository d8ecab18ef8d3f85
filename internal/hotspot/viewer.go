package hotspot

import "fmt"

// Marker kinds.
const (
	KindFeature = "feature"
	KindNearby  = "nearby"
)

// Visual contract for markers.
const (
	FeatureIcon   = "feature-marker"
	FeatureAlpha  = 0.9
	FeatureZIndex = 20
	CameraZIndex  = 10
	NearbyIcon    = "nearby-panorama"
	NearbyHover   = 1.25
)

// Tooltip is shown while the pointer rests on a feature marker.
type Tooltip struct {
	Type       string  `json:"type"`
	Distance   float64 `json:"distance"`
	Condition  string  `json:"condition"`
	Confidence float64 `json:"confidence"`
}

func (t Tooltip) String() string {
	return fmt.Sprintf("%s (%s) %.1f m, confidence %.0f%%", t.Type, t.Condition, t.Distance, t.Confidence*100)
}

// Marker is one hotspot as the panorama engine draws it. Yaw and Pitch are degrees.
type Marker struct {
	ID         string
	Kind       string
	Yaw        float64
	Pitch      float64
	Icon       string
	Alpha      float64
	ZIndex     int
	HoverScale float64
	Clickable  bool
	Target     int // panorama to navigate to, nearby markers only
	Tooltip    *Tooltip
}

// Viewer is the panorama engine surface the synchronizer drives.
type Viewer interface {
	AddMarker(m Marker) error
	RemoveMarker(id string) error
	Markers() []Marker
}

// Navigator receives "go to panorama" requests; the synchronizer never switches panoramas itself.
type Navigator interface {
	NavigateTo(imageID int)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(imageID int)

func (f NavigatorFunc) NavigateTo(imageID int) { f(imageID) }

// FeatureMarkerID is the deterministic tag of a feature marker.
func FeatureMarkerID(featureID int) string {
	return fmt.Sprintf("feature-%d", featureID)
}

// NearbyMarkerID is the deterministic tag of a nearby-panorama marker.
func NearbyMarkerID(imageID int) string {
	return fmt.Sprintf("nearby-%d", imageID)
}
