// Package overlay owns every source, layer and highlight the viewer draws on top
// of the basemap, and projects that state onto a map engine.
package overlay

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Engine is the subset of a map rendering engine the store drives. Implementations
// return an error for duplicate or missing sources and layers.
type Engine interface {
	AddSource(id string, data *geojson.FeatureCollection) error
	SetSourceData(id string, data *geojson.FeatureCollection) error
	RemoveSource(id string) error
	HasSource(id string) bool

	AddLayer(spec LayerSpec) error
	RemoveLayer(id string) error
	HasLayer(id string) bool
	SetPaintProperty(layerID, name string, value interface{}) error

	FitBounds(bound orb.Bound, padding int) error
}

// LayerSpec describes how a source is drawn.
type LayerSpec struct {
	ID       string                 `json:"id"`
	SourceID string                 `json:"source"`
	Type     string                 `json:"type"`
	Paint    map[string]interface{} `json:"paint,omitempty"`
}

// Kind distinguishes the two highlight flavours.
type Kind string

const (
	KindFeatures Kind = "features"
	KindImages   Kind = "images"
)

// Kinds lists highlight kinds in restore order.
var Kinds = []Kind{KindFeatures, KindImages}

// Layer and source identifiers.
const (
	BaseFeaturesLayer  = "features-layer"
	BaseFeaturesSource = "features"
	BaseImagesLayer    = "images-layer"
	BaseImagesSource   = "images"

	HighlightFeaturesLayer  = "highlight-features-layer"
	HighlightFeaturesSource = "highlight-features"
	HighlightImagesLayer    = "highlight-images-layer"
	HighlightImagesSource   = "highlight-images"
)

var wellKnownSources = map[string]string{
	BaseFeaturesLayer:      BaseFeaturesSource,
	BaseImagesLayer:        BaseImagesSource,
	HighlightFeaturesLayer: HighlightFeaturesSource,
	HighlightImagesLayer:   HighlightImagesSource,
}

// HighlightLayerSpec returns the layer used for a highlight kind drawn in color.
func HighlightLayerSpec(kind Kind, color string) LayerSpec {
	if kind == KindImages {
		return LayerSpec{
			ID:       HighlightImagesLayer,
			SourceID: HighlightImagesSource,
			Type:     "circle",
			Paint: map[string]interface{}{
				"circle-radius":       8,
				"circle-color":        color,
				"circle-stroke-width": 2,
				"circle-stroke-color": "#FFFFFF",
			},
		}
	}
	return LayerSpec{
		ID:       HighlightFeaturesLayer,
		SourceID: HighlightFeaturesSource,
		Type:     "circle",
		Paint: map[string]interface{}{
			"circle-radius":       10,
			"circle-color":        color,
			"circle-opacity":      0.8,
			"circle-stroke-width": 2,
			"circle-stroke-color": "#FFFFFF",
		},
	}
}

func baseFeaturesSpec() LayerSpec {
	return LayerSpec{
		ID:       BaseFeaturesLayer,
		SourceID: BaseFeaturesSource,
		Type:     "circle",
		Paint: map[string]interface{}{
			"circle-radius": 5,
			"circle-color": []interface{}{
				"match", []interface{}{"get", "condition"},
				"good", "#2ECC71",
				"fair", "#F1C40F",
				"poor", "#E67E22",
				"damaged", "#E74C3C",
				"#95A5A6",
			},
		},
	}
}

func baseImagesSpec() LayerSpec {
	return LayerSpec{
		ID:       BaseImagesLayer,
		SourceID: BaseImagesSource,
		Type:     "circle",
		Paint: map[string]interface{}{
			"circle-radius":  3,
			"circle-color":   "#3498DB",
			"circle-opacity": 0.6,
		},
	}
}
