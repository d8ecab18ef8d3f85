// Package mapcmd holds the map command variants the agent can send and decodes
// them from their wire form.
package mapcmd

// Wire tags.
const (
	TagHighlightFeatures = "highlight_features"
	TagHighlightImage    = "highlight_image"
	TagShowStatistics    = "show_statistics"
	TagClearHighlights   = "clear_highlights"
	TagShowHeatmap       = "show_heatmap"
)

// Tags lists every tag the decoder has a variant for.
var Tags = []string{TagHighlightFeatures, TagHighlightImage, TagShowStatistics, TagClearHighlights, TagShowHeatmap}

// Command is one decoded, default-filled map command.
type Command interface {
	Tag() string
}

// HighlightFeatures replaces the feature highlight. An empty list clears it.
type HighlightFeatures struct {
	FeatureIDs []int  `json:"feature_ids"`
	Color      string `json:"color"`
	Label      string `json:"label,omitempty"`
}

func (HighlightFeatures) Tag() string { return TagHighlightFeatures }

// HighlightImage replaces the image highlight. An empty list clears it.
type HighlightImage struct {
	ImageIDs []int  `json:"image_ids"`
	Color    string `json:"color"`
	Label    string `json:"label,omitempty"`
}

func (HighlightImage) Tag() string { return TagHighlightImage }

// ShowStatistics replaces the statistics panel.
type ShowStatistics struct {
	Title string `json:"title"`
	Stats Stats  `json:"stats"`
}

func (ShowStatistics) Tag() string { return TagShowStatistics }

// ClearHighlights removes both highlight kinds and the statistics panel.
type ClearHighlights struct{}

func (ClearHighlights) Tag() string { return TagClearHighlights }

type HeatPoint struct {
	Lon    float64 `json:"lon"`
	Lat    float64 `json:"lat"`
	Weight float64 `json:"weight,omitempty"`
}

// ShowHeatmap is accepted but not rendered.
type ShowHeatmap struct {
	Points   []HeatPoint `json:"points"`
	Property string      `json:"property,omitempty"`
}

func (ShowHeatmap) Tag() string { return TagShowHeatmap }
