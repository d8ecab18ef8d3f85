// Package campaign loads the survey dataset once and serves it read-only.
package campaign

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb/geojson"

	apperrors "mapping-viewer/internal/common/errors"
	"mapping-viewer/internal/models"
	"mapping-viewer/internal/overlay"
)

// Dataset is an immutable, indexed campaign.
type Dataset struct {
	ID   string
	Name string

	features map[int]models.Feature
	images   map[int]models.ImagePosition

	featureLayer *geojson.FeatureCollection
	imageLayer   *geojson.FeatureCollection
}

// NewDataset indexes c. IDs must be unique per kind.
func NewDataset(c *models.Campaign) (*Dataset, error) {
	if c == nil {
		return nil, apperrors.NewDatasetInvalidError("campaign is empty")
	}
	d := &Dataset{
		ID:       c.ID,
		Name:     c.Name,
		features: make(map[int]models.Feature, len(c.Features)),
		images:   make(map[int]models.ImagePosition, len(c.Images)),
	}
	for _, f := range c.Features {
		if _, dup := d.features[f.ID]; dup {
			return nil, apperrors.NewDatasetInvalidError(fmt.Sprintf("duplicate feature id %d", f.ID))
		}
		if f.Confidence == 0 {
			f.Confidence = models.DefaultConfidence
		}
		d.features[f.ID] = f
	}
	for _, img := range c.Images {
		if _, dup := d.images[img.ID]; dup {
			return nil, apperrors.NewDatasetInvalidError(fmt.Sprintf("duplicate image id %d", img.ID))
		}
		d.images[img.ID] = img
	}

	d.featureLayer = overlay.FeatureCollection(d.Features())
	d.imageLayer = overlay.ImageCollection(d.Images())
	return d, nil
}

func (d *Dataset) Feature(id int) (models.Feature, bool) {
	f, ok := d.features[id]
	return f, ok
}

func (d *Dataset) Image(id int) (models.ImagePosition, bool) {
	img, ok := d.images[id]
	return img, ok
}

// Features lists every feature by ID.
func (d *Dataset) Features() []models.Feature {
	out := make([]models.Feature, 0, len(d.features))
	for _, f := range d.features {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Images lists every camera position by ID.
func (d *Dataset) Images() []models.ImagePosition {
	out := make([]models.ImagePosition, 0, len(d.images))
	for _, img := range d.images {
		out = append(out, img)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Layers returns the base layer payloads. They are shared; callers must not modify them.
func (d *Dataset) Layers() (features, images *geojson.FeatureCollection) {
	return d.featureLayer, d.imageLayer
}

// PanoramaPath is the path the panorama definition is served under.
func (d *Dataset) PanoramaPath(imageID int) (string, bool) {
	img, ok := d.images[imageID]
	if !ok {
		return "", false
	}
	if img.ImagePath != "" {
		return img.ImagePath, true
	}
	return fmt.Sprintf("%d", img.ID), true
}

// Summary counts features per type.
func (d *Dataset) Summary() map[models.FeatureType]int {
	out := map[models.FeatureType]int{}
	for _, f := range d.features {
		out[f.Type]++
	}
	return out
}
