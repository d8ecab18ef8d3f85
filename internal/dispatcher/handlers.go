package dispatcher

import (
	"context"
	"fmt"

	apperrors "mapping-viewer/internal/common/errors"
	"mapping-viewer/internal/common/metrics"
	"mapping-viewer/internal/mapcmd"
	"mapping-viewer/internal/models"
	"mapping-viewer/internal/overlay"
)

func (d *Dispatcher) highlightFeatures(ctx context.Context, cmd mapcmd.Command) (Status, error) {
	c, ok := cmd.(mapcmd.HighlightFeatures)
	if !ok {
		return StatusFailed, fmt.Errorf("unexpected payload %T", cmd)
	}

	var (
		ids      []int
		features []models.Feature
		dropped  []int
	)
	seen := map[int]bool{}
	for _, id := range c.FeatureIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		f, found := d.lookupFeature(id)
		if _, drawable := f.Point(); !found || !drawable {
			dropped = append(dropped, id)
			continue
		}
		ids = append(ids, id)
		features = append(features, f)
	}
	d.noteDropped(overlay.KindFeatures, dropped)

	set := overlay.HighlightSet{
		Kind:  overlay.KindFeatures,
		IDs:   ids,
		Color: c.Color,
		Label: c.Label,
		Data:  overlay.FeatureCollection(features),
	}
	err := d.applyHighlight(set)
	d.notifyFeatures(ids)
	if err != nil {
		return StatusFailed, err
	}
	return StatusApplied, nil
}

func (d *Dispatcher) highlightImage(ctx context.Context, cmd mapcmd.Command) (Status, error) {
	c, ok := cmd.(mapcmd.HighlightImage)
	if !ok {
		return StatusFailed, fmt.Errorf("unexpected payload %T", cmd)
	}

	var (
		ids     []int
		images  []models.ImagePosition
		dropped []int
	)
	seen := map[int]bool{}
	for _, id := range c.ImageIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		img, found := d.lookupImage(id)
		if _, drawable := img.Point(); !found || !drawable {
			dropped = append(dropped, id)
			continue
		}
		ids = append(ids, id)
		images = append(images, img)
	}
	d.noteDropped(overlay.KindImages, dropped)

	set := overlay.HighlightSet{
		Kind:  overlay.KindImages,
		IDs:   ids,
		Color: c.Color,
		Label: c.Label,
		Data:  overlay.ImageCollection(images),
	}
	if err := d.applyHighlight(set); err != nil {
		return StatusFailed, err
	}
	return StatusApplied, nil
}

// applyHighlight replaces the highlight and frames the viewport on a non-empty result.
// An engine that is between styles only delays drawing; the recorded set is
// drawn when the style manager restores highlights.
func (d *Dispatcher) applyHighlight(set overlay.HighlightSet) error {
	if err := d.store.SetHighlight(set); err != nil {
		if !apperrors.HasCode(err, apperrors.ErrCodeEngineInconsistency) {
			return err
		}
		d.logger.Debug("highlight recorded, drawing waits for the style", map[string]interface{}{
			"kind":  string(set.Kind),
			"error": err.Error(),
		})
	}
	if len(set.IDs) == 0 {
		return nil
	}
	if b, ok := overlay.Bound(set.Data); ok {
		return d.store.FitTo(b)
	}
	return nil
}

func (d *Dispatcher) showStatistics(ctx context.Context, cmd mapcmd.Command) (Status, error) {
	c, ok := cmd.(mapcmd.ShowStatistics)
	if !ok {
		return StatusFailed, fmt.Errorf("unexpected payload %T", cmd)
	}
	d.store.ShowStatistics(overlay.StatisticsPanel{Title: c.Title, Rows: c.Stats})
	return StatusApplied, nil
}

func (d *Dispatcher) clearHighlights(ctx context.Context, cmd mapcmd.Command) (Status, error) {
	d.store.ClearHighlights()
	d.notifyFeatures(nil)
	return StatusApplied, nil
}

func (d *Dispatcher) showHeatmap(ctx context.Context, cmd mapcmd.Command) (Status, error) {
	c, _ := cmd.(mapcmd.ShowHeatmap)
	d.logger.Info("heatmap rendering deferred", map[string]interface{}{
		"points":   len(c.Points),
		"property": c.Property,
	})
	return StatusDeferred, nil
}

func (d *Dispatcher) lookupFeature(id int) (models.Feature, bool) {
	if d.catalog == nil {
		return models.Feature{}, false
	}
	return d.catalog.Feature(id)
}

func (d *Dispatcher) lookupImage(id int) (models.ImagePosition, bool) {
	if d.catalog == nil {
		return models.ImagePosition{}, false
	}
	return d.catalog.Image(id)
}

func (d *Dispatcher) noteDropped(kind overlay.Kind, dropped []int) {
	if len(dropped) == 0 {
		return
	}
	metrics.HighlightDroppedIDs.WithLabelValues(string(kind)).Add(float64(len(dropped)))
	d.logger.Debug("unknown or undrawable ids dropped from highlight", map[string]interface{}{
		"kind": string(kind),
		"ids":  dropped,
	})
}

func (d *Dispatcher) notifyFeatures(ids []int) {
	for _, fn := range d.featureListeners {
		fn(append([]int(nil), ids...))
	}
}
