package overlay

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"mapping-viewer/internal/models"
)

// FeatureCollection renders campaign features as GeoJSON. Features without a
// point geometry are skipped.
func FeatureCollection(features []models.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		p, ok := f.Point()
		if !ok {
			continue
		}
		gf := geojson.NewFeature(p)
		gf.ID = f.ID
		gf.Properties["id"] = f.ID
		gf.Properties["type"] = string(f.Type)
		gf.Properties["condition"] = string(f.Condition)
		gf.Properties["confidence"] = f.Confidence
		fc.Append(gf)
	}
	return fc
}

// ImageCollection renders camera positions as GeoJSON.
func ImageCollection(images []models.ImagePosition) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, img := range images {
		p, ok := img.Point()
		if !ok {
			continue
		}
		gf := geojson.NewFeature(p)
		gf.ID = img.ID
		gf.Properties["id"] = img.ID
		gf.Properties["camera_id"] = img.CameraID
		gf.Properties["heading"] = img.Heading
		fc.Append(gf)
	}
	return fc
}

// Bound returns the bounding box of every geometry in fc; ok is false when fc is empty.
func Bound(fc *geojson.FeatureCollection) (orb.Bound, bool) {
	if fc == nil || len(fc.Features) == 0 {
		return orb.Bound{}, false
	}
	b := fc.Features[0].Geometry.Bound()
	for _, f := range fc.Features[1:] {
		b = b.Union(f.Geometry.Bound())
	}
	return b, true
}

// cloneCollection deep-copies geometries and properties so a snapshot shares
// nothing with the live store.
func cloneCollection(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	if fc == nil {
		return nil
	}
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		c := geojson.NewFeature(orb.Clone(f.Geometry))
		c.ID = f.ID
		c.Properties = f.Properties.Clone()
		out.Append(c)
	}
	return out
}
