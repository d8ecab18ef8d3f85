package hotspot

import (
	"context"
	"sort"

	apperrors "mapping-viewer/internal/common/errors"
	"mapping-viewer/internal/common/logger"
	"mapping-viewer/internal/common/metrics"
	"mapping-viewer/internal/eventloop"
	"mapping-viewer/internal/models"
)

// Projector is the geometry service that places features and neighbours inside a panorama.
type Projector interface {
	ProjectFeatures(ctx context.Context, imageID int, featureIDs []int) ([]models.Hotspot, error)
	NearbyImages(ctx context.Context, imageID int, maxDistance float64) ([]models.NearbyEdge, error)
}

// Fetch outcomes.
const (
	fetchOK        = "ok"
	fetchFailed    = "failed"
	fetchDiscarded = "discarded"
)

// Synchronizer keeps the panorama's hotspots in step with the active panorama
// and the feature highlight. Every method must be called on the event loop.
type Synchronizer struct {
	viewer    Viewer
	projector Projector
	navigator Navigator
	scheduler eventloop.Scheduler
	radius    float64
	logger    logger.Logger
	reporter  *apperrors.Reporter

	active    bool
	imageID   int
	highlight []int
	ctx       context.Context
	cancel    context.CancelFunc

	// bumped on every input change; responses carrying an older value are dropped
	featureGen uint64
	nearbyGen  uint64

	features map[string]models.Hotspot
	nearby   map[string]int
}

func NewSynchronizer(viewer Viewer, projector Projector, nav Navigator, s eventloop.Scheduler, radius float64, log logger.Logger) *Synchronizer {
	l := logger.ForComponent(log, "hotspot")
	return &Synchronizer{
		viewer:    viewer,
		projector: projector,
		navigator: nav,
		scheduler: s,
		radius:    radius,
		logger:    l,
		reporter:  apperrors.NewReporter(l),
		features:  map[string]models.Hotspot{},
		nearby:    map[string]int{},
	}
}

// Active returns the panorama currently shown.
func (s *Synchronizer) Active() (imageID int, ok bool) {
	return s.imageID, s.active
}

// SetPanorama makes imageID the active panorama and refreshes both hotspot kinds.
func (s *Synchronizer) SetPanorama(imageID int) {
	if s.active && s.imageID == imageID {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.active = true
	s.imageID = imageID

	s.syncFeatures()
	s.syncNearby()
}

// SetHighlight replaces the highlighted feature IDs.
func (s *Synchronizer) SetHighlight(ids []int) {
	s.highlight = append([]int(nil), ids...)
	if !s.active {
		return
	}
	s.syncFeatures()
}

// Close drops every hotspot and discards responses still in flight. The
// highlight is kept for the next panorama.
func (s *Synchronizer) Close() {
	if !s.active {
		return
	}
	s.active = false
	s.featureGen++
	s.nearbyGen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.removeFeatureMarkers()
	s.removeNearbyMarkers()
}

// Hover returns the tooltip of a feature hotspot.
func (s *Synchronizer) Hover(markerID string) (Tooltip, bool) {
	h, ok := s.features[markerID]
	if !ok {
		return Tooltip{}, false
	}
	return tooltipFor(h), true
}

// Click asks the host to navigate when markerID is a nearby-panorama hotspot.
func (s *Synchronizer) Click(markerID string) bool {
	target, ok := s.nearby[markerID]
	if !ok {
		return false
	}
	s.logger.Debug("navigate to nearby panorama", map[string]interface{}{"from": s.imageID, "to": target})
	s.navigator.NavigateTo(target)
	return true
}

// FeatureHotspots lists the placed feature hotspots by feature ID.
func (s *Synchronizer) FeatureHotspots() []models.Hotspot {
	out := make([]models.Hotspot, 0, len(s.features))
	for _, h := range s.features {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FeatureID < out[j].FeatureID })
	return out
}

func (s *Synchronizer) syncFeatures() {
	s.featureGen++
	s.removeFeatureMarkers()
	if len(s.highlight) == 0 {
		return
	}

	gen, imageID := s.featureGen, s.imageID
	ids := append([]int(nil), s.highlight...)
	eventloop.Fetch(s.scheduler, s.ctx,
		func(ctx context.Context) ([]models.Hotspot, error) {
			return s.projector.ProjectFeatures(ctx, imageID, ids)
		},
		func(hotspots []models.Hotspot, err error) {
			if !s.active || gen != s.featureGen {
				metrics.HotspotFetches.WithLabelValues(KindFeature, fetchDiscarded).Inc()
				s.logger.Debug("discarding stale projection", map[string]interface{}{"imageId": imageID})
				return
			}
			if err != nil {
				metrics.HotspotFetches.WithLabelValues(KindFeature, fetchFailed).Inc()
				s.reporter.Report("projectFeatures", err)
				return
			}
			metrics.HotspotFetches.WithLabelValues(KindFeature, fetchOK).Inc()
			for _, h := range hotspots {
				s.addFeature(h)
			}
		})
}

func (s *Synchronizer) syncNearby() {
	s.nearbyGen++
	s.removeNearbyMarkers()

	gen, imageID := s.nearbyGen, s.imageID
	eventloop.Fetch(s.scheduler, s.ctx,
		func(ctx context.Context) ([]models.NearbyEdge, error) {
			return s.projector.NearbyImages(ctx, imageID, s.radius)
		},
		func(edges []models.NearbyEdge, err error) {
			if !s.active || gen != s.nearbyGen {
				metrics.HotspotFetches.WithLabelValues(KindNearby, fetchDiscarded).Inc()
				return
			}
			if err != nil {
				metrics.HotspotFetches.WithLabelValues(KindNearby, fetchFailed).Inc()
				s.reporter.Report("nearbyImages", err)
				return
			}
			metrics.HotspotFetches.WithLabelValues(KindNearby, fetchOK).Inc()
			for _, e := range edges {
				if e.ImageID == imageID {
					continue
				}
				s.addNearby(e)
			}
		})
}

func (s *Synchronizer) addFeature(h models.Hotspot) {
	id := FeatureMarkerID(h.FeatureID)
	if _, dup := s.features[id]; dup {
		return
	}
	tip := tooltipFor(h)
	m := Marker{
		ID:      id,
		Kind:    KindFeature,
		Yaw:     h.Bearing,
		Pitch:   h.Elevation,
		Icon:    FeatureIcon,
		Alpha:   FeatureAlpha,
		ZIndex:  FeatureZIndex,
		Tooltip: &tip,
	}
	if err := s.viewer.AddMarker(m); err != nil {
		s.reporter.Report("addMarker", apperrors.NewEngineInconsistencyError("addMarker", id, err))
		return
	}
	s.features[id] = h
}

func (s *Synchronizer) addNearby(e models.NearbyEdge) {
	id := NearbyMarkerID(e.ImageID)
	if _, dup := s.nearby[id]; dup {
		return
	}
	m := Marker{
		ID:         id,
		Kind:       KindNearby,
		Yaw:        e.Bearing,
		Icon:       NearbyIcon,
		Alpha:      1,
		ZIndex:     CameraZIndex,
		HoverScale: NearbyHover,
		Clickable:  true,
		Target:     e.ImageID,
	}
	if err := s.viewer.AddMarker(m); err != nil {
		s.reporter.Report("addMarker", apperrors.NewEngineInconsistencyError("addMarker", id, err))
		return
	}
	s.nearby[id] = e.ImageID
}

func (s *Synchronizer) removeFeatureMarkers() {
	for id := range s.features {
		s.removeMarker(id)
	}
	s.features = map[string]models.Hotspot{}
}

func (s *Synchronizer) removeNearbyMarkers() {
	for id := range s.nearby {
		s.removeMarker(id)
	}
	s.nearby = map[string]int{}
}

func (s *Synchronizer) removeMarker(id string) {
	if err := s.viewer.RemoveMarker(id); err != nil {
		s.reporter.Report("removeMarker", apperrors.NewEngineInconsistencyError("removeMarker", id, err))
	}
}

func tooltipFor(h models.Hotspot) Tooltip {
	return Tooltip{
		Type:       string(h.Type),
		Distance:   h.Distance,
		Condition:  string(h.Condition),
		Confidence: h.Confidence,
	}
}
