package overlay

import (
	"reflect"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	apperrors "mapping-viewer/internal/common/errors"
	"mapping-viewer/internal/common/logger"
	"mapping-viewer/internal/mapcmd"
)

// HighlightSet is the current highlight of one kind.
type HighlightSet struct {
	Kind  Kind
	IDs   []int
	Color string
	Label string
	Data  *geojson.FeatureCollection
}

func (h HighlightSet) clone() HighlightSet {
	h.IDs = append([]int(nil), h.IDs...)
	h.Data = cloneCollection(h.Data)
	return h
}

// StatisticsPanel is the titled key/value panel shown next to the map.
type StatisticsPanel struct {
	Title string
	Rows  mapcmd.Stats
}

// Snapshot is an independent copy of every highlight set, taken before a style swap.
type Snapshot struct {
	Generation uint64
	Sets       map[Kind]HighlightSet
}

// Empty reports whether the snapshot holds no highlight.
func (s Snapshot) Empty() bool {
	return len(s.Sets) == 0
}

type layerEntry struct {
	spec LayerSpec
	data *geojson.FeatureCollection
}

// Store is the single owner of overlay state. It is not safe for concurrent use;
// every call happens on the event loop.
type Store struct {
	engine     Engine
	logger     logger.Logger
	reporter   *apperrors.Reporter
	fitPadding int

	layers     map[string]layerEntry
	highlights map[Kind]HighlightSet
	stats      *StatisticsPanel
	generation uint64
}

func NewStore(engine Engine, fitPadding int, log logger.Logger) *Store {
	l := logger.ForComponent(log, "overlay")
	return &Store{
		engine:     engine,
		logger:     l,
		reporter:   apperrors.NewReporter(l),
		fitPadding: fitPadding,
		layers:     make(map[string]layerEntry),
		highlights: make(map[Kind]HighlightSet),
	}
}

// UpsertLayer replaces the data of an existing layer in place, or creates the
// source and then the layer.
func (s *Store) UpsertLayer(spec LayerSpec, data *geojson.FeatureCollection) error {
	if data == nil {
		data = geojson.NewFeatureCollection()
	}

	if prev, known := s.layers[spec.ID]; known && s.engine.HasLayer(spec.ID) && s.engine.HasSource(spec.SourceID) {
		if err := s.engine.SetSourceData(spec.SourceID, data); err != nil {
			return apperrors.NewEngineInconsistencyError("setSourceData", spec.SourceID, err)
		}
		for name, value := range spec.Paint {
			if reflect.DeepEqual(prev.spec.Paint[name], value) {
				continue
			}
			if err := s.engine.SetPaintProperty(spec.ID, name, value); err != nil {
				return apperrors.NewEngineInconsistencyError("setPaintProperty", spec.ID, err)
			}
		}
		s.layers[spec.ID] = layerEntry{spec: spec, data: data}
		return nil
	}

	if s.engine.HasSource(spec.SourceID) {
		if err := s.engine.SetSourceData(spec.SourceID, data); err != nil {
			return apperrors.NewEngineInconsistencyError("setSourceData", spec.SourceID, err)
		}
	} else if err := s.engine.AddSource(spec.SourceID, data); err != nil {
		return apperrors.NewEngineInconsistencyError("addSource", spec.SourceID, err)
	}

	if !s.engine.HasLayer(spec.ID) {
		if err := s.engine.AddLayer(spec); err != nil {
			return apperrors.NewEngineInconsistencyError("addLayer", spec.ID, err)
		}
	}
	s.layers[spec.ID] = layerEntry{spec: spec, data: data}
	return nil
}

// RemoveLayer drops the layer and then its source. Missing ones are ignored.
func (s *Store) RemoveLayer(id string) {
	sourceID := wellKnownSources[id]
	if entry, known := s.layers[id]; known {
		sourceID = entry.spec.SourceID
	}
	delete(s.layers, id)

	if s.engine.HasLayer(id) {
		if err := s.engine.RemoveLayer(id); err != nil {
			s.reporter.Report("removeLayer", apperrors.NewEngineInconsistencyError("removeLayer", id, err))
		}
	}
	if sourceID != "" && s.engine.HasSource(sourceID) {
		if err := s.engine.RemoveSource(sourceID); err != nil {
			s.reporter.Report("removeSource", apperrors.NewEngineInconsistencyError("removeSource", sourceID, err))
		}
	}
}

// HasLayer reports whether the store currently tracks the layer.
func (s *Store) HasLayer(id string) bool {
	_, ok := s.layers[id]
	return ok
}

// LayerData returns the data last pushed to a layer.
func (s *Store) LayerData(id string) (*geojson.FeatureCollection, bool) {
	entry, ok := s.layers[id]
	return entry.data, ok
}

// Layers lists tracked layer IDs.
func (s *Store) Layers() []string {
	ids := make([]string, 0, len(s.layers))
	for id := range s.layers {
		ids = append(ids, id)
	}
	return ids
}

// SetHighlight replaces the highlight of a kind. An empty set removes it.
// The recorded state changes even when the engine rejects the update.
func (s *Store) SetHighlight(set HighlightSet) error {
	s.generation++
	spec := HighlightLayerSpec(set.Kind, set.Color)

	if len(set.IDs) == 0 {
		delete(s.highlights, set.Kind)
		s.RemoveLayer(spec.ID)
		return nil
	}

	s.highlights[set.Kind] = set
	return s.UpsertLayer(spec, set.Data)
}

// Highlight returns the current highlight of a kind.
func (s *Store) Highlight(kind Kind) (HighlightSet, bool) {
	h, ok := s.highlights[kind]
	return h, ok
}

// ClearHighlights removes both highlight kinds and the statistics panel.
// Base layers stay.
func (s *Store) ClearHighlights() {
	s.generation++
	for _, kind := range Kinds {
		delete(s.highlights, kind)
		s.RemoveLayer(HighlightLayerSpec(kind, "").ID)
	}
	s.stats = nil
}

// Generation increments on every highlight mutation.
func (s *Store) Generation() uint64 {
	return s.generation
}

// Snapshot copies every highlight set.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{Generation: s.generation, Sets: make(map[Kind]HighlightSet, len(s.highlights))}
	for kind, h := range s.highlights {
		snap.Sets[kind] = h.clone()
	}
	return snap
}

// Restore re-creates highlight layers after a style swap. When highlights
// changed since snap was taken, the live state is restored instead.
func (s *Store) Restore(snap Snapshot) error {
	sets := snap.Sets
	if snap.Generation != s.generation {
		s.logger.Debug("highlights changed during transition, restoring live state", map[string]interface{}{
			"snapshotGeneration": snap.Generation,
			"liveGeneration":     s.generation,
		})
		sets = s.highlights
	}

	var firstErr error
	for _, kind := range Kinds {
		set, ok := sets[kind]
		if !ok || len(set.IDs) == 0 {
			continue
		}
		s.highlights[kind] = set
		if err := s.UpsertLayer(HighlightLayerSpec(kind, set.Color), cloneCollection(set.Data)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Invalidate forgets tracked layers after the engine dropped its render context.
// Highlight state is kept.
func (s *Store) Invalidate() {
	s.layers = make(map[string]layerEntry)
}

// InstallBaseLayers draws the campaign features and camera positions. With
// cleanup, existing base layers are removed first.
func (s *Store) InstallBaseLayers(features, images *geojson.FeatureCollection, cleanup bool) error {
	if cleanup {
		s.RemoveLayer(BaseFeaturesLayer)
		s.RemoveLayer(BaseImagesLayer)
	}
	if err := s.UpsertLayer(baseImagesSpec(), images); err != nil {
		return err
	}
	return s.UpsertLayer(baseFeaturesSpec(), features)
}

// ShowStatistics replaces the statistics panel.
func (s *Store) ShowStatistics(panel StatisticsPanel) {
	s.stats = &panel
}

// Statistics returns the current panel.
func (s *Store) Statistics() (StatisticsPanel, bool) {
	if s.stats == nil {
		return StatisticsPanel{}, false
	}
	return *s.stats, true
}

// FitTo frames the viewport on b with the configured inset.
func (s *Store) FitTo(b orb.Bound) error {
	if err := s.engine.FitBounds(b, s.fitPadding); err != nil {
		return apperrors.NewEngineInconsistencyError("fitBounds", "", err)
	}
	return nil
}
