// Package headless implements the map and panorama engines in memory. It keeps
// the render context the way a GPU-backed engine would, including losing it on a
// style swap and announcing readiness late, duplicated or not at all.
package headless

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"mapping-viewer/internal/eventloop"
	"mapping-viewer/internal/overlay"
)

// Readiness events emitted after SetStyle.
const (
	EventStyleData = "styledata"
	EventStyleLoad = "style.load"
	EventIdle      = "idle"
)

var (
	ErrStyleNotLoaded = errors.New("style is not done loading")
	ErrSourceExists   = errors.New("source already exists")
	ErrNoSource       = errors.New("source does not exist")
	ErrLayerExists    = errors.New("layer already exists")
	ErrNoLayer        = errors.New("layer does not exist")
	ErrSourceInUse    = errors.New("source is used by a layer")
)

// Signal is one scripted readiness event, fired After the SetStyle call.
type Signal struct {
	Event string
	After time.Duration
}

// Script controls what happens after SetStyle. The style accepts layers once
// LoadedAfter has elapsed, whether or not any signal fires.
type Script struct {
	Signals     []Signal
	LoadedAfter time.Duration
}

// DefaultScript fires styledata twice around style.load, then idle.
func DefaultScript() Script {
	return Script{
		Signals: []Signal{
			{Event: EventStyleData, After: 30 * time.Millisecond},
			{Event: EventStyleLoad, After: 40 * time.Millisecond},
			{Event: EventStyleData, After: 45 * time.Millisecond},
			{Event: EventIdle, After: 80 * time.Millisecond},
		},
		LoadedAfter: 30 * time.Millisecond,
	}
}

// SilentScript loads the style but never announces it.
func SilentScript(loadedAfter time.Duration) Script {
	return Script{LoadedAfter: loadedAfter}
}

// Map is an in-memory map engine.
type Map struct {
	mu        sync.Mutex
	scheduler eventloop.Scheduler

	style     string
	styleURL  string
	loaded    bool
	epoch     int
	script    Script
	failNames map[string]bool

	sources map[string]*geojson.FeatureCollection
	layers  []overlay.LayerSpec

	viewport orb.Bound
	padding  int
	fitCount int

	listeners map[string]map[int]func()
	nextID    int
}

func NewMap(s eventloop.Scheduler) *Map {
	return &Map{
		scheduler: s,
		loaded:    true,
		script:    DefaultScript(),
		failNames: map[string]bool{},
		sources:   map[string]*geojson.FeatureCollection{},
		listeners: map[string]map[int]func(){},
	}
}

// SetScript replaces the readiness script used by later SetStyle calls.
func (m *Map) SetScript(s Script) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = s
}

// FailStyle makes SetStyle(name) fail.
func (m *Map) FailStyle(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNames[name] = true
}

// SetStyle drops every source and layer and starts loading the new style.
func (m *Map) SetStyle(name, url string) error {
	m.mu.Lock()
	if m.failNames[name] {
		m.mu.Unlock()
		return fmt.Errorf("style %s: fetch %s failed", name, url)
	}
	m.style, m.styleURL = name, url
	m.sources = map[string]*geojson.FeatureCollection{}
	m.layers = nil
	m.loaded = false
	m.epoch++
	epoch := m.epoch
	script := m.script
	m.mu.Unlock()

	m.scheduler.After(script.LoadedAfter, func() {
		m.mu.Lock()
		if m.epoch == epoch {
			m.loaded = true
		}
		m.mu.Unlock()
	})
	for _, sig := range script.Signals {
		sig := sig
		m.scheduler.After(sig.After, func() {
			m.mu.Lock()
			current := m.epoch == epoch
			m.mu.Unlock()
			if current {
				m.emit(sig.Event)
			}
		})
	}
	return nil
}

// On subscribes fn to an engine event.
func (m *Map) On(event string, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	if m.listeners[event] == nil {
		m.listeners[event] = map[int]func(){}
	}
	m.listeners[event][id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners[event], id)
	}
}

func (m *Map) emit(event string) {
	m.mu.Lock()
	ids := make([]int, 0, len(m.listeners[event]))
	for id := range m.listeners[event] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.listeners[event][id])
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (m *Map) AddSource(id string, data *geojson.FeatureCollection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return ErrStyleNotLoaded
	}
	if _, ok := m.sources[id]; ok {
		return fmt.Errorf("%w: %s", ErrSourceExists, id)
	}
	m.sources[id] = data
	return nil
}

func (m *Map) SetSourceData(id string, data *geojson.FeatureCollection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSource, id)
	}
	m.sources[id] = data
	return nil
}

func (m *Map) RemoveSource(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSource, id)
	}
	for _, l := range m.layers {
		if l.SourceID == id {
			return fmt.Errorf("%w: %s by %s", ErrSourceInUse, id, l.ID)
		}
	}
	delete(m.sources, id)
	return nil
}

func (m *Map) HasSource(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sources[id]
	return ok
}

func (m *Map) AddLayer(spec overlay.LayerSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return ErrStyleNotLoaded
	}
	if m.layerIndex(spec.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrLayerExists, spec.ID)
	}
	if _, ok := m.sources[spec.SourceID]; !ok {
		return fmt.Errorf("%w: %s for layer %s", ErrNoSource, spec.SourceID, spec.ID)
	}
	paint := make(map[string]interface{}, len(spec.Paint))
	for k, v := range spec.Paint {
		paint[k] = v
	}
	spec.Paint = paint
	m.layers = append(m.layers, spec)
	return nil
}

func (m *Map) RemoveLayer(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.layerIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNoLayer, id)
	}
	m.layers = append(m.layers[:i], m.layers[i+1:]...)
	return nil
}

func (m *Map) HasLayer(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.layerIndex(id) >= 0
}

func (m *Map) SetPaintProperty(layerID, name string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.layerIndex(layerID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNoLayer, layerID)
	}
	m.layers[i].Paint[name] = value
	return nil
}

func (m *Map) FitBounds(b orb.Bound, padding int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewport = b
	m.padding = padding
	m.fitCount++
	return nil
}

func (m *Map) layerIndex(id string) int {
	for i, l := range m.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// State is a copy of the render context for inspection.
type State struct {
	Style    string
	Loaded   bool
	Layers   []overlay.LayerSpec
	Sources  map[string]int // source id -> feature count
	Viewport orb.Bound
	Padding  int
	Fits     int
}

func (m *Map) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := State{
		Style:    m.style,
		Loaded:   m.loaded,
		Layers:   append([]overlay.LayerSpec(nil), m.layers...),
		Sources:  make(map[string]int, len(m.sources)),
		Viewport: m.viewport,
		Padding:  m.padding,
		Fits:     m.fitCount,
	}
	for id, fc := range m.sources {
		n := 0
		if fc != nil {
			n = len(fc.Features)
		}
		st.Sources[id] = n
	}
	return st
}

// LayerIDs lists layers in draw order.
func (s State) LayerIDs() []string {
	ids := make([]string, len(s.Layers))
	for i, l := range s.Layers {
		ids[i] = l.ID
	}
	return ids
}

// Layer returns a layer by ID.
func (s State) Layer(id string) (overlay.LayerSpec, bool) {
	for _, l := range s.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return overlay.LayerSpec{}, false
}
