package headless

import (
	"fmt"
	"sort"
	"sync"

	"mapping-viewer/internal/hotspot"
)

// Panorama is an in-memory panorama engine.
type Panorama struct {
	mu      sync.Mutex
	imageID int
	url     string
	open    bool
	markers map[string]hotspot.Marker
}

func NewPanorama() *Panorama {
	return &Panorama{markers: map[string]hotspot.Marker{}}
}

// Load shows a panorama; markers from the previous one are dropped.
func (p *Panorama) Load(imageID int, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imageID, p.url, p.open = imageID, url, true
	p.markers = map[string]hotspot.Marker{}
}

// Close hides the viewer and drops every marker.
func (p *Panorama) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	p.markers = map[string]hotspot.Marker{}
}

// Current returns the loaded panorama.
func (p *Panorama) Current() (imageID int, url string, open bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.imageID, p.url, p.open
}

func (p *Panorama) AddMarker(m hotspot.Marker) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return fmt.Errorf("panorama viewer is closed")
	}
	if _, ok := p.markers[m.ID]; ok {
		return fmt.Errorf("marker %s already exists", m.ID)
	}
	p.markers[m.ID] = m
	return nil
}

func (p *Panorama) RemoveMarker(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.markers[id]; !ok {
		return fmt.Errorf("marker %s does not exist", id)
	}
	delete(p.markers, id)
	return nil
}

// Markers lists markers ordered by z-index, then ID.
func (p *Panorama) Markers() []hotspot.Marker {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]hotspot.Marker, 0, len(p.markers))
	for _, m := range p.markers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ZIndex != out[j].ZIndex {
			return out[i].ZIndex < out[j].ZIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}
