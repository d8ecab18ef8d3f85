package session

import (
	"fmt"
	"sort"
	"strings"

	"mapping-viewer/internal/models"
	"mapping-viewer/internal/overlay"
)

// View is a read-only summary of what the user currently sees.
type View struct {
	Style      string
	Transition string
	Highlights map[overlay.Kind]overlay.HighlightSet
	Statistics *overlay.StatisticsPanel
	Panorama   int
	PanoOpen   bool
	Hotspots   []models.Hotspot
	Turns      int
	Asking     bool
}

func (s *Session) View() View {
	v := View{
		Style:      s.styles.Current(),
		Transition: s.styles.State().String(),
		Highlights: map[overlay.Kind]overlay.HighlightSet{},
		Hotspots:   s.hotspots.FeatureHotspots(),
		Turns:      len(s.turns),
		Asking:     s.asking,
	}
	for _, kind := range overlay.Kinds {
		if h, ok := s.store.Highlight(kind); ok {
			v.Highlights[kind] = h
		}
	}
	if panel, ok := s.store.Statistics(); ok {
		v.Statistics = &panel
	}
	v.Panorama, v.PanoOpen = s.hotspots.Active()
	return v
}

func (v View) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "style: %s (%s)\n", v.Style, v.Transition)

	kinds := make([]string, 0, len(v.Highlights))
	for kind := range v.Highlights {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		h := v.Highlights[overlay.Kind(kind)]
		fmt.Fprintf(&b, "highlight %s: %v %s", kind, h.IDs, h.Color)
		if h.Label != "" {
			fmt.Fprintf(&b, " %q", h.Label)
		}
		b.WriteString("\n")
	}
	if v.Statistics != nil {
		fmt.Fprintf(&b, "statistics %q: %s\n", v.Statistics.Title, v.Statistics.Rows.String())
	}
	if v.PanoOpen {
		fmt.Fprintf(&b, "panorama: %d, %d feature hotspots\n", v.Panorama, len(v.Hotspots))
	}
	fmt.Fprintf(&b, "turns: %d", v.Turns)
	if v.Asking {
		b.WriteString(" (waiting for answer)")
	}
	return b.String()
}
