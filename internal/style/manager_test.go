package style

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "mapping-viewer/internal/common/errors"
	"mapping-viewer/internal/common/logger"
	"mapping-viewer/internal/engine/headless"
	"mapping-viewer/internal/eventloop"
	"mapping-viewer/internal/models"
	"mapping-viewer/internal/overlay"
)

type fixture struct {
	loop    *eventloop.Manual
	engine  *headless.Map
	store   *overlay.Store
	manager *Manager
	results []Result
}

func createTestConfig() Config {
	return Config{
		Styles: map[string]string{
			"dark":      "http://styles/dark.json",
			"satellite": "http://styles/satellite.json",
		},
		ReadyTimeout:   2 * time.Second,
		SettleDelay:    100 * time.Millisecond,
		HighlightDelay: 50 * time.Millisecond,
		TrailingGuard:  300 * time.Millisecond,
	}
}

func feature(id int, lon, lat float64) models.Feature {
	return models.Feature{ID: id, Type: models.FeatureTrafficSign, Condition: models.ConditionGood,
		Geometry: geojson.NewGeometry(orb.Point{lon, lat})}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{loop: eventloop.NewManual()}
	f.engine = headless.NewMap(f.loop)
	f.store = overlay.NewStore(f.engine, 50, logger.NewTestLogger(t))

	features := overlay.FeatureCollection([]models.Feature{feature(1, 4, 50), feature(2, 5, 51)})
	base := func() (*geojson.FeatureCollection, *geojson.FeatureCollection, bool) {
		return features, geojson.NewFeatureCollection(), true
	}
	f.manager = NewManager(f.engine, f.store, f.loop, createTestConfig(), base, nil, logger.NewTestLogger(t))
	f.manager.OnComplete(func(r Result) { f.results = append(f.results, r) })

	require.NoError(t, f.store.InstallBaseLayers(features, geojson.NewFeatureCollection(), false))
	return f
}

func (f *fixture) highlight(t *testing.T, kind overlay.Kind, color string, features ...models.Feature) {
	t.Helper()
	ids := make([]int, len(features))
	for i, ft := range features {
		ids[i] = ft.ID
	}
	require.NoError(t, f.store.SetHighlight(overlay.HighlightSet{
		Kind: kind, IDs: ids, Color: color, Data: overlay.FeatureCollection(features),
	}))
}

func TestSwap_RestoresHighlightsAfterReady(t *testing.T) {
	f := newFixture(t)
	f.highlight(t, overlay.KindFeatures, "#E74C3C", feature(12, 4, 50), feature(47, 5, 51))

	require.NoError(t, f.manager.Swap("satellite"))
	assert.Equal(t, Swapping, f.manager.State())
	assert.Empty(t, f.engine.State().Layers)

	f.loop.Advance(30 * time.Millisecond) // first styledata
	assert.Equal(t, AwaitingReady, f.manager.State())

	f.loop.Advance(100 * time.Millisecond)
	assert.Equal(t, Restoring, f.manager.State())
	assert.True(t, f.engine.HasLayer(overlay.BaseFeaturesLayer))
	assert.False(t, f.engine.HasLayer(overlay.HighlightFeaturesLayer))

	f.loop.Advance(50 * time.Millisecond)
	layer, ok := f.engine.State().Layer(overlay.HighlightFeaturesLayer)
	require.True(t, ok)
	assert.Equal(t, "#E74C3C", layer.Paint["circle-color"])
	assert.Equal(t, 2, f.engine.State().Sources[overlay.HighlightFeaturesSource])

	f.loop.Advance(300 * time.Millisecond)
	assert.Equal(t, Idle, f.manager.State())
	assert.Equal(t, "satellite", f.manager.Current())
	require.Len(t, f.results, 1)
	assert.Equal(t, OutcomeReady, f.results[0].Outcome)
	assert.Equal(t, EventStyleData, f.results[0].Trigger)

	// the empty image highlight is not re-created
	assert.False(t, f.engine.HasLayer(overlay.HighlightImagesLayer))
}

func TestSwap_RestoresBothKinds(t *testing.T) {
	f := newFixture(t)
	f.highlight(t, overlay.KindFeatures, "#E74C3C", feature(12, 4, 50), feature(47, 5, 51))
	f.highlight(t, overlay.KindImages, "#3498DB", feature(3, 4.5, 50.5))

	require.NoError(t, f.manager.Swap("satellite"))
	f.loop.Advance(5 * time.Second)
	assert.Equal(t, Idle, f.manager.State())
	require.Len(t, f.results, 1)
	assert.Equal(t, OutcomeReady, f.results[0].Outcome)

	tests := []struct {
		layer   string
		source  string
		color   string
		sources int
	}{
		{overlay.HighlightFeaturesLayer, overlay.HighlightFeaturesSource, "#E74C3C", 2},
		{overlay.HighlightImagesLayer, overlay.HighlightImagesSource, "#3498DB", 1},
	}
	for _, tt := range tests {
		t.Run(tt.layer, func(t *testing.T) {
			layer, ok := f.engine.State().Layer(tt.layer)
			require.True(t, ok)
			assert.Equal(t, tt.color, layer.Paint["circle-color"])
			assert.Equal(t, tt.sources, f.engine.State().Sources[tt.source])
		})
	}

	features, ok := f.store.Highlight(overlay.KindFeatures)
	require.True(t, ok)
	assert.Equal(t, []int{12, 47}, features.IDs)
	images, ok := f.store.Highlight(overlay.KindImages)
	require.True(t, ok)
	assert.Equal(t, []int{3}, images.IDs)
}

func TestSwap_DuplicateSignalsRestoreOnce(t *testing.T) {
	f := newFixture(t)
	f.highlight(t, overlay.KindImages, "#0000FF", feature(3, 4, 50))
	f.engine.SetScript(headless.Script{
		Signals: []headless.Signal{
			{Event: headless.EventStyleLoad, After: 10 * time.Millisecond},
			{Event: headless.EventStyleLoad, After: 11 * time.Millisecond},
			{Event: headless.EventStyleData, After: 12 * time.Millisecond},
			{Event: headless.EventIdle, After: 500 * time.Millisecond},
		},
		LoadedAfter: 10 * time.Millisecond,
	})

	require.NoError(t, f.manager.Swap("satellite"))
	f.loop.Advance(5 * time.Second)

	require.Len(t, f.results, 1)
	assert.Equal(t, OutcomeReady, f.results[0].Outcome)
	assert.True(t, f.engine.HasLayer(overlay.HighlightImagesLayer))
	assert.Equal(t, 0, f.loop.ActiveTimers())
}

func TestSwap_FallbackTimeoutWhenNoSignal(t *testing.T) {
	f := newFixture(t)
	f.highlight(t, overlay.KindFeatures, "#FF0000", feature(12, 4, 50))
	f.engine.SetScript(headless.SilentScript(40 * time.Millisecond))

	require.NoError(t, f.manager.Swap("satellite"))
	f.loop.Advance(1999 * time.Millisecond)
	assert.Equal(t, Swapping, f.manager.State())

	f.loop.Advance(time.Millisecond)
	assert.Equal(t, AwaitingReady, f.manager.State())

	f.loop.Advance(time.Second)
	assert.Equal(t, Idle, f.manager.State())
	require.Len(t, f.results, 1)
	assert.Equal(t, OutcomeTimeout, f.results[0].Outcome)
	assert.True(t, f.engine.HasLayer(overlay.HighlightFeaturesLayer))
}

func TestSwap_RejectedWhileInFlight(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Swap("satellite"))

	err := f.manager.Swap("dark")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTransitionInFlight))

	f.loop.Advance(5 * time.Second)
	assert.Equal(t, "satellite", f.manager.Current())
	require.NoError(t, f.manager.Swap("dark"))
}

func TestSwap_UnknownStyle(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.manager.Swap("watercolor"), ErrUnknownStyle)
	assert.Equal(t, Idle, f.manager.State())
}

func TestSwap_LoadFailureReturnsToIdle(t *testing.T) {
	f := newFixture(t)
	f.highlight(t, overlay.KindFeatures, "#FF0000", feature(12, 4, 50))
	f.engine.FailStyle("satellite")

	err := f.manager.Swap("satellite")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStyleLoadFailed))
	assert.Equal(t, Idle, f.manager.State())
	require.Len(t, f.results, 1)
	assert.Equal(t, OutcomeLoadFailed, f.results[0].Outcome)

	// nothing was torn down, nothing is restored later
	f.loop.Advance(5 * time.Second)
	assert.True(t, f.engine.HasLayer(overlay.HighlightFeaturesLayer))
	assert.Len(t, f.results, 1)
}

func TestSwap_RestoreFailureStillReachesIdle(t *testing.T) {
	f := newFixture(t)
	f.manager.base = func() (*geojson.FeatureCollection, *geojson.FeatureCollection, bool) {
		panic("dataset cache corrupted")
	}
	f.highlight(t, overlay.KindFeatures, "#FF0000", feature(12, 4, 50))

	require.NoError(t, f.manager.Swap("satellite"))
	f.loop.Advance(5 * time.Second)

	assert.Equal(t, Idle, f.manager.State())
	require.Len(t, f.results, 1)
	assert.Equal(t, OutcomeRestoreFailed, f.results[0].Outcome)
	assert.True(t, apperrors.HasCode(f.results[0].Err, apperrors.ErrCodeRestoreFailed))
	// highlights are still restored after the base step failed
	assert.True(t, f.engine.HasLayer(overlay.HighlightFeaturesLayer))
}

func TestSwap_CommandDuringSwapWins(t *testing.T) {
	f := newFixture(t)
	f.highlight(t, overlay.KindFeatures, "#FF0000", feature(12, 4, 50))

	require.NoError(t, f.manager.Swap("satellite"))
	f.loop.Advance(35 * time.Millisecond) // loaded, awaiting settle
	f.highlight(t, overlay.KindFeatures, "#00FF00", feature(47, 5, 51))
	f.loop.Advance(5 * time.Second)

	h, ok := f.store.Highlight(overlay.KindFeatures)
	require.True(t, ok)
	assert.Equal(t, []int{47}, h.IDs)
	layer, ok := f.engine.State().Layer(overlay.HighlightFeaturesLayer)
	require.True(t, ok)
	assert.Equal(t, "#00FF00", layer.Paint["circle-color"])
}

func TestSwap_ClearDuringSwapIsNotUndone(t *testing.T) {
	f := newFixture(t)
	f.highlight(t, overlay.KindFeatures, "#FF0000", feature(12, 4, 50))

	require.NoError(t, f.manager.Swap("satellite"))
	f.store.ClearHighlights()
	f.loop.Advance(5 * time.Second)

	assert.False(t, f.engine.HasLayer(overlay.HighlightFeaturesLayer))
	assert.True(t, f.engine.HasLayer(overlay.BaseFeaturesLayer))
}

func TestManager_Styles(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{"dark", "satellite"}, f.manager.Styles())
	assert.Equal(t, "Restoring", Restoring.String())
}
