package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "mapping-viewer/internal/common/errors"
	"mapping-viewer/internal/common/logger"
	"mapping-viewer/internal/dispatcher"
	"mapping-viewer/internal/engine/headless"
	"mapping-viewer/internal/eventloop"
	"mapping-viewer/internal/hotspot"
	"mapping-viewer/internal/mapcmd"
	"mapping-viewer/internal/models"
	"mapping-viewer/internal/overlay"
	"mapping-viewer/internal/style"
)

type fakeBackend struct {
	campaign    *models.Campaign
	campaignErr error
	answers     []*models.AskResponse
	askErr      error
	questions   []string
	clears      int
	clearErr    error
	nearby      map[int][]models.NearbyEdge
}

func (b *fakeBackend) Campaign(context.Context) (*models.Campaign, error) {
	return b.campaign, b.campaignErr
}

func (b *fakeBackend) Ask(_ context.Context, q string) (*models.AskResponse, error) {
	b.questions = append(b.questions, q)
	if b.askErr != nil {
		return nil, b.askErr
	}
	resp := b.answers[0]
	b.answers = b.answers[1:]
	return resp, nil
}

func (b *fakeBackend) Clear(context.Context) error {
	b.clears++
	return b.clearErr
}

func (b *fakeBackend) ProjectFeatures(_ context.Context, _ int, ids []int) ([]models.Hotspot, error) {
	out := make([]models.Hotspot, len(ids))
	for i, id := range ids {
		out[i] = models.Hotspot{FeatureID: id, Bearing: float64(10 * i), Type: models.FeatureTrafficSign, Condition: models.ConditionFair}
	}
	return out, nil
}

func (b *fakeBackend) NearbyImages(_ context.Context, imageID int, _ float64) ([]models.NearbyEdge, error) {
	return b.nearby[imageID], nil
}

func (b *fakeBackend) PanoramaURL(path string) string {
	return "http://backend/panorama/" + path
}

func answer(text string, commands ...string) *models.AskResponse {
	resp := &models.AskResponse{Answer: text, Tokens: 100}
	for _, c := range commands {
		resp.MapCommands = append(resp.MapCommands, json.RawMessage(c))
	}
	return resp
}

type fixture struct {
	loop     *eventloop.Manual
	engine   *headless.Map
	panorama *headless.Panorama
	backend  *fakeBackend
	session  *Session
}

func newFixture(t *testing.T, defaultStyle string) *fixture {
	t.Helper()
	return newLoggedFixture(t, defaultStyle, logger.NewTestLogger(t))
}

func newLoggedFixture(t *testing.T, defaultStyle string, log logger.Logger) *fixture {
	t.Helper()
	pt := func(lon, lat float64) *geojson.Geometry { return geojson.NewGeometry(orb.Point{lon, lat}) }
	f := &fixture{
		loop:     eventloop.NewManual(),
		panorama: headless.NewPanorama(),
		backend: &fakeBackend{
			campaign: &models.Campaign{
				ID: "ghent",
				Features: []models.Feature{
					{ID: 3, Type: models.FeatureTrafficSign, Geometry: pt(3.70, 51.00)},
					{ID: 8, Type: models.FeatureUtilityPole, Geometry: pt(3.71, 51.01)},
				},
				Images: []models.ImagePosition{
					{ID: 7, Geometry: pt(3.700, 51.000)},
					{ID: 9, ImagePath: "cam-b/9.jpg", Geometry: pt(3.701, 51.001)},
				},
			},
			nearby: map[int][]models.NearbyEdge{7: {{ImageID: 9, Bearing: 45, Distance: 8}}},
		},
	}
	f.engine = headless.NewMap(f.loop)
	f.session = New(Options{
		Map:       f.engine,
		Panorama:  f.panorama,
		Backend:   f.backend,
		Scheduler: f.loop,
		Styles: style.Config{
			Styles:         map[string]string{"dark": "http://styles/dark.json", "satellite": "http://styles/satellite.json"},
			ReadyTimeout:   2 * time.Second,
			SettleDelay:    100 * time.Millisecond,
			HighlightDelay: 50 * time.Millisecond,
			TrailingGuard:  300 * time.Millisecond,
		},
		DefaultStyle: defaultStyle,
		FitPadding:   50,
		NearbyRadius: 20,
		Logger:       log,
	})
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	var startErr error
	started := false
	f.session.Start(context.Background(), func(err error) { started, startErr = true, err })
	f.loop.Advance(time.Second)
	require.True(t, started)
	require.NoError(t, startErr)
}

func (f *fixture) ask(t *testing.T, q string) models.ConversationTurn {
	t.Helper()
	var turn models.ConversationTurn
	require.NoError(t, f.session.Ask(context.Background(), q, func(tr models.ConversationTurn) { turn = tr }))
	f.loop.Drain()
	return turn
}

func TestStart_InstallsBaseLayersAfterInitialStyle(t *testing.T) {
	f := newFixture(t, "dark")
	f.start(t)

	assert.Equal(t, "dark", f.session.Styles().Current())
	assert.Equal(t, style.Idle, f.session.Styles().State())
	assert.True(t, f.engine.HasLayer(overlay.BaseFeaturesLayer))
	assert.True(t, f.engine.HasLayer(overlay.BaseImagesLayer))
	require.NotNil(t, f.session.Dataset())
	assert.Equal(t, 50, f.engine.State().Padding)
}

func TestStart_CampaignBeforeStyleLeavesBaseLayersToSwap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newLoggedFixture(t, "dark", logger.NewZapAdapter(zap.New(core)))

	var startErr error
	started := false
	f.session.Start(context.Background(), func(err error) { started, startErr = true, err })
	f.loop.Drain()
	require.True(t, started)
	require.NoError(t, startErr)
	require.NotNil(t, f.session.Dataset())
	assert.NotEqual(t, style.Idle, f.session.Styles().State())
	assert.False(t, f.engine.HasLayer(overlay.BaseFeaturesLayer))

	f.loop.Advance(time.Second)
	assert.Equal(t, style.Idle, f.session.Styles().State())
	assert.True(t, f.engine.HasLayer(overlay.BaseFeaturesLayer))
	assert.True(t, f.engine.HasLayer(overlay.BaseImagesLayer))
	assert.Zero(t, logs.FilterField(zap.String("operation", "installBaseLayers")).Len())
}

func TestStart_CampaignFailure(t *testing.T) {
	f := newFixture(t, "")
	f.backend.campaignErr = apperrors.NewNetworkFailureError("/campaign", errors.New("connection refused"))

	var got error
	f.session.Start(context.Background(), func(err error) { got = err })
	f.loop.Drain()

	require.Error(t, got)
	assert.Nil(t, f.session.Dataset())
	assert.ErrorIs(t, f.session.OpenPanorama(7), ErrNotLoaded)
}

func TestAsk_AppliesCommandsAndRecordsTurn(t *testing.T) {
	f := newFixture(t, "")
	f.start(t)
	f.backend.answers = []*models.AskResponse{answer("Two signs need work.",
		`{"command": "highlight_features", "feature_ids": [3, 8], "color": "#E74C3C"}`,
		`{"command": "show_statistics", "title": "By Type", "stats": {"traffic_sign": 18, "pole": 9}}`,
	)}

	turn := f.ask(t, "  which signs need work?  ")

	assert.Equal(t, []string{"which signs need work?"}, f.backend.questions)
	assert.Equal(t, "Two signs need work.", turn.Answer)
	assert.Empty(t, turn.Error)
	assert.NotEmpty(t, turn.ID)
	assert.Len(t, turn.Commands, 2)
	assert.Equal(t, 100, turn.Tokens)
	assert.False(t, f.session.Asking())

	view := f.session.View()
	assert.Equal(t, []int{3, 8}, view.Highlights[overlay.KindFeatures].IDs)
	require.NotNil(t, view.Statistics)
	assert.Equal(t, []string{"traffic_sign", "pole"}, view.Statistics.Rows.Keys())
	assert.Len(t, f.session.Turns(), 1)
}

func TestAsk_RejectsOverlapAndEmptyQuestions(t *testing.T) {
	f := newFixture(t, "")
	f.start(t)
	f.backend.answers = []*models.AskResponse{answer("ok")}

	assert.ErrorIs(t, f.session.Ask(context.Background(), "   ", nil), ErrEmptyQuestion)

	f.loop.HoldSpawns(true)
	require.NoError(t, f.session.Ask(context.Background(), "first", nil))
	err := f.session.Ask(context.Background(), "second", nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRequestInFlight))

	f.loop.ReleaseSpawned()
	assert.Equal(t, []string{"first"}, f.backend.questions)
	assert.False(t, f.session.Asking())
}

func TestAsk_TransientFailureBecomesTurnError(t *testing.T) {
	f := newFixture(t, "")
	f.start(t)
	f.backend.askErr = apperrors.NewBackendStatusError("/ask", 502, "bad gateway")

	turn := f.ask(t, "how many poles?")

	assert.Empty(t, turn.Answer)
	assert.Contains(t, turn.Error, "Please try again.")
	assert.Len(t, f.session.Turns(), 1)
	assert.False(t, f.session.Asking())
}

func TestReset_ClearsLocalStateEvenWhenBackendFails(t *testing.T) {
	f := newFixture(t, "")
	f.start(t)
	f.backend.answers = []*models.AskResponse{answer("ok", `{"command": "highlight_image", "image_ids": [7]}`)}
	f.ask(t, "show image 7")
	f.backend.clearErr = apperrors.NewNetworkFailureError("/clear", errors.New("timeout"))

	var got error
	f.session.Reset(context.Background(), func(err error) { got = err })
	f.loop.Drain()

	assert.Error(t, got)
	assert.Equal(t, 1, f.backend.clears)
	assert.Empty(t, f.session.Turns())
	assert.Empty(t, f.session.View().Highlights)
	assert.True(t, f.engine.HasLayer(overlay.BaseImagesLayer))
}

func TestStyleSwap_KeepsAskHighlights(t *testing.T) {
	f := newFixture(t, "dark")
	f.start(t)
	f.backend.answers = []*models.AskResponse{answer("ok",
		`{"command": "highlight_features", "feature_ids": [3, 8], "color": "#E74C3C"}`)}
	f.ask(t, "highlight")

	require.NoError(t, f.session.SwapStyle("satellite"))
	f.loop.Advance(3 * time.Second)

	assert.Equal(t, "satellite", f.session.Styles().Current())
	st := f.engine.State()
	layer, ok := st.Layer(overlay.HighlightFeaturesLayer)
	require.True(t, ok)
	assert.Equal(t, "#E74C3C", layer.Paint["circle-color"])
	assert.Equal(t, 2, st.Sources[overlay.HighlightFeaturesSource])
	assert.True(t, f.engine.HasLayer(overlay.BaseFeaturesLayer))
}

func TestPanorama_HotspotsFollowHighlightAndNavigation(t *testing.T) {
	f := newFixture(t, "")
	f.start(t)

	assert.ErrorIs(t, f.session.OpenPanorama(404), ErrUnknownImage)
	assert.ErrorIs(t, f.session.ClosePanorama(), ErrNoPanoramaOpen)

	require.NoError(t, f.session.OpenPanorama(7))
	f.loop.Drain()
	id, url, open := f.panorama.Current()
	assert.True(t, open)
	assert.Equal(t, 7, id)
	assert.Equal(t, "http://backend/panorama/7", url)
	require.Len(t, f.panorama.Markers(), 1)

	f.backend.answers = []*models.AskResponse{answer("ok", `{"command": "highlight_features", "feature_ids": [3, 8]}`)}
	f.ask(t, "highlight")
	markers := f.panorama.Markers()
	require.Len(t, markers, 3)
	assert.Equal(t, hotspot.KindFeature, markers[2].Kind)

	tip, ok := f.session.Hover("feature-3")
	require.True(t, ok)
	assert.Equal(t, "traffic_sign", tip.Type)

	require.True(t, f.session.Click("nearby-9"))
	f.loop.Drain()
	id, url, _ = f.panorama.Current()
	assert.Equal(t, 9, id)
	assert.Equal(t, "http://backend/panorama/cam-b/9.jpg", url)
	assert.Len(t, f.session.View().Hotspots, 2)
}

func TestPanorama_CloseDropsLateHotspots(t *testing.T) {
	f := newFixture(t, "")
	f.start(t)
	f.backend.answers = []*models.AskResponse{answer("ok", `{"command": "highlight_features", "feature_ids": [3]}`)}
	f.ask(t, "highlight")

	f.loop.HoldSpawns(true)
	require.NoError(t, f.session.OpenPanorama(7))
	require.NoError(t, f.session.ClosePanorama())
	f.loop.ReleaseSpawned()

	_, _, open := f.panorama.Current()
	assert.False(t, open)
	assert.Empty(t, f.panorama.Markers())
	assert.False(t, f.session.View().PanoOpen)
}

func TestStyleSwap_HighlightBeforeReadyFramesAndIsDrawnLater(t *testing.T) {
	f := newFixture(t, "dark")
	f.start(t)
	fits := f.engine.State().Fits

	require.NoError(t, f.session.SwapStyle("satellite"))
	report := f.session.Execute(context.Background(), []mapcmd.Command{
		mapcmd.HighlightFeatures{FeatureIDs: []int{3, 8}, Color: "#E74C3C"},
	})
	assert.Equal(t, 1, report.Count(dispatcher.StatusApplied))
	assert.Equal(t, style.Swapping, f.session.Styles().State())

	st := f.engine.State()
	assert.Equal(t, fits+1, st.Fits)
	assert.True(t, st.Viewport.Contains(orb.Point{3.70, 51.00}))
	assert.True(t, st.Viewport.Contains(orb.Point{3.71, 51.01}))
	assert.False(t, f.engine.HasLayer(overlay.HighlightFeaturesLayer))

	f.loop.Advance(3 * time.Second)
	layer, ok := f.engine.State().Layer(overlay.HighlightFeaturesLayer)
	require.True(t, ok)
	assert.Equal(t, "#E74C3C", layer.Paint["circle-color"])
	assert.Equal(t, 2, f.engine.State().Sources[overlay.HighlightFeaturesSource])
}
