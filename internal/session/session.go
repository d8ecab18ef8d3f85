// Package session ties the viewer together: it loads the campaign, runs the ask
// flow and owns the panorama the user is looking at.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"mapping-viewer/internal/campaign"
	apperrors "mapping-viewer/internal/common/errors"
	"mapping-viewer/internal/common/logger"
	"mapping-viewer/internal/common/metrics"
	"mapping-viewer/internal/common/observability"
	"mapping-viewer/internal/dispatcher"
	"mapping-viewer/internal/eventloop"
	"mapping-viewer/internal/hotspot"
	"mapping-viewer/internal/mapcmd"
	"mapping-viewer/internal/models"
	"mapping-viewer/internal/overlay"
	"mapping-viewer/internal/style"
)

var (
	ErrEmptyQuestion  = errors.New("EMPTY_QUESTION")
	ErrNotLoaded      = errors.New("CAMPAIGN_NOT_LOADED")
	ErrUnknownImage   = errors.New("UNKNOWN_IMAGE")
	ErrNoPanoramaOpen = errors.New("NO_PANORAMA_OPEN")
)

const genericAskFailure = "Error: the question could not be answered."

// MapEngine is the render engine of the map pane.
type MapEngine interface {
	overlay.Engine
	style.Engine
}

// PanoramaEngine is the render engine of the panorama pane.
type PanoramaEngine interface {
	hotspot.Viewer
	Load(imageID int, url string)
	Close()
}

// Backend is the agent and projection service.
type Backend interface {
	hotspot.Projector
	campaign.Fetcher
	Ask(ctx context.Context, question string) (*models.AskResponse, error)
	Clear(ctx context.Context) error
	PanoramaURL(imagePath string) string
}

type Options struct {
	Map          MapEngine
	Panorama     PanoramaEngine
	Backend      Backend
	Cache        campaign.Cache
	Scheduler    eventloop.Scheduler
	Decoder      *mapcmd.Decoder
	Styles       style.Config
	DefaultStyle string
	FitPadding   int
	NearbyRadius float64
	Obs          *observability.Observability
	Logger       logger.Logger
}

// Session is one user's viewer. Every method must be called on the event loop.
type Session struct {
	id           string
	scheduler    eventloop.Scheduler
	backend      Backend
	loader       *campaign.Loader
	panorama     PanoramaEngine
	store        *overlay.Store
	dispatcher   *dispatcher.Dispatcher
	styles       *style.Manager
	hotspots     *hotspot.Synchronizer
	defaultStyle string
	obs          *observability.Observability
	logger       logger.Logger
	reporter     *apperrors.Reporter
	clock        func() time.Time

	dataset *campaign.Dataset
	asking  bool
	turns   []models.ConversationTurn
}

func New(opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	decoder := opts.Decoder
	if decoder == nil {
		decoder = mapcmd.DefaultDecoder()
	}

	s := &Session{
		id:           uuid.New().String(),
		scheduler:    opts.Scheduler,
		backend:      opts.Backend,
		panorama:     opts.Panorama,
		defaultStyle: opts.DefaultStyle,
		obs:          opts.Obs,
		clock:        time.Now,
	}
	s.logger = logger.ForComponent(log, "session").With(map[string]interface{}{"sessionId": s.id})
	s.reporter = apperrors.NewReporter(s.logger)

	s.loader = campaign.NewLoader(opts.Backend, opts.Cache, baseURLOf(opts.Backend), log)
	s.store = overlay.NewStore(opts.Map, opts.FitPadding, log)
	s.dispatcher = dispatcher.New(s.store, decoder, log)
	s.styles = style.NewManager(opts.Map, s.store, opts.Scheduler, opts.Styles, s.baseLayers, opts.Obs, log)
	s.hotspots = hotspot.NewSynchronizer(opts.Panorama, opts.Backend, hotspot.NavigatorFunc(s.navigate), opts.Scheduler, opts.NearbyRadius, log)
	s.dispatcher.OnFeatureHighlight(s.hotspots.SetHighlight)
	return s
}

func baseURLOf(b Backend) string {
	if u, ok := b.(interface{ BaseURL() string }); ok {
		return u.BaseURL()
	}
	return "default"
}

func (s *Session) ID() string { return s.id }

func (s *Session) Store() *overlay.Store { return s.store }

func (s *Session) Styles() *style.Manager { return s.styles }

func (s *Session) Hotspots() *hotspot.Synchronizer { return s.hotspots }

// Dataset returns the loaded campaign, or nil before Start completes.
func (s *Session) Dataset() *campaign.Dataset { return s.dataset }

// Start loads the default style and the campaign. done runs on the loop once
// the campaign is in place or failed to load.
func (s *Session) Start(ctx context.Context, done func(error)) {
	if s.defaultStyle != "" {
		if err := s.styles.Swap(s.defaultStyle); err != nil {
			s.reporter.Report("initialStyle", err)
		}
	}

	eventloop.Fetch(s.scheduler, ctx, s.loader.Load, func(d *campaign.Dataset, err error) {
		if err != nil {
			s.reporter.Report("loadCampaign", err)
			finish(done, err)
			return
		}
		s.dataset = d
		s.dispatcher.SetCatalog(d)

		// During a swap the style manager installs base layers itself once the style is ready.
		features, images := d.Layers()
		if s.styles.State() == style.Idle {
			if err := s.store.InstallBaseLayers(features, images, true); err != nil {
				s.reporter.Report("installBaseLayers", err)
			}
		}
		if b, ok := overlay.Bound(features); ok {
			if err := s.store.FitTo(b); err != nil {
				s.reporter.Report("fitCampaign", err)
			}
		}
		finish(done, nil)
	})
}

func (s *Session) baseLayers() (*geojson.FeatureCollection, *geojson.FeatureCollection, bool) {
	if s.dataset == nil {
		return nil, nil, false
	}
	features, images := s.dataset.Layers()
	return features, images, true
}

// Ask sends question to the agent and applies the returned commands in order.
// A second question while one is outstanding is rejected with REQUEST_IN_FLIGHT.
func (s *Session) Ask(ctx context.Context, question string, done func(models.ConversationTurn)) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyQuestion
	}
	if s.asking {
		return apperrors.NewRequestInFlightError()
	}

	s.asking = true
	metrics.AsksActive.Inc()
	started := s.clock()

	eventloop.Fetch(s.scheduler, ctx,
		func(ctx context.Context) (*models.AskResponse, error) {
			return s.backend.Ask(ctx, question)
		},
		func(resp *models.AskResponse, err error) {
			s.asking = false
			metrics.AsksActive.Dec()
			metrics.AskDuration.Observe(s.clock().Sub(started).Seconds())

			turn := models.ConversationTurn{
				ID:        uuid.New().String(),
				Question:  question,
				CreatedAt: s.clock(),
			}
			outcome := "answered"
			if err != nil {
				outcome = "failed"
				s.reporter.Report("ask", err)
				turn.Error = s.reporter.UserMessage(err)
				if turn.Error == "" {
					turn.Error = genericAskFailure
				}
			} else {
				turn.Answer = resp.Answer
				turn.ToolUses = resp.ToolUses
				turn.Commands = resp.MapCommands
				turn.Tokens = resp.Tokens
				report := s.dispatcher.ExecuteRaw(ctx, resp.MapCommands)
				s.logger.Info("answer applied", map[string]interface{}{
					"turnId":   turn.ID,
					"commands": report.String(),
					"tokens":   resp.Tokens,
				})
			}
			s.obs.RecordAsk(ctx, outcome)
			s.turns = append(s.turns, turn)
			if done != nil {
				done(turn)
			}
		})
	return nil
}

// Asking reports whether a question is outstanding.
func (s *Session) Asking() bool { return s.asking }

// Turns returns the conversation so far.
func (s *Session) Turns() []models.ConversationTurn {
	return append([]models.ConversationTurn(nil), s.turns...)
}

// Reset clears the agent's memory, the local conversation and every highlight.
// Local state is cleared even when the backend call fails.
func (s *Session) Reset(ctx context.Context, done func(error)) {
	eventloop.Fetch(s.scheduler, ctx,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.backend.Clear(ctx)
		},
		func(_ struct{}, err error) {
			if err != nil {
				s.reporter.Report("clearConversation", err)
			}
			s.turns = nil
			s.dispatcher.Execute(ctx, []mapcmd.Command{mapcmd.ClearHighlights{}})
			finish(done, err)
		})
}

// Execute applies commands that did not come from the agent, e.g. typed at the console.
func (s *Session) Execute(ctx context.Context, commands []mapcmd.Command) dispatcher.Report {
	return s.dispatcher.Execute(ctx, commands)
}

// SwapStyle starts a basemap change.
func (s *Session) SwapStyle(name string) error {
	return s.styles.Swap(name)
}

// OpenPanorama shows imageID and syncs its hotspots.
func (s *Session) OpenPanorama(imageID int) error {
	if s.dataset == nil {
		return ErrNotLoaded
	}
	path, ok := s.dataset.PanoramaPath(imageID)
	if !ok {
		return ErrUnknownImage
	}
	if current, open := s.hotspots.Active(); open {
		if current == imageID {
			return nil
		}
		s.hotspots.Close()
	}
	s.panorama.Load(imageID, s.backend.PanoramaURL(path))
	s.hotspots.SetPanorama(imageID)
	s.logger.Debug("panorama opened", map[string]interface{}{"imageId": imageID})
	return nil
}

// ClosePanorama tears the panorama down; late hotspot responses are dropped.
func (s *Session) ClosePanorama() error {
	if _, open := s.hotspots.Active(); !open {
		return ErrNoPanoramaOpen
	}
	s.hotspots.Close()
	s.panorama.Close()
	return nil
}

func (s *Session) navigate(imageID int) {
	if err := s.OpenPanorama(imageID); err != nil {
		s.logger.Warn("navigation failed", map[string]interface{}{"imageId": imageID, "error": err.Error()})
	}
}

// Hover returns the tooltip of a feature hotspot.
func (s *Session) Hover(markerID string) (hotspot.Tooltip, bool) {
	return s.hotspots.Hover(markerID)
}

// Click follows a nearby-panorama hotspot.
func (s *Session) Click(markerID string) bool {
	return s.hotspots.Click(markerID)
}

func finish(done func(error), err error) {
	if done != nil {
		done(err)
	}
}
