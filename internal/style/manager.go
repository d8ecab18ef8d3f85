// Package style swaps the basemap style without losing overlay state. The render
// engine drops every source and layer on a swap; the manager snapshots highlights
// first and rebuilds them once the new style is ready.
package style

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb/geojson"

	apperrors "mapping-viewer/internal/common/errors"
	"mapping-viewer/internal/common/logger"
	"mapping-viewer/internal/common/metrics"
	"mapping-viewer/internal/common/observability"
	"mapping-viewer/internal/eventloop"
	"mapping-viewer/internal/overlay"
)

// ErrUnknownStyle is returned for a style name missing from the catalogue.
var ErrUnknownStyle = errors.New("UNKNOWN_STYLE")

// Readiness events. Whichever fires first ends the wait.
const (
	EventStyleLoad = "style.load"
	EventStyleData = "styledata"
	EventIdle      = "idle"
)

var readinessEvents = []string{EventStyleLoad, EventStyleData, EventIdle}

// Engine is the part of the map engine that owns the style.
type Engine interface {
	SetStyle(name, url string) error
	On(event string, fn func()) (off func())
}

// BaseLayers returns the cached campaign layers; ok is false before the dataset is loaded.
type BaseLayers func() (features, images *geojson.FeatureCollection, ok bool)

type State int

const (
	Idle State = iota
	Swapping
	AwaitingReady
	Restoring
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Swapping:
		return "Swapping"
	case AwaitingReady:
		return "AwaitingReady"
	case Restoring:
		return "Restoring"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Transition outcomes.
const (
	OutcomeReady         = "ready"
	OutcomeTimeout       = "timeout"
	OutcomeLoadFailed    = "load_failed"
	OutcomeRestoreFailed = "restore_failed"
)

// Result describes one finished transition.
type Result struct {
	From     string
	To       string
	Trigger  string
	Outcome  string
	Duration time.Duration
	Err      error
}

type Config struct {
	Styles         map[string]string // name -> style definition URL
	ReadyTimeout   time.Duration
	SettleDelay    time.Duration
	HighlightDelay time.Duration
	TrailingGuard  time.Duration
}

// Manager runs the Idle -> Swapping -> AwaitingReady -> Restoring -> Idle cycle.
// All methods must be called on the event loop.
type Manager struct {
	engine    Engine
	store     *overlay.Store
	scheduler eventloop.Scheduler
	config    Config
	base      BaseLayers
	logger    logger.Logger
	reporter  *apperrors.Reporter
	obs       *observability.Observability
	clock     func() time.Time

	state     State
	current   string
	listeners []func(Result)
}

func NewManager(engine Engine, store *overlay.Store, s eventloop.Scheduler, cfg Config, base BaseLayers, obs *observability.Observability, log logger.Logger) *Manager {
	l := logger.ForComponent(log, "style")
	if base == nil {
		base = func() (*geojson.FeatureCollection, *geojson.FeatureCollection, bool) { return nil, nil, false }
	}
	return &Manager{
		engine:    engine,
		store:     store,
		scheduler: s,
		config:    cfg,
		base:      base,
		logger:    l,
		reporter:  apperrors.NewReporter(l),
		obs:       obs,
		clock:     time.Now,
	}
}

func (m *Manager) State() State { return m.state }

// Current returns the name of the last style that finished loading.
func (m *Manager) Current() string { return m.current }

// Styles lists catalogue names alphabetically.
func (m *Manager) Styles() []string {
	names := make([]string, 0, len(m.config.Styles))
	for name := range m.config.Styles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OnComplete registers fn to run after every transition.
func (m *Manager) OnComplete(fn func(Result)) {
	m.listeners = append(m.listeners, fn)
}

// transition carries the state of one swap between its timer callbacks.
type transition struct {
	from     string
	to       string
	started  time.Time
	snapshot overlay.Snapshot
	resolved bool
	trigger  string
	offs     []func()
	cancel   func()
	err      error
}

// Swap starts loading the named style. It returns TRANSITION_IN_FLIGHT while
// another swap is running.
func (m *Manager) Swap(name string) error {
	if m.state != Idle {
		return apperrors.NewTransitionInFlightError(m.state.String())
	}
	url, ok := m.config.Styles[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStyle, name)
	}

	m.state = Swapping
	t := &transition{from: m.current, to: name, started: m.clock(), snapshot: m.store.Snapshot()}

	for _, event := range readinessEvents {
		event := event
		t.offs = append(t.offs, m.engine.On(event, func() { m.ready(t, event) }))
	}

	if err := m.engine.SetStyle(name, url); err != nil {
		m.unsubscribe(t)
		loadErr := apperrors.NewStyleLoadFailedError(name, err)
		m.reporter.Report("setStyle", loadErr)
		m.state = Idle
		m.complete(t, OutcomeLoadFailed, loadErr)
		return loadErr
	}

	if !t.resolved {
		t.cancel = m.scheduler.After(m.config.ReadyTimeout, func() { m.ready(t, OutcomeTimeout) })
	}
	m.logger.Info("style swap started", map[string]interface{}{"from": t.from, "to": name})
	return nil
}

// ready runs on the first readiness signal or the fallback timer; later calls are no-ops.
func (m *Manager) ready(t *transition, trigger string) {
	if t.resolved {
		return
	}
	t.resolved = true
	t.trigger = trigger
	m.unsubscribe(t)
	if t.cancel != nil {
		t.cancel()
	}
	if trigger == OutcomeTimeout {
		m.reporter.Report("awaitReady", apperrors.NewTransitionTimeoutError(t.to, m.config.ReadyTimeout))
	}

	m.state = AwaitingReady
	m.scheduler.After(m.config.SettleDelay, func() { m.restoreBase(t) })
}

func (m *Manager) restoreBase(t *transition) {
	m.state = Restoring
	err := guard(func() error {
		m.store.Invalidate()
		features, images, ok := m.base()
		if !ok {
			return nil
		}
		return m.store.InstallBaseLayers(features, images, false)
	})
	if err != nil {
		t.err = apperrors.NewRestoreFailedError("base", err)
		m.reporter.Report("restoreBase", t.err)
	}
	m.scheduler.After(m.config.HighlightDelay, func() { m.restoreHighlights(t) })
}

func (m *Manager) restoreHighlights(t *transition) {
	err := guard(func() error { return m.store.Restore(t.snapshot) })
	if err != nil {
		restoreErr := apperrors.NewRestoreFailedError("highlights", err)
		m.reporter.Report("restoreHighlights", restoreErr)
		if t.err == nil {
			t.err = restoreErr
		}
	}
	m.scheduler.After(m.config.TrailingGuard, func() { m.finish(t) })
}

func (m *Manager) finish(t *transition) {
	m.state = Idle
	m.current = t.to

	outcome := OutcomeReady
	switch {
	case t.err != nil:
		outcome = OutcomeRestoreFailed
	case t.trigger == OutcomeTimeout:
		outcome = OutcomeTimeout
	}
	m.complete(t, outcome, t.err)
}

func (m *Manager) complete(t *transition, outcome string, err error) {
	res := Result{
		From:     t.from,
		To:       t.to,
		Trigger:  t.trigger,
		Outcome:  outcome,
		Duration: m.clock().Sub(t.started),
		Err:      err,
	}
	metrics.StyleTransitions.WithLabelValues(outcome).Inc()
	m.obs.RecordTransition(context.Background(), res.Duration, outcome, t.to)
	m.logger.Info("style swap finished", map[string]interface{}{
		"from":     res.From,
		"to":       res.To,
		"trigger":  res.Trigger,
		"outcome":  outcome,
		"duration": res.Duration.String(),
	})
	for _, fn := range m.listeners {
		fn(res)
	}
}

func (m *Manager) unsubscribe(t *transition) {
	for _, off := range t.offs {
		off()
	}
	t.offs = nil
}

// guard turns a panic inside a restore step into an error so the manager still reaches Idle.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
