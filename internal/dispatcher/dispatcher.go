// Package dispatcher applies agent map commands to the overlay store, strictly in
// the order they were sent.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "mapping-viewer/internal/common/errors"
	"mapping-viewer/internal/common/logger"
	"mapping-viewer/internal/common/metrics"
	"mapping-viewer/internal/mapcmd"
	"mapping-viewer/internal/models"
	"mapping-viewer/internal/overlay"
)

// Catalog resolves campaign IDs to records.
type Catalog interface {
	Feature(id int) (models.Feature, bool)
	Image(id int) (models.ImagePosition, bool)
}

// Status of a single command within a batch.
type Status string

const (
	StatusApplied  Status = metrics.OutcomeApplied
	StatusDeferred Status = metrics.OutcomeDeferred
	StatusSkipped  Status = metrics.OutcomeSkipped
	StatusFailed   Status = metrics.OutcomeFailed
)

// Outcome records what happened to one command of a batch.
type Outcome struct {
	Index  int
	Tag    string
	Status Status
	Err    error
}

// Report lists outcomes in batch order.
type Report struct {
	Outcomes []Outcome
}

// Count returns how many commands ended with status.
func (r Report) Count(status Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

func (r Report) String() string {
	return fmt.Sprintf("applied=%d deferred=%d skipped=%d failed=%d",
		r.Count(StatusApplied), r.Count(StatusDeferred), r.Count(StatusSkipped), r.Count(StatusFailed))
}

type handlerFunc func(ctx context.Context, cmd mapcmd.Command) (Status, error)

// Dispatcher executes command batches against a Store. Not safe for concurrent use.
type Dispatcher struct {
	store    *overlay.Store
	catalog  Catalog
	decoder  *mapcmd.Decoder
	logger   logger.Logger
	reporter *apperrors.Reporter
	handlers map[string]handlerFunc

	featureListeners []func(ids []int)
}

func New(store *overlay.Store, decoder *mapcmd.Decoder, log logger.Logger) *Dispatcher {
	l := logger.ForComponent(log, "dispatcher")
	d := &Dispatcher{
		store:    store,
		decoder:  decoder,
		logger:   l,
		reporter: apperrors.NewReporter(l),
	}
	d.handlers = map[string]handlerFunc{
		mapcmd.TagHighlightFeatures: d.highlightFeatures,
		mapcmd.TagHighlightImage:    d.highlightImage,
		mapcmd.TagShowStatistics:    d.showStatistics,
		mapcmd.TagClearHighlights:   d.clearHighlights,
		mapcmd.TagShowHeatmap:       d.showHeatmap,
	}
	return d
}

// SetCatalog installs the dataset IDs are resolved against. Until then every ID is unknown.
func (d *Dispatcher) SetCatalog(c Catalog) {
	d.catalog = c
}

// OnFeatureHighlight registers fn to receive the feature highlight after every change.
func (d *Dispatcher) OnFeatureHighlight(fn func(ids []int)) {
	d.featureListeners = append(d.featureListeners, fn)
}

// Execute runs commands one after another. A failing command is recorded and
// the batch continues.
func (d *Dispatcher) Execute(ctx context.Context, commands []mapcmd.Command) Report {
	report := Report{Outcomes: make([]Outcome, 0, len(commands))}
	for i, cmd := range commands {
		report.Outcomes = append(report.Outcomes, d.run(ctx, i, cmd))
	}
	d.logger.Debug("batch executed", map[string]interface{}{"size": len(commands), "report": report.String()})
	return report
}

// ExecuteRaw decodes each command at the boundary, then executes it. Unknown or
// malformed commands are skipped without affecting their neighbours.
func (d *Dispatcher) ExecuteRaw(ctx context.Context, raws []json.RawMessage) Report {
	report := Report{Outcomes: make([]Outcome, 0, len(raws))}
	for i, raw := range raws {
		cmd, err := d.decoder.Decode(raw)
		if err != nil {
			tag := mapcmd.PeekTag(raw)
			d.reporter.Report("decodeCommand", err)
			metrics.CommandsTotal.WithLabelValues(tagLabel(tag), string(StatusSkipped)).Inc()
			report.Outcomes = append(report.Outcomes, Outcome{Index: i, Tag: tag, Status: StatusSkipped, Err: err})
			continue
		}
		report.Outcomes = append(report.Outcomes, d.run(ctx, i, cmd))
	}
	d.logger.Debug("batch executed", map[string]interface{}{"size": len(raws), "report": report.String()})
	return report
}

func (d *Dispatcher) run(ctx context.Context, index int, cmd mapcmd.Command) (out Outcome) {
	out = Outcome{Index: index, Tag: cmd.Tag()}
	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusFailed
			out.Err = fmt.Errorf("command %s panicked: %v", cmd.Tag(), r)
			d.reporter.Report("executeCommand", out.Err)
		}
		metrics.CommandsTotal.WithLabelValues(tagLabel(out.Tag), string(out.Status)).Inc()
	}()

	handler, ok := d.handlers[cmd.Tag()]
	if !ok {
		out.Status = StatusSkipped
		out.Err = apperrors.NewUnknownCommandError(cmd.Tag())
		d.reporter.Report("executeCommand", out.Err)
		return out
	}

	out.Status, out.Err = handler(ctx, cmd)
	if out.Err != nil {
		d.reporter.Report("executeCommand", out.Err)
	}
	return out
}

// tagLabel bounds metric cardinality to the known tags.
func tagLabel(tag string) string {
	switch tag {
	case mapcmd.TagHighlightFeatures, mapcmd.TagHighlightImage, mapcmd.TagShowStatistics,
		mapcmd.TagClearHighlights, mapcmd.TagShowHeatmap:
		return tag
	}
	return "unknown"
}
