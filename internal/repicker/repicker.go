package repicker

import (
	"context"
	"log/slog"
	"time"

	"github.com/FMassin/scdlpicker/internal/conf"
	"github.com/FMassin/scdlpicker/internal/observability"
	"github.com/FMassin/scdlpicker/internal/spool"
)

// pollInterval is the sleep between spool passes.
const pollInterval = time.Second

// workspace tracks the picks already processed for one event, so a
// re-deposited payload never repicks the same onset twice.
type workspace struct {
	picks map[string]spool.PickRecord
}

// Repicker consumes pick payloads from the spool and turns them into
// model-refined derived picks. Single-threaded: one item is fully
// processed before the next is looked at.
type Repicker struct {
	settings *conf.Settings
	model    Annotator
	queue    *spool.Queue
	outgoing *spool.Queue
	log      *slog.Logger

	workspaces map[string]*workspace
}

// New assembles the repicking pipeline. The annotator must already be
// resolved; model resolution failures abort startup.
func New(settings *conf.Settings, model Annotator, log *slog.Logger) *Repicker {
	if log == nil {
		log = slog.Default()
	}
	return &Repicker{
		settings:   settings,
		model:      model,
		queue:      spool.NewQueue(settings.SpoolDir(), log),
		outgoing:   spool.NewQueue(settings.OutgoingDir(), log),
		log:        log,
		workspaces: make(map[string]*workspace),
	}
}

// Run polls the spool at a fixed cadence until the context is cancelled.
// In exit mode it returns after the first pass over a drained spool.
func (r *Repicker) Run(ctx context.Context) error {
	for {
		if err := r.Poll(ctx); err != nil {
			r.log.Error("spool pass failed", "error", err)
		}

		if r.settings.Repicker.Exit {
			items, err := r.queue.Items()
			if err == nil && len(items) == 0 {
				r.log.Info("spool drained, exiting")
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Poll performs one spool pass. In prefer-recent mode the newest ready
// item is processed and the pass ends, so a fresh listing re-prioritizes
// before the next item; in strict order mode every ready item is
// processed oldest first.
func (r *Repicker) Poll(ctx context.Context) error {
	items, err := r.queue.Items()
	if err != nil {
		return err
	}

	if r.settings.Repicker.PreferRecent {
		for i := len(items) - 1; i >= 0; i-- {
			if r.processItem(ctx, &items[i]) {
				// One completed item per wake: recover real-time behavior
				// first after a backlog. Deferred items must not end the
				// pass, or a single poison payload would starve the rest.
				break
			}
		}
		return nil
	}

	for i := range items {
		r.processItem(ctx, &items[i])
	}
	return nil
}

// processItem runs one work item end to end. Returns true only when the
// item completed (acknowledged, or fully evaluated in dry-run mode);
// items that were skipped or deferred for a retry keep their link and
// return false.
func (r *Repicker) processItem(ctx context.Context, item *spool.Item) bool {
	r.log.Debug("reading payload", "target", item.Target)
	picks, err := spool.ReadPicks(item.Target)
	if err != nil {
		r.log.Warn("unreadable payload", "target", item.Target, "error", err)
		return false
	}

	newPicks, err := r.process(ctx, picks, item.EventID)
	if err != nil {
		// Attempt-boundary catch: the item keeps its link and is retried
		// on a later pass.
		r.log.Warn("processing failed", "event_id", item.EventID, "error", err)
		return false
	}

	if len(newPicks) == 0 {
		// Definitive no-result: the item is complete.
		r.log.Warn("no results", "event_id", item.EventID, "name", item.Name)
		r.ack(item)
		return true
	}

	if r.settings.DryRun {
		r.log.Info("dry run, not writing results", "event_id", item.EventID, "name", item.Name)
		return true
	}

	if err := r.publishResults(item, newPicks); err != nil {
		r.log.Error("failed to publish results", "event_id", item.EventID, "error", err)
		return false
	}
	r.ack(item)
	return true
}

func (r *Repicker) ack(item *spool.Item) {
	if err := r.queue.Ack(item); err != nil {
		r.log.Error("failed to acknowledge item", "name", item.Name, "error", err)
		return
	}
	observability.SpoolItemsProcessed.Inc()
}

// process repicks the not-yet-seen picks of a payload and returns the
// derived picks. Seen picks are skipped because there is no cross-talk
// between picks; reprocessing could only duplicate results.
func (r *Repicker) process(ctx context.Context, picks []spool.PickRecord, eventID string) ([]spool.PickRecord, error) {
	ws, ok := r.workspaces[eventID]
	if !ok {
		ws = &workspace{picks: make(map[string]spool.PickRecord)}
		r.workspaces[eventID] = ws
	}

	var fresh []spool.PickRecord
	for _, pick := range picks {
		if _, seen := ws.picks[pick.PublicID]; seen {
			continue
		}
		ws.picks[pick.PublicID] = pick
		fresh = append(fresh, pick)
	}
	r.log.Debug("new picks", "event_id", eventID, "count", len(fresh), "total", len(picks))
	if len(fresh) == 0 {
		return nil, nil
	}

	var derived []spool.PickRecord
	for _, batch := range batches(fresh, r.settings.Repicker.BatchSize) {
		stream, collected := r.assemble(batch, eventID)
		if len(collected) == 0 {
			// This batch had no usable data; the next one may.
			continue
		}

		annotations, err := r.model.Annotate(ctx, stream)
		if err != nil {
			// The payload is retried whole, so the fresh picks must not
			// stay marked as seen.
			for _, pick := range fresh {
				delete(ws.picks, pick.PublicID)
			}
			return nil, err
		}

		derived = append(derived, r.associate(annotations, collected, eventID)...)
	}
	return derived, nil
}
