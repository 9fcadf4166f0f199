package relocator

import (
	"context"
	"log/slog"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/FMassin/scdlpicker/internal/catalog"
	"github.com/FMassin/scdlpicker/internal/conf"
	"github.com/FMassin/scdlpicker/internal/inventory"
	"github.com/FMassin/scdlpicker/internal/observability"
	"github.com/FMassin/scdlpicker/internal/seismic"
)

// tickInterval is the cadence of the processing loop.
const tickInterval = time.Second

// originCacheTTL bounds how long fetched origins stay cached. Origins are
// immutable once fetched, the TTL only limits memory of a long-running
// process.
const originCacheTTL = 6 * time.Hour

// Scheduler owns the mutable state of the relocation pipeline: the
// pending-event set, the origin cache and the last-sent baseline per
// event. All processing is single-threaded over a fixed-interval tick.
type Scheduler struct {
	settings *conf.Settings
	catalog  catalog.Interface
	solver   Solver
	depth    DepthEstimator // nil disables the depth phase
	inv      *inventory.Inventory
	log      *slog.Logger

	pending  map[string]*seismic.Event
	origins  *gocache.Cache
	lastSent map[string]*seismic.Origin
	since    time.Time

	now func() time.Time // injectable clock for tests
}

// NewScheduler assembles the relocation pipeline. The inventory must be
// loaded beforehand; an inventory load failure is a startup abort.
func NewScheduler(settings *conf.Settings, cat catalog.Interface, solver Solver,
	depth DepthEstimator, inv *inventory.Inventory, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		settings: settings,
		catalog:  cat,
		solver:   solver,
		depth:    depth,
		inv:      inv,
		log:      log,
		pending:  make(map[string]*seismic.Event),
		origins:  gocache.New(originCacheTTL, 30*time.Minute),
		lastSent: make(map[string]*seismic.Origin),
		since:    time.Now().UTC(),
		now:      time.Now,
	}
}

// Run drives the pipeline until the context is cancelled. With explicit
// events configured, those are processed immediately and Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	if ids := s.settings.Relocation.Events; len(ids) > 0 {
		for _, eventID := range ids {
			s.processEvent(ctx, eventID)
		}
		return nil
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.pollChanges(ctx)
			s.sweep(ctx)
		}
	}
}

// pollChanges ingests the catalog change feed into the pending set.
// Membership is unique by event identifier; a re-notified event simply
// refreshes its entry.
func (s *Scheduler) pollChanges(ctx context.Context) {
	cutoff := s.now().UTC()
	events, err := s.catalog.EventsModifiedSince(ctx, s.since)
	if err != nil {
		s.log.Warn("change feed poll failed", "error", err)
		return
	}
	s.since = cutoff

	for _, evt := range events {
		if !evt.Valid() {
			s.log.Debug("ignoring invalid event", "event_id", evt.PublicID, "type", evt.Type)
			continue
		}
		s.log.Debug("saving event", "event_id", evt.PublicID)
		s.pending[evt.PublicID] = evt
	}
}

// sweep evaluates every pending event in ascending identifier order.
// Ready events are removed from the pending set and processed; rejected
// events are removed permanently; the rest stay for the next sweep.
func (s *Scheduler) sweep(ctx context.Context) {
	eventIDs := make([]string, 0, len(s.pending))
	for eventID := range s.pending {
		eventIDs = append(eventIDs, eventID)
	}
	sort.Strings(eventIDs)

	for _, eventID := range eventIDs {
		observability.EventsEvaluated.Inc()
		switch s.evaluate(ctx, eventID) {
		case Ready:
			delete(s.pending, eventID)
			s.processEvent(ctx, eventID)
		case Rejected:
			delete(s.pending, eventID)
			observability.EventsRejected.Inc()
		case NotReady:
			// Stays pending for the next sweep.
		}
	}
}

// cachedOrigin returns an origin from the cache or fetches it from the
// catalog. A fetch failure returns nil; the caller retries next cycle.
func (s *Scheduler) cachedOrigin(ctx context.Context, originID string) *seismic.Origin {
	if cached, ok := s.origins.Get(originID); ok {
		return cached.(*seismic.Origin)
	}
	s.log.Debug("loading origin", "origin_id", originID)
	org, err := s.catalog.Origin(ctx, originID)
	if err != nil {
		s.log.Debug("origin not loadable", "origin_id", originID, "error", err)
		return nil
	}
	s.origins.SetDefault(originID, org)
	return org
}

// rememberOrigin caches a derived origin under its identifier.
func (s *Scheduler) rememberOrigin(org *seismic.Origin) {
	s.origins.SetDefault(org.PublicID, org)
}
