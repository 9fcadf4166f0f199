package relocator

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/FMassin/scdlpicker/internal/catalog"
	"github.com/FMassin/scdlpicker/internal/conf"
	"github.com/FMassin/scdlpicker/internal/inventory"
	"github.com/FMassin/scdlpicker/internal/seismic"
)

// fakeCatalog is an in-memory catalog.Interface for pipeline tests.
type fakeCatalog struct {
	events    map[string]*seismic.Event
	origins   map[string]*seismic.Origin
	picks     []*seismic.Pick
	complete  map[string]*seismic.EventParameters
	published []*seismic.Origin
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		events:   make(map[string]*seismic.Event),
		origins:  make(map[string]*seismic.Origin),
		complete: make(map[string]*seismic.EventParameters),
	}
}

func (c *fakeCatalog) Open() error  { return nil }
func (c *fakeCatalog) Close() error { return nil }

func (c *fakeCatalog) Event(ctx context.Context, eventID string) (*seismic.Event, error) {
	if evt, ok := c.events[eventID]; ok {
		return evt, nil
	}
	return nil, catalog.ErrNotFound
}

func (c *fakeCatalog) Origin(ctx context.Context, originID string) (*seismic.Origin, error) {
	if org, ok := c.origins[originID]; ok {
		return org, nil
	}
	return nil, catalog.ErrNotFound
}

func (c *fakeCatalog) OriginWithArrivals(ctx context.Context, originID string) (*seismic.Origin, error) {
	return c.Origin(ctx, originID)
}

func (c *fakeCatalog) PicksInWindow(ctx context.Context, start, end time.Time, authors []string) ([]*seismic.Pick, error) {
	return c.picks, nil
}

func (c *fakeCatalog) CompleteEvent(ctx context.Context, eventID string) (*seismic.EventParameters, error) {
	if ep, ok := c.complete[eventID]; ok {
		return ep, nil
	}
	if evt, ok := c.events[eventID]; ok {
		return &seismic.EventParameters{Event: evt}, nil
	}
	return nil, catalog.ErrNotFound
}

func (c *fakeCatalog) Inventory(ctx context.Context) (*inventory.Inventory, error) {
	return &inventory.Inventory{}, nil
}

func (c *fakeCatalog) EventsModifiedSince(ctx context.Context, since time.Time) ([]*seismic.Event, error) {
	return nil, nil
}

func (c *fakeCatalog) PublishOrigin(ctx context.Context, event *seismic.Event, origin *seismic.Origin) error {
	c.published = append(c.published, origin)
	return nil
}

// fakeSolver returns pre-queued results, one per invocation, and records
// the directives it was called with.
type fakeSolver struct {
	results    []*seismic.Origin
	err        error
	directives []DepthDirective
}

func (s *fakeSolver) Relocate(ctx context.Context, origin *seismic.Origin,
	directive DepthDirective, minDepth, maxResidual float64) (*seismic.Origin, error) {
	s.directives = append(s.directives, directive)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) == 0 {
		return nil, fmt.Errorf("no queued solver result")
	}
	result := s.results[0]
	s.results = s.results[1:]
	return result.Copy(), nil
}

// fakeEstimator returns a fixed depth estimate.
type fakeEstimator struct {
	depth float64
	err   error
	calls int
}

func (e *fakeEstimator) Estimate(ctx context.Context, ep *seismic.EventParameters) (float64, error) {
	e.calls++
	if e.err != nil {
		return 0, e.err
	}
	return e.depth, nil
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{
		WorkingDir: t.TempDir(),
		Device:     "cpu",
		Author:     "dl-reloc",
		AgencyID:   "GFZ",
	}
	settings.Relocation = conf.RelocationSettings{
		PickAuthors:  []string{"dlpicker"},
		MinDelay:     1200,
		MaxResidual:  2.5,
		MaxRMS:       1.7,
		MaxDelta:     105,
		MinDepth:     10,
		DefaultDepth: 10,
	}
	return settings
}

func newTestScheduler(t *testing.T, cat catalog.Interface, solver Solver, depth DepthEstimator) *Scheduler {
	t.Helper()
	return &Scheduler{
		settings: testSettings(t),
		catalog:  cat,
		solver:   solver,
		depth:    depth,
		inv:      &inventory.Inventory{},
		log:      slog.Default(),
		pending:  make(map[string]*seismic.Event),
		origins:  gocache.New(time.Hour, 0),
		lastSent: make(map[string]*seismic.Origin),
		since:    time.Now().UTC(),
		now:      time.Now,
	}
}

// originWithPicks builds an origin referencing sequentially numbered
// picks at full weight.
func originWithPicks(prefix string, count int) *seismic.Origin {
	org := &seismic.Origin{PublicID: "Origin/" + prefix}
	for i := 0; i < count; i++ {
		org.Arrivals = append(org.Arrivals, seismic.Arrival{
			PickID: fmt.Sprintf("%s-%d", prefix, i),
			Phase:  "P",
			Weight: 1.0,
		})
	}
	return org
}

func withStandardError(org *seismic.Origin, se float64) *seismic.Origin {
	org.Quality = &seismic.Quality{StandardError: &se}
	return org
}

// sharedPickOrigin builds an origin referencing picks of another origin
// plus extra exclusive picks.
func sharedPickOrigin(base *seismic.Origin, shared int, extraPrefix string, extra int) *seismic.Origin {
	org := &seismic.Origin{PublicID: "Origin/" + extraPrefix}
	for i := 0; i < shared && i < len(base.Arrivals); i++ {
		org.Arrivals = append(org.Arrivals, base.Arrivals[i])
	}
	for i := 0; i < extra; i++ {
		org.Arrivals = append(org.Arrivals, seismic.Arrival{
			PickID: fmt.Sprintf("%s-x%d", extraPrefix, i),
			Phase:  "P",
			Weight: 1.0,
		})
	}
	return org
}
