package relocator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FMassin/scdlpicker/internal/conf"
	"github.com/FMassin/scdlpicker/internal/seismic"
)

func seedEvent(cat *fakeCatalog, eventID string, origin *seismic.Origin) *seismic.Event {
	evt := &seismic.Event{
		PublicID:          eventID,
		Type:              "earthquake",
		PreferredOriginID: origin.PublicID,
	}
	cat.events[eventID] = evt
	cat.origins[origin.PublicID] = origin
	return evt
}

func solverResult(prefix string, arrivals int, depth float64) *seismic.Origin {
	org := originWithPicks(prefix, arrivals)
	org.Depth = depth
	return withStandardError(org, 1.0)
}

func TestProcessEventDirectPhase(t *testing.T) {
	t.Parallel()

	t.Run("successful solution is sent and becomes the baseline", func(t *testing.T) {
		t.Parallel()
		cat := newFakeCatalog()
		solver := &fakeSolver{results: []*seismic.Origin{solverResult("direct", 20, 33)}}
		s := newTestScheduler(t, cat, solver, nil)
		seedEvent(cat, "evt1", &seismic.Origin{PublicID: "Origin/pref"})

		s.processEvent(context.Background(), "evt1")

		require.Len(t, cat.published, 1)
		sent := cat.published[0]
		assert.Equal(t, "dl-reloc", sent.Author())
		assert.Equal(t, "GFZ", sent.AgencyID())
		assert.Equal(t, seismic.ModeAutomatic, sent.EvaluationMode)
		assert.NotEqual(t, "Origin/direct", sent.PublicID)
		assert.Same(t, sent, s.lastSent["evt1"])

		require.Len(t, solver.directives, 1)
		assert.False(t, solver.directives[0].Fixed)
	})

	t.Run("worse solution than the baseline is suppressed", func(t *testing.T) {
		t.Parallel()
		cat := newFakeCatalog()
		previous := withStandardError(originWithPicks("prev", 10), 1.0)
		candidate := withStandardError(sharedPickOrigin(previous, 5, "cand", 0), 1.0)
		candidate.Depth = 12

		solver := &fakeSolver{results: []*seismic.Origin{candidate}}
		s := newTestScheduler(t, cat, solver, nil)
		seedEvent(cat, "evt1", &seismic.Origin{PublicID: "Origin/pref"})
		s.lastSent["evt1"] = previous

		s.processEvent(context.Background(), "evt1")

		assert.Empty(t, cat.published)
		assert.Same(t, previous, s.lastSent["evt1"])
	})

	t.Run("too few arrivals is a failure", func(t *testing.T) {
		t.Parallel()
		cat := newFakeCatalog()
		solver := &fakeSolver{results: []*seismic.Origin{solverResult("tiny", 4, 10)}}
		s := newTestScheduler(t, cat, solver, nil)
		seedEvent(cat, "evt1", &seismic.Origin{PublicID: "Origin/pref"})

		s.processEvent(context.Background(), "evt1")

		assert.Empty(t, cat.published)
		assert.NotContains(t, s.lastSent, "evt1")
	})

	t.Run("solver failure sends nothing", func(t *testing.T) {
		t.Parallel()
		cat := newFakeCatalog()
		solver := &fakeSolver{err: fmt.Errorf("relocation diverged")}
		s := newTestScheduler(t, cat, solver, nil)
		seedEvent(cat, "evt1", &seismic.Origin{PublicID: "Origin/pref"})

		s.processEvent(context.Background(), "evt1")

		assert.Empty(t, cat.published)
	})

	t.Run("dry run keeps the baseline without sending", func(t *testing.T) {
		t.Parallel()
		cat := newFakeCatalog()
		solver := &fakeSolver{results: []*seismic.Origin{solverResult("direct", 20, 33)}}
		s := newTestScheduler(t, cat, solver, nil)
		s.settings.DryRun = true
		seedEvent(cat, "evt1", &seismic.Origin{PublicID: "Origin/pref"})

		s.processEvent(context.Background(), "evt1")

		assert.Empty(t, cat.published)
		assert.Contains(t, s.lastSent, "evt1")
	})
}

func TestProcessEventDepthPhase(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, arrivals int, depth float64, estimator *fakeEstimator) (*fakeCatalog, *fakeSolver, *Scheduler) {
		t.Helper()
		cat := newFakeCatalog()
		direct := solverResult("direct", arrivals, depth)
		refined := solverResult("refined", arrivals, depth)
		solver := &fakeSolver{results: []*seismic.Origin{direct, refined}}
		s := newTestScheduler(t, cat, solver, estimator)
		seedEvent(cat, "evt1", &seismic.Origin{PublicID: "Origin/pref"})
		s.processEvent(context.Background(), "evt1")
		return cat, solver, s
	}

	t.Run("runs at the entry boundaries", func(t *testing.T) {
		t.Parallel()
		est := &fakeEstimator{depth: 44.5}
		cat, solver, s := run(t, 50, 120, est)

		require.Len(t, cat.published, 2)
		require.Len(t, solver.directives, 2)
		assert.True(t, solver.directives[1].Fixed)
		assert.Equal(t, 44.5, solver.directives[1].Depth)
		assert.Equal(t, ReasonDepthPhase, solver.directives[1].Reason)

		// The refinement is sent without an improvement check and becomes
		// the new baseline.
		assert.Same(t, cat.published[1], s.lastSent["evt1"])

		data, err := os.ReadFile(filepath.Join(s.settings.WorkingDir, "depth.log"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "evt1    44.5 km")
	})

	t.Run("skipped below the pick threshold", func(t *testing.T) {
		t.Parallel()
		est := &fakeEstimator{depth: 44.5}
		cat, solver, _ := run(t, 49, 60, est)

		assert.Len(t, cat.published, 1)
		assert.Len(t, solver.directives, 1)
		// The estimate is still computed and logged.
		assert.Equal(t, 1, est.calls)
	})

	t.Run("skipped for deep events", func(t *testing.T) {
		t.Parallel()
		est := &fakeEstimator{depth: 44.5}
		cat, solver, _ := run(t, 60, 121, est)

		assert.Len(t, cat.published, 1)
		assert.Len(t, solver.directives, 1)
	})

	t.Run("estimator failure leaves a log line and skips the phase", func(t *testing.T) {
		t.Parallel()
		est := &fakeEstimator{err: fmt.Errorf("model crashed")}
		cat, solver, s := run(t, 60, 60, est)

		assert.Len(t, cat.published, 1)
		assert.Len(t, solver.directives, 1)

		data, err := os.ReadFile(filepath.Join(s.settings.WorkingDir, "depth.log"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "evt1   depth computation failed")
	})
}

func TestFixedDepthDirective(t *testing.T) {
	t.Parallel()

	region := conf.FixedDepthRegion{
		Name:   "vogtland",
		MinLat: 50, MaxLat: 51, MinLon: 12, MaxLon: 13,
		Depth: 8,
	}

	newSched := func(t *testing.T) *Scheduler {
		s := newTestScheduler(t, newFakeCatalog(), &fakeSolver{}, nil)
		s.settings.Relocation.FixedDepthRegions = []conf.FixedDepthRegion{region}
		return s
	}

	t.Run("region override wins over everything", func(t *testing.T) {
		t.Parallel()
		s := newSched(t)
		org := &seismic.Origin{
			Latitude: 50.3, Longitude: 12.4,
			Depth:          33,
			DepthType:      seismic.DepthOperatorAssigned,
			EvaluationMode: seismic.ModeManual,
			CreationInfo:   &seismic.CreationInfo{AgencyID: "GFZ"},
		}
		d := s.fixedDepthDirective(org)
		assert.True(t, d.Fixed)
		assert.Equal(t, 8.0, d.Depth)
		assert.Equal(t, ReasonRegion, d.Reason)
	})

	t.Run("trusted manual depth from own agency", func(t *testing.T) {
		t.Parallel()
		s := newSched(t)
		org := &seismic.Origin{
			Latitude: 40, Longitude: 20,
			Depth:          33,
			DepthType:      seismic.DepthOperatorAssigned,
			EvaluationMode: seismic.ModeManual,
			CreationInfo:   &seismic.CreationInfo{AgencyID: "GFZ"},
		}
		d := s.fixedDepthDirective(org)
		assert.True(t, d.Fixed)
		assert.Equal(t, 33.0, d.Depth)
		assert.Equal(t, ReasonManual, d.Reason)
	})

	t.Run("foreign manual origins are not trusted", func(t *testing.T) {
		t.Parallel()
		s := newSched(t)
		org := &seismic.Origin{
			Latitude: 40, Longitude: 20,
			Depth:          33,
			DepthType:      seismic.DepthOperatorAssigned,
			EvaluationMode: seismic.ModeManual,
			CreationInfo:   &seismic.CreationInfo{AgencyID: "NEIC"},
		}
		d := s.fixedDepthDirective(org)
		assert.False(t, d.Fixed)
	})

	t.Run("default depth passthrough", func(t *testing.T) {
		t.Parallel()
		s := newSched(t)
		org := &seismic.Origin{
			Latitude: 40, Longitude: 20,
			Depth:     10,
			DepthType: seismic.DepthOperatorAssigned,
		}
		d := s.fixedDepthDirective(org)
		assert.True(t, d.Fixed)
		assert.Equal(t, 10.0, d.Depth)
		assert.Equal(t, ReasonDefault, d.Reason)
	})

	t.Run("free depth otherwise", func(t *testing.T) {
		t.Parallel()
		s := newSched(t)
		org := &seismic.Origin{
			Latitude: 40, Longitude: 20,
			Depth: 33,
		}
		assert.False(t, s.fixedDepthDirective(org).Fixed)
	})
}
