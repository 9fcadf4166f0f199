package relocator

import (
	"context"
	"time"

	"github.com/FMassin/scdlpicker/internal/seismic"
)

// Readiness is the verdict of the readiness gate for one pending event.
type Readiness int

const (
	// NotReady means the event stays pending and is re-evaluated on the
	// next sweep.
	NotReady Readiness = iota
	// Ready means the event is due for a relocation attempt now.
	Ready
	// Rejected means the event is permanently dropped from the pending set.
	Rejected
)

// evaluate decides whether a pending event is due for processing. Before
// relocating we wait minDelay after origin time so that picks from
// teleseismic distances have arrived; the boundary is inclusive. Events
// whose preferred origin we authored ourselves, and unqualified origins,
// are rejected for good.
func (s *Scheduler) evaluate(ctx context.Context, eventID string) Readiness {
	evt, ok := s.pending[eventID]
	if !ok {
		s.log.Error("missing pending event", "event_id", eventID)
		return NotReady
	}

	org := s.cachedOrigin(ctx, evt.PreferredOriginID)
	if org == nil {
		return NotReady
	}

	dt := s.now().UTC().Sub(org.Time)
	minDelay := time.Duration(s.settings.Relocation.MinDelay * float64(time.Second))
	if dt < minDelay {
		return NotReady
	}

	author := org.Author()
	if author == "" {
		s.log.Warn("author missing in origin", "origin_id", org.PublicID)
	}
	if author == s.settings.Author {
		// Relocating our own result would feed the pipeline back into
		// itself.
		s.log.Debug("own origin, nothing to do", "origin_id", org.PublicID)
		return Rejected
	}

	if !qualified(org) {
		s.log.Debug("unqualified origin rejected", "origin_id", org.PublicID)
		return Rejected
	}

	return Ready
}

// qualified is the basic quality gate on incoming origins.
func qualified(org *seismic.Origin) bool {
	return org.EvaluationStatus != seismic.StatusRejected
}
