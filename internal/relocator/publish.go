package relocator

import (
	"context"

	"github.com/FMassin/scdlpicker/internal/observability"
	"github.com/FMassin/scdlpicker/internal/seismic"
)

// publish emits the accepted origin with its event association as one
// change-set. In dry-run mode the transmission is suppressed but the
// attempt is logged identically; the improvement baseline is updated by
// the caller after every send either way.
func (s *Scheduler) publish(ctx context.Context, event *seismic.Event, origin *seismic.Origin) {
	if s.settings.DryRun {
		s.log.Info("dry run, not sending", "origin_id", origin.PublicID,
			"event_id", event.PublicID)
		return
	}

	if err := s.catalog.PublishOrigin(ctx, event, origin); err != nil {
		s.log.Warn("failed to send origin", "origin_id", origin.PublicID,
			"event_id", event.PublicID, "error", err)
		return
	}

	observability.RelocationsSent.Inc()
	s.log.Info("sent origin", "origin_id", origin.PublicID, "event_id", event.PublicID)
}
