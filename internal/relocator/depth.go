package relocator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// estimateDepth invokes the depth-phase collaborator for the event and
// appends one line to the operational depth log, success or not. Returns
// nil when no estimator is configured or the estimate failed.
func (s *Scheduler) estimateDepth(ctx context.Context, eventID string) *float64 {
	if s.depth == nil {
		return nil
	}

	s.log.Debug("computing depth", "event_id", eventID)
	ep, err := s.catalog.CompleteEvent(ctx, eventID)
	if err != nil {
		s.log.Warn("failed to load event parameters for depth estimation",
			"event_id", eventID, "error", err)
		return nil
	}

	depth, err := s.depth.Estimate(ctx, ep)
	s.appendDepthLog(eventID, depth, err)
	if err != nil {
		s.log.Warn("depth computation failed", "event_id", eventID, "error", err)
		return nil
	}
	s.log.Info("depth estimated", "event_id", eventID, "depth_km", depth)
	return &depth
}

// appendDepthLog writes one line per estimator invocation: timestamp,
// event id, depth or a failure marker.
func (s *Scheduler) appendDepthLog(eventID string, depth float64, estErr error) {
	path := filepath.Join(s.settings.WorkingDir, "depth.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Warn("cannot open depth log", "path", path, "error", err)
		return
	}
	defer f.Close()

	timestamp := s.now().UTC().Format("2006-01-02 15:04:05")
	var line string
	if estErr != nil {
		line = fmt.Sprintf("%s %s   depth computation failed\n", timestamp, eventID)
	} else {
		line = fmt.Sprintf("%s %s   %5.1f km\n", timestamp, eventID, depth)
	}
	if _, err := f.WriteString(line); err != nil {
		s.log.Warn("cannot append to depth log", "path", path, "error", err)
	}
}
