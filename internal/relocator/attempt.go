package relocator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FMassin/scdlpicker/internal/conf"
	"github.com/FMassin/scdlpicker/internal/observability"
	"github.com/FMassin/scdlpicker/internal/seismic"
)

// minArrivals is the minimum solver output size for a usable solution.
const minArrivals = 5

// Depth-phase entry conditions: small events and deep events gain nothing
// from the second pass.
const (
	depthPhaseMinArrivals = 50
	depthPhaseMaxDepth    = 120.0 // km
)

// pickWindow is the time span after origin time within which candidate
// picks are collected. Generous enough for teleseismic P at the distance
// cap.
const pickWindow = 20 * time.Minute

// processEvent runs the two-phase relocation attempt for one ready event.
// Failures are logged and abandoned; the event is retried only when the
// catalog announces it again.
func (s *Scheduler) processEvent(ctx context.Context, eventID string) {
	event, err := s.catalog.Event(ctx, eventID)
	if err != nil {
		s.log.Warn("failed to load event", "event_id", eventID, "error", err)
		return
	}
	s.log.Debug("loaded event", "event_id", eventID)

	origin, err := s.catalog.Origin(ctx, event.PreferredOriginID)
	if err != nil {
		s.log.Warn("failed to load preferred origin",
			"event_id", eventID, "origin_id", event.PreferredOriginID, "error", err)
		return
	}

	directive := s.fixedDepthDirective(origin)
	if directive.Fixed {
		s.log.Debug("fixing depth", "depth_km", directive.Depth, "reason", string(directive.Reason))
	} else {
		s.log.Debug("not fixing depth")
	}

	input := s.gatherArrivals(ctx, origin)
	s.log.Debug("gathered arrivals", "event_id", eventID, "arrival_count", len(input.Arrivals))

	// Direct phase.
	relocated := s.attempt(ctx, eventID, input, directive)
	if relocated == nil {
		return
	}

	if previous, ok := s.lastSent[eventID]; ok {
		if !Improves(previous, relocated) {
			s.log.Info("no improvement, origin not sent", "event_id", eventID)
			observability.RelocationsSuppressed.Inc()
			return
		}
	}

	s.publish(ctx, event, relocated)
	s.lastSent[eventID] = relocated

	// Depth phase. The independent depth estimate is computed for every
	// successful direct phase; the operational log keeps one line per
	// estimate regardless of whether the second pass runs.
	depthEstimate := s.estimateDepth(ctx, eventID)
	switch {
	case depthEstimate == nil:
		s.log.Debug("no depth phase attempt", "event_id", eventID)
		return
	case len(relocated.Arrivals) < depthPhaseMinArrivals:
		s.log.Debug("no depth phase attempt, too few picks",
			"event_id", eventID, "arrival_count", len(relocated.Arrivals))
		return
	case relocated.Depth > depthPhaseMaxDepth:
		s.log.Debug("no depth phase attempt, too deep",
			"event_id", eventID, "depth_km", relocated.Depth)
		return
	}

	refined := s.attempt(ctx, eventID, relocated.Copy(),
		FixDepth(*depthEstimate, ReasonDepthPhase))
	if refined == nil {
		return
	}

	// Depth-phase refinements are trusted unconditionally once the entry
	// conditions held; no improvement gate here.
	s.publish(ctx, event, refined)
	s.lastSent[eventID] = refined
}

// attempt invokes the solver once and stamps a successful result with our
// creation metadata. Returns nil on failure or a too-small solution.
func (s *Scheduler) attempt(ctx context.Context, eventID string,
	input *seismic.Origin, directive DepthDirective) *seismic.Origin {

	reloc := s.settings.Relocation
	relocated, err := s.solver.Relocate(ctx, input, directive, reloc.MinDepth, reloc.MaxResidual)
	if err != nil {
		s.log.Warn("relocation failed", "event_id", eventID, "error", err)
		observability.RelocationsFailed.Inc()
		return nil
	}
	if len(relocated.Arrivals) < minArrivals {
		s.log.Info("too few arrivals", "event_id", eventID,
			"arrival_count", len(relocated.Arrivals))
		observability.RelocationsFailed.Inc()
		return nil
	}

	relocated.PublicID = newOriginID(s.now())
	relocated.CreationInfo = &seismic.CreationInfo{
		Author:       s.settings.Author,
		AgencyID:     s.settings.AgencyID,
		CreationTime: s.now().UTC(),
	}
	relocated.EvaluationMode = seismic.ModeAutomatic
	s.rememberOrigin(relocated)

	s.log.Info("relocation succeeded", "event_id", eventID,
		"origin_id", relocated.PublicID,
		"arrival_count", len(relocated.Arrivals),
		"depth_km", relocated.Depth)
	return relocated
}

// fixedDepthDirective determines the fixed-depth directive for the direct
// phase. Precedence: configured region override, then the depth of a
// manual origin from our own agency, then passthrough of the regional
// default, otherwise free depth.
func (s *Scheduler) fixedDepthDirective(origin *seismic.Origin) DepthDirective {
	region := s.regionOverride(origin.Latitude, origin.Longitude)
	defaultDepth := s.settings.Relocation.DefaultDepth
	if region != nil {
		defaultDepth = region.Depth
	}

	switch {
	case region != nil:
		return FixDepth(region.Depth, ReasonRegion)
	case origin.HasFixedDepth() &&
		origin.AgencyID() == s.settings.AgencyID &&
		origin.EvaluationMode == seismic.ModeManual:
		// We trust the depth of our own agency's manual origins.
		return FixDepth(origin.Depth, ReasonManual)
	case origin.HasFixedDepth() && origin.Depth == defaultDepth:
		return FixDepth(defaultDepth, ReasonDefault)
	default:
		return FreeDepth()
	}
}

func (s *Scheduler) regionOverride(lat, lon float64) *conf.FixedDepthRegion {
	for i := range s.settings.Relocation.FixedDepthRegions {
		region := &s.settings.Relocation.FixedDepthRegions[i]
		if region.Contains(lat, lon) {
			return region
		}
	}
	return nil
}

// gatherArrivals builds the solver input: a copy of the origin carrying
// one arrival per whitelisted pick within the epicentral distance cap.
// Stations are resolved against the inventory at pick time.
func (s *Scheduler) gatherArrivals(ctx context.Context, origin *seismic.Origin) *seismic.Origin {
	reloc := s.settings.Relocation
	input := origin.Copy()
	input.Arrivals = nil

	picks, err := s.catalog.PicksInWindow(ctx,
		origin.Time, origin.Time.Add(pickWindow), reloc.PickAuthors)
	if err != nil {
		s.log.Warn("pick query failed", "origin_id", origin.PublicID, "error", err)
		return input
	}

	for _, pick := range picks {
		lat, lon, ok := s.inv.StationCoordinates(
			pick.WaveformID.Network, pick.WaveformID.Station, pick.Time)
		if !ok {
			s.log.Debug("station not in inventory", "stream", pick.WaveformID.String())
			continue
		}
		delta := seismic.Delta(origin.Latitude, origin.Longitude, lat, lon)
		if delta > reloc.MaxDelta {
			continue
		}
		phase := pick.PhaseHint
		if phase == "" {
			phase = "P"
		}
		input.Arrivals = append(input.Arrivals, seismic.Arrival{
			PickID:   pick.PublicID,
			Phase:    phase,
			Weight:   1.0,
			Distance: delta,
		})
	}
	return input
}

func newOriginID(now time.Time) string {
	return fmt.Sprintf("Origin/%s.%s",
		now.UTC().Format("20060102150405"), uuid.NewString()[:8])
}
