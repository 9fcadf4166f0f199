// Package relocator implements the online relocation pipeline: a
// scheduler sweeping pending events through a readiness gate, a two-phase
// relocation attempt per ready event, an improvement gate on the direct
// phase, and publication back to the catalog.
package relocator

import (
	"context"

	"github.com/FMassin/scdlpicker/internal/seismic"
)

// DepthReason records why a relocation runs with a held depth.
type DepthReason string

const (
	ReasonRegion     DepthReason = "region-override"
	ReasonManual     DepthReason = "trusted-manual"
	ReasonDefault    DepthReason = "default-passthrough"
	ReasonDepthPhase DepthReason = "depth-phase"
)

// DepthDirective tells the solver whether to hold the depth constant.
type DepthDirective struct {
	Fixed  bool
	Depth  float64 // km, meaningful only when Fixed
	Reason DepthReason
}

// FreeDepth returns the directive letting the solver solve for depth.
func FreeDepth() DepthDirective {
	return DepthDirective{}
}

// FixDepth returns a directive holding the depth at the given value.
func FixDepth(depth float64, reason DepthReason) DepthDirective {
	return DepthDirective{Fixed: true, Depth: depth, Reason: reason}
}

// Solver is the travel-time relocation collaborator. Input is an origin
// with attached arrivals; output is a relocated origin or an error.
type Solver interface {
	Relocate(ctx context.Context, origin *seismic.Origin, directive DepthDirective,
		minDepth, maxResidual float64) (*seismic.Origin, error)
}

// DepthEstimator is the depth-phase analysis collaborator. Input is the
// full event parameter set with picks loaded; output is a scalar depth.
type DepthEstimator interface {
	Estimate(ctx context.Context, ep *seismic.EventParameters) (float64, error)
}
