// Package seismic defines the catalog data model shared by the relocation
// and repicking pipelines: events, origins, arrivals and picks.
package seismic

import (
	"fmt"
	"math"
	"time"
)

// EvaluationMode distinguishes automatic solutions from analyst-reviewed ones.
type EvaluationMode string

const (
	ModeAutomatic EvaluationMode = "automatic"
	ModeManual    EvaluationMode = "manual"
)

// EvaluationStatus is the review status of an origin.
type EvaluationStatus string

const (
	StatusPreliminary EvaluationStatus = "preliminary"
	StatusConfirmed   EvaluationStatus = "confirmed"
	StatusReviewed    EvaluationStatus = "reviewed"
	StatusFinal       EvaluationStatus = "final"
	StatusRejected    EvaluationStatus = "rejected"
)

// DepthType records how an origin's depth was determined.
type DepthType string

const (
	DepthFree             DepthType = "free"
	DepthOperatorAssigned DepthType = "operator assigned"
)

// CreationInfo carries authorship metadata of a catalog object.
type CreationInfo struct {
	Author       string
	AgencyID     string
	CreationTime time.Time
}

// StreamID identifies a single waveform channel.
type StreamID struct {
	Network  string
	Station  string
	Location string
	Channel  string
}

// String returns the dotted NET.STA.LOC.CHA form.
func (s StreamID) String() string {
	return fmt.Sprintf("%s.%s.%s.%s", s.Network, s.Station, s.Location, s.Channel)
}

// SiteKey returns the dotted NET.STA.LOC form, the key used to associate
// model annotations with picks regardless of channel.
func (s StreamID) SiteKey() string {
	return fmt.Sprintf("%s.%s.%s", s.Network, s.Station, s.Location)
}

// Event is a seismic occurrence with one preferred origin at a time.
type Event struct {
	PublicID          string
	PreferredOriginID string
	Type              string
	CreationInfo      *CreationInfo
}

// Valid reports whether the event is worth processing at all. Fake and
// administratively discarded events are excluded.
func (e *Event) Valid() bool {
	switch e.Type {
	case "not existing", "other", "not locatable":
		return false
	}
	return true
}

// Quality holds residual-based fit measures of an origin. StandardError is
// a pointer because it is frequently absent on imported origins.
type Quality struct {
	StandardError        *float64
	AssociatedPhaseCount int
	UsedPhaseCount       int
}

// Arrival associates an origin with a pick.
type Arrival struct {
	PickID   string
	Phase    string
	Weight   float64
	Distance float64 // epicentral distance in degrees
}

// Origin is a location/time/depth solution for an event.
type Origin struct {
	PublicID         string
	Time             time.Time
	Latitude         float64
	Longitude        float64
	Depth            float64 // km
	DepthType        DepthType
	Quality          *Quality
	EvaluationMode   EvaluationMode
	EvaluationStatus EvaluationStatus
	CreationInfo     *CreationInfo
	Arrivals         []Arrival
}

// HasFixedDepth reports whether the depth was held rather than solved for.
func (o *Origin) HasFixedDepth() bool {
	return o.DepthType == DepthOperatorAssigned
}

// Author returns the origin author, or the empty string if creation
// metadata is missing.
func (o *Origin) Author() string {
	if o.CreationInfo == nil {
		return ""
	}
	return o.CreationInfo.Author
}

// AgencyID returns the origin agency, or the empty string if creation
// metadata is missing.
func (o *Origin) AgencyID() string {
	if o.CreationInfo == nil {
		return ""
	}
	return o.CreationInfo.AgencyID
}

// StandardError returns the origin's standard error and whether it is set.
func (o *Origin) StandardError() (float64, bool) {
	if o.Quality == nil || o.Quality.StandardError == nil {
		return 0, false
	}
	return *o.Quality.StandardError, true
}

// Copy returns a deep copy of the origin, arrivals included. Relocation
// attempts mutate their input, so callers hand the solver a copy.
func (o *Origin) Copy() *Origin {
	dup := *o
	if o.Quality != nil {
		q := *o.Quality
		if o.Quality.StandardError != nil {
			se := *o.Quality.StandardError
			q.StandardError = &se
		}
		dup.Quality = &q
	}
	if o.CreationInfo != nil {
		ci := *o.CreationInfo
		dup.CreationInfo = &ci
	}
	dup.Arrivals = make([]Arrival, len(o.Arrivals))
	copy(dup.Arrivals, o.Arrivals)
	return &dup
}

// Pick is a detected phase onset at one station/channel.
type Pick struct {
	PublicID     string
	Time         time.Time
	WaveformID   StreamID
	PhaseHint    string
	CreationInfo *CreationInfo
	Model        string   // onset model that produced a derived pick
	Confidence   *float64 // set on derived picks only
}

// EventParameters bundles an event with its origins and picks, the input
// the depth-phase collaborator expects.
type EventParameters struct {
	Event   *Event
	Origins []*Origin
	Picks   []*Pick
}

// Delta returns the epicentral distance between two points in degrees of
// arc along the great circle.
func Delta(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180
	phi1, phi2 := lat1*rad, lat2*rad
	dlon := (lon2 - lon1) * rad
	c := math.Sin(phi1)*math.Sin(phi2) + math.Cos(phi1)*math.Cos(phi2)*math.Cos(dlon)
	// Clamp against rounding excursions outside [-1, 1].
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c) / rad
}
