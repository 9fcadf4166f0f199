// Package repicker implements the spool-driven repicking pipeline: it
// consumes pick payloads from the mailbox, assembles bounded batches of
// three-component waveform windows, runs the onset model over them, maps
// the resulting annotations back onto the triggering picks and publishes
// the derived picks for downstream pickup.
package repicker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/FMassin/scdlpicker/internal/waveform"
)

// Annotation is one model output stream: a confidence curve over a
// waveform window for one site and phase.
type Annotation struct {
	Network    string
	Station    string
	Location   string
	Phase      string
	StartTime  time.Time
	SampleRate float64
	Confidence []float64
}

// TimeAt returns the absolute time of the i-th confidence sample.
func (a *Annotation) TimeAt(i int) time.Time {
	offset := float64(i) / a.SampleRate * float64(time.Second)
	return a.StartTime.Add(time.Duration(offset))
}

// SiteKey returns the NET.STA.LOC association key.
func (a *Annotation) SiteKey() string {
	return fmt.Sprintf("%s.%s.%s", a.Network, a.Station, a.Location)
}

// Annotator is the onset-detection model collaborator. The device the
// model runs on is fixed when the annotator is constructed at startup.
type Annotator interface {
	// Name identifies the model; derived picks carry it as a tag.
	Name() string
	// InputWindow is the minimum waveform duration the model needs.
	InputWindow() time.Duration
	// Annotate runs the model over a stream of component windows and
	// returns one annotation per input group and phase.
	Annotate(ctx context.Context, stream waveform.Stream) ([]*Annotation, error)
}

// Factory constructs a named annotator for a weight set and device.
type Factory func(dataset, device string) (Annotator, error)

var registry = map[string]Factory{}

// Register adds a model to the registry. Called from init functions;
// duplicate registration is a programming error and panics.
func Register(name string, factory Factory) {
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("repicker: model %q registered twice", name))
	}
	registry[name] = factory
}

// NewAnnotator resolves a model name against the registry. An unknown
// name is an unrecoverable startup misconfiguration.
func NewAnnotator(name, dataset, device string) (Annotator, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("no such model: %s (available: %v)", name, Models())
	}
	return factory(dataset, device)
}

// Models returns the registered model names, sorted.
func Models() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
