package relocator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FMassin/scdlpicker/internal/errors"
	"github.com/FMassin/scdlpicker/internal/seismic"
)

// The relocation solver and the depth-phase analyzer are external
// collaborators. This adapter runs them as subprocesses exchanging YAML
// documents on stdin/stdout, the Go-side contract being exactly the
// collaborator interfaces.

const wireTimeLayout = "2006-01-02T15:04:05.000Z"

type wireArrival struct {
	PickID   string  `yaml:"pickID"`
	Phase    string  `yaml:"phase"`
	Weight   float64 `yaml:"weight"`
	Distance float64 `yaml:"distance"`
}

type wireOrigin struct {
	PublicID      string        `yaml:"publicID"`
	Time          string        `yaml:"time"`
	Latitude      float64       `yaml:"latitude"`
	Longitude     float64       `yaml:"longitude"`
	Depth         float64       `yaml:"depth"`
	StandardError *float64      `yaml:"standardError,omitempty"`
	Arrivals      []wireArrival `yaml:"arrivals,omitempty"`
}

type wirePick struct {
	PublicID  string `yaml:"publicID"`
	StreamID  string `yaml:"streamID"`
	Time      string `yaml:"time"`
	PhaseHint string `yaml:"phaseHint"`
}

func originToWire(org *seismic.Origin) wireOrigin {
	w := wireOrigin{
		PublicID:  org.PublicID,
		Time:      org.Time.UTC().Format(wireTimeLayout),
		Latitude:  org.Latitude,
		Longitude: org.Longitude,
		Depth:     org.Depth,
	}
	if org.Quality != nil {
		w.StandardError = org.Quality.StandardError
	}
	for i := range org.Arrivals {
		a := &org.Arrivals[i]
		w.Arrivals = append(w.Arrivals, wireArrival{
			PickID:   a.PickID,
			Phase:    a.Phase,
			Weight:   a.Weight,
			Distance: a.Distance,
		})
	}
	return w
}

func (w *wireOrigin) toOrigin() (*seismic.Origin, error) {
	t, err := time.Parse(wireTimeLayout, w.Time)
	if err != nil {
		return nil, fmt.Errorf("parsing origin time %q: %w", w.Time, err)
	}
	org := &seismic.Origin{
		PublicID:  w.PublicID,
		Time:      t,
		Latitude:  w.Latitude,
		Longitude: w.Longitude,
		Depth:     w.Depth,
	}
	if w.StandardError != nil {
		org.Quality = &seismic.Quality{StandardError: w.StandardError}
	}
	for _, a := range w.Arrivals {
		org.Arrivals = append(org.Arrivals, seismic.Arrival{
			PickID:   a.PickID,
			Phase:    a.Phase,
			Weight:   a.Weight,
			Distance: a.Distance,
		})
	}
	return org, nil
}

// ExternalSolver invokes a relocation command. The request carries the
// origin with arrivals, the fixed-depth directive and the caps; the
// response is the relocated origin.
type ExternalSolver struct {
	Command []string
}

type solverRequest struct {
	Origin      wireOrigin `yaml:"origin"`
	FixedDepth  *float64   `yaml:"fixedDepth,omitempty"`
	MinDepth    float64    `yaml:"minDepth"`
	MaxResidual float64    `yaml:"maxResidual"`
}

func (e *ExternalSolver) Relocate(ctx context.Context, origin *seismic.Origin,
	directive DepthDirective, minDepth, maxResidual float64) (*seismic.Origin, error) {

	req := solverRequest{
		Origin:      originToWire(origin),
		MinDepth:    minDepth,
		MaxResidual: maxResidual,
	}
	if directive.Fixed {
		depth := directive.Depth
		req.FixedDepth = &depth
	}

	out, err := runCollaborator(ctx, e.Command, &req)
	if err != nil {
		return nil, errors.New(err).
			Component("relocator").
			Category(errors.CategoryRelocation).
			Context("origin_id", origin.PublicID).
			Build()
	}

	var resp wireOrigin
	if err := yaml.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("parsing solver response: %w", err)
	}
	return resp.toOrigin()
}

// ExternalDepthEstimator invokes a depth-phase analysis command with the
// full event parameter set and expects a scalar depth back.
type ExternalDepthEstimator struct {
	Command []string
}

type depthRequest struct {
	EventID string       `yaml:"eventID"`
	Origins []wireOrigin `yaml:"origins"`
	Picks   []wirePick   `yaml:"picks"`
}

type depthResponse struct {
	Depth float64 `yaml:"depth"`
}

func (e *ExternalDepthEstimator) Estimate(ctx context.Context, ep *seismic.EventParameters) (float64, error) {
	req := depthRequest{EventID: ep.Event.PublicID}
	for _, org := range ep.Origins {
		req.Origins = append(req.Origins, originToWire(org))
	}
	for _, pick := range ep.Picks {
		req.Picks = append(req.Picks, wirePick{
			PublicID:  pick.PublicID,
			StreamID:  pick.WaveformID.String(),
			Time:      pick.Time.UTC().Format(wireTimeLayout),
			PhaseHint: pick.PhaseHint,
		})
	}

	out, err := runCollaborator(ctx, e.Command, &req)
	if err != nil {
		return 0, errors.New(err).
			Component("relocator").
			Category(errors.CategoryDepthEstimation).
			Context("event_id", ep.Event.PublicID).
			Build()
	}

	var resp depthResponse
	if err := yaml.Unmarshal(out, &resp); err != nil {
		return 0, fmt.Errorf("parsing depth response: %w", err)
	}
	return resp.Depth, nil
}

// runCollaborator executes a collaborator command, feeding it the request
// as YAML and returning its stdout.
func runCollaborator(ctx context.Context, command []string, request any) ([]byte, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("no collaborator command configured")
	}
	data, err := yaml.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encoding collaborator request: %w", err)
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("collaborator %s failed: %w (%s)",
			command[0], err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}
