package repicker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FMassin/scdlpicker/internal/errors"
	"github.com/FMassin/scdlpicker/internal/waveform"
)

// The deep-learning models run out of process: a runner command receives
// the component windows as YAML on stdin and answers with annotation
// curves. The two registered model names mirror the runner's supported
// picker architectures; their input windows follow the respective model
// geometries (samples / sampling rate).

func init() {
	Register("phasenet", func(dataset, device string) (Annotator, error) {
		return newExternalAnnotator("phasenet", dataset, device, 30*time.Second)
	})
	Register("eqtransformer", func(dataset, device string) (Annotator, error) {
		return newExternalAnnotator("eqtransformer", dataset, device, 60*time.Second)
	})
}

// runnerCommand is the annotation runner executable. Configured once at
// startup via SetRunnerCommand.
var runnerCommand = []string{"scdlpicker-annotate"}

// SetRunnerCommand overrides the annotation runner command. Must be
// called before NewAnnotator.
func SetRunnerCommand(command []string) {
	if len(command) > 0 {
		runnerCommand = command
	}
}

type externalAnnotator struct {
	name        string
	dataset     string
	device      string
	inputWindow time.Duration
}

func newExternalAnnotator(name, dataset, device string, window time.Duration) (Annotator, error) {
	if _, err := exec.LookPath(runnerCommand[0]); err != nil {
		return nil, errors.New(fmt.Errorf("annotation runner not found: %w", err)).
			Component("repicker").
			Category(errors.CategoryModelInit).
			Context("model", name).
			Build()
	}
	return &externalAnnotator{
		name:        name,
		dataset:     dataset,
		device:      device,
		inputWindow: window,
	}, nil
}

func (e *externalAnnotator) Name() string { return e.name }

func (e *externalAnnotator) InputWindow() time.Duration { return e.inputWindow }

type annotateRequest struct {
	Model   string      `yaml:"model"`
	Dataset string      `yaml:"dataset"`
	Device  string      `yaml:"device"`
	Traces  []wireTrace `yaml:"traces"`
}

type wireTrace struct {
	Network    string    `yaml:"network"`
	Station    string    `yaml:"station"`
	Location   string    `yaml:"location"`
	Channel    string    `yaml:"channel"`
	StartTime  string    `yaml:"startTime"`
	SampleRate float64   `yaml:"sampleRate"`
	Samples    []float64 `yaml:"samples"`
}

type annotateResponse struct {
	Annotations []wireAnnotation `yaml:"annotations"`
}

type wireAnnotation struct {
	Network    string    `yaml:"network"`
	Station    string    `yaml:"station"`
	Location   string    `yaml:"location"`
	Phase      string    `yaml:"phase"`
	StartTime  string    `yaml:"startTime"`
	SampleRate float64   `yaml:"sampleRate"`
	Confidence []float64 `yaml:"confidence"`
}

func (e *externalAnnotator) Annotate(ctx context.Context, stream waveform.Stream) ([]*Annotation, error) {
	req := annotateRequest{
		Model:   e.name,
		Dataset: e.dataset,
		Device:  e.device,
	}
	for _, trace := range stream {
		req.Traces = append(req.Traces, wireTrace{
			Network:    trace.ID.Network,
			Station:    trace.ID.Station,
			Location:   trace.ID.Location,
			Channel:    trace.ID.Channel,
			StartTime:  trace.StartTime.UTC().Format(waveform.TimeLayout),
			SampleRate: trace.SampleRate,
			Samples:    trace.Samples,
		})
	}

	data, err := yaml.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("encoding annotation request: %w", err)
	}

	cmd := exec.CommandContext(ctx, runnerCommand[0], runnerCommand[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("annotation runner failed: %w (%s)",
			err, bytes.TrimSpace(stderr.Bytes()))
	}

	var resp annotateResponse
	if err := yaml.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("parsing annotation response: %w", err)
	}

	annotations := make([]*Annotation, 0, len(resp.Annotations))
	for i := range resp.Annotations {
		w := &resp.Annotations[i]
		start, err := time.Parse(waveform.TimeLayout, w.StartTime)
		if err != nil {
			return nil, fmt.Errorf("parsing annotation start time %q: %w", w.StartTime, err)
		}
		annotations = append(annotations, &Annotation{
			Network:    w.Network,
			Station:    w.Station,
			Location:   w.Location,
			Phase:      w.Phase,
			StartTime:  start,
			SampleRate: w.SampleRate,
			Confidence: w.Confidence,
		})
	}
	return annotations, nil
}
