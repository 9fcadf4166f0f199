// Package waveform reads and writes the per-component waveform windows
// exchanged through the event directory tree. Windows are mono WAV files
// named NET.STA.LOC.<2-char channel prefix><component>.wav; the window
// start time travels in the WAV metadata creation-date field.
package waveform

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/FMassin/scdlpicker/internal/errors"
	"github.com/FMassin/scdlpicker/internal/seismic"
)

// TimeLayout is the start-time format stored in the WAV metadata.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Trace is one decoded waveform component.
type Trace struct {
	ID         seismic.StreamID
	StartTime  time.Time
	SampleRate float64
	Samples    []float64
}

// Duration returns the time span covered by the trace.
func (t *Trace) Duration() time.Duration {
	if t.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(t.Samples)) / t.SampleRate * float64(time.Second))
}

// EndTime returns the time of the last sample.
func (t *Trace) EndTime() time.Time {
	return t.StartTime.Add(t.Duration())
}

// Stream is a group of traces handed to the onset model as one input.
type Stream []*Trace

// ReadFile decodes a component window. The file must be a valid mono WAV
// with 16, 24 or 32 bit samples carrying a creation-date metadata entry.
func ReadFile(path string, id seismic.StreamID) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("opening waveform: %w", err)).
			Component("waveform").
			Category(errors.CategoryWaveform).
			Context("path", path).
			Build()
	}
	defer f.Close()

	// Metadata and PCM data are read with separate decoder passes, both
	// consume the reader.
	meta := wav.NewDecoder(f)
	meta.ReadMetadata()
	if meta.Metadata == nil || meta.Metadata.CreationDate == "" {
		return nil, fmt.Errorf("waveform %s has no start time metadata", path)
	}
	start, err := time.Parse(TimeLayout, meta.Metadata.CreationDate)
	if err != nil {
		return nil, fmt.Errorf("waveform %s has malformed start time %q: %w",
			path, meta.Metadata.CreationDate, err)
	}

	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("rewinding waveform %s: %w", path, err)
	}
	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("waveform %s is not a valid WAV file", path)
	}
	if decoder.NumChans != 1 {
		return nil, fmt.Errorf("waveform %s has %d channels, expected mono", path, decoder.NumChans)
	}
	divisor, err := sampleDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, fmt.Errorf("waveform %s: %w", path, err)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding waveform %s: %w", path, err)
	}
	if len(buf.Data) == 0 {
		return nil, fmt.Errorf("waveform %s contains no samples", path)
	}

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / divisor
	}

	return &Trace{
		ID:         id,
		StartTime:  start,
		SampleRate: float64(decoder.SampleRate),
		Samples:    samples,
	}, nil
}

// WriteFile encodes a trace as a 16-bit mono WAV window, start time in
// the metadata. Used by the waveform dumper and by tests.
func WriteFile(t *Trace, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.New(fmt.Errorf("creating waveform: %w", err)).
			Component("waveform").
			Category(errors.CategoryWaveform).
			Context("path", path).
			Build()
	}
	defer f.Close()

	rate := int(t.SampleRate)
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	enc.Metadata = &wav.Metadata{
		CreationDate: t.StartTime.UTC().Format(TimeLayout),
	}

	data := make([]int, len(t.Samples))
	for i, v := range t.Samples {
		switch {
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		data[i] = int(v * 32767)
	}
	buf := &audio.IntBuffer{
		Data:   data,
		Format: &audio.Format{SampleRate: rate, NumChannels: 1},
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding waveform %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing waveform %s: %w", path, err)
	}
	return nil
}

func sampleDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16:
		return 32768, nil
	case 24:
		return 8388608, nil
	case 32:
		return 2147483648, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
}
