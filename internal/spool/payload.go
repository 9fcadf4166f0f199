package spool

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FMassin/scdlpicker/internal/errors"
	"github.com/FMassin/scdlpicker/internal/seismic"
)

// TimeLayout is the payload timestamp format: ISO-8601 with millisecond
// precision and an explicit UTC suffix.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// PickRecord is one pick in a mailbox payload. Model and Confidence are
// only present on derived picks written after repicking.
type PickRecord struct {
	PublicID     string   `yaml:"publicID"`
	StreamID     string   `yaml:"streamID"`
	NetworkCode  string   `yaml:"networkCode"`
	StationCode  string   `yaml:"stationCode"`
	LocationCode string   `yaml:"locationCode"`
	ChannelCode  string   `yaml:"channelCode"`
	Time         string   `yaml:"time"`
	PhaseHint    string   `yaml:"phaseHint"`
	Model        string   `yaml:"model,omitempty"`
	Confidence   *float64 `yaml:"confidence,omitempty"`
}

// WaveformID returns the pick's stream identity as a StreamID.
func (p *PickRecord) WaveformID() seismic.StreamID {
	return seismic.StreamID{
		Network:  p.NetworkCode,
		Station:  p.StationCode,
		Location: p.LocationCode,
		Channel:  p.ChannelCode,
	}
}

// ParseTime parses the record's onset time.
func (p *PickRecord) ParseTime() (time.Time, error) {
	t, err := time.Parse(TimeLayout, p.Time)
	if err != nil {
		// Tolerate second-precision and RFC3339 timestamps from older
		// producers.
		t, err = time.Parse(time.RFC3339, p.Time)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing pick time %q: %w", p.Time, err)
	}
	return t, nil
}

// FormatTime renders a timestamp in the payload format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ReadPicks reads a payload file. Records sharing a stream identity are
// deduplicated, first occurrence kept; a missing phase hint defaults to P.
func ReadPicks(path string) ([]PickRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("reading payload: %w", err)).
			Component("spool").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	var raw []PickRecord
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing payload %s: %w", path, err)
	}

	seen := make(map[string]bool, len(raw))
	picks := make([]PickRecord, 0, len(raw))
	for _, p := range raw {
		if p.StreamID == "" {
			p.StreamID = p.WaveformID().String()
		}
		if seen[p.StreamID] {
			continue
		}
		seen[p.StreamID] = true
		if p.PhaseHint == "" {
			p.PhaseHint = "P"
		}
		picks = append(picks, p)
	}
	return picks, nil
}

// WritePicks writes a payload file, preserving record order.
func WritePicks(picks []PickRecord, path string) error {
	data, err := yaml.Marshal(picks)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(fmt.Errorf("writing payload: %w", err)).
			Component("spool").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}
