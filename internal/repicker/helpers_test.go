package repicker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/FMassin/scdlpicker/internal/conf"
	"github.com/FMassin/scdlpicker/internal/spool"
	"github.com/FMassin/scdlpicker/internal/waveform"
)

// fakeModel is a canned Annotator.
type fakeModel struct {
	annotations []*Annotation
	err         error
	calls       int
	inputs      []waveform.Stream
}

func (m *fakeModel) Name() string               { return "phasenet" }
func (m *fakeModel) InputWindow() time.Duration { return 30 * time.Second }

func (m *fakeModel) Annotate(ctx context.Context, stream waveform.Stream) ([]*Annotation, error) {
	m.calls++
	m.inputs = append(m.inputs, stream)
	if m.err != nil {
		return nil, m.err
	}
	return m.annotations, nil
}

func newTestRepicker(t *testing.T, model *fakeModel) *Repicker {
	t.Helper()
	settings := &conf.Settings{
		WorkingDir: t.TempDir(),
		Device:     "cpu",
		Author:     "dl-reloc",
		AgencyID:   "GFZ",
	}
	settings.Repicker = conf.RepickerSettings{
		Model:         "phasenet",
		Dataset:       "geofon",
		BatchSize:     10,
		MinConfidence: 0.3,
	}
	return &Repicker{
		settings:   settings,
		model:      model,
		queue:      spool.NewQueue(settings.SpoolDir(), slog.Default()),
		outgoing:   spool.NewQueue(settings.OutgoingDir(), slog.Default()),
		log:        slog.Default(),
		workspaces: make(map[string]*workspace),
	}
}

func pickRecord(id, net, sta, loc, cha string, at time.Time) spool.PickRecord {
	p := spool.PickRecord{
		PublicID:     id,
		NetworkCode:  net,
		StationCode:  sta,
		LocationCode: loc,
		ChannelCode:  cha,
		Time:         spool.FormatTime(at),
		PhaseHint:    "P",
	}
	p.StreamID = p.WaveformID().String()
	return p
}
