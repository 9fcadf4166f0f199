package repicker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FMassin/scdlpicker/internal/spool"
)

var pickTime = time.Date(2026, 2, 11, 7, 14, 42, 600_000_000, time.UTC)

// annotation builds a single-site P annotation with a one-sample-per-second
// confidence curve starting at the given offset from pickTime.
func annotation(net, sta, loc string, startOffset time.Duration, curve []float64) *Annotation {
	return &Annotation{
		Network:    net,
		Station:    sta,
		Location:   loc,
		Phase:      "P",
		StartTime:  pickTime.Add(startOffset),
		SampleRate: 1,
		Confidence: curve,
	}
}

func TestAssociateDerivesPicks(t *testing.T) {
	t.Parallel()
	r := newTestRepicker(t, &fakeModel{})

	picks := []spool.PickRecord{
		pickRecord("pick1", "GE", "APE", "", "BHZ", pickTime),
	}
	annotations := []*Annotation{
		annotation("GE", "APE", "", -2*time.Second, []float64{0, 0.8571, 0}),
	}

	derived := r.associate(annotations, picks, "evt1")
	require.Len(t, derived, 1)

	p := derived[0]
	assert.Equal(t, "pick1/repick", p.PublicID)
	assert.Equal(t, "phasenet", p.Model)
	require.NotNil(t, p.Confidence)
	assert.Equal(t, 0.857, *p.Confidence)
	assert.Equal(t, "GE.APE..BHZ", p.StreamID)
	// The peak sits one second after the annotation start.
	assert.Equal(t, spool.FormatTime(pickTime.Add(-time.Second)), p.Time)

	// The annotation curve was exported alongside.
	csvPath := filepath.Join(r.settings.EventRootDir(), "evt1", "annot", "GE.APE..csv")
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "time,confidence")
	assert.Contains(t, string(data), "0.8571")
}

func TestAssociateOneToOne(t *testing.T) {
	t.Parallel()
	r := newTestRepicker(t, &fakeModel{})

	// Two picks on the same site, different channels: each annotation
	// consumes exactly one of them, in pool order.
	picks := []spool.PickRecord{
		pickRecord("pick1", "GE", "APE", "", "BHZ", pickTime),
		pickRecord("pick2", "GE", "APE", "", "HHZ", pickTime),
	}
	annotations := []*Annotation{
		annotation("GE", "APE", "", -2*time.Second, []float64{0, 0.9, 0}),
		annotation("GE", "APE", "", -2*time.Second, []float64{0, 0.7, 0}),
	}

	derived := r.associate(annotations, picks, "evt1")
	require.Len(t, derived, 2)
	assert.Equal(t, "pick1/repick", derived[0].PublicID)
	assert.Equal(t, "BHZ", derived[0].ChannelCode)
	assert.Equal(t, "pick2/repick", derived[1].PublicID)
	assert.Equal(t, "HHZ", derived[1].ChannelCode)
}

func TestAssociateMultiplePeaks(t *testing.T) {
	t.Parallel()
	r := newTestRepicker(t, &fakeModel{})

	picks := []spool.PickRecord{
		pickRecord("pick1", "GE", "APE", "", "BHZ", pickTime),
	}
	annotations := []*Annotation{
		annotation("GE", "APE", "", -4*time.Second, []float64{0, 0.5, 0, 0.6, 0}),
	}

	derived := r.associate(annotations, picks, "evt1")
	assert.Len(t, derived, 2)
}

func TestAssociateGating(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		startOffset time.Duration
		curve       []float64
		want        int
	}{
		{"exactly at max offset", 9 * time.Second, []float64{0, 0.9, 0}, 1},
		{"just past max offset", 9*time.Second + 10*time.Millisecond, []float64{0, 0.9, 0}, 0},
		{"exactly at min confidence", -2 * time.Second, []float64{0, 0.3, 0}, 1},
		{"below min confidence", -2 * time.Second, []float64{0, 0.29, 0}, 0},
		{"below peak floor", -2 * time.Second, []float64{0, 0.05, 0}, 0},
		{"flat curve has no peak", -2 * time.Second, []float64{0.9, 0.9, 0.9}, 0},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := newTestRepicker(t, &fakeModel{})
			picks := []spool.PickRecord{
				pickRecord("pick1", "GE", "APE", "", "BHZ", pickTime),
			}
			annotations := []*Annotation{
				annotation("GE", "APE", "", tc.startOffset, tc.curve),
			}
			assert.Len(t, r.associate(annotations, picks, "evt1"), tc.want)
		})
	}
}

func TestAssociateSkipsNonPAndOrphans(t *testing.T) {
	t.Parallel()
	r := newTestRepicker(t, &fakeModel{})

	picks := []spool.PickRecord{
		pickRecord("pick1", "GE", "APE", "", "BHZ", pickTime),
	}
	sAnnotation := annotation("GE", "APE", "", -2*time.Second, []float64{0, 0.9, 0})
	sAnnotation.Phase = "S"
	orphan := annotation("IU", "ANTO", "00", -2*time.Second, []float64{0, 0.9, 0})

	derived := r.associate([]*Annotation{sAnnotation, orphan}, picks, "evt1")
	assert.Empty(t, derived)
}

func TestFindPeaks(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int{1, 4}, findPeaks([]float64{0, 0.5, 0.1, 0.2, 0.4, 0}, 0.1))
	assert.Equal(t, []int{4}, findPeaks([]float64{0, 0.05, 0.01, 0.2, 0.4, 0}, 0.1))
	assert.Empty(t, findPeaks([]float64{0.9, 0.9}, 0.1))
	assert.Empty(t, findPeaks(nil, 0.1))
	// Endpoints never qualify.
	assert.Empty(t, findPeaks([]float64{0.9, 0.5, 0.8}, 0.1))

	// Plateaus report their midpoint once, open-ended ones not at all.
	assert.Equal(t, []int{1}, findPeaks([]float64{0, 0.9, 0.9, 0}, 0.1))
	assert.Equal(t, []int{2}, findPeaks([]float64{0, 0.8, 0.8, 0.8, 0}, 0.1))
	assert.Empty(t, findPeaks([]float64{0, 0.9, 0.9}, 0.1))
	assert.Empty(t, findPeaks([]float64{0.9, 0.9, 0}, 0.1))
}
