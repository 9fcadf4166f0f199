package repicker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FMassin/scdlpicker/internal/spool"
)

// depositWork writes a one-pick payload for the event and links it into
// the spool, mirroring what the pick dumper does.
func depositWork(t *testing.T, r *Repicker, eventID, name, pickID string) string {
	t.Helper()
	inDir := filepath.Join(r.settings.EventRootDir(), eventID, "in")
	require.NoError(t, os.MkdirAll(inDir, 0o755))
	payload := filepath.Join(inDir, name)
	picks := []spool.PickRecord{
		pickRecord(pickID, "GE", "APE", "", "BHZ", pickTime),
	}
	require.NoError(t, spool.WritePicks(picks, payload))
	_, err := r.queue.Deposit(name, payload)
	require.NoError(t, err)
	return payload
}

func TestPollEndToEnd(t *testing.T) {
	t.Parallel()
	model := &fakeModel{
		annotations: []*Annotation{
			annotation("GE", "APE", "", -2*time.Second, []float64{0, 0.9, 0}),
		},
	}
	r := newTestRepicker(t, model)

	depositWork(t, r, "evt1", "evt1.yaml", "pick1")
	waveDir := filepath.Join(r.settings.EventRootDir(), "evt1", "waveforms")
	writeComponents(t, waveDir, "GE", "APE", "", "BH", 40)

	require.NoError(t, r.Poll(context.Background()))
	assert.Equal(t, 1, model.calls)

	// The derived picks landed in the event's out area.
	outPath := filepath.Join(r.settings.EventRootDir(), "evt1", "out", "evt1.yaml")
	derived, err := spool.ReadPicks(outPath)
	require.NoError(t, err)
	require.Len(t, derived, 1)
	assert.Equal(t, "pick1/repick", derived[0].PublicID)
	assert.Equal(t, "phasenet", derived[0].Model)

	// The outgoing mailbox points at them and the spool link is gone.
	outItems, err := r.outgoing.Items()
	require.NoError(t, err)
	require.Len(t, outItems, 1)
	assert.Equal(t, "evt1.yaml", outItems[0].Name)
	assert.Equal(t, "evt1", outItems[0].EventID)

	// The link target is relative and resolves into the event tree.
	target, err := os.Readlink(filepath.Join(r.settings.OutgoingDir(), "evt1.yaml"))
	require.NoError(t, err)
	assert.False(t, filepath.IsAbs(target))
	assert.Equal(t, outPath, filepath.Join(r.settings.OutgoingDir(), target))

	items, err := r.queue.Items()
	require.NoError(t, err)
	assert.Empty(t, items)

	// A re-deposited payload with already-seen picks completes without a
	// second model run.
	_, err = r.queue.Deposit("evt1.yaml",
		filepath.Join(r.settings.EventRootDir(), "evt1", "in", "evt1.yaml"))
	require.NoError(t, err)
	require.NoError(t, r.Poll(context.Background()))
	assert.Equal(t, 1, model.calls)

	items, err = r.queue.Items()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPollKeepsLinkOnModelFailure(t *testing.T) {
	t.Parallel()
	model := &fakeModel{err: context.DeadlineExceeded}
	r := newTestRepicker(t, model)

	depositWork(t, r, "evt1", "evt1.yaml", "pick1")
	waveDir := filepath.Join(r.settings.EventRootDir(), "evt1", "waveforms")
	writeComponents(t, waveDir, "GE", "APE", "", "BH", 40)

	require.NoError(t, r.Poll(context.Background()))

	// The item survives for a retry on the next pass.
	items, err := r.queue.Items()
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestPollAcksItemsWithoutResults(t *testing.T) {
	t.Parallel()
	r := newTestRepicker(t, &fakeModel{})

	// No waveform data at all: the item completes with no results.
	depositWork(t, r, "evt1", "evt1.yaml", "pick1")

	require.NoError(t, r.Poll(context.Background()))

	items, err := r.queue.Items()
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoFileExists(t,
		filepath.Join(r.settings.EventRootDir(), "evt1", "out", "evt1.yaml"))
}

func TestPollDryRun(t *testing.T) {
	t.Parallel()
	model := &fakeModel{
		annotations: []*Annotation{
			annotation("GE", "APE", "", -2*time.Second, []float64{0, 0.9, 0}),
		},
	}
	r := newTestRepicker(t, model)
	r.settings.DryRun = true

	depositWork(t, r, "evt1", "evt1.yaml", "pick1")
	waveDir := filepath.Join(r.settings.EventRootDir(), "evt1", "waveforms")
	writeComponents(t, waveDir, "GE", "APE", "", "BH", 40)

	require.NoError(t, r.Poll(context.Background()))

	// Nothing written, nothing acknowledged.
	assert.NoFileExists(t,
		filepath.Join(r.settings.EventRootDir(), "evt1", "out", "evt1.yaml"))
	items, err := r.queue.Items()
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestPollPreferRecentSkipsPastFailingItem(t *testing.T) {
	t.Parallel()
	model := &fakeModel{err: context.DeadlineExceeded}
	r := newTestRepicker(t, model)
	r.settings.Repicker.PreferRecent = true

	// The newest item has waveform data, so it reaches the model and
	// fails; the older one has none and completes with no results.
	depositWork(t, r, "evtA", "a.yaml", "pickA")
	depositWork(t, r, "evtB", "b.yaml", "pickB")
	waveDir := filepath.Join(r.settings.EventRootDir(), "evtB", "waveforms")
	writeComponents(t, waveDir, "GE", "APE", "", "BH", 40)

	require.NoError(t, r.Poll(context.Background()))

	// The failing item keeps its link for a retry; it must not starve
	// the older item behind it.
	items, err := r.queue.Items()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "b.yaml", items[0].Name)
	assert.Equal(t, 1, model.calls)

	// Once the model recovers, the retry runs the full payload again.
	model.err = nil
	model.annotations = []*Annotation{
		annotation("GE", "APE", "", -2*time.Second, []float64{0, 0.9, 0}),
	}
	require.NoError(t, r.Poll(context.Background()))
	assert.Equal(t, 2, model.calls)

	items, err = r.queue.Items()
	require.NoError(t, err)
	assert.Empty(t, items)
	derived, err := spool.ReadPicks(
		filepath.Join(r.settings.EventRootDir(), "evtB", "out", "b.yaml"))
	require.NoError(t, err)
	require.Len(t, derived, 1)
	assert.Equal(t, "pickB/repick", derived[0].PublicID)
}

func TestRunExitModeDrainsAndReturns(t *testing.T) {
	t.Parallel()
	r := newTestRepicker(t, &fakeModel{})
	r.settings.Repicker.Exit = true

	depositWork(t, r, "evt1", "evt1.yaml", "pick1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	items, err := r.queue.Items()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPollPreferRecent(t *testing.T) {
	t.Parallel()
	r := newTestRepicker(t, &fakeModel{})
	r.settings.Repicker.PreferRecent = true

	// Two ready items without waveform data, so both complete immediately.
	depositWork(t, r, "evtA", "a.yaml", "pickA")
	depositWork(t, r, "evtB", "b.yaml", "pickB")

	// First pass takes only the newest item.
	require.NoError(t, r.Poll(context.Background()))
	items, err := r.queue.Items()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a.yaml", items[0].Name)

	require.NoError(t, r.Poll(context.Background()))
	items, err = r.queue.Items()
	require.NoError(t, err)
	assert.Empty(t, items)
}
