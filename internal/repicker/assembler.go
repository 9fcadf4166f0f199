package repicker

import (
	"path/filepath"

	"github.com/FMassin/scdlpicker/internal/observability"
	"github.com/FMassin/scdlpicker/internal/spool"
	"github.com/FMassin/scdlpicker/internal/waveform"
)

// batches slices a pick list into chunks of at most size picks. Batching
// bounds the peak memory of one model invocation; it is a pure chunking
// device, not a separate queue.
func batches(picks []spool.PickRecord, size int) [][]spool.PickRecord {
	if size < 1 {
		size = 1
	}
	var out [][]spool.PickRecord
	for start := 0; start < len(picks); start += size {
		end := min(start+size, len(picks))
		out = append(out, picks[start:end])
	}
	return out
}

// assemble resolves each pick of a batch to its three waveform components
// and builds the model input stream. Picks missing a component or whose
// windows are shorter than the model input window are dropped for good;
// the returned pick list contains only the picks backed by complete data,
// in batch order.
func (r *Repicker) assemble(batch []spool.PickRecord, eventID string) (waveform.Stream, []spool.PickRecord) {
	waveDir := filepath.Join(r.settings.EventRootDir(), eventID, "waveforms")
	required := r.model.InputWindow()

	var stream waveform.Stream
	var collected []spool.PickRecord

	for _, pick := range batch {
		id := pick.WaveformID()

		if _, ok := waveform.ComponentPaths(waveDir, id); !ok {
			r.log.Debug("missing components, pick skipped",
				"pick_id", pick.PublicID, "stream", pick.StreamID)
			observability.PicksDropped.Inc()
			continue
		}

		traces, err := waveform.ReadComponents(waveDir, id)
		if err != nil {
			r.log.Warn("unreadable components, pick skipped",
				"pick_id", pick.PublicID, "stream", pick.StreamID, "error", err)
			observability.PicksDropped.Inc()
			continue
		}

		tooShort := false
		for _, trace := range traces {
			if trace.Duration() < required {
				r.log.Warn("trace too short for model input, pick skipped",
					"pick_id", pick.PublicID,
					"stream", trace.ID.String(),
					"duration", trace.Duration(),
					"required", required)
				tooShort = true
				break
			}
		}
		if tooShort {
			observability.PicksDropped.Inc()
			continue
		}

		stream = append(stream, traces[0], traces[1], traces[2])
		collected = append(collected, pick)
	}

	if len(collected) == 0 {
		r.log.Debug("empty stream for batch", "event_id", eventID)
	}
	return stream, collected
}
