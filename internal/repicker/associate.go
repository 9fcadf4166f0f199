package repicker

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/FMassin/scdlpicker/internal/observability"
	"github.com/FMassin/scdlpicker/internal/spool"
)

const (
	// peakFloor is the minimum confidence for a local maximum to become a
	// candidate at all.
	peakFloor = 0.1
	// maxPickOffset is how far a candidate onset may sit from the
	// triggering pick's original time, inclusive. Small enough to keep the
	// search local, large enough to absorb onset shifts from a wrong
	// source depth.
	maxPickOffset = 10 * time.Second
	// derivedSuffix marks derived pick identifiers.
	derivedSuffix = "/repick"
)

// associate maps model annotations back onto the picks that triggered
// them and applies the confidence/time gating. Each annotation consumes
// at most one pick (first match by net/sta/loc wins) and each pick is
// consumed at most once, guaranteeing a 1:1 pairing. A single pick may
// still yield several derived picks, one per surviving confidence peak.
func (r *Repicker) associate(annotations []*Annotation, collected []spool.PickRecord, eventID string) []spool.PickRecord {
	pool := make([]spool.PickRecord, len(collected))
	copy(pool, collected)

	var derived []spool.PickRecord

	for _, annotation := range annotations {
		if annotation.Phase != "P" {
			continue
		}

		idx := -1
		for i := range pool {
			if pool[i].WaveformID().SiteKey() == annotation.SiteKey() {
				idx = i
				break
			}
		}
		if idx < 0 {
			// Typically a data gap caused two traces of one station to
			// reach the model, producing an annotation nobody waits for.
			r.log.Warn("failed to associate annotation",
				"site", annotation.SiteKey(), "event_id", eventID)
			continue
		}
		pick := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)

		r.exportAnnotation(annotation, eventID)

		pickTime, err := pick.ParseTime()
		if err != nil {
			r.log.Warn("pick with unparseable time", "pick_id", pick.PublicID, "error", err)
			continue
		}

		for _, peak := range findPeaks(annotation.Confidence, peakFloor) {
			onset := annotation.TimeAt(peak)
			confidence := annotation.Confidence[peak]

			dt := onset.Sub(pickTime)
			if dt < 0 {
				dt = -dt
			}
			if dt > maxPickOffset {
				r.log.Info("candidate skipped, too far from pick",
					"pick_id", pick.PublicID, "dt", dt)
				continue
			}
			if confidence < r.settings.Repicker.MinConfidence {
				r.log.Info("candidate skipped, low confidence",
					"pick_id", pick.PublicID, "confidence", confidence)
				continue
			}

			conf := math.Round(confidence*1000) / 1000
			newPick := pick
			newPick.PublicID = pick.PublicID + derivedSuffix
			newPick.Model = r.model.Name()
			newPick.Confidence = &conf
			newPick.Time = spool.FormatTime(onset)

			r.log.Info("derived pick",
				"pick_id", pick.PublicID, "time", newPick.Time, "confidence", conf)
			observability.PicksDerived.Inc()
			derived = append(derived, newPick)
		}
	}

	if len(pool) > 0 {
		r.log.Warn("picks without annotation", "count", len(pool), "event_id", eventID)
	}
	return derived
}

// findPeaks returns the indices of local maxima of the curve whose value
// is at least the floor. A run of equal samples higher than both
// neighbors counts as one peak at its midpoint; plateaus touching either
// end of the curve do not qualify.
func findPeaks(curve []float64, floor float64) []int {
	var peaks []int
	for i := 1; i < len(curve)-1; {
		if curve[i] <= curve[i-1] {
			i++
			continue
		}
		j := i
		for j < len(curve)-1 && curve[j+1] == curve[i] {
			j++
		}
		if j < len(curve)-1 && curve[j+1] < curve[i] && curve[i] >= floor {
			peaks = append(peaks, (i+j)/2)
		}
		i = j + 1
	}
	return peaks
}

// exportAnnotation writes the annotation curve under the event's annot
// directory for offline inspection. Failures are logged, never fatal.
func (r *Repicker) exportAnnotation(annotation *Annotation, eventID string) {
	annotDir := filepath.Join(r.settings.EventRootDir(), eventID, "annot")
	if err := os.MkdirAll(annotDir, 0o755); err != nil {
		r.log.Warn("cannot create annotation directory", "path", annotDir, "error", err)
		return
	}

	path := filepath.Join(annotDir, annotation.SiteKey()+".csv")
	f, err := os.Create(path)
	if err != nil {
		r.log.Warn("cannot write annotation", "path", path, "error", err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	_ = w.Write([]string{"time", "confidence"})
	for i, c := range annotation.Confidence {
		_ = w.Write([]string{
			annotation.TimeAt(i).UTC().Format(spool.TimeLayout),
			fmt.Sprintf("%.4f", c),
		})
	}
}
