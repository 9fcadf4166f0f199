package waveform

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/FMassin/scdlpicker/internal/seismic"
)

// ComponentPaths resolves the three component files of a pick's stream
// inside a waveform directory. The vertical component must be Z; the
// horizontals accept N or 1 and E or 2 as alternates. The second return
// is false if any component is missing.
func ComponentPaths(dir string, id seismic.StreamID) ([3]string, bool) {
	prefix := id.Channel
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	base := fmt.Sprintf("%s.%s.%s.%s", id.Network, id.Station, id.Location, prefix)

	var paths [3]string

	z := filepath.Join(dir, base+"Z.wav")
	if _, err := os.Stat(z); err != nil {
		return paths, false
	}
	paths[0] = z

	n, ok := firstExisting(dir, base, "N", "1")
	if !ok {
		return paths, false
	}
	paths[1] = n

	e, ok := firstExisting(dir, base, "E", "2")
	if !ok {
		return paths, false
	}
	paths[2] = e

	return paths, true
}

// ReadComponents decodes the three component windows of a stream. The
// component suffix replaces the channel code's last letter in each trace
// identity.
func ReadComponents(dir string, id seismic.StreamID) ([3]*Trace, error) {
	paths, ok := ComponentPaths(dir, id)
	if !ok {
		return [3]*Trace{}, fmt.Errorf("missing components for stream %s", id)
	}

	var traces [3]*Trace
	for i, path := range paths {
		comp := id
		name := filepath.Base(path)
		// Recover the actual channel code from the file name, so the
		// alternate horizontal components keep their real identity.
		comp.Channel = name[len(name)-len(".wav")-3:][:3]
		t, err := ReadFile(path, comp)
		if err != nil {
			return [3]*Trace{}, err
		}
		traces[i] = t
	}
	return traces, nil
}

func firstExisting(dir, base string, suffixes ...string) (string, bool) {
	for _, s := range suffixes {
		path := filepath.Join(dir, base+s+".wav")
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}
