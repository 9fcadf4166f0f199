// Package inventory holds the station inventory with operational time
// windows, used to resolve station coordinates for distance filtering.
package inventory

import "time"

// Epoch is an operational time window. An item whose start time is
// unknown is never considered operational; an unknown end time means
// open end.
type Epoch struct {
	Start time.Time
	End   *time.Time
}

// OperationalAt reports whether the epoch covers the given time.
func (e *Epoch) OperationalAt(t time.Time) bool {
	if e.Start.IsZero() || t.Before(e.Start) {
		return false
	}
	if e.End != nil && t.After(*e.End) {
		return false
	}
	return true
}

// Station is one seismic station with its coordinates.
type Station struct {
	Code      string
	Latitude  float64
	Longitude float64
	Epoch     Epoch
}

// Network groups stations under one network code.
type Network struct {
	Code     string
	Epoch    Epoch
	Stations []Station
}

// Inventory is the full station inventory of the monitored networks.
type Inventory struct {
	Networks []Network
}

// StationCoordinates returns the coordinates of a station operational at
// the given time. The network epoch must cover the time as well.
func (inv *Inventory) StationCoordinates(network, station string, at time.Time) (lat, lon float64, ok bool) {
	for i := range inv.Networks {
		net := &inv.Networks[i]
		if net.Code != network || !net.Epoch.OperationalAt(at) {
			continue
		}
		for j := range net.Stations {
			sta := &net.Stations[j]
			if sta.Code != station || !sta.Epoch.OperationalAt(at) {
				continue
			}
			return sta.Latitude, sta.Longitude, true
		}
	}
	return 0, 0, false
}

// StationCount returns the number of stations across all networks.
func (inv *Inventory) StationCount() int {
	n := 0
	for i := range inv.Networks {
		n += len(inv.Networks[i].Stations)
	}
	return n
}
