// model.go: gorm entities of the catalog schema and their mapping to the
// seismic data model.
package catalog

import (
	"time"

	"github.com/FMassin/scdlpicker/internal/inventory"
	"github.com/FMassin/scdlpicker/internal/seismic"
)

// EventRecord is one catalog event row.
type EventRecord struct {
	ID                uint   `gorm:"primaryKey"`
	PublicID          string `gorm:"uniqueIndex;not null"`
	PreferredOriginID string
	Type              string
	Author            string
	AgencyID          string
	CreatedAt         time.Time
	UpdatedAt         time.Time `gorm:"index"`
}

// OriginRecord is one origin row; arrivals hang off it.
type OriginRecord struct {
	ID                   uint      `gorm:"primaryKey"`
	PublicID             string    `gorm:"uniqueIndex;not null"`
	EventPublicID        string    `gorm:"index"`
	Time                 time.Time `gorm:"index"`
	Latitude             float64
	Longitude            float64
	Depth                float64
	DepthType            string
	StandardError        *float64
	AssociatedPhaseCount int
	UsedPhaseCount       int
	EvaluationMode       string
	EvaluationStatus     string
	Author               string
	AgencyID             string
	CreationTime         time.Time
	Arrivals             []ArrivalRecord `gorm:"foreignKey:OriginID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ArrivalRecord links an origin to a pick with a weight.
type ArrivalRecord struct {
	ID       uint   `gorm:"primaryKey"`
	OriginID uint   `gorm:"index;not null"`
	PickID   string `gorm:"index"`
	Phase    string
	Weight   float64
	Distance float64
}

// PickRecord is one pick row.
type PickRecord struct {
	ID         uint      `gorm:"primaryKey"`
	PublicID   string    `gorm:"uniqueIndex;not null"`
	Time       time.Time `gorm:"index"`
	Network    string
	Station    string
	Location   string
	Channel    string
	PhaseHint  string
	Author     string `gorm:"index"`
	AgencyID   string
	Model      string
	Confidence *float64
	CreatedAt  time.Time
}

// NetworkRecord and StationRecord hold the station inventory.
type NetworkRecord struct {
	ID       uint   `gorm:"primaryKey"`
	Code     string `gorm:"index"`
	Start    time.Time
	End      *time.Time
	Stations []StationRecord `gorm:"foreignKey:NetworkID;constraint:OnDelete:CASCADE"`
}

type StationRecord struct {
	ID        uint `gorm:"primaryKey"`
	NetworkID uint `gorm:"index;not null"`
	Code      string
	Latitude  float64
	Longitude float64
	Start     time.Time
	End       *time.Time
}

func (r *EventRecord) toEvent() *seismic.Event {
	return &seismic.Event{
		PublicID:          r.PublicID,
		PreferredOriginID: r.PreferredOriginID,
		Type:              r.Type,
		CreationInfo: &seismic.CreationInfo{
			Author:       r.Author,
			AgencyID:     r.AgencyID,
			CreationTime: r.CreatedAt,
		},
	}
}

func (r *OriginRecord) toOrigin() *seismic.Origin {
	org := &seismic.Origin{
		PublicID:         r.PublicID,
		Time:             r.Time,
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
		Depth:            r.Depth,
		DepthType:        seismic.DepthType(r.DepthType),
		EvaluationMode:   seismic.EvaluationMode(r.EvaluationMode),
		EvaluationStatus: seismic.EvaluationStatus(r.EvaluationStatus),
		CreationInfo: &seismic.CreationInfo{
			Author:       r.Author,
			AgencyID:     r.AgencyID,
			CreationTime: r.CreationTime,
		},
	}
	if r.StandardError != nil || r.AssociatedPhaseCount > 0 || r.UsedPhaseCount > 0 {
		org.Quality = &seismic.Quality{
			StandardError:        r.StandardError,
			AssociatedPhaseCount: r.AssociatedPhaseCount,
			UsedPhaseCount:       r.UsedPhaseCount,
		}
	}
	for i := range r.Arrivals {
		a := &r.Arrivals[i]
		org.Arrivals = append(org.Arrivals, seismic.Arrival{
			PickID:   a.PickID,
			Phase:    a.Phase,
			Weight:   a.Weight,
			Distance: a.Distance,
		})
	}
	return org
}

func originRecord(eventID string, org *seismic.Origin) *OriginRecord {
	rec := &OriginRecord{
		PublicID:         org.PublicID,
		EventPublicID:    eventID,
		Time:             org.Time,
		Latitude:         org.Latitude,
		Longitude:        org.Longitude,
		Depth:            org.Depth,
		DepthType:        string(org.DepthType),
		EvaluationMode:   string(org.EvaluationMode),
		EvaluationStatus: string(org.EvaluationStatus),
	}
	if org.Quality != nil {
		rec.StandardError = org.Quality.StandardError
		rec.AssociatedPhaseCount = org.Quality.AssociatedPhaseCount
		rec.UsedPhaseCount = org.Quality.UsedPhaseCount
	}
	if org.CreationInfo != nil {
		rec.Author = org.CreationInfo.Author
		rec.AgencyID = org.CreationInfo.AgencyID
		rec.CreationTime = org.CreationInfo.CreationTime
	}
	for i := range org.Arrivals {
		a := &org.Arrivals[i]
		rec.Arrivals = append(rec.Arrivals, ArrivalRecord{
			PickID:   a.PickID,
			Phase:    a.Phase,
			Weight:   a.Weight,
			Distance: a.Distance,
		})
	}
	return rec
}

func (r *PickRecord) toPick() *seismic.Pick {
	pick := &seismic.Pick{
		PublicID: r.PublicID,
		Time:     r.Time,
		WaveformID: seismic.StreamID{
			Network:  r.Network,
			Station:  r.Station,
			Location: r.Location,
			Channel:  r.Channel,
		},
		PhaseHint:  r.PhaseHint,
		Model:      r.Model,
		Confidence: r.Confidence,
	}
	if r.Author != "" || r.AgencyID != "" {
		pick.CreationInfo = &seismic.CreationInfo{
			Author:       r.Author,
			AgencyID:     r.AgencyID,
			CreationTime: r.CreatedAt,
		}
	}
	return pick
}

func pickRecord(p *seismic.Pick) *PickRecord {
	rec := &PickRecord{
		PublicID:   p.PublicID,
		Time:       p.Time,
		Network:    p.WaveformID.Network,
		Station:    p.WaveformID.Station,
		Location:   p.WaveformID.Location,
		Channel:    p.WaveformID.Channel,
		PhaseHint:  p.PhaseHint,
		Model:      p.Model,
		Confidence: p.Confidence,
	}
	if p.CreationInfo != nil {
		rec.Author = p.CreationInfo.Author
		rec.AgencyID = p.CreationInfo.AgencyID
	}
	return rec
}

func (r *NetworkRecord) toNetwork() inventory.Network {
	net := inventory.Network{
		Code:  r.Code,
		Epoch: inventory.Epoch{Start: r.Start, End: r.End},
	}
	for i := range r.Stations {
		s := &r.Stations[i]
		net.Stations = append(net.Stations, inventory.Station{
			Code:      s.Code,
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
			Epoch:     inventory.Epoch{Start: s.Start, End: s.End},
		})
	}
	return net
}
