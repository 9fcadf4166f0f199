package catalog

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/FMassin/scdlpicker/internal/errors"
	"github.com/FMassin/scdlpicker/internal/inventory"
	"github.com/FMassin/scdlpicker/internal/seismic"
)

// SQLiteCatalog implements Interface on a SQLite database via GORM.
type SQLiteCatalog struct {
	Path string
	DB   *gorm.DB
}

// Open connects to the database and migrates the schema.
func (c *SQLiteCatalog) Open() error {
	db, err := gorm.Open(sqlite.Open(c.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return errors.New(fmt.Errorf("failed to open SQLite catalog: %w", err)).
			Component("catalog").
			Category(errors.CategoryDatabase).
			Context("path", c.Path).
			Build()
	}
	c.DB = db

	if err := db.AutoMigrate(
		&EventRecord{}, &OriginRecord{}, &ArrivalRecord{},
		&PickRecord{}, &NetworkRecord{}, &StationRecord{},
	); err != nil {
		return errors.New(fmt.Errorf("schema migration failed: %w", err)).
			Component("catalog").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}

// Close closes the underlying database connection.
func (c *SQLiteCatalog) Close() error {
	if c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (c *SQLiteCatalog) Event(ctx context.Context, eventID string) (*seismic.Event, error) {
	var rec EventRecord
	err := c.DB.WithContext(ctx).Where("public_id = ?", eventID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching event %s: %w", eventID, err)
	}
	return rec.toEvent(), nil
}

func (c *SQLiteCatalog) Origin(ctx context.Context, originID string) (*seismic.Origin, error) {
	var rec OriginRecord
	err := c.DB.WithContext(ctx).Where("public_id = ?", originID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching origin %s: %w", originID, err)
	}
	return rec.toOrigin(), nil
}

func (c *SQLiteCatalog) OriginWithArrivals(ctx context.Context, originID string) (*seismic.Origin, error) {
	var rec OriginRecord
	err := c.DB.WithContext(ctx).Preload("Arrivals").
		Where("public_id = ?", originID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching origin %s with arrivals: %w", originID, err)
	}
	return rec.toOrigin(), nil
}

func (c *SQLiteCatalog) PicksInWindow(ctx context.Context, start, end time.Time, authors []string) ([]*seismic.Pick, error) {
	var recs []PickRecord
	q := c.DB.WithContext(ctx).
		Where("time >= ? AND time <= ?", start, end).
		Order("time asc")
	if len(authors) > 0 {
		q = q.Where("author IN ?", authors)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("fetching picks in window: %w", err)
	}
	picks := make([]*seismic.Pick, 0, len(recs))
	for i := range recs {
		picks = append(picks, recs[i].toPick())
	}
	return picks, nil
}

func (c *SQLiteCatalog) CompleteEvent(ctx context.Context, eventID string) (*seismic.EventParameters, error) {
	event, err := c.Event(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var originRecs []OriginRecord
	err = c.DB.WithContext(ctx).Preload("Arrivals").
		Where("event_public_id = ?", eventID).
		Order("time asc").Find(&originRecs).Error
	if err != nil {
		return nil, fmt.Errorf("fetching origins of event %s: %w", eventID, err)
	}

	ep := &seismic.EventParameters{Event: event}
	pickIDs := make([]string, 0)
	seen := make(map[string]bool)
	for i := range originRecs {
		org := originRecs[i].toOrigin()
		ep.Origins = append(ep.Origins, org)
		for _, a := range org.Arrivals {
			if a.PickID != "" && !seen[a.PickID] {
				seen[a.PickID] = true
				pickIDs = append(pickIDs, a.PickID)
			}
		}
	}

	if len(pickIDs) > 0 {
		var pickRecs []PickRecord
		err = c.DB.WithContext(ctx).Where("public_id IN ?", pickIDs).Find(&pickRecs).Error
		if err != nil {
			return nil, fmt.Errorf("fetching picks of event %s: %w", eventID, err)
		}
		for i := range pickRecs {
			ep.Picks = append(ep.Picks, pickRecs[i].toPick())
		}
	}
	return ep, nil
}

func (c *SQLiteCatalog) Inventory(ctx context.Context) (*inventory.Inventory, error) {
	var recs []NetworkRecord
	if err := c.DB.WithContext(ctx).Preload("Stations").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("loading inventory: %w", err)
	}
	inv := &inventory.Inventory{}
	for i := range recs {
		inv.Networks = append(inv.Networks, recs[i].toNetwork())
	}
	return inv, nil
}

func (c *SQLiteCatalog) EventsModifiedSince(ctx context.Context, since time.Time) ([]*seismic.Event, error) {
	var recs []EventRecord
	err := c.DB.WithContext(ctx).
		Where("updated_at > ?", since).
		Order("public_id asc").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("fetching modified events: %w", err)
	}
	events := make([]*seismic.Event, 0, len(recs))
	for i := range recs {
		events = append(events, recs[i].toEvent())
	}
	return events, nil
}

// PublishOrigin stores the origin and its event association in one
// transaction, so downstream readers never see a half-published solution.
func (c *SQLiteCatalog) PublishOrigin(ctx context.Context, event *seismic.Event, origin *seismic.Origin) error {
	rec := originRecord(event.PublicID, origin)
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		// Touch the event row so the change feed picks up the association.
		return tx.Model(&EventRecord{}).
			Where("public_id = ?", event.PublicID).
			Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return errors.New(fmt.Errorf("publishing origin %s: %w", origin.PublicID, err)).
			Component("catalog").
			Category(errors.CategoryDatabase).
			Context("event_id", event.PublicID).
			Build()
	}
	return nil
}

// SaveEvent upserts an event row. Used by upstream producers and tests.
func (c *SQLiteCatalog) SaveEvent(ctx context.Context, event *seismic.Event) error {
	rec := EventRecord{
		PublicID:          event.PublicID,
		PreferredOriginID: event.PreferredOriginID,
		Type:              event.Type,
	}
	if event.CreationInfo != nil {
		rec.Author = event.CreationInfo.Author
		rec.AgencyID = event.CreationInfo.AgencyID
	}
	var existing EventRecord
	err := c.DB.WithContext(ctx).Where("public_id = ?", event.PublicID).First(&existing).Error
	if err == nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		return c.DB.WithContext(ctx).Save(&rec).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return c.DB.WithContext(ctx).Create(&rec).Error
}

// SaveOrigin stores an origin row without an event association.
func (c *SQLiteCatalog) SaveOrigin(ctx context.Context, eventID string, origin *seismic.Origin) error {
	return c.DB.WithContext(ctx).Create(originRecord(eventID, origin)).Error
}

// SavePick stores a pick row.
func (c *SQLiteCatalog) SavePick(ctx context.Context, pick *seismic.Pick) error {
	return c.DB.WithContext(ctx).Create(pickRecord(pick)).Error
}

// SaveNetwork stores one inventory network with its stations.
func (c *SQLiteCatalog) SaveNetwork(ctx context.Context, net *inventory.Network) error {
	rec := NetworkRecord{
		Code:  net.Code,
		Start: net.Epoch.Start,
		End:   net.Epoch.End,
	}
	for i := range net.Stations {
		s := &net.Stations[i]
		rec.Stations = append(rec.Stations, StationRecord{
			Code:      s.Code,
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
			Start:     s.Epoch.Start,
			End:       s.Epoch.End,
		})
	}
	return c.DB.WithContext(ctx).Create(&rec).Error
}
