// Package catalog abstracts the event/origin/pick catalog the pipelines
// read from and publish to. The concrete implementation is a SQLite
// database; the pipelines only see the Interface.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/FMassin/scdlpicker/internal/inventory"
	"github.com/FMassin/scdlpicker/internal/seismic"
)

// ErrNotFound is returned when a requested object does not exist in the
// catalog. Callers treat it as a transient miss, not a fatal fault.
var ErrNotFound = errors.New("catalog: object not found")

// Interface defines the catalog operations used by both pipelines.
type Interface interface {
	Open() error
	Close() error

	// Event fetches an event by its public identifier.
	Event(ctx context.Context, eventID string) (*seismic.Event, error)

	// Origin fetches an origin without its arrivals.
	Origin(ctx context.Context, originID string) (*seismic.Origin, error)

	// OriginWithArrivals fetches an origin including its arrival list.
	OriginWithArrivals(ctx context.Context, originID string) (*seismic.Origin, error)

	// PicksInWindow returns all picks with onset times inside [start, end]
	// authored by one of the whitelisted authors, ordered by time.
	PicksInWindow(ctx context.Context, start, end time.Time, authors []string) ([]*seismic.Pick, error)

	// CompleteEvent loads an event with all its origins (arrivals included)
	// and the picks they reference.
	CompleteEvent(ctx context.Context, eventID string) (*seismic.EventParameters, error)

	// Inventory loads the station inventory.
	Inventory(ctx context.Context) (*inventory.Inventory, error)

	// EventsModifiedSince returns events created or updated after the given
	// time, the change feed driving the relocation scheduler.
	EventsModifiedSince(ctx context.Context, since time.Time) ([]*seismic.Event, error)

	// PublishOrigin stores a new origin together with its event association
	// as one atomic change-set.
	PublishOrigin(ctx context.Context, event *seismic.Event, origin *seismic.Origin) error
}

// New returns the catalog implementation selected by the settings.
// Currently only the SQLite backend exists.
func New(path string) Interface {
	return &SQLiteCatalog{Path: path}
}
