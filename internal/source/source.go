// Package source defines the interfaces to the upstream access-control
// system: the entity directory (with its hydrating cache) and the raw-event
// store query. Implementations here are an HTTP gateway client and an
// in-memory store used by tests and the seed command.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/veragate-systems/attendance-etl/internal/models"
)

// ErrTooManyResults is the sentinel the event and entity stores return when a
// query would exceed the server-side result cap. It is an expected paging
// condition, never a fatal error.
var ErrTooManyResults = errors.New("source: too many results")

// EntityQuery selects a page of entities by class.
type EntityQuery struct {
	Kinds    []models.EntityKind
	Page     int
	PageSize int
}

// EntityStore is the directory of live entities. Load hydrates the store's
// cache for a set of ids; Get only consults what has already been hydrated
// and never blocks on the network.
type EntityStore interface {
	Query(ctx context.Context, q EntityQuery) ([]models.Entity, error)
	Get(id uuid.UUID) (models.Entity, bool)
	Load(ctx context.Context, ids []uuid.UUID) error

	// CustomFieldNames lists the custom-field definitions the directory
	// exposes on cardholders. Used for the reference-data pre-flight check.
	CustomFieldNames(ctx context.Context) ([]string, error)
}

// EventQuery is one bounded page request against the raw-event store.
// SourcePositions holds the per-source cursor; only events with a strictly
// greater position are returned. Nil time bounds are open-ended.
type EventQuery struct {
	InsertedStartUTC *time.Time
	InsertedEndUTC   *time.Time
	Types            []models.EventType
	SourcePositions  map[uuid.UUID]int64
	MaxResults       int
}

// EventPage is the result of one EventQuery. SubQueryErrors carries
// per-source failures for queries that partially succeeded; rows from the
// healthy sources are still present in Events.
type EventPage struct {
	Events         []models.RawEvent
	SubQueryErrors map[uuid.UUID]error
}

// EventQuerier issues bounded, position-cursored queries against the event
// store.
type EventQuerier interface {
	QueryEvents(ctx context.Context, q EventQuery) (EventPage, error)
}
