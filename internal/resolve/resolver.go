// Package resolve tracks which referenced entities have already been
// hydrated into the directory cache and issues batched load requests for the
// unseen remainder.
package resolve

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veragate-systems/attendance-etl/internal/metrics"
	"github.com/veragate-systems/attendance-etl/internal/models"
	"github.com/veragate-systems/attendance-etl/internal/source"
)

// Resolver owns the set of entity ids known to be hydrated. The set only
// grows within a run. It is single-owner state: exactly one pipeline stage
// holds a Resolver, so no locking is needed.
type Resolver struct {
	store source.EntityStore
	seen  map[uuid.UUID]struct{}
}

func New(store source.EntityStore) *Resolver {
	return &Resolver{
		store: store,
		seen:  make(map[uuid.UUID]struct{}),
	}
}

// Hydrate collects the distinct entity references across the whole batch,
// subtracts ids already hydrated, and issues at most one load request for the
// remainder. One call per batch bounds the number of hydration round-trips.
func (r *Resolver) Hydrate(ctx context.Context, batch []models.RawEvent) error {
	var missing []uuid.UUID
	inBatch := make(map[uuid.UUID]struct{})
	for _, ev := range batch {
		for _, id := range ev.ReferencedGUIDs() {
			if _, ok := r.seen[id]; ok {
				continue
			}
			if _, ok := inBatch[id]; ok {
				continue
			}
			inBatch[id] = struct{}{}
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if err := r.store.Load(ctx, missing); err != nil {
		return fmt.Errorf("hydrate %d entities: %w", len(missing), err)
	}
	for _, id := range missing {
		r.seen[id] = struct{}{}
	}
	metrics.HydrationCalls.Inc()
	metrics.HydrationEntities.Add(float64(len(missing)))
	return nil
}

// Known reports whether an id has been hydrated during this run.
func (r *Resolver) Known(id uuid.UUID) bool {
	_, ok := r.seen[id]
	return ok
}

// KnownCount returns the size of the hydrated-id set.
func (r *Resolver) KnownCount() int {
	return len(r.seen)
}
