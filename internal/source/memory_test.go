package source

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veragate-systems/attendance-etl/internal/models"
)

func TestMemoryStoreGetRequiresHydration(t *testing.T) {
	store := NewMemoryStore()
	role := models.Role{Base: models.Base{ID: uuid.New(), DisplayName: "Node"}, State: models.StateRunning}
	store.AddEntity(role)

	_, ok := store.Get(role.ID)
	assert.False(t, ok, "entities are invisible to Get until loaded")

	require.NoError(t, store.Load(context.Background(), []uuid.UUID{role.ID}))

	e, ok := store.Get(role.ID)
	require.True(t, ok)
	assert.Equal(t, "Node", e.Name())
}

func TestMemoryStoreQueryPaging(t *testing.T) {
	store := NewMemoryStore()
	for range 5 {
		store.AddEntity(models.Role{Base: models.Base{ID: uuid.New(), DisplayName: "Node"}})
	}

	ctx := context.Background()
	first, err := store.Query(ctx, EntityQuery{Kinds: []models.EntityKind{models.KindRole}, Page: 0, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, first, 2)

	last, err := store.Query(ctx, EntityQuery{Kinds: []models.EntityKind{models.KindRole}, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, last, 1)

	none, err := store.Query(ctx, EntityQuery{Kinds: []models.EntityKind{models.KindRole}, Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStoreQueryResultCap(t *testing.T) {
	store := NewMemoryStore()
	store.MaxQueryResults = 2
	for range 3 {
		store.AddEntity(models.Role{Base: models.Base{ID: uuid.New(), DisplayName: "Node"}})
	}

	_, err := store.Query(context.Background(), EntityQuery{Kinds: []models.EntityKind{models.KindRole}})
	assert.ErrorIs(t, err, ErrTooManyResults)
}

func TestMemoryStoreQueryEventsWindow(t *testing.T) {
	store := NewMemoryStore()
	sourceID := uuid.New()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		store.AddEvents(sourceID, models.RawEvent{
			SourceID:    sourceID,
			Position:    int64(i + 1),
			InsertedUTC: base.Add(time.Duration(i) * time.Hour),
			Type:        models.EventAccessGranted,
		})
	}

	start := base.Add(30 * time.Minute)
	end := base.Add(90 * time.Minute)
	page, err := store.QueryEvents(context.Background(), EventQuery{
		InsertedStartUTC: &start,
		InsertedEndUTC:   &end,
		SourcePositions:  map[uuid.UUID]int64{sourceID: 0},
	})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, int64(2), page.Events[0].Position)
}

func TestMemoryStoreQueryEventsAfterPosition(t *testing.T) {
	store := NewMemoryStore()
	sourceID := uuid.New()
	for i := range 4 {
		store.AddEvents(sourceID, models.RawEvent{SourceID: sourceID, Position: int64(i + 1)})
	}

	page, err := store.QueryEvents(context.Background(), EventQuery{
		SourcePositions: map[uuid.UUID]int64{sourceID: 2},
	})
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	assert.Equal(t, int64(3), page.Events[0].Position)
}
