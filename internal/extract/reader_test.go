package extract

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veragate-systems/attendance-etl/internal/logging"
	"github.com/veragate-systems/attendance-etl/internal/models"
	"github.com/veragate-systems/attendance-etl/internal/source"
)

// mockQuerier records every query it receives.
type mockQuerier struct {
	queryEventsFunc func(ctx context.Context, q source.EventQuery) (source.EventPage, error)
	queries         []source.EventQuery
}

func (m *mockQuerier) QueryEvents(ctx context.Context, q source.EventQuery) (source.EventPage, error) {
	// The reader reuses its cursor map across calls; snapshot it so the
	// recorded query holds the positions as they were at call time.
	q.SourcePositions = maps.Clone(q.SourcePositions)
	m.queries = append(m.queries, q)
	if m.queryEventsFunc != nil {
		return m.queryEventsFunc(ctx, q)
	}
	return source.EventPage{}, errors.New("not implemented")
}

func makeEvents(sourceID uuid.UUID, positions ...int64) []models.RawEvent {
	events := make([]models.RawEvent, 0, len(positions))
	for _, pos := range positions {
		events = append(events, models.RawEvent{
			SourceID:  sourceID,
			Position:  pos,
			Type:      models.EventAccessGranted,
			Timestamp: time.Now().UTC(),
		})
	}
	return events
}

func collect(t *testing.T, r *Reader) []models.RawEvent {
	t.Helper()
	var out []models.RawEvent
	for ev, err := range r.Events(context.Background()) {
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func TestReaderPagesUntilShortPage(t *testing.T) {
	sourceA := uuid.New()
	sourceB := uuid.New()

	store := map[uuid.UUID][]models.RawEvent{
		sourceA: makeEvents(sourceA, 1, 2, 3, 4, 5),
		sourceB: makeEvents(sourceB, 10),
	}
	querier := &mockQuerier{
		queryEventsFunc: func(_ context.Context, q source.EventQuery) (source.EventPage, error) {
			var page source.EventPage
			for src, after := range q.SourcePositions {
				for _, ev := range store[src] {
					if ev.Position <= after {
						continue
					}
					page.Events = append(page.Events, ev)
					if len(page.Events) >= q.MaxResults {
						return page, nil
					}
				}
			}
			return page, nil
		},
	}

	r := NewReader(querier, []uuid.UUID{sourceA, sourceB}, Options{PageSize: 2}, logging.Default())
	events := collect(t, r)

	require.Len(t, events, 6)
	var positions []int64
	for _, ev := range events[:5] {
		assert.Equal(t, sourceA, ev.SourceID)
		positions = append(positions, ev.Position)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, positions)
	assert.Equal(t, sourceB, events[5].SourceID)

	// Source A: cursor 0, then 2, then 4 (short page ends it). Source B:
	// cursor 0, short page immediately.
	require.Len(t, querier.queries, 4)
	assert.Equal(t, int64(0), querier.queries[0].SourcePositions[sourceA])
	assert.Equal(t, int64(2), querier.queries[1].SourcePositions[sourceA])
	assert.Equal(t, int64(4), querier.queries[2].SourcePositions[sourceA])
	assert.Equal(t, int64(0), querier.queries[3].SourcePositions[sourceB])
}

func TestReaderCursorIsPositionNotTimestamp(t *testing.T) {
	sourceID := uuid.New()

	// Timestamps are deliberately out of order; the cursor must still move
	// strictly by position.
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	events := makeEvents(sourceID, 3, 7)
	events[0].Timestamp = old.Add(time.Hour)
	events[1].Timestamp = old

	calls := 0
	querier := &mockQuerier{
		queryEventsFunc: func(_ context.Context, q source.EventQuery) (source.EventPage, error) {
			calls++
			if calls == 1 {
				return source.EventPage{Events: events}, nil
			}
			return source.EventPage{}, nil
		},
	}

	r := NewReader(querier, []uuid.UUID{sourceID}, Options{PageSize: 2}, logging.Default())
	got := collect(t, r)

	require.Len(t, got, 2)
	require.Len(t, querier.queries, 2)
	assert.Equal(t, int64(7), querier.queries[1].SourcePositions[sourceID])
}

func TestReaderContinuesPastResultCap(t *testing.T) {
	sourceID := uuid.New()

	calls := 0
	querier := &mockQuerier{
		queryEventsFunc: func(_ context.Context, q source.EventQuery) (source.EventPage, error) {
			calls++
			switch calls {
			case 1:
				// Capped page: full page of rows plus the sentinel. The rows
				// still advance the cursor.
				return source.EventPage{Events: makeEvents(sourceID, 1, 2)}, source.ErrTooManyResults
			case 2:
				return source.EventPage{Events: makeEvents(sourceID, 3)}, nil
			default:
				return source.EventPage{}, nil
			}
		},
	}

	r := NewReader(querier, []uuid.UUID{sourceID}, Options{PageSize: 2}, logging.Default())
	events := collect(t, r)

	require.Len(t, events, 3)
	assert.Equal(t, int64(2), querier.queries[1].SourcePositions[sourceID])
}

func TestReaderCappedShortPageKeepsPaging(t *testing.T) {
	sourceID := uuid.New()

	calls := 0
	querier := &mockQuerier{
		queryEventsFunc: func(_ context.Context, q source.EventQuery) (source.EventPage, error) {
			calls++
			if calls == 1 {
				// Fewer rows than the page size, but capped: the source is
				// not exhausted.
				return source.EventPage{Events: makeEvents(sourceID, 1)}, source.ErrTooManyResults
			}
			return source.EventPage{Events: makeEvents(sourceID, 2)}, nil
		},
	}

	r := NewReader(querier, []uuid.UUID{sourceID}, Options{PageSize: 2}, logging.Default())
	events := collect(t, r)

	require.Len(t, events, 2)
	require.Len(t, querier.queries, 2)
	assert.Equal(t, int64(1), querier.queries[1].SourcePositions[sourceID])
}

func TestReaderCappedEmptyPageStops(t *testing.T) {
	sourceID := uuid.New()

	querier := &mockQuerier{
		queryEventsFunc: func(_ context.Context, q source.EventQuery) (source.EventPage, error) {
			return source.EventPage{}, source.ErrTooManyResults
		},
	}

	r := NewReader(querier, []uuid.UUID{sourceID}, Options{PageSize: 2}, logging.Default())
	events := collect(t, r)

	assert.Empty(t, events)
	assert.Len(t, querier.queries, 1, "a capped page with no rows cannot advance the cursor")
}

// The capped-page contract is exercised against the real gateway client, not
// only the mock: rows returned alongside the cap sentinel must reach the
// consumer and advance the cursor.
func TestReaderOverGatewayCappedPage(t *testing.T) {
	sourceID := uuid.New()

	wireEvent := func(pos int64) map[string]any {
		return map[string]any{
			"source_id":     sourceID,
			"position":      pos,
			"inserted_utc":  "2026-03-02T14:30:05Z",
			"timestamp_utc": "2026-03-02T14:30:00Z",
			"type":          "AccessGranted",
			"time_zone":     "UTC",
		}
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			SourcePositions map[string]int64 `json:"source_positions"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		if body.SourcePositions[sourceID.String()] == 0 {
			json.NewEncoder(w).Encode(map[string]any{
				"events":           []map[string]any{wireEvent(1), wireEvent(2)},
				"too_many_results": true,
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"events": []map[string]any{wireEvent(3)},
		})
	}))
	t.Cleanup(server.Close)

	client := source.NewClient(server.URL, 5*time.Second)
	r := NewReader(client, []uuid.UUID{sourceID}, Options{PageSize: 2}, logging.Default())

	var positions []int64
	for ev, err := range r.Events(context.Background()) {
		require.NoError(t, err)
		positions = append(positions, ev.Position)
	}
	assert.Equal(t, []int64{1, 2, 3}, positions)
}

func TestReaderContinuesPastQueryFailure(t *testing.T) {
	sourceID := uuid.New()

	calls := 0
	querier := &mockQuerier{
		queryEventsFunc: func(_ context.Context, q source.EventQuery) (source.EventPage, error) {
			calls++
			if calls == 1 {
				// Partial failure: two rows made it back before the error.
				return source.EventPage{
					Events: makeEvents(sourceID, 1, 2),
					SubQueryErrors: map[uuid.UUID]error{
						sourceID: errors.New("node restarting"),
					},
				}, errors.New("gateway timeout")
			}
			return source.EventPage{}, nil
		},
	}

	r := NewReader(querier, []uuid.UUID{sourceID}, Options{PageSize: 2}, logging.Default())
	events := collect(t, r)

	// The failure is logged, the partial rows are yielded, and paging
	// resumes from the last position they reached.
	require.Len(t, events, 2)
	require.Len(t, querier.queries, 2)
	assert.Equal(t, int64(2), querier.queries[1].SourcePositions[sourceID])
}

func TestReaderStopsOnContextCancel(t *testing.T) {
	sourceID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	querier := &mockQuerier{
		queryEventsFunc: func(_ context.Context, q source.EventQuery) (source.EventPage, error) {
			return source.EventPage{Events: makeEvents(sourceID, 1, 2)}, nil
		},
	}

	r := NewReader(querier, []uuid.UUID{sourceID}, Options{PageSize: 2}, logging.Default())

	count := 0
	for _, err := range r.Events(ctx) {
		require.NoError(t, err)
		count++
		if count == 3 {
			cancel()
		}
	}
	assert.Equal(t, 4, count, "the in-flight page finishes, then paging stops")
}

func TestReaderConsumerBreakStopsPaging(t *testing.T) {
	sourceID := uuid.New()
	querier := &mockQuerier{
		queryEventsFunc: func(_ context.Context, q source.EventQuery) (source.EventPage, error) {
			return source.EventPage{Events: makeEvents(sourceID, 1, 2)}, nil
		},
	}

	r := NewReader(querier, []uuid.UUID{sourceID}, Options{PageSize: 2}, logging.Default())
	for range r.Events(context.Background()) {
		break
	}
	assert.Len(t, querier.queries, 1)
}
