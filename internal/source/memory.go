package source

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/veragate-systems/attendance-etl/internal/models"
)

// MemoryStore is an in-process EntityStore and EventQuerier. It backs unit
// tests and the seed command. Hydration is modeled faithfully: Get only sees
// entities whose ids have been passed to Load, so callers exercise the same
// hydrate-before-resolve discipline the real directory requires.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[uuid.UUID]models.Entity
	hydrated map[uuid.UUID]struct{}
	events   map[uuid.UUID][]models.RawEvent // per source, position-ascending
	fields   []string

	// MaxQueryResults, when non-zero, makes Query return ErrTooManyResults
	// for pages larger than the cap, mirroring the real directory.
	MaxQueryResults int

	loadCalls   int
	loadedTotal int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[uuid.UUID]models.Entity),
		hydrated: make(map[uuid.UUID]struct{}),
		events:   make(map[uuid.UUID][]models.RawEvent),
	}
}

// AddEntity registers an entity in the directory. It is not hydrated until a
// Load call names it.
func (s *MemoryStore) AddEntity(e models.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.GUID()] = e
}

// AddEvents appends raw events to a source's stream. Events must be added in
// position order.
func (s *MemoryStore) AddEvents(sourceID uuid.UUID, events ...models.RawEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[sourceID] = append(s.events[sourceID], events...)
}

// SetCustomFields sets the custom-field definitions the directory reports.
func (s *MemoryStore) SetCustomFields(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = names
}

func (s *MemoryStore) Query(ctx context.Context, q EntityQuery) ([]models.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Entity
	for _, e := range s.entities {
		for _, k := range q.Kinds {
			if e.Kind() == k {
				matched = append(matched, e)
				break
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].GUID().String() < matched[j].GUID().String()
	})

	if q.PageSize > 0 {
		start := q.Page * q.PageSize
		if start >= len(matched) {
			return nil, nil
		}
		end := min(start+q.PageSize, len(matched))
		matched = matched[start:end]
	}
	if s.MaxQueryResults > 0 && len(matched) > s.MaxQueryResults {
		return nil, ErrTooManyResults
	}
	return matched, nil
}

func (s *MemoryStore) Get(id uuid.UUID) (models.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.hydrated[id]; !ok {
		return nil, false
	}
	e, ok := s.entities[id]
	return e, ok
}

func (s *MemoryStore) Load(ctx context.Context, ids []uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadCalls++
	s.loadedTotal += len(ids)
	for _, id := range ids {
		s.hydrated[id] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) CustomFieldNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.fields...), nil
}

// LoadCalls reports how many hydration round-trips have been issued.
func (s *MemoryStore) LoadCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadCalls
}

// LoadedTotal reports the total number of ids named across all Load calls.
func (s *MemoryStore) LoadedTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedTotal
}

// QueryEvents implements EventQuerier. Each source named in SourcePositions
// is scanned independently; results are merged up to MaxResults.
func (s *MemoryStore) QueryEvents(ctx context.Context, q EventQuery) (EventPage, error) {
	if err := ctx.Err(); err != nil {
		return EventPage{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	page := EventPage{}
	for sourceID, after := range q.SourcePositions {
		for _, ev := range s.events[sourceID] {
			if ev.Position <= after {
				continue
			}
			if !matchesWindow(ev, q) || !matchesTypes(ev, q.Types) {
				continue
			}
			page.Events = append(page.Events, ev)
			if q.MaxResults > 0 && len(page.Events) >= q.MaxResults {
				return page, nil
			}
		}
	}
	return page, nil
}

func matchesWindow(ev models.RawEvent, q EventQuery) bool {
	if q.InsertedStartUTC != nil && ev.InsertedUTC.Before(*q.InsertedStartUTC) {
		return false
	}
	if q.InsertedEndUTC != nil && ev.InsertedUTC.After(*q.InsertedEndUTC) {
		return false
	}
	return true
}

func matchesTypes(ev models.RawEvent, types []models.EventType) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if ev.Type == t {
			return true
		}
	}
	return false
}
