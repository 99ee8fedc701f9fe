package pipeline

import (
	"fmt"
	"sync/atomic"
)

// Stats tracks pipeline progress. All counters are atomic: the producer and
// consumer stages update them concurrently.
type Stats struct {
	extracted      atomic.Int64
	dropped        atomic.Int64
	transformed    atomic.Int64
	loaded         atomic.Int64
	hydrateBatches atomic.Int64
	insertBatches  atomic.Int64
}

func (s *Stats) incExtracted(n int64)   { s.extracted.Add(n) }
func (s *Stats) incDropped(n int64)     { s.dropped.Add(n) }
func (s *Stats) incTransformed(n int64) { s.transformed.Add(n) }
func (s *Stats) incLoaded(n int64)      { s.loaded.Add(n) }
func (s *Stats) incHydrateBatches()     { s.hydrateBatches.Add(1) }
func (s *Stats) incInsertBatches()      { s.insertBatches.Add(1) }

// Extracted returns the number of raw events read from the event store.
func (s *Stats) Extracted() int64 { return s.extracted.Load() }

// Dropped returns the number of events removed by a filter rule.
func (s *Stats) Dropped() int64 { return s.dropped.Load() }

// Transformed returns the number of attendance records produced.
func (s *Stats) Transformed() int64 { return s.transformed.Load() }

// Loaded returns the number of records bulk-inserted into the sink.
func (s *Stats) Loaded() int64 { return s.loaded.Load() }

// HydrateBatches returns the number of hydrate/transform batches processed.
func (s *Stats) HydrateBatches() int64 { return s.hydrateBatches.Load() }

// InsertBatches returns the number of bulk-insert calls issued.
func (s *Stats) InsertBatches() int64 { return s.insertBatches.Load() }

func (s *Stats) String() string {
	return fmt.Sprintf("extracted=%d dropped=%d transformed=%d loaded=%d batches=%d inserts=%d",
		s.Extracted(), s.Dropped(), s.Transformed(), s.Loaded(),
		s.HydrateBatches(), s.InsertBatches())
}
