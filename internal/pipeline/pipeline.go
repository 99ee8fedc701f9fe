// Package pipeline wires extraction, hydration, transformation, and loading
// into a staged channel pipeline with bounded buffering.
package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/veragate-systems/attendance-etl/internal/extract"
	"github.com/veragate-systems/attendance-etl/internal/logging"
	"github.com/veragate-systems/attendance-etl/internal/metrics"
	"github.com/veragate-systems/attendance-etl/internal/models"
	"github.com/veragate-systems/attendance-etl/internal/resolve"
	"github.com/veragate-systems/attendance-etl/internal/transform"
)

// Sink receives bulk record batches.
type Sink interface {
	WriteRecords(ctx context.Context, records []models.AttendanceRecord) error
}

// Options size the two batching points.
type Options struct {
	// HydrateBatchSize is the number of raw events per hydrate+transform
	// batch.
	HydrateBatchSize int

	// InsertBatchSize is the number of records per bulk insert.
	InsertBatchSize int
}

// Pipeline runs: extract → medium batches → hydrate+transform (exactly one
// worker, which owns the resolution cache) → large batches → bulk insert.
// The producer may fetch the next page while the consumer side works, but
// the capacity-1 batch channel keeps it from racing ahead: this is the
// backpressure point.
type Pipeline struct {
	reader      *extract.Reader
	resolver    *resolve.Resolver
	transformer *transform.Transformer
	sink        Sink
	opts        Options
	log         *logging.Logger
}

func New(reader *extract.Reader, resolver *resolve.Resolver, transformer *transform.Transformer, sink Sink, opts Options, log *logging.Logger) *Pipeline {
	if opts.HydrateBatchSize <= 0 {
		opts.HydrateBatchSize = 2000
	}
	if opts.InsertBatchSize <= 0 {
		opts.InsertBatchSize = 10000
	}
	return &Pipeline{
		reader:      reader,
		resolver:    resolver,
		transformer: transformer,
		sink:        sink,
		opts:        opts,
		log:         log,
	}
}

// Run executes the pipeline to completion. Per-event drops are filtering
// outcomes; a sink write failure or hydration failure cancels all stages and
// fails the run.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	group, gctx := errgroup.WithContext(ctx)

	eventCh := make(chan models.RawEvent, p.opts.HydrateBatchSize)
	batchCh := make(chan []models.RawEvent, 1)
	recordCh := make(chan []models.AttendanceRecord, 1)

	group.Go(func() error {
		return p.runExtract(gctx, eventCh, stats)
	})
	group.Go(func() error {
		return p.runBatch(gctx, eventCh, batchCh)
	})
	group.Go(func() error {
		return p.runTransform(gctx, batchCh, recordCh, stats)
	})
	group.Go(func() error {
		return p.runLoad(gctx, recordCh, stats)
	})

	if err := group.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// runExtract drives the paged reader and feeds single events downstream.
func (p *Pipeline) runExtract(ctx context.Context, out chan<- models.RawEvent, stats *Stats) error {
	defer close(out)

	for ev, err := range p.reader.Events(ctx) {
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		stats.incExtracted(1)
		metrics.EventsExtracted.Inc()

		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// runBatch groups events into hydrate-sized batches. The output channel has
// capacity 1 so at most one full batch is staged ahead of the transform
// worker.
func (p *Pipeline) runBatch(ctx context.Context, in <-chan models.RawEvent, out chan<- []models.RawEvent) error {
	defer close(out)

	pending := make([]models.RawEvent, 0, p.opts.HydrateBatchSize)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		batch := pending
		pending = make([]models.RawEvent, 0, p.opts.HydrateBatchSize)
		select {
		case out <- batch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-in:
			if !ok {
				return flush()
			}
			pending = append(pending, ev)
			if len(pending) >= p.opts.HydrateBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}

// runTransform is the single hydrate+transform worker. The concurrency cap
// of 1 serializes all access to the resolution cache.
func (p *Pipeline) runTransform(ctx context.Context, in <-chan []models.RawEvent, out chan<- []models.AttendanceRecord, stats *Stats) error {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-in:
			if !ok {
				return nil
			}
			if err := p.resolver.Hydrate(ctx, batch); err != nil {
				return fmt.Errorf("transform: %w", err)
			}
			stats.incHydrateBatches()

			records := make([]models.AttendanceRecord, 0, len(batch))
			for _, ev := range batch {
				record, ok := p.transformer.Transform(ev)
				if !ok {
					stats.incDropped(1)
					continue
				}
				records = append(records, record)
			}
			stats.incTransformed(int64(len(records)))

			p.log.DebugContext(ctx, "batch transformed",
				logging.Batch(len(batch)), logging.Count(int64(len(records))))

			if len(records) == 0 {
				continue
			}
			select {
			case out <- records:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// runLoad regroups records into insert-sized batches and bulk-inserts each.
// An empty trailing batch is never sent.
func (p *Pipeline) runLoad(ctx context.Context, in <-chan []models.AttendanceRecord, stats *Stats) error {
	var pending []models.AttendanceRecord

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := p.sink.WriteRecords(ctx, pending); err != nil {
			return fmt.Errorf("load: %w", err)
		}
		stats.incInsertBatches()
		stats.incLoaded(int64(len(pending)))
		pending = nil
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case records, ok := <-in:
			if !ok {
				return flush()
			}
			pending = append(pending, records...)
			for len(pending) >= p.opts.InsertBatchSize {
				batch := pending[:p.opts.InsertBatchSize]
				rest := pending[p.opts.InsertBatchSize:]
				pending = batch
				if err := flush(); err != nil {
					return err
				}
				pending = rest
			}
		}
	}
}
