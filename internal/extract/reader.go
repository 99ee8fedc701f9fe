// Package extract implements cursor-based paged retrieval of raw events from
// the source event store.
package extract

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/veragate-systems/attendance-etl/internal/logging"
	"github.com/veragate-systems/attendance-etl/internal/metrics"
	"github.com/veragate-systems/attendance-etl/internal/models"
	"github.com/veragate-systems/attendance-etl/internal/source"
)

// Options bound the extraction window and page size.
type Options struct {
	StartUTC *time.Time // open-ended when nil
	EndUTC   *time.Time // open-ended when nil
	Types    []models.EventType
	PageSize int
}

// Reader walks the event store one source at a time, advancing a per-source
// position cursor. Resumption is always by strictly-greater position, never
// by timestamp: positions are unique and monotonic per source, timestamps
// are neither.
type Reader struct {
	querier source.EventQuerier
	sources []uuid.UUID
	opts    Options
	log     *logging.Logger
}

func NewReader(querier source.EventQuerier, sources []uuid.UUID, opts Options, log *logging.Logger) *Reader {
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}
	return &Reader{querier: querier, sources: sources, opts: opts, log: log}
}

// Events returns a lazy sequence of raw events. Each source is fully
// exhausted before the next one is opened; per-source order follows the
// position cursor. Query-level failures other than the too-many-results
// sentinel are logged and paging proceeds with whatever rows were returned.
func (r *Reader) Events(ctx context.Context) iter.Seq2[models.RawEvent, error] {
	return func(yield func(models.RawEvent, error) bool) {
		for _, sourceID := range r.sources {
			if !r.drainSource(ctx, sourceID, yield) {
				return
			}
		}
	}
}

// drainSource pages one source until a short page signals exhaustion.
// Returns false when the consumer stopped or the context is done.
func (r *Reader) drainSource(ctx context.Context, sourceID uuid.UUID, yield func(models.RawEvent, error) bool) bool {
	positions := map[uuid.UUID]int64{sourceID: 0}

	for {
		if ctx.Err() != nil {
			return false
		}

		page, err := r.querier.QueryEvents(ctx, source.EventQuery{
			InsertedStartUTC: r.opts.StartUTC,
			InsertedEndUTC:   r.opts.EndUTC,
			Types:            r.opts.Types,
			SourcePositions:  positions,
			MaxResults:       r.opts.PageSize,
		})
		capped := false
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			if errors.Is(err, source.ErrTooManyResults) {
				// Expected paging condition; the rows we did get still move
				// the cursor forward.
				capped = true
				r.log.DebugContext(ctx, "event query hit result cap, continuing",
					logging.Source(sourceID))
			} else {
				r.log.WarnContext(ctx, "event query failed, continuing with partial page",
					logging.Source(sourceID), logging.Error(err))
			}
		}
		for src, subErr := range page.SubQueryErrors {
			if errors.Is(subErr, source.ErrTooManyResults) {
				if src == sourceID {
					capped = true
				}
				r.log.DebugContext(ctx, "sub-query hit result cap",
					logging.Source(src))
				continue
			}
			r.log.WarnContext(ctx, "sub-query failed",
				logging.Source(src), logging.Error(subErr))
		}

		metrics.PagesTotal.Inc()

		before := positions[sourceID]
		for _, ev := range page.Events {
			if !yield(ev, nil) {
				return false
			}
			if ev.Position > positions[ev.SourceID] {
				positions[ev.SourceID] = ev.Position
			}
		}

		if capped {
			if positions[sourceID] == before {
				// The cap was hit but no rows came back, so re-querying
				// would spin on the same answer.
				r.log.WarnContext(ctx, "result cap reached with no rows, stopping source",
					logging.Source(sourceID))
				return true
			}
			// A capped page can be shorter than the page size; only an
			// uncapped short page means the source is exhausted.
			continue
		}

		if len(page.Events) < r.opts.PageSize {
			// Short page: the source has no events past the cursor.
			return true
		}
	}
}
