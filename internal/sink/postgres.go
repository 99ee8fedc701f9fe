// Package sink appends normalized attendance records to the destination
// database. Writes are append-only: this pipeline never updates or deletes
// sink rows.
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veragate-systems/attendance-etl/internal/metrics"
	"github.com/veragate-systems/attendance-etl/internal/models"
)

// attendanceTable is the fixed destination. Schema management is outside
// this pipeline; the table is expected to exist:
//
//	CREATE TABLE attendance_events (
//	    employee_id     text NOT NULL,
//	    full_name       text NOT NULL,
//	    badge_id        bigint NOT NULL,
//	    event_id        text NOT NULL,
//	    reader_name     text NOT NULL,
//	    door_name       text NOT NULL,
//	    profile_name    text NOT NULL,
//	    event_time_local timestamp NOT NULL,
//	    event_time_utc  timestamptz NOT NULL,
//	    event_type      text NOT NULL,
//	    created_utc     timestamptz NOT NULL,
//	    site_name       text NOT NULL,
//	    source_name     text NOT NULL
//	);
var (
	attendanceTable   = pgx.Identifier{"attendance_events"}
	attendanceColumns = []string{
		"employee_id", "full_name", "badge_id", "event_id",
		"reader_name", "door_name", "profile_name",
		"event_time_local", "event_time_utc", "event_type",
		"created_utc", "site_name", "source_name",
	}
)

// PostgresSink bulk-inserts attendance records with COPY.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(ctx context.Context, connString string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// NewPostgresSinkFromPool wraps an existing pool (used by tests).
func NewPostgresSinkFromPool(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Close() { s.pool.Close() }

// WriteRecords performs one bulk insert for the batch. A failure is not
// retried here; it propagates and terminates the run.
func (s *PostgresSink) WriteRecords(ctx context.Context, records []models.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	bctx, cancel := BulkContext(ctx)
	defer cancel()

	start := time.Now()
	copied, err := s.pool.CopyFrom(bctx, attendanceTable, attendanceColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{
				r.EmployeeID, r.FullName, r.BadgeID, r.EventID,
				r.ReaderName, r.DoorName, r.ProfileName,
				r.TimestampLocal, r.TimestampUTC, r.EventTypeName,
				r.CreatedUTC, r.SiteName, r.SourceName,
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("bulk insert %d records: %w", len(records), err)
	}
	if copied != int64(len(records)) {
		return fmt.Errorf("bulk insert wrote %d of %d records", copied, len(records))
	}

	metrics.InsertBatches.Inc()
	metrics.RecordsLoaded.Add(float64(copied))
	metrics.InsertDuration.Observe(time.Since(start).Seconds())
	return nil
}
