package sink

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/veragate-systems/attendance-etl/internal/models"
)

const createTableSQL = `
CREATE TABLE attendance_events (
    employee_id      text NOT NULL,
    full_name        text NOT NULL,
    badge_id         bigint NOT NULL,
    event_id         text NOT NULL,
    reader_name      text NOT NULL,
    door_name        text NOT NULL,
    profile_name     text NOT NULL,
    event_time_local timestamp NOT NULL,
    event_time_utc   timestamptz NOT NULL,
    event_type       text NOT NULL,
    created_utc      timestamptz NOT NULL,
    site_name        text NOT NULL,
    source_name      text NOT NULL
);`

// setupTestDatabase starts a PostgreSQL container with the destination table
// created.
func setupTestDatabase(t *testing.T) *PostgresSink {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("attendance_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, createTableSQL)
	require.NoError(t, err)

	return NewPostgresSinkFromPool(pool)
}

func makeRecords(n int) []models.AttendanceRecord {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	records := make([]models.AttendanceRecord, 0, n)
	for i := range n {
		records = append(records, models.AttendanceRecord{
			EmployeeID:     "EMP-001",
			FullName:       "Ada Lovelace",
			BadgeID:        int64(4000 + i),
			EventID:        "10_In",
			ReaderName:     "Lobby Reader",
			DoorName:       "Lobby Door",
			ProfileName:    "Main Office",
			TimestampLocal: now.Add(-5 * time.Hour),
			TimestampUTC:   now,
			EventTypeName:  "AccessGranted",
			CreatedUTC:     now,
			SiteName:       "HQ",
			SourceName:     "Access Manager",
		})
	}
	return records
}

func TestWriteRecords(t *testing.T) {
	sink := setupTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, sink.WriteRecords(ctx, makeRecords(250)))

	var count int
	err := sink.pool.QueryRow(ctx, "SELECT count(*) FROM attendance_events").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 250, count)

	var employeeID, eventID, sourceName string
	var badgeID int64
	err = sink.pool.QueryRow(ctx,
		"SELECT employee_id, event_id, source_name, badge_id FROM attendance_events ORDER BY badge_id LIMIT 1").
		Scan(&employeeID, &eventID, &sourceName, &badgeID)
	require.NoError(t, err)
	assert.Equal(t, "EMP-001", employeeID)
	assert.Equal(t, "10_In", eventID)
	assert.Equal(t, "Access Manager", sourceName)
	assert.Equal(t, int64(4000), badgeID)
}

func TestWriteRecordsAppendOnly(t *testing.T) {
	sink := setupTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, sink.WriteRecords(ctx, makeRecords(10)))
	require.NoError(t, sink.WriteRecords(ctx, makeRecords(10)))

	var count int
	err := sink.pool.QueryRow(ctx, "SELECT count(*) FROM attendance_events").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 20, count, "identical batches append, never upsert")
}

func TestWriteRecordsEmptyBatch(t *testing.T) {
	// No pool needed: an empty batch never touches the database.
	sink := &PostgresSink{}
	assert.NoError(t, sink.WriteRecords(context.Background(), nil))
}

func TestNewPostgresSinkBadConnString(t *testing.T) {
	_, err := NewPostgresSink(context.Background(), "invalid://connection")
	require.Error(t, err)
}
