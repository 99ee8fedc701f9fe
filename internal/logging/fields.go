package logging

import (
	"log/slog"

	"github.com/google/uuid"
)

// Common field names for consistent logging across the exporter.
const (
	FieldSource   = "source"
	FieldPosition = "position"
	FieldBatch    = "batch_size"
	FieldPage     = "page"
	FieldError    = "error"
	FieldDuration = "duration_ms"
	FieldCount    = "count"
)

// Source returns a slog attribute for a source node id.
func Source(id uuid.UUID) slog.Attr {
	return slog.String(FieldSource, id.String())
}

// Position returns a slog attribute for a per-source event position.
func Position(pos int64) slog.Attr {
	return slog.Int64(FieldPosition, pos)
}

// Batch returns a slog attribute for a batch size.
func Batch(n int) slog.Attr {
	return slog.Int(FieldBatch, n)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Count returns a slog attribute for a record count.
func Count(n int64) slog.Attr {
	return slog.Int64(FieldCount, n)
}
