package sink

import (
	"context"
	"encoding/json"
	"io"

	"github.com/veragate-systems/attendance-etl/internal/models"
)

// StdoutSink writes records as JSON lines. Used by the seed command to
// preview pipeline output without a destination database.
type StdoutSink struct {
	enc *json.Encoder
}

func NewStdoutSink(w io.Writer) *StdoutSink {
	return &StdoutSink{enc: json.NewEncoder(w)}
}

func (s *StdoutSink) WriteRecords(ctx context.Context, records []models.AttendanceRecord) error {
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.enc.Encode(struct {
			EmployeeID     string `json:"employee_id"`
			FullName       string `json:"full_name"`
			BadgeID        int64  `json:"badge_id"`
			EventID        string `json:"event_id"`
			ReaderName     string `json:"reader_name"`
			DoorName       string `json:"door_name"`
			ProfileName    string `json:"profile_name"`
			TimestampLocal string `json:"event_time_local"`
			TimestampUTC   string `json:"event_time_utc"`
			EventTypeName  string `json:"event_type"`
			CreatedUTC     string `json:"created_utc"`
			SiteName       string `json:"site_name"`
			SourceName     string `json:"source_name"`
		}{
			EmployeeID:     r.EmployeeID,
			FullName:       r.FullName,
			BadgeID:        r.BadgeID,
			EventID:        r.EventID,
			ReaderName:     r.ReaderName,
			DoorName:       r.DoorName,
			ProfileName:    r.ProfileName,
			TimestampLocal: r.TimestampLocal.Format("2006-01-02T15:04:05"),
			TimestampUTC:   r.TimestampUTC.Format("2006-01-02T15:04:05Z"),
			EventTypeName:  r.EventTypeName,
			CreatedUTC:     r.CreatedUTC.Format("2006-01-02T15:04:05Z"),
			SiteName:       r.SiteName,
			SourceName:     r.SourceName,
		}); err != nil {
			return err
		}
	}
	return nil
}
