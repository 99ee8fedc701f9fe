package models

import "time"

// AttendanceRecord is the normalized, sink-bound row. Records are never
// mutated after the transformer builds them.
type AttendanceRecord struct {
	EmployeeID     string
	FullName       string
	BadgeID        int64
	EventID        string
	ReaderName     string
	DoorName       string
	ProfileName    string
	TimestampLocal time.Time
	TimestampUTC   time.Time
	EventTypeName  string
	CreatedUTC     time.Time
	SiteName       string
	SourceName     string
}
