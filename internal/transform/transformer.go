// Package transform converts raw access-control events plus their resolved
// entities into zero-or-one normalized attendance records.
package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veragate-systems/attendance-etl/internal/credential"
	"github.com/veragate-systems/attendance-etl/internal/employee"
	"github.com/veragate-systems/attendance-etl/internal/metrics"
	"github.com/veragate-systems/attendance-etl/internal/models"
	"github.com/veragate-systems/attendance-etl/internal/source"
)

// Drop reasons, used as metric labels and surfaced in debug logging.
const (
	DropCardholder  = "cardholder_unresolved"
	DropEmployee    = "employee_not_in_set"
	DropDoor        = "door_unresolved"
	DropAccessPoint = "access_point_unresolved"
	DropProfile     = "profile_mismatch"
)

// Options carry the configurable filter rules.
type Options struct {
	// EmployeeFilter requires the cardholder's employee identifier to be
	// present in the reference set. An empty or missing identifier fails
	// the filter.
	EmployeeFilter bool

	// EmployeeField is the cardholder custom-field name holding the
	// employee identifier.
	EmployeeField string

	// RuleFilter requires an exact case-insensitive match between RuleName
	// and one of the access rules on the event's access point. When
	// disabled the profile is the comma-joined names of all rules there.
	RuleFilter bool
	RuleName   string
}

// Transformer is a pure per-event function over hydrated entities. It holds
// no mutable state; entity resolution authority stays with the store.
type Transformer struct {
	store     source.EntityStore
	employees *employee.Set
	opts      Options
	now       func() time.Time
}

func New(store source.EntityStore, employees *employee.Set, opts Options) *Transformer {
	if opts.EmployeeField == "" {
		opts.EmployeeField = "Employee Number"
	}
	return &Transformer{
		store:     store,
		employees: employees,
		opts:      opts,
		now:       time.Now,
	}
}

// WithClock overrides the creation-timestamp clock (tests).
func (t *Transformer) WithClock(now func() time.Time) *Transformer {
	t.now = now
	return t
}

// Transform applies the drop rules in order and derives the output fields.
// The boolean is false when the event is filtered out; a dropped event is a
// filtering outcome, never an error, and no partial record is ever emitted.
func (t *Transformer) Transform(ev models.RawEvent) (models.AttendanceRecord, bool) {
	cardholder, ok := t.resolveCardholder(ev)
	if !ok {
		return t.drop(DropCardholder)
	}

	employeeID := strings.TrimSpace(cardholder.CustomFields[t.opts.EmployeeField])
	if t.opts.EmployeeFilter && !t.employees.Contains(employeeID) {
		return t.drop(DropEmployee)
	}

	door, ok := t.resolveDoor(ev)
	if !ok {
		return t.drop(DropDoor)
	}

	accessPoint, ok := t.resolveAccessPoint(ev)
	if !ok {
		return t.drop(DropAccessPoint)
	}

	profile, ok := t.profileName(accessPoint)
	if !ok {
		return t.drop(DropProfile)
	}

	record := models.AttendanceRecord{
		EmployeeID:     employeeID,
		FullName:       cardholder.FullName(),
		BadgeID:        t.badgeID(ev),
		EventID:        eventID(ev.Type, accessPoint.Side),
		ReaderName:     accessPoint.Name(),
		DoorName:       door.Name(),
		ProfileName:    profile,
		TimestampLocal: t.localTime(ev),
		TimestampUTC:   ev.Timestamp,
		EventTypeName:  ev.Type.String(),
		CreatedUTC:     t.now().UTC(),
		SiteName:       door.SiteName,
		SourceName:     t.sourceName(ev),
	}
	metrics.RecordsTransformed.Inc()
	return record, true
}

func (t *Transformer) drop(reason string) (models.AttendanceRecord, bool) {
	metrics.EventsDropped.WithLabelValues(reason).Inc()
	return models.AttendanceRecord{}, false
}

// resolveCardholder prefers the cardholder reference and falls back to the
// source entity reference, which older units report instead.
func (t *Transformer) resolveCardholder(ev models.RawEvent) (models.Cardholder, bool) {
	for _, id := range []uuid.UUID{ev.CardholderGUID, ev.SourceGUID} {
		if id == uuid.Nil {
			continue
		}
		if e, ok := t.store.Get(id); ok {
			if ch, ok := e.(models.Cardholder); ok {
				return ch, true
			}
		}
	}
	return models.Cardholder{}, false
}

func (t *Transformer) resolveDoor(ev models.RawEvent) (models.Door, bool) {
	if ev.DoorGUID == uuid.Nil {
		return models.Door{}, false
	}
	e, ok := t.store.Get(ev.DoorGUID)
	if !ok {
		return models.Door{}, false
	}
	door, ok := e.(models.Door)
	return door, ok
}

func (t *Transformer) resolveAccessPoint(ev models.RawEvent) (models.AccessPoint, bool) {
	if ev.AccessPointGUID == uuid.Nil {
		return models.AccessPoint{}, false
	}
	e, ok := t.store.Get(ev.AccessPointGUID)
	if !ok {
		return models.AccessPoint{}, false
	}
	ap, ok := e.(models.AccessPoint)
	return ap, ok
}

// profileName resolves the access-profile column from the rules attached to
// the access point.
func (t *Transformer) profileName(ap models.AccessPoint) (string, bool) {
	if t.opts.RuleFilter {
		for _, id := range ap.RuleGUIDs {
			e, ok := t.store.Get(id)
			if !ok {
				continue
			}
			if strings.EqualFold(e.Name(), t.opts.RuleName) {
				return t.opts.RuleName, true
			}
		}
		return "", false
	}

	var names []string
	for _, id := range ap.RuleGUIDs {
		if e, ok := t.store.Get(id); ok {
			names = append(names, e.Name())
		}
	}
	return strings.Join(names, ", "), true
}

// badgeID decodes the credential's card number. An absent credential, an
// unresolved credential, or an unsupported format all yield 0.
func (t *Transformer) badgeID(ev models.RawEvent) int64 {
	if ev.CredentialGUID == uuid.Nil {
		return 0
	}
	e, ok := t.store.Get(ev.CredentialGUID)
	if !ok {
		return 0
	}
	cred, ok := e.(models.Credential)
	if !ok {
		return 0
	}
	id, _ := credential.BadgeID(cred.Format)
	return id
}

// localTime converts the raw UTC timestamp into the event's time zone. Both
// output timestamps derive from the single raw UTC value; an unknown zone
// falls back to UTC rather than dropping the record.
func (t *Transformer) localTime(ev models.RawEvent) time.Time {
	loc, err := time.LoadLocation(ev.TimeZone)
	if err != nil || ev.TimeZone == "" {
		return ev.Timestamp
	}
	return ev.Timestamp.In(loc)
}

func (t *Transformer) sourceName(ev models.RawEvent) string {
	if e, ok := t.store.Get(ev.SourceID); ok {
		return e.Name()
	}
	return ""
}

// eventID composes the exported event identifier from the numeric type code
// and the normalized reader side.
func eventID(typ models.EventType, side models.Side) string {
	return fmt.Sprintf("%d_%s", byte(typ), models.NormalizeSide(side))
}
