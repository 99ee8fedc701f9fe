package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of access-control event. The numeric code is
// stable and appears verbatim in exported record identifiers, so values must
// never be renumbered.
type EventType byte

const (
	EventUnknown        EventType = 0
	EventAccessGranted  EventType = 10
	EventAccessRefused  EventType = 11
	EventDoorForcedOpen EventType = 20
	EventDoorHeldOpen   EventType = 21
	EventDoorLocked     EventType = 22
	EventDoorUnlocked   EventType = 23
	EventUnitTamper     EventType = 30
	EventUnknownBadge   EventType = 31
)

var eventTypeNames = map[EventType]string{
	EventUnknown:        "Unknown",
	EventAccessGranted:  "AccessGranted",
	EventAccessRefused:  "AccessRefused",
	EventDoorForcedOpen: "DoorForcedOpen",
	EventDoorHeldOpen:   "DoorHeldOpen",
	EventDoorLocked:     "DoorLocked",
	EventDoorUnlocked:   "DoorUnlocked",
	EventUnitTamper:     "UnitTamper",
	EventUnknownBadge:   "UnknownBadge",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EventType(%d)", byte(t))
}

// ParseEventType resolves an event-type name (case-insensitive).
func ParseEventType(name string) (EventType, error) {
	trimmed := strings.TrimSpace(name)
	for t, n := range eventTypeNames {
		if strings.EqualFold(n, trimmed) {
			return t, nil
		}
	}
	return EventUnknown, fmt.Errorf("unknown event type %q", name)
}

// ParseEventTypes parses a comma-separated list of event-type names, the
// format used on the configuration surface. An empty input yields nil,
// meaning no type filter.
func ParseEventTypes(csv string) ([]EventType, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var types []EventType
	for _, part := range strings.Split(csv, ",") {
		t, err := ParseEventType(part)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// Side is the raw reader side reported by an access point.
type Side string

const (
	SideAlpha       Side = "Alpha"
	SideOmega       Side = "Omega"
	SideInside      Side = "Inside"
	SideOutside     Side = "Outside"
	SideUnspecified Side = "Unspecified"
)

// NormalizeSide maps the two directional sides to In/Out. Any other value is
// passed through unchanged.
func NormalizeSide(s Side) string {
	switch s {
	case SideAlpha:
		return "In"
	case SideOmega:
		return "Out"
	default:
		return string(s)
	}
}

// OccurrencePeriod classifies whether an event was recorded live or buffered
// on the field unit during an offline period.
type OccurrencePeriod byte

const (
	PeriodOnline OccurrencePeriod = iota
	PeriodOffline
	PeriodOfflineAlarm
)

// RawEvent is a single event row read from the source event store. Optional
// references use the uuid zero value for "absent". Position is strictly
// increasing per owning source and is the sole resumption key; timestamps are
// not unique or monotonic across sources.
type RawEvent struct {
	SourceGUID      uuid.UUID
	AccessPointGUID uuid.UUID
	CredentialGUID  uuid.UUID
	CardholderGUID  uuid.UUID
	UnitGUID        uuid.UUID
	DoorGUID        uuid.UUID

	Period      OccurrencePeriod
	SourceID    uuid.UUID
	Position    int64
	InsertedUTC time.Time
	Timestamp   time.Time
	Type        EventType
	TimeZone    string
}

// ReferencedGUIDs returns the set of non-zero entity references carried by
// the event, in a stable field order. The owning source id is included so
// the producing node's name can be resolved like any other reference.
func (e RawEvent) ReferencedGUIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, id := range [...]uuid.UUID{
		e.SourceGUID, e.AccessPointGUID, e.CredentialGUID,
		e.CardholderGUID, e.UnitGUID, e.DoorGUID, e.SourceID,
	} {
		if id != uuid.Nil {
			ids = append(ids, id)
		}
	}
	return ids
}
