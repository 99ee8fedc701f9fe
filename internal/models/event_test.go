package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSide(t *testing.T) {
	tests := []struct {
		side Side
		want string
	}{
		{SideAlpha, "In"},
		{SideOmega, "Out"},
		{SideInside, "Inside"},
		{SideOutside, "Outside"},
		{SideUnspecified, "Unspecified"},
		{Side(""), ""},
		{Side("Custom"), "Custom"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSide(tt.side), "side %q", tt.side)
	}
}

func TestParseEventType(t *testing.T) {
	typ, err := ParseEventType("accessgranted")
	require.NoError(t, err)
	assert.Equal(t, EventAccessGranted, typ)

	typ, err = ParseEventType(" DoorForcedOpen ")
	require.NoError(t, err)
	assert.Equal(t, EventDoorForcedOpen, typ)

	_, err = ParseEventType("Teleported")
	assert.Error(t, err)
}

func TestParseEventTypes(t *testing.T) {
	types, err := ParseEventTypes("AccessGranted, AccessRefused")
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventAccessGranted, EventAccessRefused}, types)

	types, err = ParseEventTypes("   ")
	require.NoError(t, err)
	assert.Nil(t, types)

	_, err = ParseEventTypes("AccessGranted,Bogus")
	assert.Error(t, err)
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "AccessGranted", EventAccessGranted.String())
	assert.Equal(t, "EventType(200)", EventType(200).String())
}

func TestReferencedGUIDs(t *testing.T) {
	cardholder := uuid.New()
	door := uuid.New()
	sourceID := uuid.New()

	ev := RawEvent{
		CardholderGUID: cardholder,
		DoorGUID:       door,
		SourceID:       sourceID,
		Position:       7,
		Timestamp:      time.Now(),
	}

	ids := ev.ReferencedGUIDs()
	assert.ElementsMatch(t, []uuid.UUID{cardholder, door, sourceID}, ids)
}

func TestReferencedGUIDsAllAbsent(t *testing.T) {
	assert.Empty(t, RawEvent{Position: 1}.ReferencedGUIDs())
}
