package models

import (
	"github.com/google/uuid"

	"github.com/veragate-systems/attendance-etl/internal/credential"
)

// EntityKind selects an entity class in store queries.
type EntityKind string

const (
	KindCardholder  EntityKind = "cardholder"
	KindCredential  EntityKind = "credential"
	KindAccessPoint EntityKind = "access_point"
	KindDoor        EntityKind = "door"
	KindUnit        EntityKind = "unit"
	KindRole        EntityKind = "role"
	KindAccessRule  EntityKind = "access_rule"
)

// Entity is the common surface shared by everything the source system's
// directory can return. Concrete types below carry the class-specific fields.
type Entity interface {
	GUID() uuid.UUID
	Name() string
	Kind() EntityKind
}

// Base holds the identity fields common to all entities.
type Base struct {
	ID          uuid.UUID
	DisplayName string
}

func (b Base) GUID() uuid.UUID { return b.ID }
func (b Base) Name() string    { return b.DisplayName }

// Cardholder is a person who can carry credentials. Custom fields are
// free-form name/value pairs defined by the source system's administrators;
// the employee identifier used for filtering lives there.
type Cardholder struct {
	Base
	FirstName    string
	LastName     string
	CustomFields map[string]string
}

func (Cardholder) Kind() EntityKind { return KindCardholder }

// FullName joins the cardholder's name parts, tolerating missing halves.
func (c Cardholder) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// Credential is a physical card assigned to a cardholder.
type Credential struct {
	Base
	Format credential.Format
}

func (Credential) Kind() EntityKind { return KindCredential }

// AccessPoint is one controlled side of a door, i.e. a reader position.
type AccessPoint struct {
	Base
	Side      Side
	RuleGUIDs []uuid.UUID
}

func (AccessPoint) Kind() EntityKind { return KindAccessPoint }

// Door is the access-point group representing the physical door itself.
type Door struct {
	Base
	SiteName string
}

func (Door) Kind() EntityKind { return KindDoor }

// UnitState and RoleState mirror the source system's running-state values.
const (
	StateRunning  = "Running"
	StateStopped  = "Stopped"
	StateDegraded = "Degraded"
)

// Unit is a field controller that readers and doors hang off.
type Unit struct {
	Base
	State     string
	Federated bool
}

func (Unit) Kind() EntityKind { return KindUnit }

// Role is an access-control processing node; events carry a Position scoped
// to exactly one role.
type Role struct {
	Base
	State string
}

func (Role) Kind() EntityKind { return KindRole }

// AccessRule grants a set of cardholders access through a set of access
// points; its name doubles as the access-profile name on exported records.
type AccessRule struct {
	Base
}

func (AccessRule) Kind() EntityKind { return KindAccessRule }
