// Package seeder builds a synthetic access-control fleet and event history
// for previews and volume tests, backed by the in-memory source store.
package seeder

import (
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/veragate-systems/attendance-etl/internal/credential"
	"github.com/veragate-systems/attendance-etl/internal/models"
	"github.com/veragate-systems/attendance-etl/internal/source"
)

// Options size the synthetic fleet.
type Options struct {
	Sources     int
	Units       int
	Doors       int
	Cardholders int
	Events      int           // total, spread round-robin across sources
	TimeSpread  time.Duration // events are placed going backwards from now
	Seed        int64
}

func DefaultOptions() Options {
	return Options{
		Sources:     2,
		Units:       4,
		Doors:       6,
		Cardholders: 25,
		Events:      500,
		TimeSpread:  24 * time.Hour,
	}
}

// Fleet is the generated world plus the handles tests and the seed command
// need to drive a pipeline over it.
type Fleet struct {
	Store       *source.MemoryStore
	SourceIDs   []uuid.UUID
	EmployeeIDs []string
	RuleNames   []string
}

// Generate builds a fleet. All credential formats are represented so badge
// decoding paths get exercised.
func Generate(opts Options) *Fleet {
	if opts.Seed != 0 {
		gofakeit.Seed(opts.Seed)
	}
	rng := rand.New(rand.NewSource(opts.Seed + 1))
	store := source.NewMemoryStore()
	fleet := &Fleet{Store: store}

	store.SetCustomFields("Employee Number", "Department")

	for range opts.Sources {
		role := models.Role{
			Base:  models.Base{ID: uuid.New(), DisplayName: "Access Manager " + gofakeit.City()},
			State: models.StateRunning,
		}
		store.AddEntity(role)
		fleet.SourceIDs = append(fleet.SourceIDs, role.ID)
	}

	for range opts.Units {
		store.AddEntity(models.Unit{
			Base:  models.Base{ID: uuid.New(), DisplayName: "Unit " + gofakeit.StreetName()},
			State: models.StateRunning,
		})
	}

	rule := models.AccessRule{
		Base: models.Base{ID: uuid.New(), DisplayName: "All Employees"},
	}
	store.AddEntity(rule)
	fleet.RuleNames = append(fleet.RuleNames, rule.DisplayName)

	type doorway struct {
		door  uuid.UUID
		point uuid.UUID
	}
	var doorways []doorway
	sides := []models.Side{models.SideAlpha, models.SideOmega}
	for i := range opts.Doors {
		door := models.Door{
			Base:     models.Base{ID: uuid.New(), DisplayName: gofakeit.Company() + " Door"},
			SiteName: gofakeit.City(),
		}
		store.AddEntity(door)
		point := models.AccessPoint{
			Base:      models.Base{ID: uuid.New(), DisplayName: door.DisplayName + " Reader"},
			Side:      sides[i%len(sides)],
			RuleGUIDs: []uuid.UUID{rule.ID},
		}
		store.AddEntity(point)
		doorways = append(doorways, doorway{door: door.ID, point: point.ID})
	}

	type badge struct {
		cardholder uuid.UUID
		credential uuid.UUID
	}
	var badges []badge
	for i := range opts.Cardholders {
		employeeID := gofakeit.Numerify("EMP-#####")
		ch := models.Cardholder{
			Base:      models.Base{ID: uuid.New(), DisplayName: gofakeit.Name()},
			FirstName: gofakeit.FirstName(),
			LastName:  gofakeit.LastName(),
			CustomFields: map[string]string{
				"Employee Number": employeeID,
				"Department":      gofakeit.JobTitle(),
			},
		}
		store.AddEntity(ch)
		fleet.EmployeeIDs = append(fleet.EmployeeIDs, employeeID)

		cred := models.Credential{
			Base:   models.Base{ID: uuid.New(), DisplayName: "Badge " + employeeID},
			Format: formatFor(i, rng),
		}
		store.AddEntity(cred)
		badges = append(badges, badge{cardholder: ch.ID, credential: cred.ID})
	}

	now := time.Now().UTC()
	positions := make(map[uuid.UUID]int64, len(fleet.SourceIDs))
	for i := range opts.Events {
		sourceID := fleet.SourceIDs[i%len(fleet.SourceIDs)]
		positions[sourceID]++
		b := badges[rng.Intn(len(badges))]
		d := doorways[rng.Intn(len(doorways))]
		ts := eventTime(now, opts.TimeSpread, i, opts.Events, rng)

		store.AddEvents(sourceID, models.RawEvent{
			AccessPointGUID: d.point,
			CredentialGUID:  b.credential,
			CardholderGUID:  b.cardholder,
			DoorGUID:        d.door,
			Period:          models.PeriodOnline,
			SourceID:        sourceID,
			Position:        positions[sourceID],
			InsertedUTC:     ts,
			Timestamp:       ts,
			Type:            models.EventAccessGranted,
			TimeZone:        "America/New_York",
		})
	}

	return fleet
}

// formatFor cycles through every supported credential format.
func formatFor(i int, rng *rand.Rand) credential.Format {
	switch i % 7 {
	case 0:
		return credential.WiegandStandard{FacilityCode: uint8(rng.Intn(256)), CardID: uint16(rng.Intn(65536))}
	case 1:
		return credential.WiegandH10302{CardID: uint64(rng.Int63n(1 << 35))}
	case 2:
		return credential.WiegandH10304{FacilityCode: uint16(rng.Intn(1 << 16)), CardID: uint32(rng.Int31())}
	case 3:
		return credential.WiegandH10306{FacilityCode: uint16(rng.Intn(1 << 16)), CardID: uint32(rng.Int31())}
	case 4:
		return credential.Corporate1000{CompanyID: uint32(rng.Intn(1 << 12)), CardID: uint32(rng.Int31())}
	case 5:
		return credential.Corporate1000x48{CompanyID: uint32(rng.Intn(1 << 22)), CardID: uint64(rng.Int63n(1 << 23))}
	default:
		return credential.CSN32{CardID: rng.Uint32()}
	}
}

// eventTime spaces events across the window with jitter, going backwards
// from now.
func eventTime(now time.Time, spread time.Duration, index, total int, rng *rand.Rand) time.Time {
	if spread <= 0 || total <= 0 {
		return now
	}
	baseInterval := float64(spread) / float64(total)
	baseOffset := time.Duration(float64(index) * baseInterval)

	jitterRange := baseInterval * 0.4
	jitter := time.Duration((rng.Float64()*2.0 - 1.0) * jitterRange)

	totalOffset := baseOffset + jitter
	if totalOffset < 0 {
		totalOffset = 0
	}
	if totalOffset > spread {
		totalOffset = spread
	}
	return now.Add(-(spread - totalOffset))
}
