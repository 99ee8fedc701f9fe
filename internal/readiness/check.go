// Package readiness verifies that the upstream processing nodes and field
// units are operational before extraction starts. Every finding here is
// advisory: degraded components are logged and alerted, never block the run.
package readiness

import (
	"context"
	"time"

	"github.com/veragate-systems/attendance-etl/internal/alert"
	"github.com/veragate-systems/attendance-etl/internal/logging"
	"github.com/veragate-systems/attendance-etl/internal/models"
	"github.com/veragate-systems/attendance-etl/internal/source"
)

// Checker inspects roles and units and reports anything not running.
type Checker struct {
	store    source.EntityStore
	log      *logging.Logger
	notifier alert.Notifier
}

func NewChecker(store source.EntityStore, log *logging.Logger, notifier alert.Notifier) *Checker {
	return &Checker{store: store, log: log, notifier: notifier}
}

// Check queries role and unit entities and emits a structured warning (and a
// NATS advisory when configured) for each degraded component: a role that is
// not running, a unit that is not running, or a running unit that is
// federated from a remote system. It always returns the number of findings;
// query failures are themselves advisory and skip the affected class.
func (c *Checker) Check(ctx context.Context) int {
	findings := 0
	findings += c.checkRoles(ctx)
	findings += c.checkUnits(ctx)
	if findings == 0 {
		c.log.InfoContext(ctx, "all upstream sources operational")
	}
	return findings
}

func (c *Checker) checkRoles(ctx context.Context) int {
	entities, err := c.store.Query(ctx, source.EntityQuery{Kinds: []models.EntityKind{models.KindRole}})
	if err != nil {
		c.log.WarnContext(ctx, "readiness: role query failed, skipping check", logging.Error(err))
		return 0
	}

	findings := 0
	for _, e := range entities {
		role, ok := e.(models.Role)
		if !ok || role.State == models.StateRunning {
			continue
		}
		findings++
		c.log.WarnContext(ctx, "processing node is not running",
			"role", role.Name(), "state", role.State)
		c.notify(ctx, alert.ReadinessAlert{
			Component: "role",
			Name:      role.Name(),
			State:     role.State,
			Time:      time.Now().UTC(),
		})
	}
	return findings
}

func (c *Checker) checkUnits(ctx context.Context) int {
	entities, err := c.store.Query(ctx, source.EntityQuery{Kinds: []models.EntityKind{models.KindUnit}})
	if err != nil {
		c.log.WarnContext(ctx, "readiness: unit query failed, skipping check", logging.Error(err))
		return 0
	}

	findings := 0
	for _, e := range entities {
		unit, ok := e.(models.Unit)
		if !ok {
			continue
		}
		switch {
		case unit.State != models.StateRunning:
			findings++
			c.log.WarnContext(ctx, "field unit is not running",
				"unit", unit.Name(), "state", unit.State)
			c.notify(ctx, alert.ReadinessAlert{
				Component: "unit",
				Name:      unit.Name(),
				State:     unit.State,
				Time:      time.Now().UTC(),
			})
		case unit.Federated:
			// A federated unit is synchronized from a remote system; its
			// events may lag arbitrarily behind wall clock.
			findings++
			c.log.WarnContext(ctx, "running field unit is federated",
				"unit", unit.Name())
			c.notify(ctx, alert.ReadinessAlert{
				Component: "unit",
				Name:      unit.Name(),
				State:     unit.State,
				Federated: true,
				Time:      time.Now().UTC(),
			})
		}
	}
	return findings
}

func (c *Checker) notify(ctx context.Context, a alert.ReadinessAlert) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Publish(ctx, alert.SubjectReadiness, a); err != nil {
		c.log.WarnContext(ctx, "readiness alert publish failed", logging.Error(err))
	}
}
