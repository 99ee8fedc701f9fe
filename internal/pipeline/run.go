package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veragate-systems/attendance-etl/internal/alert"
	"github.com/veragate-systems/attendance-etl/internal/config"
	"github.com/veragate-systems/attendance-etl/internal/employee"
	"github.com/veragate-systems/attendance-etl/internal/extract"
	"github.com/veragate-systems/attendance-etl/internal/logging"
	"github.com/veragate-systems/attendance-etl/internal/models"
	"github.com/veragate-systems/attendance-etl/internal/readiness"
	"github.com/veragate-systems/attendance-etl/internal/resolve"
	"github.com/veragate-systems/attendance-etl/internal/source"
	"github.com/veragate-systems/attendance-etl/internal/transform"
)

// EmployeeSource supplies the employee reference set. The pgx loader
// implements it; tests substitute fixed sets.
type EmployeeSource interface {
	Load(ctx context.Context) (*employee.Set, error)
}

// Runner orchestrates one full extraction run: readiness check,
// reference-data pre-flight, source discovery, pipeline execution, and
// checkpoint persistence.
type Runner struct {
	Cfg       *config.Config
	Store     source.EntityStore
	Querier   source.EventQuerier
	Sink      Sink
	Employees EmployeeSource
	Notifier  alert.Notifier
	Log       *logging.Logger

	// Now is the run clock; overridable in tests.
	Now func() time.Time
}

// Run performs the export. Systemic problems (missing reference data, sink
// failure) return an error; per-event drops and degraded upstream nodes do
// not.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	if r.Now == nil {
		r.Now = time.Now
	}
	runStart := r.Now().UTC()
	ctx = logging.WithRunID(ctx, uuid.NewString())

	readiness.NewChecker(r.Store, r.Log, r.Notifier).Check(ctx)

	employees, err := r.preflight(ctx)
	if err != nil {
		return nil, err
	}

	sources, err := r.discoverSources(ctx)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no processing nodes found, nothing to extract")
	}

	start, end, err := r.Cfg.Window()
	if err != nil {
		return nil, err
	}
	if start == nil && r.Cfg.Export.StateFile != "" {
		st, err := LoadState(r.Cfg.Export.StateFile)
		if err != nil {
			return nil, err
		}
		if st != nil {
			w := st.WatermarkUTC
			start = &w
			r.Log.InfoContext(ctx, "resuming from checkpoint watermark",
				"watermark", w.Format(time.RFC3339))
		}
	}

	types, err := r.Cfg.EventTypes()
	if err != nil {
		return nil, err
	}

	reader := extract.NewReader(r.Querier, sources, extract.Options{
		StartUTC: start,
		EndUTC:   end,
		Types:    types,
		PageSize: r.Cfg.Export.PageSize,
	}, r.Log)

	transformer := transform.New(r.Store, employees, transform.Options{
		EmployeeFilter: r.Cfg.Export.EmployeeFilter,
		EmployeeField:  r.Cfg.Export.EmployeeField,
		RuleFilter:     r.Cfg.Export.AccessRuleFilter,
		RuleName:       r.Cfg.Export.AccessRuleName,
	})

	p := New(reader, resolve.New(r.Store), transformer, r.Sink, Options{
		HydrateBatchSize: r.Cfg.Export.HydrateBatchSize,
		InsertBatchSize:  r.Cfg.Export.InsertBatchSize,
	}, r.Log)

	stats, runErr := p.Run(ctx)
	r.publishStatus(ctx, stats, runErr)
	if runErr != nil {
		return stats, runErr
	}

	if r.Cfg.Export.StateFile != "" {
		if err := SaveState(r.Cfg.Export.StateFile, State{
			WatermarkUTC: runStart,
			LastRunUTC:   r.Now().UTC(),
			LastLoaded:   stats.Loaded(),
		}); err != nil {
			return stats, err
		}
	}

	r.Log.InfoContext(ctx, "export complete", "stats", stats.String())
	return stats, nil
}

// preflight validates the reference data the filters depend on. Without it
// the output would be meaningless, so failures abort the run (fail-fast).
func (r *Runner) preflight(ctx context.Context) (*employee.Set, error) {
	if !r.Cfg.Export.EmployeeFilter {
		return employee.NewSet(), nil
	}

	names, err := r.Store.CustomFieldNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list custom fields: %w", err)
	}
	found := false
	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), r.Cfg.Export.EmployeeField) {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("custom field %q is not defined in the source system", r.Cfg.Export.EmployeeField)
	}

	set, err := r.Employees.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load employee reference set: %w", err)
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("employee reference set is empty, refusing to run with the employee filter enabled")
	}
	r.Log.InfoContext(ctx, "employee reference set loaded", logging.Count(int64(set.Len())))
	return set, nil
}

const discoveryPageSize = 500

// discoverSources lists the processing nodes whose event streams will be
// walked. The listing is paged; when a page still trips the directory's
// result cap the whole listing is retried with a smaller page, since a
// capped entity query does not report which rows were cut.
func (r *Runner) discoverSources(ctx context.Context) ([]uuid.UUID, error) {
	for pageSize := discoveryPageSize; pageSize > 0; pageSize /= 2 {
		sources, err := r.listSources(ctx, pageSize)
		if err == nil {
			return sources, nil
		}
		if !errors.Is(err, source.ErrTooManyResults) {
			return nil, fmt.Errorf("list processing nodes: %w", err)
		}
	}
	return nil, fmt.Errorf("list processing nodes: %w", source.ErrTooManyResults)
}

func (r *Runner) listSources(ctx context.Context, pageSize int) ([]uuid.UUID, error) {
	var sources []uuid.UUID
	for page := 0; ; page++ {
		entities, err := r.Store.Query(ctx, source.EntityQuery{
			Kinds:    []models.EntityKind{models.KindRole},
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			return nil, err
		}
		for _, e := range entities {
			sources = append(sources, e.GUID())
		}
		if len(entities) < pageSize {
			return sources, nil
		}
	}
}

func (r *Runner) publishStatus(ctx context.Context, stats *Stats, runErr error) {
	if r.Notifier == nil {
		return
	}
	status := alert.RunStatus{
		Succeeded: runErr == nil,
		Loaded:    stats.Loaded(),
		Dropped:   stats.Dropped(),
		Time:      r.Now().UTC(),
	}
	if runErr != nil {
		status.Message = runErr.Error()
	}
	if err := r.Notifier.Publish(ctx, alert.SubjectRunStatus, status); err != nil {
		r.Log.WarnContext(ctx, "run status publish failed", logging.Error(err))
	}
}
