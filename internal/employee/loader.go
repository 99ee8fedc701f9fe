package employee

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veragate-systems/attendance-etl/internal/sink"
)

const defaultQuery = `SELECT employee_id FROM employees WHERE employee_id IS NOT NULL`

// Loader reads the full snapshot of valid employee identifiers from the HR
// database. A connectivity failure propagates: extraction cannot run safely
// without the reference set when the employee filter is enabled.
type Loader struct {
	pool  *pgxpool.Pool
	query string
}

func NewLoader(pool *pgxpool.Pool, query string) *Loader {
	if query == "" {
		query = defaultQuery
	}
	return &Loader{pool: pool, query: query}
}

// Load runs the snapshot query and returns the identifier set.
func (l *Loader) Load(ctx context.Context) (*Set, error) {
	qctx, cancel := sink.QueryContext(ctx)
	defer cancel()

	rows, err := l.pool.Query(qctx, l.query)
	if err != nil {
		return nil, fmt.Errorf("query employee ids: %w", err)
	}
	defer rows.Close()

	set := NewSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan employee id: %w", err)
		}
		set.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read employee ids: %w", err)
	}
	return set, nil
}
