package resource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldline/stationpm/internal/ingest/niagara"
)

// Repository defines the interface for resource metric persistence.
type Repository interface {
	UpsertLatest(ctx context.Context, controllerID string, metrics []niagara.ResourceMetric, capturedAt time.Time) (int, error)
	ListByController(ctx context.Context, controllerID string) ([]Metric, error)
	DeleteByController(ctx context.Context, controllerID string) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed resource repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// UpsertLatest replaces the stored value of each metric in a single
// transaction, keyed by controller and metric name. Returns the number of
// metrics written.
func (r *SQLiteRepository) UpsertLatest(ctx context.Context, controllerID string, metrics []niagara.ResourceMetric, capturedAt time.Time) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning metric transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const query = `INSERT INTO resource_metrics
		(controller_id, name, value, unit, limit_value, raw, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (controller_id, name) DO UPDATE SET
			value = excluded.value,
			unit = excluded.unit,
			limit_value = excluded.limit_value,
			raw = excluded.raw,
			captured_at = excluded.captured_at`

	written := 0
	for _, m := range metrics {
		if m.Name == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, query,
			controllerID, m.Name, m.Value, m.Unit, nullFloat(m.Limit), m.Raw,
			capturedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return 0, fmt.Errorf("upserting metric %q: %w", m.Name, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing metric transaction: %w", err)
	}
	return written, nil
}

// ListByController returns the latest metrics for a controller ordered by name.
func (r *SQLiteRepository) ListByController(ctx context.Context, controllerID string) ([]Metric, error) {
	const query = `SELECT controller_id, name, value, unit, limit_value, raw, captured_at
		FROM resource_metrics WHERE controller_id = ? ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, controllerID)
	if err != nil {
		return nil, fmt.Errorf("querying resource metrics: %w", err)
	}
	defer rows.Close()

	var out []Metric
	for rows.Next() {
		var m Metric
		var limit sql.NullFloat64
		var capturedAt string
		if err := rows.Scan(&m.ControllerID, &m.Name, &m.Value, &m.Unit,
			&limit, &m.Raw, &capturedAt); err != nil {
			return nil, fmt.Errorf("scanning metric row: %w", err)
		}
		if limit.Valid {
			m.Limit = &limit.Float64
		}
		m.CapturedAt = parseTime(capturedAt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating metric rows: %w", err)
	}
	return out, nil
}

// DeleteByController removes all metrics for a controller.
// Returns the number of rows deleted.
func (r *SQLiteRepository) DeleteByController(ctx context.Context, controllerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM resource_metrics WHERE controller_id = ?", controllerID)
	if err != nil {
		return 0, fmt.Errorf("deleting metrics for controller %s: %w", controllerID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	return n, nil
}

// nullFloat converts a *float64 to sql.NullFloat64 for nullable columns.
func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
