package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for controller and snapshot persistence.
type Repository interface {
	CreateController(ctx context.Context, c *Controller) error
	GetController(ctx context.Context, id string) (*Controller, error)
	GetControllerByHostID(ctx context.Context, hostID string) (*Controller, error)
	ListControllers(ctx context.Context) ([]Controller, error)
	UpdateController(ctx context.Context, c *Controller) error
	DeleteController(ctx context.Context, id string) error

	CreateSnapshot(ctx context.Context, s *Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
	ListSnapshots(ctx context.Context, controllerID string) ([]Snapshot, error)
	LatestSnapshot(ctx context.Context, controllerID string) (*Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed snapshot repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateController inserts a new controller record.
// An ID is generated if the caller did not supply one.
func (r *SQLiteRepository) CreateController(ctx context.Context, c *Controller) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	const query = `INSERT INTO controllers (id, name, site_name, host_id, model, address, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.SiteName, c.HostID, c.Model, c.Address, c.Notes)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrControllerExists
		}
		return fmt.Errorf("inserting controller %s: %w", c.ID, err)
	}
	return nil
}

// GetController returns a single controller by ID.
func (r *SQLiteRepository) GetController(ctx context.Context, id string) (*Controller, error) {
	const query = `SELECT id, name, site_name, host_id, model, address, notes, created_at, updated_at
		FROM controllers WHERE id = ?`
	return scanController(r.db.QueryRowContext(ctx, query, id))
}

// GetControllerByHostID returns the controller whose vendor host ID matches.
// Host IDs are unique per physical unit, so re-imports land on the same row.
func (r *SQLiteRepository) GetControllerByHostID(ctx context.Context, hostID string) (*Controller, error) {
	const query = `SELECT id, name, site_name, host_id, model, address, notes, created_at, updated_at
		FROM controllers WHERE host_id = ?`
	return scanController(r.db.QueryRowContext(ctx, query, hostID))
}

// ListControllers returns all controllers ordered by name.
func (r *SQLiteRepository) ListControllers(ctx context.Context) ([]Controller, error) {
	const query = `SELECT id, name, site_name, host_id, model, address, notes, created_at, updated_at
		FROM controllers ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying controllers: %w", err)
	}
	defer rows.Close()

	var out []Controller
	for rows.Next() {
		var c Controller
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.SiteName, &c.HostID, &c.Model,
			&c.Address, &c.Notes, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning controller row: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating controller rows: %w", err)
	}
	return out, nil
}

// UpdateController updates an existing controller record.
func (r *SQLiteRepository) UpdateController(ctx context.Context, c *Controller) error {
	const query = `UPDATE controllers SET name = ?, site_name = ?, host_id = ?,
		model = ?, address = ?, notes = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		c.Name, c.SiteName, c.HostID, c.Model, c.Address, c.Notes, c.ID)
	if err != nil {
		return fmt.Errorf("updating controller %s: %w", c.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrControllerNotFound
	}
	return nil
}

// DeleteController removes a controller and, via FK cascade, its snapshots,
// devices, and resource metrics.
func (r *SQLiteRepository) DeleteController(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM controllers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting controller %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrControllerNotFound
	}
	return nil
}

// CreateSnapshot inserts a new snapshot record.
// An ID is generated if the caller did not supply one.
func (r *SQLiteRepository) CreateSnapshot(ctx context.Context, s *Snapshot) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	sections, err := json.Marshal(s.EnabledSections)
	if err != nil {
		sections = []byte("[]")
	}
	const query = `INSERT INTO snapshots (id, controller_id, import_id, payload,
		module_count, filesystem_count, enabled_sections, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.ControllerID, s.ImportID, string(s.Payload),
		s.ModuleCount, s.FilesystemCount, string(sections), s.CreatedBy)
	if err != nil {
		return fmt.Errorf("inserting snapshot %s: %w", s.ID, err)
	}
	return nil
}

// GetSnapshot returns a single snapshot by ID, payload included.
func (r *SQLiteRepository) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	const query = `SELECT id, controller_id, import_id, payload,
		module_count, filesystem_count, enabled_sections, created_by, created_at
		FROM snapshots WHERE id = ?`
	return scanSnapshot(r.db.QueryRowContext(ctx, query, id))
}

// ListSnapshots returns all snapshots for a controller, newest first.
// Payloads are omitted: listings only need the denormalised columns.
func (r *SQLiteRepository) ListSnapshots(ctx context.Context, controllerID string) ([]Snapshot, error) {
	const query = `SELECT id, controller_id, import_id,
		module_count, filesystem_count, enabled_sections, created_by, created_at
		FROM snapshots WHERE controller_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, controllerID)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var sectionsJSON, createdAt string
		if err := rows.Scan(&s.ID, &s.ControllerID, &s.ImportID,
			&s.ModuleCount, &s.FilesystemCount, &sectionsJSON, &s.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		s.EnabledSections = parseSections(sectionsJSON)
		s.CreatedAt = parseTime(createdAt)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}
	return out, nil
}

// LatestSnapshot returns the most recent snapshot for a controller,
// payload included. Returns ErrSnapshotNotFound if none exist.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context, controllerID string) (*Snapshot, error) {
	const query = `SELECT id, controller_id, import_id, payload,
		module_count, filesystem_count, enabled_sections, created_by, created_at
		FROM snapshots WHERE controller_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`
	return scanSnapshot(r.db.QueryRowContext(ctx, query, controllerID))
}

// DeleteSnapshot removes a single snapshot by ID.
func (r *SQLiteRepository) DeleteSnapshot(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

// scanController scans a single row into a Controller.
func scanController(row *sql.Row) (*Controller, error) {
	var c Controller
	var createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.Name, &c.SiteName, &c.HostID, &c.Model,
		&c.Address, &c.Notes, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrControllerNotFound
		}
		return nil, fmt.Errorf("scanning controller: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// scanSnapshot scans a single row (payload included) into a Snapshot.
func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var s Snapshot
	var payload, sectionsJSON, createdAt string

	err := row.Scan(&s.ID, &s.ControllerID, &s.ImportID, &payload,
		&s.ModuleCount, &s.FilesystemCount, &sectionsJSON, &s.CreatedBy, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("scanning snapshot: %w", err)
	}
	s.Payload = []byte(payload)
	s.EnabledSections = parseSections(sectionsJSON)
	s.CreatedAt = parseTime(createdAt)
	return &s, nil
}

// parseSections deserialises the enabled_sections JSON column.
func parseSections(s string) []string {
	if s == "" || s == "[]" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return []string{}
	}
	return out
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
