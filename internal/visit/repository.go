package visit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for visit and procedure persistence.
type Repository interface {
	CreateVisit(ctx context.Context, v *Visit) error
	GetVisit(ctx context.Context, id string) (*Visit, error)
	ListVisits(ctx context.Context) ([]Visit, error)
	ListVisitsByController(ctx context.Context, controllerID string) ([]Visit, error)
	UpdateVisitStatus(ctx context.Context, id string, to Status) error
	SignOffVisit(ctx context.Context, id, supervisorID string) error
	UpdateVisitNotes(ctx context.Context, id, notes string) error
	DeleteVisit(ctx context.Context, id string) error

	AddChecklistItem(ctx context.Context, item *ChecklistItem) error
	SetChecklistItemDone(ctx context.Context, itemID string, done bool) error

	AddTask(ctx context.Context, task *Task) error
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, notes string) error

	CreateProcedure(ctx context.Context, p *Procedure) error
	GetProcedure(ctx context.Context, id string) (*Procedure, error)
	ListProcedures(ctx context.Context) ([]Procedure, error)
	UpdateProcedure(ctx context.Context, p *Procedure) error
	DeleteProcedure(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed visit repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateVisit inserts a new visit. Status defaults to planned and an ID is
// generated if the caller did not supply one.
func (r *SQLiteRepository) CreateVisit(ctx context.Context, v *Visit) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = StatusPlanned
	}
	if !IsValidStatus(v.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, v.Status)
	}
	const query = `INSERT INTO visits (id, controller_id, technician_id, status, scheduled_for, notes)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.ControllerID, v.TechnicianID, string(v.Status),
		v.ScheduledFor.UTC().Format(time.RFC3339), v.Notes)
	if err != nil {
		return fmt.Errorf("inserting visit %s: %w", v.ID, err)
	}
	return nil
}

// GetVisit returns a visit with its checklist and tasks attached.
func (r *SQLiteRepository) GetVisit(ctx context.Context, id string) (*Visit, error) {
	const query = `SELECT id, controller_id, technician_id, status, scheduled_for,
		notes, signed_off_by, signed_off_at, created_at, updated_at
		FROM visits WHERE id = ?`
	v, err := scanVisit(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	v.Checklist, err = r.checklistFor(ctx, id)
	if err != nil {
		return nil, err
	}
	v.Tasks, err = r.tasksFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListVisits returns all visits, soonest scheduled first.
func (r *SQLiteRepository) ListVisits(ctx context.Context) ([]Visit, error) {
	const query = `SELECT id, controller_id, technician_id, status, scheduled_for,
		notes, signed_off_by, signed_off_at, created_at, updated_at
		FROM visits ORDER BY scheduled_for`
	return r.queryVisits(ctx, query)
}

// ListVisitsByController returns visits for one controller, soonest first.
func (r *SQLiteRepository) ListVisitsByController(ctx context.Context, controllerID string) ([]Visit, error) {
	const query = `SELECT id, controller_id, technician_id, status, scheduled_for,
		notes, signed_off_by, signed_off_at, created_at, updated_at
		FROM visits WHERE controller_id = ? ORDER BY scheduled_for`
	return r.queryVisits(ctx, query, controllerID)
}

// UpdateVisitStatus moves a visit along the status ladder. Sign-off must go
// through SignOffVisit so the supervisor identity is recorded.
func (r *SQLiteRepository) UpdateVisitStatus(ctx context.Context, id string, to Status) error {
	if !IsValidStatus(to) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	current, err := r.currentStatus(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(current, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
	}

	const query = `UPDATE visits SET status = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, string(to), id); err != nil {
		return fmt.Errorf("updating visit %s status: %w", id, err)
	}
	return nil
}

// SignOffVisit marks a complete visit as signed off by a supervisor.
func (r *SQLiteRepository) SignOffVisit(ctx context.Context, id, supervisorID string) error {
	current, err := r.currentStatus(ctx, id)
	if err != nil {
		return err
	}
	if current != StatusComplete {
		return fmt.Errorf("%w: status is %s", ErrNotComplete, current)
	}

	const query = `UPDATE visits SET status = ?, signed_off_by = ?,
		signed_off_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now'),
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, string(StatusSignedOff), supervisorID, id); err != nil {
		return fmt.Errorf("signing off visit %s: %w", id, err)
	}
	return nil
}

// UpdateVisitNotes replaces the visit notes.
func (r *SQLiteRepository) UpdateVisitNotes(ctx context.Context, id, notes string) error {
	const query = `UPDATE visits SET notes = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, notes, id)
	if err != nil {
		return fmt.Errorf("updating visit %s notes: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrVisitNotFound
	}
	return nil
}

// DeleteVisit removes a visit and, via FK cascade, its checklist and tasks.
func (r *SQLiteRepository) DeleteVisit(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM visits WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting visit %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrVisitNotFound
	}
	return nil
}

// AddChecklistItem appends a preparation step to a visit.
func (r *SQLiteRepository) AddChecklistItem(ctx context.Context, item *ChecklistItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	const query = `INSERT INTO visit_checklist_items (id, visit_id, label, done, sort_order)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.VisitID, item.Label, boolToInt(item.Done), item.SortOrder)
	if err != nil {
		return fmt.Errorf("inserting checklist item %s: %w", item.ID, err)
	}
	return nil
}

// SetChecklistItemDone toggles a checklist item.
func (r *SQLiteRepository) SetChecklistItemDone(ctx context.Context, itemID string, done bool) error {
	const query = `UPDATE visit_checklist_items SET done = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, boolToInt(done), itemID)
	if err != nil {
		return fmt.Errorf("updating checklist item %s: %w", itemID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

// AddTask appends an on-site task to a visit.
func (r *SQLiteRepository) AddTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = TaskPending
	}
	if !IsValidTaskStatus(task.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, task.Status)
	}
	const query = `INSERT INTO visit_tasks (id, visit_id, title, procedure_id, status, notes, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.VisitID, task.Title, task.ProcedureID,
		string(task.Status), task.Notes, task.SortOrder)
	if err != nil {
		return fmt.Errorf("inserting task %s: %w", task.ID, err)
	}
	return nil
}

// UpdateTaskStatus records the outcome of a task.
func (r *SQLiteRepository) UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, notes string) error {
	if !IsValidTaskStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	const query = `UPDATE visit_tasks SET status = ?, notes = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, string(status), notes, taskID)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", taskID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// CreateProcedure inserts a new SOP document at version 1.
func (r *SQLiteRepository) CreateProcedure(ctx context.Context, p *Procedure) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Version == 0 {
		p.Version = 1
	}
	const query = `INSERT INTO procedures (id, title, system, body, version, created_by)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Title, p.System, p.Body, p.Version, p.CreatedBy)
	if err != nil {
		return fmt.Errorf("inserting procedure %s: %w", p.ID, err)
	}
	return nil
}

// GetProcedure returns a single procedure by ID.
func (r *SQLiteRepository) GetProcedure(ctx context.Context, id string) (*Procedure, error) {
	const query = `SELECT id, title, system, body, version, created_by, created_at, updated_at
		FROM procedures WHERE id = ?`
	var p Procedure
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Title, &p.System, &p.Body, &p.Version, &p.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProcedureNotFound
		}
		return nil, fmt.Errorf("scanning procedure: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// ListProcedures returns all procedures ordered by system then title.
// Bodies are included: the library is small and screens need them.
func (r *SQLiteRepository) ListProcedures(ctx context.Context) ([]Procedure, error) {
	const query = `SELECT id, title, system, body, version, created_by, created_at, updated_at
		FROM procedures ORDER BY system, title`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying procedures: %w", err)
	}
	defer rows.Close()

	var out []Procedure
	for rows.Next() {
		var p Procedure
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Title, &p.System, &p.Body, &p.Version,
			&p.CreatedBy, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning procedure row: %w", err)
		}
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating procedure rows: %w", err)
	}
	return out, nil
}

// UpdateProcedure replaces a procedure's content and bumps its version.
func (r *SQLiteRepository) UpdateProcedure(ctx context.Context, p *Procedure) error {
	const query = `UPDATE procedures SET title = ?, system = ?, body = ?,
		version = version + 1,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, p.Title, p.System, p.Body, p.ID)
	if err != nil {
		return fmt.Errorf("updating procedure %s: %w", p.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrProcedureNotFound
	}
	return nil
}

// DeleteProcedure removes a procedure. procedure_id on tasks is a loose
// reference, so existing tasks keep the ID for their records.
func (r *SQLiteRepository) DeleteProcedure(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM procedures WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting procedure %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrProcedureNotFound
	}
	return nil
}

// currentStatus reads a visit's status, mapping missing rows to
// ErrVisitNotFound.
func (r *SQLiteRepository) currentStatus(ctx context.Context, id string) (Status, error) {
	var s string
	err := r.db.QueryRowContext(ctx, "SELECT status FROM visits WHERE id = ?", id).Scan(&s)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrVisitNotFound
		}
		return "", fmt.Errorf("reading visit %s status: %w", id, err)
	}
	return Status(s), nil
}

// checklistFor loads a visit's checklist ordered by sort order.
func (r *SQLiteRepository) checklistFor(ctx context.Context, visitID string) ([]ChecklistItem, error) {
	const query = `SELECT id, visit_id, label, done, sort_order, updated_at
		FROM visit_checklist_items WHERE visit_id = ? ORDER BY sort_order, id`
	rows, err := r.db.QueryContext(ctx, query, visitID)
	if err != nil {
		return nil, fmt.Errorf("querying checklist: %w", err)
	}
	defer rows.Close()

	items := []ChecklistItem{}
	for rows.Next() {
		var item ChecklistItem
		var done int
		var updatedAt string
		if err := rows.Scan(&item.ID, &item.VisitID, &item.Label, &done,
			&item.SortOrder, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning checklist row: %w", err)
		}
		item.Done = done != 0
		item.UpdatedAt = parseTime(updatedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating checklist rows: %w", err)
	}
	return items, nil
}

// tasksFor loads a visit's tasks ordered by sort order.
func (r *SQLiteRepository) tasksFor(ctx context.Context, visitID string) ([]Task, error) {
	const query = `SELECT id, visit_id, title, procedure_id, status, notes, sort_order, updated_at
		FROM visit_tasks WHERE visit_id = ? ORDER BY sort_order, id`
	rows, err := r.db.QueryContext(ctx, query, visitID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		var task Task
		var status, updatedAt string
		if err := rows.Scan(&task.ID, &task.VisitID, &task.Title, &task.ProcedureID,
			&status, &task.Notes, &task.SortOrder, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		task.Status = TaskStatus(status)
		task.UpdatedAt = parseTime(updatedAt)
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task rows: %w", err)
	}
	return tasks, nil
}

// queryVisits executes a query and returns a slice of Visit (no children).
func (r *SQLiteRepository) queryVisits(ctx context.Context, query string, args ...any) ([]Visit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying visits: %w", err)
	}
	defer rows.Close()

	var out []Visit
	for rows.Next() {
		v, err := scanVisitRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating visit rows: %w", err)
	}
	return out, nil
}

// scanVisit scans a single row into a Visit (for QueryRow).
func scanVisit(row *sql.Row) (*Visit, error) {
	var v Visit
	var status, scheduledFor, createdAt, updatedAt string
	var signedOffBy, signedOffAt sql.NullString

	err := row.Scan(&v.ID, &v.ControllerID, &v.TechnicianID, &status, &scheduledFor,
		&v.Notes, &signedOffBy, &signedOffAt, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrVisitNotFound
		}
		return nil, fmt.Errorf("scanning visit: %w", err)
	}
	fillVisit(&v, status, scheduledFor, createdAt, updatedAt, signedOffBy, signedOffAt)
	return &v, nil
}

// scanVisitRow scans a visit from a Rows cursor.
func scanVisitRow(rows *sql.Rows) (*Visit, error) {
	var v Visit
	var status, scheduledFor, createdAt, updatedAt string
	var signedOffBy, signedOffAt sql.NullString

	err := rows.Scan(&v.ID, &v.ControllerID, &v.TechnicianID, &status, &scheduledFor,
		&v.Notes, &signedOffBy, &signedOffAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning visit row: %w", err)
	}
	fillVisit(&v, status, scheduledFor, createdAt, updatedAt, signedOffBy, signedOffAt)
	return &v, nil
}

// fillVisit converts scanned column values onto a Visit.
func fillVisit(v *Visit, status, scheduledFor, createdAt, updatedAt string, signedOffBy, signedOffAt sql.NullString) {
	v.Status = Status(status)
	v.ScheduledFor = parseTime(scheduledFor)
	v.CreatedAt = parseTime(createdAt)
	v.UpdatedAt = parseTime(updatedAt)
	if signedOffBy.Valid {
		v.SignedOffBy = signedOffBy.String
	}
	if signedOffAt.Valid {
		t := parseTime(signedOffAt.String)
		v.SignedOffAt = &t
	}
}

// boolToInt converts a bool to SQLite's 0/1 integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
