package visit

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the visit schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "visit-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE visits (
			id TEXT PRIMARY KEY,
			controller_id TEXT NOT NULL,
			technician_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'planned',
			scheduled_for TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			signed_off_by TEXT,
			signed_off_at TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE visit_checklist_items (
			id TEXT PRIMARY KEY,
			visit_id TEXT NOT NULL,
			label TEXT NOT NULL,
			done INTEGER NOT NULL DEFAULT 0,
			sort_order INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (visit_id) REFERENCES visits(id) ON DELETE CASCADE
		) STRICT;

		CREATE TABLE visit_tasks (
			id TEXT PRIMARY KEY,
			visit_id TEXT NOT NULL,
			title TEXT NOT NULL,
			procedure_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			notes TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (visit_id) REFERENCES visits(id) ON DELETE CASCADE
		) STRICT;

		CREATE TABLE procedures (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			system TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			created_by TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	return db
}

func seedVisit(t *testing.T, repo *SQLiteRepository) *Visit {
	t.Helper()
	v := &Visit{
		ControllerID: "ctl-1",
		TechnicianID: "usr-tech",
		ScheduledFor: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := repo.CreateVisit(context.Background(), v); err != nil {
		t.Fatalf("creating visit: %v", err)
	}
	return v
}

func TestVisitLifecycle(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	v := seedVisit(t, repo)
	if v.Status != StatusPlanned {
		t.Errorf("new visit status = %s, want planned", v.Status)
	}

	if err := repo.UpdateVisitStatus(ctx, v.ID, StatusInProgress); err != nil {
		t.Fatalf("planned -> in_progress: %v", err)
	}
	if err := repo.UpdateVisitStatus(ctx, v.ID, StatusComplete); err != nil {
		t.Fatalf("in_progress -> complete: %v", err)
	}
	if err := repo.SignOffVisit(ctx, v.ID, "usr-supervisor"); err != nil {
		t.Fatalf("SignOffVisit() error = %v", err)
	}

	got, err := repo.GetVisit(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetVisit() error = %v", err)
	}
	if got.Status != StatusSignedOff {
		t.Errorf("status = %s, want signed_off", got.Status)
	}
	if got.SignedOffBy != "usr-supervisor" {
		t.Errorf("SignedOffBy = %q", got.SignedOffBy)
	}
	if got.SignedOffAt == nil {
		t.Error("SignedOffAt should be set")
	}
}

func TestUpdateVisitStatus_RejectsSkips(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	v := seedVisit(t, repo)

	if err := repo.UpdateVisitStatus(ctx, v.ID, StatusComplete); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("planned -> complete error = %v, want ErrInvalidTransition", err)
	}
	if err := repo.UpdateVisitStatus(ctx, v.ID, Status("cancelled")); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("unknown status error = %v, want ErrInvalidStatus", err)
	}
	if err := repo.UpdateVisitStatus(ctx, "missing", StatusInProgress); !errors.Is(err, ErrVisitNotFound) {
		t.Errorf("missing visit error = %v, want ErrVisitNotFound", err)
	}
}

func TestSignOffVisit_RequiresComplete(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	v := seedVisit(t, repo)
	err := repo.SignOffVisit(context.Background(), v.ID, "usr-supervisor")
	if !errors.Is(err, ErrNotComplete) {
		t.Errorf("sign-off of planned visit error = %v, want ErrNotComplete", err)
	}
}

func TestChecklistAndTasks(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	v := seedVisit(t, repo)

	items := []string{"Print latest snapshot", "Check spare SD card", "Confirm site access"}
	for i, label := range items {
		item := &ChecklistItem{VisitID: v.ID, Label: label, SortOrder: i}
		if err := repo.AddChecklistItem(ctx, item); err != nil {
			t.Fatalf("AddChecklistItem(%q) error = %v", label, err)
		}
	}

	task := &Task{VisitID: v.ID, Title: "Replace RTC battery", ProcedureID: "proc-battery"}
	if err := repo.AddTask(ctx, task); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	got, err := repo.GetVisit(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetVisit() error = %v", err)
	}
	if len(got.Checklist) != 3 {
		t.Fatalf("checklist has %d items, want 3", len(got.Checklist))
	}
	if got.Checklist[0].Label != "Print latest snapshot" {
		t.Errorf("checklist order wrong: %q first", got.Checklist[0].Label)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].Status != TaskPending {
		t.Fatalf("tasks = %+v, want one pending task", got.Tasks)
	}

	if err := repo.SetChecklistItemDone(ctx, got.Checklist[0].ID, true); err != nil {
		t.Fatalf("SetChecklistItemDone() error = %v", err)
	}
	if err := repo.UpdateTaskStatus(ctx, task.ID, TaskDone, "replaced, voltage ok"); err != nil {
		t.Fatalf("UpdateTaskStatus() error = %v", err)
	}

	got, _ = repo.GetVisit(ctx, v.ID)
	if !got.Checklist[0].Done {
		t.Error("first checklist item should be done")
	}
	if got.Tasks[0].Status != TaskDone || got.Tasks[0].Notes != "replaced, voltage ok" {
		t.Errorf("task after update = %+v", got.Tasks[0])
	}

	if err := repo.SetChecklistItemDone(ctx, "missing", true); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("missing item error = %v, want ErrItemNotFound", err)
	}
	if err := repo.UpdateTaskStatus(ctx, "missing", TaskDone, ""); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("missing task error = %v, want ErrTaskNotFound", err)
	}
}

func TestDeleteVisit_CascadesChildren(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	v := seedVisit(t, repo)
	item := &ChecklistItem{VisitID: v.ID, Label: "Prep"}
	if err := repo.AddChecklistItem(ctx, item); err != nil {
		t.Fatalf("AddChecklistItem() error = %v", err)
	}

	if err := repo.DeleteVisit(ctx, v.ID); err != nil {
		t.Fatalf("DeleteVisit() error = %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM visit_checklist_items").Scan(&count); err != nil {
		t.Fatalf("counting items: %v", err)
	}
	if count != 0 {
		t.Errorf("checklist items should cascade, %d remain", count)
	}
}

func TestListVisitsByController(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	later := &Visit{ControllerID: "ctl-1", ScheduledFor: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)}
	sooner := &Visit{ControllerID: "ctl-1", ScheduledFor: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)}
	other := &Visit{ControllerID: "ctl-2", ScheduledFor: time.Date(2026, 9, 15, 8, 0, 0, 0, time.UTC)}
	for _, v := range []*Visit{later, sooner, other} {
		if err := repo.CreateVisit(ctx, v); err != nil {
			t.Fatalf("CreateVisit() error = %v", err)
		}
	}

	visits, err := repo.ListVisitsByController(ctx, "ctl-1")
	if err != nil {
		t.Fatalf("ListVisitsByController() error = %v", err)
	}
	if len(visits) != 2 {
		t.Fatalf("have %d visits, want 2", len(visits))
	}
	if visits[0].ID != sooner.ID {
		t.Error("visits should be ordered soonest first")
	}

	all, err := repo.ListVisits(ctx)
	if err != nil {
		t.Fatalf("ListVisits() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListVisits returned %d, want 3", len(all))
	}
}

func TestProcedureCRUD(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	p := &Procedure{
		Title:     "RTC battery replacement",
		System:    "JACE-8000",
		Body:      "1. Power down the unit.\n2. Remove the cover.\n3. Swap the CR2032 cell.",
		CreatedBy: "usr-supervisor",
	}
	if err := repo.CreateProcedure(ctx, p); err != nil {
		t.Fatalf("CreateProcedure() error = %v", err)
	}
	if p.Version != 1 {
		t.Errorf("new procedure version = %d, want 1", p.Version)
	}

	got, err := repo.GetProcedure(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProcedure() error = %v", err)
	}
	if got.Title != p.Title {
		t.Errorf("Title = %q", got.Title)
	}

	got.Body += "\n4. Verify the clock after boot."
	if err := repo.UpdateProcedure(ctx, got); err != nil {
		t.Fatalf("UpdateProcedure() error = %v", err)
	}
	updated, _ := repo.GetProcedure(ctx, p.ID)
	if updated.Version != 2 {
		t.Errorf("version after update = %d, want 2", updated.Version)
	}

	list, err := repo.ListProcedures(ctx)
	if err != nil {
		t.Fatalf("ListProcedures() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListProcedures returned %d, want 1", len(list))
	}

	if err := repo.DeleteProcedure(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProcedure() error = %v", err)
	}
	if _, err := repo.GetProcedure(ctx, p.ID); !errors.Is(err, ErrProcedureNotFound) {
		t.Errorf("GetProcedure after delete error = %v, want ErrProcedureNotFound", err)
	}
}
