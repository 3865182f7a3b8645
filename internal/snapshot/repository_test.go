package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the controller and
// snapshot schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "snapshot-test-*.db")
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
		CREATE TABLE controllers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			site_name TEXT NOT NULL DEFAULT '',
			host_id TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE INDEX idx_controllers_host ON controllers(host_id);

		CREATE TABLE snapshots (
			id TEXT PRIMARY KEY,
			controller_id TEXT NOT NULL,
			import_id TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL,
			module_count INTEGER NOT NULL DEFAULT 0,
			filesystem_count INTEGER NOT NULL DEFAULT 0,
			enabled_sections TEXT NOT NULL DEFAULT '[]',
			created_by TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (controller_id) REFERENCES controllers(id) ON DELETE CASCADE
		) STRICT;

		CREATE INDEX idx_snapshots_controller ON snapshots(controller_id, created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	return db
}

func seedController(t *testing.T, repo *SQLiteRepository, name, hostID string) *Controller {
	t.Helper()
	c := &Controller{Name: name, SiteName: "Depot North", HostID: hostID, Model: "TITAN"}
	if err := repo.CreateController(context.Background(), c); err != nil {
		t.Fatalf("creating controller %s: %v", name, err)
	}
	return c
}

func TestControllerCRUD(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	c := seedController(t, repo, "AHU Plant JACE", "Qnx-TITAN-0000-1111")
	if c.ID == "" {
		t.Fatal("CreateController should generate an ID")
	}

	got, err := repo.GetController(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetController() error = %v", err)
	}
	if got.Name != "AHU Plant JACE" {
		t.Errorf("Name = %q, want %q", got.Name, "AHU Plant JACE")
	}
	if got.HostID != "Qnx-TITAN-0000-1111" {
		t.Errorf("HostID = %q, want %q", got.HostID, "Qnx-TITAN-0000-1111")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	byHost, err := repo.GetControllerByHostID(ctx, "Qnx-TITAN-0000-1111")
	if err != nil {
		t.Fatalf("GetControllerByHostID() error = %v", err)
	}
	if byHost.ID != c.ID {
		t.Errorf("host lookup returned %s, want %s", byHost.ID, c.ID)
	}

	got.Notes = "battery replaced 2026-02"
	if err := repo.UpdateController(ctx, got); err != nil {
		t.Fatalf("UpdateController() error = %v", err)
	}
	updated, _ := repo.GetController(ctx, c.ID)
	if updated.Notes != "battery replaced 2026-02" {
		t.Errorf("Notes = %q after update", updated.Notes)
	}

	if err := repo.DeleteController(ctx, c.ID); err != nil {
		t.Fatalf("DeleteController() error = %v", err)
	}
	if _, err := repo.GetController(ctx, c.ID); !errors.Is(err, ErrControllerNotFound) {
		t.Errorf("GetController after delete error = %v, want ErrControllerNotFound", err)
	}
}

func TestCreateController_DuplicateName(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	seedController(t, repo, "Boiler JACE", "host-a")
	err := repo.CreateController(context.Background(), &Controller{Name: "Boiler JACE"})
	if !errors.Is(err, ErrControllerExists) {
		t.Errorf("duplicate create error = %v, want ErrControllerExists", err)
	}
}

func TestControllerNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if _, err := repo.GetController(ctx, "missing"); !errors.Is(err, ErrControllerNotFound) {
		t.Errorf("GetController error = %v, want ErrControllerNotFound", err)
	}
	if err := repo.UpdateController(ctx, &Controller{ID: "missing"}); !errors.Is(err, ErrControllerNotFound) {
		t.Errorf("UpdateController error = %v, want ErrControllerNotFound", err)
	}
	if err := repo.DeleteController(ctx, "missing"); !errors.Is(err, ErrControllerNotFound) {
		t.Errorf("DeleteController error = %v, want ErrControllerNotFound", err)
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	c := seedController(t, repo, "Chiller JACE", "host-chiller")

	payload := []byte(`{"summary":{"host_id":"host-chiller","model":"TITAN"},"modules":[],"filesystems":[],"applications":[],"licenses":[],"station":{}}`)
	s := &Snapshot{
		ControllerID:    c.ID,
		ImportID:        "imp-001",
		Payload:         payload,
		ModuleCount:     212,
		FilesystemCount: 2,
		EnabledSections: []string{"summary", "modules"},
		CreatedBy:       "usr-tech",
	}
	if err := repo.CreateSnapshot(ctx, s); err != nil {
		t.Fatalf("CreateSnapshot() error = %v", err)
	}
	if s.ID == "" {
		t.Fatal("CreateSnapshot should generate an ID")
	}

	got, err := repo.GetSnapshot(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if got.ModuleCount != 212 || got.FilesystemCount != 2 {
		t.Errorf("counts = %d/%d, want 212/2", got.ModuleCount, got.FilesystemCount)
	}
	if len(got.EnabledSections) != 2 {
		t.Errorf("EnabledSections = %v, want 2 entries", got.EnabledSections)
	}

	// Stored payload should decode through the legacy-shape adapter
	data, err := got.Platform()
	if err != nil {
		t.Fatalf("Platform() error = %v", err)
	}
	if data.Summary.HostID != "host-chiller" {
		t.Errorf("decoded HostID = %q", data.Summary.HostID)
	}

	list, err := repo.ListSnapshots(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListSnapshots returned %d rows, want 1", len(list))
	}
	if len(list[0].Payload) != 0 {
		t.Error("listing should not carry payloads")
	}

	latest, err := repo.LatestSnapshot(ctx, c.ID)
	if err != nil {
		t.Fatalf("LatestSnapshot() error = %v", err)
	}
	if latest.ID != s.ID {
		t.Errorf("LatestSnapshot = %s, want %s", latest.ID, s.ID)
	}

	if err := repo.DeleteSnapshot(ctx, s.ID); err != nil {
		t.Fatalf("DeleteSnapshot() error = %v", err)
	}
	if _, err := repo.GetSnapshot(ctx, s.ID); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("GetSnapshot after delete error = %v, want ErrSnapshotNotFound", err)
	}
}

func TestLatestSnapshot_PicksNewest(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	c := seedController(t, repo, "Roof JACE", "host-roof")

	first := &Snapshot{ControllerID: c.ID, Payload: []byte(`{"summary":{"host_id":"a"}}`)}
	second := &Snapshot{ControllerID: c.ID, Payload: []byte(`{"summary":{"host_id":"b"}}`)}
	if err := repo.CreateSnapshot(ctx, first); err != nil {
		t.Fatalf("creating first snapshot: %v", err)
	}
	if err := repo.CreateSnapshot(ctx, second); err != nil {
		t.Fatalf("creating second snapshot: %v", err)
	}

	// Both rows land in the same created_at second; backdate the first
	// so the ordering is deterministic.
	if _, err := db.Exec(`UPDATE snapshots SET created_at = '2026-01-01T00:00:00Z' WHERE id = ?`, first.ID); err != nil {
		t.Fatalf("backdating first snapshot: %v", err)
	}

	latest, err := repo.LatestSnapshot(ctx, c.ID)
	if err != nil {
		t.Fatalf("LatestSnapshot() error = %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("LatestSnapshot = %s, want %s", latest.ID, second.ID)
	}
}

func TestDeleteController_CascadesSnapshots(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	c := seedController(t, repo, "Basement JACE", "host-basement")
	s := &Snapshot{ControllerID: c.ID, Payload: []byte(`{}`)}
	if err := repo.CreateSnapshot(ctx, s); err != nil {
		t.Fatalf("creating snapshot: %v", err)
	}

	if err := repo.DeleteController(ctx, c.ID); err != nil {
		t.Fatalf("DeleteController() error = %v", err)
	}

	if _, err := repo.GetSnapshot(ctx, s.ID); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("snapshot should cascade on controller delete, got %v", err)
	}
}
