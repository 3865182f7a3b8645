package resource

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fieldline/stationpm/internal/ingest/niagara"
)

// testDB creates a temporary SQLite database with the resource_metrics
// schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "resource-test-*.db")
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
		CREATE TABLE resource_metrics (
			controller_id TEXT NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL DEFAULT 0,
			unit TEXT NOT NULL DEFAULT '',
			limit_value REAL,
			raw TEXT NOT NULL DEFAULT '',
			captured_at TEXT NOT NULL,
			PRIMARY KEY (controller_id, name)
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	return db
}

func TestUpsertLatest_ReplacesValues(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	limit := 5000.0
	first := []niagara.ResourceMetric{
		{Name: "heap.used", Value: 371, Unit: "MB", Raw: "371 MB"},
		{Name: "globalCapacity.points", Value: 1250, Limit: &limit, Raw: "1,250 (Limit: 5,000)"},
	}
	n, err := repo.UpsertLatest(ctx, "ctl-1", first, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("UpsertLatest() error = %v", err)
	}
	if n != 2 {
		t.Errorf("wrote %d metrics, want 2", n)
	}

	second := []niagara.ResourceMetric{
		{Name: "heap.used", Value: 402, Unit: "MB", Raw: "402 MB"},
	}
	if _, err := repo.UpsertLatest(ctx, "ctl-1", second, time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("UpsertLatest() second error = %v", err)
	}

	metrics, err := repo.ListByController(ctx, "ctl-1")
	if err != nil {
		t.Fatalf("ListByController() error = %v", err)
	}
	if len(metrics) != 2 {
		t.Fatalf("have %d metrics, want 2", len(metrics))
	}

	// Ordered by name: globalCapacity.points, heap.used
	points := metrics[0]
	heap := metrics[1]
	if points.Limit == nil || *points.Limit != 5000 {
		t.Errorf("points limit = %v, want 5000", points.Limit)
	}
	if got := points.PercentOfLimit(); got != 25 {
		t.Errorf("PercentOfLimit() = %v, want 25", got)
	}
	if heap.Value != 402 {
		t.Errorf("heap.used should be replaced with 402, got %v", heap.Value)
	}
	if heap.CapturedAt.Day() != 8 {
		t.Errorf("heap.used captured_at should be refreshed, got %v", heap.CapturedAt)
	}
}

func TestUpsertLatest_SkipsUnnamed(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	metrics := []niagara.ResourceMetric{
		{Name: "", Value: 1},
		{Name: "cpu.usage", Value: 12, Unit: "%", Raw: "12%"},
	}
	n, err := repo.UpsertLatest(context.Background(), "ctl-1", metrics, time.Now())
	if err != nil {
		t.Fatalf("UpsertLatest() error = %v", err)
	}
	if n != 1 {
		t.Errorf("wrote %d metrics, want 1 (unnamed skipped)", n)
	}
}

func TestPercentOfLimit_NoLimit(t *testing.T) {
	m := Metric{Value: 42}
	if got := m.PercentOfLimit(); got != 0 {
		t.Errorf("PercentOfLimit() without limit = %v, want 0", got)
	}
	zero := 0.0
	m.Limit = &zero
	if got := m.PercentOfLimit(); got != 0 {
		t.Errorf("PercentOfLimit() with zero limit = %v, want 0", got)
	}
}

func TestDeleteByController_Metrics(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	metrics := []niagara.ResourceMetric{{Name: "cpu.usage", Value: 10}}
	if _, err := repo.UpsertLatest(ctx, "ctl-1", metrics, time.Now()); err != nil {
		t.Fatalf("UpsertLatest() error = %v", err)
	}
	if _, err := repo.UpsertLatest(ctx, "ctl-2", metrics, time.Now()); err != nil {
		t.Fatalf("UpsertLatest() error = %v", err)
	}

	n, err := repo.DeleteByController(ctx, "ctl-1")
	if err != nil {
		t.Fatalf("DeleteByController() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d rows, want 1", n)
	}

	remaining, _ := repo.ListByController(ctx, "ctl-2")
	if len(remaining) != 1 {
		t.Errorf("ctl-2 metrics should survive, got %d", len(remaining))
	}
}
