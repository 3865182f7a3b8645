package legacy

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

const sampleCustomersCSV = `simpro_customer_id,company_name,primary_contact_email,phone
101,"Harborview Estates Ltd",facilities@harborview.example,01onetwothree
102,"Meridian Health Trust",estates@meridian.example,
,"No Reference Co",skip@example.com,
103,"",missing-name@example.com,
`

const sampleSitesCSV = `site id,customer id,site name,address,postcode,notes
S-1,101,"Harborview Tower","1 Quayside, Dock Road",L3 4AA,"Roof plant room, restricted access"
S-2,101,"Harborview Annex","3 Quayside",L3 4AB,
S-3,102,"Meridian Clinic","14 High Street",M1 2CD,
`

// testDB creates a temporary SQLite database with the legacy tables applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "legacy-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE legacy_customers (
			id TEXT PRIMARY KEY,
			legacy_ref TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			contact TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			imported_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE legacy_sites (
			id TEXT PRIMARY KEY,
			legacy_ref TEXT NOT NULL UNIQUE,
			customer_ref TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			postcode TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			imported_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	return db
}

func TestParseCustomersCSV(t *testing.T) {
	customers, err := ParseCustomersCSV(strings.NewReader(sampleCustomersCSV))
	if err != nil {
		t.Fatalf("ParseCustomersCSV() error = %v", err)
	}

	// Rows missing a reference or name are dropped.
	if len(customers) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(customers))
	}
	if customers[0].LegacyRef != "101" || customers[0].Name != "Harborview Estates Ltd" {
		t.Errorf("first customer = %+v", customers[0])
	}
	if customers[0].Email != "facilities@harborview.example" {
		t.Errorf("email = %q", customers[0].Email)
	}
}

func TestParseCustomersCSV_MissingColumns(t *testing.T) {
	_, err := ParseCustomersCSV(strings.NewReader("phone,email\n1,2\n"))
	if err == nil {
		t.Fatal("expected error for export without reference/name columns")
	}
}

func TestParseSitesCSV(t *testing.T) {
	sites, err := ParseSitesCSV(strings.NewReader(sampleSitesCSV))
	if err != nil {
		t.Fatalf("ParseSitesCSV() error = %v", err)
	}

	if len(sites) != 3 {
		t.Fatalf("expected 3 sites, got %d", len(sites))
	}
	if sites[0].CustomerRef != "101" {
		t.Errorf("customer ref = %q, want 101", sites[0].CustomerRef)
	}
	// Quoted field with an embedded comma survives.
	if sites[0].Address != "1 Quayside, Dock Road" {
		t.Errorf("address = %q", sites[0].Address)
	}
}

func TestUpsertCustomers_Idempotent(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	customers, err := ParseCustomersCSV(strings.NewReader(sampleCustomersCSV))
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}

	result, err := repo.UpsertCustomers(ctx, customers)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if result.Inserted != 2 || result.Updated != 0 {
		t.Errorf("first run: inserted %d updated %d, want 2/0", result.Inserted, result.Updated)
	}

	// Second run against the same export updates in place.
	customers[0].Phone = "0151 000 0000"
	result, err = repo.UpsertCustomers(ctx, customers)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if result.Inserted != 0 || result.Updated != 2 {
		t.Errorf("second run: inserted %d updated %d, want 0/2", result.Inserted, result.Updated)
	}

	count, err := repo.CustomerCount(ctx)
	if err != nil {
		t.Fatalf("counting: %v", err)
	}
	if count != 2 {
		t.Errorf("customer count = %d, want 2", count)
	}

	var phone string
	if err := db.QueryRow(`SELECT phone FROM legacy_customers WHERE legacy_ref = '101'`).Scan(&phone); err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if phone != "0151 000 0000" {
		t.Errorf("phone after re-run = %q", phone)
	}
}

func TestUpsertSites_Idempotent(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	sites, err := ParseSitesCSV(strings.NewReader(sampleSitesCSV))
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}

	result, err := repo.UpsertSites(ctx, sites)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if result.Inserted != 3 {
		t.Errorf("inserted = %d, want 3", result.Inserted)
	}

	result, err = repo.UpsertSites(ctx, sites)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if result.Inserted != 0 || result.Updated != 3 {
		t.Errorf("second run: inserted %d updated %d, want 0/3", result.Inserted, result.Updated)
	}

	count, err := repo.SiteCount(ctx)
	if err != nil {
		t.Fatalf("counting: %v", err)
	}
	if count != 3 {
		t.Errorf("site count = %d, want 3", count)
	}
}
