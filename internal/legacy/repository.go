package legacy

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// UpsertResult reports how many records an import run inserted and updated.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Repository defines the interface for legacy record persistence.
type Repository interface {
	UpsertCustomers(ctx context.Context, customers []Customer) (*UpsertResult, error)
	UpsertSites(ctx context.Context, sites []Site) (*UpsertResult, error)
	CustomerCount(ctx context.Context) (int, error)
	SiteCount(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed legacy repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// UpsertCustomers merges parsed customer records inside a single
// transaction, matching on the legacy reference so the migration can be
// re-run against a corrected export without duplicating rows.
func (r *SQLiteRepository) UpsertCustomers(ctx context.Context, customers []Customer) (*UpsertResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning customer upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	result := &UpsertResult{}
	for _, c := range customers {
		var existingID string
		lookupErr := tx.QueryRowContext(ctx,
			`SELECT id FROM legacy_customers WHERE legacy_ref = ?`, c.LegacyRef).Scan(&existingID)

		switch {
		case lookupErr == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO legacy_customers (id, legacy_ref, name, contact, phone, email)
				VALUES (?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), c.LegacyRef, c.Name, c.Contact, c.Phone, c.Email)
			if err != nil {
				return nil, fmt.Errorf("inserting customer %q: %w", c.LegacyRef, err)
			}
			result.Inserted++
		case lookupErr != nil:
			return nil, fmt.Errorf("looking up customer %q: %w", c.LegacyRef, lookupErr)
		default:
			_, err = tx.ExecContext(ctx,
				`UPDATE legacy_customers SET name = ?, contact = ?, phone = ?, email = ?,
					imported_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
				WHERE id = ?`,
				c.Name, c.Contact, c.Phone, c.Email, existingID)
			if err != nil {
				return nil, fmt.Errorf("updating customer %q: %w", c.LegacyRef, err)
			}
			result.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing customer upsert: %w", err)
	}
	return result, nil
}

// UpsertSites merges parsed site records, matching on the legacy reference.
func (r *SQLiteRepository) UpsertSites(ctx context.Context, sites []Site) (*UpsertResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning site upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	result := &UpsertResult{}
	for _, s := range sites {
		var existingID string
		lookupErr := tx.QueryRowContext(ctx,
			`SELECT id FROM legacy_sites WHERE legacy_ref = ?`, s.LegacyRef).Scan(&existingID)

		switch {
		case lookupErr == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO legacy_sites (id, legacy_ref, customer_ref, name, address, postcode, notes)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), s.LegacyRef, s.CustomerRef, s.Name, s.Address, s.Postcode, s.Notes)
			if err != nil {
				return nil, fmt.Errorf("inserting site %q: %w", s.LegacyRef, err)
			}
			result.Inserted++
		case lookupErr != nil:
			return nil, fmt.Errorf("looking up site %q: %w", s.LegacyRef, lookupErr)
		default:
			_, err = tx.ExecContext(ctx,
				`UPDATE legacy_sites SET customer_ref = ?, name = ?, address = ?, postcode = ?, notes = ?,
					imported_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
				WHERE id = ?`,
				s.CustomerRef, s.Name, s.Address, s.Postcode, s.Notes, existingID)
			if err != nil {
				return nil, fmt.Errorf("updating site %q: %w", s.LegacyRef, err)
			}
			result.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing site upsert: %w", err)
	}
	return result, nil
}

// CustomerCount returns the number of landed customer records.
func (r *SQLiteRepository) CustomerCount(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM legacy_customers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting customers: %w", err)
	}
	return n, nil
}

// SiteCount returns the number of landed site records.
func (r *SQLiteRepository) SiteCount(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM legacy_sites`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sites: %w", err)
	}
	return n, nil
}
