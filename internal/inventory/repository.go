package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/stationpm/internal/ingest/niagara"
)

// Repository defines the interface for device inventory persistence.
type Repository interface {
	UpsertDevices(ctx context.Context, controllerID, protocol string, records []niagara.DeviceRecord) (*UpsertResult, error)
	ListByController(ctx context.Context, controllerID string) ([]Device, error)
	ListByProtocol(ctx context.Context, controllerID, protocol string) ([]Device, error)
	DeleteByController(ctx context.Context, controllerID string) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed inventory repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// UpsertDevices merges a parsed device export into the inventory inside a
// single transaction. Devices are matched by address within the controller
// and protocol; records without an address fall back to matching by name.
// Matched rows are refreshed, new rows are inserted, and nothing is deleted:
// devices absent from one export may simply have been offline.
func (r *SQLiteRepository) UpsertDevices(ctx context.Context, controllerID, protocol string, records []niagara.DeviceRecord) (*UpsertResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	result := &UpsertResult{}
	for _, rec := range records {
		var existingID string
		var lookupErr error
		if rec.Address != "" {
			lookupErr = tx.QueryRowContext(ctx,
				`SELECT id FROM devices WHERE controller_id = ? AND protocol = ? AND address = ?`,
				controllerID, protocol, rec.Address).Scan(&existingID)
		} else {
			lookupErr = tx.QueryRowContext(ctx,
				`SELECT id FROM devices WHERE controller_id = ? AND protocol = ? AND address = '' AND name = ?`,
				controllerID, protocol, rec.Name).Scan(&existingID)
		}

		switch {
		case lookupErr == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO devices (id, controller_id, protocol, name, address,
					model, vendor, firmware, status, network)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), controllerID, protocol, rec.Name, rec.Address,
				rec.Model, rec.Vendor, rec.Firmware, rec.Status, rec.Network)
			if err != nil {
				return nil, fmt.Errorf("inserting device %q: %w", rec.Name, err)
			}
			result.Inserted++
		case lookupErr != nil:
			return nil, fmt.Errorf("looking up device %q: %w", rec.Name, lookupErr)
		default:
			_, err = tx.ExecContext(ctx,
				`UPDATE devices SET name = ?, model = ?, vendor = ?, firmware = ?,
					status = ?, network = ?,
					last_seen_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
				WHERE id = ?`,
				rec.Name, rec.Model, rec.Vendor, rec.Firmware,
				rec.Status, rec.Network, existingID)
			if err != nil {
				return nil, fmt.Errorf("updating device %q: %w", rec.Name, err)
			}
			result.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing upsert transaction: %w", err)
	}
	return result, nil
}

// ListByController returns all devices for a controller ordered by protocol
// then name.
func (r *SQLiteRepository) ListByController(ctx context.Context, controllerID string) ([]Device, error) {
	const query = `SELECT id, controller_id, protocol, name, address,
		model, vendor, firmware, status, network, first_seen_at, last_seen_at
		FROM devices WHERE controller_id = ? ORDER BY protocol, name`
	return r.queryDevices(ctx, query, controllerID)
}

// ListByProtocol returns devices for a controller on one protocol.
func (r *SQLiteRepository) ListByProtocol(ctx context.Context, controllerID, protocol string) ([]Device, error) {
	const query = `SELECT id, controller_id, protocol, name, address,
		model, vendor, firmware, status, network, first_seen_at, last_seen_at
		FROM devices WHERE controller_id = ? AND protocol = ? ORDER BY name`
	return r.queryDevices(ctx, query, controllerID, protocol)
}

// DeleteByController removes all devices for a controller.
// Returns the number of rows deleted.
func (r *SQLiteRepository) DeleteByController(ctx context.Context, controllerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE controller_id = ?", controllerID)
	if err != nil {
		return 0, fmt.Errorf("deleting devices for controller %s: %w", controllerID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	return n, nil
}

// queryDevices executes a query and returns a slice of Device.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		var d Device
		var firstSeen, lastSeen string
		if err := rows.Scan(&d.ID, &d.ControllerID, &d.Protocol, &d.Name, &d.Address,
			&d.Model, &d.Vendor, &d.Firmware, &d.Status, &d.Network,
			&firstSeen, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		d.FirstSeenAt = parseTime(firstSeen)
		d.LastSeenAt = parseTime(lastSeen)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return out, nil
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
