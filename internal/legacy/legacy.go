// Package legacy reads the customer and site CSV exports from the old
// job-management system and lands them in SQLite. It backs the one-time
// stationpm-migrate command; nothing in the service proper depends on it.
package legacy

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// Customer is a customer record from the legacy export.
type Customer struct {
	ID         string    `json:"id"`
	LegacyRef  string    `json:"legacy_ref"`
	Name       string    `json:"name"`
	Contact    string    `json:"contact,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	ImportedAt time.Time `json:"imported_at"`
}

// Site is a serviced-building record from the legacy export.
type Site struct {
	ID          string    `json:"id"`
	LegacyRef   string    `json:"legacy_ref"`
	CustomerRef string    `json:"customer_ref,omitempty"`
	Name        string    `json:"name"`
	Address     string    `json:"address,omitempty"`
	Postcode    string    `json:"postcode,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	ImportedAt  time.Time `json:"imported_at"`
}

// customerColumnAliases maps Customer fields to the header spellings seen
// across legacy report exports. Lookup is case-insensitive.
var customerColumnAliases = map[string][]string{
	"ref":     {"customer id", "customerid", "legacy_customer_id", "simpro_customer_id", "id", "ref"},
	"name":    {"company name", "company_name", "customer", "name"},
	"contact": {"contact", "primary contact", "contact name"},
	"phone":   {"phone", "telephone", "contact phone"},
	"email":   {"email", "primary_contact_email", "contact email", "latest_contract_email"},
}

// siteColumnAliases maps Site fields to their legacy header spellings.
var siteColumnAliases = map[string][]string{
	"ref":      {"site id", "siteid", "legacy_site_id", "id", "ref"},
	"customer": {"customer id", "customerid", "legacy_customer_id", "customer ref"},
	"name":     {"site name", "site_nickname", "site", "name"},
	"address":  {"address", "mailing_address", "site address", "street"},
	"postcode": {"postcode", "post code", "zip", "mailing_zip", "zipcode"},
	"notes":    {"notes", "comments", "description"},
}

// ParseCustomersCSV reads the legacy customer export. Unlike the diagnostic
// CSVs the ingest package handles, this export is machine-written with
// proper quoting and can carry multi-line fields, so the strict stdlib
// reader is the right tool. Rows without a reference and name are skipped;
// only a malformed stream is an error.
func ParseCustomersCSV(r io.Reader) ([]Customer, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	refCol := findColumn(header, customerColumnAliases["ref"]...)
	nameCol := findColumn(header, customerColumnAliases["name"]...)
	if refCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("customer export is missing reference or name column")
	}
	contactCol := findColumn(header, customerColumnAliases["contact"]...)
	phoneCol := findColumn(header, customerColumnAliases["phone"]...)
	emailCol := findColumn(header, customerColumnAliases["email"]...)

	var customers []Customer
	for _, row := range rows {
		c := Customer{
			LegacyRef: fieldAt(row, refCol),
			Name:      fieldAt(row, nameCol),
			Contact:   fieldAt(row, contactCol),
			Phone:     fieldAt(row, phoneCol),
			Email:     fieldAt(row, emailCol),
		}
		if c.LegacyRef == "" || c.Name == "" {
			continue
		}
		customers = append(customers, c)
	}
	return customers, nil
}

// ParseSitesCSV reads the legacy site export.
func ParseSitesCSV(r io.Reader) ([]Site, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	refCol := findColumn(header, siteColumnAliases["ref"]...)
	nameCol := findColumn(header, siteColumnAliases["name"]...)
	if refCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("site export is missing reference or name column")
	}
	customerCol := findColumn(header, siteColumnAliases["customer"]...)
	addressCol := findColumn(header, siteColumnAliases["address"]...)
	postcodeCol := findColumn(header, siteColumnAliases["postcode"]...)
	notesCol := findColumn(header, siteColumnAliases["notes"]...)

	var sites []Site
	for _, row := range rows {
		s := Site{
			LegacyRef:   fieldAt(row, refCol),
			CustomerRef: fieldAt(row, customerCol),
			Name:        fieldAt(row, nameCol),
			Address:     fieldAt(row, addressCol),
			Postcode:    fieldAt(row, postcodeCol),
			Notes:       fieldAt(row, notesCol),
		}
		if s.LegacyRef == "" || s.Name == "" {
			continue
		}
		sites = append(sites, s)
	}
	return sites, nil
}

// readCSV reads all records, returning a lowered header row and the data
// rows. FieldsPerRecord is relaxed because legacy reports pad trailing
// columns inconsistently.
func readCSV(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading export: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("export has no data rows")
	}

	header := make([]string, len(records[0]))
	for i, col := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}
	return header, records[1:], nil
}

// findColumn returns the index of the first alias present in the header,
// or -1 when none match.
func findColumn(header []string, names ...string) int {
	for _, name := range names {
		for i, col := range header {
			if col == name {
				return i
			}
		}
	}
	return -1
}

// fieldAt returns the trimmed field at idx, or "" when the row is short or
// the column was not found.
func fieldAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
