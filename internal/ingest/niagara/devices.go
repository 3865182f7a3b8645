package niagara

import "strings"

// Device inventory protocols.
const (
	ProtocolBACnet = "bacnet"
	ProtocolN2     = "n2"
)

// deviceColumnAliases maps each DeviceRecord field to the header spellings
// seen across export tool versions. Lookup is case-insensitive.
var deviceColumnAliases = map[string][]string{
	"name":     {"name", "device name", "devicename"},
	"address":  {"address", "device id", "deviceid", "instance", "n2 address"},
	"model":    {"model", "type", "model name", "object type"},
	"vendor":   {"vendor", "manufacturer"},
	"firmware": {"firmware", "firmware rev", "version", "app sw version"},
	"status":   {"status", "health", "state"},
	"network":  {"network", "net", "trunk"},
}

// ParseDeviceCSV parses a BACnet or N2 device inventory CSV into device
// records. The header row drives column discovery through alias lookup, so
// column order and naming drift across export-tool versions is tolerated.
// Rows without a usable name and address are skipped silently, matching the
// platform parser's degradation policy. Never errors; an unusable file
// yields an empty list.
func ParseDeviceCSV(raw, protocol string) []DeviceRecord {
	lines := NormaliseLines(raw)
	records := []DeviceRecord{}
	if len(lines) < 2 {
		return records
	}

	header := splitCSVLine(lines[0])
	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(strings.Trim(col, `"`)))] = i
	}

	nameCol := findColumn(colIndex, deviceColumnAliases["name"]...)
	addrCol := findColumn(colIndex, deviceColumnAliases["address"]...)
	if nameCol < 0 && addrCol < 0 {
		return records
	}
	modelCol := findColumn(colIndex, deviceColumnAliases["model"]...)
	vendorCol := findColumn(colIndex, deviceColumnAliases["vendor"]...)
	fwCol := findColumn(colIndex, deviceColumnAliases["firmware"]...)
	statusCol := findColumn(colIndex, deviceColumnAliases["status"]...)
	netCol := findColumn(colIndex, deviceColumnAliases["network"]...)

	for _, line := range lines[1:] {
		fields := splitCSVLine(line)

		rec := DeviceRecord{
			Protocol: protocol,
			Name:     fieldAt(fields, nameCol),
			Address:  fieldAt(fields, addrCol),
			Model:    fieldAt(fields, modelCol),
			Vendor:   fieldAt(fields, vendorCol),
			Firmware: fieldAt(fields, fwCol),
			Status:   fieldAt(fields, statusCol),
			Network:  fieldAt(fields, netCol),
		}
		if rec.Name == "" && rec.Address == "" {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// splitCSVLine splits a CSV line on comma, semicolon, or tab, honouring
// double-quoted fields. The vendor tools emit all three delimiters
// depending on locale, so a fixed encoding/csv reader is too strict here.
func splitCSVLine(line string) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case (r == ',' || r == ';' || r == '\t') && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	fields = append(fields, current.String())
	return fields
}

// findColumn returns the index of the first alias present in the header
// index, or -1 when none match.
func findColumn(index map[string]int, names ...string) int {
	for _, name := range names {
		if idx, ok := index[name]; ok {
			return idx
		}
	}
	return -1
}

// fieldAt returns the trimmed, unquoted field at idx, or "" when the row is
// short or the column was not found.
func fieldAt(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(fields[idx]), `"`))
}
