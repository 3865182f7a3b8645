package niagara

import (
	"regexp"
	"strconv"
	"strings"
)

// Resource exports are two-column name,value CSVs:
//
//	cpu.usage,5%
//	heap.used,132 MB
//	globalCapacity.points,1,250 (Limit: 5,000)
//
// The value column mixes percentages, sizes, counts with thousands
// separators, and capacity pairs, so each value is split into magnitude,
// unit token, and optional limit rather than forced through one numeric
// format.
var (
	// leading magnitude: digits with optional separators and decimal part
	reResourceValue = regexp.MustCompile(`^([\d,]+(?:\.\d+)?)\s*([^(]*)`)

	// "(Limit: 5,000)" capacity suffix
	reResourceLimit = regexp.MustCompile(`\(Limit:\s*([\d,]+(?:\.\d+)?)\)`)
)

// ParseResourceCSV parses a resource-usage export into metrics. Rows without
// a metric name are skipped; values without a leading number keep Value 0
// and the raw string, so nothing in the file can fail the parse.
func ParseResourceCSV(raw string) []ResourceMetric {
	lines := NormaliseLines(raw)
	metrics := []ResourceMetric{}

	for i, line := range lines {
		fields := splitCSVLine(line)
		if len(fields) < 2 {
			continue
		}

		name := strings.TrimSpace(strings.Trim(fields[0], `"`))
		if name == "" {
			continue
		}
		// The export sometimes leads with a "Name,Value" caption row.
		if i == 0 && strings.EqualFold(name, "name") {
			continue
		}

		// Values containing thousands separators split across CSV
		// fields; rejoin everything after the name column.
		value := strings.TrimSpace(strings.Trim(strings.Join(fields[1:], ","), `"`))

		metric := ResourceMetric{Name: name, Raw: value}
		metric.Value, metric.Unit = splitMagnitude(value)
		if m := reResourceLimit.FindStringSubmatch(value); m != nil {
			if limit, err := parseSeparatedFloat(m[1]); err == nil {
				metric.Limit = &limit
			}
		}

		metrics = append(metrics, metric)
	}
	return metrics
}

// splitMagnitude separates a value string into its leading magnitude and
// trailing unit token. Returns (0, "") when no leading number exists.
func splitMagnitude(value string) (float64, string) {
	m := reResourceValue.FindStringSubmatch(value)
	if m == nil {
		return 0, ""
	}
	magnitude, err := parseSeparatedFloat(m[1])
	if err != nil {
		return 0, ""
	}
	return magnitude, strings.TrimSpace(m[2])
}

// parseSeparatedFloat parses a decimal that may carry comma thousands
// separators.
func parseSeparatedFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}
