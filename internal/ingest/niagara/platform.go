package niagara

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxFileSize is the maximum accepted upload size (10MB). Platform exports
// are a few hundred lines; anything near this limit is not a platform export.
const MaxFileSize = 10 * 1024 * 1024

// CheckFileSize returns ErrFileTooLarge (wrapped with the sizes) when an
// upload exceeds MaxFileSize.
func CheckFileSize(size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, MaxFileSize)
	}
	return nil
}

// summaryLabels is the fixed, ordered table of labelled scalar fields pulled
// from the export. Order matches the vendor's emission order; matching is a
// case-sensitive prefix match per line (the format emits canonical casing).
var summaryLabels = []struct {
	label  string
	assign func(*Summary, string)
}{
	{"Daemon Version:", func(s *Summary, v string) { s.DaemonVersion = v }},
	{"Daemon HTTP Port:", func(s *Summary, v string) { s.HTTPPort = parsePort(v) }},
	{"Host ID:", func(s *Summary, v string) { s.HostID = v }},
	{"Host ID Status:", func(s *Summary, v string) { s.HostIDStatus = v }},
	{"Niagara Runtime:", func(s *Summary, v string) { s.NiagaraRuntime = v }},
	{"Architecture:", func(s *Summary, v string) { s.Architecture = v }},
	{"Number of CPUs:", func(s *Summary, v string) { s.CPUCount = parsePort(v) }},
	{"Model:", func(s *Summary, v string) { s.Model = v }},
	{"Product:", func(s *Summary, v string) { s.Product = v }},
	{"Enabled Runtime Profiles:", func(s *Summary, v string) { s.EnabledProfiles = splitCommaList(v) }},
	{"Operating System:", func(s *Summary, v string) { s.OperatingSystem = v }},
	{"Java Virtual Machine:", func(s *Summary, v string) { s.JVM = v }},
	{"Niagara Stations Enabled:", func(s *Summary, v string) { s.StationsEnabled = v }},
	{"Platform TLS Support:", func(s *Summary, v string) { s.TLSSupport = v }},
	{"Port:", func(s *Summary, v string) { s.TLSPort = parsePort(v) }},
	{"Certificate:", func(s *Summary, v string) { s.TLSCertificate = v }},
	{"Protocol:", func(s *Summary, v string) { s.TLSProtocol = v }},
	{"System Home:", func(s *Summary, v string) { s.SystemHome = v }},
	{"User Home:", func(s *Summary, v string) { s.UserHome = v }},
	{"IP Address:", func(s *Summary, v string) { s.IPAddress = v }},
}

// Precompiled line patterns for the section micro-parsers.
var (
	// "alarm-rt (Tridium 4.13.0.113)" → name-with-profiles, vendor, version
	reModuleLine = regexp.MustCompile(`^(\S+)\s+\(([^\s)]+)\s+([^)]+)\)$`)

	// "station MainStation autostart=true fox=1911 status=running"
	reStationLine = regexp.MustCompile(`^station\s+(\S+)\s*(.*)$`)

	// "alarm (Tridium expires 2026-06-30)" — licence rows
	reLicenseLine = regexp.MustCompile(`^(\S+)\s+\(([^\s)]+)\s+(?:expires\s+)?([^)]+)\)$`)
)

// Station detail tokens, each matched independently so presence, absence,
// and ordering are independent per key. Duplicate tokens resolve to the
// last occurrence (vendor behaviour for duplicates is undefined; last-wins
// is this implementation's documented choice).
var stationDetailPatterns = map[string]*regexp.Regexp{
	"autostart":   regexp.MustCompile(`autostart=(\S+)`),
	"autorestart": regexp.MustCompile(`autorestart=(\S+)`),
	"fox":         regexp.MustCompile(`fox=(\d+)`),
	"foxs":        regexp.MustCompile(`foxs=(\d+)`),
	"http":        regexp.MustCompile(`http=(\d+)`),
	"https":       regexp.MustCompile(`https=(\d+)`),
	"status":      regexp.MustCompile(`status=(\S+)`),
}

// minFilesystemFields is the minimum whitespace-separated fields in a
// filesystem row: path, free value, free unit, total value, total unit.
const minFilesystemFields = 5

// Parse aggregates a raw Platform Details export into a PlatformData.
//
// Aggregation is a single pass over the normalised line sequence: summary
// labels are extracted, RAM is derived from the line following the
// "Physical RAM" marker, and the section parsers run independently — a
// malformed or absent section never blocks its siblings. All granular parse
// uncertainty is absorbed as empty/zero values.
//
// The only hard failure is ErrUnreadable, produced when an unexpected
// internal error escapes the parsing pipeline. In that case the returned
// data is nil; otherwise all five top-level members are always present.
func Parse(raw string) (data *PlatformData, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = ErrUnreadable
		}
	}()

	lines := NormaliseLines(raw)

	data = &PlatformData{
		Modules:      []Module{},
		Filesystems:  []Filesystem{},
		Applications: []Application{},
		Licenses:     []License{},
	}

	for _, entry := range summaryLabels {
		if v := ExtractValue(lines, entry.label); v != "" {
			entry.assign(&data.Summary, v)
		}
	}
	if data.Summary.EnabledProfiles == nil {
		data.Summary.EnabledProfiles = []string{}
	}

	data.Summary.RAMFreeMB, data.Summary.RAMTotalMB = parsePhysicalRAM(lines)

	data.Modules = parseModules(lines)
	data.Filesystems = parseFilesystems(lines)
	data.Applications = parseApplications(lines)
	data.Licenses = parseLicenses(lines)

	return data, nil
}

// Statistics computes the parse statistics for a preview response.
func (d *PlatformData) Statistics(raw string) ParseStatistics {
	lines := NormaliseLines(raw)
	found := 0
	for _, entry := range summaryLabels {
		if ExtractValue(lines, entry.label) != "" {
			found++
		}
	}
	return ParseStatistics{
		Modules:            len(d.Modules),
		Filesystems:        len(d.Filesystems),
		Applications:       len(d.Applications),
		Licenses:           len(d.Licenses),
		SummaryFieldsFound: found,
	}
}

// parsePhysicalRAM locates the "Physical RAM" marker and parses the next
// line's four whitespace-separated tokens as free/total value-unit pairs.
func parsePhysicalRAM(lines []string) (freeMB, totalMB int) {
	start, end := findSection(lines, "Physical RAM")
	if start >= end {
		return 0, 0
	}

	fields := strings.Fields(lines[start])
	if len(fields) < 4 {
		return 0, 0
	}
	freeMB = ToMegabytes(fields[0] + " " + fields[1])
	totalMB = ToMegabytes(fields[2] + " " + fields[3])
	return freeMB, totalMB
}

// parseModules parses the Modules section. Lines that fail the pattern are
// dropped without report — module line shape varies across firmware and a
// malformed line must not reject the file.
func parseModules(lines []string) []Module {
	start, end := findSection(lines, "Modules")
	modules := []Module{}

	for _, line := range lines[start:end] {
		m := reModuleLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name, profiles := splitModuleName(m[1])
		modules = append(modules, Module{
			Name:     name,
			Vendor:   m[2],
			Version:  strings.TrimSpace(m[3]),
			Profiles: profiles,
		})
	}
	return modules
}

// splitModuleName separates a raw module identifier into its base name and
// runtime-profile suffixes: everything after the first hyphen is treated as
// hyphen-separated profile tokens ("alarm-rt" → "alarm", ["rt"]).
func splitModuleName(raw string) (name string, profiles []string) {
	profiles = []string{}
	idx := strings.Index(raw, "-")
	if idx < 0 {
		return raw, profiles
	}
	name = raw[:idx]
	for _, p := range strings.Split(raw[idx+1:], "-") {
		if p != "" {
			profiles = append(profiles, p)
		}
	}
	return name, profiles
}

// parseFilesystems parses the Filesystem table. Rows need at least five
// whitespace-separated fields (path, free value+unit, total value+unit);
// the optional sixth and seventh are file count and max files.
func parseFilesystems(lines []string) []Filesystem {
	start, end := findSection(lines, "Filesystem")
	filesystems := []Filesystem{}

	for _, line := range lines[start:end] {
		fields := strings.Fields(line)
		if len(fields) < minFilesystemFields {
			continue
		}
		fs := Filesystem{
			Path:  fields[0],
			Free:  fields[1] + " " + fields[2],
			Total: fields[3] + " " + fields[4],
		}
		if len(fields) > 5 {
			fs.FileCount = parsePort(fields[5])
		}
		if len(fields) > 6 {
			fs.MaxFiles = parsePort(fields[6])
		}
		filesystems = append(filesystems, fs)
	}
	return filesystems
}

// parseApplications parses the Applications section. Each station row is a
// name followed by key=value detail tokens scanned independently, so partial
// rows still contribute what they carry.
func parseApplications(lines []string) []Application {
	start, end := findSection(lines, "Applications")
	applications := []Application{}

	for _, line := range lines[start:end] {
		m := reStationLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		app := Application{
			Name: m[1],
			Type: "station",
		}
		details := m[2]

		if v, ok := lastMatch(stationDetailPatterns["autostart"], details); ok {
			app.Autostart = v == "true"
		}
		if v, ok := lastMatch(stationDetailPatterns["autorestart"], details); ok {
			b := v == "true"
			app.Autorestart = &b
		}
		app.Fox = lastPortMatch(stationDetailPatterns["fox"], details)
		app.Foxs = lastPortMatch(stationDetailPatterns["foxs"], details)
		app.HTTP = lastPortMatch(stationDetailPatterns["http"], details)
		app.HTTPS = lastPortMatch(stationDetailPatterns["https"], details)
		if v, ok := lastMatch(stationDetailPatterns["status"], details); ok {
			app.Status = v
		}

		applications = append(applications, app)
	}
	return applications
}

// parseLicenses parses the Licenses section; empty on older export versions.
func parseLicenses(lines []string) []License {
	start, end := findSection(lines, "Licenses")
	licenses := []License{}

	for _, line := range lines[start:end] {
		m := reLicenseLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		licenses = append(licenses, License{
			Name:    m[1],
			Vendor:  m[2],
			Expires: strings.TrimSpace(m[3]),
		})
	}
	return licenses
}

// lastMatch returns the capture of the last occurrence of re in s.
func lastMatch(re *regexp.Regexp, s string) (string, bool) {
	all := re.FindAllStringSubmatch(s, -1)
	if len(all) == 0 {
		return "", false
	}
	return all[len(all)-1][1], true
}

// lastPortMatch returns the last occurrence of a numeric token as a port
// pointer, or nil when the token is absent.
func lastPortMatch(re *regexp.Regexp, s string) *int {
	v, ok := lastMatch(re, s)
	if !ok {
		return nil
	}
	port := parsePort(v)
	return &port
}

// splitCommaList splits a comma-separated list into trimmed non-empty items.
func splitCommaList(s string) []string {
	items := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
