package niagara

import "time"

// PlatformData is the canonical, normalised representation of a single
// "Platform Details" export. It is constructed fresh per uploaded file and
// is read-only once built.
//
// Invariant: Summary is always present after a successful parse; the four
// collections are always non-nil (possibly empty) slices.
type PlatformData struct {
	// Summary contains the scalar facts from the top of the export.
	Summary Summary `json:"summary"`

	// Modules are the installed software modules, in file order.
	Modules []Module `json:"modules"`

	// Filesystems are the mounted filesystem rows, in file order.
	Filesystems []Filesystem `json:"filesystems"`

	// Applications are the running stations, in file order.
	Applications []Application `json:"applications"`

	// Licenses are the installed licences (format-version dependent;
	// often empty on older firmware).
	Licenses []License `json:"licenses"`
}

// Summary holds the scalar platform facts extracted from labelled lines.
// Numeric fields are non-negative; unparseable input normalises to zero.
type Summary struct {
	DaemonVersion   string   `json:"daemon_version"`
	HostID          string   `json:"host_id"`
	HostIDStatus    string   `json:"host_id_status"`
	NiagaraRuntime  string   `json:"niagara_runtime"`
	Architecture    string   `json:"architecture"`
	CPUCount        int      `json:"cpu_count"`
	Model           string   `json:"model"`
	Product         string   `json:"product"`
	EnabledProfiles []string `json:"enabled_profiles"`
	OperatingSystem string   `json:"operating_system"`
	JVM             string   `json:"jvm"`
	StationsEnabled string   `json:"stations_enabled"`
	TLSSupport      string   `json:"tls_support"`
	TLSProtocol     string   `json:"tls_protocol"`
	TLSCertificate  string   `json:"tls_certificate"`
	HTTPPort        int      `json:"http_port"`
	TLSPort         int      `json:"tls_port"`
	SystemHome      string   `json:"system_home"`
	UserHome        string   `json:"user_home"`
	RAMFreeMB       int      `json:"ram_free_mb"`
	RAMTotalMB      int      `json:"ram_total_mb"`
	IPAddress       string   `json:"ip_address,omitempty"`
}

// Module is one installed software module.
type Module struct {
	// Name is the module identifier with profile suffixes stripped.
	Name string `json:"name"`

	// Vendor is the module publisher (typically "Tridium").
	Vendor string `json:"vendor"`

	// Version is the module version string.
	Version string `json:"version"`

	// Profiles are the runtime-profile suffixes stripped from the raw
	// identifier (rt, ux, wb, ...). Never nil; may be empty.
	Profiles []string `json:"profiles"`
}

// Filesystem is one row of the Filesystem table. Free and Total retain the
// vendor's display form ("31,065,600 KB") — magnitude conversion is the
// caller's choice via ToMegabytes.
type Filesystem struct {
	Path      string `json:"path"`
	Free      string `json:"free"`
	Total     string `json:"total"`
	FileCount int    `json:"file_count"`
	MaxFiles  int    `json:"max_files"`
}

// Application is one running station from the Applications section.
// Port fields are pointers: absent tokens remain unset rather than zero,
// so downstream rendering can distinguish "not configured" from port 0.
type Application struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Autostart   bool   `json:"autostart"`
	Autorestart *bool  `json:"autorestart,omitempty"`
	Fox         *int   `json:"fox,omitempty"`
	Foxs        *int   `json:"foxs,omitempty"`
	HTTP        *int   `json:"http,omitempty"`
	HTTPS       *int   `json:"https,omitempty"`
	Status      string `json:"status"`
}

// License is one installed licence record.
type License struct {
	Name    string `json:"name"`
	Vendor  string `json:"vendor"`
	Expires string `json:"expires"`
}

// Section names accepted by PlatformData.Select. These match the JSON keys
// of the PlatformData collections.
const (
	SectionModules      = "modules"
	SectionFilesystems  = "filesystems"
	SectionApplications = "applications"
	SectionLicenses     = "licenses"
)

// PlatformImport is the selective-import projection of a PlatformData:
// only the enabled sections are populated, and the summary carries
// denormalised counts so dashboards can render without re-parsing.
type PlatformImport struct {
	Summary      ImportSummary `json:"summary"`
	Modules      []Module      `json:"modules,omitempty"`
	Filesystems  []Filesystem  `json:"filesystems,omitempty"`
	Applications []Application `json:"applications,omitempty"`
	Licenses     []License     `json:"licenses,omitempty"`
}

// ImportSummary extends Summary with projection metadata.
type ImportSummary struct {
	Summary

	// ModuleCount and FilesystemCount are always present, even when the
	// corresponding section is not enabled for import.
	ModuleCount     int `json:"module_count"`
	FilesystemCount int `json:"filesystem_count"`

	// EnabledSections records which sections the caller chose to import.
	EnabledSections []string `json:"enabled_sections"`
}

// DeviceRecord is one field device parsed from a BACnet or N2 inventory CSV.
type DeviceRecord struct {
	// Name is the device display name.
	Name string `json:"name"`

	// Address is the protocol address (BACnet device ID or N2 address).
	Address string `json:"address"`

	// Protocol is "bacnet" or "n2".
	Protocol string `json:"protocol"`

	Model    string `json:"model,omitempty"`
	Vendor   string `json:"vendor,omitempty"`
	Firmware string `json:"firmware,omitempty"`
	Status   string `json:"status,omitempty"`
	Network  string `json:"network,omitempty"`
}

// ResourceMetric is one row from a resource-usage export: a dotted metric
// name plus its value split into magnitude, unit, and optional capacity
// limit ("1,250 (Limit: 5,000)").
type ResourceMetric struct {
	// Name is the vendor metric identifier (e.g. "heap.used").
	Name string `json:"name"`

	// Raw is the unmodified value column, kept for display.
	Raw string `json:"raw"`

	// Value is the parsed magnitude; 0 when the value has no leading number.
	Value float64 `json:"value"`

	// Unit is the trailing unit token ("KB", "MB", "%", ...); may be empty.
	Unit string `json:"unit,omitempty"`

	// Limit is the capacity limit when the value carries a
	// "(Limit: N)" suffix; nil otherwise.
	Limit *float64 `json:"limit,omitempty"`
}

// ParseResult wraps a parsed platform export for the two-phase import flow:
// parse returns a preview, the client reviews it, then commits by import ID.
type ParseResult struct {
	// ImportID correlates the parse preview with the subsequent commit.
	ImportID string `json:"import_id"`

	// SourceFile is the uploaded filename.
	SourceFile string `json:"source_file"`

	// ParsedAt is when the file was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Data is the full normalised platform record.
	Data *PlatformData `json:"data"`

	// Statistics summarises the parse for the preview screen.
	Statistics ParseStatistics `json:"statistics"`
}

// ParseStatistics summarises a platform parse.
type ParseStatistics struct {
	Modules      int `json:"modules"`
	Filesystems  int `json:"filesystems"`
	Applications int `json:"applications"`
	Licenses     int `json:"licenses"`

	// SummaryFieldsFound counts the labelled scalar fields that matched,
	// a rough signal of how well the export matched the expected format.
	SummaryFieldsFound int `json:"summary_fields_found"`
}
