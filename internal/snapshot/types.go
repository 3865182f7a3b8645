package snapshot

import (
	"time"

	"github.com/fieldline/stationpm/internal/ingest/niagara"
)

// Controller represents a single physical controller (JACE) at a site.
type Controller struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SiteName  string    `json:"site_name,omitempty"`
	HostID    string    `json:"host_id,omitempty"`
	Model     string    `json:"model,omitempty"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is one committed platform import for a controller.
//
// Payload holds the stored JSON document. Its envelope varies across
// historical releases; use Platform() to decode it tolerantly.
type Snapshot struct {
	ID              string    `json:"id"`
	ControllerID    string    `json:"controller_id"`
	ImportID        string    `json:"import_id,omitempty"`
	Payload         []byte    `json:"-"`
	ModuleCount     int       `json:"module_count"`
	FilesystemCount int       `json:"filesystem_count"`
	EnabledSections []string  `json:"enabled_sections"`
	CreatedBy       string    `json:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Platform decodes the stored payload into canonical platform data,
// accepting any of the historical storage shapes.
func (s *Snapshot) Platform() (*niagara.PlatformData, error) {
	return niagara.DecodeStored(s.Payload)
}
