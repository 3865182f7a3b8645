package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/stationpm/internal/ingest/niagara"
	"github.com/fieldline/stationpm/internal/snapshot"
)

// readUpload extracts the uploaded export from a multipart form.
// The body size cap is already applied by middleware; ParseMultipartForm
// gets the same limit for its in-memory buffering decision.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (data []byte, filename string, ok bool) {
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeBadRequest(w, "failed to parse multipart form: file may be too large")
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "missing required 'file' field in form data")
		return nil, "", false
	}
	defer func(f multipart.File) {
		f.Close() //nolint:errcheck // read-only temp file
	}(file)

	data, err = io.ReadAll(file)
	if err != nil {
		s.logger.Error("upload read failed", "filename", header.Filename, "error", err)
		writeBadRequest(w, "failed to read uploaded file")
		return nil, "", false
	}

	return data, header.Filename, true
}

// ─── Platform exports ──────────────────────────────────────────────

// handlePlatformParse parses an uploaded Platform Details export and returns
// the normalised record for preview before commit.
//
// This is a two-phase import: parse returns a preview under an import ID,
// then commit persists the selected sections as a snapshot.
func (s *Server) handlePlatformParse(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	if err := niagara.CheckFileSize(int64(len(data))); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", err.Error())
		return
	}

	parsed, err := niagara.Parse(string(data))
	if err != nil {
		// Tolerant parsing means the only parse failure is unreadable input.
		s.logger.Error("platform parse failed", "filename", filename, "error", err)
		writeBadRequest(w, "file could not be read as a platform export")
		return
	}

	claims := claimsFromContext(r.Context())
	result := &niagara.ParseResult{
		ImportID:   uuid.NewString(),
		SourceFile: filename,
		ParsedAt:   time.Now().UTC(),
		Data:       parsed,
		Statistics: parsed.Statistics(string(data)),
	}

	s.previews.put(result.ImportID, previewEntry{
		Kind:       previewPlatform,
		SourceFile: filename,
		ParsedBy:   claims.Subject,
		ParsedAt:   result.ParsedAt,
		Platform:   parsed,
	})

	s.logger.Info("platform export parsed",
		"import_id", result.ImportID,
		"filename", filename,
		"host_id", parsed.Summary.HostID,
		"modules", len(parsed.Modules),
		"filesystems", len(parsed.Filesystems),
	)

	writeJSON(w, http.StatusOK, result)
}

// platformCommitRequest is the request body for POST /imports/platform.
type platformCommitRequest struct {
	// ImportID from the parse response.
	ImportID string `json:"import_id"`

	// ControllerID attaches the snapshot to an existing controller. When
	// empty the controller is resolved by host ID, registering a new
	// record on first sight.
	ControllerID string `json:"controller_id,omitempty"`

	// ControllerName and SiteName seed a newly registered controller.
	ControllerName string `json:"controller_name,omitempty"`
	SiteName       string `json:"site_name,omitempty"`

	// EnabledSections selects which parsed sections to persist. Empty
	// falls back to the configured default selection.
	EnabledSections []string `json:"enabled_sections,omitempty"`
}

// handlePlatformCommit persists a parsed platform export as a snapshot.
//
// Only the selected sections are stored; the snapshot summary always keeps
// the full module and filesystem counts. Publishes an import event on
// commit.
func (s *Server) handlePlatformCommit(w http.ResponseWriter, r *http.Request) { //nolint:gocognit // commit pipeline: preview lookup + controller resolution + projection + event fan-out
	var req platformCommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ImportID == "" {
		writeBadRequest(w, "import_id is required")
		return
	}

	entry, ok := s.previews.take(req.ImportID)
	if !ok || entry.Kind != previewPlatform {
		writeNotFound(w, "import preview not found or expired; parse the file again")
		return
	}

	claims := claimsFromContext(r.Context())

	ctl, err := s.resolveController(r, &req, entry.Platform)
	if err != nil {
		if errors.Is(err, snapshot.ErrControllerNotFound) {
			writeNotFound(w, "controller not found")
		} else {
			s.logger.Error("controller resolution failed", "error", err)
			writeInternalError(w, "failed to resolve controller")
		}
		return
	}

	sections := req.EnabledSections
	if len(sections) == 0 {
		sections = s.importCfg.DefaultSections
	}
	imp := entry.Platform.Select(sections)

	payload, err := json.Marshal(imp)
	if err != nil {
		s.logger.Error("snapshot payload marshal failed", "error", err)
		writeInternalError(w, "failed to serialise snapshot")
		return
	}

	snap := &snapshot.Snapshot{
		ControllerID:    ctl.ID,
		ImportID:        req.ImportID,
		Payload:         payload,
		ModuleCount:     imp.Summary.ModuleCount,
		FilesystemCount: imp.Summary.FilesystemCount,
		EnabledSections: imp.Summary.EnabledSections,
		CreatedBy:       claims.Subject,
	}
	if err := s.snapshotRepo.CreateSnapshot(r.Context(), snap); err != nil {
		s.logger.Error("snapshot create failed", "controller_id", ctl.ID, "error", err)
		writeInternalError(w, "failed to store snapshot")
		return
	}

	s.logger.Info("platform import committed",
		"import_id", req.ImportID,
		"controller_id", ctl.ID,
		"snapshot_id", snap.ID,
		"sections", imp.Summary.EnabledSections,
	)
	s.auditLog("commit", "snapshot", snap.ID, claims.Subject, map[string]any{
		"controller_id": ctl.ID,
		"source_file":   entry.SourceFile,
	})

	s.publishEvent("import.platform", topics.ImportCommitted("platform", ctl.ID), map[string]any{
		"controller_id": ctl.ID,
		"snapshot_id":   snap.ID,
		"host_id":       entry.Platform.Summary.HostID,
		"sections":      imp.Summary.EnabledSections,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"snapshot":   snap,
		"controller": ctl,
	})
}

// resolveController finds the target controller for a platform commit.
// An explicit controller_id wins; otherwise the export's host ID is used,
// registering a new controller when no record matches.
func (s *Server) resolveController(r *http.Request, req *platformCommitRequest, data *niagara.PlatformData) (*snapshot.Controller, error) {
	if req.ControllerID != "" {
		return s.snapshotRepo.GetController(r.Context(), req.ControllerID)
	}

	hostID := data.Summary.HostID
	if hostID != "" {
		ctl, err := s.snapshotRepo.GetControllerByHostID(r.Context(), hostID)
		if err == nil {
			return ctl, nil
		}
		if !errors.Is(err, snapshot.ErrControllerNotFound) {
			return nil, err
		}
	}

	name := req.ControllerName
	if name == "" {
		name = data.Summary.Model
		if hostID != "" {
			name += " " + hostID
		}
	}

	ctl := &snapshot.Controller{
		Name:     name,
		SiteName: req.SiteName,
		HostID:   hostID,
		Model:    data.Summary.Model,
	}
	if err := s.snapshotRepo.CreateController(r.Context(), ctl); err != nil {
		return nil, err
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("controller registered from import", "controller_id", ctl.ID, "host_id", hostID)
	s.auditLog("create", "controller", ctl.ID, claims.Subject, map[string]any{"host_id": hostID})

	return ctl, nil
}

// ─── Device inventory CSVs ─────────────────────────────────────────

// devicePreviewResponse is the response body for POST /imports/devices/parse.
type devicePreviewResponse struct {
	ImportID   string                 `json:"import_id"`
	SourceFile string                 `json:"source_file"`
	Protocol   string                 `json:"protocol"`
	ParsedAt   time.Time              `json:"parsed_at"`
	Devices    []niagara.DeviceRecord `json:"devices"`
}

// handleDevicesParse parses an uploaded BACnet or N2 device CSV and returns
// the recognised devices for preview. The protocol comes from the
// "protocol" form field and defaults to bacnet.
func (s *Server) handleDevicesParse(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	protocol := r.FormValue("protocol")
	if protocol == "" {
		protocol = "bacnet"
	}
	if protocol != "bacnet" && protocol != "n2" {
		writeBadRequest(w, "protocol must be bacnet or n2")
		return
	}

	devices := niagara.ParseDeviceCSV(string(data), protocol)

	claims := claimsFromContext(r.Context())
	resp := devicePreviewResponse{
		ImportID:   uuid.NewString(),
		SourceFile: filename,
		Protocol:   protocol,
		ParsedAt:   time.Now().UTC(),
		Devices:    devices,
	}

	s.previews.put(resp.ImportID, previewEntry{
		Kind:       previewDevices,
		SourceFile: filename,
		ParsedBy:   claims.Subject,
		ParsedAt:   resp.ParsedAt,
		Devices:    devices,
		Protocol:   protocol,
	})

	s.logger.Info("device CSV parsed",
		"import_id", resp.ImportID,
		"filename", filename,
		"protocol", protocol,
		"devices", len(devices),
	)

	writeJSON(w, http.StatusOK, resp)
}

// commitRequest is the request body for device and resource commits.
type commitRequest struct {
	ImportID     string `json:"import_id"`
	ControllerID string `json:"controller_id"`
}

// handleDevicesCommit merges a parsed device CSV into the controller's
// inventory. Known devices are refreshed, new ones inserted; devices absent
// from the upload are kept (they may simply be offline).
func (s *Server) handleDevicesCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ImportID == "" || req.ControllerID == "" {
		writeBadRequest(w, "import_id and controller_id are required")
		return
	}

	entry, ok := s.previews.take(req.ImportID)
	if !ok || entry.Kind != previewDevices {
		writeNotFound(w, "import preview not found or expired; parse the file again")
		return
	}

	ctl, err := s.snapshotRepo.GetController(r.Context(), req.ControllerID)
	if err != nil {
		if errors.Is(err, snapshot.ErrControllerNotFound) {
			writeNotFound(w, "controller not found")
			return
		}
		s.logger.Error("controller lookup failed", "error", err)
		writeInternalError(w, "failed to resolve controller")
		return
	}

	result, err := s.deviceRepo.UpsertDevices(r.Context(), ctl.ID, entry.Protocol, entry.Devices)
	if err != nil {
		s.logger.Error("device upsert failed", "controller_id", ctl.ID, "error", err)
		writeInternalError(w, "failed to store devices")
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("device import committed",
		"import_id", req.ImportID,
		"controller_id", ctl.ID,
		"protocol", entry.Protocol,
		"inserted", result.Inserted,
		"updated", result.Updated,
	)
	s.auditLog("commit", "devices", ctl.ID, claims.Subject, map[string]any{
		"protocol": entry.Protocol,
		"inserted": result.Inserted,
		"updated":  result.Updated,
	})

	s.publishEvent("import.devices", topics.ImportCommitted("devices", ctl.ID), map[string]any{
		"controller_id": ctl.ID,
		"protocol":      entry.Protocol,
		"inserted":      result.Inserted,
		"updated":       result.Updated,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"controller_id": ctl.ID,
		"protocol":      entry.Protocol,
		"inserted":      result.Inserted,
		"updated":       result.Updated,
	})
}

// ─── Resource usage CSVs ───────────────────────────────────────────

// resourcePreviewResponse is the response body for POST /imports/resources/parse.
type resourcePreviewResponse struct {
	ImportID   string                   `json:"import_id"`
	SourceFile string                   `json:"source_file"`
	ParsedAt   time.Time                `json:"parsed_at"`
	Metrics    []niagara.ResourceMetric `json:"metrics"`
}

// handleResourcesParse parses an uploaded resource-usage CSV for preview.
func (s *Server) handleResourcesParse(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	metrics := niagara.ParseResourceCSV(string(data))

	claims := claimsFromContext(r.Context())
	resp := resourcePreviewResponse{
		ImportID:   uuid.NewString(),
		SourceFile: filename,
		ParsedAt:   time.Now().UTC(),
		Metrics:    metrics,
	}

	s.previews.put(resp.ImportID, previewEntry{
		Kind:       previewResources,
		SourceFile: filename,
		ParsedBy:   claims.Subject,
		ParsedAt:   resp.ParsedAt,
		Resources:  metrics,
	})

	s.logger.Info("resource CSV parsed",
		"import_id", resp.ImportID,
		"filename", filename,
		"metrics", len(metrics),
	)

	writeJSON(w, http.StatusOK, resp)
}

// handleResourcesCommit stores the latest resource readings for a
// controller and, when InfluxDB is enabled, writes history points.
// Metrics at or over their licence limit raise a resource alert.
func (s *Server) handleResourcesCommit(w http.ResponseWriter, r *http.Request) { //nolint:gocognit // commit pipeline: preview lookup + latest-store + history + alerts
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ImportID == "" || req.ControllerID == "" {
		writeBadRequest(w, "import_id and controller_id are required")
		return
	}

	entry, ok := s.previews.take(req.ImportID)
	if !ok || entry.Kind != previewResources {
		writeNotFound(w, "import preview not found or expired; parse the file again")
		return
	}

	ctl, err := s.snapshotRepo.GetController(r.Context(), req.ControllerID)
	if err != nil {
		if errors.Is(err, snapshot.ErrControllerNotFound) {
			writeNotFound(w, "controller not found")
			return
		}
		s.logger.Error("controller lookup failed", "error", err)
		writeInternalError(w, "failed to resolve controller")
		return
	}

	capturedAt := time.Now().UTC()
	written, err := s.resourceRepo.UpsertLatest(r.Context(), ctl.ID, entry.Resources, capturedAt)
	if err != nil {
		s.logger.Error("resource upsert failed", "controller_id", ctl.ID, "error", err)
		writeInternalError(w, "failed to store resource metrics")
		return
	}

	// History points and capacity alerts
	var alerts []string
	for _, m := range entry.Resources {
		if m.Name == "" {
			continue
		}
		if s.influx != nil {
			if m.Limit != nil {
				s.influx.WriteResourceLimit(ctl.ID, m.Name, m.Value, *m.Limit)
			} else {
				s.influx.WriteResourceMetric(ctl.ID, m.Name, m.Value, m.Unit)
			}
		}
		if m.Limit != nil && *m.Limit > 0 && m.Value >= *m.Limit {
			alerts = append(alerts, m.Name)
		}
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("resource import committed",
		"import_id", req.ImportID,
		"controller_id", ctl.ID,
		"metrics", written,
		"alerts", len(alerts),
	)
	s.auditLog("commit", "resources", ctl.ID, claims.Subject, map[string]any{
		"metrics": written,
	})

	s.publishEvent("import.resources", topics.ImportCommitted("resources", ctl.ID), map[string]any{
		"controller_id": ctl.ID,
		"metrics":       written,
	})

	for _, name := range alerts {
		s.publishEvent("alert.resource", topics.ResourceAlert(ctl.ID), map[string]any{
			"controller_id": ctl.ID,
			"metric":        name,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"controller_id": ctl.ID,
		"metrics":       written,
		"alerts":        alerts,
		"captured_at":   capturedAt,
	})
}
