package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldline/stationpm/internal/snapshot"
)

// createControllerRequest is the request body for POST /controllers.
type createControllerRequest struct {
	Name     string `json:"name"`
	SiteName string `json:"site_name,omitempty"`
	HostID   string `json:"host_id,omitempty"`
	Model    string `json:"model,omitempty"`
	Address  string `json:"address,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// updateControllerRequest is the request body for PATCH /controllers/{id}.
// Nil fields are left unchanged.
type updateControllerRequest struct {
	Name     *string `json:"name,omitempty"`
	SiteName *string `json:"site_name,omitempty"`
	Model    *string `json:"model,omitempty"`
	Address  *string `json:"address,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

// handleListControllers returns all registered controllers.
func (s *Server) handleListControllers(w http.ResponseWriter, r *http.Request) {
	controllers, err := s.snapshotRepo.ListControllers(r.Context())
	if err != nil {
		s.logger.Error("list controllers failed", "error", err)
		writeInternalError(w, "failed to list controllers")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"controllers": controllers,
		"count":       len(controllers),
	})
}

// handleCreateController registers a controller manually. Controllers are
// also registered implicitly when a platform import arrives with an unseen
// host ID.
func (s *Server) handleCreateController(w http.ResponseWriter, r *http.Request) {
	var req createControllerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	ctl := &snapshot.Controller{
		Name:     req.Name,
		SiteName: req.SiteName,
		HostID:   req.HostID,
		Model:    req.Model,
		Address:  req.Address,
		Notes:    req.Notes,
	}
	if err := s.snapshotRepo.CreateController(r.Context(), ctl); err != nil {
		if errors.Is(err, snapshot.ErrControllerExists) {
			writeConflict(w, "a controller with that name already exists")
			return
		}
		s.logger.Error("create controller failed", "error", err)
		writeInternalError(w, "failed to create controller")
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("controller created", "controller_id", ctl.ID, "name", ctl.Name, "created_by", claims.Subject)
	s.auditLog("create", "controller", ctl.ID, claims.Subject, map[string]any{"name": ctl.Name})

	writeJSON(w, http.StatusCreated, ctl)
}

// handleGetController returns a single controller by ID.
func (s *Server) handleGetController(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctl, err := s.snapshotRepo.GetController(r.Context(), id)
	if err != nil {
		if errors.Is(err, snapshot.ErrControllerNotFound) {
			writeNotFound(w, "controller not found")
			return
		}
		s.logger.Error("get controller failed", "error", err)
		writeInternalError(w, "failed to get controller")
		return
	}

	writeJSON(w, http.StatusOK, ctl)
}

// handleUpdateController modifies a controller's mutable fields.
func (s *Server) handleUpdateController(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateControllerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctl, err := s.snapshotRepo.GetController(r.Context(), id)
	if err != nil {
		if errors.Is(err, snapshot.ErrControllerNotFound) {
			writeNotFound(w, "controller not found")
			return
		}
		s.logger.Error("get controller for update failed", "error", err)
		writeInternalError(w, "failed to update controller")
		return
	}

	if req.Name != nil {
		ctl.Name = *req.Name
	}
	if req.SiteName != nil {
		ctl.SiteName = *req.SiteName
	}
	if req.Model != nil {
		ctl.Model = *req.Model
	}
	if req.Address != nil {
		ctl.Address = *req.Address
	}
	if req.Notes != nil {
		ctl.Notes = *req.Notes
	}

	if err := s.snapshotRepo.UpdateController(r.Context(), ctl); err != nil {
		if errors.Is(err, snapshot.ErrControllerExists) {
			writeConflict(w, "a controller with that name already exists")
			return
		}
		s.logger.Error("update controller failed", "error", err)
		writeInternalError(w, "failed to update controller")
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("update", "controller", id, claims.Subject, nil)

	s.publishEvent("controller.updated", topics.ControllerUpdated(ctl.ID), map[string]any{
		"controller_id": ctl.ID,
		"name":          ctl.Name,
	})

	writeJSON(w, http.StatusOK, ctl)
}

// handleDeleteController removes a controller along with its snapshots,
// device inventory, and resource metrics.
func (s *Server) handleDeleteController(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Devices and metrics are deleted explicitly; snapshots cascade via FK.
	if _, err := s.deviceRepo.DeleteByController(r.Context(), id); err != nil {
		s.logger.Error("delete controller devices failed", "controller_id", id, "error", err)
		writeInternalError(w, "failed to delete controller")
		return
	}
	if _, err := s.resourceRepo.DeleteByController(r.Context(), id); err != nil {
		s.logger.Error("delete controller metrics failed", "controller_id", id, "error", err)
		writeInternalError(w, "failed to delete controller")
		return
	}

	if err := s.snapshotRepo.DeleteController(r.Context(), id); err != nil {
		if errors.Is(err, snapshot.ErrControllerNotFound) {
			writeNotFound(w, "controller not found")
			return
		}
		s.logger.Error("delete controller failed", "error", err)
		writeInternalError(w, "failed to delete controller")
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("controller deleted", "controller_id", id, "deleted_by", claims.Subject)
	s.auditLog("delete", "controller", id, claims.Subject, nil)

	w.WriteHeader(http.StatusNoContent)
}

// handleListControllerDevices returns the device inventory for a controller,
// optionally filtered by protocol.
func (s *Server) handleListControllerDevices(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	protocol := r.URL.Query().Get("protocol")

	var err error
	var devices any
	if protocol != "" {
		devices, err = s.deviceRepo.ListByProtocol(r.Context(), id, protocol)
	} else {
		devices, err = s.deviceRepo.ListByController(r.Context(), id)
	}
	if err != nil {
		s.logger.Error("list devices failed", "controller_id", id, "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

// handleListControllerResources returns the latest resource readings for a controller.
func (s *Server) handleListControllerResources(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	metrics, err := s.resourceRepo.ListByController(r.Context(), id)
	if err != nil {
		s.logger.Error("list resource metrics failed", "controller_id", id, "error", err)
		writeInternalError(w, "failed to list resource metrics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"metrics": metrics,
		"count":   len(metrics),
	})
}
