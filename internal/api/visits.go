package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldline/stationpm/internal/snapshot"
	"github.com/fieldline/stationpm/internal/visit"
)

// createVisitRequest is the request body for POST /visits.
type createVisitRequest struct {
	ControllerID string    `json:"controller_id"`
	TechnicianID string    `json:"technician_id,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Notes        string    `json:"notes,omitempty"`
	Checklist    []string  `json:"checklist,omitempty"`
}

// updateVisitRequest is the request body for PATCH /visits/{id}.
// Status moves the visit along its lifecycle; notes replaces the notes text.
type updateVisitRequest struct {
	Status *visit.Status `json:"status,omitempty"`
	Notes  *string       `json:"notes,omitempty"`
}

// handleListVisits returns visits, optionally filtered by controller.
func (s *Server) handleListVisits(w http.ResponseWriter, r *http.Request) {
	controllerID := r.URL.Query().Get("controller_id")

	var visits []visit.Visit
	var err error
	if controllerID != "" {
		visits, err = s.visitRepo.ListVisitsByController(r.Context(), controllerID)
	} else {
		visits, err = s.visitRepo.ListVisits(r.Context())
	}
	if err != nil {
		s.logger.Error("list visits failed", "error", err)
		writeInternalError(w, "failed to list visits")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"visits": visits,
		"count":  len(visits),
	})
}

// handleCreateVisit schedules a maintenance visit. The caller becomes the
// assigned technician unless technician_id says otherwise. Checklist labels
// become pre-visit items in the given order.
func (s *Server) handleCreateVisit(w http.ResponseWriter, r *http.Request) {
	var req createVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ControllerID == "" {
		writeBadRequest(w, "controller_id is required")
		return
	}
	if req.ScheduledFor.IsZero() {
		writeBadRequest(w, "scheduled_for is required")
		return
	}

	// The controller must exist; visits against deleted controllers are
	// rejected rather than silently orphaned.
	if _, err := s.snapshotRepo.GetController(r.Context(), req.ControllerID); err != nil {
		if errors.Is(err, snapshot.ErrControllerNotFound) {
			writeNotFound(w, "controller not found")
			return
		}
		s.logger.Error("controller lookup for visit failed", "error", err)
		writeInternalError(w, "failed to create visit")
		return
	}

	claims := claimsFromContext(r.Context())
	technicianID := req.TechnicianID
	if technicianID == "" {
		technicianID = claims.Subject
	}

	v := &visit.Visit{
		ControllerID: req.ControllerID,
		TechnicianID: technicianID,
		ScheduledFor: req.ScheduledFor,
		Notes:        req.Notes,
	}
	if err := s.visitRepo.CreateVisit(r.Context(), v); err != nil {
		s.logger.Error("create visit failed", "error", err)
		writeInternalError(w, "failed to create visit")
		return
	}

	for i, label := range req.Checklist {
		item := &visit.ChecklistItem{
			VisitID:   v.ID,
			Label:     label,
			SortOrder: i,
		}
		if err := s.visitRepo.AddChecklistItem(r.Context(), item); err != nil {
			s.logger.Error("add checklist item failed", "visit_id", v.ID, "error", err)
			writeInternalError(w, "failed to create visit checklist")
			return
		}
		v.Checklist = append(v.Checklist, *item)
	}

	s.logger.Info("visit created", "visit_id", v.ID, "controller_id", v.ControllerID, "created_by", claims.Subject)
	s.auditLog("create", "visit", v.ID, claims.Subject, map[string]any{
		"controller_id": v.ControllerID,
	})

	writeJSON(w, http.StatusCreated, v)
}

// handleGetVisit returns a visit with its checklist and tasks.
func (s *Server) handleGetVisit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	v, err := s.visitRepo.GetVisit(r.Context(), id)
	if err != nil {
		if errors.Is(err, visit.ErrVisitNotFound) {
			writeNotFound(w, "visit not found")
			return
		}
		s.logger.Error("get visit failed", "error", err)
		writeInternalError(w, "failed to get visit")
		return
	}

	writeJSON(w, http.StatusOK, v)
}

// handleUpdateVisit patches a visit's status and/or notes.
//
// Status moves are forward-only: planned → in_progress → complete.
// Sign-off is a separate endpoint because it needs the review permission.
func (s *Server) handleUpdateVisit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Status != nil {
		if *req.Status == visit.StatusSignedOff {
			writeBadRequest(w, "use the sign-off endpoint to sign off a visit")
			return
		}
		if err := s.visitRepo.UpdateVisitStatus(r.Context(), id, *req.Status); err != nil {
			switch {
			case errors.Is(err, visit.ErrVisitNotFound):
				writeNotFound(w, "visit not found")
			case errors.Is(err, visit.ErrInvalidStatus):
				writeBadRequest(w, "invalid status")
			case errors.Is(err, visit.ErrInvalidTransition):
				writeConflict(w, "visit cannot move to that status")
			default:
				s.logger.Error("update visit status failed", "visit_id", id, "error", err)
				writeInternalError(w, "failed to update visit")
			}
			return
		}
	}

	if req.Notes != nil {
		if err := s.visitRepo.UpdateVisitNotes(r.Context(), id, *req.Notes); err != nil {
			if errors.Is(err, visit.ErrVisitNotFound) {
				writeNotFound(w, "visit not found")
				return
			}
			s.logger.Error("update visit notes failed", "visit_id", id, "error", err)
			writeInternalError(w, "failed to update visit")
			return
		}
	}

	v, err := s.visitRepo.GetVisit(r.Context(), id)
	if err != nil {
		if errors.Is(err, visit.ErrVisitNotFound) {
			writeNotFound(w, "visit not found")
			return
		}
		s.logger.Error("get visit after update failed", "error", err)
		writeInternalError(w, "failed to load visit")
		return
	}

	claims := claimsFromContext(r.Context())
	if req.Status != nil {
		s.auditLog("update", "visit", id, claims.Subject, map[string]any{"status": v.Status})
		s.publishEvent("visit.status", topics.VisitStatus(id), map[string]any{
			"visit_id": id,
			"status":   v.Status,
		})
	}

	writeJSON(w, http.StatusOK, v)
}

// handleSignOffVisit marks a completed visit as reviewed by a supervisor.
func (s *Server) handleSignOffVisit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := claimsFromContext(r.Context())

	if err := s.visitRepo.SignOffVisit(r.Context(), id, claims.Subject); err != nil {
		switch {
		case errors.Is(err, visit.ErrVisitNotFound):
			writeNotFound(w, "visit not found")
		case errors.Is(err, visit.ErrNotComplete):
			writeConflict(w, "only completed visits can be signed off")
		default:
			s.logger.Error("sign off failed", "visit_id", id, "error", err)
			writeInternalError(w, "failed to sign off visit")
		}
		return
	}

	v, err := s.visitRepo.GetVisit(r.Context(), id)
	if err != nil {
		s.logger.Error("get visit after sign-off failed", "error", err)
		writeInternalError(w, "failed to load visit")
		return
	}

	s.logger.Info("visit signed off", "visit_id", id, "supervisor_id", claims.Subject)
	s.auditLog("sign_off", "visit", id, claims.Subject, nil)
	s.publishEvent("visit.status", topics.VisitStatus(id), map[string]any{
		"visit_id": id,
		"status":   visit.StatusSignedOff,
	})

	writeJSON(w, http.StatusOK, v)
}

// handleDeleteVisit removes a visit with its checklist and tasks.
func (s *Server) handleDeleteVisit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.visitRepo.DeleteVisit(r.Context(), id); err != nil {
		if errors.Is(err, visit.ErrVisitNotFound) {
			writeNotFound(w, "visit not found")
			return
		}
		s.logger.Error("delete visit failed", "error", err)
		writeInternalError(w, "failed to delete visit")
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("delete", "visit", id, claims.Subject, nil)

	w.WriteHeader(http.StatusNoContent)
}

// ─── Checklist items ───────────────────────────────────────────────

// addChecklistItemRequest is the request body for POST /visits/{id}/checklist.
type addChecklistItemRequest struct {
	Label     string `json:"label"`
	SortOrder int    `json:"sort_order,omitempty"`
}

// checklistToggleRequest is the request body for PATCH /visits/{id}/checklist/{itemID}.
type checklistToggleRequest struct {
	Done bool `json:"done"`
}

// handleAddChecklistItem appends a preparation item to a visit.
func (s *Server) handleAddChecklistItem(w http.ResponseWriter, r *http.Request) {
	visitID := chi.URLParam(r, "id")

	var req addChecklistItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Label == "" {
		writeBadRequest(w, "label is required")
		return
	}

	if _, err := s.visitRepo.GetVisit(r.Context(), visitID); err != nil {
		if errors.Is(err, visit.ErrVisitNotFound) {
			writeNotFound(w, "visit not found")
			return
		}
		s.logger.Error("visit lookup failed", "error", err)
		writeInternalError(w, "failed to add checklist item")
		return
	}

	item := &visit.ChecklistItem{
		VisitID:   visitID,
		Label:     req.Label,
		SortOrder: req.SortOrder,
	}
	if err := s.visitRepo.AddChecklistItem(r.Context(), item); err != nil {
		s.logger.Error("add checklist item failed", "visit_id", visitID, "error", err)
		writeInternalError(w, "failed to add checklist item")
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// handleToggleChecklistItem sets a checklist item's done flag.
func (s *Server) handleToggleChecklistItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	var req checklistToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.visitRepo.SetChecklistItemDone(r.Context(), itemID, req.Done); err != nil {
		if errors.Is(err, visit.ErrItemNotFound) {
			writeNotFound(w, "checklist item not found")
			return
		}
		s.logger.Error("toggle checklist item failed", "item_id", itemID, "error", err)
		writeInternalError(w, "failed to update checklist item")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":   itemID,
		"done": req.Done,
	})
}

// ─── Tasks ─────────────────────────────────────────────────────────

// addTaskRequest is the request body for POST /visits/{id}/tasks.
type addTaskRequest struct {
	Title       string `json:"title"`
	ProcedureID string `json:"procedure_id,omitempty"`
	SortOrder   int    `json:"sort_order,omitempty"`
}

// updateTaskRequest is the request body for PATCH /visits/{id}/tasks/{taskID}.
type updateTaskRequest struct {
	Status visit.TaskStatus `json:"status"`
	Notes  string           `json:"notes,omitempty"`
}

// handleAddTask appends an on-site work item to a visit.
func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	visitID := chi.URLParam(r, "id")

	var req addTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeBadRequest(w, "title is required")
		return
	}

	if _, err := s.visitRepo.GetVisit(r.Context(), visitID); err != nil {
		if errors.Is(err, visit.ErrVisitNotFound) {
			writeNotFound(w, "visit not found")
			return
		}
		s.logger.Error("visit lookup failed", "error", err)
		writeInternalError(w, "failed to add task")
		return
	}

	// A referenced procedure must exist at task creation time.
	if req.ProcedureID != "" {
		if _, err := s.visitRepo.GetProcedure(r.Context(), req.ProcedureID); err != nil {
			if errors.Is(err, visit.ErrProcedureNotFound) {
				writeBadRequest(w, "referenced procedure does not exist")
				return
			}
			s.logger.Error("procedure lookup failed", "error", err)
			writeInternalError(w, "failed to add task")
			return
		}
	}

	task := &visit.Task{
		VisitID:     visitID,
		Title:       req.Title,
		ProcedureID: req.ProcedureID,
		SortOrder:   req.SortOrder,
	}
	if err := s.visitRepo.AddTask(r.Context(), task); err != nil {
		s.logger.Error("add task failed", "visit_id", visitID, "error", err)
		writeInternalError(w, "failed to add task")
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// handleUpdateTask sets a task's status and completion notes.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !visit.IsValidTaskStatus(req.Status) {
		writeBadRequest(w, "status must be pending, done, or skipped")
		return
	}

	if err := s.visitRepo.UpdateTaskStatus(r.Context(), taskID, req.Status, req.Notes); err != nil {
		if errors.Is(err, visit.ErrTaskNotFound) {
			writeNotFound(w, "task not found")
			return
		}
		s.logger.Error("update task failed", "task_id", taskID, "error", err)
		writeInternalError(w, "failed to update task")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     taskID,
		"status": req.Status,
	})
}
