package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldline/stationpm/internal/visit"
)

// createProcedureRequest is the request body for POST /procedures.
type createProcedureRequest struct {
	Title  string `json:"title"`
	System string `json:"system,omitempty"`
	Body   string `json:"body"`
}

// updateProcedureRequest is the request body for PATCH /procedures/{id}.
// Any change bumps the procedure version.
type updateProcedureRequest struct {
	Title  *string `json:"title,omitempty"`
	System *string `json:"system,omitempty"`
	Body   *string `json:"body,omitempty"`
}

// handleListProcedures returns all SOP procedures.
func (s *Server) handleListProcedures(w http.ResponseWriter, r *http.Request) {
	procedures, err := s.visitRepo.ListProcedures(r.Context())
	if err != nil {
		s.logger.Error("list procedures failed", "error", err)
		writeInternalError(w, "failed to list procedures")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"procedures": procedures,
		"count":      len(procedures),
	})
}

// handleCreateProcedure creates an SOP document at version 1.
func (s *Server) handleCreateProcedure(w http.ResponseWriter, r *http.Request) {
	var req createProcedureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Title == "" || req.Body == "" {
		writeBadRequest(w, "title and body are required")
		return
	}

	claims := claimsFromContext(r.Context())
	p := &visit.Procedure{
		Title:     req.Title,
		System:    req.System,
		Body:      req.Body,
		CreatedBy: claims.Subject,
	}
	if err := s.visitRepo.CreateProcedure(r.Context(), p); err != nil {
		s.logger.Error("create procedure failed", "error", err)
		writeInternalError(w, "failed to create procedure")
		return
	}

	s.logger.Info("procedure created", "procedure_id", p.ID, "title", p.Title, "created_by", claims.Subject)
	s.auditLog("create", "procedure", p.ID, claims.Subject, map[string]any{"title": p.Title})

	writeJSON(w, http.StatusCreated, p)
}

// handleGetProcedure returns a single procedure by ID.
func (s *Server) handleGetProcedure(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := s.visitRepo.GetProcedure(r.Context(), id)
	if err != nil {
		if errors.Is(err, visit.ErrProcedureNotFound) {
			writeNotFound(w, "procedure not found")
			return
		}
		s.logger.Error("get procedure failed", "error", err)
		writeInternalError(w, "failed to get procedure")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// handleUpdateProcedure patches a procedure, bumping its version.
func (s *Server) handleUpdateProcedure(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateProcedureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p, err := s.visitRepo.GetProcedure(r.Context(), id)
	if err != nil {
		if errors.Is(err, visit.ErrProcedureNotFound) {
			writeNotFound(w, "procedure not found")
			return
		}
		s.logger.Error("get procedure for update failed", "error", err)
		writeInternalError(w, "failed to update procedure")
		return
	}

	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.System != nil {
		p.System = *req.System
	}
	if req.Body != nil {
		p.Body = *req.Body
	}

	if err := s.visitRepo.UpdateProcedure(r.Context(), p); err != nil {
		s.logger.Error("update procedure failed", "procedure_id", id, "error", err)
		writeInternalError(w, "failed to update procedure")
		return
	}

	// Re-read for the bumped version and updated timestamp.
	p, err = s.visitRepo.GetProcedure(r.Context(), id)
	if err != nil {
		s.logger.Error("get procedure after update failed", "error", err)
		writeInternalError(w, "failed to load procedure")
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("update", "procedure", id, claims.Subject, map[string]any{"version": p.Version})

	writeJSON(w, http.StatusOK, p)
}

// handleDeleteProcedure removes a procedure. Existing tasks keep their
// loose reference for historical reads.
func (s *Server) handleDeleteProcedure(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.visitRepo.DeleteProcedure(r.Context(), id); err != nil {
		if errors.Is(err, visit.ErrProcedureNotFound) {
			writeNotFound(w, "procedure not found")
			return
		}
		s.logger.Error("delete procedure failed", "error", err)
		writeInternalError(w, "failed to delete procedure")
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("delete", "procedure", id, claims.Subject, nil)

	w.WriteHeader(http.StatusNoContent)
}
