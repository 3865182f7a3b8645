package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldline/stationpm/internal/snapshot"
)

// handleListSnapshots returns snapshot summaries for a controller, newest
// first. Payloads are omitted from listings; fetch a single snapshot for
// the full platform record.
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	controllerID := r.URL.Query().Get("controller_id")
	if controllerID == "" {
		writeBadRequest(w, "controller_id query parameter is required")
		return
	}

	snaps, err := s.snapshotRepo.ListSnapshots(r.Context(), controllerID)
	if err != nil {
		s.logger.Error("list snapshots failed", "controller_id", controllerID, "error", err)
		writeInternalError(w, "failed to list snapshots")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": snaps,
		"count":     len(snaps),
	})
}

// handleGetSnapshot returns a single snapshot with its decoded platform record.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := s.snapshotRepo.GetSnapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			writeNotFound(w, "snapshot not found")
			return
		}
		s.logger.Error("get snapshot failed", "error", err)
		writeInternalError(w, "failed to get snapshot")
		return
	}

	s.writeSnapshotWithPlatform(w, snap)
}

// handleLatestSnapshot returns the most recent snapshot for a controller.
func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	controllerID := chi.URLParam(r, "id")

	snap, err := s.snapshotRepo.LatestSnapshot(r.Context(), controllerID)
	if err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			writeNotFound(w, "controller has no snapshots")
			return
		}
		s.logger.Error("latest snapshot failed", "controller_id", controllerID, "error", err)
		writeInternalError(w, "failed to get snapshot")
		return
	}

	s.writeSnapshotWithPlatform(w, snap)
}

// handleDeleteSnapshot removes a snapshot.
func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.snapshotRepo.DeleteSnapshot(r.Context(), id); err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			writeNotFound(w, "snapshot not found")
			return
		}
		s.logger.Error("delete snapshot failed", "error", err)
		writeInternalError(w, "failed to delete snapshot")
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("snapshot deleted", "snapshot_id", id, "deleted_by", claims.Subject)
	s.auditLog("delete", "snapshot", id, claims.Subject, nil)

	w.WriteHeader(http.StatusNoContent)
}

// writeSnapshotWithPlatform responds with the snapshot record plus its
// decoded platform payload. Older rows with undecodable payloads still
// return their metadata.
func (s *Server) writeSnapshotWithPlatform(w http.ResponseWriter, snap *snapshot.Snapshot) {
	platform, err := snap.Platform()
	if err != nil {
		s.logger.Warn("snapshot payload decode failed", "snapshot_id", snap.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": snap,
		"platform": platform,
	})
}
