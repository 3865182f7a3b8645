package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldline/stationpm/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler { //nolint:gocognit // route table: one nesting level per resource
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)
		r.Post("/auth/logout", s.handleLogout)

		// WebSocket upgrade authenticates via single-use ticket (browsers
		// cannot set an Authorization header on the upgrade request)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			// WS ticket requires authentication - user must be logged in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Diagnostic export imports (two-phase: parse preview, then commit)
			r.Route("/imports", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermImportCommit))

				r.Post("/platform/parse", s.handlePlatformParse)
				r.Post("/platform", s.handlePlatformCommit)
				r.Post("/devices/parse", s.handleDevicesParse)
				r.Post("/devices", s.handleDevicesCommit)
				r.Post("/resources/parse", s.handleResourcesParse)
				r.Post("/resources", s.handleResourcesCommit)
			})

			// Controller registry and per-controller views
			r.Route("/controllers", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermControllerRead)).Get("/", s.handleListControllers)
				r.With(s.requirePermission(auth.PermImportCommit)).Post("/", s.handleCreateController)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.requirePermission(auth.PermControllerRead)).Get("/", s.handleGetController)
					r.With(s.requirePermission(auth.PermImportCommit)).Patch("/", s.handleUpdateController)
					r.With(s.requirePermission(auth.PermSystemAdmin)).Delete("/", s.handleDeleteController)

					r.Group(func(r chi.Router) {
						r.Use(s.requirePermission(auth.PermControllerRead))
						r.Get("/devices", s.handleListControllerDevices)
						r.Get("/resources", s.handleListControllerResources)
						r.Get("/snapshots/latest", s.handleLatestSnapshot)
					})
				})
			})

			// Snapshot history
			r.Route("/snapshots", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermControllerRead)).Get("/", s.handleListSnapshots)
				r.With(s.requirePermission(auth.PermControllerRead)).Get("/{id}", s.handleGetSnapshot)
				r.With(s.requirePermission(auth.PermSystemAdmin)).Delete("/{id}", s.handleDeleteSnapshot)
			})

			// Maintenance visits
			r.Route("/visits", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermVisitManage))

				r.Get("/", s.handleListVisits)
				r.Post("/", s.handleCreateVisit)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetVisit)
					r.Patch("/", s.handleUpdateVisit)
					r.With(s.requirePermission(auth.PermSystemAdmin)).Delete("/", s.handleDeleteVisit)
					r.With(s.requirePermission(auth.PermVisitReview)).Post("/sign-off", s.handleSignOffVisit)

					r.Post("/checklist", s.handleAddChecklistItem)
					r.Patch("/checklist/{itemID}", s.handleToggleChecklistItem)
					r.Post("/tasks", s.handleAddTask)
					r.Patch("/tasks/{taskID}", s.handleUpdateTask)
				})
			})

			// SOP procedures
			r.Route("/procedures", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermVisitManage)).Get("/", s.handleListProcedures)
				r.With(s.requirePermission(auth.PermProcedureManage)).Post("/", s.handleCreateProcedure)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.requirePermission(auth.PermVisitManage)).Get("/", s.handleGetProcedure)
					r.With(s.requirePermission(auth.PermProcedureManage)).Patch("/", s.handleUpdateProcedure)
					r.With(s.requirePermission(auth.PermProcedureManage)).Delete("/", s.handleDeleteProcedure)
				})
			})

			// User management
			r.Route("/users", func(r chi.Router) {
				// Password changes are permitted for self; the handler
				// enforces the admin requirement for other accounts.
				r.Post("/{id}/password", s.handleChangePassword)

				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermUserManage))

					r.Get("/", s.handleListUsers)
					r.Post("/", s.handleCreateUser)
					r.Get("/{id}", s.handleGetUser)
					r.Patch("/{id}", s.handleUpdateUser)
					r.Delete("/{id}", s.handleDeleteUser)
					r.Get("/{id}/sessions", s.handleListUserSessions)
					r.Delete("/{id}/sessions", s.handleRevokeUserSessions)
				})
			})

			// Audit trail
			r.With(s.requirePermission(auth.PermSystemAdmin)).Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
