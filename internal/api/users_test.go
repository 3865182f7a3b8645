package api

import (
	"net/http"
	"testing"

	"github.com/fieldline/stationpm/internal/auth"
)

func TestCreateUser_RequiresUserManage(t *testing.T) {
	env := testServer(t)
	env.seedUser("dmorris", auth.RoleTechnician)
	env.seedUser("ssharma", auth.RoleSupervisor)
	tech := env.login("dmorris")
	supervisor := env.login("ssharma")

	body := map[string]any{
		"username":     "newtech",
		"password":     "entropy is cheap",
		"display_name": "New Technician",
	}

	rec := env.request(http.MethodPost, "/api/v1/users/", tech, body)
	wantStatus(t, rec, http.StatusForbidden)

	rec = env.request(http.MethodPost, "/api/v1/users/", supervisor, body)
	wantStatus(t, rec, http.StatusCreated)

	var created map[string]any
	env.decode(rec, &created)
	if got := stringField(t, created, "role"); got != "technician" {
		t.Errorf("default role = %q, want technician", got)
	}
	if _, leaked := created["password_hash"]; leaked {
		t.Error("password hash leaked in create response")
	}

	// The new account can log in straight away.
	rec = env.request(http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": "newtech",
		"password": "entropy is cheap",
	})
	wantStatus(t, rec, http.StatusOK)
}

func TestCreateUser_OnlyAdminCreatesAdmin(t *testing.T) {
	env := testServer(t)
	env.seedUser("ssharma", auth.RoleSupervisor)
	env.seedUser("root", auth.RoleAdmin)
	supervisor := env.login("ssharma")
	admin := env.login("root")

	body := map[string]any{
		"username":     "shadow",
		"password":     "entropy is cheap",
		"display_name": "Shadow Admin",
		"role":         "admin",
	}

	rec := env.request(http.MethodPost, "/api/v1/users/", supervisor, body)
	wantStatus(t, rec, http.StatusForbidden)

	rec = env.request(http.MethodPost, "/api/v1/users/", admin, body)
	wantStatus(t, rec, http.StatusCreated)
}

func TestUpdateUser_SelfProtection(t *testing.T) {
	env := testServer(t)
	supervisor := env.seedUser("ssharma", auth.RoleSupervisor)
	token := env.login("ssharma")

	rec := env.request(http.MethodPatch, "/api/v1/users/"+supervisor.ID, token, map[string]any{
		"is_active": false,
	})
	wantStatus(t, rec, http.StatusForbidden)

	rec = env.request(http.MethodPatch, "/api/v1/users/"+supervisor.ID, token, map[string]any{
		"role": "admin",
	})
	wantStatus(t, rec, http.StatusForbidden)
}

func TestUpdateUser_DeactivationRevokesSessions(t *testing.T) {
	env := testServer(t)
	tech := env.seedUser("dmorris", auth.RoleTechnician)
	env.seedUser("ssharma", auth.RoleSupervisor)
	techToken := env.login("dmorris")
	supervisor := env.login("ssharma")

	rec := env.request(http.MethodPatch, "/api/v1/users/"+tech.ID, supervisor, map[string]any{
		"is_active": false,
	})
	wantStatus(t, rec, http.StatusOK)

	// Their refresh tokens are gone; the inactive account cannot log back in.
	rec = env.request(http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": "dmorris",
		"password": testPassword,
	})
	wantStatus(t, rec, http.StatusForbidden)

	// The still-valid access token keeps working until it expires, which is
	// why deactivation also revokes the refresh token family.
	rec = env.request(http.MethodGet, "/api/v1/auth/me", techToken, nil)
	wantStatus(t, rec, http.StatusOK)
}

func TestDeleteUser_Guards(t *testing.T) {
	env := testServer(t)
	env.seedUser("ssharma", auth.RoleSupervisor)
	root := env.seedUser("root", auth.RoleAdmin)
	tech := env.seedUser("dmorris", auth.RoleTechnician)
	supervisor := env.login("ssharma")
	admin := env.login("root")

	// Supervisors cannot delete admins.
	rec := env.request(http.MethodDelete, "/api/v1/users/"+root.ID, supervisor, nil)
	wantStatus(t, rec, http.StatusForbidden)

	// Nobody deletes themselves.
	rec = env.request(http.MethodDelete, "/api/v1/users/"+root.ID, admin, nil)
	wantStatus(t, rec, http.StatusForbidden)

	rec = env.request(http.MethodDelete, "/api/v1/users/"+tech.ID, admin, nil)
	wantStatus(t, rec, http.StatusNoContent)

	rec = env.request(http.MethodGet, "/api/v1/users/"+tech.ID, admin, nil)
	wantStatus(t, rec, http.StatusNotFound)
}

func TestChangePassword_SelfNeedsCurrent(t *testing.T) {
	env := testServer(t)
	tech := env.seedUser("dmorris", auth.RoleTechnician)
	token := env.login("dmorris")

	rec := env.request(http.MethodPost, "/api/v1/users/"+tech.ID+"/password", token, map[string]any{
		"current_password": "not the password",
		"new_password":     "fresh entropy here",
	})
	wantStatus(t, rec, http.StatusUnauthorized)

	rec = env.request(http.MethodPost, "/api/v1/users/"+tech.ID+"/password", token, map[string]any{
		"current_password": testPassword,
		"new_password":     "fresh entropy here",
	})
	wantStatus(t, rec, http.StatusOK)

	// Old password no longer works, new one does.
	rec = env.request(http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": "dmorris",
		"password": testPassword,
	})
	wantStatus(t, rec, http.StatusUnauthorized)

	rec = env.request(http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": "dmorris",
		"password": "fresh entropy here",
	})
	wantStatus(t, rec, http.StatusOK)
}

func TestChangePassword_OtherUserNeedsManage(t *testing.T) {
	env := testServer(t)
	tech := env.seedUser("dmorris", auth.RoleTechnician)
	other := env.seedUser("jkowalski", auth.RoleTechnician)
	env.seedUser("ssharma", auth.RoleSupervisor)
	techToken := env.login("dmorris")
	supervisor := env.login("ssharma")

	rec := env.request(http.MethodPost, "/api/v1/users/"+other.ID+"/password", techToken, map[string]any{
		"new_password": "fresh entropy here",
	})
	wantStatus(t, rec, http.StatusForbidden)

	rec = env.request(http.MethodPost, "/api/v1/users/"+tech.ID+"/password", supervisor, map[string]any{
		"new_password": "fresh entropy here",
	})
	wantStatus(t, rec, http.StatusOK)
}
