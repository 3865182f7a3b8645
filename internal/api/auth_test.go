package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/fieldline/stationpm/internal/auth"
)

func TestLogin_Success(t *testing.T) {
	env := testServer(t)
	env.seedUser("dmorris", auth.RoleTechnician)

	rec := env.request(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "dmorris",
		"password": "correct horse battery",
	})
	wantStatus(t, rec, http.StatusOK)

	var resp tokenResponse
	env.decode(rec, &resp)

	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected both tokens in login response")
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want Bearer", resp.TokenType)
	}
	if resp.User == nil || resp.User.Role != auth.RoleTechnician {
		t.Errorf("expected technician user in response, got %+v", resp.User)
	}
	if resp.User.PasswordHash != "" {
		t.Error("password hash leaked in login response")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := testServer(t)
	env.seedUser("dmorris", auth.RoleTechnician)

	rec := env.request(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "dmorris",
		"password": "wrong",
	})
	wantStatus(t, rec, http.StatusUnauthorized)
}

func TestLogin_UnknownUserLooksLikeWrongPassword(t *testing.T) {
	env := testServer(t)

	rec := env.request(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "ghost",
		"password": "whatever",
	})
	wantStatus(t, rec, http.StatusUnauthorized)
}

func TestLogin_InactiveUser(t *testing.T) {
	env := testServer(t)
	user := env.seedUser("dmorris", auth.RoleTechnician)

	user.IsActive = false
	if err := env.server.userRepo.Update(context.Background(), user); err != nil {
		t.Fatalf("deactivating user: %v", err)
	}

	rec := env.request(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "dmorris",
		"password": "correct horse battery",
	})
	wantStatus(t, rec, http.StatusForbidden)
}

func TestAuthMe(t *testing.T) {
	env := testServer(t)
	env.seedUser("ssharma", auth.RoleSupervisor)
	token := env.login("ssharma")

	rec := env.request(http.MethodGet, "/api/v1/auth/me", token, nil)
	wantStatus(t, rec, http.StatusOK)

	var body map[string]any
	env.decode(rec, &body)
	if got := stringField(t, body, "user", "username"); got != "ssharma" {
		t.Errorf("username = %q, want ssharma", got)
	}

	perms, ok := body["permissions"].([]any)
	if !ok || len(perms) == 0 {
		t.Fatalf("expected permission list, got %v", body["permissions"])
	}
}

func TestProtectedRoute_RequiresToken(t *testing.T) {
	env := testServer(t)

	rec := env.request(http.MethodGet, "/api/v1/controllers/", "", nil)
	wantStatus(t, rec, http.StatusUnauthorized)

	rec = env.request(http.MethodGet, "/api/v1/controllers/", "not-a-jwt", nil)
	wantStatus(t, rec, http.StatusUnauthorized)
}

func TestRefresh_RotatesAndDetectsReuse(t *testing.T) {
	env := testServer(t)
	env.seedUser("dmorris", auth.RoleTechnician)

	rec := env.request(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "dmorris",
		"password": "correct horse battery",
	})
	wantStatus(t, rec, http.StatusOK)
	var first tokenResponse
	env.decode(rec, &first)

	// Rotate once.
	rec = env.request(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": first.RefreshToken,
	})
	wantStatus(t, rec, http.StatusOK)
	var second tokenResponse
	env.decode(rec, &second)
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh did not rotate the token")
	}

	// Replaying the rotated token revokes the family.
	rec = env.request(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": first.RefreshToken,
	})
	wantStatus(t, rec, http.StatusUnauthorized)

	// The descendant dies with the family.
	rec = env.request(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": second.RefreshToken,
	})
	wantStatus(t, rec, http.StatusUnauthorized)
}

func TestLogout_RevokesFamily(t *testing.T) {
	env := testServer(t)
	env.seedUser("dmorris", auth.RoleTechnician)

	rec := env.request(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "dmorris",
		"password": "correct horse battery",
	})
	wantStatus(t, rec, http.StatusOK)
	var session tokenResponse
	env.decode(rec, &session)

	rec = env.request(http.MethodPost, "/api/v1/auth/logout", "", map[string]string{
		"refresh_token": session.RefreshToken,
	})
	wantStatus(t, rec, http.StatusOK)

	rec = env.request(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": session.RefreshToken,
	})
	wantStatus(t, rec, http.StatusUnauthorized)
}

func TestWSTicket_RequiresAuth(t *testing.T) {
	env := testServer(t)
	env.seedUser("dmorris", auth.RoleTechnician)
	token := env.login("dmorris")

	rec := env.request(http.MethodPost, "/api/v1/auth/ws-ticket", "", nil)
	wantStatus(t, rec, http.StatusUnauthorized)

	rec = env.request(http.MethodPost, "/api/v1/auth/ws-ticket", token, nil)
	wantStatus(t, rec, http.StatusOK)

	var body map[string]any
	env.decode(rec, &body)
	ticket, _ := body["ticket"].(string) //nolint:errcheck // checked below
	if ticket == "" {
		t.Fatal("expected ticket in response")
	}

	// Tickets are single-use.
	entry, ok := env.server.validateTicket(ticket)
	if !ok {
		t.Fatal("freshly issued ticket should validate")
	}
	if entry.role != auth.RoleTechnician {
		t.Errorf("ticket role = %q, want technician", entry.role)
	}
	if _, ok := env.server.validateTicket(ticket); ok {
		t.Error("ticket validated twice")
	}
}
