package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fieldline/stationpm/internal/audit"
	"github.com/fieldline/stationpm/internal/auth"
	"github.com/fieldline/stationpm/internal/infrastructure/config"
	"github.com/fieldline/stationpm/internal/infrastructure/database"
	"github.com/fieldline/stationpm/internal/infrastructure/logging"
	"github.com/fieldline/stationpm/internal/inventory"
	"github.com/fieldline/stationpm/internal/resource"
	"github.com/fieldline/stationpm/internal/snapshot"
	"github.com/fieldline/stationpm/internal/visit"

	_ "github.com/fieldline/stationpm/migrations" // register embedded migrations
)

const (
	testJWTSecret = "test-secret-key-for-api-handlers"
	testPassword  = "correct horse battery"
)

// testEnv wires a full server against a temp-file SQLite database with the
// real migrations applied.
type testEnv struct {
	t      *testing.T
	server *Server
	router http.Handler
	db     *database.DB
}

// testServer builds a server with all repositories backed by a fresh
// database. MQTT and InfluxDB are absent, so events broadcast straight to
// the hub.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "stationpm-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // test cleanup
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	logger := logging.Default()
	wsCfg := config.WebSocketConfig{
		Path:           "/ws",
		MaxMessageSize: 4096,
		PingInterval:   30,
		PongTimeout:    10,
	}

	srv, err := New(Deps{
		WS: wsCfg,
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:          testJWTSecret,
				AccessTokenTTL:  15,
				RefreshTokenTTL: 60,
			},
		},
		Imports: config.ImportConfig{
			PreviewTTL:      5,
			DefaultSections: []string{"modules", "filesystems"},
		},
		Logger:       logger,
		UserRepo:     auth.NewUserRepository(db.DB),
		TokenRepo:    auth.NewTokenRepository(db.DB),
		SnapshotRepo: snapshot.NewSQLiteRepository(db.DB),
		DeviceRepo:   inventory.NewSQLiteRepository(db.DB),
		ResourceRepo: resource.NewSQLiteRepository(db.DB),
		VisitRepo:    visit.NewSQLiteRepository(db.DB),
		AuditRepo:    audit.NewSQLiteRepository(db.DB),
		ExternalHub:  NewHub(wsCfg, logger),
		Version:      "test",
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	// auditCh stays unread without Start(); drop it so auditLog no-ops
	// instead of filling the buffer.
	srv.auditCh = nil

	return &testEnv{
		t:      t,
		server: srv,
		router: srv.buildRouter(),
		db:     db,
	}
}

// seedUser creates a user with a known password and returns it.
func (e *testEnv) seedUser(username string, role auth.Role) *auth.User {
	e.t.Helper()

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		e.t.Fatalf("hashing password: %v", err)
	}

	user := &auth.User{
		Username:     username,
		DisplayName:  "Test " + username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := e.server.userRepo.Create(context.Background(), user); err != nil {
		e.t.Fatalf("seeding user %s: %v", username, err)
	}
	return user
}

// login authenticates a seeded user and returns the access token.
func (e *testEnv) login(username string) string {
	e.t.Helper()

	rec := e.request(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": testPassword,
	})
	if rec.Code != http.StatusOK {
		e.t.Fatalf("login for %s: status %d, body %s", username, rec.Code, rec.Body.String())
	}

	var resp tokenResponse
	e.decode(rec, &resp)
	return resp.AccessToken
}

// request performs a JSON request against the router. A non-empty token is
// sent as a bearer token; a nil body sends no payload.
func (e *testEnv) request(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// upload performs a multipart file upload against an import parse route.
func (e *testEnv) upload(path, token, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	e.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		e.t.Fatalf("creating form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		e.t.Fatalf("writing form file: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			e.t.Fatalf("writing form field %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		e.t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a recorded JSON response, failing the test on error.
func (e *testEnv) decode(rec *httptest.ResponseRecorder, v any) {
	e.t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		e.t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

// wantStatus fails the test when the response status differs.
func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, want, rec.Body.String())
	}
}

// stringField digs a string out of a decoded map response.
func stringField(t *testing.T, m map[string]any, keys ...string) string {
	t.Helper()
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			t.Fatalf("field path %v: %T is not an object", keys, cur)
		}
		cur = obj[k]
	}
	s, ok := cur.(string)
	if !ok {
		t.Fatalf("field path %v: got %T, want string", keys, cur)
	}
	return s
}
