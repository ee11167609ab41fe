package portal

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/bikereg/internal/config"
	"github.com/zulandar/bikereg/internal/db"
	"github.com/zulandar/bikereg/internal/notify"
	"github.com/zulandar/bikereg/internal/registry"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRegistry(t *testing.T) (*registry.Registry, *notify.MockNotifier) {
	t.Helper()
	return newTestRegistryAt(t, func() time.Time { return testNow })
}

func newTestRegistryAt(t *testing.T, now func() time.Time) (*registry.Registry, *notify.MockNotifier) {
	t.Helper()
	gdb, err := db.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	mn := &notify.MockNotifier{}
	reg, err := registry.New(registry.Opts{
		DB:       gdb,
		Notifier: mn,
		Auth: config.AuthConfig{
			SuperAdminEmail:      "boss@example.com",
			SuperAdminPassword:   "topsecret",
			RegistrationPassword: "dealers-only",
		},
		Now: now,
	})
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	t.Cleanup(reg.Close)
	return reg, mn
}

// newTestRouter builds the full router over an in-memory registry and a
// session manager without a camera.
func newTestRouter(t *testing.T, opts SessionOpts) (*gin.Engine, *registry.Registry, *SessionManager) {
	t.Helper()
	reg, _ := newTestRegistry(t)
	sessions := NewSessionManager(opts)
	t.Cleanup(sessions.CloseAll)
	router, err := NewRouter(reg, sessions)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router, reg, sessions
}

// do sends a request with an optional JSON body and returns the recorder.
func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// decode unmarshals a recorder's JSON body into v.
func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func validRegistration() map[string]string {
	return map[string]string{
		"engineNumber": "JC85E-1234567",
		"title":        "Mr",
		"buyerName":    "Chinedu Okafor",
		"phone":        "08031234567",
		"state":        "Lagos",
		"dealer":       "ACME MOTORS",
		"purchaseDate": "2026-03-01",
		"usage":        "Private",
		"model":        "Ace 125",
		"variant":      "Alloy - Self Start",
		"color":        "Red",

		"registrationPassword": "dealers-only",
	}
}
