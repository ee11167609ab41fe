package portal

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func TestStart_NilRegistry(t *testing.T) {
	err := Start(context.Background(), StartOpts{Sessions: NewSessionManager(SessionOpts{})})
	if err == nil {
		t.Fatal("expected error for nil registry")
	}
	if !strings.Contains(err.Error(), "registry is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "registry is required")
	}
}

func TestStart_NilSessions(t *testing.T) {
	reg, _ := newTestRegistry(t)
	err := Start(context.Background(), StartOpts{Registry: reg})
	if err == nil || !strings.Contains(err.Error(), "session manager is required") {
		t.Fatalf("error = %v, want session manager is required", err)
	}
}

func TestStart_BadSchedule(t *testing.T) {
	reg, _ := newTestRegistry(t)
	err := Start(context.Background(), StartOpts{
		Registry:     reg,
		Sessions:     NewSessionManager(SessionOpts{}),
		Port:         18999,
		Housekeeping: housekeeping("not a schedule", ""),
	})
	if err == nil || !strings.Contains(err.Error(), "schedule prune") {
		t.Fatalf("error = %v, want schedule prune error", err)
	}
}

func TestEmbeddedAssets(t *testing.T) {
	for _, name := range []string{"assets/style.css", "assets/register.js", "assets/admin.js"} {
		data, err := assetsFS.ReadFile(name)
		if err != nil {
			t.Fatalf("%s not embedded: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestRegisterScript_ScannerWiring(t *testing.T) {
	data, err := assetsFS.ReadFile("assets/register.js")
	if err != nil {
		t.Fatalf("register.js not embedded: %v", err)
	}
	js := string(data)
	for _, want := range []string{
		`state.mode === "ExternalListening"`,
		`removeEventListener("keydown", onScannerKey)`,
		`{ keys: batch }`,
		`seq: keySeq`,
		`/api/validate-registration-password`,
		`body.registrationPassword = password`,
	} {
		if !strings.Contains(js, want) {
			t.Errorf("register.js missing %q", want)
		}
	}
	if strings.Contains(js, `document.addEventListener("keydown", function`) {
		t.Error("register.js installs a permanent keydown listener")
	}
}

func TestEmbeddedTemplates(t *testing.T) {
	data, err := templatesFS.ReadFile("templates/register.html")
	if err != nil {
		t.Fatalf("register.html not embedded: %v", err)
	}
	if !strings.Contains(string(data), "Customer Registration") {
		t.Error("register.html does not contain 'Customer Registration'")
	}
}

func TestStaticAssets(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})
	for _, path := range []string{"/static/style.css", "/static/register.js", "/static/admin.js"} {
		w := do(t, router, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, w.Code)
		}
	}
}

func TestRegisterPage_RendersCatalog(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})
	w := do(t, router, http.MethodGet, "/", nil)
	expectStatus(t, w, http.StatusOK)

	html := w.Body.String()
	for _, want := range []string{
		"Customer Registration",
		"Scan with Camera",
		"Use External Scanner",
		"<option>Lagos</option>",
		"<option>Ace 125</option>",
		"<option>Commercial - Okada</option>",
		"/static/register.js",
		`id="password-dialog"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("register page missing %q", want)
		}
	}
}

func TestAdminPage_Returns200(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})
	w := do(t, router, http.MethodGet, "/admin", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "/static/admin.js") {
		t.Error("admin page does not load admin.js")
	}
}

func TestHealth(t *testing.T) {
	router, _, sessions := newTestRouter(t, SessionOpts{})
	if _, err := sessions.Create(); err != nil {
		t.Fatal(err)
	}
	w := do(t, router, http.MethodGet, "/health", nil)
	expectStatus(t, w, http.StatusOK)

	var body struct {
		Status       string `json:"status"`
		ScanSessions int    `json:"scanSessions"`
	}
	decode(t, w, &body)
	if body.Status != "ok" || body.ScanSessions != 1 {
		t.Errorf("health = %+v, want ok with 1 session", body)
	}
}

func TestUnknownRoute_Returns404(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})
	w := do(t, router, http.MethodGet, "/nonexistent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
