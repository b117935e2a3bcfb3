package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/learnhub/internal/app/resources"
	"github.com/dalemusser/learnhub/internal/app/system/auth"
	"github.com/dalemusser/learnhub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// fakeAPI serves the backend endpoints the router reaches and records the
// organization header of every catalog request.
type fakeAPI struct {
	mu            sync.Mutex
	courseHeaders []string
	checks        []string
}

func (a *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/users/me/":
		_, _ = w.Write([]byte(`{"id":"u1","name":"Learner","email":"l@example.com","is_verified":true,
			"organizations":[{"organization_slug":"uon","organization_name":"UoN","role":"student","is_active":true}]}`))
	case strings.HasPrefix(r.URL.Path, "/organizations/check-access/"):
		slug := strings.Trim(strings.TrimPrefix(r.URL.Path, "/organizations/check-access/"), "/")
		a.mu.Lock()
		a.checks = append(a.checks, slug)
		a.mu.Unlock()
		if _, err := r.Cookie("sessionid"); err != nil {
			_, _ = w.Write([]byte(`{"organization_exists":true,"is_authenticated":false,"is_member":false}`))
			return
		}
		if slug == "uon" {
			_, _ = w.Write([]byte(`{"organization_exists":true,"is_authenticated":true,"is_member":true,"role":"student"}`))
			return
		}
		_, _ = w.Write([]byte(`{"organization_exists":true,"is_authenticated":true,"is_member":false}`))
	case strings.HasSuffix(r.URL.Path, "/details/"):
		_, _ = w.Write([]byte(`{"name":"UoN","slug":"uon","org_type":"university"}`))
	case r.URL.Path == "/courses/":
		a.mu.Lock()
		a.courseHeaders = append(a.courseHeaders, r.Header.Get("X-Organization-Slug"))
		a.mu.Unlock()
		_, _ = w.Write([]byte(`[]`))
	default:
		http.NotFound(w, r)
	}
}

func (a *fakeAPI) lastCourseHeader(t *testing.T) string {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.courseHeaders) == 0 {
		t.Fatal("expected a catalog request")
	}
	return a.courseHeaders[len(a.courseHeaders)-1]
}

func (a *fakeAPI) checked() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.checks...)
}

// newTestRouter builds the full handler over memory storage and returns it
// with a session cookie for a signed-in member of uon.
func newTestRouter(t *testing.T) (http.Handler, *fakeAPI, *http.Cookie) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := validConfig()
	cfg.ContextStorage = StorageMemory
	cfg.APIBaseURL = srv.URL
	cfg.APITimeout = 2 * time.Second
	cfg.SessionMaxAge = time.Hour
	coreCfg := &config.CoreConfig{Env: "test"}

	deps, err := ConnectDB(context.Background(), coreCfg, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("ConnectDB: %v", err)
	}
	resources.LoadSharedTemplates()
	h, err := BuildHandler(coreCfg, cfg, deps, zap.NewNop())
	if err != nil {
		t.Fatalf("BuildHandler: %v", err)
	}
	t.Cleanup(func() { _ = Shutdown(context.Background(), coreCfg, cfg, deps, zap.NewNop()) })

	// A manager with the same secret and name issues cookies the router accepts.
	sm, err := auth.NewSessionManager(cfg.SessionKey, cfg.SessionName, "", cfg.SessionMaxAge, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	rec := httptest.NewRecorder()
	user := &auth.SessionUser{ID: "u1", Memberships: []models.Membership{
		{OrganizationSlug: "uon", Role: "student", IsActive: true},
	}}
	if err := sm.SignIn(rec, httptest.NewRequest(http.MethodGet, "/login", nil), "cred-1", user); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == cfg.SessionName {
			return h, api, c
		}
	}
	t.Fatal("expected a session cookie")
	return nil, nil, nil
}

func get(h http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "text/html")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	func() {
		// Rendering problems must not hide what the backend saw.
		defer func() { _ = recover() }()
		h.ServeHTTP(rec, req)
	}()
	return rec
}

func TestRouter_OrganizationCoursesCarryHeader(t *testing.T) {
	h, api, cookie := newTestRouter(t)

	get(h, "/uon/courses", cookie)
	if got := api.lastCourseHeader(t); got != "uon" {
		t.Errorf("expected catalog request scoped to uon, got %q", got)
	}

	get(h, "/courses", cookie)
	if got := api.lastCourseHeader(t); got != "" {
		t.Errorf("expected personal catalog request without header, got %q", got)
	}
}

func TestRouter_NonMemberRedirectedToBrowse(t *testing.T) {
	h, api, cookie := newTestRouter(t)

	rec := get(h, "/acme/dashboard", cookie)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/organizations/browse/acme" {
		t.Errorf("expected redirect to /organizations/browse/acme, got %q", loc)
	}
	if checks := api.checked(); len(checks) != 1 || checks[0] != "acme" {
		t.Errorf("expected one access check for acme, got %v", checks)
	}
}

func TestRouter_AnonymousRedirectedToLogin(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := get(h, "/uon/dashboard", nil)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?redirect=%2Fuon%2Fdashboard" {
		t.Errorf("expected login redirect, got %q", loc)
	}
}

func TestRouter_ReservedSegmentsSkipGate(t *testing.T) {
	h, api, cookie := newTestRouter(t)

	get(h, "/dashboard", cookie)
	get(h, "/courses", cookie)
	get(h, "/organizations/browse/acme", cookie)

	if checks := api.checked(); len(checks) != 0 {
		t.Errorf("expected no access checks for reserved segments, got %v", checks)
	}
}
