package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/dalemusser/learnhub/internal/app/system/auth"
	"github.com/dalemusser/learnhub/internal/domain/models"
)

// Member returns an active membership of slug with role.
func Member(slug, role string) models.Membership {
	return models.Membership{OrganizationSlug: slug, Role: role, IsActive: true}
}

// SignedInUser returns a session user holding memberships.
func SignedInUser(memberships ...models.Membership) *auth.SessionUser {
	return &auth.SessionUser{
		ID:          "u-test",
		Name:        "Test Learner",
		Email:       "learner@test.com",
		Verified:    true,
		Memberships: memberships,
	}
}

// WithContextStore attaches the active context store to r. A nil store
// leaves r unchanged.
func WithContextStore(r *http.Request, store *activecontext.Store) *http.Request {
	if store == nil {
		return r
	}
	return r.WithContext(activecontext.WithStore(r.Context(), store))
}

// NewSignedInRequest creates a request as it looks after the session and
// active context middleware have run.
func NewSignedInRequest(method, target string, user *auth.SessionUser, store *activecontext.Store) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return WithContextStore(auth.WithTestUser(req, user), store)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertRedirect checks for a redirect to the expected location. HTMX
// requests are redirected through the HX-Redirect header instead.
func (r *ResponseRecorder) AssertRedirect(t interface{ Errorf(string, ...any) }, expectedLocation string) {
	if hx := r.Header().Get("HX-Redirect"); hx != "" {
		if hx != expectedLocation {
			t.Errorf("HX-Redirect: got %q, want %q", hx, expectedLocation)
		}
		return
	}
	if r.Code != http.StatusSeeOther && r.Code != http.StatusFound && r.Code != http.StatusMovedPermanently {
		t.Errorf("expected redirect status, got %d", r.Code)
	}
	if location := r.Header().Get("Location"); location != expectedLocation {
		t.Errorf("redirect location: got %q, want %q", location, expectedLocation)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}
