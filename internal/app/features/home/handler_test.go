package home_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/learnhub/internal/app/features/home"
	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/dalemusser/learnhub/internal/app/system/auth"
	"github.com/dalemusser/learnhub/internal/testutil"
	"go.uber.org/zap"
)

func TestServeRoot_SignedInResumesActiveContext(t *testing.T) {
	h := home.NewHandler(zap.NewNop())
	store := activecontext.Open(context.Background(), "c1", activecontext.Options{})
	_ = store.SetActiveSlug(context.Background(), "uon")

	req := testutil.NewSignedInRequest(http.MethodGet, "/", testutil.SignedInUser(testutil.Member("uon", "student")), store)
	rec := testutil.NewRecorder()
	h.ServeRoot(rec, req)

	rec.AssertStatus(t, http.StatusSeeOther)
	rec.AssertRedirect(t, "/uon/dashboard")
}

func TestServeRoot_SignedInPersonal(t *testing.T) {
	h := home.NewHandler(zap.NewNop())

	req := auth.WithTestUser(httptest.NewRequest(http.MethodGet, "/", nil), &auth.SessionUser{ID: "u1"})
	rec := httptest.NewRecorder()
	h.ServeRoot(rec, req)

	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("expected redirect to /dashboard, got %q", loc)
	}
}

func TestServeRoot_Unauthenticated(t *testing.T) {
	h := home.NewHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	func() {
		// Template engine may not be initialized in tests.
		defer func() { _ = recover() }()
		h.ServeRoot(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	}()

	if rec.Code == http.StatusSeeOther {
		t.Error("anonymous visitors should get the landing page, not a redirect")
	}
}
