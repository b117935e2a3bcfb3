// internal/app/features/contextswitch/handler.go
package contextswitch

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/dalemusser/learnhub/internal/app/system/auth"
	"github.com/dalemusser/learnhub/internal/app/system/slugs"
	"go.uber.org/zap"
)

type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

// ServeContext handles GET /context: the client's current Snapshot as JSON.
func (h *Handler) ServeContext(w http.ResponseWriter, r *http.Request) {
	var snap activecontext.Snapshot
	if s := activecontext.FromRequest(r); s != nil {
		snap = s.Snapshot()
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.Log.Warn("encode context snapshot", zap.Error(err))
	}
}

// HandleSwitch handles POST /context/switch. A blank slug switches to
// personal scope. The destination page is still gated; the membership check
// here only keeps the switcher from offering what the session never had.
func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	slug := slugs.Normalize(r.FormValue("slug"))

	s := activecontext.FromRequest(r)
	if s == nil {
		http.Error(w, "no active context for this client", http.StatusBadRequest)
		return
	}

	if slug != "" {
		u, _ := auth.CurrentUser(r)
		if slugs.IsReserved(slug) || !isMember(u, slug) {
			h.Log.Info("context switch rejected",
				zap.String("client_id", s.ClientID()),
				zap.String("slug", slug))
			http.Error(w, "not a member of that organization", http.StatusForbidden)
			return
		}
	}

	if err := s.SetActiveSlug(r.Context(), slug); err != nil {
		// The switch took effect in memory; only persistence failed.
		h.Log.Warn("context switch not persisted", zap.Error(err))
	}

	dest := "/dashboard"
	if slug != "" {
		dest = "/" + slug + "/dashboard"
	}
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", dest)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func isMember(u *auth.SessionUser, slug string) bool {
	_, ok := u.MembershipFor(slug)
	return ok
}
