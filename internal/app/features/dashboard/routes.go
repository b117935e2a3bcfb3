// internal/app/features/dashboard/routes.go
package dashboard

import (
	"github.com/dalemusser/learnhub/internal/app/system/accessgate"
	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/dalemusser/learnhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes serves the personal dashboard; mount at "/dashboard".
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(activecontext.AnnouncePersonal(h.Log))
		pr.Get("/", h.ServePersonal)
	})
	return r
}

// OrgRoutes serves an organization dashboard; mount at "/{orgSlug}/dashboard".
// The gate answers for anonymous visitors, so no sign-in check is added here.
func OrgRoutes(h *Handler, gate *accessgate.Gate) chi.Router {
	r := chi.NewRouter()
	r.Use(gate.Middleware("orgSlug"))
	r.Use(activecontext.AnnounceParam("orgSlug", h.Log))
	r.Get("/", h.ServeOrganization)
	return r
}
