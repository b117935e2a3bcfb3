// internal/app/features/courses/routes.go
package courses

import (
	"github.com/dalemusser/learnhub/internal/app/system/accessgate"
	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/go-chi/chi/v5"
)

// Routes serves the full catalog in personal scope; mount at "/courses".
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(activecontext.AnnouncePersonal(h.Log))
	r.Get("/", h.ServeList)
	return r
}

// OrgRoutes serves an organization's catalog; mount at "/{orgSlug}/courses".
func OrgRoutes(h *Handler, gate *accessgate.Gate) chi.Router {
	r := chi.NewRouter()
	r.Use(gate.Middleware("orgSlug"))
	r.Use(activecontext.AnnounceParam("orgSlug", h.Log))
	r.Get("/", h.ServeList)
	return r
}
