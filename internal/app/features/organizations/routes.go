// internal/app/features/organizations/routes.go
package organizations

import (
	"github.com/dalemusser/learnhub/internal/app/system/accessgate"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the public organization pages; mount at "/organizations".
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/browse/{slug}", h.ServeBrowse)
	return r
}

// PreviewRoutes mounts the soft-gated preview; mount at "/{orgSlug}/preview".
// The preview does not change the active context.
func PreviewRoutes(h *Handler, gate *accessgate.Gate) chi.Router {
	r := chi.NewRouter()
	r.Use(gate.Middleware("orgSlug"))
	r.Get("/", h.ServePreview)
	return r
}
