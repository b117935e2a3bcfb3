// internal/app/features/contextswitch/routes.go
package contextswitch

import (
	"github.com/dalemusser/learnhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the context endpoints; mount at "/context".
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeContext)
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/switch", h.HandleSwitch)
	})
	return r
}
