// internal/app/features/logout/handler.go
package logout

import (
	"context"
	"net/http"

	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/dalemusser/learnhub/internal/app/system/auth"
	"github.com/dalemusser/learnhub/internal/app/system/backend"
	"github.com/dalemusser/learnhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Backend ends the backend session.
type Backend interface {
	Logout(ctx context.Context) error
}

// Forgetter drops a client's in-memory context.
type Forgetter interface {
	Forget(clientID string)
}

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Backend    Backend
	Contexts   Forgetter
}

func NewHandler(sessionMgr *auth.SessionManager, be Backend, contexts Forgetter, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		Backend:    be,
		Contexts:   contexts,
	}
}

// ServeLogout handles GET /logout. The backend session is ended first, then
// the client's active context is cleared so the next sign-in starts personal.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if cred := auth.Credentials(r); cred != "" && h.Backend != nil {
		if err := h.Backend.Logout(backend.WithCredentials(activecontext.WithoutStore(ctx), cred)); err != nil {
			h.Log.Warn("backend logout failed", zap.Error(err))
		}
	}

	if s := activecontext.FromRequest(r); s != nil {
		if err := s.SetActiveSlug(ctx, ""); err != nil {
			h.Log.Warn("clear active context failed", zap.Error(err))
		}
	}
	if id := auth.ClientID(r); id != "" && h.Contexts != nil {
		h.Contexts.Forget(id)
	}

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}

	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
