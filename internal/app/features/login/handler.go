// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/learnhub/internal/app/system/auth"
	"github.com/dalemusser/learnhub/internal/app/system/backend"
	"github.com/dalemusser/learnhub/internal/app/system/ratelimit"
	"github.com/dalemusser/learnhub/internal/app/system/timeouts"
	"github.com/dalemusser/learnhub/internal/app/system/viewdata"
	"github.com/dalemusser/learnhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.uber.org/zap"
)

// Authenticator is the part of the backend client used to sign in.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Me(ctx context.Context) (models.User, error)
}

type Handler struct {
	Backend    Authenticator
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter
	Log        *zap.Logger
}

func NewHandler(be Authenticator, sessionMgr *auth.SessionManager, limiter *ratelimit.LoginLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		Backend:    be,
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		Log:        logger,
	}
}

type loginFormData struct {
	viewdata.BaseVM
	Error    string
	Email    string
	Redirect string
}

// destination returns the post-login target; only local paths are honored.
func destination(raw string) string {
	return urlutil.SafeReturn(strings.TrimSpace(raw), "", "/dashboard")
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	redirect := query.Get(r, "redirect")
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, destination(redirect), http.StatusSeeOther)
		return
	}
	templates.Render(w, r, "login", loginFormData{
		BaseVM:   viewdata.NewBaseVM(r, "Sign in", "/"),
		Redirect: redirect,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderFormWithError(w, r, http.StatusBadRequest, "Invalid form data.", "", "")
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	redirect := r.FormValue("redirect")
	if email == "" || password == "" {
		h.renderFormWithError(w, r, http.StatusBadRequest, "Please enter your email and password.", email, redirect)
		return
	}

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, email); !ok {
			h.Log.Warn("login rate limited",
				zap.String("ip", ratelimit.ClientIP(r)))
			h.renderFormWithError(w, r, http.StatusTooManyRequests, reason, email, redirect)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cred, err := h.Backend.Login(ctx, email, password)
	switch {
	case errors.Is(err, backend.ErrInvalidLogin):
		h.renderFormWithError(w, r, http.StatusUnauthorized, "Invalid email or password.", email, redirect)
		return
	case err != nil:
		h.Log.Error("backend login failed", zap.Error(err))
		h.renderFormWithError(w, r, http.StatusServiceUnavailable, "Sign-in is unavailable right now. Please try again shortly.", email, redirect)
		return
	}

	u, err := h.Backend.Me(backend.WithCredentials(ctx, cred))
	var su *auth.SessionUser
	if err != nil {
		// The session is valid; the profile will be refreshed on the next request.
		h.Log.Warn("who-am-i after login failed", zap.Error(err))
		su = &auth.SessionUser{Email: email}
	} else {
		su = auth.FromUser(u)
	}

	if err := h.SessionMgr.SignIn(w, r, cred, su); err != nil {
		h.Log.Error("create session failed", zap.Error(err))
		h.renderFormWithError(w, r, http.StatusInternalServerError, "Could not start your session. Please try again.", email, redirect)
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(email)
	}
	h.Log.Info("user signed in", zap.String("user_id", su.ID))

	dest := destination(redirect)
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", dest)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func (h *Handler) renderFormWithError(w http.ResponseWriter, r *http.Request, status int, msg, email, redirect string) {
	w.WriteHeader(status)
	templates.Render(w, r, "login", loginFormData{
		BaseVM:   viewdata.NewBaseVM(r, "Sign in", "/"),
		Error:    msg,
		Email:    email,
		Redirect: redirect,
	})
}
