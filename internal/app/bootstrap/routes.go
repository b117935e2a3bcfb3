// internal/app/bootstrap/routes.go
package bootstrap

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"

	contextswitchfeature "github.com/dalemusser/learnhub/internal/app/features/contextswitch"
	coursesfeature "github.com/dalemusser/learnhub/internal/app/features/courses"
	dashboardfeature "github.com/dalemusser/learnhub/internal/app/features/dashboard"
	errorsfeature "github.com/dalemusser/learnhub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/learnhub/internal/app/features/health"
	homefeature "github.com/dalemusser/learnhub/internal/app/features/home"
	loginfeature "github.com/dalemusser/learnhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/learnhub/internal/app/features/logout"
	organizationsfeature "github.com/dalemusser/learnhub/internal/app/features/organizations"
	"github.com/dalemusser/learnhub/internal/app/system/accessgate"
	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/dalemusser/learnhub/internal/app/system/auth"
	"github.com/dalemusser/learnhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

const loginRateLimitPrefix = "learnhub:ratelimit:login:"

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// Every request passes through CSRF protection, the session loader and the
// active context middleware, in that order, so handlers and gates always
// find the session user and the client's Store in the request context.
// Organization-scoped pages live under /{orgSlug}; the strict gate guards
// the dashboard and course catalog, the soft gate guards the preview.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if deps.Backend == nil || deps.Contexts == nil {
		return nil, fmt.Errorf("backend client and context registry are required")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	// Refresh the cached user through the backend's who-am-i endpoint so
	// revoked sessions and membership changes take effect immediately.
	sessionMgr.SetUserFetcher(auth.BackendFetcher{Client: deps.Backend})

	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	csrfKey, err := deriveCSRFKey(appCfg.SessionKey)
	if err != nil {
		return nil, err
	}

	limiter := newLoginLimiter(deps.Redis, logger)
	background.mu.Lock()
	background.limiter = limiter
	background.mu.Unlock()

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errorsfeature.RenderNotFound(w, r, "")
	})
	strictGate := accessgate.New(deps.Backend, accessgate.Config{
		Mode:        accessgate.Strict,
		NotFound:    notFound,
		Credentials: auth.Credentials,
		Observer:    activecontext.GateObserver{Log: logger},
	}, logger)
	// The preview never changes the active context, so it gets no observer.
	softGate := accessgate.New(deps.Backend, accessgate.Config{
		Mode:        accessgate.Soft,
		NotFound:    notFound,
		Credentials: auth.Credentials,
	}, logger)

	r := chi.NewRouter()
	r.NotFound(notFound)

	if !secure {
		// gorilla/csrf assumes TLS unless told otherwise.
		r.Use(plaintextRequests)
	}
	r.Use(csrf.Protect(csrfKey,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.FieldName("csrf_token"),
		csrf.ErrorHandler(csrfFailure(logger)),
	))
	r.Use(sessionMgr.LoadSessionUser)
	r.Use(deps.Contexts.Middleware(sessionClient))

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Redis, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Static assets with pre-compressed file support (gzip/brotli)
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	homeHandler := homefeature.NewHandler(logger)
	r.Get("/", homeHandler.ServeRoot)

	// Authentication
	loginHandler := loginfeature.NewHandler(deps.Backend, sessionMgr, limiter, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, deps.Backend, deps.Contexts, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

	// Error pages
	errorsHandler := errorsfeature.NewHandler()
	r.Get("/forbidden", errorsHandler.Forbidden)

	// Active context read and switch
	contextHandler := contextswitchfeature.NewHandler(logger)
	r.Mount("/context", contextswitchfeature.Routes(contextHandler, sessionMgr))

	// Personal scope
	dashboardHandler := dashboardfeature.NewHandler(0, logger)
	r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, sessionMgr))

	coursesHandler := coursesfeature.NewHandler(deps.Backend, logger)
	r.Mount("/courses", coursesfeature.Routes(coursesHandler))

	orgHandler := organizationsfeature.NewHandler(deps.Backend, logger)
	r.Mount("/organizations", organizationsfeature.Routes(orgHandler))

	// Organization scope
	r.Route("/{orgSlug}", func(or chi.Router) {
		or.Mount("/dashboard", dashboardfeature.OrgRoutes(dashboardHandler, strictGate))
		or.Mount("/courses", coursesfeature.OrgRoutes(coursesHandler, strictGate))
		or.Mount("/preview", organizationsfeature.PreviewRoutes(orgHandler, softGate))
	})

	return r, nil
}

// sessionClient identifies the browser by the client ID in its session.
func sessionClient(r *http.Request) (activecontext.Client, bool) {
	id := auth.ClientID(r)
	if id == "" {
		return activecontext.Client{}, false
	}
	c := activecontext.Client{ID: id, Credential: auth.Credentials(r)}
	if u, ok := auth.CurrentUser(r); ok {
		c.Memberships = u.Memberships
	}
	return c, true
}

// newLoginLimiter shares login throttling across instances when Redis is
// available.
func newLoginLimiter(rdb *redis.Client, logger *zap.Logger) *ratelimit.LoginLimiter {
	if rdb != nil {
		return ratelimit.NewRedisLoginLimiter(rdb, loginRateLimitPrefix, logger)
	}
	return ratelimit.NewLoginLimiter()
}

// deriveCSRFKey derives the 32-byte CSRF key from the session secret so a
// single secret has to be configured.
func deriveCSRFKey(secret string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte("learnhub csrf")), key); err != nil {
		return nil, fmt.Errorf("derive csrf key: %w", err)
	}
	return key, nil
}

func plaintextRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

func csrfFailure(logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("csrf check failed",
			zap.String("path", r.URL.Path),
			zap.Error(csrf.FailureReason(r)))
		errorsfeature.RenderForbidden(w, r, "Your form expired. Please go back and try again.", "")
	})
}
