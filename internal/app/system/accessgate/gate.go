// Package accessgate verifies, before an organization-scoped route renders,
// that the organization in the URL exists, that the requester is signed in,
// and that the requester is a member.
//
// The decision is taken from the backend at request time using the session's
// credentials. Nothing held in the client's active context is consulted, so a
// stale or forged active slug cannot admit a request.
//
// One state machine serves both gate variants. Mode picks which failed
// checks are terminal and which are advisory (the subtree renders anyway with
// the Decision available to handlers). A missing organization, a signed-out
// requester and a failed status query are always terminal; the last one sends
// the requester to login because an unanswered query is not evidence of
// membership.
package accessgate

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/dalemusser/learnhub/internal/app/system/backend"
	"github.com/dalemusser/learnhub/internal/app/system/slugs"
	"github.com/dalemusser/learnhub/internal/app/system/timeouts"
	"github.com/dalemusser/learnhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StatusChecker answers the combined access question for a slug. The
// requester's credentials travel in ctx (backend.WithCredentials).
type StatusChecker interface {
	CheckAccess(ctx context.Context, slug string) (models.AccessStatus, error)
}

// Mode selects the gate variant.
type Mode int

const (
	// Strict enforces membership: every failed check is terminal.
	Strict Mode = iota
	// Soft renders for signed-in non-members, as preview and browse pages do.
	Soft
)

func (m Mode) String() string {
	if m == Soft {
		return "soft"
	}
	return "strict"
}

// Outcome is the result of evaluating the state machine.
type Outcome int

const (
	Admit Outcome = iota
	NotFound
	Unauthenticated
	NotMember
	Unavailable // the status query failed
)

func (o Outcome) String() string {
	switch o {
	case Admit:
		return "admit"
	case NotFound:
		return "not_found"
	case Unauthenticated:
		return "unauthenticated"
	case NotMember:
		return "not_member"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}

// alwaysTerminal outcomes can never be made advisory.
func (o Outcome) alwaysTerminal() bool {
	return o == NotFound || o == Unauthenticated || o == Unavailable
}

// Decision is what the gate concluded for a request. Handlers behind the gate
// read it with FromRequest.
type Decision struct {
	Slug     string
	Outcome  Outcome
	Status   models.AccessStatus
	Advisory bool // a failed check the mode let through
}

// Member reports whether the requester belongs to the organization.
func (d Decision) Member() bool { return d.Outcome == Admit }

// Observer is told about gate activity for a request.
type Observer interface {
	// Verifying is called before the status query; the returned func is
	// called when it completes.
	Verifying(r *http.Request, slug string) func()
	// Admitted is called when a member is admitted, before the subtree
	// renders.
	Admitted(r *http.Request, slug string, status models.AccessStatus)
}

// Config configures a Gate. Zero fields take defaults.
type Config struct {
	Mode Mode
	// Advisory overrides the outcomes Mode lets through. Outcomes that are
	// always terminal are ignored here.
	Advisory []Outcome
	// LoginPath receives ?redirect=<requested URI>. Default "/login".
	LoginPath string
	// BrowsePath builds the request-access route for a slug.
	// Default "/organizations/browse/{slug}".
	BrowsePath func(slug string) string
	// NotFound renders the terminal not-found response. Default http.NotFound.
	NotFound http.Handler
	// Credentials returns the session's backend credential for r.
	Credentials func(r *http.Request) string
	Observer    Observer
	// Timeout bounds the status query. Default timeouts.Short().
	Timeout time.Duration
}

// Gate runs the access state machine in front of a route.
type Gate struct {
	checker  StatusChecker
	cfg      Config
	advisory map[Outcome]bool
	log      *zap.Logger
}

// New creates a Gate.
func New(checker StatusChecker, cfg Config, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.BrowsePath == nil {
		cfg.BrowsePath = BrowsePath
	}
	if cfg.NotFound == nil {
		cfg.NotFound = http.HandlerFunc(http.NotFound)
	}
	if cfg.Credentials == nil {
		cfg.Credentials = func(*http.Request) string { return "" }
	}

	adv := cfg.Advisory
	if adv == nil && cfg.Mode == Soft {
		adv = []Outcome{NotMember}
	}
	set := make(map[Outcome]bool, len(adv))
	for _, o := range adv {
		if o != Admit && !o.alwaysTerminal() {
			set[o] = true
		}
	}
	return &Gate{checker: checker, cfg: cfg, advisory: set, log: logger}
}

// BrowsePath is the default request-access route for slug.
func BrowsePath(slug string) string {
	return "/organizations/browse/" + url.PathEscape(slug)
}

// Check evaluates the state machine for slug without writing a response.
// ok=false means slug is reserved and the route is not organization scoped.
func (g *Gate) Check(r *http.Request, slug string) (Decision, bool) {
	slug = slugs.Organization(slug)
	if slug == "" {
		return Decision{}, false
	}

	if g.cfg.Observer != nil {
		done := g.cfg.Observer.Verifying(r, slug)
		defer done()
	}

	timeout := g.cfg.Timeout
	if timeout <= 0 {
		timeout = timeouts.Short()
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	// The query is about the URL's organization, not the client's active
	// one, so it must not carry an organization scope.
	ctx = activecontext.WithoutStore(ctx)
	ctx = backend.WithCredentials(ctx, g.cfg.Credentials(r))

	d := Decision{Slug: slug}
	st, err := g.checker.CheckAccess(ctx, slug)
	if err != nil {
		g.log.Warn("access check failed; treating as signed out",
			zap.String("slug", slug),
			zap.Error(err))
		d.Outcome = Unavailable
		return d, true
	}
	d.Status = st
	switch {
	case !st.OrganizationExists:
		d.Outcome = NotFound
	case !st.IsAuthenticated:
		d.Outcome = Unauthenticated
	case !st.IsMember:
		d.Outcome = NotMember
	default:
		d.Outcome = Admit
	}
	d.Advisory = g.advisory[d.Outcome]
	return d, true
}

// Middleware gates routes whose organization slug is the chi URL parameter
// param.
func (g *Gate) Middleware(param string) func(http.Handler) http.Handler {
	return g.MiddlewareFunc(func(r *http.Request) string {
		return chi.URLParam(r, param)
	})
}

// MiddlewareFunc gates routes whose organization slug is returned by slugOf.
func (g *Gate) MiddlewareFunc(slugOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, scoped := g.Check(r, slugOf(r))
			if !scoped {
				next.ServeHTTP(w, r)
				return
			}

			switch {
			case d.Outcome == Admit:
				w.Header().Set(ActiveOrganizationHeader, d.Slug)
				if g.cfg.Observer != nil {
					g.cfg.Observer.Admitted(r, d.Slug, d.Status)
				}
			case d.Advisory:
				g.log.Debug("access gate: advisory outcome",
					zap.String("slug", d.Slug),
					zap.String("mode", g.cfg.Mode.String()),
					zap.String("outcome", d.Outcome.String()))
			default:
				g.deny(w, r, d)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), decisionKey, d)))
		})
	}
}

// ActiveOrganizationHeader tells the client which slug the server admitted
// so it can adopt it without re-deriving it.
const ActiveOrganizationHeader = "X-Active-Organization"

func (g *Gate) deny(w http.ResponseWriter, r *http.Request, d Decision) {
	g.log.Info("access gate: denied",
		zap.String("slug", d.Slug),
		zap.String("mode", g.cfg.Mode.String()),
		zap.String("outcome", d.Outcome.String()),
		zap.String("path", r.URL.Path))

	switch d.Outcome {
	case NotFound:
		g.cfg.NotFound.ServeHTTP(w, r)
	case NotMember:
		redirect(w, r, g.cfg.BrowsePath(d.Slug), http.StatusForbidden)
	default:
		redirect(w, r, LoginURL(g.cfg.LoginPath, r), http.StatusUnauthorized)
	}
}

// LoginURL returns loginPath carrying the request's URI as the post-login
// destination.
func LoginURL(loginPath string, r *http.Request) string {
	sep := "?"
	if strings.Contains(loginPath, "?") {
		sep = "&"
	}
	return loginPath + sep + "redirect=" + url.QueryEscape(r.URL.RequestURI())
}

// redirect sends the browser to dest. HTMX requests get HX-Redirect with
// hxStatus so the whole page navigates instead of swapping a fragment.
func redirect(w http.ResponseWriter, r *http.Request, dest string, hxStatus int) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", dest)
		w.WriteHeader(hxStatus)
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

type ctxKey string

const decisionKey ctxKey = "accessgate.decision"

// FromRequest returns the Decision for a gated request.
func FromRequest(r *http.Request) (Decision, bool) {
	d, ok := r.Context().Value(decisionKey).(Decision)
	return d, ok
}
