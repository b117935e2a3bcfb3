// internal/app/features/organizations/handler.go
package organizations

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	errorsfeature "github.com/dalemusser/learnhub/internal/app/features/errors"
	"github.com/dalemusser/learnhub/internal/app/system/accessgate"
	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/dalemusser/learnhub/internal/app/system/auth"
	"github.com/dalemusser/learnhub/internal/app/system/backend"
	"github.com/dalemusser/learnhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/learnhub/internal/app/system/slugs"
	"github.com/dalemusser/learnhub/internal/app/system/timeouts"
	"github.com/dalemusser/learnhub/internal/app/system/viewdata"
	"github.com/dalemusser/learnhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Directory fetches public organization details.
type Directory interface {
	OrganizationDetails(ctx context.Context, slug string) (models.OrganizationProfile, error)
}

// Handler is the feature-level entry point for Organizations.
type Handler struct {
	Directory Directory
	Log       *zap.Logger
}

func NewHandler(dir Directory, logger *zap.Logger) *Handler {
	return &Handler{Directory: dir, Log: logger}
}

type pageData struct {
	viewdata.BaseVM
	Slug            string
	Name            string
	OrgType         string
	LogoURL         string
	Color           string
	Policy          template.HTML
	AllowSelfEnroll bool
	SignedIn        bool
	IsMember        bool
	DetailsMissing  bool
	LoginURL        string
	DashboardURL    string
}

// ServeBrowse handles GET /organizations/browse/{slug}: the public page a
// non-member lands on, with a way to request access or sign in.
func (h *Handler) ServeBrowse(w http.ResponseWriter, r *http.Request) {
	slug := slugs.Organization(chi.URLParam(r, "slug"))
	if slug == "" {
		errorsfeature.RenderNotFound(w, r, "")
		return
	}

	u, signedIn := auth.CurrentUser(r)
	data, err := h.load(r, slug, "Organization")
	if errors.Is(err, backend.ErrNotFound) {
		errorsfeature.RenderNotFound(w, r, "We couldn't find that organization.")
		return
	}
	data.SignedIn = signedIn
	data.IsMember = isMember(u, slug)
	templates.Render(w, r, "organization_browse", data)
}

// ServePreview handles GET /{orgSlug}/preview behind the soft gate. Members
// and non-members both get the page; only members are offered the dashboard.
func (h *Handler) ServePreview(w http.ResponseWriter, r *http.Request) {
	slug := slugs.Organization(chi.URLParam(r, "orgSlug"))
	if slug == "" {
		errorsfeature.RenderNotFound(w, r, "")
		return
	}

	data, err := h.load(r, slug, "Preview")
	if errors.Is(err, backend.ErrNotFound) {
		errorsfeature.RenderNotFound(w, r, "We couldn't find that organization.")
		return
	}
	_, data.SignedIn = auth.CurrentUser(r)
	if d, ok := accessgate.FromRequest(r); ok {
		data.IsMember = d.Member()
	}
	templates.Render(w, r, "organization_preview", data)
}

// load fetches details for slug. Errors other than not-found are logged and
// leave DetailsMissing set so the page still renders.
func (h *Handler) load(r *http.Request, slug, title string) (pageData, error) {
	data := pageData{
		BaseVM:       viewdata.NewBaseVM(r, title, "/dashboard"),
		Slug:         slug,
		Name:         slug,
		LoginURL:     accessgate.LoginURL("/login", r),
		DashboardURL: "/" + slug + "/dashboard",
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	// Details of another organization must not be scoped to the active one.
	ctx = backend.WithCredentials(activecontext.WithoutStore(ctx), auth.Credentials(r))

	p, err := h.Directory.OrganizationDetails(ctx, slug)
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			h.Log.Warn("organization details failed", zap.String("slug", slug), zap.Error(err))
		}
		data.DetailsMissing = true
		return data, err
	}
	if p.Name != "" {
		data.Name = p.Name
	}
	data.OrgType = p.OrgType
	data.LogoURL = p.Branding.LogoURL
	data.Color = p.Branding.PrimaryColor
	data.Policy = htmlsanitize.PrepareForDisplay(p.Policies.Summary)
	data.AllowSelfEnroll = p.Policies.AllowSelfEnroll
	return data, nil
}

func isMember(u *auth.SessionUser, slug string) bool {
	_, ok := u.MembershipFor(slug)
	return ok
}
