// internal/app/features/dashboard/handler.go
package dashboard

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/dalemusser/learnhub/internal/app/features/errors"
	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/dalemusser/learnhub/internal/app/system/auth"
	"github.com/dalemusser/learnhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/learnhub/internal/app/system/slugs"
	"github.com/dalemusser/learnhub/internal/app/system/timeouts"
	"github.com/dalemusser/learnhub/internal/app/system/viewdata"
	"github.com/dalemusser/learnhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Log *zap.Logger
	// ProfileWait bounds how long an organization page waits for the
	// active profile before rendering without it.
	ProfileWait time.Duration
}

func NewHandler(profileWait time.Duration, logger *zap.Logger) *Handler {
	if profileWait <= 0 {
		profileWait = timeouts.Short()
	}
	return &Handler{Log: logger, ProfileWait: profileWait}
}

type membershipLink struct {
	Slug     string
	Name     string
	Role     string
	Initials string
	Href     string
}

type personalData struct {
	viewdata.BaseVM
	Memberships []membershipLink
}

type orgData struct {
	viewdata.BaseVM
	Slug            string
	Name            string
	OrgType         string
	Role            string
	BannerURL       string
	Policy          template.HTML
	AllowSelfEnroll bool
	ProfileMissing  bool
	CoursesURL      string
}

// ServePersonal handles GET /dashboard.
func (h *Handler) ServePersonal(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	data := buildPersonal(viewdata.NewBaseVM(r, "Dashboard", "/"), u)
	templates.Render(w, r, "dashboard_personal", data)
}

// ServeOrganization handles GET /{orgSlug}/dashboard. The gate has already
// admitted the user; reserved segments never reach an organization page.
func (h *Handler) ServeOrganization(w http.ResponseWriter, r *http.Request) {
	slug := slugs.Organization(chi.URLParam(r, "orgSlug"))
	if slug == "" {
		errors.RenderNotFound(w, r, "")
		return
	}

	snap := activecontext.Snapshot{ActiveSlug: slug}
	if s := activecontext.FromRequest(r); s != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.ProfileWait)
		snap = s.Await(ctx)
		cancel()
	}
	if snap.Profile == nil {
		h.Log.Debug("dashboard: rendering without profile", zap.String("slug", slug))
	}

	u, _ := auth.CurrentUser(r)
	base := viewdata.NewBaseVM(r, "Dashboard", "/dashboard").WithSnapshot(snap, u)
	templates.Render(w, r, "dashboard_org", buildOrg(base, slug, snap, u))
}

func buildPersonal(base viewdata.BaseVM, u *auth.SessionUser) personalData {
	data := personalData{BaseVM: base}
	if u == nil {
		return data
	}
	for _, m := range u.Memberships {
		if !m.IsActive {
			continue
		}
		name := m.OrganizationName
		if name == "" {
			name = m.OrganizationSlug
		}
		data.Memberships = append(data.Memberships, membershipLink{
			Slug:     m.OrganizationSlug,
			Name:     name,
			Role:     m.Role,
			Initials: models.Initials(m.OrganizationSlug),
			Href:     "/" + m.OrganizationSlug + "/dashboard",
		})
	}
	return data
}

func buildOrg(base viewdata.BaseVM, slug string, snap activecontext.Snapshot, u *auth.SessionUser) orgData {
	data := orgData{
		BaseVM:     base,
		Slug:       slug,
		Name:       slug,
		Role:       snap.ActiveRole,
		CoursesURL: "/" + slug + "/courses",
	}
	if data.Role == "" {
		if m, ok := u.MembershipFor(slug); ok {
			data.Role = m.Role
		}
	}

	// A profile for another slug can only be left over from a previous context.
	p := snap.Profile
	if p == nil || snap.ActiveSlug != slug {
		data.ProfileMissing = true
		return data
	}
	if p.Name != "" {
		data.Name = p.Name
	}
	data.OrgType = p.OrgType
	data.BannerURL = p.Branding.BannerURL
	data.Policy = htmlsanitize.PrepareForDisplay(p.Policies.Summary)
	data.AllowSelfEnroll = p.Policies.AllowSelfEnroll
	return data
}
