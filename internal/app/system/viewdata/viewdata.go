// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"html/template"
	"net/http"

	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/dalemusser/learnhub/internal/app/system/auth"
	"github.com/dalemusser/learnhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
)

// SiteName is shown in page titles and the header.
const SiteName = "LearnHub"

// ContextOption is one entry of the context switcher.
type ContextOption struct {
	Slug     string // "" for personal scope
	Name     string
	Initials string
	Role     string
	Active   bool
}

// BaseVM contains common fields for all view models.
// Embed this struct in your feature-specific view models.
//
// Usage:
//
//	type myPageData struct {
//	    viewdata.BaseVM
//	    // page-specific fields...
//	}
//
//	data := myPageData{
//	    BaseVM: viewdata.NewBaseVM(r, "Page Title", "/default-back"),
//	}
type BaseVM struct {
	SiteName string

	// User context (from auth middleware)
	IsLoggedIn bool
	UserName   string

	// Active context (from the client's Store)
	Context        activecontext.Snapshot
	ContextName    string // organization name, or "Personal"
	ContextLogoURL string
	ContextColor   string
	Contexts       []ContextOption

	// Page context
	Title       string
	BackURL     string
	CurrentPath string

	// CSRF protection
	CSRFToken string
	CSRFField template.HTML
}

// NewBaseVM creates a fully populated BaseVM for a page.
func NewBaseVM(r *http.Request, title, backDefault string) BaseVM {
	vm := BaseVM{
		SiteName:    SiteName,
		Title:       title,
		BackURL:     httpnav.ResolveBackURL(r, backDefault),
		CurrentPath: httpnav.CurrentPath(r),
		CSRFToken:   csrf.Token(r),
		CSRFField:   csrf.TemplateField(r),
		ContextName: "Personal",
	}

	u, signedIn := auth.CurrentUser(r)
	if signedIn {
		vm.IsLoggedIn = true
		vm.UserName = u.Name
	}

	if s := activecontext.FromRequest(r); s != nil {
		vm.Context = s.Snapshot()
	}
	vm.applyContext(u)
	return vm
}

// WithSnapshot replaces the active context shown by the page, for handlers
// that waited for a profile to resolve.
func (vm BaseVM) WithSnapshot(snap activecontext.Snapshot, u *auth.SessionUser) BaseVM {
	vm.Context = snap
	vm.applyContext(u)
	return vm
}

func (vm *BaseVM) applyContext(u *auth.SessionUser) {
	snap := vm.Context
	vm.ContextName, vm.ContextLogoURL, vm.ContextColor = "Personal", "", ""
	if snap.ActiveSlug != "" {
		vm.ContextName = snap.ActiveSlug
		if snap.Profile != nil {
			vm.ContextName = snap.Profile.Name
			vm.ContextLogoURL = snap.Profile.Branding.LogoURL
			vm.ContextColor = snap.Profile.Branding.PrimaryColor
		}
	}

	vm.Contexts = []ContextOption{{
		Name:     "Personal",
		Initials: "ME",
		Active:   snap.ActiveSlug == "",
	}}
	if u == nil {
		return
	}
	for _, m := range u.Memberships {
		if !m.IsActive {
			continue
		}
		name := m.OrganizationName
		if name == "" {
			name = m.OrganizationSlug
		}
		vm.Contexts = append(vm.Contexts, ContextOption{
			Slug:     m.OrganizationSlug,
			Name:     name,
			Initials: models.Initials(m.OrganizationSlug),
			Role:     m.Role,
			Active:   m.OrganizationSlug == snap.ActiveSlug,
		})
	}
}
