// internal/domain/models/organization.go
package models

// OrganizationProfile is the detail record returned by
// GET /organizations/{slug}/details/.
type OrganizationProfile struct {
	Name     string   `json:"name"`
	Slug     string   `json:"slug"`
	OrgType  string   `json:"org_type"` // university | company | school | nonprofit
	Branding Branding `json:"branding"`
	Policies Policies `json:"policies"`
}

// Branding holds the visual assets shown while an organization is active.
type Branding struct {
	LogoURL      string `json:"logo_url"`
	BannerURL    string `json:"banner_url"`
	PrimaryColor string `json:"primary_color"`
}

// Policies holds organization rules shown to members.
// Summary is backend-provided HTML and must be sanitized before rendering.
type Policies struct {
	Summary         string `json:"summary"`
	AllowSelfEnroll bool   `json:"allow_self_enroll"`
}

// Initials returns up to two uppercase letters derived from a slug, used as
// a badge when no profile is available.
func Initials(slug string) string {
	out := make([]rune, 0, 2)
	start := true
	for _, r := range slug {
		if r == '-' || r == '_' || r == '.' {
			start = true
			continue
		}
		if start {
			if r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			out = append(out, r)
			if len(out) == 2 {
				break
			}
			start = false
		}
	}
	return string(out)
}
