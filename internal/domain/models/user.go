// internal/domain/models/user.go
package models

import "strings"

// Membership links a user to one organization as reported by GET /users/me/.
type Membership struct {
	OrganizationSlug string `json:"organization_slug"`
	OrganizationName string `json:"organization_name"`
	Role             string `json:"role"` // student | instructor | admin | owner
	IsActive         bool   `json:"is_active"`
}

// User is the authenticated principal as the backend describes it.
// It is owned by the backend; the frontend only caches a read-only copy.
type User struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	Verified      bool         `json:"is_verified"`
	Organizations []Membership `json:"organizations"`
}

// MembershipFor returns the user's active membership in the organization
// identified by slug.
func (u User) MembershipFor(slug string) (Membership, bool) {
	return FindMembership(u.Organizations, slug)
}

// FindMembership returns the active membership in ms for slug. Slugs compare
// case-insensitively, as the backend does not promise a case.
func FindMembership(ms []Membership, slug string) (Membership, bool) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Membership{}, false
	}
	for _, m := range ms {
		if m.IsActive && strings.EqualFold(strings.TrimSpace(m.OrganizationSlug), slug) {
			return m, true
		}
	}
	return Membership{}, false
}
